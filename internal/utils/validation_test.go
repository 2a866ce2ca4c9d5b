package utils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func Test_ValidateAmount(t *testing.T) {
	testCases := []struct {
		amount  string
		wantErr error
	}{
		{"", fmt.Errorf("amount cannot be empty")},
		{"notvalidamount", fmt.Errorf("the provided amount is not a valid number")},
		{"0", fmt.Errorf("the provided amount must be greater than zero")},
		{"0.00", fmt.Errorf("the provided amount must be greater than zero")},
		{"1", nil},
		{"1.00", nil},
		{"1.01", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.amount, func(t *testing.T) {
			gotError := ValidateAmount(tc.amount)
			assert.Equalf(t, tc.wantErr, gotError, "ValidateAmount(%q) should be %v, but got %v", tc.amount, tc.wantErr, gotError)
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		fieldName   string
		maxLength   int
		expectError bool
		errorMsg    string
	}{
		{
			name:        "error - empty field",
			field:       "",
			fieldName:   "title",
			maxLength:   50,
			expectError: true,
			errorMsg:    "title field is required",
		},
		{
			name:        "error - field with only spaces",
			field:       "   ",
			fieldName:   "title",
			maxLength:   50,
			expectError: true,
			errorMsg:    "title field is required",
		},
		{
			name:        "error - field exceeds max length",
			field:       strings.Repeat("a", 51),
			fieldName:   "title",
			maxLength:   50,
			expectError: true,
			errorMsg:    "title cannot exceed 50 characters",
		},
		{
			name:        "error - field with spaces exceeds max length",
			field:       "  " + strings.Repeat("a", 49) + "  ",
			fieldName:   "title",
			maxLength:   50,
			expectError: true,
			errorMsg:    "title cannot exceed 50 characters",
		},
		{
			name:        "success - field at exact max length",
			field:       strings.Repeat("a", 50),
			fieldName:   "title",
			maxLength:   50,
			expectError: false,
		},
		{
			name:        "success - field under max length",
			field:       "Label the product photos",
			fieldName:   "title",
			maxLength:   50,
			expectError: false,
		},
		{
			name:        "success - field with leading/trailing spaces but still under max length",
			field:       "  Label the product photos  ",
			fieldName:   "title",
			maxLength:   50,
			expectError: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStringLength(tc.field, tc.fieldName, tc.maxLength)
			if tc.expectError {
				assert.Error(t, err)
				assert.Equal(t, tc.errorMsg, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_ValidateURLScheme(t *testing.T) {
	tests := []struct {
		url             string
		wantErrContains string
		schemas         []string
	}{
		{"https://example.com", "", nil},
		{"https://example.com/page.html", "", nil},
		{"https://example.com/section", "", nil},
		{"https://www.example.com", "", nil},
		{"https://subdomain.example.com", "", nil},
		{"https://www.subdomain.example.com", "", nil},
		{"", "invalid URL format", nil},
		{" ", "invalid URL format", nil},
		{"foobar", "invalid URL format", nil},
		{"foobar", "invalid URL format", nil},
		{"https://", "invalid URL format", nil},
		{"example.com", "invalid URL format", []string{"https"}},
		{"ftp://example.com", "invalid URL scheme is not part of [https]", []string{"https"}},
		{"http://example.com", "invalid URL scheme is not part of [https]", []string{"https"}},
		{"ftp://example.com", "", []string{"ftp"}},
		{"http://example.com", "", []string{"http"}},
	}

	for _, tc := range tests {
		title := fmt.Sprintf("%s-%s", VisualBool(tc.wantErrContains == ""), tc.url)
		t.Run(title, func(t *testing.T) {
			err := ValidateURLScheme(tc.url, tc.schemas...)
			if tc.wantErrContains == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErrContains)
			}
		})
	}
}

func Test_ValidateNoHTML(t *testing.T) {
	rawHTMLTestCases := []string{
		"<a href='evil.com'>Click here</a>",
		"<A HREF='evil.com'>Click here</A>",
		"<style>body { background: red; }</style>",
		"<STYLE>body { background: red; }</STYLE>",
		"<div style='color: red;'>Test</div>",
		"<DIV STYLE='color: red;'>Test</DIV>",
		"expression(alert('XSS'))",
		"EXPRESSION(ALERT('XSS'))",
		"javascript:alert(localStorage.getItem('session'))",
		"JAVASCRIPT:ALERT(localStorage.getItem('session'))",
		"javascript:alert('XSS')",
		"JAVASCRIPT:ALERT('XSS')",
	}

	for i, tc := range rawHTMLTestCases {
		t.Run(fmt.Sprintf("rawHTML/%d(%s)", i, tc), func(t *testing.T) {
			err := ValidateNoHTML(tc)
			require.Error(t, err, "ValidateNoHTML(%q) didn't catch the error", tc)
		})
	}

	for i, tc := range rawHTMLTestCases {
		encodedHtmlStr := html.EscapeString(tc)
		t.Run(fmt.Sprintf("encodedHTML/%d(%s)", i, encodedHtmlStr), func(t *testing.T) {
			err := ValidateNoHTML(encodedHtmlStr)
			require.Error(t, err, "ValidateNoHTML(%q) didn't catch the error", encodedHtmlStr)
		})
	}
}
