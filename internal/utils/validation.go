package utils

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// ValidateAmount checks that a budget, bid, or escrow amount string is a
// positive decimal number. It parses with decimal.Decimal rather than a
// float so a value like "19.999999999" isn't silently rounded before the
// NUMERIC(20,7) column it's eventually stored in ever sees it.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("the provided amount is not a valid number")
	}

	if !value.IsPositive() {
		return fmt.Errorf("the provided amount must be greater than zero")
	}

	return nil
}

// ValidateStringLength will validate the given string to ensure it is not empty and does not exceed the maximum length.
func ValidateStringLength(field, fieldName string, maxLength int) error {
	if strings.TrimSpace(field) == "" {
		return fmt.Errorf("%s field is required", fieldName)
	}

	if len(field) > maxLength {
		return fmt.Errorf("%s cannot exceed %d characters", fieldName, maxLength)
	}

	return nil
}

// ValidateURLScheme checks if a URL is valid and if it has a valid scheme.
func ValidateURLScheme(link string, scheme ...string) error {
	if !govalidator.IsURL(link) {
		return errors.New("invalid URL format")
	}

	parsedURL, err := url.ParseRequestURI(link)
	if err != nil {
		return errors.New("invalid URL format")
	}

	if len(scheme) > 0 {
		if !slices.Contains(scheme, parsedURL.Scheme) {
			return fmt.Errorf("invalid URL scheme is not part of %v", scheme)
		}
	}

	return nil
}

// ValidateNoHTML returns an error if the input contains any of the following HTML-related characters: [<, >, &, ', "],
// either in encoded or decoded form.
func ValidateNoHTML(input string) error {
	if escapedStr := html.EscapeString(input); escapedStr != input {
		return errors.New(`input contains one or more of the following HTML-related characters [<, >, &, ', "]`)
	}

	if unescapedStr := html.UnescapeString(input); unescapedStr != input {
		return errors.New("input contains HTML entities")
	}

	return nil
}
