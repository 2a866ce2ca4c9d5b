// Package httperror maps the coordinator's error taxonomy onto stable HTTP
// responses: ValidationError->400, AuthorizationError->403, NotFound->404,
// InvalidTransition->400, Conflict->409, BackendUnavailable->503,
// Internal->500.
package httperror

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/agentmarket/coordinator/internal/logging"
)

type HTTPError struct {
	StatusCode int            `json:"-"`
	Message    string         `json:"error"`
	Extras     map[string]any `json:"extras,omitempty"`
	Err        error          `json:"-"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) Render(w http.ResponseWriter) {
	httpjson.RenderStatus(w, e.StatusCode, e, httpjson.JSON)
}

func newError(statusCode int, msg string, originalErr error, extras map[string]any) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: msg, Extras: extras, Err: originalErr}
}

// ValidationError maps a malformed or missing request field to 400.
func ValidationError(msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "The request was invalid in some way."
	}
	return newError(http.StatusBadRequest, msg, originalErr, extras)
}

// AuthorizationError maps a caller that is not permitted to perform the
// requested action to 403.
func AuthorizationError(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "You don't have permission to perform this action."
	}
	return newError(http.StatusForbidden, msg, originalErr, nil)
}

// NotFound maps an unknown id/handle to 404.
func NotFound(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "Resource not found."
	}
	return newError(http.StatusNotFound, msg, originalErr, nil)
}

// InvalidTransition maps a state machine rejection to 400, surfacing the
// task's current status/escrowStatus so the caller can reconcile.
func InvalidTransition(msg string, originalErr error, currentStatus, currentEscrowStatus string) *HTTPError {
	if msg == "" {
		msg = "This action is not valid for the task's current status."
	}
	return newError(http.StatusBadRequest, msg, originalErr, map[string]any{
		"status":       currentStatus,
		"escrowStatus": currentEscrowStatus,
	})
}

// Conflict maps an idempotency or compare-and-set violation (AlreadyAccepted,
// AlreadyDeposited) to 409.
func Conflict(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "The request conflicts with the resource's current state."
	}
	return newError(http.StatusConflict, msg, originalErr, nil)
}

// BackendUnavailable maps an adapter's transient fault, after retry
// exhaustion, to 503.
func BackendUnavailable(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "A downstream service is temporarily unavailable. Please retry."
	}
	return newError(http.StatusServiceUnavailable, msg, originalErr, nil)
}

// InternalError maps any unclassified fault to 500 and logs it with
// whatever fields the request context carries (including taskId, if the
// caller attached one).
func InternalError(ctx context.Context, msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "An internal error occurred while processing this request."
	}
	logged := originalErr
	if msg != "" && originalErr != nil {
		logged = fmt.Errorf("%s: %w", msg, originalErr)
	}
	logging.Ctx(ctx).WithStack(logged).Errorf("%+v", logged)
	return newError(http.StatusInternalServerError, msg, originalErr, nil)
}
