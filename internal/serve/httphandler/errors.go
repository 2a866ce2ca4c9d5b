package httphandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/agentmarket/coordinator/internal/escrow"
	"github.com/agentmarket/coordinator/internal/serve/httperror"
	"github.com/agentmarket/coordinator/internal/statemachine"
)

// parseUUIDParam rejects a malformed path id before it reaches a query,
// turning what would otherwise be a database error on a bad literal into
// a 400.
func parseUUIDParam(w http.ResponseWriter, resourceName, raw string) (string, bool) {
	if _, err := uuid.Parse(raw); err != nil {
		httperror.ValidationError(fmt.Sprintf("%s id %q is not a valid id", resourceName, raw), err, nil).Render(w)
		return "", false
	}
	return raw, true
}

// renderEscrowError maps the escrow adapter's failure taxonomy onto the
// coordinator's stable HTTP codes.
func renderEscrowError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, escrow.ErrAlreadyDeposited):
		httperror.Conflict("deposit already recorded for this task", err).Render(w)
	case errors.Is(err, escrow.ErrDepositorMismatch), errors.Is(err, escrow.ErrAmountMismatch):
		httperror.ValidationError("deposit does not match the expected depositor or amount", err, nil).Render(w)
	case errors.Is(err, escrow.ErrNotFound), errors.Is(err, escrow.ErrNotHeld):
		httperror.NotFound("no matching escrow deposit found", err).Render(w)
	case errors.Is(err, escrow.ErrBackendUnavailable):
		httperror.BackendUnavailable("escrow backend unavailable", err).Render(w)
	default:
		httperror.InternalError(ctx, "escrow operation failed", err).Render(w)
	}
}

// renderTransitionError maps a state-machine rejection onto 400 with the
// task's current status, or 500 for anything unclassified.
func renderTransitionError(ctx context.Context, w http.ResponseWriter, err error) {
	var invalidErr *statemachine.InvalidTransitionError
	if errors.As(err, &invalidErr) {
		httperror.InvalidTransition("", err, string(invalidErr.CurrentStatus), string(invalidErr.CurrentEscrow)).Render(w)
		return
	}
	httperror.InternalError(ctx, "applying task transition", err).Render(w)
}
