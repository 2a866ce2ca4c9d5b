package httphandler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/agentmarket/coordinator/internal/identity"
	"github.com/agentmarket/coordinator/internal/serve/httperror"
)

type IdentityHandler struct {
	IdentityAdapter identity.Adapter
}

// Lookup is a direct passthrough to the identity adapter, used by clients
// that want a worker's attributes without going through /agents.
func (h IdentityHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	handle := chi.URLParam(r, "handle")

	record, err := h.IdentityAdapter.Lookup(ctx, handle)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			httperror.NotFound(fmt.Sprintf("handle %s not found", handle), err).Render(w)
			return
		}
		if errors.Is(err, identity.ErrBackendUnavailable) {
			httperror.BackendUnavailable("identity backend unavailable", err).Render(w)
			return
		}
		httperror.InternalError(ctx, "looking up identity", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, record, httpjson.JSON)
}
