package handlers

import (
	"errors"
	"net/http"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/metadata"
	"github.com/mediatheque/backend/internal/policy"
)

// MetadataHandler proxies catalog lookups against the external metadata
// provider so API keys never reach the browser.
type MetadataHandler struct {
	Provider  MetadataProvider
	Requester RequesterResolver
}

// Search handles GET /api/metadata/search?q=.
func (h MetadataHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireAuthenticated(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "metadata", nil))
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		fail(w, r, apierror.MissingField("q"))
		return
	}

	if h.Provider == nil {
		fail(w, r, apierror.NotFound("metadata provider", ""))
		return
	}
	candidates, err := h.Provider.Search(ctx, query)
	if err != nil {
		if errors.Is(err, metadata.ErrDisabled) {
			fail(w, r, apierror.NotFound("metadata provider", ""))
			return
		}
		failInternal(w, r, "search metadata", err)
		return
	}
	if candidates == nil {
		candidates = []metadata.Candidate{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"results": candidates})
}
