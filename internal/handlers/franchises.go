package handlers

import (
	"fmt"
	"net/http"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/policy"
)

// FranchiseHandler implements the franchise endpoints, curated by
// trusted and admin users.
type FranchiseHandler struct {
	Franchises FranchiseStore
	Requester  RequesterResolver
}

// Collection handles POST /api/franchises.
func (h FranchiseHandler) Collection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "franchise", nil))
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}
	if req.Name == "" {
		fail(w, r, apierror.MissingField("name"))
		return
	}

	id, err := h.Franchises.Create(ctx, models.Franchise{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		failInternal(w, r, "create franchise", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/franchises/%d", id))
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"id":      id,
		"name":    req.Name,
		"message": "franchise created",
	})
}

// Item handles GET, PATCH and DELETE on /api/franchises/{franchise_id}.
func (h FranchiseHandler) Item(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "franchise_id", "franchise")
	if e != nil {
		fail(w, r, e)
		return
	}

	switch r.Method {
	case http.MethodGet:
		franchise, err := h.Franchises.FindByID(ctx, id)
		if err != nil {
			storeFailure(w, r, "find franchise", err, "franchise", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, newFranchiseView(franchise))

	case http.MethodPatch:
		requester := h.Requester.Resolve(ctx, r)
		if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
			fail(w, r, gateFailure(requester, v, "franchise", id))
			return
		}

		franchise, err := h.Franchises.FindByID(ctx, id)
		if err != nil {
			storeFailure(w, r, "find franchise", err, "franchise", id)
			return
		}

		var req struct {
			Name        optString `json:"name"`
			Description optString `json:"description"`
		}
		if e := decodeJSON(r, &req); e != nil {
			fail(w, r, e)
			return
		}
		if req.Name.Set {
			if req.Name.Value == "" {
				fail(w, r, apierror.MissingField("name"))
				return
			}
			franchise.Name = req.Name.Value
		}
		if req.Description.Set {
			franchise.Description = req.Description.Value
		}

		if err := h.Franchises.Update(ctx, franchise); err != nil {
			storeFailure(w, r, "update franchise", err, "franchise", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{
			"id":      franchise.ID,
			"name":    franchise.Name,
			"message": "franchise updated",
		})

	case http.MethodDelete:
		requester := h.Requester.Resolve(ctx, r)
		if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
			fail(w, r, gateFailure(requester, v, "franchise", id))
			return
		}

		// Media in the franchise survive; their franchise link is
		// cleared by the store.
		if err := h.Franchises.Delete(ctx, id); err != nil {
			storeFailure(w, r, "delete franchise", err, "franchise", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"message": "franchise deleted"})

	default:
		fail(w, r, apierror.MethodNotAllowed())
	}
}
