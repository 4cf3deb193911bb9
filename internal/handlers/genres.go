package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/policy"
	"github.com/mediatheque/backend/internal/repositories"
)

// GenreHandler implements the genre endpoints. Genres are a shared
// taxonomy: anyone may read them, trusted and admin users curate them.
type GenreHandler struct {
	Genres    GenreStore
	Requester RequesterResolver
}

// Collection handles POST /api/genres.
func (h GenreHandler) Collection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "genre", nil))
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}
	if req.Name == "" {
		fail(w, r, apierror.MissingField("name"))
		return
	}

	id, err := h.Genres.Create(ctx, models.Genre{Name: req.Name})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			fail(w, r, apierror.AlreadyExists("genre", "name", req.Name))
			return
		}
		failInternal(w, r, "create genre", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/genres/%d", id))
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"id":      id,
		"name":    req.Name,
		"message": "genre created",
	})
}

// Item handles GET, PATCH and DELETE on /api/genres/{genre_id}.
func (h GenreHandler) Item(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "genre_id", "genre")
	if e != nil {
		fail(w, r, e)
		return
	}

	switch r.Method {
	case http.MethodGet:
		genre, err := h.Genres.FindByID(ctx, id)
		if err != nil {
			storeFailure(w, r, "find genre", err, "genre", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, newGenreView(genre))

	case http.MethodPatch:
		requester := h.Requester.Resolve(ctx, r)
		if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
			fail(w, r, gateFailure(requester, v, "genre", id))
			return
		}

		genre, err := h.Genres.FindByID(ctx, id)
		if err != nil {
			storeFailure(w, r, "find genre", err, "genre", id)
			return
		}

		var req struct {
			Name optString `json:"name"`
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
			genre.Name = req.Name.Value
		}

		if err := h.Genres.Update(ctx, genre); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				fail(w, r, apierror.AlreadyExists("genre", "name", genre.Name))
				return
			}
			storeFailure(w, r, "update genre", err, "genre", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{
			"id":      genre.ID,
			"name":    genre.Name,
			"message": "genre updated",
		})

	case http.MethodDelete:
		requester := h.Requester.Resolve(ctx, r)
		if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
			fail(w, r, gateFailure(requester, v, "genre", id))
			return
		}

		if err := h.Genres.Delete(ctx, id); err != nil {
			storeFailure(w, r, "delete genre", err, "genre", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"message": "genre deleted"})

	default:
		fail(w, r, apierror.MethodNotAllowed())
	}
}
