package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/policy"
	"github.com/mediatheque/backend/internal/search"
)

// PersonHandler implements the person endpoints, curated by trusted and
// admin users, plus the per-person filmography listing.
type PersonHandler struct {
	Persons   PersonStore
	Requester RequesterResolver
}

// Collection handles POST /api/persons.
func (h PersonHandler) Collection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "person", nil))
		return
	}

	var req struct {
		Name      string `json:"name"`
		Birthdate string `json:"birthdate"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}
	if req.Name == "" {
		fail(w, r, apierror.MissingField("name"))
		return
	}

	person := models.Person{Name: req.Name}
	if req.Birthdate != "" {
		date, err := time.Parse("2006-01-02", req.Birthdate)
		if err != nil {
			fail(w, r, apierror.Conflict("birthdate must be an ISO date (YYYY-MM-DD)", "person"))
			return
		}
		person.Birthdate = &date
	}

	id, err := h.Persons.Create(ctx, person)
	if err != nil {
		failInternal(w, r, "create person", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/persons/%d", id))
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"id":      id,
		"name":    req.Name,
		"message": "person created",
	})
}

// Item handles GET, PATCH and DELETE on /api/persons/{person_id}.
func (h PersonHandler) Item(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "person_id", "person")
	if e != nil {
		fail(w, r, e)
		return
	}

	switch r.Method {
	case http.MethodGet:
		person, err := h.Persons.FindByID(ctx, id)
		if err != nil {
			storeFailure(w, r, "find person", err, "person", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, newPersonView(person))

	case http.MethodPatch:
		requester := h.Requester.Resolve(ctx, r)
		if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
			fail(w, r, gateFailure(requester, v, "person", id))
			return
		}

		person, err := h.Persons.FindByID(ctx, id)
		if err != nil {
			storeFailure(w, r, "find person", err, "person", id)
			return
		}

		var req struct {
			Name      optString `json:"name"`
			Birthdate optString `json:"birthdate"`
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
			person.Name = req.Name.Value
		}
		if req.Birthdate.Set {
			if req.Birthdate.Value == "" {
				person.Birthdate = nil
			} else {
				date, err := time.Parse("2006-01-02", req.Birthdate.Value)
				if err != nil {
					fail(w, r, apierror.Conflict("birthdate must be an ISO date (YYYY-MM-DD)", "person"))
					return
				}
				person.Birthdate = &date
			}
		}

		if err := h.Persons.Update(ctx, person); err != nil {
			storeFailure(w, r, "update person", err, "person", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{
			"id":      person.ID,
			"name":    person.Name,
			"message": "person updated",
		})

	case http.MethodDelete:
		requester := h.Requester.Resolve(ctx, r)
		if v := policy.RequireTrustedOrAdmin(requester); v.Effect != policy.Allow {
			fail(w, r, gateFailure(requester, v, "person", id))
			return
		}

		if err := h.Persons.Delete(ctx, id); err != nil {
			storeFailure(w, r, "delete person", err, "person", id)
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"message": "person deleted"})

	default:
		fail(w, r, apierror.MethodNotAllowed())
	}
}

// Filmography handles GET /api/persons/{person_id}/media: every media
// the person appears in that the requester may view, with the role
// attached.
func (h PersonHandler) Filmography(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()

	id, e := pathID(r, "person_id", "person")
	if e != nil {
		fail(w, r, e)
		return
	}

	if _, err := h.Persons.FindByID(ctx, id); err != nil {
		storeFailure(w, r, "find person", err, "person", id)
		return
	}

	entries, err := h.Persons.Filmography(ctx, id)
	if err != nil {
		failInternal(w, r, "list filmography", err)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	visible := search.Filter(entries, func(entry models.FilmographyEntry) bool {
		return policy.CanViewMedia(requester, entry.Media)
	})

	views := make([]filmographyView, 0, len(visible))
	for _, entry := range visible {
		views = append(views, newFilmographyView(entry))
	}
	respondJSON(ctx, w, http.StatusOK, views)
}
