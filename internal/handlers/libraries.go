package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/policy"
	"github.com/mediatheque/backend/internal/repositories"
	"github.com/mediatheque/backend/internal/search"
)

// LibraryHandler implements library endpoints. Reads are open behind the
// visibility check; writes are owner-or-admin.
type LibraryHandler struct {
	Libraries LibraryStore
	Media     MediaStore
	Requester RequesterResolver
	NowFunc   func() time.Time
}

// Collection handles POST /api/libraries.
func (h LibraryHandler) Collection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireAuthenticated(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "library", nil))
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Visibility  string `json:"visibility"`
		OwnerID     optInt `json:"owner_id"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}

	if req.Name == "" {
		fail(w, r, apierror.MissingField("name"))
		return
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	if !models.ValidVisibility(visibility) {
		fail(w, r, apierror.Conflict(`visibility must be "public" or "private"`, "library"))
		return
	}

	// The owner is the requester; only an admin may create on behalf of
	// someone else.
	ownerID := requester.ID
	if req.OwnerID.Set {
		if req.OwnerID.Invalid {
			fail(w, r, coerceError("owner_id", "library"))
			return
		}
		if policy.IsAdmin(requester) && req.OwnerID.Value != nil {
			ownerID = *req.OwnerID.Value
		}
	}

	id, err := h.Libraries.Create(ctx, models.Library{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  visibility,
		CreatedAt:   h.now(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			fail(w, r, apierror.NotFound("user", ownerID))
			return
		}
		failInternal(w, r, "create library", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/libraries/%d", id))
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"id":      id,
		"name":    req.Name,
		"message": "library created",
	})
}

// Item handles GET, PATCH and DELETE on /api/libraries/{library_id}.
func (h LibraryHandler) Item(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPatch:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		fail(w, r, apierror.MethodNotAllowed())
	}
}

func (h LibraryHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "library_id", "library")
	if e != nil {
		fail(w, r, e)
		return
	}

	lib, err := h.Libraries.FindByID(ctx, id)
	if err != nil {
		storeFailure(w, r, "find library", err, "library", id)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	if !policy.CanViewLibrary(requester, lib) {
		fail(w, r, apierror.Authorization("access to this library is denied"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, newLibraryView(lib))
}

func (h LibraryHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "library_id", "library")
	if e != nil {
		fail(w, r, e)
		return
	}

	requester := h.Requester.Resolve(ctx, r)

	lib, found, err := h.findForWrite(w, r, id)
	if err != nil {
		return
	}
	if v := policy.RequireLibraryOwnerOrAdmin(requester, found); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "library", id))
		return
	}

	var req struct {
		Name        optString `json:"name"`
		Description optString `json:"description"`
		Visibility  optString `json:"visibility"`
		OwnerID     optInt    `json:"owner_id"`
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
		lib.Name = req.Name.Value
	}
	if req.Description.Set {
		lib.Description = req.Description.Value
	}
	if req.Visibility.Set {
		if !models.ValidVisibility(req.Visibility.Value) {
			fail(w, r, apierror.Conflict(`visibility must be "public" or "private"`, "library"))
			return
		}
		lib.Visibility = req.Visibility.Value
	}
	if req.OwnerID.Set {
		// Ownership transfer is admin-only.
		if !policy.IsAdmin(requester) {
			fail(w, r, apierror.Authorization("only an admin may change the owner"))
			return
		}
		if req.OwnerID.Invalid || req.OwnerID.Value == nil {
			fail(w, r, coerceError("owner_id", "library"))
			return
		}
		lib.OwnerID = *req.OwnerID.Value
	}

	if err := h.Libraries.Update(ctx, lib); err != nil {
		storeFailure(w, r, "update library", err, "library", id)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"id":      lib.ID,
		"name":    lib.Name,
		"message": "library updated",
	})
}

func (h LibraryHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "library_id", "library")
	if e != nil {
		fail(w, r, e)
		return
	}

	requester := h.Requester.Resolve(ctx, r)

	_, found, err := h.findForWrite(w, r, id)
	if err != nil {
		return
	}
	if v := policy.RequireLibraryOwnerOrAdmin(requester, found); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "library", id))
		return
	}

	if err := h.Libraries.Delete(ctx, id); err != nil {
		storeFailure(w, r, "delete library", err, "library", id)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"message": "library deleted"})
}

// MediaList handles GET /api/libraries/{library_id}/media: the library's
// media the requester may view, as summaries.
func (h LibraryHandler) MediaList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()

	id, e := pathID(r, "library_id", "library")
	if e != nil {
		fail(w, r, e)
		return
	}

	lib, err := h.Libraries.FindByID(ctx, id)
	if err != nil {
		storeFailure(w, r, "find library", err, "library", id)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	if !policy.CanViewLibrary(requester, lib) {
		fail(w, r, apierror.Authorization("access to this library is denied"))
		return
	}

	media, err := h.Media.ListByLibrary(ctx, id)
	if err != nil {
		failInternal(w, r, "list library media", err)
		return
	}

	visible := search.Filter(media, func(m models.Media) bool {
		return policy.CanViewMedia(requester, m)
	})

	views := make([]mediaSummaryView, 0, len(visible))
	for _, m := range visible {
		views = append(views, newMediaSummaryView(m))
	}
	respondJSON(ctx, w, http.StatusOK, views)
}

// findForWrite loads the mutation target, handling unexpected store
// failures itself. A missing library yields (zero, nil, nil) so
// ownership gates see a nil target and answer NotFound.
func (h LibraryHandler) findForWrite(w http.ResponseWriter, r *http.Request, id int) (models.Library, *models.Library, error) {
	lib, err := h.Libraries.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Library{}, nil, nil
		}
		failInternal(w, r, "find library", err)
		return models.Library{}, nil, err
	}
	return lib, &lib, nil
}

func (h LibraryHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
