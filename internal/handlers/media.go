package handlers

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/policy"
	"github.com/mediatheque/backend/internal/repositories"
)

// maxCoverUploadBytes caps cover image uploads.
const maxCoverUploadBytes = 10 << 20

// MediaHandler implements the media endpoints, including cast management
// and cover uploads.
type MediaHandler struct {
	Media     MediaStore
	Libraries LibraryStore
	Genres    GenreStore
	Persons   PersonStore
	Covers    CoverStore
	Requester RequesterResolver
	NowFunc   func() time.Time
}

type castInput struct {
	PersonID      optInt `json:"person_id"`
	Role          string `json:"role"`
	CharacterName string `json:"character_name"`
}

// Collection handles POST /api/media.
func (h MediaHandler) Collection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireAuthenticated(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "media", nil))
		return
	}

	var req struct {
		Title          string      `json:"title"`
		Type           string      `json:"type"`
		LibraryID      optInt      `json:"library_id"`
		Visibility     string      `json:"visibility"`
		ReleaseYear    optInt      `json:"release_year"`
		Duration       optInt      `json:"duration"`
		Synopsis       string      `json:"synopsis"`
		CoverImageURL  string      `json:"cover_image_url"`
		TrailerURL     string      `json:"trailer_url"`
		FranchiseID    optInt      `json:"franchise_id"`
		FranchiseOrder optInt      `json:"franchise_order"`
		Genres         []optInt    `json:"genres"`
		Persons        []castInput `json:"persons"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}

	switch {
	case req.Title == "":
		fail(w, r, apierror.MissingField("title"))
		return
	case req.Type == "":
		fail(w, r, apierror.MissingField("type"))
		return
	case !req.LibraryID.Set || req.LibraryID.Value == nil && !req.LibraryID.Invalid:
		fail(w, r, apierror.MissingField("library_id"))
		return
	case req.Visibility == "":
		fail(w, r, apierror.MissingField("visibility"))
		return
	}

	if !models.ValidMediaType(req.Type) {
		fail(w, r, apierror.Conflict(`type must be "film" or "serie"`, "media"))
		return
	}
	if !models.ValidVisibility(req.Visibility) {
		fail(w, r, apierror.Conflict(`visibility must be "public" or "private"`, "media"))
		return
	}
	if req.LibraryID.Invalid {
		fail(w, r, coerceError("library_id", "media"))
		return
	}

	media := models.Media{
		Title:         req.Title,
		Type:          req.Type,
		LibraryID:     *req.LibraryID.Value,
		Visibility:    req.Visibility,
		Synopsis:      req.Synopsis,
		CoverImageURL: req.CoverImageURL,
		TrailerURL:    req.TrailerURL,
		CreatedAt:     h.now(),
	}

	for _, field := range []struct {
		name string
		in   optInt
		out  **int
	}{
		{"release_year", req.ReleaseYear, &media.ReleaseYear},
		{"duration", req.Duration, &media.Duration},
		{"franchise_id", req.FranchiseID, &media.FranchiseID},
		{"franchise_order", req.FranchiseOrder, &media.FranchiseOrder},
	} {
		if field.in.Invalid {
			fail(w, r, coerceError(field.name, "media"))
			return
		}
		*field.out = field.in.Value
	}

	// The target library must exist and, unless the requester is admin,
	// belong to them.
	lib, err := h.Libraries.FindByID(ctx, media.LibraryID)
	if err != nil {
		storeFailure(w, r, "find library", err, "library", media.LibraryID)
		return
	}
	if !policy.IsAdmin(requester) && lib.OwnerID != requester.ID {
		fail(w, r, apierror.Authorization("you are not the owner of this library"))
		return
	}

	genreIDs, e := h.resolveGenres(w, r, req.Genres)
	if e != nil {
		return
	}
	cast := buildCastEntries(req.Persons)

	id, err := h.Media.Create(ctx, media, genreIDs, cast)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			fail(w, r, apierror.NotFound("person", ""))
			return
		}
		failInternal(w, r, "create media", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/media/%d", id))
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"id":      id,
		"title":   media.Title,
		"message": "media created",
	})
}

// Item handles GET, PATCH and DELETE on /api/media/{media_id}.
func (h MediaHandler) Item(w http.ResponseWriter, r *http.Request) {
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

func (h MediaHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "media_id", "media")
	if e != nil {
		fail(w, r, e)
		return
	}

	media, err := h.Media.FindByID(ctx, id)
	if err != nil {
		storeFailure(w, r, "find media", err, "media", id)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	if !policy.CanViewMedia(requester, media) {
		fail(w, r, apierror.Authorization("access to this media is denied"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, newMediaDetailView(media))
}

func (h MediaHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "media_id", "media")
	if e != nil {
		fail(w, r, e)
		return
	}

	requester := h.Requester.Resolve(ctx, r)

	media, found, err := h.findForWrite(w, r, id)
	if err != nil {
		return
	}
	if v := policy.RequireMediaOwnerOrAdmin(requester, found); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "media", id))
		return
	}

	var req struct {
		Title          optString    `json:"title"`
		Type           optString    `json:"type"`
		Visibility     optString    `json:"visibility"`
		Synopsis       optString    `json:"synopsis"`
		CoverImageURL  optString    `json:"cover_image_url"`
		TrailerURL     optString    `json:"trailer_url"`
		ReleaseYear    optInt       `json:"release_year"`
		Duration       optInt       `json:"duration"`
		FranchiseID    optInt       `json:"franchise_id"`
		FranchiseOrder optInt       `json:"franchise_order"`
		Genres         *[]optInt    `json:"genres"`
		Persons        *[]castInput `json:"persons"`
	}
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}

	if req.Title.Set {
		if req.Title.Value == "" {
			fail(w, r, apierror.MissingField("title"))
			return
		}
		media.Title = req.Title.Value
	}
	if req.Type.Set {
		if !models.ValidMediaType(req.Type.Value) {
			fail(w, r, apierror.Conflict(`type must be "film" or "serie"`, "media"))
			return
		}
		media.Type = req.Type.Value
	}
	if req.Visibility.Set {
		if !models.ValidVisibility(req.Visibility.Value) {
			fail(w, r, apierror.Conflict(`visibility must be "public" or "private"`, "media"))
			return
		}
		media.Visibility = req.Visibility.Value
	}
	if req.Synopsis.Set {
		media.Synopsis = req.Synopsis.Value
	}
	if req.CoverImageURL.Set {
		media.CoverImageURL = req.CoverImageURL.Value
	}
	if req.TrailerURL.Set {
		media.TrailerURL = req.TrailerURL.Value
	}

	for _, field := range []struct {
		name string
		in   optInt
		out  **int
	}{
		{"release_year", req.ReleaseYear, &media.ReleaseYear},
		{"duration", req.Duration, &media.Duration},
		{"franchise_id", req.FranchiseID, &media.FranchiseID},
		{"franchise_order", req.FranchiseOrder, &media.FranchiseOrder},
	} {
		if !field.in.Set {
			continue
		}
		if field.in.Invalid {
			fail(w, r, coerceError(field.name, "media"))
			return
		}
		*field.out = field.in.Value
	}

	// Association lists replace the whole set: absent leaves them
	// untouched, an empty list clears them.
	var genreIDs []int
	replaceGenres := req.Genres != nil
	if replaceGenres {
		genreIDs, e = h.resolveGenres(w, r, *req.Genres)
		if e != nil {
			return
		}
	}

	var cast []models.CastEntry
	replaceCast := req.Persons != nil
	if replaceCast {
		for _, in := range *req.Persons {
			if in.PersonID.Invalid {
				fail(w, r, coerceError("person_id", "media"))
				return
			}
		}
		cast = buildCastEntries(*req.Persons)
		if e := h.checkPersonsExist(w, r, cast); e != nil {
			return
		}
	}

	if err := h.Media.Update(ctx, media, genreIDs, cast, replaceGenres, replaceCast); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			fail(w, r, apierror.Conflict("this person already holds that role on this media", "media"))
			return
		}
		storeFailure(w, r, "update media", err, "media", id)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"id":      media.ID,
		"title":   media.Title,
		"message": "media updated",
	})
}

func (h MediaHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "media_id", "media")
	if e != nil {
		fail(w, r, e)
		return
	}

	requester := h.Requester.Resolve(ctx, r)

	_, found, err := h.findForWrite(w, r, id)
	if err != nil {
		return
	}
	if v := policy.RequireMediaOwnerOrAdmin(requester, found); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "media", id))
		return
	}

	if err := h.Media.Delete(ctx, id); err != nil {
		storeFailure(w, r, "delete media", err, "media", id)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"message": "media deleted"})
}

// Cast handles GET and POST on /api/media/{media_id}/persons.
func (h MediaHandler) Cast(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listCast(w, r)
	case http.MethodPost:
		h.addCast(w, r)
	default:
		fail(w, r, apierror.MethodNotAllowed())
	}
}

func (h MediaHandler) listCast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "media_id", "media")
	if e != nil {
		fail(w, r, e)
		return
	}

	media, err := h.Media.FindByID(ctx, id)
	if err != nil {
		storeFailure(w, r, "find media", err, "media", id)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	if !policy.CanViewMedia(requester, media) {
		fail(w, r, apierror.Authorization("access to this media is denied"))
		return
	}

	views := make([]castView, 0, len(media.Cast))
	for _, entry := range media.Cast {
		views = append(views, newCastView(entry))
	}
	respondJSON(ctx, w, http.StatusOK, views)
}

func (h MediaHandler) addCast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, e := pathID(r, "media_id", "media")
	if e != nil {
		fail(w, r, e)
		return
	}

	requester := h.Requester.Resolve(ctx, r)

	_, found, err := h.findForWrite(w, r, id)
	if err != nil {
		return
	}
	if v := policy.RequireMediaOwnerOrAdmin(requester, found); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "media", id))
		return
	}

	var req castInput
	if e := decodeJSON(r, &req); e != nil {
		fail(w, r, e)
		return
	}

	if !req.PersonID.Set || req.PersonID.Value == nil && !req.PersonID.Invalid {
		fail(w, r, apierror.MissingField("person_id"))
		return
	}
	if req.PersonID.Invalid {
		fail(w, r, coerceError("person_id", "media"))
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		fail(w, r, apierror.MissingField("role"))
		return
	}

	personID := *req.PersonID.Value
	if _, err := h.Persons.FindByID(ctx, personID); err != nil {
		storeFailure(w, r, "find person", err, "person", personID)
		return
	}

	entry := models.CastEntry{
		MediaID:       id,
		PersonID:      personID,
		Role:          role,
		CharacterName: strings.TrimSpace(req.CharacterName),
	}
	if err := h.Media.AddCastEntry(ctx, entry); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			fail(w, r, apierror.Conflict("this person already holds that role on this media", "media"))
			return
		}
		failInternal(w, r, "add cast entry", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/media/%d/persons", id))
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"media_id":  id,
		"person_id": personID,
		"role":      role,
		"message":   "cast entry added",
	})
}

// CastItem handles DELETE /api/media/{media_id}/persons/{person_id}/{role}.
func (h MediaHandler) CastItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()

	id, e := pathID(r, "media_id", "media")
	if e != nil {
		fail(w, r, e)
		return
	}
	personID, e := pathID(r, "person_id", "person")
	if e != nil {
		fail(w, r, e)
		return
	}
	role := r.PathValue("role")

	requester := h.Requester.Resolve(ctx, r)

	_, found, err := h.findForWrite(w, r, id)
	if err != nil {
		return
	}
	if v := policy.RequireMediaOwnerOrAdmin(requester, found); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "media", id))
		return
	}

	if err := h.Media.RemoveCastEntry(ctx, id, personID, role); err != nil {
		storeFailure(w, r, "remove cast entry", err, "person", personID)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"message": "cast entry removed"})
}

// Random handles GET /api/media/random: a random media from the
// requester's own collection.
func (h MediaHandler) Random(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	requester := h.Requester.Resolve(ctx, r)
	if v := policy.RequireAuthenticated(requester); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "media", nil))
		return
	}

	media, err := h.Media.ListByOwner(ctx, requester.ID)
	if err != nil {
		failInternal(w, r, "list owned media", err)
		return
	}
	if len(media) == 0 {
		fail(w, r, apierror.NotFound("media", ""))
		return
	}

	pick := media[rand.IntN(len(media))]
	detail, err := h.Media.FindByID(ctx, pick.ID)
	if err != nil {
		storeFailure(w, r, "find media", err, "media", pick.ID)
		return
	}
	respondJSON(ctx, w, http.StatusOK, newMediaDetailView(detail))
}

// Cover handles POST /api/media/{media_id}/cover: a multipart image
// upload stored in the object store.
func (h MediaHandler) Cover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()

	id, e := pathID(r, "media_id", "media")
	if e != nil {
		fail(w, r, e)
		return
	}

	requester := h.Requester.Resolve(ctx, r)

	_, found, err := h.findForWrite(w, r, id)
	if err != nil {
		return
	}
	if v := policy.RequireMediaOwnerOrAdmin(requester, found); v.Effect != policy.Allow {
		fail(w, r, gateFailure(requester, v, "media", id))
		return
	}

	if h.Covers == nil {
		fail(w, r, apierror.NotFound("cover storage", ""))
		return
	}

	if err := r.ParseMultipartForm(maxCoverUploadBytes); err != nil {
		fail(w, r, apierror.MissingField("file"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, apierror.MissingField("file"))
		return
	}
	defer file.Close()

	url, err := h.Covers.Store(ctx, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		failInternal(w, r, "store cover image", err)
		return
	}
	if err := h.Media.SetCoverImage(ctx, id, url); err != nil {
		storeFailure(w, r, "save cover url", err, "media", id)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"id":              id,
		"cover_image_url": url,
		"message":         "cover image updated",
	})
}

// resolveGenres coerces and validates a genre id list, reporting the
// first unknown id.
func (h MediaHandler) resolveGenres(w http.ResponseWriter, r *http.Request, values []optInt) ([]int, *apierror.Error) {
	ids, e := intList(values, "genres", "media")
	if e != nil {
		fail(w, r, e)
		return nil, e
	}
	if len(ids) == 0 {
		return ids, nil
	}

	found, err := h.Genres.FindByIDs(r.Context(), ids)
	if err != nil {
		failInternal(w, r, "find genres", err)
		return nil, apierror.Internal()
	}
	known := make(map[int]bool, len(found))
	for _, g := range found {
		known[g.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			e := apierror.NotFound("genre", id)
			fail(w, r, e)
			return nil, e
		}
	}
	return ids, nil
}

// checkPersonsExist verifies every cast person before a set-replace so
// the whole update stays atomic.
func (h MediaHandler) checkPersonsExist(w http.ResponseWriter, r *http.Request, cast []models.CastEntry) *apierror.Error {
	for _, entry := range cast {
		if _, err := h.Persons.FindByID(r.Context(), entry.PersonID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				e := apierror.NotFound("person", entry.PersonID)
				fail(w, r, e)
				return e
			}
			failInternal(w, r, "find person", err)
			return apierror.Internal()
		}
	}
	return nil
}

// buildCastEntries keeps well-formed entries and skips the rest, the
// same forgiving shape the import tooling produces.
func buildCastEntries(inputs []castInput) []models.CastEntry {
	entries := make([]models.CastEntry, 0, len(inputs))
	for _, in := range inputs {
		if in.PersonID.Value == nil || in.PersonID.Invalid {
			continue
		}
		role := strings.TrimSpace(in.Role)
		if role == "" {
			continue
		}
		entries = append(entries, models.CastEntry{
			PersonID:      *in.PersonID.Value,
			Role:          role,
			CharacterName: strings.TrimSpace(in.CharacterName),
		})
	}
	return entries
}

func (h MediaHandler) findForWrite(w http.ResponseWriter, r *http.Request, id int) (models.Media, *models.Media, error) {
	media, err := h.Media.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Media{}, nil, nil
		}
		failInternal(w, r, "find media", err)
		return models.Media{}, nil, err
	}
	return media, &media, nil
}

func (h MediaHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
