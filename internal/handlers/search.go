package handlers

import (
	"net/http"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/policy"
	"github.com/mediatheque/backend/internal/repositories"
	"github.com/mediatheque/backend/internal/search"
)

// SearchHandler implements the paginated search endpoints. Taxonomy and
// user listings paginate in the store; media and library listings fetch
// a store page, drop non-viewable rows, and recompute the total over the
// full visible set so the envelope never leaks private counts.
type SearchHandler struct {
	Users      UserStore
	Libraries  LibraryStore
	Media      MediaStore
	Genres     GenreStore
	Franchises FranchiseStore
	Persons    PersonStore
	Requester  RequesterResolver
}

// SearchUsers handles GET /api/search/users.
func (h SearchHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	page := search.ParsePageRequest(query)

	filter := repositories.UserFilter{
		Query:  query.Get("q"),
		Role:   query.Get("role"),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	}

	users, err := h.Users.Search(ctx, filter)
	if err != nil {
		failInternal(w, r, "search users", err)
		return
	}
	total, err := h.Users.Count(ctx, filter)
	if err != nil {
		failInternal(w, r, "count users", err)
		return
	}

	requester := h.Requester.Resolve(ctx, r)
	includeEmail := policy.IsAdmin(requester)

	views := make([]userView, 0, len(users))
	for _, user := range users {
		views = append(views, newUserView(user, includeEmail))
	}
	respondJSON(ctx, w, http.StatusOK, search.NewResult(views, page, total))
}

// SearchMedia handles GET /api/search/media.
func (h SearchHandler) SearchMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	page := search.ParsePageRequest(query)
	requester := h.Requester.Resolve(ctx, r)

	filter := repositories.MediaFilter{
		Query:       query.Get("q"),
		LibraryID:   search.IntFilter(query, "library_id"),
		Visibility:  query.Get("visibility"),
		GenreID:     search.IntFilter(query, "genre_id"),
		PersonID:    search.IntFilter(query, "person_id"),
		FranchiseID: search.IntFilter(query, "franchise_id"),
		Limit:       page.PerPage,
		Offset:      page.Offset(),
	}

	items, err := h.Media.Search(ctx, filter)
	if err != nil {
		failInternal(w, r, "search media", err)
		return
	}
	visible := search.Filter(items, func(m models.Media) bool {
		return policy.CanViewMedia(requester, m)
	})

	// Admins see everything, so the store count is already the true
	// total. For everyone else the visible total requires a scan of the
	// full matching set.
	var total int
	if policy.IsAdmin(requester) {
		total, err = h.Media.Count(ctx, filter)
		if err != nil {
			failInternal(w, r, "count media", err)
			return
		}
	} else {
		full := filter
		full.Limit = 0
		full.Offset = 0
		all, err := h.Media.Search(ctx, full)
		if err != nil {
			failInternal(w, r, "count media", err)
			return
		}
		total = search.CountVisible(all, func(m models.Media) bool {
			return policy.CanViewMedia(requester, m)
		})
	}

	views := make([]mediaSummaryView, 0, len(visible))
	for _, m := range visible {
		views = append(views, newMediaSummaryView(m))
	}
	respondJSON(ctx, w, http.StatusOK, search.NewResult(views, page, total))
}

// SearchLibraries handles GET /api/search/libraries.
func (h SearchHandler) SearchLibraries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	page := search.ParsePageRequest(query)
	requester := h.Requester.Resolve(ctx, r)
	privileged := policy.IsTrustedOrAdmin(requester)

	filter := repositories.LibraryFilter{
		Query:      query.Get("q"),
		OwnerID:    search.IntFilter(query, "owner_id"),
		Visibility: query.Get("visibility"),
		Limit:      page.PerPage,
		Offset:     page.Offset(),
	}
	if !privileged {
		filter.RestrictVisible = true
		if requester != nil {
			filter.ViewerID = requester.ID
		}
	}

	items, err := h.Libraries.Search(ctx, filter)
	if err != nil {
		failInternal(w, r, "search libraries", err)
		return
	}
	visible := search.Filter(items, func(lib models.Library) bool {
		return policy.CanViewLibrary(requester, lib)
	})

	var total int
	if privileged {
		total, err = h.Libraries.Count(ctx, filter)
		if err != nil {
			failInternal(w, r, "count libraries", err)
			return
		}
	} else {
		full := filter
		full.Limit = 0
		full.Offset = 0
		all, err := h.Libraries.Search(ctx, full)
		if err != nil {
			failInternal(w, r, "count libraries", err)
			return
		}
		total = search.CountVisible(all, func(lib models.Library) bool {
			return policy.CanViewLibrary(requester, lib)
		})
	}

	views := make([]libraryView, 0, len(visible))
	for _, lib := range visible {
		views = append(views, newLibraryView(lib))
	}
	respondJSON(ctx, w, http.StatusOK, search.NewResult(views, page, total))
}

// SearchGenres handles GET /api/search/genres.
func (h SearchHandler) SearchGenres(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	page := search.ParsePageRequest(query)

	filter := repositories.TaxonomyFilter{
		Query:  query.Get("q"),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	}

	genres, err := h.Genres.Search(ctx, filter)
	if err != nil {
		failInternal(w, r, "search genres", err)
		return
	}
	total, err := h.Genres.Count(ctx, filter)
	if err != nil {
		failInternal(w, r, "count genres", err)
		return
	}

	views := make([]genreView, 0, len(genres))
	for _, genre := range genres {
		views = append(views, newGenreView(genre))
	}
	respondJSON(ctx, w, http.StatusOK, search.NewResult(views, page, total))
}

// SearchFranchises handles GET /api/search/franchises.
func (h SearchHandler) SearchFranchises(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	page := search.ParsePageRequest(query)

	filter := repositories.TaxonomyFilter{
		Query:  query.Get("q"),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	}

	franchises, err := h.Franchises.Search(ctx, filter)
	if err != nil {
		failInternal(w, r, "search franchises", err)
		return
	}
	total, err := h.Franchises.Count(ctx, filter)
	if err != nil {
		failInternal(w, r, "count franchises", err)
		return
	}

	views := make([]franchiseView, 0, len(franchises))
	for _, franchise := range franchises {
		views = append(views, newFranchiseView(franchise))
	}
	respondJSON(ctx, w, http.StatusOK, search.NewResult(views, page, total))
}

// SearchPersons handles GET /api/search/persons.
func (h SearchHandler) SearchPersons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	page := search.ParsePageRequest(query)

	filter := repositories.TaxonomyFilter{
		Query:  query.Get("q"),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	}

	persons, err := h.Persons.Search(ctx, filter)
	if err != nil {
		failInternal(w, r, "search persons", err)
		return
	}
	total, err := h.Persons.Count(ctx, filter)
	if err != nil {
		failInternal(w, r, "count persons", err)
		return
	}

	views := make([]personView, 0, len(persons))
	for _, person := range persons {
		views = append(views, newPersonView(person))
	}
	respondJSON(ctx, w, http.StatusOK, search.NewResult(views, page, total))
}

// Stats handles GET /api/search/stats: catalog-wide counts.
func (h SearchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, apierror.MethodNotAllowed())
		return
	}

	ctx := r.Context()

	mediaTotal, err := h.Media.Count(ctx, repositories.MediaFilter{})
	if err != nil {
		failInternal(w, r, "count media", err)
		return
	}
	libraryTotal, err := h.Libraries.Count(ctx, repositories.LibraryFilter{})
	if err != nil {
		failInternal(w, r, "count libraries", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"media":     mediaTotal,
		"libraries": libraryTotal,
	})
}
