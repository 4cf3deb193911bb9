package handlers

import (
	"net/http"

	"github.com/mediatheque/backend/internal/apierror"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Requester: deps.Requester, Limiter: deps.AuthLimiter}
	users := UserHandler{Users: deps.Users, Libraries: deps.Libraries, Requester: deps.Requester}
	libraries := LibraryHandler{Libraries: deps.Libraries, Media: deps.Media, Requester: deps.Requester}
	media := MediaHandler{
		Media:     deps.Media,
		Libraries: deps.Libraries,
		Genres:    deps.Genres,
		Persons:   deps.Persons,
		Covers:    deps.Covers,
		Requester: deps.Requester,
	}
	genres := GenreHandler{Genres: deps.Genres, Requester: deps.Requester}
	franchises := FranchiseHandler{Franchises: deps.Franchises, Requester: deps.Requester}
	persons := PersonHandler{Persons: deps.Persons, Requester: deps.Requester}
	searches := SearchHandler{
		Users:      deps.Users,
		Libraries:  deps.Libraries,
		Media:      deps.Media,
		Genres:     deps.Genres,
		Franchises: deps.Franchises,
		Persons:    deps.Persons,
		Requester:  deps.Requester,
	}
	meta := MetadataHandler{Provider: deps.Metadata, Requester: deps.Requester}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/api/register", auth.Register)
	mux.HandleFunc("/api/login", auth.Login)
	mux.HandleFunc("/api/me", auth.Me)

	mux.HandleFunc("/api/users", users.Collection)
	mux.HandleFunc("/api/users/{user_id}", users.Item)
	mux.HandleFunc("/api/users/{user_id}/libraries", users.OwnedLibraries)

	mux.HandleFunc("/api/libraries", libraries.Collection)
	mux.HandleFunc("/api/libraries/{library_id}", libraries.Item)
	mux.HandleFunc("/api/libraries/{library_id}/media", libraries.MediaList)

	mux.HandleFunc("/api/media", media.Collection)
	mux.HandleFunc("/api/media/random", media.Random)
	mux.HandleFunc("/api/media/{media_id}", media.Item)
	mux.HandleFunc("/api/media/{media_id}/persons", media.Cast)
	mux.HandleFunc("/api/media/{media_id}/persons/{person_id}/{role}", media.CastItem)
	mux.HandleFunc("/api/media/{media_id}/cover", media.Cover)

	mux.HandleFunc("/api/genres", genres.Collection)
	mux.HandleFunc("/api/genres/{genre_id}", genres.Item)

	mux.HandleFunc("/api/franchises", franchises.Collection)
	mux.HandleFunc("/api/franchises/{franchise_id}", franchises.Item)

	mux.HandleFunc("/api/persons", persons.Collection)
	mux.HandleFunc("/api/persons/{person_id}", persons.Item)
	mux.HandleFunc("/api/persons/{person_id}/media", persons.Filmography)

	mux.HandleFunc("/api/search/users", searches.SearchUsers)
	mux.HandleFunc("/api/search/media", searches.SearchMedia)
	mux.HandleFunc("/api/search/libraries", searches.SearchLibraries)
	mux.HandleFunc("/api/search/genres", searches.SearchGenres)
	mux.HandleFunc("/api/search/franchises", searches.SearchFranchises)
	mux.HandleFunc("/api/search/persons", searches.SearchPersons)
	mux.HandleFunc("/api/search/stats", searches.Stats)

	mux.HandleFunc("/api/metadata/search", meta.Search)

	// Unmatched paths still answer with the JSON error envelope.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, r, apierror.NotFound("route", r.URL.Path))
	})
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Libraries   LibraryStore
	Media       MediaStore
	Genres      GenreStore
	Franchises  FranchiseStore
	Persons     PersonStore
	Tokens      TokenIssuer
	Requester   RequesterResolver
	AuthLimiter RateLimiter
	Covers      CoverStore
	Metadata    MetadataProvider
}
