package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/mediatheque/backend/internal/metadata"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/repositories"
)

// RequesterResolver turns bearer credentials into a user, nil meaning
// anonymous.
type RequesterResolver interface {
	Resolve(ctx context.Context, r *http.Request) *models.User
}

// TokenIssuer mints access tokens after a successful login or signup.
type TokenIssuer interface {
	Issue(user models.User) (string, error)
}

// UserStore captures the persistence operations required by the user and
// auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) (int, error)
	FindByID(ctx context.Context, id int) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, f repositories.UserFilter) ([]models.User, error)
	Count(ctx context.Context, f repositories.UserFilter) (int, error)
}

// LibraryStore captures persistence for library workflows.
type LibraryStore interface {
	Create(ctx context.Context, lib models.Library) (int, error)
	FindByID(ctx context.Context, id int) (models.Library, error)
	ListByOwner(ctx context.Context, ownerID int) ([]models.Library, error)
	Update(ctx context.Context, lib models.Library) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, f repositories.LibraryFilter) ([]models.Library, error)
	Count(ctx context.Context, f repositories.LibraryFilter) (int, error)
}

// MediaStore captures persistence for media and their associations.
type MediaStore interface {
	Create(ctx context.Context, media models.Media, genreIDs []int, cast []models.CastEntry) (int, error)
	FindByID(ctx context.Context, id int) (models.Media, error)
	Update(ctx context.Context, media models.Media, genreIDs []int, cast []models.CastEntry, replaceGenres, replaceCast bool) error
	Delete(ctx context.Context, id int) error
	ListByLibrary(ctx context.Context, libraryID int) ([]models.Media, error)
	ListByOwner(ctx context.Context, ownerID int) ([]models.Media, error)
	Search(ctx context.Context, f repositories.MediaFilter) ([]models.Media, error)
	Count(ctx context.Context, f repositories.MediaFilter) (int, error)
	ListCast(ctx context.Context, mediaID int) ([]models.CastEntry, error)
	AddCastEntry(ctx context.Context, entry models.CastEntry) error
	RemoveCastEntry(ctx context.Context, mediaID, personID int, role string) error
	SetCoverImage(ctx context.Context, mediaID int, url string) error
}

// GenreStore captures persistence for genres.
type GenreStore interface {
	Create(ctx context.Context, genre models.Genre) (int, error)
	FindByID(ctx context.Context, id int) (models.Genre, error)
	FindByIDs(ctx context.Context, ids []int) ([]models.Genre, error)
	Update(ctx context.Context, genre models.Genre) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, f repositories.TaxonomyFilter) ([]models.Genre, error)
	Count(ctx context.Context, f repositories.TaxonomyFilter) (int, error)
}

// FranchiseStore captures persistence for franchises.
type FranchiseStore interface {
	Create(ctx context.Context, franchise models.Franchise) (int, error)
	FindByID(ctx context.Context, id int) (models.Franchise, error)
	Update(ctx context.Context, franchise models.Franchise) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, f repositories.TaxonomyFilter) ([]models.Franchise, error)
	Count(ctx context.Context, f repositories.TaxonomyFilter) (int, error)
}

// PersonStore captures persistence for persons and their filmography.
type PersonStore interface {
	Create(ctx context.Context, person models.Person) (int, error)
	FindByID(ctx context.Context, id int) (models.Person, error)
	Update(ctx context.Context, person models.Person) error
	Delete(ctx context.Context, id int) error
	Search(ctx context.Context, f repositories.TaxonomyFilter) ([]models.Person, error)
	Count(ctx context.Context, f repositories.TaxonomyFilter) (int, error)
	Filmography(ctx context.Context, personID int) ([]models.FilmographyEntry, error)
}

// CoverStore persists uploaded cover images and returns their public URL.
type CoverStore interface {
	Store(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}

// MetadataProvider resolves external catalog candidates for a query.
type MetadataProvider interface {
	Search(ctx context.Context, query string) ([]metadata.Candidate, error)
}
