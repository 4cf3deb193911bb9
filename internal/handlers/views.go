package handlers

import (
	"time"

	"github.com/mediatheque/backend/internal/models"
)

// View shapes are a compatibility surface consumed by the UI; field
// names and nullability follow the published API.

type userView struct {
	ID        int     `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email"`
	Bio       string  `json:"bio"`
	Role      string  `json:"role"`
	CreatedAt string  `json:"created_at"`
}

// newUserView renders a user. The email is disclosed to admins only.
func newUserView(user models.User, includeEmail bool) userView {
	view := userView{
		ID:        user.ID,
		Username:  user.Username,
		Bio:       user.Bio,
		Role:      user.Role,
		CreatedAt: formatTime(user.CreatedAt),
	}
	if includeEmail {
		view.Email = &user.Email
	}
	return view
}

type libraryView struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     int    `json:"owner_id"`
	Visibility  string `json:"visibility"`
	CreatedAt   string `json:"created_at"`
}

func newLibraryView(lib models.Library) libraryView {
	return libraryView{
		ID:          lib.ID,
		Name:        lib.Name,
		Description: lib.Description,
		OwnerID:     lib.OwnerID,
		Visibility:  lib.Visibility,
		CreatedAt:   formatTime(lib.CreatedAt),
	}
}

type castView struct {
	PersonID      int    `json:"person_id"`
	PersonName    string `json:"person_name"`
	Role          string `json:"role"`
	CharacterName string `json:"character_name"`
}

func newCastView(entry models.CastEntry) castView {
	return castView{
		PersonID:      entry.PersonID,
		PersonName:    entry.PersonName,
		Role:          entry.Role,
		CharacterName: entry.CharacterName,
	}
}

type mediaDetailView struct {
	ID             int         `json:"id"`
	Title          string      `json:"title"`
	Type           string      `json:"type"`
	ReleaseYear    *int        `json:"release_year"`
	Duration       *int        `json:"duration"`
	Synopsis       string      `json:"synopsis"`
	CoverImageURL  string      `json:"cover_image_url"`
	TrailerURL     string      `json:"trailer_url"`
	LibraryID      int         `json:"library_id"`
	FranchiseID    *int        `json:"franchise_id"`
	FranchiseOrder *int        `json:"franchise_order"`
	OwnerID        int         `json:"owner_id"`
	OwnerName      string      `json:"owner_name"`
	Visibility     string      `json:"visibility"`
	Genres         []genreView `json:"genres"`
	Persons        []castView  `json:"persons"`
	CreatedAt      string      `json:"created_at"`
}

func newMediaDetailView(media models.Media) mediaDetailView {
	genres := make([]genreView, 0, len(media.Genres))
	for _, genre := range media.Genres {
		genres = append(genres, newGenreView(genre))
	}
	cast := make([]castView, 0, len(media.Cast))
	for _, entry := range media.Cast {
		cast = append(cast, newCastView(entry))
	}
	return mediaDetailView{
		ID:             media.ID,
		Title:          media.Title,
		Type:           media.Type,
		ReleaseYear:    media.ReleaseYear,
		Duration:       media.Duration,
		Synopsis:       media.Synopsis,
		CoverImageURL:  media.CoverImageURL,
		TrailerURL:     media.TrailerURL,
		LibraryID:      media.LibraryID,
		FranchiseID:    media.FranchiseID,
		FranchiseOrder: media.FranchiseOrder,
		OwnerID:        media.OwnerID,
		OwnerName:      media.OwnerName,
		Visibility:     media.Visibility,
		Genres:         genres,
		Persons:        cast,
		CreatedAt:      formatTime(media.CreatedAt),
	}
}

type mediaSummaryView struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	Duration      *int   `json:"duration"`
	ReleaseYear   *int   `json:"release_year"`
	Synopsis      string `json:"synopsis"`
	CoverImageURL string `json:"cover_image_url"`
	LibraryID     int    `json:"library_id"`
	Visibility    string `json:"visibility"`
	CreatedAt     string `json:"created_at"`
}

func newMediaSummaryView(media models.Media) mediaSummaryView {
	return mediaSummaryView{
		ID:            media.ID,
		Title:         media.Title,
		Type:          media.Type,
		Duration:      media.Duration,
		ReleaseYear:   media.ReleaseYear,
		Synopsis:      media.Synopsis,
		CoverImageURL: media.CoverImageURL,
		LibraryID:     media.LibraryID,
		Visibility:    media.Visibility,
		CreatedAt:     formatTime(media.CreatedAt),
	}
}

type filmographyView struct {
	mediaSummaryView
	Role          string `json:"role"`
	CharacterName string `json:"character_name"`
}

func newFilmographyView(entry models.FilmographyEntry) filmographyView {
	return filmographyView{
		mediaSummaryView: newMediaSummaryView(entry.Media),
		Role:             entry.Role,
		CharacterName:    entry.CharacterName,
	}
}

type genreView struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newGenreView(genre models.Genre) genreView {
	return genreView{ID: genre.ID, Name: genre.Name}
}

type franchiseView struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func newFranchiseView(franchise models.Franchise) franchiseView {
	return franchiseView{ID: franchise.ID, Name: franchise.Name, Description: franchise.Description}
}

type personView struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Birthdate *string `json:"birthdate"`
}

func newPersonView(person models.Person) personView {
	view := personView{ID: person.ID, Name: person.Name}
	if person.Birthdate != nil {
		date := person.Birthdate.Format("2006-01-02")
		view.Birthdate = &date
	}
	return view
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
