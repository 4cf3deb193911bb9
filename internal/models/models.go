package models

import "time"

// Role tiers, ordered by privilege: user < trusted < admin.
const (
	RoleUser    = "user"
	RoleTrusted = "trusted"
	RoleAdmin   = "admin"
)

// Visibility values for libraries and media.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Media types.
const (
	MediaTypeFilm  = "film"
	MediaTypeSerie = "serie"
)

// ValidRole reports whether the value is one of the three role literals.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleTrusted || role == RoleAdmin
}

// ValidVisibility reports whether the value is public or private.
func ValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// ValidMediaType reports whether the value is film or serie.
func ValidMediaType(t string) bool {
	return t == MediaTypeFilm || t == MediaTypeSerie
}

// User represents an account. Deleting a user cascades to their libraries.
type User struct {
	ID        int
	Username  string
	Email     string
	Password  string
	Bio       string
	Role      string
	CreatedAt time.Time
}

// Library is a user-owned collection of media with its own visibility.
type Library struct {
	ID          int
	OwnerID     int
	Name        string
	Description string
	Visibility  string
	CreatedAt   time.Time
}

// Media is a film or series belonging to exactly one library. Its
// effective owner is the library's owner; OwnerID and OwnerName are
// resolved through the library when the record is loaded.
type Media struct {
	ID             int
	Title          string
	Type           string
	ReleaseYear    *int
	Duration       *int
	Synopsis       string
	CoverImageURL  string
	TrailerURL     string
	LibraryID      int
	FranchiseID    *int
	FranchiseOrder *int
	Visibility     string
	CreatedAt      time.Time

	OwnerID   int
	OwnerName string

	Genres []Genre
	Cast   []CastEntry
}

// Franchise groups related media. Deleting one orphans its media.
type Franchise struct {
	ID          int
	Name        string
	Description string
}

// Genre has a globally unique name.
type Genre struct {
	ID   int
	Name string
}

// Person appears in media cast entries. Deleting one removes their cast
// rows but leaves the media intact.
type Person struct {
	ID        int
	Name      string
	Birthdate *time.Time
}

// FilmographyEntry is one cast credit of a person together with the
// media it belongs to.
type FilmographyEntry struct {
	Media         Media
	Role          string
	CharacterName string
}

// CastEntry associates a person with a media under a role. The
// (media, person, role) triple is unique; the same person may hold
// several distinct roles on the same media.
type CastEntry struct {
	MediaID       int
	PersonID      int
	PersonName    string
	Role          string
	CharacterName string
}
