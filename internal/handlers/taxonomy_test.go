package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/models"
)

func taxonomyUsers() (models.User, models.User) {
	member := models.User{ID: 1, Username: "alice", Role: models.RoleUser}
	trusted := models.User{ID: 2, Username: "trusty", Role: models.RoleTrusted}
	return member, trusted
}

func TestGenreHandlerCreateRequiresTrustedRole(t *testing.T) {
	member, trusted := taxonomyUsers()
	genres := newFakeGenreStore()

	handler := GenreHandler{Genres: genres, Requester: asUser(member)}
	req := jsonRequest(t, http.MethodPost, "/api/genres", map[string]any{"name": "Thriller"}, nil)
	rec := httptest.NewRecorder()
	handler.Collection(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}

	handler.Requester = asUser(trusted)
	req = jsonRequest(t, http.MethodPost, "/api/genres", map[string]any{"name": "Thriller"}, nil)
	rec = httptest.NewRecorder()
	handler.Collection(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}
}

func TestGenreHandlerDuplicateName(t *testing.T) {
	_, trusted := taxonomyUsers()
	genres := newFakeGenreStore()
	genres.add(models.Genre{Name: "Thriller"})

	handler := GenreHandler{Genres: genres, Requester: asUser(trusted)}
	req := jsonRequest(t, http.MethodPost, "/api/genres", map[string]any{"name": "Thriller"}, nil)
	rec := httptest.NewRecorder()
	handler.Collection(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
	if code := decodeEnvelopeCode(t, rec); code != apierror.CodeAlreadyExists {
		t.Fatalf("expected code %s got %s", apierror.CodeAlreadyExists, code)
	}
}

func TestGenreHandlerRenameConflict(t *testing.T) {
	_, trusted := taxonomyUsers()
	genres := newFakeGenreStore()
	genres.add(models.Genre{Name: "Thriller"})
	genres.add(models.Genre{Name: "Drama"})

	handler := GenreHandler{Genres: genres, Requester: asUser(trusted)}
	req := jsonRequest(t, http.MethodPatch, "/api/genres/2", map[string]any{"name": "Thriller"}, map[string]string{"genre_id": "2"})
	rec := httptest.NewRecorder()
	handler.Item(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestGenreHandlerGetIsOpen(t *testing.T) {
	genres := newFakeGenreStore()
	genres.add(models.Genre{Name: "Thriller"})

	handler := GenreHandler{Genres: genres, Requester: anonymous()}
	req := jsonRequest(t, http.MethodGet, "/api/genres/1", nil, map[string]string{"genre_id": "1"})
	rec := httptest.NewRecorder()
	handler.Item(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	var view genreView
	decodeBody(t, rec, &view)
	if view.Name != "Thriller" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestFranchiseHandlerLifecycle(t *testing.T) {
	_, trusted := taxonomyUsers()
	franchises := newFakeFranchiseStore()

	handler := FranchiseHandler{Franchises: franchises, Requester: asUser(trusted)}

	req := jsonRequest(t, http.MethodPost, "/api/franchises", map[string]any{
		"name":        "Alien",
		"description": "Xenomorph saga",
	}, nil)
	rec := httptest.NewRecorder()
	handler.Collection(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	req = jsonRequest(t, http.MethodPatch, "/api/franchises/1", map[string]any{
		"description": "The xenomorph films",
	}, map[string]string{"franchise_id": "1"})
	rec = httptest.NewRecorder()
	handler.Item(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	updated, _ := franchises.FindByID(req.Context(), 1)
	if updated.Description != "The xenomorph films" {
		t.Fatalf("expected description update, got %q", updated.Description)
	}

	req = jsonRequest(t, http.MethodDelete, "/api/franchises/1", nil, map[string]string{"franchise_id": "1"})
	rec = httptest.NewRecorder()
	handler.Item(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if _, err := franchises.FindByID(req.Context(), 1); err == nil {
		t.Fatal("expected franchise deleted")
	}
}

func TestPersonHandlerCreateParsesBirthdate(t *testing.T) {
	_, trusted := taxonomyUsers()
	persons := newFakePersonStore()

	handler := PersonHandler{Persons: persons, Requester: asUser(trusted)}
	req := jsonRequest(t, http.MethodPost, "/api/persons", map[string]any{
		"name":      "Val Kilmer",
		"birthdate": "1959-12-31",
	}, nil)
	rec := httptest.NewRecorder()
	handler.Collection(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}
	created, _ := persons.FindByID(req.Context(), 1)
	if created.Birthdate == nil || created.Birthdate.Format("2006-01-02") != "1959-12-31" {
		t.Fatalf("expected parsed birthdate, got %v", created.Birthdate)
	}

	// A malformed date conflicts rather than being silently dropped.
	req = jsonRequest(t, http.MethodPost, "/api/persons", map[string]any{
		"name":      "Nobody",
		"birthdate": "31/12/1959",
	}, nil)
	rec = httptest.NewRecorder()
	handler.Collection(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestPersonHandlerFilmographyFiltersByVisibility(t *testing.T) {
	persons := newFakePersonStore()
	actor := persons.add(models.Person{Name: "Val Kilmer"})
	persons.filmography[actor.ID] = []models.FilmographyEntry{
		{
			Media: models.Media{ID: 1, Title: "Heat", Type: models.MediaTypeFilm, OwnerID: 9, Visibility: models.VisibilityPublic},
			Role:  "actor", CharacterName: "Chris Shiherlis",
		},
		{
			Media: models.Media{ID: 2, Title: "Hidden cut", Type: models.MediaTypeFilm, OwnerID: 9, Visibility: models.VisibilityPrivate},
			Role:  "actor",
		},
	}

	handler := PersonHandler{Persons: persons, Requester: anonymous()}
	req := jsonRequest(t, http.MethodGet, "/api/persons/1/media", nil, map[string]string{"person_id": "1"})
	rec := httptest.NewRecorder()
	handler.Filmography(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	var views []filmographyView
	decodeBody(t, rec, &views)
	if len(views) != 1 || views[0].Title != "Heat" || views[0].Role != "actor" {
		t.Fatalf("expected only the public credit, got %+v", views)
	}
}

func TestPersonHandlerFilmographyUnknownPerson(t *testing.T) {
	handler := PersonHandler{Persons: newFakePersonStore(), Requester: anonymous()}
	req := jsonRequest(t, http.MethodGet, "/api/persons/7/media", nil, map[string]string{"person_id": "7"})
	rec := httptest.NewRecorder()
	handler.Filmography(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}
