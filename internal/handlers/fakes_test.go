package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/repositories"
)

// In-memory stores backing the handler tests. They mirror the sentinel
// behavior of the Postgres repositories: ErrNotFound for missing rows,
// ErrConflict for uniqueness violations.

type fakeUserStore struct {
	users  map[int]models.User
	nextID int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int]models.User), nextID: 1}
}

func (s *fakeUserStore) add(user models.User) models.User {
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = user
	return user
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) (int, error) {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return 0, repositories.ErrConflict
		}
	}
	user = s.add(user)
	return user.ID, nil
}

func (s *fakeUserStore) FindByID(_ context.Context, id int) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range s.sorted() {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) Update(_ context.Context, user models.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	for _, existing := range s.users {
		if existing.ID != user.ID && existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id int) error {
	if _, ok := s.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) Search(_ context.Context, f repositories.UserFilter) ([]models.User, error) {
	matched := make([]models.User, 0)
	for _, user := range s.sorted() {
		if f.Query != "" && !strings.Contains(strings.ToLower(user.Username), strings.ToLower(f.Query)) {
			continue
		}
		if f.Role != "" && user.Role != f.Role {
			continue
		}
		matched = append(matched, user)
	}
	return pageOf(matched, f.Limit, f.Offset), nil
}

func (s *fakeUserStore) Count(ctx context.Context, f repositories.UserFilter) (int, error) {
	full := f
	full.Limit = 0
	full.Offset = 0
	matched, _ := s.Search(ctx, full)
	return len(matched), nil
}

func (s *fakeUserStore) sorted() []models.User {
	ids := make([]int, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.users[id])
	}
	return out
}

type fakeLibraryStore struct {
	libraries map[int]models.Library
	nextID    int
}

func newFakeLibraryStore() *fakeLibraryStore {
	return &fakeLibraryStore{libraries: make(map[int]models.Library), nextID: 1}
}

func (s *fakeLibraryStore) add(lib models.Library) models.Library {
	lib.ID = s.nextID
	s.nextID++
	s.libraries[lib.ID] = lib
	return lib
}

func (s *fakeLibraryStore) Create(_ context.Context, lib models.Library) (int, error) {
	lib = s.add(lib)
	return lib.ID, nil
}

func (s *fakeLibraryStore) FindByID(_ context.Context, id int) (models.Library, error) {
	lib, ok := s.libraries[id]
	if !ok {
		return models.Library{}, repositories.ErrNotFound
	}
	return lib, nil
}

func (s *fakeLibraryStore) ListByOwner(_ context.Context, ownerID int) ([]models.Library, error) {
	out := make([]models.Library, 0)
	for _, lib := range s.sorted() {
		if lib.OwnerID == ownerID {
			out = append(out, lib)
		}
	}
	return out, nil
}

func (s *fakeLibraryStore) Update(_ context.Context, lib models.Library) error {
	if _, ok := s.libraries[lib.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.libraries[lib.ID] = lib
	return nil
}

func (s *fakeLibraryStore) Delete(_ context.Context, id int) error {
	if _, ok := s.libraries[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.libraries, id)
	return nil
}

func (s *fakeLibraryStore) Search(_ context.Context, f repositories.LibraryFilter) ([]models.Library, error) {
	matched := make([]models.Library, 0)
	for _, lib := range s.sorted() {
		if f.Query != "" && !strings.Contains(strings.ToLower(lib.Name), strings.ToLower(f.Query)) {
			continue
		}
		if f.OwnerID != 0 && lib.OwnerID != f.OwnerID {
			continue
		}
		if f.Visibility != "" && lib.Visibility != f.Visibility {
			continue
		}
		if f.RestrictVisible && lib.Visibility != models.VisibilityPublic && lib.OwnerID != f.ViewerID {
			continue
		}
		matched = append(matched, lib)
	}
	return pageOf(matched, f.Limit, f.Offset), nil
}

func (s *fakeLibraryStore) Count(ctx context.Context, f repositories.LibraryFilter) (int, error) {
	full := f
	full.Limit = 0
	full.Offset = 0
	matched, _ := s.Search(ctx, full)
	return len(matched), nil
}

func (s *fakeLibraryStore) sorted() []models.Library {
	ids := make([]int, 0, len(s.libraries))
	for id := range s.libraries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]models.Library, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.libraries[id])
	}
	return out
}

type fakeMediaStore struct {
	media  map[int]models.Media
	nextID int
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{media: make(map[int]models.Media), nextID: 1}
}

func (s *fakeMediaStore) add(media models.Media) models.Media {
	media.ID = s.nextID
	s.nextID++
	s.media[media.ID] = media
	return media
}

func (s *fakeMediaStore) Create(_ context.Context, media models.Media, genreIDs []int, cast []models.CastEntry) (int, error) {
	for _, id := range genreIDs {
		media.Genres = append(media.Genres, models.Genre{ID: id})
	}
	media.Cast = cast
	media = s.add(media)
	return media.ID, nil
}

func (s *fakeMediaStore) FindByID(_ context.Context, id int) (models.Media, error) {
	media, ok := s.media[id]
	if !ok {
		return models.Media{}, repositories.ErrNotFound
	}
	return media, nil
}

func (s *fakeMediaStore) Update(_ context.Context, media models.Media, genreIDs []int, cast []models.CastEntry, replaceGenres, replaceCast bool) error {
	existing, ok := s.media[media.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	media.Genres = existing.Genres
	media.Cast = existing.Cast
	if replaceGenres {
		media.Genres = nil
		for _, id := range genreIDs {
			media.Genres = append(media.Genres, models.Genre{ID: id})
		}
	}
	if replaceCast {
		seen := make(map[string]struct{}, len(cast))
		for _, entry := range cast {
			key := fmt.Sprintf("%d|%s", entry.PersonID, entry.Role)
			if _, dup := seen[key]; dup {
				return repositories.ErrConflict
			}
			seen[key] = struct{}{}
		}
		media.Cast = cast
	}
	s.media[media.ID] = media
	return nil
}

func (s *fakeMediaStore) Delete(_ context.Context, id int) error {
	if _, ok := s.media[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.media, id)
	return nil
}

func (s *fakeMediaStore) ListByLibrary(_ context.Context, libraryID int) ([]models.Media, error) {
	out := make([]models.Media, 0)
	for _, media := range s.sorted() {
		if media.LibraryID == libraryID {
			out = append(out, media)
		}
	}
	return out, nil
}

func (s *fakeMediaStore) ListByOwner(_ context.Context, ownerID int) ([]models.Media, error) {
	out := make([]models.Media, 0)
	for _, media := range s.sorted() {
		if media.OwnerID == ownerID {
			out = append(out, media)
		}
	}
	return out, nil
}

func (s *fakeMediaStore) Search(_ context.Context, f repositories.MediaFilter) ([]models.Media, error) {
	matched := make([]models.Media, 0)
	for _, media := range s.sorted() {
		if f.Query != "" && !strings.Contains(strings.ToLower(media.Title), strings.ToLower(f.Query)) {
			continue
		}
		if f.LibraryID != 0 && media.LibraryID != f.LibraryID {
			continue
		}
		if f.Visibility != "" && media.Visibility != f.Visibility {
			continue
		}
		if f.GenreID != 0 && !hasGenre(media, f.GenreID) {
			continue
		}
		if f.PersonID != 0 && !hasPerson(media, f.PersonID) {
			continue
		}
		if f.FranchiseID != 0 && (media.FranchiseID == nil || *media.FranchiseID != f.FranchiseID) {
			continue
		}
		matched = append(matched, media)
	}
	return pageOf(matched, f.Limit, f.Offset), nil
}

func (s *fakeMediaStore) Count(ctx context.Context, f repositories.MediaFilter) (int, error) {
	full := f
	full.Limit = 0
	full.Offset = 0
	matched, _ := s.Search(ctx, full)
	return len(matched), nil
}

func (s *fakeMediaStore) ListCast(_ context.Context, mediaID int) ([]models.CastEntry, error) {
	media, ok := s.media[mediaID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return media.Cast, nil
}

func (s *fakeMediaStore) AddCastEntry(_ context.Context, entry models.CastEntry) error {
	media, ok := s.media[entry.MediaID]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, existing := range media.Cast {
		if existing.PersonID == entry.PersonID && existing.Role == entry.Role {
			return repositories.ErrConflict
		}
	}
	media.Cast = append(media.Cast, entry)
	s.media[entry.MediaID] = media
	return nil
}

func (s *fakeMediaStore) RemoveCastEntry(_ context.Context, mediaID, personID int, role string) error {
	media, ok := s.media[mediaID]
	if !ok {
		return repositories.ErrNotFound
	}
	for i, entry := range media.Cast {
		if entry.PersonID == personID && entry.Role == role {
			media.Cast = append(media.Cast[:i], media.Cast[i+1:]...)
			s.media[mediaID] = media
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *fakeMediaStore) SetCoverImage(_ context.Context, mediaID int, url string) error {
	media, ok := s.media[mediaID]
	if !ok {
		return repositories.ErrNotFound
	}
	media.CoverImageURL = url
	s.media[mediaID] = media
	return nil
}

func (s *fakeMediaStore) sorted() []models.Media {
	ids := make([]int, 0, len(s.media))
	for id := range s.media {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]models.Media, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.media[id])
	}
	return out
}

func hasGenre(media models.Media, genreID int) bool {
	for _, genre := range media.Genres {
		if genre.ID == genreID {
			return true
		}
	}
	return false
}

func hasPerson(media models.Media, personID int) bool {
	for _, entry := range media.Cast {
		if entry.PersonID == personID {
			return true
		}
	}
	return false
}

type fakeGenreStore struct {
	genres map[int]models.Genre
	nextID int
}

func newFakeGenreStore() *fakeGenreStore {
	return &fakeGenreStore{genres: make(map[int]models.Genre), nextID: 1}
}

func (s *fakeGenreStore) add(genre models.Genre) models.Genre {
	genre.ID = s.nextID
	s.nextID++
	s.genres[genre.ID] = genre
	return genre
}

func (s *fakeGenreStore) Create(_ context.Context, genre models.Genre) (int, error) {
	for _, existing := range s.genres {
		if existing.Name == genre.Name {
			return 0, repositories.ErrConflict
		}
	}
	genre = s.add(genre)
	return genre.ID, nil
}

func (s *fakeGenreStore) FindByID(_ context.Context, id int) (models.Genre, error) {
	genre, ok := s.genres[id]
	if !ok {
		return models.Genre{}, repositories.ErrNotFound
	}
	return genre, nil
}

func (s *fakeGenreStore) FindByIDs(_ context.Context, ids []int) ([]models.Genre, error) {
	out := make([]models.Genre, 0, len(ids))
	for _, id := range ids {
		if genre, ok := s.genres[id]; ok {
			out = append(out, genre)
		}
	}
	return out, nil
}

func (s *fakeGenreStore) Update(_ context.Context, genre models.Genre) error {
	if _, ok := s.genres[genre.ID]; !ok {
		return repositories.ErrNotFound
	}
	for _, existing := range s.genres {
		if existing.ID != genre.ID && existing.Name == genre.Name {
			return repositories.ErrConflict
		}
	}
	s.genres[genre.ID] = genre
	return nil
}

func (s *fakeGenreStore) Delete(_ context.Context, id int) error {
	if _, ok := s.genres[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.genres, id)
	return nil
}

func (s *fakeGenreStore) Search(_ context.Context, f repositories.TaxonomyFilter) ([]models.Genre, error) {
	matched := make([]models.Genre, 0)
	ids := make([]int, 0, len(s.genres))
	for id := range s.genres {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		genre := s.genres[id]
		if f.Query != "" && !strings.Contains(strings.ToLower(genre.Name), strings.ToLower(f.Query)) {
			continue
		}
		matched = append(matched, genre)
	}
	return pageOf(matched, f.Limit, f.Offset), nil
}

func (s *fakeGenreStore) Count(ctx context.Context, f repositories.TaxonomyFilter) (int, error) {
	full := f
	full.Limit = 0
	full.Offset = 0
	matched, _ := s.Search(ctx, full)
	return len(matched), nil
}

type fakeFranchiseStore struct {
	franchises map[int]models.Franchise
	nextID     int
}

func newFakeFranchiseStore() *fakeFranchiseStore {
	return &fakeFranchiseStore{franchises: make(map[int]models.Franchise), nextID: 1}
}

func (s *fakeFranchiseStore) Create(_ context.Context, franchise models.Franchise) (int, error) {
	franchise.ID = s.nextID
	s.nextID++
	s.franchises[franchise.ID] = franchise
	return franchise.ID, nil
}

func (s *fakeFranchiseStore) FindByID(_ context.Context, id int) (models.Franchise, error) {
	franchise, ok := s.franchises[id]
	if !ok {
		return models.Franchise{}, repositories.ErrNotFound
	}
	return franchise, nil
}

func (s *fakeFranchiseStore) Update(_ context.Context, franchise models.Franchise) error {
	if _, ok := s.franchises[franchise.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.franchises[franchise.ID] = franchise
	return nil
}

func (s *fakeFranchiseStore) Delete(_ context.Context, id int) error {
	if _, ok := s.franchises[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.franchises, id)
	return nil
}

func (s *fakeFranchiseStore) Search(_ context.Context, f repositories.TaxonomyFilter) ([]models.Franchise, error) {
	matched := make([]models.Franchise, 0)
	ids := make([]int, 0, len(s.franchises))
	for id := range s.franchises {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		franchise := s.franchises[id]
		if f.Query != "" && !strings.Contains(strings.ToLower(franchise.Name), strings.ToLower(f.Query)) {
			continue
		}
		matched = append(matched, franchise)
	}
	return pageOf(matched, f.Limit, f.Offset), nil
}

func (s *fakeFranchiseStore) Count(ctx context.Context, f repositories.TaxonomyFilter) (int, error) {
	full := f
	full.Limit = 0
	full.Offset = 0
	matched, _ := s.Search(ctx, full)
	return len(matched), nil
}

type fakePersonStore struct {
	persons     map[int]models.Person
	filmography map[int][]models.FilmographyEntry
	nextID      int
}

func newFakePersonStore() *fakePersonStore {
	return &fakePersonStore{
		persons:     make(map[int]models.Person),
		filmography: make(map[int][]models.FilmographyEntry),
		nextID:      1,
	}
}

func (s *fakePersonStore) add(person models.Person) models.Person {
	person.ID = s.nextID
	s.nextID++
	s.persons[person.ID] = person
	return person
}

func (s *fakePersonStore) Create(_ context.Context, person models.Person) (int, error) {
	person = s.add(person)
	return person.ID, nil
}

func (s *fakePersonStore) FindByID(_ context.Context, id int) (models.Person, error) {
	person, ok := s.persons[id]
	if !ok {
		return models.Person{}, repositories.ErrNotFound
	}
	return person, nil
}

func (s *fakePersonStore) Update(_ context.Context, person models.Person) error {
	if _, ok := s.persons[person.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.persons[person.ID] = person
	return nil
}

func (s *fakePersonStore) Delete(_ context.Context, id int) error {
	if _, ok := s.persons[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.persons, id)
	return nil
}

func (s *fakePersonStore) Search(_ context.Context, f repositories.TaxonomyFilter) ([]models.Person, error) {
	matched := make([]models.Person, 0)
	ids := make([]int, 0, len(s.persons))
	for id := range s.persons {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		person := s.persons[id]
		if f.Query != "" && !strings.Contains(strings.ToLower(person.Name), strings.ToLower(f.Query)) {
			continue
		}
		matched = append(matched, person)
	}
	return pageOf(matched, f.Limit, f.Offset), nil
}

func (s *fakePersonStore) Count(ctx context.Context, f repositories.TaxonomyFilter) (int, error) {
	full := f
	full.Limit = 0
	full.Offset = 0
	matched, _ := s.Search(ctx, full)
	return len(matched), nil
}

func (s *fakePersonStore) Filmography(_ context.Context, personID int) ([]models.FilmographyEntry, error) {
	return s.filmography[personID], nil
}

func pageOf[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// staticRequester resolves every request to a fixed user, nil meaning
// anonymous.
type staticRequester struct {
	user *models.User
}

func (s staticRequester) Resolve(context.Context, *http.Request) *models.User {
	return s.user
}

func asUser(user models.User) staticRequester {
	return staticRequester{user: &user}
}

func anonymous() staticRequester {
	return staticRequester{}
}

type fakeTokenIssuer struct{}

func (fakeTokenIssuer) Issue(user models.User) (string, error) {
	return fmt.Sprintf("token-%d", user.ID), nil
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string) bool { return true }

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

// jsonRequest builds a request with an encoded body and any path values
// the route would have bound.
func jsonRequest(t *testing.T, method, target string, payload any, pathValues map[string]string) *http.Request {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	for name, value := range pathValues {
		req.SetPathValue(name, value)
	}
	return req
}

// decodeEnvelopeCode extracts the error code from a rejected response.
func decodeEnvelopeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Error struct {
			Code string `json:"code"`
			Path string `json:"path"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if resp.Error.Path == "" {
		t.Fatal("error envelope missing path")
	}
	return resp.Error.Code
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}
