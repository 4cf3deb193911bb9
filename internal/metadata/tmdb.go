// Package metadata enriches the catalog from The Movie Database. The
// client proxies multi-search and maps results to candidate media
// fields; it is optional and disabled when no API key is configured.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("metadata provider disabled")

const imageBaseURL = "https://image.tmdb.org/t/p/w500"

// Candidate is one external match mapped to the fields a media record
// can be pre-filled from.
type Candidate struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	ReleaseYear *int   `json:"release_year"`
	Synopsis    string `json:"synopsis"`
	PosterURL   string `json:"poster_url"`
}

// TMDBClient queries The Movie Database HTTP API.
type TMDBClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewTMDBClient constructs a client. An empty API key yields a disabled
// client whose Search always returns ErrDisabled.
func NewTMDBClient(apiKey, baseURL string) *TMDBClient {
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	return &TMDBClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	MediaType    string `json:"media_type"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
	PosterPath   string `json:"poster_path"`
}

// Search proxies TMDB multi-search and maps film and series results to
// candidates. Person results are dropped.
func (c *TMDBClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	if c.apiKey == "" {
		return nil, ErrDisabled
	}

	u, err := url.Parse(c.baseURL + "/search/multi")
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := u.Query()
	params.Set("api_key", c.apiKey)
	params.Set("query", query)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create tmdb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb request failed with status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tmdb response: %w", err)
	}

	candidates := make([]Candidate, 0, len(payload.Results))
	for _, result := range payload.Results {
		candidate, ok := mapResult(result)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func mapResult(result searchResult) (Candidate, bool) {
	var candidate Candidate

	switch result.MediaType {
	case "movie":
		candidate.Type = "film"
		candidate.Title = result.Title
		candidate.ReleaseYear = parseYear(result.ReleaseDate)
	case "tv":
		candidate.Type = "serie"
		candidate.Title = result.Name
		candidate.ReleaseYear = parseYear(result.FirstAirDate)
	default:
		return Candidate{}, false
	}

	candidate.Synopsis = result.Overview
	if result.PosterPath != "" {
		candidate.PosterURL = imageBaseURL + result.PosterPath
	}
	return candidate, true
}

func parseYear(date string) *int {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}
	year := t.Year()
	return &year
}
