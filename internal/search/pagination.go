// Package search implements the shared listing engine: query-parameter
// parsing, the uniform page envelope, and the in-memory visibility
// post-filter used by media and library listings.
package search

import (
	"net/url"
	"strconv"
)

const (
	// DefaultPerPage applies when per_page is absent or out of range.
	DefaultPerPage = 20
	// MaxPerPage caps the page size a caller may request.
	MaxPerPage = 100
)

// PageRequest carries validated pagination parameters.
type PageRequest struct {
	Page    int
	PerPage int
}

// Offset converts the page number to a store-level offset.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// ParsePageRequest reads page and per_page from query parameters,
// clamping page to >= 1 and resetting per_page to the default when it
// falls outside 1..100. Non-integer values behave as absent.
func ParsePageRequest(query url.Values) PageRequest {
	page := intParam(query, "page", 1)
	perPage := intParam(query, "per_page", DefaultPerPage)

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}

	return PageRequest{Page: page, PerPage: perPage}
}

// IntFilter reads an equality filter from query parameters. Absent or
// non-integer values yield 0, meaning "filter absent".
func IntFilter(query url.Values, key string) int {
	return intParam(query, key, 0)
}

func intParam(query url.Values, key string, fallback int) int {
	raw := query.Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// Meta is the pagination block of the page envelope.
type Meta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// Result is the uniform page envelope shared by every searchable
// resource type.
type Result[T any] struct {
	Data       []T  `json:"data"`
	Pagination Meta `json:"pagination"`
}

// NewResult assembles the envelope. Total is the true count of matching
// (and, for post-filtered listings, visible) items across all pages, not
// the length of the current page.
func NewResult[T any](items []T, req PageRequest, total int) Result[T] {
	if items == nil {
		items = []T{}
	}

	pages := 1
	if req.PerPage > 0 {
		pages = (total + req.PerPage - 1) / req.PerPage
	}

	return Result[T]{
		Data: items,
		Pagination: Meta{
			Page:    req.Page,
			PerPage: req.PerPage,
			Total:   total,
			Pages:   pages,
		},
	}
}

// Filter returns the items passing the visibility check, preserving
// order. Used to drop non-viewable rows from a store-fetched page; the
// resulting page may be shorter than per_page, which is accepted rather
// than back-filled.
func Filter[T any](items []T, visible func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if visible(item) {
			out = append(out, item)
		}
	}
	return out
}

// CountVisible counts the items passing the visibility check. Run over
// the full unpaginated matching set to compute the true total for
// non-privileged requesters.
func CountVisible[T any](items []T, visible func(T) bool) int {
	count := 0
	for _, item := range items {
		if visible(item) {
			count++
		}
	}
	return count
}
