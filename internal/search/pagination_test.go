package search

import (
	"net/url"
	"testing"
)

func TestParsePageRequestDefaults(t *testing.T) {
	req := ParsePageRequest(url.Values{})
	if req.Page != 1 || req.PerPage != DefaultPerPage {
		t.Fatalf("expected defaults 1/%d got %d/%d", DefaultPerPage, req.Page, req.PerPage)
	}
}

func TestParsePageRequestClamping(t *testing.T) {
	cases := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"page zero", "page=0", 1, 20},
		{"negative page", "page=-3", 1, 20},
		{"per_page too large", "per_page=150", 1, 20},
		{"per_page zero", "per_page=0", 1, 20},
		{"per_page max", "per_page=100", 1, 100},
		{"valid", "page=3&per_page=10", 3, 10},
		{"non-integer treated as absent", "page=abc&per_page=xyz", 1, 20},
	}

	for _, tc := range cases {
		values, err := url.ParseQuery(tc.query)
		if err != nil {
			t.Fatalf("%s: parse query: %v", tc.name, err)
		}
		req := ParsePageRequest(values)
		if req.Page != tc.wantPage || req.PerPage != tc.wantPerPage {
			t.Errorf("%s: got %d/%d want %d/%d", tc.name, req.Page, req.PerPage, tc.wantPage, tc.wantPerPage)
		}
	}
}

func TestPageRequestOffset(t *testing.T) {
	req := PageRequest{Page: 3, PerPage: 10}
	if req.Offset() != 20 {
		t.Fatalf("expected offset 20 got %d", req.Offset())
	}
}

func TestIntFilter(t *testing.T) {
	values, _ := url.ParseQuery("genre_id=5&person_id=bogus")
	if got := IntFilter(values, "genre_id"); got != 5 {
		t.Errorf("expected 5 got %d", got)
	}
	if got := IntFilter(values, "person_id"); got != 0 {
		t.Errorf("bad coercion on read path should act absent, got %d", got)
	}
	if got := IntFilter(values, "library_id"); got != 0 {
		t.Errorf("absent filter should be 0, got %d", got)
	}
}

func TestNewResultPages(t *testing.T) {
	cases := []struct {
		total   int
		perPage int
		want    int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{50, 20, 3},
	}

	for _, tc := range cases {
		res := NewResult([]int{}, PageRequest{Page: 1, PerPage: tc.perPage}, tc.total)
		if res.Pagination.Pages != tc.want {
			t.Errorf("total=%d per_page=%d: got %d pages want %d", tc.total, tc.perPage, res.Pagination.Pages, tc.want)
		}
	}
}

func TestNewResultEmptyDataNotNull(t *testing.T) {
	res := NewResult[int](nil, PageRequest{Page: 9, PerPage: 20}, 5)
	if res.Data == nil {
		t.Fatal("data must serialize as [] rather than null")
	}
	if res.Pagination.Total != 5 {
		t.Fatalf("total must survive empty pages, got %d", res.Pagination.Total)
	}
}

func TestFilterAndCountVisible(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	even := func(n int) bool { return n%2 == 0 }

	filtered := Filter(items, even)
	if len(filtered) != 3 {
		t.Fatalf("expected 3 visible items got %d", len(filtered))
	}
	if CountVisible(items, even) != 3 {
		t.Fatalf("expected visible count 3 got %d", CountVisible(items, even))
	}
}
