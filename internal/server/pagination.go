package server

import (
	"net/http"
	"strconv"
	"strings"

	httpmiddleware "github.com/codinglab/eduhub/internal/http"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	msgInvalidPage = "잘못된 페이지입니다."
)

type pageParams struct {
	number int // 1-based
	size   int
}

func (p pageParams) offset() int {
	return (p.number - 1) * p.size
}

// inRange reports whether the page exists for count records. The first page
// always exists, even when it is empty.
func (p pageParams) inRange(count int) bool {
	return p.number == 1 || p.offset() < count
}

// parsePage reads page and page_size. A page that is not a number of at
// least one is a 404. An unusable page_size falls back to the default and a
// large one is capped at maxPageSize.
func parsePage(r *http.Request) (pageParams, *httpmiddleware.Problem) {
	q := r.URL.Query()
	p := pageParams{number: 1, size: defaultPageSize}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, httpmiddleware.NewProblem(http.StatusNotFound, msgInvalidPage)
		}
		p.number = n
	}

	if n, err := strconv.Atoi(q.Get("page_size")); err == nil && n > 0 {
		p.size = min(n, maxPageSize)
	}

	return p, nil
}

type page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []any   `json:"results"`
}

// newPage builds the paginated body with absolute next and previous links
// that keep the caller's other query parameters.
func (s *Server) newPage(r *http.Request, p pageParams, count int, results []any) page {
	link := func(number int) *string {
		q := r.URL.Query()
		if number == 1 {
			q.Del("page")
		} else {
			q.Set("page", strconv.Itoa(number))
		}
		u := strings.TrimRight(s.cfg.BaseURL, "/") + r.URL.Path
		if encoded := q.Encode(); encoded != "" {
			u += "?" + encoded
		}
		return &u
	}

	out := page{Count: count, Results: results}
	if out.Results == nil {
		out.Results = []any{}
	}
	if p.offset()+p.size < count {
		out.Next = link(p.number + 1)
	}
	if p.number > 1 {
		out.Previous = link(p.number - 1)
	}
	return out
}
