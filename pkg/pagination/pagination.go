// Package pagination handles zero-based page/limit query parameters.
package pagination

import (
	"net/http"
	"strconv"
)

// Defaults for catalog search paging.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a normalized zero-based page window.
type Params struct {
	Page  int
	Limit int
}

// New normalizes page and limit: a negative page becomes 0, a non-positive
// limit becomes DefaultLimit and anything above MaxLimit is clamped.
func New(page, limit int) Params {
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// FromRequest reads "page" and "limit" from the query string. Missing or
// non-numeric values fall back to the defaults before normalization.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	return New(atoiOr(q.Get("page"), 0), atoiOr(q.Get("limit"), DefaultLimit))
}

// Skip is the number of records before the page.
func (p Params) Skip() int {
	return p.Page * p.Limit
}

// HasNext reports whether records remain after this page.
func (p Params) HasNext(total int64) bool {
	return int64(p.Skip()+p.Limit) < total
}

func atoiOr(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
