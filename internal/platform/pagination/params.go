// Package pagination parses page/limit/sort query parameters shared by list endpoints.
package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is used when the client omits limit.
	DefaultLimit = 10
	// DefaultMaxLimit caps limit.
	DefaultMaxLimit = 100
)

var (
	ErrInvalidPage   = errors.New("pagination: invalid page")
	ErrInvalidLimit  = errors.New("pagination: invalid limit")
	ErrInvalidSortBy = errors.New("pagination: invalid sortBy")
	ErrInvalidOrder  = errors.New("pagination: invalid sortOrder")
)

// Params is the normalised page request.
type Params struct {
	Page   int
	Limit  int
	SortBy string
	Desc   bool
}

// Offset returns the number of items skipped before the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Options control Parse for one endpoint.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	// SortFields lists accepted sortBy values; the first one is the default.
	SortFields []string
	// DefaultDesc applies when sortOrder is omitted.
	DefaultDesc bool
}

// Parse reads page, limit, sortBy and sortOrder. Out-of-range values are rejected rather than
// clamped so clients learn about them.
func Parse(values url.Values, opts Options) (Params, error) {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}

	params := Params{Page: 1, Limit: opts.DefaultLimit, Desc: opts.DefaultDesc}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Params{}, fmt.Errorf("%w: %q must be a positive integer", ErrInvalidPage, raw)
		}
		params.Page = page
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > opts.MaxLimit {
			return Params{}, fmt.Errorf("%w: %q must be between 1 and %d", ErrInvalidLimit, raw, opts.MaxLimit)
		}
		params.Limit = limit
	}

	if len(opts.SortFields) > 0 {
		params.SortBy = opts.SortFields[0]
	}
	if raw := strings.TrimSpace(values.Get("sortBy")); raw != "" {
		if !slices.Contains(opts.SortFields, raw) {
			return Params{}, fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidSortBy, raw, strings.Join(opts.SortFields, ", "))
		}
		params.SortBy = raw
	}

	switch strings.ToLower(strings.TrimSpace(values.Get("sortOrder"))) {
	case "":
	case "asc":
		params.Desc = false
	case "desc":
		params.Desc = true
	default:
		return Params{}, fmt.Errorf("%w: %q must be asc or desc", ErrInvalidOrder, values.Get("sortOrder"))
	}

	return params, nil
}
