// Package shared holds list filter plumbing common to the masterdata packages.
package shared

import (
	"net/url"
	"strconv"
)

// ListFilters represents standard list endpoint filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool
}

// FiltersFromQuery parses list filters from URL query parameters.
func FiltersFromQuery(values url.Values) ListFilters {
	page, _ := strconv.Atoi(values.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(values.Get("limit"))
	if limit < 1 {
		limit = 20
	}

	filters := ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  values.Get("search"),
		SortBy:  values.Get("sort"),
		SortDir: values.Get("dir"),
	}
	if raw := values.Get("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filters.IsActive = &active
		}
	}
	return filters
}

// Offset gives the SQL offset for the current page.
func (f ListFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}
