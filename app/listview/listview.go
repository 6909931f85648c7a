package listview

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultPageSize matches the six-row tables the portal renders.
const DefaultPageSize = 6

// Params are the list controls common to every records table: a free-text
// search, an optional status filter, and a 1-based page number.
type Params struct {
	Search string
	Status string
	Page   int
}

// FromQuery parses list parameters from a URL query. Absent or malformed
// page numbers fall back to page 1.
func FromQuery(q url.Values) Params {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return Params{
		Search: strings.TrimSpace(q.Get("search")),
		Status: strings.TrimSpace(q.Get("status")),
		Page:   page,
	}
}

// Page is the envelope returned for every list view.
type Page[T any] struct {
	Data         []T  `json:"data"`
	Page         int  `json:"page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	TotalRecords int  `json:"total_records"`
	HasNext      bool `json:"has_next"`
	HasPrev      bool `json:"has_prev"`
}

// Apply filters records by search text and status, then slices out the
// requested page. searchText returns the fields to match the search against;
// status returns the record's status value (return "" to exempt the record
// type from status filtering). Search is case-insensitive substring match on
// any field. A page past the end yields an empty data slice, not an error.
func Apply[T any](records []T, p Params, searchText func(T) []string, status func(T) string) Page[T] {
	filtered := records
	if p.Search != "" || p.Status != "" {
		needle := strings.ToLower(p.Search)
		filtered = make([]T, 0, len(records))
		for _, rec := range records {
			if p.Status != "" && status != nil {
				if s := status(rec); s != "" && !strings.EqualFold(s, p.Status) {
					continue
				}
			}
			if needle != "" && searchText != nil && !matches(searchText(rec), needle) {
				continue
			}
			filtered = append(filtered, rec)
		}
	}

	total := len(filtered)
	totalPages := (total + DefaultPageSize - 1) / DefaultPageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := (p.Page - 1) * DefaultPageSize
	end := start + DefaultPageSize
	var data []T
	switch {
	case start >= total:
		data = make([]T, 0)
	case end > total:
		data = filtered[start:total]
	default:
		data = filtered[start:end]
	}

	return Page[T]{
		Data:         data,
		Page:         p.Page,
		PageSize:     DefaultPageSize,
		TotalPages:   totalPages,
		TotalRecords: total,
		HasNext:      p.Page < totalPages,
		HasPrev:      p.Page > 1 && total > 0,
	}
}

func matches(fields []string, needle string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
