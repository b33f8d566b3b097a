package mirror

import (
	"strings"

	"github.com/agentworkforce/recordmirror/internal/records"
)

const DefaultPageSize = 5

type ViewState struct {
	SearchTerm  string `json:"searchTerm"`
	CurrentPage int    `json:"currentPage"`
	PageSize    int    `json:"pageSize"`
}

// Page is everything the presentation layer renders.
type Page struct {
	Rows         []records.Record `json:"rows"`
	TotalPages   int              `json:"totalPages"`
	CurrentPage  int              `json:"currentPage"`
	TotalRecords int              `json:"totalRecords"`
	SearchTerm   string           `json:"searchTerm"`
}

// Filter keeps records whose name contains term, ignoring case and
// surrounding whitespace. An empty term keeps everything, in order.
func Filter(recs []records.Record, term string) []records.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return recs
	}
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if strings.Contains(strings.ToLower(r.Name), term) {
			out = append(out, r)
		}
	}
	return out
}

func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if count <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// Clamp keeps CurrentPage within [1, max(1, totalPages)].
func Clamp(state ViewState, filteredLen int) ViewState {
	if state.PageSize <= 0 {
		state.PageSize = DefaultPageSize
	}
	last := TotalPages(filteredLen, state.PageSize)
	if last < 1 {
		last = 1
	}
	if state.CurrentPage > last {
		state.CurrentPage = last
	}
	if state.CurrentPage < 1 {
		state.CurrentPage = 1
	}
	return state
}

// Project filters, clamps and slices recs. It never mutates its input.
func Project(recs []records.Record, state ViewState) Page {
	filtered := Filter(recs, state.SearchTerm)
	state = Clamp(state, len(filtered))
	start := (state.CurrentPage - 1) * state.PageSize
	end := start + state.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}
	return Page{
		Rows:         records.CloneAll(filtered[start:end]),
		TotalPages:   TotalPages(len(filtered), state.PageSize),
		CurrentPage:  state.CurrentPage,
		TotalRecords: len(filtered),
		SearchTerm:   state.SearchTerm,
	}
}
