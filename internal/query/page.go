package query

import "encoding/json"

// Page is one page of matched entities plus pagination metadata.
// PreviousPage and NextPage are 0 when there is no such page; page
// numbers are 1-based.
type Page struct {
	Items        []json.RawMessage `json:"items"`
	Page         int               `json:"page"`
	PerPage      int               `json:"per_page"`
	TotalPages   int               `json:"total_pages"`
	TotalCount   int64             `json:"total_count"`
	PreviousPage int               `json:"previous_page,omitempty"`
	NextPage     int               `json:"next_page,omitempty"`
}

func newPage(items []json.RawMessage, page, perPage int, total int64) *Page {
	p := &Page{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		TotalCount: total,
	}
	if perPage > 0 {
		p.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	if page > 1 {
		p.PreviousPage = page - 1
	}
	if page < p.TotalPages {
		p.NextPage = page + 1
	}
	return p
}
