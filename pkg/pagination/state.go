package pagination

// PageState describes where a batch sits inside the remote collection.
// Every response produces a new PageState.
type PageState struct {
	Page         int  `json:"page"`
	Size         int  `json:"size"`
	TotalItems   int  `json:"total_items"`
	TotalPages   int  `json:"total_pages"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
	NextPage     *int `json:"next_page,omitempty"`
	PreviousPage *int `json:"previous_page,omitempty"`

	// ContinuationToken is only set in scroll mode
	ContinuationToken string `json:"continuation_token,omitempty"`
}

// NewPageState computes the state of a standard page.
// Inputs are expected to be validated: page >= 1, size >= 1, totalItems >= 0.
//
// Examples:
//   - page 1, size 10, total 25 -> 3 pages, next 2
//   - page 3, size 10, total 25 -> 3 pages, previous 2, no next
//   - page 1, size 10, total 0  -> 0 pages, no next
func NewPageState(page, size, totalItems int) PageState {
	s := PageState{
		Page:       page,
		Size:       size,
		TotalItems: totalItems,
	}
	if totalItems > 0 {
		s.TotalPages = (totalItems + size - 1) / size
	}

	s.HasNext = page < s.TotalPages
	s.HasPrevious = page > 1
	if s.HasNext {
		next := page + 1
		s.NextPage = &next
	}
	if s.HasPrevious {
		prev := page - 1
		s.PreviousPage = &prev
	}
	return s
}

// NewScrollState computes the state of a scroll response.
// Scroll has no page numbering: the state always reports page 1 and a
// single page (none when the collection is empty). hasNext comes from the
// response's next link, not from the token.
func NewScrollState(size, totalItems int, hasNext bool, token string) PageState {
	s := PageState{
		Page:              1,
		Size:              size,
		TotalItems:        totalItems,
		HasNext:           hasNext,
		ContinuationToken: token,
	}
	if totalItems > 0 {
		s.TotalPages = 1
	}
	if hasNext {
		next := 2
		s.NextPage = &next
	}
	return s
}
