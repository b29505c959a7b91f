package pagination

import (
	"net/url"
	"strconv"
)

// Link relation names produced by BuildLinks.
const (
	LinkSelf  = "self"
	LinkFirst = "first"
	LinkLast  = "last"
	LinkNext  = "next"
	LinkPrev  = "prev"
)

// BuildLinks derives navigation references from a page state.
// self, first and last are always present; next and prev only when the
// state has a next or previous page. Each value is path followed by the
// base query with its page parameter replaced. A state carrying a
// continuation token links next through the scroll parameter instead.
//
// Scroll states have no page numbering: self, first and last are
// page=1 references that do not replay the cursor in use, and next is
// the only link carrying a token.
func BuildLinks(path string, base url.Values, state PageState) map[string]string {
	last := state.TotalPages
	if last < 1 {
		last = 1
	}

	links := map[string]string{
		LinkSelf:  pageLink(path, base, state.Page),
		LinkFirst: pageLink(path, base, 1),
		LinkLast:  pageLink(path, base, last),
	}

	if state.HasNext && state.NextPage != nil {
		if state.ContinuationToken != "" {
			links[LinkNext] = scrollLink(path, base, state.ContinuationToken)
		} else {
			links[LinkNext] = pageLink(path, base, *state.NextPage)
		}
	}
	if state.HasPrevious && state.PreviousPage != nil {
		links[LinkPrev] = pageLink(path, base, *state.PreviousPage)
	}

	return links
}

func pageLink(path string, base url.Values, page int) string {
	q := cloneValues(base)
	q.Set(QueryPage, strconv.Itoa(page))
	return path + "?" + q.Encode()
}

func scrollLink(path string, base url.Values, token string) string {
	q := cloneValues(base)
	q.Del(QueryPage)
	q.Set(QueryScroll, token)
	return path + "?" + q.Encode()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for key, vals := range v {
		out[key] = append([]string(nil), vals...)
	}
	return out
}
