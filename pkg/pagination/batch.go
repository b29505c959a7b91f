package pagination

// Metadata describes how a batch was produced.
type Metadata struct {
	Mode              Mode   `json:"mode"`
	ContinuationToken string `json:"continuation_token,omitempty"`

	// ContainerMissing is true when the response had no items container,
	// which distinguishes an unexpected shape from an empty page.
	ContainerMissing bool `json:"container_missing,omitempty"`
}

// Batch is one unit yielded by the engine: the items of one remote
// round trip plus the page state that produced them.
// The engine keeps no reference to a batch after yielding it.
type Batch[T any] struct {
	Items    []T               `json:"items"`
	State    PageState         `json:"state"`
	Links    map[string]string `json:"links"`
	Metadata Metadata          `json:"metadata"`
}

// Summary is derived from a finished sequence of batches.
type Summary struct {
	TotalItemsYielded   int     `json:"total_items_yielded"`
	PagesProcessed      int     `json:"pages_processed"`
	AverageItemsPerPage float64 `json:"average_items_per_page"`
	Mode                Mode    `json:"mode"`
}

// Flatten concatenates the items of all batches in yield order.
func Flatten[T any](batches []Batch[T]) []T {
	n := 0
	for _, b := range batches {
		n += len(b.Items)
	}
	out := make([]T, 0, n)
	for _, b := range batches {
		out = append(out, b.Items...)
	}
	return out
}

// Summarize computes totals over all batches. The mode is taken from the
// first batch; batches of one run never mix modes.
func Summarize[T any](batches []Batch[T]) Summary {
	var s summarizer
	for _, b := range batches {
		s.add(len(b.Items), b.Metadata.Mode)
	}
	return s.summary()
}

// summarizer folds batch sizes one at a time so a stream can be
// summarized without keeping its items.
type summarizer struct {
	items int
	pages int
	mode  Mode
}

func (s *summarizer) add(items int, mode Mode) {
	if s.pages == 0 {
		s.mode = mode
	}
	s.items += items
	s.pages++
}

func (s *summarizer) summary() Summary {
	out := Summary{
		TotalItemsYielded: s.items,
		PagesProcessed:    s.pages,
		Mode:              s.mode,
	}
	if s.pages > 0 {
		out.AverageItemsPerPage = float64(s.items) / float64(s.pages)
	}
	return out
}
