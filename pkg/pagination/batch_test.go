package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten(t *testing.T) {
	batches := []Batch[int]{
		{Items: []int{1, 2}},
		{Items: []int{3, 4}},
		{Items: nil},
		{Items: []int{5}},
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, Flatten(batches))
	assert.Empty(t, Flatten[int](nil))
}

func TestSummarize(t *testing.T) {
	batches := []Batch[int]{
		{Items: make([]int, 10), Metadata: Metadata{Mode: ModeScroll}},
		{Items: make([]int, 10), Metadata: Metadata{Mode: ModeScroll}},
		{Items: make([]int, 5), Metadata: Metadata{Mode: ModeScroll}},
	}

	s := Summarize(batches)

	assert.Equal(t, 25, s.TotalItemsYielded)
	assert.Equal(t, 3, s.PagesProcessed)
	assert.InDelta(t, 8.333, s.AverageItemsPerPage, 0.001)
	assert.Equal(t, ModeScroll, s.Mode)
}

func TestSummarize_NoBatches(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize[int](nil))
}
