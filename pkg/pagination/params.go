package pagination

// Params are the corrected page parameters for one enumeration.
type Params struct {
	Page   int // 1-based page number
	Size   int // Items per page
	Offset int // (Page-1)*Size, for offset-style collaborators
}

// Clamp corrects the requested page and size against the configuration.
//
// Rules:
//   - page < 1 becomes 1
//   - size < 1 becomes DefaultPageSize
//   - size > MaxPageSize becomes MaxPageSize
//
// After clamping, page*size above MaxTotalResults is not corrected and
// returns a *BoundsExceededError. Clamping clamped values is a no-op.
func (c Config) Clamp(page, size int) (Params, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = c.DefaultPageSize
		if size < 1 {
			size = DefaultPageSize
		}
	}
	if size > c.MaxPageSize {
		size = c.MaxPageSize
	}

	if !c.withinBounds(page, size) {
		return Params{}, &BoundsExceededError{
			Page:            page,
			Size:            size,
			MaxTotalResults: c.MaxTotalResults,
		}
	}

	return Params{
		Page:   page,
		Size:   size,
		Offset: (page - 1) * size,
	}, nil
}

// withinBounds reports whether fetching page with size stays inside
// MaxTotalResults. Both arguments must be >= 1. The product is never
// computed, so huge pages cannot wrap around.
func (c Config) withinBounds(page, size int) bool {
	return page <= c.MaxTotalResults/size
}
