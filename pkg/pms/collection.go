// Package pms binds the PMS collections to the pagination engine.
package pms

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/pms-client/pkg/pagination"
)

// ErrScrollUnsupported is returned for scroll requests on a collection
// without a scroll endpoint.
var ErrScrollUnsupported = errors.New("collection does not support scroll mode")

// Collection describes one paged PMS endpoint.
type Collection struct {
	// Name is the short name used by the proxy, e.g. "units"
	Name string

	// Path serves page/size requests
	Path string

	// ScrollPath serves scroll requests, empty when unsupported
	ScrollPath string

	// ItemsPath locates the items array in a response
	ItemsPath string
}

// Known collections.
var (
	ReservationsCollection = Collection{
		Name:       "reservations",
		Path:       "/pms/reservations",
		ScrollPath: "/v2/pms/reservations",
		ItemsPath:  "_embedded.reservations",
	}

	UnitsCollection = Collection{
		Name:      "units",
		Path:      "/pms/units",
		ItemsPath: "_embedded.units",
	}

	AmenitiesCollection = Collection{
		Name:      "amenities",
		Path:      "/pms/units/amenities",
		ItemsPath: "_embedded.amenities",
	}
)

var collections = map[string]Collection{
	ReservationsCollection.Name: ReservationsCollection,
	UnitsCollection.Name:        UnitsCollection,
	AmenitiesCollection.Name:    AmenitiesCollection,
}

// Lookup returns the collection with the given name.
func Lookup(name string) (Collection, bool) {
	c, ok := collections[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names returns the known collection names, sorted.
func Names() []string {
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query selects what to enumerate from a collection.
type Query struct {
	// Mode overrides the service mode when set
	Mode pagination.Mode

	Page int
	Size int

	// Filters are forwarded to the PMS unchanged
	Filters url.Values

	// ScrollToken resumes a scroll run
	ScrollToken string
}

// request builds the engine request for mode.
func (c Collection) request(mode pagination.Mode, q Query) (pagination.Request, error) {
	path := c.Path
	if mode == pagination.ModeScroll {
		if c.ScrollPath == "" {
			return pagination.Request{}, fmt.Errorf("%s: %w", c.Name, ErrScrollUnsupported)
		}
		path = c.ScrollPath
	}

	return pagination.Request{
		Path:        path,
		Query:       q.Filters,
		Page:        q.Page,
		Size:        q.Size,
		ItemsPath:   c.ItemsPath,
		ScrollToken: q.ScrollToken,
	}, nil
}
