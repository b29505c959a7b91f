package pms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/Sternrassler/pms-client/internal/testutil"
	"github.com/Sternrassler/pms-client/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// httpFetcher fetches straight from the mock without caching or retries.
func httpFetcher(baseURL string) pagination.Fetcher {
	return pagination.FetcherFunc(func(ctx context.Context, path string, query url.Values) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
}

func newTestService(t *testing.T) (*Service, *testutil.MockPMS) {
	t.Helper()

	mock := testutil.NewMockPMS()
	t.Cleanup(mock.Close)

	mock.AddCollection(testutil.Collection{
		Path:        ReservationsCollection.Path,
		ScrollPath:  ReservationsCollection.ScrollPath,
		EmbeddedKey: "reservations",
		Items:       testutil.Reservations(23),
	})
	mock.AddCollection(testutil.Collection{
		Path:        UnitsCollection.Path,
		EmbeddedKey: "units",
		Items:       testutil.Units(25),
	})
	mock.AddCollection(testutil.Collection{
		Path:        AmenitiesCollection.Path,
		EmbeddedKey: "amenities",
		Items:       testutil.Amenities(4),
	})

	svc, err := NewService(httpFetcher(mock.URL()), pagination.DefaultConfig())
	require.NoError(t, err)
	return svc, mock
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("Units")
	require.True(t, ok)
	assert.Equal(t, UnitsCollection, c)

	_, ok = Lookup("owners")
	assert.False(t, ok)

	assert.Equal(t, []string{"amenities", "reservations", "units"}, Names())
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, pagination.DefaultConfig())
	assert.Error(t, err)

	cfg := pagination.DefaultConfig()
	cfg.MaxPageSize = 0
	_, err = NewService(httpFetcher("http://localhost"), cfg)
	assert.Error(t, err)
}

func TestService_Units(t *testing.T) {
	svc, mock := newTestService(t)

	units, err := svc.Units(context.Background(), Query{Size: 10})
	require.NoError(t, err)

	require.Len(t, units, 25)
	assert.Equal(t, Unit{ID: 1, Name: "Unit 1", Bedrooms: 1, Bathrooms: 1}, units[0])
	assert.Equal(t, 25, units[24].ID)
	assert.Len(t, mock.Requests(UnitsCollection.Path), 3)
}

func TestService_Amenities(t *testing.T) {
	svc, _ := newTestService(t)

	amenities, err := svc.Amenities(context.Background(), Query{})
	require.NoError(t, err)

	require.Len(t, amenities, 4)
	assert.Equal(t, AmenityGroup{ID: 2, Name: "General"}, amenities[1].Group)
}

func TestService_Reservations_ScrollMode(t *testing.T) {
	svc, mock := newTestService(t)

	reservations, err := svc.Reservations(context.Background(), Query{Mode: pagination.ModeScroll, Size: 10})
	require.NoError(t, err)

	require.Len(t, reservations, 23)
	assert.Equal(t, 1000, reservations[0].ID)
	assert.Equal(t, 1022, reservations[22].ID)
	assert.Empty(t, mock.Requests(ReservationsCollection.Path))
	// The final empty slice ends the run.
	assert.Len(t, mock.Requests(ReservationsCollection.ScrollPath), 4)
}

func TestService_StreamReservations_StopsEarly(t *testing.T) {
	svc, mock := newTestService(t)

	seq, err := svc.StreamReservations(context.Background(), Query{Size: 5})
	require.NoError(t, err)

	for batch, err := range seq {
		require.NoError(t, err)
		assert.Len(t, batch.Items, 5)
		assert.Equal(t, 5, batch.State.TotalPages)
		break
	}
	assert.Equal(t, 1, mock.RequestCount())
}

func TestService_FiltersForwarded(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.Units(context.Background(), Query{Size: 25, Filters: url.Values{"bedrooms": {"2"}}})
	require.NoError(t, err)

	reqs := mock.Requests(UnitsCollection.Path)
	require.Len(t, reqs, 1)
	assert.Equal(t, "2", reqs[0].Get("bedrooms"))
	assert.Equal(t, "25", reqs[0].Get("size"))
}

func TestService_ScrollUnsupported(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.Units(context.Background(), Query{Mode: pagination.ModeScroll})
	assert.ErrorIs(t, err, ErrScrollUnsupported)
	assert.Zero(t, mock.RequestCount())
}

func TestService_BoundsRejectedBeforeFetch(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.Units(context.Background(), Query{Page: 11, Size: 1000})
	assert.ErrorIs(t, err, pagination.ErrBoundsExceeded)
	assert.Zero(t, mock.RequestCount())
}

func TestService_Summary(t *testing.T) {
	svc, _ := newTestService(t)

	s, err := svc.Summary(context.Background(), UnitsCollection, Query{Size: 10})
	require.NoError(t, err)

	assert.Equal(t, 25, s.TotalItemsYielded)
	assert.Equal(t, 3, s.PagesProcessed)
	assert.InDelta(t, 8.333, s.AverageItemsPerPage, 0.001)
	assert.Equal(t, pagination.ModeStandard, s.Mode)
}

func TestService_Collect_Raw(t *testing.T) {
	svc, _ := newTestService(t)

	items, err := svc.Collect(context.Background(), AmenitiesCollection, Query{})
	require.NoError(t, err)

	require.Len(t, items, 4)
	assert.JSONEq(t, `{"id": 1, "name": "Amenity 1", "group": {"id": 1, "name": "General"}}`, string(items[0]))
}

func TestService_UnsupportedMode(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Units(context.Background(), Query{Mode: "cursor"})
	assert.ErrorIs(t, err, pagination.ErrUnsupportedMode)
}

func TestService_Page(t *testing.T) {
	svc, mock := newTestService(t)

	batch, err := svc.Page(context.Background(), UnitsCollection, Query{Page: 2, Size: 10})
	require.NoError(t, err)

	assert.Len(t, batch.Items, 10)
	assert.Equal(t, 2, batch.State.Page)
	assert.Equal(t, "/pms/units?page=3&size=10", batch.Links[pagination.LinkNext])
	assert.Equal(t, "/pms/units?page=1&size=10", batch.Links[pagination.LinkPrev])
	assert.Equal(t, 1, mock.RequestCount())
}

func TestService_Page_ScrollResume(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := Query{Mode: pagination.ModeScroll, Size: 20}

	first, err := svc.Page(ctx, ReservationsCollection, q)
	require.NoError(t, err)
	require.Len(t, first.Items, 20)
	require.NotEmpty(t, first.Metadata.ContinuationToken)

	q.ScrollToken = first.Metadata.ContinuationToken
	second, err := svc.Page(ctx, ReservationsCollection, q)
	require.NoError(t, err)

	require.Len(t, second.Items, 3)
	assert.JSONEq(t, `{"id": 1020, "status": "Confirmed", "unitId": 7, "arrivalDate": "2026-07-01", "departureDate": "2026-07-08"}`, string(second.Items[0]))
}
