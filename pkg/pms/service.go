package pms

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/Sternrassler/pms-client/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service enumerates PMS collections through the pagination engine.
// It is safe for concurrent use; every call starts an independent run.
type Service struct {
	fetcher pagination.Fetcher
	config  pagination.Config
	logger  zerolog.Logger
}

// NewService creates a service over fetcher with the given defaults.
func NewService(fetcher pagination.Fetcher, cfg pagination.Config) (*Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pagination config: %w", err)
	}

	return &Service{
		fetcher: fetcher,
		config:  cfg,
		logger:  log.With().Str("component", "pms").Logger(),
	}, nil
}

// Config returns the default pagination config.
func (s *Service) Config() pagination.Config {
	return s.config
}

// StreamReservations lazily enumerates reservations.
func (s *Service) StreamReservations(ctx context.Context, q Query) (iter.Seq2[pagination.Batch[Reservation], error], error) {
	return stream[Reservation](ctx, s, ReservationsCollection, q)
}

// Reservations collects all reservations matching q.
func (s *Service) Reservations(ctx context.Context, q Query) ([]Reservation, error) {
	return collect[Reservation](ctx, s, ReservationsCollection, q)
}

// Units collects all units matching q.
func (s *Service) Units(ctx context.Context, q Query) ([]Unit, error) {
	return collect[Unit](ctx, s, UnitsCollection, q)
}

// Amenities collects all amenities matching q.
func (s *Service) Amenities(ctx context.Context, q Query) ([]Amenity, error) {
	return collect[Amenity](ctx, s, AmenitiesCollection, q)
}

// Collect returns the raw items of any collection.
func (s *Service) Collect(ctx context.Context, c Collection, q Query) ([]json.RawMessage, error) {
	return collect[json.RawMessage](ctx, s, c, q)
}

// Page fetches a single batch of any collection, links included.
// In scroll mode the batch carries the token to resume with.
func (s *Service) Page(ctx context.Context, c Collection, q Query) (pagination.Batch[json.RawMessage], error) {
	seq, err := stream[json.RawMessage](ctx, s, c, q)
	if err != nil {
		return pagination.Batch[json.RawMessage]{}, err
	}

	for batch, err := range seq {
		return batch, err
	}
	return pagination.Batch[json.RawMessage]{}, fmt.Errorf("%s: no batch returned", c.Name)
}

// Summary enumerates a collection and returns only its statistics.
func (s *Service) Summary(ctx context.Context, c Collection, q Query) (pagination.Summary, error) {
	engine, req, err := prepare[json.RawMessage](s, c, q)
	if err != nil {
		return pagination.Summary{}, err
	}
	return engine.CollectSummary(ctx, req)
}

func stream[T any](ctx context.Context, s *Service, c Collection, q Query) (iter.Seq2[pagination.Batch[T], error], error) {
	engine, req, err := prepare[T](s, c, q)
	if err != nil {
		return nil, err
	}
	return engine.Stream(ctx, req)
}

func collect[T any](ctx context.Context, s *Service, c Collection, q Query) ([]T, error) {
	engine, req, err := prepare[T](s, c, q)
	if err != nil {
		return nil, err
	}

	items, err := engine.CollectAll(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("collection", c.Name).
		Str("mode", string(engine.Config().Mode)).
		Int("items", len(items)).
		Msg("Collection enumerated")
	return items, nil
}

func prepare[T any](s *Service, c Collection, q Query) (*pagination.Engine[T], pagination.Request, error) {
	cfg := s.config
	if q.Mode != "" {
		cfg.Mode = q.Mode
	}

	req, err := c.request(cfg.Mode, q)
	if err != nil {
		return nil, pagination.Request{}, err
	}

	engine, err := pagination.NewEngine[T](s.fetcher, cfg,
		pagination.WithLogger(s.logger.With().Str("collection", c.Name).Logger()))
	if err != nil {
		return nil, pagination.Request{}, err
	}
	return engine, req, nil
}
