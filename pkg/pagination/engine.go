package pagination

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Query parameter names sent to the remote collection.
const (
	QueryPage          = "page"
	QuerySize          = "size"
	QueryScroll        = "scroll"
	QueryScrollTimeout = "scroll_timeout"
)

// scrollStart is the scroll value that opens a new scroll context.
const scrollStart = "1"

// Fetcher retrieves one raw response from the remote API.
// Retry, backoff, auth and timeouts are the fetcher's business.
type Fetcher interface {
	Fetch(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, path string, query url.Values) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return f(ctx, path, query)
}

// Request describes one enumeration of a remote collection.
type Request struct {
	// Path is the collection endpoint, e.g. "/pms/units"
	Path string

	// Query holds extra query parameters sent with every fetch
	Query url.Values

	// Page and Size are the requested starting page and page size.
	// Page is ignored in scroll mode.
	Page int
	Size int

	// ItemsPath is the gjson path of the items container in the response
	ItemsPath string

	// ScrollToken resumes an earlier scroll run instead of opening a new one
	ScrollToken string
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger      *zerolog.Logger
	interpreter any
}

// WithLogger sets the logger used by the engine.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithInterpreter replaces the strategy selected by Config.Mode. The
// interpreter's own Mode decides how the engine walks the collection.
// Its item type must match the engine's.
func WithInterpreter[T any](interpreter Interpreter[T]) Option {
	return func(o *options) {
		o.interpreter = interpreter
	}
}

// Engine walks a remote paged collection and yields one batch per fetch.
// An Engine is safe for concurrent use; each Stream call owns its own
// loop state.
type Engine[T any] struct {
	fetcher     Fetcher
	config      Config
	interpreter Interpreter[T]
	logger      zerolog.Logger
}

// NewEngine creates an engine for items of type T.
func NewEngine[T any](fetcher Fetcher, config Config, opts ...Option) (*Engine[T], error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pagination config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var interpreter Interpreter[T]
	switch custom := o.interpreter.(type) {
	case nil:
		var err error
		if interpreter, err = NewInterpreter[T](config.Mode); err != nil {
			return nil, err
		}
	case Interpreter[T]:
		if _, err := ParseMode(string(custom.Mode())); err != nil {
			return nil, err
		}
		interpreter = custom
	default:
		return nil, fmt.Errorf("interpreter %T does not produce the engine's item type", o.interpreter)
	}
	logger := log.With().Str("component", "pagination").Logger()
	if o.logger != nil {
		logger = *o.logger
	}

	return &Engine[T]{
		fetcher:     fetcher,
		config:      config,
		interpreter: interpreter,
		logger:      logger.With().Str("mode", string(interpreter.Mode())).Logger(),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine[T]) Config() Config {
	return e.config
}

// Stream validates the request and returns a lazy sequence of batches.
//
// Validation failures, including *BoundsExceededError, are returned here
// before any fetch. The sequence performs exactly one fetch per batch and
// never reads ahead: breaking out of the range loop stops the run. A fetch
// or decode error is yielded once and ends the sequence.
func (e *Engine[T]) Stream(ctx context.Context, req Request) (iter.Seq2[Batch[T], error], error) {
	if req.Path == "" {
		return nil, fmt.Errorf("request path is required")
	}

	page := req.Page
	if e.interpreter.Mode() == ModeScroll {
		page = 1
	}
	params, err := e.config.Clamp(page, req.Size)
	if err != nil {
		boundsExceededTotal.WithLabelValues(string(e.interpreter.Mode())).Inc()
		e.logger.Warn().
			Err(err).
			Str("path", req.Path).
			Int("page", req.Page).
			Int("size", req.Size).
			Msg("Pagination request rejected")
		return nil, err
	}

	return func(yield func(Batch[T], error) bool) {
		e.run(ctx, req, e.newWalker(req, params), yield)
	}, nil
}

// CollectAll drives the enumeration to completion and returns all items in
// yield order. On any error no items are returned.
func (e *Engine[T]) CollectAll(ctx context.Context, req Request) ([]T, error) {
	seq, err := e.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var batches []Batch[T]
	for batch, err := range seq {
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return Flatten(batches), nil
}

// CollectSummary drives the enumeration to completion and summarizes it.
// On any error no summary is returned.
func (e *Engine[T]) CollectSummary(ctx context.Context, req Request) (Summary, error) {
	seq, err := e.Stream(ctx, req)
	if err != nil {
		return Summary{}, err
	}

	var s summarizer
	for batch, err := range seq {
		if err != nil {
			return Summary{}, err
		}
		s.add(len(batch.Items), batch.Metadata.Mode)
	}
	return s.summary(), nil
}

// run is the enumeration loop shared by both modes. The walker owns the
// mode-specific query and advance decisions.
func (e *Engine[T]) run(ctx context.Context, req Request, w walker, yield func(Batch[T], error) bool) {
	mode := string(e.interpreter.Mode())
	start := time.Now()
	pages := 0
	items := 0

	defer func() {
		e.logger.Debug().
			Str("path", req.Path).
			Int("pages", pages).
			Int("items", items).
			Dur("duration", time.Since(start)).
			Msg("Pagination run finished")
	}()

	for {
		if err := ctx.Err(); err != nil {
			yield(Batch[T]{}, err)
			return
		}

		query := w.query()
		fetchStart := time.Now()
		raw, err := e.fetcher.Fetch(ctx, req.Path, query)
		fetchDuration.WithLabelValues(mode).Observe(time.Since(fetchStart).Seconds())
		if err != nil {
			fetchErrorsTotal.WithLabelValues(mode).Inc()
			e.logger.Warn().
				Err(err).
				Str("path", req.Path).
				Int("pages", pages).
				Msg("Page fetch failed")
			yield(Batch[T]{}, err)
			return
		}

		hint := Hint{ItemsPath: req.ItemsPath, Page: w.page(), Size: w.size()}
		in, err := e.interpreter.Interpret(raw, hint)
		if err != nil {
			e.logger.Warn().Err(err).Str("path", req.Path).Msg("Page decode failed")
			yield(Batch[T]{}, err)
			return
		}
		if in.Metadata.ContainerMissing {
			malformedResponsesTotal.WithLabelValues(mode).Inc()
			e.logger.Warn().
				Str("path", req.Path).
				Str("items_path", req.ItemsPath).
				Int("page", hint.Page).
				Msg("Response has no items container, yielding empty batch")
		}

		pages++
		items += len(in.Items)
		pagesFetchedTotal.WithLabelValues(mode).Inc()
		itemsYieldedTotal.WithLabelValues(mode).Add(float64(len(in.Items)))

		batch := Batch[T]{
			Items:    in.Items,
			State:    in.State,
			Links:    BuildLinks(req.Path, w.linkBase(), in.State),
			Metadata: in.Metadata,
		}
		if !yield(batch, nil) {
			return
		}

		if e.interpreter.Done(in) || !w.advance(in.State, in.Metadata) {
			return
		}
	}
}

// walker holds the mutable loop state of one enumeration.
type walker interface {
	query() url.Values
	linkBase() url.Values
	page() int
	size() int
	advance(state PageState, meta Metadata) bool
}

func (e *Engine[T]) newWalker(req Request, params Params) walker {
	if e.interpreter.Mode() == ModeScroll {
		return &scrollWalker{
			base:    req.Query,
			sz:      params.Size,
			token:   req.ScrollToken,
			timeout: e.config.ScrollTimeout,
			auto:    e.config.EnableAutoScroll,
		}
	}
	return &standardWalker{
		base:   req.Query,
		pg:     params.Page,
		sz:     params.Size,
		config: e.config,
		logger: e.logger,
	}
}

type standardWalker struct {
	base   url.Values
	pg     int
	sz     int
	config Config
	logger zerolog.Logger
}

func (w *standardWalker) query() url.Values {
	q := w.linkBase()
	q.Set(QueryPage, strconv.Itoa(w.pg))
	return q
}

func (w *standardWalker) linkBase() url.Values {
	q := cloneValues(w.base)
	q.Set(QuerySize, strconv.Itoa(w.sz))
	return q
}

func (w *standardWalker) page() int { return w.pg }
func (w *standardWalker) size() int { return w.sz }

func (w *standardWalker) advance(state PageState, _ Metadata) bool {
	if !state.HasNext {
		return false
	}
	next := w.pg + 1
	if !w.config.withinBounds(next, w.sz) {
		w.logger.Info().
			Int("next_page", next).
			Int("size", w.sz).
			Int("max_total_results", w.config.MaxTotalResults).
			Msg("Stopping at max total results")
		return false
	}
	w.pg = next
	return true
}

type scrollWalker struct {
	base    url.Values
	sz      int
	token   string
	timeout string
	auto    bool
}

func (w *scrollWalker) query() url.Values {
	q := w.linkBase()
	if w.token == "" {
		q.Set(QueryScroll, scrollStart)
	} else {
		q.Set(QueryScroll, w.token)
	}
	return q
}

func (w *scrollWalker) linkBase() url.Values {
	q := cloneValues(w.base)
	q.Set(QuerySize, strconv.Itoa(w.sz))
	if w.timeout != "" {
		q.Set(QueryScrollTimeout, w.timeout)
	}
	return q
}

func (w *scrollWalker) page() int { return 1 }
func (w *scrollWalker) size() int { return w.sz }

func (w *scrollWalker) advance(_ PageState, meta Metadata) bool {
	if !w.auto || meta.ContinuationToken == "" {
		return false
	}
	w.token = meta.ContinuationToken
	return true
}
