package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/pms-client/pkg/client"
	"github.com/Sternrassler/pms-client/pkg/logging"
	"github.com/Sternrassler/pms-client/pkg/metrics"
	"github.com/Sternrassler/pms-client/pkg/pagination"
	"github.com/Sternrassler/pms-client/pkg/pms"
	"github.com/redis/go-redis/v9"
)

// Query parameters consumed by the proxy; everything else is forwarded.
const (
	paramMode        = "mode"
	paramSummary     = "summary"
	paramBatch       = "batch"
	paramScrollToken = "scroll_token"
)

var reserved = map[string]bool{
	paramMode:            true,
	paramSummary:         true,
	paramBatch:           true,
	paramScrollToken:     true,
	pagination.QueryPage: true,
	pagination.QuerySize: true,
}

type collectResponse struct {
	Collection string            `json:"collection"`
	Mode       pagination.Mode   `json:"mode"`
	Count      int               `json:"count"`
	Items      []json.RawMessage `json:"items"`
}

type batchResponse struct {
	Collection        string               `json:"collection"`
	Mode              pagination.Mode      `json:"mode"`
	Items             []json.RawMessage    `json:"items"`
	State             pagination.PageState `json:"state"`
	Links             map[string]string    `json:"links"`
	ContinuationToken string               `json:"continuation_token,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newRouter(redisClient *redis.Client, svc *pms.Service, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(redisClient))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /v1/{collection}", collectionHandler(svc, timeout))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

func collectionHandler(svc *pms.Service, timeout time.Duration) http.HandlerFunc {
	logger := logging.NewLogger("pms-proxy")

	return func(w http.ResponseWriter, r *http.Request) {
		collection, ok := pms.Lookup(r.PathValue("collection"))
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown collection %q", r.PathValue("collection"))})
			return
		}

		q, err := parseQuery(r.URL.Query(), svc.Config().Mode)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		params := r.URL.Query()
		var (
			body   any
			status = http.StatusOK
		)
		switch {
		case isTrue(params.Get(paramSummary)):
			var s pagination.Summary
			s, err = svc.Summary(ctx, collection, q)
			body = s
		case isTrue(params.Get(paramBatch)):
			var b pagination.Batch[json.RawMessage]
			b, err = svc.Page(ctx, collection, q)
			body = batchResponse{
				Collection:        collection.Name,
				Mode:              q.Mode,
				Items:             b.Items,
				State:             b.State,
				Links:             b.Links,
				ContinuationToken: b.Metadata.ContinuationToken,
			}
		default:
			var items []json.RawMessage
			items, err = svc.Collect(ctx, collection, q)
			body = collectResponse{
				Collection: collection.Name,
				Mode:       q.Mode,
				Count:      len(items),
				Items:      items,
			}
		}

		if err != nil {
			status = errorStatus(err)
			logger.Warn().
				Err(err).
				Str("collection", collection.Name).
				Str("mode", string(q.Mode)).
				Int("status", status).
				Msg("Collection request failed")
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, status, body)
	}
}

func parseQuery(params url.Values, defaultMode pagination.Mode) (pms.Query, error) {
	q := pms.Query{Mode: defaultMode, ScrollToken: params.Get(paramScrollToken)}

	if v := params.Get(paramMode); v != "" {
		mode, err := pagination.ParseMode(v)
		if err != nil {
			return pms.Query{}, err
		}
		q.Mode = mode
	}

	var err error
	if q.Page, err = intParam(params, pagination.QueryPage); err != nil {
		return pms.Query{}, err
	}
	if q.Size, err = intParam(params, pagination.QuerySize); err != nil {
		return pms.Query{}, err
	}

	for key, values := range params {
		if reserved[key] {
			continue
		}
		if q.Filters == nil {
			q.Filters = url.Values{}
		}
		q.Filters[key] = values
	}

	return q, nil
}

func intParam(params url.Values, key string) (int, error) {
	v := params.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func isTrue(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func errorStatus(err error) int {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, pagination.ErrBoundsExceeded),
		errors.Is(err, pagination.ErrUnsupportedMode),
		errors.Is(err, pms.ErrScrollUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, client.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.NewLogger("pms-proxy").Error().Err(err).Msg("Failed to write response")
	}
}
