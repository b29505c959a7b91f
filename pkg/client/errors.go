package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/pms-client/pkg/ratelimit"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCircuitOpen is returned when the circuit breaker rejects a request.
	ErrCircuitOpen = errors.New("pms circuit breaker open")

	// ErrResponseTooLarge is returned when a body exceeds Config.MaxBodyBytes.
	ErrResponseTooLarge = errors.New("pms response too large")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassCircuitOpen represents requests rejected by the breaker.
	ErrorClassCircuitOpen ErrorClass = "circuit_open"

	// ErrorClassQuota represents requests refused by the quota tracker.
	ErrorClassQuota ErrorClass = "quota_exhausted"

	// ErrorClassTooLarge represents bodies over the size limit.
	ErrorClassTooLarge ErrorClass = "response_too_large"
)

// APIError is a non-success response from the PMS.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Path       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("PMS %s error (status %d) on %s: %s",
		e.ErrorClass, e.StatusCode, e.Path, e.Message)
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// classify returns the class of any error produced by a request attempt.
func classify(err error) ErrorClass {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.ErrorClass
	case errors.Is(err, ErrCircuitOpen):
		return ErrorClassCircuitOpen
	case errors.Is(err, ratelimit.ErrQuotaExhausted):
		return ErrorClassQuota
	case errors.Is(err, ErrResponseTooLarge):
		return ErrorClassTooLarge
	default:
		return ErrorClassNetwork
	}
}

// shouldRetry determines if an error class is worth another attempt.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx and oversized bodies will fail again; open breakers and refused quotas fail fast
		return false
	}
}
