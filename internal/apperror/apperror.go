// Package apperror defines the error taxonomy shared by the recommendation
// core, the ingestion path and the HTTP layer. Packages wrap these sentinels
// with fmt.Errorf("pkg: ...: %w") and callers classify with [errors.Is].
package apperror

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput marks a request that was rejected before any external call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable marks a failed, timed-out or malformed embedding.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStoreUnavailable marks a failed or timed-out corpus or session store call.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound marks a lookup for an id that does not exist.
	ErrNotFound = errors.New("not found")
)

// Code is a stable machine-readable error code returned in HTTP error bodies.
type Code string

const (
	CodeInvalidInput         Code = "invalid_input"
	CodeEmbeddingUnavailable Code = "embedding_unavailable"
	CodeStoreUnavailable     Code = "store_unavailable"
	CodeNotFound             Code = "not_found"
	CodeUnauthorized         Code = "unauthorized"
	CodeRateLimited          Code = "rate_limited"
	CodeInternal             Code = "internal"
)

// Classify maps err onto an HTTP status and error code.
func Classify(err error) (int, Code) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrEmbeddingUnavailable):
		return http.StatusBadGateway, CodeEmbeddingUnavailable
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Response is the JSON error payload written by the HTTP layer.
type Response struct {
	Message string `json:"message"`
	Code    Code   `json:"error_code,omitempty"`
}

// NewResponse builds the client-facing payload for err. Internal errors get a
// generic message so dependency details never reach the client.
func NewResponse(err error) (int, Response) {
	status, code := Classify(err)
	msg := http.StatusText(status)
	switch code {
	case CodeInvalidInput:
		msg = err.Error()
	case CodeEmbeddingUnavailable:
		msg = "embedding service unavailable"
	case CodeStoreUnavailable:
		msg = "question store unavailable"
	}
	return status, Response{Message: msg, Code: code}
}
