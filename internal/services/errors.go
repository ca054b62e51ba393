package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/respect/internal/shared"
)

const maxErrorBody = 512

// APIError is a non-success response from the upstream API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// RateLimited reports whether the call failed because the upstream limit was spent.
func (e *APIError) RateLimited() bool { return errors.Is(e.Err, shared.ErrRateLimited) }

func newAPIError(method, path string, status int, body []byte, rateLimited bool) *APIError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	var err error
	switch {
	case rateLimited:
		err = errors.Join(shared.ErrUpstreamRequest, shared.ErrRateLimited)
	case status == http.StatusUnauthorized:
		err = errors.Join(shared.ErrUpstreamRequest, shared.ErrAuthentication)
	case status == http.StatusNotFound:
		err = errors.Join(shared.ErrUpstreamRequest, shared.ErrNotFound)
	default:
		err = shared.ErrUpstreamRequest
	}

	return &APIError{Method: method, Path: path, Status: status, Body: string(body), Err: err}
}

// IsRateLimited reports whether err came from an exhausted upstream limit.
func IsRateLimited(err error) bool {
	return errors.Is(err, shared.ErrRateLimited)
}
