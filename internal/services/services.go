// package services defines the upstream client and its collaborators
package services

import (
	"context"
	"net/http"
	"time"
)

// RateLimiter spaces outbound calls. Implemented by [ratelimit.Limiter].
type RateLimiter interface {
	Acquire(ctx context.Context, endpoint, subject string) error
	Backoff(ctx context.Context, endpoint, subject string, resp *http.Response) (time.Duration, error)
}

// TokenSource yields a valid access token for a subject. Implemented by [auth.TokenManager].
type TokenSource interface {
	AccessToken(ctx context.Context, subjectID string) (string, error)
}
