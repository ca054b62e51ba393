package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthentication        = fmt.Errorf("authentication failed")
	ErrAuthorizationMismatch = fmt.Errorf("authorization mismatch")
	ErrRefreshFailed         = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken        = fmt.Errorf("no refresh token available")
	ErrTimeout               = fmt.Errorf("operation timed out")

	// Upstream errors
	ErrRateLimited     = fmt.Errorf("upstream rate limited")
	ErrUpstreamRequest = fmt.Errorf("upstream request failed")

	// Storage errors
	ErrNotFound             = fmt.Errorf("record not found")
	ErrDuplicate            = fmt.Errorf("record already exists")
	ErrReferentialIntegrity = fmt.Errorf("referenced record not synced")
	ErrLogging              = fmt.Errorf("sync log write failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
