package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotConnected     = fmt.Errorf("service not connected")
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")

	// Remote call errors. ErrTransient and ErrRateLimited are the only
	// classes the remote client retries.
	ErrTransient   = fmt.Errorf("transient remote failure")
	ErrRateLimited = fmt.Errorf("rate limited")
	ErrAPIRequest  = fmt.Errorf("API request failed")
	ErrTimeout     = fmt.Errorf("operation timed out")

	// Catalog lookup errors
	ErrAlbumNotFound = fmt.Errorf("album not found")
	ErrItemNotFound  = fmt.Errorf("item not found")

	// Sync queue errors
	ErrQueueExhausted = fmt.Errorf("sync job exceeded max retries")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
