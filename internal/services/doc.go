// Package services defines the [Catalog] boundary the transfer and sync
// engines operate over, plus its implementations for Spotify and
// Apple Music.
//
// Each implementation routes every outbound request through a shared
// rate-limited [Client] that owns retry/backoff for transient failures and
// classifies remote errors into the sentinel taxonomy in internal/shared.
// Bulk operations are split into provider-specific batch sizes with a fixed
// inter-batch delay to stay under undocumented rate limits.
package services
