package services

import (
	"context"

	"github.com/mirrorwave/tunesync/internal/models"
)

// Catalog is the minimal remote operation set the transfer and sync engines
// require from a streaming service.
type Catalog interface {
	// Name returns the service name (e.g. "spotify", "applemusic").
	Name() string

	// SearchCatalog issues a text search against the service catalog and
	// returns candidates in the order the service ranked them.
	SearchCatalog(ctx context.Context, query string, kind SearchKind) ([]Candidate, error)

	// GetItemsByCode resolves universal product codes (albums) or standard
	// recording codes (tracks) to catalog ids. Codes with no catalog entry
	// are absent from the returned map.
	GetItemsByCode(ctx context.Context, kind SearchKind, codes []string) (map[string]string, error)

	// CheckLibraryMembership reports which of the given catalog ids are
	// already present in the user's library.
	CheckLibraryMembership(ctx context.Context, kind SearchKind, ids []string) (map[string]bool, error)

	// CreatePlaylist creates an empty playlist in the user's library and
	// returns its id.
	CreatePlaylist(ctx context.Context, name, description, artworkURL string) (string, error)

	// AddTracksToPlaylist appends tracks to a playlist in the given order.
	// The ids slice is expected to already be a single provider-sized batch.
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error

	// AddAlbumsToLibrary saves albums to the user's library.
	AddAlbumsToLibrary(ctx context.Context, albumIDs []string) error

	// GetPlaylistTracks retrieves a playlist's full ordered track list.
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// GetAlbumTracks retrieves an album's track list.
	GetAlbumTracks(ctx context.Context, albumID string) ([]models.Track, error)

	// GetLibrary captures the user's full library (albums and playlists).
	GetLibrary(ctx context.Context) (*models.LibrarySnapshot, error)

	// Limits exposes the provider's batch sizing for bulk operations.
	Limits() BatchLimits
}

// SearchKind selects the catalog entity type for searches and lookups.
type SearchKind string

const (
	SearchAlbums SearchKind = "albums"
	SearchTracks SearchKind = "tracks"
)

// Candidate is one result of a catalog search or code lookup.
type Candidate struct {
	ID     string
	Name   string
	Artist string
}

// BatchLimits describes how many items a provider accepts per bulk request.
type BatchLimits struct {
	Search     int // concurrent track searches per fan-out batch
	Add        int // ids per add-tracks / add-albums request
	Code       int // codes per identifier lookup request
	Membership int // ids per library membership check
}

// Credentials are the tokens required to call a service on a user's behalf.
//
// SecondaryToken is only set for services that require a second per-user
// token in addition to the bearer token (Apple Music's Music User Token).
type Credentials struct {
	AccessToken    string
	SecondaryToken string
}

// CredentialProvider resolves stored credentials for a (user, service)
// pair. Implementations return (nil, nil) when the user never connected the
// service; callers translate that into an authentication failure rather
// than a lookup error.
type CredentialProvider interface {
	Credentials(userID, service string) (*Credentials, error)
}
