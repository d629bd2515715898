package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/services"
	"github.com/mirrorwave/tunesync/internal/shared"
)

// Diff compares two library snapshots by stable identifier and reports
// what changed. Pure function: neither snapshot is touched.
//
// A nil previous snapshot means first-ever sync: everything in current is
// added, nothing is removed. Updated counts items whose id survived but
// whose normalized name/artist key or track count changed; a case-only
// rename is not a change.
func Diff(previous, current *models.LibrarySnapshot) models.SyncStats {
	stats := models.SyncStats{Total: current.Total()}

	if previous == nil {
		stats.Added = current.Total()
		return stats
	}

	prevAlbums := make(map[string]models.Album, len(previous.Albums))
	for _, album := range previous.Albums {
		prevAlbums[album.ID] = album
	}
	prevPlaylists := make(map[string]models.Playlist, len(previous.Playlists))
	for _, playlist := range previous.Playlists {
		prevPlaylists[playlist.ID] = playlist
	}

	seen := make(map[string]bool, current.Total())
	for _, album := range current.Albums {
		seen[album.ID] = true
		old, ok := prevAlbums[album.ID]
		if !ok {
			stats.Added++
			continue
		}
		if shared.NormalizeItemKey(old.Name, old.Artist) != shared.NormalizeItemKey(album.Name, album.Artist) ||
			old.TrackCount != album.TrackCount {
			stats.Updated++
		}
	}
	for _, playlist := range current.Playlists {
		seen[playlist.ID] = true
		old, ok := prevPlaylists[playlist.ID]
		if !ok {
			stats.Added++
			continue
		}
		if shared.NormalizeItemField(old.Name) != shared.NormalizeItemField(playlist.Name) ||
			old.TrackCount != playlist.TrackCount {
			stats.Updated++
		}
	}

	for id := range prevAlbums {
		if !seen[id] {
			stats.Removed++
		}
	}
	for id := range prevPlaylists {
		if !seen[id] {
			stats.Removed++
		}
	}

	return stats
}

// SnapshotStore persists per-(user, service) library snapshots.
// Get returns (nil, nil) when no snapshot was ever saved.
type SnapshotStore interface {
	Get(userID, service string) (*models.LibrarySnapshot, error)
	Save(userID, service string, snapshot *models.LibrarySnapshot) error
}

// CatalogResolver builds a catalog client for a (user, service) pair. It
// returns an error wrapping [shared.ErrNotConnected] when the user never
// connected the service.
type CatalogResolver func(ctx context.Context, userID, service string) (services.Catalog, error)

// LibrarySyncer is the work behind one dequeued sync job: fetch the full
// remote library, diff it against the stored snapshot and persist only
// when something changed.
type LibrarySyncer struct {
	catalogs  CatalogResolver
	snapshots SnapshotStore
	logger    *log.Logger
}

func NewLibrarySyncer(catalogs CatalogResolver, snapshots SnapshotStore, logger *log.Logger) *LibrarySyncer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "library-sync")
	return &LibrarySyncer{catalogs: catalogs, snapshots: snapshots, logger: logger}
}

// RunSync implements [SyncRunner].
func (s *LibrarySyncer) RunSync(ctx context.Context, userID, service string) (*models.SyncStats, error) {
	catalog, err := s.catalogs(ctx, userID, service)
	if err != nil {
		return nil, err
	}

	current, err := catalog.GetLibrary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s library: %w", service, err)
	}
	current.CapturedAt = time.Now().UTC()

	previous, err := s.snapshots.Get(userID, service)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored snapshot: %w", err)
	}

	stats := Diff(previous, current)

	// Unchanged libraries are not rewritten.
	if previous == nil || stats.Added > 0 || stats.Removed > 0 || stats.Updated > 0 {
		if err := s.snapshots.Save(userID, service, current); err != nil {
			return nil, fmt.Errorf("failed to save snapshot: %w", err)
		}
	}

	s.logger.Debug("library diffed", "user", userID, "service", service,
		"added", stats.Added, "removed", stats.Removed, "updated", stats.Updated, "total", stats.Total)

	return &stats, nil
}
