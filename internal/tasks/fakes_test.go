package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/services"
)

// fakeCatalog is an in-memory Catalog for engine tests.
type fakeCatalog struct {
	mu sync.Mutex

	name           string
	searchResults  map[string][]services.Candidate // query -> candidates
	codeIndex      map[string]string               // code -> id
	library        map[string]bool                 // id -> owned
	playlistTracks map[string][]models.Track
	albumTracks    map[string][]models.Track
	snapshot       *models.LibrarySnapshot

	createErr    error
	addTracksErr error
	addAlbumsErr error

	created    []string
	addedIDs   []string
	addCalls   int
	searchLog  []string
	codeLookup int
}

func newFakeCatalog(name string) *fakeCatalog {
	return &fakeCatalog{
		name:           name,
		searchResults:  map[string][]services.Candidate{},
		codeIndex:      map[string]string{},
		library:        map[string]bool{},
		playlistTracks: map[string][]models.Track{},
		albumTracks:    map[string][]models.Track{},
	}
}

func (f *fakeCatalog) Name() string { return f.name }

func (f *fakeCatalog) Limits() services.BatchLimits {
	return services.BatchLimits{Search: 25, Add: 50, Code: 10, Membership: 50}
}

func (f *fakeCatalog) SearchCatalog(ctx context.Context, query string, kind services.SearchKind) ([]services.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchLog = append(f.searchLog, query)
	return f.searchResults[query], nil
}

func (f *fakeCatalog) GetItemsByCode(ctx context.Context, kind services.SearchKind, codes []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeLookup++

	found := map[string]string{}
	for _, code := range codes {
		if id, ok := f.codeIndex[code]; ok {
			found[code] = id
		}
	}
	return found, nil
}

func (f *fakeCatalog) CheckLibraryMembership(ctx context.Context, kind services.SearchKind, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	owned := map[string]bool{}
	for _, id := range ids {
		owned[id] = f.library[id]
	}
	return owned, nil
}

func (f *fakeCatalog) CreatePlaylist(ctx context.Context, name, description, artworkURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return "", f.createErr
	}
	id := fmt.Sprintf("dest-pl-%d", len(f.created)+1)
	f.created = append(f.created, name)
	return id, nil
}

func (f *fakeCatalog) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.addCalls++
	if f.addTracksErr != nil {
		return f.addTracksErr
	}
	f.addedIDs = append(f.addedIDs, trackIDs...)
	return nil
}

func (f *fakeCatalog) AddAlbumsToLibrary(ctx context.Context, albumIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.addCalls++
	if f.addAlbumsErr != nil {
		return f.addAlbumsErr
	}
	f.addedIDs = append(f.addedIDs, albumIDs...)
	return nil
}

func (f *fakeCatalog) GetPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tracks, ok := f.playlistTracks[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist %s not found", playlistID)
	}
	return tracks, nil
}

func (f *fakeCatalog) GetAlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.albumTracks[albumID], nil
}

func (f *fakeCatalog) GetLibrary(ctx context.Context) (*models.LibrarySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.snapshot == nil {
		return &models.LibrarySnapshot{}, nil
	}
	return f.snapshot, nil
}

// fakeTransferStore records persistence calls in order.
type fakeTransferStore struct {
	mu      sync.Mutex
	created []*models.TransferRecord
	updates []models.TransferRecord
}

func (s *fakeTransferStore) Create(record *models.TransferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, record)
	return nil
}

func (s *fakeTransferStore) Update(record *models.TransferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, *record)
	return nil
}

func (s *fakeTransferStore) lastUpdate() *models.TransferRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return nil
	}
	record := s.updates[len(s.updates)-1]
	return &record
}

// fakeSnapshotStore keeps snapshots in memory.
type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]*models.LibrarySnapshot
	saves     int
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: map[string]*models.LibrarySnapshot{}}
}

func (s *fakeSnapshotStore) Get(userID, service string) (*models.LibrarySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[userID+"/"+service], nil
}

func (s *fakeSnapshotStore) Save(userID, service string, snapshot *models.LibrarySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[userID+"/"+service] = snapshot
	s.saves++
	return nil
}

// fakeAuditStore collects sync audit entries.
type fakeAuditStore struct {
	mu      sync.Mutex
	entries []*models.SyncAuditEntry
}

func (s *fakeAuditStore) RecordSync(entry *models.SyncAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeAuditStore) byOutcome(outcome models.SyncOutcome) []*models.SyncAuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*models.SyncAuditEntry
	for _, entry := range s.entries {
		if entry.Outcome == outcome {
			matched = append(matched, entry)
		}
	}
	return matched
}
