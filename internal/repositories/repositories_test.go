package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func transferFixture() *models.TransferRecord {
	return &models.TransferRecord{
		UserID:             "u1",
		SourceService:      "spotify",
		DestinationService: "applemusic",
		ItemKind:           models.KindPlaylist,
		SourceItemID:       "pl1",
		Status:             models.StatusPending,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	first, err := NextSequence(db, "transfers")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}
	second, err := NextSequence(db, "transfers")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	if first != 1 || second != 2 {
		t.Errorf("expected sequences 1, 2; got %d, %d", first, second)
	}
}

func TestTransferRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTransferRepository(db)

		record := transferFixture()
		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		if record.ID == "" {
			t.Error("transfer ID should be set after creation")
		}
		if record.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", record.Sequence)
		}

		loaded, err := repo.Get(record.ID)
		if err != nil {
			t.Fatalf("failed to load transfer: %v", err)
		}
		if loaded.SourceItemID != "pl1" || loaded.Status != models.StatusPending {
			t.Errorf("unexpected loaded record: %+v", loaded)
		}
	})

	t.Run("Create validates the record", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTransferRepository(db)

		record := transferFixture()
		record.UserID = ""
		if err := repo.Create(record); err == nil {
			t.Error("expected validation failure for missing user id")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTransferRepository(db)

		record := transferFixture()
		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		now := time.Now().UTC()
		record.Status = models.StatusSuccess
		record.DestinationItemID = "dest-pl1"
		record.Message = "added 7 of 10 tracks"
		record.CompletedAt = &now

		if err := repo.Update(record); err != nil {
			t.Fatalf("failed to update transfer: %v", err)
		}

		loaded, err := repo.Get(record.ID)
		if err != nil {
			t.Fatalf("failed to load transfer: %v", err)
		}
		if loaded.Status != models.StatusSuccess || loaded.DestinationItemID != "dest-pl1" {
			t.Errorf("unexpected updated record: %+v", loaded)
		}
		if loaded.CompletedAt == nil {
			t.Error("completed_at should be set")
		}
	})

	t.Run("Update refuses terminal records", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTransferRepository(db)

		record := transferFixture()
		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		now := time.Now().UTC()
		record.Status = models.StatusFailed
		record.Error = "creation failed"
		record.CompletedAt = &now
		if err := repo.Update(record); err != nil {
			t.Fatalf("failed to update transfer: %v", err)
		}

		record.Status = models.StatusSuccess
		if err := repo.Update(record); err == nil {
			t.Error("terminal records must be append-only")
		}

		loaded, err := repo.Get(record.ID)
		if err != nil {
			t.Fatalf("failed to load transfer: %v", err)
		}
		if loaded.Status != models.StatusFailed {
			t.Errorf("terminal status was overwritten: %s", loaded.Status)
		}
	})

	t.Run("ListByUser", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTransferRepository(db)

		for i := 0; i < 3; i++ {
			record := transferFixture()
			record.SourceItemID = "pl" + string(rune('1'+i))
			if err := repo.Create(record); err != nil {
				t.Fatalf("failed to create transfer: %v", err)
			}
		}
		other := transferFixture()
		other.UserID = "u2"
		if err := repo.Create(other); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		records, err := repo.ListByUser("u1", 0)
		if err != nil {
			t.Fatalf("failed to list transfers: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("expected 3 records for u1, got %d", len(records))
		}

		limited, err := repo.ListByUser("u1", 2)
		if err != nil {
			t.Fatalf("failed to list transfers: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected limit 2 respected, got %d", len(limited))
		}
	})
}

func TestSnapshotRepository(t *testing.T) {
	t.Run("Get returns nil for unknown pairs", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSnapshotRepository(db)

		snapshot, err := repo.Get("u1", "spotify")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snapshot != nil {
			t.Errorf("expected nil snapshot, got %+v", snapshot)
		}
	})

	t.Run("Save and reload", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSnapshotRepository(db)

		snapshot := &models.LibrarySnapshot{
			Albums:     []models.Album{{ID: "al1", Name: "Kind of Blue", Artist: "Miles Davis", TrackCount: 5}},
			Playlists:  []models.Playlist{{ID: "pl1", Name: "Focus", TrackCount: 12}},
			CapturedAt: time.Now().UTC().Truncate(time.Second),
		}

		if err := repo.Save("u1", "spotify", snapshot); err != nil {
			t.Fatalf("failed to save snapshot: %v", err)
		}

		loaded, err := repo.Get("u1", "spotify")
		if err != nil {
			t.Fatalf("failed to load snapshot: %v", err)
		}
		if loaded == nil || loaded.Total() != 2 {
			t.Fatalf("unexpected loaded snapshot: %+v", loaded)
		}
		if loaded.Albums[0].Name != "Kind of Blue" {
			t.Errorf("unexpected album: %+v", loaded.Albums[0])
		}
	})

	t.Run("Save replaces the previous snapshot", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSnapshotRepository(db)

		first := &models.LibrarySnapshot{Albums: []models.Album{{ID: "al1", Name: "A"}}, CapturedAt: time.Now().UTC()}
		second := &models.LibrarySnapshot{Albums: []models.Album{{ID: "al2", Name: "B"}}, CapturedAt: time.Now().UTC()}

		if err := repo.Save("u1", "spotify", first); err != nil {
			t.Fatalf("failed to save snapshot: %v", err)
		}
		if err := repo.Save("u1", "spotify", second); err != nil {
			t.Fatalf("failed to replace snapshot: %v", err)
		}

		loaded, err := repo.Get("u1", "spotify")
		if err != nil {
			t.Fatalf("failed to load snapshot: %v", err)
		}
		if len(loaded.Albums) != 1 || loaded.Albums[0].ID != "al2" {
			t.Errorf("expected replacement, got %+v", loaded.Albums)
		}
	})
}

func TestSyncAuditRepository(t *testing.T) {
	t.Run("RecordSync and ListByUser", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSyncAuditRepository(db)

		entries := []*models.SyncAuditEntry{
			{UserID: "u1", Service: "spotify", Outcome: models.SyncOutcomeSuccess, Stats: models.SyncStats{Added: 2, Total: 10}},
			{UserID: "u1", Service: "spotify", Outcome: models.SyncOutcomeFailed, Detail: "transient remote failure"},
			{UserID: "u1", Service: "spotify", Outcome: models.SyncOutcomeExhausted, Detail: "sync job exceeded max retries"},
		}
		for _, entry := range entries {
			if err := repo.RecordSync(entry); err != nil {
				t.Fatalf("failed to record sync: %v", err)
			}
		}

		loaded, err := repo.ListByUser("u1", 0)
		if err != nil {
			t.Fatalf("failed to list sync audit: %v", err)
		}
		if len(loaded) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(loaded))
		}

		var exhausted *models.SyncAuditEntry
		for _, entry := range loaded {
			if entry.Outcome == models.SyncOutcomeExhausted {
				exhausted = entry
			}
		}
		if exhausted == nil || exhausted.Detail == "" {
			t.Errorf("exhausted job must be audited with detail: %+v", exhausted)
		}
	})
}
