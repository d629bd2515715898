package formatter

import (
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mirrorwave/tunesync/internal/models"
)

func recordFixtures() []*models.TransferRecord {
	completed := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	return []*models.TransferRecord{
		{
			ID:                 "tr1",
			UserID:             "u1",
			SourceService:      "spotify",
			DestinationService: "applemusic",
			ItemKind:           models.KindPlaylist,
			SourceItemID:       "pl1",
			DestinationItemID:  "dest-pl1",
			Status:             models.StatusSuccess,
			Message:            "added 7 of 10 tracks",
			CreatedAt:          completed.Add(-time.Minute),
			CompletedAt:        &completed,
		},
		{
			ID:                 "tr2",
			UserID:             "u1",
			SourceService:      "spotify",
			DestinationService: "applemusic",
			ItemKind:           models.KindAlbum,
			SourceItemID:       "al1",
			Status:             models.StatusFailed,
			Error:              "failed to create destination playlist",
			CreatedAt:          completed,
		},
	}
}

func TestTransferHistoryCSV(t *testing.T) {
	data, err := TransferHistoryCSV(recordFixtures())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][6] != "Status" {
		t.Errorf("unexpected headers: %v", rows[0])
	}
	if rows[1][0] != "tr1" || rows[1][6] != "success" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[2][8] != "failed to create destination playlist" {
		t.Errorf("expected error column populated: %v", rows[2])
	}
}

func TestTransferHistoryText(t *testing.T) {
	t.Run("lists records with status markers", func(t *testing.T) {
		text := string(TransferHistoryText(recordFixtures()))

		if !strings.Contains(text, "✓ playlist spotify -> applemusic") {
			t.Errorf("missing success line: %s", text)
		}
		if !strings.Contains(text, "✗ album") {
			t.Errorf("missing failure marker: %s", text)
		}
		if !strings.Contains(text, "added 7 of 10 tracks") {
			t.Errorf("missing message: %s", text)
		}
	})

	t.Run("handles empty history", func(t *testing.T) {
		text := string(TransferHistoryText(nil))
		if !strings.Contains(text, "No transfers") {
			t.Errorf("unexpected empty output: %s", text)
		}
	})
}

func TestSyncHistoryText(t *testing.T) {
	entries := []*models.SyncAuditEntry{
		{
			Service:   "spotify",
			Outcome:   models.SyncOutcomeSuccess,
			Stats:     models.SyncStats{Added: 3, Removed: 1, Total: 42},
			CreatedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			Service:   "applemusic",
			Outcome:   models.SyncOutcomeExhausted,
			Detail:    "sync job exceeded max retries",
			CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	text := string(SyncHistoryText(entries))
	if !strings.Contains(text, "+3 -1 ~0 (total 42)") {
		t.Errorf("missing stats line: %s", text)
	}
	if !strings.Contains(text, "[exhausted] applemusic") {
		t.Errorf("missing exhausted entry: %s", text)
	}
}

func TestSnapshotText(t *testing.T) {
	snapshot := &models.LibrarySnapshot{
		Albums:    []models.Album{{ID: "al1", Name: "Kind of Blue", Artist: "Miles Davis", TrackCount: 5}},
		Playlists: []models.Playlist{{ID: "pl1", Name: "Focus", TrackCount: 12}},
	}

	text := string(SnapshotText(snapshot))
	if !strings.Contains(text, "Miles Davis - Kind of Blue (5 tracks)") {
		t.Errorf("missing album line: %s", text)
	}
	if !strings.Contains(text, "Focus (12 tracks)") {
		t.Errorf("missing playlist line: %s", text)
	}
	if !strings.Contains(text, "2 items") {
		t.Errorf("missing total: %s", text)
	}
}

func TestWriteTransferHistoryCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")

	written, err := WriteTransferHistoryCSV(recordFixtures(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != path {
		t.Errorf("expected path %s, got %s", path, written)
	}
}
