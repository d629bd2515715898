// package formatter renders transfer history, sync history and library
// snapshots for CLI output and file export (plain text, CSV, JSON).
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mirrorwave/tunesync/internal/models"
)

const timeLayout = time.RFC3339

// TransferHistoryCSV renders transfer records as CSV with one row per
// transfer, newest-first in the order given.
func TransferHistoryCSV(records []*models.TransferRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Kind", "Source", "Destination", "SourceItem", "DestinationItem", "Status", "Message", "Error", "CreatedAt", "CompletedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, record := range records {
		completed := ""
		if record.CompletedAt != nil {
			completed = record.CompletedAt.Format(timeLayout)
		}
		row := []string{
			record.ID,
			string(record.ItemKind),
			record.SourceService,
			record.DestinationService,
			record.SourceItemID,
			record.DestinationItemID,
			string(record.Status),
			record.Message,
			record.Error,
			record.CreatedAt.Format(timeLayout),
			completed,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// TransferHistoryText renders transfer records as a readable listing.
func TransferHistoryText(records []*models.TransferRecord) []byte {
	var buf bytes.Buffer

	if len(records) == 0 {
		buf.WriteString("No transfers recorded.\n")
		return buf.Bytes()
	}

	for i, record := range records {
		marker := statusMarker(record.Status)
		buf.WriteString(fmt.Sprintf("%d. %s %s %s -> %s (%s)\n",
			i+1, marker, record.ItemKind, record.SourceService, record.DestinationService, record.SourceItemID))
		if record.Message != "" {
			buf.WriteString(fmt.Sprintf("   %s\n", record.Message))
		}
		if record.Error != "" {
			buf.WriteString(fmt.Sprintf("   error: %s\n", record.Error))
		}
		buf.WriteString(fmt.Sprintf("   started %s\n", record.CreatedAt.Format(timeLayout)))
	}

	return buf.Bytes()
}

// SyncHistoryText renders sync audit entries as a readable listing.
func SyncHistoryText(entries []*models.SyncAuditEntry) []byte {
	var buf bytes.Buffer

	if len(entries) == 0 {
		buf.WriteString("No syncs recorded.\n")
		return buf.Bytes()
	}

	for i, entry := range entries {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s at %s\n",
			i+1, entry.Outcome, entry.Service, entry.CreatedAt.Format(timeLayout)))
		if entry.Outcome == models.SyncOutcomeSuccess {
			buf.WriteString(fmt.Sprintf("   +%d -%d ~%d (total %d)\n",
				entry.Stats.Added, entry.Stats.Removed, entry.Stats.Updated, entry.Stats.Total))
		}
		if entry.Detail != "" {
			buf.WriteString(fmt.Sprintf("   %s\n", entry.Detail))
		}
	}

	return buf.Bytes()
}

// SnapshotText renders a library snapshot as a readable listing of albums
// and playlists.
func SnapshotText(snapshot *models.LibrarySnapshot) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Library snapshot (%d items", snapshot.Total()))
	if !snapshot.CapturedAt.IsZero() {
		buf.WriteString(", captured " + snapshot.CapturedAt.Format(timeLayout))
	}
	buf.WriteString(")\n\n")

	if len(snapshot.Albums) > 0 {
		buf.WriteString(fmt.Sprintf("Albums (%d):\n", len(snapshot.Albums)))
		for i, album := range snapshot.Albums {
			buf.WriteString(fmt.Sprintf("%d. %s - %s", i+1, album.Artist, album.Name))
			if album.TrackCount > 0 {
				buf.WriteString(" (" + strconv.Itoa(album.TrackCount) + " tracks)")
			}
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	if len(snapshot.Playlists) > 0 {
		buf.WriteString(fmt.Sprintf("Playlists (%d):\n", len(snapshot.Playlists)))
		for i, playlist := range snapshot.Playlists {
			buf.WriteString(fmt.Sprintf("%d. %s", i+1, playlist.Name))
			if playlist.TrackCount > 0 {
				buf.WriteString(" (" + strconv.Itoa(playlist.TrackCount) + " tracks)")
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes()
}

// WriteTransferHistoryCSV exports transfer records to a CSV file.
// The path defaults to transfers.csv.
func WriteTransferHistoryCSV(records []*models.TransferRecord, path string) (string, error) {
	if path == "" {
		path = "transfers.csv"
	}

	data, err := TransferHistoryCSV(records)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return path, nil
}

func statusMarker(status models.TransferStatus) string {
	switch status {
	case models.StatusSuccess:
		return "✓"
	case models.StatusFailed:
		return "✗"
	default:
		return "…"
	}
}
