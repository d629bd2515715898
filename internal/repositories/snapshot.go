package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mirrorwave/tunesync/internal/models"
)

// SnapshotRepository stores the latest library snapshot per (user, service)
// as a JSON payload. Only one row exists per pair; saving replaces it.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given
// database connection.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Get returns the stored snapshot, or (nil, nil) when the pair was never
// synced.
func (r *SnapshotRepository) Get(userID, service string) (*models.LibrarySnapshot, error) {
	var payload string
	err := r.db.QueryRow(
		"SELECT payload FROM snapshots WHERE user_id = ? AND service = ?",
		userID, service,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var snapshot models.LibrarySnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}

	return &snapshot, nil
}

// Save upserts the snapshot for a (user, service) pair.
func (r *SnapshotRepository) Save(userID, service string, snapshot *models.LibrarySnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `
		INSERT INTO snapshots (user_id, service, payload, captured_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, service) DO UPDATE SET payload = excluded.payload, captured_at = excluded.captured_at
	`

	if _, err := r.db.Exec(query, userID, service, string(payload), snapshot.CapturedAt); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}
