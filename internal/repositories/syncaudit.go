package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/shared"
)

// SyncAuditRepository persists the outcome of every sync attempt, so jobs
// dropped after exhausting retries remain visible.
type SyncAuditRepository struct {
	db *sql.DB
}

// NewSyncAuditRepository creates a new SyncAuditRepository with the given
// database connection.
func NewSyncAuditRepository(db *sql.DB) *SyncAuditRepository {
	return &SyncAuditRepository{db: db}
}

// RecordSync inserts one audit row.
func (r *SyncAuditRepository) RecordSync(entry *models.SyncAuditEntry) error {
	if entry.ID == "" {
		entry.ID = shared.GenerateID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	sequence, err := NextSequence(r.db, "sync_audit")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	entry.Sequence = sequence

	query := `
		INSERT INTO sync_audit (id, sequence, user_id, service, outcome, detail, added, removed, updated, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		entry.ID,
		entry.Sequence,
		entry.UserID,
		entry.Service,
		string(entry.Outcome),
		entry.Detail,
		entry.Stats.Added,
		entry.Stats.Removed,
		entry.Stats.Updated,
		entry.Stats.Total,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync audit entry: %w", err)
	}

	return nil
}

// ListByUser returns a user's sync history, newest first, capped at limit.
// A non-positive limit returns everything.
func (r *SyncAuditRepository) ListByUser(userID string, limit int) ([]*models.SyncAuditEntry, error) {
	query := `
		SELECT id, sequence, user_id, service, outcome, detail, added, removed, updated, total, created_at
		FROM sync_audit
		WHERE user_id = ?
		ORDER BY created_at DESC, sequence DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync audit: %w", err)
	}
	defer rows.Close()

	var entries []*models.SyncAuditEntry
	for rows.Next() {
		var entry models.SyncAuditEntry
		var outcome string
		var detail sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.Sequence,
			&entry.UserID,
			&entry.Service,
			&outcome,
			&detail,
			&entry.Stats.Added,
			&entry.Stats.Removed,
			&entry.Stats.Updated,
			&entry.Stats.Total,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync audit entry: %w", err)
		}

		entry.Outcome = models.SyncOutcome(outcome)
		entry.Detail = detail.String
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
