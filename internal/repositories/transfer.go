package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/shared"
)

// TransferRepository persists [models.TransferRecord] rows.
//
// History is append-only: once a row reaches a terminal status (success,
// failed) Update refuses to touch it again.
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new TransferRepository with the given
// database connection.
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a new transfer row with a generated sequence. The record's
// ID must already be set by the caller.
func (r *TransferRepository) Create(record *models.TransferRecord) error {
	if record.ID == "" {
		record.ID = shared.GenerateID()
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "transfers")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	record.Sequence = sequence

	if record.Status == "" {
		record.Status = models.StatusPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transfers (id, sequence, user_id, source_service, destination_service, item_kind, source_item_id, destination_item_id, status, error, message, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		record.ID,
		record.Sequence,
		record.UserID,
		record.SourceService,
		record.DestinationService,
		string(record.ItemKind),
		record.SourceItemID,
		record.DestinationItemID,
		string(record.Status),
		record.Error,
		record.Message,
		record.CreatedAt,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	return nil
}

// Update writes the record's mutable fields. Rows already in a terminal
// status are left untouched and the call fails.
func (r *TransferRepository) Update(record *models.TransferRecord) error {
	var current string
	err := r.db.QueryRow("SELECT status FROM transfers WHERE id = ?", record.ID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: transfer %s", shared.ErrItemNotFound, record.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to read transfer status: %w", err)
	}
	if models.TransferStatus(current).Terminal() {
		return fmt.Errorf("transfer %s already finished with status %s", record.ID, current)
	}

	query := `
		UPDATE transfers
		SET destination_item_id = ?, status = ?, error = ?, message = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		record.DestinationItemID,
		string(record.Status),
		record.Error,
		record.Message,
		record.CompletedAt,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: transfer %s", shared.ErrItemNotFound, record.ID)
	}

	return nil
}

// Get retrieves a single transfer by id.
func (r *TransferRepository) Get(id string) (*models.TransferRecord, error) {
	query := `
		SELECT id, sequence, user_id, source_service, destination_service, item_kind, source_item_id, destination_item_id, status, error, message, created_at, completed_at
		FROM transfers
		WHERE id = ?
	`

	record, err := scanTransfer(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: transfer %s", shared.ErrItemNotFound, id)
	}
	return record, err
}

// ListByUser returns a user's transfers, newest first, capped at limit.
// A non-positive limit returns everything.
func (r *TransferRepository) ListByUser(userID string, limit int) ([]*models.TransferRecord, error) {
	query := `
		SELECT id, sequence, user_id, source_service, destination_service, item_kind, source_item_id, destination_item_id, status, error, message, created_at, completed_at
		FROM transfers
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
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var records []*models.TransferRecord
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*models.TransferRecord, error) {
	var record models.TransferRecord
	var kind, status string
	var destinationID, errMsg, message sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.Sequence,
		&record.UserID,
		&record.SourceService,
		&record.DestinationService,
		&kind,
		&record.SourceItemID,
		&destinationID,
		&status,
		&errMsg,
		&message,
		&record.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ItemKind = models.ItemKind(kind)
	record.Status = models.TransferStatus(status)
	record.DestinationItemID = destinationID.String
	record.Error = errMsg.String
	record.Message = message.String
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	return &record, nil
}
