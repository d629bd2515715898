package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/services"
	"github.com/mirrorwave/tunesync/internal/shared"
)

// TransferStore persists transfer audit rows. The initial row must be
// written before any destination-side mutation so every failure can be
// attributed to a record.
type TransferStore interface {
	Create(record *models.TransferRecord) error
	Update(record *models.TransferRecord) error
}

// TransferRequest is the immutable input for one transfer. The orchestrator
// never mutates it.
type TransferRequest struct {
	UserID      string
	Kind        models.ItemKind
	SourceID    string
	Name        string
	Artist      string
	UPC         string
	Description string
	ArtworkURL  string
}

func (r *TransferRequest) validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: item kind %q", shared.ErrInvalidArgument, r.Kind)
	}
	if r.SourceID == "" {
		return fmt.Errorf("%w: source item id", shared.ErrMissingArgument)
	}
	return nil
}

// TransferResult summarizes a completed transfer.
type TransferResult struct {
	Record        *models.TransferRecord
	DestinationID string
	Requested     int
	Matched       int
	Added         int
	AlreadyOwned  bool
	Message       string
}

// Orchestrator drives one transfer at a time through the fetch, create,
// search and add stages, persisting a [models.TransferRecord] at start and
// at the terminal stage and emitting a [StageUpdate] on every transition.
type Orchestrator struct {
	source      services.Catalog
	destination services.Catalog
	matcher     *Matcher
	records     TransferStore
	logger      *log.Logger
}

func NewOrchestrator(source, destination services.Catalog, records TransferStore, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Orchestrator{
		source:      source,
		destination: destination,
		matcher:     NewMatcher(destination, logger),
		records:     records,
		logger:      logger,
	}
}

// Run executes a transfer to a terminal stage. Progress events flow through
// the optional progress channel; the result (or error) is the final word.
// Cancellation is honored at stage boundaries: once a stage's remote work
// has started it runs to completion, then the next boundary observes ctx.
func (o *Orchestrator) Run(ctx context.Context, req TransferRequest, progress chan<- StageUpdate) (*TransferResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	record := &models.TransferRecord{
		ID:                 shared.GenerateID(),
		UserID:             req.UserID,
		SourceService:      o.source.Name(),
		DestinationService: o.destination.Name(),
		ItemKind:           req.Kind,
		SourceItemID:       req.SourceID,
		Status:             models.StatusPending,
		CreatedAt:          time.Now().UTC(),
	}
	if err := o.records.Create(record); err != nil {
		return nil, fmt.Errorf("failed to persist transfer record: %w", err)
	}

	record.Status = models.StatusInProgress
	if err := o.records.Update(record); err != nil {
		return nil, fmt.Errorf("failed to persist transfer record: %w", err)
	}

	o.logger.Info("transfer started",
		"id", record.ID, "kind", req.Kind,
		"source", record.SourceService, "destination", record.DestinationService)

	if req.Kind == models.KindAlbum {
		return o.transferAlbum(ctx, req, record, progress)
	}
	return o.transferPlaylist(ctx, req, record, progress)
}

func (o *Orchestrator) transferAlbum(ctx context.Context, req TransferRequest, record *models.TransferRecord, progress chan<- StageUpdate) (*TransferResult, error) {
	emit(progress, StageUpdate{Stage: StageFetching, Progress: progressFetching, Message: "fetching album detail"})
	if err := ctx.Err(); err != nil {
		return nil, o.fail(record, progress, err)
	}

	tracks, err := o.source.GetAlbumTracks(ctx, req.SourceID)
	if err != nil {
		return nil, o.fail(record, progress, fmt.Errorf("failed to fetch source album: %w", err))
	}

	emit(progress, StageUpdate{Stage: StageSearching, Progress: progressSearching, Message: "matching album on " + o.destination.Name()})
	if err := ctx.Err(); err != nil {
		return nil, o.fail(record, progress, err)
	}

	album := models.Album{ID: req.SourceID, Name: req.Name, Artist: req.Artist, UPC: req.UPC, TrackCount: len(tracks)}
	candidate, err := o.matcher.MatchAlbum(ctx, album)
	if err != nil {
		return nil, o.fail(record, progress, fmt.Errorf("failed to search destination catalog: %w", err))
	}
	if candidate == nil {
		return nil, o.fail(record, progress, fmt.Errorf("%w: no destination match for %q", shared.ErrAlbumNotFound, req.Name))
	}

	owned, err := o.destination.CheckLibraryMembership(ctx, services.SearchAlbums, []string{candidate.DestinationID})
	if err != nil {
		return nil, o.fail(record, progress, fmt.Errorf("failed to check library membership: %w", err))
	}

	result := &TransferResult{
		Record:        record,
		DestinationID: candidate.DestinationID,
		Requested:     1,
		Matched:       1,
	}

	if owned[candidate.DestinationID] {
		// Already in the destination library: complete without issuing adds.
		result.AlreadyOwned = true
		result.Message = fmt.Sprintf("%q already in library (matched by %s)", req.Name, candidate.MatchedBy)
		return result, o.complete(record, progress, result)
	}

	emit(progress, StageUpdate{Stage: StageAdding, Progress: progressAdding, Message: "saving album to library"})
	if err := ctx.Err(); err != nil {
		return nil, o.fail(record, progress, err)
	}

	if err := o.destination.AddAlbumsToLibrary(ctx, []string{candidate.DestinationID}); err != nil {
		return nil, o.fail(record, progress, fmt.Errorf("failed to save album: %w", err))
	}

	result.Added = 1
	result.Message = fmt.Sprintf("added %q to library (matched by %s)", req.Name, candidate.MatchedBy)
	return result, o.complete(record, progress, result)
}

func (o *Orchestrator) transferPlaylist(ctx context.Context, req TransferRequest, record *models.TransferRecord, progress chan<- StageUpdate) (*TransferResult, error) {
	emit(progress, StageUpdate{Stage: StageFetching, Progress: progressFetching, Message: "fetching playlist tracks"})
	if err := ctx.Err(); err != nil {
		return nil, o.fail(record, progress, err)
	}

	tracks, err := o.source.GetPlaylistTracks(ctx, req.SourceID)
	if err != nil {
		return nil, o.fail(record, progress, fmt.Errorf("failed to fetch source playlist: %w", err))
	}

	emit(progress, StageUpdate{Stage: StageCreating, Progress: progressCreating, Message: "creating destination playlist"})
	if err := ctx.Err(); err != nil {
		return nil, o.fail(record, progress, err)
	}

	destinationID, err := o.destination.CreatePlaylist(ctx, req.Name, req.Description, req.ArtworkURL)
	if err != nil {
		return nil, o.fail(record, progress, fmt.Errorf("failed to create destination playlist: %w", err))
	}
	record.DestinationItemID = destinationID

	emit(progress, StageUpdate{Stage: StageSearching, Progress: progressSearching,
		Message: fmt.Sprintf("matching %d tracks on %s", len(tracks), o.destination.Name())})
	if err := ctx.Err(); err != nil {
		return nil, o.fail(record, progress, err)
	}

	candidates := o.matcher.MatchTracks(ctx, tracks)

	// Matched ids in source order; unmatched tracks are skipped, not fatal.
	matched := make([]string, 0, len(tracks))
	for _, candidate := range candidates {
		if candidate != nil {
			matched = append(matched, candidate.DestinationID)
		}
	}

	emit(progress, StageUpdate{Stage: StageAdding, Progress: progressAdding,
		Message: fmt.Sprintf("adding %d of %d tracks", len(matched), len(tracks))})
	if err := ctx.Err(); err != nil {
		return nil, o.fail(record, progress, err)
	}

	added, failedBatches, totalBatches := 0, 0, 0
	for _, batch := range services.Batches(matched, o.destination.Limits().Add) {
		totalBatches++
		if err := o.destination.AddTracksToPlaylist(ctx, destinationID, batch); err != nil {
			failedBatches++
			o.logger.Warn("track batch failed", "playlist", destinationID, "size", len(batch), "error", err)
			continue
		}
		added += len(batch)
	}
	if totalBatches > 0 && failedBatches == totalBatches {
		return nil, o.fail(record, progress, fmt.Errorf("failed to add tracks: all %d batches failed", totalBatches))
	}

	result := &TransferResult{
		Record:        record,
		DestinationID: destinationID,
		Requested:     len(tracks),
		Matched:       len(matched),
		Added:         added,
	}
	result.Message = fmt.Sprintf("added %d of %d tracks", added, len(tracks))
	if failedBatches > 0 {
		result.Message += fmt.Sprintf(" (%d of %d batches failed)", failedBatches, totalBatches)
	}

	return result, o.complete(record, progress, result)
}

// complete writes the single terminal success update for record.
func (o *Orchestrator) complete(record *models.TransferRecord, progress chan<- StageUpdate, result *TransferResult) error {
	now := time.Now().UTC()
	record.Status = models.StatusSuccess
	record.DestinationItemID = result.DestinationID
	record.Message = result.Message
	record.CompletedAt = &now

	if err := o.records.Update(record); err != nil {
		return fmt.Errorf("failed to persist transfer result: %w", err)
	}

	emit(progress, StageUpdate{Stage: StageComplete, Progress: progressComplete, Message: result.Message})
	o.logger.Info("transfer complete", "id", record.ID, "destination_item", result.DestinationID, "message", result.Message)
	return nil
}

// fail writes the terminal failure, attaching the error to the persisted
// record before it propagates so no failure is silent.
func (o *Orchestrator) fail(record *models.TransferRecord, progress chan<- StageUpdate, cause error) error {
	now := time.Now().UTC()
	record.Status = models.StatusFailed
	record.Error = cause.Error()
	record.Message = failureMessage(cause)
	record.CompletedAt = &now

	if err := o.records.Update(record); err != nil {
		o.logger.Error("failed to persist transfer failure", "id", record.ID, "error", err)
	}

	emit(progress, StageUpdate{Stage: StageError, Progress: progressComplete, Message: record.Message, Err: cause})
	o.logger.Error("transfer failed", "id", record.ID, "error", cause)
	return cause
}

// failureMessage distinguishes credential problems, which need user action
// outside the app, from everything else.
func failureMessage(err error) string {
	if errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrAuthFailed) ||
		errors.Is(err, shared.ErrNotConnected) ||
		errors.Is(err, shared.ErrMissingCredentials) ||
		errors.Is(err, shared.ErrTokenExpired) {
		return "authentication failed, reconnect your account"
	}
	return "transfer failed, try again"
}
