package models

import (
	"fmt"
	"time"
)

// ItemKind distinguishes the two transferable catalog item types.
type ItemKind string

const (
	KindAlbum    ItemKind = "album"
	KindPlaylist ItemKind = "playlist"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	return k == KindAlbum || k == KindPlaylist
}

// TransferStatus is the lifecycle of a persisted transfer record.
type TransferStatus string

const (
	StatusPending    TransferStatus = "pending"
	StatusInProgress TransferStatus = "in_progress"
	StatusSuccess    TransferStatus = "success"
	StatusFailed     TransferStatus = "failed"
)

// Terminal reports whether s is a final status. Records in a terminal
// status are append-only and must never be updated again.
func (s TransferStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Track represents a music track from any service.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration,omitempty"` // Duration in seconds
	ISRC     string `json:"isrc,omitempty"`     // International Standard Recording Code for matching
}

// Album represents an album in a user's library.
type Album struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	UPC        string `json:"upc,omitempty"` // Universal Product Code for matching
	TrackCount int    `json:"track_count,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// Playlist represents a music playlist from any service.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count,omitempty"`
	ArtworkURL  string `json:"artwork_url,omitempty"`
	Public      bool   `json:"public,omitempty"`
}

// LibrarySnapshot is a point-in-time capture of a user's library for one
// service. Neither slice is mutated after capture.
type LibrarySnapshot struct {
	Albums     []Album    `json:"albums"`
	Playlists  []Playlist `json:"playlists"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Total returns the number of items in the snapshot.
func (s *LibrarySnapshot) Total() int {
	return len(s.Albums) + len(s.Playlists)
}

// SyncStats summarizes the difference between two library snapshots.
type SyncStats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// TransferRecord is the persisted audit row for one cross-service transfer.
//
// Created at transfer start, updated at each milestone, never mutated after
// a terminal status is written.
type TransferRecord struct {
	ID                 string
	Sequence           int
	UserID             string
	SourceService      string
	DestinationService string
	ItemKind           ItemKind
	SourceItemID       string
	DestinationItemID  string
	Status             TransferStatus
	Error              string
	Message            string
	CreatedAt          time.Time
	CompletedAt        *time.Time
}

// Validate checks that the record carries the fields every row requires.
func (r *TransferRecord) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("transfer record missing user id")
	}
	if r.SourceService == "" || r.DestinationService == "" {
		return fmt.Errorf("transfer record missing service names")
	}
	if !r.ItemKind.Valid() {
		return fmt.Errorf("invalid item kind: %q", r.ItemKind)
	}
	if r.SourceItemID == "" {
		return fmt.Errorf("transfer record missing source item id")
	}
	return nil
}

// SyncOutcome labels a sync audit row.
type SyncOutcome string

const (
	SyncOutcomeSuccess   SyncOutcome = "success"
	SyncOutcomeFailed    SyncOutcome = "failed"
	SyncOutcomeExhausted SyncOutcome = "exhausted"
)

// SyncAuditEntry is the persisted outcome of a single sync attempt.
type SyncAuditEntry struct {
	ID        string
	Sequence  int
	UserID    string
	Service   string
	Outcome   SyncOutcome
	Detail    string
	Stats     SyncStats
	CreatedAt time.Time
}
