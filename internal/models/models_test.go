package models

import (
	"strings"
	"testing"
)

func TestItemKind(t *testing.T) {
	tc := []struct {
		kind  ItemKind
		valid bool
	}{
		{KindAlbum, true},
		{KindPlaylist, true},
		{ItemKind("track"), false},
		{ItemKind(""), false},
	}

	for _, tt := range tc {
		if got := tt.kind.Valid(); got != tt.valid {
			t.Errorf("ItemKind(%q).Valid() = %v, want %v", tt.kind, got, tt.valid)
		}
	}
}

func TestTransferStatus(t *testing.T) {
	tc := []struct {
		status   TransferStatus
		terminal bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusSuccess, true},
		{StatusFailed, true},
	}

	for _, tt := range tc {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("TransferStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestLibrarySnapshotTotal(t *testing.T) {
	snapshot := &LibrarySnapshot{
		Albums:    []Album{{ID: "a1"}, {ID: "a2"}},
		Playlists: []Playlist{{ID: "p1"}},
	}

	if snapshot.Total() != 3 {
		t.Errorf("expected total 3, got %d", snapshot.Total())
	}

	empty := &LibrarySnapshot{}
	if empty.Total() != 0 {
		t.Errorf("expected total 0, got %d", empty.Total())
	}
}

func TestTransferRecordValidate(t *testing.T) {
	valid := func() *TransferRecord {
		return &TransferRecord{
			UserID:             "u1",
			SourceService:      "spotify",
			DestinationService: "applemusic",
			ItemKind:           KindAlbum,
			SourceItemID:       "item1",
		}
	}

	t.Run("valid record", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	tc := []struct {
		name    string
		mutate  func(*TransferRecord)
		wantErr string
	}{
		{
			name:    "missing user id",
			mutate:  func(r *TransferRecord) { r.UserID = "" },
			wantErr: "user id",
		},
		{
			name:    "missing source service",
			mutate:  func(r *TransferRecord) { r.SourceService = "" },
			wantErr: "service names",
		},
		{
			name:    "missing destination service",
			mutate:  func(r *TransferRecord) { r.DestinationService = "" },
			wantErr: "service names",
		},
		{
			name:    "invalid item kind",
			mutate:  func(r *TransferRecord) { r.ItemKind = "track" },
			wantErr: "item kind",
		},
		{
			name:    "missing source item id",
			mutate:  func(r *TransferRecord) { r.SourceItemID = "" },
			wantErr: "source item id",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			record := valid()
			tt.mutate(record)

			err := record.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
