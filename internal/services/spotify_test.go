package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mirrorwave/tunesync/internal/shared"
)

func newTestSpotify(t *testing.T, handler http.Handler) *SpotifyCatalog {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	catalog, err := NewSpotifyCatalog(&Credentials{AccessToken: "token"}, newTestClient())
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	catalog.baseURL = server.URL

	return catalog
}

func TestNewSpotifyCatalog(t *testing.T) {
	t.Run("requires access token", func(t *testing.T) {
		_, err := NewSpotifyCatalog(&Credentials{}, nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected missing credentials, got %v", err)
		}
	})

	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewSpotifyCatalog(nil, nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected missing credentials, got %v", err)
		}
	})
}

func TestSpotifySearchCatalog(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != "album" {
			t.Errorf("expected album search, got type %q", got)
		}
		w.Write([]byte(`{"albums": {"items": [
			{"id": "al1", "name": "Blue Train", "artists": [{"name": "John Coltrane"}]},
			{"id": "al2", "name": "Giant Steps", "artists": [{"name": "John Coltrane"}]}
		]}}`))
	})

	catalog := newTestSpotify(t, mux)
	candidates, err := catalog.SearchCatalog(context.Background(), "coltrane", SearchAlbums)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].ID != "al1" || candidates[0].Artist != "John Coltrane" {
		t.Errorf("unexpected first candidate: %+v", candidates[0])
	}
}

func TestSpotifyGetItemsByCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "upc:111":
			w.Write([]byte(`{"albums": {"items": [{"id": "al1", "name": "Found"}]}}`))
		default:
			w.Write([]byte(`{"albums": {"items": []}}`))
		}
	})

	catalog := newTestSpotify(t, mux)
	found, err := catalog.GetItemsByCode(context.Background(), SearchAlbums, []string{"111", "222"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(found) != 1 {
		t.Fatalf("expected 1 resolved code, got %d", len(found))
	}
	if found["111"] != "al1" {
		t.Errorf("expected 111 -> al1, got %v", found)
	}
}

func TestSpotifyCheckLibraryMembership(t *testing.T) {
	t.Run("maps flags to ids", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/me/albums/contains", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[true, false]`))
		})

		catalog := newTestSpotify(t, mux)
		owned, err := catalog.CheckLibraryMembership(context.Background(), SearchAlbums, []string{"al1", "al2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !owned["al1"] || owned["al2"] {
			t.Errorf("unexpected membership map: %v", owned)
		}
	})

	t.Run("rejects misaligned responses", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/me/albums/contains", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[true]`))
		})

		catalog := newTestSpotify(t, mux)
		_, err := catalog.CheckLibraryMembership(context.Background(), SearchAlbums, []string{"al1", "al2"})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected api error, got %v", err)
		}
	})
}

func TestSpotifyCreatePlaylist(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "user1"}`))
	})
	mux.HandleFunc("/users/user1/playlists", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name   string `json:"name"`
			Public bool   `json:"public"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Name != "Road Trip" {
			t.Errorf("expected playlist name Road Trip, got %q", body.Name)
		}
		if body.Public {
			t.Errorf("new playlists should be private")
		}
		w.Write([]byte(`{"id": "pl1", "name": "Road Trip"}`))
	})

	catalog := newTestSpotify(t, mux)
	id, err := catalog.CreatePlaylist(context.Background(), "Road Trip", "summer", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "pl1" {
		t.Errorf("expected playlist id pl1, got %s", id)
	}
}

func TestSpotifyAddTracksToPlaylist(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if len(body.URIs) != 2 || body.URIs[0] != "spotify:track:t1" {
			t.Errorf("unexpected uris: %v", body.URIs)
		}
		w.Write([]byte(`{"snapshot_id": "s"}`))
	})

	catalog := newTestSpotify(t, mux)
	if err := catalog.AddTracksToPlaylist(context.Background(), "pl1", []string{"t1", "t2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSpotifyGetLibrary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/albums", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [{"album": {
			"id": "al1", "name": "Kind of Blue",
			"artists": [{"name": "Miles Davis"}],
			"total_tracks": 5,
			"external_ids": {"upc": "111"}
		}}], "next": null}`))
	})
	mux.HandleFunc("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [{"id": "pl1", "name": "Focus", "tracks": {"total": 12}}], "next": null}`))
	})

	catalog := newTestSpotify(t, mux)
	snapshot, err := catalog.GetLibrary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snapshot.Albums) != 1 || snapshot.Albums[0].UPC != "111" {
		t.Errorf("unexpected albums: %+v", snapshot.Albums)
	}
	if len(snapshot.Playlists) != 1 || snapshot.Playlists[0].TrackCount != 12 {
		t.Errorf("unexpected playlists: %+v", snapshot.Playlists)
	}
	if snapshot.Total() != 2 {
		t.Errorf("expected 2 items total, got %d", snapshot.Total())
	}
}
