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

func newTestAppleMusic(t *testing.T, handler http.Handler) *AppleMusicCatalog {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	creds := &Credentials{AccessToken: "dev-token", SecondaryToken: "user-token"}
	catalog, err := NewAppleMusicCatalog(creds, "us", newTestClient())
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	catalog.baseURL = server.URL

	return catalog
}

func TestNewAppleMusicCatalog(t *testing.T) {
	t.Run("requires developer token", func(t *testing.T) {
		_, err := NewAppleMusicCatalog(&Credentials{SecondaryToken: "user"}, "us", nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected missing credentials, got %v", err)
		}
	})

	t.Run("requires user token", func(t *testing.T) {
		_, err := NewAppleMusicCatalog(&Credentials{AccessToken: "dev"}, "us", nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected missing credentials, got %v", err)
		}
	})

	t.Run("defaults the storefront", func(t *testing.T) {
		creds := &Credentials{AccessToken: "dev", SecondaryToken: "user"}
		catalog, err := NewAppleMusicCatalog(creds, "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if catalog.storefront != "us" {
			t.Errorf("expected default storefront us, got %s", catalog.storefront)
		}
	})
}

func TestAppleMusicHeaders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/us/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer dev-token" {
			t.Errorf("missing developer token header")
		}
		if r.Header.Get("Music-User-Token") != "user-token" {
			t.Errorf("missing user token header")
		}
		w.Write([]byte(`{"results": {}}`))
	})

	catalog := newTestAppleMusic(t, mux)
	if _, err := catalog.SearchCatalog(context.Background(), "anything", SearchAlbums); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAppleMusicSearchCatalog(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/us/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("types"); got != "songs" {
			t.Errorf("expected songs search, got types %q", got)
		}
		w.Write([]byte(`{"results": {"songs": {"data": [
			{"id": "s1", "type": "songs", "attributes": {"name": "So What", "artistName": "Miles Davis"}}
		]}}}`))
	})

	catalog := newTestAppleMusic(t, mux)
	candidates, err := catalog.SearchCatalog(context.Background(), "so what", SearchTracks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].ID != "s1" || candidates[0].Name != "So What" {
		t.Errorf("unexpected candidate: %+v", candidates[0])
	}
}

func TestAppleMusicGetItemsByCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/us/albums", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter[upc]"); got != "111,222" {
			t.Errorf("expected upc filter 111,222, got %q", got)
		}
		w.Write([]byte(`{"data": [
			{"id": "al1", "type": "albums", "attributes": {"name": "Found", "upc": "111"}}
		]}`))
	})

	catalog := newTestAppleMusic(t, mux)
	found, err := catalog.GetItemsByCode(context.Background(), SearchAlbums, []string{"111", "222"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(found) != 1 || found["111"] != "al1" {
		t.Errorf("expected 111 -> al1 only, got %v", found)
	}
}

func TestAppleMusicCheckLibraryMembership(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/library/albums", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			{"id": "lib.1", "type": "library-albums", "attributes": {"name": "Owned", "playParams": {"catalogId": "al1"}}}
		]}`))
	})

	catalog := newTestAppleMusic(t, mux)
	owned, err := catalog.CheckLibraryMembership(context.Background(), SearchAlbums, []string{"al1", "al2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !owned["al1"] {
		t.Errorf("expected al1 owned")
	}
	if owned["al2"] {
		t.Errorf("expected al2 not owned")
	}
}

func TestAppleMusicCreatePlaylist(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/library/playlists", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Attributes.Name != "Road Trip" {
			t.Errorf("expected playlist name Road Trip, got %q", body.Attributes.Name)
		}
		w.Write([]byte(`{"data": [{"id": "p.1", "type": "library-playlists", "attributes": {"name": "Road Trip"}}]}`))
	})

	catalog := newTestAppleMusic(t, mux)
	id, err := catalog.CreatePlaylist(context.Background(), "Road Trip", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "p.1" {
		t.Errorf("expected playlist id p.1, got %s", id)
	}
}

func TestAppleMusicAddTracksToPlaylist(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/library/playlists/p.1/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data []appleTrackRef `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if len(body.Data) != 2 || body.Data[0].ID != "s1" || body.Data[0].Type != "songs" {
			t.Errorf("unexpected track refs: %+v", body.Data)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	catalog := newTestAppleMusic(t, mux)
	if err := catalog.AddTracksToPlaylist(context.Background(), "p.1", []string{"s1", "s2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAppleMusicGetLibrary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/library/albums", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			{"id": "lib.1", "type": "library-albums", "attributes": {
				"name": "Kind of Blue", "artistName": "Miles Davis",
				"trackCount": 5, "upc": "111",
				"playParams": {"catalogId": "al1"}
			}}
		]}`))
	})
	mux.HandleFunc("/me/library/playlists", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			{"id": "p.1", "type": "library-playlists", "attributes": {"name": "Focus", "trackCount": 12}}
		]}`))
	})

	catalog := newTestAppleMusic(t, mux)
	snapshot, err := catalog.GetLibrary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snapshot.Albums) != 1 || snapshot.Albums[0].ID != "al1" {
		t.Errorf("expected library album to carry its catalog id: %+v", snapshot.Albums)
	}
	if len(snapshot.Playlists) != 1 || snapshot.Playlists[0].Name != "Focus" {
		t.Errorf("unexpected playlists: %+v", snapshot.Playlists)
	}
}
