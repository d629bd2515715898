// Apple Music implementation of [Catalog]
//
// Every call requires two credentials: the developer token (Authorization
// header) and the Music User Token header. Catalog reads go through the
// storefront catalog namespace, library writes through /me/library.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/shared"
)

const (
	appleMusicBaseURL    = "https://api.music.apple.com/v1"
	appleUserTokenHeader = "Music-User-Token"
)

var appleMusicLimits = BatchLimits{
	Search:     25,
	Add:        25,
	Code:       10,
	Membership: 25,
}

type appleArtwork struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type applePlayParams struct {
	ID        string `json:"id"`
	CatalogID string `json:"catalogId"`
}

type appleSongAttributes struct {
	Name             string          `json:"name"`
	ArtistName       string          `json:"artistName"`
	AlbumName        string          `json:"albumName"`
	DurationInMillis int             `json:"durationInMillis"`
	ISRC             string          `json:"isrc"`
	PlayParams       applePlayParams `json:"playParams"`
}

type appleAlbumAttributes struct {
	Name       string          `json:"name"`
	ArtistName string          `json:"artistName"`
	TrackCount int             `json:"trackCount"`
	UPC        string          `json:"upc"`
	Artwork    appleArtwork    `json:"artwork"`
	PlayParams applePlayParams `json:"playParams"`
}

type applePlaylistAttributes struct {
	Name        string       `json:"name"`
	Artwork     appleArtwork `json:"artwork"`
	Description struct {
		Standard string `json:"standard"`
	} `json:"description"`
	TrackCount int  `json:"trackCount"`
	IsPublic   bool `json:"isPublic"`
}

type appleResource[A any] struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes A      `json:"attributes"`
}

type applePage[A any] struct {
	Data []appleResource[A] `json:"data"`
	Next string             `json:"next"`
}

// AppleMusicCatalog implements [Catalog] against the Apple Music API.
type AppleMusicCatalog struct {
	client         *Client
	developerToken string
	userToken      string
	storefront     string
	baseURL        string
}

// NewAppleMusicCatalog creates an Apple Music catalog. Both the developer
// token and the Music User Token must be present; calls never start with a
// partial credential pair.
func NewAppleMusicCatalog(creds *Credentials, storefront string, client *Client) (*AppleMusicCatalog, error) {
	if creds == nil || creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: apple music developer token", shared.ErrMissingCredentials)
	}
	if creds.SecondaryToken == "" {
		return nil, fmt.Errorf("%w: apple music user token", shared.ErrMissingCredentials)
	}
	if storefront == "" {
		storefront = "us"
	}
	if client == nil {
		client = NewClient(ClientOpts{})
	}

	return &AppleMusicCatalog{
		client:         client,
		developerToken: creds.AccessToken,
		userToken:      creds.SecondaryToken,
		storefront:     storefront,
		baseURL:        appleMusicBaseURL,
	}, nil
}

func (a *AppleMusicCatalog) Name() string { return "applemusic" }

func (a *AppleMusicCatalog) Limits() BatchLimits { return appleMusicLimits }

func (a *AppleMusicCatalog) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.developerToken)
	req.Header.Set(appleUserTokenHeader, a.userToken)
}

func (a *AppleMusicCatalog) get(ctx context.Context, endpoint string, result any) error {
	return a.client.DoJSON(ctx, http.MethodGet, a.baseURL+endpoint, a.authorize, nil, result)
}

func (a *AppleMusicCatalog) catalogPath(resource string) string {
	return fmt.Sprintf("/catalog/%s/%s", url.PathEscape(a.storefront), resource)
}

// SearchCatalog searches the storefront catalog for albums or songs.
func (a *AppleMusicCatalog) SearchCatalog(ctx context.Context, query string, kind SearchKind) ([]Candidate, error) {
	types := "albums"
	if kind == SearchTracks {
		types = "songs"
	}
	endpoint := fmt.Sprintf("%s?term=%s&types=%s&limit=%d",
		a.catalogPath("search"), url.QueryEscape(query), types, appleMusicLimits.Search)

	var response struct {
		Results struct {
			Albums *applePage[appleAlbumAttributes] `json:"albums"`
			Songs  *applePage[appleSongAttributes]  `json:"songs"`
		} `json:"results"`
	}
	if err := a.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	var candidates []Candidate
	if response.Results.Albums != nil {
		for _, album := range response.Results.Albums.Data {
			candidates = append(candidates, Candidate{ID: album.ID, Name: album.Attributes.Name, Artist: album.Attributes.ArtistName})
		}
	}
	if response.Results.Songs != nil {
		for _, song := range response.Results.Songs.Data {
			candidates = append(candidates, Candidate{ID: song.ID, Name: song.Attributes.Name, Artist: song.Attributes.ArtistName})
		}
	}

	return candidates, nil
}

// GetItemsByCode resolves UPCs or ISRCs to catalog ids through the filter
// endpoints, which accept several codes per request.
func (a *AppleMusicCatalog) GetItemsByCode(ctx context.Context, kind SearchKind, codes []string) (map[string]string, error) {
	found := make(map[string]string, len(codes))

	for i, batch := range Batches(codes, appleMusicLimits.Code) {
		if i > 0 {
			if err := a.client.PauseBetweenBatches(ctx); err != nil {
				return nil, err
			}
		}

		if kind == SearchAlbums {
			endpoint := fmt.Sprintf("%s?filter[upc]=%s", a.catalogPath("albums"), url.QueryEscape(strings.Join(batch, ",")))

			var page applePage[appleAlbumAttributes]
			if err := a.get(ctx, endpoint, &page); err != nil {
				return nil, err
			}
			for _, album := range page.Data {
				if album.Attributes.UPC != "" {
					found[album.Attributes.UPC] = album.ID
				}
			}
			continue
		}

		endpoint := fmt.Sprintf("%s?filter[isrc]=%s", a.catalogPath("songs"), url.QueryEscape(strings.Join(batch, ",")))

		var page applePage[appleSongAttributes]
		if err := a.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		for _, song := range page.Data {
			if song.Attributes.ISRC != "" {
				// An ISRC can map to several catalog entries; keep the first.
				if _, seen := found[song.Attributes.ISRC]; !seen {
					found[song.Attributes.ISRC] = song.ID
				}
			}
		}
	}

	return found, nil
}

// CheckLibraryMembership reports which catalog ids already exist in the
// user's library. Library resources carry the catalog id in their play
// parameters, which is what gets compared.
func (a *AppleMusicCatalog) CheckLibraryMembership(ctx context.Context, kind SearchKind, ids []string) (map[string]bool, error) {
	resource := "albums"
	if kind == SearchTracks {
		resource = "songs"
	}

	owned := make(map[string]bool, len(ids))
	for _, id := range ids {
		owned[id] = false
	}

	for i, batch := range Batches(ids, appleMusicLimits.Membership) {
		if i > 0 {
			if err := a.client.PauseBetweenBatches(ctx); err != nil {
				return nil, err
			}
		}

		endpoint := fmt.Sprintf("/me/library/%s?filter[ids]=%s", resource, url.QueryEscape(strings.Join(batch, ",")))

		var page applePage[appleAlbumAttributes]
		if err := a.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Data {
			if item.Attributes.PlayParams.CatalogID != "" {
				owned[item.Attributes.PlayParams.CatalogID] = true
			}
		}
	}

	return owned, nil
}

// CreatePlaylist creates a playlist in the user's library.
func (a *AppleMusicCatalog) CreatePlaylist(ctx context.Context, name, description, artworkURL string) (string, error) {
	body := struct {
		Attributes struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
		} `json:"attributes"`
	}{}
	body.Attributes.Name = name
	body.Attributes.Description = description

	var created applePage[applePlaylistAttributes]
	endpoint := a.baseURL + "/me/library/playlists"
	if err := a.client.DoJSON(ctx, http.MethodPost, endpoint, a.authorize, body, &created); err != nil {
		return "", err
	}
	if len(created.Data) == 0 {
		return "", fmt.Errorf("%w: playlist create returned no resource", shared.ErrAPIRequest)
	}

	return created.Data[0].ID, nil
}

type appleTrackRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// AddTracksToPlaylist appends one batch of catalog songs to a library
// playlist, preserving the order of trackIDs.
func (a *AppleMusicCatalog) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	refs := make([]appleTrackRef, len(trackIDs))
	for i, id := range trackIDs {
		refs[i] = appleTrackRef{ID: id, Type: "songs"}
	}

	body := struct {
		Data []appleTrackRef `json:"data"`
	}{Data: refs}

	endpoint := fmt.Sprintf("%s/me/library/playlists/%s/tracks", a.baseURL, url.PathEscape(playlistID))
	return a.client.DoJSON(ctx, http.MethodPost, endpoint, a.authorize, body, nil)
}

// AddAlbumsToLibrary saves one batch of catalog albums to the library.
func (a *AppleMusicCatalog) AddAlbumsToLibrary(ctx context.Context, albumIDs []string) error {
	if len(albumIDs) == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("%s/me/library?ids[albums]=%s", a.baseURL, url.QueryEscape(strings.Join(albumIDs, ",")))
	return a.client.DoJSON(ctx, http.MethodPost, endpoint, a.authorize, nil, nil)
}

// GetPlaylistTracks retrieves a library playlist's ordered track list.
func (a *AppleMusicCatalog) GetPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/library/playlists/%s/tracks?limit=100&offset=%d", url.PathEscape(playlistID), offset)

		var page applePage[appleSongAttributes]
		if err := a.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, song := range page.Data {
			tracks = append(tracks, appleSongToTrack(song))
		}

		if page.Next == "" || len(page.Data) == 0 {
			break
		}
		offset += len(page.Data)
	}

	return tracks, nil
}

// GetAlbumTracks retrieves a catalog album's track list.
func (a *AppleMusicCatalog) GetAlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("%s/%s/tracks", a.catalogPath("albums"), url.PathEscape(albumID))

	var page applePage[appleSongAttributes]
	if err := a.get(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Data))
	for _, song := range page.Data {
		tracks = append(tracks, appleSongToTrack(song))
	}

	return tracks, nil
}

// GetLibrary captures the user's library albums and playlists.
func (a *AppleMusicCatalog) GetLibrary(ctx context.Context) (*models.LibrarySnapshot, error) {
	snapshot := &models.LibrarySnapshot{}

	offset := 0
	for {
		endpoint := fmt.Sprintf("/me/library/albums?limit=100&offset=%d", offset)

		var page applePage[appleAlbumAttributes]
		if err := a.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, album := range page.Data {
			id := album.Attributes.PlayParams.CatalogID
			if id == "" {
				id = album.ID
			}
			snapshot.Albums = append(snapshot.Albums, models.Album{
				ID:         id,
				Name:       album.Attributes.Name,
				Artist:     album.Attributes.ArtistName,
				UPC:        album.Attributes.UPC,
				TrackCount: album.Attributes.TrackCount,
				ArtworkURL: album.Attributes.Artwork.URL,
			})
		}

		if page.Next == "" || len(page.Data) == 0 {
			break
		}
		offset += len(page.Data)
	}

	offset = 0
	for {
		endpoint := fmt.Sprintf("/me/library/playlists?limit=100&offset=%d", offset)

		var page applePage[applePlaylistAttributes]
		if err := a.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, pl := range page.Data {
			snapshot.Playlists = append(snapshot.Playlists, models.Playlist{
				ID:          pl.ID,
				Name:        pl.Attributes.Name,
				Description: pl.Attributes.Description.Standard,
				TrackCount:  pl.Attributes.TrackCount,
				ArtworkURL:  pl.Attributes.Artwork.URL,
				Public:      pl.Attributes.IsPublic,
			})
		}

		if page.Next == "" || len(page.Data) == 0 {
			break
		}
		offset += len(page.Data)
	}

	return snapshot, nil
}

func appleSongToTrack(song appleResource[appleSongAttributes]) models.Track {
	id := song.Attributes.PlayParams.CatalogID
	if id == "" {
		id = song.ID
	}
	return models.Track{
		ID:       id,
		Title:    song.Attributes.Name,
		Artist:   song.Attributes.ArtistName,
		Album:    song.Attributes.AlbumName,
		Duration: song.Attributes.DurationInMillis / 1000,
		ISRC:     song.Attributes.ISRC,
	}
}
