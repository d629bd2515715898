// Spotify implementation of [Catalog]
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// Spotify accepts up to 50 ids on library endpoints and 100 uris per
// playlist append; identifier queries run one code per request so the
// lookup batch only bounds the fan-out.
var spotifyLimits = BatchLimits{
	Search:     25,
	Add:        50,
	Code:       10,
	Membership: 50,
}

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyExternalIDs struct {
	ISRC string `json:"isrc"`
	UPC  string `json:"upc"`
}

type spotifyTrack struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Artists     []spotifyArtist    `json:"artists"`
	DurationMS  int                `json:"duration_ms"`
	ExternalIDs spotifyExternalIDs `json:"external_ids"`
	Album       *struct {
		Name string `json:"name"`
	} `json:"album"`
}

type spotifyAlbum struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Artists     []spotifyArtist    `json:"artists"`
	TotalTracks int                `json:"total_tracks"`
	Images      []spotifyImage     `json:"images"`
	ExternalIDs spotifyExternalIDs `json:"external_ids"`
}

type spotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Public      bool           `json:"public"`
	Images      []spotifyImage `json:"images"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type spotifyPage[T any] struct {
	Items []T     `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}

// SpotifyCatalog implements [Catalog] against the Spotify Web API.
type SpotifyCatalog struct {
	client      *Client
	accessToken string
	baseURL     string
	userID      string // resolved lazily from /me
}

// NewSpotifyCatalog creates a Spotify catalog bound to the given user
// credentials. The access token must be present; playlist creation resolves
// the profile id on first use.
func NewSpotifyCatalog(creds *Credentials, client *Client) (*SpotifyCatalog, error) {
	if creds == nil || creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: spotify access token", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = NewClient(ClientOpts{})
	}

	return &SpotifyCatalog{
		client:      client,
		accessToken: creds.AccessToken,
		baseURL:     spotifyBaseURL,
	}, nil
}

func (s *SpotifyCatalog) Name() string { return "spotify" }

func (s *SpotifyCatalog) Limits() BatchLimits { return spotifyLimits }

func (s *SpotifyCatalog) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
}

func (s *SpotifyCatalog) get(ctx context.Context, endpoint string, result any) error {
	return s.client.DoJSON(ctx, http.MethodGet, s.baseURL+endpoint, s.authorize, nil, result)
}

// SearchCatalog searches the Spotify catalog for albums or tracks.
func (s *SpotifyCatalog) SearchCatalog(ctx context.Context, query string, kind SearchKind) ([]Candidate, error) {
	searchType := "album"
	if kind == SearchTracks {
		searchType = "track"
	}
	endpoint := fmt.Sprintf("/search?q=%s&type=%s&limit=%d", url.QueryEscape(query), searchType, spotifyLimits.Search)

	var response struct {
		Albums *spotifyPage[spotifyAlbum] `json:"albums"`
		Tracks *spotifyPage[spotifyTrack] `json:"tracks"`
	}
	if err := s.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	var candidates []Candidate
	if response.Albums != nil {
		for _, album := range response.Albums.Items {
			candidates = append(candidates, Candidate{ID: album.ID, Name: album.Name, Artist: firstSpotifyArtist(album.Artists)})
		}
	}
	if response.Tracks != nil {
		for _, track := range response.Tracks.Items {
			candidates = append(candidates, Candidate{ID: track.ID, Name: track.Name, Artist: firstSpotifyArtist(track.Artists)})
		}
	}

	return candidates, nil
}

// GetItemsByCode resolves UPCs (albums) or ISRCs (tracks) to catalog ids.
//
// Spotify exposes identifier search through query filters (`upc:`/`isrc:`),
// one code per request, so codes are looped with the inter-batch pause
// applied between lookup batches.
func (s *SpotifyCatalog) GetItemsByCode(ctx context.Context, kind SearchKind, codes []string) (map[string]string, error) {
	found := make(map[string]string, len(codes))

	for i, batch := range Batches(codes, spotifyLimits.Code) {
		if i > 0 {
			if err := s.client.PauseBetweenBatches(ctx); err != nil {
				return nil, err
			}
		}

		for _, code := range batch {
			id, err := s.lookupCode(ctx, kind, code)
			if err != nil {
				return nil, err
			}
			if id != "" {
				found[code] = id
			}
		}
	}

	return found, nil
}

func (s *SpotifyCatalog) lookupCode(ctx context.Context, kind SearchKind, code string) (string, error) {
	filter, searchType := "upc", "album"
	if kind == SearchTracks {
		filter, searchType = "isrc", "track"
	}
	endpoint := fmt.Sprintf("/search?q=%s&type=%s&limit=1", url.QueryEscape(filter+":"+code), searchType)

	var response struct {
		Albums *spotifyPage[spotifyAlbum] `json:"albums"`
		Tracks *spotifyPage[spotifyTrack] `json:"tracks"`
	}
	if err := s.get(ctx, endpoint, &response); err != nil {
		return "", err
	}

	if response.Albums != nil && len(response.Albums.Items) > 0 {
		return response.Albums.Items[0].ID, nil
	}
	if response.Tracks != nil && len(response.Tracks.Items) > 0 {
		return response.Tracks.Items[0].ID, nil
	}
	return "", nil
}

// CheckLibraryMembership reports which catalog ids are already saved in the
// user's library, batched per Spotify's contains endpoints.
func (s *SpotifyCatalog) CheckLibraryMembership(ctx context.Context, kind SearchKind, ids []string) (map[string]bool, error) {
	endpoint := "/me/albums/contains"
	if kind == SearchTracks {
		endpoint = "/me/tracks/contains"
	}

	owned := make(map[string]bool, len(ids))
	for i, batch := range Batches(ids, spotifyLimits.Membership) {
		if i > 0 {
			if err := s.client.PauseBetweenBatches(ctx); err != nil {
				return nil, err
			}
		}

		var flags []bool
		query := fmt.Sprintf("%s?ids=%s", endpoint, url.QueryEscape(strings.Join(batch, ",")))
		if err := s.get(ctx, query, &flags); err != nil {
			return nil, err
		}
		if len(flags) != len(batch) {
			return nil, fmt.Errorf("%w: contains response length %d for %d ids", shared.ErrAPIRequest, len(flags), len(batch))
		}
		for j, id := range batch {
			owned[id] = flags[j]
		}
	}

	return owned, nil
}

// CreatePlaylist creates a private playlist in the user's library.
func (s *SpotifyCatalog) CreatePlaylist(ctx context.Context, name, description, artworkURL string) (string, error) {
	userID, err := s.profileID(ctx)
	if err != nil {
		return "", err
	}

	body := struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
	}{Name: name, Description: description, Public: false}

	var created spotifyPlaylist
	endpoint := fmt.Sprintf("%s/users/%s/playlists", s.baseURL, url.PathEscape(userID))
	if err := s.client.DoJSON(ctx, http.MethodPost, endpoint, s.authorize, body, &created); err != nil {
		return "", err
	}

	return created.ID, nil
}

// AddTracksToPlaylist appends one batch of track uris to a playlist,
// preserving the order of trackIDs.
func (s *SpotifyCatalog) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	uris := make([]string, len(trackIDs))
	for i, id := range trackIDs {
		uris[i] = "spotify:track:" + id
	}

	body := struct {
		URIs []string `json:"uris"`
	}{URIs: uris}

	endpoint := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, url.PathEscape(playlistID))
	return s.client.DoJSON(ctx, http.MethodPost, endpoint, s.authorize, body, nil)
}

// AddAlbumsToLibrary saves one batch of albums to the user's library.
func (s *SpotifyCatalog) AddAlbumsToLibrary(ctx context.Context, albumIDs []string) error {
	if len(albumIDs) == 0 {
		return nil
	}

	body := struct {
		IDs []string `json:"ids"`
	}{IDs: albumIDs}

	return s.client.DoJSON(ctx, http.MethodPut, s.baseURL+"/me/albums", s.authorize, body, nil)
}

// GetPlaylistTracks retrieves a playlist's full ordered track list,
// following pagination.
func (s *SpotifyCatalog) GetPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100&offset=%d", url.PathEscape(playlistID), offset)

		var page spotifyPage[struct {
			Track spotifyTrack `json:"track"`
		}]
		if err := s.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			tracks = append(tracks, toTrack(item.Track))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return tracks, nil
}

// GetAlbumTracks retrieves an album's track list.
func (s *SpotifyCatalog) GetAlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/albums/%s/tracks?limit=50&offset=%d", url.PathEscape(albumID), offset)

		var page spotifyPage[spotifyTrack]
		if err := s.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, track := range page.Items {
			tracks = append(tracks, toTrack(track))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return tracks, nil
}

// GetLibrary captures the user's saved albums and playlists.
func (s *SpotifyCatalog) GetLibrary(ctx context.Context) (*models.LibrarySnapshot, error) {
	snapshot := &models.LibrarySnapshot{}

	offset := 0
	for {
		endpoint := fmt.Sprintf("/me/albums?limit=50&offset=%d", offset)

		var page spotifyPage[struct {
			Album spotifyAlbum `json:"album"`
		}]
		if err := s.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			snapshot.Albums = append(snapshot.Albums, models.Album{
				ID:         item.Album.ID,
				Name:       item.Album.Name,
				Artist:     firstSpotifyArtist(item.Album.Artists),
				UPC:        item.Album.ExternalIDs.UPC,
				TrackCount: item.Album.TotalTracks,
				ArtworkURL: firstSpotifyImage(item.Album.Images),
			})
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	offset = 0
	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=50&offset=%d", offset)

		var page spotifyPage[spotifyPlaylist]
		if err := s.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, pl := range page.Items {
			snapshot.Playlists = append(snapshot.Playlists, models.Playlist{
				ID:          pl.ID,
				Name:        pl.Name,
				Description: pl.Description,
				TrackCount:  pl.Tracks.Total,
				ArtworkURL:  firstSpotifyImage(pl.Images),
				Public:      pl.Public,
			})
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return snapshot, nil
}

// profileID resolves and caches the authenticated user's profile id.
func (s *SpotifyCatalog) profileID(ctx context.Context) (string, error) {
	if s.userID != "" {
		return s.userID, nil
	}

	var profile struct {
		ID string `json:"id"`
	}
	if err := s.get(ctx, "/me", &profile); err != nil {
		return "", err
	}
	if profile.ID == "" {
		return "", fmt.Errorf("%w: empty profile id", shared.ErrAPIRequest)
	}

	s.userID = profile.ID
	return s.userID, nil
}

func toTrack(t spotifyTrack) models.Track {
	track := models.Track{
		ID:       t.ID,
		Title:    t.Name,
		Artist:   firstSpotifyArtist(t.Artists),
		Duration: t.DurationMS / 1000,
		ISRC:     t.ExternalIDs.ISRC,
	}
	if t.Album != nil {
		track.Album = t.Album.Name
	}
	return track
}

func firstSpotifyArtist(artists []spotifyArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

func firstSpotifyImage(images []spotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// SpotifyAuthenticator drives the OAuth2 authorization code flow used by
// the auth command. Catalog calls themselves only need the resulting
// access token.
type SpotifyAuthenticator struct {
	config *oauth2.Config
}

// NewSpotifyAuthenticator builds the OAuth2 config for the app credentials.
func NewSpotifyAuthenticator(clientID, clientSecret, redirectURI string) (*SpotifyAuthenticator, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client id/secret", shared.ErrMissingCredentials)
	}
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	return &SpotifyAuthenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes: []string{
				"user-read-private",
				"playlist-read-private",
				"playlist-read-collaborative",
				"playlist-modify-private",
				"playlist-modify-public",
				"user-library-read",
				"user-library-modify",
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
	}, nil
}

// AuthURL returns the authorization URL for user login.
func (a *SpotifyAuthenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens.
func (a *SpotifyAuthenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Config exposes the underlying OAuth2 config for the callback server.
func (a *SpotifyAuthenticator) Config() *oauth2.Config {
	return a.config
}
