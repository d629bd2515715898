package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mirrorwave/tunesync/internal/server"
	"github.com/mirrorwave/tunesync/internal/services"
	"github.com/mirrorwave/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthSpotify performs the OAuth2 authorization-code flow for Spotify.
//
// Starts a loopback HTTP server, opens the browser for user authorization,
// exchanges the auth code for tokens and stores them in config.toml.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	spotify := r.config.Credentials.Spotify
	if spotify.ClientID == "" || spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	authenticator, err := services.NewSpotifyAuthenticator(spotify.ClientID, spotify.ClientSecret, spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("failed to create Spotify authenticator: %w", err)
	}

	state := shared.GenerateID()
	authURL := authenticator.AuthURL(state)

	oauthHandler := server.NewOAuthHandler(authenticator.Config(), state)
	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	r.config.Credentials.Spotify.AccessToken = result.Token.AccessToken
	r.config.Credentials.Spotify.RefreshToken = result.Token.RefreshToken
	if err := shared.SaveConfig(r.config, r.configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Spotify connected")
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)

	return nil
}

// AuthAppleMusic imports Apple Music tokens from a browser cURL capture.
//
// The Music app's web player sends both the developer token (Authorization
// header) and the Music User Token on every request, so a single
// "Copy as cURL" from DevTools carries everything transfers need.
func (r *Runner) AuthAppleMusic(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	r.logger.Info("parsing cURL command for Apple Music tokens")

	var curlHeaders *shared.CurlHeaders
	var err error

	if curlFile != "" {
		curlHeaders, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		curlHeaders, err = shared.ParseCurlCommand([]byte(curlCmd))
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	developerToken, userToken := curlHeaders.AppleMusicTokens()
	if developerToken == "" {
		return fmt.Errorf("%w: no Authorization bearer token in cURL capture", shared.ErrMissingCredentials)
	}
	if userToken == "" {
		return fmt.Errorf("%w: no Music-User-Token header in cURL capture", shared.ErrMissingCredentials)
	}

	r.config.Credentials.AppleMusic.DeveloperToken = developerToken
	r.config.Credentials.AppleMusic.UserToken = userToken
	if storefront := cmd.String("storefront"); storefront != "" {
		r.config.Credentials.AppleMusic.Storefront = storefront
	}

	if err := shared.SaveConfig(r.config, r.configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlain("✓ Apple Music connected\n")
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)

	return nil
}

// AuthStatus reports which services have stored credentials.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	spotifyConnected := r.config.Credentials.Spotify.AccessToken != ""
	appleConnected := r.config.Credentials.AppleMusic.DeveloperToken != "" &&
		r.config.Credentials.AppleMusic.UserToken != ""

	if useJSON {
		return r.writeJSON(map[string]bool{
			"spotify":    spotifyConnected,
			"applemusic": appleConnected,
		}, true)
	}

	marker := func(connected bool) string {
		if connected {
			return "✓ Connected"
		}
		return "✗ Not connected"
	}

	r.writePlain("Spotify:     %s\n", marker(spotifyConnected))
	r.writePlain("Apple Music: %s\n", marker(appleConnected))

	if _, err := os.Stat(r.configPath); err != nil {
		r.writePlainln("⚠ No config file found. Run 'tunesync setup' first.")
	}

	return nil
}

// authCommand handles account connection operations.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect streaming service accounts",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.AuthSpotify,
			},
			{
				Name:    "applemusic",
				Aliases: []string{"apple"},
				Usage:   "Import Apple Music tokens from a browser cURL capture",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to file containing the cURL command",
					},
					&cli.StringFlag{
						Name:  "storefront",
						Usage: "Apple Music storefront code (e.g. us, gb)",
					},
				},
				Action: r.AuthAppleMusic,
			},
			{
				Name:  "status",
				Usage: "Show which services are connected",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}
