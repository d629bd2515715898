package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mirrorwave/tunesync/internal/services"
	"github.com/mirrorwave/tunesync/internal/shared"
	"github.com/mirrorwave/tunesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	credentials services.CredentialProvider
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Credentials services.CredentialProvider
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	credentials := opts.Credentials
	if credentials == nil {
		credentials = &configCredentials{config: opts.Config}
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		credentials: credentials,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, transferCommand, syncCommand, libraryCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens the configured sqlite database. Caller closes.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// remoteClient builds the shared rate-limited HTTP client catalogs use.
func (r *Runner) remoteClient() *services.Client {
	return services.NewClient(services.ClientOpts{
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
}

// configCredentials resolves credentials from the loaded config file. A
// service with no stored tokens resolves to (nil, nil), not an error.
type configCredentials struct {
	config *shared.Config
}

func (c *configCredentials) Credentials(userID, service string) (*services.Credentials, error) {
	switch service {
	case "spotify":
		if c.config.Credentials.Spotify.AccessToken == "" {
			return nil, nil
		}
		return &services.Credentials{
			AccessToken: c.config.Credentials.Spotify.AccessToken,
		}, nil
	case "applemusic", "apple":
		apple := c.config.Credentials.AppleMusic
		if apple.DeveloperToken == "" && apple.UserToken == "" {
			return nil, nil
		}
		return &services.Credentials{
			AccessToken:    apple.DeveloperToken,
			SecondaryToken: apple.UserToken,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown service '%s' (must be 'spotify' or 'applemusic')", shared.ErrInvalidArgument, service)
	}
}

// resolveCatalog resolves a service name to its catalog client.
func (r *Runner) resolveCatalog(serviceName string) (services.Catalog, error) {
	creds, err := r.credentials.Credentials(r.userID(), serviceName)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: %s, run 'tunesync auth %s' first", shared.ErrNotConnected, serviceName, serviceName)
	}

	switch serviceName {
	case "spotify":
		return services.NewSpotifyCatalog(creds, r.remoteClient())
	default:
		return services.NewAppleMusicCatalog(creds, r.config.Credentials.AppleMusic.Storefront, r.remoteClient())
	}
}

// catalogResolver adapts resolveCatalog for the library syncer, which
// resolves services per queued job.
func (r *Runner) catalogResolver() tasks.CatalogResolver {
	return func(ctx context.Context, userID, service string) (services.Catalog, error) {
		return r.resolveCatalog(service)
	}
}

func (r *Runner) userID() string {
	if r.config.User.ID != "" {
		return r.config.User.ID
	}
	return "local"
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
