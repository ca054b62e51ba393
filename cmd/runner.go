package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/respect/internal/auth"
	"github.com/desertthunder/respect/internal/ratelimit"
	"github.com/desertthunder/respect/internal/repositories"
	"github.com/desertthunder/respect/internal/services"
	"github.com/desertthunder/respect/internal/shared"
	"github.com/desertthunder/respect/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A non-nil Config is used as is and the --config flag is ignored.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger used by subsequent command actions.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, credentialsCommand, syncCommand, logsCommand, playlistsCommand, serveCommand, tokenCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the --config file, falling back to the embedded defaults when it does not exist.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		path := cmd.String("config")
		r.configPath = path

		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
			r.config = shared.DefaultConfig()
		}
	}

	shared.SetLogLevel(r.logger, r.config.Log.ParsedLevel())
	return ctx, nil
}

// openDatabase opens the configured database with pending migrations applied.
func (r *Runner) openDatabase() (*sql.DB, error) {
	return shared.OpenConfigured(r.config.Database)
}

// newOrchestrator wires the token manager, rate limiter and Spotify client over db.
func (r *Runner) newOrchestrator(db *sql.DB) (*tasks.Orchestrator, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	spotify := r.config.Credentials.Spotify
	httpClient := r.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: r.config.Sync.RequestTimeout()}
	}

	tokens := auth.NewTokenManager(repositories.NewCredentialRepository(db), spotify,
		auth.WithSkew(r.config.Sync.TokenSkew()),
		auth.WithHTTPClient(httpClient),
		auth.WithLogger(r.logger),
	)
	limiter := ratelimit.New(ratelimit.OptionsFromConfig(r.config.Sync.RateLimit), nil)
	client := services.NewSpotifyClient(limiter, tokens,
		services.WithBaseURL(spotify.APIBaseURL),
		services.WithHTTPClient(httpClient),
		services.WithLogger(r.logger),
	)

	return tasks.NewOrchestrator(client, tokens, tasks.NewStore(db), tasks.OptionsFromConfig(r.config.Sync), r.logger), nil
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
