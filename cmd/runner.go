package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djwaifu/internal/services"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/tasks"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	mu         sync.Mutex
	config     *shared.Config
	configPath string
	auth       *services.SpotifyService
	spotify    services.PlaylistService
	mal        services.ThemeSource
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Spotify and MAL are built from the config in [Runner.before] unless provided.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.PlaylistService
	MAL        services.ThemeSource
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		mal:        opts.MAL,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, themesCommand, parseCommand, generateCommand, updateCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the config file named by --config and builds the API clients it describes.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		}
	}
	r.config.ApplyEnv()

	level := shared.ParseLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	if r.mal == nil && r.config.Credentials.MyAnimeList.ClientID != "" {
		mal, err := services.NewMyAnimeListService(r.config.Credentials.MyAnimeList.ClientID, "", nil, r.config.Search.RequestsPerSecond)
		if err != nil {
			return ctx, err
		}
		r.mal = mal
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID != "" && creds.ClientSecret != "" {
		auth, err := services.NewSpotifyService(creds.Map())
		if err != nil {
			return ctx, err
		}
		r.auth = auth

		if r.spotify == nil {
			if token := creds.Token(); token != nil {
				client := auth.WithToken(ctx, token)
				client.SetTokenRefreshCallback(func(t *oauth2.Token) {
					if err := r.saveTokens(t); err != nil {
						r.logger.Warn("failed to persist refreshed token", "error", err)
					}
				})
				r.spotify = client
			}
		}
	}

	return ctx, nil
}

// SetLogger swaps the logger, used while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) engineOpts() tasks.EngineOpts {
	return tasks.EngineOpts{
		DefaultName:        r.config.Playlist.DefaultName,
		DefaultDescription: r.config.Playlist.DefaultDescription,
		Workers:            r.config.Search.Workers,
		RequestsPerSecond:  r.config.Search.RequestsPerSecond,
		Logger:             r.logger,
	}
}

// engine builds a [tasks.PlaylistEngine]; the Spotify client is optional for theme lookups.
func (r *Runner) engine(needSpotify bool) (*tasks.PlaylistEngine, error) {
	if r.mal == nil {
		return nil, fmt.Errorf("%w: set credentials.myanimelist.client_id or MAL_CLIENT_ID", shared.ErrMissingCredentials)
	}
	if needSpotify && r.spotify == nil {
		return nil, fmt.Errorf("%w: run 'djwaifu spotify auth' first", shared.ErrNotAuthenticated)
	}
	return tasks.NewPlaylistEngine(r.spotify, r.mal, r.engineOpts()), nil
}

// saveTokens stores a new token in the config and, when the config came from a file, writes it back.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// interactive reports whether output goes to a terminal.
func (r *Runner) interactive() bool {
	file, ok := r.output.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
