package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsession/internal/repositories"
	"github.com/desertthunder/spotsession/internal/services"
	"github.com/desertthunder/spotsession/internal/shared"
	"github.com/desertthunder/spotsession/internal/tasks"
	"github.com/desertthunder/spotsession/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	lookup  func(string) (string, bool)
	palette *ui.Palette
	closers []io.Closer

	// serviceOpts are appended when the Spotify service is built.
	serviceOpts []services.Option
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config // skips config loading in Before when set
	Logger *log.Logger
	Stdin  io.Reader
	Stdout io.Writer // authorization URL, final instruction and formatted output
	Stderr io.Writer // prompts and diagnostics
	Lookup func(string) (string, bool)

	ServiceOptions []services.Option
	OpenBrowser    func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(opts.Stderr)
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		logger:      opts.Logger,
		stdin:       opts.Stdin,
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		lookup:      opts.Lookup,
		palette:     ui.NewPalette(opts.Stderr, ui.DefaultColors),
		serviceOpts: opts.ServiceOptions,
		openBrowser: opts.OpenBrowser,
	}
}

// Before resolves the configuration: embedded defaults, then the config file, then the .env file and
// the environment, then global flags. It also applies the log settings.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		config, err := r.loadConfig(cmd)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	if p := cmd.String("token-path"); p != "" {
		r.config.Session.TokenPath = p
	}
	if l := cmd.String("log-level"); l != "" {
		r.config.Log.Level = l
	}

	if err := shared.SetLogLevel(r.logger, r.config.Log.Level); err != nil {
		return ctx, err
	}

	if r.config.Log.File != "" {
		w := shared.NewRotatingWriter(r.config.Log)
		r.closers = append(r.closers, w)
		r.logger.SetOutput(io.MultiWriter(r.stderr, w))
		r.logger.Debug("logging to file", "path", r.config.Log.File)
	}

	return ctx, nil
}

// After releases resources opened by Before.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path := cmd.String("config")

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
		r.logger.Debug("loaded config file", "path", path)
	} else if !errors.Is(err, fs.ErrNotExist) || cmd.IsSet("config") {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrMissingConfig, path, err)
	}

	if err := shared.LoadDotEnv(cmd.String("env-file")); err != nil {
		return nil, err
	}
	config.ApplyEnv(r.lookup)

	return config, nil
}

// tokenFile returns the configured [repositories.TokenFile].
func (r *Runner) tokenFile() *repositories.TokenFile {
	return repositories.NewTokenFile(r.config.Session.TokenPath)
}

// spotify validates the credentials and builds the Spotify service.
func (r *Runner) spotify() (*services.SpotifyService, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	sp := r.config.Credentials.Spotify
	opts := []services.Option{
		services.WithAutoRefresh(r.config.Session.AutoRefresh),
		services.WithRefreshCallback(func(t *oauth2.Token) {
			r.logger.Debug("access token refreshed", "expiry", t.Expiry)
		}),
	}
	opts = append(opts, r.serviceOpts...)

	return services.NewSpotifyService(services.Credentials{
		ClientID:     sp.ClientID,
		ClientSecret: sp.ClientSecret,
		RedirectURI:  sp.RedirectURI,
		Scopes:       sp.Scopes,
	}, opts...)
}

// engine builds a [tasks.Engine] and starts draining its progress updates into the debug log.
// The returned function stops the drain and must be called once the engine is done.
func (r *Runner) engine(opts tasks.EngineOpts) (*tasks.Engine, func()) {
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	opts.Tokens = r.tokenFile()
	opts.Stdout = r.stdout
	opts.Logger = r.logger
	opts.Progress = progress
	opts.DisableAutoRefresh = !r.config.Session.AutoRefresh

	return tasks.NewEngine(opts), func() {
		close(progress)
		<-done
	}
}
