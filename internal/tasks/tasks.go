// package tasks decides between starting and resuming a Spotify session and runs the chosen path.
package tasks

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsession/internal/models"
	"github.com/desertthunder/spotsession/internal/repositories"
	"github.com/desertthunder/spotsession/internal/services"
	"github.com/desertthunder/spotsession/internal/shared"
)

// RerunMessage is printed to stdout after a new session was authorized.
const RerunMessage = "Run the program again to use the refresh token"

// Path is the branch chosen by [Engine.Bootstrap].
type Path int

const (
	PathNewSession Path = iota
	PathResume
)

func (p Path) String() string {
	switch p {
	case PathNewSession:
		return "new_session"
	case PathResume:
		return "resume"
	default:
		return ""
	}
}

// Decision is the result of [Engine.Bootstrap]. Secret is set only for [PathResume].
type Decision struct {
	Path   Path
	Secret string
}

// Authorizer produces a fresh session through the interactive flow.
type Authorizer interface {
	Authorize(ctx context.Context) (services.Session, error)
}

// TokenStore persists the refresh secret between runs.
type TokenStore interface {
	Save(src repositories.SecretSource) error
	Load() (string, error)
}

// ExportSink receives a fetched playlist, e.g. to print it or record a snapshot.
type ExportSink func(ctx context.Context, export *models.PlaylistExport) error

// Engine runs the session workflow: resume from the stored refresh secret when there is one,
// otherwise authorize a new session and store its secret.
type Engine struct {
	service     services.OAuthService
	authorizer  Authorizer
	tokens      TokenStore
	playlistID  string
	autoRefresh bool
	sinks       []ExportSink
	stdout      io.Writer
	logger      *log.Logger
	progress    chan<- ProgressUpdate
}

// EngineOpts configures an [Engine].
type EngineOpts struct {
	Service    services.OAuthService
	Authorizer Authorizer
	Tokens     TokenStore
	PlaylistID string // required by [Engine.Resume]

	// DisableAutoRefresh turns off refreshing of expired access tokens on resumed sessions.
	DisableAutoRefresh bool

	Sinks    []ExportSink
	Stdout   io.Writer
	Logger   *log.Logger
	Progress chan<- ProgressUpdate // optional; updates are dropped when nobody is listening
}

// NewEngine creates an [Engine].
func NewEngine(opts EngineOpts) *Engine {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Engine{
		service:     opts.Service,
		authorizer:  opts.Authorizer,
		tokens:      opts.Tokens,
		playlistID:  opts.PlaylistID,
		autoRefresh: !opts.DisableAutoRefresh,
		sinks:       opts.Sinks,
		stdout:      opts.Stdout,
		logger:      opts.Logger,
		progress:    opts.Progress,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(update ProgressUpdate) {
	if e.progress == nil {
		return
	}
	select {
	case e.progress <- update:
	default:
	}
}

// Bootstrap picks the path from the token store alone: a readable secret resumes, anything else
// (missing, unreadable or corrupt file) starts a new session. The reason is logged at debug level.
func (e *Engine) Bootstrap(ctx context.Context) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	d := Decision{Path: PathNewSession}
	secret, err := e.tokens.Load()
	if err != nil {
		e.logger.Debug("no usable refresh token, starting a new session", "reason", err)
	} else {
		d = Decision{Path: PathResume, Secret: secret}
	}

	e.sendProgress(loadTokenUpdate(d.Path))
	return d, nil
}

// NewSession authorizes a new session and stores its refresh secret.
//
// A failed save is only logged; the operator is still told to run the program again.
func (e *Engine) NewSession(ctx context.Context) error {
	e.sendProgress(authorizeUpdate())

	session, err := e.authorizer.Authorize(ctx)
	if err != nil {
		return err
	}

	err = e.tokens.Save(session)
	if err != nil {
		e.logger.Warn("failed to save refresh token", "error", err)
	}
	e.sendProgress(saveTokenUpdate(err))

	fmt.Fprintln(e.stdout, RerunMessage)
	return nil
}

// Resume rebuilds a session from secret and fetches the configured playlist with all of its tracks.
func (e *Engine) Resume(ctx context.Context, secret string) (*models.PlaylistExport, error) {
	if e.playlistID == "" {
		return nil, fmt.Errorf("%w: %s is not set", shared.ErrMissingConfig, shared.EnvPlaylistID)
	}

	e.sendProgress(refreshSessionUpdate())
	session, err := e.service.FromRefreshToken(ctx, secret, e.autoRefresh)
	if err != nil {
		return nil, err
	}

	e.sendProgress(fetchPlaylistUpdate(1, nil))
	export, err := services.ExportPlaylist(ctx, session, e.playlistID)
	if err != nil {
		return nil, err
	}
	e.sendProgress(fetchPlaylistUpdate(2, &export.Playlist))
	e.sendProgress(fetchTracksUpdate(len(export.Tracks)))

	e.logger.Info("fetched playlist", "name", export.Playlist.Name, "tracks", len(export.Tracks))

	for i, sink := range e.sinks {
		e.sendProgress(writeOutputUpdate(i+1, len(e.sinks)))
		if err := sink(ctx, export); err != nil {
			return export, err
		}
	}

	return export, nil
}

// Run bootstraps and follows the chosen path.
func (e *Engine) Run(ctx context.Context) error {
	d, err := e.Bootstrap(ctx)
	if err != nil {
		return err
	}

	switch d.Path {
	case PathResume:
		_, err := e.Resume(ctx, d.Secret)
		return err
	default:
		return e.NewSession(ctx)
	}
}
