package auth

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsession/internal/services"
	"github.com/desertthunder/spotsession/internal/shared"
	"github.com/desertthunder/spotsession/internal/ui"
)

// CallbackSource delivers the redirect of one authorization attempt.
type CallbackSource interface {
	ReadCallback(ctx context.Context) (Callback, error)
}

// Authorizer runs the interactive half of the authorization code flow.
type Authorizer struct {
	service     services.OAuthService
	source      CallbackSource
	stdout      io.Writer
	stderr      io.Writer
	palette     *ui.Palette
	logger      *log.Logger
	openBrowser func(string) error
	newState    func() string
}

// AuthorizerOpts configures an [Authorizer].
type AuthorizerOpts struct {
	Service services.OAuthService
	Source  CallbackSource
	Stdout  io.Writer // receives the authorization URL
	Stderr  io.Writer // receives instructions
	Logger  *log.Logger

	// OpenBrowser, when set, is handed the authorization URL. Failures are only logged.
	OpenBrowser func(string) error
}

// NewAuthorizer creates an [Authorizer].
func NewAuthorizer(opts AuthorizerOpts) *Authorizer {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(opts.Stderr)
	}
	return &Authorizer{
		service:     opts.Service,
		source:      opts.Source,
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		palette:     ui.NewPalette(opts.Stderr, ui.DefaultColors),
		logger:      opts.Logger,
		openBrowser: opts.OpenBrowser,
		newState:    shared.GenerateState,
	}
}

// Authorize prints the authorization URL, waits for the redirect and exchanges it for a session.
//
// The state embedded in the URL is checked by the exchange. Exchange failures are returned as is.
func (a *Authorizer) Authorize(ctx context.Context) (services.Session, error) {
	state := a.newState()
	authURL := a.service.AuthCodeURL(state)

	fmt.Fprintln(a.stderr, a.palette.Help("Open the following URL with the account that should authorize the session:"))
	fmt.Fprintln(a.stdout, authURL)

	if a.openBrowser != nil {
		if err := a.openBrowser(authURL); err != nil {
			a.logger.Warn("could not open browser", "error", err)
		}
	}

	cb, err := a.source.ReadCallback(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("received callback", "state", cb.State)

	session, err := a.service.Exchange(ctx, cb.Code, cb.State, state)
	if err != nil {
		return nil, err
	}

	a.logger.Infof("logged in to %s", a.service.Name())
	return session, nil
}
