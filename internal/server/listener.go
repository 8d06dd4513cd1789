package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsession/internal/auth"
	"github.com/desertthunder/spotsession/internal/shared"
)

const shutdownTimeout = 5 * time.Second

// CallbackListener receives the redirect on the local address named by the redirect URI.
// It implements [auth.CallbackSource] as an alternative to pasting the URL by hand.
type CallbackListener struct {
	addr    string
	handler *CallbackHandler
	router  *BasicRouter
	logger  *log.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewCallbackListener derives the listen address and path from redirectURI.
//
// Only plain http redirect URIs can be served locally.
func NewCallbackListener(redirectURI string, logger *log.Logger) (*CallbackListener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: redirect URI: %v", shared.ErrInvalidConfig, err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("%w: cannot listen on redirect URI %q, expected http://host:port/path", shared.ErrInvalidConfig, redirectURI)
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}

	logger = shared.WithLogger(logger, "listener", u.Host)
	handler := NewCallbackHandler(u.Path)
	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(handler)

	return &CallbackListener{
		addr:    net.JoinHostPort(u.Hostname(), port),
		handler: handler,
		router:  router,
		logger:  logger,
	}, nil
}

// Listen binds the listen address. It is called by [CallbackListener.ReadCallback] when needed.
func (l *CallbackListener) Listen() (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener == nil {
		ln, err := net.Listen("tcp", l.addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", l.addr, err)
		}
		l.listener = ln
	}
	return l.listener.Addr(), nil
}

// ReadCallback implements [auth.CallbackSource].
//
// It serves until one redirect is delivered or ctx ends, then shuts the server down.
func (l *CallbackListener) ReadCallback(ctx context.Context) (auth.Callback, error) {
	addr, err := l.Listen()
	if err != nil {
		return auth.Callback{}, err
	}

	srv := &http.Server{Handler: l.router, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(l.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	l.logger.Info("waiting for the authorization redirect", "addr", addr.String())

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.logger.Warn("callback server shutdown", "error", err)
		}
	}()

	select {
	case res := <-l.handler.Result():
		return res.Callback, res.Err
	case err, ok := <-serveErr:
		if !ok {
			err = http.ErrServerClosed
		}
		return auth.Callback{}, fmt.Errorf("callback server stopped: %w", err)
	case <-ctx.Done():
		return auth.Callback{}, ctx.Err()
	}
}
