package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/spotsession/internal/shared"
	"golang.org/x/oauth2"
)

// TokenCell holds the token shared by a [SpotifyClient] and its refreshing token source.
//
// Readers copy the token out under the read lock. Writers only swap the pointer.
// Neither side holds the lock across network I/O.
type TokenCell struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// NewTokenCell returns a cell holding t.
func NewTokenCell(t *oauth2.Token) *TokenCell {
	return &TokenCell{token: t}
}

// Get returns a copy of the current token, or nil.
func (c *TokenCell) Get() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return nil
	}
	t := *c.token
	return &t
}

// Set replaces the current token.
func (c *TokenCell) Set(t *oauth2.Token) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

// RefreshSecret returns the refresh token, or [shared.ErrNoRefreshToken] when there is none.
func (c *TokenCell) RefreshSecret() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil || c.token.RefreshToken == "" {
		return "", shared.ErrNoRefreshToken
	}
	return c.token.RefreshToken, nil
}

// refreshableTokenSource serves the cell's token while it is valid and refreshes it with the
// stored refresh token otherwise. refreshMu serializes refreshes so readers of the cell
// never wait on the token endpoint.
type refreshableTokenSource struct {
	ctx         context.Context
	config      *oauth2.Config
	cell        *TokenCell
	autoRefresh bool
	callback    func(*oauth2.Token)

	refreshMu sync.Mutex
}

// Token implements [oauth2.TokenSource].
func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	current := s.cell.Get()
	if current.Valid() {
		return current, nil
	}
	if current != nil && current.AccessToken != "" && !s.autoRefresh {
		return nil, fmt.Errorf("%w: access token expired and auto refresh is off", shared.ErrRefreshFailed)
	}
	return s.refresh()
}

func (s *refreshableTokenSource) refresh() (*oauth2.Token, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	current := s.cell.Get()
	if current.Valid() {
		return current, nil
	}

	secret, err := s.cell.RefreshSecret()
	if err != nil {
		return nil, err
	}

	fresh, err := s.config.TokenSource(s.ctx, &oauth2.Token{RefreshToken: secret}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = secret
	}

	s.cell.Set(fresh)
	if s.callback != nil {
		s.callback(fresh)
	}
	return fresh, nil
}
