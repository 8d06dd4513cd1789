// package services defines the OAuth collaborator interfaces and the Spotify Web API client
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotsession/internal/models"
)

// Session is an authenticated connection to a music service.
type Session interface {
	// RefreshSecret returns the long-lived refresh token of the session.
	RefreshSecret() (string, error)

	// Playlist retrieves playlist metadata.
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// PlaylistTracks retrieves all tracks of a playlist, in order, across every page.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// OAuthService is an authorization-code OAuth2 provider that hands out [Session] values.
type OAuthService interface {
	// Name returns the name of the service (e.g., "Spotify")
	Name() string

	// AuthCodeURL builds the authorization URL for the given anti-forgery state.
	AuthCodeURL(state string) string

	// Exchange validates state against expectedState and trades code for tokens.
	Exchange(ctx context.Context, code, state, expectedState string) (Session, error)

	// FromRefreshToken rebuilds a session from a stored refresh secret.
	FromRefreshToken(ctx context.Context, secret string, autoRefresh bool) (Session, error)
}

// ExportPlaylist fetches playlist metadata and then all of its tracks.
func ExportPlaylist(ctx context.Context, s Session, playlistID string) (*models.PlaylistExport, error) {
	playlist, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist %s: %w", playlistID, err)
	}

	tracks, err := s.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracks of %s: %w", playlistID, err)
	}

	return &models.PlaylistExport{
		Playlist:  *playlist,
		Tracks:    tracks,
		FetchedAt: time.Now().UTC(),
	}, nil
}
