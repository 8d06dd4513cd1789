// Spotify API implementation of [OAuthService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/spotsession/internal/models"
	"github.com/desertthunder/spotsession/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// maximum page size of the playlist items endpoint
	playlistPageSize = 100
)

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"playlist-read-private",
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	Tracks      playlistTracksRef `json:"tracks"`
	URI         string            `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for entries Spotify can no longer resolve.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks is one page of the playlist items endpoint.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// Credentials are the OAuth client settings read once at startup.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Option customizes a [SpotifyService].
type Option func(*SpotifyService)

// WithEndpoint overrides the accounts service endpoints.
func WithEndpoint(authURL, tokenURL string) Option {
	return func(s *SpotifyService) {
		s.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader}
	}
}

// WithBaseURL overrides the Web API base URL.
func WithBaseURL(u string) Option {
	return func(s *SpotifyService) { s.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets the client used for token requests and as the base of API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithAutoRefresh controls whether clients created by [SpotifyService.Exchange] refresh expired access tokens.
func WithAutoRefresh(enabled bool) Option {
	return func(s *SpotifyService) { s.autoRefresh = enabled }
}

// WithRefreshCallback registers fn to be called after every successful token refresh.
func WithRefreshCallback(fn func(*oauth2.Token)) Option {
	return func(s *SpotifyService) { s.onTokenRefresh = fn }
}

// SpotifyService implements [OAuthService] for Spotify.
// Uses [oauth2] for the authorization code exchange and refresh token grant.
type SpotifyService struct {
	config         *oauth2.Config
	baseURL        string
	httpClient     *http.Client
	autoRefresh    bool
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(creds Credentials, opts ...Option) (*SpotifyService, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingConfig)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingConfig)
	}

	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		baseURL:     spotifyBaseURL,
		httpClient:  http.DefaultClient,
		autoRefresh: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// OAuthConfig returns the underlying [oauth2.Config].
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// AuthCodeURL returns the authorization URL the operator opens in a browser.
// It carries client_id, redirect_uri, scope and state as query parameters.
func (s *SpotifyService) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange checks state against the value sent with the authorization URL and trades code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code, state, expectedState string) (Session, error) {
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		return nil, fmt.Errorf("%w: callback state does not match the authorization request", shared.ErrStateMismatch)
	}

	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}

	return s.newClient(ctx, token, s.autoRefresh), nil
}

// FromRefreshToken rebuilds a session from a stored refresh secret.
//
// An access token is obtained right away, so a revoked or expired secret fails here.
func (s *SpotifyService) FromRefreshToken(ctx context.Context, secret string, autoRefresh bool) (Session, error) {
	if secret == "" {
		return nil, shared.ErrNoRefreshToken
	}

	client := s.newClient(ctx, &oauth2.Token{RefreshToken: secret}, autoRefresh)
	if _, err := client.source.refresh(); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *SpotifyService) newClient(ctx context.Context, token *oauth2.Token, autoRefresh bool) *SpotifyClient {
	cell := NewTokenCell(token)
	source := &refreshableTokenSource{
		ctx:         s.oauthContext(ctx),
		config:      s.config,
		cell:        cell,
		autoRefresh: autoRefresh,
		callback:    s.onTokenRefresh,
	}

	base := s.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &SpotifyClient{
		cell:       cell,
		source:     source,
		baseURL:    s.baseURL,
		httpClient: &http.Client{Transport: &oauth2.Transport{Source: source, Base: base}, Timeout: s.httpClient.Timeout},
	}
}

// SpotifyClient is an authenticated Spotify Web API session.
type SpotifyClient struct {
	cell       *TokenCell
	source     *refreshableTokenSource
	baseURL    string
	httpClient *http.Client
}

// RefreshSecret returns the refresh token. The token lock is held only while copying it.
func (c *SpotifyClient) RefreshSecret() (string, error) {
	return c.cell.RefreshSecret()
}

// doRequest performs an authenticated GET. endpoint is either a path below the base URL or an absolute
// URL (pagination links).
func (c *SpotifyClient) doRequest(ctx context.Context, endpoint string, result any) error {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = c.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the access token", shared.ErrAuthFailed)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Playlist retrieves playlist metadata by ID.
func (c *SpotifyClient) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var sp SpotifyPlaylist
	if err := c.doRequest(ctx, "/playlists/"+url.PathEscape(playlistID), &sp); err != nil {
		return nil, err
	}

	owner := sp.Owner.DisplayName
	if owner == "" {
		owner = sp.Owner.ID
	}

	return &models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Owner:       owner,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
	}, nil
}

// PlaylistTracks retrieves every track of a playlist, following pagination links, in playlist order.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=0", url.PathEscape(playlistID), playlistPageSize)
	tracks := []models.Track{}

	for endpoint != "" {
		var page SpotifyPaginatedPlaylistTracks
		if err := c.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil {
				continue
			}
			tracks = append(tracks, toTrack(item))
		}

		endpoint = ""
		if page.Next != nil {
			endpoint = *page.Next
		}
	}

	return tracks, nil
}

func toTrack(item SpotifyPlaylistTrack) models.Track {
	st := item.Track
	track := models.Track{
		ID:       st.ID,
		Title:    st.Name,
		Album:    st.Album.Name,
		Duration: st.DurationMS / 1000,
		ISRC:     st.ExternalIDs.ISRC,
		AddedAt:  item.AddedAt,
	}

	names := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		names = append(names, a.Name)
	}
	track.Artist = strings.Join(names, ", ")

	return track
}
