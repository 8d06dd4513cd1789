// Package services wraps the OAuth2 provider and the playlist API behind the [OAuthService] and [Session]
// interfaces, and implements them for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] builds an [oauth2.Config] for the Spotify accounts service. Its authorization URL
// carries client_id, redirect_uri, scope and state; [SpotifyService.Exchange] rejects a callback whose
// state differs from the one that was sent before talking to the network.
//
// [SpotifyClient] sends Web API requests through an [oauth2.Transport]. The token lives in a [TokenCell],
// an RWMutex guarded cell shared with the refreshing token source. When auto refresh is on, an expired
// access token is exchanged for a new one with the refresh token. The refresh happens outside the cell's
// lock, so [SpotifyClient.RefreshSecret] never blocks on the token endpoint.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrStateMismatch] : callback state differs from the request
//   - [shared.ErrAuthFailed] : code exchange failed, or the API rejected the token
//   - [shared.ErrRefreshFailed] : refresh token grant failed
//   - [shared.ErrNoRefreshToken] : the session carries no refresh token
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrPlaylistNotFound] : Playlist ID not found
package services
