package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeTrack is a track served by [FakeSpotify]. Missing entries are served with a null track.
type FakeTrack struct {
	ID         string
	Name       string
	Artists    []string
	Album      string
	DurationMS int
	ISRC       string
	Missing    bool
}

// FakePlaylist is a playlist served by [FakeSpotify].
type FakePlaylist struct {
	Name        string
	Description string
	Owner       string
	Public      bool
	Tracks      []FakeTrack
}

// FakeSpotify is an httptest server speaking enough of the Spotify accounts service and Web API
// for the authorization code grant, the refresh token grant and playlist reads.
type FakeSpotify struct {
	Server *httptest.Server

	ClientID     string
	ClientSecret string
	Code         string // the only authorization code accepted
	RefreshToken string // issued on code exchange and accepted for refresh
	ExpiresIn    int    // seconds; values at or below 10 make oauth2 treat tokens as already expired
	PageSize     int
	Playlists    map[string]FakePlaylist

	mu          sync.Mutex
	issued      map[string]bool
	exchanges   int
	refreshes   int
	apiRequests int
	omitRefresh bool
}

// NewFakeSpotify starts a fake Spotify and closes it when the test ends.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		Code:         "abc123",
		RefreshToken: "refresh-secret",
		ExpiresIn:    3600,
		PageSize:     2,
		Playlists:    map[string]FakePlaylist{},
		issued:       map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.handleToken)
	mux.HandleFunc("GET /v1/playlists/{id}", f.handlePlaylist)
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", f.handleTracks)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeSpotify) AuthURL() string  { return f.Server.URL + "/authorize" }
func (f *FakeSpotify) TokenURL() string { return f.Server.URL + "/api/token" }
func (f *FakeSpotify) BaseURL() string  { return f.Server.URL + "/v1" }

// OmitRefreshTokenOnExchange makes the code exchange answer without a refresh_token.
func (f *FakeSpotify) OmitRefreshTokenOnExchange() {
	f.mu.Lock()
	f.omitRefresh = true
	f.mu.Unlock()
}

// Counts returns the number of code exchanges, refresh grants and API requests served.
func (f *FakeSpotify) Counts() (exchanges, refreshes, api int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges, f.refreshes, f.apiRequests
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || id != f.ClientID || secret != f.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	resp := map[string]any{"token_type": "Bearer", "expires_in": f.ExpiresIn}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != f.Code {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.exchanges++
		if !f.omitRefresh {
			resp["refresh_token"] = f.RefreshToken
		}
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != f.RefreshToken {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Refresh token revoked"})
			return
		}
		f.refreshes++
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	access := fmt.Sprintf("access-%d", len(f.issued)+1)
	f.issued[access] = true
	resp["access_token"] = access
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeSpotify) authorized(w http.ResponseWriter, r *http.Request) (FakePlaylist, bool) {
	f.mu.Lock()
	f.apiRequests++
	valid := f.issued[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	playlist, found := f.Playlists[r.PathValue("id")]
	f.mu.Unlock()

	if !valid {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "Invalid access token"}})
		return FakePlaylist{}, false
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Resource not found"}})
		return FakePlaylist{}, false
	}
	return playlist, true
}

func (f *FakeSpotify) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := f.authorized(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          r.PathValue("id"),
		"name":        p.Name,
		"description": p.Description,
		"public":      p.Public,
		"owner":       map[string]any{"id": strings.ToLower(p.Owner), "display_name": p.Owner},
		"tracks":      map[string]any{"total": len(p.Tracks)},
	})
}

func (f *FakeSpotify) handleTracks(w http.ResponseWriter, r *http.Request) {
	p, ok := f.authorized(w, r)
	if !ok {
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > f.PageSize {
		limit = f.PageSize
	}

	end := min(offset+limit, len(p.Tracks))
	items := []map[string]any{}
	for _, tr := range p.Tracks[min(offset, end):end] {
		if tr.Missing {
			items = append(items, map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": nil})
			continue
		}
		artists := []map[string]any{}
		for _, a := range tr.Artists {
			artists = append(artists, map[string]any{"name": a})
		}
		items = append(items, map[string]any{
			"added_at": "2024-01-01T00:00:00Z",
			"track": map[string]any{
				"id":           tr.ID,
				"name":         tr.Name,
				"artists":      artists,
				"album":        map[string]any{"name": tr.Album},
				"duration_ms":  tr.DurationMS,
				"external_ids": map[string]any{"isrc": tr.ISRC},
			},
		})
	}

	var next any
	if end < len(p.Tracks) {
		next = fmt.Sprintf("%s%s?offset=%d&limit=%d", f.Server.URL, r.URL.Path, end, limit)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  len(p.Tracks),
		"limit":  limit,
		"offset": offset,
		"next":   next,
	})
}
