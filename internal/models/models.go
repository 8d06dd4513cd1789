// package models defines the playlist data moved between the Spotify client, the formatter and the snapshot store
package models

import "time"

// Playlist represents playlist metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// Track represents one entry of a playlist.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration"`       // Duration in seconds
	ISRC     string `json:"isrc,omitempty"` // International Standard Recording Code
	AddedAt  string `json:"added_at,omitempty"`
}

// PlaylistExport is a playlist together with its ordered tracks.
type PlaylistExport struct {
	Playlist  Playlist  `json:"playlist"`
	Tracks    []Track   `json:"tracks"`
	FetchedAt time.Time `json:"fetched_at"`
}
