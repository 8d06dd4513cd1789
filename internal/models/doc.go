// Package models defines the data transfer objects of spotsession.
//
//   - [Playlist] : playlist metadata as reported by Spotify
//   - [Track] : a single playlist entry, with ISRC when Spotify knows it
//   - [PlaylistExport] : a playlist with its complete, ordered track listing
//
// The types carry JSON tags so the formatter can emit them directly.
package models
