package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotsession/internal/models"
	"github.com/desertthunder/spotsession/internal/shared"
)

// ErrNoSnapshot is returned by [SnapshotRepository.Latest] when a playlist was never recorded.
var ErrNoSnapshot = errors.New("no snapshot recorded")

// Snapshot is a recorded [models.PlaylistExport].
type Snapshot struct {
	ID string
	models.PlaylistExport
}

// SnapshotRepository records fetched playlists in SQLite.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection.
// The schema is expected to be migrated with [shared.RunMigrations].
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save records export and its tracks in order and returns the new snapshot ID.
func (r *SnapshotRepository) Save(export *models.PlaylistExport) (string, error) {
	if export == nil || export.Playlist.ID == "" {
		return "", fmt.Errorf("%w: snapshot needs a playlist ID", shared.ErrInvalidArgument)
	}

	fetchedAt := export.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	id := shared.GenerateID()
	p := export.Playlist

	err := withTx(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO playlist_snapshots (id, playlist_id, name, description, owner, public, track_count, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, p.ID, p.Name, p.Description, p.Owner, p.Public, p.TrackCount, fetchedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO snapshot_tracks (snapshot_id, position, track_id, title, artist, album, duration, isrc, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare track insert: %w", err)
		}
		defer stmt.Close()

		for i, t := range export.Tracks {
			if _, err := stmt.Exec(id, i, t.ID, t.Title, t.Artist, t.Album, t.Duration, t.ISRC, t.AddedAt); err != nil {
				return fmt.Errorf("failed to insert track %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// Latest returns the most recently fetched snapshot of playlistID.
func (r *SnapshotRepository) Latest(playlistID string) (*Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT id, playlist_id, name, description, owner, public, track_count, fetched_at
		FROM playlist_snapshots
		WHERE playlist_id = ?
		ORDER BY fetched_at DESC
		LIMIT 1
	`, playlistID)

	var s Snapshot
	p := &s.Playlist
	if err := row.Scan(&s.ID, &p.ID, &p.Name, &p.Description, &p.Owner, &p.Public, &p.TrackCount, &s.FetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w for playlist %s", ErrNoSnapshot, playlistID)
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	tracks, err := r.tracks(s.ID)
	if err != nil {
		return nil, err
	}
	s.Tracks = tracks
	return &s, nil
}

// Count returns the number of snapshots recorded for playlistID.
func (r *SnapshotRepository) Count(playlistID string) (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM playlist_snapshots WHERE playlist_id = ?", playlistID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

func (r *SnapshotRepository) tracks(snapshotID string) ([]models.Track, error) {
	rows, err := r.db.Query(`
		SELECT track_id, title, artist, album, duration, isrc, added_at
		FROM snapshot_tracks
		WHERE snapshot_id = ?
		ORDER BY position ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.Track{}
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.Duration, &t.ISRC, &t.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}
