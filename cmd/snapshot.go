package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/spotsession/internal/formatter"
	"github.com/desertthunder/spotsession/internal/repositories"
	"github.com/desertthunder/spotsession/internal/shared"
	"github.com/urfave/cli/v3"
)

// SnapshotLatest prints the most recently recorded snapshot of a playlist. It does not contact Spotify.
func (r *Runner) SnapshotLatest(ctx context.Context, cmd *cli.Command) error {
	if p := cmd.String("playlist"); p != "" {
		r.config.Session.PlaylistID = p
	}
	playlistID, err := r.config.RequirePlaylist()
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	path := cmd.String("db")
	if path == "" {
		path = r.config.Database.Path
	}

	db, err := r.openSnapshots(path)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewSnapshotRepository(db)
	snap, err := repo.Latest(playlistID)
	if err != nil {
		return err
	}
	n, err := repo.Count(playlistID)
	if err != nil {
		return err
	}

	r.logger.Info("latest snapshot", "id", snap.ID, "fetched_at", snap.FetchedAt, "snapshots", n)
	return formatter.Write(r.stdout, &snap.PlaylistExport, format)
}

// openSnapshots opens the snapshot database at path and brings its schema up to date.
func (r *Runner) openSnapshots(path string) (*sql.DB, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
