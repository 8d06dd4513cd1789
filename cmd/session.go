package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotsession/internal/auth"
	"github.com/desertthunder/spotsession/internal/formatter"
	"github.com/desertthunder/spotsession/internal/models"
	"github.com/desertthunder/spotsession/internal/repositories"
	"github.com/desertthunder/spotsession/internal/server"
	"github.com/desertthunder/spotsession/internal/services"
	"github.com/desertthunder/spotsession/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run is the default action: resume when a refresh token can be loaded, otherwise authorize.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.spotify()
	if err != nil {
		return err
	}

	engine, stop := r.engine(tasks.EngineOpts{
		Service:    svc,
		Authorizer: r.authorizer(svc, auth.NewPrompter(r.stdin, r.stderr), false),
		PlaylistID: r.config.Session.PlaylistID,
	})
	defer stop()

	return engine.Run(ctx)
}

// Auth runs the new-session path regardless of any stored token.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.spotify()
	if err != nil {
		return err
	}

	var source auth.CallbackSource = auth.NewPrompter(r.stdin, r.stderr)
	if cmd.Bool("listen") {
		listener, err := server.NewCallbackListener(r.config.Credentials.Spotify.RedirectURI, r.logger)
		if err != nil {
			return err
		}
		if _, err := listener.Listen(); err != nil {
			return err
		}
		source = listener
	}

	engine, stop := r.engine(tasks.EngineOpts{
		Service:    svc,
		Authorizer: r.authorizer(svc, source, cmd.Bool("open")),
	})
	defer stop()

	return engine.NewSession(ctx)
}

// Fetch runs the resume path. It fails when no refresh token is stored.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	if p := cmd.String("playlist"); p != "" {
		r.config.Session.PlaylistID = p
	}
	playlistID, err := r.config.RequirePlaylist()
	if err != nil {
		return err
	}

	secret, err := r.tokenFile().Load()
	if err != nil {
		return fmt.Errorf("%w (run `spotsession auth` first)", err)
	}

	sinks, err := r.sinks(cmd)
	if err != nil {
		return err
	}

	svc, err := r.spotify()
	if err != nil {
		return err
	}

	engine, stop := r.engine(tasks.EngineOpts{
		Service:    svc,
		PlaylistID: playlistID,
		Sinks:      sinks,
	})
	defer stop()

	_, err = engine.Resume(ctx, secret)
	return err
}

func (r *Runner) authorizer(svc services.OAuthService, source auth.CallbackSource, open bool) *auth.Authorizer {
	opts := auth.AuthorizerOpts{
		Service: svc,
		Source:  source,
		Stdout:  r.stdout,
		Stderr:  r.stderr,
		Logger:  r.logger,
	}
	if open {
		opts.OpenBrowser = r.openBrowser
	}
	return auth.NewAuthorizer(opts)
}

// sinks turns the fetch flags into export sinks. Without flags the tracks go nowhere.
func (r *Runner) sinks(cmd *cli.Command) ([]tasks.ExportSink, error) {
	var sinks []tasks.ExportSink

	name, output := cmd.String("format"), cmd.String("output")
	if name != "" || output != "" {
		if name == "" {
			name = formatFromPath(output)
		}
		format, err := formatter.ParseFormat(name)
		if err != nil {
			return nil, err
		}

		sinks = append(sinks, func(_ context.Context, export *models.PlaylistExport) error {
			if output == "" {
				return formatter.Write(r.stdout, export, format)
			}
			if err := formatter.WriteFile(output, export, format); err != nil {
				return err
			}
			r.logger.Info("wrote playlist", "path", output, "format", format)
			return nil
		})
	}

	if dbPath := cmd.String("db"); dbPath != "" {
		sinks = append(sinks, func(_ context.Context, export *models.PlaylistExport) error {
			return r.recordSnapshot(dbPath, export)
		})
	}

	return sinks, nil
}

func (r *Runner) recordSnapshot(path string, export *models.PlaylistExport) error {
	db, err := r.openSnapshots(path)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := repositories.NewSnapshotRepository(db).Save(export)
	if err != nil {
		return err
	}
	r.logger.Info("recorded snapshot", "id", id, "db", path)
	return nil
}

// formatFromPath guesses a format from the output file extension, falling back to text.
func formatFromPath(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return string(formatter.FormatText)
	}
	if _, err := formatter.ParseFormat(path[i+1:]); err != nil {
		return string(formatter.FormatText)
	}
	return path[i+1:]
}
