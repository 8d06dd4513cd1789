// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/spotsession/internal/formatter"
	"github.com/urfave/cli/v3"
)

const version = "0.3.0"

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "spotsession",
		Usage:   "Authorize against Spotify once, then fetch a playlist with the stored refresh token",
		Version: version,
		Description: "Without a subcommand, spotsession resumes from the stored refresh token when it can be read " +
			"and fetches PLAYLIST_ID. Otherwise it prints an authorization URL, asks for the redirection URL " +
			"and stores the new refresh token.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with CLIENT_ID, CLIENT_SECRET, REDIRECT_URI and PLAYLIST_ID",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "token-path",
				Usage: "Path of the refresh token file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Writer:    r.stdout,
		ErrWriter: r.stderr,
		Before:    r.Before,
		After:     r.After,
		Action:    r.Run,
		Commands:  r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		authCommand, fetchCommand, tokenCommand, setupCommand, snapshotCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// authCommand forces the new-session path
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize a new session and store its refresh token",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "listen",
				Usage: "Receive the redirect on the local address of the redirect URI instead of pasting it",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the authorization URL in the default browser",
			},
		},
		Action: r.Auth,
	}
}

// fetchCommand forces the resume path
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch a playlist using the stored refresh token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist ID (defaults to PLAYLIST_ID)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Print the tracks as " + formatNames(),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the formatted tracks to this file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Record a snapshot in this SQLite database",
			},
		},
		Action: r.Fetch,
	}
}

// tokenCommand inspects the stored refresh token
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Inspect the stored refresh token",
		Commands: []*cli.Command{
			{
				Name:   "path",
				Usage:  "Print the token file path",
				Action: r.TokenPath,
			},
			{
				Name:   "show",
				Usage:  "Print the stored refresh token, masked",
				Action: r.TokenShow,
			},
			{
				Name:   "clear",
				Usage:  "Delete the token file so the next run authorizes again",
				Action: r.TokenClear,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the snapshot database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config file from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write the config file",
						Value: "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the snapshot database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Database path (defaults to database.path from the config)",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// snapshotCommand reads back snapshots recorded by fetch --db
func snapshotCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Read recorded playlist snapshots",
		Commands: []*cli.Command{
			{
				Name:  "latest",
				Usage: "Print the most recent snapshot of a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "db",
						Usage: "Snapshot database (defaults to database.path from the config)",
					},
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Playlist ID (defaults to PLAYLIST_ID)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: " + formatNames(),
						Value:   "text",
					},
				},
				Action: r.SnapshotLatest,
			},
		},
	}
}

func formatNames() string {
	s := ""
	for i, f := range formatter.Formats {
		if i > 0 {
			s += ", "
		}
		s += string(f)
	}
	return s
}
