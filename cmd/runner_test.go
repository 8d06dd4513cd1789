package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotsession/internal/models"
	"github.com/desertthunder/spotsession/internal/repositories"
	"github.com/desertthunder/spotsession/internal/services"
	"github.com/desertthunder/spotsession/internal/shared"
	tu "github.com/desertthunder/spotsession/internal/testing"
)

const testRedirectURI = "http://127.0.0.1:3000/callback"

type env map[string]string

func (e env) lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

type fixture struct {
	fake   *tu.FakeSpotify
	dir    string
	env    env
	stdout *tu.SyncBuffer
	stderr *tu.SyncBuffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := tu.NewFakeSpotify(t)
	f.Playlists["pl1"] = tu.FakePlaylist{
		Name:  "Road Trip",
		Owner: "Alice",
		Tracks: []tu.FakeTrack{
			{ID: "t1", Name: "One", Artists: []string{"A"}, DurationMS: 61000, ISRC: "I1"},
			{ID: "t2", Name: "Two", Artists: []string{"B", "C"}, DurationMS: 120000, ISRC: "I2"},
			{ID: "t3", Name: "Three", Artists: []string{"D"}, DurationMS: 3000},
		},
	}

	return &fixture{
		fake: f,
		dir:  tu.ChdirTemp(t),
		env: env{
			shared.EnvClientID:     f.ClientID,
			shared.EnvClientSecret: f.ClientSecret,
			shared.EnvRedirectURI:  testRedirectURI,
			shared.EnvPlaylistID:   "pl1",
		},
		stdout: &tu.SyncBuffer{},
		stderr: &tu.SyncBuffer{},
	}
}

func (fx *fixture) runner(stdin io.Reader, stdout io.Writer) *Runner {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = fx.stdout
	}
	return NewRunner(RunnerOpts{
		Logger: shared.NewLogger(fx.stderr),
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: fx.stderr,
		Lookup: fx.env.lookup,
		ServiceOptions: []services.Option{
			services.WithEndpoint(fx.fake.AuthURL(), fx.fake.TokenURL()),
			services.WithBaseURL(fx.fake.BaseURL()),
			services.WithHTTPClient(fx.fake.Server.Client()),
		},
		OpenBrowser: func(string) error { return errors.New("no browser in tests") },
	})
}

func (fx *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	return fx.runner(nil, nil).app().Run(context.Background(), append([]string{"spotsession"}, args...))
}

// authorize runs args while answering the prompt with the state read from the printed URL.
// Returns the lines written to stdout.
func (fx *fixture) authorize(t *testing.T, args ...string) ([]string, error) {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := fx.runner(inR, outW).app().Run(context.Background(), append([]string{"spotsession"}, args...))
		outW.Close()
		inR.Close()
		errc <- err
	}()

	var lines []string
	sc := bufio.NewScanner(outR)
	for sc.Scan() {
		line := sc.Text()
		lines = append(lines, line)

		if u, err := url.Parse(line); err == nil && u.Query().Get("state") != "" {
			answer := fmt.Sprintf("not-a-url\n%s?code=%s&state=%s\n", testRedirectURI, fx.fake.Code, u.Query().Get("state"))
			go io.WriteString(inW, answer)
		}
	}

	select {
	case err := <-errc:
		return lines, err
	case <-time.After(10 * time.Second):
		t.Fatal("command did not finish")
		return nil, nil
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner defaults", func(t *testing.T) {
		r := NewRunner(RunnerOpts{})

		if r.logger == nil {
			t.Error("expected default logger to be set")
		}
		if r.stdout != os.Stdout || r.stderr != os.Stderr || r.stdin != os.Stdin {
			t.Error("expected standard streams by default")
		}
		if r.lookup == nil || r.openBrowser == nil {
			t.Error("expected env lookup and browser opener defaults")
		}
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := []string{}
		for _, cmd := range commands {
			names = append(names, cmd.Name)
		}
		if strings.Join(names, ",") != "auth,fetch,token,setup,snapshot" {
			t.Errorf("unexpected commands %v", names)
		}
	})
}

func TestDefaultAction(t *testing.T) {
	t.Run("first run authorizes, second run fetches", func(t *testing.T) {
		fx := newFixture(t)

		lines, err := fx.authorize(t)
		if err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if len(lines) != 2 {
			t.Fatalf("expected the URL and the rerun message on stdout, got %q", lines)
		}

		u, err := url.Parse(lines[0])
		if err != nil {
			t.Fatalf("first stdout line should be the authorization URL: %v", err)
		}
		if u.Query().Get("client_id") != fx.fake.ClientID || u.Query().Get("redirect_uri") != testRedirectURI {
			t.Errorf("unexpected authorization URL %s", lines[0])
		}
		if lines[1] != "Run the program again to use the refresh token" {
			t.Errorf("unexpected final line %q", lines[1])
		}

		stderr := fx.stderr.String()
		if strings.Count(stderr, "Enter the redirection URL:") != 2 {
			t.Errorf("expected a re-prompt after the bad line, got %q", stderr)
		}
		if got := tu.MustReadFile(t, filepath.Join(fx.dir, "refresh_token")); got != `"refresh-secret"` {
			t.Errorf("unexpected token file %s", got)
		}
		if _, _, api := fx.fake.Counts(); api != 0 {
			t.Errorf("first run must not fetch, got %d API requests", api)
		}

		if err := fx.run(t); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if fx.stdout.String() != "" {
			t.Errorf("resume prints nothing to stdout by default, got %q", fx.stdout.String())
		}
		if !strings.Contains(fx.stderr.String(), "tracks=3") {
			t.Errorf("expected the track count in the log, got %q", fx.stderr.String())
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		fx := newFixture(t)
		delete(fx.env, shared.EnvClientSecret)

		if err := fx.run(t); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("missing redirect URI", func(t *testing.T) {
		fx := newFixture(t)
		delete(fx.env, shared.EnvRedirectURI)

		if err := fx.run(t); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
		if fx.stdout.String() != "" {
			t.Errorf("expected no authorization URL, got %q", fx.stdout.String())
		}
		if exchanges, _, _ := fx.fake.Counts(); exchanges != 0 {
			t.Errorf("expected no exchange, got %d", exchanges)
		}
	})

	t.Run("null token file authorizes again", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", "null")

		lines, err := fx.authorize(t)
		if err != nil {
			t.Fatalf("expected a new session, got %v", err)
		}
		if len(lines) != 2 || lines[1] != "Run the program again to use the refresh token" {
			t.Errorf("unexpected stdout %q", lines)
		}
		if got := tu.MustReadFile(t, filepath.Join(fx.dir, "refresh_token")); got != `"refresh-secret"` {
			t.Errorf("expected the token file to be replaced, got %s", got)
		}
	})

	t.Run("relative redirect URI", func(t *testing.T) {
		fx := newFixture(t)
		fx.env[shared.EnvRedirectURI] = "/callback"

		if err := fx.run(t); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("resume without playlist", func(t *testing.T) {
		fx := newFixture(t)
		delete(fx.env, shared.EnvPlaylistID)
		tu.MustWriteFile(t, "refresh_token", `"refresh-secret"`)

		if err := fx.run(t); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("revoked token", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"revoked"`)

		if err := fx.run(t); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("input closed before a valid URL", func(t *testing.T) {
		fx := newFixture(t)
		err := fx.runner(strings.NewReader("garbage\n"), nil).app().Run(context.Background(), []string{"spotsession"})

		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("expected ErrUnexpectedEOF, got %v", err)
		}
		tu.AssertFileMissing(t, "refresh_token")
	})
}

func TestAuthCommand(t *testing.T) {
	t.Run("replaces an existing token", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"old"`)

		if _, err := fx.authorize(t, "auth", "--open"); err != nil {
			t.Fatalf("auth failed: %v", err)
		}
		if secret, err := repositories.NewTokenFile("refresh_token").Load(); err != nil || secret != "refresh-secret" {
			t.Errorf("expected the new secret, got %q (%v)", secret, err)
		}
		if !strings.Contains(fx.stderr.String(), "could not open browser") {
			t.Errorf("expected a browser warning, got %q", fx.stderr.String())
		}
	})

	t.Run("listen needs an http redirect URI", func(t *testing.T) {
		fx := newFixture(t)
		fx.env[shared.EnvRedirectURI] = "https://example.com/callback"

		if err := fx.run(t, "auth", "--listen"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestFetchCommand(t *testing.T) {
	t.Run("without a token", func(t *testing.T) {
		fx := newFixture(t)
		if err := fx.run(t, "fetch"); !errors.Is(err, shared.ErrTokenFile) {
			t.Errorf("expected ErrTokenFile, got %v", err)
		}
	})

	t.Run("json to stdout", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"refresh-secret"`)

		if err := fx.run(t, "fetch", "--format", "json"); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}

		var export models.PlaylistExport
		if err := json.Unmarshal([]byte(fx.stdout.String()), &export); err != nil {
			t.Fatalf("stdout should be JSON: %v\n%s", err, fx.stdout.String())
		}
		if export.Playlist.Name != "Road Trip" || len(export.Tracks) != 3 {
			t.Errorf("unexpected export %+v", export)
		}
		if export.Tracks[1].Artist != "B, C" || export.Tracks[0].Duration != 61 {
			t.Errorf("unexpected track conversion %+v", export.Tracks)
		}
	})

	t.Run("output file format from extension", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"refresh-secret"`)

		if err := fx.run(t, "fetch", "--output", "tracks.md"); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if !strings.HasPrefix(tu.MustReadFile(t, "tracks.md"), "# Road Trip") {
			t.Error("expected a Markdown file")
		}
		if fx.stdout.String() != "" {
			t.Errorf("stdout should stay empty, got %q", fx.stdout.String())
		}
	})

	t.Run("playlist flag and snapshot", func(t *testing.T) {
		fx := newFixture(t)
		delete(fx.env, shared.EnvPlaylistID)
		tu.MustWriteFile(t, "refresh_token", `"refresh-secret"`)
		dbPath := filepath.Join(fx.dir, "snapshots.db")

		if err := fx.run(t, "fetch", "--playlist", "pl1", "--db", dbPath); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}

		db, err := shared.NewDatabase(dbPath)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()

		snap, err := repositories.NewSnapshotRepository(db).Latest("pl1")
		if err != nil {
			t.Fatalf("expected a snapshot: %v", err)
		}
		if len(snap.Tracks) != 3 || snap.Tracks[2].Title != "Three" {
			t.Errorf("unexpected snapshot tracks %+v", snap.Tracks)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"refresh-secret"`)

		if err := fx.run(t, "fetch", "--format", "yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if exchanges, refreshes, _ := fx.fake.Counts(); exchanges+refreshes != 0 {
			t.Error("flags should be checked before contacting Spotify")
		}
	})

	t.Run("unknown playlist", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"refresh-secret"`)

		if err := fx.run(t, "fetch", "-p", "nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}

func TestTokenCommands(t *testing.T) {
	t.Run("path honors --token-path", func(t *testing.T) {
		fx := newFixture(t)
		if err := fx.run(t, "--token-path", "custom.json", "token", "path"); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(fx.stdout.String()) != "custom.json" {
			t.Errorf("unexpected path %q", fx.stdout.String())
		}
	})

	t.Run("show masks the secret", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"abcd-very-secret-wxyz"`)

		if err := fx.run(t, "token", "show"); err != nil {
			t.Fatal(err)
		}
		out := strings.TrimSpace(fx.stdout.String())
		if strings.Contains(out, "very-secret") || !strings.HasPrefix(out, "abcd") || !strings.HasSuffix(out, "wxyz") {
			t.Errorf("unexpected masked output %q", out)
		}
	})

	t.Run("show without token", func(t *testing.T) {
		fx := newFixture(t)
		if err := fx.run(t, "token", "show"); !errors.Is(err, shared.ErrTokenFile) {
			t.Errorf("expected ErrTokenFile, got %v", err)
		}
	})

	t.Run("clear", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"x"`)

		if err := fx.run(t, "token", "clear"); err != nil {
			t.Fatal(err)
		}
		tu.AssertFileMissing(t, "refresh_token")

		if err := fx.run(t, "token", "clear"); err != nil {
			t.Errorf("clearing twice should succeed, got %v", err)
		}
	})

	t.Run("token commands need no credentials", func(t *testing.T) {
		fx := newFixture(t)
		fx.env = env{}
		if err := fx.run(t, "token", "path"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestConfigLoading(t *testing.T) {
	t.Run("config file", func(t *testing.T) {
		fx := newFixture(t)
		fx.env = env{}
		tu.MustWriteFile(t, "spot.toml", fmt.Sprintf(`
[credentials.spotify]
client_id = %q
client_secret = %q
redirect_uri = %q

[session]
token_path = "from-config"
playlist_id = "pl1"
`, fx.fake.ClientID, fx.fake.ClientSecret, testRedirectURI))
		tu.MustWriteFile(t, "from-config", `"refresh-secret"`)

		if err := fx.run(t, "--config", "spot.toml", "fetch", "--format", "text"); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if !strings.HasPrefix(fx.stdout.String(), "Playlist: Road Trip") {
			t.Errorf("unexpected output %q", fx.stdout.String())
		}
	})

	t.Run("environment overrides the config file", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "config.toml", "[session]\ntoken_path = \"ignored\"\n")
		fx.env[shared.EnvTokenPath] = "from-env"

		if err := fx.run(t, "token", "path"); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(fx.stdout.String()) != "from-env" {
			t.Errorf("expected from-env, got %q", fx.stdout.String())
		}
	})

	t.Run("explicit missing config", func(t *testing.T) {
		fx := newFixture(t)
		if err := fx.run(t, "--config", "missing.toml", "token", "path"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "config.toml", "[session\n")
		if err := fx.run(t, "token", "path"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		fx := newFixture(t)
		if err := fx.run(t, "--log-level", "loud", "token", "path"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("log file", func(t *testing.T) {
		fx := newFixture(t)
		fx.env[shared.EnvLogFile] = filepath.Join(fx.dir, "spotsession.log")

		if err := fx.run(t, "--log-level", "debug", "token", "path"); err != nil {
			t.Fatal(err)
		}
		tu.AssertFileExists(t, filepath.Join(fx.dir, "spotsession.log"))
	})

	t.Run("env file", func(t *testing.T) {
		fx := newFixture(t)
		fx.env = env{}
		t.Cleanup(func() { os.Unsetenv(shared.EnvTokenPath) })
		tu.MustWriteFile(t, "local.env", "TOKEN_PATH=dotenv-token\n")

		r := fx.runner(nil, nil)
		r.lookup = os.LookupEnv
		if err := r.app().Run(context.Background(), []string{"spotsession", "--env-file", "local.env", "token", "path"}); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(fx.stdout.String()) != "dotenv-token" {
			t.Errorf("expected dotenv-token, got %q", fx.stdout.String())
		}
	})
}

func TestSnapshotCommands(t *testing.T) {
	t.Run("latest prints the recorded playlist", func(t *testing.T) {
		fx := newFixture(t)
		tu.MustWriteFile(t, "refresh_token", `"refresh-secret"`)
		dbPath := filepath.Join(fx.dir, "snapshots.db")

		for range 2 {
			if err := fx.run(t, "fetch", "--db", dbPath); err != nil {
				t.Fatalf("fetch failed: %v", err)
			}
		}
		_, _, before := fx.fake.Counts()

		if err := fx.run(t, "snapshot", "latest", "--db", dbPath, "--format", "json"); err != nil {
			t.Fatalf("snapshot latest failed: %v", err)
		}

		var export models.PlaylistExport
		if err := json.Unmarshal([]byte(fx.stdout.String()), &export); err != nil {
			t.Fatalf("expected JSON on stdout: %v", err)
		}
		if export.Playlist.ID != "pl1" || len(export.Tracks) != 3 || export.Tracks[0].Title != "One" {
			t.Errorf("unexpected snapshot %+v", export)
		}
		if !strings.Contains(fx.stderr.String(), "snapshots=2") {
			t.Errorf("expected the snapshot count in the log, got %q", fx.stderr.String())
		}
		if _, _, after := fx.fake.Counts(); after != before {
			t.Error("reading a snapshot must not contact Spotify")
		}
	})

	t.Run("latest without a recorded playlist", func(t *testing.T) {
		fx := newFixture(t)
		dbPath := filepath.Join(fx.dir, "empty.db")

		if err := fx.run(t, "snapshot", "latest", "--db", dbPath, "-p", "pl1"); !errors.Is(err, repositories.ErrNoSnapshot) {
			t.Errorf("expected ErrNoSnapshot, got %v", err)
		}
	})

	t.Run("latest rejects an unknown format", func(t *testing.T) {
		fx := newFixture(t)

		if err := fx.run(t, "snapshot", "latest", "--format", "yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		fx := newFixture(t)
		if err := fx.run(t, "setup", "config", "--path", "new.toml"); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, "new.toml")

		if err := fx.run(t, "--config", "new.toml", "token", "path"); err != nil {
			t.Errorf("generated config should load, got %v", err)
		}
		if err := fx.run(t, "setup", "config", "--path", "new.toml"); err == nil {
			t.Error("expected an error when the config already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		fx := newFixture(t)
		dbPath := filepath.Join(fx.dir, "snap.db")

		if err := fx.run(t, "setup", "database", "--path", dbPath); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, dbPath)

		if err := fx.run(t, "setup", "database", "--path", dbPath, "--rollback"); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		if err := fx.run(t, "setup", "database", "--path", dbPath, "--rollback"); err == nil {
			t.Error("expected an error with nothing left to roll back")
		}
	})
}
