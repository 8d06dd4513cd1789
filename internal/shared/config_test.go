package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func validConfig() *Config {
	config := DefaultConfig()
	config.ApplyEnv(lookupFrom(map[string]string{
		EnvClientID:     "client",
		EnvClientSecret: "secret",
		EnvRedirectURI:  "http://127.0.0.1:3000/callback",
	}))
	return config
}

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Session.TokenPath != "refresh_token" {
			t.Errorf("expected token path refresh_token, got %s", config.Session.TokenPath)
		}
		if !config.Session.AutoRefresh {
			t.Error("expected auto refresh to default to true")
		}
		if len(config.Credentials.Spotify.Scopes) != 3 {
			t.Errorf("expected 3 default scopes, got %v", config.Credentials.Spotify.Scopes)
		}
		if config.Log.Level != "info" {
			t.Errorf("expected log level info, got %s", config.Log.Level)
		}
	})

	t.Run("defaults leave the redirect URI unset", func(t *testing.T) {
		config := DefaultConfig()
		config.ApplyEnv(lookupFrom(map[string]string{
			EnvClientID:     "client",
			EnvClientSecret: "secret",
		}))

		if config.Credentials.Spotify.RedirectURI != "" {
			t.Errorf("expected no default redirect URI, got %q", config.Credentials.Spotify.RedirectURI)
		}
		if err := config.Validate(); !errors.Is(err, ErrMissingConfig) || !strings.Contains(err.Error(), EnvRedirectURI) {
			t.Errorf("expected ErrMissingConfig naming %s, got %v", EnvRedirectURI, err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Session.TokenPath != DefaultConfig().Session.TokenPath {
			t.Errorf("created config token path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[credentials.spotify]
client_id = "file_client"
client_secret = "file_secret"
redirect_uri = "http://localhost:8888/cb"

[session]
playlist_id = "37i9dQZF1DXcBWIGoYBM5M"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "file_client" {
			t.Errorf("expected client id file_client, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Session.PlaylistID != "37i9dQZF1DXcBWIGoYBM5M" {
			t.Errorf("unexpected playlist id %s", config.Session.PlaylistID)
		}
		if config.Session.TokenPath != "refresh_token" {
			t.Errorf("missing keys should keep defaults, got token path %q", config.Session.TokenPath)
		}
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[session\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "from_file"
		config.ApplyEnv(lookupFrom(map[string]string{
			EnvClientID:   " from_env ",
			EnvPlaylistID: "pl",
			EnvTokenPath:  "/tmp/token",
		}))

		if config.Credentials.Spotify.ClientID != "from_env" {
			t.Errorf("expected env to win, got %q", config.Credentials.Spotify.ClientID)
		}
		if config.Session.PlaylistID != "pl" {
			t.Errorf("expected playlist pl, got %q", config.Session.PlaylistID)
		}
		if config.Session.TokenPath != "/tmp/token" {
			t.Errorf("expected token path override, got %q", config.Session.TokenPath)
		}
		if config.Log.Level != "info" {
			t.Errorf("unset variables should not change values, got %q", config.Log.Level)
		}
	})

	t.Run("LoadDotEnv", func(t *testing.T) {
		t.Run("missing file is ignored", func(t *testing.T) {
			if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("sets unset variables", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".env")
			if err := os.WriteFile(path, []byte("SPOTSESSION_TEST_VALUE=abc\n"), 0600); err != nil {
				t.Fatalf("failed to write .env: %v", err)
			}
			t.Setenv("SPOTSESSION_TEST_VALUE", "")
			os.Unsetenv("SPOTSESSION_TEST_VALUE")

			if err := LoadDotEnv(path); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := os.Getenv("SPOTSESSION_TEST_VALUE"); got != "abc" {
				t.Errorf("expected abc, got %q", got)
			}
		})
	})

	t.Run("Validate", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			if err := validConfig().Validate(); err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
		})

		tc := []struct {
			name   string
			mutate func(*Config)
			want   error
		}{
			{"missing client id", func(c *Config) { c.Credentials.Spotify.ClientID = "" }, ErrMissingConfig},
			{"missing client secret", func(c *Config) { c.Credentials.Spotify.ClientSecret = "" }, ErrMissingConfig},
			{"missing redirect", func(c *Config) { c.Credentials.Spotify.RedirectURI = "" }, ErrMissingConfig},
			{"relative redirect", func(c *Config) { c.Credentials.Spotify.RedirectURI = "callback" }, ErrInvalidConfig},
			{"unparseable redirect", func(c *Config) { c.Credentials.Spotify.RedirectURI = "http://[::1" }, ErrInvalidConfig},
			{"empty token path", func(c *Config) { c.Session.TokenPath = "" }, ErrInvalidConfig},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := validConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("RequirePlaylist", func(t *testing.T) {
		config := validConfig()
		if _, err := config.RequirePlaylist(); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}

		config.Session.PlaylistID = "abc"
		id, err := config.RequirePlaylist()
		if err != nil || id != "abc" {
			t.Errorf("expected abc, got %q (%v)", id, err)
		}
	})
}
