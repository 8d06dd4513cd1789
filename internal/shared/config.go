package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables read by [Config.ApplyEnv].
const (
	EnvClientID     = "CLIENT_ID"
	EnvClientSecret = "CLIENT_SECRET"
	EnvRedirectURI  = "REDIRECT_URI"
	EnvPlaylistID   = "PLAYLIST_ID"
	EnvTokenPath    = "TOKEN_PATH"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFile      = "LOG_FILE"
)

// Config represents the application configuration.
//
// Values come from the embedded defaults, an optional TOML file, an optional .env file
// and the process environment, in increasing order of priority.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Session     SessionConfig     `toml:"session"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

// SessionConfig controls where the refresh token lives and what the resume path fetches.
type SessionConfig struct {
	TokenPath   string `toml:"token_path"`
	PlaylistID  string `toml:"playlist_id"`
	AutoRefresh bool   `toml:"auto_refresh"`
}

// DatabaseConfig contains snapshot database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings. An empty File disables the rotating file sink.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
//
// Variables that are already set are left alone. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides config values with any variables lookup reports as set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	set(&c.Credentials.Spotify.ClientID, EnvClientID)
	set(&c.Credentials.Spotify.ClientSecret, EnvClientSecret)
	set(&c.Credentials.Spotify.RedirectURI, EnvRedirectURI)
	set(&c.Session.PlaylistID, EnvPlaylistID)
	set(&c.Session.TokenPath, EnvTokenPath)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Log.File, EnvLogFile)
}

// Validate checks the values both session paths need: the client credentials and a
// redirect URI that parses as an absolute URI.
func (c *Config) Validate() error {
	sp := c.Credentials.Spotify
	if sp.ClientID == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingConfig, EnvClientID)
	}
	if sp.ClientSecret == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingConfig, EnvClientSecret)
	}
	if sp.RedirectURI == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingConfig, EnvRedirectURI)
	}

	u, err := url.Parse(sp.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvRedirectURI, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute URI, got %q", ErrInvalidConfig, EnvRedirectURI, sp.RedirectURI)
	}

	if c.Session.TokenPath == "" {
		return fmt.Errorf("%w: token path is empty", ErrInvalidConfig)
	}
	return nil
}

// RequirePlaylist returns the configured playlist ID, which only the resume path needs.
func (c *Config) RequirePlaylist() (string, error) {
	if c.Session.PlaylistID == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrMissingConfig, EnvPlaylistID)
	}
	return c.Session.PlaylistID, nil
}
