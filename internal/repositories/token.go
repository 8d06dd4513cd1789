package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/desertthunder/spotsession/internal/shared"
)

// DefaultTokenPath is the token file name used when none is configured, relative to the working directory.
const DefaultTokenPath = "refresh_token"

// TokenFile stores the refresh secret as a single JSON string.
//
// Each save overwrites the file wholesale. Writes are not atomic.
type TokenFile struct {
	Path string
}

// NewTokenFile returns a [TokenFile] at path, or at [DefaultTokenPath] when path is empty.
func NewTokenFile(path string) *TokenFile {
	if path == "" {
		path = DefaultTokenPath
	}
	return &TokenFile{Path: path}
}

// Save reads the secret from src and writes it to the file with mode 0600.
func (f *TokenFile) Save(src SecretSource) error {
	secret, err := src.RefreshSecret()
	if err != nil {
		return err
	}

	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("%w: failed to encode refresh token: %v", shared.ErrTokenFile, err)
	}

	file, err := os.OpenFile(f.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrTokenFile, err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", shared.ErrTokenFile, f.Path, err)
	}
	return file.Close()
}

// Load reads the stored secret. The file must hold exactly one JSON string.
func (f *TokenFile) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrTokenFile, err)
	}

	// null decodes without error into a string, so decode through a pointer
	var secret *string
	if err := json.Unmarshal(data, &secret); err != nil {
		return "", fmt.Errorf("%w: %s does not hold a JSON string: %v", shared.ErrTokenFile, f.Path, err)
	}
	if secret == nil {
		return "", fmt.Errorf("%w: %s holds null", shared.ErrTokenFile, f.Path)
	}
	return *secret, nil
}

// Exists reports whether the token file is present.
func (f *TokenFile) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

// Clear removes the token file. A missing file is not an error.
func (f *TokenFile) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", shared.ErrTokenFile, err)
	}
	return nil
}
