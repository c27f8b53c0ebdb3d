// Package clicreds persists virtrpcctl's last-used server URL and bearer
// token between invocations as a JSON file under XDG_CONFIG_HOME.
package clicreds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	configDirName  = "virtrpcctl"
	configFileName = "config.json"
	filePerm       = 0o600
	dirPerm        = 0o700
)

// ErrNotLoggedIn means no usable token is on disk; run `virtrpcctl auth login`.
var ErrNotLoggedIn = errors.New("not logged in - run 'virtrpcctl auth login' first")

// Session is the persisted state of the last successful login.
type Session struct {
	ServerURL string    `json:"server_url"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether Token has (or is about to) expire.
func (s *Session) IsExpired() bool {
	if s.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(30 * time.Second).After(s.ExpiresAt)
}

func configPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName, configFileName), nil
}

// Load reads the saved session, or ErrNotLoggedIn if none exists.
func Load() (*Session, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &sess, nil
}

// Save persists sess, creating the config directory if needed.
func Save(sess *Session) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return os.WriteFile(path, data, filePerm)
}
