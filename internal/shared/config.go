package shared

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ConsoleConfig is the operator CLI's persisted state: where the API lives and
// the session obtained by the last login.
type ConsoleConfig struct {
	ServerURL      string `json:"server_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Token          string `json:"token,omitempty"`
	Username       string `json:"username,omitempty"`
}

// LoadConsoleConfig reads path. A missing file yields defaults, not an error.
func LoadConsoleConfig(path string) (*ConsoleConfig, error) {
	var c ConsoleConfig
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://127.0.0.1:3000/api"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return &c, nil
}

func SaveConsoleConfig(path string, c *ConsoleConfig) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o600)
}
