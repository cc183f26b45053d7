package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// GlobalConfig is the connection saved by `vocab auth login`.
type GlobalConfig struct {
	APIToken string `json:"api_token,omitempty"`
	APIURL   string `json:"api_url"`
}

// getConfigPathFunc is swapped out by tests.
var getConfigPathFunc = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, "vocab", "config.json"), nil
}

// GetConfigPath is where the global config lives, typically
// ~/.config/vocab/config.json.
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig returns nil without error when nothing has been saved.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := &GlobalConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveGlobalConfig replaces the stored config. The file is readable by the
// owner only since it may hold a token.
func SaveGlobalConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DeleteGlobalConfig is a no-op when nothing is stored.
func DeleteGlobalConfig() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// CredentialSource represents where the connection settings came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceDefault      CredentialSource = "default"
)

// Connection is a resolved server URL and optional token.
type Connection struct {
	Source CredentialSource
	URL    string
	Token  string
}

// ResolveConnection applies the cascade flag -> env -> global config ->
// default, independently for the URL and the token. Source names where the
// URL came from.
func ResolveConnection(flagToken, flagURL string) (Connection, error) {
	conn := Connection{URL: flagURL, Token: flagToken, Source: SourceFlag}

	if conn.Token == "" {
		conn.Token = os.Getenv(envAPIToken)
	}
	if conn.URL == "" {
		conn.URL = os.Getenv(envAPIURL)
		conn.Source = SourceEnv
	}

	if conn.Token == "" || conn.URL == "" {
		global, err := LoadGlobalConfig()
		if err != nil {
			return Connection{}, err
		}
		if global != nil {
			if conn.Token == "" {
				conn.Token = global.APIToken
			}
			if conn.URL == "" && global.APIURL != "" {
				conn.URL = global.APIURL
				conn.Source = SourceGlobalConfig
			}
		}
	}

	if conn.URL == "" {
		conn.URL = defaultAPIURL
		conn.Source = SourceDefault
	}
	return conn, nil
}
