package messagestore

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config configures a Store.
type Config struct {
	// Dir holds the SQLite database, the lock file and, by default,
	// nothing else. Defaults to ~/.messagestore.
	Dir string `toml:"dir"`
	// CurrentUserID is the identity messages are classified against:
	// a message addressed to it decodes as outbound. Required.
	CurrentUserID string `toml:"current_user_id"`
	// LogFile, when set, receives JSON log lines in addition to stderr.
	LogFile string `toml:"log_file"`
	// EventBuffer sizes the change-notification subscription. Zero means
	// a sensible default.
	EventBuffer int `toml:"event_buffer"`
}

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as TOML, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c Config) withDefaults() Config {
	if c.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Dir = filepath.Join(home, ".messagestore")
		} else {
			c.Dir = ".messagestore"
		}
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	return c
}
