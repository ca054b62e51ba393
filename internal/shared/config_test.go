package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./respect.db" {
			t.Errorf("expected database path ./respect.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Sync.RateLimit.HighVolumeIntervalMs != 500 || config.Sync.RateLimit.GeneralIntervalMs != 200 {
			t.Errorf("unexpected rate limit defaults: %+v", config.Sync.RateLimit)
		}

		if config.Sync.RunTimeout() != 5*time.Minute {
			t.Errorf("expected run timeout 5m, got %v", config.Sync.RunTimeout())
		}

		if config.Sync.TokenSkew() != 30*time.Second {
			t.Errorf("expected token skew 30s, got %v", config.Sync.TokenSkew())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[sync.rate_limit]
general_interval_ms = 250
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if config.Sync.RateLimit.GeneralIntervalMs != 250 {
			t.Errorf("expected general interval 250, got %d", config.Sync.RateLimit.GeneralIntervalMs)
		}

		if config.Sync.RateLimit.HighVolumeIntervalMs != 500 {
			t.Errorf("unset values should keep defaults, got %d", config.Sync.RateLimit.HighVolumeIntervalMs)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected config to validate, got %v", err)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig malformed file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Validate requires a client secret", func(t *testing.T) {
		config := DefaultConfig()
		config.Credentials.Spotify.ClientSecret = ""

		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig round trips", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Sync.Market = "GB"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Sync.Market != "GB" {
			t.Errorf("expected market GB, got %s", loaded.Sync.Market)
		}
	})

	t.Run("ParsedLevel", func(t *testing.T) {
		if got := (LogConfig{Level: "debug"}).ParsedLevel(); got != log.DebugLevel {
			t.Errorf("expected debug, got %v", got)
		}
		if got := (LogConfig{Level: "loud"}).ParsedLevel(); got != log.InfoLevel {
			t.Errorf("expected fallback to info, got %v", got)
		}
	})
}
