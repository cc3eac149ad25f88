package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
feed:
  url: wss://feed.example.com/ws
database:
  host: localhost
  name: feed_db
  user: feeduser
  password: feedpass
recorder:
  batch_size: 250
channels:
  - type: trades
    symbol: BTC
  - type: candle
    symbol: eth
    interval: 1m
`

func TestLoad(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != "wss://feed.example.com/ws" {
		t.Errorf("Feed.URL = %q", cfg.Feed.URL)
	}
	if cfg.Recorder.BatchSize != 250 {
		t.Errorf("Recorder.BatchSize = %d, want 250", cfg.Recorder.BatchSize)
	}
	if len(cfg.Channels) != 2 {
		t.Fatalf("Channels = %d, want 2", len(cfg.Channels))
	}
	if cfg.Channels[1].Interval != "1m" {
		t.Errorf("Channels[1].Interval = %q, want 1m", cfg.Channels[1].Interval)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("FEED_DB_PASSWORD", "s3cret")

	yaml := `
feed:
  url: wss://feed.example.com/ws
database:
  host: localhost
  name: feed_db
  user: feeduser
  password: ${FEED_DB_PASSWORD}
channels:
  - type: allMids
`
	cfg, err := Load(writeTempFile(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("Password = %q, want expanded env value", cfg.Database.Password)
	}
}

func TestLoadAndValidate_AppliesDefaults(t *testing.T) {
	cfg, err := LoadAndValidate(writeTempFile(t, validYAML))
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Feed.QueueCapacity != DefaultQueueCapacity {
		t.Errorf("QueueCapacity = %d, want default %d", cfg.Feed.QueueCapacity, DefaultQueueCapacity)
	}
	if cfg.Feed.HeartbeatInterval != 50*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 50s", cfg.Feed.HeartbeatInterval)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.SSLMode != "prefer" {
		t.Errorf("SSLMode = %q, want prefer", cfg.Database.SSLMode)
	}
	if cfg.Recorder.FlushInterval != DefaultFlushInterval {
		t.Errorf("FlushInterval = %s, want default", cfg.Recorder.FlushInterval)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing url", `
database:
  host: localhost
  name: db
  user: u
channels:
  - type: trades
`},
		{"missing db host", `
feed:
  url: wss://feed.example.com/ws
database:
  name: db
  user: u
channels:
  - type: trades
`},
		{"no channels", `
feed:
  url: wss://feed.example.com/ws
database:
  host: localhost
  name: db
  user: u
`},
		{"channel without type", `
feed:
  url: wss://feed.example.com/ws
database:
  host: localhost
  name: db
  user: u
channels:
  - symbol: BTC
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadAndValidate(writeTempFile(t, tt.yaml)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
