package config

import "time"

// Config is the root configuration for a recorder instance.
type Config struct {
	Feed     FeedConfig      `yaml:"feed"`
	Database DBConfig        `yaml:"database"`
	Recorder RecorderConfig  `yaml:"recorder"`
	Channels []ChannelConfig `yaml:"channels"`
}

// FeedConfig holds subscription client settings.
type FeedConfig struct {
	URL               string        `yaml:"url"`
	QueueCapacity     int           `yaml:"queue_capacity"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReconnectMinWait  time.Duration `yaml:"reconnect_min_wait"`
	ReconnectMaxWait  time.Duration `yaml:"reconnect_max_wait"`
	DisableReconnect  bool          `yaml:"disable_reconnect"`
}

// DBConfig holds the Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds batch writer settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ChannelConfig is one channel to subscribe to on startup.
type ChannelConfig struct {
	Type     string `yaml:"type"`
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
	User     string `yaml:"user"`
}
