package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultQueueCapacity     = 1024
	DefaultHeartbeatInterval = 50 * time.Second
	DefaultReconnectMinWait  = 1 * time.Second
	DefaultReconnectMaxWait  = 30 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
)

func (c *Config) applyDefaults() {
	if c.Feed.QueueCapacity == 0 {
		c.Feed.QueueCapacity = DefaultQueueCapacity
	}
	if c.Feed.HeartbeatInterval == 0 {
		c.Feed.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Feed.ReconnectMinWait == 0 {
		c.Feed.ReconnectMinWait = DefaultReconnectMinWait
	}
	if c.Feed.ReconnectMaxWait == 0 {
		c.Feed.ReconnectMaxWait = DefaultReconnectMaxWait
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
}
