package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Feed.QueueCapacity < 1 {
		return errors.New("feed.queue_capacity must be >= 1")
	}
	if c.Feed.ReconnectMinWait > c.Feed.ReconnectMaxWait {
		return fmt.Errorf("feed.reconnect_min_wait (%s) cannot exceed reconnect_max_wait (%s)",
			c.Feed.ReconnectMinWait, c.Feed.ReconnectMaxWait)
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}

	if len(c.Channels) == 0 {
		return errors.New("at least one channel is required")
	}
	for i, ch := range c.Channels {
		if ch.Type == "" {
			return fmt.Errorf("channels[%d].type is required", i)
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
