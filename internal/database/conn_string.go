package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/streamfeed/internal/config"
)

// BuildConnString assembles the postgres:// URL for the recorder's
// database. The password is URL-escaped so it can carry any character;
// sslmode falls back to prefer when unset.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
