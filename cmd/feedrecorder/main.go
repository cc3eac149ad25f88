// feedrecorder subscribes to configured feed channels and persists
// every update to Postgres.
//
// Usage: go run ./cmd/feedrecorder --config configs/recorder.local.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	streamfeed "github.com/rickgao/streamfeed"
	"github.com/rickgao/streamfeed/internal/config"
	"github.com/rickgao/streamfeed/internal/database"
	"github.com/rickgao/streamfeed/internal/recorder"
	"github.com/rickgao/streamfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/recorder.example.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedrecorder",
		"build", version.String(),
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"feed_url", cfg.Feed.URL,
		"channels", len(cfg.Channels),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Start recorder
	rec := recorder.New(cfg.Recorder, pool, logger)
	if err := rec.Start(ctx); err != nil {
		logger.Error("failed to start recorder", "error", err)
		os.Exit(1)
	}

	// Create feed client
	feedCfg := streamfeed.DefaultConfig()
	feedCfg.URL = cfg.Feed.URL
	feedCfg.QueueCapacity = cfg.Feed.QueueCapacity
	feedCfg.HeartbeatInterval = cfg.Feed.HeartbeatInterval
	feedCfg.ReconnectMinWait = cfg.Feed.ReconnectMinWait
	feedCfg.ReconnectMaxWait = cfg.Feed.ReconnectMaxWait
	feedCfg.DisableReconnect = cfg.Feed.DisableReconnect

	client := streamfeed.New(feedCfg, logger)
	client.OnOpen(func() {
		logger.Info("feed session open")
	})
	client.OnClose(func() {
		logger.Warn("feed session lost")
	})
	client.OnError(func(err error) {
		logger.Error("feed error", "error", err)
	})

	// Register configured channels; all of them feed the recorder.
	handler := rec.Handler()
	for _, cc := range cfg.Channels {
		sub := toSubscription(cc)
		key, err := sub.Key()
		if err != nil {
			logger.Error("invalid channel in config", "type", cc.Type, "error", err)
			os.Exit(1)
		}
		if _, err := client.Subscribe(sub, handler); err != nil {
			logger.Error("subscribe failed", "channel", key, "error", err)
			os.Exit(1)
		}
		logger.Info("channel registered", "channel", key)
	}

	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect to feed", "url", cfg.Feed.URL, "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Stats loop
	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				feedStats := client.Stats()
				recStats := rec.Stats()
				logger.Info("stats",
					"state", feedStats.State,
					"channels", feedStats.ActiveChannels,
					"queue_depth", feedStats.QueueDepth,
					"dropped", feedStats.DroppedMessages,
					"inserts", recStats.Inserts,
					"flushes", recStats.Flushes,
					"insert_errors", recStats.Errors,
				)
			}
		}
	})

	// Block until shutdown
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	logger.Info("feedrecorder running")
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("run group failed", "error", err)
	}

	// Graceful shutdown
	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := client.Close(); err != nil {
		logger.Error("feed close failed", "error", err)
	}
	if err := rec.Stop(shutdownCtx); err != nil {
		logger.Error("recorder stop failed", "error", err)
	}

	logger.Info("feedrecorder stopped")
}

// toSubscription maps a config channel entry to a subscription.
func toSubscription(cc config.ChannelConfig) streamfeed.Subscription {
	return streamfeed.Subscription{
		Type:     cc.Type,
		Symbol:   cc.Symbol,
		Interval: cc.Interval,
		User:     cc.User,
	}
}
