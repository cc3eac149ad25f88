// feedwatch connects to a feed endpoint and streams channel updates to
// the console.
//
// Usage:
//
//	go run ./cmd/feedwatch --url wss://feed.example.com/ws \
//	    --channel trades:btc --channel candle:eth:1m --verbose
//
// Channel specs are colon-separated: a bare type for global channels
// (allMids), type:symbol for market channels (trades, l2Book, bbo),
// type:symbol:interval for candle, and type:userkey for the user
// channels (userEvents, userFills, orderUpdates).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	streamfeed "github.com/rickgao/streamfeed"
)

// channelList collects repeated --channel flags.
type channelList []string

func (c *channelList) String() string { return strings.Join(*c, ",") }

func (c *channelList) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func main() {
	var channels channelList
	url := flag.String("url", "", "feed WebSocket URL (required)")
	verbose := flag.Bool("verbose", false, "pretty-print full payload JSON")
	flag.Var(&channels, "channel", "channel spec, repeatable (e.g. trades:btc)")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *url == "" {
		logger.Error("--url is required")
		os.Exit(1)
	}
	if len(channels) == 0 {
		logger.Error("at least one --channel is required")
		os.Exit(1)
	}

	subs := make([]streamfeed.Subscription, 0, len(channels))
	for _, spec := range channels {
		sub, err := parseChannelSpec(spec)
		if err != nil {
			logger.Error("invalid channel spec", "spec", spec, "error", err)
			os.Exit(1)
		}
		subs = append(subs, sub)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := streamfeed.DefaultConfig()
	cfg.URL = *url

	client := streamfeed.New(cfg, logger)
	client.OnOpen(func() {
		logger.Info("feed session open")
	})
	client.OnClose(func() {
		logger.Warn("feed session lost")
	})
	client.OnError(func(err error) {
		logger.Error("feed error", "error", err)
	})

	for _, sub := range subs {
		key, _ := sub.Key()
		if _, err := client.Subscribe(sub, printUpdate(key, *verbose)); err != nil {
			logger.Error("subscribe failed", "channel", key, "error", err)
			os.Exit(1)
		}
	}

	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := client.Stats()
				logger.Info("stats",
					"state", stats.State,
					"channels", stats.ActiveChannels,
					"handles", stats.ActiveHandles,
					"queue_depth", stats.QueueDepth,
					"dropped", stats.DroppedMessages,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop",
		"url", *url,
		"channels", len(subs),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	if err := client.Close(); err != nil {
		logger.Error("close failed", "error", err)
	}
	logger.Info("shutdown complete")
}

// parseChannelSpec turns a colon-separated spec into a subscription and
// validates it by deriving its canonical key.
func parseChannelSpec(spec string) (streamfeed.Subscription, error) {
	parts := strings.Split(spec, ":")

	sub := streamfeed.Subscription{Type: parts[0]}
	switch parts[0] {
	case streamfeed.ChannelUserEvents, streamfeed.ChannelUserFills, streamfeed.ChannelOrderUpdates:
		if len(parts) > 1 {
			sub.User = parts[1]
		}
	default:
		if len(parts) > 1 {
			sub.Symbol = parts[1]
		}
		if len(parts) > 2 {
			sub.Interval = parts[2]
		}
	}

	if _, err := sub.Key(); err != nil {
		return streamfeed.Subscription{}, err
	}
	return sub, nil
}

// printUpdate returns a handler that writes one line per update.
func printUpdate(key string, verbose bool) streamfeed.MessageHandler {
	return func(msg streamfeed.Message) {
		if verbose {
			var buf any
			if err := json.Unmarshal(msg.Data, &buf); err == nil {
				pretty, _ := json.MarshalIndent(buf, "", "  ")
				fmt.Printf("[%s] %s\n", key, pretty)
				return
			}
		}
		fmt.Printf("[%s] %s\n", key, msg.Data)
	}
}
