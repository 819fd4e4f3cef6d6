package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cad-realtime/internal/feed"
	feedredis "cad-realtime/internal/redis"
	"cad-realtime/pkg/discord"
	"cad-realtime/pkg/log"
	"cad-realtime/pkg/redis"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type tailOptions struct {
	url           string
	channel       string
	search        string
	itemType      string
	severity      string
	maxItems      int
	bell          bool
	notifications bool
	webhookURL    string
	reconnect     bool
	logLevel      string
}

func newRootCmd() *cobra.Command {
	opts := &tailOptions{}

	cmd := &cobra.Command{
		Use:   "feedtail",
		Short: "Tail a realtime activity feed channel",
		Long: `feedtail connects to a feed hub over WebSocket, subscribes to a
channel and prints activity items as they arrive. Items can be filtered
by search text, activity type and severity.

SIGUSR1 toggles pausing the tail; items arriving while paused are
dropped, not queued.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "ws://localhost:8081/ws", "feed hub WebSocket endpoint")
	flags.StringVar(&opts.channel, "channel", "activity", "channel to subscribe to")
	flags.StringVar(&opts.search, "search", "", "only print items whose title or description contains this text")
	flags.StringVar(&opts.itemType, "type", feed.FilterAll, "only print items of this activity type")
	flags.StringVar(&opts.severity, "severity", feed.FilterAll, "only print items of this severity")
	flags.IntVar(&opts.maxItems, "max-items", feed.DefaultMaxItems, "buffer capacity")
	flags.BoolVar(&opts.bell, "bell", false, "ring the terminal bell on every item")
	flags.BoolVar(&opts.notifications, "notifications", true, "forward error and critical items to the webhook")
	flags.StringVar(&opts.webhookURL, "webhook-url", "", "Discord webhook URL for error/critical alerts")
	flags.BoolVar(&opts.reconnect, "reconnect", false, "reconnect with exponential backoff when the connection drops")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newPublishCmd())
	return cmd
}

func runTail(ctx context.Context, opts *tailOptions) error {
	logger := log.Init(log.ZapConfig{
		Level:    opts.logLevel,
		Mode:     "development",
		Encoding: "console",
	})

	filter := feed.Filter{
		Search:   opts.search,
		Type:     opts.itemType,
		Severity: opts.severity,
	}

	cfg := feed.Config{
		URL:      opts.url,
		Channel:  opts.channel,
		MaxItems: opts.maxItems,
		OnItem: func(item feed.ActivityItem) {
			if !filter.Matches(item) {
				return
			}
			printItem(item)
		},
	}

	if opts.bell {
		cfg.EnableSound = true
		cfg.CueSink = feed.NewBellSink(os.Stdout)
	}

	if opts.notifications && opts.webhookURL != "" {
		webhook, err := discord.New(logger, opts.webhookURL)
		if err != nil {
			return err
		}
		cfg.EnableNotifications = true
		cfg.AlertSink = feed.NewWebhookSink(webhook)
	}

	if opts.reconnect {
		cfg.Reconnect = feed.DefaultReconnectPolicy()
	}

	client, err := feed.NewClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		return err
	}

	// SIGUSR1 toggles the pause gate
	pauseSig := make(chan os.Signal, 1)
	signal.Notify(pauseSig, syscall.SIGUSR1)
	defer signal.Stop(pauseSig)
	go func() {
		for range pauseSig {
			buf := client.Buffer()
			buf.SetPaused(!buf.Paused())
			if buf.Paused() {
				fmt.Fprintln(os.Stderr, "paused, send SIGUSR1 again to resume")
			} else {
				fmt.Fprintln(os.Stderr, "resumed")
			}
		}
	}()

	fmt.Fprintf(os.Stderr, "tailing %s on %s\n", opts.channel, opts.url)
	select {
	case <-ctx.Done():
	case <-client.Done():
		fmt.Fprintln(os.Stderr, "connection closed")
	}
	return client.Close()
}

func printItem(item feed.ActivityItem) {
	severity := string(item.Severity)
	if severity == "" {
		severity = "-"
	}

	line := fmt.Sprintf("%s  %-8s %-8s %s",
		item.Timestamp.Local().Format("15:04:05"),
		strings.ToUpper(severity),
		item.Type,
		item.Title,
	)
	if item.Description != "" {
		line += "  " + item.Description
	}
	fmt.Println(line)
}

type publishOptions struct {
	redisAddr     string
	redisPassword string
	redisDB       int
	channel       string
	itemType      string
	severity      string
	title         string
	description   string
	alert         bool
}

func newPublishCmd() *cobra.Command {
	opts := &publishOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a synthetic activity item to a feed channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "Redis address")
	flags.StringVar(&opts.redisPassword, "redis-password", "", "Redis password")
	flags.IntVar(&opts.redisDB, "redis-db", 0, "Redis database")
	flags.StringVar(&opts.channel, "channel", "activity", "channel to publish to")
	flags.StringVar(&opts.itemType, "type", string(feed.ActivityTypeEvent), "activity type")
	flags.StringVar(&opts.severity, "severity", string(feed.SeverityInfo), "severity")
	flags.StringVar(&opts.title, "title", "", "item title (required)")
	flags.StringVar(&opts.description, "description", "", "item description")
	flags.BoolVar(&opts.alert, "alert", false, "publish as an alert frame")
	cobra.CheckErr(cmd.MarkFlagRequired("title"))

	return cmd
}

func runPublish(ctx context.Context, opts *publishOptions) error {
	if !feed.IsValidActivityType(opts.itemType) {
		return fmt.Errorf("unknown activity type %q", opts.itemType)
	}
	if !feed.IsValidSeverity(opts.severity) {
		return fmt.Errorf("unknown severity %q", opts.severity)
	}

	client, err := redis.NewClient(redis.Config{
		Addr:     opts.redisAddr,
		Password: opts.redisPassword,
		DB:       opts.redisDB,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	item := feed.ActivityItem{
		ID:          uuid.NewString(),
		Type:        feed.ActivityType(opts.itemType),
		Severity:    feed.Severity(opts.severity),
		Timestamp:   time.Now().UTC(),
		Title:       opts.title,
		Description: opts.description,
	}

	msgType := feedredis.MessageTypeActivity
	if opts.alert {
		msgType = feedredis.MessageTypeAlert
		item.Type = feed.ActivityTypeAlert
	}

	if err := feedredis.Publish(ctx, client, opts.channel, msgType, item); err != nil {
		return err
	}

	fmt.Printf("published %s to %s\n", item.ID, opts.channel)
	return nil
}
