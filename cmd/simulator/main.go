// Command simulator runs the reservation wizard in a terminal against the
// same conversation service the web chat uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sportbar2312/reservation-bot/internal/app/bootstrap"
	"github.com/sportbar2312/reservation-bot/internal/cache"
	appconfig "github.com/sportbar2312/reservation-bot/internal/config"
	"github.com/sportbar2312/reservation-bot/internal/conversation"
	"github.com/sportbar2312/reservation-bot/internal/venue"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

type options struct {
	client      string
	redisAddr   string
	venuePath   string
	logLevel    string
	typingDelay time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "simulator",
		Short: "Chat with the SportBar reservation bot from the terminal",
		Long: "Type messages as a customer would. Selections are sent with slash commands:\n" +
			commandHelp,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.client, "client", "terminal", "client key used for the customer cache")
	flags.StringVar(&opts.redisAddr, "redis", "", "Redis address; empty keeps state and cache in memory")
	flags.StringVar(&opts.venuePath, "venue", "", "path to a venue catalog JSON file")
	flags.StringVar(&opts.logLevel, "log-level", "error", "log level for stderr")
	flags.DurationVar(&opts.typingDelay, "typing-delay", 0, "pause before each reply")

	return root
}

func run(ctx context.Context, opts *options) error {
	logger := logging.NewWithWriter(opts.logLevel, os.Stderr)

	catalog, err := venue.Load(opts.venuePath)
	if err != nil {
		return err
	}

	cfg := &appconfig.Config{
		RedisAddr:    opts.redisAddr,
		CacheBackend: appconfig.CacheBackendMemory,
	}
	if opts.redisAddr != "" {
		cfg.CacheBackend = appconfig.CacheBackendRedis
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	customerCache := cache.New(bootstrap.BuildCacheBackend(cfg, redisClient, nil, logger), cache.DefaultHistoryLimit)
	svc := conversation.NewService(
		wizard.New(catalog),
		bootstrap.BuildStateStore(cfg, redisClient, logger),
		customerCache,
		logger,
		conversation.WithTypingDelay(opts.typingDelay),
	)

	return newSession(svc, opts.client, os.Stdout).Run(ctx, os.Stdin)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
