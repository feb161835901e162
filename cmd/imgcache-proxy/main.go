package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/image-cache/internal/config"
	"github.com/Sternrassler/image-cache/pkg/cache"
	"github.com/Sternrassler/image-cache/pkg/client"
	"github.com/Sternrassler/image-cache/pkg/logging"
)

type cliOptions struct {
	configPath string
	checkOnly  bool
}

var stdErr io.Writer = os.Stderr

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("imgcache-proxy", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	fs.StringVar(&opts.configPath, "config", "", "configuration file (TOML, YAML or JSON); IMGCACHE_CONFIG when unset")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "validate the configuration and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("parse flags: %w", err)
	}

	if opts.configPath == "" {
		opts.configPath = os.Getenv("IMGCACHE_CONFIG")
	}

	return opts, nil
}

func run(opts cliOptions) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "load config: %v\n", err)
		return 1
	}

	logging.Setup(cfg.LoggingConfig())
	logger := logging.NewLogger("imgcache-proxy")

	if opts.checkOnly {
		logger.Info().Str("config", opts.configPath).Msg("Configuration valid")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, ready, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize durable store")
		return 1
	}
	defer closeStore()

	imgClient, err := client.New(cfg.ClientConfig(store, logging.NewLogger("image-cache")))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create image cache client")
		return 1
	}

	srv := newServer(imgClient, ready, logger)
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Server.Port).
			Str("user_agent", cfg.Fetch.UserAgent).
			Dur("ttl", cfg.Cache.TTL.DurationValue()).
			Bool("redis", cfg.Redis.Addr != "").
			Msg("Starting image cache proxy")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed")
			return 1
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.DurationValue())
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	srv.shutdown()
	if err := imgClient.Close(); err != nil {
		logger.Warn().Err(err).Msg("Image cache close failed")
	}

	return 0
}

// buildStore selects Redis when configured and the disk store otherwise.
// The returned check backs /ready.
func buildStore(ctx context.Context, cfg *config.Config) (cache.Store, readyCheck, func(), error) {
	if opts := cfg.RedisOptions(); opts != nil {
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}

		store := cache.NewRedisStore(redisClient)
		return store, store.Ping, func() { redisClient.Close() }, nil
	}

	store, err := cache.NewDiskStore(cfg.Cache.Dir)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, dirCheck(store.Dir()), func() {}, nil
}
