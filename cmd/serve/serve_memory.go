package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/p2prates/cache"
	"github.com/sig-0/p2prates/cmd/env"
	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/platform"
	"github.com/sig-0/p2prates/refresh"
	"github.com/sig-0/p2prates/server"
	"github.com/sig-0/p2prates/snapshot/memory"
	"github.com/sig-0/p2prates/source"
)

type serveMemoryCfg struct {
	rootCfg *serveCfg
}

// newServeMemoryCmd creates the serve memory command.
func newServeMemoryCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveMemoryCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("memory", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "memory",
		ShortUsage: "serve memory [flags]",
		LongHelp:   "Serves the p2prates backend in cache mode, fetching marketplaces live",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveMemoryCfg) exec(ctx context.Context, _ []string) error {
	// Read the server configuration, if any
	if err := c.rootCfg.loadServerConfig(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	// Load the aggregation rules
	provider, err := c.rootCfg.loadRules()
	if err != nil {
		return err
	}

	// Set up the platform registry
	registry := platform.NewRegistry(
		platform.WithLogger(logger),
		platform.WithDefaultResolver(provider.DefaultPlatform),
	)

	for _, p := range defaultPlatforms() {
		if err = registry.Register(p); err != nil {
			return fmt.Errorf("unable to register platform: %w", err)
		}
	}

	// Set up the offer cache (Redis if configured, in-memory otherwise)
	offerCache, err := newOfferCache(logger)
	if err != nil {
		return err
	}

	src := source.NewLive(
		registry,
		offerCache,
		source.WithLogger(logger),
		source.WithTTL(c.rootCfg.cacheTTL),
	)

	eng := engine.New(src, provider, engine.WithLogger(logger))

	// In-memory snapshots back the materialized rate endpoints
	store := memory.NewStore()

	job := refresh.NewJob(
		registry,
		store,
		provider,
		refresh.WithLogger(logger),
	)

	scheduler := refresh.NewScheduler(
		job,
		provider,
		refresh.WithSchedulerLogger(logger),
	)

	for _, p := range registry.All() {
		if err = scheduler.Register(p); err != nil {
			return fmt.Errorf("unable to schedule platform: %w", err)
		}
	}

	s, err := server.New(
		eng,
		provider,
		server.WithLogger(logger),
		server.WithConfig(c.rootCfg.config),
		server.WithStore(store),
		server.WithRefresher(scheduler),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return s.Serve(gCtx)
	})

	group.Go(func() error {
		return scheduler.Start(gCtx)
	})

	return group.Wait()
}

// newOfferCache builds the live offer cache, shared through Redis when
// a connection string is configured
func newOfferCache(logger *slog.Logger) (cache.Cache, error) {
	dsn := os.Getenv(env.Prefix + env.RedisURLSuffix)
	if dsn == "" {
		return cache.NewMemory(), nil
	}

	redisOpts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse Redis URL: %w", err)
	}

	return cache.NewRedis(
		redis.NewClient(redisOpts),
		cache.WithLogger(logger),
	), nil
}
