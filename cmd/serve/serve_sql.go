package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/p2prates/cmd/env"
	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/platform"
	"github.com/sig-0/p2prates/refresh"
	"github.com/sig-0/p2prates/server"
	"github.com/sig-0/p2prates/snapshot/sql"
	"github.com/sig-0/p2prates/source"
)

type serveSQLCfg struct {
	rootCfg *serveCfg
}

// newServeSQLCmd creates the serve sql command
func newServeSQLCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveSQLCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("sql", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "sql",
		ShortUsage: "serve sql [flags]",
		LongHelp:   "Serves the p2prates backend in snapshot mode, reading from an SQL datastore",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

// exec executes the server serve command
func (c *serveSQLCfg) exec(ctx context.Context, _ []string) error {
	// Read the server configuration, if any
	if err := c.rootCfg.loadServerConfig(); err != nil {
		return err
	}

	// Create a new logger
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

	// DB
	dsn := os.Getenv(env.Prefix + env.DBURLSuffix)
	if dsn == "" {
		return fmt.Errorf("missing %s", env.Prefix+env.DBURLSuffix)
	}

	// Open DB connection
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("unable to open DB connection: %w", err)
	}

	defer pool.Close()

	// Check DB reachability
	pingCtx, cancelPing := context.WithTimeout(ctx, time.Second*5)
	defer cancelPing()

	if err = pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("unable to reach DB (ping): %w", err)
	}

	logger.Info("DB ping success")

	// Create an SQL snapshot store
	store := sql.NewStore(pool)

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

	// Snapshot mode: reads come from the refreshed store only
	src := source.NewStored(registry, store)

	eng := engine.New(src, provider, engine.WithLogger(logger))

	// Create the refresh service
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

	// Create the server instance
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

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the refresh service
	group.Go(func() error {
		return scheduler.Start(gCtx)
	})

	return group.Wait()
}
