package refresh

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/p2prates/cmd/env"
	"github.com/sig-0/p2prates/platform"
	"github.com/sig-0/p2prates/platform/binance"
	"github.com/sig-0/p2prates/platform/okx"
	"github.com/sig-0/p2prates/refresh"
	"github.com/sig-0/p2prates/rules"
	"github.com/sig-0/p2prates/snapshot/sql"
)

type refreshCfg struct {
	rulesPath string
}

// NewRefreshCmd creates the one-shot refresh command
func NewRefreshCmd() *ffcli.Command {
	cfg := &refreshCfg{}

	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "refresh",
		ShortUsage: "refresh [flags]",
		LongHelp:   "Runs a single snapshot refresh sweep against the SQL datastore",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *refreshCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.rulesPath,
		"rules",
		"",
		"the path to the aggregation rules TOML file, if any",
	)
}

// exec executes the refresh command
func (c *refreshCfg) exec(ctx context.Context, _ []string) error {
	// Create a new logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	// Load the aggregation rules
	provider := rules.Provider(rules.NewMemory())

	if c.rulesPath != "" {
		loaded, err := rules.Load(c.rulesPath)
		if err != nil {
			return fmt.Errorf("unable to load rules, %w", err)
		}

		provider = loaded
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

	// Set up the platform registry
	registry := platform.NewRegistry(
		platform.WithLogger(logger),
		platform.WithDefaultResolver(provider.DefaultPlatform),
	)

	platforms := []platform.Platform{
		binance.New(time.Second * 15),
		okx.New(time.Second * 15),
	}

	for _, p := range platforms {
		if err = registry.Register(p); err != nil {
			return fmt.Errorf("unable to register platform: %w", err)
		}
	}

	// Run a single sweep
	job := refresh.NewJob(
		registry,
		sql.NewStore(pool),
		provider,
		refresh.WithLogger(logger),
	)

	result, err := job.Run(ctx)
	if err != nil {
		return fmt.Errorf("unable to run refresh, %w", err)
	}

	logger.Info(
		"refresh sweep complete",
		"updated", result.Updated,
		"errors", len(result.Errors),
	)

	for _, sweepErr := range result.Errors {
		logger.Warn("combination refresh failed", "err", sweepErr)
	}

	return nil
}
