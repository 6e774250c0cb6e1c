package serve

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/p2prates/cmd/env"
	"github.com/sig-0/p2prates/rules"
	"github.com/sig-0/p2prates/server/config"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	config *config.Config

	configPath string
	rulesPath  string

	cacheTTL time.Duration
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{
		config: config.DefaultConfig(),
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	cmd := &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve <subcommand> [flags]",
		LongHelp:   "Serves the p2prates backend",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newServeSQLCmd(cfg),
		newServeMemoryCmd(cfg),
	}

	return cmd
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.config.ListenAddress,
		"listen",
		config.DefaultListenAddress,
		"the IP:PORT URL for the server",
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the server TOML configuration, if any",
	)

	fs.StringVar(
		&c.rulesPath,
		"rules",
		"",
		"the path to the aggregation rules TOML file, if any",
	)

	fs.DurationVar(
		&c.cacheTTL,
		"cache-ttl",
		time.Minute*2,
		"the live offer cache TTL",
	)
}

// loadServerConfig reads the server configuration override, if any
func (c *serveCfg) loadServerConfig() error {
	if c.configPath == "" {
		return nil
	}

	serverCfg, err := config.Read(c.configPath)
	if err != nil {
		return fmt.Errorf("unable to read server config, %w", err)
	}

	c.config = serverCfg

	return nil
}

// loadRules reads the aggregation rules. The -rules flag wins over the
// server config entry; without either the service runs with empty
// defaults (no active currencies, no bounds)
func (c *serveCfg) loadRules() (rules.Provider, error) {
	path := c.rulesPath
	if path == "" {
		path = c.config.RulesPath
	}

	if path == "" {
		return rules.NewMemory(), nil
	}

	provider, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load rules, %w", err)
	}

	return provider, nil
}
