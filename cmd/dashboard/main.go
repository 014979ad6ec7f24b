package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskboard/dashboard/internal/api"
	"github.com/taskboard/dashboard/internal/config"
)

var Version = "dev"

// cli carries state shared by every subcommand once PersistentPreRunE
// has loaded the config.
type cli struct {
	configPath string
	dbPath     string
	logLevel   string
	stderr     io.Writer

	cfg   *config.Config
	log   *slog.Logger
	level *slog.LevelVar
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{stderr: os.Stderr}
	root := &cobra.Command{
		Use:           "dashboard",
		Short:         "Live read-only dashboard for a task orchestrator database",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			api.Version = Version
			return c.load()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "dashboard.yaml", "config file; defaults apply when it does not exist")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "override database.path")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.tuiCmd())
	root.AddCommand(c.configCmd())
	root.AddCommand(c.checkCmd())
	root.AddCommand(c.mockCmd())
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.dbPath != "" {
		cfg.Database.Path = c.dbPath
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *cli) load() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log, c.level = cfg.Log.NewLogger(c.stderr)
	slog.SetDefault(c.log)
	return nil
}
