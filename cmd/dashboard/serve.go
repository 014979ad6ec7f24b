package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskboard/dashboard/internal/server"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		host      string
		port      int
		staticDir string
		noWatch   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, the WebSocket feed and the web board",
		Long: `Serve the dashboard.

The database is opened read-only and polled for changes; every change is
pushed to connected WebSocket clients as a database_update event.
Send SIGHUP to reload the config file (log level and shutdown timeout
apply live; other changes are reported and need a restart).

Examples:
  dashboard serve --db ~/.orchestrator/tasks.db
  dashboard serve --port 9000 --static ./web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("host") {
				c.cfg.Server.Host = host
			}
			if flags.Changed("port") {
				c.cfg.Server.Port = port
			}
			if flags.Changed("static") {
				c.cfg.Server.StaticDir = staticDir
			}
			if noWatch {
				c.cfg.Watcher.Enabled = false
			}

			srv, err := server.New(c.cfg, server.Options{Logger: c.log, Level: c.level})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go c.reloadOnHangup(ctx, srv)

			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "override server.host")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	cmd.Flags().StringVar(&staticDir, "static", "", "serve the web board from this directory instead of the embedded copy")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable change detection")
	return cmd
}

func (c *cli) reloadOnHangup(ctx context.Context, srv *server.Server) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next, err := c.loadConfig()
			if err != nil {
				c.log.Error("config reload failed", "path", c.configPath, "error", err)
				continue
			}
			changes, err := srv.Reload(next)
			if err != nil {
				c.log.Error("config reload rejected", "error", err)
				continue
			}
			c.log.Info("config reloaded", "path", c.configPath, "changes", len(changes))
		}
	}
}
