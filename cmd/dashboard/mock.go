package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskboard/dashboard/internal/mock"
	"github.com/taskboard/dashboard/internal/orchestrator"
)

func (c *cli) mockCmd() *cobra.Command {
	var (
		interval time.Duration
		cycle    bool
		reset    bool
		seedOnly bool
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Create a demo orchestrator database and keep changing it",
		Long: `Create a demo orchestrator database at database.path, seed it when
empty, then move tasks between statuses on a timer the way a real
orchestrator would. Run "dashboard serve" against the same path to watch
the board update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.Database.Path
			if reset {
				for _, p := range []string{path, path + "-wal", path + "-shm"} {
					if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
						return fmt.Errorf("mock: reset: %w", err)
					}
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := mock.Create(ctx, path)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := orchestrator.NewReader(db).ProjectCount(ctx)
			if err != nil {
				return fmt.Errorf("mock: count projects: %w", err)
			}
			if n == 0 {
				fx, err := mock.Seed(ctx, db, cycle)
				if err != nil {
					return err
				}
				c.log.Info("mock: seeded", "path", path, "projects", len(fx.Projects), "tasks", len(fx.Tasks))
			} else {
				c.log.Info("mock: reusing existing data", "path", path, "projects", n)
			}
			if seedOnly {
				return nil
			}

			mock.NewGenerator(db, interval, c.log).Run(ctx)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 2*time.Second, "time between writes")
	cmd.Flags().BoolVar(&cycle, "cycle", false, "seed a circular dependency")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the database first")
	cmd.Flags().BoolVar(&seedOnly, "seed-only", false, "seed and exit without mutating")
	return cmd
}
