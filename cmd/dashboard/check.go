package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/taskboard/dashboard/internal/dbpool"
	"github.com/taskboard/dashboard/internal/orchestrator"
)

func (c *cli) checkCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Open the database read-only and print row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.Database.Path
			pool := dbpool.New(path, dbpool.Options{
				BusyTimeout: c.cfg.Database.BusyTimeout,
				MaxIdle:     1,
				Logger:      c.log,
			})
			defer pool.Close()

			lease, err := pool.Borrow(cmd.Context())
			if err != nil {
				return err
			}
			defer lease.Release()

			stats, err := orchestrator.NewReader(lease).Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("TABLE", "ROWS").
				Row("projects", strconv.Itoa(stats.Projects)).
				Row("features", strconv.Itoa(stats.Features)).
				Row("tasks", strconv.Itoa(stats.Tasks.Total)).
				Row("  completed", strconv.Itoa(stats.Tasks.Completed)).
				Row("  in progress", strconv.Itoa(stats.Tasks.InProgress)).
				Row("  pending", strconv.Itoa(stats.Tasks.Pending)).
				Row("dependencies", strconv.Itoa(stats.Dependencies)).
				Row("sections", strconv.Itoa(stats.Sections)).
				Row("templates", strconv.Itoa(stats.Templates))

			fmt.Fprintf(out, "database: %s (%s)\n", path, fileSizes(path))
			fmt.Fprintln(out, t.Render())
			fmt.Fprintf(out, "completion: %.1f%%\n", stats.Tasks.CompletionRate)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stats as JSON")
	return cmd
}

func fileSizes(path string) string {
	s := "? bytes"
	if fi, err := os.Stat(path); err == nil {
		s = fmt.Sprintf("%d bytes", fi.Size())
	}
	if fi, err := os.Stat(path + "-wal"); err == nil {
		s += fmt.Sprintf(", wal %d bytes", fi.Size())
	}
	return s
}
