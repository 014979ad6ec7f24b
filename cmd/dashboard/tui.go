package main

import (
	"errors"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/taskboard/dashboard/internal/tui/app"
	"github.com/taskboard/dashboard/internal/tui/client"
)

func (c *cli) tuiCmd() *cobra.Command {
	var (
		baseURL string
		project string
		feature string
	)
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Show the board in the terminal, following a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = "http://" + c.cfg.Addr()
			}
			wsURL, err := client.WebSocketURL(baseURL)
			if err != nil {
				return err
			}

			// Log lines would tear the alternate screen.
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

			ctx := cmd.Context()
			m := app.New(ctx, client.NewWSClient(wsURL), client.NewHTTPClient(baseURL), app.Options{
				ProjectID: project,
				FeatureID: feature,
			})
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&baseURL, "url", "u", "", "server base URL (default http://<server.host>:<server.port>)")
	cmd.Flags().StringVar(&project, "project", "", "only show tasks of this project id")
	cmd.Flags().StringVar(&feature, "feature", "", "only show tasks of this feature id")
	return cmd
}
