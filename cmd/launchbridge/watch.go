package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/launchbridge/internal/tui/watch"
)

func newWatchCommand(g *globalFlags) *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live terminal view of a running sweep controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				cfg, err := g.loadOrDefaults()
				if err != nil {
					return err
				}
				apiURL = "http://" + cfg.API.Listen
			}
			p := tea.NewProgram(watch.New(apiURL))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "", "Status API base URL (default: http://<api.listen>)")
	return cmd
}
