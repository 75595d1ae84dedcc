package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"farmcopilot/internal/client"
	"farmcopilot/internal/tui"
)

func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			url := cfg.Client.ServerURL
			if u, _ := cmd.Flags().GetString("server"); u != "" {
				url = u
			}
			c := client.New(url, time.Duration(cfg.Client.TimeoutSecs)*time.Second)
			if err := c.Health(cmd.Context()); err != nil {
				return fmt.Errorf("server at %s is not reachable: %w", url, err)
			}
			if _, err := tea.NewProgram(tui.New(c), tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("tui error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("server", "", "Server URL (overrides client.server_url)")
	return cmd
}
