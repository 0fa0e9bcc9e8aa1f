package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/console"
)

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the backend health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			h := s.console.Health(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", c.cfg.Client.BaseURL, h.Text())
			if h.Status != "" {
				fmt.Fprintf(out, "status:  %s\n", h.Status)
			}
			if h.AI != nil {
				fmt.Fprintf(out, "ai:      reachable=%t samples=%d\n", h.AI.Reachable, h.AI.Samples)
			}
			if h.Err != "" {
				fmt.Fprintf(out, "error:   %s\n", h.Err)
			}
			if h.Level() == console.LevelDown {
				return fmt.Errorf("backend is down")
			}
			return nil
		},
	}
}
