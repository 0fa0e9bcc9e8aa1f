package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/console"
	"github.com/ylai/autoplatform/stream"
)

func newLogsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Follow the backend log feed",
	}

	var (
		filter string
		limit  int
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Stream /api/sse/logs to the terminal",
		Long: `Streams the live log feed. AI_OPTIMIZE entries are printed with their
summary and suggested fixes. Stops on Ctrl-C, when the feed closes or after
--limit lines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			lines, err := s.console.TailLogs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if limit > 0 {
				lines = stream.Take(lines, limit)
			}
			out := cmd.OutOrStdout()
			err = stream.ForEach(cmd.Context(), lines, func(_ context.Context, l console.LogLine) error {
				printLogLine(out, l)
				return nil
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	tail.Flags().StringVarP(&filter, "filter", "f", "", "only lines containing this keyword (case-insensitive)")
	tail.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many lines")
	cmd.AddCommand(tail)
	return cmd
}

func printLogLine(out io.Writer, l console.LogLine) {
	if l.Optimize == nil {
		fmt.Fprintln(out, l.String())
		return
	}
	if l.Optimize.ErrorText != "" {
		fmt.Fprintf(out, "[AI] %s\n", l.Optimize.ErrorText)
	}
	summary, fixes := l.Optimize.Suggestion()
	if summary != "" {
		fmt.Fprintf(out, "[AI] %s\n", summary)
	}
	for _, f := range fixes {
		fmt.Fprintf(out, "     - %s\n", f.Title)
		for _, step := range f.Steps {
			fmt.Fprintf(out, "         %s\n", step)
		}
	}
}
