package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/bus"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/mockbackend"
	"github.com/ylai/autoplatform/pipeline"
	"github.com/ylai/autoplatform/runner"
	"github.com/ylai/autoplatform/storage"
	"github.com/ylai/autoplatform/tui"
)

func newPipelineCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Validate, render, run and generate pipelines",
		Long: `Works on pipeline documents as exported by the editor. Files ending in
.yaml or .yml are read as YAML, anything else as JSON.`,
	}
	cmd.AddCommand(
		newPipelineValidateCmd(),
		newPipelinePayloadCmd(),
		newPipelineSVGCmd(),
		newPipelineRunCmd(c),
		newPipelineSuggestCmd(c),
	)
	return cmd
}

func newPipelineValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a pipeline and print its execution levels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			if err := g.Validate(); err != nil {
				return err
			}
			levels, err := g.Levels()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d nodes, %d edges, %d levels\n", g.Len(), len(g.Edges()), len(levels))
			for i, level := range levels {
				fmt.Fprintf(out, "  %d: %s\n", i, strings.Join(level, ", "))
			}
			return nil
		},
	}
}

func newPipelinePayloadCmd() *cobra.Command {
	var maxConcurrency int
	cmd := &cobra.Command{
		Use:   "payload <file>",
		Short: "Print the run payload the backend would receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			p := g.BuildDagPayload()
			p.MaxConcurrency = maxConcurrency
			if err := p.Validate(); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "max_concurrency field of the payload (0 leaves it to the backend)")
	return cmd
}

func newPipelineSVGCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "svg <file>",
		Short: "Render the connection wires as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pipeline.RenderSVG(g.DrawWires(g.DefaultLayout())))
			return err
		},
	}
}

type runFlags struct {
	engine         string
	maxConcurrency int
	watch          bool
	tui            bool
	local          bool
	user           string
}

func newPipelineRunCmd(c *cli) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Submit a pipeline and optionally follow it",
		Long: `Submits the pipeline to the backend with the saved token and prints the
task id. The engine choice is remembered for the next run. --watch follows the status stream until every node is terminal;
--tui does the same in a full-screen view.

--local starts an in-process mock backend on backend.port, logs in with a
demo account and runs the pipeline against it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			if f.local {
				engine, err := runner.ParseEngine(f.engine)
				if err != nil {
					return err
				}
				return runLocal(cmd, c.cfg, g, engine, f)
			}
			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()
			if f.engine == "" {
				f.engine, _, _ = s.engineTopic().Last(cmd.Context())
			}
			engine, err := runner.ParseEngine(f.engine)
			if err != nil {
				return err
			}
			return runPipeline(cmd, s, g, engine, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.engine, "engine", "e", "", "execution engine: ws or simple (default: the last one used, else ws)")
	fl.IntVar(&f.maxConcurrency, "max-concurrency", 0, "nodes allowed to run at once (0 leaves it to the backend)")
	fl.BoolVarP(&f.watch, "watch", "w", false, "follow node statuses until the task finishes")
	fl.BoolVar(&f.tui, "tui", false, "follow the task in a full-screen view")
	fl.BoolVar(&f.local, "local", false, "run against an in-process mock backend")
	fl.StringVar(&f.user, "as", "admin", "demo account used with --local")
	cmd.MarkFlagsMutuallyExclusive("watch", "tui")
	return cmd
}

func runPipeline(cmd *cobra.Command, s *session, g *pipeline.Graph, engine runner.Engine, f runFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	r := runner.New(s.client, engine)

	st, err := r.Run(ctx, g, f.maxConcurrency)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "task %s submitted (%d nodes, %s engine)\n", st.TaskID, len(st.NodeIDs()), engine)
	if err := s.engineTopic().Publish(ctx, string(engine)); err != nil {
		logger.Warn("could not remember engine", logger.Fields(logger.FieldError, err.Error()))
	}

	switch {
	case f.tui:
		// The full-screen view owns the terminal.
		logger.SetGlobalLogger(logger.NewNop())
		return tui.Watch(ctx, r, st, []tui.Option{tui.WithQuitWhenDone()})
	case f.watch:
		return watchTask(ctx, out, r, st, s.progressTopic())
	}
	return nil
}

func watchTask(ctx context.Context, out io.Writer, r *runner.Runner, st *runner.TaskState, progress *bus.Topic[TaskProgress]) error {
	start := time.Now()
	w := r.Watch(st.TaskID, st, runner.UntilDone(), runner.OnStatus(func(m runner.Message) {
		_ = progress.Publish(ctx, TaskProgress{
			TaskID:   st.TaskID,
			NodeID:   m.NodeID,
			Status:   string(m.Status),
			Progress: st.Progress(),
		})
		line := fmt.Sprintf("[%3d%%] %-24s %s", st.Progress(), m.NodeID, m.Status)
		if m.Elapsed > 0 {
			line += fmt.Sprintf(" (%.1fs)", m.Elapsed)
		}
		if m.Cached {
			line += " cached"
		}
		if m.Message != "" {
			line += "  " + m.Message
		}
		fmt.Fprintln(out, line)
	}))
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	failed := 0
	for _, status := range st.Nodes() {
		if status == pipeline.StatusFailed {
			failed++
		}
	}
	fmt.Fprintf(out, "task %s finished in %s", st.TaskID, time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		fmt.Fprintf(out, ", %d failed\n", failed)
		return fmt.Errorf("%d of %d nodes failed", failed, len(st.NodeIDs()))
	}
	fmt.Fprintln(out)
	return nil
}

// runLocal runs the pipeline against a mock backend started in this
// process. Both sides use a memory store so the saved session is untouched.
func runLocal(cmd *cobra.Command, base *Config, g *pipeline.Graph, engine runner.Engine, f runFlags) error {
	cfg := *base
	cfg.Storage = storage.Config{Provider: "memory"}
	cfg.Client.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Backend.Host, cfg.Backend.Port)

	account, ok := findAccount(f.user)
	if !ok {
		return fmt.Errorf("no demo account %q", f.user)
	}

	app, _, release, err := newMockApp(cmd.Context(), &cfg, io.Discard)
	if err != nil {
		return err
	}
	defer release()

	return app.RunTask(cmd.Context(), func(ctx context.Context) error {
		s, err := openSession(&cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		res, err := s.auth.Login(ctx, account.Username, account.Password)
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("login as %s: %s", account.Username, res.Message)
		}
		cmd.SetContext(ctx)
		if !f.tui {
			f.watch = true
		}
		return runPipeline(cmd, s, g, engine, f)
	})
}

func findAccount(name string) (mockbackend.Account, bool) {
	for _, a := range mockbackend.DefaultAccounts {
		if a.Username == name || string(a.Role) == name {
			return a, true
		}
	}
	return mockbackend.Account{}, false
}

func newPipelineSuggestCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "suggest <prompt>",
		Short: "Ask the backend to generate a pipeline from a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			g, err := s.console.SuggestPipeline(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			data, err := exportGraph(g, output)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d nodes to %s\n", g.Len(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to this file instead of stdout")
	return cmd
}

func loadGraph(path string) (*pipeline.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g := pipeline.New()
	if isYAML(path) {
		err = g.ImportYAML(data)
	} else {
		err = g.ImportJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func exportGraph(g *pipeline.Graph, path string) ([]byte, error) {
	if isYAML(path) {
		return g.ExportYAML()
	}
	return g.ExportJSON()
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
