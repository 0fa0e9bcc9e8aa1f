package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/module"
)

func newModulesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Inspect and call the console page modules",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered modules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tTITLE\tROUTES")
				for _, m := range module.DefaultRegistry().List() {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", module.Name(m.ID()), m.Title(), len(m.Routes()))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "routes <name>",
			Short: "Show the backend routes of a module",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := module.DefaultRegistry().Get(args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ACTION\tMETHOD\tPATH")
				for _, r := range orderedRoutes(m) {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Method, r.Path)
				}
				return tw.Flush()
			},
		},
		newModulesCallCmd(c),
	)
	return cmd
}

func newModulesCallCmd(c *cli) *cobra.Command {
	var body string
	cmd := &cobra.Command{
		Use:   "call <name> <action> [param=value...]",
		Short: "Call one route of a module",
		Long: `Calls a module route on the backend. Path parameters such as :id are
filled from param=value arguments; the rest become query parameters.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make(map[string]string, len(args)-2)
			for _, kv := range args[2:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("parameter %q is not key=value", kv)
				}
				params[k] = v
			}
			var payload any
			if body != "" {
				payload = json.RawMessage(body)
			}

			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()
			env, err := module.DefaultRegistry().Call(cmd.Context(), s.client, args[0], args[1], params, payload)
			if err != nil {
				return err
			}
			return printJSON(cmd, env.Raw)
		},
	}
	cmd.Flags().StringVar(&body, "data", "", "JSON request body")
	return cmd
}

type ordered interface {
	Ordered() []module.NamedRoute
}

// orderedRoutes keeps declaration order when the module has one.
func orderedRoutes(m module.Module) []module.NamedRoute {
	if o, ok := m.(ordered); ok {
		return o.Ordered()
	}
	routes := m.Routes()
	out := make([]module.NamedRoute, 0, len(routes))
	for name, r := range routes {
		out = append(out, module.NamedRoute{Name: name, Route: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// printJSON indents raw when it is JSON and prints it as-is otherwise.
func printJSON(cmd *cobra.Command, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(cmd.OutOrStdout())
	return err
}
