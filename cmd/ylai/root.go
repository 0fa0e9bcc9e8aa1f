package main

import (
	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/version"
)

// cli carries the persistent flags and the config loaded from them.
type cli struct {
	configFile string
	envFile    string
	api        string
	logLevel   string

	// serve flags, applied before defaults.
	dev  bool
	port int

	cfg *Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "ylai",
		Short: "Console for the YLAI automation platform",
		Long: "ylai serves the web console, runs a local stand-in for the automation\n" +
			"backend and talks to the backend from the terminal.",
		Version:       version.Get().Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c, cmd)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default: config.yml, config/ylai.yml or ~/.config/ylai/ylai.yml)")
	pf.StringVar(&c.envFile, "env-file", "", "env file (default: .env.ylai or .env)")
	pf.StringVar(&c.api, "api", "", "backend base URL (default: api_target or api_proto://api_host:api_port)")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(c),
		newMockCmd(c),
		newLoginCmd(c),
		newHealthCmd(c),
		newModulesCmd(c),
		newPipelineCmd(c),
		newLogsCmd(c),
		newVersionCmd(),
	)
	return root
}
