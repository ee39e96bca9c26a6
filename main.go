// Command wgpanel manages the peers of a WireGuard interface. Without a
// subcommand it serves the HTTP API.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"wgpanel/config"
	"wgpanel/internal/logs"
	"wgpanel/server"
)

var version = "dev" // set by the linker

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}

// cli carries what the persistent pre-run resolves for every subcommand.
type cli struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:          "wgpanel",
		Short:        "WireGuard peer manager",
		Long:         "wgpanel keeps a WireGuard interface's peers in a state document and serves them over HTTP.\n\nRunning without a subcommand starts the server.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			logs.Init(logs.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				File:   cfg.Logging.File,
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return c.serve() },
	}
	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default ./config.yaml, $XDG_CONFIG_HOME/wgpanel or /etc/wgpanel)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Bring the interface up and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  func(*cobra.Command, []string) error { return c.serve() },
	})
	cmd.AddCommand(c.peersCmd())
	cmd.AddCommand(hashPasswordCmd())
	return cmd
}

func (c *cli) serve() error {
	if c.cfg == nil {
		return errors.New("configuration not loaded")
	}
	app := &server.App{}
	if err := app.Initialize(c.cfg); err != nil {
		return err
	}
	return app.Run()
}
