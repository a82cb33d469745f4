// Command mediatheme serves theme stylesheets and the add-on config API
// for a self-hosted media server, and optionally proxies the server's web
// UI with the selected theme injected.
package main

//	@title			mediatheme API
//	@version		1.0.0
//	@description	Theme assets, config persistence, and enhancer control for the media-server theming add-on.
//	@BasePath		/emby-ui-plugin

import (
	"fmt"
	"os"

	"github.com/HerbHall/mediatheme/internal/server"
	"github.com/HerbHall/mediatheme/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	configPath string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mediatheme",
		Short: "Theming add-on server for self-hosted media servers",
		Long: `mediatheme serves bundled and user themes, persists the add-on
configuration with rolling backups, and can proxy the media server's web UI
with the selected theme applied.

Running mediatheme without a subcommand starts the server.`,
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load configuration before anything else so log level and
			// paths can be configured.
			v, err := server.LoadConfig(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to configuration file")

	root.AddCommand(
		a.newServeCmd(),
		a.newBackupCmd(),
		a.newConfigCmd(),
		a.newThemesCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip configuration loading.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
