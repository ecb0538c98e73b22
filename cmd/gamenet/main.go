package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "gamenet",
		Short: "Session layer for multiplayer game servers",
		Long: `gamenet runs game servers and the authentication authority they
trust, and ships a small client to check a deployment end to end.

Settings come from an optional TOML file (--config) and GAMENET_*
environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")

	root.AddCommand(
		serveCmd(&configPath),
		authorityCmd(&configPath),
		connectCmd(&configPath),
		probeCmd(),
		versionCmd(),
	)

	return root
}
