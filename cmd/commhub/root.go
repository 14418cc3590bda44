package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "commhub",
	Short: "Communication hub for cooperating agents",
	Long: `commhub runs an agent communication hub: a capability registry,
message router, and coordination layer for task handoffs, conversations,
and consensus voting between agents.

Configuration comes from environment variables, optionally overlaid by a
YAML file named in COMMHUB_CONFIG.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
