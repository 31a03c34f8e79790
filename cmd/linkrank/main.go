// Package main implements the linkrank CLI: one-shot ranking, file
// watching, the HTTP API and the MCP stdio server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Build information, set via ldflags.
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// configPath overrides ~/.config/linkrank/config.yaml.
	configPath string
	// logLevel overrides logging.level when set.
	logLevel string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "linkrank",
	Short: "Rank the links on a page by how likely they are to be followed",
	Long: `linkrank extracts the links of a page, filters and scores them, and asks a
language model to rank them in batches. Partial rankings are published as
batches complete; a final ranking always follows, with heuristic fallbacks for
anything the model did not rank.

Configuration is read from ~/.config/linkrank/config.yaml and LINKRANK_*
environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/linkrank/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(versionString() + "\n")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func versionString() string {
	return fmt.Sprintf("linkrank %s (commit %s, built %s)", version, gitCommit, buildDate)
}
