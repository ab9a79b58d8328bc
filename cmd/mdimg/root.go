// Package main provides the entry point for the mdimg CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for mdimg.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mdimg",
		Short: "Sync remote images referenced by Markdown documents",
		Long: `mdimg downloads the remote images referenced by Markdown documents,
commits them to a local directory, and rewrites the references to a
destination prefix such as a CDN path.

Hotlink-protected hosts can be handled with per-host referer, cookie,
and header settings in a .mdimg configuration file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
