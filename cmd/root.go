// Package cmd implements the clps command-line tool: compress, decompress,
// search, inspect, and mcp. Grounded on the teacher's cmd/build.go and
// cmd/mount.go: package-level cobra.Command values, RunE-based handlers,
// per-command flags wired in init().
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "clps",
	Short:   "clps: a columnar archive format for semi-structured log records",
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
