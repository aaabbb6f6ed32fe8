package cmd

import (
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/clpstructured/clps/internal/mcptool"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <archive-dir> <split-id>...",
	Short: "Serve the search_archive MCP tool over stdio",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := args[0]
		splitIDs := args[1:]

		fs := osfs.New("/")
		s := mcptool.NewServer(fs, baseDir, splitIDs)
		return mcptool.Serve(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
