package cmd

import (
	"fmt"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/clpstructured/clps/internal/mcptool"
)

var (
	searchJSONPath string
	searchLimit    int
)

func init() {
	searchCmd.Flags().StringVar(&searchJSONPath, "jsonpath", "", "JSONPath expression a record must match; omit to match every record")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 100, "maximum number of matching records to print")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <archive-dir> <split-id>...",
	Short: "Scan archive splits for records matching a JSONPath expression",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := args[0]
		splitIDs := args[1:]

		fs := osfs.New("/")
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"jsonpath": searchJSONPath,
			"limit":    float64(searchLimit),
		}

		result, err := mcptool.Search(fs, baseDir, splitIDs, req)
		if err != nil {
			return err
		}
		for _, c := range result.Content {
			if text, ok := c.(mcp.TextContent); ok {
				fmt.Println(text.Text)
			}
		}
		return nil
	},
}
