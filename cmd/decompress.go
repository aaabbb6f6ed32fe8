package cmd

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/clpstructured/clps/internal/archive"
)

func init() {
	rootCmd.AddCommand(decompressCmd)
}

var decompressCmd = &cobra.Command{
	Use:   "decompress <archive-dir> <split-id>...",
	Short: "Reconstruct every record in the given archive splits as newline-delimited JSON on stdout",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := args[0]
		splitIDs := args[1:]

		fs := osfs.New("/")
		w := bufio.NewWriter(os.Stdout)
		defer func() { _ = w.Flush() }()

		for _, id := range splitIDs {
			rd, err := archive.OpenReader(fs, baseDir, id)
			if err != nil {
				return err
			}
			pairs, err := rd.Schemas()
			if err != nil {
				return err
			}
			for _, pair := range pairs {
				rows, err := rd.ReadSchema(pair.SchemaID, nil)
				if err != nil {
					return err
				}
				for _, row := range rows {
					body, err := json.Marshal(row)
					if err != nil {
						return err
					}
					if _, err := w.Write(body); err != nil {
						return err
					}
					if err := w.WriteByte('\n'); err != nil {
						return err
					}
				}
			}
		}
		return w.Flush()
	},
}
