package cmd

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/clpstructured/clps/internal/catalog"
)

var inspectQuery string

func init() {
	inspectCmd.Flags().StringVar(&inspectQuery, "query", "SELECT archive_id, row_count, has_timestamp FROM archives", "SQL to run against the built catalog")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive-dir> <split-id>...",
	Short: "Build a throwaway SQLite catalog over archive metadata and run a query against it",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := args[0]
		splitIDs := args[1:]

		fs := osfs.New("/")
		dbFile, err := os.CreateTemp("", "clps-catalog-*.sqlite")
		if err != nil {
			return err
		}
		dbPath := dbFile.Name()
		_ = dbFile.Close()
		defer func() { _ = os.Remove(dbPath) }()

		cat, err := catalog.Build(fs, baseDir, dbPath, splitIDs)
		if err != nil {
			return err
		}
		defer func() { _ = cat.Close(dbPath) }()

		rows, err := cat.DB().Query(inspectQuery)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}

		fmt.Println(cols)
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			fmt.Println(vals)
		}
		return rows.Err()
	},
}
