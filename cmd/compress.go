package cmd

import (
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/clpstructured/clps/internal/config"
	"github.com/clpstructured/clps/internal/orchestrator"
)

var compressConfigPath string

func init() {
	compressCmd.Flags().StringVarP(&compressConfigPath, "config", "c", "", "path to an HCL compress config (required)")
	_ = compressCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(compressCmd)
}

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Compress one or more newline-delimited JSON sources into clps archives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(compressConfigPath)
		if err != nil {
			return err
		}

		fs := osfs.New("/")
		run := orchestrator.New(fs, cfg.OutputDir, cfg.TimestampColumn, cfg.CompressionLevel, cfg.MaxEncodingSize)

		start := time.Now()
		for _, input := range cfg.Inputs {
			fmt.Printf("ingesting %s...\n", input)
			if err := run.IngestFile(input); err != nil {
				return err
			}
		}

		stats, err := run.Close()
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d archive(s), %d/%d records ok in %v\n",
			len(stats.ArchiveIDs), stats.RecordsOK, stats.RecordsRead, time.Since(start))
		for _, id := range stats.ArchiveIDs {
			fmt.Println(" -", id)
		}
		return nil
	},
}
