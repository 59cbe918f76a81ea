package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"helpdesk/internal/adapter/jsonl"
)

var (
	exportOutput string
	exportChunks bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write source documents as JSON lines",
	Long: `Load the configured collection and write it as JSON lines, one document per
line. The output can be fed back with source type jsonl.

Examples:
  helpdesk export -o pages.jsonl
  helpdesk export -o chunks.jsonl --chunks`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (required)")
	exportCmd.Flags().BoolVar(&exportChunks, "chunks", false, "split documents before writing")
	exportCmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	loader, err := newLoader(cfg, GetRootDir())
	if err != nil {
		return err
	}
	docs, err := loader.Load(cmd.Context(), cfg.Source.Collection)
	if err != nil {
		return err
	}

	if exportChunks {
		splitter, err := newSplitter(cfg)
		if err != nil {
			return err
		}
		if docs, err = splitter.Split(docs); err != nil {
			return err
		}
	}

	if err := jsonl.Save(docs, exportOutput); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	fmt.Printf("Wrote %d documents to %s\n", len(docs), exportOutput)
	return nil
}
