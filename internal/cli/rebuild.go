package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	rebuildCollection string
	rebuildPersistDir string
	rebuildBackend    string
	rebuildStrategy   string
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the vector store from the source",
	Long: `Load every page of the configured collection, split it into chunks, embed
the chunks and write a fresh store at the persist directory.

With the staged strategy (default) the new store is built next to the live one
and swapped in only when complete. The in_place strategy removes the live store
first.

Examples:
  helpdesk rebuild
  helpdesk rebuild --collection HELP --persist-dir /var/lib/helpdesk/db
  helpdesk rebuild --backend sqlite --strategy in_place`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().StringVar(&rebuildCollection, "collection", "", "collection (space key, directory or JSONL file)")
	rebuildCmd.Flags().StringVar(&rebuildPersistDir, "persist-dir", "", "store location")
	rebuildCmd.Flags().StringVar(&rebuildBackend, "backend", "", "store backend: bolt or sqlite")
	rebuildCmd.Flags().StringVar(&rebuildStrategy, "strategy", "", "rebuild strategy: staged or in_place")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if rebuildCollection != "" {
		cfg.Source.Collection = rebuildCollection
	}
	if rebuildPersistDir != "" {
		cfg.Store.PersistDirectory = rebuildPersistDir
	}
	if rebuildBackend != "" {
		cfg.Store.Backend = rebuildBackend
	}
	if rebuildStrategy != "" {
		cfg.Store.RebuildStrategy = rebuildStrategy
	}

	pipeline, err := newPipeline(cfg, GetRootDir(), embedProgress())
	if err != nil {
		return err
	}

	fmt.Printf("Rebuilding from %s %q...\n", cfg.Source.Type, cfg.Source.Collection)
	result, err := pipeline.SetDB(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	defer result.Handle.Close()

	info := result.Handle.Info()
	fmt.Printf("\nRebuild complete:\n")
	fmt.Printf("  Documents loaded: %d\n", result.Documents)
	fmt.Printf("  Chunks stored:    %d\n", result.Chunks)
	fmt.Printf("  Embedding model:  %s (%d dims)\n", info.EmbeddingModel, info.Dimension)
	fmt.Printf("  Backend:          %s, table %s\n", info.Backend, info.Table)

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range result.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nStore written to: %s\n", result.Handle.Location())
	return nil
}

// embedProgress returns a store progress callback that draws a bar with ETA.
func embedProgress() func(done, total int) {
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	return func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
