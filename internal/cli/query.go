package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"helpdesk/internal/domain"
	"helpdesk/internal/usecase"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the persisted store",
	Long: `Reopen the persisted store without re-ingesting and return the chunks most
similar to the query.

Examples:
  helpdesk query -q "vpn access"
  helpdesk query -q "reset my password" --top-k 8 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	pipeline, err := newStoreAccess(cfg, GetRootDir())
	if err != nil {
		return err
	}
	h, err := pipeline.GetDB()
	if err != nil {
		if errors.Is(err, domain.ErrStoreNotFound) {
			return fmt.Errorf("no store found, run 'helpdesk rebuild' first: %w", err)
		}
		return err
	}
	defer h.Close()

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	queryUC := usecase.NewQueryUseCase(h, cfg.Retrieve.MinScoreThreshold)
	scored, err := queryUC.Query(queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := usecase.ToQueryResults(scored)

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s (score: %.2f) ---\n", i+1, r.Title, r.Score)
		if r.Source != "" {
			fmt.Println(r.Source)
		}
		text := []rune(r.Content)
		if len(text) > 500 {
			text = append(text[:500], []rune("...")...)
		}
		fmt.Println(string(text))
		fmt.Println()
	}
	return nil
}
