package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"helpdesk/internal/adapter/store"
)

var (
	countTable  string
	countDriver string
	countDSN    string
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count rows in the store",
	Long: `Print COUNT(*) for the collection table of the persisted store, or for a
table in an external SQL database holding a vector collection.

Examples:
  helpdesk count
  helpdesk count --table langchain
  helpdesk count --driver postgres --dsn "postgres://localhost/kb?sslmode=disable" --table langchain_pg_embedding`,
	Args: cobra.NoArgs,
	RunE: runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
	countCmd.Flags().StringVar(&countTable, "table", "", "table name (default from config)")
	countCmd.Flags().StringVar(&countDriver, "driver", "", "external database driver: sqlite, postgres or mysql")
	countCmd.Flags().StringVar(&countDSN, "dsn", "", "external database DSN")
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	table := countTable
	if table == "" {
		table = cfg.Store.Table
	}

	if countDriver != "" {
		if countDSN == "" {
			return fmt.Errorf("--dsn is required with --driver")
		}
		n, err := store.CountTable(cmd.Context(), countDriver, countDSN, table)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	}

	pipeline, err := newStoreAccess(cfg, GetRootDir())
	if err != nil {
		return err
	}
	h, err := pipeline.GetDB()
	if err != nil {
		return err
	}
	defer h.Close()

	n, err := h.RowCount(table)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}
