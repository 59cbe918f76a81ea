package cli

import (
	"fmt"
	"os"

	"github.com/google/gops/agent"
	"github.com/spf13/cobra"

	"helpdesk/config"
	"helpdesk/internal/logger"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	verbose  bool
	withGops bool
)

var rootCmd = &cobra.Command{
	Use:   "helpdesk",
	Short: "Helpdesk knowledge base indexer - Build and query a vector store of wiki pages",
	Long: `helpdesk loads pages from a Confluence space (or an exported directory or JSONL
file), splits them into overlapping chunks, embeds every chunk and persists the
vectors in a local store that can be reopened for similarity search.

Example usage:
  helpdesk rebuild                      # Rebuild the store from the configured space
  helpdesk query -q "reset my password" # Search the persisted store
  helpdesk count                        # Number of stored chunks
  helpdesk export -o pages.jsonl        # Dump source documents as JSON lines`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ApplyEnv()

		level, err := logger.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		if verbose {
			level = logger.LevelDebug
		}
		logger.SetLevel(level)

		if withGops {
			if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
				logger.Warn("gops: %v", err)
			}
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./helpdesk.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&withGops, "gops", false, "start the gops diagnostics agent")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
