package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"helpdesk/internal/domain"
)

// Config holds all configuration for the helpdesk indexer.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourceConfig selects the content source and the collection to ingest.
type SourceConfig struct {
	Type       string           `yaml:"type"`       // "confluence", "directory", "jsonl"
	Collection string           `yaml:"collection"` // space key, sub-directory or JSONL path
	Confluence ConfluenceConfig `yaml:"confluence"`
	Directory  DirectoryConfig  `yaml:"directory"`
}

// ConfluenceConfig holds connection parameters for a Confluence site.
type ConfluenceConfig struct {
	URL               string  `yaml:"url"`
	Username          string  `yaml:"username"`
	APIKey            string  `yaml:"-"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	PageSize          int     `yaml:"page_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxPages          int     `yaml:"max_pages"` // 0 = no limit
}

// DirectoryConfig holds settings for loading exported pages from disk.
type DirectoryConfig struct {
	Root     string   `yaml:"root"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ChunkingConfig holds the recursive splitter settings.
type ChunkingConfig struct {
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	Separators    []string `yaml:"separators"`
	AddStartIndex bool     `yaml:"add_start_index"`
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	PersistDirectory string `yaml:"persist_directory"`
	Backend          string `yaml:"backend"`          // "bolt", "sqlite"
	Table            string `yaml:"table"`            // collection table inside the store
	RebuildStrategy  string `yaml:"rebuild_strategy"` // "staged", "in_place"
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "deepseek", "jina", "ollama", "hash"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"` // 0 = model default
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
}

// RetrieveConfig holds query-time settings.
type RetrieveConfig struct {
	TopK              int     `yaml:"top_k"`
	MinScoreThreshold float64 `yaml:"min_score_threshold"` // Filter results below this score (0 = disabled)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SentenceSeparator marks the sentence-boundary entry of a separator list.
const SentenceSeparator = `(?<=\. )`

// Environment variables recognised by ApplyEnv.
const (
	EnvConfluenceURL = "CONFLUENCE_URL"
	// EnvConfluenceSpaceName is the older name of EnvConfluenceURL.
	EnvConfluenceSpaceName = "CONFLUENCE_SPACE_NAME"
	EnvConfluenceUsername  = "CONFLUENCE_USERNAME"
	EnvConfluenceAPIKey    = "CONFLUENCE_API_KEY"
	EnvConfluenceSpaceKey  = "CONFLUENCE_SPACE_KEY"
	EnvPersistDirectory    = "PERSIST_DIRECTORY"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Type: "confluence",
			Confluence: ConfluenceConfig{
				APIKeyEnv:         EnvConfluenceAPIKey,
				PageSize:          50,
				RequestsPerSecond: 5,
				TimeoutSecs:       30,
			},
			Directory: DirectoryConfig{
				Root:     ".",
				Includes: []string{"**/*.html", "**/*.htm", "**/*.md", "**/*.txt"},
				Excludes: []string{"**/.git/**", "**/node_modules/**"},
			},
		},
		Chunking: ChunkingConfig{
			ChunkSize:    500,
			ChunkOverlap: 20,
			Separators:   []string{"\n\n", "\n", SentenceSeparator, " ", ""},
		},
		Store: StoreConfig{
			PersistDirectory: "db",
			Backend:          "bolt",
			Table:            "langchain",
			RebuildStrategy:  "staged",
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 100,
			CacheSize: 1024,
		},
		Retrieve: RetrieveConfig{
			TopK: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for helpdesk.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "helpdesk.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".helpdesk", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overlays the recognised environment variables on the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvConfluenceURL); v != "" {
		c.Source.Confluence.URL = v
	} else if v := os.Getenv(EnvConfluenceSpaceName); v != "" {
		c.Source.Confluence.URL = v
	}
	if v := os.Getenv(EnvConfluenceUsername); v != "" {
		c.Source.Confluence.Username = v
	}
	if v := os.Getenv(EnvConfluenceSpaceKey); v != "" && c.Source.Type == "confluence" {
		c.Source.Collection = v
	}
	if v := os.Getenv(EnvPersistDirectory); v != "" {
		c.Store.PersistDirectory = v
	}
	keyEnv := c.Source.Confluence.APIKeyEnv
	if keyEnv == "" {
		keyEnv = EnvConfluenceAPIKey
	}
	if v := os.Getenv(keyEnv); v != "" {
		c.Source.Confluence.APIKey = v
	}
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedTables are used by the store backends for schema info.
var reservedTables = []string{"meta", "store_meta"}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	ch := c.Chunking
	if ch.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrInvalidConfig, ch.ChunkSize)
	}
	if ch.ChunkOverlap < 0 || ch.ChunkOverlap >= ch.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, %d), got %d", domain.ErrInvalidConfig, ch.ChunkSize, ch.ChunkOverlap)
	}

	switch c.Store.Backend {
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidConfig, c.Store.Backend)
	}
	switch c.Store.RebuildStrategy {
	case "staged", "in_place":
	default:
		return fmt.Errorf("%w: unknown rebuild strategy %q", domain.ErrInvalidConfig, c.Store.RebuildStrategy)
	}
	if !tableName.MatchString(c.Store.Table) {
		return fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidConfig, c.Store.Table)
	}
	if t := strings.ToLower(c.Store.Table); strings.HasPrefix(t, "sqlite_") || slices.Contains(reservedTables, t) {
		return fmt.Errorf("%w: table name %q is reserved", domain.ErrInvalidConfig, c.Store.Table)
	}
	if c.Store.PersistDirectory == "" {
		return fmt.Errorf("%w: persist_directory is required", domain.ErrInvalidConfig)
	}

	switch c.Source.Type {
	case "confluence", "directory", "jsonl":
	default:
		return fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidConfig, c.Source.Type)
	}

	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// PersistPath resolves the store location against the root directory.
func PersistPath(root string, cfg *Config) string {
	if filepath.IsAbs(cfg.Store.PersistDirectory) {
		return cfg.Store.PersistDirectory
	}
	return filepath.Join(root, cfg.Store.PersistDirectory)
}
