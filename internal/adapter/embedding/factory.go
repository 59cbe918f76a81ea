package embedding

import (
	"fmt"

	"helpdesk/config"
	"helpdesk/internal/domain"
	"helpdesk/internal/port"
)

// New builds the embedder selected by the configuration.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	var (
		e   *OpenAIEmbedder
		err error
	)
	switch cfg.Provider {
	case "hash", "mock":
		return NewHashEmbedder(cfg.Dimension), nil
	case "ollama":
		e = NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
	case "openai", "":
		if cfg.BaseURL != "" {
			e, err = NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL)
		} else {
			e, err = NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model)
		}
	case "deepseek":
		e, err = NewDeepSeekEmbedder(cfg.APIKeyEnv, cfg.Model)
	case "jina":
		e, err = NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return e.WithDimension(cfg.Dimension).WithBatchSize(cfg.BatchSize), nil
}
