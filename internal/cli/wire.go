package cli

import (
	"fmt"
	"path/filepath"

	"helpdesk/config"
	"helpdesk/internal/adapter/cache"
	"helpdesk/internal/adapter/chunker"
	"helpdesk/internal/adapter/embedding"
	"helpdesk/internal/adapter/jsonl"
	"helpdesk/internal/adapter/source/confluence"
	"helpdesk/internal/adapter/source/dirsource"
	"helpdesk/internal/adapter/store"
	"helpdesk/internal/domain"
	"helpdesk/internal/port"
	"helpdesk/internal/usecase"
)

func newLoader(cfg *config.Config, root string) (port.SourceLoader, error) {
	switch cfg.Source.Type {
	case "confluence":
		client, err := confluence.NewClient(cfg.Source.Confluence)
		if err != nil {
			return nil, err
		}
		return confluence.NewLoader(client), nil
	case "directory":
		dir := cfg.Source.Directory
		if !filepath.IsAbs(dir.Root) {
			dir.Root = filepath.Join(root, dir.Root)
		}
		return dirsource.NewLoader(dir), nil
	case "jsonl":
		return jsonl.Loader{}, nil
	}
	return nil, fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidConfig, cfg.Source.Type)
}

func newSplitter(cfg *config.Config) (*chunker.RecursiveSplitter, error) {
	return chunker.NewRecursiveSplitter(
		cfg.Chunking.ChunkSize,
		cfg.Chunking.ChunkOverlap,
		chunker.WithSeparators(cfg.Chunking.Separators),
		chunker.WithStartIndex(cfg.Chunking.AddStartIndex),
	)
}

// newEmbedder returns the configured embedder, behind an LRU cache when
// cache_size is positive.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	e, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if cfg.Embedding.CacheSize > 0 {
		e = cache.NewCachedEmbedder(e, cache.NewEmbeddingCache(cfg.Embedding.CacheSize))
	}
	return e, nil
}

func newFactory(cfg *config.Config, progress func(done, total int)) *store.Factory {
	f := store.NewFactory(cfg.Store.Backend, cfg.Store.Table)
	f.BatchSize = cfg.Embedding.BatchSize
	f.Progress = progress
	return f
}

// newPipeline wires source, splitter, embedder and store for one invocation.
func newPipeline(cfg *config.Config, root string, progress func(done, total int)) (*usecase.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loader, err := newLoader(cfg, root)
	if err != nil {
		return nil, err
	}
	splitter, err := newSplitter(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return usecase.NewPipeline(loader, splitter, embedder, newFactory(cfg, progress), pipelineOptions(cfg, root)), nil
}

// newStoreAccess wires only what reopening needs: no source loader or
// splitter, so source credentials are not required.
func newStoreAccess(cfg *config.Config, root string) (*usecase.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return usecase.NewPipeline(nil, nil, embedder, newFactory(cfg, nil), pipelineOptions(cfg, root)), nil
}

func pipelineOptions(cfg *config.Config, root string) usecase.PipelineOptions {
	return usecase.PipelineOptions{
		Collection: cfg.Source.Collection,
		Location:   config.PersistPath(root, cfg),
		Strategy:   cfg.Store.RebuildStrategy,
	}
}
