package usecase

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"helpdesk/internal/domain"
	"helpdesk/internal/logger"
	"helpdesk/internal/port"
)

// Rebuild strategies.
const (
	// StrategyStaged builds next to the live store and swaps it in on success.
	StrategyStaged = "staged"
	// StrategyInPlace removes the live store first, then builds at its location.
	StrategyInPlace = "in_place"
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Collection string
	Location   string
	Strategy   string
	Locations  Locations // defaults to NewLocations()
}

// Pipeline sequences loader, splitter, embedder and store. It has two
// entry points: SetDB rebuilds the store from the source, GetDB reopens it.
type Pipeline struct {
	loader    port.SourceLoader
	splitter  port.Splitter
	embedder  port.Embedder
	stores    port.StoreFactory
	opts      PipelineOptions
	locations Locations
}

func NewPipeline(
	loader port.SourceLoader,
	splitter port.Splitter,
	embedder port.Embedder,
	stores port.StoreFactory,
	opts PipelineOptions,
) *Pipeline {
	locations := opts.Locations
	if locations == nil {
		locations = NewLocations()
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyStaged
	}
	opts.Location = filepath.Clean(opts.Location)
	return &Pipeline{
		loader:    loader,
		splitter:  splitter,
		embedder:  embedder,
		stores:    stores,
		opts:      opts,
		locations: locations,
	}
}

// RebuildResult describes a completed rebuild.
type RebuildResult struct {
	Handle    port.StoreHandle
	Documents int
	Chunks    int
	// Warnings holds *domain.RemovalWarning values for stale locations
	// that could not be removed.
	Warnings []error
}

// SetDB rebuilds the store from the configured collection. Loader and store
// errors are returned unmodified.
func (p *Pipeline) SetDB(ctx context.Context) (*RebuildResult, error) {
	if p.loader == nil || p.splitter == nil {
		return nil, fmt.Errorf("%w: pipeline has no source loader or splitter", domain.ErrInvalidConfig)
	}
	switch p.opts.Strategy {
	case StrategyInPlace:
		return p.rebuildInPlace(ctx)
	case StrategyStaged:
		return p.rebuildStaged(ctx)
	}
	return nil, fmt.Errorf("%w: unknown rebuild strategy %q", domain.ErrInvalidConfig, p.opts.Strategy)
}

// GetDB reopens the persisted store without ingesting anything. It works on
// a pipeline built without loader and splitter.
func (p *Pipeline) GetDB() (port.StoreHandle, error) {
	return p.stores.Reopen(p.opts.Location, p.embedder)
}

func (p *Pipeline) ingest(ctx context.Context) ([]domain.Document, []domain.Document, error) {
	docs, err := p.loader.Load(ctx, p.opts.Collection)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := p.splitter.Split(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("split documents: %w", err)
	}
	logger.Info("loaded %d documents from %s, split into %d chunks", len(docs), p.opts.Collection, len(chunks))
	return docs, chunks, nil
}

func (p *Pipeline) rebuildInPlace(ctx context.Context) (*RebuildResult, error) {
	result := &RebuildResult{}
	p.removeStale(ctx, p.opts.Location, result)

	docs, chunks, err := p.ingest(ctx)
	if err != nil {
		return nil, err
	}

	h, err := p.stores.Build(chunks, p.embedder, p.opts.Location)
	if err != nil {
		return nil, err
	}

	result.Handle = h
	result.Documents = len(docs)
	result.Chunks = len(chunks)
	return result, nil
}

// removeStale deletes a previous store. An absent location is the first-run
// case; any other failure becomes a warning and the rebuild goes on.
func (p *Pipeline) removeStale(ctx context.Context, path string, result *RebuildResult) {
	exists, err := p.locations.Exists(ctx, path)
	if err == nil && !exists {
		logger.Info("no previous store at %s", path)
		return
	}
	if err == nil {
		err = p.locations.Remove(ctx, path)
	}
	if err != nil {
		w := &domain.RemovalWarning{Path: path, Err: err}
		logger.Warn("%v", w)
		result.Warnings = append(result.Warnings, w)
	}
}

func (p *Pipeline) rebuildStaged(ctx context.Context) (*RebuildResult, error) {
	docs, chunks, err := p.ingest(ctx)
	if err != nil {
		return nil, err
	}

	live := p.opts.Location
	staging := siblingPath(live, "staging")

	h, err := p.stores.Build(chunks, p.embedder, staging)
	if err != nil {
		p.discard(ctx, staging)
		return nil, err
	}
	if err := h.Close(); err != nil {
		p.discard(ctx, staging)
		return nil, fmt.Errorf("%w: close staged store: %v", domain.ErrStoreWrite, err)
	}

	result := &RebuildResult{Documents: len(docs), Chunks: len(chunks)}
	if err := p.swap(ctx, staging, live, result); err != nil {
		p.discard(ctx, staging)
		return nil, err
	}

	result.Handle, err = p.stores.Reopen(live, p.embedder)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// swap moves the live store aside, renames staging into its place and then
// removes the old store.
func (p *Pipeline) swap(ctx context.Context, staging, live string, result *RebuildResult) error {
	exists, err := p.locations.Exists(ctx, live)
	if err != nil {
		return fmt.Errorf("%w: check %s: %v", domain.ErrStoreWrite, live, err)
	}

	if !exists {
		logger.Info("no previous store at %s", live)
		if err := p.locations.Rename(staging, live); err != nil {
			return fmt.Errorf("%w: install store: %v", domain.ErrStoreWrite, err)
		}
		return nil
	}

	backup := siblingPath(live, "old")
	if err := p.locations.Rename(live, backup); err != nil {
		return fmt.Errorf("%w: move previous store aside: %v", domain.ErrStoreWrite, err)
	}
	if err := p.locations.Rename(staging, live); err != nil {
		if rerr := p.locations.Rename(backup, live); rerr != nil {
			logger.Error("previous store left at %s: %v", backup, rerr)
		}
		return fmt.Errorf("%w: install store: %v", domain.ErrStoreWrite, err)
	}

	if err := p.locations.Remove(ctx, backup); err != nil {
		w := &domain.RemovalWarning{Path: backup, Err: err}
		logger.Warn("%v", w)
		result.Warnings = append(result.Warnings, w)
	}
	return nil
}

func (p *Pipeline) discard(ctx context.Context, path string) {
	if exists, err := p.locations.Exists(ctx, path); err != nil || !exists {
		return
	}
	if err := p.locations.Remove(ctx, path); err != nil {
		logger.Debug("staging store %s not removed: %v", path, err)
	}
}

// siblingPath returns a hidden, unique path next to location.
func siblingPath(location, kind string) string {
	dir, base := filepath.Split(location)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s-%s", base, kind, uuid.NewString()))
}
