package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/adapter/chunker"
	"helpdesk/internal/adapter/embedding"
	"helpdesk/internal/adapter/store"
	"helpdesk/internal/domain"
	"helpdesk/internal/logger"
	"helpdesk/internal/port"
)

type fakeLoader struct {
	docs  []domain.Document
	err   error
	calls int
}

func (l *fakeLoader) Load(ctx context.Context, collection string) ([]domain.Document, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.docs, nil
}

type countingSplitter struct {
	port.Splitter
	calls int
}

func (s *countingSplitter) Split(docs []domain.Document) ([]domain.Document, error) {
	s.calls++
	return s.Splitter.Split(docs)
}

type countingEmbedder struct {
	port.Embedder
	calls int
	err   error
}

func (e *countingEmbedder) Embed(texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.Embedder.Embed(texts)
}

type countingFactory struct {
	port.StoreFactory
	builds int
}

func (f *countingFactory) Build(chunks []domain.Document, embedder port.Embedder, location string) (port.StoreHandle, error) {
	f.builds++
	return f.StoreFactory.Build(chunks, embedder, location)
}

// flakyLocations fails selected operations and delegates the rest.
type flakyLocations struct {
	Locations
	removeErr error
	renameErr func(from, to string) error
}

func (l *flakyLocations) Remove(ctx context.Context, path string) error {
	if l.removeErr != nil {
		return l.removeErr
	}
	return l.Locations.Remove(ctx, path)
}

func (l *flakyLocations) Rename(from, to string) error {
	if l.renameErr != nil {
		if err := l.renameErr(from, to); err != nil {
			return err
		}
	}
	return l.Locations.Rename(from, to)
}

type fixture struct {
	loader   *fakeLoader
	splitter *countingSplitter
	embedder *countingEmbedder
	factory  *countingFactory
	location string
}

func newFixture(t *testing.T, docs int) *fixture {
	t.Helper()
	splitter, err := chunker.NewRecursiveSplitter(200, 20)
	require.NoError(t, err)
	return &fixture{
		loader:   &fakeLoader{docs: pages(docs, "v1")},
		splitter: &countingSplitter{Splitter: splitter},
		embedder: &countingEmbedder{Embedder: embedding.NewHashEmbedder(32)},
		factory:  &countingFactory{StoreFactory: store.NewFactory("bolt", "langchain")},
		location: filepath.Join(t.TempDir(), "db"),
	}
}

func (f *fixture) pipeline(strategy string, locations Locations) *Pipeline {
	return NewPipeline(f.loader, f.splitter, f.embedder, f.factory, PipelineOptions{
		Collection: "HELP",
		Location:   f.location,
		Strategy:   strategy,
		Locations:  locations,
	})
}

func pages(n int, version string) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.NewDocument(
			fmt.Sprintf("How to reset password %d (%s).", i, version),
			map[string]any{"title": fmt.Sprintf("Page %d", i), "id": fmt.Sprint(i)},
		)
	}
	return docs
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

func rebuild(t *testing.T, p *Pipeline) *RebuildResult {
	t.Helper()
	result, err := p.SetDB(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { result.Handle.Close() })
	return result
}

func count(t *testing.T, h port.StoreHandle) int {
	t.Helper()
	n, err := h.Count()
	require.NoError(t, err)
	return n
}

func siblings(t *testing.T, location string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(location))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSetDB_SourceUnavailable(t *testing.T) {
	for _, strategy := range []string{StrategyStaged, StrategyInPlace} {
		t.Run(strategy, func(t *testing.T) {
			f := newFixture(t, 3)
			loadErr := fmt.Errorf("%w: 401 unauthorized", domain.ErrSourceUnavailable)
			f.loader.err = loadErr

			result, err := f.pipeline(strategy, nil).SetDB(context.Background())
			assert.Nil(t, result)
			assert.Equal(t, loadErr, err)
			assert.ErrorIs(t, err, domain.ErrSourceUnavailable)

			assert.Equal(t, 1, f.loader.calls)
			assert.Zero(t, f.splitter.calls)
			assert.Zero(t, f.embedder.calls)
			assert.Zero(t, f.factory.builds)
		})
	}
}

func TestSetDB_StagedSourceFailureKeepsStore(t *testing.T) {
	f := newFixture(t, 3)
	first := rebuild(t, f.pipeline(StrategyStaged, nil))
	require.NoError(t, first.Handle.Close())

	f.loader.err = fmt.Errorf("%w: timeout", domain.ErrSourceUnavailable)
	_, err := f.pipeline(StrategyStaged, nil).SetDB(context.Background())
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)

	h, err := f.pipeline(StrategyStaged, nil).GetDB()
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 3, count(t, h))
}

func TestSetDB_RebuildIsIdempotent(t *testing.T) {
	for _, strategy := range []string{StrategyStaged, StrategyInPlace} {
		t.Run(strategy, func(t *testing.T) {
			f := newFixture(t, 4)
			p := f.pipeline(strategy, nil)

			first := rebuild(t, p)
			assert.Equal(t, 4, first.Documents)
			assert.Equal(t, 4, first.Chunks)
			assert.Equal(t, 4, count(t, first.Handle))
			require.NoError(t, first.Handle.Close())

			second := rebuild(t, p)
			assert.Equal(t, 4, count(t, second.Handle))
			assert.Empty(t, second.Warnings)
			assert.Equal(t, []string{"db"}, siblings(t, f.location))
		})
	}
}

func TestSetDB_ReplacesPreviousContent(t *testing.T) {
	for _, strategy := range []string{StrategyStaged, StrategyInPlace} {
		t.Run(strategy, func(t *testing.T) {
			f := newFixture(t, 5)
			first := rebuild(t, f.pipeline(strategy, nil))
			require.NoError(t, first.Handle.Close())

			f.loader.docs = pages(2, "v2")
			second := rebuild(t, f.pipeline(strategy, nil))
			assert.Equal(t, 2, count(t, second.Handle))

			results, err := second.Handle.Search("reset password", 5)
			require.NoError(t, err)
			require.Len(t, results, 2)
			for _, r := range results {
				assert.Contains(t, r.Document.Content, "(v2)")
			}
		})
	}
}

func TestGetDB_ReopensWithoutIngestion(t *testing.T) {
	f := newFixture(t, 3)
	p := f.pipeline(StrategyStaged, nil)
	built := rebuild(t, p)
	require.NoError(t, built.Handle.Close())

	loads, embeds := f.loader.calls, f.embedder.calls
	h, err := p.GetDB()
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 3, count(t, h))
	assert.Equal(t, loads, f.loader.calls)
	assert.Equal(t, embeds, f.embedder.calls)
	assert.Equal(t, f.location, h.Location())
}

func TestGetDB_MissingStore(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.pipeline(StrategyStaged, nil).GetDB()
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
	assert.Zero(t, f.loader.calls)
}

func TestSetDB_FirstRunLogsAbsentLocation(t *testing.T) {
	for _, strategy := range []string{StrategyStaged, StrategyInPlace} {
		t.Run(strategy, func(t *testing.T) {
			logs := captureLog(t)
			f := newFixture(t, 1)

			result := rebuild(t, f.pipeline(strategy, nil))
			assert.Empty(t, result.Warnings)
			assert.Contains(t, logs.String(), "[INFO] no previous store at "+f.location)
			assert.NotContains(t, logs.String(), "[WARN]")
		})
	}
}

func TestSetDB_InPlaceRemovalFailureWarns(t *testing.T) {
	f := newFixture(t, 3)
	first := rebuild(t, f.pipeline(StrategyInPlace, nil))
	require.NoError(t, first.Handle.Close())

	logs := captureLog(t)
	denied := errors.New("permission denied")
	locations := &flakyLocations{Locations: NewLocations(), removeErr: denied}
	f.loader.docs = pages(2, "v2")

	result := rebuild(t, f.pipeline(StrategyInPlace, locations))
	require.Len(t, result.Warnings, 1)

	var warning *domain.RemovalWarning
	require.ErrorAs(t, result.Warnings[0], &warning)
	assert.Equal(t, f.location, warning.Path)
	assert.ErrorIs(t, warning, denied)
	assert.Contains(t, logs.String(), "[WARN] stale store location")

	assert.Equal(t, 2, count(t, result.Handle))
}

func TestSetDB_StagedBuildFailureKeepsStore(t *testing.T) {
	f := newFixture(t, 3)
	first := rebuild(t, f.pipeline(StrategyStaged, nil))
	require.NoError(t, first.Handle.Close())

	f.embedder.err = errors.New("embedding service down")
	f.loader.docs = pages(6, "v2")
	_, err := f.pipeline(StrategyStaged, nil).SetDB(context.Background())
	require.Error(t, err)

	f.embedder.err = nil
	h, err := f.pipeline(StrategyStaged, nil).GetDB()
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 3, count(t, h))
	assert.Equal(t, []string{"db"}, siblings(t, f.location))
}

func TestSetDB_StagedMoveAsideFailure(t *testing.T) {
	f := newFixture(t, 3)
	first := rebuild(t, f.pipeline(StrategyStaged, nil))
	require.NoError(t, first.Handle.Close())

	locations := &flakyLocations{
		Locations: NewLocations(),
		renameErr: func(from, to string) error {
			if from == f.location {
				return errors.New("device busy")
			}
			return nil
		},
	}
	f.loader.docs = pages(1, "v2")
	_, err := f.pipeline(StrategyStaged, locations).SetDB(context.Background())
	require.ErrorIs(t, err, domain.ErrStoreWrite)

	h, err := f.pipeline(StrategyStaged, nil).GetDB()
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 3, count(t, h))
	assert.Equal(t, []string{"db"}, siblings(t, f.location))
}

func TestSetDB_StagedInstallFailureRestoresStore(t *testing.T) {
	f := newFixture(t, 3)
	first := rebuild(t, f.pipeline(StrategyStaged, nil))
	require.NoError(t, first.Handle.Close())

	locations := &flakyLocations{
		Locations: NewLocations(),
		renameErr: func(from, to string) error {
			if strings.Contains(filepath.Base(from), ".staging-") {
				return errors.New("cross-device link")
			}
			return nil
		},
	}
	_, err := f.pipeline(StrategyStaged, locations).SetDB(context.Background())
	require.ErrorIs(t, err, domain.ErrStoreWrite)

	h, err := f.pipeline(StrategyStaged, nil).GetDB()
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 3, count(t, h))
	assert.Equal(t, []string{"db"}, siblings(t, f.location))
}

func TestSetDB_StagedBackupRemovalWarns(t *testing.T) {
	f := newFixture(t, 3)
	first := rebuild(t, f.pipeline(StrategyStaged, nil))
	require.NoError(t, first.Handle.Close())

	logs := captureLog(t)
	locations := &flakyLocations{Locations: NewLocations(), removeErr: errors.New("read-only file system")}
	f.loader.docs = pages(2, "v2")

	result := rebuild(t, f.pipeline(StrategyStaged, locations))
	require.Len(t, result.Warnings, 1)
	var warning *domain.RemovalWarning
	require.ErrorAs(t, result.Warnings[0], &warning)
	assert.Contains(t, filepath.Base(warning.Path), ".db.old-")
	assert.Contains(t, logs.String(), "[WARN]")

	assert.Equal(t, 2, count(t, result.Handle))
}

func TestSetDB_UnknownStrategy(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.pipeline("swap", nil).SetDB(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Zero(t, f.loader.calls)
}

func TestSiblingPath(t *testing.T) {
	a := siblingPath("/var/lib/helpdesk/db", "staging")
	b := siblingPath("/var/lib/helpdesk/db", "staging")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "/var/lib/helpdesk", filepath.Dir(a))
	assert.True(t, strings.HasPrefix(filepath.Base(a), ".db.staging-"))
}

func TestGetDB_WithoutLoader(t *testing.T) {
	f := newFixture(t, 2)
	built := rebuild(t, f.pipeline(StrategyStaged, nil))
	require.NoError(t, built.Handle.Close())

	readOnly := NewPipeline(nil, nil, f.embedder, f.factory, PipelineOptions{Location: f.location})
	h, err := readOnly.GetDB()
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 2, count(t, h))

	_, err = readOnly.SetDB(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
