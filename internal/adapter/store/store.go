package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/viant/sqlite-vec/vector"

	"helpdesk/internal/domain"
	"helpdesk/internal/logger"
	"helpdesk/internal/port"
)

const (
	DefaultTable     = "langchain"
	defaultBatchSize = 100
)

// backend is the on-disk representation behind a Handle.
type backend interface {
	name() string
	write(table string, records []*record, info domain.StoreInfo) error
	readInfo() (domain.StoreInfo, error)
	records(table string) ([]*record, error)
	rowCount(table string) (int64, error)
	close() error
}

// Factory builds and reopens persisted stores.
type Factory struct {
	Backend   string // "bolt" or "sqlite"
	Table     string
	BatchSize int
	// Progress, when set, is called after each embedded batch.
	Progress func(done, total int)
}

func NewFactory(backend, table string) *Factory {
	return &Factory{Backend: backend, Table: table}
}

func (f *Factory) table() string {
	if f.Table == "" {
		return DefaultTable
	}
	return f.Table
}

func (f *Factory) backendName() string {
	if f.Backend == "" {
		return "bolt"
	}
	return f.Backend
}

// ReservedTables hold store metadata in the bolt and sqlite backends.
var ReservedTables = []string{string(bucketMeta), sqliteMetaTable}

// ValidateTable rejects names that are not plain identifiers or that would
// collide with the backends' own tables. Names are compared case-insensitively,
// as sqlite does.
func ValidateTable(table string) error {
	if !identifier.MatchString(table) {
		return fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidConfig, table)
	}
	name := strings.ToLower(table[strings.LastIndexByte(table, '.')+1:])
	if strings.HasPrefix(name, "sqlite_") || slices.Contains(ReservedTables, name) {
		return fmt.Errorf("%w: table name %q is reserved", domain.ErrInvalidConfig, table)
	}
	return nil
}

func backendFile(name string) (string, error) {
	switch name {
	case "bolt":
		return boltFile, nil
	case "sqlite":
		return sqliteFile, nil
	}
	return "", fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidConfig, name)
}

// Build embeds the chunks and writes them into a fresh collection table at
// location. Anything previously stored in that table is replaced.
func (f *Factory) Build(chunks []domain.Document, embedder port.Embedder, location string) (port.StoreHandle, error) {
	file, err := backendFile(f.backendName())
	if err != nil {
		return nil, err
	}
	if err := ValidateTable(f.table()); err != nil {
		return nil, err
	}

	docs := make([]domain.Document, len(chunks))
	for i, c := range chunks {
		md, err := domain.NormalizeMetadata(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", domain.ErrStoreWrite, i, err)
		}
		docs[i] = domain.Document{Content: c.Content, Metadata: md}
	}

	records, dimension, err := f.embed(docs, embedder)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(location, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err)
	}

	path := filepath.Join(location, file)
	var b backend
	switch f.backendName() {
	case "sqlite":
		b, err = openSQLite(path)
	default:
		b, err = openBolt(path, false)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err)
	}

	info := domain.StoreInfo{
		SchemaVersion:  CurrentSchemaVersion,
		Backend:        b.name(),
		Table:          f.table(),
		EmbeddingModel: embedder.ModelName(),
		Dimension:      dimension,
		Chunks:         len(records),
		BuiltAt:        time.Now().UTC(),
	}
	if err := b.write(f.table(), records, info); err != nil {
		b.close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err)
	}

	logger.Debug("stored %d chunks in %s (%s)", len(records), path, b.name())
	return &Handle{
		backend:  b,
		location: location,
		table:    f.table(),
		info:     info,
		embedder: embedder,
		records:  records,
	}, nil
}

func (f *Factory) embed(chunks []domain.Document, embedder port.Embedder) ([]*record, int, error) {
	batch := f.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	records := make([]*record, 0, len(chunks))
	dimension := 0
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}

		vectors, err := embedder.Embed(texts)
		if err != nil {
			return nil, 0, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return nil, 0, fmt.Errorf("embedder returned %d vectors, expected %d", len(vectors), len(texts))
		}

		for i, vec := range vectors {
			if dimension == 0 {
				dimension = len(vec)
			}
			if len(vec) != dimension {
				return nil, 0, fmt.Errorf("%w: chunk %d has %d, expected %d", domain.ErrDimensionMismatch, start+i, len(vec), dimension)
			}
			seq := uint64(start + i)
			doc := chunks[start+i]
			id, err := recordID(seq, doc.Content)
			if err != nil {
				return nil, 0, err
			}
			records = append(records, &record{
				Seq:      seq,
				ID:       id,
				Document: doc,
				Vector:   vec,
			})
		}

		if f.Progress != nil {
			f.Progress(end, len(chunks))
		}
	}
	if dimension == 0 {
		dimension = embedder.Dimension()
	}
	return records, dimension, nil
}

// Reopen attaches to the store at location without ingesting anything.
func (f *Factory) Reopen(location string, embedder port.Embedder) (port.StoreHandle, error) {
	st, err := os.Stat(location)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreNotFound, location)
	}

	b, err := f.openExisting(location)
	if err != nil {
		return nil, err
	}

	h, err := f.attach(b, location, embedder)
	if err != nil {
		b.close()
		return nil, err
	}
	return h, nil
}

// openExisting prefers the configured backend's file and falls back to the other one.
func (f *Factory) openExisting(location string) (backend, error) {
	order := []string{"bolt", "sqlite"}
	if f.backendName() == "sqlite" {
		order = []string{"sqlite", "bolt"}
	}
	for _, name := range order {
		file, _ := backendFile(name)
		path := filepath.Join(location, file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var (
			b   backend
			err error
		)
		if name == "sqlite" {
			b, err = openSQLite(path)
		} else {
			b, err = openBolt(path, true)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreNotFound, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: no index file in %s", domain.ErrStoreNotFound, location)
}

func (f *Factory) attach(b backend, location string, embedder port.Embedder) (*Handle, error) {
	info, err := b.readInfo()
	if err != nil {
		if errors.Is(err, domain.ErrStoreNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreNotFound, err)
	}
	if err := checkCompatibility(info, embedder); err != nil {
		return nil, err
	}

	table := f.table()
	records, err := b.records(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreNotFound, err)
	}

	return &Handle{
		backend:  b,
		location: location,
		table:    table,
		info:     info,
		embedder: embedder,
		records:  records,
	}, nil
}

// Handle is an open store. Records are held in memory for search.
type Handle struct {
	backend  backend
	location string
	table    string
	info     domain.StoreInfo
	embedder port.Embedder
	records  []*record
}

// Search finds the k chunks most similar to the query by cosine similarity.
func (h *Handle) Search(query string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 || len(h.records) == 0 {
		return nil, nil
	}

	vectors, err := h.embedder.Embed([]string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	q := vectors[0]
	if h.info.Dimension > 0 && len(q) != h.info.Dimension {
		return nil, fmt.Errorf("%w: query has %d, store has %d", domain.ErrDimensionMismatch, len(q), h.info.Dimension)
	}

	type scored struct {
		r     *record
		score float64
	}
	scores := make([]scored, 0, len(h.records))
	for _, r := range h.records {
		sim, err := vector.CosineSimilarity(q, r.Vector)
		if err != nil {
			// zero vectors never match
			continue
		}
		scores = append(scores, scored{r: r, score: sim})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})
	if k > len(scores) {
		k = len(scores)
	}

	results := make([]domain.ScoredDocument, k)
	for i := 0; i < k; i++ {
		r := scores[i].r
		results[i] = domain.ScoredDocument{
			Document: domain.NewDocument(r.Document.Content, r.Document.Metadata),
			ID:       r.ID,
			Score:    scores[i].score,
		}
	}
	return results, nil
}

// Count returns the number of chunks in the collection table.
func (h *Handle) Count() (int, error) {
	n, err := h.backend.rowCount(h.table)
	return int(n), err
}

// RowCount returns COUNT(*) for the named table.
func (h *Handle) RowCount(table string) (int64, error) {
	if err := ValidateTable(table); err != nil {
		return 0, err
	}
	return h.backend.rowCount(table)
}

// Documents returns the stored chunks in insertion order.
func (h *Handle) Documents() []domain.Document {
	docs := make([]domain.Document, len(h.records))
	for i, r := range h.records {
		docs[i] = domain.NewDocument(r.Document.Content, r.Document.Metadata)
	}
	return docs
}

func (h *Handle) Info() domain.StoreInfo {
	return h.info
}

func (h *Handle) Location() string {
	return h.location
}

func (h *Handle) Close() error {
	return h.backend.close()
}
