package port

import "helpdesk/internal/domain"

// StoreHandle is an open, queryable vector store bound to a location.
type StoreHandle interface {
	// Search embeds the query and returns the k most similar chunks.
	Search(query string, k int) ([]domain.ScoredDocument, error)

	// Count returns the number of chunks in the collection table.
	Count() (int, error)

	// RowCount returns COUNT(*) of the named table.
	RowCount(table string) (int64, error)

	// Info returns what was recorded about the store when it was built.
	Info() domain.StoreInfo

	Location() string

	Close() error
}

// StoreFactory creates and reopens persisted stores.
type StoreFactory interface {
	// Build embeds and inserts the chunks into a fresh store at location.
	Build(chunks []domain.Document, embedder Embedder, location string) (StoreHandle, error)

	// Reopen attaches to an existing store without ingesting anything.
	Reopen(location string, embedder Embedder) (StoreHandle, error)
}
