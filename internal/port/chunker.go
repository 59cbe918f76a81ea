package port

import "helpdesk/internal/domain"

// Splitter turns documents into retrieval-sized chunks.
type Splitter interface {
	Split(docs []domain.Document) ([]domain.Document, error)
}
