package port

import (
	"context"

	"helpdesk/internal/domain"
)

// SourceLoader yields the raw documents of one collection of a content source.
type SourceLoader interface {
	Load(ctx context.Context, collection string) ([]domain.Document, error)
}
