package confluence

import (
	"context"
	"fmt"

	"helpdesk/internal/adapter/htmltext"
	"helpdesk/internal/domain"
	"helpdesk/internal/port"
)

var _ port.SourceLoader = (*Loader)(nil)

// Loader turns the pages of a space into documents. The collection
// identifier is the space key.
type Loader struct {
	client *Client
}

func NewLoader(client *Client) *Loader {
	return &Loader{client: client}
}

func (l *Loader) Load(ctx context.Context, spaceKey string) ([]domain.Document, error) {
	if spaceKey == "" {
		return nil, fmt.Errorf("%w: confluence space key is required", domain.ErrInvalidConfig)
	}

	pages, err := l.client.ListPages(ctx, spaceKey)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(pages))
	for _, p := range pages {
		metadata := map[string]any{
			"title":  p.Title,
			"id":     p.ID,
			"source": p.WebURL,
		}
		if p.When != "" {
			metadata["when"] = p.When
		}
		docs = append(docs, domain.NewDocument(htmltext.ToText(p.Body), metadata))
	}
	return docs, nil
}
