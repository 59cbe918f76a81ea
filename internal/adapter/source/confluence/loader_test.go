package confluence

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/domain"
)

func TestLoader_Load(t *testing.T) {
	srv := httptest.NewServer(fakeSpace(t, 3))
	defer srv.Close()

	loader := NewLoader(newTestClient(t, srv, nil))
	docs, err := loader.Load(context.Background(), "HELP")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	doc := docs[1]
	assert.Equal(t, "Answer 1\n\nDetails.", doc.Content)
	assert.Equal(t, "Page 1", doc.Metadata["title"])
	assert.Equal(t, "1001", doc.Metadata["id"])
	assert.Equal(t, "https://wiki.example.com/spaces/HELP/pages/1001", doc.Metadata["source"])
	assert.Equal(t, "2024-05-01T10:00:00.000Z", doc.Metadata["when"])
}

func TestLoader_RequiresSpaceKey(t *testing.T) {
	srv := httptest.NewServer(fakeSpace(t, 1))
	defer srv.Close()

	_, err := NewLoader(newTestClient(t, srv, nil)).Load(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
