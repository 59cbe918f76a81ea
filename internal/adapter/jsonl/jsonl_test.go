package jsonl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/domain"
)

func sampleDocs() []domain.Document {
	return []domain.Document{
		domain.NewDocument("First page\nwith two lines", map[string]any{"title": "One", "id": "1", "start_index": 0}),
		domain.NewDocument("Quotes \" and <html> & unicode ✓", map[string]any{"score": 0.25, "draft": true}),
		domain.NewDocument("", nil),
		domain.NewDocument("First page\nwith two lines", map[string]any{"title": "One", "id": "1", "start_index": 0}),
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	docs := sampleDocs()

	require.NoError(t, Save(docs, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(docs))

	for i := range docs {
		assert.True(t, docs[i].Equal(loaded[i]), "document %d differs: %+v vs %+v", i, docs[i], loaded[i])
	}
	assert.Equal(t, int64(0), loaded[0].Metadata["start_index"])
}

func TestWrite_OneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleDocs()[:2]))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"page_content":"First page\nwith two lines"`)
	assert.Contains(t, lines[0], `"type":"Document"`)
	assert.Contains(t, lines[1], `<html>`)
}

func TestRead_SkipsBlankLinesAndMissingNewline(t *testing.T) {
	in := "{\"page_content\":\"a\",\"metadata\":{}}\n\n   \n{\"page_content\":\"b\",\"metadata\":{\"n\":1.5}}"
	docs, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[1].Content)
	assert.Equal(t, 1.5, docs[1].Metadata["n"])
}

func TestRead_InvalidLine(t *testing.T) {
	_, err := Read(strings.NewReader("{\"page_content\":\"a\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestEmptySequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, Save(nil, path))
	docs, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"page_content":"x","metadata":{"title":"T"}}`+"\n"), 0644))

	docs, err := Loader{}.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "T", docs[0].Metadata["title"])

	_, err = Loader{}.Load(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
