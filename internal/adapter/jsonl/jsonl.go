// Package jsonl reads and writes documents as JSON lines, one
// {"page_content", "metadata", "type"} object per line.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"helpdesk/internal/domain"
	"helpdesk/internal/port"
)

const recordType = "Document"

type line struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
	Type        string         `json:"type"`
}

// Write encodes docs to w, one object per line, in order.
func Write(w io.Writer, docs []domain.Document) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, d := range docs {
		md := d.Metadata
		if md == nil {
			md = map[string]any{}
		}
		if err := enc.Encode(line{PageContent: d.Content, Metadata: md, Type: recordType}); err != nil {
			return fmt.Errorf("encode document %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// Read decodes documents from r. Blank lines are skipped. Integral numbers
// in metadata decode as int64, others as float64.
func Read(r io.Reader) ([]domain.Document, error) {
	br := bufio.NewReader(r)
	var docs []domain.Document
	for n := 1; ; n++ {
		raw, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(raw)) > 0 {
			doc, decErr := decodeLine(raw)
			if decErr != nil {
				return nil, fmt.Errorf("line %d: %w", n, decErr)
			}
			docs = append(docs, doc)
		}
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func decodeLine(raw []byte) (domain.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var l line
	if err := dec.Decode(&l); err != nil {
		return domain.Document{}, err
	}
	md := make(map[string]any, len(l.Metadata))
	for k, v := range l.Metadata {
		md[k] = normalize(v)
	}
	return domain.Document{Content: l.PageContent, Metadata: md}, nil
}

// normalize converts JSON numbers; other values, nested ones included, are kept.
func normalize(v any) any {
	if _, ok := v.(json.Number); !ok {
		return v
	}
	nv, err := domain.NormalizeValue(v)
	if err != nil {
		return v
	}
	return nv
}

// Save writes docs to path, replacing the file.
func Save(docs []domain.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, docs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads all documents from path.
func Load(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

var _ port.SourceLoader = Loader{}

// Loader is a source whose collection identifier is a JSONL file path.
type Loader struct{}

func (Loader) Load(ctx context.Context, path string) ([]domain.Document, error) {
	docs, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	return docs, nil
}
