// Package dirsource loads exported help pages from a directory tree. Each
// collection is a sub-directory of the configured root.
package dirsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"helpdesk/config"
	"helpdesk/internal/adapter/fs"
	"helpdesk/internal/adapter/htmltext"
	"helpdesk/internal/domain"
	"helpdesk/internal/port"
)

var _ port.SourceLoader = (*Loader)(nil)

type Loader struct {
	root   string
	walker *fs.Walker
}

func NewLoader(cfg config.DirectoryConfig) *Loader {
	return &Loader{
		root:   cfg.Root,
		walker: fs.NewWalker(cfg.Includes, cfg.Excludes),
	}
}

func (l *Loader) Load(ctx context.Context, collection string) ([]domain.Document, error) {
	dir := filepath.Join(l.root, filepath.FromSlash(collection))
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrSourceUnavailable, dir)
	}

	files, err := l.walker.Walk(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
		}
		docs = append(docs, toDocument(f, string(data)))
	}
	return docs, nil
}

func toDocument(f fs.FileInfo, raw string) domain.Document {
	title := ""
	content := raw
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".html", ".htm", ".xhtml":
		title = htmltext.Title(raw)
		content = htmltext.ToText(raw)
	}
	if title == "" {
		title = titleFromName(f.Path)
	}
	return domain.NewDocument(content, map[string]any{
		"source": f.Path,
		"title":  title,
	})
}

func titleFromName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
