package usecase

import (
	"context"
	"os"

	"github.com/viant/afs"
)

// Locations performs the filesystem operations the pipeline needs on store
// locations.
type Locations interface {
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
	Rename(from, to string) error
}

type afsLocations struct {
	fs afs.Service
}

// NewLocations returns Locations backed by afs. Renames use os.Rename so a
// swap within one filesystem is atomic.
func NewLocations() Locations {
	return &afsLocations{fs: afs.New()}
}

func (l *afsLocations) Exists(ctx context.Context, path string) (bool, error) {
	return l.fs.Exists(ctx, path)
}

func (l *afsLocations) Remove(ctx context.Context, path string) error {
	return l.fs.Delete(ctx, path)
}

func (l *afsLocations) Rename(from, to string) error {
	return os.Rename(from, to)
}
