package dirsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/config"
	"helpdesk/internal/domain"
)

func TestLoader_Load(t *testing.T) {
	root := t.TempDir()
	space := filepath.Join(root, "HELP")
	require.NoError(t, os.MkdirAll(filepath.Join(space, "faq"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(space, "vpn.html"),
		[]byte(`<html><head><title>VPN access</title></head><body><p>Install the client.</p></body></html>`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(space, "faq", "reset-password.md"),
		[]byte("# Reset\n\nUse the portal."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(space, "logo.png"), []byte{0x89, 'P'}, 0644))

	cfg := config.DefaultConfig().Source.Directory
	cfg.Root = root
	docs, err := NewLoader(cfg).Load(context.Background(), "HELP")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "# Reset\n\nUse the portal.", docs[0].Content)
	assert.Equal(t, "reset password", docs[0].Metadata["title"])

	assert.Equal(t, "Install the client.", docs[1].Content)
	assert.Equal(t, "VPN access", docs[1].Metadata["title"])
	assert.Equal(t, filepath.Join(space, "vpn.html"), docs[1].Metadata["source"])
}

func TestLoader_MissingCollection(t *testing.T) {
	cfg := config.DefaultConfig().Source.Directory
	cfg.Root = t.TempDir()

	_, err := NewLoader(cfg).Load(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
