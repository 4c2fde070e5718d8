package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUploadStoresBlobAndReturnsLocator(t *testing.T) {
	baseDir := t.TempDir()
	store, err := NewLocalBlobStore(baseDir, "http://localhost:8080/files/", zap.NewNop())
	require.NoError(t, err)

	locator, err := store.Upload([]byte("pdf bytes"), "documents/proforma", "invoice.PDF", "application/pdf")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(locator, "http://localhost:8080/files/documents/proforma/"))
	assert.True(t, strings.HasSuffix(locator, ".pdf"), "extension is kept lowercased: %s", locator)

	relPath := strings.TrimPrefix(locator, "http://localhost:8080/files/")
	data, err := os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(relPath)))
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), data)
}

func TestUploadDistinctNamesForSameFilename(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir(), "http://localhost/files", zap.NewNop())
	require.NoError(t, err)

	first, err := store.Upload([]byte("a"), "documents/receipt", "receipt.png", "image/png")
	require.NoError(t, err)
	second, err := store.Upload([]byte("b"), "documents/receipt", "receipt.png", "image/png")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestUploadDefaultsMissingExtension(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir(), "http://localhost/files", zap.NewNop())
	require.NoError(t, err)

	locator, err := store.Upload([]byte("x"), "documents/po", "artifact", "application/octet-stream")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(locator, ".bin"))
}
