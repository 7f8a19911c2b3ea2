package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_SaveOpenDeleteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	path, err := store.Save(ctx, "paper.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	assert.Contains(t, path, "paper.pdf")

	rc, err := store.Open(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "pdf bytes", string(data))

	require.NoError(t, store.Delete(ctx, path))
	_, err = store.Open(ctx, path)
	assert.Error(t, err)
}

func TestLocalStore_DuplicateFilenamesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	p1, err := store.Save(ctx, "paper.pdf", strings.NewReader("first"))
	require.NoError(t, err)
	p2, err := store.Save(ctx, "paper.pdf", strings.NewReader("second"))
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)

	r1, _ := store.Open(ctx, p1)
	d1, _ := io.ReadAll(r1)
	r1.Close()
	r2, _ := store.Open(ctx, p2)
	d2, _ := io.ReadAll(r2)
	r2.Close()

	assert.Equal(t, "first", string(d1))
	assert.Equal(t, "second", string(d2))
}

func TestSanitizeFilename_StripsPathTraversal(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "paper.pdf", sanitizeFilename("paper.pdf"))
}
