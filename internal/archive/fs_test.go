package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFSStore(t *testing.T) *FSStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFSStore(FSConfig{BasePath: dir})
	require.NoError(t, err)
	return s
}

func TestFSStorePutWritesFile(t *testing.T) {
	s := newTestFSStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "web01", []byte("<domain/>")))

	data, err := os.ReadFile(filepath.Join(s.basePath, "web01.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<domain/>", string(data))
}

func TestFSStorePutOverwrites(t *testing.T) {
	s := newTestFSStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "web01", []byte("<domain>v1</domain>")))
	require.NoError(t, s.Put(ctx, "web01", []byte("<domain>v2</domain>")))

	data, err := os.ReadFile(filepath.Join(s.basePath, "web01.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<domain>v2</domain>", string(data))
}

func TestFSStoreLeavesNoTempFile(t *testing.T) {
	s := newTestFSStore(t)
	require.NoError(t, s.Put(context.Background(), "web01", []byte("<domain/>")))

	_, err := os.Stat(filepath.Join(s.basePath, "web01.xml.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewFSStoreRequiresBasePath(t *testing.T) {
	_, err := NewFSStore(FSConfig{})
	assert.Error(t, err)
}

func TestNoopStoreNeverFails(t *testing.T) {
	s := Noop()
	assert.NoError(t, s.Put(context.Background(), "anything", []byte("xml")))
	assert.NoError(t, s.Close())
}
