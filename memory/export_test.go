package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExportImport_RoundTrip(t *testing.T) {
	src := newTestStore(t, t.TempDir())
	_, err := src.Store(entry("fetch", "goal one", "research", true))
	assert.NoError(t, err)
	_, err = src.Store(entry("parse", "goal two", "research", false))
	assert.NoError(t, err)

	path, err := src.Export(filepath.Join(t.TempDir(), "export.json"), FormatJSON)
	assert.NoError(t, err)

	dst := newTestStore(t, t.TempDir())
	n, err := dst.Import(path, false)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, dst.Len())
	assert.Len(t, dst.RecallByTask("fetch", 10), 1)
}

func TestExportImport_JSONL(t *testing.T) {
	src := newTestStore(t, t.TempDir())
	_, err := src.Store(entry("fetch", "goal one", "research", true))
	assert.NoError(t, err)

	path, err := src.Export(filepath.Join(t.TempDir(), "export.jsonl"), FormatJSONL)
	assert.NoError(t, err)

	dst := newTestStore(t, t.TempDir())
	n, err := dst.Import(path, false)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImport_MergeDedups(t *testing.T) {
	src := newTestStore(t, t.TempDir())
	_, err := src.Store(entry("fetch", "goal one", "research", true))
	assert.NoError(t, err)

	path, err := src.Export(filepath.Join(t.TempDir(), "export.json"), FormatJSON)
	assert.NoError(t, err)

	// Importing into the same store with merge skips the duplicate timestamp.
	n, err := src.Import(path, true)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, src.Len())
}

func TestBackupRestore(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	_, err := s.Store(entry("fetch", "goal one", "research", true))
	assert.NoError(t, err)

	backup, err := s.Backup()
	assert.NoError(t, err)

	assert.NoError(t, s.ClearLongTerm())
	assert.Equal(t, 0, s.Len())

	n, err := s.Restore(backup)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Len())
}
