package ingestion

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meysamhadeli/kbchat/ingestion/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_RecordAndLookup(t *testing.T) {
	ledger, err := NewLedger(t.TempDir())
	require.NoError(t, err)

	_, found := ledger.Lookup("kb-1", "main.go", "package main")
	assert.False(t, found)

	entry := models.LedgerEntry{
		KnowledgeBaseID: "kb-1",
		Name:            "main.go",
		DocumentID:      "doc-1",
		Batch:           "batch-1",
		Tokens:          3,
		UploadedAt:      time.Now().Truncate(time.Second),
	}
	require.NoError(t, ledger.Record("package main", entry))

	got, found := ledger.Lookup("kb-1", "main.go", "package main")
	require.True(t, found)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "batch-1", got.Batch)
	assert.True(t, entry.UploadedAt.Equal(got.UploadedAt))

	_, found = ledger.Lookup("kb-1", "main.go", "package main // edited")
	assert.False(t, found, "changed content is a new document")
	_, found = ledger.Lookup("kb-2", "main.go", "package main")
	assert.False(t, found, "another knowledge base is a new document")
}

func TestLedger_Key(t *testing.T) {
	key := LedgerKey("kb", "a", "b")
	assert.Len(t, key, 16)
	assert.Equal(t, key, LedgerKey("kb", "a", "b"))
	// The separator keeps shifted boundaries apart.
	assert.NotEqual(t, LedgerKey("kb", "ab", ""), LedgerKey("kb", "a", "b"))
}

func TestLedger_ClearAndStats(t *testing.T) {
	dir := t.TempDir()
	ledger, err := NewLedger(dir)
	require.NoError(t, err)

	for _, name := range []string{"a.md", "b.md", "c.md"} {
		require.NoError(t, ledger.Record(name, models.LedgerEntry{KnowledgeBaseID: "kb", Name: name}))
	}
	// Unrelated files in the directory are left alone.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	stats, err := ledger.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Entries)
	assert.Positive(t, stats.TotalSizeBytes)
	assert.Equal(t, dir, stats.Dir)
	assert.False(t, stats.Newest.Before(stats.Oldest))

	removed, err := ledger.Clear()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	stats, err = ledger.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestNewLedger_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "ledger")

	ledger, err := NewLedger(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, ledger.Dir())
	assert.DirExists(t, dir)
}

func BenchmarkLedgerKey(b *testing.B) {
	content := string(make([]byte, 64*1024))
	b.SetBytes(int64(len(content)))
	for i := 0; i < b.N; i++ {
		LedgerKey("kb-1", "src/main.go", content)
	}
}
