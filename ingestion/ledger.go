package ingestion

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/meysamhadeli/kbchat/ingestion/models"
	"github.com/zeebo/xxh3"
)

const ledgerExt = ".ledger"

// Ledger remembers which documents were uploaded to which knowledge base, one gob file per
// document, keyed by a hash of knowledge base, document name and content. Changing any of the
// three produces a new key, so edited files are uploaded again.
type Ledger struct {
	dir   string
	mutex sync.RWMutex
}

// NewLedger opens the ledger in dir, creating it when needed. An empty dir uses the user cache directory.
func NewLedger(dir string) (*Ledger, error) {
	if dir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate user cache directory: %w", err)
		}
		dir = filepath.Join(cacheDir, "kbchat", "ledger")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	return &Ledger{dir: dir}, nil
}

func (l *Ledger) Dir() string {
	return l.dir
}

// LedgerKey hashes the identity of an uploaded document.
func LedgerKey(knowledgeBaseID string, name string, content string) string {
	h := xxh3.New()
	_, _ = h.WriteString(knowledgeBaseID)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(name)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(content)
	return fmt.Sprintf("%016x", h.Sum64())
}

func (l *Ledger) entryPath(key string) string {
	return filepath.Join(l.dir, key+ledgerExt)
}

// Lookup returns the entry for a document that was already uploaded.
func (l *Ledger) Lookup(knowledgeBaseID string, name string, content string) (*models.LedgerEntry, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	data, err := os.ReadFile(l.entryPath(LedgerKey(knowledgeBaseID, name, content)))
	if err != nil {
		return nil, false
	}

	var entry models.LedgerEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, false
	}

	return &entry, true
}

// Record stores entry under the key derived from its knowledge base, name and content.
func (l *Ledger) Record(content string, entry models.LedgerEntry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("failed to encode ledger entry: %w", err)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	path := l.entryPath(LedgerKey(entry.KnowledgeBaseID, entry.Name, content))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write ledger entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write ledger entry: %w", err)
	}

	return nil
}

// Clear removes every entry and returns how many were removed.
func (l *Ledger) Clear() (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	files, err := l.entryFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, file := range files {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

// Stats reports the number of entries and their size on disk.
func (l *Ledger) Stats() (models.LedgerStats, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	stats := models.LedgerStats{Dir: l.dir}

	files, err := l.entryFiles()
	if err != nil {
		return stats, err
	}

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalSizeBytes += info.Size()
		if stats.Oldest.IsZero() || info.ModTime().Before(stats.Oldest) {
			stats.Oldest = info.ModTime()
		}
		if info.ModTime().After(stats.Newest) {
			stats.Newest = info.ModTime()
		}
	}

	return stats, nil
}

func (l *Ledger) entryFiles() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ledgerExt) {
			continue
		}
		files = append(files, filepath.Join(l.dir, entry.Name()))
	}
	return files, nil
}
