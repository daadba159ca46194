package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/meysamhadeli/kbchat/config"
	"github.com/meysamhadeli/kbchat/context_manager"
	cm_models "github.com/meysamhadeli/kbchat/context_manager/models"
	"github.com/meysamhadeli/kbchat/file_scanner"
	scanner_models "github.com/meysamhadeli/kbchat/file_scanner/models"
	"github.com/meysamhadeli/kbchat/ingestion/models"
	kb_models "github.com/meysamhadeli/kbchat/providers/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKnowledgeBase struct {
	mu       sync.Mutex
	requests []kb_models.CreateDocumentByTextRequest
	failName string
}

func (f *fakeKnowledgeBase) ListDatasets(ctx context.Context, keyword string, page int, limit int) (*kb_models.DatasetList, error) {
	return &kb_models.DatasetList{}, nil
}

func (f *fakeKnowledgeBase) CreateDocumentByText(ctx context.Context, datasetID string, request kb_models.CreateDocumentByTextRequest) (*kb_models.DocumentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if request.Name == f.failName {
		return nil, errors.New("dify API error (status 400): invalid document")
	}
	f.requests = append(f.requests, request)
	n := len(f.requests)
	return &kb_models.DocumentResponse{
		Document: kb_models.Document{ID: fmt.Sprintf("doc-%d", n), Name: request.Name},
		Batch:    fmt.Sprintf("batch-%d", n),
	}, nil
}

func (f *fakeKnowledgeBase) ListDocuments(ctx context.Context, datasetID string, keyword string, page int, limit int) (*kb_models.DocumentList, error) {
	return &kb_models.DocumentList{}, nil
}

func (f *fakeKnowledgeBase) DeleteDocument(ctx context.Context, datasetID string, documentID string) error {
	return nil
}

func (f *fakeKnowledgeBase) GetIndexingStatus(ctx context.Context, datasetID string, batch string) (*kb_models.IndexingStatusList, error) {
	return &kb_models.IndexingStatusList{}, nil
}

func (f *fakeKnowledgeBase) Retrieve(ctx context.Context, datasetID string, request kb_models.RetrievalRequest) (*kb_models.RetrievalResponse, error) {
	return &kb_models.RetrievalResponse{}, nil
}

func (f *fakeKnowledgeBase) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, r := range f.requests {
		names = append(names, r.Name)
	}
	return names
}

func writeFile(t *testing.T, root string, rel string, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newUploader(t *testing.T, root string, kb *fakeKnowledgeBase, ledger *Ledger) *Uploader {
	t.Helper()
	scanner, err := file_scanner.NewFileScanner(config.ScanConfig{MaxFileSize: 1 << 20}, root, zap.NewNop())
	require.NoError(t, err)
	planner, err := context_manager.NewContextManager(*config.DefaultConfig.Context)
	require.NoError(t, err)
	return NewUploader(scanner, planner, kb, ledger, zap.NewNop())
}

func TestUpload_RequiresKnowledgeBase(t *testing.T) {
	uploader := newUploader(t, t.TempDir(), &fakeKnowledgeBase{}, nil)

	_, err := uploader.Upload(context.Background(), []string{"."}, "", Options{})
	assert.ErrorIs(t, err, ErrKnowledgeBaseNotSelected)
}

func TestUpload_DirectoryAndFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/guide.md", "# Guide")
	writeFile(t, root, "docs/empty.md", "")
	single := writeFile(t, root, "notes.txt", "remember this")

	kb := &fakeKnowledgeBase{}
	uploader := newUploader(t, root, kb, nil)

	var progress []string
	results, err := uploader.Upload(context.Background(), []string{filepath.Join(root, "docs"), single}, "kb-1", Options{
		OnProgress: func(done int, total int, result models.UploadResult) {
			progress = append(progress, fmt.Sprintf("%d/%d %s", done, total, result.Name))
		},
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, []string{"docs/guide.md", "notes.txt"}, kb.names())
	assert.Equal(t, []string{"1/2 docs/guide.md", "2/2 notes.txt"}, progress)

	for _, result := range results {
		assert.Equal(t, models.StatusUploaded, result.Status)
		assert.NotEmpty(t, result.DocumentID)
		assert.NotEmpty(t, result.Batch)
	}

	request := kb.requests[0]
	assert.Equal(t, "# Guide", request.Text)
	assert.Equal(t, "high_quality", request.IndexingTechnique)
	require.NotNil(t, request.ProcessRule)
	assert.Equal(t, "automatic", request.ProcessRule.Mode)
}

func TestUpload_SplitsLargeFiles(t *testing.T) {
	root := t.TempDir()
	line := strings.Repeat("y", 79) + "\n"
	writeFile(t, root, "big.txt", strings.Repeat(line, 250))

	kb := &fakeKnowledgeBase{}
	results, err := newUploader(t, root, kb, nil).Upload(context.Background(), []string{root}, "kb-1", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"big.txt#1-of-2", "big.txt#2-of-2"}, kb.names())
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[1].ChunkIndex)
	for _, request := range kb.requests {
		assert.LessOrEqual(t, context_manager.EstimateTokens(request.Text), config.DefaultConfig.Context.ChunkTokens)
	}
}

func TestUpload_FailuresAreReported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ok.md", "fine")
	writeFile(t, root, "bad.md", "rejected")

	kb := &fakeKnowledgeBase{failName: "bad.md"}
	results, err := newUploader(t, root, kb, nil).Upload(context.Background(), []string{filepath.Join(root, "missing"), root}, "kb-1", Options{})
	require.NoError(t, err)

	summary := models.Summarize(results)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 2, summary.Failed)

	assert.Equal(t, models.StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, file_scanner.ErrInvalidPath)
	assert.Equal(t, []string{"ok.md"}, kb.names())
}

func TestUpload_LedgerSkipsKnownDocuments(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.md", "alpha")

	ledger, err := NewLedger(t.TempDir())
	require.NoError(t, err)
	kb := &fakeKnowledgeBase{}
	uploader := newUploader(t, root, kb, ledger)

	results, err := uploader.Upload(context.Background(), []string{path}, "kb-1", Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, results[0].Status)

	results, err = uploader.Upload(context.Background(), []string{path}, "kb-1", Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, results[0].Status)
	assert.Equal(t, "doc-1", results[0].DocumentID)

	results, err = uploader.Upload(context.Background(), []string{path}, "kb-1", Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, results[0].Status)

	require.NoError(t, os.WriteFile(path, []byte("alpha, edited"), 0644))
	results, err = uploader.Upload(context.Background(), []string{path}, "kb-1", Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, results[0].Status)

	assert.Len(t, kb.names(), 3)
}

func TestUpload_Cancelled(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.md", "alpha")
	kb := &fakeKnowledgeBase{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newUploader(t, root, kb, nil).Upload(ctx, []string{path}, "kb-1", Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, kb.names())
}

func TestDocumentName(t *testing.T) {
	unit := cm_models.ContextChunk{
		FileRecord:  scanner_models.FileRecord{Name: "main.go", RelativePath: "cmd/main.go"},
		ChunkIndex:  1,
		TotalChunks: 1,
	}
	assert.Equal(t, "cmd/main.go", DocumentName(unit))

	unit.ChunkIndex, unit.TotalChunks = 2, 3
	assert.Equal(t, "cmd/main.go#2-of-3", DocumentName(unit))

	unit.RelativePath = "../elsewhere/main.go"
	assert.Equal(t, "main.go#2-of-3", DocumentName(unit))
}

func TestExtractFilePaths(t *testing.T) {
	root := t.TempDir()
	existing := writeFile(t, root, "a.txt", "a")
	other := writeFile(t, root, "b.txt", "b")

	input := strings.Join([]string{
		existing,
		`"./not-yet-there.md"`,
		"please also upload " + other + " and " + existing,
		"plain words only",
	}, "\n")

	assert.Equal(t, []string{existing, "./not-yet-there.md", other}, ExtractFilePaths(input))
	assert.Empty(t, ExtractFilePaths("   "))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "docs"), ExpandHome("~/docs"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "./docs", ExpandHome("./docs"))
	assert.Equal(t, "~other/docs", ExpandHome("~other/docs"))
}
