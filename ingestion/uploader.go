package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	cm_contracts "github.com/meysamhadeli/kbchat/context_manager/contracts"
	cm_models "github.com/meysamhadeli/kbchat/context_manager/models"
	scanner_contracts "github.com/meysamhadeli/kbchat/file_scanner/contracts"
	scanner_models "github.com/meysamhadeli/kbchat/file_scanner/models"
	"github.com/meysamhadeli/kbchat/ingestion/models"
	kb_contracts "github.com/meysamhadeli/kbchat/providers/contracts"
	kb_models "github.com/meysamhadeli/kbchat/providers/models"
	"go.uber.org/zap"
)

const (
	IndexingTechnique = "high_quality"
	ProcessMode       = "automatic"
)

var ErrKnowledgeBaseNotSelected = errors.New("no knowledge base selected")

// ProgressFunc is called after every unit with the number of finished units and the total.
type ProgressFunc func(done int, total int, result models.UploadResult)

type Options struct {
	// Force uploads units the ledger already knows about.
	Force      bool
	OnProgress ProgressFunc
}

// Uploader scans paths, plans them into budget-sized units and sends each unit to a knowledge base.
type Uploader struct {
	scanner       scanner_contracts.IFileScanner
	planner       cm_contracts.IContextManager
	knowledgeBase kb_contracts.IKnowledgeBase
	ledger        *Ledger
	logger        *zap.Logger
}

// NewUploader wires the collaborators. ledger may be nil to disable duplicate detection.
func NewUploader(scanner scanner_contracts.IFileScanner, planner cm_contracts.IContextManager, knowledgeBase kb_contracts.IKnowledgeBase, ledger *Ledger, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		scanner:       scanner,
		planner:       planner,
		knowledgeBase: knowledgeBase,
		ledger:        ledger,
		logger:        logger,
	}
}

// Upload sends every accepted file under paths to the knowledge base. A path that cannot be
// scanned and a unit that fails to upload are reported as failed results; only a missing
// knowledge base, a planning error or cancellation stop the run.
func (u *Uploader) Upload(ctx context.Context, paths []string, knowledgeBaseID string, opts Options) ([]models.UploadResult, error) {
	if knowledgeBaseID == "" {
		return nil, ErrKnowledgeBaseNotSelected
	}

	var results []models.UploadResult
	var records []scanner_models.FileRecord

	for _, path := range paths {
		scan, err := u.scanner.ScanPath(ctx, ExpandHome(path))
		if err != nil {
			u.logger.Warn("upload path skipped", zap.String("path", path), zap.Error(err))
			results = append(results, models.UploadResult{Path: path, Name: filepath.Base(path), Status: models.StatusFailed, Err: err})
			continue
		}
		records = append(records, scan.Records()...)
	}

	plan, err := u.planner.PlanIngestion(records)
	if err != nil {
		return results, fmt.Errorf("failed to plan upload: %w", err)
	}

	total := len(plan.Units)
	for i, unit := range plan.Units {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := u.uploadUnit(ctx, knowledgeBaseID, unit, opts.Force)
		results = append(results, result)

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total, result)
		}
	}

	return results, nil
}

func (u *Uploader) uploadUnit(ctx context.Context, knowledgeBaseID string, unit cm_models.ContextChunk, force bool) models.UploadResult {
	name := DocumentName(unit)
	result := models.UploadResult{
		Path:        unit.Path,
		Name:        name,
		ChunkIndex:  unit.ChunkIndex,
		TotalChunks: unit.TotalChunks,
		Tokens:      unit.EstimatedTokens,
	}

	if u.ledger != nil && !force {
		if entry, found := u.ledger.Lookup(knowledgeBaseID, name, unit.Content); found {
			result.Status = models.StatusSkipped
			result.DocumentID = entry.DocumentID
			result.Batch = entry.Batch
			return result
		}
	}

	response, err := u.knowledgeBase.CreateDocumentByText(ctx, knowledgeBaseID, kb_models.CreateDocumentByTextRequest{
		Name:              name,
		Text:              unit.Content,
		IndexingTechnique: IndexingTechnique,
		ProcessRule:       &kb_models.ProcessRule{Mode: ProcessMode},
	})
	if err != nil {
		u.logger.Warn("upload failed", zap.String("name", name), zap.Error(err))
		result.Status = models.StatusFailed
		result.Err = err
		return result
	}

	result.Status = models.StatusUploaded
	result.DocumentID = response.Document.ID
	result.Batch = response.Batch

	if u.ledger != nil {
		entry := models.LedgerEntry{
			KnowledgeBaseID: knowledgeBaseID,
			Name:            name,
			DocumentID:      result.DocumentID,
			Batch:           result.Batch,
			Tokens:          result.Tokens,
			UploadedAt:      time.Now(),
		}
		if err := u.ledger.Record(unit.Content, entry); err != nil {
			u.logger.Warn("ledger update failed", zap.String("name", name), zap.Error(err))
		}
	}

	u.logger.Debug("document uploaded", zap.String("name", name), zap.String("document_id", result.DocumentID))
	return result
}

// DocumentName names the document created for a unit: the file's root-relative path, with a
// `#i-of-n` suffix for chunks of a split file.
func DocumentName(unit cm_models.ContextChunk) string {
	name := unit.RelativePath
	if name == "" || strings.HasPrefix(name, "../") {
		name = unit.Name
	}
	if unit.TotalChunks > 1 {
		return fmt.Sprintf("%s#%d-of-%d", name, unit.ChunkIndex, unit.TotalChunks)
	}
	return name
}

var pathLikePattern = regexp.MustCompile(`^(\.\./|\./|/|[A-Za-z]:\\|~/)\S+$`)

// ExtractFilePaths picks the file paths out of free text. Whole lines that look like paths or
// name existing files come first, followed by any other whitespace-separated word naming an
// existing file. Surrounding quotes are dropped and duplicates are removed.
func ExtractFilePaths(input string) []string {
	var paths []string
	seen := make(map[string]struct{})

	add := func(candidate string) {
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		paths = append(paths, candidate)
	}

	for _, line := range strings.Split(strings.TrimSpace(input), "\n") {
		candidate := trimQuotes(strings.TrimSpace(line))
		if candidate == "" {
			continue
		}
		if pathLikePattern.MatchString(candidate) || exists(candidate) {
			add(candidate)
		}
	}

	for _, word := range strings.Fields(input) {
		candidate := trimQuotes(word)
		if candidate != "" && exists(candidate) {
			add(candidate)
		}
	}

	return paths
}

func trimQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimPrefix(s, `'`)
	s = strings.TrimSuffix(s, `"`)
	return strings.TrimSuffix(s, `'`)
}

func exists(path string) bool {
	_, err := os.Stat(ExpandHome(path))
	return err == nil
}

// ExpandHome replaces a leading `~` with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
