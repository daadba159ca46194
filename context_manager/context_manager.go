package context_manager

import (
	"fmt"
	"strings"

	"github.com/meysamhadeli/kbchat/config"
	"github.com/meysamhadeli/kbchat/context_manager/models"
	scanner_models "github.com/meysamhadeli/kbchat/file_scanner/models"
	"github.com/meysamhadeli/kbchat/token_management"
)

// ContextManager plans how a set of files fits into the token budget.
type ContextManager struct {
	limits config.ContextConfig
}

// NewContextManager validates the limits. Every limit must be positive, and neither the warning
// threshold nor the chunk size may exceed the ceiling.
func NewContextManager(limits config.ContextConfig) (*ContextManager, error) {
	switch {
	case limits.MaxTokens <= 0:
		return nil, fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidLimits, limits.MaxTokens)
	case limits.WarningThreshold <= 0:
		return nil, fmt.Errorf("%w: warning threshold must be positive, got %d", ErrInvalidLimits, limits.WarningThreshold)
	case limits.ChunkTokens <= 0:
		return nil, fmt.Errorf("%w: chunk tokens must be positive, got %d", ErrInvalidLimits, limits.ChunkTokens)
	case limits.LargeFileTokens <= 0:
		return nil, fmt.Errorf("%w: large file tokens must be positive, got %d", ErrInvalidLimits, limits.LargeFileTokens)
	case limits.WarningThreshold > limits.MaxTokens:
		return nil, fmt.Errorf("%w: warning threshold %d exceeds max tokens %d", ErrInvalidLimits, limits.WarningThreshold, limits.MaxTokens)
	case limits.ChunkTokens > limits.MaxTokens:
		return nil, fmt.Errorf("%w: chunk tokens %d exceed max tokens %d", ErrInvalidLimits, limits.ChunkTokens, limits.MaxTokens)
	}

	return &ContextManager{limits: limits}, nil
}

func (cm *ContextManager) Limits() config.ContextConfig {
	return cm.limits
}

// EstimateTokens is the estimate used for every budget decision.
func EstimateTokens(text string) int {
	return token_management.EstimateTokens(text)
}

// AnalyzeFiles estimates every file and picks a strategy:
// total within one chunk is single, within the ceiling is batch, above the ceiling it is
// hierarchical when some file is large on its own and summary otherwise.
func (cm *ContextManager) AnalyzeFiles(files []scanner_models.FileRecord) *models.ContextAnalysis {
	analysis := &models.ContextAnalysis{
		Files:           make([]models.FileEstimate, 0, len(files)),
		ManageableFiles: []scanner_models.FileRecord{},
		LargeFiles:      []scanner_models.FileRecord{},
	}

	for _, file := range files {
		tokens := EstimateTokens(file.Content)
		analysis.Files = append(analysis.Files, models.FileEstimate{File: file, EstimatedTokens: tokens})
		analysis.TotalTokens += tokens

		if tokens > cm.limits.LargeFileTokens {
			analysis.LargeFiles = append(analysis.LargeFiles, file)
		} else {
			analysis.ManageableFiles = append(analysis.ManageableFiles, file)
		}
	}

	switch {
	case analysis.TotalTokens <= cm.limits.ChunkTokens:
		analysis.Strategy = models.StrategySingle
	case analysis.TotalTokens <= cm.limits.MaxTokens:
		analysis.Strategy = models.StrategyBatch
	case len(analysis.LargeFiles) > 0:
		analysis.Strategy = models.StrategyHierarchical
	default:
		analysis.Strategy = models.StrategySummary
	}

	analysis.Warning = cm.GenerateContextWarning(analysis.TotalTokens)

	return analysis
}

// GenerateContextWarning returns an empty string while the total stays within the warning threshold.
func (cm *ContextManager) GenerateContextWarning(totalTokens int) string {
	if totalTokens > cm.limits.MaxTokens {
		return fmt.Sprintf("Total tokens (%d) exceed the limit (%d), a layered processing strategy will be used.", totalTokens, cm.limits.MaxTokens)
	}

	if totalTokens > cm.limits.WarningThreshold {
		return fmt.Sprintf("Total tokens (%d) are approaching the limit (%d), consider processing in batches.", totalTokens, cm.limits.MaxTokens)
	}

	return ""
}

// PlanIngestion turns files into ordered units. Files above the chunk size are split, every
// other file becomes a single 1-of-1 unit. No unit exceeds the chunk size.
func (cm *ContextManager) PlanIngestion(files []scanner_models.FileRecord) (*models.IngestionPlan, error) {
	plan := &models.IngestionPlan{
		Analysis: cm.AnalyzeFiles(files),
		Units:    []models.ContextChunk{},
	}

	for _, estimate := range plan.Analysis.Files {
		file := estimate.File
		if strings.TrimSpace(file.Content) == "" {
			plan.SkippedFiles = append(plan.SkippedFiles, file)
			continue
		}

		if estimate.EstimatedTokens <= cm.limits.ChunkTokens {
			plan.Units = append(plan.Units, models.ContextChunk{
				FileRecord:      file,
				ChunkIndex:      1,
				TotalChunks:     1,
				EstimatedTokens: estimate.EstimatedTokens,
			})
			continue
		}

		chunks, err := cm.SplitLargeFile(file, cm.limits.ChunkTokens)
		if err != nil {
			return nil, err
		}
		plan.Units = append(plan.Units, chunks...)
	}

	return plan, nil
}

// CreateFileSummary describes a file in a few lines plus an outline of its declarations.
func (cm *ContextManager) CreateFileSummary(file scanner_models.FileRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "File: %s\n", file.Name)
	fmt.Fprintf(&sb, "Size: %.2fKB\n", float64(file.SizeBytes)/1024)
	fmt.Fprintf(&sb, "Lines: %d\n", strings.Count(file.Content, "\n")+1)
	fmt.Fprintf(&sb, "Estimated tokens: %d\n", EstimateTokens(file.Content))
	fmt.Fprintf(&sb, "Language: %s\n", file.Language)
	fmt.Fprintf(&sb, "Path: %s", displayPath(file))

	outline := ExtractOutline(file.Language, []byte(file.Content))
	if len(outline) > 0 {
		sb.WriteString("\nOutline:")
		for _, entry := range outline {
			fmt.Fprintf(&sb, "\n  - %s %s (line %d)", entry.Kind, entry.Name, entry.Line)
		}
	}

	return sb.String()
}

func displayPath(file scanner_models.FileRecord) string {
	if file.RelativePath != "" {
		return file.RelativePath
	}
	return file.Path
}
