package contracts

import (
	"github.com/meysamhadeli/kbchat/context_manager/models"
	scanner_models "github.com/meysamhadeli/kbchat/file_scanner/models"
)

type IContextManager interface {
	AnalyzeFiles(files []scanner_models.FileRecord) *models.ContextAnalysis
	SplitLargeFile(file scanner_models.FileRecord, maxChunkTokens int) ([]models.ContextChunk, error)
	GenerateContextWarning(totalTokens int) string
	PlanIngestion(files []scanner_models.FileRecord) (*models.IngestionPlan, error)
	CreateFileSummary(file scanner_models.FileRecord) string
}
