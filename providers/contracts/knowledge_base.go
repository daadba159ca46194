package contracts

import (
	"context"

	"github.com/meysamhadeli/kbchat/providers/models"
)

// IKnowledgeBase is the subset of the Dify dataset API the client relies on.
type IKnowledgeBase interface {
	ListDatasets(ctx context.Context, keyword string, page int, limit int) (*models.DatasetList, error)
	CreateDocumentByText(ctx context.Context, datasetID string, request models.CreateDocumentByTextRequest) (*models.DocumentResponse, error)
	ListDocuments(ctx context.Context, datasetID string, keyword string, page int, limit int) (*models.DocumentList, error)
	DeleteDocument(ctx context.Context, datasetID string, documentID string) error
	GetIndexingStatus(ctx context.Context, datasetID string, batch string) (*models.IndexingStatusList, error)
	Retrieve(ctx context.Context, datasetID string, request models.RetrievalRequest) (*models.RetrievalResponse, error)
}
