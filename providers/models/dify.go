package models

// Dataset is a Dify knowledge base.
type Dataset struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Provider          string `json:"provider"`
	Permission        string `json:"permission"`
	IndexingTechnique string `json:"indexing_technique"`
	AppCount          int    `json:"app_count"`
	DocumentCount     int    `json:"document_count"`
	WordCount         int    `json:"word_count"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
}

type DatasetList struct {
	Data    []Dataset `json:"data"`
	HasMore bool      `json:"has_more"`
	Limit   int       `json:"limit"`
	Total   int       `json:"total"`
	Page    int       `json:"page"`
}

// ProcessRule tells Dify how to segment an uploaded document.
type ProcessRule struct {
	Mode string `json:"mode"`
}

type CreateDocumentByTextRequest struct {
	Name              string       `json:"name"`
	Text              string       `json:"text"`
	IndexingTechnique string       `json:"indexing_technique,omitempty"`
	DocForm           string       `json:"doc_form,omitempty"`
	DocLanguage       string       `json:"doc_language,omitempty"`
	ProcessRule       *ProcessRule `json:"process_rule,omitempty"`
}

type Document struct {
	ID             string `json:"id"`
	Position       int    `json:"position"`
	DataSourceType string `json:"data_source_type"`
	Name           string `json:"name"`
	CreatedFrom    string `json:"created_from"`
	CreatedAt      int64  `json:"created_at"`
	Tokens         int    `json:"tokens"`
	IndexingStatus string `json:"indexing_status"`
	Error          string `json:"error,omitempty"`
	Enabled        bool   `json:"enabled"`
	Archived       bool   `json:"archived"`
	DisplayStatus  string `json:"display_status"`
	WordCount      int    `json:"word_count"`
	HitCount       int    `json:"hit_count"`
	DocForm        string `json:"doc_form"`
}

type DocumentResponse struct {
	Document Document `json:"document"`
	Batch    string   `json:"batch"`
}

type DocumentList struct {
	Data    []Document `json:"data"`
	HasMore bool       `json:"has_more"`
	Limit   int        `json:"limit"`
	Total   int        `json:"total"`
	Page    int        `json:"page"`
}

type IndexingStatus struct {
	ID                string `json:"id"`
	IndexingStatus    string `json:"indexing_status"`
	Error             string `json:"error,omitempty"`
	CompletedSegments int    `json:"completed_segments"`
	TotalSegments     int    `json:"total_segments"`
}

type IndexingStatusList struct {
	Data []IndexingStatus `json:"data"`
}

type RetrievalModel struct {
	SearchMethod          string   `json:"search_method"`
	RerankingEnable       bool     `json:"reranking_enable"`
	TopK                  int      `json:"top_k"`
	ScoreThresholdEnabled bool     `json:"score_threshold_enabled"`
	ScoreThreshold        *float64 `json:"score_threshold,omitempty"`
}

type RetrievalRequest struct {
	Query          string          `json:"query"`
	RetrievalModel *RetrievalModel `json:"retrieval_model,omitempty"`
}

type Segment struct {
	ID         string   `json:"id"`
	Position   int      `json:"position"`
	DocumentID string   `json:"document_id"`
	Content    string   `json:"content"`
	Answer     string   `json:"answer,omitempty"`
	WordCount  int      `json:"word_count"`
	Tokens     int      `json:"tokens"`
	Keywords   []string `json:"keywords"`
	HitCount   int      `json:"hit_count"`
	Enabled    bool     `json:"enabled"`
	Status     string   `json:"status"`
	Document   *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"document,omitempty"`
}

type RetrievalRecord struct {
	Segment Segment `json:"segment"`
	Score   float64 `json:"score"`
}

type RetrievalResponse struct {
	Query struct {
		Content string `json:"content"`
	} `json:"query"`
	Records []RetrievalRecord `json:"records"`
}

// DifyError is the error body returned by the Dify API.
type DifyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
