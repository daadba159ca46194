package models

import "time"

type UploadStatus string

const (
	StatusUploaded UploadStatus = "uploaded"
	StatusSkipped  UploadStatus = "skipped"
	StatusFailed   UploadStatus = "failed"
)

// UploadResult is the outcome for one uploaded unit, or for an input path that failed to scan.
type UploadResult struct {
	Path        string
	Name        string
	ChunkIndex  int
	TotalChunks int
	Tokens      int
	DocumentID  string
	Batch       string
	Status      UploadStatus
	Err         error
}

// LedgerEntry records one document already sent to a knowledge base.
type LedgerEntry struct {
	KnowledgeBaseID string
	Name            string
	DocumentID      string
	Batch           string
	Tokens          int
	UploadedAt      time.Time
}

type LedgerStats struct {
	Dir            string
	Entries        int
	TotalSizeBytes int64
	Oldest         time.Time
	Newest         time.Time
}

// UploadSummary counts results by status.
type UploadSummary struct {
	Uploaded int
	Skipped  int
	Failed   int
	Tokens   int
}

func Summarize(results []UploadResult) UploadSummary {
	var summary UploadSummary
	for _, result := range results {
		switch result.Status {
		case StatusUploaded:
			summary.Uploaded++
			summary.Tokens += result.Tokens
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			summary.Failed++
		}
	}
	return summary
}
