package models

import (
	scanner_models "github.com/meysamhadeli/kbchat/file_scanner/models"
)

// Strategy is the ingestion mode chosen from aggregate token pressure.
type Strategy string

const (
	StrategySingle       Strategy = "single"
	StrategyBatch        Strategy = "batch"
	StrategySummary      Strategy = "summary"
	StrategyHierarchical Strategy = "hierarchical"
)

// ContextChunk is a slice of one file's content. The embedded record carries the parent's
// metadata with Content replaced by the slice.
type ContextChunk struct {
	scanner_models.FileRecord
	ChunkIndex      int `json:"chunk_index"`
	TotalChunks     int `json:"total_chunks"`
	EstimatedTokens int `json:"estimated_tokens"`
}

// IsPartial reports whether the chunk holds only part of its file.
func (c ContextChunk) IsPartial() bool {
	return c.TotalChunks > 1
}

type FileEstimate struct {
	File            scanner_models.FileRecord
	EstimatedTokens int
}

// ContextAnalysis classifies a set of files against the token budget.
type ContextAnalysis struct {
	Files           []FileEstimate
	ManageableFiles []scanner_models.FileRecord
	LargeFiles      []scanner_models.FileRecord
	TotalTokens     int
	Strategy        Strategy
	Warning         string
}

// IngestionPlan is the ordered list of units handed to an upload or a prompt.
type IngestionPlan struct {
	Analysis *ContextAnalysis
	Units    []ContextChunk
	// Empty files produce no unit.
	SkippedFiles []scanner_models.FileRecord
}

// OutlineEntry is one declaration found in a source file.
type OutlineEntry struct {
	Kind string
	Name string
	Line int
}
