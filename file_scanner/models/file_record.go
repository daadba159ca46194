package models

import "time"

// FileRecord is one ingested file.
type FileRecord struct {
	Path         string    `json:"path"`
	RelativePath string    `json:"relative_path"`
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	Extension    string    `json:"extension"`
	Content      string    `json:"-"`
	Language     string    `json:"language"`
	LastModified time.Time `json:"last_modified"`
}

// ScanResult is the inventory produced by one directory scan.
type ScanResult struct {
	Files           []FileRecord `json:"files"`
	TotalFiles      int          `json:"total_files"`
	TotalSizeBytes  int64        `json:"total_size_bytes"`
	Languages       []string     `json:"languages"`
	EstimatedTokens int          `json:"estimated_tokens"`
	LargeFiles      []FileRecord `json:"large_files"`
	Warning         string       `json:"warning,omitempty"`
	SkippedFiles    int          `json:"skipped_files"`
}

// PathScan holds the outcome of scanning a path that may name a file or a directory.
// Exactly one of File and Directory is set.
type PathScan struct {
	File      *FileRecord
	Directory *ScanResult
}

// Records returns the scanned files regardless of which kind of path was scanned.
func (p *PathScan) Records() []FileRecord {
	switch {
	case p == nil:
		return nil
	case p.File != nil:
		return []FileRecord{*p.File}
	case p.Directory != nil:
		return p.Directory.Files
	}
	return nil
}
