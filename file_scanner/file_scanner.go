package file_scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/meysamhadeli/kbchat/config"
	"github.com/meysamhadeli/kbchat/file_scanner/contracts"
	"github.com/meysamhadeli/kbchat/file_scanner/models"
	"github.com/meysamhadeli/kbchat/token_management"
	"go.uber.org/zap"
)

const (
	// largeFilePercent flags files whose size exceeds this share of the maximum file size.
	largeFilePercent = 80
	// TokenWarningLimit is the estimated token total above which a scan carries a warning.
	TokenWarningLimit = 100000
)

// FileScanner walks files and directories and turns accepted files into records.
type FileScanner struct {
	config      config.ScanConfig
	workingRoot string
	matcher     *PatternMatcher
	logger      *zap.Logger
}

// NewFileScanner compiles the scan patterns once. Patterns are evaluated against paths relative to workingRoot.
func NewFileScanner(cfg config.ScanConfig, workingRoot string, logger *zap.Logger) (contracts.IFileScanner, error) {
	matcher, err := NewPatternMatcher(cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(workingRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working root %s: %w", workingRoot, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileScanner{
		config:      cfg,
		workingRoot: root,
		matcher:     matcher,
		logger:      logger,
	}, nil
}

// ScanFile reads a single regular file. It applies the size limit but no pattern filtering.
func (fileScanner *FileScanner) ScanFile(path string) (*models.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, newScanError(ErrInvalidPath, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, newScanError(ErrNotAFile, path, nil)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, newScanError(ErrReadError, path, err)
	}

	return fileScanner.readRecord(absPath, info)
}

// ScanDirectory walks dirPath depth-first in lexical order and collects every accepted file.
// Excluded directories are pruned without being descended. Files that cannot be read are skipped.
func (fileScanner *FileScanner) ScanDirectory(ctx context.Context, dirPath string) (*models.ScanResult, error) {
	scanRoot, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, newScanError(ErrDirectoryScan, dirPath, err)
	}

	info, err := os.Stat(scanRoot)
	if err != nil {
		return nil, newScanError(ErrDirectoryScan, dirPath, err)
	}
	if !info.IsDir() {
		return nil, newScanError(ErrDirectoryScan, dirPath, fmt.Errorf("not a directory"))
	}

	rules, err := loadIgnoreRules(scanRoot, fileScanner.config.IgnoreFiles)
	if err != nil {
		fileScanner.logger.Warn("ignore file skipped", zap.String("path", scanRoot), zap.Error(err))
	}
	if rules.count() > 0 {
		fileScanner.logger.Debug("ignore files loaded", zap.String("path", scanRoot), zap.Int("count", rules.count()))
	}

	result := &models.ScanResult{
		Files:      []models.FileRecord{},
		Languages:  []string{},
		LargeFiles: []models.FileRecord{},
	}
	languages := make(map[string]struct{})
	var totalChars int

	walkErr := filepath.WalkDir(scanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path == scanRoot {
				return nil
			}
			if fileScanner.pruneDirectory(scanRoot, path, rules) {
				fileScanner.logger.Debug("directory pruned", zap.String("path", fileScanner.relativePath(path)))
				return filepath.SkipDir
			}
			return nil
		}

		if !fileScanner.acceptFile(scanRoot, path, rules) {
			fileScanner.logger.Debug("file filtered", zap.String("path", fileScanner.relativePath(path)))
			return nil
		}

		// Symlinks are followed to their target; anything that is not a regular file is skipped.
		info, err := os.Stat(path)
		if err != nil {
			fileScanner.skip(result, path, err)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		record, err := fileScanner.readRecord(path, info)
		if err != nil {
			fileScanner.skip(result, path, err)
			return nil
		}

		result.Files = append(result.Files, *record)
		result.TotalSizeBytes += record.SizeBytes
		totalChars += utf8.RuneCountInString(record.Content)
		languages[record.Language] = struct{}{}
		if fileScanner.isLarge(record.SizeBytes) {
			result.LargeFiles = append(result.LargeFiles, *record)
		}
		return nil
	})
	if walkErr != nil {
		return nil, newScanError(ErrDirectoryScan, dirPath, walkErr)
	}

	for language := range languages {
		result.Languages = append(result.Languages, language)
	}
	sort.Strings(result.Languages)

	result.TotalFiles = len(result.Files)
	result.EstimatedTokens = (totalChars + token_management.CharsPerToken - 1) / token_management.CharsPerToken
	if result.EstimatedTokens > TokenWarningLimit {
		result.Warning = fmt.Sprintf("Estimated %d tokens exceed %d. Consider uploading in smaller batches.", result.EstimatedTokens, TokenWarningLimit)
	}

	fileScanner.logger.Debug("directory scanned",
		zap.String("path", scanRoot),
		zap.Int("files", result.TotalFiles),
		zap.Int("skipped", result.SkippedFiles),
		zap.Int("tokens", result.EstimatedTokens),
	)

	return result, nil
}

// ScanPath dispatches to ScanFile or ScanDirectory depending on what inputPath names.
func (fileScanner *FileScanner) ScanPath(ctx context.Context, inputPath string) (*models.PathScan, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, newScanError(ErrInvalidPath, inputPath, err)
	}

	switch {
	case info.Mode().IsRegular():
		record, err := fileScanner.ScanFile(inputPath)
		if err != nil {
			return nil, err
		}
		return &models.PathScan{File: record}, nil
	case info.IsDir():
		result, err := fileScanner.ScanDirectory(ctx, inputPath)
		if err != nil {
			return nil, err
		}
		return &models.PathScan{Directory: result}, nil
	default:
		return nil, newScanError(ErrInvalidPath, inputPath, nil)
	}
}

// pruneDirectory decides whether a directory is skipped without descending into it.
func (fileScanner *FileScanner) pruneDirectory(scanRoot string, path string, rules *ignoreRules) bool {
	// Every descendant path has rel+"/" as a prefix, so an unanchored exclude match here
	// excludes the whole subtree.
	if fileScanner.matcher.Excluded(fileScanner.relativePath(path) + "/") {
		return true
	}
	if rules.Ignored(path, true) {
		return true
	}
	// Hidden directories can only be skipped outright when no include pattern could pull a file back out.
	if !fileScanner.config.IncludeHidden && !fileScanner.matcher.HasHiddenIncludes() {
		return IsHiddenPath(scanRelativePath(scanRoot, path))
	}
	return false
}

// acceptFile applies exclusion, then the hidden rule, then inclusion.
func (fileScanner *FileScanner) acceptFile(scanRoot string, path string, rules *ignoreRules) bool {
	rel := fileScanner.relativePath(path)

	if fileScanner.matcher.Excluded(rel) || rules.Ignored(path, false) {
		return false
	}

	if !fileScanner.config.IncludeHidden && IsHiddenPath(scanRelativePath(scanRoot, path)) {
		return fileScanner.matcher.RescuesHidden(rel)
	}

	return fileScanner.matcher.Included(rel)
}

func (fileScanner *FileScanner) readRecord(path string, info fs.FileInfo) (*models.FileRecord, error) {
	maxSize := fileScanner.config.MaxFileSize
	if maxSize > 0 && info.Size() > maxSize {
		return nil, newScanError(ErrFileTooLarge, path, fmt.Errorf("%d bytes exceeds %d", info.Size(), maxSize))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, newScanError(ErrReadError, path, err)
	}
	// The file may have grown since it was stat'ed.
	if maxSize > 0 && int64(len(content)) > maxSize {
		return nil, newScanError(ErrFileTooLarge, path, fmt.Errorf("%d bytes exceeds %d", len(content), maxSize))
	}
	if !utf8.Valid(content) {
		return nil, newScanError(ErrReadError, path, errInvalidUTF8)
	}

	name := filepath.Base(path)
	return &models.FileRecord{
		Path:         path,
		RelativePath: fileScanner.relativePath(path),
		Name:         name,
		SizeBytes:    int64(len(content)),
		Extension:    strings.ToLower(filepath.Ext(name)),
		Content:      string(content),
		Language:     LanguageForFile(name),
		LastModified: info.ModTime(),
	}, nil
}

func (fileScanner *FileScanner) isLarge(size int64) bool {
	limit := fileScanner.config.MaxFileSize
	return limit > 0 && size*100 > limit*largeFilePercent
}

func (fileScanner *FileScanner) skip(result *models.ScanResult, path string, err error) {
	result.SkippedFiles++
	fileScanner.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
}

// relativePath returns path relative to the working root with `/` separators, the form patterns see.
func (fileScanner *FileScanner) relativePath(path string) string {
	rel, err := filepath.Rel(fileScanner.workingRoot, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func scanRelativePath(scanRoot string, path string) string {
	rel, err := filepath.Rel(scanRoot, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
