package context_manager

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/meysamhadeli/kbchat/context_manager/models"
	scanner_models "github.com/meysamhadeli/kbchat/file_scanner/models"
	"github.com/meysamhadeli/kbchat/token_management"
)

// averageLineWidth is the assumed characters per line when sizing line windows.
const averageLineWidth = 80

// minInteriorBoundaries is how many declarations, besides the start and end of the content,
// a file needs before it is split on them.
const minInteriorBoundaries = 2

// boundaryPatterns recognise the first line of a declaration.
var boundaryPatterns = []*regexp.Regexp{
	// javascript / typescript
	regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(?:async[ \t]+)?function\*?[ \t]+[\w$]+`),
	regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(?:abstract[ \t]+)?(?:class|interface|enum)[ \t]+[\w$]+`),
	regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:const|let|var)[ \t]+[\w$]+[ \t]*=[ \t]*(?:async[ \t]*)?(?:\([^)\n]*\)|[\w$]+)[ \t]*=>`),
	// python
	regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?(?:def|class)[ \t]+\w+`),
	// go
	regexp.MustCompile(`(?m)^func[ \t]+(?:\([^)\n]*\)[ \t]*)?\w+`),
	regexp.MustCompile(`(?m)^type[ \t]+\w+[ \t]+(?:struct|interface)\b`),
	// rust
	regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\([^)\n]*\))?[ \t]+)?(?:async[ \t]+)?fn[ \t]+\w+`),
	regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\([^)\n]*\))?[ \t]+)?(?:struct|enum|trait|impl)\b`),
	// java / c# / kotlin style members
	regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|internal|static|final|abstract|override|virtual|sealed)[ \t]+)+[\w<>\[\],.? \t]*?\w+[ \t]*\(`),
}

// FindCodeBoundaries returns the ascending, de-duplicated byte offsets where declarations start,
// always including 0 and len(content).
func FindCodeBoundaries(content string) []int {
	seen := map[int]struct{}{0: {}, len(content): {}}

	for _, pattern := range boundaryPatterns {
		for _, loc := range pattern.FindAllStringIndex(content, -1) {
			seen[loc[0]] = struct{}{}
		}
	}

	boundaries := make([]int, 0, len(seen))
	for offset := range seen {
		boundaries = append(boundaries, offset)
	}
	sort.Ints(boundaries)

	return boundaries
}

// SplitLargeFile slices a file into chunks of at most maxChunkTokens. Declarations are used as
// cut points when the file has enough of them, otherwise the content is cut into line windows.
// Whitespace-only content and slack between declarations is dropped; everything else is kept in order.
func (cm *ContextManager) SplitLargeFile(file scanner_models.FileRecord, maxChunkTokens int) ([]models.ContextChunk, error) {
	if maxChunkTokens <= 0 {
		return nil, ErrInvalidChunkSize
	}

	content := file.Content
	if strings.TrimSpace(content) == "" {
		return []models.ContextChunk{}, nil
	}

	var pieces []string

	boundaries := FindCodeBoundaries(content)
	if len(boundaries)-2 >= minInteriorBoundaries {
		for i := 0; i < len(boundaries)-1; i++ {
			segment := content[boundaries[i]:boundaries[i+1]]
			if strings.TrimSpace(segment) == "" {
				continue
			}
			if EstimateTokens(segment) > maxChunkTokens {
				pieces = append(pieces, splitLineWindows(segment, maxChunkTokens)...)
				continue
			}
			pieces = append(pieces, segment)
		}
	} else {
		pieces = splitLineWindows(content, maxChunkTokens)
	}

	chunks := make([]models.ContextChunk, 0, len(pieces))
	for i, piece := range pieces {
		record := file
		record.Content = piece
		chunks = append(chunks, models.ContextChunk{
			FileRecord:      record,
			ChunkIndex:      i + 1,
			TotalChunks:     len(pieces),
			EstimatedTokens: EstimateTokens(piece),
		})
	}

	return chunks, nil
}

// LinesPerWindow is the line count of one fallback window for the given budget.
func LinesPerWindow(maxChunkTokens int) int {
	lines := maxChunkTokens * token_management.CharsPerToken / averageLineWidth
	if lines < 1 {
		return 1
	}
	return lines
}

// splitLineWindows cuts content into consecutive windows of whole lines. A window closes at
// LinesPerWindow lines or earlier when the next line would push it over the budget. A single
// line longer than the budget is cut by characters. Concatenating the windows gives back content.
func splitLineWindows(content string, maxChunkTokens int) []string {
	maxLines := LinesPerWindow(maxChunkTokens)
	maxChars := token_management.CharsForTokens(maxChunkTokens)

	var windows []string
	var window strings.Builder
	windowLines, windowChars := 0, 0

	flush := func() {
		if window.Len() > 0 {
			windows = append(windows, window.String())
			window.Reset()
		}
		windowLines, windowChars = 0, 0
	}

	for _, line := range strings.SplitAfter(content, "\n") {
		if line == "" {
			continue
		}
		lineChars := utf8.RuneCountInString(line)

		if lineChars > maxChars {
			flush()
			windows = append(windows, splitByChars(line, maxChars)...)
			continue
		}

		if windowLines == maxLines || windowChars+lineChars > maxChars {
			flush()
		}
		window.WriteString(line)
		windowLines++
		windowChars += lineChars
	}
	flush()

	return windows
}

func splitByChars(text string, maxChars int) []string {
	var parts []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += maxChars {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
