package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/meysamhadeli/kbchat/file_scanner"
)

// MaxPathSuggestions caps the number of completions offered at once.
const MaxPathSuggestions = 8

type candidate struct {
	name  string
	full  string
	isDir bool
}

// SuggestPaths completes the last word of input against the file system. Directories come first
// and end with a slash. Files are limited to suggestable types that matcher does not exclude.
// A nil matcher excludes nothing.
func SuggestPaths(input string, cwd string, home string, matcher *file_scanner.PatternMatcher) []string {
	words := strings.Fields(input)
	if len(words) == 0 {
		return nil
	}
	lastWord := words[len(words)-1]

	baseDir, search := suggestionBase(lastWord, cwd, home)

	targetDir := baseDir
	prefix := search
	if slash := strings.LastIndex(search, "/"); slash != -1 {
		targetDir = filepath.Join(baseDir, filepath.FromSlash(search[:slash]))
		prefix = search[slash+1:]
	}

	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return nil
	}

	lowerPrefix := strings.ToLower(prefix)
	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}
		if !strings.Contains(strings.ToLower(name), lowerPrefix) {
			continue
		}

		full := filepath.Join(targetDir, name)
		isDir := entry.IsDir()
		if !isDir && entry.Type()&os.ModeSymlink != 0 {
			if info, statErr := os.Stat(full); statErr == nil {
				isDir = info.IsDir()
			}
		}

		if !isDir {
			if !file_scanner.IsSuggestable(name) {
				continue
			}
			if matcher != nil && matcher.Excluded(relativeTo(cwd, full)) {
				continue
			}
		}

		candidates = append(candidates, candidate{name: name, full: full, isDir: isDir})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].isDir != candidates[j].isDir {
			return candidates[i].isDir
		}
		return strings.ToLower(candidates[i].name) < strings.ToLower(candidates[j].name)
	})

	if len(candidates) > MaxPathSuggestions {
		candidates = candidates[:MaxPathSuggestions]
	}

	suggestions := make([]string, 0, len(candidates))
	for _, c := range candidates {
		display := displaySuggestion(lastWord, c.full, cwd, home)
		if c.isDir {
			display += "/"
		}
		suggestions = append(suggestions, display)
	}
	return suggestions
}

// CompleteInput replaces the last word of input with suggestion.
func CompleteInput(input string, suggestion string) string {
	words := strings.Fields(input)
	if len(words) == 0 {
		return suggestion
	}
	words[len(words)-1] = suggestion
	return strings.Join(words, " ")
}

// suggestionBase resolves the directory a word is relative to and the remaining search text.
func suggestionBase(word string, cwd string, home string) (string, string) {
	switch {
	case strings.HasPrefix(word, "./"):
		return cwd, strings.TrimPrefix(word, "./")
	case strings.HasPrefix(word, "../"):
		levels := 0
		for strings.HasPrefix(word, "../") {
			word = strings.TrimPrefix(word, "../")
			levels++
		}
		return filepath.Join(append([]string{cwd}, repeat("..", levels)...)...), word
	case strings.HasPrefix(word, "/"):
		return string(filepath.Separator), strings.TrimPrefix(word, "/")
	case strings.HasPrefix(word, "~"):
		return home, strings.TrimPrefix(strings.TrimPrefix(word, "~"), "/")
	default:
		return cwd, word
	}
}

func displaySuggestion(word string, full string, cwd string, home string) string {
	switch {
	case strings.HasPrefix(word, "/"):
		return filepath.ToSlash(full)
	case strings.HasPrefix(word, "~"):
		return "~" + filepath.ToSlash(strings.TrimPrefix(full, home))
	default:
		rel := relativeTo(cwd, full)
		if strings.HasPrefix(rel, ".") {
			return rel
		}
		return "./" + rel
	}
}

func relativeTo(base string, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
