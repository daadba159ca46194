package file_scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// ignoreRules holds the ignore files found in a scan root. Paths are matched relative to that root.
type ignoreRules struct {
	base     string
	matchers []*ignore.GitIgnore
}

// loadIgnoreRules compiles each named ignore file present in dir. Missing files are not an error.
func loadIgnoreRules(dir string, names []string) (*ignoreRules, error) {
	rules := &ignoreRules{base: dir}

	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return rules, fmt.Errorf("error checking %s: %w", name, err)
		}
		if info.IsDir() {
			continue
		}

		matcher, err := ignore.CompileIgnoreFile(path)
		if err != nil {
			return rules, fmt.Errorf("failed to read %s: %w", name, err)
		}
		rules.matchers = append(rules.matchers, matcher)
	}

	return rules, nil
}

// Ignored reports whether absPath is ignored by any loaded ignore file.
func (r *ignoreRules) Ignored(absPath string, isDir bool) bool {
	if r == nil || len(r.matchers) == 0 {
		return false
	}

	rel, err := filepath.Rel(r.base, absPath)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}

	for _, matcher := range r.matchers {
		if matcher.MatchesPath(rel) {
			return true
		}
	}
	return false
}

func (r *ignoreRules) count() int {
	if r == nil {
		return 0
	}
	return len(r.matchers)
}
