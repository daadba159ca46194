package file_scanner

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Predicate reports whether a root-relative, slash-separated path matches a pattern.
type Predicate func(relPath string) bool

// CompilePattern turns a glob-like pattern into a predicate.
//
// `**` matches any run of characters including `/`, `*` matches any run without `/` and `?`
// matches a single character. `{a,b}` alternation is expanded first. The match is a substring
// search, so `*.md` also matches `docs/readme.md`.
func CompilePattern(pattern string) (Predicate, error) {
	alternatives := expandBraces(pattern)
	regexes := make([]*regexp.Regexp, 0, len(alternatives))

	for _, alternative := range alternatives {
		re, err := regexp.Compile(translateGlob(alternative))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		regexes = append(regexes, re)
	}

	return func(relPath string) bool {
		for _, re := range regexes {
			if re.MatchString(relPath) {
				return true
			}
		}
		return false
	}, nil
}

func translateGlob(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); {
		switch {
		case strings.HasPrefix(pattern[i:], "**"):
			sb.WriteString(".*")
			i += 2
		case pattern[i] == '*':
			sb.WriteString("[^/]*")
			i++
		case pattern[i] == '?':
			sb.WriteString(".")
			i++
		default:
			r, size := utf8.DecodeRuneInString(pattern[i:])
			sb.WriteString(regexp.QuoteMeta(string(r)))
			i += size
		}
	}
	return sb.String()
}

// expandBraces expands the first top-level `{x,y}` group and recurses on the results.
// Groups without a comma and unbalanced braces stay literal.
func expandBraces(pattern string) []string {
	depth, open := 0, -1
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			if depth == 0 {
				open = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			parts := splitTopLevel(pattern[open+1 : i])
			if len(parts) < 2 {
				continue
			}
			prefix, suffix := pattern[:open], pattern[i+1:]
			var expanded []string
			for _, part := range parts {
				expanded = append(expanded, expandBraces(prefix+part+suffix)...)
			}
			return expanded
		}
	}
	return []string{pattern}
}

func splitTopLevel(body string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, body[start:])
}

type compiledPattern struct {
	raw        string
	match      Predicate
	dotSegment bool
}

// PatternMatcher holds the compiled include and exclude sets of a scan configuration.
type PatternMatcher struct {
	include []compiledPattern
	exclude []compiledPattern
}

func NewPatternMatcher(include []string, exclude []string) (*PatternMatcher, error) {
	includes, err := compileAll(include)
	if err != nil {
		return nil, err
	}
	excludes, err := compileAll(exclude)
	if err != nil {
		return nil, err
	}
	return &PatternMatcher{include: includes, exclude: excludes}, nil
}

func compileAll(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		match, err := CompilePattern(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledPattern{
			raw:        pattern,
			match:      match,
			dotSegment: hasHiddenSegment(pattern),
		})
	}
	return compiled, nil
}

// Excluded reports whether any exclude pattern matches relPath.
func (m *PatternMatcher) Excluded(relPath string) bool {
	for _, p := range m.exclude {
		if p.match(relPath) {
			return true
		}
	}
	return false
}

// Included reports whether any include pattern matches relPath. An empty include set admits everything.
func (m *PatternMatcher) Included(relPath string) bool {
	if len(m.include) == 0 {
		return true
	}
	for _, p := range m.include {
		if p.match(relPath) {
			return true
		}
	}
	return false
}

// Matches applies exclusion before inclusion; an excluded path is never rescued.
func (m *PatternMatcher) Matches(relPath string) bool {
	return !m.Excluded(relPath) && m.Included(relPath)
}

// RescuesHidden reports whether an include pattern that names a dot segment, such as
// `.github/**`, matches relPath.
func (m *PatternMatcher) RescuesHidden(relPath string) bool {
	for _, p := range m.include {
		if p.dotSegment && p.match(relPath) {
			return true
		}
	}
	return false
}

// HasHiddenIncludes reports whether any include pattern could rescue a hidden path.
func (m *PatternMatcher) HasHiddenIncludes() bool {
	for _, p := range m.include {
		if p.dotSegment {
			return true
		}
	}
	return false
}

// IsHiddenPath reports whether any segment of a slash-separated path starts with a dot.
func IsHiddenPath(relPath string) bool {
	return hasHiddenSegment(relPath)
}

func hasHiddenSegment(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if segment == "." || segment == ".." {
			continue
		}
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}
