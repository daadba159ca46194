package context_manager

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/meysamhadeli/kbchat/context_manager/models"
	"github.com/meysamhadeli/kbchat/embed_data"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

type grammar struct {
	language *sitter.Language
	queries  []byte
}

func grammarFor(language string) (grammar, bool) {
	switch language {
	case "csharp":
		return grammar{csharp.GetLanguage(), embed_data.CSharpQuery}, true
	case "go":
		return grammar{golang.GetLanguage(), embed_data.GoQuery}, true
	case "python":
		return grammar{python.GetLanguage(), embed_data.PythonQuery}, true
	case "java":
		return grammar{java.GetLanguage(), embed_data.JavaQuery}, true
	case "javascript":
		return grammar{javascript.GetLanguage(), embed_data.JavascriptQuery}, true
	case "typescript":
		return grammar{typescript.GetLanguage(), embed_data.TypescriptQuery}, true
	}
	return grammar{}, false
}

// ExtractOutline lists the declarations of a source file ordered by line. Languages with a
// tree-sitter grammar are parsed, rust falls back to line patterns, anything else has no outline.
func ExtractOutline(language string, source []byte) []models.OutlineEntry {
	if len(source) == 0 {
		return nil
	}

	var entries []models.OutlineEntry
	if g, ok := grammarFor(language); ok {
		entries = treeSitterOutline(g, source)
	} else if language == "rust" {
		entries = rustOutline(string(source))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Line != entries[j].Line {
			return entries[i].Line < entries[j].Line
		}
		return entries[i].Name < entries[j].Name
	})

	return entries
}

func treeSitterOutline(g grammar, source []byte) []models.OutlineEntry {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.language)

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	queries := make(map[string]string)
	if err := json.Unmarshal(g.queries, &queries); err != nil {
		return nil
	}

	tags := make([]string, 0, len(queries))
	for tag := range queries {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var entries []models.OutlineEntry
	for _, tag := range tags {
		query, err := sitter.NewQuery([]byte(queries[tag]), g.language)
		if err != nil {
			continue
		}

		cursor := sitter.NewQueryCursor()
		cursor.Exec(query, tree.RootNode())

		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			for _, capture := range match.Captures {
				entries = append(entries, models.OutlineEntry{
					Kind: tag,
					Name: capture.Node.Content(source),
					Line: int(capture.Node.StartPoint().Row) + 1,
				})
			}
		}

		cursor.Close()
		query.Close()
	}

	return entries
}

var rustPatterns = []struct {
	kind    string
	pattern *regexp.Regexp
}{
	{"function", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+(\w+)`)},
	{"struct", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)`)},
	{"enum", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+(\w+)`)},
	{"trait", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+(\w+)`)},
	{"impl", regexp.MustCompile(`^\s*impl(?:\s*<[^>]*>)?\s+(?:\w+\s+for\s+)?(\w+)`)},
	{"mod", regexp.MustCompile(`^\s*(?:pub\s+)?mod\s+(\w+)`)},
}

func rustOutline(source string) []models.OutlineEntry {
	var entries []models.OutlineEntry
	for i, line := range strings.Split(source, "\n") {
		for _, p := range rustPatterns {
			if matches := p.pattern.FindStringSubmatch(line); matches != nil {
				entries = append(entries, models.OutlineEntry{Kind: p.kind, Name: matches[1], Line: i + 1})
				break
			}
		}
	}
	return entries
}
