package file_scanner

import (
	"path/filepath"
	"strings"
)

const defaultLanguage = "text"

var languageByExtension = map[string]string{
	".js":         "javascript",
	".jsx":        "javascript",
	".ts":         "typescript",
	".tsx":        "typescript",
	".py":         "python",
	".java":       "java",
	".cpp":        "cpp",
	".c":          "c",
	".cs":         "csharp",
	".php":        "php",
	".rb":         "ruby",
	".go":         "go",
	".rs":         "rust",
	".swift":      "swift",
	".kt":         "kotlin",
	".scala":      "scala",
	".md":         "markdown",
	".json":       "json",
	".yaml":       "yaml",
	".yml":        "yaml",
	".xml":        "xml",
	".html":       "html",
	".css":        "css",
	".scss":       "scss",
	".less":       "less",
	".sql":        "sql",
	".sh":         "shell",
	".bash":       "shell",
	".zsh":        "shell",
	".fish":       "shell",
	".ps1":        "powershell",
	".dockerfile": "dockerfile",
	".env":        "env",
	".txt":        "text",
	".log":        "log",
	".conf":       "config",
	".ini":        "config",
	".toml":       "config",
}

// suggestableExtensions are the file types offered by path completion.
var suggestableExtensions = []string{
	".js", ".ts", ".tsx", ".jsx", ".py", ".java", ".go", ".rs",
	".md", ".json", ".yaml", ".yml", ".txt", ".html", ".css", ".scss", ".less",
}

// LanguageForExtension maps a file extension (with its leading dot) to a language tag.
// Lookup is case-insensitive and unknown extensions map to "text".
func LanguageForExtension(ext string) string {
	if language, ok := languageByExtension[strings.ToLower(ext)]; ok {
		return language
	}
	return defaultLanguage
}

// LanguageForFile classifies by extension, treating a bare `Dockerfile` like `.dockerfile`.
func LanguageForFile(name string) string {
	base := strings.ToLower(filepath.Base(name))
	if base == "dockerfile" {
		return languageByExtension[".dockerfile"]
	}
	return LanguageForExtension(filepath.Ext(base))
}

func SuggestableExtensions() []string {
	out := make([]string, len(suggestableExtensions))
	copy(out, suggestableExtensions)
	return out
}

// IsSuggestable reports whether a file name carries one of the completion extensions.
func IsSuggestable(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range suggestableExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}
