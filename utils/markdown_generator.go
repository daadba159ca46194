package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

const (
	codeFence      = "```"
	markdownLexer  = "markdown"
	terminalFormat = "terminal256"
	addedColor     = "\x1b[92m"
	removedColor   = "\x1b[91m"
	resetColor     = "\x1b[0m"
)

var fenceLanguage = regexp.MustCompile("```[ \\t]*([A-Za-z0-9_+#.-]+)")

// DetectLanguageFromCodeBlock returns the language named on the first code fence in content,
// or markdown when there is none.
func DetectLanguageFromCodeBlock(content string) string {
	match := fenceLanguage.FindStringSubmatch(content)
	if match == nil {
		return markdownLexer
	}
	return strings.ToLower(match[1])
}

// MarkdownRenderer highlights a streamed answer line by line. It remembers whether the stream is
// inside a code block between calls.
type MarkdownRenderer struct {
	out         io.Writer
	theme       string
	inCodeBlock bool
	language    string
}

func NewMarkdownRenderer(out io.Writer, theme string) *MarkdownRenderer {
	return &MarkdownRenderer{out: out, theme: theme, language: markdownLexer}
}

// Reset forgets the code block state before a new answer.
func (r *MarkdownRenderer) Reset() {
	r.inCodeBlock = false
	r.language = markdownLexer
}

// RenderAndPrintMarkdownWithContext writes content with syntax highlighting and stops between
// lines when ctx is cancelled.
func (r *MarkdownRenderer) RenderAndPrintMarkdownWithContext(ctx context.Context, content string) error {
	for _, line := range strings.SplitAfter(content, "\n") {
		if line == "" {
			continue
		}

		select {
		case <-ctx.Done():
			fmt.Fprintf(r.out, "\n\n🔄 Output interrupted...\n")
			return ctx.Err()
		default:
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, codeFence) {
			r.inCodeBlock = !r.inCodeBlock
			if r.inCodeBlock {
				r.language = DetectLanguageFromCodeBlock(trimmed)
			}
			if err := r.highlight(line, markdownLexer); err != nil {
				return err
			}
			if !r.inCodeBlock {
				r.language = markdownLexer
			}
			continue
		}

		switch {
		case r.inCodeBlock && strings.HasPrefix(line, "+"):
			fmt.Fprint(r.out, colorLine(line, addedColor))
		case r.inCodeBlock && strings.HasPrefix(line, "-"):
			fmt.Fprint(r.out, colorLine(line, removedColor))
		default:
			if err := r.highlight(line, r.language); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *MarkdownRenderer) highlight(line string, language string) error {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, line, language, terminalFormat, r.theme); err != nil {
		return fmt.Errorf("error rendering markdown: %w", err)
	}
	_, err := r.out.Write(buf.Bytes())
	return err
}

func colorLine(line string, color string) string {
	body := strings.TrimSuffix(line, "\n")
	if len(body) == len(line) {
		return color + body + resetColor
	}
	return color + body + resetColor + "\n"
}
