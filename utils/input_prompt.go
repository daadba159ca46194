package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/kbchat/constants/lipgloss"
)

var ErrInputClosed = errors.New("input closed")

// InputPromptWithContext prints the prompt and reads one line, returning ctx.Err() when the
// context is cancelled first. ErrInputClosed is returned at end of input.
func InputPromptWithContext(ctx context.Context, reader *bufio.Reader, out io.Writer) (string, error) {
	type result struct {
		line string
		err  error
	}
	resultChan := make(chan result, 1)

	go func() {
		fmt.Fprint(out, lipgloss.BlueSky.Render("> "))

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if strings.TrimSpace(line) != "" {
					resultChan <- result{line: strings.TrimSpace(line)}
					return
				}
				resultChan <- result{err: ErrInputClosed}
				return
			}
			resultChan <- result{err: fmt.Errorf("error reading input: %w", err)}
			return
		}
		resultChan <- result{line: strings.TrimSpace(line)}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return "", ctx.Err()
	case r := <-resultChan:
		return r.line, r.err
	}
}

// ConfirmPrompt asks a yes/no question. Anything but y or yes is a no.
func ConfirmPrompt(question string, reader *bufio.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, lipgloss.Yellow.Render(question+" (y/N): "))

	response, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("error reading input: %w", err)
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}
