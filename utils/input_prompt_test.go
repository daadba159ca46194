package utils

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputPromptWithContext(t *testing.T) {
	var out bytes.Buffer

	line, err := InputPromptWithContext(context.Background(), bufio.NewReader(strings.NewReader("  /kb use abc \n")), &out)
	require.NoError(t, err)
	assert.Equal(t, "/kb use abc", line)
	assert.Contains(t, out.String(), "> ")

	line, err = InputPromptWithContext(context.Background(), bufio.NewReader(strings.NewReader("last line")), &out)
	require.NoError(t, err)
	assert.Equal(t, "last line", line)

	_, err = InputPromptWithContext(context.Background(), bufio.NewReader(strings.NewReader("")), &out)
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestInputPromptWithContext_Cancelled(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := InputPromptWithContext(ctx, bufio.NewReader(reader), io.Discard)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfirmPrompt(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, test := range tests {
		accepted, err := ConfirmPrompt("Reset?", bufio.NewReader(strings.NewReader(test.input)), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, test.expected, accepted, "input %q", test.input)
	}
}

func TestGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	cleaned := false

	go func() {
		GracefulShutdown(ctx, cancel, func() { cleaned = true })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not finish")
	}
	assert.True(t, cleaned)
}
