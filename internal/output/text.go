package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PentesterFlow/PanelProbe/pkg/prober"
)

// TextWriter prints a short human-readable report.
type TextWriter struct {
	mu     sync.Mutex
	writer io.Writer
	stream bool
	closed bool
}

// NewTextWriter creates a new text writer.
func NewTextWriter(w io.Writer, stream bool) *TextWriter {
	return &TextWriter{writer: w, stream: stream}
}

// WriteResult prints the verdict followed by the attempt log.
func (t *TextWriter) WriteResult(result *prober.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "SUCCESS  %s via %s\n", result.Type, result.Endpoint)
		if result.Account != nil {
			fmt.Fprintf(&b, "  account status: %s\n", result.Account.Status)
			if result.Account.TokenReceived {
				b.WriteString("  token received\n")
			}
		}
	} else {
		fmt.Fprintf(&b, "FAILED   %s\n", result.Details)
		if result.Debug != nil {
			fmt.Fprintf(&b, "  last: %s %s -> %d\n", result.Debug.Method, result.Debug.URL, result.Debug.Status)
		}
	}

	if !t.stream {
		for _, a := range result.Logs {
			b.WriteString(formatAttempt(a))
		}
	}
	fmt.Fprintf(&b, "  %d attempts in %dms\n", len(result.Logs), result.DurationMS)

	_, err := io.WriteString(t.writer, b.String())
	return err
}

// WriteAttempt prints one attempt line in streaming mode.
func (t *TextWriter) WriteAttempt(attempt prober.Attempt) error {
	if !t.stream {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	_, err := io.WriteString(t.writer, formatAttempt(attempt))
	return err
}

func formatAttempt(a prober.Attempt) string {
	outcome := fmt.Sprintf("%d", a.Status)
	if a.Error != "" {
		outcome = "error: " + a.Error
	}
	if a.Challenge != "" {
		outcome += " [" + a.Challenge + " challenge]"
	}
	return fmt.Sprintf("  %-12s %-6s %s -> %s (%dms)\n", a.Strategy, a.Method, a.URL, outcome, a.DurationMS)
}

// Flush is a no-op; writes are unbuffered.
func (t *TextWriter) Flush() error {
	return nil
}

// Close closes the underlying writer when it is closable.
func (t *TextWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if closer, ok := t.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
