// Package output renders probe results for the CLI.
package output

import (
	"io"

	"github.com/PentesterFlow/PanelProbe/pkg/prober"
)

// Writer defines the interface for output writers.
type Writer interface {
	// WriteResult writes one finished probe
	WriteResult(result *prober.Result) error

	// WriteAttempt writes a single attempt as it happens (streaming only)
	WriteAttempt(attempt prober.Attempt) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format   string
	Pretty   bool
	Stream   bool
	FilePath string
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case "text":
		return NewTextWriter(w, config.Stream)
	default:
		return NewJSONWriter(w, config.Pretty, config.Stream)
	}
}
