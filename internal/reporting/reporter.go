package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
	"github.com/shadowtrace/shadowtrace-cli/internal/compliance"
)

// Supported output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatSARIF}
}

// Envelope is everything a report is rendered from.
type Envelope struct {
	Query       string                 `json:"query"`
	GeneratedAt time.Time              `json:"generated_at"`
	Result      *schemas.ScanResult    `json:"result"`
	Metrics     schemas.Metrics        `json:"metrics"`
	History     []schemas.HistoryEntry `json:"history,omitempty"`
	Compliance  []compliance.Check     `json:"compliance"`
	Violations  []compliance.Violation `json:"violations,omitempty"`
}

// NewEnvelope fills the compliance fields from result.
func NewEnvelope(query string, result *schemas.ScanResult, metrics schemas.Metrics, history []schemas.HistoryEntry, at time.Time) *Envelope {
	env := &Envelope{
		Query:       query,
		GeneratedAt: at,
		Result:      result,
		Metrics:     metrics,
		History:     history,
		Compliance:  compliance.Evaluate(result),
	}
	if result != nil {
		env.Violations = compliance.MapFindings(result.Exposures)
	}
	return env
}

// Reporter defines the interface for writing scan reports to an output.
type Reporter interface {
	// Write processes a single envelope.
	Write(env *Envelope) error
	// Close finalizes the report and closes the underlying writer.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// NopCloser wraps w so that closing the reporter leaves w open.
func NopCloser(w io.Writer) io.WriteCloser {
	return &nopWriteCloser{w}
}

// New creates a reporter for format writing to outputPath, or stdout when the
// path is empty or "stdout".
func New(format, outputPath, toolVersion string) (Reporter, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if !supported(format) {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = NopCloser(os.Stdout)
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return NewWithWriter(format, writer, toolVersion)
}

// NewWithWriter creates a reporter that takes ownership of writer.
func NewWithWriter(format string, writer io.WriteCloser, toolVersion string) (Reporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatSARIF:
		return NewSARIFReporter(writer, toolVersion), nil
	case FormatJSON:
		return NewJSONReporter(writer, toolVersion), nil
	case FormatText:
		return NewTextReporter(writer), nil
	default:
		writer.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func supported(format string) bool {
	for _, f := range Formats() {
		if f == format {
			return true
		}
	}
	return false
}
