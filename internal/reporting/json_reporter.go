package reporting

import (
	"fmt"
	"io"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/internal/observability"
)

// jsonDocument is the top level object of a JSON report.
type jsonDocument struct {
	Tool    string      `json:"tool"`
	Version string      `json:"version"`
	Reports []*Envelope `json:"reports"`
}

// JSONReporter buffers envelopes and writes them as one document on Close.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	mu     sync.Mutex
	doc    jsonDocument
}

// NewJSONReporter creates a reporter that writes an indented JSON document.
func NewJSONReporter(writer io.WriteCloser, toolVersion string) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		logger: observability.GetLogger().Named("json_reporter"),
		doc: jsonDocument{
			Tool:    ToolName,
			Version: toolVersion,
			Reports: []*Envelope{},
		},
	}
}

// Write appends env to the document.
func (r *JSONReporter) Write(env *Envelope) error {
	if env == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc.Reports = append(r.doc.Reports, env)
	return nil
}

// Close encodes the document and closes the writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	encodeErr := encoder.Encode(r.doc)
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode JSON report", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	r.logger.Debug("Wrote JSON report", zap.Int("reports", len(r.doc.Reports)))
	return nil
}
