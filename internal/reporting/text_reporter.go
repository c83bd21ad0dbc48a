package reporting

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// TextReporter writes tab-aligned plain text. Each envelope is written as soon as
// it arrives.
type TextReporter struct {
	writer io.WriteCloser
	mu     sync.Mutex
	count  int
}

// NewTextReporter creates a plain text reporter.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

// Write renders env.
func (r *TextReporter) Write(env *Envelope) error {
	if env == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	bw := bufio.NewWriter(r.writer)
	if r.count > 0 {
		fmt.Fprintln(bw)
	}
	r.count++
	renderText(bw, env)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	return nil
}

// Close closes the writer.
func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}

func renderText(w io.Writer, env *Envelope) {
	fmt.Fprintf(w, "%s report for %q\n", ToolName, env.Query)
	if !env.GeneratedAt.IsZero() {
		fmt.Fprintf(w, "Generated: %s\n", env.GeneratedAt.Format(time.RFC3339))
	}

	m := env.Metrics
	if env.Result == nil {
		fmt.Fprintln(w, "\nNo scan results.")
	} else {
		fmt.Fprintf(w, "\nRisk score:        %d (%s)\n", m.RiskScore, m.Band)
		fmt.Fprintf(w, "Critical leaks:    %d\n", m.CriticalLeaks)
		fmt.Fprintf(w, "Discovered points: %d\n", m.DiscoveredPoints)
		if m.DroppedRecords > 0 {
			fmt.Fprintf(w, "Dropped records:   %d\n", m.DroppedRecords)
		}

		fmt.Fprintln(w, "\nEXPOSURES")
		if len(env.Result.Exposures) == 0 {
			fmt.Fprintln(w, "  none")
		} else {
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PLATFORM\tMATCH\tRISK\tPII\tURL")
			for _, e := range env.Result.Exposures {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.Platform, e.Match, e.RiskLevel, orDash(strings.Join(e.PIIFound, ", ")), orDash(e.URL))
			}
			tw.Flush()
		}
	}

	fmt.Fprintln(w, "\nDPDP COMPLIANCE")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tRULE\tSTATUS")
	for _, c := range env.Compliance {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Section, c.Rule, c.Status)
	}
	tw.Flush()

	if len(env.Violations) > 0 {
		fmt.Fprintln(w, "\nVIOLATIONS")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SECTION\tVIOLATION\tDATA\tPLATFORM\tPENALTY")
		for _, v := range env.Violations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Section, v.Violation, v.DataType, v.Platform, v.Penalty)
		}
		tw.Flush()
	}

	if len(env.History) > 0 {
		fmt.Fprintln(w, "\nHISTORY")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTIME\tQUERY\tSCORE\tFINDINGS")
		for _, h := range env.History {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", h.ID, h.Timestamp, h.Query, h.Score, h.Findings)
		}
		tw.Flush()
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
