package compliance

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

//go:embed templates/removal_request.tmpl
var templateFS embed.FS

// DateLayout is the date format used in removal letters.
const DateLayout = "02 January 2006"

// ErrNoFindings is returned when a removal request would list nothing.
var ErrNoFindings = errors.New("no findings to include in removal request")

// RemovalRequest describes a takedown letter for one source.
type RemovalRequest struct {
	Principal string
	Company   string
	Exposures []schemas.ExposureRecord
	Date      time.Time
}

type letterFinding struct {
	Category string
	Match    string
}

var removalTemplate = template.Must(template.New("removal_request.tmpl").ParseFS(templateFS, "templates/removal_request.tmpl"))

// Render builds the letter. Exposures without PII labels are listed by their
// matched handle so every exposure appears in the letter.
func (r RemovalRequest) Render() (string, error) {
	var findings []letterFinding
	for _, exp := range r.Exposures {
		if len(exp.PIIFound) == 0 {
			findings = append(findings, letterFinding{Category: "PROFILE", Match: exp.Match})
			continue
		}
		for _, label := range exp.PIIFound {
			category, match := ParseFinding(label)
			if match == "" {
				match = exp.Match
			}
			findings = append(findings, letterFinding{Category: category, Match: match})
		}
	}
	if len(findings) == 0 {
		return "", ErrNoFindings
	}

	date := r.Date
	if date.IsZero() {
		date = time.Now()
	}
	data := struct {
		Date      string
		Company   string
		Principal string
		Findings  []letterFinding
	}{
		Date:      date.Format(DateLayout),
		Company:   strings.TrimSpace(r.Company),
		Principal: strings.TrimSpace(r.Principal),
		Findings:  findings,
	}

	var buf bytes.Buffer
	if err := removalTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render removal request: %w", err)
	}
	return buf.String(), nil
}

// RemovalRequestsByPlatform groups exposures by platform and builds one request
// per platform, in first-seen order.
func RemovalRequestsByPlatform(principal string, exposures []schemas.ExposureRecord, at time.Time) []RemovalRequest {
	index := make(map[string]int)
	var out []RemovalRequest
	for _, exp := range exposures {
		i, ok := index[exp.Platform]
		if !ok {
			i = len(out)
			index[exp.Platform] = i
			out = append(out, RemovalRequest{Principal: principal, Company: exp.Platform, Date: at})
		}
		out[i].Exposures = append(out[i].Exposures, exp)
	}
	return out
}
