// Package compliance maps scan results onto the obligations of India's Digital
// Personal Data Protection (DPDP) Act.
package compliance

import (
	"strings"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// Check statuses.
const (
	StatusVerified  = "Verified"
	StatusFailing   = "Failing"
	StatusViolation = "Violation"
	StatusReady     = "Ready"
)

// consentLeakThreshold is the leak count above which the consent check fails.
const consentLeakThreshold = 2

// Check is one row of the compliance view.
type Check struct {
	Section     string `json:"section"`
	Rule        string `json:"rule"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

// Failed reports whether the check is in a failing or violated state.
func (c Check) Failed() bool {
	return c.Status == StatusFailing || c.Status == StatusViolation
}

// Evaluate returns the four fixed checks for result. A nil result yields the
// pre-scan view in which everything is verified.
func Evaluate(result *schemas.ScanResult) []Check {
	leaks := 0
	if result != nil {
		leaks = result.TotalLeaks
	}

	safeguards := StatusVerified
	if result != nil && leaks > 0 {
		safeguards = StatusFailing
	}
	consent := StatusVerified
	if leaks > consentLeakThreshold {
		consent = StatusViolation
	}

	return []Check{
		{
			Section:     "Section 8(5)",
			Rule:        "Security Safeguards",
			Status:      safeguards,
			Description: "Unauthorized exposure of PII on 3rd party forums.",
		},
		{
			Section:     "Section 6",
			Rule:        "Consent Notice",
			Status:      consent,
			Description: "Data processing without explicit purpose limitation.",
		},
		{
			Section:     "Section 12",
			Rule:        "Right to Erasure",
			Status:      StatusReady,
			Description: "Automated removal request templates available.",
		},
		{
			Section:     "Section 13",
			Rule:        "Grievance Redressal",
			Status:      StatusVerified,
			Description: "Data Principal communication channel established.",
		},
	}
}

// Obligation is the legal provision a data category falls under.
type Obligation struct {
	Section   string `json:"section"`
	Violation string `json:"violation"`
	Clause    string `json:"clause"`
	Penalty   string `json:"penalty"`
}

// Violation is an Obligation attributed to the first finding that triggered it.
type Violation struct {
	Obligation
	DataType string `json:"data_type"`
	Match    string `json:"masked_value,omitempty"`
	Platform string `json:"platform"`
}

var (
	securitySafeguards = Obligation{
		Section:   "Section 8(5)",
		Violation: "Breach of Security Safeguards",
		Clause:    "Fiduciaries must protect personal data in its custody by taking reasonable security safeguards.",
		Penalty:   "Up to ₹250 Crores",
	}
	portability = Obligation{
		Section:   "Section 11",
		Violation: "Right to Data Portability/Erasure",
		Clause:    "Financial data exposed without active consent or purpose limitation.",
		Penalty:   "Significant administrative fines",
	}
	generalObligation = Obligation{
		Section:   "Section 8(1)",
		Violation: "General Obligation of Data Fiduciary",
		Clause:    "Failure to ensure the accuracy and safety of sensitive security credentials.",
		Penalty:   "Case-specific high-impact fines",
	}
	correctionAndErasure = Obligation{
		Section:   "Section 12",
		Violation: "Right to Correction and Erasure",
		Clause:    "Data principal has the right to seek erasure of data that is no longer necessary.",
		Penalty:   "Standard compliance penalties",
	}
)

var obligations = map[string]Obligation{
	"AADHAAR":     securitySafeguards,
	"AADHAAR_ID":  securitySafeguards,
	"PAN_CARD":    portability,
	"PRIVATE_KEY": generalObligation,
}

// ObligationFor returns the provision for a PII category. Unknown categories
// fall under the right to correction and erasure.
func ObligationFor(category string) Obligation {
	if o, ok := obligations[strings.ToUpper(strings.TrimSpace(category))]; ok {
		return o
	}
	return correctionAndErasure
}

// ParseFinding splits a PII label of the form "CATEGORY: match". A bare label
// is a category with no match.
func ParseFinding(label string) (category, match string) {
	category, match, _ = strings.Cut(label, ":")
	return strings.TrimSpace(category), strings.TrimSpace(match)
}

// MapFindings maps every PII finding in exposures to its provision. Each section
// appears once, attributed to the first finding that maps to it.
func MapFindings(exposures []schemas.ExposureRecord) []Violation {
	seen := make(map[string]struct{})
	var out []Violation
	for _, exp := range exposures {
		for _, label := range exp.PIIFound {
			category, match := ParseFinding(label)
			if category == "" {
				continue
			}
			o := ObligationFor(category)
			if _, dup := seen[o.Section]; dup {
				continue
			}
			seen[o.Section] = struct{}{}
			out = append(out, Violation{
				Obligation: o,
				DataType:   category,
				Match:      match,
				Platform:   exp.Platform,
			})
		}
	}
	return out
}
