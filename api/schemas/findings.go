package schemas

import (
	"errors"
	"strings"
)

// -- Exposure Schemas --

// RiskLevel is the severity a discovery source assigns to a single exposure.
// The canonical values are title-cased; ingest is case-insensitive.
type RiskLevel string

// Constants defining the recognised risk levels, lowest first.
const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// ErrUnknownRiskLevel is returned by ParseRiskLevel for values outside the enum.
var ErrUnknownRiskLevel = errors.New("unknown risk level")

// RiskLevels lists every canonical level in ascending order of severity.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
}

// ParseRiskLevel normalizes a raw risk level ("HIGH", " high ", "High") to its canonical form.
func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return "", ErrUnknownRiskLevel
	}
}

// Rank orders levels for sorting and comparisons. Unknown levels rank below Low.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// ExposureRecord is one platform-specific hit correlating a queried token to found data.
// Platform and Match are required on ingest; the remaining optional fields are carried
// through from the backend untouched.
type ExposureRecord struct {
	Platform  string    `json:"platform"`  // Source identifier, e.g. "GitHub".
	Match     string    `json:"match"`     // The identifier or value found at the source.
	PIIFound  []string  `json:"pii_found"` // PII categories found alongside the match, in backend order.
	RiskLevel RiskLevel `json:"risk_level"`

	Description     string   `json:"description,omitempty"`
	URL             string   `json:"url,omitempty"`
	ComplianceNotes []string `json:"compliance_notes,omitempty"`
}

// Clone returns a deep copy of the record.
func (e ExposureRecord) Clone() ExposureRecord {
	out := e
	out.PIIFound = append([]string{}, e.PIIFound...)
	if e.ComplianceNotes != nil {
		out.ComplianceNotes = append([]string(nil), e.ComplianceNotes...)
	}
	return out
}

// ScanResult is the aggregate response of the discovery backend for one query.
// TotalLeaks and RiskScore are backend-reported and are never re-derived locally.
type ScanResult struct {
	Target     string           `json:"target"`
	TotalLeaks int              `json:"total_leaks"`
	RiskScore  int              `json:"risk_score"`
	Exposures  []ExposureRecord `json:"exposures"`

	// DroppedRecords counts malformed exposure records rejected on ingest.
	// It is a non-fatal warning and is not part of the wire format.
	DroppedRecords int `json:"-"`
}

// Clone returns a deep copy so callers never share mutable state with the session.
func (r ScanResult) Clone() ScanResult {
	out := r
	out.Exposures = make([]ExposureRecord, len(r.Exposures))
	for i, e := range r.Exposures {
		out.Exposures[i] = e.Clone()
	}
	return out
}

// ScanRequest is the body POSTed to the discovery backend.
// Exactly one of the two fields is non-empty.
type ScanRequest struct {
	TargetEmail    string `json:"target_email"`
	TargetUsername string `json:"target_username"`
}

// NewScanRequest routes a token to the email or username slot depending on whether it contains "@".
func NewScanRequest(token string) ScanRequest {
	if strings.Contains(token, "@") {
		return ScanRequest{TargetEmail: token}
	}
	return ScanRequest{TargetUsername: token}
}

// Token returns whichever of the two slots is populated.
func (r ScanRequest) Token() string {
	if r.TargetEmail != "" {
		return r.TargetEmail
	}
	return r.TargetUsername
}
