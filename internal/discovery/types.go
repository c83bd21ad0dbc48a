package discovery

import "time"

// DefaultEndpoint is the scan route of a locally running backend.
const DefaultEndpoint = "http://localhost:8000/api/v1/scan/"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Config holds the HTTP backend settings.
type Config struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
	// RateLimit is requests per second. Zero or less disables limiting.
	RateLimit float64
	Burst     int
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.UserAgent == "" {
		c.UserAgent = "shadowtrace-cli"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// Response is the backend's wire format before validation.
type Response struct {
	Target     string        `json:"target"`
	TotalLeaks int           `json:"total_leaks"`
	RiskScore  int           `json:"risk_score"`
	Exposures  []RawExposure `json:"exposures"`
}

// RawExposure is an exposure record as received. Fields are unchecked.
type RawExposure struct {
	Platform        string   `json:"platform"`
	Match           string   `json:"match"`
	PIIFound        []string `json:"pii_found"`
	RiskLevel       string   `json:"risk_level"`
	Description     string   `json:"description"`
	URL             string   `json:"url"`
	ComplianceNotes []string `json:"compliance_notes"`
}
