package discovery

import (
	"strings"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// Normalize validates a wire response. Records without a platform or match, or with an
// unknown risk level, are dropped and counted in DroppedRecords. Backend totals are kept as sent.
func Normalize(raw Response, token string) schemas.ScanResult {
	result := schemas.ScanResult{
		Target:     raw.Target,
		TotalLeaks: raw.TotalLeaks,
		RiskScore:  raw.RiskScore,
		Exposures:  make([]schemas.ExposureRecord, 0, len(raw.Exposures)),
	}
	if result.Target == "" {
		result.Target = token
	}

	for _, re := range raw.Exposures {
		record, ok := normalizeExposure(re)
		if !ok {
			result.DroppedRecords++
			continue
		}
		result.Exposures = append(result.Exposures, record)
	}
	return result
}

func normalizeExposure(re RawExposure) (schemas.ExposureRecord, bool) {
	platform := strings.TrimSpace(re.Platform)
	match := strings.TrimSpace(re.Match)
	if platform == "" || match == "" {
		return schemas.ExposureRecord{}, false
	}
	level, err := schemas.ParseRiskLevel(re.RiskLevel)
	if err != nil {
		return schemas.ExposureRecord{}, false
	}

	pii := make([]string, 0, len(re.PIIFound))
	pii = append(pii, re.PIIFound...)

	return schemas.ExposureRecord{
		Platform:        platform,
		Match:           match,
		PIIFound:        pii,
		RiskLevel:       level,
		Description:     re.Description,
		URL:             re.URL,
		ComplianceNotes: re.ComplianceNotes,
	}, true
}
