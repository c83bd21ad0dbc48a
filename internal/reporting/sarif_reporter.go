package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
	"github.com/shadowtrace/shadowtrace-cli/internal/observability"
	"github.com/shadowtrace/shadowtrace-cli/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "ShadowTrace"
	ToolInfoURI  = "https://github.com/shadowtrace/shadowtrace-cli"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

	rulePrefix         = "SHADOWTRACE-"
	fingerprintVersion = "exposureHash/v1"
)

// ruleIDSanitizer matches runs of characters not allowed in rule IDs. Each run is
// replaced by a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// SARIFReporter implements Reporter for SARIF 2.1.0. Every platform becomes a rule
// and every exposure a result. It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the maps.
	mu sync.Mutex
	// rulesByPlatform maps a platform name to its rule ID.
	rulesByPlatform map[string]string
	// ruleIDUsage counts uses of a base rule ID so distinct platforms that
	// sanitize to the same ID get a suffix.
	ruleIDUsage map[string]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:          writer,
		logger:          observability.GetLogger().Named("sarif_reporter"),
		log:             log,
		rulesByPlatform: make(map[string]string),
		ruleIDUsage:     make(map[string]int),
	}
}

// Write converts the exposures of env into SARIF results.
func (r *SARIFReporter) Write(env *Envelope) error {
	if env == nil {
		return nil
	}
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	invocation := &sarif.Invocation{
		ExecutionSuccessful: env.Result != nil,
		Properties:          &sarif.PropertyBag{"query": env.Query},
	}
	run.Invocations = append(run.Invocations, invocation)
	if env.Result == nil {
		return nil
	}
	(*invocation.Properties)["target"] = env.Result.Target
	(*invocation.Properties)["risk_score"] = env.Result.RiskScore
	(*invocation.Properties)["total_leaks"] = env.Result.TotalLeaks

	for _, exp := range env.Result.Exposures {
		ruleID := r.ensureRule(exp.Platform)

		messageText := exp.Description
		if messageText == "" {
			messageText = fmt.Sprintf("%s exposed on %s", exp.Match, exp.Platform)
		}

		properties := sarif.PropertyBag{
			"risk_level": string(exp.RiskLevel),
			"match":      exp.Match,
			"pii_found":  append([]string{}, exp.PIIFound...),
		}
		if len(exp.ComplianceNotes) > 0 {
			properties["compliance_notes"] = append([]string(nil), exp.ComplianceNotes...)
		}

		run.Results = append(run.Results, &sarif.Result{
			RuleID:    ruleID,
			Message:   &sarif.Message{Text: pString(messageText)},
			Level:     mapRiskToSARIFLevel(exp.RiskLevel),
			Locations: createLocations(exp),
			PartialFingerprints: map[string]string{
				fingerprintVersion: exposureFingerprint(env.Result.Target, exp),
			},
			Properties: &properties,
		})
	}

	r.logger.Debug("Wrote exposures to SARIF buffer",
		zap.Int("exposures", len(env.Result.Exposures)),
		zap.Duration("duration_ms", time.Since(startTime)),
	)
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Debug("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// sanitizeRuleName creates a standardized base name for a rule ID.
func sanitizeRuleName(name string) string {
	sanitized := strings.ToUpper(strings.TrimSpace(name))
	sanitized = ruleIDSanitizer.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return "UNKNOWN-PLATFORM"
	}
	return sanitized
}

// ensureRule returns the rule ID for platform, registering it on first use.
// Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(platform string) string {
	if ruleID, exists := r.rulesByPlatform[platform]; exists {
		return ruleID
	}

	baseRuleID := rulePrefix + sanitizeRuleName(platform)
	usageCount := r.ruleIDUsage[baseRuleID]
	r.ruleIDUsage[baseRuleID] = usageCount + 1

	ruleID := baseRuleID
	if usageCount > 0 {
		ruleID = fmt.Sprintf("%s-%d", baseRuleID, usageCount)
		r.logger.Debug("Rule ID collision detected, generated new ID with suffix",
			zap.String("base_id", baseRuleID),
			zap.String("final_id", ruleID),
		)
	}

	name := fmt.Sprintf("Exposure on %s", platform)
	description := fmt.Sprintf("Personal data linked to the scanned identity was found on %s.", platform)
	help := "Request removal of the exposed data from the platform and rotate any exposed credentials."
	markdownHelp := fmt.Sprintf("**Platform:** %s\n\n**Description:**\n%s\n\n**Recommendation:**\n%s",
		platform, description, help)

	r.log.Runs[0].Tool.Driver.Rules = append(r.log.Runs[0].Tool.Driver.Rules, &sarif.ReportingDescriptor{
		ID:               ruleID,
		Name:             pString(name),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(name)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(help),
			Markdown: pString(markdownHelp),
		},
		Properties: &sarif.PropertyBag{
			"tags":     []string{"privacy", "exposure"},
			"platform": platform,
		},
	})
	r.rulesByPlatform[platform] = ruleID
	return ruleID
}

// createLocations points at the exposure URL when the backend supplied one.
func createLocations(exp schemas.ExposureRecord) []*sarif.Location {
	if exp.URL == "" {
		return nil
	}
	return []*sarif.Location{{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(exp.URL)},
		},
		Message: &sarif.Message{Text: pString(fmt.Sprintf("Exposure found at %s", exp.URL))},
	}}
}

func exposureFingerprint(target string, exp schemas.ExposureRecord) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", target, exp.Platform, exp.Match)
	return hex.EncodeToString(h.Sum(nil))
}

// mapRiskToSARIFLevel converts an exposure risk level to the SARIF standard.
func mapRiskToSARIFLevel(level schemas.RiskLevel) sarif.Level {
	switch level {
	case schemas.RiskCritical, schemas.RiskHigh:
		return sarif.LevelError
	case schemas.RiskMedium:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value.
func pString(s string) *string {
	return &s
}
