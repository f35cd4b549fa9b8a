package reporter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

const (
	rulePrefix = "schemaspectre/"

	sarifFallbackLocationURI = "README.md"
	sarifSchemaURI           = "https://docs.oasis-open.org/sarif/sarif/v2.1.0/cs01/schemas/sarif-schema-2.1.0.json"
)

type ruleSpec struct {
	short string
	full  string
	level string
}

// ruleSpecs has one SARIF rule per pattern type
var ruleSpecs = map[models.PatternType]ruleSpec{
	models.PatternLOBCliff: {
		short: "Large object rewritten by small updates",
		full:  "A large stored value is updated often while only a small part of it changes, forcing full rewrites.",
		level: "warning",
	},
	models.PatternExpensiveJoin: {
		short: "Frequent join to a small, stable dimension",
		full:  "A hot join fetches a few columns from a small, rarely updated table; denormalizing them removes the join.",
		level: "warning",
	},
	models.PatternDocumentCandidate: {
		short: "Table is accessed as a document",
		full:  "The table is mostly read whole together with its child rows and would be cheaper as a document.",
		level: "note",
	},
	models.PatternRelationalCandidate: {
		short: "Document data is accessed relationally",
		full:  "Stored documents are filtered, aggregated and partially updated and would be cheaper as typed columns.",
		level: "note",
	},
	models.PatternDualityOpportunity: {
		short: "Table serves both OLTP and analytics",
		full:  "The table is heavily used both for point lookups and for aggregates and suits a dual-representation view.",
		level: "note",
	},
}

var semanticVersionPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool               `json:"tool"`
	Results           []sarifResult           `json:"results"`
	AutomationDetails *sarifAutomationDetails `json:"automationDetails,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifAutomationDetails struct {
	ID string `json:"id"`
}

type sarifDriver struct {
	Name            string       `json:"name"`
	Version         string       `json:"version,omitempty"`
	InformationURI  string       `json:"informationUri,omitempty"`
	ShortDesc       sarifMessage `json:"shortDescription"`
	FullDesc        sarifMessage `json:"fullDescription"`
	Rules           []sarifRule  `json:"rules"`
	DownloadURI     string       `json:"downloadUri,omitempty"`
	SemanticVersion string       `json:"semanticVersion,omitempty"`
}

type sarifRule struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ShortDesc     sarifMessage `json:"shortDescription"`
	FullDesc      sarifMessage `json:"fullDescription"`
	DefaultConfig sarifConfig  `json:"defaultConfiguration"`
	HelpURI       string       `json:"helpUri,omitempty"`
	Help          sarifMessage `json:"help,omitempty"`
	Properties    any          `json:"properties,omitempty"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           *int              `json:"ruleIndex,omitempty"`
	Level               string            `json:"level,omitempty"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation  `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

type sarifLogicalLocation struct {
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// WriteSARIF writes SARIF 2.1.0 output to report.sarif.
func WriteSARIF(report *models.Report, cfg *config.Config) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	reportVersion := report.Version
	if reportVersion == "" {
		reportVersion = report.Metadata.Version
	}

	output := sarifLog{
		Version: "2.1.0",
		Schema:  sarifSchemaURI,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:            "schemaspectre",
						Version:         reportVersion,
						SemanticVersion: normalizeSemanticVersion(reportVersion),
						InformationURI:  "https://github.com/ppiankov/schemaspectre",
						DownloadURI:     "https://github.com/ppiankov/schemaspectre/releases/latest",
						ShortDesc: sarifMessage{
							Text: "Schema optimization advisor",
						},
						FullDesc: sarifMessage{
							Text: "Detects schema anti-patterns in workload snapshots and ranks cost-justified changes.",
						},
						Rules: buildSARIFRules(),
					},
				},
				Results: buildSARIFResults(report),
				AutomationDetails: &sarifAutomationDetails{
					ID: "schemaspectre/analyze",
				},
			},
		},
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal SARIF: %w", err)
	}

	outputPath := filepath.Join(cfg.OutputDir, "report.sarif")
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report.sarif: %w", err)
	}

	return nil
}

func buildSARIFRules() []sarifRule {
	rules := make([]sarifRule, 0, len(ruleSpecs))
	for _, pt := range models.AllPatternTypes() {
		def := ruleSpecs[pt]
		rules = append(rules, sarifRule{
			ID:            rulePrefix + string(pt),
			Name:          string(pt),
			ShortDesc:     sarifMessage{Text: def.short},
			FullDesc:      sarifMessage{Text: def.full},
			DefaultConfig: sarifConfig{Level: def.level},
		})
	}
	return rules
}

func ruleIndex(pt models.PatternType) *int {
	for i, known := range models.AllPatternTypes() {
		if known == pt {
			return ruleIndexPtr(i)
		}
	}
	return nil
}

func buildSARIFResults(report *models.Report) []sarifResult {
	results := make([]sarifResult, 0)
	if report == nil {
		return results
	}

	for _, rec := range report.Recommendations {
		pattern := rec.Pattern
		objects := strings.Join(pattern.AffectedObjects, ", ")
		fingerprint := hashFinding(append([]string{"recommendation", string(pattern.Type)}, pattern.AffectedObjects...)...)

		message := fmt.Sprintf("#%d %s on %s: net benefit %.1f ms/day.", rec.Rank, pattern.Type, objects, rec.Cost.NetBenefitScore)
		if rationale := strings.TrimSpace(rec.Guidance.Rationale); rationale != "" {
			message += " " + rationale
		}

		results = append(results, sarifResult{
			RuleID:    rulePrefix + string(pattern.Type),
			RuleIndex: ruleIndex(pattern.Type),
			Level:     mapTierToSARIFLevel(rec.PriorityTier),
			Message:   sarifMessage{Text: message},
			Locations: tableLocation(pattern.PrimaryTable()),
			PartialFingerprints: map[string]string{
				"schemaspectre/findingHash": fingerprint,
			},
			Properties: map[string]any{
				"pattern_id":        pattern.ID,
				"rank":              rec.Rank,
				"severity":          string(pattern.Severity),
				"confidence":        pattern.Confidence,
				"priority_score":    rec.PriorityScore,
				"priority_tier":     string(rec.PriorityTier),
				"net_benefit_score": rec.Cost.NetBenefitScore,
				"affected_objects":  pattern.AffectedObjects,
				"guidance_source":   string(rec.Guidance.Source),
			},
		})
	}

	return results
}

func tableLocation(tableName string) []sarifLocation {
	normalized := strings.TrimSpace(tableName)
	if normalized == "" {
		normalized = "unknown_table"
	}

	name := normalized
	if strings.Contains(normalized, ".") {
		parts := strings.SplitN(normalized, ".", 2)
		name = parts[1]
	}

	return []sarifLocation{
		{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: sarifFallbackLocationURI},
				Region: &sarifRegion{
					StartLine: 1,
				},
			},
			LogicalLocations: []sarifLogicalLocation{
				{
					Name:               name,
					FullyQualifiedName: normalized,
					Kind:               "table",
				},
			},
		},
	}
}

func mapTierToSARIFLevel(tier models.Tier) string {
	switch tier {
	case models.TierHigh:
		return "error"
	case models.TierLow:
		return "note"
	default:
		return "warning"
	}
}

func normalizeSemanticVersion(version string) string {
	normalized := strings.TrimSpace(strings.TrimPrefix(version, "v"))
	if semanticVersionPattern.MatchString(normalized) {
		return normalized
	}
	return ""
}

func hashFinding(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func ruleIndexPtr(index int) *int {
	value := index
	return &value
}
