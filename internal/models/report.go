package models

import "time"

// Report is the complete output structure
type Report struct {
	Tool            string                `json:"tool"`
	Version         string                `json:"version"`
	Timestamp       string                `json:"timestamp"`
	Metadata        Metadata              `json:"metadata"`
	Recommendations []FinalRecommendation `json:"recommendations"`
	Rejected        []RejectedCandidate   `json:"rejected"`
	Diagnostics     []Diagnostic          `json:"diagnostics"`
}

// Metadata contains report generation info
type Metadata struct {
	GeneratedAt          time.Time `json:"generated_at"`
	SnapshotHours        float64   `json:"snapshot_hours"`
	QueriesAnalyzed      int       `json:"queries_analyzed"`
	TablesAnalyzed       int       `json:"tables_analyzed"`
	TotalExecutions      float64   `json:"total_executions"`
	PatternsDetected     int       `json:"patterns_detected"`
	AnalysisDuration     string    `json:"analysis_duration"`
	Version              string    `json:"version"`
	GeneratorEnabled     bool      `json:"generator_enabled"`
	SuppressedByBaseline int       `json:"suppressed_by_baseline"`
}

// RejectedCandidate is a flattened candidate the tradeoff analyzer turned down
type RejectedCandidate struct {
	PatternID       string      `json:"pattern_id"`
	PatternType     PatternType `json:"pattern_type"`
	AffectedObjects []string    `json:"affected_objects"`
	PriorityScore   float64     `json:"priority_score"`
	NetBenefitScore float64     `json:"net_benefit_score"`
	Rationale       string      `json:"rationale"`
}

// Rejections flattens the rejected entries of a prioritized list.
func Rejections(prioritized []PrioritizedRecommendation) []RejectedCandidate {
	rejected := []RejectedCandidate{}
	for _, rec := range prioritized {
		if rec.Decision.Accepted {
			continue
		}
		rejected = append(rejected, RejectedCandidate{
			PatternID:       rec.Pattern.ID,
			PatternType:     rec.Pattern.Type,
			AffectedObjects: rec.Pattern.AffectedObjects,
			PriorityScore:   rec.PriorityScore,
			NetBenefitScore: rec.Cost.NetBenefitScore,
			Rationale:       rec.Decision.Rationale,
		})
	}
	return rejected
}
