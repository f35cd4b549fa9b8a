package models

// ConflictType classifies how two candidates interact
type ConflictType string

const (
	ConflictMutuallyExclusive ConflictType = "MUTUALLY_EXCLUSIVE"
	ConflictRedundant         ConflictType = "REDUNDANT"
	ConflictCascading         ConflictType = "CASCADING"
)

// Conflict links a candidate to another one it interacts with
type Conflict struct {
	PatternID string       `json:"pattern_id"`
	Type      ConflictType `json:"type"`
}

// Decision is the accept/reject outcome of the tradeoff analyzer
type Decision struct {
	Accepted  bool   `json:"accepted"`
	Rationale string `json:"rationale"`
}

// Candidate pairs a detected pattern with its cost analysis
type Candidate struct {
	Pattern DetectedPattern
	Cost    CostAnalysis
}

// PrioritizedRecommendation is a candidate after tradeoff analysis
type PrioritizedRecommendation struct {
	Pattern             DetectedPattern `json:"pattern"`
	Cost                CostAnalysis    `json:"cost"`
	PriorityScore       float64         `json:"priority_score"`
	BasePriorityScore   float64         `json:"base_priority_score"`
	FrequencyMultiplier float64         `json:"frequency_multiplier"`
	Conflicts           []Conflict      `json:"conflicts"`
	ConflictingIDs      []string        `json:"conflicting_ids"`
	Tradeoffs           []string        `json:"tradeoffs"`
	Decision            Decision        `json:"decision"`
}

// GuidanceSource tells whether guidance came from the collaborator or a template
type GuidanceSource string

const (
	GuidanceGenerated GuidanceSource = "generated"
	GuidanceTemplate  GuidanceSource = "template"
)

// Guidance is the implementation advice attached to a final recommendation.
// Both strings are opaque text and are never executed.
type Guidance struct {
	Rationale string         `json:"rationale"`
	SQL       string         `json:"sql"`
	Source    GuidanceSource `json:"source"`
}

// GenerationContext is the structured payload sent to the guidance collaborator
type GenerationContext struct {
	PatternID       string             `json:"pattern_id"`
	PatternType     PatternType        `json:"pattern_type"`
	Severity        Severity           `json:"severity"`
	Confidence      float64            `json:"confidence"`
	AffectedObjects []string           `json:"affected_objects"`
	Metrics         map[string]float64 `json:"metrics"`
	Hint            string             `json:"hint,omitempty"`
	Cost            CostAnalysis       `json:"cost"`
	Tradeoffs       []string           `json:"tradeoffs"`
}

// FinalRecommendation is one ranked, accepted recommendation
type FinalRecommendation struct {
	Rank          int             `json:"rank"`
	Pattern       DetectedPattern `json:"pattern"`
	Cost          CostAnalysis    `json:"cost"`
	PriorityScore float64         `json:"priority_score"`
	PriorityTier  Tier            `json:"priority_tier"`
	Rationale     string          `json:"rationale"`
	Tradeoffs     []string        `json:"tradeoffs"`
	Conflicts     []Conflict      `json:"conflicts"`
	Guidance      Guidance        `json:"guidance"`
}

// Diagnostic kinds
const (
	DiagDataError         = "data_error"
	DiagComputationError  = "computation_error"
	DiagCollaboratorError = "collaborator_error"
)

// Diagnostic records why something was skipped or degraded during a run
type Diagnostic struct {
	Stage  string `json:"stage"`
	Kind   string `json:"kind"`
	Object string `json:"object,omitempty"`
	Reason string `json:"reason"`
}
