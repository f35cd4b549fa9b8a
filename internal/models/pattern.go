package models

import (
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// PatternType identifies the anti-pattern or opportunity a detector found
type PatternType string

const (
	PatternLOBCliff            PatternType = "LOB_CLIFF"
	PatternExpensiveJoin       PatternType = "EXPENSIVE_JOIN"
	PatternDocumentCandidate   PatternType = "DOCUMENT_CANDIDATE"
	PatternRelationalCandidate PatternType = "RELATIONAL_CANDIDATE"
	PatternDualityOpportunity  PatternType = "DUALITY_OPPORTUNITY"
)

// AllPatternTypes lists every pattern type in a fixed order.
func AllPatternTypes() []PatternType {
	return []PatternType{
		PatternLOBCliff,
		PatternExpensiveJoin,
		PatternDocumentCandidate,
		PatternRelationalCandidate,
		PatternDualityOpportunity,
	}
}

// Valid reports whether t is one of the known pattern types.
func (t PatternType) Valid() bool {
	for _, known := range AllPatternTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Severity of a detected pattern
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Rank orders severities, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Cap lowers s to ceiling when it is more severe. It never raises s.
func (s Severity) Cap(ceiling Severity) Severity {
	if s.Rank() > ceiling.Rank() {
		return ceiling
	}
	return s
}

// DetectedPattern is a candidate anti-pattern or opportunity
type DetectedPattern struct {
	ID                   string             `json:"id"`
	Type                 PatternType        `json:"pattern_type"`
	Severity             Severity           `json:"severity"`
	Confidence           float64            `json:"confidence"`
	AffectedObjects      []string           `json:"affected_objects"` // first entry is the primary table
	Metrics              map[string]float64 `json:"metrics"`
	Hint                 string             `json:"hint,omitempty"`
	SupportingExecutions float64            `json:"supporting_executions"`
	LowVolume            bool               `json:"low_volume"`
}

// PrimaryTable is the table the pattern is anchored on.
func (p *DetectedPattern) PrimaryTable() string {
	if len(p.AffectedObjects) == 0 {
		return ""
	}
	return TableOf(p.AffectedObjects[0])
}

// AffectedTables returns the distinct tables among the affected objects.
// Column objects are written as "table#column" and reduce to their table.
func (p *DetectedPattern) AffectedTables() []string {
	seen := make(map[string]bool, len(p.AffectedObjects))
	tables := make([]string, 0, len(p.AffectedObjects))
	for _, object := range p.AffectedObjects {
		table := TableOf(object)
		if table == "" || seen[table] {
			continue
		}
		seen[table] = true
		tables = append(tables, table)
	}
	return tables
}

// ColumnObject formats a column as an affected object.
func ColumnObject(table, column string) string {
	return table + "#" + column
}

// TableOf strips the column suffix from an affected object.
func TableOf(object string) string {
	if i := strings.LastIndex(object, "#"); i >= 0 {
		return object[:i]
	}
	return object
}

// ColumnOf returns the column part of an affected object, or "" for a table.
func ColumnOf(object string) string {
	if i := strings.LastIndex(object, "#"); i >= 0 {
		return object[i+1:]
	}
	return ""
}

var patternNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("schemaspectre.pattern"))

// PatternID derives a stable identifier from the pattern type and its affected
// objects so identical inputs always produce identical IDs.
func PatternID(t PatternType, objects []string) string {
	keys := make([]string, len(objects))
	for i, object := range objects {
		keys[i] = strings.ToLower(object)
	}
	sort.Strings(keys)
	return uuid.NewSHA1(patternNamespace, []byte(string(t)+"|"+strings.Join(keys, ","))).String()
}

// Clamp01 bounds v into [0,1].
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampPct bounds v into [0,100].
func ClampPct(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
