package tradeoff

import (
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
)

// direction is the kind of schema transformation a pattern proposes
type direction int

const (
	additive direction = iota
	normalize
	denormalize
)

var directions = map[models.PatternType]direction{
	models.PatternLOBCliff:            normalize,
	models.PatternRelationalCandidate: normalize,
	models.PatternExpensiveJoin:       denormalize,
	models.PatternDocumentCandidate:   denormalize,
	models.PatternDualityOpportunity:  additive,
}

// classifyConflict decides how two patterns interact. ok is false when they
// share no table.
func classifyConflict(a, b *models.DetectedPattern) (conflict models.ConflictType, shared []string, ok bool) {
	shared = sharedTables(a, b)
	if len(shared) == 0 {
		return "", nil, false
	}

	da, db := directions[a.Type], directions[b.Type]
	switch {
	case (da == normalize && db == denormalize) || (da == denormalize && db == normalize):
		return models.ConflictMutuallyExclusive, shared, true
	case da == denormalize && db == denormalize && len(shared) >= 2:
		return models.ConflictRedundant, shared, true
	case embedsDocumentTable(a, b) || embedsDocumentTable(b, a):
		return models.ConflictRedundant, shared, true
	case isDualityDocumentPair(a, b) && samePrimary(a, b):
		return models.ConflictRedundant, shared, true
	case a.Type == b.Type && a.Type != models.PatternExpensiveJoin && samePrimaryObject(a, b):
		return models.ConflictRedundant, shared, true
	}
	return models.ConflictCascading, shared, true
}

// embedsDocumentTable reports whether doc proposes a document shape for a
// table that the denormalization other already folds into its primary table.
func embedsDocumentTable(doc, other *models.DetectedPattern) bool {
	if doc.Type != models.PatternDocumentCandidate || directions[other.Type] != denormalize {
		return false
	}
	table := doc.PrimaryTable()
	if table == "" || strings.EqualFold(table, other.PrimaryTable()) {
		return false
	}
	for _, embedded := range other.AffectedTables() {
		if strings.EqualFold(embedded, table) {
			return true
		}
	}
	return false
}

func isDualityDocumentPair(a, b *models.DetectedPattern) bool {
	return (a.Type == models.PatternDualityOpportunity && b.Type == models.PatternDocumentCandidate) ||
		(a.Type == models.PatternDocumentCandidate && b.Type == models.PatternDualityOpportunity)
}

func samePrimary(a, b *models.DetectedPattern) bool {
	return strings.EqualFold(a.PrimaryTable(), b.PrimaryTable())
}

func samePrimaryObject(a, b *models.DetectedPattern) bool {
	if len(a.AffectedObjects) == 0 || len(b.AffectedObjects) == 0 {
		return false
	}
	return strings.EqualFold(a.AffectedObjects[0], b.AffectedObjects[0])
}

func sharedTables(a, b *models.DetectedPattern) []string {
	seen := make(map[string]bool)
	for _, table := range a.AffectedTables() {
		seen[strings.ToLower(table)] = true
	}
	var shared []string
	for _, table := range b.AffectedTables() {
		if seen[strings.ToLower(table)] {
			shared = append(shared, table)
		}
	}
	return shared
}
