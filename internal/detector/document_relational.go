package detector

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

const stageDocumentRelational = "document_relational"

// Classifier weights
const (
	docSelectAllWeight   = 0.4
	docChildFetchWeight  = 0.3
	docNullableWeight    = 0.2
	docMultiUpdateWeight = 0.1
	docNullableMinimum   = 0.5

	relAggregateWeight = 0.5
	relMultiJoinWeight = 0.5
)

// accessProfile is the execution-weighted access mix of one table
type accessProfile struct {
	selectAll   float64
	childFetch  float64
	nullable    float64
	multiUpdate float64
	aggregate   float64
	multiJoin   float64
	children    []string
}

func (a accessProfile) documentScore() float64 {
	score := a.selectAll*docSelectAllWeight + a.childFetch*docChildFetchWeight + a.multiUpdate*docMultiUpdateWeight
	if a.nullable > docNullableMinimum {
		score += a.nullable * docNullableWeight
	}
	return score
}

func (a accessProfile) relationalScore() float64 {
	return a.aggregate*relAggregateWeight + a.multiJoin*relMultiJoinWeight
}

// DetectDocumentRelational decides per table whether its access pattern
// favors a document shape or a normalized relational shape.
func DetectDocumentRelational(idx *snapshot.Index, cfg *config.Config) Result {
	result := Result{}
	th := cfg.Thresholds
	children := childTables(idx)

	for _, name := range idx.TableNames() {
		table, _ := idx.Table(name)
		queries := drivenBy(idx.QueriesFor(name), table.Name)
		if len(queries) == 0 {
			continue
		}
		total := executionsPerDay(queries, nil)
		if total <= 0 {
			result.notEvaluable(stageDocumentRelational, table.Name, "table has zero executions")
			continue
		}

		profile := buildAccessProfile(table, queries, children[strings.ToLower(table.Name)], total)
		docScore := profile.documentScore()
		relScore := profile.relationalScore()
		diff := docScore - relScore
		if math.Abs(diff) <= th.ClassificationMargin {
			continue
		}

		p := models.DetectedPattern{
			Confidence: math.Abs(diff),
			Severity:   models.SeverityMedium,
			Metrics: map[string]float64{
				"document_score":               docScore,
				"relational_score":             relScore,
				"score_difference":             diff,
				"select_all_fraction":          profile.selectAll,
				"child_cofetch_fraction":       profile.childFetch,
				"nullable_column_fraction":     profile.nullable,
				"multi_column_update_fraction": profile.multiUpdate,
				"aggregate_fraction":           profile.aggregate,
				"multi_join_fraction":          profile.multiJoin,
				"executions_per_day":           total,
			},
			SupportingExecutions: idx.SnapshotExecutions(total),
		}
		if math.Abs(diff) >= th.HighClassification {
			p.Severity = models.SeverityHigh
		}

		if diff > 0 {
			p.Type = models.PatternDocumentCandidate
			p.AffectedObjects = append([]string{table.Name}, profile.children...)
			p.Hint = fmt.Sprintf("store %s rows as documents", table.Name)
			if len(profile.children) > 0 {
				p.Hint += fmt.Sprintf(" embedding %s", strings.Join(profile.children, ", "))
			}
		} else {
			p.Type = models.PatternRelationalCandidate
			p.AffectedObjects = []string{table.Name}
			p.Hint = fmt.Sprintf("normalize %s into relational columns and index the aggregated attributes", table.Name)
		}

		applyVolumeGuard(&p, idx, th)
		result.add(p)
	}

	return result
}

// drivenBy keeps the queries whose first table is the given one.
func drivenBy(queries []*models.QueryPattern, table string) []*models.QueryPattern {
	driven := make([]*models.QueryPattern, 0, len(queries))
	for _, q := range queries {
		if len(q.Tables) > 0 && strings.EqualFold(q.Tables[0], table) {
			driven = append(driven, q)
		}
	}
	return driven
}

func buildAccessProfile(table *models.TableMetadata, queries []*models.QueryPattern, children map[string]string, total float64) accessProfile {
	profile := accessProfile{}
	fetched := make(map[string]bool)

	for _, q := range queries {
		if q.Kind.IsWrite() {
			if q.Kind.IsUpdate() && snapshot.WritesTo(q, table.Name) && len(q.UpdatedColumns) >= 2 {
				profile.multiUpdate += q.ExecutionsPerDay
			}
			continue
		}
		if q.SelectsAll {
			profile.selectAll += q.ExecutionsPerDay
		}
		if q.HasAggregates {
			profile.aggregate += q.ExecutionsPerDay
		}
		if len(q.Joins) >= 2 {
			profile.multiJoin += q.ExecutionsPerDay
		}
		coFetched := false
		for _, other := range q.Tables {
			child, ok := children[strings.ToLower(other)]
			if !ok {
				continue
			}
			coFetched = true
			fetched[child] = true
		}
		if coFetched {
			profile.childFetch += q.ExecutionsPerDay
		}
	}

	profile.selectAll /= total
	profile.childFetch /= total
	profile.multiUpdate /= total
	profile.aggregate /= total
	profile.multiJoin /= total

	if len(table.Columns) > 0 {
		nullable := 0
		for _, col := range table.Columns {
			if col.Nullable {
				nullable++
			}
		}
		profile.nullable = float64(nullable) / float64(len(table.Columns))
	}

	for child := range fetched {
		profile.children = append(profile.children, child)
	}
	sort.Strings(profile.children)

	return profile
}

// childTables maps each parent table to the tables holding a foreign key to it.
func childTables(idx *snapshot.Index) map[string]map[string]string {
	children := make(map[string]map[string]string)
	for _, name := range idx.TableNames() {
		table, _ := idx.Table(name)
		for _, fk := range table.ForeignKeys {
			parent := strings.ToLower(fk.ReferencedTable)
			if parent == "" || parent == strings.ToLower(table.Name) {
				continue
			}
			if children[parent] == nil {
				children[parent] = make(map[string]string)
			}
			children[parent][strings.ToLower(table.Name)] = table.Name
		}
	}
	return children
}
