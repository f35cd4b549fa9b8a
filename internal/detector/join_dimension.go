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

const (
	stageJoinDimension = "join_dimension"

	maxJoinConfidence = 0.95
)

// joinStats aggregates every query that uses one fact→dimension join
type joinStats struct {
	fact, dimension     string
	executionsPerDay    float64
	joinCostSavedMs     float64
	columns             map[string]string // lower-case name → first spelling seen
	supportingSnapshots float64
}

// DetectJoinDimension finds frequent joins to small or rarely updated
// dimension tables where copying the fetched columns into the fact table
// saves more query time than keeping the copies in sync costs.
func DetectJoinDimension(idx *snapshot.Index, cfg *config.Config) Result {
	result := Result{}
	th := cfg.Thresholds

	total := idx.TotalExecutionsPerDay()
	if total <= 0 {
		result.notEvaluable(stageJoinDimension, "", "workload has zero total executions")
		return result
	}

	for _, stats := range buildJoinTable(idx, cfg.CostModel) {
		object := stats.fact + "→" + stats.dimension
		pct := stats.executionsPerDay / total * 100
		if pct < th.JoinFrequencyPct {
			continue
		}
		if idx.IsExcluded(stats.fact) || idx.IsExcluded(stats.dimension) {
			continue
		}
		if len(stats.columns) > th.MaxDenormalizedColumns {
			continue
		}

		fact, ok := idx.Table(stats.fact)
		if !ok {
			result.dataError(stageJoinDimension, object, fmt.Sprintf("no metadata for fact table %s", stats.fact))
			continue
		}
		dim, ok := idx.Table(stats.dimension)
		if !ok {
			result.dataError(stageJoinDimension, object, fmt.Sprintf("no metadata for dimension table %s", stats.dimension))
			continue
		}
		if dim.RowCount >= th.SmallDimensionRows && dim.UpdatesPerDay >= th.LowUpdatesPerDay {
			continue
		}
		if dim.RowCount == 0 {
			result.notEvaluable(stageJoinDimension, object, "dimension table has zero rows")
			continue
		}

		rowsPerDimension := float64(fact.RowCount) / float64(dim.RowCount)
		propagation := dim.UpdatesPerDay * rowsPerDimension * cfg.CostModel.RowUpdateCostMs
		net := stats.joinCostSavedMs - propagation
		if net <= 0 || math.IsNaN(net) {
			continue
		}

		severity := models.SeverityMedium
		if net > th.HighJoinBenefitMs {
			severity = models.SeverityHigh
		}

		columns := sortedColumns(stats.columns)
		objects := []string{fact.Name, dim.Name}
		for _, column := range columns {
			objects = append(objects, models.ColumnObject(dim.Name, column))
		}

		p := models.DetectedPattern{
			Type:            models.PatternExpensiveJoin,
			Severity:        severity,
			Confidence:      math.Min(pct/100, maxJoinConfidence),
			AffectedObjects: objects,
			Metrics: map[string]float64{
				"join_frequency_pct":                 pct,
				"join_executions_per_day":            stats.executionsPerDay,
				"join_cost_saved_ms_per_day":         stats.joinCostSavedMs,
				"update_propagation_cost_ms_per_day": propagation,
				"net_benefit_ms_per_day":             net,
				"fetched_columns":                    float64(len(columns)),
				"dimension_rows":                     float64(dim.RowCount),
				"dimension_updates_per_day":          dim.UpdatesPerDay,
				"fact_rows_per_dimension_row":        rowsPerDimension,
			},
			Hint: fmt.Sprintf("copy %s columns [%s] into %s to remove the join",
				dim.Name, strings.Join(columns, ", "), fact.Name),
			SupportingExecutions: stats.supportingSnapshots,
		}
		applyVolumeGuard(&p, idx, th)
		result.add(p)
	}

	return result
}

// buildJoinTable keys join usage by (fact, dimension) and returns it in key
// order. Self-joins have nothing to denormalize and are skipped.
func buildJoinTable(idx *snapshot.Index, cm config.CostModel) []*joinStats {
	table := make(map[string]*joinStats)
	for _, q := range idx.Queries() {
		if len(q.Joins) == 0 {
			continue
		}
		share := cm.JoinCostShare / math.Max(1, float64(len(q.Joins)))

		counted := make(map[string]bool, len(q.Joins))
		for _, join := range q.Joins {
			left, right := strings.ToLower(join.LeftTable), strings.ToLower(join.RightTable)
			if left == "" || right == "" || left == right {
				continue
			}
			k := left + "|" + right
			stats, ok := table[k]
			if !ok {
				stats = &joinStats{
					fact:      join.LeftTable,
					dimension: join.RightTable,
					columns:   make(map[string]string),
				}
				table[k] = stats
			}
			if counted[k] {
				continue
			}
			counted[k] = true
			stats.joinCostSavedMs += q.ExecutionsPerDay * q.AvgLatencyMs * share
			stats.executionsPerDay += q.ExecutionsPerDay
			stats.supportingSnapshots += idx.SnapshotExecutions(q.ExecutionsPerDay)
			for projected, columns := range q.ProjectedColumns {
				if !strings.EqualFold(projected, join.RightTable) {
					continue
				}
				for _, column := range columns {
					lower := strings.ToLower(column)
					if _, seen := stats.columns[lower]; !seen {
						stats.columns[lower] = column
					}
				}
			}
		}
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]*joinStats, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, table[k])
	}
	return ordered
}

func sortedColumns(columns map[string]string) []string {
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, columns[k])
	}
	return names
}
