package cost

import (
	"math"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
)

// impact accumulates per-query deltas. A positive factor is the fraction of
// the query's time saved, a negative one the fraction added.
type impact struct {
	models.PerformanceImpact
}

func (b *impact) apply(q *models.QueryPattern, factor float64) {
	delta := q.DailyCostMs() * factor
	switch {
	case delta > 0:
		b.QueriesImproved++
		b.TimeSavedMsPerDay += delta
	case delta < 0:
		b.QueriesDegraded++
		b.TimeCostMsPerDay -= delta
	}
}

// queries returns the workload queries touching any affected table, in workload order.
func (e *estimator) queries() []*models.QueryPattern {
	var touched []*models.QueryPattern
	for _, q := range e.idx.Queries() {
		for _, table := range e.tables {
			if q.Touches(table.Name) {
				touched = append(touched, q)
				break
			}
		}
	}
	return touched
}

func (e *estimator) newImpact() (*impact, []*models.QueryPattern) {
	queries := e.queries()
	b := &impact{}
	b.AffectedQueries = make([]string, 0, len(queries))
	for _, q := range queries {
		b.AffectedQueries = append(b.AffectedQueries, q.ID)
	}
	return b, queries
}

func lobPerformance(e *estimator) models.PerformanceImpact {
	cm := e.cfg.CostModel
	column := models.ColumnOf(e.pattern.AffectedObjects[0])
	b, queries := e.newImpact()
	for _, q := range queries {
		if !snapshot.WritesTo(q, e.primary.Name) {
			continue
		}
		switch {
		case q.Kind.IsUpdate() && q.SetsColumn(column):
			b.apply(q, cm.LOBRewriteSavings)
		case q.Kind == models.KindInsert:
			b.apply(q, -cm.WriteOverhead)
		}
	}
	return b.PerformanceImpact
}

func relationalPerformance(e *estimator) models.PerformanceImpact {
	cm := e.cfg.CostModel
	b, queries := e.newImpact()
	for _, q := range queries {
		if q.Kind.IsWrite() {
			continue
		}
		switch {
		case q.HasAggregates || len(q.Joins) >= 2:
			b.apply(q, cm.IndexLikeSavings)
		case q.SelectsAll:
			b.apply(q, -cm.NormalizationReadPenalty)
		}
	}
	return b.PerformanceImpact
}

func joinPerformance(e *estimator) models.PerformanceImpact {
	cm := e.cfg.CostModel
	b, queries := e.newImpact()
	if len(e.tables) < 2 {
		return b.PerformanceImpact
	}
	fact, dim := e.tables[0].Name, e.tables[1].Name
	for _, q := range queries {
		switch {
		case snapshot.WritesTo(q, dim):
			b.apply(q, -cm.WriteOverhead)
		case !q.Kind.IsWrite() && q.HasJoin(fact, dim):
			b.apply(q, cm.JoinCostShare/math.Max(1, float64(len(q.Joins))))
		}
	}
	return b.PerformanceImpact
}

func documentPerformance(e *estimator) models.PerformanceImpact {
	cm := e.cfg.CostModel
	children := e.tables[1:]
	b, queries := e.newImpact()
	for _, q := range queries {
		if q.Kind.IsWrite() {
			for _, child := range children {
				if snapshot.WritesTo(q, child.Name) {
					b.apply(q, -cm.WriteOverhead)
					break
				}
			}
			continue
		}
		if !q.Touches(e.primary.Name) {
			continue
		}
		switch {
		case q.HasAggregates:
			b.apply(q, -cm.NormalizationReadPenalty)
		case touchesAny(q, children):
			b.apply(q, cm.JoinCostShare)
		}
	}
	return b.PerformanceImpact
}

func dualityPerformance(e *estimator) models.PerformanceImpact {
	th := e.cfg.Thresholds
	cm := e.cfg.CostModel
	b, queries := e.newImpact()
	for _, q := range queries {
		if q.Kind.IsWrite() {
			if snapshot.WritesTo(q, e.primary.Name) {
				b.apply(q, -cm.WriteOverhead)
			}
			continue
		}
		switch q.Access(th.OLTPLatencyMs, th.AnalyticsLatencyMs) {
		case models.AccessOLTP:
			b.apply(q, cm.DualityOLTPGain)
		case models.AccessAnalytics:
			b.apply(q, cm.DualityAnalyticsGain)
		}
	}
	return b.PerformanceImpact
}

func touchesAny(q *models.QueryPattern, tables []*models.TableMetadata) bool {
	for _, table := range tables {
		if q.Touches(table.Name) {
			return true
		}
	}
	return false
}
