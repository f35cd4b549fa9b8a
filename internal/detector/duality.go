package detector

import (
	"fmt"
	"math"

	"github.com/ppiankov/schemaspectre/internal/cost"
	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

const stageDuality = "duality"

// DetectDuality finds tables read heavily both as single objects and as
// aggregated relational data, where a dual-representation view pays off.
func DetectDuality(idx *snapshot.Index, cfg *config.Config) Result {
	result := Result{}
	th := cfg.Thresholds
	cm := cfg.CostModel

	for _, name := range idx.TableNames() {
		table, _ := idx.Table(name)
		queries := idx.QueriesFor(name)
		if len(queries) == 0 {
			continue
		}
		total := executionsPerDay(queries, nil)
		if total <= 0 {
			result.notEvaluable(stageDuality, table.Name, "table has zero executions")
			continue
		}

		var oltpExec, analyticsExec, oltpBenefit, analyticsBenefit float64
		for _, q := range queries {
			switch q.Access(th.OLTPLatencyMs, th.AnalyticsLatencyMs) {
			case models.AccessOLTP:
				oltpExec += q.ExecutionsPerDay
				if !q.Kind.IsWrite() {
					oltpBenefit += q.DailyCostMs() * cm.DualityOLTPGain
				}
			case models.AccessAnalytics:
				analyticsExec += q.ExecutionsPerDay
				analyticsBenefit += q.DailyCostMs() * cm.DualityAnalyticsGain
			}
		}

		oltpPct := oltpExec / total * 100
		analyticsPct := analyticsExec / total * 100
		if oltpPct < th.DualityMinSharePct || analyticsPct < th.DualityMinSharePct {
			continue
		}

		refresh := cost.RefreshCostMsPerDay(idx.WritesPerDay(table.Name), table.RowCount, cm)
		net := oltpBenefit + analyticsBenefit - refresh
		if net <= 0 || math.IsNaN(net) {
			continue
		}

		score := math.Min(oltpPct, analyticsPct) / 100
		severity := models.SeverityMedium
		if score > th.DualityHighScore {
			severity = models.SeverityHigh
		}

		p := models.DetectedPattern{
			Type:            models.PatternDualityOpportunity,
			Severity:        severity,
			Confidence:      math.Min(1, 2*score),
			AffectedObjects: []string{table.Name},
			Metrics: map[string]float64{
				"duality_score":               score,
				"oltp_percentage":             oltpPct,
				"analytics_percentage":        analyticsPct,
				"oltp_access_benefit_ms":      oltpBenefit,
				"analytics_access_benefit_ms": analyticsBenefit,
				"refresh_overhead_ms_per_day": refresh,
				"net_benefit_ms_per_day":      net,
				"executions_per_day":          total,
			},
			Hint:                 fmt.Sprintf("serve %s through a duality view with %s refresh", table.Name, cm.RefreshStrategy),
			SupportingExecutions: idx.SnapshotExecutions(total),
		}
		applyVolumeGuard(&p, idx, th)
		result.add(p)
	}

	return result
}
