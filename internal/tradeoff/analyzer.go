package tradeoff

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
	"gonum.org/v1/gonum/stat"
)

// Frequency multipliers by percentile band of affected-query executions
const (
	multiplierP90 = 10
	multiplierP70 = 5
	multiplierP50 = 2
	multiplierLow = 1
)

// Analyzer runs the four tradeoff passes over a complete candidate set
type Analyzer struct {
	cfg     *config.Config
	queries []*models.QueryPattern
}

// New creates an analyzer for one workload.
func New(cfg *config.Config, queries []*models.QueryPattern) *Analyzer {
	return &Analyzer{cfg: cfg, queries: queries}
}

// Analyze weights, deconflicts, gates and ranks the candidates. Accepted
// recommendations come first by priority (ties by ID), rejected ones after
// sorted by ID.
func (a *Analyzer) Analyze(candidates []models.Candidate) []models.PrioritizedRecommendation {
	recs := make([]*models.PrioritizedRecommendation, 0, len(candidates))
	for _, c := range candidates {
		recs = append(recs, &models.PrioritizedRecommendation{
			Pattern:        c.Pattern,
			Cost:           c.Cost,
			Conflicts:      []models.Conflict{},
			ConflictingIDs: []string{},
			Tradeoffs:      costTradeoffs(c.Cost),
			Decision:       models.Decision{Accepted: true},
		})
	}

	a.weightByFrequency(recs)
	a.resolveConflicts(recs)
	a.applyThresholds(recs)
	a.flattenDiminishingReturns(recs)

	accepted := make([]*models.PrioritizedRecommendation, 0, len(recs))
	rejected := make([]*models.PrioritizedRecommendation, 0)
	for _, rec := range recs {
		if rec.Decision.Accepted {
			accepted = append(accepted, rec)
		} else {
			rejected = append(rejected, rec)
		}
	}
	sortByPriority(accepted)
	sort.SliceStable(rejected, func(i, j int) bool {
		return rejected[i].Pattern.ID < rejected[j].Pattern.ID
	})

	out := make([]models.PrioritizedRecommendation, 0, len(recs))
	for _, rec := range accepted {
		out = append(out, *rec)
	}
	for _, rec := range rejected {
		out = append(out, *rec)
	}

	slog.Debug("tradeoff analysis complete",
		slog.Int("accepted", len(accepted)),
		slog.Int("rejected", len(rejected)),
	)
	return out
}

// weightByFrequency scales net benefit by how hot the affected queries are
// relative to the p50/p70/p90 execution counts of the whole workload.
func (a *Analyzer) weightByFrequency(recs []*models.PrioritizedRecommendation) {
	executions := make(map[string]float64, len(a.queries))
	values := make([]float64, 0, len(a.queries))
	for _, q := range a.queries {
		executions[q.ID] = q.ExecutionsPerDay
		values = append(values, q.ExecutionsPerDay)
	}
	sort.Float64s(values)

	var p50, p70, p90 float64
	if len(values) > 0 {
		p50 = stat.Quantile(0.50, stat.Empirical, values, nil)
		p70 = stat.Quantile(0.70, stat.Empirical, values, nil)
		p90 = stat.Quantile(0.90, stat.Empirical, values, nil)
	}

	for _, rec := range recs {
		volume := 0.0
		for _, id := range rec.Cost.Performance.AffectedQueries {
			volume += executions[id]
		}

		multiplier := float64(multiplierLow)
		switch {
		case len(values) == 0 || volume <= 0:
		case volume >= p90:
			multiplier = multiplierP90
		case volume >= p70:
			multiplier = multiplierP70
		case volume >= p50:
			multiplier = multiplierP50
		}

		rec.FrequencyMultiplier = multiplier
		rec.PriorityScore = rec.Cost.NetBenefitScore * multiplier
		rec.BasePriorityScore = rec.PriorityScore
	}
}

// resolveConflicts walks candidates from highest priority down. A
// mutually exclusive or redundant candidate loses to every earlier one it
// conflicts with; cascading pairs only get a note.
func (a *Analyzer) resolveConflicts(recs []*models.PrioritizedRecommendation) {
	ordered := append([]*models.PrioritizedRecommendation(nil), recs...)
	sortByPriority(ordered)

	for i, winner := range ordered {
		if !winner.Decision.Accepted {
			continue
		}
		for _, other := range ordered[i+1:] {
			if !other.Decision.Accepted {
				continue
			}
			conflict, shared, ok := classifyConflict(&winner.Pattern, &other.Pattern)
			if !ok {
				continue
			}

			recordConflict(winner, other.Pattern.ID, conflict)
			recordConflict(other, winner.Pattern.ID, conflict)

			if conflict == models.ConflictCascading {
				note := "cascading with %s on %s: one change may reduce the other's benefit"
				winner.Tradeoffs = append(winner.Tradeoffs, fmt.Sprintf(note, other.Pattern.ID, strings.Join(shared, ", ")))
				other.Tradeoffs = append(other.Tradeoffs, fmt.Sprintf(note, winner.Pattern.ID, strings.Join(shared, ", ")))
				continue
			}

			reason := "lower priority"
			if other.PriorityScore == winner.PriorityScore {
				reason = "equal priority, tie broken by id"
			}
			other.Decision = models.Decision{
				Accepted: false,
				Rationale: fmt.Sprintf("%s with %s (%s) on %s: %s",
					conflict, winner.Pattern.ID, winner.Pattern.Type, strings.Join(shared, ", "), reason),
			}
		}
	}
}

// applyThresholds rejects survivors that break a configured constraint.
func (a *Analyzer) applyThresholds(recs []*models.PrioritizedRecommendation) {
	limits := a.cfg.Constraints
	for _, rec := range recs {
		if !rec.Decision.Accepted {
			continue
		}
		c := rec.Cost

		var reasons []string
		if c.NetBenefitScore < limits.MinNetBenefit {
			reasons = append(reasons, fmt.Sprintf("net benefit %.1f ms/day is below the minimum %.1f", c.NetBenefitScore, limits.MinNetBenefit))
		}
		if c.Storage.IncreasePct > limits.MaxStorageOverheadPct {
			reasons = append(reasons, fmt.Sprintf("storage overhead %.1f%% exceeds %.1f%%", c.Storage.IncreasePct, limits.MaxStorageOverheadPct))
		}
		if c.Compute.CPUOverheadPct > limits.MaxComputeOverheadPct {
			reasons = append(reasons, fmt.Sprintf("compute overhead %.2f%% exceeds %.2f%%", c.Compute.CPUOverheadPct, limits.MaxComputeOverheadPct))
		}
		if c.Maintenance.Complexity > limits.MaxMaintenanceComplexity {
			reasons = append(reasons, fmt.Sprintf("maintenance complexity %d exceeds %d", c.Maintenance.Complexity, limits.MaxMaintenanceComplexity))
		}
		if degraded := c.DegradedFraction(); degraded > limits.MaxDegradedQueryFraction {
			reasons = append(reasons, fmt.Sprintf("%.0f%% of changed queries degrade, limit is %.0f%%", degraded*100, limits.MaxDegradedQueryFraction*100))
		}

		if len(reasons) > 0 {
			rec.Decision = models.Decision{Accepted: false, Rationale: "rejected: " + strings.Join(reasons, "; ")}
			continue
		}
		rec.Decision.Rationale = fmt.Sprintf("accepted: net benefit %.1f ms/day at %gx frequency weight", c.NetBenefitScore, rec.FrequencyMultiplier)
	}
}

// flattenDiminishingReturns halves the priority of accepted candidates whose
// net benefit is a small fraction of the top candidate's. They stay accepted.
func (a *Analyzer) flattenDiminishingReturns(recs []*models.PrioritizedRecommendation) {
	accepted := make([]*models.PrioritizedRecommendation, 0, len(recs))
	for _, rec := range recs {
		if rec.Decision.Accepted {
			accepted = append(accepted, rec)
		}
	}
	if len(accepted) < 2 {
		return
	}
	sortByPriority(accepted)

	top := accepted[0]
	if top.Cost.NetBenefitScore <= 0 {
		return
	}
	cutoff := top.Cost.NetBenefitScore * a.cfg.Constraints.DiminishingReturnsFraction
	for _, rec := range accepted[1:] {
		if rec.Cost.NetBenefitScore >= cutoff || rec.PriorityScore <= 0 {
			continue
		}
		rec.PriorityScore /= 2
		rec.Tradeoffs = append(rec.Tradeoffs, fmt.Sprintf(
			"low incremental value: net benefit %.1f ms/day is under %.0f%% of the top recommendation %s",
			rec.Cost.NetBenefitScore, a.cfg.Constraints.DiminishingReturnsFraction*100, top.Pattern.ID))
	}
}

func recordConflict(rec *models.PrioritizedRecommendation, otherID string, conflict models.ConflictType) {
	rec.Conflicts = append(rec.Conflicts, models.Conflict{PatternID: otherID, Type: conflict})
	rec.ConflictingIDs = append(rec.ConflictingIDs, otherID)
}

func costTradeoffs(c models.CostAnalysis) []string {
	notes := []string{}
	if c.Performance.QueriesDegraded > 0 {
		notes = append(notes, fmt.Sprintf("slows %d queries by %.1f ms/day in total", c.Performance.QueriesDegraded, c.Performance.TimeCostMsPerDay))
	}
	if c.Storage.ExtraMB > 0 {
		notes = append(notes, fmt.Sprintf("needs %.1f MB more storage (+%.1f%%)", c.Storage.ExtraMB, c.Storage.IncreasePct))
	}
	if c.Maintenance.AppChangesRequired {
		notes = append(notes, "requires application changes")
	}
	return notes
}

func sortByPriority(recs []*models.PrioritizedRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].PriorityScore != recs[j].PriorityScore {
			return recs[i].PriorityScore > recs[j].PriorityScore
		}
		return recs[i].Pattern.ID < recs[j].Pattern.ID
	})
}
