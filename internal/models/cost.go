package models

// Tier is a coarse LOW/MEDIUM/HIGH rating
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// CostAnalysis quantifies what adopting a pattern's remedy would cost and save.
// All time figures are milliseconds of query time per day.
type CostAnalysis struct {
	PatternID            string            `json:"pattern_id"`
	PatternType          PatternType       `json:"pattern_type"`
	Performance          PerformanceImpact `json:"performance"`
	Storage              StorageCost       `json:"storage"`
	Compute              ComputeCost       `json:"compute"`
	Maintenance          MaintenanceBurden `json:"maintenance"`
	NetBenefitScore      float64           `json:"net_benefit_score"`
	ImplementationCostMs float64           `json:"implementation_cost_ms"`
	DailyNetSavingsMs    float64           `json:"daily_net_savings_ms"`
	BreakEvenDays        *float64          `json:"break_even_days"`
}

// PerformanceImpact sums per-query latency deltas scaled by executions/day
type PerformanceImpact struct {
	QueriesImproved   int      `json:"queries_improved"`
	QueriesDegraded   int      `json:"queries_degraded"`
	TimeSavedMsPerDay float64  `json:"time_saved_ms_per_day"`
	TimeCostMsPerDay  float64  `json:"time_cost_ms_per_day"`
	NetTimeMsPerDay   float64  `json:"net_time_ms_per_day"`
	AffectedQueries   []string `json:"affected_queries"`
}

// StorageCost is the extra space the change needs
type StorageCost struct {
	ExtraMB     float64 `json:"extra_mb"`
	IncreasePct float64 `json:"increase_pct"`
}

// ComputeCost is the ongoing CPU the change adds
type ComputeCost struct {
	CPUOverheadPct  float64  `json:"cpu_overhead_pct"`
	ComputeMsPerDay float64  `json:"compute_ms_per_day"`
	MaintenanceOps  []string `json:"maintenance_ops"`
}

// MaintenanceBurden is the operational weight of a change type
type MaintenanceBurden struct {
	Complexity         int     `json:"complexity"`
	AppChangesRequired bool    `json:"app_changes_required"`
	DBAEffortHours     float64 `json:"dba_effort_hours"`
	RollbackComplexity Tier    `json:"rollback_complexity"`
	OperationalRisk    Tier    `json:"operational_risk"`
}

// DegradedFraction is the share of changed queries (improved or degraded)
// that get slower. Affected queries whose cost does not move are not counted.
func (c *CostAnalysis) DegradedFraction() float64 {
	total := c.Performance.QueriesImproved + c.Performance.QueriesDegraded
	if total == 0 {
		return 0
	}
	return float64(c.Performance.QueriesDegraded) / float64(total)
}
