package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports an out-of-range or missing configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Validate checks every threshold, constant and constraint and returns all
// problems joined together. It must pass before any detector runs.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Field: "config", Reason: "is required"}
	}

	var errs []error
	check := func(ok bool, field, reason string) {
		if !ok {
			errs = append(errs, &ConfigError{Field: field, Reason: reason})
		}
	}
	fraction := func(v float64, field string) {
		check(v >= 0 && v <= 1, field, fmt.Sprintf("must be within [0,1], got %g", v))
	}
	positive := func(v float64, field string) {
		check(v > 0, field, fmt.Sprintf("must be > 0, got %g", v))
	}
	nonNegative := func(v float64, field string) {
		check(v >= 0, field, fmt.Sprintf("must be >= 0, got %g", v))
	}

	t := c.Thresholds
	nonNegative(t.MinTotalQueries, "thresholds.min_total_queries")
	nonNegative(t.MinPatternQueryCount, "thresholds.min_pattern_query_count")
	fraction(t.LowVolumeConfidencePenalty, "thresholds.low_volume_confidence_penalty")
	positive(t.LOBLargeValueBytes, "thresholds.lob_large_value_bytes")
	nonNegative(t.LOBHighUpdatesPerDay, "thresholds.lob_high_updates_per_day")
	fraction(t.LOBLowSelectivity, "thresholds.lob_low_selectivity")
	fraction(t.LOBMinRisk, "thresholds.lob_min_risk")
	fraction(t.LOBHighRisk, "thresholds.lob_high_risk")
	check(t.LOBHighRisk >= t.LOBMinRisk, "thresholds.lob_high_risk", "must be >= lob_min_risk")
	check(t.JoinFrequencyPct >= 0 && t.JoinFrequencyPct <= 100, "thresholds.join_frequency_pct", "must be within [0,100]")
	check(t.MaxDenormalizedColumns > 0, "thresholds.max_denormalized_columns", "must be > 0")
	check(t.SmallDimensionRows > 0, "thresholds.small_dimension_rows", "must be > 0")
	nonNegative(t.LowUpdatesPerDay, "thresholds.low_updates_per_day")
	nonNegative(t.HighJoinBenefitMs, "thresholds.high_join_benefit_ms")
	fraction(t.ClassificationMargin, "thresholds.classification_margin")
	fraction(t.HighClassification, "thresholds.high_classification")
	check(t.DualityMinSharePct >= 0 && t.DualityMinSharePct <= 100, "thresholds.duality_min_share_pct", "must be within [0,100]")
	fraction(t.DualityHighScore, "thresholds.duality_high_score")
	nonNegative(t.OLTPLatencyMs, "thresholds.oltp_latency_ms")
	positive(t.AnalyticsLatencyMs, "thresholds.analytics_latency_ms")

	m := c.CostModel
	fraction(m.JoinCostShare, "cost_model.join_cost_share")
	nonNegative(m.RowUpdateCostMs, "cost_model.row_update_cost_ms")
	fraction(m.IndexLikeSavings, "cost_model.index_like_savings")
	fraction(m.LOBRewriteSavings, "cost_model.lob_rewrite_savings")
	fraction(m.NormalizationReadPenalty, "cost_model.normalization_read_penalty")
	fraction(m.WriteOverhead, "cost_model.write_overhead")
	fraction(m.DualityOLTPGain, "cost_model.duality_oltp_gain")
	fraction(m.DualityAnalyticsGain, "cost_model.duality_analytics_gain")
	switch strings.ToLower(m.RefreshStrategy) {
	case RefreshIncremental, RefreshPeriodic:
	default:
		check(false, "cost_model.refresh_strategy", fmt.Sprintf("must be %q or %q, got %q", RefreshIncremental, RefreshPeriodic, m.RefreshStrategy))
	}
	nonNegative(m.RefreshCostPerUpdateMs, "cost_model.refresh_cost_per_update_ms")
	nonNegative(m.FullRefreshCostPerRowMs, "cost_model.full_refresh_cost_per_row_ms")
	nonNegative(m.RefreshesPerDay, "cost_model.refreshes_per_day")
	nonNegative(m.IndexStorageFactor, "cost_model.index_storage_factor")
	fraction(m.DocumentKeyOverhead, "cost_model.document_key_overhead")
	fraction(m.DualityStorageFraction, "cost_model.duality_storage_fraction")
	positive(m.CPUCores, "cost_model.cpu_cores")
	nonNegative(m.StoragePenaltyMsPerMB, "cost_model.storage_penalty_ms_per_mb")
	nonNegative(m.MaintenancePenaltyMsPerPoint, "cost_model.maintenance_penalty_ms_per_point")
	nonNegative(m.ImplementationMsPerEffortHour, "cost_model.implementation_ms_per_effort_hour")

	k := c.Constraints
	check(k.MaxStorageOverheadPct >= 0 && k.MaxStorageOverheadPct <= 100, "constraints.max_storage_overhead_pct", "must be within [0,100]")
	check(k.MaxComputeOverheadPct >= 0 && k.MaxComputeOverheadPct <= 100, "constraints.max_compute_overhead_pct", "must be within [0,100]")
	check(k.MaxMaintenanceComplexity >= 1 && k.MaxMaintenanceComplexity <= 10, "constraints.max_maintenance_complexity", "must be within [1,10]")
	fraction(k.MaxDegradedQueryFraction, "constraints.max_degraded_query_fraction")
	fraction(k.DiminishingReturnsFraction, "constraints.diminishing_returns_fraction")

	if c.Collaborator.Enabled() {
		check(c.Collaborator.Timeout > 0, "collaborator.timeout", "must be > 0")
		check(c.Collaborator.MaxAttempts > 0, "collaborator.max_attempts", "must be > 0")
		nonNegative(c.Collaborator.RateLimit, "collaborator.rate_limit")
	}
	check(c.Concurrency > 0, "concurrency", "must be > 0")

	return errors.Join(errs...)
}
