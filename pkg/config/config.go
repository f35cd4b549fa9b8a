package config

import "time"

// Refresh strategies for duality views
const (
	RefreshIncremental = "incremental"
	RefreshPeriodic    = "periodic"
)

// Config holds all runtime configuration
type Config struct {
	Thresholds   Thresholds
	CostModel    CostModel
	Constraints  Constraints
	Collaborator Collaborator

	// Table filters
	ExcludeTables []string

	// Concurrency settings
	Concurrency int

	// Output settings
	OutputDir      string
	Format         string
	BaselinePath   string
	UpdateBaseline bool

	// Operational flags
	Verbose bool
	DryRun  bool
}

// Thresholds drive the pattern detectors.
type Thresholds struct {
	// Volume guard
	MinTotalQueries            float64 `yaml:"min_total_queries"`
	MinPatternQueryCount       float64 `yaml:"min_pattern_query_count"`
	LowVolumeConfidencePenalty float64 `yaml:"low_volume_confidence_penalty"`

	// LOB cliff
	LOBLargeValueBytes   float64 `yaml:"lob_large_value_bytes"`
	LOBHighUpdatesPerDay float64 `yaml:"lob_high_updates_per_day"`
	LOBLowSelectivity    float64 `yaml:"lob_low_selectivity"`
	LOBMinRisk           float64 `yaml:"lob_min_risk"`
	LOBHighRisk          float64 `yaml:"lob_high_risk"`

	// Join dimension
	JoinFrequencyPct       float64 `yaml:"join_frequency_pct"`
	MaxDenormalizedColumns int     `yaml:"max_denormalized_columns"`
	SmallDimensionRows     int64   `yaml:"small_dimension_rows"`
	LowUpdatesPerDay       float64 `yaml:"low_updates_per_day"`
	HighJoinBenefitMs      float64 `yaml:"high_join_benefit_ms"`

	// Document vs relational
	ClassificationMargin float64 `yaml:"classification_margin"`
	HighClassification   float64 `yaml:"high_classification"`

	// Duality
	DualityMinSharePct float64 `yaml:"duality_min_share_pct"`
	DualityHighScore   float64 `yaml:"duality_high_score"`
	OLTPLatencyMs      float64 `yaml:"oltp_latency_ms"`
	AnalyticsLatencyMs float64 `yaml:"analytics_latency_ms"`
}

// CostModel holds the constants used to turn workload numbers into cost.
// Every figure resolves to milliseconds of query time per day.
type CostModel struct {
	JoinCostShare            float64 `yaml:"join_cost_share"`    // fraction of a joining query's latency spent in the join
	RowUpdateCostMs          float64 `yaml:"row_update_cost_ms"` // cost of rewriting one denormalized row
	IndexLikeSavings         float64 `yaml:"index_like_savings"`
	LOBRewriteSavings        float64 `yaml:"lob_rewrite_savings"`
	NormalizationReadPenalty float64 `yaml:"normalization_read_penalty"`
	WriteOverhead            float64 `yaml:"write_overhead"`
	DualityOLTPGain          float64 `yaml:"duality_oltp_gain"`
	DualityAnalyticsGain     float64 `yaml:"duality_analytics_gain"`

	RefreshStrategy         string  `yaml:"refresh_strategy"`
	RefreshCostPerUpdateMs  float64 `yaml:"refresh_cost_per_update_ms"`
	FullRefreshCostPerRowMs float64 `yaml:"full_refresh_cost_per_row_ms"`
	RefreshesPerDay         float64 `yaml:"refreshes_per_day"`

	IndexStorageFactor     float64 `yaml:"index_storage_factor"`  // 1.2 in the index sizing formula
	DocumentKeyOverhead    float64 `yaml:"document_key_overhead"` // share of a row spent on embedded keys once stored as a document
	DualityStorageFraction float64 `yaml:"duality_storage_fraction"`

	CPUCores                      float64 `yaml:"cpu_cores"`
	StoragePenaltyMsPerMB         float64 `yaml:"storage_penalty_ms_per_mb"`
	MaintenancePenaltyMsPerPoint  float64 `yaml:"maintenance_penalty_ms_per_point"`
	ImplementationMsPerEffortHour float64 `yaml:"implementation_ms_per_effort_hour"`
}

// Constraints gate which candidates may be accepted.
type Constraints struct {
	MinNetBenefit              float64 `yaml:"min_net_benefit"`
	MaxStorageOverheadPct      float64 `yaml:"max_storage_overhead_pct"`
	MaxComputeOverheadPct      float64 `yaml:"max_compute_overhead_pct"`
	MaxMaintenanceComplexity   int     `yaml:"max_maintenance_complexity"`
	MaxDegradedQueryFraction   float64 `yaml:"max_degraded_query_fraction"`
	DiminishingReturnsFraction float64 `yaml:"diminishing_returns_fraction"`
}

// Collaborator configures the optional rationale/SQL generation service.
type Collaborator struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	RateLimit   float64 // requests per second
}

// Enabled reports whether a collaborator endpoint was configured.
func (c Collaborator) Enabled() bool {
	return c.BaseURL != ""
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Thresholds: Thresholds{
			MinTotalQueries:            100,
			MinPatternQueryCount:       10,
			LowVolumeConfidencePenalty: 0.3,

			LOBLargeValueBytes:   4096,
			LOBHighUpdatesPerDay: 100,
			LOBLowSelectivity:    0.10,
			LOBMinRisk:           0.6,
			LOBHighRisk:          0.8,

			JoinFrequencyPct:       10,
			MaxDenormalizedColumns: 5,
			SmallDimensionRows:     1_000_000,
			LowUpdatesPerDay:       100,
			HighJoinBenefitMs:      10_000,

			ClassificationMargin: 0.3,
			HighClassification:   0.6,

			DualityMinSharePct: 10,
			DualityHighScore:   0.3,
			OLTPLatencyMs:      10,
			AnalyticsLatencyMs: 100,
		},
		CostModel: CostModel{
			JoinCostShare:            0.4,
			RowUpdateCostMs:          0.05,
			IndexLikeSavings:         0.5,
			LOBRewriteSavings:        0.7,
			NormalizationReadPenalty: 0.2,
			WriteOverhead:            0.1,
			DualityOLTPGain:          0.2,
			DualityAnalyticsGain:     0.3,

			RefreshStrategy:         RefreshIncremental,
			RefreshCostPerUpdateMs:  0.5,
			FullRefreshCostPerRowMs: 0.001,
			RefreshesPerDay:         24,

			IndexStorageFactor:     1.2,
			DocumentKeyOverhead:    0.25,
			DualityStorageFraction: 0.15,

			CPUCores:                      8,
			StoragePenaltyMsPerMB:         1,
			MaintenancePenaltyMsPerPoint:  100,
			ImplementationMsPerEffortHour: 360_000,
		},
		Constraints: Constraints{
			MinNetBenefit:              0,
			MaxStorageOverheadPct:      50,
			MaxComputeOverheadPct:      20,
			MaxMaintenanceComplexity:   8,
			MaxDegradedQueryFraction:   0.3,
			DiminishingReturnsFraction: 0.05,
		},
		Collaborator: Collaborator{
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
			Backoff:     200 * time.Millisecond,
			RateLimit:   5,
		},
		ExcludeTables: []string{},
		Concurrency:   5,
		OutputDir:     "./report",
		Format:        "json",
		Verbose:       false,
		DryRun:        false,
	}
}
