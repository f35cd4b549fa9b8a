package cost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/pkg/config"
	"golang.org/x/sync/errgroup"
)

const (
	stage = "cost"

	bytesPerMB  = 1024 * 1024
	msPerDay    = 24 * 60 * 60 * 1000
	pctMultiple = 100
)

var (
	// ErrNoStrategy is returned for a pattern type without a registered calculator.
	ErrNoStrategy = errors.New("no cost strategy for pattern type")
	// ErrMissingMetadata is returned when a pattern refers to a table the schema lacks.
	ErrMissingMetadata = errors.New("table metadata missing")
	// ErrNotFinite is returned when a calculation yields NaN or an infinity.
	ErrNotFinite = errors.New("cost is not a finite number")
)

// strategy computes the type-specific parts of a cost analysis
type strategy struct {
	performance func(e *estimator) models.PerformanceImpact
	storage     func(e *estimator) float64 // extra bytes
	compute     func(e *estimator) models.ComputeCost
}

// strategies dispatches by pattern type; every models.PatternType has an entry
var strategies = map[models.PatternType]strategy{
	models.PatternLOBCliff: {
		performance: lobPerformance,
		storage:     indexStorage,
		compute:     lobCompute,
	},
	models.PatternRelationalCandidate: {
		performance: relationalPerformance,
		storage:     indexStorage,
		compute:     relationalCompute,
	},
	models.PatternExpensiveJoin: {
		performance: joinPerformance,
		storage:     joinStorage,
		compute:     joinCompute,
	},
	models.PatternDocumentCandidate: {
		performance: documentPerformance,
		storage:     documentStorage,
		compute:     documentCompute,
	},
	models.PatternDualityOpportunity: {
		performance: dualityPerformance,
		storage:     dualityStorage,
		compute:     dualityCompute,
	},
}

// estimator carries the inputs shared by every strategy function
type estimator struct {
	pattern *models.DetectedPattern
	idx     *snapshot.Index
	cfg     *config.Config
	primary *models.TableMetadata
	tables  []*models.TableMetadata // affected tables in affected-object order
}

// Calculate produces the cost analysis for one pattern.
func Calculate(p *models.DetectedPattern, idx *snapshot.Index, cfg *config.Config) (models.CostAnalysis, error) {
	s, ok := strategies[p.Type]
	if !ok {
		return models.CostAnalysis{}, fmt.Errorf("%w %q", ErrNoStrategy, p.Type)
	}
	maintenance, ok := maintenanceTable[p.Type]
	if !ok {
		return models.CostAnalysis{}, fmt.Errorf("%w %q", ErrNoStrategy, p.Type)
	}

	e := &estimator{pattern: p, idx: idx, cfg: cfg}
	for _, name := range p.AffectedTables() {
		table, ok := idx.Table(name)
		if !ok {
			return models.CostAnalysis{}, fmt.Errorf("%w: %s", ErrMissingMetadata, name)
		}
		e.tables = append(e.tables, table)
	}
	if len(e.tables) == 0 {
		return models.CostAnalysis{}, fmt.Errorf("%w: pattern has no affected tables", ErrMissingMetadata)
	}
	e.primary = e.tables[0]

	cm := cfg.CostModel
	analysis := models.CostAnalysis{
		PatternID:   p.ID,
		PatternType: p.Type,
		Performance: s.performance(e),
		Compute:     s.compute(e),
		Maintenance: maintenance,
	}
	analysis.Performance.NetTimeMsPerDay = analysis.Performance.TimeSavedMsPerDay - analysis.Performance.TimeCostMsPerDay
	analysis.Compute.CPUOverheadPct = models.ClampPct(analysis.Compute.ComputeMsPerDay / (msPerDay * cm.CPUCores) * pctMultiple)

	extraBytes := s.storage(e)
	analysis.Storage = models.StorageCost{
		ExtraMB:     extraBytes / bytesPerMB,
		IncreasePct: increasePct(extraBytes, e.primary.SizeBytes()),
	}

	analysis.DailyNetSavingsMs = analysis.Performance.NetTimeMsPerDay - analysis.Compute.ComputeMsPerDay
	analysis.NetBenefitScore = analysis.DailyNetSavingsMs -
		analysis.Storage.ExtraMB*cm.StoragePenaltyMsPerMB -
		float64(maintenance.Complexity)*cm.MaintenancePenaltyMsPerPoint
	analysis.ImplementationCostMs = maintenance.DBAEffortHours * cm.ImplementationMsPerEffortHour
	if analysis.DailyNetSavingsMs > 0 {
		days := analysis.ImplementationCostMs / analysis.DailyNetSavingsMs
		analysis.BreakEvenDays = &days
	}

	for _, v := range []float64{
		analysis.NetBenefitScore,
		analysis.ImplementationCostMs,
		analysis.Storage.ExtraMB,
		analysis.Compute.ComputeMsPerDay,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.CostAnalysis{}, fmt.Errorf("%w for pattern %s", ErrNotFinite, p.ID)
		}
	}

	return analysis, nil
}

// CalculateAll costs every pattern concurrently. Patterns that cannot be
// costed are dropped with a diagnostic; the rest keep their input order.
func CalculateAll(ctx context.Context, patterns []models.DetectedPattern, idx *snapshot.Index, cfg *config.Config) ([]models.Candidate, []models.Diagnostic, error) {
	analyses := make([]models.CostAnalysis, len(patterns))
	errs := make([]error, len(patterns))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Concurrency > 0 {
		g.SetLimit(cfg.Concurrency)
	}
	for i := range patterns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analyses[i], errs[i] = Calculate(&patterns[i], idx, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	candidates := make([]models.Candidate, 0, len(patterns))
	diagnostics := []models.Diagnostic{}
	for i, err := range errs {
		if err != nil {
			kind := models.DiagComputationError
			if errors.Is(err, ErrMissingMetadata) {
				kind = models.DiagDataError
			}
			diagnostics = append(diagnostics, models.Diagnostic{
				Stage:  stage,
				Kind:   kind,
				Object: patterns[i].ID,
				Reason: err.Error(),
			})
			continue
		}
		candidates = append(candidates, models.Candidate{Pattern: patterns[i], Cost: analyses[i]})
	}

	slog.Debug("cost analysis complete",
		slog.Int("candidates", len(candidates)),
		slog.Int("skipped", len(diagnostics)),
	)

	return candidates, diagnostics, nil
}

// RefreshCostMsPerDay is the daily cost of keeping a duality view current.
// Incremental refresh scales with the write rate, periodic full refresh with
// table size times refreshes per day.
func RefreshCostMsPerDay(writesPerDay float64, rows int64, cm config.CostModel) float64 {
	if strings.EqualFold(strings.TrimSpace(cm.RefreshStrategy), config.RefreshPeriodic) {
		return float64(rows) * cm.FullRefreshCostPerRowMs * cm.RefreshesPerDay
	}
	return writesPerDay * cm.RefreshCostPerUpdateMs
}

func increasePct(extraBytes, baseBytes float64) float64 {
	if extraBytes <= 0 {
		return 0
	}
	if baseBytes <= 0 {
		return pctMultiple
	}
	return models.ClampPct(extraBytes / baseBytes * pctMultiple)
}
