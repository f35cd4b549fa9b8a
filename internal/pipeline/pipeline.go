package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/schemaspectre/internal/assembler"
	"github.com/ppiankov/schemaspectre/internal/cost"
	"github.com/ppiankov/schemaspectre/internal/detector"
	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/internal/tradeoff"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

// Result holds the output of every stage of one run
type Result struct {
	Patterns        []models.DetectedPattern
	Candidates      []models.Candidate
	Prioritized     []models.PrioritizedRecommendation
	Recommendations []models.FinalRecommendation
	Diagnostics     []models.Diagnostic
	Stats           Stats
}

// Stats summarizes the analyzed snapshot
type Stats struct {
	SnapshotHours   float64
	QueriesAnalyzed int
	TablesAnalyzed  int
	TotalExecutions float64
	Duration        time.Duration
}

// Run analyzes one workload/schema snapshot pair. Config problems fail fast
// before anything else runs. After that only cancellation of ctx produces an
// error; bad input degrades into diagnostics.
func Run(
	ctx context.Context,
	workload *models.WorkloadSnapshot,
	schema *models.SchemaSnapshot,
	cfg *config.Config,
	gen assembler.Generator,
) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	idx := snapshot.Build(workload, schema, cfg)
	result := &Result{
		Diagnostics: append([]models.Diagnostic{}, idx.Diagnostics()...),
		Stats: Stats{
			SnapshotHours:   idx.SnapshotHours,
			QueriesAnalyzed: len(idx.Queries()),
			TablesAnalyzed:  len(idx.TableNames()),
			TotalExecutions: idx.TotalExecutions(),
		},
	}
	slog.Debug("snapshot indexed",
		slog.Int("queries", result.Stats.QueriesAnalyzed),
		slog.Int("tables", result.Stats.TablesAnalyzed),
		slog.Float64("total_executions", result.Stats.TotalExecutions),
	)

	detected, err := detector.RunAll(ctx, idx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pattern detection: %w", err)
	}
	result.Patterns = detected.Patterns
	result.Diagnostics = append(result.Diagnostics, detected.Diagnostics...)

	candidates, costDiags, err := cost.CalculateAll(ctx, detected.Patterns, idx, cfg)
	if err != nil {
		return nil, fmt.Errorf("cost calculation: %w", err)
	}
	result.Candidates = candidates
	result.Diagnostics = append(result.Diagnostics, costDiags...)

	result.Prioritized = tradeoff.New(cfg, idx.Queries()).Analyze(candidates)

	recs, assemblyDiags, err := assembler.New(cfg, gen).Assemble(ctx, result.Prioritized)
	if err != nil {
		return nil, fmt.Errorf("assembly: %w", err)
	}
	result.Recommendations = recs
	result.Diagnostics = append(result.Diagnostics, assemblyDiags...)
	result.Stats.Duration = time.Since(start)

	for _, d := range result.Diagnostics {
		slog.Warn("diagnostic",
			slog.String("stage", d.Stage),
			slog.String("kind", d.Kind),
			slog.String("object", d.Object),
			slog.String("reason", d.Reason),
		)
	}
	slog.Debug("analysis complete",
		slog.Int("patterns", len(result.Patterns)),
		slog.Int("recommendations", len(result.Recommendations)),
		slog.Int("diagnostics", len(result.Diagnostics)),
		slog.Duration("duration", result.Stats.Duration),
	)

	return result, nil
}
