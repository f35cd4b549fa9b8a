package detector

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/pkg/config"
	"golang.org/x/sync/errgroup"
)

// scoreEpsilon absorbs float noise when comparing summed weights against a threshold
const scoreEpsilon = 1e-9

// Result is the output of one detector
type Result struct {
	Patterns    []models.DetectedPattern
	Diagnostics []models.Diagnostic
}

// Detector scans an indexed snapshot pair. Detectors are pure and share no state.
type Detector func(idx *snapshot.Index, cfg *config.Config) Result

type namedDetector struct {
	name string
	run  Detector
}

// registry lists detectors in the order their results are concatenated
var registry = []namedDetector{
	{name: stageLOBCliff, run: DetectLOBCliff},
	{name: stageJoinDimension, run: DetectJoinDimension},
	{name: stageDocumentRelational, run: DetectDocumentRelational},
	{name: stageDuality, run: DetectDuality},
}

// RunAll runs every detector concurrently and merges their results.
// Patterns are returned sorted by ID so the output is stable across runs.
func RunAll(ctx context.Context, idx *snapshot.Index, cfg *config.Config) (Result, error) {
	results := make([]Result, len(registry))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range registry {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.run(idx, cfg)
			slog.Debug("detector finished",
				slog.String("detector", d.name),
				slog.Int("patterns", len(results[i].Patterns)),
				slog.Int("diagnostics", len(results[i].Diagnostics)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	merged := Result{
		Patterns:    []models.DetectedPattern{},
		Diagnostics: []models.Diagnostic{},
	}
	for _, r := range results {
		merged.Patterns = append(merged.Patterns, r.Patterns...)
		merged.Diagnostics = append(merged.Diagnostics, r.Diagnostics...)
	}
	sort.SliceStable(merged.Patterns, func(i, j int) bool {
		return merged.Patterns[i].ID < merged.Patterns[j].ID
	})

	return merged, nil
}

func (r *Result) add(p models.DetectedPattern) {
	p.ID = models.PatternID(p.Type, p.AffectedObjects)
	p.Confidence = models.Clamp01(p.Confidence)
	r.Patterns = append(r.Patterns, p)
}

func (r *Result) dataError(stage, object, reason string) {
	r.Diagnostics = append(r.Diagnostics, models.Diagnostic{
		Stage:  stage,
		Kind:   models.DiagDataError,
		Object: object,
		Reason: reason,
	})
}

func (r *Result) notEvaluable(stage, object, reason string) {
	r.Diagnostics = append(r.Diagnostics, models.Diagnostic{
		Stage:  stage,
		Kind:   models.DiagComputationError,
		Object: object,
		Reason: reason,
	})
}

// executionsPerDay sums the daily rate of queries matching keep.
func executionsPerDay(queries []*models.QueryPattern, keep func(*models.QueryPattern) bool) float64 {
	total := 0.0
	for _, q := range queries {
		if keep == nil || keep(q) {
			total += q.ExecutionsPerDay
		}
	}
	return total
}
