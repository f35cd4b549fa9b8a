package assembler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/schemaspectre/internal/generator"
	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

type generatorFunc func(ctx context.Context, gc models.GenerationContext) (models.Guidance, error)

func (f generatorFunc) Generate(ctx context.Context, gc models.GenerationContext) (models.Guidance, error) {
	return f(ctx, gc)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Collaborator.BaseURL = "http://collaborator.invalid"
	cfg.Collaborator.Timeout = 50 * time.Millisecond
	cfg.Collaborator.MaxAttempts = 2
	cfg.Collaborator.Backoff = time.Millisecond
	cfg.Collaborator.RateLimit = 0
	return cfg
}

func prioritized() []models.PrioritizedRecommendation {
	rec := func(id string, pt models.PatternType, priority float64, accepted bool, objects ...string) models.PrioritizedRecommendation {
		return models.PrioritizedRecommendation{
			Pattern: models.DetectedPattern{
				ID:              id,
				Type:            pt,
				Severity:        models.SeverityHigh,
				AffectedObjects: objects,
				Metrics:         map[string]float64{},
			},
			Cost:          models.CostAnalysis{PatternID: id, PatternType: pt, NetBenefitScore: priority},
			PriorityScore: priority,
			Decision:      models.Decision{Accepted: accepted, Rationale: "accepted: test"},
		}
	}
	return []models.PrioritizedRecommendation{
		rec("p-lob", models.PatternLOBCliff, 9000, true, "documents#body"),
		rec("p-join", models.PatternExpensiveJoin, 4000, true, "orders", "regions", "regions#name"),
		rec("p-dual", models.PatternDualityOpportunity, 1000, true, "events"),
		rec("p-doc", models.PatternDocumentCandidate, 500, false, "customers", "addresses"),
	}
}

func TestAssembleTemplatesOnly(t *testing.T) {
	recs, diags, err := New(testConfig(), nil).Assemble(context.Background(), prioritized())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
	if len(recs) != 3 {
		t.Fatalf("expected only accepted records, got %d", len(recs))
	}

	wantTiers := []models.Tier{models.TierHigh, models.TierMedium, models.TierLow}
	for i, rec := range recs {
		if rec.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, rec.Rank)
		}
		if rec.PriorityTier != wantTiers[i] {
			t.Fatalf("%s: expected tier %s, got %s", rec.Pattern.ID, wantTiers[i], rec.PriorityTier)
		}
		if rec.Guidance.Source != models.GuidanceTemplate || rec.Guidance.Rationale == "" || rec.Guidance.SQL == "" {
			t.Fatalf("%s: expected template guidance, got %+v", rec.Pattern.ID, rec.Guidance)
		}
	}
	if !strings.Contains(recs[0].Guidance.SQL, "documents") {
		t.Fatalf("LOB template should name the table, got %q", recs[0].Guidance.SQL)
	}
}

func TestAssembleGeneratedGuidance(t *testing.T) {
	var calls atomic.Int32
	gen := generatorFunc(func(_ context.Context, gc models.GenerationContext) (models.Guidance, error) {
		calls.Add(1)
		return models.Guidance{Rationale: "generated for " + gc.PatternID, SQL: "SELECT 1"}, nil
	})

	recs, diags, err := New(testConfig(), gen).Assemble(context.Background(), prioritized())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(diags) != 0 || calls.Load() != 3 {
		t.Fatalf("expected 3 clean calls, got %d calls and %+v", calls.Load(), diags)
	}
	for _, rec := range recs {
		if rec.Guidance.Source != models.GuidanceGenerated || rec.Guidance.Rationale != "generated for "+rec.Pattern.ID {
			t.Fatalf("unexpected guidance %+v", rec.Guidance)
		}
	}
}

func TestAssembleFallsBackOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempts int32
	}{
		{name: "retryable status", err: &generator.HTTPError{StatusCode: http.StatusServiceUnavailable}, attempts: 2},
		{name: "permanent status", err: &generator.HTTPError{StatusCode: http.StatusBadRequest}, attempts: 1},
		{name: "plain error", err: errors.New("boom"), attempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			gen := generatorFunc(func(context.Context, models.GenerationContext) (models.Guidance, error) {
				calls.Add(1)
				return models.Guidance{}, tt.err
			})

			input := prioritized()[:1]
			recs, diags, err := New(testConfig(), gen).Assemble(context.Background(), input)
			if err != nil {
				t.Fatalf("collaborator failure must not fail assembly: %v", err)
			}
			if len(recs) != 1 || recs[0].Guidance.Source != models.GuidanceTemplate {
				t.Fatalf("expected template fallback, got %+v", recs)
			}
			if calls.Load() != tt.attempts {
				t.Fatalf("expected %d attempts, got %d", tt.attempts, calls.Load())
			}
			if len(diags) != 1 || diags[0].Kind != models.DiagCollaboratorError || diags[0].Object != "p-lob" {
				t.Fatalf("expected one collaborator diagnostic, got %+v", diags)
			}
		})
	}
}

func TestAssembleTimesOutSlowCollaborator(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, _ models.GenerationContext) (models.Guidance, error) {
		<-ctx.Done()
		return models.Guidance{}, ctx.Err()
	})

	start := time.Now()
	recs, diags, err := New(testConfig(), gen).Assemble(context.Background(), prioritized())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeouts were not enforced, took %v", elapsed)
	}
	if len(recs) != 3 || len(diags) != 3 {
		t.Fatalf("expected 3 records with 3 diagnostics, got %d and %d", len(recs), len(diags))
	}
	for _, rec := range recs {
		if rec.Guidance.Source != models.GuidanceTemplate {
			t.Fatalf("expected template guidance for %s", rec.Pattern.ID)
		}
	}
}

func TestAssembleCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := New(testConfig(), nil).Assemble(ctx, prioritized()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAssembleCanceledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	gen := generatorFunc(func(ctx context.Context, gc models.GenerationContext) (models.Guidance, error) {
		calls.Add(1)
		cancel()
		return models.Guidance{}, ctx.Err()
	})

	cfg := testConfig()
	cfg.Concurrency = 1
	recs, diags, err := New(cfg, gen).Assemble(ctx, prioritized())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if recs != nil || diags != nil {
		t.Fatalf("expected no partial output, got %d records and %d diagnostics", len(recs), len(diags))
	}
	if n := calls.Load(); n > int32(cfg.Collaborator.MaxAttempts) {
		t.Fatalf("later recommendations reached the generator after cancel, %d calls", n)
	}
}

func TestAssembleEmpty(t *testing.T) {
	recs, diags, err := New(testConfig(), nil).Assemble(context.Background(), nil)
	if err != nil || len(recs) != 0 || len(diags) != 0 {
		t.Fatalf("expected empty output, got %v %v %v", recs, diags, err)
	}
}

func TestPriorityTier(t *testing.T) {
	tests := []struct {
		priority float64
		top      float64
		want     models.Tier
	}{
		{priority: 100, top: 100, want: models.TierHigh},
		{priority: 66, top: 100, want: models.TierHigh},
		{priority: 50, top: 100, want: models.TierMedium},
		{priority: 33, top: 100, want: models.TierMedium},
		{priority: 10, top: 100, want: models.TierLow},
		{priority: 10, top: 0, want: models.TierLow},
	}
	for _, tt := range tests {
		if got := priorityTier(tt.priority, tt.top); got != tt.want {
			t.Fatalf("priorityTier(%v, %v) = %s, want %s", tt.priority, tt.top, got, tt.want)
		}
	}
}

func TestEveryPatternTypeHasTemplate(t *testing.T) {
	for _, pt := range models.AllPatternTypes() {
		if _, ok := templates[pt]; !ok {
			t.Fatalf("missing template for %s", pt)
		}
	}
}
