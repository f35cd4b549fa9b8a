package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const stage = "assembler"

// Tier cut-offs on priority normalized against the top recommendation
const (
	highTierRatio   = 0.66
	mediumTierRatio = 0.33
)

// Generator produces rationale and SQL for one recommendation
type Generator interface {
	Generate(ctx context.Context, gc models.GenerationContext) (models.Guidance, error)
}

// Assembler turns accepted recommendations into final ranked records
type Assembler struct {
	cfg     *config.Config
	gen     Generator
	limiter *rate.Limiter
	retry   retryConfig
}

// New creates an assembler. A nil generator means every record gets template
// guidance.
func New(cfg *config.Config, gen Generator) *Assembler {
	c := cfg.Collaborator
	limit, burst := rate.Inf, 1
	if c.RateLimit > 0 {
		limit = rate.Limit(c.RateLimit)
		burst = int(math.Max(1, c.RateLimit*2))
	}
	return &Assembler{
		cfg:     cfg,
		gen:     gen,
		limiter: rate.NewLimiter(limit, burst),
		retry: retryConfig{
			maxAttempts:    c.MaxAttempts,
			attemptTimeout: c.Timeout,
			initialBackoff: c.Backoff,
		},
	}
}

// Assemble ranks the accepted entries of prioritized, which must already be
// in priority order, and attaches guidance. Collaborator failures never drop
// a record; they fall back to templates and produce diagnostics. The only
// error is cancellation of ctx.
func (a *Assembler) Assemble(ctx context.Context, prioritized []models.PrioritizedRecommendation) ([]models.FinalRecommendation, []models.Diagnostic, error) {
	accepted := make([]*models.PrioritizedRecommendation, 0, len(prioritized))
	for i := range prioritized {
		if prioritized[i].Decision.Accepted {
			accepted = append(accepted, &prioritized[i])
		}
	}

	out := make([]models.FinalRecommendation, len(accepted))
	diags := make([]*models.Diagnostic, len(accepted))

	top := 0.0
	if len(accepted) > 0 {
		top = accepted[0].PriorityScore
	}

	concurrency := a.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, rec := range accepted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			guidance, diag := a.guidance(gctx, rec)
			diags[i] = diag
			out[i] = models.FinalRecommendation{
				Rank:          i + 1,
				Pattern:       rec.Pattern,
				Cost:          rec.Cost,
				PriorityScore: rec.PriorityScore,
				PriorityTier:  priorityTier(rec.PriorityScore, top),
				Rationale:     rec.Decision.Rationale,
				Tradeoffs:     rec.Tradeoffs,
				Conflicts:     rec.Conflicts,
				Guidance:      guidance,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	diagnostics := make([]models.Diagnostic, 0)
	for _, d := range diags {
		if d != nil {
			diagnostics = append(diagnostics, *d)
		}
	}
	return out, diagnostics, nil
}

func (a *Assembler) guidance(ctx context.Context, rec *models.PrioritizedRecommendation) (models.Guidance, *models.Diagnostic) {
	if a.gen == nil {
		return templateGuidance(rec), nil
	}

	gc := generationContext(rec)
	callCtx, cancel := withTotalTimeoutContext(ctx, a.retry.normalized().totalBudget())
	defer cancel()

	var guidance models.Guidance
	attempts, err := executeWithRetry(callCtx, a.retry, func(attemptCtx context.Context) error {
		if err := a.limiter.Wait(attemptCtx); err != nil {
			return err
		}
		g, err := a.gen.Generate(attemptCtx, gc)
		if err != nil {
			return err
		}
		guidance = g
		return nil
	})
	if err == nil {
		guidance.Source = models.GuidanceGenerated
		return guidance, nil
	}

	slog.Warn("guidance generation failed, using template",
		slog.String("pattern_id", rec.Pattern.ID),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
	return templateGuidance(rec), &models.Diagnostic{
		Stage:  stage,
		Kind:   models.DiagCollaboratorError,
		Object: rec.Pattern.ID,
		Reason: fmt.Sprintf("guidance generation failed after %d attempt(s): %v", attempts, err),
	}
}

func generationContext(rec *models.PrioritizedRecommendation) models.GenerationContext {
	return models.GenerationContext{
		PatternID:       rec.Pattern.ID,
		PatternType:     rec.Pattern.Type,
		Severity:        rec.Pattern.Severity,
		Confidence:      rec.Pattern.Confidence,
		AffectedObjects: rec.Pattern.AffectedObjects,
		Metrics:         rec.Pattern.Metrics,
		Hint:            rec.Pattern.Hint,
		Cost:            rec.Cost,
		Tradeoffs:       rec.Tradeoffs,
	}
}

func priorityTier(priority, top float64) models.Tier {
	if top <= 0 {
		return models.TierLow
	}
	ratio := priority / top
	switch {
	case ratio >= highTierRatio:
		return models.TierHigh
	case ratio >= mediumTierRatio:
		return models.TierMedium
	default:
		return models.TierLow
	}
}
