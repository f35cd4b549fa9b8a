package tradeoff

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

func candidate(id string, pt models.PatternType, net float64, objects ...string) models.Candidate {
	return models.Candidate{
		Pattern: models.DetectedPattern{
			ID:              id,
			Type:            pt,
			Severity:        models.SeverityMedium,
			Confidence:      0.8,
			AffectedObjects: objects,
			Metrics:         map[string]float64{},
		},
		Cost: models.CostAnalysis{
			PatternID:       id,
			PatternType:     pt,
			NetBenefitScore: net,
			Maintenance:     models.MaintenanceBurden{Complexity: 3},
		},
	}
}

func byID(recs []models.PrioritizedRecommendation) map[string]models.PrioritizedRecommendation {
	out := make(map[string]models.PrioritizedRecommendation, len(recs))
	for _, rec := range recs {
		out[rec.Pattern.ID] = rec
	}
	return out
}

func TestMutuallyExclusiveKeepsHigherPriority(t *testing.T) {
	tests := []struct {
		name     string
		lobNet   float64
		docNet   float64
		winner   string
		loser    string
		tieNoted bool
	}{
		{name: "lob wins", lobNet: 5000, docNet: 2000, winner: "a-lob", loser: "b-doc"},
		{name: "document wins", lobNet: 1000, docNet: 4000, winner: "b-doc", loser: "a-lob"},
		{name: "tie goes to lower id", lobNet: 3000, docNet: 3000, winner: "a-lob", loser: "b-doc", tieNoted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{
				candidate("b-doc", models.PatternDocumentCandidate, tt.docNet, "documents", "attachments"),
				candidate("a-lob", models.PatternLOBCliff, tt.lobNet, "documents#body"),
			})
			got := byID(recs)

			if !got[tt.winner].Decision.Accepted {
				t.Fatalf("expected %s accepted, got %+v", tt.winner, got[tt.winner].Decision)
			}
			loser := got[tt.loser]
			if loser.Decision.Accepted {
				t.Fatalf("expected %s rejected", tt.loser)
			}
			if !strings.Contains(loser.Decision.Rationale, string(models.ConflictMutuallyExclusive)) ||
				!strings.Contains(loser.Decision.Rationale, tt.winner) {
				t.Fatalf("rationale should name the conflict and winner, got %q", loser.Decision.Rationale)
			}
			if tt.tieNoted != strings.Contains(loser.Decision.Rationale, "tie broken by id") {
				t.Fatalf("unexpected tie note in %q", loser.Decision.Rationale)
			}
			if len(loser.ConflictingIDs) != 1 || loser.ConflictingIDs[0] != tt.winner {
				t.Fatalf("expected loser to record %s, got %v", tt.winner, loser.ConflictingIDs)
			}
			if len(got[tt.winner].Conflicts) != 1 {
				t.Fatalf("expected winner to record the conflict, got %+v", got[tt.winner].Conflicts)
			}
			if recs[0].Pattern.ID != tt.winner || recs[1].Pattern.ID != tt.loser {
				t.Fatalf("expected accepted before rejected, got %s, %s", recs[0].Pattern.ID, recs[1].Pattern.ID)
			}
		})
	}
}

func TestRedundantDenormalizations(t *testing.T) {
	recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{
		candidate("join-1", models.PatternExpensiveJoin, 8000, "orders", "regions", "regions#name"),
		candidate("join-2", models.PatternExpensiveJoin, 3000, "orders", "regions", "regions#code"),
	})
	got := byID(recs)

	if !got["join-1"].Decision.Accepted || got["join-2"].Decision.Accepted {
		t.Fatalf("expected only join-1 accepted, got %+v / %+v", got["join-1"].Decision, got["join-2"].Decision)
	}
	if got["join-2"].Conflicts[0].Type != models.ConflictRedundant {
		t.Fatalf("expected REDUNDANT, got %s", got["join-2"].Conflicts[0].Type)
	}
}

func TestDualityAndDocumentOnSameTableAreRedundant(t *testing.T) {
	recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{
		candidate("doc", models.PatternDocumentCandidate, 6000, "customers", "addresses"),
		candidate("dual", models.PatternDualityOpportunity, 2000, "customers"),
	})
	got := byID(recs)
	if got["dual"].Decision.Accepted {
		t.Fatal("expected duality view to be rejected as redundant")
	}
	if got["dual"].Conflicts[0].Type != models.ConflictRedundant {
		t.Fatalf("expected REDUNDANT, got %s", got["dual"].Conflicts[0].Type)
	}
}

func TestDocumentOnEmbeddedTableIsRedundant(t *testing.T) {
	tests := []struct {
		name  string
		other models.Candidate
	}{
		{name: "join embeds child", other: candidate("join", models.PatternExpensiveJoin, 5000, "customers", "addresses", "addresses#city")},
		{name: "document embeds child", other: candidate("join", models.PatternDocumentCandidate, 5000, "customers", "addresses")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{
				tt.other,
				candidate("child-doc", models.PatternDocumentCandidate, 2000, "addresses"),
			})
			got := byID(recs)

			if !got["join"].Decision.Accepted {
				t.Fatalf("expected the embedding change accepted, got %q", got["join"].Decision.Rationale)
			}
			child := got["child-doc"]
			if child.Decision.Accepted {
				t.Fatal("expected the child document change rejected")
			}
			if len(child.Conflicts) != 1 || child.Conflicts[0].Type != models.ConflictRedundant {
				t.Fatalf("expected one REDUNDANT conflict, got %+v", child.Conflicts)
			}
		})
	}
}

func TestClassifyDocumentAgainstJoin(t *testing.T) {
	conflict, _, ok := classifyConflict(
		&models.DetectedPattern{Type: models.PatternDocumentCandidate, AffectedObjects: []string{"customers"}},
		&models.DetectedPattern{Type: models.PatternExpensiveJoin, AffectedObjects: []string{"orders", "customers"}},
	)
	if !ok || conflict != models.ConflictRedundant {
		t.Fatalf("expected REDUNDANT for a document on the joined dimension, got %q ok=%v", conflict, ok)
	}

	conflict, _, ok = classifyConflict(
		&models.DetectedPattern{Type: models.PatternDocumentCandidate, AffectedObjects: []string{"orders"}},
		&models.DetectedPattern{Type: models.PatternExpensiveJoin, AffectedObjects: []string{"orders", "customers"}},
	)
	if !ok || conflict != models.ConflictCascading {
		t.Fatalf("expected CASCADING for a document on the fact table, got %q ok=%v", conflict, ok)
	}
}

func TestCascadingConflictsOnlyAnnotate(t *testing.T) {
	recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{
		candidate("dual", models.PatternDualityOpportunity, 4000, "orders"),
		candidate("join", models.PatternExpensiveJoin, 5000, "orders", "regions"),
	})
	got := byID(recs)

	for _, id := range []string{"dual", "join"} {
		rec := got[id]
		if !rec.Decision.Accepted {
			t.Fatalf("%s should stay accepted, got %q", id, rec.Decision.Rationale)
		}
		if len(rec.Conflicts) != 1 || rec.Conflicts[0].Type != models.ConflictCascading {
			t.Fatalf("%s: expected one cascading conflict, got %+v", id, rec.Conflicts)
		}
		noted := false
		for _, note := range rec.Tradeoffs {
			if strings.HasPrefix(note, "cascading with") {
				noted = true
			}
		}
		if !noted {
			t.Fatalf("%s: expected a cascading note, got %v", id, rec.Tradeoffs)
		}
	}
}

func TestDisjointCandidatesDoNotConflict(t *testing.T) {
	recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{
		candidate("lob", models.PatternLOBCliff, 5000, "documents#body"),
		candidate("doc", models.PatternDocumentCandidate, 4000, "customers", "addresses"),
	})
	for _, rec := range recs {
		if !rec.Decision.Accepted || len(rec.Conflicts) != 0 {
			t.Fatalf("expected %s accepted without conflicts, got %+v", rec.Pattern.ID, rec)
		}
	}
}

func TestThresholdGate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CostAnalysis)
		reason string
	}{
		{
			name:   "negative net benefit",
			mutate: func(c *models.CostAnalysis) { c.NetBenefitScore = -10 },
			reason: "below the minimum",
		},
		{
			name:   "storage overhead",
			mutate: func(c *models.CostAnalysis) { c.Storage.IncreasePct = 75 },
			reason: "storage overhead",
		},
		{
			name:   "compute overhead",
			mutate: func(c *models.CostAnalysis) { c.Compute.CPUOverheadPct = 25 },
			reason: "compute overhead",
		},
		{
			name:   "maintenance complexity",
			mutate: func(c *models.CostAnalysis) { c.Maintenance.Complexity = 9 },
			reason: "maintenance complexity 9 exceeds 8",
		},
		{
			name: "degraded queries",
			mutate: func(c *models.CostAnalysis) {
				c.Performance.QueriesImproved = 1
				c.Performance.QueriesDegraded = 1
			},
			reason: "50% of changed queries degrade",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate("p", models.PatternLOBCliff, 1000, "documents#body")
			tt.mutate(&c.Cost)
			recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{c})

			if recs[0].Decision.Accepted {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(recs[0].Decision.Rationale, tt.reason) {
				t.Fatalf("expected %q in rationale, got %q", tt.reason, recs[0].Decision.Rationale)
			}
		})
	}
}

func TestThresholdGateJoinsEveryReason(t *testing.T) {
	c := candidate("p", models.PatternDocumentCandidate, -5, "customers")
	c.Cost.Maintenance.Complexity = 10
	c.Cost.Storage.IncreasePct = 90

	recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{c})
	if got := strings.Count(recs[0].Decision.Rationale, "; "); got != 2 {
		t.Fatalf("expected three reasons, got %q", recs[0].Decision.Rationale)
	}
}

func TestMinNetBenefitIsInclusive(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Constraints.MinNetBenefit = 500

	recs := New(cfg, nil).Analyze([]models.Candidate{candidate("p", models.PatternLOBCliff, 500, "documents#body")})
	if !recs[0].Decision.Accepted {
		t.Fatalf("net benefit equal to the minimum should pass, got %q", recs[0].Decision.Rationale)
	}
}

func TestDiminishingReturns(t *testing.T) {
	recs := New(config.DefaultConfig(), nil).Analyze([]models.Candidate{
		candidate("top", models.PatternLOBCliff, 10_000, "documents#body"),
		candidate("small", models.PatternDualityOpportunity, 100, "events"),
		candidate("mid", models.PatternExpensiveJoin, 4000, "orders", "regions"),
	})
	got := byID(recs)

	small := got["small"]
	if !small.Decision.Accepted {
		t.Fatalf("diminishing returns must not reject, got %q", small.Decision.Rationale)
	}
	if small.BasePriorityScore != 100 || small.PriorityScore != 50 {
		t.Fatalf("expected priority halved from 100 to 50, got %v -> %v", small.BasePriorityScore, small.PriorityScore)
	}
	if got["mid"].PriorityScore != got["mid"].BasePriorityScore {
		t.Fatal("mid candidate is above the cutoff and should keep its priority")
	}

	topBase := recs[0].BasePriorityScore
	for _, rec := range recs[1:] {
		if rec.PriorityScore > topBase {
			t.Fatalf("%s priority %v exceeds top base %v", rec.Pattern.ID, rec.PriorityScore, topBase)
		}
	}
	if recs[0].Pattern.ID != "top" || recs[1].Pattern.ID != "mid" || recs[2].Pattern.ID != "small" {
		t.Fatalf("unexpected order %s, %s, %s", recs[0].Pattern.ID, recs[1].Pattern.ID, recs[2].Pattern.ID)
	}
}

func TestFrequencyMultiplier(t *testing.T) {
	// executions 1..10 give p50=5, p70=7, p90=9
	queries := make([]*models.QueryPattern, 0, 10)
	for i := 1; i <= 10; i++ {
		queries = append(queries, &models.QueryPattern{ID: fmt.Sprintf("q%d", i), ExecutionsPerDay: float64(i)})
	}

	tests := []struct {
		affected []string
		want     float64
	}{
		{affected: []string{"q9"}, want: 10},
		{affected: []string{"q3", "q4"}, want: 5},
		{affected: []string{"q5"}, want: 2},
		{affected: []string{"q4"}, want: 1},
		{affected: nil, want: 1},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.affected, "+"), func(t *testing.T) {
			c := candidate("p", models.PatternLOBCliff, 100, "documents#body")
			c.Cost.Performance.AffectedQueries = tt.affected

			recs := New(config.DefaultConfig(), queries).Analyze([]models.Candidate{c})
			if recs[0].FrequencyMultiplier != tt.want {
				t.Fatalf("expected multiplier %v, got %v", tt.want, recs[0].FrequencyMultiplier)
			}
			if recs[0].PriorityScore != 100*tt.want {
				t.Fatalf("expected priority %v, got %v", 100*tt.want, recs[0].PriorityScore)
			}
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	candidates := []models.Candidate{
		candidate("c", models.PatternDocumentCandidate, 3000, "documents"),
		candidate("a", models.PatternLOBCliff, 3000, "documents#body"),
		candidate("b", models.PatternExpensiveJoin, 50, "orders", "regions"),
		candidate("d", models.PatternDualityOpportunity, -1, "events"),
	}
	analyzer := New(config.DefaultConfig(), nil)

	first := analyzer.Analyze(candidates)
	second := analyzer.Analyze(candidates)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical output for identical input")
	}

	accepted := 0
	for _, rec := range first {
		if rec.Decision.Accepted {
			accepted++
		}
	}
	if accepted != 2 {
		t.Fatalf("expected 2 accepted, got %d", accepted)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	recs := New(config.DefaultConfig(), nil).Analyze(nil)
	if recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", recs)
	}
}
