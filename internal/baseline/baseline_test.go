package baseline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/schemaspectre/internal/models"
)

func recommendation(rank int, pt models.PatternType, net float64, objects ...string) models.FinalRecommendation {
	return models.FinalRecommendation{
		Rank:          rank,
		Pattern:       models.DetectedPattern{Type: pt, AffectedObjects: objects},
		Cost:          models.CostAnalysis{NetBenefitScore: net},
		PriorityScore: net,
	}
}

func TestCollectFingerprintsDeterministic(t *testing.T) {
	reportA := &models.Report{
		Metadata: models.Metadata{GeneratedAt: time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)},
		Recommendations: []models.FinalRecommendation{
			recommendation(1, models.PatternExpensiveJoin, 9000, "orders", "regions", "regions#name"),
			recommendation(2, models.PatternLOBCliff, 4000, "documents#body"),
		},
	}

	reportB := &models.Report{
		Metadata: models.Metadata{GeneratedAt: time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)},
		Recommendations: []models.FinalRecommendation{
			recommendation(1, models.PatternLOBCliff, 12000, "Documents#Body"),
			recommendation(2, models.PatternExpensiveJoin, 800, "orders", "regions", "regions#name"),
		},
	}

	fingerprintsA := CollectFingerprints(reportA)
	fingerprintsB := CollectFingerprints(reportB)
	if !reflect.DeepEqual(fingerprintsA, fingerprintsB) {
		t.Fatalf("expected deterministic fingerprints, got %v vs %v", fingerprintsA, fingerprintsB)
	}
	if len(fingerprintsA) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(fingerprintsA))
	}
}

func TestFingerprintDistinguishesTypeAndObjects(t *testing.T) {
	base := FingerprintRecommendation(recommendation(1, models.PatternDocumentCandidate, 1, "customers"))
	if base == FingerprintRecommendation(recommendation(1, models.PatternRelationalCandidate, 1, "customers")) {
		t.Fatal("pattern type must change the fingerprint")
	}
	if base == FingerprintRecommendation(recommendation(1, models.PatternDocumentCandidate, 1, "customers", "addresses")) {
		t.Fatal("affected objects must change the fingerprint")
	}
}

func TestSuppressKnownFiltersReportFindings(t *testing.T) {
	known := recommendation(2, models.PatternLOBCliff, 4000, "documents#body")
	report := &models.Report{
		Recommendations: []models.FinalRecommendation{
			recommendation(1, models.PatternExpensiveJoin, 9000, "orders", "regions"),
			known,
			recommendation(3, models.PatternDualityOpportunity, 500, "events"),
		},
		Rejected: []models.RejectedCandidate{{PatternID: "r1"}},
	}

	suppressed, remaining := SuppressKnown(report, Set{FingerprintRecommendation(known): {}})
	if suppressed != 1 {
		t.Fatalf("expected 1 suppressed finding, got %d", suppressed)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 remaining findings, got %d", remaining)
	}
	if report.Metadata.SuppressedByBaseline != 1 {
		t.Fatalf("expected metadata to count the suppression, got %d", report.Metadata.SuppressedByBaseline)
	}
	if report.Recommendations[0].Rank != 1 || report.Recommendations[1].Rank != 3 {
		t.Fatalf("expected original ranks to be kept, got %+v", report.Recommendations)
	}
	if len(report.Rejected) != 1 {
		t.Fatalf("expected rejected list to remain untouched, got %+v", report.Rejected)
	}
}

func TestSuppressKnownEmptyBaseline(t *testing.T) {
	report := &models.Report{Recommendations: []models.FinalRecommendation{recommendation(1, models.PatternLOBCliff, 1, "t#c")}}
	suppressed, remaining := SuppressKnown(report, Set{})
	if suppressed != 0 || remaining != 1 {
		t.Fatalf("expected nothing suppressed, got %d/%d", suppressed, remaining)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "baseline.json")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("expected missing baseline file to be allowed, got %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty set for missing baseline, got %d", len(loaded))
	}

	set := Set{
		"b": {},
		"a": {},
	}
	if err := Save(path, set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(loaded))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read baseline file: %v", err)
	}
	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("failed to unmarshal baseline file: %v", err)
	}
	if file.Version != fileVersion {
		t.Fatalf("expected version %d, got %d", fileVersion, file.Version)
	}
	if !reflect.DeepEqual(file.Fingerprints, []string{"a", "b"}) {
		t.Fatalf("expected sorted fingerprints [a b], got %+v", file.Fingerprints)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	payload := `{"version":999,"fingerprints":[]}`
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatalf("failed to write baseline file: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported baseline version") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}
