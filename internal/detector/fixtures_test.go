package detector

import (
	"strings"
	"testing"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

// lobScenario is a 5M-row table with an 8KB structured document stored in a
// CLOB, read 10,000 times and updated 500 times a day at 5% selectivity.
func lobScenario(snapshotHours float64) (*models.WorkloadSnapshot, *models.SchemaSnapshot) {
	workload := &models.WorkloadSnapshot{
		SnapshotHours: snapshotHours,
		Queries: []models.QueryPattern{
			{ID: "doc-read", Kind: models.KindSelect, ExecutionsPerDay: 10_000, AvgLatencyMs: 5, Tables: []string{"documents"}, HasPredicates: true},
			{ID: "doc-update", Kind: models.KindUpdate, ExecutionsPerDay: 500, AvgLatencyMs: 20, Tables: []string{"documents"}, UpdatedColumns: []string{"body"}},
		},
	}
	schema := &models.SchemaSnapshot{Tables: []models.TableMetadata{
		{
			Name:         "documents",
			RowCount:     5_000_000,
			AvgRowLength: 8400,
			Columns: []models.ColumnMetadata{
				{Name: "id", DataType: "BIGINT", AvgSizeBytes: 8},
				{Name: "body", DataType: "CLOB", AvgSizeBytes: 8192, StructuredContent: true, UpdateSelectivity: 0.05},
			},
		},
	}}
	return workload, schema
}

// joinScenario has a join covering 12% of volume that fetches two columns
// from a 50,000-row dimension updated 10 times a day.
func joinScenario(dimensionUpdates float64) (*models.WorkloadSnapshot, *models.SchemaSnapshot) {
	workload := &models.WorkloadSnapshot{
		SnapshotHours: 24,
		Queries: []models.QueryPattern{
			{
				ID:               "order-region",
				Kind:             models.KindSelect,
				ExecutionsPerDay: 1200,
				AvgLatencyMs:     20,
				Tables:           []string{"orders", "regions"},
				Joins:            []models.JoinRef{{LeftTable: "orders", RightTable: "regions", LeftColumn: "region_id", RightColumn: "id"}},
				ProjectedColumns: map[string][]string{"regions": {"name", "code"}},
				HasPredicates:    true,
			},
			{ID: "order-lookup", Kind: models.KindSelect, ExecutionsPerDay: 8800, AvgLatencyMs: 2, Tables: []string{"orders"}, HasPredicates: true},
		},
	}
	schema := &models.SchemaSnapshot{Tables: []models.TableMetadata{
		{Name: "orders", RowCount: 2_000_000, AvgRowLength: 120, Columns: []models.ColumnMetadata{{Name: "id"}, {Name: "region_id"}}},
		{
			Name:          "regions",
			RowCount:      50_000,
			AvgRowLength:  64,
			UpdatesPerDay: dimensionUpdates,
			Columns: []models.ColumnMetadata{
				{Name: "id", AvgSizeBytes: 8},
				{Name: "name", AvgSizeBytes: 32},
				{Name: "code", AvgSizeBytes: 4},
			},
		},
	}}
	return workload, schema
}

// documentScenario reads customers with SELECT * 95% of the time together
// with their addresses.
func documentScenario() (*models.WorkloadSnapshot, *models.SchemaSnapshot) {
	workload := &models.WorkloadSnapshot{
		SnapshotHours: 24,
		Queries: []models.QueryPattern{
			{
				ID:               "customer-profile",
				Kind:             models.KindSelect,
				ExecutionsPerDay: 950,
				AvgLatencyMs:     3,
				Tables:           []string{"customers", "addresses"},
				Joins:            []models.JoinRef{{LeftTable: "customers", RightTable: "addresses"}},
				SelectsAll:       true,
			},
			{ID: "customer-name", Kind: models.KindSelect, ExecutionsPerDay: 50, AvgLatencyMs: 3, Tables: []string{"customers"}},
		},
	}
	schema := &models.SchemaSnapshot{Tables: []models.TableMetadata{
		{Name: "customers", RowCount: 1000, AvgRowLength: 300, Columns: []models.ColumnMetadata{{Name: "id"}, {Name: "name"}}},
		{
			Name:         "addresses",
			RowCount:     3000,
			AvgRowLength: 200,
			Columns:      []models.ColumnMetadata{{Name: "id"}, {Name: "customer_id"}},
			ForeignKeys:  []models.ForeignKey{{Column: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id"}},
		},
	}}
	return workload, schema
}

// dualityScenario splits event traffic between point lookups and aggregates.
func dualityScenario(analyticsPerDay float64) (*models.WorkloadSnapshot, *models.SchemaSnapshot) {
	workload := &models.WorkloadSnapshot{
		SnapshotHours: 24,
		Queries: []models.QueryPattern{
			{ID: "event-get", Kind: models.KindSelect, ExecutionsPerDay: 500, AvgLatencyMs: 2, Tables: []string{"events"}, HasPredicates: true},
			{ID: "event-rollup", Kind: models.KindSelect, ExecutionsPerDay: analyticsPerDay, AvgLatencyMs: 200, Tables: []string{"events"}, HasAggregates: true},
		},
	}
	schema := &models.SchemaSnapshot{Tables: []models.TableMetadata{
		{Name: "events", RowCount: 100_000, AvgRowLength: 100, UpdatesPerDay: 100, Columns: []models.ColumnMetadata{{Name: "id"}}},
	}}
	return workload, schema
}

func buildIndex(workload *models.WorkloadSnapshot, schema *models.SchemaSnapshot) *snapshot.Index {
	return snapshot.Build(workload, schema, config.DefaultConfig())
}

func findPattern(patterns []models.DetectedPattern, t models.PatternType, primary string) (models.DetectedPattern, bool) {
	for _, p := range patterns {
		if p.Type == t && strings.EqualFold(p.PrimaryTable(), primary) {
			return p, true
		}
	}
	return models.DetectedPattern{}, false
}

func mustFindPattern(t *testing.T, patterns []models.DetectedPattern, pt models.PatternType, primary string) models.DetectedPattern {
	t.Helper()
	p, ok := findPattern(patterns, pt, primary)
	if !ok {
		t.Fatalf("expected %s on %s, got %+v", pt, primary, patterns)
	}
	return p
}
