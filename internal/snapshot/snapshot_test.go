package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

const workloadYAML = `snapshot_hours: 12
queries:
  - id: q1
    kind: SELECT
    executions_per_day: 480
    avg_latency_ms: 4
    tables: [orders, regions]
    joins:
      - left_table: orders
        right_table: regions
        left_column: region_id
        right_column: id
    projected_columns:
      regions: [name]
  - id: q2
    kind: UPDATE
    executions_per_day: 48
    avg_latency_ms: 2
    tables: [orders]
    updated_columns: [status]
`

const schemaJSON = `{
  "tables": [
    {"name": "orders", "row_count": 1000, "avg_row_length": 200,
     "columns": [{"name": "payload", "data_type": "CLOB", "avg_size_bytes": 8192}]},
    {"name": "regions", "row_count": 50, "avg_row_length": 64}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadSnapshots(t *testing.T) {
	workload, err := LoadWorkload(writeFile(t, "workload.yaml", workloadYAML))
	if err != nil {
		t.Fatalf("LoadWorkload failed: %v", err)
	}
	if workload.SnapshotHours != 12 || len(workload.Queries) != 2 {
		t.Fatalf("unexpected workload: %+v", workload)
	}
	q1 := workload.Queries[0]
	if len(q1.Joins) != 1 || q1.Joins[0].RightTable != "regions" {
		t.Fatalf("expected q1 join to regions, got %+v", q1.Joins)
	}
	if cols := q1.ProjectedColumns["regions"]; len(cols) != 1 || cols[0] != "name" {
		t.Fatalf("unexpected projected columns: %v", q1.ProjectedColumns)
	}

	schema, err := LoadSchema(writeFile(t, "schema.json", schemaJSON))
	if err != nil {
		t.Fatalf("LoadSchema failed: %v", err)
	}
	if len(schema.Tables) != 2 || schema.Tables[0].Columns[0].AvgSizeBytes != 8192 {
		t.Fatalf("unexpected schema: %+v", schema)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := LoadWorkload(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := LoadWorkload(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := LoadSchema(writeFile(t, "bad.json", "{not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBuildIndexesTablesAndQueries(t *testing.T) {
	workload := &models.WorkloadSnapshot{
		SnapshotHours: 12,
		Queries: []models.QueryPattern{
			{ID: "q1", Kind: models.KindSelect, ExecutionsPerDay: 480, Tables: []string{"Orders", "regions"}},
			{ID: "q2", Kind: models.KindUpdate, ExecutionsPerDay: 48, Tables: []string{"orders", "orders"}},
		},
	}
	schema := &models.SchemaSnapshot{Tables: []models.TableMetadata{
		{Name: "regions", RowCount: 50},
		{Name: "orders", RowCount: 1000},
	}}

	idx := Build(workload, schema, config.DefaultConfig())

	names := idx.TableNames()
	if len(names) != 2 || names[0] != "orders" || names[1] != "regions" {
		t.Fatalf("expected sorted table names, got %v", names)
	}
	if _, ok := idx.Table("ORDERS"); !ok {
		t.Fatal("expected case-insensitive table lookup")
	}
	if got := len(idx.QueriesFor("orders")); got != 2 {
		t.Fatalf("expected 2 queries for orders, got %d", got)
	}
	if got := idx.TotalExecutions(); got != 264 {
		t.Fatalf("expected 264 snapshot executions, got %v", got)
	}
	if got := idx.TotalExecutionsPerDay(); got != 528 {
		t.Fatalf("expected 528 executions/day, got %v", got)
	}
	if len(idx.Diagnostics()) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", idx.Diagnostics())
	}
}

func TestBuildReportsDataErrors(t *testing.T) {
	cases := []struct {
		name     string
		workload *models.WorkloadSnapshot
		schema   *models.SchemaSnapshot
		object   string
		reason   string
	}{
		{
			name:     "non_positive_snapshot_hours",
			workload: &models.WorkloadSnapshot{Queries: []models.QueryPattern{{ID: "q1", Tables: []string{"t"}}}},
			reason:   "snapshot_hours",
		},
		{
			name: "missing_query_id",
			workload: &models.WorkloadSnapshot{SnapshotHours: 24, Queries: []models.QueryPattern{
				{Tables: []string{"t"}},
			}},
			object: "queries[0]",
			reason: "query id is missing",
		},
		{
			name: "negative_latency",
			workload: &models.WorkloadSnapshot{SnapshotHours: 24, Queries: []models.QueryPattern{
				{ID: "q1", AvgLatencyMs: -1, Tables: []string{"t"}},
			}},
			object: "q1",
			reason: "must not be negative",
		},
		{
			name:     "table_without_workload",
			workload: &models.WorkloadSnapshot{SnapshotHours: 24},
			schema:   &models.SchemaSnapshot{Tables: []models.TableMetadata{{Name: "idle"}}},
			object:   "idle",
			reason:   "no workload",
		},
		{
			name:     "duplicate_table",
			workload: &models.WorkloadSnapshot{SnapshotHours: 24},
			schema:   &models.SchemaSnapshot{Tables: []models.TableMetadata{{Name: "a"}, {Name: "A"}}},
			object:   "A",
			reason:   "duplicate",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx := Build(tc.workload, tc.schema, config.DefaultConfig())
			for _, diag := range idx.Diagnostics() {
				if diag.Kind != models.DiagDataError {
					t.Fatalf("expected data_error, got %s", diag.Kind)
				}
				if diag.Object == tc.object && strings.Contains(diag.Reason, tc.reason) {
					return
				}
			}
			t.Fatalf("expected diagnostic %q on %q, got %+v", tc.reason, tc.object, idx.Diagnostics())
		})
	}
}

func TestBuildHonorsExcludePatterns(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ExcludeTables = []string{"audit_*"}
	cfg.Normalize()

	schema := &models.SchemaSnapshot{Tables: []models.TableMetadata{{Name: "audit_log"}, {Name: "orders"}}}
	workload := &models.WorkloadSnapshot{SnapshotHours: 24, Queries: []models.QueryPattern{
		{ID: "q1", ExecutionsPerDay: 10, Tables: []string{"orders", "audit_log"}},
	}}

	idx := Build(workload, schema, cfg)
	if _, ok := idx.Table("audit_log"); ok {
		t.Fatal("expected audit_log to be excluded")
	}
	if !idx.IsExcluded("AUDIT_LOG") {
		t.Fatal("expected IsExcluded to report audit_log")
	}
	if names := idx.TableNames(); len(names) != 1 || names[0] != "orders" {
		t.Fatalf("unexpected tables: %v", names)
	}
}
