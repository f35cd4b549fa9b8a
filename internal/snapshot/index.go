package snapshot

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

const stageIndex = "index"

// Index is a validated, read-only view over one workload/schema pair.
// Lookups by table name are case-insensitive.
type Index struct {
	SnapshotHours float64

	queries     []*models.QueryPattern
	tables      map[string]*models.TableMetadata
	tableNames  []string
	excluded    map[string]bool
	byTable     map[string][]*models.QueryPattern
	total       float64
	diagnostics []models.Diagnostic
}

// Build validates the snapshots and indexes them. Invalid entries are skipped
// and reported as data_error diagnostics; Build itself never fails.
func Build(workload *models.WorkloadSnapshot, schema *models.SchemaSnapshot, cfg *config.Config) *Index {
	idx := &Index{
		tables:   make(map[string]*models.TableMetadata),
		excluded: make(map[string]bool),
		byTable:  make(map[string][]*models.QueryPattern),
	}

	if schema != nil {
		idx.indexTables(schema.Tables, cfg)
	}

	if workload == nil {
		idx.dataError("", "workload snapshot is missing")
		return idx
	}
	if workload.SnapshotHours <= 0 || math.IsNaN(workload.SnapshotHours) {
		idx.dataError("", fmt.Sprintf("snapshot_hours must be positive, got %g", workload.SnapshotHours))
		return idx
	}
	idx.SnapshotHours = workload.SnapshotHours
	idx.indexQueries(workload.Queries)

	for _, name := range idx.tableNames {
		if len(idx.byTable[key(name)]) == 0 {
			idx.dataError(name, "no workload recorded for table")
		}
	}

	return idx
}

func (idx *Index) indexTables(tables []models.TableMetadata, cfg *config.Config) {
	for i := range tables {
		table := &tables[i]
		name := strings.TrimSpace(table.Name)
		switch {
		case name == "":
			idx.dataError(fmt.Sprintf("tables[%d]", i), "table name is missing")
			continue
		case table.RowCount < 0 || table.AvgRowLength < 0 || table.UpdatesPerDay < 0:
			idx.dataError(name, "table statistics must not be negative")
			continue
		case idx.tables[key(name)] != nil:
			idx.dataError(name, "duplicate table metadata")
			continue
		}
		if cfg != nil && cfg.IsTableExcluded(name) {
			idx.excluded[key(name)] = true
			continue
		}
		idx.tables[key(name)] = table
		idx.tableNames = append(idx.tableNames, name)
	}
	sort.Slice(idx.tableNames, func(i, j int) bool {
		return key(idx.tableNames[i]) < key(idx.tableNames[j])
	})
}

func (idx *Index) indexQueries(queries []models.QueryPattern) {
	seen := make(map[string]bool, len(queries))
	for i := range queries {
		query := &queries[i]
		id := strings.TrimSpace(query.ID)
		switch {
		case id == "":
			idx.dataError(fmt.Sprintf("queries[%d]", i), "query id is missing")
			continue
		case seen[id]:
			idx.dataError(id, "duplicate query id")
			continue
		case query.ExecutionsPerDay < 0 || query.AvgLatencyMs < 0 || math.IsNaN(query.ExecutionsPerDay) || math.IsNaN(query.AvgLatencyMs):
			idx.dataError(id, "executions and latency must not be negative")
			continue
		case len(query.Tables) == 0:
			idx.dataError(id, "query touches no tables")
			continue
		}
		seen[id] = true
		idx.queries = append(idx.queries, query)
		idx.total += query.SnapshotExecutions(idx.SnapshotHours)

		counted := make(map[string]bool, len(query.Tables))
		for _, table := range query.Tables {
			k := key(table)
			if counted[k] {
				continue
			}
			counted[k] = true
			idx.byTable[k] = append(idx.byTable[k], query)
		}
	}
}

func (idx *Index) dataError(object, reason string) {
	idx.diagnostics = append(idx.diagnostics, models.Diagnostic{
		Stage:  stageIndex,
		Kind:   models.DiagDataError,
		Object: object,
		Reason: reason,
	})
}

// Queries returns every valid query in workload order.
func (idx *Index) Queries() []*models.QueryPattern {
	return idx.queries
}

// TableNames returns the indexed, non-excluded tables in sorted order.
func (idx *Index) TableNames() []string {
	return idx.tableNames
}

// Table looks up table metadata by name.
func (idx *Index) Table(name string) (*models.TableMetadata, bool) {
	table, ok := idx.tables[key(name)]
	return table, ok
}

// IsExcluded reports whether the table was removed by an exclude pattern.
func (idx *Index) IsExcluded(name string) bool {
	return idx.excluded[key(name)]
}

// QueriesFor returns the queries touching table in workload order.
func (idx *Index) QueriesFor(table string) []*models.QueryPattern {
	return idx.byTable[key(table)]
}

// TotalExecutions is the absolute execution count of the whole workload
// within the snapshot window.
func (idx *Index) TotalExecutions() float64 {
	return idx.total
}

// TotalExecutionsPerDay sums executions/day across all queries.
func (idx *Index) TotalExecutionsPerDay() float64 {
	total := 0.0
	for _, query := range idx.queries {
		total += query.ExecutionsPerDay
	}
	return total
}

// WritesTo reports whether q is a write whose driving table is table.
func WritesTo(q *models.QueryPattern, table string) bool {
	return q.Kind.IsWrite() && len(q.Tables) > 0 && strings.EqualFold(q.Tables[0], table)
}

// WritesPerDay is the daily write rate of table seen in the workload. When the
// workload holds no writes for it, the schema's recorded update rate is used.
func (idx *Index) WritesPerDay(table string) float64 {
	writes := 0.0
	for _, q := range idx.QueriesFor(table) {
		if WritesTo(q, table) {
			writes += q.ExecutionsPerDay
		}
	}
	if writes > 0 {
		return writes
	}
	if meta, ok := idx.Table(table); ok {
		return meta.UpdatesPerDay
	}
	return 0
}

// SnapshotExecutions converts a daily rate into an absolute count within the window.
func (idx *Index) SnapshotExecutions(perDay float64) float64 {
	return perDay * idx.SnapshotHours / 24
}

// Diagnostics returns the problems found while indexing.
func (idx *Index) Diagnostics() []models.Diagnostic {
	return idx.diagnostics
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
