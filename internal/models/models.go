package models

import "strings"

// QueryKind is the statement class of a normalized query template
type QueryKind string

const (
	KindSelect QueryKind = "SELECT"
	KindInsert QueryKind = "INSERT"
	KindUpdate QueryKind = "UPDATE"
	KindDelete QueryKind = "DELETE"
)

// IsWrite reports whether the kind modifies data.
func (k QueryKind) IsWrite() bool {
	switch QueryKind(strings.ToUpper(string(k))) {
	case KindInsert, KindUpdate, KindDelete:
		return true
	}
	return false
}

// IsUpdate reports whether the kind is an UPDATE.
func (k QueryKind) IsUpdate() bool {
	return QueryKind(strings.ToUpper(string(k))) == KindUpdate
}

// WorkloadSnapshot is the workload telemetry collected over a window
type WorkloadSnapshot struct {
	SnapshotHours float64        `json:"snapshot_hours" yaml:"snapshot_hours"`
	Queries       []QueryPattern `json:"queries" yaml:"queries"`
}

// QueryPattern is one normalized query template with its runtime statistics
type QueryPattern struct {
	ID               string              `json:"id" yaml:"id"`
	SQLTemplate      string              `json:"sql_template,omitempty" yaml:"sql_template"`
	Kind             QueryKind           `json:"kind" yaml:"kind"`
	ExecutionsPerDay float64             `json:"executions_per_day" yaml:"executions_per_day"`
	AvgLatencyMs     float64             `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	P95LatencyMs     float64             `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	Tables           []string            `json:"tables" yaml:"tables"` // first entry is the driving table
	Joins            []JoinRef           `json:"joins,omitempty" yaml:"joins"`
	ProjectedColumns map[string][]string `json:"projected_columns,omitempty" yaml:"projected_columns"`
	UpdatedColumns   []string            `json:"updated_columns,omitempty" yaml:"updated_columns"`
	SelectsAll       bool                `json:"selects_all" yaml:"selects_all"`
	HasPredicates    bool                `json:"has_predicates" yaml:"has_predicates"`
	HasAggregates    bool                `json:"has_aggregates" yaml:"has_aggregates"`
}

// JoinRef is a join edge between two tables
type JoinRef struct {
	LeftTable   string `json:"left_table" yaml:"left_table"`
	RightTable  string `json:"right_table" yaml:"right_table"`
	LeftColumn  string `json:"left_column,omitempty" yaml:"left_column"`
	RightColumn string `json:"right_column,omitempty" yaml:"right_column"`
}

// Touches reports whether the query reads or writes table.
func (q *QueryPattern) Touches(table string) bool {
	for _, name := range q.Tables {
		if strings.EqualFold(name, table) {
			return true
		}
	}
	return false
}

// JoinsTable reports whether any join edge of the query involves table.
func (q *QueryPattern) JoinsTable(table string) bool {
	for _, join := range q.Joins {
		if strings.EqualFold(join.LeftTable, table) || strings.EqualFold(join.RightTable, table) {
			return true
		}
	}
	return false
}

// HasJoin reports whether the query contains the left→right join.
func (q *QueryPattern) HasJoin(left, right string) bool {
	for _, join := range q.Joins {
		if strings.EqualFold(join.LeftTable, left) && strings.EqualFold(join.RightTable, right) {
			return true
		}
	}
	return false
}

// SetsColumn reports whether an UPDATE writes column. Updates that do not
// list their columns are assumed to touch every column.
func (q *QueryPattern) SetsColumn(column string) bool {
	if !q.Kind.IsUpdate() {
		return false
	}
	if len(q.UpdatedColumns) == 0 {
		return true
	}
	for _, name := range q.UpdatedColumns {
		if strings.EqualFold(name, column) {
			return true
		}
	}
	return false
}

// SnapshotExecutions is the absolute execution count within the snapshot window.
func (q *QueryPattern) SnapshotExecutions(snapshotHours float64) float64 {
	return q.ExecutionsPerDay * snapshotHours / 24
}

// DailyCostMs is the total query time spent per day.
func (q *QueryPattern) DailyCostMs() float64 {
	return q.ExecutionsPerDay * q.AvgLatencyMs
}

// AccessStyle classifies a query as single-object or aggregated access
type AccessStyle int

const (
	AccessNeither AccessStyle = iota
	AccessOLTP
	AccessAnalytics
)

// Access sorts the query into OLTP-style, analytics-style or neither. Writes
// are always OLTP; reads need both a low latency and a simple shape to count
// as OLTP.
func (q *QueryPattern) Access(oltpLatencyMs, analyticsLatencyMs float64) AccessStyle {
	if q.Kind.IsWrite() {
		return AccessOLTP
	}
	if q.HasAggregates || len(q.Joins) > 2 || q.AvgLatencyMs >= analyticsLatencyMs {
		return AccessAnalytics
	}
	if len(q.Joins) <= 1 && q.AvgLatencyMs <= oltpLatencyMs {
		return AccessOLTP
	}
	return AccessNeither
}

// SchemaSnapshot is the table metadata collected alongside a workload
type SchemaSnapshot struct {
	Tables []TableMetadata `json:"tables" yaml:"tables"`
}

// TableMetadata describes one table
type TableMetadata struct {
	Name          string           `json:"name" yaml:"name"`
	Columns       []ColumnMetadata `json:"columns" yaml:"columns"`
	RowCount      int64            `json:"row_count" yaml:"row_count"`
	AvgRowLength  float64          `json:"avg_row_length" yaml:"avg_row_length"` // bytes
	UpdatesPerDay float64          `json:"updates_per_day" yaml:"updates_per_day"`
	ForeignKeys   []ForeignKey     `json:"foreign_keys,omitempty" yaml:"foreign_keys"`
}

// ColumnMetadata describes one column
type ColumnMetadata struct {
	Name              string  `json:"name" yaml:"name"`
	DataType          string  `json:"data_type" yaml:"data_type"`
	AvgSizeBytes      float64 `json:"avg_size_bytes" yaml:"avg_size_bytes"`
	Nullable          bool    `json:"nullable" yaml:"nullable"`
	StructuredContent bool    `json:"structured_content,omitempty" yaml:"structured_content"` // JSON/XML text stored in the column
	UpdateSelectivity float64 `json:"update_selectivity,omitempty" yaml:"update_selectivity"` // fraction rewritten per update, 0 = unknown
}

// ForeignKey is a reference from a child column to a parent table
type ForeignKey struct {
	Column           string `json:"column" yaml:"column"`
	ReferencedTable  string `json:"referenced_table" yaml:"referenced_table"`
	ReferencedColumn string `json:"referenced_column,omitempty" yaml:"referenced_column"`
}

var (
	largeObjectTypes = map[string]bool{
		"CLOB": true, "NCLOB": true, "BLOB": true, "TEXT": true,
		"MEDIUMTEXT": true, "LONGTEXT": true, "BYTEA": true, "LONG": true,
	}
	documentTypes = map[string]bool{
		"JSON": true, "JSONB": true,
	}
)

// IsLargeObject reports whether the column uses a raw large-object type.
func (c *ColumnMetadata) IsLargeObject() bool {
	return largeObjectTypes[baseType(c.DataType)]
}

// IsDocument reports whether the column uses a native document type.
func (c *ColumnMetadata) IsDocument() bool {
	return documentTypes[baseType(c.DataType)]
}

// Selectivity returns the update selectivity, treating unknown as a full rewrite.
func (c *ColumnMetadata) Selectivity() float64 {
	if c.UpdateSelectivity <= 0 || c.UpdateSelectivity > 1 {
		return 1
	}
	return c.UpdateSelectivity
}

// Column looks up a column by name.
func (t *TableMetadata) Column(name string) (*ColumnMetadata, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// SizeBytes is the estimated table size.
func (t *TableMetadata) SizeBytes() float64 {
	return t.AvgRowLength * float64(t.RowCount)
}

// References reports whether the table has a foreign key to parent.
func (t *TableMetadata) References(parent string) bool {
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.ReferencedTable, parent) {
			return true
		}
	}
	return false
}

func baseType(dataType string) string {
	upper := strings.ToUpper(strings.TrimSpace(dataType))
	if i := strings.IndexAny(upper, "( "); i >= 0 {
		upper = upper[:i]
	}
	return upper
}
