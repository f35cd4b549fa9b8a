package cost

import (
	"fmt"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
)

// indexStorage sizes an index-style change:
// avg_row_len × rows × (changed columns / total columns) × factor.
func indexStorage(e *estimator) float64 {
	table := e.primary
	changed := 1
	if e.pattern.Type == models.PatternRelationalCandidate {
		changed = 0
		for _, col := range table.Columns {
			if col.IsDocument() || col.IsLargeObject() || col.StructuredContent {
				changed++
			}
		}
		if changed == 0 {
			changed = 1
		}
	}

	ratio := 1.0
	if len(table.Columns) > 0 {
		ratio = min(1, float64(changed)/float64(len(table.Columns)))
	}
	return table.SizeBytes() * ratio * e.cfg.CostModel.IndexStorageFactor
}

// joinStorage is the size of the copied dimension columns times fact rows.
func joinStorage(e *estimator) float64 {
	if len(e.tables) < 2 {
		return 0
	}
	fact, dim := e.tables[0], e.tables[1]

	fallback := 0.0
	if len(dim.Columns) > 0 {
		fallback = dim.AvgRowLength / float64(len(dim.Columns))
	}

	perRow := 0.0
	for _, object := range e.pattern.AffectedObjects {
		column := models.ColumnOf(object)
		if column == "" || !strings.EqualFold(models.TableOf(object), dim.Name) {
			continue
		}
		col, ok := dim.Column(column)
		if ok && col.AvgSizeBytes > 0 {
			perRow += col.AvgSizeBytes
			continue
		}
		perRow += fallback
	}
	return perRow * float64(fact.RowCount)
}

func documentStorage(e *estimator) float64 {
	return e.primary.SizeBytes() * e.cfg.CostModel.DocumentKeyOverhead
}

func dualityStorage(e *estimator) float64 {
	return e.primary.SizeBytes() * e.cfg.CostModel.DualityStorageFraction
}

func lobCompute(*estimator) models.ComputeCost {
	return models.ComputeCost{
		MaintenanceOps: []string{
			"move the column to out-of-line storage",
			"rewrite existing values once",
		},
	}
}

func relationalCompute(*estimator) models.ComputeCost {
	return models.ComputeCost{
		MaintenanceOps: []string{
			"create normalized tables for embedded attributes",
			"backfill and index extracted attributes",
		},
	}
}

// joinCompute is the daily cost of propagating dimension updates into the copies.
func joinCompute(e *estimator) models.ComputeCost {
	ops := []string{
		"propagate dimension updates to copied columns",
		"reconcile copied columns periodically",
	}
	if len(e.tables) < 2 || e.tables[1].RowCount == 0 {
		return models.ComputeCost{MaintenanceOps: ops}
	}
	fact, dim := e.tables[0], e.tables[1]
	rowsPerDimension := float64(fact.RowCount) / float64(dim.RowCount)
	return models.ComputeCost{
		ComputeMsPerDay: dim.UpdatesPerDay * rowsPerDimension * e.cfg.CostModel.RowUpdateCostMs,
		MaintenanceOps:  ops,
	}
}

// documentCompute charges one parent document rewrite per child write.
func documentCompute(e *estimator) models.ComputeCost {
	writes := 0.0
	for _, child := range e.tables[1:] {
		writes += e.idx.WritesPerDay(child.Name)
	}
	return models.ComputeCost{
		ComputeMsPerDay: writes * e.cfg.CostModel.RowUpdateCostMs,
		MaintenanceOps: []string{
			"rewrite parent documents when embedded rows change",
			"migrate existing rows into documents",
		},
	}
}

func dualityCompute(e *estimator) models.ComputeCost {
	cm := e.cfg.CostModel
	return models.ComputeCost{
		ComputeMsPerDay: RefreshCostMsPerDay(e.idx.WritesPerDay(e.primary.Name), e.primary.RowCount, cm),
		MaintenanceOps: []string{
			fmt.Sprintf("refresh the duality view (%s)", cm.RefreshStrategy),
		},
	}
}
