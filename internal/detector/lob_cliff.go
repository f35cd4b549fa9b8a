package detector

import (
	"fmt"
	"math"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

const stageLOBCliff = "lob_cliff"

// LOB risk factor weights
const (
	lobSizeWeight        = 0.30
	lobFrequencyWeight   = 0.30
	lobSelectivityWeight = 0.20
	lobStructureWeight   = 0.20
)

// lobRisk holds the factors behind one column's risk score
type lobRisk struct {
	size            float64
	frequency       float64
	selectivity     float64
	structure       float64
	updatesPerDay   float64
	snapshotUpdates float64
	raw             float64 // before halving
	score           float64
	halved          bool
}

// DetectLOBCliff flags large-object and document columns that are rewritten
// in full by frequent small updates.
func DetectLOBCliff(idx *snapshot.Index, cfg *config.Config) Result {
	result := Result{}
	th := cfg.Thresholds

	for _, name := range idx.TableNames() {
		table, _ := idx.Table(name)
		queries := idx.QueriesFor(name)
		if len(queries) == 0 {
			continue
		}

		for i := range table.Columns {
			col := &table.Columns[i]
			if !col.IsLargeObject() && !col.IsDocument() {
				continue
			}
			if col.AvgSizeBytes < 0 || math.IsNaN(col.AvgSizeBytes) {
				result.dataError(stageLOBCliff, models.ColumnObject(table.Name, col.Name), "avg_size_bytes must not be negative")
				continue
			}

			risk := scoreLOBRisk(idx, table, col, th)
			if risk.raw+scoreEpsilon < th.LOBMinRisk {
				continue
			}

			severity := models.SeverityMedium
			if risk.score+scoreEpsilon >= th.LOBHighRisk {
				severity = models.SeverityHigh
			}

			halved := 0.0
			if risk.halved {
				halved = 1
			}

			p := models.DetectedPattern{
				Type:            models.PatternLOBCliff,
				Severity:        severity,
				Confidence:      risk.score,
				AffectedObjects: []string{models.ColumnObject(table.Name, col.Name)},
				Metrics: map[string]float64{
					"risk_score":         risk.score,
					"raw_risk_score":     risk.raw,
					"size_factor":        risk.size,
					"frequency_factor":   risk.frequency,
					"selectivity_factor": risk.selectivity,
					"structure_factor":   risk.structure,
					"avg_size_bytes":     col.AvgSizeBytes,
					"updates_per_day":    risk.updatesPerDay,
					"snapshot_updates":   risk.snapshotUpdates,
					"update_selectivity": col.Selectivity(),
					"risk_halved":        halved,
				},
				Hint: fmt.Sprintf("store %s.%s out of line or split it so updates rewrite only the changed part",
					table.Name, col.Name),
				SupportingExecutions: idx.SnapshotExecutions(executionsPerDay(queries, nil)),
			}
			applyVolumeGuard(&p, idx, th)
			result.add(p)
		}
	}

	return result
}

func scoreLOBRisk(idx *snapshot.Index, table *models.TableMetadata, col *models.ColumnMetadata, th config.Thresholds) lobRisk {
	risk := lobRisk{updatesPerDay: columnUpdatesPerDay(idx, table, col.Name)}

	if col.AvgSizeBytes > th.LOBLargeValueBytes {
		risk.size = lobSizeWeight
	}
	if risk.updatesPerDay > th.LOBHighUpdatesPerDay {
		risk.frequency = lobFrequencyWeight * math.Min(1, idx.SnapshotHours/24)
	}
	if col.Selectivity() < th.LOBLowSelectivity {
		risk.selectivity = lobSelectivityWeight
	}
	if col.StructuredContent && col.IsLargeObject() {
		risk.structure = lobStructureWeight
	}

	risk.raw = risk.size + risk.frequency + risk.selectivity + risk.structure
	risk.score = risk.raw
	risk.snapshotUpdates = idx.SnapshotExecutions(risk.updatesPerDay)
	if risk.snapshotUpdates < th.MinPatternQueryCount {
		risk.score /= 2
		risk.halved = true
	}
	return risk
}

// columnUpdatesPerDay is the daily rate of updates that rewrite column.
// Tables whose workload carries no UPDATE statements fall back to the
// schema's recorded update rate.
func columnUpdatesPerDay(idx *snapshot.Index, table *models.TableMetadata, column string) float64 {
	sawUpdate := false
	rate := 0.0
	for _, q := range idx.QueriesFor(table.Name) {
		if !q.Kind.IsUpdate() || !snapshot.WritesTo(q, table.Name) {
			continue
		}
		sawUpdate = true
		if q.SetsColumn(column) {
			rate += q.ExecutionsPerDay
		}
	}
	if !sawUpdate {
		return table.UpdatesPerDay
	}
	return rate
}
