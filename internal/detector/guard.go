package detector

import (
	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

// applyVolumeGuard discounts patterns backed by too little traffic.
// It only ever lowers confidence and severity.
func applyVolumeGuard(p *models.DetectedPattern, idx *snapshot.Index, th config.Thresholds) {
	if p.SupportingExecutions >= th.MinPatternQueryCount && idx.TotalExecutions() >= th.MinTotalQueries {
		return
	}
	p.LowVolume = true
	p.Confidence = models.Clamp01(p.Confidence * (1 - th.LowVolumeConfidencePenalty))
	p.Severity = p.Severity.Cap(models.SeverityMedium)
}
