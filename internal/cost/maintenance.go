package cost

import "github.com/ppiankov/schemaspectre/internal/models"

// maintenanceTable is the fixed operational burden of each change type
var maintenanceTable = map[models.PatternType]models.MaintenanceBurden{
	models.PatternLOBCliff: {
		Complexity:         3,
		AppChangesRequired: false,
		DBAEffortHours:     4,
		RollbackComplexity: models.TierLow,
		OperationalRisk:    models.TierLow,
	},
	models.PatternExpensiveJoin: {
		Complexity:         5,
		AppChangesRequired: true,
		DBAEffortHours:     16,
		RollbackComplexity: models.TierMedium,
		OperationalRisk:    models.TierMedium,
	},
	models.PatternDocumentCandidate: {
		Complexity:         8,
		AppChangesRequired: true,
		DBAEffortHours:     40,
		RollbackComplexity: models.TierHigh,
		OperationalRisk:    models.TierHigh,
	},
	models.PatternRelationalCandidate: {
		Complexity:         7,
		AppChangesRequired: true,
		DBAEffortHours:     32,
		RollbackComplexity: models.TierHigh,
		OperationalRisk:    models.TierMedium,
	},
	models.PatternDualityOpportunity: {
		Complexity:         3,
		AppChangesRequired: false,
		DBAEffortHours:     8,
		RollbackComplexity: models.TierLow,
		OperationalRisk:    models.TierMedium,
	},
}
