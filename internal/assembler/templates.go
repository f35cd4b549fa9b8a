package assembler

import (
	"fmt"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
)

type templateFunc func(rec *models.PrioritizedRecommendation) (rationale, sql string)

var templates = map[models.PatternType]templateFunc{
	models.PatternLOBCliff:            lobTemplate,
	models.PatternExpensiveJoin:       joinTemplate,
	models.PatternDocumentCandidate:   documentTemplate,
	models.PatternRelationalCandidate: relationalTemplate,
	models.PatternDualityOpportunity:  dualityTemplate,
}

// templateGuidance is the deterministic fallback used when the collaborator
// is disabled or fails.
func templateGuidance(rec *models.PrioritizedRecommendation) models.Guidance {
	fn, ok := templates[rec.Pattern.Type]
	if !ok {
		return models.Guidance{
			Rationale: fmt.Sprintf("Review %s on %s.", rec.Pattern.Type, strings.Join(rec.Pattern.AffectedObjects, ", ")),
			SQL:       "-- no template available",
			Source:    models.GuidanceTemplate,
		}
	}
	rationale, sql := fn(rec)
	return models.Guidance{Rationale: rationale, SQL: sql, Source: models.GuidanceTemplate}
}

func lobTemplate(rec *models.PrioritizedRecommendation) (string, string) {
	object := primaryObject(rec)
	table, column := models.TableOf(object), models.ColumnOf(object)
	rationale := fmt.Sprintf(
		"Column %s.%s holds large values (about %.0f bytes) that are rewritten %.0f times a day while only a small part changes. "+
			"Moving the changing fields into their own columns avoids full LOB rewrites and saves about %.0f ms of query time a day.",
		table, column, rec.Pattern.Metrics["avg_size_bytes"], rec.Pattern.Metrics["updates_per_day"], rec.Cost.Performance.TimeSavedMsPerDay)
	sql := fmt.Sprintf(
		"-- extract frequently updated fields from %[1]s.%[2]s\n"+
			"ALTER TABLE %[1]s ADD (<field> <type>);\n"+
			"UPDATE %[1]s SET <field> = JSON_VALUE(%[2]s, '$.<field>');",
		table, column)
	return rationale, sql
}

func joinTemplate(rec *models.PrioritizedRecommendation) (string, string) {
	fact, dim := tableAt(rec, 0), tableAt(rec, 1)
	var columns []string
	for _, object := range rec.Pattern.AffectedObjects {
		if col := models.ColumnOf(object); col != "" {
			columns = append(columns, col)
		}
	}
	rationale := fmt.Sprintf(
		"The join from %s to %s runs in %.1f%% of the workload and only reads %s. "+
			"Copying these columns into %s removes the join at an update cost of %.0f ms a day.",
		fact, dim, rec.Pattern.Metrics["join_frequency_pct"], strings.Join(columns, ", "), fact,
		rec.Pattern.Metrics["update_propagation_cost_ms_per_day"])

	var b strings.Builder
	fmt.Fprintf(&b, "-- denormalize %s columns into %s\n", dim, fact)
	for _, col := range columns {
		fmt.Fprintf(&b, "ALTER TABLE %s ADD (%s_%s <type>);\n", fact, dim, col)
	}
	fmt.Fprintf(&b, "-- keep copies in sync with a trigger or application write on %s", dim)
	return rationale, b.String()
}

func documentTemplate(rec *models.PrioritizedRecommendation) (string, string) {
	table := tableAt(rec, 0)
	var children []string
	if tables := rec.Pattern.AffectedTables(); len(tables) > 1 {
		children = tables[1:]
	}
	rationale := fmt.Sprintf(
		"%s is mostly read whole together with its related rows (document score %.2f vs relational %.2f). "+
			"Storing it as a JSON document removes the joins on every read.",
		table, rec.Pattern.Metrics["document_score"], rec.Pattern.Metrics["relational_score"])
	sql := fmt.Sprintf(
		"-- store %[1]s as a document collection\n"+
			"CREATE TABLE %[1]s_doc (id <key type> PRIMARY KEY, data JSON);\n"+
			"-- embed rows from: %[2]s",
		table, strings.Join(children, ", "))
	return rationale, sql
}

func relationalTemplate(rec *models.PrioritizedRecommendation) (string, string) {
	table := tableAt(rec, 0)
	rationale := fmt.Sprintf(
		"Queries on %s filter, aggregate and update individual fields (relational score %.2f vs document %.2f). "+
			"Normalizing the stored documents into typed columns lets indexes serve those queries.",
		table, rec.Pattern.Metrics["relational_score"], rec.Pattern.Metrics["document_score"])
	sql := fmt.Sprintf(
		"-- promote document fields on %[1]s to columns\n"+
			"ALTER TABLE %[1]s ADD (<field> <type>);\n"+
			"CREATE INDEX %[1]s_<field>_idx ON %[1]s (<field>);",
		table)
	return rationale, sql
}

func dualityTemplate(rec *models.PrioritizedRecommendation) (string, string) {
	table := tableAt(rec, 0)
	rationale := fmt.Sprintf(
		"%s serves both point lookups (%.0f%%) and analytics (%.0f%%). "+
			"A duality view gives each access style its own shape over the same rows.",
		table, rec.Pattern.Metrics["oltp_percentage"], rec.Pattern.Metrics["analytics_percentage"])
	sql := fmt.Sprintf(
		"-- expose %[1]s through a JSON duality view\n"+
			"CREATE JSON RELATIONAL DUALITY VIEW %[1]s_dv AS\n"+
			"  SELECT JSON {'_id': t.<key>, ...} FROM %[1]s t WITH INSERT UPDATE DELETE;",
		table)
	return rationale, sql
}

func primaryObject(rec *models.PrioritizedRecommendation) string {
	if len(rec.Pattern.AffectedObjects) == 0 {
		return ""
	}
	return rec.Pattern.AffectedObjects[0]
}

func tableAt(rec *models.PrioritizedRecommendation, i int) string {
	tables := rec.Pattern.AffectedTables()
	if i >= len(tables) {
		return ""
	}
	return tables[i]
}
