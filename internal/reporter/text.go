package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

const (
	textANSIReset = "\x1b[0m"
	textANSIBold  = "\x1b[1m"
)

// WriteText writes a human-readable text report to report.txt and stdout.
func WriteText(report *models.Report, cfg *config.Config) error {
	return writeText(report, cfg, os.Stdout)
}

func writeText(report *models.Report, cfg *config.Config, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if out == nil {
		return fmt.Errorf("writer is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := renderTextReport(report, supportsANSI(out))
	outputPath := filepath.Join(cfg.OutputDir, "report.txt")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report.txt: %w", err)
	}

	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("failed to write text report to output: %w", err)
	}

	return nil
}

func renderTextReport(report *models.Report, useANSI bool) string {
	var b strings.Builder

	generatedAt := strings.TrimSpace(report.Timestamp)
	if generatedAt == "" {
		if !report.Metadata.GeneratedAt.IsZero() {
			generatedAt = report.Metadata.GeneratedAt.UTC().Format(time.RFC3339)
		} else {
			generatedAt = "unknown"
		}
	}

	writeTextSectionHeader(&b, "SchemaSpectre Recommendation Report", useANSI)
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt)
	fmt.Fprintf(&b, "Snapshot hours: %g\n", report.Metadata.SnapshotHours)
	fmt.Fprintf(&b, "Queries analyzed: %d\n", report.Metadata.QueriesAnalyzed)
	fmt.Fprintf(&b, "Tables analyzed: %d\n", report.Metadata.TablesAnalyzed)
	b.WriteString("\n")

	high, medium, low := tierDistribution(report.Recommendations)
	writeTextSectionHeader(&b, "Summary", useANSI)
	fmt.Fprintf(&b, "Patterns detected: %d\n", report.Metadata.PatternsDetected)
	fmt.Fprintf(&b, "Recommendations: %d\n", len(report.Recommendations))
	fmt.Fprintf(&b, "Rejected candidates: %d\n", len(report.Rejected))
	if report.Metadata.SuppressedByBaseline > 0 {
		fmt.Fprintf(&b, "Suppressed by baseline: %d\n", report.Metadata.SuppressedByBaseline)
	}
	b.WriteString("Priority tiers:\n")
	fmt.Fprintf(&b, "  HIGH: %d\n", high)
	fmt.Fprintf(&b, "  MEDIUM: %d\n", medium)
	fmt.Fprintf(&b, "  LOW: %d\n", low)
	b.WriteString("\n")

	writeTextSectionHeader(&b, "Recommendations", useANSI)
	if len(report.Recommendations) == 0 {
		b.WriteString("No recommendations.\n")
	} else {
		b.WriteString("RANK TYPE                  TIER    NET MS/DAY   OBJECTS\n")
		b.WriteString("--------------------------------------------------------------------------------\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(
				&b,
				"%-4d %-21s %-7s %-12.1f %s\n",
				rec.Rank,
				rec.Pattern.Type,
				rec.PriorityTier,
				rec.Cost.NetBenefitScore,
				truncateTextValue(strings.Join(rec.Pattern.AffectedObjects, ", "), 40),
			)
		}
	}

	if len(report.Recommendations) > 0 {
		b.WriteString("\n")
		writeTextSectionHeader(&b, "Details", useANSI)
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&b, "#%d %s | severity=%s | confidence=%.2f | priority=%.1f\n",
				rec.Rank, rec.Pattern.Type, rec.Pattern.Severity, rec.Pattern.Confidence, rec.PriorityScore)
			fmt.Fprintf(&b, "  objects: %s\n", strings.Join(rec.Pattern.AffectedObjects, ", "))
			fmt.Fprintf(&b, "  decision: %s\n", rec.Rationale)
			fmt.Fprintf(&b, "  break-even: %s\n", formatBreakEven(rec.Cost.BreakEvenDays))
			if len(rec.Tradeoffs) > 0 {
				b.WriteString("  tradeoffs:\n")
				for _, note := range rec.Tradeoffs {
					fmt.Fprintf(&b, "    - %s\n", note)
				}
			}
			fmt.Fprintf(&b, "  guidance (%s): %s\n", rec.Guidance.Source, rec.Guidance.Rationale)
			b.WriteString("\n")
		}
	}

	if len(report.Rejected) > 0 {
		writeTextSectionHeader(&b, "Rejected", useANSI)
		for _, rej := range report.Rejected {
			fmt.Fprintf(&b, "- %s %s: %s\n", rej.PatternType, strings.Join(rej.AffectedObjects, ", "), rej.Rationale)
		}
		b.WriteString("\n")
	}

	if len(report.Diagnostics) > 0 {
		writeTextSectionHeader(&b, "Diagnostics", useANSI)
		diags := append([]models.Diagnostic(nil), report.Diagnostics...)
		sort.SliceStable(diags, func(i, j int) bool {
			if diags[i].Kind != diags[j].Kind {
				return diags[i].Kind < diags[j].Kind
			}
			return diags[i].Object < diags[j].Object
		})
		for _, d := range diags {
			object := d.Object
			if object == "" {
				object = "-"
			}
			fmt.Fprintf(&b, "- [%s] %s %s: %s\n", d.Kind, d.Stage, object, d.Reason)
		}
	}

	return b.String()
}

func writeTextSectionHeader(b *strings.Builder, title string, useANSI bool) {
	header := title
	if useANSI {
		header = textANSIBold + title + textANSIReset
	}
	fmt.Fprintf(b, "%s\n", header)
	fmt.Fprintf(b, "%s\n", strings.Repeat("-", len(title)))
}

func supportsANSI(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

func formatBreakEven(days *float64) string {
	if days == nil {
		return "never"
	}
	return fmt.Sprintf("%.1f days", *days)
}

func truncateTextValue(value string, width int) string {
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}

func tierDistribution(recs []models.FinalRecommendation) (int, int, int) {
	high := 0
	medium := 0
	low := 0

	for _, rec := range recs {
		switch rec.PriorityTier {
		case models.TierHigh:
			high++
		case models.TierMedium:
			medium++
		default:
			low++
		}
	}

	return high, medium, low
}
