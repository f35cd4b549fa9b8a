package reporter

import (
	"fmt"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

// Output formats
const (
	FormatJSON  = "json"
	FormatText  = "text"
	FormatSARIF = "sarif"
	FormatAll   = "all"
)

// Reporter interface for generating reports
type Reporter interface {
	Generate(report *models.Report) error
}

// reporter implements the Reporter interface
type reporter struct {
	config *config.Config
}

// New creates a new reporter instance
func New(cfg *config.Config) Reporter {
	return &reporter{
		config: cfg,
	}
}

// Generate writes the report in the configured format
func (r *reporter) Generate(report *models.Report) error {
	switch strings.ToLower(strings.TrimSpace(r.config.Format)) {
	case "", FormatJSON:
		return WriteJSON(report, r.config)
	case FormatText:
		return WriteText(report, r.config)
	case FormatSARIF:
		return WriteSARIF(report, r.config)
	case FormatAll:
		if err := WriteJSON(report, r.config); err != nil {
			return err
		}
		if err := WriteSARIF(report, r.config); err != nil {
			return err
		}
		return WriteText(report, r.config)
	default:
		return fmt.Errorf("unsupported format %q (expected json, text, sarif or all)", r.config.Format)
	}
}

// ValidFormat reports whether format is accepted by Generate.
func ValidFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON, FormatText, FormatSARIF, FormatAll:
		return true
	}
	return false
}
