package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/schemaspectre/internal/models"
	"gopkg.in/yaml.v3"
)

// LoadWorkload reads a workload snapshot from a YAML or JSON file.
func LoadWorkload(path string) (*models.WorkloadSnapshot, error) {
	workload := &models.WorkloadSnapshot{}
	if err := decodeFile(path, workload); err != nil {
		return nil, err
	}
	return workload, nil
}

// LoadSchema reads a schema snapshot from a YAML or JSON file.
func LoadSchema(path string) (*models.SchemaSnapshot, error) {
	schema := &models.SchemaSnapshot{}
	if err := decodeFile(path, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func decodeFile(path string, out any) error {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return fmt.Errorf("snapshot path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read snapshot %q: %w", filename, err)
	}

	if strings.EqualFold(filepath.Ext(filename), ".json") {
		err = json.Unmarshal(data, out)
	} else {
		err = yaml.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("failed to parse snapshot %q: %w", filename, err)
	}
	return nil
}
