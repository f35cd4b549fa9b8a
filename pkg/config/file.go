package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".schemaspectre.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".schemaspectre.yml"
)

// FileConfig represents values loaded from a .schemaspectre.yaml file.
// Section nodes are kept raw so they can be decoded over the defaults,
// leaving every key the file does not mention untouched.
type FileConfig struct {
	Thresholds    yaml.Node          `yaml:"thresholds"`
	CostModel     yaml.Node          `yaml:"cost_model"`
	Constraints   yaml.Node          `yaml:"constraints"`
	Collaborator  CollaboratorConfig `yaml:"collaborator"`
	ExcludeTables []string           `yaml:"exclude_tables"`
	Concurrency   *int               `yaml:"concurrency"`
	Format        string             `yaml:"format"`
	OutputDir     string             `yaml:"output"`
	Baseline      string             `yaml:"baseline"`
}

// CollaboratorConfig is the file form of Collaborator.
type CollaboratorConfig struct {
	URL         string   `yaml:"url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Timeout     string   `yaml:"timeout"`
	MaxAttempts *int     `yaml:"max_attempts"`
	Backoff     string   `yaml:"backoff"`
	RateLimit   *float64 `yaml:"rate_limit"`
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.ExcludeTables = normalizeList(fc.ExcludeTables)
	fc.Format = strings.TrimSpace(fc.Format)
	fc.OutputDir = strings.TrimSpace(fc.OutputDir)
	fc.Baseline = strings.TrimSpace(fc.Baseline)
	fc.Collaborator.URL = strings.TrimSpace(fc.Collaborator.URL)
	fc.Collaborator.APIKeyEnv = strings.TrimSpace(fc.Collaborator.APIKeyEnv)
	fc.Collaborator.Timeout = strings.TrimSpace(fc.Collaborator.Timeout)
	fc.Collaborator.Backoff = strings.TrimSpace(fc.Collaborator.Backoff)
}

// ApplyTo overlays the file values onto cfg.
func (fc *FileConfig) ApplyTo(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}

	sections := []struct {
		name   string
		node   *yaml.Node
		target any
	}{
		{name: "thresholds", node: &fc.Thresholds, target: &cfg.Thresholds},
		{name: "cost_model", node: &fc.CostModel, target: &cfg.CostModel},
		{name: "constraints", node: &fc.Constraints, target: &cfg.Constraints},
	}
	for _, section := range sections {
		if section.node.Kind == 0 {
			continue
		}
		if err := section.node.Decode(section.target); err != nil {
			return fmt.Errorf("failed to decode %s: %w", section.name, err)
		}
	}

	collab := fc.Collaborator
	if collab.URL != "" {
		cfg.Collaborator.BaseURL = collab.URL
	}
	if collab.APIKeyEnv != "" {
		cfg.Collaborator.APIKey = strings.TrimSpace(os.Getenv(collab.APIKeyEnv))
	}
	if collab.Timeout != "" {
		timeout, err := ParseDuration(collab.Timeout)
		if err != nil {
			return fmt.Errorf("invalid collaborator.timeout: %w", err)
		}
		cfg.Collaborator.Timeout = timeout
	}
	if collab.Backoff != "" {
		backoff, err := ParseDuration(collab.Backoff)
		if err != nil {
			return fmt.Errorf("invalid collaborator.backoff: %w", err)
		}
		cfg.Collaborator.Backoff = backoff
	}
	if collab.MaxAttempts != nil {
		cfg.Collaborator.MaxAttempts = *collab.MaxAttempts
	}
	if collab.RateLimit != nil {
		cfg.Collaborator.RateLimit = *collab.RateLimit
	}

	if len(fc.ExcludeTables) > 0 {
		cfg.ExcludeTables = append([]string{}, fc.ExcludeTables...)
	}
	if fc.Concurrency != nil {
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.Format != "" {
		cfg.Format = fc.Format
	}
	if fc.OutputDir != "" {
		cfg.OutputDir = fc.OutputDir
	}
	if fc.Baseline != "" {
		cfg.BaselinePath = fc.Baseline
	}

	cfg.Normalize()
	return nil
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
