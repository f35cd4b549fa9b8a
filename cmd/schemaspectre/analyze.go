package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/schemaspectre/internal/assembler"
	"github.com/ppiankov/schemaspectre/internal/baseline"
	"github.com/ppiankov/schemaspectre/internal/generator"
	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/internal/pipeline"
	"github.com/ppiankov/schemaspectre/internal/reporter"
	"github.com/ppiankov/schemaspectre/internal/snapshot"
	"github.com/ppiankov/schemaspectre/pkg/config"
	"github.com/spf13/cobra"
)

// APIKeyEnv is read when no collaborator key comes from the config file.
const APIKeyEnv = "SCHEMASPECTRE_GENERATOR_API_KEY"

// analyzeOptions holds raw flag values. They are applied over the config
// file only when set on the command line.
type analyzeOptions struct {
	workloadPath string
	schemaPath   string
	configPath   string

	outputDir      string
	format         string
	baselinePath   string
	updateBaseline bool
	failOnFindings bool
	dryRun         bool

	concurrency   int
	excludeTables []string
	minNetBenefit float64

	generatorURL      string
	generatorTimeout  string
	generatorAttempts int
}

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	cmd, _, _ := newAnalyzeCmd()
	return cmd
}

func newAnalyzeCmd() (*cobra.Command, *config.Config, *analyzeOptions) {
	cfg := config.DefaultConfig()
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:     "analyze",
		Aliases: []string{"audit"},
		Short:   "Detect schema anti-patterns and rank cost-justified changes",
		Long: `Analyze a workload snapshot against a schema snapshot, detect LOB cliffs,
expensive joins, document/relational mismatches and duality view
opportunities, and write a ranked recommendation report.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareAnalyzeConfig(cmd, cfg, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	defaults := config.DefaultConfig()

	// Input flags
	cmd.Flags().StringVar(&opts.workloadPath, "workload", "", "Workload snapshot file, YAML or JSON (required)")
	cmd.Flags().StringVar(&opts.schemaPath, "schema", "", "Schema snapshot file, YAML or JSON (required)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Config file (default: ./.schemaspectre.yaml or ~/.schemaspectre.yaml)")

	// Output flags
	cmd.Flags().StringVar(&opts.outputDir, "output", defaults.OutputDir, "Output directory")
	cmd.Flags().StringVar(&opts.format, "format", defaults.Format, "Output format (json, text, sarif, all)")
	cmd.Flags().StringVar(&opts.baselinePath, "baseline", "", "Baseline file of accepted recommendations to suppress")
	cmd.Flags().BoolVar(&opts.updateBaseline, "update-baseline", false, "Record current recommendations in the baseline file")
	cmd.Flags().BoolVar(&opts.failOnFindings, "fail-on-findings", false, "Exit with code 6 when recommendations are produced")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Dry run mode (don't write output)")

	// Analysis flags
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", defaults.Concurrency, "Worker pool size")
	cmd.Flags().StringSliceVar(&opts.excludeTables, "exclude-table", nil, "Table name or glob to skip (repeatable)")
	cmd.Flags().Float64Var(&opts.minNetBenefit, "min-net-benefit", defaults.Constraints.MinNetBenefit, "Minimum net benefit in ms/day for a recommendation")

	// Generator flags
	cmd.Flags().StringVar(&opts.generatorURL, "generator-url", "", "Base URL of the guidance generator (templates only when empty)")
	cmd.Flags().StringVar(&opts.generatorTimeout, "generator-timeout", defaults.Collaborator.Timeout.String(), "Per-attempt generator timeout (e.g., 5s, 1m)")
	cmd.Flags().IntVar(&opts.generatorAttempts, "generator-attempts", defaults.Collaborator.MaxAttempts, "Generator attempts per recommendation")

	return cmd, cfg, opts
}

// prepareAnalyzeConfig layers defaults, the config file and explicit flags,
// then validates the result.
func prepareAnalyzeConfig(cmd *cobra.Command, cfg *config.Config, opts *analyzeOptions) error {
	if err := applyConfigFile(cfg, opts.configPath); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("format") {
		cfg.Format = opts.format
	}
	if flags.Changed("baseline") {
		cfg.BaselinePath = opts.baselinePath
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if flags.Changed("exclude-table") {
		cfg.ExcludeTables = append([]string{}, opts.excludeTables...)
	}
	if flags.Changed("min-net-benefit") {
		cfg.Constraints.MinNetBenefit = opts.minNetBenefit
	}
	if flags.Changed("generator-url") {
		cfg.Collaborator.BaseURL = strings.TrimSpace(opts.generatorURL)
	}
	if flags.Changed("generator-timeout") {
		timeout, err := config.ParseDuration(opts.generatorTimeout)
		if err != nil {
			return fmt.Errorf("invalid --generator-timeout duration: %w", err)
		}
		cfg.Collaborator.Timeout = timeout
	}
	if flags.Changed("generator-attempts") {
		cfg.Collaborator.MaxAttempts = opts.generatorAttempts
	}
	if cfg.Collaborator.APIKey == "" {
		cfg.Collaborator.APIKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	}

	cfg.UpdateBaseline = opts.updateBaseline
	cfg.DryRun = opts.dryRun
	cfg.Verbose = verbose
	cfg.Normalize()

	if strings.TrimSpace(opts.workloadPath) == "" {
		return fmt.Errorf("--workload is required")
	}
	if strings.TrimSpace(opts.schemaPath) == "" {
		return fmt.Errorf("--schema is required")
	}
	if !reporter.ValidFormat(cfg.Format) {
		return fmt.Errorf("invalid --format value %q (expected json, text, sarif or all)", cfg.Format)
	}
	if cfg.UpdateBaseline && cfg.BaselinePath == "" {
		cfg.BaselinePath = baseline.DefaultPath
	}

	return cfg.Validate()
}

func applyConfigFile(cfg *config.Config, path string) error {
	var (
		fileCfg *config.FileConfig
		source  string
		err     error
	)

	if strings.TrimSpace(path) != "" {
		fileCfg, err = config.LoadFile(path)
		source = path
	} else {
		fileCfg, source, err = config.AutoLoadFile()
	}
	if err != nil {
		return err
	}
	if fileCfg == nil {
		return nil
	}

	if err := fileCfg.ApplyTo(cfg); err != nil {
		return fmt.Errorf("config file %s: %w", source, err)
	}
	slog.Debug("loaded config file", slog.String("path", source))
	return nil
}

// runAnalyze executes the analysis workflow
func runAnalyze(ctx context.Context, cfg *config.Config, opts *analyzeOptions, out io.Writer) error {
	startTime := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	slog.Debug("starting analysis",
		slog.String("workload", opts.workloadPath),
		slog.String("schema", opts.schemaPath),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Bool("generator", cfg.Collaborator.Enabled()),
	)

	fmt.Fprintln(out, "📂 Loading snapshots...")
	workload, err := snapshot.LoadWorkload(opts.workloadPath)
	if err != nil {
		return fmt.Errorf("failed to load workload snapshot: %w", err)
	}
	schema, err := snapshot.LoadSchema(opts.schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema snapshot: %w", err)
	}

	var gen assembler.Generator
	if cfg.Collaborator.Enabled() {
		client, err := generator.New(cfg.Collaborator)
		if err != nil {
			return fmt.Errorf("invalid generator configuration: %w", err)
		}
		gen = client
	}

	fmt.Fprintln(out, "🔍 Analyzing workload...")
	result, err := pipeline.Run(ctx, workload, schema, cfg, gen)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	fmt.Fprintf(out, "✓ Analyzed %d queries across %d tables, %d patterns detected\n",
		result.Stats.QueriesAnalyzed, result.Stats.TablesAnalyzed, len(result.Patterns))

	report := buildReport(cfg, result, startTime)

	if cfg.BaselinePath != "" {
		if err := applyBaseline(cfg, report); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "✓ Recommendations: %d accepted, %d rejected\n", len(report.Recommendations), len(report.Rejected))

	if !cfg.DryRun {
		fmt.Fprintln(out, "📝 Writing report...")
		if err := reporter.New(cfg).Generate(report); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		fmt.Fprintf(out, "✓ Report written to: %s\n", cfg.OutputDir)
	} else {
		fmt.Fprintln(out, "🏃 Dry run mode - skipping output")
	}

	fmt.Fprintf(out, "\n✅ Analysis complete in %s!\n", time.Since(startTime).Round(time.Millisecond))

	if opts.failOnFindings && len(report.Recommendations) > 0 {
		return &FindingsError{Count: len(report.Recommendations)}
	}
	return nil
}

func applyBaseline(cfg *config.Config, report *models.Report) error {
	known, err := baseline.Load(cfg.BaselinePath)
	if err != nil {
		return fmt.Errorf("failed to load baseline: %w", err)
	}

	if cfg.UpdateBaseline {
		baseline.AddAll(known, baseline.CollectFingerprints(report))
		if err := baseline.Save(cfg.BaselinePath, known); err != nil {
			return fmt.Errorf("failed to update baseline: %w", err)
		}
		slog.Info("baseline updated",
			slog.String("path", cfg.BaselinePath),
			slog.Int("fingerprints", len(known)),
		)
		return nil
	}

	suppressed, remaining := baseline.SuppressKnown(report, known)
	slog.Debug("baseline applied",
		slog.String("path", cfg.BaselinePath),
		slog.Int("suppressed", suppressed),
		slog.Int("remaining", remaining),
	)
	return nil
}

// buildReport constructs the final report
func buildReport(cfg *config.Config, result *pipeline.Result, startTime time.Time) *models.Report {
	generatedAt := time.Now().UTC()

	recommendations := result.Recommendations
	if recommendations == nil {
		recommendations = []models.FinalRecommendation{}
	}
	diagnostics := result.Diagnostics
	if diagnostics == nil {
		diagnostics = []models.Diagnostic{}
	}

	return &models.Report{
		Tool:      "schemaspectre",
		Version:   version,
		Timestamp: generatedAt.Format(time.RFC3339),
		Metadata: models.Metadata{
			GeneratedAt:      generatedAt,
			SnapshotHours:    result.Stats.SnapshotHours,
			QueriesAnalyzed:  result.Stats.QueriesAnalyzed,
			TablesAnalyzed:   result.Stats.TablesAnalyzed,
			TotalExecutions:  result.Stats.TotalExecutions,
			PatternsDetected: len(result.Patterns),
			AnalysisDuration: time.Since(startTime).Round(time.Millisecond).String(),
			Version:          version,
			GeneratorEnabled: cfg.Collaborator.Enabled(),
		},
		Recommendations: recommendations,
		Rejected:        models.Rejections(result.Prioritized),
		Diagnostics:     diagnostics,
	}
}
