package config

import (
	"fmt"
	"strings"

	"plan20-extraction-service/internal/engine"
	"plan20-extraction-service/internal/matcher"
	"plan20-extraction-service/internal/planner"
	"plan20-extraction-service/internal/reporter"
	"plan20-extraction-service/pkg/logger"
)

// ExtractOptions are the command-line overrides of an extraction run.
type ExtractOptions struct {
	TargetUnit     string
	MinExercise    int
	OutputDir      string
	OutputPrefix   string
	DebugCSV       bool
	StrictMatching bool
	Sheets         []string
}

// CreateEngineConfig creates the engine configuration with the CLI overrides
// applied. Empty values keep the defaults.
func CreateEngineConfig(opts ExtractOptions) (*engine.Config, error) {
	config := engine.DefaultConfig()

	config.Planner = CreatePlannerConfig(opts.TargetUnit, opts.MinExercise)
	config.Output = CreateOutputConfig(opts.OutputDir, opts.OutputPrefix, opts.DebugCSV)
	config.Denormalizer.Matching = CreateMatchingConfig(opts.StrictMatching)

	for _, s := range opts.Sheets {
		if s = strings.TrimSpace(s); s != "" {
			config.Reader.Sheets = append(config.Reader.Sheets, s)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreatePlannerConfig creates the Plan20 filter configuration
func CreatePlannerConfig(targetUnit string, minExercise int) *planner.Config {
	config := planner.DefaultConfig()
	if strings.TrimSpace(targetUnit) != "" {
		config.TargetUnit = strings.TrimSpace(targetUnit)
	}
	if minExercise != 0 {
		config.MinExercise = minExercise
	}
	return config
}

// CreateOutputConfig creates the output workbook configuration
func CreateOutputConfig(dir, prefix string, debugCSV bool) *reporter.OutputConfig {
	config := reporter.DefaultOutputConfig()
	if dir != "" {
		config.Dir = dir
	}
	if prefix != "" {
		config.Prefix = prefix
	}
	config.DebugCSV = debugCSV
	return config
}

// CreateMatchingConfig creates the join heuristics configuration
func CreateMatchingConfig(strict bool) *matcher.MatchingConfig {
	if strict {
		return matcher.StrictMatchingConfig()
	}
	return matcher.DefaultMatchingConfig()
}

// CreateReportConfig creates a run summary configuration for the specified format
func CreateReportConfig(format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()

	switch reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format))) {
	case reporter.FormatConsole, "":
		config.Format = reporter.FormatConsole
	case reporter.FormatJSON:
		config.Format = reporter.FormatJSON
	case reporter.FormatYAML:
		config.Format = reporter.FormatYAML
	default:
		return nil, fmt.Errorf("invalid summary format '%s'. Valid formats: console, json, yaml", format)
	}

	return config, nil
}

// CreateLoggerConfig creates the CLI logger configuration. Verbose raises the
// level to debug.
func CreateLoggerConfig(level, format string, verbose bool) (*logger.Config, error) {
	config := logger.DefaultConfig()
	if level != "" {
		config.Level = logger.Level(strings.ToLower(level))
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}
	if verbose {
		config.Level = logger.DebugLevel
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
