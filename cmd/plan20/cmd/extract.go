package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"plan20-extraction-service/cmd/plan20/config"
	"plan20-extraction-service/internal/engine"
	"plan20-extraction-service/internal/parsers"
	"plan20-extraction-service/internal/reporter"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// Flags for the extract command
var (
	inputFile      string
	outputDir      string
	targetUnit     string
	minExercise    int
	outputPrefix   string
	debugCSV       bool
	summaryFormat  string
	summaryFile    string
	showProgress   bool
	strictMatching bool
	sheetNames     []string
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [input]",
	Short: "Extract the record table and the Plan20 table from a workbook",
	Long: `Extract reads a Plan20 budget workbook (.xlsx, .xlsm or .xls), tags every
row with its hierarchical identifier, extracts the fields of every level and
writes an output workbook with four sheets:

  Identificadores_Raw  every non-blank input row with its identifier
  Extrair_dados        one denormalized record per expense item
  Plan20_SEDUC         the records of the target unit with the planning key
  Debug_Log            the decisions taken while extracting

A debug CSV with the decision trail is written next to the workbook, and a
run summary is printed to stdout or to --summary-file.

Examples:
  # Basic extraction into the current directory
  plan20 extract --input plan20.xlsx

  # Legacy workbook, output directory and JSON summary
  plan20 extract plan20.xls --output-dir out --summary-format json --summary-file summary.json

  # Another unit and exercise
  plan20 extract -i plan20.xlsx --target-unit "15.101 - SECRETARIA DE ESTADO DE SAÚDE" --min-exercise 2026

  # Only two sheets, with progress
  plan20 extract -i plan20.xlsx --sheets "Plan A,Plan B" --progress`,

	Args:    cobra.MaximumNArgs(1),
	PreRunE: validateExtractFlags,
	RunE:    runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to the input workbook (required unless given as argument)")
	extractCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "directory of the output workbook and debug CSV")
	extractCmd.Flags().StringVar(&outputPrefix, "output-prefix", "plan20", "file name prefix of the output workbook")
	extractCmd.Flags().BoolVar(&debugCSV, "debug-csv", true, "write the decision trail as a CSV file")
	extractCmd.Flags().StringSliceVar(&sheetNames, "sheets", []string{}, "comma-separated sheet names to read (default: all)")

	extractCmd.Flags().StringVar(&targetUnit, "target-unit", "14.101 - SECRETARIA DE ESTADO DE EDUCAÇÃO", "organizational unit kept in the Plan20 table")
	extractCmd.Flags().IntVar(&minExercise, "min-exercise", 2025, "first exercise kept in the Plan20 table")
	extractCmd.Flags().BoolVar(&strictMatching, "strict-matching", false, "join expense items on the region code alone")

	extractCmd.Flags().StringVarP(&summaryFormat, "summary-format", "f", "console", "run summary format: console, json, yaml")
	extractCmd.Flags().StringVar(&summaryFile, "summary-file", "", "run summary file path (default: stdout)")
	extractCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	for _, name := range []string{
		"input", "output-dir", "output-prefix", "debug-csv", "sheets",
		"target-unit", "min-exercise", "strict-matching",
		"summary-format", "summary-file", "progress",
	} {
		viper.BindPFlag(name, extractCmd.Flags().Lookup(name))
	}
}

func validateExtractFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and env)
	inputFile = viper.GetString("input")
	if len(args) == 1 {
		inputFile = args[0]
	}
	outputDir = viper.GetString("output-dir")
	outputPrefix = viper.GetString("output-prefix")
	debugCSV = viper.GetBool("debug-csv")
	sheetNames = viper.GetStringSlice("sheets")
	targetUnit = viper.GetString("target-unit")
	minExercise = viper.GetInt("min-exercise")
	strictMatching = viper.GetBool("strict-matching")
	summaryFormat = viper.GetString("summary-format")
	summaryFile = viper.GetString("summary-file")
	showProgress = viper.GetBool("progress")

	if inputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "input", "", fmt.Errorf("input is required")).
			WithSuggestion("Pass the workbook with --input or as the first argument")
	}
	if err := validateFileExists(inputFile, "input workbook"); err != nil {
		return err
	}
	if _, err := parsers.DetectFormat(inputFile); err != nil {
		return err
	}

	if _, err := config.CreateReportConfig(summaryFormat); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "summary-format", summaryFormat, err)
	}

	if minExercise < 1900 || minExercise > 9999 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "min-exercise", minExercise,
			fmt.Errorf("min exercise must be a four digit year"))
	}

	if summaryFile != "" {
		dir := filepath.Dir(summaryFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.FileError(errors.CodeDirectoryError, dir, fmt.Errorf("summary directory does not exist: %s", dir))
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, filePath,
			fmt.Errorf("%s is a directory, expected a file: %s", description, filePath))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	file.Close()

	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	log := logger.GetGlobalLogger().WithComponent("cli")

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting extraction...\n")
		fmt.Fprintf(os.Stderr, "Input: %s\n", inputFile)
		fmt.Fprintf(os.Stderr, "Output directory: %s\n", outputDir)
		fmt.Fprintf(os.Stderr, "Target unit: %s (exercise >= %d)\n", targetUnit, minExercise)
		if len(sheetNames) > 0 {
			fmt.Fprintf(os.Stderr, "Sheets: %s\n", strings.Join(sheetNames, ", "))
		}
	}

	engineConfig, err := config.CreateEngineConfig(config.ExtractOptions{
		TargetUnit:     targetUnit,
		MinExercise:    minExercise,
		OutputDir:      outputDir,
		OutputPrefix:   outputPrefix,
		DebugCSV:       debugCSV,
		StrictMatching: strictMatching,
		Sheets:         sheetNames,
	})
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "engine", "", err)
	}

	service, err := engine.NewService(engineConfig, logger.GetGlobalLogger())
	if err != nil {
		return err
	}

	if showProgress {
		service.AddProgressCallback(func(p *engine.Progress) {
			if p.CurrentStep == engine.StepReading && p.Sheet != "" {
				fmt.Fprintf(os.Stderr, "\r[%d/%d] %s: %s, %d rows", p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.Sheet, p.RowsRead)
				return
			}
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)", p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.PercentComplete)
		})
	}

	run, err := service.Run(ctx, inputFile, "")
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(summaryFormat)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "summary-format", summaryFormat, err)
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, logger.GetGlobalLogger())
	if err != nil {
		return err
	}

	output := cmd.OutOrStdout()
	if summaryFile != "" {
		f, err := os.Create(summaryFile)
		if err != nil {
			return errors.OutputError(errors.CodeWriteFailed, summaryFile, err)
		}
		defer f.Close()
		output = f
	}

	if err := generator.GenerateReportSafely(run.Summary, output); err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"run_id":   run.RunID,
		"workbook": run.Artifacts.Workbook,
	}).Info("Extraction finished")

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nExtraction completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Output workbook: %s\n", run.Artifacts.Workbook)
		if run.Artifacts.DebugCSV != "" {
			fmt.Fprintf(os.Stderr, "Debug CSV: %s\n", run.Artifacts.DebugCSV)
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", run.Summary.Duration)
		if issues := FormatIssueSummary(run.Issues, 10); issues != "" {
			fmt.Fprintf(os.Stderr, "%s\n", issues)
		}
	}

	return nil
}
