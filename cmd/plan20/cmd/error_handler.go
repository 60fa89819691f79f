package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if stderrors.Is(err, context.Canceled) {
		fmt.Fprintf(h.out, "Error: extraction interrupted\n")
		return 130
	}

	if engineErr, ok := errors.AsEngineError(err); ok {
		return h.handleEngineError(engineErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleEngineError(err *errors.EngineError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(h.out, "\nContext:\n")
		keys := make([]string, 0, len(err.Context))
		for k := range err.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", k, err.Context[k])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 6
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if h.verbose {
		fmt.Fprintf(h.out, "\nFor more details, check the logs\n")
	}
	return 1
}

// getCategoryHelp returns category-specific help text
func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the workbook exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have permission to create files in the output directory`

	case errors.CategoryWorkbook:
		return `Workbook error help:
• Only .xlsx, .xlsm and .xls workbooks are supported
• Open the file in a spreadsheet application and save it again
• Check that the file is not password protected or truncated`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Check PLAN20_* environment variables and the .env file
• Use 'plan20 extract --help' to see all available options`

	case errors.CategoryOutput:
		return `Output error help:
• Check that the output directory is writable
• Close the output workbook if it is open in another application
• Check available disk space`

	default:
		return `For more help:
• Use 'plan20 --help' for general help
• Use 'plan20 extract --help' for command-specific help
• Run with --verbose and --log-level debug for the decision trail`
	}
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatIssueSummary renders the non-fatal issues of a run, at most limit
// messages.
func FormatIssueSummary(summary *errors.ErrorSummary, limit int) string {
	if summary == nil || summary.Total == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d extraction issues:", summary.Total))
	for i, e := range summary.Errors {
		if i >= limit {
			lines = append(lines, fmt.Sprintf("  ... and %d more", summary.Total-limit))
			break
		}
		lines = append(lines, fmt.Sprintf("  %d. [%s] %s", i+1, e.Code, e.Message))
	}
	return strings.Join(lines, "\n")
}
