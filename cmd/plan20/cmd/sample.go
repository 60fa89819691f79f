package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plan20-extraction-service/internal/samples"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

var (
	samplePrograms int
	sampleOut      string
	sampleSheets   []string
)

// sampleCmd writes a synthetic workbook
var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a synthetic Plan20 workbook",
	Long: `Sample writes a workbook laid out like a Plan20 budget report. Every third
program belongs to another organizational unit, so the Plan20 table of an
extraction holds two thirds of the records.

Examples:
  plan20 sample --out sample.xlsx
  plan20 sample --programs 10 --sheets "Plan A,Plan B" --out big.xlsx`,
	RunE: runSample,
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().IntVarP(&samplePrograms, "programs", "n", 1, "number of programs per sheet")
	sampleCmd.Flags().StringVar(&sampleOut, "out", "plan20_sample.xlsx", "output workbook path (.xlsx)")
	sampleCmd.Flags().StringSliceVar(&sampleSheets, "sheets", []string{"Plan20"}, "comma-separated sheet names")
}

func runSample(cmd *cobra.Command, args []string) error {
	if samplePrograms < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "programs", samplePrograms,
			fmt.Errorf("at least one program is required"))
	}
	if !strings.HasSuffix(strings.ToLower(sampleOut), ".xlsx") {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "out", sampleOut,
			fmt.Errorf("sample workbooks are written as .xlsx"))
	}

	plan := samples.DefaultPlan()
	if samplePrograms > 1 {
		plan = samples.Generate(samplePrograms)
	}
	wb := plan.Workbook(sampleSheets...)

	if err := samples.WriteWorkbook(sampleOut, wb); err != nil {
		return errors.OutputError(errors.CodeWriteFailed, sampleOut, err)
	}

	logger.GetGlobalLogger().WithComponent("cli").WithFields(logger.Fields{
		"path":     sampleOut,
		"programs": len(plan.Programs),
		"sheets":   len(wb.Sheets),
		"rows":     wb.RowCount(),
	}).Info("Sample workbook written")
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d programs, %d sheets)\n", sampleOut, len(plan.Programs), len(wb.Sheets))
	return nil
}
