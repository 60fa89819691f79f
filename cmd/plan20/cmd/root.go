package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"plan20-extraction-service/cmd/plan20/config"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

var (
	cfgFile string
	envFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// initErr holds a failure of initConfig until a command can return it.
	initErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plan20",
	Short: "Plan20 budget spreadsheet extraction tool",
	Long: `Plan20 reads a budget planning workbook whose layout is a human-formatted
report, rebuilds the hierarchy of programs, actions, products, sub-actions,
stages and expense items, and writes a flat record table plus the Plan20
table of the education secretariat.

Examples:
  plan20 extract --input plan20.xlsx --output-dir out
  plan20 extract plan20.xls --summary-format json --summary-file summary.json
  plan20 sample --programs 3 --out sample.xlsx
  plan20 --version`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads the dotenv file, the config file and ENV variables.
func initConfig() {
	initErr = loadEnvFile(envFile)
	if initErr != nil {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			initErr = errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
				WithSuggestion("Check the YAML syntax of the config file")
			return
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("PLAN20")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadEnvFile loads a dotenv file. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.ConfigurationError(errors.CodeInvalidConfig, "env-file", path, err)
	}
	return nil
}

// setupLogging installs the global logger from the log flags.
func setupLogging(cmd *cobra.Command, args []string) error {
	if initErr != nil {
		return initErr
	}
	cfg, err := config.CreateLoggerConfig(viper.GetString("log-level"), viper.GetString("log-format"), viper.GetBool("verbose"))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", viper.GetString("log-level"), err)
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", cfg.Level, err)
	}
	logger.SetGlobalLogger(log)
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
