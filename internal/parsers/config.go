package parsers

import (
	"fmt"
	"strings"
)

// Config holds workbook reading options.
type Config struct {
	// XLSCharset is the charset passed to the .xls decoder.
	XLSCharset string `json:"xls_charset" mapstructure:"xls_charset"`

	// Sheets restricts reading to the named sheets. Empty reads all of them.
	Sheets []string `json:"sheets,omitempty" mapstructure:"sheets"`

	// MaxRowsPerSheet stops a sheet after that many rows and marks it
	// truncated when more rows follow. Zero is unlimited.
	MaxRowsPerSheet int `json:"max_rows_per_sheet" mapstructure:"max_rows_per_sheet"`

	// ProgressInterval is the number of rows between progress callbacks.
	ProgressInterval int `json:"progress_interval" mapstructure:"progress_interval"`
}

// DefaultConfig returns a configuration reading every sheet in full.
func DefaultConfig() *Config {
	return &Config{
		XLSCharset:       "utf-8",
		ProgressInterval: 1000,
	}
}

// Validate checks the reader configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.XLSCharset) == "" {
		return fmt.Errorf("xls charset cannot be empty")
	}
	if c.MaxRowsPerSheet < 0 {
		return fmt.Errorf("max rows per sheet cannot be negative")
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval cannot be negative")
	}
	for _, s := range c.Sheets {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("sheet names cannot be empty")
		}
	}
	return nil
}

// wants reports whether the named sheet is selected.
func (c *Config) wants(name string) bool {
	if len(c.Sheets) == 0 {
		return true
	}
	for _, s := range c.Sheets {
		if s == name {
			return true
		}
	}
	return false
}
