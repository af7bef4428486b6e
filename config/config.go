package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Output formats understood by the exporter.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatDual = "dual"
)

// Config holds exporter configuration.
type Config struct {
	PageSize     int
	Delay        time.Duration
	MaxPages     int // 0 means no cap
	Timeout      time.Duration
	Shape        string
	OutputDir    string
	OutputFile   string
	OutputFormat string // csv, json, or dual
	UserAgent    string
	Verbose      bool
	MetricsAddr  string
}

// DefaultConfig returns the defaults the export scripts always ran with.
func DefaultConfig() *Config {
	return &Config{
		PageSize:     50,
		Delay:        time.Second,
		MaxPages:     0,
		Timeout:      30 * time.Second,
		Shape:        "full",
		OutputDir:    "data",
		OutputFile:   "",
		OutputFormat: FormatCSV,
		UserAgent:    "woo-export/1.0",
		Verbose:      false,
		MetricsAddr:  "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.PageSize > 100 {
		return fmt.Errorf("page size cannot exceed 100")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Shape == "" {
		return fmt.Errorf("shape cannot be empty")
	}
	if c.OutputFile == "" && c.OutputDir == "" {
		return fmt.Errorf("output file or output dir must be set")
	}
	if c.OutputFormat != FormatCSV && c.OutputFormat != FormatJSON && c.OutputFormat != FormatDual {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// ResolveOutputFile returns the configured output file, or derives one from
// the file prefix and website name the way the export scripts named them.
func (c *Config) ResolveOutputFile(prefix, website string) string {
	if c.OutputFile != "" {
		return c.OutputFile
	}
	if website == "" {
		website = "default"
	}
	return filepath.Join(c.OutputDir, fmt.Sprintf("%s_%s.csv", prefix, website))
}
