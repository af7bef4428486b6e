package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key and whether it was set to something non-empty.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer. A set but malformed value is an error.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s=%q: %w", key, raw, err)
	}
	return value, true, nil
}

// EnvMillis parses key as a millisecond count.
func EnvMillis(key string) (time.Duration, bool, error) {
	value, ok, err := EnvInt(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if value < 0 {
		return 0, false, fmt.Errorf("%s cannot be negative", key)
	}
	return time.Duration(value) * time.Millisecond, true, nil
}

// ApplyEnv overrides cfg fields from EXPORT_* environment variables.
func ApplyEnv(cfg *Config) error {
	if value, ok, err := EnvInt("EXPORT_PAGE_SIZE"); err != nil {
		return err
	} else if ok {
		cfg.PageSize = value
	}
	if value, ok, err := EnvMillis("EXPORT_DELAY_MS"); err != nil {
		return err
	} else if ok {
		cfg.Delay = value
	}
	if value, ok := EnvString("EXPORT_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := EnvString("EXPORT_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}
