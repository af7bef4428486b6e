package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Reset removes exported files for each prefix from dir: <prefix>_*.csv,
// <prefix>_*.jsonl and the unsuffixed <prefix>.csv. It returns the removed paths.
// A missing dir is not an error. Removal keeps going after a failure and the
// failures are joined into the returned error.
func Reset(dir string, prefixes ...string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var candidates []string
	seen := make(map[string]struct{})
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		patterns := []string{
			filepath.Join(dir, prefix+"_*.csv"),
			filepath.Join(dir, prefix+"_*.jsonl"),
			filepath.Join(dir, prefix+".csv"),
		}
		for _, pattern := range patterns {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pattern, err)
			}
			for _, m := range matches {
				if _, ok := seen[m]; ok {
					continue
				}
				seen[m] = struct{}{}
				candidates = append(candidates, m)
			}
		}
	}
	sort.Strings(candidates)

	var (
		removed []string
		errs    []error
	)
	for _, path := range candidates {
		if err := os.Remove(path); err != nil {
			slog.Warn("could not remove file", slog.String("path", path), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		slog.Debug("removed file", slog.String("path", path))
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
