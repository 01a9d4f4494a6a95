package csvout

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

var header = []string{"source-env", "target-env"}

// WriteMapping writes a sorted source→target identifier mapping CSV.
// The target column is derived by applying the same substring
// replacement to each identifier. Nothing is written for an empty set:
// the file's absence signals that no identifiers were extracted.
// Returns whether a file was written.
func WriteMapping(path string, ids map[string]struct{}, search, replace string) (bool, error) {
	if len(ids) == 0 {
		log.Info().Msgf("No identifiers extracted, skipping %s", filepath.Base(path))
		return false, nil
	}

	sorted := make([]string, 0, len(ids))
	for uid := range ids {
		sorted = append(sorted, uid)
	}
	sort.Strings(sorted)

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("failed to create CSV file %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to write CSV file %s: %w", path, err)
	}
	for _, uid := range sorted {
		target := strings.ReplaceAll(uid, search, replace)
		if err := w.Write([]string{uid, target}); err != nil {
			f.Close()
			return false, fmt.Errorf("failed to write CSV file %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to write CSV file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to write CSV file %s: %w", path, err)
	}

	log.Info().Msgf("📝 Wrote %d identifiers to %s", len(sorted), path)
	return true, nil
}
