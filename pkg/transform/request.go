package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/miktoft/policy-transform/pkg/utils"
)

// Request carries everything the engine needs for one run. Callers
// build it explicitly; the engine keeps no process-wide state.
type Request struct {
	InputDir  string
	Search    string
	Replace   string // may be empty: occurrences are deleted
	OutputDir string

	// MaxReportLength caps the change section of the run summary; 0
	// uses the report package default.
	MaxReportLength uint
}

// ImportDir is where transformed files and repacked archives land.
func (r Request) ImportDir() string {
	return filepath.Join(r.OutputDir, "policy-import")
}

// AssetExportDir holds the broad identifier mapping CSV.
func (r Request) AssetExportDir() string {
	return filepath.Join(r.OutputDir, "asset-export")
}

// PolicyExportDir holds the filtered identifier mapping CSV.
func (r Request) PolicyExportDir() string {
	return filepath.Join(r.OutputDir, "policy-export")
}

// Validate checks the request and creates the output directory tree.
// Directory creation is idempotent and never destructive.
func (r Request) Validate() error {
	if strings.TrimSpace(r.InputDir) == "" {
		return fmt.Errorf("input directory cannot be empty")
	}
	if strings.TrimSpace(r.Search) == "" {
		return fmt.Errorf("search string cannot be empty")
	}
	if strings.TrimSpace(r.OutputDir) == "" {
		return fmt.Errorf("output directory cannot be empty")
	}

	info, err := os.Stat(r.InputDir)
	if err != nil {
		return fmt.Errorf("input directory does not exist: %s", r.InputDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", r.InputDir)
	}

	for _, dir := range []string{r.ImportDir(), r.AssetExportDir(), r.PolicyExportDir()} {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	log.Info().Msgf("📁 Input directory: %s", r.InputDir)
	log.Info().Msgf("📁 Output directory (processed files): %s", r.ImportDir())
	log.Info().Msgf("📁 Asset export directory: %s", r.AssetExportDir())
	log.Info().Msgf("📁 Policy export directory: %s", r.PolicyExportDir())
	log.Info().Msgf("🔎 Search string: '%s'", r.Search)
	log.Info().Msgf("🔁 Replace string: '%s'", r.Replace)

	return nil
}
