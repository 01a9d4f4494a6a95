package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/miktoft/policy-transform/pkg/csvout"
	"github.com/miktoft/policy-transform/pkg/extract"
	"github.com/miktoft/policy-transform/pkg/jsonfile"
	"github.com/miktoft/policy-transform/pkg/report"
	"github.com/miktoft/policy-transform/pkg/stats"
	"github.com/miktoft/policy-transform/pkg/substitute"
	"github.com/miktoft/policy-transform/pkg/zipfile"
)

const (
	allAssetsCSV      = "asset_uids.csv"
	filteredAssetsCSV = "segmented_spark_uids.csv"
)

// Result summarizes a completed run.
type Result struct {
	TotalFiles      int
	JSONFiles       int
	ZipFiles        int
	Successful      int
	Failed          int
	ExtractedAssets int
	AllAssets       int
	Stats           *stats.Stats
}

// Summary renders the result as the text block used in logs and the
// markdown report.
func (r *Result) Summary() string {
	lines := []string{
		fmt.Sprintf("Total files: %d (%d JSON, %d ZIP)", r.TotalFiles, r.JSONFiles, r.ZipFiles),
		fmt.Sprintf("Successful: %d", r.Successful),
		fmt.Sprintf("Failed: %d", r.Failed),
		fmt.Sprintf("Files investigated: %d", r.Stats.FilesInvestigated),
		fmt.Sprintf("Changes made: %d", r.Stats.ChangesMade),
		fmt.Sprintf("Asset identifiers found: %d", r.AllAssets),
		fmt.Sprintf("Segmented SPARK identifiers: %d", r.ExtractedAssets),
		fmt.Sprintf("Policies processed: %d (%d segmented SPARK, %d segmented JDBC_SQL, %d non-segmented)",
			r.Stats.TotalPoliciesProcessed,
			r.Stats.SegmentedSparkPolicies,
			r.Stats.SegmentedJdbcPolicies,
			r.Stats.NonSegmentedPolicies),
		fmt.Sprintf("Errors: %d", len(r.Stats.Errors)),
	}
	return strings.Join(lines, "\n")
}

// Run executes the full transformation over the request's input tree:
// discover files, process standalone JSON before archives, emit the
// mapping CSVs and the run summary. Unit failures are accumulated in
// the result; only an unusable request or input directory returns an
// error.
func Run(req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	st := stats.New()
	extractor := extract.New(st)
	engine := substitute.New(req.Search, req.Replace)

	jsonProcessor := &jsonfile.Processor{
		Engine:    engine,
		Extractor: extractor,
		Stats:     st,
		ImportDir: req.ImportDir(),
	}
	zipProcessor := &zipfile.Processor{
		JSON:      jsonProcessor,
		Stats:     st,
		ImportDir: req.ImportDir(),
	}

	jsonFiles, zipFiles, err := findInputFiles(req.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", req.InputDir, err)
	}

	result := &Result{
		TotalFiles: len(jsonFiles) + len(zipFiles),
		JSONFiles:  len(jsonFiles),
		ZipFiles:   len(zipFiles),
		Stats:      st,
	}

	if result.TotalFiles == 0 {
		log.Warn().Msgf("⚠️ No JSON or ZIP files found in %s", req.InputDir)
		return result, nil
	}

	log.Info().Msgf("🔍 Found %d JSON files and %d ZIP files to process", len(jsonFiles), len(zipFiles))

	var changes []report.FileChange

	// Standalone JSON files first, then archives. Only the order of
	// logged errors depends on this.
	for _, path := range jsonFiles {
		res, ok := jsonProcessor.Process(path, req.InputDir)
		if ok {
			result.Successful++
		} else {
			result.Failed++
		}
		changes = appendChange(changes, res)
	}

	for _, path := range zipFiles {
		memberResults, ok := zipProcessor.Process(path)
		if ok {
			result.Successful++
		} else {
			result.Failed++
		}
		for i := range memberResults {
			changes = appendChange(changes, &memberResults[i])
		}
	}

	result.AllAssets = len(extractor.All)
	result.ExtractedAssets = len(extractor.Filtered)

	filteredPath := filepath.Join(req.PolicyExportDir(), filteredAssetsCSV)
	if _, err := csvout.WriteMapping(filteredPath, extractor.Filtered, req.Search, req.Replace); err != nil {
		log.Error().Msgf("❌ %v", err)
		st.AddError("%v", err)
	}
	allPath := filepath.Join(req.AssetExportDir(), allAssetsCSV)
	if _, err := csvout.WriteMapping(allPath, extractor.All, req.Search, req.Replace); err != nil {
		log.Error().Msgf("❌ %v", err)
		st.AddError("%v", err)
	}

	if err := report.Generate(req.OutputDir, result.Summary(), changes, req.MaxReportLength); err != nil {
		log.Error().Msgf("❌ %v", err)
		st.AddError("%v", err)
	}

	log.Info().Msgf("✅ Processing complete: %d successful, %d failed", result.Successful, result.Failed)

	return result, nil
}

func appendChange(changes []report.FileChange, res *jsonfile.Result) []report.FileChange {
	if res == nil || res.Changed == 0 {
		return changes
	}
	return append(changes, report.FileChange{
		Path:   res.RelPath,
		Before: res.Before,
		After:  res.After,
	})
}

// findInputFiles lists every *.json and *.zip file under the input
// root in deterministic lexicographic order.
func findInputFiles(inputDir string) (jsonFiles, zipFiles []string, err error) {
	log.Debug().Msgf("Fetching all files in dir: %s", inputDir)

	err = filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".json":
			jsonFiles = append(jsonFiles, path)
		case ".zip":
			zipFiles = append(zipFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Debug().Msgf("Found %d json and %d zip files in dir '%s'", len(jsonFiles), len(zipFiles), inputDir)
	return jsonFiles, zipFiles, nil
}
