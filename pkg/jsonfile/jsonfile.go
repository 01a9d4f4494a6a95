package jsonfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"

	"github.com/miktoft/policy-transform/pkg/extract"
	"github.com/miktoft/policy-transform/pkg/stats"
	"github.com/miktoft/policy-transform/pkg/substitute"
	"github.com/miktoft/policy-transform/pkg/utils"
)

// Loose files only get the extraction pass when their name carries this
// prefix. Archive members are always policy-related and are scanned
// unconditionally.
const policyDefinitionsPrefix = "data_quality_policy_definitions"

// Result describes one processed document, kept for the run summary.
// Before and After are only populated when at least one leaf changed.
type Result struct {
	RelPath string
	Changed int
	Before  string
	After   string
}

// Processor runs extraction and substitution over individual JSON
// files, both standalone files and extracted archive members.
type Processor struct {
	Engine    substitute.Engine
	Extractor *extract.Extractor
	Stats     *stats.Stats
	ImportDir string // root for transformed output of standalone files
}

// Process handles one standalone JSON file. The transformed document
// lands under ImportDir at the file's path relative to baseDir.
// Failures are recorded and reported via ok=false; they never stop
// sibling files.
func (p *Processor) Process(path, baseDir string) (*Result, bool) {
	p.Stats.FilesInvestigated++
	p.Stats.JSONFilesProcessed++

	log.Info().Msgf("📄 Processing JSON file: %s", path)

	doc, err := ReadDocument(path)
	if err != nil {
		log.Error().Msgf("❌ %v", err)
		p.Stats.AddError("%v", err)
		return nil, false
	}

	if strings.HasPrefix(filepath.Base(path), policyDefinitionsPrefix) {
		log.Info().Msgf("🔍 Extracting identifiers from policy definitions file: %s", filepath.Base(path))
		p.Extractor.Scan(doc)
	}

	relPath, err := filepath.Rel(baseDir, path)
	if err != nil {
		log.Error().Msgf("❌ Failed to compute relative path for %s: %s", path, err)
		p.Stats.AddError("Failed to compute relative path for %s: %v", path, err)
		return nil, false
	}

	result, encoded, err := p.transform(doc, filepath.ToSlash(relPath))
	if err != nil {
		p.Stats.AddError("%v", err)
		return nil, false
	}

	outputPath := filepath.Join(p.ImportDir, relPath)
	if err := utils.WriteFileBytes(outputPath, encoded); err != nil {
		log.Error().Msgf("❌ %v", err)
		p.Stats.AddError("%v", err)
		return nil, false
	}

	log.Debug().Msgf("Successfully processed: %s -> %s", path, outputPath)
	return result, true
}

// ProcessArchiveMember handles one JSON member inside an extracted
// archive. Extraction runs unconditionally and the member is
// overwritten in place inside the scratch tree.
func (p *Processor) ProcessArchiveMember(path, scratchDir string) (*Result, bool) {
	p.Stats.FilesInvestigated++
	p.Stats.JSONFilesProcessed++

	log.Debug().Msgf("Processing JSON member: %s", path)

	doc, err := ReadDocument(path)
	if err != nil {
		log.Error().Msgf("❌ %v", err)
		p.Stats.AddError("%v", err)
		return nil, false
	}

	p.Extractor.Scan(doc)

	relPath, err := filepath.Rel(scratchDir, path)
	if err != nil {
		p.Stats.AddError("Failed to compute member path for %s: %v", path, err)
		return nil, false
	}

	result, encoded, err := p.transform(doc, filepath.ToSlash(relPath))
	if err != nil {
		p.Stats.AddError("%v", err)
		return nil, false
	}

	if err := utils.WriteFileBytes(path, encoded); err != nil {
		log.Error().Msgf("❌ %v", err)
		p.Stats.AddError("%v", err)
		return nil, false
	}

	return result, true
}

// transform applies the substitution engine to a parsed document and
// returns the result record plus the compact encoding of the rewritten
// tree.
func (p *Processor) transform(doc any, relPath string) (*Result, []byte, error) {
	before, err := encodeCompact(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s: %w", relPath, err)
	}

	modified, changed := p.Engine.Apply(doc)
	p.Stats.ChangesMade += changed

	after, err := encodeCompact(modified)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s: %w", relPath, err)
	}

	result := &Result{RelPath: relPath, Changed: changed}
	if changed > 0 {
		result.Before = string(before)
		result.After = string(after)
	}
	return result, after, nil
}

// ReadDocument reads and parses a JSON file. Files that are not valid
// UTF-8 are re-decoded as ISO-8859-1 before parsing.
func ReadDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if !utf8.Valid(data) {
		log.Debug().Msgf("File %s is not valid UTF-8, falling back to ISO-8859-1", path)
		decoded, decErr := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if decErr != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, decErr)
		}
		data = decoded
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return doc, nil
}

// encodeCompact marshals a document the way the import API expects it:
// no indentation, no HTML escaping, no trailing newline.
func encodeCompact(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
