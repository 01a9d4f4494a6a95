package zipfile

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/miktoft/policy-transform/pkg/jsonfile"
	"github.com/miktoft/policy-transform/pkg/stats"
)

// Suffix convention marking an archive that has been transformed and is
// ready for the target environment's import API.
const importReadySuffix = "-import-ready"

// Processor unpacks archives, rewrites their JSON members in a scratch
// directory and repacks them with the original member layout.
type Processor struct {
	JSON      *jsonfile.Processor
	Stats     *stats.Stats
	ImportDir string
}

// Process runs one archive through the pipeline. Per-member failures
// are recorded and do not stop sibling members; the archive as a whole
// fails only on extraction, repack or member-count errors.
func (p *Processor) Process(zipPath string) ([]jsonfile.Result, bool) {
	p.Stats.FilesInvestigated++
	p.Stats.ZipFilesProcessed++

	log.Info().Msgf("🗜️ Processing ZIP file: %s", zipPath)

	info, err := os.Stat(zipPath)
	if err != nil {
		p.fail("ZIP file does not exist: %s", zipPath)
		return nil, false
	}
	if info.IsDir() {
		p.fail("Path is not a file: %s", zipPath)
		return nil, false
	}

	scratch, err := os.MkdirTemp("", "policy-transform-"+uuid.New().String()[:8]+"-")
	if err != nil {
		p.fail("Failed to create scratch directory for %s: %v", zipPath, err)
		return nil, false
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn().Msgf("⚠️ Failed to remove scratch directory %s: %s", scratch, err)
		}
	}()
	log.Debug().Msgf("Created scratch directory: %s", scratch)

	members, err := extractArchive(zipPath, scratch)
	if err != nil {
		p.fail("%v", err)
		return nil, false
	}
	log.Info().Msgf("📦 Original ZIP contains %d members", len(members))

	jsonMembers, err := findJSONMembers(scratch)
	if err != nil {
		p.fail("Failed to enumerate members of %s: %v", zipPath, err)
		return nil, false
	}

	var results []jsonfile.Result
	if len(jsonMembers) == 0 {
		// Nothing to rewrite; the archive is still repacked verbatim.
		log.Warn().Msgf("⚠️ No JSON members found in ZIP: %s", zipPath)
	} else {
		log.Info().Msgf("Found %d JSON members in ZIP: %s", len(jsonMembers), zipPath)

		successful := 0
		failed := 0
		for _, member := range jsonMembers {
			if res, ok := p.JSON.ProcessArchiveMember(member, scratch); ok {
				successful++
				if res != nil {
					results = append(results, *res)
				}
			} else {
				failed++
			}
		}
		log.Info().Msgf("🗜️ ZIP member processing complete: %d successful, %d failed", successful, failed)
	}

	return results, p.repack(zipPath, scratch, members)
}

func (p *Processor) fail(format string, args ...any) {
	log.Error().Msgf("❌ "+format, args...)
	p.Stats.AddError(format, args...)
}

// extractArchive unpacks an archive into dest and returns the member
// list in original order, captured before anything is mutated.
func extractArchive(zipPath, dest string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("invalid ZIP file %s: %w", zipPath, err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Warn().Msgf("⚠️ Failed to close ZIP reader for %s: %s", zipPath, err)
		}
	}()

	members := make([]string, 0, len(r.File))
	for _, f := range r.File {
		members = append(members, f.Name)
	}

	cleanDest := filepath.Clean(dest)
	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(filepath.Clean(target), cleanDest+string(os.PathSeparator)) {
			return nil, fmt.Errorf("illegal member path in ZIP %s: %s", zipPath, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, os.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to extract ZIP file %s: %w", zipPath, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to extract ZIP file %s: %w", zipPath, err)
		}
		if err := extractMember(f, target); err != nil {
			return nil, fmt.Errorf("failed to extract %s from %s: %w", f.Name, zipPath, err)
		}
	}

	return members, nil
}

func extractMember(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn().Msgf("⚠️ Failed to close ZIP member %s: %s", f.Name, err)
		}
	}()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// findJSONMembers lists every *.json file under the scratch root in
// deterministic lexicographic order.
func findJSONMembers(root string) ([]string, error) {
	var members []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		members = append(members, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// repack writes every member from the captured original list into a new
// archive, then reopens it to verify the member count survived the
// round trip.
func (p *Processor) repack(zipPath, scratch string, members []string) bool {
	stem := strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
	outputPath := filepath.Join(p.ImportDir, stem+importReadySuffix+".zip")

	log.Info().Msgf("🗜️ Creating output ZIP: %s", outputPath)

	if err := writeArchive(outputPath, scratch, members); err != nil {
		p.fail("Failed to create ZIP file %s: %v", outputPath, err)
		return false
	}

	r, err := zip.OpenReader(outputPath)
	if err != nil {
		p.fail("Failed to verify output ZIP %s: %v", outputPath, err)
		return false
	}
	outputCount := len(r.File)
	if err := r.Close(); err != nil {
		log.Warn().Msgf("⚠️ Failed to close output ZIP %s: %s", outputPath, err)
	}

	if outputCount != len(members) {
		p.fail("Member count mismatch for %s: original=%d, output=%d", outputPath, len(members), outputCount)
		return false
	}

	log.Info().Msgf("✅ Created ZIP with %d members: %s", outputCount, outputPath)
	return true
}

func writeArchive(outputPath, scratch string, members []string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	w := zip.NewWriter(out)

	for _, member := range members {
		fsPath := filepath.Join(scratch, filepath.FromSlash(member))
		info, err := os.Stat(fsPath)
		if err != nil {
			log.Warn().Msgf("⚠️ Member not found in scratch directory, skipping: %s", member)
			continue
		}
		if info.IsDir() {
			name := member
			if !strings.HasSuffix(name, "/") {
				name += "/"
			}
			if _, err := w.Create(name); err != nil {
				w.Close()
				out.Close()
				return err
			}
			continue
		}
		if err := addArchiveMember(w, member, fsPath); err != nil {
			w.Close()
			out.Close()
			return err
		}
		log.Debug().Msgf("Added to ZIP: %s", member)
	}

	if err := w.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func addArchiveMember(w *zip.Writer, member, fsPath string) error {
	fw, err := w.CreateHeader(&zip.FileHeader{Name: member, Method: zip.Deflate})
	if err != nil {
		return err
	}
	src, err := os.Open(fsPath)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(fw, src)
	if closeErr := src.Close(); copyErr == nil {
		copyErr = closeErr
	}
	return copyErr
}
