package jsonfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miktoft/policy-transform/pkg/extract"
	"github.com/miktoft/policy-transform/pkg/stats"
	"github.com/miktoft/policy-transform/pkg/substitute"
)

func newTestProcessor(t *testing.T) (*Processor, *stats.Stats, string) {
	t.Helper()
	st := stats.New()
	importDir := t.TempDir()
	p := &Processor{
		Engine:    substitute.New("PROD_DB", "DEV_DB"),
		Extractor: extract.New(st),
		Stats:     st,
		ImportDir: importDir,
	}
	return p, st, importDir
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProcess_ReplacesAndPreservesRelativePath(t *testing.T) {
	p, st, importDir := newTestProcessor(t)
	inputDir := t.TempDir()
	path := writeInput(t, inputDir, filepath.Join("sub", "config.json"), `{"host":"PROD_DB.example.com"}`)

	result, ok := p.Process(path, inputDir)

	require.True(t, ok)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 1, st.ChangesMade)
	assert.Equal(t, 1, st.FilesInvestigated)
	assert.Equal(t, 1, st.JSONFilesProcessed)

	written, err := os.ReadFile(filepath.Join(importDir, "sub", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"host":"DEV_DB.example.com"}`, string(written))
}

func TestProcess_CompactOutputWithoutHTMLEscaping(t *testing.T) {
	p, _, importDir := newTestProcessor(t)
	inputDir := t.TempDir()
	path := writeInput(t, inputDir, "q.json", "{\n  \"sql\": \"select * from t where a < b\"\n}")

	_, ok := p.Process(path, inputDir)

	require.True(t, ok)
	written, err := os.ReadFile(filepath.Join(importDir, "q.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"sql":"select * from t where a < b"}`, string(written))
}

func TestProcess_ExtractionGatedByFileNamePrefix(t *testing.T) {
	policy := `{"isSegmented":true,"engineType":"SPARK","backingAssets":[{"uid":"a.b.c"}]}`

	t.Run("policy definitions file is scanned", func(t *testing.T) {
		p, _, _ := newTestProcessor(t)
		inputDir := t.TempDir()
		path := writeInput(t, inputDir, "data_quality_policy_definitions_1.json", policy)

		_, ok := p.Process(path, inputDir)

		require.True(t, ok)
		assert.Contains(t, p.Extractor.Filtered, "a.b.c")
	})

	t.Run("other loose files are not scanned", func(t *testing.T) {
		p, _, _ := newTestProcessor(t)
		inputDir := t.TempDir()
		path := writeInput(t, inputDir, "export.json", policy)

		_, ok := p.Process(path, inputDir)

		require.True(t, ok)
		assert.Empty(t, p.Extractor.Filtered)
		assert.Empty(t, p.Extractor.All)
	})
}

func TestProcessArchiveMember_AlwaysScansAndOverwritesInPlace(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	scratch := t.TempDir()
	path := writeInput(t, scratch, "anything.json",
		`{"isSegmented":true,"engineType":"SPARK","backingAssets":[{"uid":"PROD_DB.t1"}]}`)

	result, ok := p.ProcessArchiveMember(path, scratch)

	require.True(t, ok)
	assert.Equal(t, 1, result.Changed)
	// Extraction ran despite the non-policy file name, and before the
	// substitution pass.
	assert.Contains(t, p.Extractor.Filtered, "PROD_DB.t1")

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "DEV_DB.t1")
}

func TestProcess_InvalidJSONRecordsErrorAndWritesNothing(t *testing.T) {
	p, st, importDir := newTestProcessor(t)
	inputDir := t.TempDir()
	path := writeInput(t, inputDir, "broken.json", `{"host": PROD_DB}`)

	result, ok := p.Process(path, inputDir)

	assert.False(t, ok)
	assert.Nil(t, result)
	require.Len(t, st.Errors, 1)
	assert.Contains(t, st.Errors[0], "invalid JSON")

	_, err := os.Stat(filepath.Join(importDir, "broken.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadDocument_Latin1Fallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latin1.json")
	// "café" encoded as ISO-8859-1: 0xE9 is not valid UTF-8.
	require.NoError(t, os.WriteFile(path, []byte{'{', '"', 'n', 'a', 'm', 'e', '"', ':', '"', 'c', 'a', 'f', 0xE9, '"', '}'}, 0644))

	doc, err := ReadDocument(path)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "café"}, doc)
}

func TestReadDocument_MissingFile(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
