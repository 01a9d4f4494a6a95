package report

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/miktoft/policy-transform/pkg/utils"
)

const markdownTemplate = `
## Policy Transform Summary

Run:
` + "```bash" + `
%summary%
` + "```" + `

<details>
<summary>Changes:</summary>
<br>

` + "```diff" + `
%changes%
` + "```" + `

</details>
`

const defaultMaxChars = 65536

// FileChange holds the compact before/after encodings of one document
// that was modified by the substitution pass.
type FileChange struct {
	Path   string
	Before string
	After  string
}

// Generate writes transform-summary.md into the output folder: the run
// summary plus a diff of every changed document. maxCharCount of 0
// falls back to the default limit.
func Generate(outputFolder string, summary string, changes []FileChange, maxCharCount uint) error {
	dmp := diffmatchpatch.New()

	var b strings.Builder
	for _, change := range changes {
		diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(change.Before, change.After, false))
		b.WriteString(fmt.Sprintf("--- %s\n", change.Path))
		b.WriteString(formatDiffs(diffs))
	}

	changesAsString := parseChangesOutput(b.String())

	maxChars := maxCharCount
	if maxChars == 0 {
		maxChars = defaultMaxChars
	}

	// Handle truncation if needed
	remainingMaxChars := int(maxChars) - markdownTemplateLength()
	warningMessage := fmt.Sprintf("\n\n ⚠️⚠️⚠️ Changes section is too long. Truncated to %d characters", maxChars)

	var changesTruncated string
	switch {
	case remainingMaxChars > len(changesAsString):
		changesTruncated = changesAsString // No need to truncate
	case remainingMaxChars > len(warningMessage):
		log.Warn().Msgf("🚨 Changes section is too long. Truncating to %d characters", maxChars)
		lastChar := remainingMaxChars - len(warningMessage)
		changesTruncated = changesAsString[:lastChar] + warningMessage
	default:
		return fmt.Errorf("changes section is too long and cannot be truncated")
	}

	markdown := printReport(summary, strings.TrimSpace(changesTruncated))
	markdownPath := fmt.Sprintf("%s/transform-summary.md", outputFolder)
	if err := utils.WriteFile(markdownPath, markdown); err != nil {
		return fmt.Errorf("failed to write markdown: %w", err)
	}

	log.Info().Msgf("🙏 Please check the %s file for a summary of the run", markdownPath)
	return nil
}

// formatDiffs renders a diff as +/- fragment lines, skipping unchanged
// text.
func formatDiffs(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("-" + d.Text + "\n")
		case diffmatchpatch.DiffInsert:
			b.WriteString("+" + d.Text + "\n")
		}
	}
	return b.String()
}

func markdownTemplateLength() int {
	return len(strings.ReplaceAll(
		strings.ReplaceAll(markdownTemplate, "%summary%", ""),
		"%changes%", ""))
}

func printReport(summary, changes string) string {
	return strings.TrimSpace(strings.ReplaceAll(
		strings.ReplaceAll(markdownTemplate, "%summary%", summary),
		"%changes%", changes)) + "\n"
}

func parseChangesOutput(output string) string {
	if strings.TrimSpace(output) == "" {
		return "No changes found"
	}
	return strings.TrimRight(output, "\n")
}
