package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	dirMode = os.ModePerm // 0755 - read/write/execute for owner, read/execute for group and others
)

// CreateFolder creates a folder and any missing parents. Existing
// content is left untouched.
func CreateFolder(path string) error {
	err := os.MkdirAll(path, dirMode)
	if err != nil {
		log.Debug().Str("path", path).Msgf("❌ Failed to create folder: %s", err)
	}
	return err
}

// WriteFile writes text content to a file
func WriteFile(path string, content string) error {
	// Ensure content ends with a newline
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return WriteFileBytes(path, []byte(content))
}

// WriteFileBytes writes raw bytes to a file, creating parent
// directories as needed
func WriteFileBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
