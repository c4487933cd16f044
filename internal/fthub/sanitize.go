package fthub

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolveOutputPath joins filename onto outputDir and verifies the
// result still lives inside outputDir, rejecting any fragment header
// that tries to escape it via absolute paths or ".." segments — a
// defense-in-depth check beyond wire.ValidateFilename's syntactic
// rejection of path separators.
func resolveOutputPath(outputDir, filename string) (string, error) {
	candidate := filepath.Join(outputDir, filename)

	absBase, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("resolving output dir: %w", err)
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving target path: %w", err)
	}

	rel, err := filepath.Rel(absBase, absCandidate)
	if err != nil {
		return "", fmt.Errorf("path escapes output directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes output directory %q", filename, outputDir)
	}

	return candidate, nil
}
