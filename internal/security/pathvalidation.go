// Package security holds filename and path checks applied to
// client-supplied upload names before anything touches disk.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyFilename is returned for an upload with no filename at all.
	ErrEmptyFilename = errors.New("empty filename")
	// ErrInvalidFilename is returned when nothing usable survives sanitising.
	ErrInvalidFilename = errors.New("invalid filename")
)

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir.
// Symlinks are resolved for whichever prefix of each path exists on disk,
// so a link inside safeDir pointing elsewhere is rejected.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}

	relPath, err := filepath.Rel(canonical(absSafeDir), canonical(absPath))
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// canonical resolves symlinks in the longest existing prefix of an
// absolute path and re-appends the remainder.
func canonical(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	checkPath := absPath
	for {
		parentDir := filepath.Dir(checkPath)
		if parentDir == checkPath {
			return absPath
		}
		if resolved, err := filepath.EvalSymlinks(parentDir); err == nil {
			rel, _ := filepath.Rel(parentDir, absPath)
			return filepath.Join(resolved, rel)
		}
		checkPath = parentDir
	}
}

// SecureUploadName reduces a client filename to a safe ASCII base name.
// Accented letters are folded to their base letter, path separators and
// whitespace become underscores, and any other character outside
// [A-Za-z0-9._-] is dropped. Leading and trailing dots and underscores
// are trimmed.
func SecureUploadName(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyFilename
	}

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(norm.NFKD.String(name))
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "", ErrInvalidFilename
	}
	return out, nil
}
