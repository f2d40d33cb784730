// Package pathutil checks that user-supplied file paths stay inside the
// directories gasprops is allowed to write run archives to.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned when a path resolves outside every allowed directory.
var ErrOutsideAllowed = errors.New("outside allowed directories")

// RedactPath reduces a full path to .../<parent>/<basename> for error messages,
// e.g. "/home/user/.gasprops/history.db" becomes ".../.gasprops/history.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath checks that path, after cleaning and resolving symlinks on
// its existing ancestors, lies within one of allowedDirs. The file itself
// need not exist.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return errors.New("invalid path: empty")
	case len(allowedDirs) == 0:
		return errors.New("invalid path: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return errors.New("invalid path: contains null byte")
	}

	resolved, err := resolve(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", RedactPath(path), err)
	}
	for _, dir := range allowedDirs {
		base, err := resolve(dir)
		if err != nil {
			continue
		}
		if within(resolved, base) {
			return nil
		}
	}
	return fmt.Errorf("%q is %w", RedactPath(resolved), ErrOutsideAllowed)
}

// resolve makes path absolute and evaluates symlinks on the deepest
// ancestor that exists, re-appending the rest.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	var tail []string
	for dir := abs; ; {
		if target, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{target}, tail...)...), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("no existing ancestor")
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
	}
}

// within reports whether path is base or below it.
func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, strings.TrimSuffix(base, string(os.PathSeparator))+string(os.PathSeparator))
}

// ExportDirs returns the directories run archives may be written to or
// read from: ~/.gasprops/exports and the working directory.
func ExportDirs() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs := []string{filepath.Join(home, ".gasprops", "exports")}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	return dirs, nil
}
