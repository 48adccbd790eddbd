// Package pathutil provides cross-platform path utilities for workspaced.
package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Normalize converts a workspace path to the canonical form used as a map
// and registry key: absolute, cleaned, and without a trailing separator.
// On Windows the drive letter is upper-cased so "c:\w" and "C:\w" collide.
func Normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	if runtime.GOOS == "windows" && len(abs) >= 2 && abs[1] == ':' {
		abs = strings.ToUpper(abs[:1]) + abs[1:]
	}
	return abs, nil
}

// IsUnder reports whether path lies at or below root. Both arguments are
// expected to already be normalized; the check is separator-aware so
// "/w/ab" is not considered under "/w/a".
func IsUnder(path, root string) bool {
	if path == root {
		return true
	}
	if root == "" {
		return false
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}

// EncodePath converts a filesystem path to a flat string safe for use as
// a directory or file name, used to derive per-workspace backend config
// and data directories.
//
// Examples:
//
//	Unix:    /Users/brian/Projects/api  → -Users-brian-Projects-api
//	Windows: C:\Users\brian\Projects\api → -C:-Users-brian-Projects-api
func EncodePath(path string) string {
	// filepath.Clean normalises separators and removes trailing slashes.
	// filepath.ToSlash converts OS-specific separators to "/", so the
	// subsequent replace works identically on Unix, macOS, and Windows.
	return strings.ReplaceAll(filepath.ToSlash(filepath.Clean(path)), "/", "-")
}
