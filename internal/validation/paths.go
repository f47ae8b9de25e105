// Package validation provides local input validation for sharefold.
// Failures are reported as *Error so callers can tell them apart from
// request and transfer failures.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Error is a locally detected validation failure. No request was issued.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// New returns a validation error for field.
func New(field, format string, args ...interface{}) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Is reports whether err is (or wraps) a validation failure.
func Is(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// ValidateFilename validates a file name (not a path). It is applied to upload
// candidates and to server-provided names before they are joined to a local directory.
//
// Rejected: empty names, path separators, "." and "..", and null bytes.
func ValidateFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return New("fileName", "cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return New("fileName", "contains a null byte")
	}
	if strings.ContainsAny(filename, `/\`) {
		return New("fileName", "cannot contain path separators: %s", filename)
	}
	// "foo..bar.txt" is fine; only the bare traversal names are not
	if filename == ".." || filename == "." {
		return New("fileName", "cannot be %q", filename)
	}
	return nil
}

// ValidatePathInDirectory validates that path, once resolved against baseDir,
// stays within baseDir.
//
//	ValidatePathInDirectory("../../etc/passwd", "/tmp/downloads") // error
//	ValidatePathInDirectory("Q1.pdf", "/tmp/downloads")           // ok
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return New("path", "cannot be empty")
	}
	if baseDir == "" {
		return New("directory", "cannot be empty")
	}

	cleanBase := filepath.Clean(baseDir)
	if !filepath.IsAbs(cleanBase) {
		abs, err := filepath.Abs(cleanBase)
		if err != nil {
			return fmt.Errorf("failed to resolve base directory: %w", err)
		}
		cleanBase = abs
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cleanBase, resolved)
	}

	rel, err := filepath.Rel(cleanBase, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return New("path", "escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}
