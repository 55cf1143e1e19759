package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// ImageExtensions is the set of upload extensions the conversion service accepts.
var ImageExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// ValidateUploadFilename validates a client-supplied filename for an uploaded image.
// It rejects names that could be used for path traversal and names whose
// extension is not a supported raster format.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No path separators (must be a simple basename)
//   - No hidden files
//   - Maximum length of 256 characters
//   - Extension must be one of ImageExtensions (case-insensitive)
func ValidateUploadFilename(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "filename cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPath, "filename too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "filename contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return New(ErrCodeInvalidPath, "filename cannot contain path components")
	}

	if strings.HasPrefix(name, ".") {
		return New(ErrCodeInvalidPath, "filename cannot be a hidden file")
	}

	return ValidateImageExtension(name)
}

// ValidateImageExtension checks that name ends in one of ImageExtensions.
func ValidateImageExtension(name string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if !ImageExtensions[ext] {
		return New(ErrCodeInvalidFormat, "unsupported image type %q (must be png, jpg or jpeg)", ext)
	}
	return nil
}

// ValidatePath validates a file path relative to a data directory.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// jobIDRegex matches the canonical textual form of a UUID.
var jobIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateJobID validates a job identifier taken from a request path.
func ValidateJobID(id string) error {
	if !jobIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid job id: %q", id)
	}
	return nil
}
