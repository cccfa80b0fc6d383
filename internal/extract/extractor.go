// Package extract provides text extraction from uploaded document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for file extensions the extractor cannot handle.
var ErrUnsupportedType = errors.New("unsupported file type")

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// For plain text files (.txt, .md), content is returned as-is (UTF-8 validated).
// For PDF, DOCX, and XLSX, text is extracted from the binary format.
// Returns ErrUnsupportedType for any other extension.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

// Allowed reports whether the file's extension is in allowed (case-insensitive,
// leading dots optional on either side).
func Allowed(filename string, allowed []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
