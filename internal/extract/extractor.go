// Package extract provides text extraction for the supported study document formats.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/studybuddy/internal/models"
)

// Format is a supported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "txt"
)

// Formats lists every supported format in display order.
var Formats = []Format{FormatPDF, FormatDOCX, FormatText}

// ParseFormat accepts a declared type or file extension ("pdf", ".PDF", "txt")
// and returns the matching Format. Anything else wraps models.ErrUnsupportedFormat.
func ParseFormat(declared string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(declared)), "."))
	switch f {
	case FormatPDF, FormatDOCX, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, declared)
	}
}

// FormatFromPath returns the Format for a file name based on its extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", models.ErrUnsupportedFormat, filepath.Base(path))
	}
	return ParseFormat(ext)
}

// Extension returns the file extension for f including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Unit is one extracted span of text. Page is 1-based for paged formats and 0 otherwise.
type Unit struct {
	Text string
	Page int
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its format and text units.
func (e *Extractor) Extract(path string) (Format, []Unit, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return "", nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read file: %w", err)
	}
	units, err := e.ExtractBytes(content, format)
	return format, units, err
}

// ExtractBytes extracts text units from content of the given format.
// PDF yields one unit per page; DOCX and plain text yield a single unit.
// Any failure, including a single unreadable page, wraps models.ErrExtractionFailed.
func (e *Extractor) ExtractBytes(content []byte, format Format) ([]Unit, error) {
	var (
		units []Unit
		err   error
	)
	switch format {
	case FormatPDF:
		units, err = extractPDF(content)
	case FormatDOCX:
		var text string
		text, err = extractDOCX(content)
		units = []Unit{{Text: text}}
	case FormatText:
		var text string
		text, err = extractPlain(content)
		units = []Unit{{Text: text}}
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrExtractionFailed, format, err)
	}
	return units, nil
}
