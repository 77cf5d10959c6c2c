// Package extract turns note files into plain text for chunking.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

type extractFunc func(content []byte) (string, error)

type format struct {
	extract extractFunc
	// binary formats lose their layout on extraction; callers collapse whitespace.
	binary bool
}

var formats = map[string]format{
	".md":       {extract: extractPlain},
	".markdown": {extract: extractPlain},
	".txt":      {extract: extractPlain},
	".rst":      {extract: extractPlain},
	".org":      {extract: extractPlain},
	".pdf":      {extract: extractPDF, binary: true},
	".docx":     {extract: extractDOCX, binary: true},
	".pptx":     {extract: extractPPTX, binary: true},
	".xlsx":     {extract: extractExcel, binary: true},
	".odt":      {extract: extractOpenDocument, binary: true},
	".odp":      {extract: extractOpenDocument, binary: true},
	".ods":      {extract: extractOpenDocument, binary: true},
}

// Extractor extracts plain text from the file types it is configured for.
type Extractor struct {
	extensions []string
}

// NewExtractor returns an Extractor limited to extensions (with leading dot,
// case-insensitive). Unknown extensions are an error. With no extensions, every
// supported format is enabled.
func NewExtractor(extensions ...string) (*Extractor, error) {
	if len(extensions) == 0 {
		return &Extractor{extensions: SupportedExtensions()}, nil
	}
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if _, ok := formats[ext]; !ok {
			return nil, fmt.Errorf("unsupported file extension %q (supported: %s)", ext, strings.Join(SupportedExtensions(), ", "))
		}
		if !slices.Contains(exts, ext) {
			exts = append(exts, ext)
		}
	}
	return &Extractor{extensions: exts}, nil
}

// SupportedExtensions lists every extension the package can extract, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Extensions returns the extensions this Extractor accepts.
func (e *Extractor) Extensions() []string {
	return slices.Clone(e.extensions)
}

// Accepts reports whether path has one of the configured extensions.
func (e *Extractor) Accepts(path string) bool {
	return slices.Contains(e.extensions, normalizeExt(filepath.Ext(path)))
}

// IsBinary reports whether path is a binary document format.
func IsBinary(path string) bool {
	return formats[normalizeExt(filepath.Ext(path))].binary
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(path string) (string, error) {
	if !e.Accepts(path) {
		return "", fmt.Errorf("extract %s: extension not enabled", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content according to ext (e.g. ".pdf").
// An unknown extension is treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	f, ok := formats[normalizeExt(ext)]
	if !ok {
		return extractPlain(content)
	}
	return f.extract(content)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
