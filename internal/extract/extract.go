// Package extract pulls plain text out of local note files so they can be
// classified and indexed. Plain text, Markdown, HTML, and PDF are supported.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// File reads the file at path and returns its text content, dispatching on
// the file extension. Unknown extensions are treated as plain text.
func File(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return Bytes(content, strings.ToLower(filepath.Ext(path)))
}

// Bytes extracts text from content based on ext, which includes the leading
// dot (e.g. ".pdf").
func Bytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".html", ".htm":
		return extractHTML(content)
	default:
		return extractPlain(content)
	}
}

// extractPlain returns content as a string, replacing invalid UTF-8
// sequences with the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}
