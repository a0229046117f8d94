// Package textextract turns stored documents into plain text.
package textextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrExtraction  = errors.New("text extraction failed")
	ErrUnsupported = errors.New("unsupported file type")
)

var plainTextExts = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Supported reports whether a file name has an extension Extract understands.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".pdf" || plainTextExts[ext]
}

// ContentType maps a supported file name to its MIME type.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

// ExtractFile opens path and extracts it according to its extension.
func ExtractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrExtraction, filepath.Base(path), err)
	}
	defer f.Close()
	return Extract(path, f)
}

// Extract reads r as the file type implied by name. PDFs with no text layer
// return an empty string and no error.
func Extract(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".pdf" && !plainTextExts[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", ErrExtraction, err)
	}
	if ext == ".pdf" {
		return extractPDF(b)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: file is not valid UTF-8", ErrExtraction)
	}
	return string(bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))), nil
}

func extractPDF(b []byte) (text string, err error) {
	if len(b) == 0 {
		return "", nil
	}
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", ErrExtraction, r)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return string(out), nil
}
