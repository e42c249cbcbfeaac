// Package resume extracts text from uploaded resumes and produces an
// AI evaluation with a score, per-section feedback and improvements.
package resume

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Upload constraints.
const (
	MaxFileSize   = 5 * 1024 * 1024
	MinTextLength = 50
)

// Accepted upload MIME types.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

// Sentinel errors for upload validation.
var (
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrFileTooLarge     = errors.New("file exceeds the size limit")
	ErrInsufficientText = errors.New("could not extract sufficient text")
)

// Extractor turns an uploaded file into plain text. PDF and DOCX
// extraction is provided by the embedding application; the package
// ships a plain-text passthrough.
type Extractor interface {
	Extract(data []byte, mime string) (string, error)
}

// PlainTextExtractor handles text/plain uploads.
type PlainTextExtractor struct{}

// Extract returns the file content as text.
func (PlainTextExtractor) Extract(data []byte, mime string) (string, error) {
	if mime != MimeText {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInsufficientText)
	}
	return strings.TrimSpace(string(data)), nil
}

// ValidateUpload checks size and extracted-text constraints shared by
// all extractors.
func ValidateUpload(data []byte, text string) error {
	if len(data) > MaxFileSize {
		return ErrFileTooLarge
	}
	if len(strings.TrimSpace(text)) < MinTextLength {
		return ErrInsufficientText
	}
	return nil
}
