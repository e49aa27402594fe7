package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileType represents the type of document file
type FileType int

const (
	TypeUnknown FileType = iota
	TypePDF
	TypeDOCX
	TypeText
)

// MaxFileSize is the maximum allowed file size (10MB)
const MaxFileSize = 10 * 1024 * 1024

// DetectFileType determines the file type based on extension
func DetectFileType(filename string) FileType {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return TypePDF
	case ".docx":
		return TypeDOCX
	case ".txt", ".md":
		return TypeText
	default:
		return TypeUnknown
	}
}

// IsSupported reports whether ParseDocument can read the file
func IsSupported(filename string) bool {
	return DetectFileType(filename) != TypeUnknown
}

// ValidateFileSize checks if a file is within the size limit
func ValidateFileSize(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), MaxFileSize)
	}

	return nil
}

// ValidateFilename checks for path traversal and other malicious patterns
func ValidateFilename(filename string) error {
	if strings.Contains(filename, "..") {
		return fmt.Errorf("filename contains path traversal: ..")
	}

	if strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\") {
		return fmt.Errorf("filename cannot be an absolute path")
	}

	if strings.ContainsRune(filename, '\x00') {
		return fmt.Errorf("filename contains null byte")
	}

	if strings.ContainsRune(filename, '\n') || strings.ContainsRune(filename, '\r') {
		return fmt.Errorf("filename contains newline character")
	}

	return nil
}

// ParseDocument detects the file type and returns the document's plain text
func ParseDocument(filePath string) (string, error) {
	if _, err := os.Stat(filePath); err != nil {
		return "", fmt.Errorf("file not found: %w", err)
	}

	if err := ValidateFileSize(filePath); err != nil {
		return "", err
	}

	switch DetectFileType(filePath) {
	case TypePDF:
		return ParsePDF(filePath)
	case TypeDOCX:
		return ParseDOCX(filePath)
	case TypeText:
		return ParseText(filePath)
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filePath))
	}
}

// ParseText reads a plain text or markdown file
func ParseText(filePath string) (string, error) {
	if err := ValidateFileSize(filePath); err != nil {
		return "", err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", fmt.Errorf("no text content found in file")
	}

	return text, nil
}
