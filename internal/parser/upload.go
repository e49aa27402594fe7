package parser

import (
	"fmt"
	"io"
	"os"
)

// CreateTempFile copies an uploaded document to a temporary file so it can
// be parsed by path. The caller removes it with CleanupTempFile.
func CreateTempFile(reader io.Reader, filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}

	tempFile, err := os.CreateTemp(os.TempDir(), "vocabtable-*-"+filename)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	written, err := io.Copy(tempFile, io.LimitReader(reader, MaxFileSize+1))
	if err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	if written > MaxFileSize {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("file too large: %d bytes (max: %d bytes)", written, MaxFileSize)
	}

	return tempFile.Name(), nil
}

// CleanupTempFile removes a temporary file
func CleanupTempFile(filePath string) error {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	return nil
}
