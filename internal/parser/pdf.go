package parser

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ParsePDF extracts text content from a PDF file
func ParsePDF(filePath string) (string, error) {
	if err := ValidateFileSize(filePath); err != nil {
		return "", err
	}

	file, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	return pdfText(reader)
}

// pdfText joins the plain text of every readable page. Pages that fail to
// decode are skipped.
func pdfText(reader *pdf.Reader) (string, error) {
	var b strings.Builder

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		b.WriteString(text)
		b.WriteString("\n")
	}

	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", fmt.Errorf("no text content found in PDF")
	}

	return content, nil
}
