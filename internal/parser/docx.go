package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// ParseDOCX extracts text content from a DOCX file
func ParseDOCX(filePath string) (string, error) {
	if err := ValidateFileSize(filePath); err != nil {
		return "", err
	}

	doc, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer doc.Close()

	text, err := docxText(doc.Editable().GetContent())
	if err != nil {
		return "", fmt.Errorf("failed to read DOCX body: %w", err)
	}

	if text == "" {
		return "", fmt.Errorf("no text content found in DOCX")
	}

	return text, nil
}

// docxText turns WordprocessingML into plain text: character data is kept,
// each paragraph ends a line and tabs and breaks become whitespace.
func docxText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var b strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch el := tok.(type) {
		case xml.CharData:
			b.Write(el)
		case xml.StartElement:
			switch el.Name.Local {
			case "tab":
				b.WriteString("\t")
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				b.WriteString("\n")
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}
