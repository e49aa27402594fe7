package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vocabtable/vocabtable/internal/ai"
	"github.com/vocabtable/vocabtable/internal/parser"
	"github.com/vocabtable/vocabtable/internal/vocab"
)

// Importer fills a Table from a study document
type Importer struct {
	Table    *Table
	AI       ai.AIExtractor
	Language string
}

// ImportResult contains the results of importing a document
type ImportResult struct {
	Added             int
	SkippedDuplicates int
	TotalProcessed    int
	Language          string
	FilePath          string
}

// NewImporter creates a new Importer instance
func NewImporter(table *Table, extractor ai.AIExtractor, language string) *Importer {
	return &Importer{
		Table:    table,
		AI:       extractor,
		Language: language,
	}
}

// ImportDocument parses a document, extracts vocabulary rows and appends
// every row whose word is not already in the table
func (im *Importer) ImportDocument(ctx context.Context, filePath string) (*ImportResult, error) {
	if err := validateFilePath(filePath); err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	if !parser.IsSupported(filePath) {
		return nil, fmt.Errorf("unsupported file type: %s (only .pdf, .docx and .txt are supported)", filepath.Ext(filePath))
	}

	text, err := parser.ParseDocument(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	words, err := im.AI.ExtractVocabulary(ctx, text, im.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to extract vocabulary: %w", err)
	}

	added, skipped, err := im.addWords(ctx, words)
	if err != nil {
		return nil, err
	}

	return &ImportResult{
		Added:             added,
		SkippedDuplicates: skipped,
		TotalProcessed:    added + skipped,
		Language:          im.Language,
		FilePath:          filePath,
	}, nil
}

// addWords appends new rows and counts duplicates. Missing type or meaning
// falls back to the placeholder so the row stays valid.
func (im *Importer) addWords(ctx context.Context, words []ai.Word) (added, skipped int, err error) {
	for _, w := range words {
		if strings.TrimSpace(w.Vocabulary) == "" {
			continue
		}

		typ := orDefault(w.Type, vocab.DefaultType)
		meaning := orDefault(w.Meaning, vocab.DefaultMeaning)

		_, ok, err := im.Table.AddUnique(ctx, w.Vocabulary, typ, meaning)
		if err != nil {
			return added, skipped, fmt.Errorf("failed to add %q: %w", w.Vocabulary, err)
		}
		if !ok {
			skipped++
			continue
		}
		added++
	}

	return added, skipped, nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// validateFilePath checks if a file path is valid, exists, and is a regular file
func validateFilePath(filePath string) error {
	if strings.TrimSpace(filePath) == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("file does not exist: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}

	return nil
}
