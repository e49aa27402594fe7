package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Word is one extracted table row.
type Word struct {
	Vocabulary string `json:"vocabulary"`
	Type       string `json:"type"`
	Meaning    string `json:"meaning"`
}

// AIExtractor defines the interface for vocabulary extraction
type AIExtractor interface {
	ExtractVocabulary(ctx context.Context, text, language string) ([]Word, error)
}

// ClaudeClient implements AIExtractor using Claude API
type ClaudeClient struct {
	client  *anthropic.Client
	timeout time.Duration
}

// AIError represents an error from the AI API
type AIError struct {
	Message     string
	StatusCode  int
	RequestID   string
	RawResponse string
}

func (e *AIError) Error() string {
	msg := fmt.Sprintf("AI API error (%d): %s", e.StatusCode, e.Message)
	if e.RequestID != "" {
		msg += fmt.Sprintf("\n  request-id: %s", e.RequestID)
	}
	if e.RawResponse != "" {
		msg += fmt.Sprintf("\n  raw: %s", e.RawResponse)
	}
	return msg
}

// IsAIError checks if an error is an AIError
func IsAIError(err error) bool {
	var aiErr *AIError
	return errors.As(err, &aiErr)
}

// NewClaudeClient creates a new Claude API client. Extra request options
// are passed through to the SDK (base URL, retries).
func NewClaudeClient(apiKey string, opts ...option.RequestOption) (*ClaudeClient, error) {
	if err := validateAPIKey(apiKey); err != nil {
		return nil, err
	}

	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	return &ClaudeClient{
		client:  &client,
		timeout: 60 * time.Second,
	}, nil
}

// ExtractVocabulary asks Claude for the vocabulary rows found in text
func (c *ClaudeClient) ExtractVocabulary(ctx context.Context, text, language string) ([]Word, error) {
	if strings.TrimSpace(text) == "" {
		return []Word{}, nil
	}

	prompt := buildPrompt(text, language)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaudeSonnet4_5_20250929,
		MaxTokens: 4000,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &AIError{
				Message:     apiErr.Error(),
				StatusCode:  apiErr.StatusCode,
				RequestID:   apiErr.RequestID,
				RawResponse: apiErr.RawJSON(),
			}
		}
		return nil, &AIError{
			Message:    fmt.Sprintf("failed to call Claude API: %v", err),
			StatusCode: 500,
		}
	}

	if len(message.Content) == 0 {
		return []Word{}, nil
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}

	words, err := parseVocabularyResponse(b.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary response: %w", err)
	}

	words = sanitizeVocabulary(words)
	words = deduplicateVocabulary(words)

	return words, nil
}

// buildPrompt constructs the prompt for Claude
func buildPrompt(text, language string) string {
	if language == "" || language == "auto-detect" {
		language = "the source language"
	}

	return fmt.Sprintf(`You are a language learning assistant. Build vocabulary table rows from the following %s study notes.

Return ONLY a JSON array of objects with exactly these string fields:
- "vocabulary": the word or phrase as written in %s
- "type": a short part-of-speech label (n, v, adj, adv, phr, ...)
- "meaning": a short meaning or translation

Do NOT include:
- Lesson titles
- Section headers
- Duplicate entries

Return format: [{"vocabulary": "...", "type": "n", "meaning": "..."}, ...]

Document content:
%s`, language, language, text)
}

// parseVocabularyResponse extracts rows from Claude's JSON response,
// handling optional markdown code block wrappers.
func parseVocabularyResponse(response string) ([]Word, error) {
	response = strings.TrimSpace(response)

	// Remove markdown code blocks if present
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var words []Word
	if err := json.Unmarshal([]byte(response), &words); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	return words, nil
}

// sanitizeVocabulary trims every field and drops rows without a vocabulary
func sanitizeVocabulary(words []Word) []Word {
	cleaned := make([]Word, 0, len(words))
	for _, w := range words {
		w.Vocabulary = strings.TrimSpace(w.Vocabulary)
		w.Type = strings.TrimSpace(w.Type)
		w.Meaning = strings.TrimSpace(w.Meaning)
		if w.Vocabulary != "" {
			cleaned = append(cleaned, w)
		}
	}
	return cleaned
}

// deduplicateVocabulary keeps the first row for each vocabulary, preserving order
func deduplicateVocabulary(words []Word) []Word {
	seen := make(map[string]bool, len(words))
	unique := make([]Word, 0, len(words))

	for _, w := range words {
		k := strings.ToLower(w.Vocabulary)
		if !seen[k] {
			seen[k] = true
			unique = append(unique, w)
		}
	}

	return unique
}

// validateAPIKey checks if the API key is valid
func validateAPIKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	return nil
}
