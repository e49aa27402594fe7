package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vocabtable/vocabtable/internal/core"
	"github.com/vocabtable/vocabtable/internal/parser"
	"github.com/vocabtable/vocabtable/internal/vocab"
)

// Handler contains all HTTP handlers. Importer may be nil, in which case
// uploads are refused.
type Handler struct {
	Table    *core.Table
	Importer *core.Importer
	Log      *slog.Logger
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// maxEditBodySize caps the body of a cell commit.
const maxEditBodySize = 64 << 10

// EditRequest is the body of a cell commit.
type EditRequest struct {
	Value string `json:"value"`
}

// EditResponse carries the prefill value of a cell entering edit mode.
type EditResponse struct {
	Key   string `json:"key"`
	Field string `json:"field"`
	Value string `json:"value"`
	State string `json:"state"`
}

// ListVocabulary handles GET /api/vocabularies.
func (h *Handler) ListVocabulary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Table.Entries())
}

// GetVocabulary handles GET /api/vocabularies/{key}.
func (h *Handler) GetVocabulary(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Table.Get(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Vocabulary not found")
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// AddVocabulary handles POST /api/vocabularies.
func (h *Handler) AddVocabulary(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Table.AddEntry(r.Context())
	if err != nil {
		h.logError(r, "add failed", err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to add vocabulary: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// BeginEdit handles POST /api/vocabularies/{key}/{field}/edit.
func (h *Handler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	key, field, ok := parseCell(w, r)
	if !ok {
		return
	}

	value, err := h.Table.BeginEdit(key, field)
	if err != nil {
		respondTableError(w, err, field)
		return
	}

	respondJSON(w, http.StatusOK, EditResponse{
		Key:   key,
		Field: field.String(),
		Value: value,
		State: h.Table.CellState(key, field).String(),
	})
}

// CancelEdit handles DELETE /api/vocabularies/{key}/edit.
func (h *Handler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	h.Table.CancelEdit(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

// CommitEdit handles PUT /api/vocabularies/{key}/{field}.
func (h *Handler) CommitEdit(w http.ResponseWriter, r *http.Request) {
	key, field, ok := parseCell(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEditBodySize)

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body too large (max %d bytes)", maxErr.Limit))
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.Table.CommitEdit(r.Context(), key, field, req.Value)
	if err != nil {
		if core.IsSaveError(err) {
			h.logError(r, "commit failed", err)
		}
		respondTableError(w, err, field)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// DeleteVocabulary handles DELETE /api/vocabularies/{key}.
func (h *Handler) DeleteVocabulary(w http.ResponseWriter, r *http.Request) {
	if err := h.Table.DeleteEntry(r.Context(), chi.URLParam(r, "key")); err != nil {
		respondTableError(w, err, vocab.FieldSTT)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: "Vocabulary deleted successfully"})
}

// ImportDocument handles POST /api/import.
func (h *Handler) ImportDocument(w http.ResponseWriter, r *http.Request) {
	if h.Importer == nil {
		respondError(w, http.StatusServiceUnavailable, "Import is disabled (ANTHROPIC_API_KEY not set)")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if err := parser.ValidateFilename(header.Filename); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid filename: %v", err))
		return
	}

	if header.Size > parser.MaxFileSize {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("File too large (max %d bytes)", parser.MaxFileSize))
		return
	}

	tmpPath, err := parser.CreateTempFile(file, header.Filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save file: %v", err))
		return
	}
	defer parser.CleanupTempFile(tmpPath)

	result, err := h.Importer.ImportDocument(r.Context(), tmpPath)
	if err != nil {
		h.logError(r, "import failed", err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to import document: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ExportVocabulary handles POST /api/export.
func (h *Handler) ExportVocabulary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=vocabulary_export.json")

	if err := core.WriteJSON(w, h.Table.Entries()); err != nil {
		h.logError(r, "export failed", err)
	}
}

// GetStats handles GET /api/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"total_vocabulary": h.Table.Len(),
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	if h.Log != nil {
		h.Log.ErrorContext(r.Context(), msg, "path", r.URL.Path, "error", err)
	}
}

// parseCell extracts the {key} and {field} path parameters.
// Returns false after writing an error response if the field is unknown.
func parseCell(w http.ResponseWriter, r *http.Request) (string, vocab.Field, bool) {
	field, err := vocab.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unknown field")
		return "", 0, false
	}
	return chi.URLParam(r, "key"), field, true
}

// respondTableError maps Table errors onto status codes.
func respondTableError(w http.ResponseWriter, err error, field vocab.Field) {
	var vErr *vocab.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: vErr.Error(), Field: vErr.Field.String()})
	case errors.Is(err, vocab.ErrNotFound):
		respondError(w, http.StatusNotFound, "Vocabulary not found")
	case errors.Is(err, vocab.ErrNotEditing):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: fmt.Sprintf("%s is not being edited", field.Title()), Field: field.String()})
	case errors.Is(err, vocab.ErrNotEditable):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("%s is not editable", field.Title()), Field: field.String()})
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondError sends an error JSON response with the given status code and message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
