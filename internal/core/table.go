package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/vocabtable/vocabtable/internal/db"
	"github.com/vocabtable/vocabtable/internal/vocab"
)

// CellState is the edit state of one table cell.
type CellState int

const (
	Display CellState = iota
	Editing
)

func (s CellState) String() string {
	if s == Editing {
		return "editing"
	}
	return "display"
}

// SaveError reports a commit that could not be written to the store. The
// cell stays in Editing.
type SaveError struct {
	Key   string
	Field vocab.Field
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save failed for %s of %s: %v", e.Field, e.Key, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// IsSaveError checks if an error is a SaveError
func IsSaveError(err error) bool {
	var sErr *SaveError
	return errors.As(err, &sErr)
}

// Options configures a Table.
type Options struct {
	// Logger receives warnings about degraded loads and failed saves.
	// Nil discards them.
	Logger *slog.Logger

	// PersistDeletes makes DeleteEntry rewrite the stored record. When
	// false, deletions only affect the in-memory rows and deleted rows
	// come back on the next Initialize.
	PersistDeletes bool
}

// rowEdit is the form state of one row. A row edits one cell at a time.
type rowEdit struct {
	field vocab.Field
	err   error
}

// Table is the vocabulary table view model. It holds the visible rows in
// memory and writes the whole list back to its Store after every add or
// committed edit. Methods are safe for concurrent use; each call runs to
// completion before the next one starts.
type Table struct {
	mu             sync.Mutex
	store          db.Store
	log            *slog.Logger
	persistDeletes bool

	entries vocab.List
	edits   map[string]*rowEdit
}

// NewTable creates a Table backed by store. Call Initialize before use.
func NewTable(store db.Store, opts Options) *Table {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Table{
		store:          store,
		log:            logger,
		persistDeletes: opts.PersistDeletes,
		entries:        vocab.List{},
		edits:          make(map[string]*rowEdit),
	}
}

// Initialize replaces the in-memory rows with the stored record. A missing
// or malformed record leaves the table empty; only backend failures are
// returned.
func (t *Table) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	list, _, err := db.LoadList(ctx, t.store)
	if errors.Is(err, db.ErrMalformed) {
		t.log.WarnContext(ctx, "stored vocabulary is malformed, starting empty", "error", err)
		list = vocab.List{}
	} else if err != nil {
		return fmt.Errorf("failed to initialize table: %w", err)
	}

	t.entries = list
	t.edits = make(map[string]*rowEdit)
	t.log.DebugContext(ctx, "table initialized", "rows", len(list))

	return nil
}

// Entries returns a copy of the visible rows in display order.
func (t *Table) Entries() vocab.List {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Clone()
}

// Len returns the number of visible rows.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns the visible row with the given key.
func (t *Table) Get(key string) (vocab.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.entries.Index(key)
	if i < 0 {
		return vocab.Entry{}, vocab.ErrNotFound
	}
	return t.entries[i], nil
}

// AddEntry appends a row with placeholder values.
func (t *Table) AddEntry(ctx context.Context) (vocab.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(ctx, vocab.DefaultVocabulary, vocab.DefaultType, vocab.DefaultMeaning)
}

// AddEntryWith appends a row with the given values, all of which are
// required. Values are trimmed before they are checked.
func (t *Table) AddEntryWith(ctx context.Context, vocabulary, typ, meaning string) (vocab.Entry, error) {
	values, err := requiredValues(vocabulary, typ, meaning)
	if err != nil {
		return vocab.Entry{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(ctx, values[0], values[1], values[2])
}

// AddUnique is AddEntryWith for a word not yet in the table. The word is
// looked up in the visible rows and in the stored record, so a row hidden
// by a memory-only delete still counts. It reports false, without
// writing, when the word is already present.
func (t *Table) AddUnique(ctx context.Context, vocabulary, typ, meaning string) (vocab.Entry, bool, error) {
	values, err := requiredValues(vocabulary, typ, meaning)
	if err != nil {
		return vocab.Entry{}, false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries.HasVocabulary(values[0]) {
		return vocab.Entry{}, false, nil
	}

	stored, present, err := t.loadForAdd(ctx)
	if err != nil {
		return vocab.Entry{}, false, err
	}
	if stored.HasVocabulary(values[0]) {
		return vocab.Entry{}, false, nil
	}

	entry, err := t.appendEntry(ctx, stored, present, values[0], values[1], values[2])
	if err != nil {
		return vocab.Entry{}, false, err
	}
	return entry, true, nil
}

func requiredValues(vocabulary, typ, meaning string) ([]string, error) {
	values := []string{strings.TrimSpace(vocabulary), strings.TrimSpace(typ), strings.TrimSpace(meaning)}
	for i, f := range []vocab.Field{vocab.FieldVocabulary, vocab.FieldType, vocab.FieldMeaning} {
		if err := vocab.Validate(f, values[i]); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (t *Table) add(ctx context.Context, vocabulary, typ, meaning string) (vocab.Entry, error) {
	stored, present, err := t.loadForAdd(ctx)
	if err != nil {
		return vocab.Entry{}, err
	}
	return t.appendEntry(ctx, stored, present, vocabulary, typ, meaning)
}

// loadForAdd reads the record an add builds on. A malformed record is
// never overwritten: the add fails with db.ErrMalformed and the raw data
// stays in place.
func (t *Table) loadForAdd(ctx context.Context) (vocab.List, bool, error) {
	stored, present, err := db.LoadList(ctx, t.store)
	if errors.Is(err, db.ErrMalformed) {
		t.log.ErrorContext(ctx, "stored vocabulary is malformed, refusing to overwrite it", "error", err)
		return nil, false, fmt.Errorf("failed to add entry: %w", err)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to add entry: %w", err)
	}
	return stored, present, nil
}

// appendEntry numbers the new row from the stored list, not the visible
// one, so rows deleted only in memory still count. When a record exists
// the row is appended to it; otherwise the visible rows plus the new one
// become the record.
func (t *Table) appendEntry(ctx context.Context, stored vocab.List, present bool, vocabulary, typ, meaning string) (vocab.Entry, error) {
	entry := vocab.NewEntry(len(stored)+1, vocabulary, typ, meaning)

	var record vocab.List
	if present {
		record = append(stored, entry)
	} else {
		record = append(t.entries.Clone(), entry)
	}

	if err := db.SaveList(ctx, t.store, record); err != nil {
		return vocab.Entry{}, fmt.Errorf("failed to add entry: %w", err)
	}

	t.entries = append(t.entries, entry)
	t.log.InfoContext(ctx, "entry added", "key", entry.Key, "stt", entry.STT)

	return entry, nil
}

// BeginEdit switches a cell to Editing and returns the value to prefill the
// input with. Starting an edit on a row that is already editing another
// cell moves the row's edit to this cell.
func (t *Table) BeginEdit(key string, field vocab.Field) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !field.Editable() {
		return "", vocab.ErrNotEditable
	}

	i := t.entries.Index(key)
	if i < 0 {
		return "", vocab.ErrNotFound
	}

	t.edits[key] = &rowEdit{field: field}
	return t.entries[i].Get(field), nil
}

// CancelEdit returns the row's editing cell to Display without writing.
func (t *Table) CancelEdit(key string) {
	t.mu.Lock()
	delete(t.edits, key)
	t.mu.Unlock()
}

// CommitEdit validates value and, if it is non-empty, merges it into the
// row, replaces the matching row of the stored record and writes the record
// back. The cell must be in Editing; otherwise vocab.ErrNotEditing is
// returned and the row's open edit, if any, is left alone. On success the
// cell returns to Display. A *vocab.ValidationError or *SaveError leaves
// the cell in Editing and changes nothing.
func (t *Table) CommitEdit(ctx context.Context, key string, field vocab.Field, value string) (vocab.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.entries.Index(key)
	if i < 0 {
		return vocab.Entry{}, vocab.ErrNotFound
	}
	if !field.Editable() {
		return vocab.Entry{}, vocab.ErrNotEditable
	}
	if e, ok := t.edits[key]; !ok || e.field != field {
		return vocab.Entry{}, vocab.ErrNotEditing
	}

	if err := vocab.Validate(field, value); err != nil {
		t.edits[key] = &rowEdit{field: field, err: err}
		return vocab.Entry{}, err
	}

	edited := t.entries[i].With(field, value)

	if err := t.persistEdit(ctx, edited); err != nil {
		t.log.ErrorContext(ctx, "save failed", "key", key, "field", field.String(), "error", err)
		saveErr := &SaveError{Key: key, Field: field, Err: err}
		t.edits[key] = &rowEdit{field: field, err: saveErr}
		return vocab.Entry{}, saveErr
	}

	t.entries[i] = edited
	delete(t.edits, key)

	return edited, nil
}

// persistEdit replaces the stored row matching edited.Key. Without a usable
// record, or without a matching row in it, nothing is written.
func (t *Table) persistEdit(ctx context.Context, edited vocab.Entry) error {
	stored, present, err := db.LoadList(ctx, t.store)
	if errors.Is(err, db.ErrMalformed) {
		t.log.WarnContext(ctx, "stored vocabulary is malformed, edit kept in memory only", "key", edited.Key)
		return nil
	}
	if err != nil {
		return err
	}
	if !present {
		t.log.WarnContext(ctx, "no stored vocabulary, edit kept in memory only", "key", edited.Key)
		return nil
	}

	j := stored.Index(edited.Key)
	if j < 0 {
		t.log.WarnContext(ctx, "entry missing from stored vocabulary, edit kept in memory only", "key", edited.Key)
		return nil
	}

	stored[j] = edited
	return db.SaveList(ctx, t.store, stored)
}

// CellState reports whether a cell is being edited.
func (t *Table) CellState(key string, field vocab.Field) CellState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.edits[key]; ok && e.field == field {
		return Editing
	}
	return Display
}

// EditError returns the error from the row's last failed commit, if the row
// is still editing.
func (t *Table) EditError(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.edits[key]; ok {
		return e.err
	}
	return nil
}

// DeleteEntry removes the row with key from the visible rows. The stored
// record is rewritten only when the table was built with PersistDeletes.
func (t *Table) DeleteEntry(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries.Index(key) < 0 {
		return vocab.ErrNotFound
	}

	if t.persistDeletes {
		stored, present, err := db.LoadList(ctx, t.store)
		if err != nil && !errors.Is(err, db.ErrMalformed) {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		if err == nil && present {
			if err := db.SaveList(ctx, t.store, stored.Without(key)); err != nil {
				return fmt.Errorf("failed to delete entry: %w", err)
			}
		}
	}

	t.entries = t.entries.Without(key)
	delete(t.edits, key)
	t.log.InfoContext(ctx, "entry deleted", "key", key, "persisted", t.persistDeletes)

	return nil
}

// Export writes the visible rows to filePath as indented JSON.
func (t *Table) Export(filePath string) error {
	entries := t.Entries()

	// Create file with secure permissions (0600 - owner read/write only)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	return WriteJSON(file, entries)
}

// WriteJSON encodes entries as an indented JSON array.
func WriteJSON(w io.Writer, entries vocab.List) error {
	if entries == nil {
		entries = vocab.List{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
