package core

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocabtable/vocabtable/internal/db"
	"github.com/vocabtable/vocabtable/internal/vocab"
)

// flakyStore wraps a MemoryStore and fails writes or reads on demand
type flakyStore struct {
	*db.MemoryStore
	saveErr error
	loadErr error
}

func (f *flakyStore) Load(ctx context.Context) ([]byte, bool, error) {
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	return f.MemoryStore.Load(ctx)
}

func (f *flakyStore) Save(ctx context.Context, data []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStore.Save(ctx, data)
}

// ---- helpers ---------------------------------------------------------------

func newTable(t *testing.T, store db.Store) *Table {
	t.Helper()
	table := NewTable(store, Options{})
	require.NoError(t, table.Initialize(context.Background()))
	return table
}

func stored(t *testing.T, store db.Store) vocab.List {
	t.Helper()
	list, _, err := db.LoadList(context.Background(), store)
	require.NoError(t, err)
	return list
}

func seed(t *testing.T, entries ...vocab.Entry) *db.MemoryStore {
	t.Helper()
	data, err := json.Marshal(vocab.List(entries))
	require.NoError(t, err)
	return db.NewMemoryStoreWith(data)
}

// ---- Initialize ------------------------------------------------------------

// TestInitializeEmpty tests that an absent record yields an empty table
func TestInitializeEmpty(t *testing.T) {
	table := newTable(t, db.NewMemoryStore())

	assert.Equal(t, 0, table.Len())
	assert.NotNil(t, table.Entries())
}

// TestInitializeMalformed tests that bad stored JSON degrades to an empty table
func TestInitializeMalformed(t *testing.T) {
	store := db.NewMemoryStoreWith([]byte(`{"oops":`))
	table := NewTable(store, Options{})

	require.NoError(t, table.Initialize(context.Background()))
	assert.Equal(t, 0, table.Len())
}

// TestInitializeBackendError tests that storage failures are reported
func TestInitializeBackendError(t *testing.T) {
	boom := errors.New("unavailable")
	table := NewTable(&flakyStore{MemoryStore: db.NewMemoryStore(), loadErr: boom}, Options{})

	assert.ErrorIs(t, table.Initialize(context.Background()), boom)
}

// TestRoundTrip tests that re-initializing from storage reproduces the list
func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	table := newTable(t, store)

	for i := 0; i < 3; i++ {
		_, err := table.AddEntry(ctx)
		require.NoError(t, err)
	}
	key := table.Entries()[1].Key
	_, err := table.BeginEdit(key, vocab.FieldMeaning)
	require.NoError(t, err)
	_, err = table.CommitEdit(ctx, key, vocab.FieldMeaning, "changed")
	require.NoError(t, err)

	reloaded := newTable(t, store)
	assert.Equal(t, table.Entries(), reloaded.Entries())
}

// ---- AddEntry --------------------------------------------------------------

// TestAddEntryEmptyStorage tests the first add against empty storage
func TestAddEntryEmptyStorage(t *testing.T) {
	store := db.NewMemoryStore()
	table := newTable(t, store)

	entry, err := table.AddEntry(context.Background())
	require.NoError(t, err)

	got := stored(t, store)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].STT)
	assert.Equal(t, "word", got[0].Vocabulary)
	assert.Equal(t, "n", got[0].Type)
	assert.Equal(t, "mean", got[0].Meaning)
	assert.Equal(t, entry.Key, got[0].Key)

	_, err = uuid.Parse(got[0].Key)
	assert.NoError(t, err, "key should be a UUID")
}

// TestAddEntryTwice tests ordinals and keys of consecutive adds
func TestAddEntryTwice(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	table := newTable(t, store)

	first, err := table.AddEntry(ctx)
	require.NoError(t, err)
	second, err := table.AddEntry(ctx)
	require.NoError(t, err)

	assert.Equal(t, "1", first.STT)
	assert.Equal(t, "2", second.STT)
	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, vocab.List{first, second}, stored(t, store))
}

// TestAddEntryManyUniqueKeys tests that N adds produce N rows with unique keys
func TestAddEntryManyUniqueKeys(t *testing.T) {
	ctx := context.Background()
	table := newTable(t, db.NewMemoryStore())

	const n = 50
	for i := 0; i < n; i++ {
		_, err := table.AddEntry(ctx)
		require.NoError(t, err)
	}

	entries := table.Entries()
	require.Len(t, entries, n)

	seen := make(map[string]bool, n)
	for _, e := range entries {
		assert.False(t, seen[e.Key], "duplicate key %s", e.Key)
		seen[e.Key] = true
	}
}

// TestAddEntryOrdinalFromStorage tests that STT counts stored rows, not visible ones
func TestAddEntryOrdinalFromStorage(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	table := newTable(t, store)

	a, _ := table.AddEntry(ctx)
	_, _ = table.AddEntry(ctx)
	require.NoError(t, table.DeleteEntry(ctx, a.Key))

	third, err := table.AddEntry(ctx)
	require.NoError(t, err)

	assert.Equal(t, "3", third.STT)
	assert.Equal(t, 2, table.Len())
	assert.Len(t, stored(t, store), 3, "deleted row is still in the record")
}

// TestAddEntrySaveFailure tests that a failed write leaves memory untouched
func TestAddEntrySaveFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: db.NewMemoryStore()}
	table := newTable(t, store)

	store.saveErr = errors.New("quota exceeded")
	_, err := table.AddEntry(context.Background())

	assert.ErrorIs(t, err, store.saveErr)
	assert.Equal(t, 0, table.Len())
}

// TestAddEntryKeepsMalformed tests that an unreadable record is never overwritten
func TestAddEntryKeepsMalformed(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStoreWith([]byte(`garbage`))
	table := newTable(t, store)

	_, err := table.AddEntry(ctx)
	assert.ErrorIs(t, err, db.ErrMalformed)

	_, _, err = table.AddUnique(ctx, "apple", "n", "qua tao")
	assert.ErrorIs(t, err, db.ErrMalformed)

	raw, present, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "garbage", string(raw))
	assert.Equal(t, 0, table.Len())
}

// TestAddEntryWith tests adding a row with explicit values
func TestAddEntryWith(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	table := newTable(t, store)

	entry, err := table.AddEntryWith(ctx, " apple ", "n", "qua tao")
	require.NoError(t, err)
	assert.Equal(t, "apple", entry.Vocabulary)
	assert.Equal(t, vocab.List{entry}, stored(t, store))

	_, err = table.AddEntryWith(ctx, "pear", "", "qua le")
	assert.ErrorIs(t, err, vocab.ErrValidation)
	_, err = table.AddEntryWith(ctx, "pear", "n", "  ")
	assert.ErrorIs(t, err, vocab.ErrValidation)
	assert.Equal(t, 1, table.Len())
}

// TestAddUnique tests that words already visible are skipped without a write
func TestAddUnique(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	table := newTable(t, store)

	entry, ok, err := table.AddUnique(ctx, "apple", "n", "qua tao")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "apple", entry.Vocabulary)

	_, ok, err = table.AddUnique(ctx, " APPLE ", "n", "trai tao")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, vocab.List{entry}, stored(t, store))
}

// TestAddUniqueSeesStoredRows tests that a row hidden by a memory-only delete still counts
func TestAddUniqueSeesStoredRows(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	table := newTable(t, store)

	entry, _, err := table.AddUnique(ctx, "apple", "n", "qua tao")
	require.NoError(t, err)
	require.NoError(t, table.DeleteEntry(ctx, entry.Key))

	_, ok, err := table.AddUnique(ctx, "apple", "n", "qua tao")
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded := newTable(t, store)
	assert.Equal(t, vocab.List{entry}, reloaded.Entries())
}

// TestConcurrentAddUnique tests that racing adds of one word store it once
func TestConcurrentAddUnique(t *testing.T) {
	store := db.NewMemoryStore()
	table := newTable(t, store)

	const n = 10
	done := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() {
			_, ok, err := table.AddUnique(context.Background(), "apple", "n", "qua tao")
			assert.NoError(t, err)
			done <- ok
		}()
	}

	added := 0
	for i := 0; i < n; i++ {
		if <-done {
			added++
		}
	}

	assert.Equal(t, 1, added)
	assert.Len(t, stored(t, store), 1)
}

// ---- Edit state machine ----------------------------------------------------

// TestBeginEdit tests switching a cell into editing
func TestBeginEdit(t *testing.T) {
	e := vocab.Entry{Key: "k1", STT: "1", Vocabulary: "apple", Type: "n", Meaning: "qua tao"}
	table := newTable(t, seed(t, e))

	assert.Equal(t, Display, table.CellState("k1", vocab.FieldVocabulary))

	prefill, err := table.BeginEdit("k1", vocab.FieldVocabulary)
	require.NoError(t, err)
	assert.Equal(t, "apple", prefill)
	assert.Equal(t, Editing, table.CellState("k1", vocab.FieldVocabulary))

	// One editing cell per row
	_, err = table.BeginEdit("k1", vocab.FieldMeaning)
	require.NoError(t, err)
	assert.Equal(t, Display, table.CellState("k1", vocab.FieldVocabulary))
	assert.Equal(t, Editing, table.CellState("k1", vocab.FieldMeaning))

	table.CancelEdit("k1")
	assert.Equal(t, Display, table.CellState("k1", vocab.FieldMeaning))
}

// TestBeginEditErrors tests rejected edit requests
func TestBeginEditErrors(t *testing.T) {
	table := newTable(t, seed(t, vocab.Entry{Key: "k1", STT: "1"}))

	_, err := table.BeginEdit("k1", vocab.FieldSTT)
	assert.ErrorIs(t, err, vocab.ErrNotEditable)

	_, err = table.BeginEdit("missing", vocab.FieldVocabulary)
	assert.ErrorIs(t, err, vocab.ErrNotFound)
}

// TestCommitEditApple tests the single-entry edit scenario
func TestCommitEditApple(t *testing.T) {
	original := vocab.Entry{Key: "k1", STT: "1", Vocabulary: "word", Type: "n", Meaning: "mean"}
	store := seed(t, original)
	table := newTable(t, store)

	_, err := table.BeginEdit("k1", vocab.FieldVocabulary)
	require.NoError(t, err)

	edited, err := table.CommitEdit(context.Background(), "k1", vocab.FieldVocabulary, "apple")
	require.NoError(t, err)

	want := original
	want.Vocabulary = "apple"
	assert.Equal(t, want, edited)
	assert.Equal(t, vocab.List{want}, stored(t, store))
	assert.Equal(t, vocab.List{want}, table.Entries())
	assert.Equal(t, Display, table.CellState("k1", vocab.FieldVocabulary))
}

// TestCommitEditEmptyRejected tests that empty values change nothing
func TestCommitEditEmptyRejected(t *testing.T) {
	original := vocab.Entry{Key: "k1", STT: "1", Vocabulary: "apple", Type: "n", Meaning: "qua tao"}
	store := seed(t, original)
	table := newTable(t, store)
	ctx := context.Background()

	_, _ = table.BeginEdit("k1", vocab.FieldMeaning)

	_, err := table.CommitEdit(ctx, "k1", vocab.FieldMeaning, "")

	var vErr *vocab.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Meaning is required.", vErr.Error())
	assert.Equal(t, Editing, table.CellState("k1", vocab.FieldMeaning))
	assert.Equal(t, vErr, table.EditError("k1"))
	assert.Equal(t, vocab.List{original}, table.Entries())
	assert.Equal(t, vocab.List{original}, stored(t, store))

	// A valid value afterwards recovers the cell
	_, err = table.CommitEdit(ctx, "k1", vocab.FieldMeaning, "trai tao")
	require.NoError(t, err)
	assert.Equal(t, Display, table.CellState("k1", vocab.FieldMeaning))
	assert.NoError(t, table.EditError("k1"))
}

// TestCommitEditWhitespaceAccepted tests that whitespace is a non-empty value
func TestCommitEditWhitespaceAccepted(t *testing.T) {
	store := seed(t, vocab.Entry{Key: "k1", STT: "1", Vocabulary: "apple", Type: "n", Meaning: "qua tao"})
	table := newTable(t, store)

	_, err := table.BeginEdit("k1", vocab.FieldMeaning)
	require.NoError(t, err)

	edited, err := table.CommitEdit(context.Background(), "k1", vocab.FieldMeaning, "   ")
	require.NoError(t, err)
	assert.Equal(t, "   ", edited.Meaning)
	assert.Equal(t, "   ", stored(t, store)[0].Meaning)
	assert.Equal(t, Display, table.CellState("k1", vocab.FieldMeaning))
}

// TestCommitEditTouchesOneEntry tests that only the matching key changes
func TestCommitEditTouchesOneEntry(t *testing.T) {
	a := vocab.Entry{Key: "a", STT: "1", Vocabulary: "one", Type: "n", Meaning: "mot"}
	b := vocab.Entry{Key: "b", STT: "2", Vocabulary: "two", Type: "n", Meaning: "hai"}
	c := vocab.Entry{Key: "c", STT: "3", Vocabulary: "three", Type: "n", Meaning: "ba"}
	store := seed(t, a, b, c)
	table := newTable(t, store)

	_, err := table.BeginEdit("b", vocab.FieldType)
	require.NoError(t, err)
	_, err = table.CommitEdit(context.Background(), "b", vocab.FieldType, "num")
	require.NoError(t, err)

	b.Type = "num"
	assert.Equal(t, vocab.List{a, b, c}, table.Entries())
	assert.Equal(t, vocab.List{a, b, c}, stored(t, store))
}

// TestCommitEditSaveFailure tests that a failed write keeps the cell editing
func TestCommitEditSaveFailure(t *testing.T) {
	original := vocab.Entry{Key: "k1", STT: "1", Vocabulary: "apple", Type: "n", Meaning: "qua tao"}
	store := &flakyStore{MemoryStore: seed(t, original)}
	table := newTable(t, store)

	_, _ = table.BeginEdit("k1", vocab.FieldVocabulary)
	store.saveErr = errors.New("disk full")

	_, err := table.CommitEdit(context.Background(), "k1", vocab.FieldVocabulary, "pear")

	require.Error(t, err)
	assert.True(t, IsSaveError(err))
	assert.ErrorIs(t, err, store.saveErr)
	assert.Equal(t, Editing, table.CellState("k1", vocab.FieldVocabulary))
	assert.Equal(t, vocab.List{original}, table.Entries())
}

// TestCommitEditMissingFromStorage tests an edit to a row the record does not hold
func TestCommitEditMissingFromStorage(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	table := newTable(t, store)

	a, err := table.AddEntry(ctx)
	require.NoError(t, err)

	// Record rewritten behind the table's back
	require.NoError(t, db.SaveList(ctx, store, vocab.List{}))

	_, err = table.BeginEdit(a.Key, vocab.FieldVocabulary)
	require.NoError(t, err)
	edited, err := table.CommitEdit(ctx, a.Key, vocab.FieldVocabulary, "kept")
	require.NoError(t, err)
	assert.Equal(t, "kept", edited.Vocabulary)
	assert.Equal(t, "kept", table.Entries()[0].Vocabulary)
	assert.Empty(t, stored(t, store))
}

// TestCommitEditErrors tests unknown rows and read-only columns
func TestCommitEditErrors(t *testing.T) {
	ctx := context.Background()
	table := newTable(t, seed(t, vocab.Entry{Key: "k1", STT: "1"}))

	_, err := table.CommitEdit(ctx, "nope", vocab.FieldVocabulary, "x")
	assert.ErrorIs(t, err, vocab.ErrNotFound)

	_, err = table.CommitEdit(ctx, "k1", vocab.FieldSTT, "7")
	assert.ErrorIs(t, err, vocab.ErrNotEditable)
	assert.Equal(t, "1", table.Entries()[0].STT)
}

// TestCommitEditRequiresEditing tests commits to cells that are not in Editing
func TestCommitEditRequiresEditing(t *testing.T) {
	ctx := context.Background()
	original := vocab.Entry{Key: "a", STT: "1", Vocabulary: "apple", Type: "n", Meaning: "qua tao"}
	store := seed(t, original)
	table := newTable(t, store)

	// From Display
	_, err := table.CommitEdit(ctx, "a", vocab.FieldVocabulary, "pear")
	assert.ErrorIs(t, err, vocab.ErrNotEditing)

	// To another field of a row that is editing Meaning
	_, err = table.BeginEdit("a", vocab.FieldMeaning)
	require.NoError(t, err)
	_, err = table.CommitEdit(ctx, "a", vocab.FieldMeaning, "")
	require.Error(t, err)

	_, err = table.CommitEdit(ctx, "a", vocab.FieldType, "v")
	assert.ErrorIs(t, err, vocab.ErrNotEditing)

	assert.Equal(t, Editing, table.CellState("a", vocab.FieldMeaning))
	assert.True(t, vocab.IsValidationError(table.EditError("a")), "pending error is kept")
	assert.Equal(t, vocab.List{original}, table.Entries())
	assert.Equal(t, vocab.List{original}, stored(t, store))
}

// ---- DeleteEntry -----------------------------------------------------------

// TestDeleteEntryMemoryOnly tests the default, non-persisted delete
func TestDeleteEntryMemoryOnly(t *testing.T) {
	a := vocab.Entry{Key: "a", STT: "1", Vocabulary: "one", Type: "n", Meaning: "mot"}
	b := vocab.Entry{Key: "b", STT: "2", Vocabulary: "two", Type: "n", Meaning: "hai"}
	c := vocab.Entry{Key: "c", STT: "3", Vocabulary: "three", Type: "n", Meaning: "ba"}
	store := seed(t, a, b, c)
	table := newTable(t, store)

	require.NoError(t, table.DeleteEntry(context.Background(), "b"))

	assert.Equal(t, vocab.List{a, c}, table.Entries())
	assert.Equal(t, vocab.List{a, b, c}, stored(t, store))

	// Deleted rows come back on reload
	assert.Equal(t, vocab.List{a, b, c}, newTable(t, store).Entries())
}

// TestDeleteEntryPersisted tests deletes with PersistDeletes enabled
func TestDeleteEntryPersisted(t *testing.T) {
	a := vocab.Entry{Key: "a", STT: "1", Vocabulary: "one", Type: "n", Meaning: "mot"}
	b := vocab.Entry{Key: "b", STT: "2", Vocabulary: "two", Type: "n", Meaning: "hai"}
	store := seed(t, a, b)
	table := NewTable(store, Options{PersistDeletes: true})
	require.NoError(t, table.Initialize(context.Background()))

	require.NoError(t, table.DeleteEntry(context.Background(), "a"))

	assert.Equal(t, vocab.List{b}, table.Entries())
	assert.Equal(t, vocab.List{b}, stored(t, store))
}

// TestDeleteEntryClearsEdit tests that deleting a row drops its edit state
func TestDeleteEntryClearsEdit(t *testing.T) {
	table := newTable(t, seed(t, vocab.Entry{Key: "a", STT: "1", Vocabulary: "x", Type: "n", Meaning: "m"}))

	_, _ = table.BeginEdit("a", vocab.FieldType)
	require.NoError(t, table.DeleteEntry(context.Background(), "a"))

	assert.Equal(t, Display, table.CellState("a", vocab.FieldType))
	assert.ErrorIs(t, table.DeleteEntry(context.Background(), "a"), vocab.ErrNotFound)
}

// ---- Export ----------------------------------------------------------------

// TestExport tests writing visible rows to a JSON file
func TestExport(t *testing.T) {
	a := vocab.Entry{Key: "a", STT: "1", Vocabulary: "one", Type: "n", Meaning: "mot"}
	table := newTable(t, seed(t, a))

	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, table.Export(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var got vocab.List
	require.NoError(t, json.Unmarshal(content, &got))
	assert.Equal(t, vocab.List{a}, got)
}

// TestConcurrentAdds tests that gestures from several goroutines serialize
func TestConcurrentAdds(t *testing.T) {
	store := db.NewMemoryStore()
	table := newTable(t, store)

	const n = 20
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := table.AddEntry(context.Background())
			done <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}

	assert.Equal(t, n, table.Len())
	got := stored(t, store)
	require.Len(t, got, n)

	seen := make(map[string]bool, n)
	for _, e := range got {
		assert.False(t, seen[e.STT], "duplicate stt %s", e.STT)
		seen[e.STT] = true
	}
}
