// Package vocab holds the vocabulary table's data types. It has no
// dependencies on storage or presentation and is imported by every other
// internal package.
package vocab

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Placeholder values given to a freshly added row.
const (
	DefaultVocabulary = "word"
	DefaultType       = "n"
	DefaultMeaning    = "mean"
)

// Entry is one vocabulary row as stored in the durable record.
type Entry struct {
	Key        string `json:"key"`
	STT        string `json:"stt"`
	Vocabulary string `json:"vocabulary"`
	Type       string `json:"type"`
	Meaning    string `json:"meaning"`
}

// List is the ordered row sequence. Insertion order is display order.
type List []Entry

// NewEntry builds a row with a fresh key. ordinal is the STT label and is
// never recomputed afterwards.
func NewEntry(ordinal int, vocabulary, typ, meaning string) Entry {
	return Entry{
		Key:        uuid.NewString(),
		STT:        fmt.Sprintf("%d", ordinal),
		Vocabulary: vocabulary,
		Type:       typ,
		Meaning:    meaning,
	}
}

// Get returns the value of an editable field, or the STT label.
func (e Entry) Get(f Field) string {
	switch f {
	case FieldSTT:
		return e.STT
	case FieldVocabulary:
		return e.Vocabulary
	case FieldType:
		return e.Type
	case FieldMeaning:
		return e.Meaning
	}
	return ""
}

// With returns a copy of e with field f set to value.
func (e Entry) With(f Field, value string) Entry {
	switch f {
	case FieldVocabulary:
		e.Vocabulary = value
	case FieldType:
		e.Type = value
	case FieldMeaning:
		e.Meaning = value
	}
	return e
}

// Index returns the position of the entry with the given key, or -1.
func (l List) Index(key string) int {
	for i := range l {
		if l[i].Key == key {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with l.
func (l List) Clone() List {
	if l == nil {
		return List{}
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Without returns a copy of l with the entry matching key removed.
func (l List) Without(key string) List {
	out := make(List, 0, len(l))
	for _, e := range l {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}

// HasVocabulary reports whether any row already holds word, ignoring case
// and surrounding whitespace.
func (l List) HasVocabulary(word string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	for _, e := range l {
		if strings.ToLower(strings.TrimSpace(e.Vocabulary)) == word {
			return true
		}
	}
	return false
}
