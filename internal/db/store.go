package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vocabtable/vocabtable/internal/vocab"
)

// DefaultKey is the storage key the vocabulary record lives under.
const DefaultKey = "vocabularies"

// ErrMalformed is returned by LoadList when the stored record is not a JSON
// array of entries.
var ErrMalformed = errors.New("malformed vocabulary record")

// Store persists one opaque record under a fixed key. Implementations do not
// interpret the bytes; encoding lives in LoadList and SaveList.
type Store interface {
	// Load returns the raw record and whether it exists.
	Load(ctx context.Context) ([]byte, bool, error)
	// Save replaces the record.
	Save(ctx context.Context, data []byte) error
	Close() error
}

// LoadList reads and decodes the vocabulary list. The boolean is false when
// no record has ever been written. A record that does not decode yields
// ErrMalformed.
func LoadList(ctx context.Context, s Store) (vocab.List, bool, error) {
	data, ok, err := s.Load(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load vocabulary record: %w", err)
	}
	if !ok {
		return vocab.List{}, false, nil
	}

	var list vocab.List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if list == nil {
		list = vocab.List{}
	}

	return list, true, nil
}

// SaveList encodes the whole list and replaces the stored record with it.
func SaveList(ctx context.Context, s Store, list vocab.List) error {
	if list == nil {
		list = vocab.List{}
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode vocabulary list: %w", err)
	}

	if err := s.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to save vocabulary record: %w", err)
	}

	return nil
}
