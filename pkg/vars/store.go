// Package vars holds the values captured from the page during a run.
package vars

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Lookup for names that were never saved.
var ErrNotFound = errors.New("variable not found")

// Record is a captured name/value pair. Records are never modified after
// they are saved.
type Record struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Store is an append-only, ordered list of records for one run.
// It is not safe for concurrent use.
type Store struct {
	records []Record
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Save appends a record. Saving an existing name adds a second record; it
// does not replace the first.
func (s *Store) Save(name, value string) {
	s.records = append(s.records, Record{Name: name, Value: value})
}

// Lookup returns the first record saved under name.
//
// Duplicate names resolve to the earliest record, so a re-save is invisible
// to Lookup.
func (s *Store) Lookup(name string) (Record, error) {
	for _, r := range s.records {
		if r.Name == name {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Records returns a copy of all records in insertion order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of saved records.
func (s *Store) Len() int {
	return len(s.records)
}
