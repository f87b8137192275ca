// Package kv is the thin facade over the ordered byte-keyed KV engine of
// §4.1. The engine itself — github.com/cockroachdb/pebble — is an external
// collaborator per §1/§6: this package only exposes the two primitives
// the rest of the storage core is built from, put and a bidirectional
// range cursor, the way the teacher's pkg/heap exposes Write/Read/Iterator
// over its append-only file instead of handing callers a raw *os.File.
package kv

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// Store wraps a single pebble database — one per timeline directory,
// holding every Data and Metadata key for that timeline (§3).
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) the pebble database rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "kv: opening store at %s", dir)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put is durable on return: §4.1 requires every put() to be durable
// before the caller proceeds, so every write goes through pebble.Sync.
func (s *Store) Put(key, value []byte) error {
	if err := s.db.Set(key, value, pebble.Sync); err != nil {
		return errors.Wrap(err, "kv: put")
	}
	return nil
}

// Delete removes a single key, durably.
func (s *Store) Delete(key []byte) error {
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return errors.Wrap(err, "kv: delete")
	}
	return nil
}

// DeleteRange removes every key in [lower, upper), durably. Used by the
// garbage collector (§4.5) to drop whole (entity, block, lsn<cutoff)
// ranges once superseded.
func (s *Store) DeleteRange(lower, upper []byte) error {
	if err := s.db.DeleteRange(lower, upper, pebble.Sync); err != nil {
		return errors.Wrap(err, "kv: delete range")
	}
	return nil
}

// Get returns the value stored at key, or found=false if absent. The
// returned slice is only valid until the next call into the store; callers
// that need to retain it must copy.
func (s *Store) Get(key []byte) (value []byte, found bool, err error) {
	v, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "kv: get")
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Iterator is a bidirectional cursor over a key range, the primitive every
// higher-level algorithm in this module is expressed in terms of
// (§4.1: "all higher-level algorithms are expressed in terms of
// iter.next_back()").
type Iterator struct {
	it *pebble.Iterator
}

// NewIter opens an iterator bounded to [lower, upper).
func (s *Store) NewIter(lower, upper []byte) (*Iterator, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, errors.Wrap(err, "kv: new iterator")
	}
	return &Iterator{it: it}, nil
}

// First positions the cursor at the smallest key in range.
func (i *Iterator) First() bool { return i.it.First() }

// Last positions the cursor at the largest key in range — the entry point
// for every reverse scan in this module.
func (i *Iterator) Last() bool { return i.it.Last() }

// Next advances the cursor forward.
func (i *Iterator) Next() bool { return i.it.Next() }

// Prev steps the cursor backward — "iter.next_back()" in §4.1's terms.
func (i *Iterator) Prev() bool { return i.it.Prev() }

// SeekLT positions the cursor at the largest key strictly less than key.
func (i *Iterator) SeekLT(key []byte) bool { return i.it.SeekLT(key) }

// SeekGE positions the cursor at the smallest key greater than or equal
// to key.
func (i *Iterator) SeekGE(key []byte) bool { return i.it.SeekGE(key) }

// Valid reports whether the cursor currently rests on an in-range entry.
func (i *Iterator) Valid() bool { return i.it.Valid() }

// Key returns the current key. Valid only until the next cursor move.
func (i *Iterator) Key() []byte { return i.it.Key() }

// Value returns the current value. Valid only until the next cursor move.
func (i *Iterator) Value() []byte { return i.it.Value() }

// Close releases the iterator.
func (i *Iterator) Close() error {
	return i.it.Close()
}
