// Package memory provides an in-memory docstore.Store with optimistic
// transactions. It backs the default wiring and the test suites.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/likha-market/marketplace/internal/docstore"
)

// maxAttempts bounds the internal retry loop on optimistic conflicts.
const maxAttempts = 5

type document struct {
	data    []byte
	version uint64
}

// Store keeps JSON-encoded documents guarded by a RWMutex. Reads hand out
// copies; writers never observe partially applied transactions.
type Store struct {
	mu   sync.RWMutex
	seq  uint64 // monotonic version source; never reused after deletes
	docs map[docstore.Key]document
}

func NewStore() *Store {
	return &Store{
		docs: make(map[docstore.Key]document),
	}
}

func (s *Store) Get(ctx context.Context, key docstore.Key, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	doc, ok := s.docs[key]
	s.mu.RUnlock()

	if !ok {
		return docstore.ErrNotFound
	}
	if err := json.Unmarshal(doc.data, out); err != nil {
		return fmt.Errorf("memory store: decode %s/%s: %w", key.Collection, key.ID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string, each func(raw []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	raws := make([][]byte, 0, len(s.docs))
	for key, doc := range s.docs {
		if key.Collection != collection {
			continue
		}
		raws = append(raws, doc.data)
	}
	s.mu.RUnlock()

	for _, raw := range raws {
		if err := each(raw); err != nil {
			return err
		}
	}
	return nil
}

// RunTransaction re-runs fn on conflict up to maxAttempts times, mirroring
// the retry loop hosted document stores wrap around optimistic transactions.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memTx{store: s, reads: make(map[docstore.Key]uint64)}
		if err := fn(tx); err != nil {
			return err
		}
		if tx.err != nil {
			return tx.err
		}

		lastErr = s.commit(tx)
		if lastErr == nil {
			return nil
		}
		if lastErr != docstore.ErrConflict {
			return lastErr
		}
	}
	return lastErr
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range tx.reads {
		if s.docs[key].version != version {
			return docstore.ErrConflict
		}
	}

	for _, w := range tx.writes {
		if w.data == nil {
			delete(s.docs, w.key)
			continue
		}
		s.seq++
		s.docs[w.key] = document{
			data:    w.data,
			version: s.seq,
		}
	}
	return nil
}

type write struct {
	key  docstore.Key
	data []byte // nil means delete
}

type memTx struct {
	store  *Store
	reads  map[docstore.Key]uint64 // key -> observed version (0 = absent)
	writes []write
	err    error
}

func (tx *memTx) Get(key docstore.Key, out any) error {
	if len(tx.writes) > 0 {
		return docstore.ErrReadAfterWrite
	}

	tx.store.mu.RLock()
	doc, ok := tx.store.docs[key]
	tx.store.mu.RUnlock()

	tx.reads[key] = doc.version
	if !ok {
		return docstore.ErrNotFound
	}
	if err := json.Unmarshal(doc.data, out); err != nil {
		return fmt.Errorf("memory store: decode %s/%s: %w", key.Collection, key.ID, err)
	}
	return nil
}

func (tx *memTx) Set(key docstore.Key, doc any) {
	data, err := json.Marshal(doc)
	if err != nil {
		if tx.err == nil {
			tx.err = fmt.Errorf("memory store: encode %s/%s: %w", key.Collection, key.ID, err)
		}
		return
	}
	tx.writes = append(tx.writes, write{key: key, data: data})
}

func (tx *memTx) Delete(key docstore.Key) {
	tx.writes = append(tx.writes, write{key: key})
}
