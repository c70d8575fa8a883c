// Package store persists message records in a Pebble database. Records are
// keyed by a sortable timestamp prefix so time-windowed scans run in key
// order; a secondary id index serves point lookups. Messages are immutable
// once written: the store exposes no update path.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"time"

	"github.com/cockroachdb/pebble"

	"lucerna/pkg/logger"
	"lucerna/pkg/models"
)

const (
	// record keys: msg:<unix_nano_padded>-<seq>:<id>
	recPrefix = "msg:"
	// end of the record namespace (':' + 1)
	recEnd = "msg;"
	// id index keys: id:msg:<id> -> record key
	idPrefix = "id:msg:"
)

// Store is a handle to an open message database. It is safe for concurrent
// use; each operation is its own unit of work.
type Store struct {
	db *pebble.DB

	// seq disambiguates record keys when concurrent writes share the same
	// nanosecond timestamp.
	seq uint64
}

// Open opens (or creates) a Pebble database at the given path and returns a
// handle to it. The handle is meant to be constructed once at startup and
// injected into whatever needs it.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and usable. The health endpoint
// consults it so probes notice a closed or never-opened database.
func (s *Store) Ready() bool {
	return s != nil && s.db != nil
}

func recordKey(ts int64, seq uint64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d-%06d:%s", recPrefix, ts, seq, id))
}

func idKey(id string) []byte {
	return []byte(idPrefix + id)
}

// tsBoundKey returns the smallest record key whose timestamp is >= ts.
func tsBoundKey(ts int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", recPrefix, ts))
}

// SaveMessage persists a fully-formed message. The record and its id index
// entry are committed in one synced batch, so a message is either fully
// visible to subsequent reads or not visible at all. A duplicate id is a
// structural invariant violation and fails the write.
func (s *Store) SaveMessage(msg models.Message) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	if msg.ID == "" {
		return fmt.Errorf("message id is empty")
	}

	ik := idKey(msg.ID)
	if _, closer, err := s.db.Get(ik); err == nil {
		if closer != nil {
			_ = closer.Close()
		}
		logger.Error("save_message_duplicate_id", "id", msg.ID)
		return fmt.Errorf("duplicate message id: %s", msg.ID)
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("id index lookup failed: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ts := msg.CreatedAt.UTC().UnixNano()
	sq := atomic.AddUint64(&s.seq, 1)
	key := recordKey(ts, sq, msg.ID)

	b := s.db.NewBatch()
	if err := b.Set(key, data, nil); err != nil {
		_ = b.Close()
		return fmt.Errorf("batch set record failed: %w", err)
	}
	if err := b.Set(ik, key, nil); err != nil {
		_ = b.Close()
		return fmt.Errorf("batch set id index failed: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("save_message_failed", "id", msg.ID, "key", string(key), "error", err)
		return fmt.Errorf("save message: %w", err)
	}
	logger.Debug("message_saved", "id", msg.ID, "user", msg.UserID, "key", string(key))
	return nil
}

// GetMessage returns the message with the given id. An absent id is a
// normal outcome reported as (nil, false, nil), not an error.
func (s *Store) GetMessage(id string) (*models.Message, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("store not opened; call store.Open first")
	}
	rk, closer, err := s.db.Get(idKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("id index lookup failed: %w", err)
	}
	key := append([]byte(nil), rk...)
	if closer != nil {
		_ = closer.Close()
	}

	v, closer2, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			// index without record would mean a torn write, which the
			// batched save rules out
			return nil, false, fmt.Errorf("id index points at missing record: %s", id)
		}
		return nil, false, fmt.Errorf("record lookup failed: %w", err)
	}
	data := append([]byte(nil), v...)
	if closer2 != nil {
		_ = closer2.Close()
	}

	var m models.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("invalid stored message %s: %w", id, err)
	}
	return &m, true, nil
}

// Query returns all messages matching the conjunction of the given
// predicates, in created_at key order. An empty predicate set returns all
// messages. Predicates on created_at narrow the key scan; everything else is
// evaluated per record. Results are fully materialized (no pagination).
func (s *Store) Query(preds ...Predicate) ([]models.Message, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not opened; call store.Open first")
	}

	lower := []byte(recPrefix)
	upper := []byte(recEnd)
	for _, p := range preds {
		if p.Field != FieldCreatedAt {
			continue
		}
		t, ok := p.Value.(time.Time)
		if !ok {
			continue
		}
		switch p.Op {
		case OpGt, OpGte:
			if b := tsBoundKey(t.UTC().UnixNano()); string(b) > string(lower) {
				lower = b
			}
		case OpLt, OpLte:
			// +1 keeps records at exactly t inside the scan; the
			// per-record evaluation settles inclusivity
			if b := tsBoundKey(t.UTC().UnixNano() + 1); string(b) < string(upper) {
				upper = b
			}
		}
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Message
	for iter.First(); iter.Valid(); iter.Next() {
		v := append([]byte(nil), iter.Value()...)
		var m models.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, fmt.Errorf("invalid stored message at %s: %w", string(iter.Key()), err)
		}
		ok, err := matchAll(m, preds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	logger.Debug("messages_query", "predicates", len(preds), "count", len(out))
	return out, nil
}

// DeleteOlderThan removes all messages with created_at strictly before the
// cutoff, along with their id index entries, and returns how many were
// removed. Used by the retention job; the public API exposes no delete.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store not opened; call store.Open first")
	}
	upper := tsBoundKey(cutoff.UTC().UnixNano())
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: []byte(recPrefix), UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		k := append([]byte(nil), iter.Key()...)
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err == nil && m.ID != "" {
			if err := b.Delete(idKey(m.ID), nil); err != nil {
				_ = b.Close()
				return 0, err
			}
		}
		if err := b.Delete(k, nil); err != nil {
			_ = b.Close()
			return 0, err
		}
		n++
	}
	if err := iter.Error(); err != nil {
		_ = b.Close()
		return 0, err
	}
	if n == 0 {
		_ = b.Close()
		return 0, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("retention delete: %w", err)
	}
	logger.Info("messages_pruned", "count", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	return n, nil
}
