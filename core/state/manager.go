// Package state persists the protocol records, the lamport ledger and token
// accounts on top of a storage.Database. A Manager either writes through to
// the database or, when obtained from Begin, buffers writes in an overlay
// that Commit applies as one batch.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"memelend/storage"
)

var errTxClosed = errors.New("state: transaction already closed")

// Manager reads and writes protocol state.
type Manager struct {
	db storage.Database
	tx *overlay
}

// NewManager creates a write-through manager over db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type overlay struct {
	mu     sync.Mutex
	writes map[string][]byte // nil value marks a delete
	closed bool
}

// Begin starts a transaction. Reads observe the transaction's own writes;
// nothing reaches the database until Commit.
func (m *Manager) Begin() *Manager {
	return &Manager{db: m.db, tx: &overlay{writes: make(map[string][]byte)}}
}

// Commit applies the buffered writes atomically. It is a no-op on a
// write-through manager.
func (m *Manager) Commit() error {
	if m.tx == nil {
		return nil
	}
	m.tx.mu.Lock()
	defer m.tx.mu.Unlock()
	if m.tx.closed {
		return errTxClosed
	}
	batch := m.db.NewBatch()
	for k, v := range m.tx.writes {
		if v == nil {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.tx.closed = true
	m.tx.writes = nil
	return nil
}

// Discard drops the buffered writes.
func (m *Manager) Discard() {
	if m.tx == nil {
		return
	}
	m.tx.mu.Lock()
	m.tx.closed = true
	m.tx.writes = nil
	m.tx.mu.Unlock()
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	if m.tx != nil {
		m.tx.mu.Lock()
		if m.tx.closed {
			m.tx.mu.Unlock()
			return nil, false, errTxClosed
		}
		v, ok := m.tx.writes[string(key)]
		m.tx.mu.Unlock()
		if ok {
			if v == nil {
				return nil, false, nil
			}
			return bytes.Clone(v), true, nil
		}
	}
	v, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (m *Manager) put(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if m.tx == nil {
		return m.db.Put(key, value)
	}
	m.tx.mu.Lock()
	defer m.tx.mu.Unlock()
	if m.tx.closed {
		return errTxClosed
	}
	m.tx.writes[string(key)] = bytes.Clone(value)
	return nil
}

func (m *Manager) delete(key []byte) error {
	if m.tx == nil {
		return m.db.Delete(key)
	}
	m.tx.mu.Lock()
	defer m.tx.mu.Unlock()
	if m.tx.closed {
		return errTxClosed
	}
	m.tx.writes[string(key)] = nil
	return nil
}

// iterate visits the merged view of the database and the overlay in key
// order.
func (m *Manager) iterate(prefix []byte, fn func(key, value []byte) bool) error {
	if m.tx == nil {
		return m.db.Iterate(prefix, fn)
	}
	merged := make(map[string][]byte)
	if err := m.db.Iterate(prefix, func(k, v []byte) bool {
		merged[string(k)] = v
		return true
	}); err != nil {
		return err
	}
	m.tx.mu.Lock()
	if m.tx.closed {
		m.tx.mu.Unlock()
		return errTxClosed
	}
	for k, v := range m.tx.writes {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = bytes.Clone(v)
	}
	m.tx.mu.Unlock()
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			return nil
		}
	}
	return nil
}

func (m *Manager) loadRLP(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func decodeRLP(data []byte, out interface{}) error {
	if err := rlp.DecodeBytes(data, out); err != nil {
		return fmt.Errorf("state: decode: %w", err)
	}
	return nil
}

func (m *Manager) writeRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.put(key, encoded)
}
