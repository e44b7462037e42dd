package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stakevault/storage"
)

// Manager provides typed access to ledger records persisted in a key/value
// store. Reads go straight to the database; writes are staged in a Tx and
// applied atomically on Commit.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction. Staged writes are visible to reads made through
// the same Tx and invisible to everyone else until Commit.
func (m *Manager) Begin() *Tx {
	return &Tx{db: m.db, staged: make(map[string][]byte)}
}

// kvKey hashes the supplied key so every record lives under a fixed-size
// keccak256 key regardless of how it was derived.
func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

type reader interface {
	get(key []byte) ([]byte, error)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// kvGet decodes the RLP value stored under key into out. The boolean return
// value indicates whether the key existed in state.
func kvGet(r reader, key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := r.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode: %w", err)
	}
	return true, nil
}

// Tx stages record updates for a single ledger operation.
type Tx struct {
	db     storage.Database
	staged map[string][]byte
	order  []string
	done   bool
}

func (tx *Tx) get(key []byte) ([]byte, error) {
	if value, ok := tx.staged[string(key)]; ok {
		return value, nil
	}
	data, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// kvPut RLP-encodes value and stages it under the hashed key.
func (tx *Tx) kvPut(key []byte, value interface{}) error {
	if tx.done {
		return fmt.Errorf("kv: transaction already finished")
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	hashed := string(kvKey(key))
	if _, exists := tx.staged[hashed]; !exists {
		tx.order = append(tx.order, hashed)
	}
	tx.staged[hashed] = encoded
	return nil
}

// Pending reports how many records are staged.
func (tx *Tx) Pending() int {
	return len(tx.order)
}

// Commit flushes every staged record in one batch. A Tx cannot be reused
// after Commit or Discard.
func (tx *Tx) Commit() error {
	if tx.done {
		return fmt.Errorf("kv: transaction already finished")
	}
	tx.done = true
	if len(tx.order) == 0 {
		return nil
	}
	batch := tx.db.NewBatch()
	for _, key := range tx.order {
		batch.Put([]byte(key), tx.staged[key])
	}
	return batch.Write()
}

// Discard drops every staged record.
func (tx *Tx) Discard() {
	tx.done = true
	tx.staged = nil
	tx.order = nil
}
