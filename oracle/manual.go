package oracle

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

// ManualSource provides an in-memory randomness source used for tests and
// local development. Request ids are derived deterministically from an
// incrementing nonce; fulfillment is driven by whoever holds the source.
type ManualSource struct {
	mu      sync.Mutex
	nonce   uint64
	pending map[[32]byte]uint32
}

// NewManualSource constructs an empty manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{pending: make(map[[32]byte]uint32)}
}

// RequestRandomWords records the request and returns its deterministic id.
func (m *ManualSource) RequestRandomWords(_ context.Context, numWords uint32) ([32]byte, error) {
	var id [32]byte
	if numWords == 0 {
		return id, ErrNoWordCount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonce++
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], m.nonce)
	copy(id[:], crypto.Keccak256([]byte("manual-randomness"), seed[:]))
	m.pending[id] = numWords
	return id, nil
}

// Pending reports whether a request id is awaiting fulfillment and how many
// words it asked for.
func (m *ManualSource) Pending(id [32]byte) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	numWords, ok := m.pending[id]
	return numWords, ok
}

// Consume drops a request from the pending set. Callers invoke it once they
// have delivered the fulfillment.
func (m *ManualSource) Consume(id [32]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
}
