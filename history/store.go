package history

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	bolt "go.etcd.io/bbolt"

	"coinbet/native/slotgame"
)

var (
	bucketSettlements = []byte("settlements")
	bucketByBettor    = []byte("by_bettor")
)

// Record is the archived form of a settled wager.
type Record struct {
	RequestID string   `json:"requestId"`
	Bettor    string   `json:"bettor"`
	NetWager  string   `json:"netWager"`
	Outcome   uint64   `json:"outcome"`
	Reels     []uint64 `json:"reels"`
	Payout    string   `json:"payout"`
	SettledAt int64    `json:"settledAt"`
}

// Store archives settled wagers in a bbolt database so bet history survives
// restarts and can be queried without walking live state.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the archive at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSettlements); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketByBettor)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append archives one settlement. Records are ordered by insertion.
func (s *Store) Append(settlement *slotgame.Settlement) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history: store not open")
	}
	if settlement == nil {
		return fmt.Errorf("history: nil settlement")
	}
	record := Record{
		RequestID: hex.EncodeToString(settlement.RequestID[:]),
		Bettor:    hex.EncodeToString(settlement.Bettor[:]),
		NetWager:  bigString(settlement.NetWager),
		Outcome:   settlement.Outcome,
		Reels:     append([]uint64{}, settlement.Reels...),
		Payout:    bigString(settlement.Payout),
		SettledAt: settlement.SettledAt,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		settlements := tx.Bucket(bucketSettlements)
		seq, err := settlements.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		if err := settlements.Put(key[:], payload); err != nil {
			return err
		}
		index := tx.Bucket(bucketByBettor)
		indexKey := append(append([]byte{}, settlement.Bettor[:]...), key[:]...)
		return index.Put(indexKey, key[:])
	})
}

// Recent returns up to limit settlements, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history: store not open")
	}
	if limit <= 0 {
		return nil, nil
	}
	records := make([]Record, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketSettlements).Cursor()
		for k, v := cursor.Last(); k != nil && len(records) < limit; k, v = cursor.Prev() {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListByBettor returns up to limit settlements for one bettor, newest first.
func (s *Store) ListByBettor(bettor [20]byte, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history: store not open")
	}
	if limit <= 0 {
		return nil, nil
	}
	records := make([]Record, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		settlements := tx.Bucket(bucketSettlements)
		cursor := tx.Bucket(bucketByBettor).Cursor()
		prefix := bettor[:]
		// Seek past the bettor's range, then walk backwards through it.
		var last [28]byte
		copy(last[:], prefix)
		for i := 20; i < 28; i++ {
			last[i] = 0xff
		}
		k, seq := cursor.Seek(last[:])
		if k == nil {
			k, seq = cursor.Last()
		} else {
			k, seq = cursor.Prev()
		}
		for ; k != nil && len(records) < limit; k, seq = cursor.Prev() {
			if !bytes.HasPrefix(k, prefix) {
				break
			}
			payload := settlements.Get(seq)
			if payload == nil {
				continue
			}
			var record Record
			if err := json.Unmarshal(payload, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
