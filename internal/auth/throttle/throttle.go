// Package throttle guards AUTH_SASL_INIT against repeated failed
// negotiations from the same client address using an embedded badger KV
// store.
package throttle

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Throttle tracks failed SASL negotiation attempts per client address.
type Throttle struct {
	db          *badger.DB
	maxAttempts int
	window      time.Duration
}

// Open opens (creating if necessary) a badger store at path.
func Open(path string, maxAttempts int, window time.Duration) (*Throttle, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("throttle: open badger store: %w", err)
	}
	return &Throttle{db: db, maxAttempts: maxAttempts, window: window}, nil
}

func (t *Throttle) Close() error { return t.db.Close() }

// Allowed reports whether addr may attempt a new SASL negotiation.
func (t *Throttle) Allowed(addr string) (bool, error) {
	var count uint32
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(addr))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			count = binary.BigEndian.Uint32(val)
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return int(count) < t.maxAttempts, nil
}

// RecordFailure increments addr's failure count, resetting its TTL window.
func (t *Throttle) RecordFailure(addr string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		var count uint32
		item, err := txn.Get(key(addr))
		if err == nil {
			_ = item.Value(func(val []byte) error {
				count = binary.BigEndian.Uint32(val)
				return nil
			})
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		count++
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, count)
		e := badger.NewEntry(key(addr), buf).WithTTL(t.window)
		return txn.SetEntry(e)
	})
}

// RecordSuccess clears addr's failure count after a successful negotiation.
func (t *Throttle) RecordSuccess(addr string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key(addr))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func key(addr string) []byte { return []byte("auth-throttle:" + addr) }
