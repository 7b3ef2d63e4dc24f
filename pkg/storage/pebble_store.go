package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
)

// PebbleJournal persists trades in a Pebble database, ordered per good by a
// journal-wide sequence number.
type PebbleJournal struct {
	mu  sync.Mutex
	db  *pebble.DB
	seq uint64
}

func NewPebbleJournal(path string) (*PebbleJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	j := &PebbleJournal{db: db}
	val, closer, err := db.Get([]byte(keySeq))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("read journal sequence: %w", err)
	default:
		j.seq, err = decodeSeq(val)
		closer.Close()
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return j, nil
}

func (j *PebbleJournal) Close() error { return j.db.Close() }

// Append writes trades and the advanced sequence in one batch.
func (j *PebbleJournal) Append(trades []orderbook.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	b := j.db.NewBatch()
	defer b.Close()

	seq := j.seq
	for _, tr := range trades {
		data, err := json.Marshal(tr)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}
		seq++
		if err := b.Set(tradeKey(tr.Good, seq), data, nil); err != nil {
			return fmt.Errorf("failed to stage trade: %w", err)
		}
	}
	if err := b.Set([]byte(keySeq), encodeSeq(seq), nil); err != nil {
		return fmt.Errorf("failed to stage sequence: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save trades: %w", err)
	}
	j.seq = seq
	return nil
}

// Recent loads the most recent N trades for a good, newest first.
func (j *PebbleJournal) Recent(good string, limit int) ([]orderbook.Trade, error) {
	prefix := tradePrefix(good)
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}
	defer iter.Close()

	var trades []orderbook.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var tr orderbook.Trade
		if err := json.Unmarshal(iter.Value(), &tr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade: %w", err)
		}
		trades = append(trades, tr)
	}
	return trades, iter.Error()
}
