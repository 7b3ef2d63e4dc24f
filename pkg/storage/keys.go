package storage

import (
	"encoding/binary"
	"fmt"
)

// Key schema for the trade journal:
//
//   trade:<good>\x00<seq 20 digits> → Trade (JSON)
//   meta:seq                        → last assigned sequence (8 bytes BE)
//
// The NUL separator keeps the prefix of one good from matching another
// good whose name extends it.
const (
	prefixTrade = "trade:"
	keySeq      = "meta:seq"
)

// tradeKey returns the key for a trade
// Sequence is zero-padded for lexicographic sorting
func tradeKey(good string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%020d", prefixTrade, good, seq))
}

// tradePrefix returns the prefix for all trades of a good
func tradePrefix(good string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00", prefixTrade, good))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

func encodeSeq(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

func decodeSeq(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("corrupt sequence: %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
