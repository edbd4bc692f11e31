package swap

import (
	"fmt"
	"strconv"
	"strings"
)

// Pebble key schema
// Orders are keyed by zero-padded id so a prefix scan yields them in
// creation order; the next-id counter lives under its own meta key and is
// written in the same batch as the order it allocated.

const (
	prefixOrder = "ord:"
	keyNextID   = "meta:nextid"
)

// orderKey returns the key for an order
// Format: "ord:{id}" with the id zero-padded to 20 digits
// Example: "ord:00000000000000000001"
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// orderPrefix returns the prefix for all orders
func orderPrefix() []byte {
	return []byte(prefixOrder)
}

// orderIDFromKey extracts the order id from an order key
// Inverse of orderKey() - used for sanity-checking iterator keys
func orderIDFromKey(key []byte) (uint64, error) {
	s := string(key)
	if !strings.HasPrefix(s, prefixOrder) {
		return 0, fmt.Errorf("not an order key: %q", s)
	}
	id, err := strconv.ParseUint(s[len(prefixOrder):], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order key %q: %w", s, err)
	}
	return id, nil
}

// nextIDKey returns the key holding the last allocated order id
func nextIDKey() []byte {
	return []byte(keyNextID)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
