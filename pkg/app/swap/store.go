package swap

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store provides Pebble-based persistence for orders and the next-id
// counter. Thread-safe: all writes go through the Ledger's mutex.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 << 20), // 32MB cache
		MemTableSize: 16 << 20,                  // 16MB memtable
		MaxOpenFiles: 1000,
		BytesPerSync: 512 << 10, // 512KB
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveOrder persists an order
func (s *Store) SaveOrder(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", o.ID, err)
	}

	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order %d: %w", o.ID, err)
	}

	return nil
}

// LoadOrder loads an order by id
// Returns nil if the order doesn't exist
func (s *Store) LoadOrder(id uint64) (*Order, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	defer closer.Close()

	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order %d: %w", id, err)
	}

	return &o, nil
}

// LoadAllOrders loads every persisted order in creation order
func (s *Store) LoadAllOrders() ([]*Order, error) {
	prefix := orderPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open order iterator: %w", err)
	}
	defer iter.Close()

	var orders []*Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("corrupt order record at %q: %w", iter.Key(), err)
		}
		if id, err := orderIDFromKey(iter.Key()); err != nil || id != o.ID {
			return nil, fmt.Errorf("order key/record mismatch at %q (id=%d)", iter.Key(), o.ID)
		}
		orders = append(orders, &o)
	}

	return orders, nil
}

// LoadNextID loads the last allocated order id
// Returns 0 if no order was ever created
func (s *Store) LoadNextID() (uint64, error) {
	data, closer, err := s.db.Get(nextIDKey())
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get next-id counter: %w", err)
	}
	defer closer.Close()

	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt next-id counter: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// SaveCreation atomically persists a newly created order together with the
// advanced next-id counter. Either both land or neither does.
func (s *Store) SaveCreation(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", o.ID, err)
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], o.ID)

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(orderKey(o.ID), data, nil); err != nil {
		return fmt.Errorf("failed to stage order %d: %w", o.ID, err)
	}
	if err := batch.Set(nextIDKey(), counter[:], nil); err != nil {
		return fmt.Errorf("failed to stage next-id counter: %w", err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit creation of order %d: %w", o.ID, err)
	}
	return nil
}
