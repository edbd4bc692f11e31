package swap

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderswap/pkg/util"
)

// AssetLedger is the contract the escrow engine requires from each fungible
// asset: a balance query, an owner-initiated transfer, and the
// authorize-then-pull pattern (a principal pre-approves the escrow custody
// address as spender, the engine later pulls up to that amount).
type AssetLedger interface {
	BalanceOf(addr common.Address) int64
	Transfer(from, to common.Address, amount int64) error
	TransferFrom(spender, from, to common.Address, amount int64) error
}

// DefaultCustody is the escrow custody principal used when none is
// configured. Custody funds are never attributable to any user balance.
var DefaultCustody = common.HexToAddress("0x000000000000000000000000000000000000E5C0")

// Ledger owns the order registry and drives the escrow transfers:
// deposit-in on creation, payout on fulfilment, refund on cancellation.
//
// The mutex is the serialization boundary: each operation runs to a definite
// outcome under it, and every failure path restores the registry, the
// counter, and both asset ledgers to their pre-call state. Terminal status
// is written before the outbound custody payout so a re-entrant call on the
// same order observes a non-open order and is rejected
// (checks-effects-interactions).
type Ledger struct {
	Logger *zap.SugaredLogger // Optional; set after construction

	mu      sync.RWMutex
	orders  map[uint64]*Order
	nextID  uint64 // Last allocated id; 0 before the first order
	assets  map[string]AssetLedger
	custody common.Address
	store   *Store // Optional persistence; nil for in-memory use
	clock   util.Clock
	emitter Emitter // Optional; nil drops events
}

// NewLedger creates an escrow ledger backed by an optional Pebble store.
// When a store is given, all previously created orders and the next-id
// counter are loaded before the ledger accepts operations.
func NewLedger(store *Store, custody common.Address, emitter Emitter) (*Ledger, error) {
	l := &Ledger{
		orders:  make(map[uint64]*Order),
		assets:  make(map[string]AssetLedger),
		custody: custody,
		store:   store,
		clock:   util.RealClock{},
		emitter: emitter,
	}

	if store != nil {
		orders, err := store.LoadAllOrders()
		if err != nil {
			return nil, fmt.Errorf("failed to load orders: %w", err)
		}
		for _, o := range orders {
			l.orders[o.ID] = o
		}

		nextID, err := store.LoadNextID()
		if err != nil {
			return nil, fmt.Errorf("failed to load next-id counter: %w", err)
		}
		if nextID < uint64(len(orders)) {
			return nil, fmt.Errorf("next-id counter %d behind %d stored orders", nextID, len(orders))
		}
		l.nextID = nextID
	}

	return l, nil
}

// SetClock overrides the wall clock (tests)
func (l *Ledger) SetClock(c util.Clock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = c
}

// Custody returns the escrow custody address
func (l *Ledger) Custody() common.Address {
	return l.custody
}

// RegisterAsset binds a symbol to its asset ledger
// Orders may only reference registered assets
func (l *Ledger) RegisterAsset(symbol string, asset AssetLedger) error {
	if asset == nil {
		return fmt.Errorf("cannot register nil asset ledger for %s", symbol)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.assets[symbol]; exists {
		return fmt.Errorf("asset %s already registered", symbol)
	}

	l.assets[symbol] = asset
	return nil
}

// CreateOrder locks depositAmount of depositAsset from the caller into
// escrow custody and records a new open order requesting requestAmount of
// requestAsset. Returns the new order id.
//
// The deposit pull fails the whole operation (no order created, no id
// consumed) if the caller lacks balance or prior authorization.
func (l *Ledger) CreateOrder(caller common.Address, depositAmount int64, depositAsset string, requestAmount int64, requestAsset string) (uint64, error) {
	if depositAmount <= 0 {
		return 0, fmt.Errorf("deposit: %w: %d", ErrInvalidAmount, depositAmount)
	}
	if requestAmount <= 0 {
		return 0, fmt.Errorf("request: %w: %d", ErrInvalidAmount, requestAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	deposit, ok := l.assets[depositAsset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, depositAsset)
	}
	// Resolve the requested asset up front so fulfilment can't strand an
	// order against a ledger that was never registered
	if _, ok := l.assets[requestAsset]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, requestAsset)
	}

	// Pull the deposit into custody. Nothing else has been staged yet, so
	// a failure here aborts cleanly.
	if err := deposit.TransferFrom(l.custody, caller, l.custody, depositAmount); err != nil {
		return 0, fmt.Errorf("deposit pull failed: %w", err)
	}

	id := l.nextID + 1
	order := &Order{
		ID:              id,
		Depositor:       caller,
		DepositedAsset:  depositAsset,
		DepositedAmount: depositAmount,
		RequestedAsset:  requestAsset,
		RequestedAmount: requestAmount,
		Status:          OrderOpen,
		CreatedAt:       l.clock.Now().UnixMilli(),
	}

	if l.store != nil {
		if err := l.store.SaveCreation(order); err != nil {
			// Undo the custody pull; the counter was never committed
			if rbErr := deposit.Transfer(l.custody, caller, depositAmount); rbErr != nil {
				return 0, fmt.Errorf("persist failed (%v) and deposit rollback failed: %w", err, rbErr)
			}
			return 0, fmt.Errorf("failed to persist order: %w", err)
		}
	}

	l.nextID = id
	l.orders[id] = order

	if l.Logger != nil {
		l.Logger.Infow("order_created",
			"order_id", id,
			"depositor", caller.Hex(),
			"deposit", depositAmount, "deposit_asset", depositAsset,
			"request", requestAmount, "request_asset", requestAsset)
	}
	l.emit(OrderCreatedEvent{
		OrderID:         id,
		Depositor:       caller,
		RequestedAsset:  requestAsset,
		RequestedAmount: requestAmount,
	})

	return id, nil
}

// FulfilOrder settles an open order: the caller pays RequestedAmount of the
// requested asset directly to the depositor, and the escrowed
// DepositedAmount is paid out of custody to the caller. Both transfers and
// the Open -> Fulfilled transition commit together or not at all.
func (l *Ledger) FulfilOrder(caller common.Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}

	// A depositor can never fulfil their own order, whatever its state
	if caller == order.Depositor {
		return fmt.Errorf("order %d: %w", id, ErrSelfFulfillment)
	}
	if err := l.requireOpen(order); err != nil {
		return err
	}

	deposit, ok := l.assets[order.DepositedAsset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, order.DepositedAsset)
	}
	requested, ok := l.assets[order.RequestedAsset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, order.RequestedAsset)
	}

	// Pull the requested payment straight to the depositor; it never needs
	// to sit in custody. Nothing staged yet, failure aborts cleanly.
	if err := requested.TransferFrom(l.custody, caller, order.Depositor, order.RequestedAmount); err != nil {
		return fmt.Errorf("payment pull failed: %w", err)
	}

	// Effects before the outbound custody payout
	order.Status = OrderFulfilled
	order.FulfilledBy = caller
	order.SettledAt = l.clock.Now().UnixMilli()

	rollback := func() {
		order.Status = OrderOpen
		order.FulfilledBy = common.Address{}
		order.SettledAt = 0
		// Compensate the payment pull
		if err := requested.Transfer(order.Depositor, caller, order.RequestedAmount); err != nil && l.Logger != nil {
			l.Logger.Errorw("fulfil_rollback_failed", "order_id", id, "err", err)
		}
	}

	// Custody always holds the full deposit for an open order, so this
	// cannot fail unless an invariant was already broken
	if err := deposit.Transfer(l.custody, caller, order.DepositedAmount); err != nil {
		rollback()
		return fmt.Errorf("escrow payout failed: %w", err)
	}

	if l.store != nil {
		if err := l.store.SaveOrder(order); err != nil {
			if rbErr := deposit.Transfer(caller, l.custody, order.DepositedAmount); rbErr != nil && l.Logger != nil {
				l.Logger.Errorw("fulfil_rollback_failed", "order_id", id, "err", rbErr)
			}
			rollback()
			return fmt.Errorf("failed to persist fulfilment: %w", err)
		}
	}

	if l.Logger != nil {
		l.Logger.Infow("order_fulfilled", "order_id", id, "fulfiller", caller.Hex())
	}
	l.emit(OrderFulfilledEvent{OrderID: id, Fulfiller: caller})

	return nil
}

// CancelOrder refunds the full escrowed deposit of an open order back to
// its depositor and closes it. Only the depositor may cancel.
func (l *Ledger) CancelOrder(caller common.Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}

	// Terminal orders reject cancellation regardless of caller
	if err := l.requireOpen(order); err != nil {
		return err
	}
	if caller != order.Depositor {
		return fmt.Errorf("order %d: %w", id, ErrNotDepositor)
	}

	deposit, ok := l.assets[order.DepositedAsset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, order.DepositedAsset)
	}

	// Effects before the outbound refund
	order.Status = OrderCancelled
	order.SettledAt = l.clock.Now().UnixMilli()

	rollback := func() {
		order.Status = OrderOpen
		order.SettledAt = 0
	}

	if err := deposit.Transfer(l.custody, order.Depositor, order.DepositedAmount); err != nil {
		rollback()
		return fmt.Errorf("escrow refund failed: %w", err)
	}

	if l.store != nil {
		if err := l.store.SaveOrder(order); err != nil {
			if rbErr := deposit.Transfer(order.Depositor, l.custody, order.DepositedAmount); rbErr != nil && l.Logger != nil {
				l.Logger.Errorw("cancel_rollback_failed", "order_id", id, "err", rbErr)
			}
			rollback()
			return fmt.Errorf("failed to persist cancellation: %w", err)
		}
	}

	if l.Logger != nil {
		l.Logger.Infow("order_cancelled", "order_id", id)
	}
	l.emit(OrderCancelledEvent{OrderID: id})

	return nil
}

// GetOrder returns a copy of the stored order record
// Settled orders remain queryable as historical records
func (l *Ledger) GetOrder(id uint64) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	order, ok := l.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return *order, nil
}

// ListOrders returns copies of all orders in creation order
func (l *Ledger) ListOrders() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	orders := make([]Order, 0, len(l.orders))
	for id := uint64(1); id <= l.nextID; id++ {
		if o, ok := l.orders[id]; ok {
			orders = append(orders, *o)
		}
	}
	return orders
}

// Count returns the total number of orders ever created
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}

// requireOpen rejects terminal orders with a message naming the state hit
func (l *Ledger) requireOpen(o *Order) error {
	switch o.Status {
	case OrderOpen:
		return nil
	case OrderFulfilled:
		return fmt.Errorf("order %d already fulfilled: %w", o.ID, ErrOrderNotOpen)
	case OrderCancelled:
		return fmt.Errorf("order %d already cancelled: %w", o.ID, ErrOrderNotOpen)
	default:
		return fmt.Errorf("order %d in unknown state %d: %w", o.ID, o.Status, ErrOrderNotOpen)
	}
}

func (l *Ledger) emit(ev Event) {
	if l.emitter != nil {
		l.emitter.Emit(ev)
	}
}
