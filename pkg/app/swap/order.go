package swap

import (
	"github.com/ethereum/go-ethereum/common"
)

// OrderStatus represents the lifecycle state of an escrow order
// Numeric values are part of the external contract (query surface, storage)
type OrderStatus int8

const (
	OrderOpen      OrderStatus = iota // Deposit locked, awaiting fulfilment or cancellation
	OrderFulfilled                    // Settled by a counterparty (terminal)
	OrderCancelled                    // Deposit refunded to depositor (terminal)
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderFulfilled:
		return "fulfilled"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a single-shot escrow record pairing a locked deposit with a
// requested payment. Ids are dense, start at 1, and are never reused.
// All fields except Status, FulfilledBy, and SettledAt are write-once at
// creation; DepositedAmount keeps the original locked amount even after
// settlement, for audit.
type Order struct {
	ID        uint64
	Depositor common.Address

	DepositedAsset  string // Symbol of the escrowed asset
	DepositedAmount int64  // Amount locked in escrow custody at creation
	RequestedAsset  string // Symbol of the asset the depositor wants paid
	RequestedAmount int64  // Amount required to fulfil the order

	Status      OrderStatus
	FulfilledBy common.Address // Zero address until fulfilled, set exactly once

	// Timestamps (Unix milliseconds)
	CreatedAt int64
	SettledAt int64 // Zero while open
}

// IsOpen returns true if the order can still be fulfilled or cancelled
func (o *Order) IsOpen() bool {
	return o.Status == OrderOpen
}
