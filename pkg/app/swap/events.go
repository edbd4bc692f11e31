package swap

import (
	"github.com/ethereum/go-ethereum/common"
)

// Event is a notification emitted by the escrow ledger after a state
// transition has committed. Consumed by external observers/indexers
// (the API websocket hub in the node).
type Event interface {
	// EventName returns the wire name of the event
	EventName() string
}

// Emitter receives ledger events. Emit is called after the transition and
// its transfers have committed; it must not call back into the ledger.
type Emitter interface {
	Emit(ev Event)
}

// OrderCreatedEvent is emitted once per successful creation
type OrderCreatedEvent struct {
	OrderID         uint64         `json:"orderId"`
	Depositor       common.Address `json:"depositor"`
	RequestedAsset  string         `json:"requestedAsset"`
	RequestedAmount int64          `json:"requestedAmount"`
}

func (OrderCreatedEvent) EventName() string { return "order_created" }

// OrderFulfilledEvent is emitted once per settlement
type OrderFulfilledEvent struct {
	OrderID   uint64         `json:"orderId"`
	Fulfiller common.Address `json:"fulfiller"`
}

func (OrderFulfilledEvent) EventName() string { return "order_fulfilled" }

// OrderCancelledEvent is emitted once per cancellation
type OrderCancelledEvent struct {
	OrderID uint64 `json:"orderId"`
}

func (OrderCancelledEvent) EventName() string { return "order_cancelled" }
