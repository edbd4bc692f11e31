package api

// OrderInfo is the full order record projection
type OrderInfo struct {
	ID              uint64 `json:"id"`
	Depositor       string `json:"depositor"`
	DepositedAsset  string `json:"depositedAsset"`
	DepositedAmount int64  `json:"depositedAmount"`
	RequestedAsset  string `json:"requestedAsset"`
	RequestedAmount int64  `json:"requestedAmount"`
	Status          string `json:"status"`
	FulfilledBy     string `json:"fulfilledBy,omitempty"`
	CreatedAt       int64  `json:"createdAt"`
	SettledAt       int64  `json:"settledAt,omitempty"`
}

// CreateOrderRequest creates a new escrow order
// The address is the depositor; it must have approved the custody spender
// for the deposit amount beforehand
type CreateOrderRequest struct {
	Address       string `json:"address"`
	DepositAmount int64  `json:"depositAmount"`
	DepositAsset  string `json:"depositAsset"`
	RequestAmount int64  `json:"requestAmount"`
	RequestAsset  string `json:"requestAsset"`
}

type CreateOrderResponse struct {
	OrderID uint64 `json:"orderId"`
}

// SettleOrderRequest carries the caller for fulfil/cancel
type SettleOrderRequest struct {
	Address string `json:"address"`
}

type TokenInfo struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply int64  `json:"totalSupply"`
}

type BalanceInfo struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

type AllowanceInfo struct {
	Symbol    string `json:"symbol"`
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance int64  `json:"allowance"`
}

// ApproveRequest authorizes the escrow custody spender
type ApproveRequest struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// FaucetRequest mints dev funds to an address (faucet-enabled nodes only)
type FaucetRequest struct {
	Address string `json:"address"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client -> server websocket control message
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// OrderEventMessage wraps a ledger event for the websocket feed
type OrderEventMessage struct {
	Type    string      `json:"type"` // always "order_event"
	Channel string      `json:"channel"`
	Event   string      `json:"event"` // order_created | order_fulfilled | order_cancelled
	Data    interface{} `json:"data"`
}
