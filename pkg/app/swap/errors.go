package swap

import "errors"

// Ledger errors. Every failure aborts the whole operation; the order
// registry and both asset ledgers reflect the pre-call state afterwards.
// Matchable with errors.Is; call sites wrap with order context.
var (
	// ErrInvalidAmount rejects zero or negative deposit/request amounts
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnknownAsset rejects orders referencing an unregistered asset ledger
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrOrderNotFound means the order id was never allocated
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotOpen means the order already reached a terminal state.
	// Wrapping messages say which one (already fulfilled / already cancelled).
	ErrOrderNotOpen = errors.New("order not open")

	// ErrSelfFulfillment blocks a depositor from fulfilling their own order,
	// which would trivially unlock their own escrow
	ErrSelfFulfillment = errors.New("depositor cannot fulfill their own order")

	// ErrNotDepositor blocks anyone but the depositor from cancelling
	ErrNotDepositor = errors.New("only the depositor may cancel")
)
