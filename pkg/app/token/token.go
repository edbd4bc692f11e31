package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger errors surfaced to callers. Wrapped with context at call sites,
// matchable with errors.Is.
var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Token is an in-process fungible asset ledger with ERC-20 semantics:
// per-address balances, owner-initiated transfers, and the
// approve-then-pull pattern used by the escrow engine.
// All operations are thread-safe.
type Token struct {
	Symbol   string // Ticker, e.g. "GUZ"
	Name     string
	Decimals uint8

	mu          sync.RWMutex
	balances    map[common.Address]int64
	allowances  map[common.Address]map[common.Address]int64 // owner -> spender -> amount
	totalSupply int64
}

// NewToken creates an empty token ledger
func NewToken(symbol, name string, decimals uint8) *Token {
	return &Token{
		Symbol:     symbol,
		Name:       name,
		Decimals:   decimals,
		balances:   make(map[common.Address]int64),
		allowances: make(map[common.Address]map[common.Address]int64),
	}
}

// TotalSupply returns the total minted amount
func (t *Token) TotalSupply() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSupply
}

// BalanceOf returns the spendable balance of an address
// Unknown addresses have zero balance
func (t *Token) BalanceOf(addr common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[addr]
}

// Mint credits newly issued funds to an address
// Used for genesis funding and the dev faucet
func (t *Token) Mint(to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("mint %s: %w: %d", t.Symbol, ErrInvalidAmount, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.balances[to] += amount
	t.totalSupply += amount
	return nil
}

// Transfer moves funds between two addresses, initiated by the owner
func (t *Token) Transfer(from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer %s: %w: %d", t.Symbol, ErrInvalidAmount, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.moveLocked(from, to, amount)
}

// Approve authorizes a spender to pull up to amount from the owner's balance
// Replaces any prior allowance for the same spender (ERC-20 semantics)
func (t *Token) Approve(owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("approve %s: %w: %d", t.Symbol, ErrInvalidAmount, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]int64)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = amount
	return nil
}

// Allowance returns the remaining amount a spender may pull from an owner
func (t *Token) Allowance(owner, spender common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

// TransferFrom moves funds from an authorizing owner to a third party,
// initiated by the pre-approved spender. The allowance is decremented by
// the transferred amount.
func (t *Token) TransferFrom(spender, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transferFrom %s: %w: %d", t.Symbol, ErrInvalidAmount, amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[from][spender]
	if allowed < amount {
		return fmt.Errorf("transferFrom %s: %w: spender %s allowed %d, need %d",
			t.Symbol, ErrInsufficientAllowance, spender.Hex(), allowed, amount)
	}

	if err := t.moveLocked(from, to, amount); err != nil {
		return err
	}

	t.allowances[from][spender] = allowed - amount
	return nil
}

// moveLocked debits from and credits to (assumes lock is held)
func (t *Token) moveLocked(from, to common.Address, amount int64) error {
	balance := t.balances[from]
	if balance < amount {
		return fmt.Errorf("transfer %s: %w: %s has %d, need %d",
			t.Symbol, ErrInsufficientBalance, from.Hex(), balance, amount)
	}

	t.balances[from] = balance - amount
	t.balances[to] += amount
	return nil
}
