package token

import (
	"fmt"
	"sync"
)

// Registry manages the set of known token ledgers in a thread-safe manner
// Lookup is by symbol; symbols are unique
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]*Token // symbol -> token
}

// NewRegistry creates an empty token registry
func NewRegistry() *Registry {
	return &Registry{
		tokens: make(map[string]*Token),
	}
}

// Register adds a token to the registry
// Returns error if a token with the same symbol already exists
func (r *Registry) Register(t *Token) error {
	if t == nil {
		return fmt.Errorf("cannot register nil token")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[t.Symbol]; exists {
		return fmt.Errorf("token %s already registered", t.Symbol)
	}

	r.tokens[t.Symbol] = t
	return nil
}

// Get retrieves a token by symbol
// Returns error if the token is not registered
func (r *Registry) Get(symbol string) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tokens[symbol]
	if !exists {
		return nil, fmt.Errorf("token %s not found", symbol)
	}

	return t, nil
}

// List returns all registered tokens
// Returns a copy of the slice to avoid concurrent modification
func (r *Registry) List() []*Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]*Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		tokens = append(tokens, t)
	}
	return tokens
}

// Exists checks if a token is registered
func (r *Registry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tokens[symbol]
	return exists
}

// Count returns the total number of registered tokens
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
