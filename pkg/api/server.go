package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/uhyunpark/orderswap/pkg/app/swap"
	"github.com/uhyunpark/orderswap/pkg/app/token"
)

// Config holds the API server options
type Config struct {
	FaucetEnabled bool
	FaucetAmount  int64
}

// Server handles REST API and WebSocket connections
type Server struct {
	ledger *swap.Ledger
	tokens *token.Registry
	cfg    Config
	router *mux.Router
	hub    *Hub
}

// NewServer creates a new API server around an escrow ledger and token set
// The hub is shared with the ledger's event feed (see NewEventFeed)
func NewServer(ledger *swap.Ledger, tokens *token.Registry, hub *Hub, cfg Config) *Server {
	s := &Server{
		ledger: ledger,
		tokens: tokens,
		cfg:    cfg,
		router: mux.NewRouter(),
		hub:    hub,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order endpoints
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/fulfil", s.handleFulfilOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")

	// Token endpoints
	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	api.HandleFunc("/tokens/{symbol}", s.handleGetToken).Methods("GET")
	api.HandleFunc("/tokens/{symbol}/balances/{address}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/tokens/{symbol}/allowances/{owner}/{spender}", s.handleGetAllowance).Methods("GET")
	api.HandleFunc("/tokens/{symbol}/approve", s.handleApprove).Methods("POST")
	if s.cfg.FaucetEnabled {
		api.HandleFunc("/tokens/{symbol}/faucet", s.handleFaucet).Methods("POST")
	}

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Order handlers
// ==============================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.ledger.ListOrders()

	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = orderInfo(o)
	}

	respondJSON(w, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := s.ledger.GetOrder(id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, orderInfo(order))
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	id, err := s.ledger.CreateOrder(caller, req.DepositAmount, req.DepositAsset, req.RequestAmount, req.RequestAsset)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, CreateOrderResponse{OrderID: id})
}

func (s *Server) handleFulfilOrder(w http.ResponseWriter, r *http.Request) {
	s.handleSettle(w, r, s.ledger.FulfilOrder)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	s.handleSettle(w, r, s.ledger.CancelOrder)
}

// handleSettle runs fulfil/cancel, which share the same request shape
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request, op func(common.Address, uint64) error) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req SettleOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	if err := op(caller, id); err != nil {
		respondLedgerError(w, err)
		return
	}

	order, err := s.ledger.GetOrder(id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, orderInfo(order))
}

// ==============================
// Token handlers
// ==============================

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.tokens.List()

	response := make([]TokenInfo, len(tokens))
	for i, t := range tokens {
		response[i] = TokenInfo{
			Symbol:      t.Symbol,
			Name:        t.Name,
			Decimals:    t.Decimals,
			TotalSupply: t.TotalSupply(),
		}
	}

	respondJSON(w, response)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupToken(w, r)
	if !ok {
		return
	}

	respondJSON(w, TokenInfo{
		Symbol:      t.Symbol,
		Name:        t.Name,
		Decimals:    t.Decimals,
		TotalSupply: t.TotalSupply(),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupToken(w, r)
	if !ok {
		return
	}

	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	respondJSON(w, BalanceInfo{
		Symbol:  t.Symbol,
		Address: addr.Hex(),
		Balance: t.BalanceOf(addr),
	})
}

func (s *Server) handleGetAllowance(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupToken(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	owner, ok := parseAddress(w, vars["owner"])
	if !ok {
		return
	}
	spender, ok := parseAddress(w, vars["spender"])
	if !ok {
		return
	}

	respondJSON(w, AllowanceInfo{
		Symbol:    t.Symbol,
		Owner:     owner.Hex(),
		Spender:   spender.Hex(),
		Allowance: t.Allowance(owner, spender),
	})
}

// handleApprove authorizes the escrow custody spender on behalf of the
// caller. A real deployment verifies a signature here; the dev node trusts
// the address in the body.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupToken(w, r)
	if !ok {
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	owner, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	spender := s.ledger.Custody()
	if err := t.Approve(owner, spender, req.Amount); err != nil {
		respondLedgerError(w, err)
		return
	}

	log.Printf("[api] approve: %s allowed custody %d %s", owner.Hex(), req.Amount, t.Symbol)

	respondJSON(w, AllowanceInfo{
		Symbol:    t.Symbol,
		Owner:     owner.Hex(),
		Spender:   spender.Hex(),
		Allowance: t.Allowance(owner, spender),
	})
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupToken(w, r)
	if !ok {
		return
	}

	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	if err := t.Mint(addr, s.cfg.FaucetAmount); err != nil {
		respondLedgerError(w, err)
		return
	}

	log.Printf("[api] faucet: minted %d %s to %s", s.cfg.FaucetAmount, t.Symbol, addr.Hex())

	respondJSON(w, BalanceInfo{
		Symbol:  t.Symbol,
		Address: addr.Hex(),
		Balance: t.BalanceOf(addr),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper functions
// ==============================

func orderInfo(o swap.Order) OrderInfo {
	info := OrderInfo{
		ID:              o.ID,
		Depositor:       o.Depositor.Hex(),
		DepositedAsset:  o.DepositedAsset,
		DepositedAmount: o.DepositedAmount,
		RequestedAsset:  o.RequestedAsset,
		RequestedAmount: o.RequestedAmount,
		Status:          o.Status.String(),
		CreatedAt:       o.CreatedAt,
		SettledAt:       o.SettledAt,
	}
	if o.Status == swap.OrderFulfilled {
		info.FulfilledBy = o.FulfilledBy.Hex()
	}
	return info
}

func (s *Server) lookupToken(w http.ResponseWriter, r *http.Request) (*token.Token, bool) {
	symbol := mux.Vars(r)["symbol"]
	t, err := s.tokens.Get(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "token not found", err.Error())
		return nil, false
	}
	return t, true
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return 0, false
	}
	return id, true
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// respondLedgerError maps ledger errors to HTTP statuses
func respondLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, swap.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, swap.ErrInvalidAmount),
		errors.Is(err, swap.ErrUnknownAsset),
		errors.Is(err, token.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, swap.ErrOrderNotOpen),
		errors.Is(err, swap.ErrSelfFulfillment),
		errors.Is(err, swap.ErrNotDepositor):
		status = http.StatusConflict
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		status = http.StatusPaymentRequired
	}
	respondError(w, status, err.Error(), "")
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
