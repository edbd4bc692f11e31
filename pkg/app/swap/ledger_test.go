package swap_test

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/orderswap/pkg/app/swap"
	"github.com/uhyunpark/orderswap/pkg/app/token"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000") // depositor
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000") // fulfiller
	carol = common.HexToAddress("0xCC00000000000000000000000000000000000000") // bystander
)

// recorder captures emitted ledger events for assertions
type recorder struct {
	events []swap.Event
}

func (r *recorder) Emit(ev swap.Event) { r.events = append(r.events, ev) }

func (r *recorder) last(t *testing.T) swap.Event {
	t.Helper()
	if len(r.events) == 0 {
		t.Fatal("no events emitted")
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	ledger  *swap.Ledger
	guz     *token.Token
	w3c     *token.Token
	events  *recorder
	custody common.Address
}

// newTestLedger creates an escrow ledger with a temporary database and two
// funded token ledgers: alice holds 100 GUZ, bob holds 100 W3C.
// Each test gets a unique database path to avoid Pebble lock conflicts.
func newTestLedger(t *testing.T) *fixture {
	t.Helper()

	dbPath := fmt.Sprintf("./tmp_test_orders_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	store, err := swap.NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	events := &recorder{}
	ledger, err := swap.NewLedger(store, swap.DefaultCustody, events)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}

	guz := token.NewToken("GUZ", "Guz Token", 18)
	w3c := token.NewToken("W3C", "Web3 Coin", 18)
	guz.Mint(alice, 100)
	w3c.Mint(bob, 100)

	if err := ledger.RegisterAsset("GUZ", guz); err != nil {
		t.Fatalf("failed to register GUZ: %v", err)
	}
	if err := ledger.RegisterAsset("W3C", w3c); err != nil {
		t.Fatalf("failed to register W3C: %v", err)
	}

	return &fixture{
		ledger:  ledger,
		guz:     guz,
		w3c:     w3c,
		events:  events,
		custody: swap.DefaultCustody,
	}
}

// createGuzOrder locks 100 GUZ from alice requesting 20 W3C
func (f *fixture) createGuzOrder(t *testing.T) uint64 {
	t.Helper()
	f.guz.Approve(alice, f.custody, 100)
	id, err := f.ledger.CreateOrder(alice, 100, "GUZ", 20, "W3C")
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return id
}

func TestCreateOrder(t *testing.T) {
	f := newTestLedger(t)

	id := f.createGuzOrder(t)
	if id != 1 {
		t.Errorf("order id = %d, want 1", id)
	}

	order, err := f.ledger.GetOrder(1)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if order.Depositor != alice {
		t.Errorf("depositor = %s, want %s", order.Depositor.Hex(), alice.Hex())
	}
	if order.DepositedAsset != "GUZ" || order.DepositedAmount != 100 {
		t.Errorf("deposit = %d %s, want 100 GUZ", order.DepositedAmount, order.DepositedAsset)
	}
	if order.RequestedAsset != "W3C" || order.RequestedAmount != 20 {
		t.Errorf("request = %d %s, want 20 W3C", order.RequestedAmount, order.RequestedAsset)
	}
	if order.Status != swap.OrderOpen {
		t.Errorf("status = %s, want open", order.Status)
	}
	if order.FulfilledBy != (common.Address{}) {
		t.Errorf("fulfilledBy = %s, want unset", order.FulfilledBy.Hex())
	}

	// Deposit moved into escrow custody
	if got := f.guz.BalanceOf(alice); got != 0 {
		t.Errorf("alice GUZ = %d, want 0", got)
	}
	if got := f.guz.BalanceOf(f.custody); got != 100 {
		t.Errorf("custody GUZ = %d, want 100", got)
	}

	ev, ok := f.events.last(t).(swap.OrderCreatedEvent)
	if !ok {
		t.Fatalf("expected OrderCreatedEvent, got %T", f.events.last(t))
	}
	want := swap.OrderCreatedEvent{OrderID: 1, Depositor: alice, RequestedAsset: "W3C", RequestedAmount: 20}
	if ev != want {
		t.Errorf("event = %+v, want %+v", ev, want)
	}
}

func TestCreateOrderInvalidAmount(t *testing.T) {
	f := newTestLedger(t)
	f.guz.Approve(alice, f.custody, 100)

	if _, err := f.ledger.CreateOrder(alice, 0, "GUZ", 20, "W3C"); !errors.Is(err, swap.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero deposit, got %v", err)
	}
	if _, err := f.ledger.CreateOrder(alice, 100, "GUZ", -1, "W3C"); !errors.Is(err, swap.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative request, got %v", err)
	}

	if f.ledger.Count() != 0 {
		t.Errorf("order count = %d, want 0", f.ledger.Count())
	}
	if got := f.guz.BalanceOf(alice); got != 100 {
		t.Errorf("alice GUZ = %d, want 100 (untouched)", got)
	}
}

func TestCreateOrderUnknownAsset(t *testing.T) {
	f := newTestLedger(t)
	f.guz.Approve(alice, f.custody, 100)

	if _, err := f.ledger.CreateOrder(alice, 100, "DOGE", 20, "W3C"); !errors.Is(err, swap.ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset for deposit side, got %v", err)
	}
	if _, err := f.ledger.CreateOrder(alice, 100, "GUZ", 20, "DOGE"); !errors.Is(err, swap.ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset for request side, got %v", err)
	}
	if got := f.guz.BalanceOf(f.custody); got != 0 {
		t.Errorf("custody GUZ = %d, want 0", got)
	}
}

func TestCreateOrderWithoutApproval(t *testing.T) {
	f := newTestLedger(t)

	// No prior approval: the pull must fail and no id may be consumed
	_, err := f.ledger.CreateOrder(alice, 100, "GUZ", 20, "W3C")
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Errorf("expected ErrInsufficientAllowance, got %v", err)
	}
	if got := f.guz.BalanceOf(alice); got != 100 {
		t.Errorf("alice GUZ = %d, want 100", got)
	}
	if f.ledger.Count() != 0 {
		t.Errorf("order count = %d, want 0", f.ledger.Count())
	}

	// The failed attempt must not have burned an id
	if id := f.createGuzOrder(t); id != 1 {
		t.Errorf("first successful order id = %d, want 1", id)
	}
}

func TestFulfilOrder(t *testing.T) {
	f := newTestLedger(t)
	id := f.createGuzOrder(t)

	f.w3c.Approve(bob, f.custody, 20)
	if err := f.ledger.FulfilOrder(bob, id); err != nil {
		t.Fatalf("fulfil failed: %v", err)
	}

	order, _ := f.ledger.GetOrder(id)
	if order.Status != swap.OrderFulfilled {
		t.Errorf("status = %s, want fulfilled", order.Status)
	}
	if order.FulfilledBy != bob {
		t.Errorf("fulfilledBy = %s, want %s", order.FulfilledBy.Hex(), bob.Hex())
	}
	if order.DepositedAmount != 100 {
		t.Errorf("deposited amount = %d, want 100 (kept for audit)", order.DepositedAmount)
	}

	// Depositor got the requested payment, fulfiller got the escrowed deposit
	if got := f.w3c.BalanceOf(alice); got != 20 {
		t.Errorf("alice W3C = %d, want 20", got)
	}
	if got := f.guz.BalanceOf(bob); got != 100 {
		t.Errorf("bob GUZ = %d, want 100", got)
	}
	if got := f.guz.BalanceOf(f.custody); got != 0 {
		t.Errorf("custody GUZ = %d, want 0", got)
	}
	// The requested asset never passes through custody
	if got := f.w3c.BalanceOf(f.custody); got != 0 {
		t.Errorf("custody W3C = %d, want 0", got)
	}

	ev, ok := f.events.last(t).(swap.OrderFulfilledEvent)
	if !ok {
		t.Fatalf("expected OrderFulfilledEvent, got %T", f.events.last(t))
	}
	if ev.OrderID != id || ev.Fulfiller != bob {
		t.Errorf("event = %+v, want order %d fulfilled by %s", ev, id, bob.Hex())
	}
}

func TestFulfilOwnOrder(t *testing.T) {
	f := newTestLedger(t)
	id := f.createGuzOrder(t)

	if err := f.ledger.FulfilOrder(alice, id); !errors.Is(err, swap.ErrSelfFulfillment) {
		t.Errorf("expected ErrSelfFulfillment, got %v", err)
	}

	order, _ := f.ledger.GetOrder(id)
	if order.Status != swap.OrderOpen {
		t.Errorf("status = %s, want open", order.Status)
	}

	// Self-fulfilment is rejected in every state, even after cancellation
	if err := f.ledger.CancelOrder(alice, id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := f.ledger.FulfilOrder(alice, id); !errors.Is(err, swap.ErrSelfFulfillment) {
		t.Errorf("expected ErrSelfFulfillment on cancelled order, got %v", err)
	}
}

func TestFulfilOrderNotFound(t *testing.T) {
	f := newTestLedger(t)

	if err := f.ledger.FulfilOrder(bob, 42); !errors.Is(err, swap.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := f.ledger.GetOrder(42); !errors.Is(err, swap.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound from GetOrder, got %v", err)
	}
}

func TestFulfilNotOpen(t *testing.T) {
	f := newTestLedger(t)
	id := f.createGuzOrder(t)

	f.w3c.Approve(bob, f.custody, 20)
	f.ledger.FulfilOrder(bob, id)

	err := f.ledger.FulfilOrder(carol, id)
	if !errors.Is(err, swap.ErrOrderNotOpen) {
		t.Errorf("expected ErrOrderNotOpen, got %v", err)
	}
	if !strings.Contains(err.Error(), "already fulfilled") {
		t.Errorf("error should name the terminal state, got %q", err.Error())
	}
}

func TestFulfilCancelledOrder(t *testing.T) {
	f := newTestLedger(t)
	id := f.createGuzOrder(t)
	f.ledger.CancelOrder(alice, id)

	err := f.ledger.FulfilOrder(bob, id)
	if !errors.Is(err, swap.ErrOrderNotOpen) {
		t.Errorf("expected ErrOrderNotOpen, got %v", err)
	}
	if !strings.Contains(err.Error(), "already cancelled") {
		t.Errorf("error should name the terminal state, got %q", err.Error())
	}
}

func TestFulfilWithoutPaymentApproval(t *testing.T) {
	f := newTestLedger(t)
	id := f.createGuzOrder(t)

	// Bob never approved the 20 W3C pull
	err := f.ledger.FulfilOrder(bob, id)
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Errorf("expected ErrInsufficientAllowance, got %v", err)
	}

	// Whole operation aborted: order still open, escrow intact
	order, _ := f.ledger.GetOrder(id)
	if order.Status != swap.OrderOpen {
		t.Errorf("status = %s, want open", order.Status)
	}
	if got := f.guz.BalanceOf(f.custody); got != 100 {
		t.Errorf("custody GUZ = %d, want 100", got)
	}
	if got := f.w3c.BalanceOf(bob); got != 100 {
		t.Errorf("bob W3C = %d, want 100", got)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newTestLedger(t)
	id := f.createGuzOrder(t)

	if err := f.ledger.CancelOrder(alice, id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	order, _ := f.ledger.GetOrder(id)
	if order.Status != swap.OrderCancelled {
		t.Errorf("status = %s, want cancelled", order.Status)
	}

	// Full refund of the original deposit
	if got := f.guz.BalanceOf(alice); got != 100 {
		t.Errorf("alice GUZ = %d, want 100", got)
	}
	if got := f.guz.BalanceOf(f.custody); got != 0 {
		t.Errorf("custody GUZ = %d, want 0", got)
	}

	ev, ok := f.events.last(t).(swap.OrderCancelledEvent)
	if !ok {
		t.Fatalf("expected OrderCancelledEvent, got %T", f.events.last(t))
	}
	if ev.OrderID != id {
		t.Errorf("event order id = %d, want %d", ev.OrderID, id)
	}
}

func TestCancelNotDepositor(t *testing.T) {
	f := newTestLedger(t)
	id := f.createGuzOrder(t)

	if err := f.ledger.CancelOrder(bob, id); !errors.Is(err, swap.ErrNotDepositor) {
		t.Errorf("expected ErrNotDepositor, got %v", err)
	}

	order, _ := f.ledger.GetOrder(id)
	if order.Status != swap.OrderOpen {
		t.Errorf("status = %s, want open", order.Status)
	}
	if got := f.guz.BalanceOf(f.custody); got != 100 {
		t.Errorf("custody GUZ = %d, want 100", got)
	}
}

func TestCancelAfterFulfil(t *testing.T) {
	f := newTestLedger(t)
	id := f.createGuzOrder(t)

	f.w3c.Approve(bob, f.custody, 20)
	f.ledger.FulfilOrder(bob, id)

	// Terminal orders reject cancellation regardless of caller
	for _, caller := range []common.Address{alice, bob, carol} {
		if err := f.ledger.CancelOrder(caller, id); !errors.Is(err, swap.ErrOrderNotOpen) {
			t.Errorf("caller %s: expected ErrOrderNotOpen, got %v", caller.Hex(), err)
		}
	}
}

// fakeClock pins order timestamps for deterministic assertions
type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

func TestOrderTimestamps(t *testing.T) {
	f := newTestLedger(t)

	created := time.UnixMilli(1700000000000)
	f.ledger.SetClock(fakeClock{now: created})

	id := f.createGuzOrder(t)
	order, _ := f.ledger.GetOrder(id)
	if order.CreatedAt != created.UnixMilli() {
		t.Errorf("createdAt = %d, want %d", order.CreatedAt, created.UnixMilli())
	}
	if order.SettledAt != 0 {
		t.Errorf("settledAt = %d, want 0 while open", order.SettledAt)
	}

	settled := created.Add(5 * time.Minute)
	f.ledger.SetClock(fakeClock{now: settled})

	f.w3c.Approve(bob, f.custody, 20)
	if err := f.ledger.FulfilOrder(bob, id); err != nil {
		t.Fatalf("fulfil failed: %v", err)
	}

	order, _ = f.ledger.GetOrder(id)
	if order.SettledAt != settled.UnixMilli() {
		t.Errorf("settledAt = %d, want %d", order.SettledAt, settled.UnixMilli())
	}
}

func TestOrderIDsNeverReused(t *testing.T) {
	f := newTestLedger(t)

	f.guz.Approve(alice, f.custody, 100)
	id1, err := f.ledger.CreateOrder(alice, 40, "GUZ", 10, "W3C")
	if err != nil {
		t.Fatalf("create order 1 failed: %v", err)
	}
	if err := f.ledger.CancelOrder(alice, id1); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	id2, err := f.ledger.CreateOrder(alice, 60, "GUZ", 15, "W3C")
	if err != nil {
		t.Fatalf("create order 2 failed: %v", err)
	}
	if id2 != id1+1 {
		t.Errorf("second id = %d, want %d (ids strictly increase, never reused)", id2, id1+1)
	}

	// The cancelled order remains queryable as a historical record
	order, err := f.ledger.GetOrder(id1)
	if err != nil {
		t.Fatalf("get cancelled order failed: %v", err)
	}
	if order.Status != swap.OrderCancelled {
		t.Errorf("status = %s, want cancelled", order.Status)
	}

	orders := f.ledger.ListOrders()
	if len(orders) != 2 {
		t.Fatalf("list returned %d orders, want 2", len(orders))
	}
	if orders[0].ID != id1 || orders[1].ID != id2 {
		t.Errorf("list order = [%d %d], want [%d %d]", orders[0].ID, orders[1].ID, id1, id2)
	}
}

func TestLedgerReload(t *testing.T) {
	dbPath := fmt.Sprintf("./tmp_test_orders_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	guz := token.NewToken("GUZ", "Guz Token", 18)
	w3c := token.NewToken("W3C", "Web3 Coin", 18)
	guz.Mint(alice, 100)
	w3c.Mint(bob, 100)

	store, err := swap.NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ledger, err := swap.NewLedger(store, swap.DefaultCustody, nil)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	ledger.RegisterAsset("GUZ", guz)
	ledger.RegisterAsset("W3C", w3c)

	guz.Approve(alice, swap.DefaultCustody, 100)
	ledger.CreateOrder(alice, 60, "GUZ", 10, "W3C")
	id2, _ := ledger.CreateOrder(alice, 40, "GUZ", 5, "W3C")
	w3c.Approve(bob, swap.DefaultCustody, 10)
	if err := ledger.FulfilOrder(bob, 1); err != nil {
		t.Fatalf("fulfil failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// Reopen: registry and counter must survive
	store2, err := swap.NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	t.Cleanup(func() {
		store2.Close()
	})

	ledger2, err := swap.NewLedger(store2, swap.DefaultCustody, nil)
	if err != nil {
		t.Fatalf("failed to reload ledger: %v", err)
	}
	ledger2.RegisterAsset("GUZ", guz)
	ledger2.RegisterAsset("W3C", w3c)

	if ledger2.Count() != 2 {
		t.Fatalf("reloaded order count = %d, want 2", ledger2.Count())
	}

	order1, err := ledger2.GetOrder(1)
	if err != nil {
		t.Fatalf("get order 1 failed: %v", err)
	}
	if order1.Status != swap.OrderFulfilled || order1.FulfilledBy != bob {
		t.Errorf("order 1 = status %s fulfilledBy %s, want fulfilled by %s",
			order1.Status, order1.FulfilledBy.Hex(), bob.Hex())
	}

	order2, err := ledger2.GetOrder(id2)
	if err != nil {
		t.Fatalf("get order 2 failed: %v", err)
	}
	if order2.Status != swap.OrderOpen || order2.DepositedAmount != 40 {
		t.Errorf("order 2 = status %s amount %d, want open with 40", order2.Status, order2.DepositedAmount)
	}

	// Counter continues where it left off
	guz.Mint(alice, 50)
	guz.Approve(alice, swap.DefaultCustody, 50)
	id3, err := ledger2.CreateOrder(alice, 50, "GUZ", 5, "W3C")
	if err != nil {
		t.Fatalf("create after reload failed: %v", err)
	}
	if id3 != 3 {
		t.Errorf("id after reload = %d, want 3", id3)
	}
}
