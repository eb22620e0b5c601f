package swap

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func testOrder(amount int64, partial bool) *SwapOrder {
	order := &SwapOrder{
		Direction:    DirectionEthToDoge,
		Amount:       big.NewInt(amount),
		Expiry:       time.Now().Add(time.Hour).Unix(),
		PartialFills: partial,
		Status:       OrderFunded,
		Filled:       big.NewInt(0),
	}
	order.Hashlock = CommitmentOf([]byte("ledger test order"))
	order.ID = CommitmentOf(order.Amount.Bytes())
	return order
}

func TestLedgerReserveCommit(t *testing.T) {
	ledger := NewLedger(time.Minute)
	order := testOrder(100, true)

	res, err := ledger.Reserve(order, big.NewInt(30))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := ledger.Outstanding(order.ID); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected 30 outstanding, got %s", got)
	}
	amount, err := ledger.Commit(res.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if amount.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected committed amount 30, got %s", amount)
	}
	if got := ledger.Outstanding(order.ID); got.Sign() != 0 {
		t.Fatalf("expected zero outstanding after commit, got %s", got)
	}
}

func TestLedgerOverSubscription(t *testing.T) {
	ledger := NewLedger(time.Minute)
	order := testOrder(100, true)

	if _, err := ledger.Reserve(order, big.NewInt(80)); err != nil {
		t.Fatalf("reserve 80: %v", err)
	}
	if _, err := ledger.Reserve(order, big.NewInt(30)); !errors.Is(err, ErrInsufficientRemaining) {
		t.Fatalf("expected ErrInsufficientRemaining, got %v", err)
	}
	if _, err := ledger.Reserve(order, big.NewInt(20)); err != nil {
		t.Fatalf("reserve remaining 20: %v", err)
	}
}

func TestLedgerReserveAgainstFilled(t *testing.T) {
	ledger := NewLedger(time.Minute)
	order := testOrder(100, true)
	order.Filled = big.NewInt(60)

	if _, err := ledger.Reserve(order, big.NewInt(50)); !errors.Is(err, ErrInsufficientRemaining) {
		t.Fatalf("expected ErrInsufficientRemaining, got %v", err)
	}
	if _, err := ledger.Reserve(order, big.NewInt(40)); err != nil {
		t.Fatalf("reserve within remainder: %v", err)
	}
}

func TestLedgerPartialFillsDisabled(t *testing.T) {
	ledger := NewLedger(time.Minute)
	order := testOrder(100, false)

	if _, err := ledger.Reserve(order, big.NewInt(40)); !errors.Is(err, ErrPartialFillsDisabled) {
		t.Fatalf("expected ErrPartialFillsDisabled for partial amount, got %v", err)
	}
	res, err := ledger.Reserve(order, big.NewInt(100))
	if err != nil {
		t.Fatalf("reserve full amount: %v", err)
	}
	if _, err := ledger.Reserve(order, big.NewInt(100)); !errors.Is(err, ErrPartialFillsDisabled) {
		t.Fatalf("expected second reservation to be rejected, got %v", err)
	}
	if err := ledger.Release(res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestLedgerReleaseUnknown(t *testing.T) {
	ledger := NewLedger(time.Minute)
	order := testOrder(100, true)

	res, err := ledger.Reserve(order, big.NewInt(10))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.Release(res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := ledger.Release(res.ID); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound on double release, got %v", err)
	}
	if _, err := ledger.Commit(res.ID); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound on commit after release, got %v", err)
	}
}

func TestLedgerReleaseStale(t *testing.T) {
	ledger := NewLedger(time.Minute)
	order := testOrder(100, true)

	base := time.Unix(1_700_000_000, 0)
	ledger.SetNowFunc(func() time.Time { return base })

	if _, err := ledger.Reserve(order, big.NewInt(25)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if released := ledger.ReleaseStale(base.Add(30 * time.Second)); released != 0 {
		t.Fatalf("expected no stale reservations yet, released %d", released)
	}
	if released := ledger.ReleaseStale(base.Add(2 * time.Minute)); released != 1 {
		t.Fatalf("expected one stale reservation, released %d", released)
	}
	if got := ledger.Outstanding(order.ID); got.Sign() != 0 {
		t.Fatalf("expected zero outstanding after stale sweep, got %s", got)
	}
}

func TestLedgerRejectsInvalidAmounts(t *testing.T) {
	ledger := NewLedger(time.Minute)
	order := testOrder(100, true)

	if _, err := ledger.Reserve(order, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
	if _, err := ledger.Reserve(order, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := ledger.Reserve(order, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}
