package swap

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCommitWindow bounds how long a reservation may sit uncommitted
// before ReleaseStale reclaims its capacity.
const DefaultCommitWindow = 2 * time.Minute

// Reservation holds a slice of an order's remaining capacity while the
// counter-chain leg of a fill is verified. It is either committed into a
// recorded fill or released; until then the amount is invisible to other
// fill attempts.
type Reservation struct {
	ID        uuid.UUID
	OrderID   [32]byte
	Amount    *big.Int
	CreatedAt time.Time
}

// Ledger tracks in-flight fill reservations. A single mutex orders all
// reservations, so capacity is handed out strictly first-come first-served.
type Ledger struct {
	mu           sync.Mutex
	window       time.Duration
	reservations map[uuid.UUID]*Reservation
	reserved     map[[32]byte]*big.Int
	now          func() time.Time
}

// NewLedger constructs a ledger with the supplied commit window. A
// non-positive window falls back to DefaultCommitWindow.
func NewLedger(window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultCommitWindow
	}
	return &Ledger{
		window:       window,
		reservations: make(map[uuid.UUID]*Reservation),
		reserved:     make(map[[32]byte]*big.Int),
		now:          time.Now,
	}
}

// SetNowFunc overrides the ledger clock. Passing nil restores time.Now.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	l.now = now
}

// Reserve carves amount out of the order's unreserved remainder. Orders with
// partial fills disabled only accept a single reservation for the full
// amount. The caller must eventually Commit or Release the reservation.
func (l *Ledger) Reserve(order *SwapOrder, amount *big.Int) (*Reservation, error) {
	if order == nil {
		return nil, fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: reservation amount must be positive", ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	outstanding := l.reserved[order.ID]
	if outstanding == nil {
		outstanding = big.NewInt(0)
	}
	if !order.PartialFills {
		if outstanding.Sign() > 0 || order.Filled.Sign() > 0 {
			return nil, fmt.Errorf("%w: %x", ErrPartialFillsDisabled, order.ID)
		}
		if amount.Cmp(order.Amount) != 0 {
			return nil, fmt.Errorf("%w: order requires full amount %s", ErrPartialFillsDisabled, order.Amount)
		}
	}
	available := new(big.Int).Sub(order.Remaining(), outstanding)
	if amount.Cmp(available) > 0 {
		return nil, fmt.Errorf("%w: requested %s, available %s", ErrInsufficientRemaining, amount, available)
	}

	res := &Reservation{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Amount:    new(big.Int).Set(amount),
		CreatedAt: l.now(),
	}
	l.reservations[res.ID] = res
	l.reserved[order.ID] = new(big.Int).Add(outstanding, amount)
	return res, nil
}

// Commit finalises a reservation, returning its amount so the caller can
// record the fill. The reserved capacity is freed; the fill now accounts
// for it in the order's Filled total.
func (l *Ledger) Commit(id uuid.UUID) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReservationNotFound, id)
	}
	l.remove(res)
	return new(big.Int).Set(res.Amount), nil
}

// Release discards a reservation and returns its capacity to the pool.
// Releasing an unknown reservation is an error so double-release bugs
// surface immediately.
func (l *Ledger) Release(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrReservationNotFound, id)
	}
	l.remove(res)
	return nil
}

// ReleaseStale drops every reservation older than the commit window and
// reports how many were reclaimed.
func (l *Ledger) ReleaseStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	released := 0
	for _, res := range l.reservations {
		if now.Sub(res.CreatedAt) > l.window {
			l.remove(res)
			released++
		}
	}
	return released
}

// Outstanding reports the total amount currently reserved against an order.
func (l *Ledger) Outstanding(orderID [32]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amt, ok := l.reserved[orderID]; ok {
		return new(big.Int).Set(amt)
	}
	return big.NewInt(0)
}

func (l *Ledger) remove(res *Reservation) {
	delete(l.reservations, res.ID)
	outstanding := l.reserved[res.OrderID]
	if outstanding == nil {
		return
	}
	outstanding = new(big.Int).Sub(outstanding, res.Amount)
	if outstanding.Sign() <= 0 {
		delete(l.reserved, res.OrderID)
		return
	}
	l.reserved[res.OrderID] = outstanding
}
