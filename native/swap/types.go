package swap

import (
	"fmt"
	"math/big"
	"strings"
)

// OrderStatus represents the lifecycle states supported by the swap engine.
type OrderStatus uint8

const (
	OrderCreated OrderStatus = iota
	OrderFunded
	OrderPartiallyFilled
	OrderFullyFilled
	OrderClaimed
	OrderRefunded
	OrderExpired
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderCreated, OrderFunded, OrderPartiallyFilled, OrderFullyFilled, OrderClaimed, OrderRefunded, OrderExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transitions other
// than the expiry refund path.
func (s OrderStatus) Terminal() bool {
	return s == OrderClaimed || s == OrderRefunded
}

func (s OrderStatus) String() string {
	switch s {
	case OrderCreated:
		return "created"
	case OrderFunded:
		return "funded"
	case OrderPartiallyFilled:
		return "partially_filled"
	case OrderFullyFilled:
		return "fully_filled"
	case OrderClaimed:
		return "claimed"
	case OrderRefunded:
		return "refunded"
	case OrderExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Direction identifies which chain holds the initiating deposit and which
// chain carries the counter leg.
type Direction string

const (
	DirectionEthToDoge Direction = "eth_to_doge"
	DirectionDogeToEth Direction = "doge_to_eth"
)

// NormalizeDirection ensures the provided direction matches a supported value
// and returns the canonical lowercase form.
func NormalizeDirection(direction string) (Direction, error) {
	trimmed := strings.ToLower(strings.TrimSpace(direction))
	switch Direction(trimmed) {
	case DirectionEthToDoge:
		return DirectionEthToDoge, nil
	case DirectionDogeToEth:
		return DirectionDogeToEth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
}

// InitiatorChain returns the chain name carrying the initiating deposit.
func (d Direction) InitiatorChain() string {
	if d == DirectionDogeToEth {
		return ChainDoge
	}
	return ChainEth
}

// CounterChain returns the chain name carrying the counter leg.
func (d Direction) CounterChain() string {
	if d == DirectionDogeToEth {
		return ChainEth
	}
	return ChainDoge
}

// Chain names recognised by the engine when routing adapter calls.
const (
	ChainEth  = "eth"
	ChainDoge = "doge"
)

// FillStatus tracks the claim state of an individual fill.
type FillStatus uint8

const (
	FillPending FillStatus = iota
	FillClaimPending
	FillClaimed
	FillRefunded
)

// Valid reports whether the fill status is within the supported range.
func (s FillStatus) Valid() bool {
	switch s {
	case FillPending, FillClaimPending, FillClaimed, FillRefunded:
		return true
	default:
		return false
	}
}

func (s FillStatus) String() string {
	switch s {
	case FillPending:
		return "pending"
	case FillClaimPending:
		return "claim_pending"
	case FillClaimed:
		return "claimed"
	case FillRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Fill records a single allocation against an order's total amount. When
// partial fills are enabled every fill carries its own hashlock so it stays
// independently claimable.
type Fill struct {
	Seq       uint32
	Amount    *big.Int
	Hashlock  [32]byte
	Status    FillStatus
	CreatedAt int64
	ClaimedAt int64
	ClaimTx   string
}

// Clone returns a deep copy of the fill.
func (f *Fill) Clone() *Fill {
	if f == nil {
		return nil
	}
	clone := *f
	if f.Amount != nil {
		clone.Amount = new(big.Int).Set(f.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SwapOrder captures the immutable commitments and runtime status of a single
// cross-chain swap managed by the engine. The identifier is the keccak256
// hash of the direction, amount, creation time and a random nonce, ensuring
// deterministic IDs without a central sequence.
type SwapOrder struct {
	ID            [32]byte
	Direction     Direction
	Amount        *big.Int
	Hashlock      [32]byte
	Expiry        int64
	CounterExpiry int64
	PartialFills  bool
	CreatedAt     int64
	UpdatedAt     int64
	Status        OrderStatus
	Filled        *big.Int
	Fills         []Fill

	// Halted marks an order frozen after an invariant violation. No further
	// transitions are accepted until an operator clears it.
	Halted bool

	// pendingClaim/pendingRefund guard the window between a tentative state
	// check and the chain adapter's answer, so a racing mutation cannot slip
	// in while the per-id lock is released.
	PendingClaim  bool
	PendingRefund bool
}

// Clone returns a deep copy of the order so callers can safely mutate the
// copy without affecting the stored instance.
func (o *SwapOrder) Clone() *SwapOrder {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Amount != nil {
		clone.Amount = new(big.Int).Set(o.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if o.Filled != nil {
		clone.Filled = new(big.Int).Set(o.Filled)
	} else {
		clone.Filled = big.NewInt(0)
	}
	if len(o.Fills) > 0 {
		clone.Fills = make([]Fill, len(o.Fills))
		for i := range o.Fills {
			clone.Fills[i] = *o.Fills[i].Clone()
		}
	}
	return &clone
}

// Remaining returns the unfilled capacity of the order.
func (o *SwapOrder) Remaining() *big.Int {
	if o == nil || o.Amount == nil {
		return big.NewInt(0)
	}
	filled := o.Filled
	if filled == nil {
		filled = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(o.Amount, filled)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// FillBySeq returns the fill with the given sequence number, if present.
func (o *SwapOrder) FillBySeq(seq uint32) (*Fill, bool) {
	if o == nil {
		return nil, false
	}
	for i := range o.Fills {
		if o.Fills[i].Seq == seq {
			return &o.Fills[i], true
		}
	}
	return nil, false
}

// SanitizeOrder validates and normalises the supplied order, returning a
// cloned instance with non-nil amount fields. The function does not mutate
// the original value and is the single gate through which every order enters
// the registry, so no invalid instance can ever be stored.
func SanitizeOrder(o *SwapOrder) (*SwapOrder, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	clone := o.Clone()
	direction, err := NormalizeDirection(string(clone.Direction))
	if err != nil {
		return nil, err
	}
	clone.Direction = direction
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, clone.Amount)
	}
	if clone.Filled.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative filled amount %s", ErrInvalidOrder, clone.Filled)
	}
	if clone.Filled.Cmp(clone.Amount) > 0 {
		return nil, fmt.Errorf("%w: filled %s exceeds total %s", ErrInvariant, clone.Filled, clone.Amount)
	}
	if clone.Expiry <= 0 {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidOrder)
	}
	if clone.Hashlock == ([32]byte{}) {
		return nil, fmt.Errorf("%w: missing hashlock", ErrInvalidOrder)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidOrder, clone.Status)
	}
	total := big.NewInt(0)
	for i := range clone.Fills {
		fill := &clone.Fills[i]
		if fill.Amount == nil || fill.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: fill %d amount must be positive", ErrInvalidOrder, fill.Seq)
		}
		if !fill.Status.Valid() {
			return nil, fmt.Errorf("%w: fill %d status %d", ErrInvalidOrder, fill.Seq, fill.Status)
		}
		total = total.Add(total, fill.Amount)
	}
	if total.Cmp(clone.Amount) > 0 {
		return nil, fmt.Errorf("%w: fills sum %s exceeds total %s", ErrInvariant, total, clone.Amount)
	}
	return clone, nil
}
