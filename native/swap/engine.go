package swap

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"swapd/core/events"
)

// DefaultCallTimeout bounds a single chain adapter call when the engine is
// not configured otherwise.
const DefaultCallTimeout = 30 * time.Second

// Limits carries the operator-configured policy the engine enforces on every
// order. Nil amount bounds disable the respective check.
type Limits struct {
	MinAmount           *big.Int
	MaxAmount           *big.Int
	DefaultTimelock     time.Duration
	GracePeriod         time.Duration
	CounterLegMargin    time.Duration
	CallTimeout         time.Duration
	PartialFillsDefault bool
}

// CreateParams describes a new swap request. A zero Timelock selects the
// configured default; a nil PartialFills selects the configured default.
type CreateParams struct {
	Direction    string
	Amount       *big.Int
	Timelock     time.Duration
	PartialFills *bool
}

// OrderSeq addresses the order-level hashlock in Claim instead of an
// individual fill.
const OrderSeq = -1

// StatusResult is the queryable view of an order returned by Status.
// ExpiresIn is the number of seconds until the nominal expiry, negative once
// past it.
type StatusResult struct {
	Order     *SwapOrder
	Phase     TimelockPhase
	ExpiresIn int64
	Remaining *big.Int
	Reserved  *big.Int
}

// Engine coordinates swap lifecycle transitions across the registry, the
// fill ledger and the per-chain adapters. All public methods are safe for
// concurrent use; operations touching the same order are linearised by the
// registry's per-id locks, and no lock is ever held across an adapter call.
type Engine struct {
	registry *Registry
	ledger   *Ledger
	adapters map[string]ChainAdapter
	emitter  events.Emitter
	limits   Limits
	nowFn    func() time.Time
}

// NewEngine constructs an engine bound to the supplied registry and ledger.
func NewEngine(registry *Registry, ledger *Ledger, limits Limits) *Engine {
	if limits.DefaultTimelock <= 0 {
		limits.DefaultTimelock = DefaultTimelock
	}
	if limits.CallTimeout <= 0 {
		limits.CallTimeout = DefaultCallTimeout
	}
	return &Engine{
		registry: registry,
		ledger:   ledger,
		adapters: make(map[string]ChainAdapter),
		emitter:  events.NoopEmitter{},
		limits:   limits,
		nowFn:    time.Now,
	}
}

// RegisterAdapter installs the adapter used for the named chain, replacing
// any previous registration.
func (e *Engine) RegisterAdapter(chain string, adapter ChainAdapter) {
	if adapter == nil {
		delete(e.adapters, chain)
		return
	}
	e.adapters[chain] = adapter
}

// SetEmitter wires an event sink. Passing nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetNowFunc overrides the engine clock. Passing nil restores time.Now.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
	if e.ledger != nil {
		e.ledger.SetNowFunc(now)
	}
}

func (e *Engine) adapter(chain string) (ChainAdapter, error) {
	adapter, ok := e.adapters[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterUnavailable, chain)
	}
	return adapter, nil
}

func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.limits.CallTimeout)
}

func mapAdapterErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrAdapterTimeout, err)
	}
	return fmt.Errorf("swap: chain adapter: %w", err)
}

func computeOrderID(direction Direction, amount *big.Int, createdAt int64, nonce []byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, []byte(direction)...)
	buf = append(buf, amount.Bytes()...)
	buf = append(buf, big.NewInt(createdAt).Bytes()...)
	buf = append(buf, nonce...)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(buf))
	return id
}

// CreateSwap registers a new order and returns it together with the secret
// backing the order-level hashlock. The secret is handed out exactly once
// and never persisted.
func (e *Engine) CreateSwap(params CreateParams) (*SwapOrder, Secret, error) {
	direction, err := NormalizeDirection(params.Direction)
	if err != nil {
		return nil, Secret{}, err
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, Secret{}, fmt.Errorf("%w: %v", ErrInvalidAmount, params.Amount)
	}
	if e.limits.MinAmount != nil && params.Amount.Cmp(e.limits.MinAmount) < 0 {
		return nil, Secret{}, fmt.Errorf("%w: %s below minimum %s", ErrAmountOutOfBounds, params.Amount, e.limits.MinAmount)
	}
	if e.limits.MaxAmount != nil && params.Amount.Cmp(e.limits.MaxAmount) > 0 {
		return nil, Secret{}, fmt.Errorf("%w: %s above maximum %s", ErrAmountOutOfBounds, params.Amount, e.limits.MaxAmount)
	}
	timelock := params.Timelock
	if timelock == 0 {
		timelock = e.limits.DefaultTimelock
	}
	now := e.nowFn().Unix()
	expiry, err := ComputeExpiry(now, timelock)
	if err != nil {
		return nil, Secret{}, err
	}
	// The counter leg must expire first so the initiator cannot wait out
	// the filler and claim both sides.
	counterExpiry := expiry
	if margin := int64(e.limits.CounterLegMargin / time.Second); margin > 0 && expiry-margin > now {
		counterExpiry = expiry - margin
	}
	secret, hashlock, err := GenerateSecret()
	if err != nil {
		return nil, Secret{}, err
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, Secret{}, fmt.Errorf("swap: nonce generation failed: %w", err)
	}
	partial := e.limits.PartialFillsDefault
	if params.PartialFills != nil {
		partial = *params.PartialFills
	}
	order := &SwapOrder{
		ID:            computeOrderID(direction, params.Amount, now, nonce),
		Direction:     direction,
		Amount:        new(big.Int).Set(params.Amount),
		Hashlock:      hashlock,
		Expiry:        expiry,
		CounterExpiry: counterExpiry,
		PartialFills:  partial,
		CreatedAt:     now,
		UpdatedAt:     now,
		Status:        OrderCreated,
		Filled:        big.NewInt(0),
	}
	if err := e.registry.Insert(order); err != nil {
		return nil, Secret{}, err
	}
	e.emitter.Emit(newOrderCreatedEvent(order))
	return order.Clone(), secret, nil
}

// ConfirmFunding verifies the initiator's on-chain deposit and moves the
// order from created to funded. Calling it on an already funded order is a
// no-op returning the current state.
func (e *Engine) ConfirmFunding(ctx context.Context, id [32]byte) (*SwapOrder, error) {
	snapshot, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if snapshot.Halted {
		return nil, fmt.Errorf("%w: %x", ErrHalted, id)
	}
	if snapshot.Status == OrderFunded {
		return snapshot, nil
	}
	if snapshot.Status != OrderCreated {
		return nil, fmt.Errorf("%w: cannot fund order in status %s", ErrInvalidStatus, snapshot.Status)
	}
	if ClassifyTimelock(e.nowFn().Unix(), snapshot.Expiry, e.limits.GracePeriod) == PhaseExpired {
		return nil, fmt.Errorf("%w: order %x", ErrTimelockExpired, id)
	}

	adapter, err := e.adapter(snapshot.Direction.InitiatorChain())
	if err != nil {
		return nil, err
	}
	callCtx, cancel := e.callCtx(ctx)
	ok, err := adapter.VerifyDeposit(callCtx, snapshot.ID, snapshot.Hashlock, snapshot.Expiry, snapshot.Amount)
	cancel()
	if err != nil {
		return nil, mapAdapterErr(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %x", ErrFundingMismatch, id)
	}

	updated, err := e.registry.Update(id, func(o *SwapOrder) error {
		if o.Halted {
			return fmt.Errorf("%w: %x", ErrHalted, id)
		}
		if o.Status == OrderFunded {
			return nil
		}
		if o.Status != OrderCreated {
			return fmt.Errorf("%w: cannot fund order in status %s", ErrInvalidStatus, o.Status)
		}
		o.Status = OrderFunded
		o.UpdatedAt = e.nowFn().Unix()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(newOrderFundedEvent(updated))
	return updated, nil
}

// Fill reserves part of the order's remaining capacity, verifies the
// counter-chain deposit backing it and records the fill. The returned
// secret unlocks the new fill's hashlock and is handed out exactly once.
func (e *Engine) Fill(ctx context.Context, id [32]byte, amount *big.Int) (*SwapOrder, *Fill, Secret, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, Secret{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	secret, hashlock, err := GenerateSecret()
	if err != nil {
		return nil, nil, Secret{}, err
	}

	var (
		res           *Reservation
		counterExpiry int64
		counterChain  string
	)
	err = e.registry.View(id, func(o *SwapOrder) error {
		if o.Halted {
			return fmt.Errorf("%w: %x", ErrHalted, id)
		}
		switch o.Status {
		case OrderFunded, OrderPartiallyFilled:
		default:
			return fmt.Errorf("%w: cannot fill order in status %s", ErrInvalidStatus, o.Status)
		}
		if ClassifyTimelock(e.nowFn().Unix(), o.Expiry, e.limits.GracePeriod) != PhaseLive {
			return fmt.Errorf("%w: order %x", ErrTimelockExpired, id)
		}
		reservation, err := e.ledger.Reserve(o, amount)
		if err != nil {
			return err
		}
		res = reservation
		counterExpiry = o.CounterExpiry
		counterChain = o.Direction.CounterChain()
		return nil
	})
	if err != nil {
		return nil, nil, Secret{}, err
	}

	adapter, err := e.adapter(counterChain)
	if err != nil {
		e.releaseQuietly(res.ID)
		return nil, nil, Secret{}, err
	}
	callCtx, cancel := e.callCtx(ctx)
	ok, err := adapter.VerifyDeposit(callCtx, id, hashlock, counterExpiry, amount)
	cancel()
	if err != nil {
		e.releaseQuietly(res.ID)
		return nil, nil, Secret{}, mapAdapterErr(err)
	}
	if !ok {
		e.releaseQuietly(res.ID)
		return nil, nil, Secret{}, fmt.Errorf("%w: fill on order %x", ErrFundingMismatch, id)
	}

	var fill *Fill
	updated, err := e.registry.Update(id, func(o *SwapOrder) error {
		if o.Halted {
			return fmt.Errorf("%w: %x", ErrHalted, id)
		}
		switch o.Status {
		case OrderFunded, OrderPartiallyFilled:
		default:
			return fmt.Errorf("%w: cannot fill order in status %s", ErrInvalidStatus, o.Status)
		}
		committed, err := e.ledger.Commit(res.ID)
		if err != nil {
			return err
		}
		now := e.nowFn().Unix()
		newFill := Fill{
			Seq:       nextFillSeq(o),
			Amount:    committed,
			Hashlock:  hashlock,
			Status:    FillPending,
			CreatedAt: now,
		}
		o.Fills = append(o.Fills, newFill)
		o.Filled = new(big.Int).Add(o.Filled, committed)
		if o.Filled.Cmp(o.Amount) > 0 {
			return fmt.Errorf("%w: filled %s exceeds total %s", ErrInvariant, o.Filled, o.Amount)
		}
		if o.Filled.Cmp(o.Amount) == 0 {
			o.Status = OrderFullyFilled
		} else {
			o.Status = OrderPartiallyFilled
		}
		o.UpdatedAt = now
		fill = o.Fills[len(o.Fills)-1].Clone()
		return nil
	})
	if err != nil {
		e.releaseQuietly(res.ID)
		if errors.Is(err, ErrInvariant) {
			e.halt(id, err.Error())
		}
		return nil, nil, Secret{}, err
	}
	e.emitter.Emit(newOrderFillEvent(updated, fill))
	return updated, fill, secret, nil
}

func nextFillSeq(o *SwapOrder) uint32 {
	var max uint32
	for i := range o.Fills {
		if o.Fills[i].Seq > max {
			max = o.Fills[i].Seq
		}
	}
	return max + 1
}

// releaseQuietly returns reserved capacity after a failed fill. The
// reservation may already be gone if the stale sweeper reclaimed it.
func (e *Engine) releaseQuietly(id uuid.UUID) {
	_ = e.ledger.Release(id)
}

// halt freezes an order after an invariant violation so no further
// transitions are accepted until an operator intervenes.
func (e *Engine) halt(id [32]byte, reason string) {
	updated, err := e.registry.Update(id, func(o *SwapOrder) error {
		o.Halted = true
		o.UpdatedAt = e.nowFn().Unix()
		return nil
	})
	if err != nil {
		return
	}
	e.emitter.Emit(newOrderHaltedEvent(updated, reason))
}

// Claim settles a fill (seq >= 0) or the whole order (seq == OrderSeq) by
// revealing the matching secret. Claims are accepted during the grace window
// after nominal expiry; a claim in flight blocks any refund attempt.
func (e *Engine) Claim(ctx context.Context, id [32]byte, seq int, secret []byte) (*SwapOrder, *Receipt, error) {
	var claimChain string

	_, err := e.registry.Update(id, func(o *SwapOrder) error {
		if o.Halted {
			return fmt.Errorf("%w: %x", ErrHalted, id)
		}
		if o.PendingRefund || o.PendingClaim {
			return fmt.Errorf("%w: order %x", ErrOperationPending, id)
		}
		if o.Status == OrderClaimed {
			return fmt.Errorf("%w: order %x", ErrAlreadyClaimed, id)
		}
		if o.Status == OrderRefunded {
			return fmt.Errorf("%w: order %x already refunded", ErrInvalidStatus, id)
		}
		if ClassifyTimelock(e.nowFn().Unix(), o.Expiry, e.limits.GracePeriod) == PhaseExpired {
			return fmt.Errorf("%w: order %x", ErrTimelockExpired, id)
		}
		if seq == OrderSeq {
			if o.Status != OrderFullyFilled && !(o.Status == OrderFunded && !o.PartialFills) {
				return fmt.Errorf("%w: cannot claim order in status %s", ErrInvalidStatus, o.Status)
			}
			if !VerifySecret(secret, o.Hashlock) {
				return fmt.Errorf("%w: order %x", ErrHashlockMismatch, id)
			}
			claimChain = o.Direction.InitiatorChain()
		} else {
			if seq < 0 || seq > int(^uint32(0)) {
				return fmt.Errorf("%w: fill %d", ErrFillNotFound, seq)
			}
			fill, ok := o.FillBySeq(uint32(seq))
			if !ok {
				return fmt.Errorf("%w: fill %d on order %x", ErrFillNotFound, seq, id)
			}
			if fill.Status == FillClaimed {
				return fmt.Errorf("%w: fill %d", ErrAlreadyClaimed, seq)
			}
			if fill.Status != FillPending {
				return fmt.Errorf("%w: fill %d in status %s", ErrInvalidStatus, seq, fill.Status)
			}
			if !VerifySecret(secret, fill.Hashlock) {
				return fmt.Errorf("%w: fill %d on order %x", ErrHashlockMismatch, seq, id)
			}
			fill.Status = FillClaimPending
			claimChain = o.Direction.CounterChain()
		}
		o.PendingClaim = true
		o.UpdatedAt = e.nowFn().Unix()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	adapter, err := e.adapter(claimChain)
	if err != nil {
		e.rollbackClaim(id, seq)
		return nil, nil, err
	}
	callCtx, cancel := e.callCtx(ctx)
	receipt, err := adapter.SubmitClaim(callCtx, id, secret)
	cancel()
	if err != nil {
		e.rollbackClaim(id, seq)
		return nil, nil, mapAdapterErr(err)
	}

	updated, err := e.registry.Update(id, func(o *SwapOrder) error {
		now := e.nowFn().Unix()
		o.PendingClaim = false
		if seq == OrderSeq {
			o.Status = OrderClaimed
			for i := range o.Fills {
				if o.Fills[i].Status == FillPending || o.Fills[i].Status == FillClaimPending {
					o.Fills[i].Status = FillClaimed
					o.Fills[i].ClaimedAt = now
					o.Fills[i].ClaimTx = receipt.TxHash
				}
			}
		} else {
			fill, ok := o.FillBySeq(uint32(seq))
			if !ok {
				return fmt.Errorf("%w: fill %d on order %x", ErrFillNotFound, seq, id)
			}
			fill.Status = FillClaimed
			fill.ClaimedAt = now
			fill.ClaimTx = receipt.TxHash
			if o.Status == OrderFullyFilled && allFillsClaimed(o) {
				o.Status = OrderClaimed
			}
		}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if seq == OrderSeq || updated.Status == OrderClaimed {
		e.emitter.Emit(newOrderClaimedEvent(updated, receipt))
	}
	if seq != OrderSeq {
		if fill, ok := updated.FillBySeq(uint32(seq)); ok {
			e.emitter.Emit(newFillClaimedEvent(updated, fill, receipt))
		}
	}
	return updated, receipt, nil
}

func allFillsClaimed(o *SwapOrder) bool {
	for i := range o.Fills {
		if o.Fills[i].Status != FillClaimed {
			return false
		}
	}
	return len(o.Fills) > 0
}

func (e *Engine) rollbackClaim(id [32]byte, seq int) {
	_, _ = e.registry.Update(id, func(o *SwapOrder) error {
		o.PendingClaim = false
		if seq != OrderSeq {
			if fill, ok := o.FillBySeq(uint32(seq)); ok && fill.Status == FillClaimPending {
				fill.Status = FillPending
			}
		}
		o.UpdatedAt = e.nowFn().Unix()
		return nil
	})
}

// Refund returns the initiator's deposit after the timelock and grace window
// have both elapsed. Unclaimed fills are marked refunded; a claim already in
// flight wins over the refund.
func (e *Engine) Refund(ctx context.Context, id [32]byte) (*SwapOrder, *Receipt, error) {
	var initiatorChain string

	_, err := e.registry.Update(id, func(o *SwapOrder) error {
		if o.Halted {
			return fmt.Errorf("%w: %x", ErrHalted, id)
		}
		if o.PendingClaim || o.PendingRefund {
			return fmt.Errorf("%w: order %x", ErrOperationPending, id)
		}
		if o.Status == OrderClaimed {
			return fmt.Errorf("%w: order %x", ErrAlreadyClaimed, id)
		}
		if o.Status == OrderRefunded {
			return fmt.Errorf("%w: order %x already refunded", ErrInvalidStatus, id)
		}
		if ClassifyTimelock(e.nowFn().Unix(), o.Expiry, e.limits.GracePeriod) != PhaseExpired {
			return fmt.Errorf("%w: order %x", ErrTimelockNotExpired, id)
		}
		o.PendingRefund = true
		if o.Status != OrderExpired {
			o.Status = OrderExpired
		}
		o.UpdatedAt = e.nowFn().Unix()
		initiatorChain = o.Direction.InitiatorChain()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	adapter, err := e.adapter(initiatorChain)
	if err != nil {
		e.rollbackRefund(id)
		return nil, nil, err
	}
	callCtx, cancel := e.callCtx(ctx)
	receipt, err := adapter.SubmitRefund(callCtx, id)
	cancel()
	if err != nil {
		e.rollbackRefund(id)
		return nil, nil, mapAdapterErr(err)
	}

	updated, err := e.registry.Update(id, func(o *SwapOrder) error {
		now := e.nowFn().Unix()
		o.PendingRefund = false
		o.Status = OrderRefunded
		for i := range o.Fills {
			if o.Fills[i].Status == FillPending {
				o.Fills[i].Status = FillRefunded
			}
		}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.emitter.Emit(newOrderRefundedEvent(updated, receipt))
	return updated, receipt, nil
}

func (e *Engine) rollbackRefund(id [32]byte) {
	_, _ = e.registry.Update(id, func(o *SwapOrder) error {
		o.PendingRefund = false
		o.UpdatedAt = e.nowFn().Unix()
		return nil
	})
}

// Status returns a snapshot of the order together with its timelock phase
// and the capacity currently reserved by in-flight fills.
func (e *Engine) Status(id [32]byte) (*StatusResult, error) {
	order, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}
	now := e.nowFn().Unix()
	return &StatusResult{
		Order:     order,
		Phase:     ClassifyTimelock(now, order.Expiry, e.limits.GracePeriod),
		ExpiresIn: order.Expiry - now,
		Remaining: order.Remaining(),
		Reserved:  e.ledger.Outstanding(id),
	}, nil
}

// ExpireSweep marks every order whose timelock and grace window have both
// elapsed as expired and reclaims stale fill reservations. It returns the
// number of orders transitioned.
func (e *Engine) ExpireSweep() int {
	now := e.nowFn()
	e.ledger.ReleaseStale(now)
	ids, err := e.registry.IDs()
	if err != nil {
		return 0
	}
	expired := 0
	for _, id := range ids {
		updated, err := e.registry.Update(id, func(o *SwapOrder) error {
			if o.Halted || o.Status.Terminal() || o.Status == OrderExpired {
				return errSweepSkip
			}
			if o.PendingClaim || o.PendingRefund {
				return errSweepSkip
			}
			if ClassifyTimelock(now.Unix(), o.Expiry, e.limits.GracePeriod) != PhaseExpired {
				return errSweepSkip
			}
			o.Status = OrderExpired
			o.UpdatedAt = now.Unix()
			return nil
		})
		if err != nil {
			continue
		}
		expired++
		e.emitter.Emit(newOrderExpiredEvent(updated))
	}
	return expired
}

var errSweepSkip = errors.New("swap: sweep skip")
