// Package memchain implements an in-memory chain adapter with deterministic
// HTLC semantics. It backs the engine's development mode and integration
// tests, where a real node would add nothing but latency.
package memchain

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"swapd/native/swap"
)

var (
	// ErrDepositExists is returned when funding an already funded lock.
	ErrDepositExists = errors.New("memchain: deposit already exists")
	// ErrNoDeposit is returned when claiming or refunding an unfunded lock.
	ErrNoDeposit = errors.New("memchain: no matching deposit")
	// ErrDepositSpent is returned when a lock was already claimed or refunded.
	ErrDepositSpent = errors.New("memchain: deposit already spent")
	// ErrSecretMismatch is returned when the revealed preimage does not hash
	// to the lock's commitment.
	ErrSecretMismatch = errors.New("memchain: secret does not match hashlock")
	// ErrNotExpired is returned when refunding a lock before its expiry.
	ErrNotExpired = errors.New("memchain: timelock not expired")
)

type depositState uint8

const (
	depositLocked depositState = iota
	depositClaimed
	depositRefunded
)

type deposit struct {
	hashlock [32]byte
	expiry   int64
	amount   *big.Int
	state    depositState
	txHash   string
}

type lockKey struct {
	swapID   [32]byte
	hashlock [32]byte
}

// Chain is a single simulated chain. All methods are safe for concurrent
// use. With autoFund enabled, VerifyDeposit fabricates the lock it is asked
// about, which lets the full swap flow run without a funding step.
type Chain struct {
	mu       sync.Mutex
	name     string
	deposits map[lockKey]*deposit
	autoFund bool
	now      func() time.Time
}

// New constructs a chain with the given name.
func New(name string) *Chain {
	return &Chain{
		name:     name,
		deposits: make(map[lockKey]*deposit),
		now:      time.Now,
	}
}

// NewAutoFunded constructs a chain that self-funds any deposit it is asked
// to verify. Development mode only.
func NewAutoFunded(name string) *Chain {
	chain := New(name)
	chain.autoFund = true
	return chain
}

// SetNowFunc overrides the chain clock. Passing nil restores time.Now.
func (c *Chain) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	c.now = now
}

// FundDeposit locks amount behind the hashlock until expiry, simulating the
// depositor's on-chain transaction.
func (c *Chain) FundDeposit(swapID, hashlock [32]byte, expiry int64, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("memchain: deposit amount must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := lockKey{swapID: swapID, hashlock: hashlock}
	if _, ok := c.deposits[key]; ok {
		return "", ErrDepositExists
	}
	tx := c.txHash()
	c.deposits[key] = &deposit{
		hashlock: hashlock,
		expiry:   expiry,
		amount:   new(big.Int).Set(amount),
		txHash:   tx,
	}
	return tx, nil
}

// VerifyDeposit implements swap.ChainAdapter.
func (c *Chain) VerifyDeposit(ctx context.Context, swapID, hashlock [32]byte, expiry int64, amount *big.Int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := lockKey{swapID: swapID, hashlock: hashlock}
	dep, ok := c.deposits[key]
	if !ok {
		if !c.autoFund {
			return false, nil
		}
		c.deposits[key] = &deposit{
			hashlock: hashlock,
			expiry:   expiry,
			amount:   new(big.Int).Set(amount),
			txHash:   c.txHash(),
		}
		return true, nil
	}
	if dep.state != depositLocked {
		return false, nil
	}
	if dep.expiry != expiry || dep.amount.Cmp(amount) != 0 {
		return false, nil
	}
	return true, nil
}

// SubmitClaim implements swap.ChainAdapter. The secret must hash to the
// commitment of a still-locked deposit under the swap id.
func (c *Chain) SubmitClaim(ctx context.Context, swapID [32]byte, secret []byte) (*swap.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(secret)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, dep := range c.deposits {
		if key.swapID != swapID {
			continue
		}
		if subtle.ConstantTimeCompare(dep.hashlock[:], digest[:]) != 1 {
			continue
		}
		if dep.state != depositLocked {
			return nil, ErrDepositSpent
		}
		dep.state = depositClaimed
		return &swap.Receipt{TxHash: c.txHash(), Chain: c.name, SubmittedAt: c.now().Unix()}, nil
	}
	if c.hasDeposit(swapID) {
		return nil, ErrSecretMismatch
	}
	return nil, ErrNoDeposit
}

// SubmitRefund implements swap.ChainAdapter. Every expired, still-locked
// deposit under the swap id is returned to its depositor.
func (c *Chain) SubmitRefund(ctx context.Context, swapID [32]byte) (*swap.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now().Unix()
	refunded := 0
	locked := 0
	for key, dep := range c.deposits {
		if key.swapID != swapID || dep.state != depositLocked {
			continue
		}
		locked++
		if now < dep.expiry {
			continue
		}
		dep.state = depositRefunded
		refunded++
	}
	if locked == 0 {
		return nil, ErrNoDeposit
	}
	if refunded == 0 {
		return nil, ErrNotExpired
	}
	return &swap.Receipt{TxHash: c.txHash(), Chain: c.name, SubmittedAt: now}, nil
}

func (c *Chain) hasDeposit(swapID [32]byte) bool {
	for key := range c.deposits {
		if key.swapID == swapID {
			return true
		}
	}
	return false
}

func (c *Chain) txHash() string {
	id := uuid.New()
	return "0x" + hex.EncodeToString(id[:])
}

var _ swap.ChainAdapter = (*Chain)(nil)
