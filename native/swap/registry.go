package swap

import (
	"fmt"
	"sync"
)

// Storage abstracts the subset of persistence functionality required by the
// registry. Implementations must return data that survives a round-trip
// through SanitizeOrder.
type Storage interface {
	OrderPut(*SwapOrder) error
	OrderGet(id [32]byte) (*SwapOrder, bool, error)
	OrderIDs() ([][32]byte, error)
}

const lockShards = 64

// lockTable provides per-swap-id mutual exclusion via a fixed set of shard
// mutexes. Two ids may share a shard, which is safe (coarser than required)
// and keeps the table allocation-free.
type lockTable struct {
	shards [lockShards]sync.Mutex
}

func (t *lockTable) lock(id [32]byte) *sync.Mutex {
	mu := &t.shards[int(id[0])%lockShards]
	mu.Lock()
	return mu
}

// Registry is the exclusive owner of all SwapOrder records. Every mutation
// funnels through Update, which serialises read-modify-write cycles per swap
// id so concurrent fills cannot both observe the same remaining capacity.
type Registry struct {
	store Storage
	locks lockTable
}

// NewRegistry constructs a registry bound to the provided storage backend.
func NewRegistry(store Storage) *Registry {
	return &Registry{store: store}
}

// Insert registers a new order. The order is sanitised before storage and
// duplicate identifiers are rejected.
func (r *Registry) Insert(order *SwapOrder) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("swap: registry not initialised")
	}
	sanitized, err := SanitizeOrder(order)
	if err != nil {
		return err
	}
	mu := r.locks.lock(sanitized.ID)
	defer mu.Unlock()
	if _, ok, err := r.store.OrderGet(sanitized.ID); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %x", ErrDuplicateID, sanitized.ID)
	}
	return r.store.OrderPut(sanitized)
}

// Get returns a snapshot of the order. The snapshot is a deep copy; mutating
// it has no effect on stored state.
func (r *Registry) Get(id [32]byte) (*SwapOrder, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("swap: registry not initialised")
	}
	order, ok, err := r.store.OrderGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrNotFound, id)
	}
	return order.Clone(), nil
}

// Update applies fn to the stored order under the per-id lock, persisting
// the result if fn succeeds. fn receives a private copy; returning an error
// leaves stored state untouched. The returned snapshot reflects the
// committed state.
func (r *Registry) Update(id [32]byte, fn func(*SwapOrder) error) (*SwapOrder, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("swap: registry not initialised")
	}
	mu := r.locks.lock(id)
	defer mu.Unlock()
	order, ok, err := r.store.OrderGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrNotFound, id)
	}
	working := order.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	sanitized, err := SanitizeOrder(working)
	if err != nil {
		return nil, err
	}
	if err := r.store.OrderPut(sanitized); err != nil {
		return nil, err
	}
	return sanitized.Clone(), nil
}

// View runs fn against a fresh copy of the order under the per-id lock
// without persisting anything. It exists for read-validate sequences that
// must not interleave with a concurrent Update, such as capacity
// reservations.
func (r *Registry) View(id [32]byte, fn func(*SwapOrder) error) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("swap: registry not initialised")
	}
	mu := r.locks.lock(id)
	defer mu.Unlock()
	order, ok, err := r.store.OrderGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %x", ErrNotFound, id)
	}
	return fn(order.Clone())
}

// IDs lists every registered order identifier. Orders are never deleted, so
// the listing doubles as the audit index.
func (r *Registry) IDs() ([][32]byte, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("swap: registry not initialised")
	}
	return r.store.OrderIDs()
}
