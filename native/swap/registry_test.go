package swap

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"
)

type mockStorage struct {
	mu     sync.Mutex
	orders map[[32]byte]*SwapOrder
	fail   error
}

func newMockStorage() *mockStorage {
	return &mockStorage{orders: make(map[[32]byte]*SwapOrder)}
}

func (m *mockStorage) OrderPut(order *SwapOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *mockStorage) OrderGet(id [32]byte) (*SwapOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, false, m.fail
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, false, nil
	}
	return order.Clone(), true, nil
}

func (m *mockStorage) OrderIDs() ([][32]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	ids := make([][32]byte, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	return ids, nil
}

func registryOrder(amount int64) *SwapOrder {
	order := testOrder(amount, true)
	order.Status = OrderCreated
	return order
}

func TestRegistryInsertAndGet(t *testing.T) {
	registry := NewRegistry(newMockStorage())
	order := registryOrder(100)

	if err := registry.Insert(order); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := registry.Insert(order); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID on reinsert, got %v", err)
	}
	got, err := registry.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cmp(order.Amount) != 0 {
		t.Fatalf("expected amount %s, got %s", order.Amount, got.Amount)
	}

	// Snapshots must be detached from stored state.
	got.Amount.SetInt64(1)
	again, err := registry.Get(order.ID)
	if err != nil {
		t.Fatalf("get after mutation: %v", err)
	}
	if again.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("stored order mutated through snapshot: %s", again.Amount)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	registry := NewRegistry(newMockStorage())
	var id [32]byte
	id[0] = 0xaa
	if _, err := registry.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryUpdateAbortsOnError(t *testing.T) {
	registry := NewRegistry(newMockStorage())
	order := registryOrder(100)
	if err := registry.Insert(order); err != nil {
		t.Fatalf("insert: %v", err)
	}
	sentinel := errors.New("abort")
	if _, err := registry.Update(order.ID, func(o *SwapOrder) error {
		o.Status = OrderFunded
		return sentinel
	}); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	got, err := registry.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != OrderCreated {
		t.Fatalf("expected aborted update to leave status created, got %s", got.Status)
	}
}

func TestRegistryUpdateRejectsInvalidResult(t *testing.T) {
	registry := NewRegistry(newMockStorage())
	order := registryOrder(100)
	if err := registry.Insert(order); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := registry.Update(order.ID, func(o *SwapOrder) error {
		o.Filled = big.NewInt(200)
		return nil
	}); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant for over-filled order, got %v", err)
	}
}

func TestRegistryUpdateSerialisesPerID(t *testing.T) {
	registry := NewRegistry(newMockStorage())
	order := registryOrder(1_000)
	if err := registry.Insert(order); err != nil {
		t.Fatalf("insert: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := registry.Update(order.ID, func(o *SwapOrder) error {
				o.Filled = new(big.Int).Add(o.Filled, big.NewInt(10))
				o.UpdatedAt = time.Now().Unix()
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := registry.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Filled.Cmp(big.NewInt(10*workers)) != 0 {
		t.Fatalf("expected filled %d, got %s", 10*workers, got.Filled)
	}
}

func TestRegistryViewDoesNotPersist(t *testing.T) {
	registry := NewRegistry(newMockStorage())
	order := registryOrder(100)
	if err := registry.Insert(order); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := registry.View(order.ID, func(o *SwapOrder) error {
		o.Status = OrderClaimed
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	got, err := registry.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != OrderCreated {
		t.Fatalf("view must not persist, got status %s", got.Status)
	}
}
