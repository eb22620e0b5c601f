// Package boltstore persists swap orders in a bbolt database. It is the
// production implementation of the engine's storage interface.
package boltstore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	bolt "go.etcd.io/bbolt"

	"swapd/native/swap"
)

var bucketOrders = []byte("orders")

// Store wraps a bbolt database. A single Store may be shared by any number
// of goroutines; bbolt serialises writers internally.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures the required
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketOrders)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: ensure buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

type storedFill struct {
	Seq       uint32 `json:"seq"`
	Amount    string `json:"amount"`
	Hashlock  string `json:"hashlock"`
	Status    uint8  `json:"status"`
	CreatedAt int64  `json:"createdAt"`
	ClaimedAt int64  `json:"claimedAt,omitempty"`
	ClaimTx   string `json:"claimTx,omitempty"`
}

type storedOrder struct {
	ID            string       `json:"id"`
	Direction     string       `json:"direction"`
	Amount        string       `json:"amount"`
	Hashlock      string       `json:"hashlock"`
	Expiry        int64        `json:"expiry"`
	CounterExpiry int64        `json:"counterExpiry"`
	PartialFills  bool         `json:"partialFills"`
	CreatedAt     int64        `json:"createdAt"`
	UpdatedAt     int64        `json:"updatedAt"`
	Status        uint8        `json:"status"`
	Filled        string       `json:"filled"`
	Fills         []storedFill `json:"fills,omitempty"`
	Halted        bool         `json:"halted,omitempty"`
	PendingClaim  bool         `json:"pendingClaim,omitempty"`
	PendingRefund bool         `json:"pendingRefund,omitempty"`
}

func encodeOrder(order *swap.SwapOrder) ([]byte, error) {
	stored := storedOrder{
		ID:            hex.EncodeToString(order.ID[:]),
		Direction:     string(order.Direction),
		Amount:        order.Amount.String(),
		Hashlock:      hex.EncodeToString(order.Hashlock[:]),
		Expiry:        order.Expiry,
		CounterExpiry: order.CounterExpiry,
		PartialFills:  order.PartialFills,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		Status:        uint8(order.Status),
		Filled:        order.Filled.String(),
		Halted:        order.Halted,
		PendingClaim:  order.PendingClaim,
		PendingRefund: order.PendingRefund,
	}
	for i := range order.Fills {
		fill := &order.Fills[i]
		stored.Fills = append(stored.Fills, storedFill{
			Seq:       fill.Seq,
			Amount:    fill.Amount.String(),
			Hashlock:  hex.EncodeToString(fill.Hashlock[:]),
			Status:    uint8(fill.Status),
			CreatedAt: fill.CreatedAt,
			ClaimedAt: fill.ClaimedAt,
			ClaimTx:   fill.ClaimTx,
		})
	}
	return json.Marshal(stored)
}

func decodeOrder(raw []byte) (*swap.SwapOrder, error) {
	var stored storedOrder
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("boltstore: decode order: %w", err)
	}
	order := &swap.SwapOrder{
		Direction:     swap.Direction(stored.Direction),
		Expiry:        stored.Expiry,
		CounterExpiry: stored.CounterExpiry,
		PartialFills:  stored.PartialFills,
		CreatedAt:     stored.CreatedAt,
		UpdatedAt:     stored.UpdatedAt,
		Status:        swap.OrderStatus(stored.Status),
		Halted:        stored.Halted,
		PendingClaim:  stored.PendingClaim,
		PendingRefund: stored.PendingRefund,
	}
	if err := decodeHash32(stored.ID, &order.ID); err != nil {
		return nil, fmt.Errorf("boltstore: order id: %w", err)
	}
	if err := decodeHash32(stored.Hashlock, &order.Hashlock); err != nil {
		return nil, fmt.Errorf("boltstore: order hashlock: %w", err)
	}
	var err error
	if order.Amount, err = decodeAmount(stored.Amount); err != nil {
		return nil, fmt.Errorf("boltstore: order amount: %w", err)
	}
	if order.Filled, err = decodeAmount(stored.Filled); err != nil {
		return nil, fmt.Errorf("boltstore: order filled: %w", err)
	}
	for _, storedF := range stored.Fills {
		fill := swap.Fill{
			Seq:       storedF.Seq,
			Status:    swap.FillStatus(storedF.Status),
			CreatedAt: storedF.CreatedAt,
			ClaimedAt: storedF.ClaimedAt,
			ClaimTx:   storedF.ClaimTx,
		}
		if err := decodeHash32(storedF.Hashlock, &fill.Hashlock); err != nil {
			return nil, fmt.Errorf("boltstore: fill %d hashlock: %w", storedF.Seq, err)
		}
		if fill.Amount, err = decodeAmount(storedF.Amount); err != nil {
			return nil, fmt.Errorf("boltstore: fill %d amount: %w", storedF.Seq, err)
		}
		order.Fills = append(order.Fills, fill)
	}
	return order, nil
}

func decodeHash32(encoded string, out *[32]byte) error {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return nil
}

func decodeAmount(encoded string) (*big.Int, error) {
	if encoded == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(encoded, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", encoded)
	}
	return amount, nil
}

// OrderPut implements swap.Storage.
func (s *Store) OrderPut(order *swap.SwapOrder) error {
	raw, err := encodeOrder(order)
	if err != nil {
		return fmt.Errorf("boltstore: encode order: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOrders).Put(order.ID[:], raw)
	})
}

// OrderGet implements swap.Storage.
func (s *Store) OrderGet(id [32]byte) (*swap.SwapOrder, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if value := tx.Bucket(bucketOrders).Get(id[:]); value != nil {
			raw = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("boltstore: get order: %w", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	order, err := decodeOrder(raw)
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// OrderIDs implements swap.Storage.
func (s *Store) OrderIDs() ([][32]byte, error) {
	var ids [][32]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOrders).ForEach(func(key, _ []byte) error {
			if len(key) != 32 {
				return fmt.Errorf("boltstore: malformed order key length %d", len(key))
			}
			var id [32]byte
			copy(id[:], key)
			ids = append(ids, id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

var _ swap.Storage = (*Store)(nil)
