package memchain

import (
	"context"
	"crypto/sha256"
	"errors"
	"math/big"
	"testing"
	"time"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestFundVerifyClaim(t *testing.T) {
	chain := New("eth")
	chain.SetNowFunc(fixedClock(1_000))

	secret := []byte("a preimage under test")
	hashlock := sha256.Sum256(secret)
	var swapID [32]byte
	swapID[0] = 0x01

	if _, err := chain.FundDeposit(swapID, hashlock, 2_000, big.NewInt(50)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := chain.FundDeposit(swapID, hashlock, 2_000, big.NewInt(50)); !errors.Is(err, ErrDepositExists) {
		t.Fatalf("expected ErrDepositExists, got %v", err)
	}

	ok, err := chain.VerifyDeposit(context.Background(), swapID, hashlock, 2_000, big.NewInt(50))
	if err != nil || !ok {
		t.Fatalf("expected deposit to verify, ok=%v err=%v", ok, err)
	}
	ok, err = chain.VerifyDeposit(context.Background(), swapID, hashlock, 2_000, big.NewInt(51))
	if err != nil || ok {
		t.Fatalf("expected amount mismatch to fail verification, ok=%v err=%v", ok, err)
	}

	receipt, err := chain.SubmitClaim(context.Background(), swapID, secret)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if receipt.Chain != "eth" || receipt.TxHash == "" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if _, err := chain.SubmitClaim(context.Background(), swapID, secret); !errors.Is(err, ErrDepositSpent) {
		t.Fatalf("expected ErrDepositSpent on double claim, got %v", err)
	}
}

func TestClaimWrongSecret(t *testing.T) {
	chain := New("doge")
	secret := []byte("right secret")
	hashlock := sha256.Sum256(secret)
	var swapID [32]byte
	swapID[0] = 0x02

	if _, err := chain.FundDeposit(swapID, hashlock, 2_000, big.NewInt(10)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := chain.SubmitClaim(context.Background(), swapID, []byte("wrong secret")); !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("expected ErrSecretMismatch, got %v", err)
	}
	if _, err := chain.SubmitClaim(context.Background(), [32]byte{0xff}, secret); !errors.Is(err, ErrNoDeposit) {
		t.Fatalf("expected ErrNoDeposit for unknown swap, got %v", err)
	}
}

func TestRefundRespectsExpiry(t *testing.T) {
	chain := New("eth")
	chain.SetNowFunc(fixedClock(1_000))

	hashlock := sha256.Sum256([]byte("refund test"))
	var swapID [32]byte
	swapID[0] = 0x03

	if _, err := chain.FundDeposit(swapID, hashlock, 1_500, big.NewInt(10)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := chain.SubmitRefund(context.Background(), swapID); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected ErrNotExpired, got %v", err)
	}

	chain.SetNowFunc(fixedClock(2_000))
	receipt, err := chain.SubmitRefund(context.Background(), swapID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if receipt.TxHash == "" {
		t.Fatalf("expected refund receipt")
	}
	if _, err := chain.SubmitRefund(context.Background(), swapID); !errors.Is(err, ErrNoDeposit) {
		t.Fatalf("expected ErrNoDeposit after refund, got %v", err)
	}
}

func TestAutoFundFabricatesDeposit(t *testing.T) {
	chain := NewAutoFunded("doge")
	hashlock := sha256.Sum256([]byte("auto"))
	var swapID [32]byte
	swapID[0] = 0x04

	ok, err := chain.VerifyDeposit(context.Background(), swapID, hashlock, 2_000, big.NewInt(42))
	if err != nil || !ok {
		t.Fatalf("expected auto-funded verification, ok=%v err=%v", ok, err)
	}
	if _, err := chain.SubmitClaim(context.Background(), swapID, []byte("auto")); err != nil {
		t.Fatalf("claim against auto-funded deposit: %v", err)
	}
}

func TestVerifyHonoursContext(t *testing.T) {
	chain := New("eth")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := chain.VerifyDeposit(ctx, [32]byte{}, [32]byte{}, 0, big.NewInt(1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
