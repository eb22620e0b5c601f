package evm

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func TestContractABIParses(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(htlcABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	for _, name := range []string{"getLock", "claim", "refund"} {
		if _, ok := parsed.Methods[name]; !ok {
			t.Fatalf("missing contract method %q", name)
		}
	}

	var swapID, hashlock [32]byte
	swapID[0] = 0x01
	hashlock[0] = 0x02
	if _, err := parsed.Pack("getLock", swapID, hashlock); err != nil {
		t.Fatalf("pack getLock: %v", err)
	}
	if _, err := parsed.Pack("claim", swapID, []byte("secret")); err != nil {
		t.Fatalf("pack claim: %v", err)
	}
	if _, err := parsed.Pack("refund", swapID); err != nil {
		t.Fatalf("pack refund: %v", err)
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	if _, err := New(context.Background(), Config{ContractAddress: "not an address"}); err == nil {
		t.Fatalf("expected invalid contract address to be rejected")
	}
}
