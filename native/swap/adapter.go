package swap

import (
	"context"
	"math/big"
)

// Receipt describes the on-chain settlement submitted by an adapter.
type Receipt struct {
	TxHash      string
	Chain       string
	SubmittedAt int64
}

// ChainAdapter is implemented once per supported chain. All methods may
// block on network IO; callers bound them with a context deadline and must
// never hold engine locks across a call.
type ChainAdapter interface {
	// VerifyDeposit checks that a deposit matching the swap parameters is
	// locked on chain. A false result with nil error means the deposit is
	// absent or does not match; errors are transport failures.
	VerifyDeposit(ctx context.Context, swapID [32]byte, hashlock [32]byte, expiry int64, amount *big.Int) (bool, error)
	// SubmitClaim reveals the secret on chain and sweeps the locked funds.
	SubmitClaim(ctx context.Context, swapID [32]byte, secret []byte) (*Receipt, error)
	// SubmitRefund returns expired locked funds to the depositor.
	SubmitRefund(ctx context.Context, swapID [32]byte) (*Receipt, error)
}
