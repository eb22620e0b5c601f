// Package evm adapts an HTLC escrow contract on an EVM chain to the swap
// engine's ChainAdapter interface.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"swapd/native/swap"
)

// htlcABI mirrors the escrow contract: each lock is addressed by the swap id
// plus its hashlock, so an order and its fills coexist under one id.
const htlcABI = `[
  {"name":"getLock","type":"function","stateMutability":"view",
   "inputs":[{"name":"swapId","type":"bytes32"},{"name":"hashlock","type":"bytes32"}],
   "outputs":[{"name":"amount","type":"uint256"},{"name":"timelock","type":"uint256"},{"name":"state","type":"uint8"}]},
  {"name":"claim","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"swapId","type":"bytes32"},{"name":"secret","type":"bytes"}],
   "outputs":[]},
  {"name":"refund","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"swapId","type":"bytes32"}],
   "outputs":[]}
]`

// Lock state values reported by the contract.
const (
	lockStateNone     uint8 = 0
	lockStateLocked   uint8 = 1
	lockStateClaimed  uint8 = 2
	lockStateRefunded uint8 = 3
)

// ErrNoSigner is returned from claim and refund submissions when the adapter
// was constructed without a private key.
var ErrNoSigner = errors.New("evm: no signing key configured")

// Config describes the connection to the escrow contract.
type Config struct {
	RPCURL          string
	ContractAddress string
	PrivateKeyHex   string
	GasLimit        uint64
}

// Adapter talks to the HTLC contract through an ethclient connection.
type Adapter struct {
	client   *ethclient.Client
	contract common.Address
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
}

// New dials the RPC endpoint and prepares the adapter. The private key is
// optional; without it the adapter can verify deposits but not settle.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("evm: invalid contract address %q", cfg.ContractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(htlcABI))
	if err != nil {
		return nil, fmt.Errorf("evm: parse contract abi: %w", err)
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", cfg.RPCURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("evm: fetch chain id: %w", err)
	}
	adapter := &Adapter{
		client:   client,
		contract: common.HexToAddress(cfg.ContractAddress),
		abi:      parsed,
		chainID:  chainID,
		gasLimit: cfg.GasLimit,
	}
	if adapter.gasLimit == 0 {
		adapter.gasLimit = 150_000
	}
	if cfg.PrivateKeyHex != "" {
		key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("evm: parse signing key: %w", err)
		}
		adapter.key = key
		adapter.from = ethcrypto.PubkeyToAddress(key.PublicKey)
	}
	return adapter, nil
}

// Close releases the underlying RPC connection.
func (a *Adapter) Close() {
	if a.client != nil {
		a.client.Close()
	}
}

// VerifyDeposit implements swap.ChainAdapter by reading the lock state from
// the contract and comparing it against the expected parameters.
func (a *Adapter) VerifyDeposit(ctx context.Context, swapID, hashlock [32]byte, expiry int64, amount *big.Int) (bool, error) {
	data, err := a.abi.Pack("getLock", swapID, hashlock)
	if err != nil {
		return false, fmt.Errorf("evm: pack getLock: %w", err)
	}
	raw, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &a.contract, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("evm: call getLock: %w", err)
	}
	out, err := a.abi.Unpack("getLock", raw)
	if err != nil {
		return false, fmt.Errorf("evm: unpack getLock: %w", err)
	}
	if len(out) != 3 {
		return false, fmt.Errorf("evm: unexpected getLock result arity %d", len(out))
	}
	lockAmount, ok := out[0].(*big.Int)
	if !ok {
		return false, fmt.Errorf("evm: unexpected amount type %T", out[0])
	}
	lockTimelock, ok := out[1].(*big.Int)
	if !ok {
		return false, fmt.Errorf("evm: unexpected timelock type %T", out[1])
	}
	lockState, ok := out[2].(uint8)
	if !ok {
		return false, fmt.Errorf("evm: unexpected state type %T", out[2])
	}
	if lockState != lockStateLocked {
		return false, nil
	}
	if lockAmount.Cmp(amount) != 0 {
		return false, nil
	}
	if lockTimelock.Cmp(big.NewInt(expiry)) != 0 {
		return false, nil
	}
	return true, nil
}

// SubmitClaim implements swap.ChainAdapter by sending a claim transaction
// revealing the secret. The contract matches the preimage to the lock by
// recomputing its sha256 commitment.
func (a *Adapter) SubmitClaim(ctx context.Context, swapID [32]byte, secret []byte) (*swap.Receipt, error) {
	data, err := a.abi.Pack("claim", swapID, secret)
	if err != nil {
		return nil, fmt.Errorf("evm: pack claim: %w", err)
	}
	return a.submit(ctx, data)
}

// SubmitRefund implements swap.ChainAdapter by sending a refund transaction
// sweeping every expired lock under the swap id.
func (a *Adapter) SubmitRefund(ctx context.Context, swapID [32]byte) (*swap.Receipt, error) {
	data, err := a.abi.Pack("refund", swapID)
	if err != nil {
		return nil, fmt.Errorf("evm: pack refund: %w", err)
	}
	return a.submit(ctx, data)
}

func (a *Adapter) submit(ctx context.Context, data []byte) (*swap.Receipt, error) {
	if a.key == nil {
		return nil, ErrNoSigner
	}
	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return nil, fmt.Errorf("evm: fetch nonce: %w", err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm: suggest gas price: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &a.contract,
		Gas:      a.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.key)
	if err != nil {
		return nil, fmt.Errorf("evm: sign transaction: %w", err)
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("evm: send transaction: %w", err)
	}
	return &swap.Receipt{
		TxHash:      signed.Hash().Hex(),
		Chain:       swap.ChainEth,
		SubmittedAt: time.Now().Unix(),
	}, nil
}

var _ swap.ChainAdapter = (*Adapter)(nil)
