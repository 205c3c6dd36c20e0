// Package chain verifies ERC-20 transfers against an Ethereum RPC endpoint.
//
// This is the only component that talks to the chain. It is read-only: it
// looks up transaction receipts and matches Transfer event logs; it never
// signs or sends anything.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/babylon-market/a2a/internal/retry"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrRPCConnection = errors.New("chain: RPC connection failed")
	ErrInvalidTxHash = errors.New("chain: invalid transaction hash")
	ErrTxReverted    = errors.New("chain: transaction reverted")
)

// transferTopic is keccak256("Transfer(address,address,uint256)").
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var txHashRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ReceiptClient abstracts the go-ethereum client for testing.
type ReceiptClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Config for the verifier.
type Config struct {
	RPCURL   string
	ChainID  int64
	Contract string // ERC-20 token contract the transfers must come from
}

// Option configures the verifier.
type Option func(*Verifier)

// WithClient sets a custom client (useful for testing).
func WithClient(client ReceiptClient) Option {
	return func(v *Verifier) {
		v.client = client
	}
}

// Verifier checks token transfers on-chain.
type Verifier struct {
	client   ReceiptClient
	contract common.Address
	chainID  *big.Int
}

// New creates a verifier, dialing the RPC endpoint unless a client was
// injected.
func New(cfg Config, opts ...Option) (*Verifier, error) {
	if cfg.Contract == "" {
		return nil, fmt.Errorf("chain: token contract address required")
	}

	v := &Verifier{
		contract: common.HexToAddress(cfg.Contract),
		chainID:  big.NewInt(cfg.ChainID),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.client == nil {
		if cfg.RPCURL == "" {
			return nil, fmt.Errorf("%w: RPC URL required", ErrRPCConnection)
		}
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
		}
		v.client = client
	}

	return v, nil
}

// VerifyTransfer reports whether txHash is a mined, successful transaction
// containing a Transfer of at least amount from -> to on the configured
// token contract. Overpayment counts as a match.
func (v *Verifier) VerifyTransfer(ctx context.Context, txHash, from, to string, amount *big.Int) (bool, error) {
	if !txHashRe.MatchString(txHash) {
		return false, fmt.Errorf("%w: %q", ErrInvalidTxHash, txHash)
	}

	fromAddr := common.HexToAddress(strings.TrimSpace(from))
	toAddr := common.HexToAddress(strings.TrimSpace(to))

	// Transient RPC failures are retried; a missing receipt is not, the
	// caller resubmits the proof once the transaction is mined.
	var receipt *types.Receipt
	err := retry.Do(ctx, 3, 200*time.Millisecond, func() error {
		r, rerr := v.client.TransactionReceipt(ctx, common.HexToHash(txHash))
		if rerr != nil {
			if errors.Is(rerr, ethereum.NotFound) {
				return retry.Permanent(rerr)
			}
			return rerr
		}
		receipt = r
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("chain: failed to get receipt: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return false, ErrTxReverted
	}

	for _, log := range receipt.Logs {
		if log.Address != v.contract {
			continue
		}
		if len(log.Topics) < 3 || log.Topics[0] != transferTopic {
			continue
		}

		eventFrom := common.HexToAddress(log.Topics[1].Hex())
		eventTo := common.HexToAddress(log.Topics[2].Hex())
		eventAmount := new(big.Int).SetBytes(log.Data)

		if eventFrom == fromAddr && eventTo == toAddr && eventAmount.Cmp(amount) >= 0 {
			return true, nil
		}
	}

	return false, nil
}

// Close closes the underlying client connection.
func (v *Verifier) Close() {
	if v.client != nil {
		v.client.Close()
	}
}
