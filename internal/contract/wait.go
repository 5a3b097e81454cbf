package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// PendingTx is a sent transaction. The call fields let a revert be replayed
// for its reason.
type PendingTx struct {
	Hash     common.Hash
	ChainID  int64
	From     common.Address
	To       *common.Address
	Data     []byte
	Value    *big.Int
	Contract chain.ContractName
	Method   string
}

// TxStatus is the outcome of waiting.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxConfirmed
	TxReverted
)

func (s TxStatus) String() string {
	switch s {
	case TxConfirmed:
		return "confirmed"
	case TxReverted:
		return "reverted"
	default:
		return "pending"
	}
}

// TxResult is what WaitMined learned.
type TxResult struct {
	Status  TxStatus
	Receipt *types.Receipt
	Reason  string
}

// WaitOptions bound a confirmation wait.
type WaitOptions struct {
	Timeout  time.Duration
	PollBase time.Duration
	PollMax  time.Duration
	Metrics  *metrics.Collector
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Timeout <= 0 {
		o.Timeout = 3 * time.Minute
	}
	if o.PollBase <= 0 {
		o.PollBase = time.Second
	}
	if o.PollMax < o.PollBase {
		o.PollMax = 15 * time.Second
		if o.PollMax < o.PollBase {
			o.PollMax = o.PollBase
		}
	}
	return o
}

// ReceiptBackend is what WaitMined polls.
type ReceiptBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// WaitMined polls for the receipt with exponential backoff. Running out of
// time is not a failure: the result is TxPending with ErrTransactionTimedOut,
// and the transaction may still be mined later. A reverted receipt returns a
// RevertError whose reason comes from replaying the call at that block.
func WaitMined(ctx context.Context, b ReceiptBackend, tx *PendingTx, opts WaitOptions) (*TxResult, error) {
	opts = opts.withDefaults()
	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	policy := retrypolicy.NewBuilder[*types.Receipt]().
		HandleIf(func(_ *types.Receipt, err error) bool {
			return err != nil && waitCtx.Err() == nil
		}).
		WithBackoff(opts.PollBase, opts.PollMax).
		WithJitterFactor(0.1).
		WithMaxRetries(-1).
		Build()

	receipt, err := failsafe.With[*types.Receipt](policy).WithContext(waitCtx).Get(func() (*types.Receipt, error) {
		return b.TransactionReceipt(waitCtx, tx.Hash)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if waitCtx.Err() != nil || errors.Is(err, ethereum.NotFound) {
			opts.Metrics.TxWaited(TxPending.String())
			return &TxResult{Status: TxPending}, fmt.Errorf("%w: %s after %s", ErrTransactionTimedOut, tx.Hash.Hex(), opts.Timeout)
		}
		return nil, fmt.Errorf("waiting for %s: %w", tx.Hash.Hex(), err)
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		opts.Metrics.TxWaited(TxConfirmed.String())
		return &TxResult{Status: TxConfirmed, Receipt: receipt}, nil
	}

	res := &TxResult{Status: TxReverted, Receipt: receipt, Reason: replayReason(ctx, b, tx, receipt)}
	opts.Metrics.TxWaited(TxReverted.String())
	return res, &RevertError{Reason: res.Reason, Err: ErrTransactionReverted}
}

// replayReason re-runs the call at the receipt's block. Best effort.
func replayReason(ctx context.Context, b ReceiptBackend, tx *PendingTx, r *types.Receipt) string {
	if tx.To == nil || len(tx.Data) == 0 {
		return ""
	}
	msg := ethereum.CallMsg{From: tx.From, To: tx.To, Data: tx.Data, Value: tx.Value}
	_, err := b.CallContract(ctx, msg, r.BlockNumber)
	reason, _ := revertReason(err)
	return reason
}
