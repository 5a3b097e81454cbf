package contract

import (
	"errors"
	"strings"

	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Resolution errors.
var (
	ErrUnknownNetwork        = errors.New("unknown network")
	ErrContractNotConfigured = errors.New("contract not configured on this network")
	ErrContractNotDeployed   = errors.New("no contract code at configured address")
	ErrNotConnected          = wallet.ErrNotConnected
	ErrStaleHandle           = errors.New("contract handle is stale: account or network changed since it was resolved")
	ErrReadOnlyHandle        = errors.New("contract handle is read-only")
)

// Read and write errors.
var (
	ErrRPCUnreachable      = errors.New("rpc unreachable")
	ErrCallReverted        = errors.New("call reverted")
	ErrTransactionRejected = errors.New("transaction rejected in wallet")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrTransactionTimedOut = errors.New("transaction not mined before timeout")
)

// RevertError carries a decoded revert reason. It unwraps to
// ErrCallReverted or ErrTransactionReverted.
type RevertError struct {
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return e.Err.Error() + " without reason"
	}
	return e.Err.Error() + ": " + e.Reason
}

func (e *RevertError) Unwrap() error { return e.Err }

// revertReason extracts the reason from a node or provider error, decoding
// Error(string) payloads. ok is false when err is not a revert.
func revertReason(err error) (reason string, ok bool) {
	if err == nil {
		return "", false
	}
	var de gethrpc.DataError
	if errors.As(err, &de) {
		if s, isStr := de.ErrorData().(string); isStr {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				if r, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return r, true
				}
			}
		}
		return strings.TrimPrefix(strings.TrimPrefix(de.Error(), "execution reverted"), ": "), true
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		r := strings.TrimPrefix(msg[i:], "execution reverted")
		return strings.TrimPrefix(r, ": "), true
	}
	return "", false
}
