package contract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrBindingFailed means the contract binding could not be built for the
	// current wallet state.
	ErrBindingFailed = errors.New("contract binding failed")

	// ErrTransactionRejected means the user declined to sign.
	ErrTransactionRejected = errors.New("transaction rejected by user")

	// ErrNetworkError means submission or confirmation could not be observed.
	ErrNetworkError = errors.New("network error")

	// ErrAlreadyInFlight means a purchase for the same course is already
	// outstanding in this session.
	ErrAlreadyInFlight = errors.New("purchase already in flight")
)

// RevertError carries the contract's rejection reason verbatim.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "transaction reverted"
	}
	return fmt.Sprintf("transaction reverted: %s", e.Reason)
}

// Error(string) selector, the solidity revert-with-reason encoding.
var errorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

var revertStringType, _ = abi.NewType("string", "", nil)

// revertReason extracts a solidity revert reason from an rpc error's data
// payload. Returns false when the error carries no decodable reason.
func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}
	hex, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}
	data, decErr := hexutil.Decode(hex)
	if decErr != nil || len(data) < 4 || !bytes.Equal(data[:4], errorSelector) {
		return "", false
	}
	vals, decErr := abi.Arguments{{Type: revertStringType}}.Unpack(data[4:])
	if decErr != nil {
		return "", false
	}
	return vals[0].(string), true
}

const codeUserRejected = 4001

func isUserRejection(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected
}
