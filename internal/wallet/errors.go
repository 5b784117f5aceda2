package wallet

import (
	"errors"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrProviderUnavailable means no wallet provider is reachable. This is a
	// normal, user-visible condition, not a crash.
	ErrProviderUnavailable = errors.New("wallet provider unavailable")

	// ErrUserRejected means the user declined the provider prompt.
	ErrUserRejected = errors.New("request rejected by user")

	// ErrUnsupportedNetwork means the chain id is not in the registry.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrNetworkSwitchFailed covers provider errors during a chain switch
	// other than the "chain not added" signal, which has its own fallback.
	ErrNetworkSwitchFailed = errors.New("network switch failed")
)

// EIP-1193 provider error codes.
const (
	codeUserRejected  = 4001
	codeUnauthorized  = 4100
	codeChainNotAdded = 4902
)

// ErrorCode extracts the provider error code, or 0 when the error carries
// none (transport failures, context cancellation).
func ErrorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}

func isUserRejection(err error) bool {
	return ErrorCode(err) == codeUserRejected
}

func isChainNotAdded(err error) bool {
	return ErrorCode(err) == codeChainNotAdded
}

func isUnauthorized(err error) bool {
	return ErrorCode(err) == codeUnauthorized
}
