package wallet

import (
	"context"
	"encoding/json"
)

// Provider events, named after their EIP-1193 counterparts.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Provider is the wallet-side RPC surface the session talks to. It mirrors
// the injected browser provider: a single request entry point plus event
// subscription. Subscriptions return an unsubscribe handle and must be
// released at session teardown.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	On(event string, handler func(json.RawMessage)) (unsubscribe func())
	Close()
}
