package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/chains"
	"github.com/course-marketplace/storefront/internal/events"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// State is an immutable snapshot of the session. Per-account fields are only
// populated while Status is connected; every transition away from connected
// zeroes them, so a balance without an address is unrepresentable.
type State struct {
	Status    Status `json:"status"`
	Address   string `json:"address,omitempty"`
	Balance   string `json:"balance"`
	NetworkID string `json:"networkId,omitempty"`
	ENSName   string `json:"ensName,omitempty"`
	ENSAvatar string `json:"ensAvatar,omitempty"`
}

func (s State) IsConnected() bool  { return s.Status == StatusConnected }
func (s State) IsConnecting() bool { return s.Status == StatusConnecting }

func emptyState() State {
	return State{Status: StatusDisconnected, Balance: "0"}
}

// Session is the single source of truth for wallet connection state. All
// reads of address/network go through it; no component caches them beyond a
// single operation.
type Session struct {
	provider Provider
	ens      *ENSResolver // nil disables ENS lookups
	bus      *events.Bus
	log      *zap.Logger

	mu    sync.Mutex
	state State
}

func NewSession(provider Provider, ens *ENSResolver, bus *events.Bus, log *zap.Logger) *Session {
	return &Session{
		provider: provider,
		ens:      ens,
		bus:      bus,
		log:      log,
		state:    emptyState(),
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	return st
}

// commit applies fn to the state under the lock and publishes the new
// snapshot as a single atomic update.
func (s *Session) commit(fn func(*State)) State {
	s.mu.Lock()
	fn(&s.state)
	st := s.state
	s.mu.Unlock()
	s.publish(st)
	return st
}

func (s *Session) publish(st State) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:    events.EventWalletStateChanged,
		Payload: map[string]any{"state": st},
	})
}

// OnChange subscribes to state snapshots. The handler also sees events other
// components publish on the bus; non-wallet events are filtered out. Without
// a bus no snapshots are delivered and the returned handle is a no-op.
func (s *Session) OnChange(handler func(State)) func() {
	if s.bus == nil {
		return func() {}
	}
	return s.bus.Subscribe(func(e events.Event) {
		if e.Type != events.EventWalletStateChanged {
			return
		}
		if st, ok := e.Payload["state"].(State); ok {
			handler(st)
		}
	})
}

// Connect requests account access and, on success, adopts the first returned
// account and refreshes balance/network/ENS. A second Connect while one is in
// flight returns the in-progress snapshot without touching the provider. The
// connecting status is released on every exit path.
func (s *Session) Connect(ctx context.Context) (State, error) {
	if s.provider == nil {
		return s.State(), ErrProviderUnavailable
	}

	s.mu.Lock()
	st := s.state
	if st.Status == StatusConnecting {
		s.mu.Unlock()
		return st, nil
	}
	prev := st
	s.state.Status = StatusConnecting
	st = s.state
	s.mu.Unlock()
	s.publish(st)

	raw, err := s.provider.Request(ctx, "eth_requestAccounts")
	if err != nil {
		// Restore the pre-connect state; a rejection never clears an
		// already-connected address.
		s.commit(func(state *State) { *state = prev })
		if isUserRejection(err) {
			return s.State(), fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		return s.State(), fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		s.commit(func(state *State) { *state = prev })
		return s.State(), fmt.Errorf("%w: malformed accounts response: %v", ErrProviderUnavailable, err)
	}
	if len(accounts) == 0 {
		st = s.commit(func(state *State) { *state = emptyState() })
		return st, nil
	}

	addr := strings.ToLower(accounts[0])
	s.commit(func(state *State) {
		*state = emptyState()
		state.Status = StatusConnected
		state.Address = addr
	})

	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("post-connect refresh failed", zap.Error(err))
	}

	s.log.Info("wallet connected", zap.String("address", addr))
	return s.State(), nil
}

// Resume silently adopts an already-authorized account at startup, without
// prompting. Errors are absorbed; an unauthorized provider just leaves the
// session disconnected.
func (s *Session) Resume(ctx context.Context) State {
	if s.provider == nil {
		return s.State()
	}
	raw, err := s.provider.Request(ctx, "eth_accounts")
	if err != nil {
		s.log.Debug("wallet resume probe failed", zap.Error(err))
		return s.State()
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil || len(accounts) == 0 {
		return s.State()
	}

	addr := strings.ToLower(accounts[0])
	s.commit(func(state *State) {
		*state = emptyState()
		state.Status = StatusConnected
		state.Address = addr
	})
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("resume refresh failed", zap.Error(err))
	}
	return s.State()
}

// Disconnect resets the session locally. Injected providers have no
// disconnect primitive, so the provider is never asked.
func (s *Session) Disconnect() State {
	st := s.commit(func(state *State) { *state = emptyState() })
	s.log.Info("wallet disconnected")
	return st
}

// SwitchNetwork asks the provider to switch chains, adding the chain from the
// registry configuration when the provider does not know it yet.
func (s *Session) SwitchNetwork(ctx context.Context, chainID string) error {
	if s.provider == nil {
		return ErrProviderUnavailable
	}
	if !chains.IsSupported(chainID) {
		return fmt.Errorf("%w: %s", ErrUnsupportedNetwork, chainID)
	}

	_, err := s.provider.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": chainID})
	if err != nil && isChainNotAdded(err) {
		params, _ := chains.AddChainParams(chainID)
		_, err = s.provider.Request(ctx, "wallet_addEthereumChain", params)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkSwitchFailed, err)
	}

	s.commit(func(state *State) {
		if state.Status == StatusConnected {
			state.NetworkID = chainID
		}
	})
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("post-switch refresh failed", zap.Error(err))
	}
	s.log.Info("network switched", zap.String("chain_id", chainID), zap.String("network", chains.NameOf(chainID)))
	return nil
}

// Refresh re-reads balance, chain id and (mainnet only) ENS metadata, and
// writes all of them in one atomic commit. No-op when disconnected. ENS
// failures are absorbed; they never block the balance/network update.
func (s *Session) Refresh(ctx context.Context) error {
	st := s.State()
	if st.Status != StatusConnected {
		return nil
	}
	addr := st.Address

	balRaw, err := s.provider.Request(ctx, "eth_getBalance", addr, "latest")
	if err != nil {
		if isUnauthorized(err) {
			// The account is no longer authorized for this origin.
			s.Disconnect()
		}
		return fmt.Errorf("balance query failed: %w", err)
	}
	balance, err := decodeQuantity(balRaw)
	if err != nil {
		return fmt.Errorf("malformed balance: %w", err)
	}

	chainRaw, err := s.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return fmt.Errorf("chain id query failed: %w", err)
	}
	var chainID string
	if err := json.Unmarshal(chainRaw, &chainID); err != nil {
		return fmt.Errorf("malformed chain id: %w", err)
	}

	var ensName, ensAvatar string
	if chains.IsMainnet(chainID) && s.ens != nil {
		ensName, ensAvatar = s.ens.Lookup(ctx, addr)
	}

	s.commit(func(state *State) {
		// The session may have moved on while we were querying; a stale
		// refresh must not resurrect old per-account fields.
		if state.Status != StatusConnected || state.Address != addr {
			return
		}
		state.Balance = balance
		state.NetworkID = chainID
		state.ENSName = ensName
		state.ENSAvatar = ensAvatar
	})
	return nil
}

// Watch wires provider push events into the session. Account and chain
// changes reuse the same refresh path as user-initiated operations. The
// returned handle unsubscribes both events and is safe to call more than
// once.
func (s *Session) Watch(ctx context.Context) func() {
	unsubAccounts := s.provider.On(EventAccountsChanged, func(raw json.RawMessage) {
		var accounts []string
		if err := json.Unmarshal(raw, &accounts); err != nil {
			s.log.Warn("malformed accountsChanged payload", zap.Error(err))
			return
		}
		if len(accounts) == 0 {
			s.Disconnect()
			return
		}
		addr := strings.ToLower(accounts[0])
		s.commit(func(state *State) {
			*state = emptyState()
			state.Status = StatusConnected
			state.Address = addr
		})
		if err := s.Refresh(ctx); err != nil {
			s.log.Warn("refresh after account change failed", zap.Error(err))
		}
	})

	unsubChain := s.provider.On(EventChainChanged, func(raw json.RawMessage) {
		var chainID string
		if err := json.Unmarshal(raw, &chainID); err != nil {
			s.log.Warn("malformed chainChanged payload", zap.Error(err))
			return
		}
		s.commit(func(state *State) {
			if state.Status == StatusConnected {
				state.NetworkID = chainID
			}
		})
		if err := s.Refresh(ctx); err != nil {
			s.log.Warn("refresh after chain change failed", zap.Error(err))
		}
	})

	return func() {
		unsubAccounts()
		unsubChain()
	}
}

// decodeQuantity turns a JSON-encoded hex quantity into a decimal string.
func decodeQuantity(raw json.RawMessage) (string, error) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return "", err
	}
	n, err := hexutil.DecodeBig(hex)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
