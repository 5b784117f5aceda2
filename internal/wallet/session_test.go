package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/chains"
	"github.com/course-marketplace/storefront/internal/events"
)

// rpcError satisfies the go-ethereum rpc.Error interface.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

type fakeProvider struct {
	mu       sync.Mutex
	results  map[string]any // json string or error
	gates    map[string]chan struct{}
	calls    []string
	handlers map[string][]func(json.RawMessage)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		results:  make(map[string]any),
		gates:    make(map[string]chan struct{}),
		handlers: make(map[string][]func(json.RawMessage)),
	}
}

func (p *fakeProvider) stub(method string, v any) {
	p.mu.Lock()
	p.results[method] = v
	p.mu.Unlock()
}

func (p *fakeProvider) gate(method string) chan struct{} {
	ch := make(chan struct{})
	p.mu.Lock()
	p.gates[method] = ch
	p.mu.Unlock()
	return ch
}

func (p *fakeProvider) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls = append(p.calls, method)
	gate := p.gates[method]
	v := p.results[method]
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	switch t := v.(type) {
	case error:
		return nil, t
	case string:
		return json.RawMessage(t), nil
	default:
		return nil, fmt.Errorf("no stub for %s", method)
	}
}

func (p *fakeProvider) On(event string, handler func(json.RawMessage)) func() {
	p.mu.Lock()
	p.handlers[event] = append(p.handlers[event], handler)
	p.mu.Unlock()
	return func() {}
}

func (p *fakeProvider) Close() {}

func (p *fakeProvider) emit(event, payload string) {
	p.mu.Lock()
	handlers := append([]func(json.RawMessage){}, p.handlers[event]...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(json.RawMessage(payload))
	}
}

func (p *fakeProvider) callCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.calls {
		if m == method {
			n++
		}
	}
	return n
}

func newTestSession(p Provider) *Session {
	return NewSession(p, nil, events.NewBus(zap.NewNop()), zap.NewNop())
}

func stubConnected(p *fakeProvider) {
	p.stub("eth_requestAccounts", `["0xAbCdEf1234567890abcdef1234567890ABCDEF12"]`)
	p.stub("eth_getBalance", `"0xde0b6b3a7640000"`) // 1 ether
	p.stub("eth_chainId", `"0xaa36a7"`)
}

func TestConnectWithoutProvider(t *testing.T) {
	s := newTestSession(nil)

	st, err := s.Connect(context.Background())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if st.IsConnected() || st.IsConnecting() {
		t.Errorf("state mutated on failed connect: %+v", st)
	}
}

func TestConnectSuccess(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)

	st, err := s.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !st.IsConnected() {
		t.Fatal("expected connected state")
	}
	if st.Address != "0xabcdef1234567890abcdef1234567890abcdef12" {
		t.Errorf("address not normalized: %q", st.Address)
	}
	if st.Balance != "1000000000000000000" {
		t.Errorf("balance = %q, want 1000000000000000000", st.Balance)
	}
	if st.NetworkID != "0xaa36a7" {
		t.Errorf("networkId = %q", st.NetworkID)
	}
	if st.IsConnecting() {
		t.Error("connecting flag not released")
	}
	if st.ENSName != "" {
		t.Errorf("ens resolved off mainnet: %q", st.ENSName)
	}
}

func TestConnectUserRejected(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_requestAccounts", &rpcError{code: 4001, msg: "User rejected the request."})
	s := newTestSession(p)

	_, err := s.Connect(context.Background())
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("err = %v, want ErrUserRejected", err)
	}
	st := s.State()
	if st.IsConnected() || st.IsConnecting() {
		t.Errorf("unexpected state after rejection: %+v", st)
	}
}

func TestConnectEmptyAccounts(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_requestAccounts", `[]`)
	s := newTestSession(p)

	st, err := s.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if st.IsConnected() || st.IsConnecting() {
		t.Errorf("expected disconnected state, got %+v", st)
	}
}

func TestConnectSuppressesConcurrentConnect(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	gate := p.gate("eth_requestAccounts")
	s := newTestSession(p)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Connect(context.Background())
	}()

	// Wait until the first connect reaches the provider.
	deadline := time.After(2 * time.Second)
	for s.State().Status != StatusConnecting {
		select {
		case <-deadline:
			t.Fatal("first connect never entered connecting state")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	st, err := s.Connect(context.Background())
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if !st.IsConnecting() {
		t.Errorf("second connect should observe the in-flight state, got %+v", st)
	}
	if n := p.callCount("eth_requestAccounts"); n != 1 {
		t.Errorf("provider asked %d times, want 1", n)
	}

	close(gate)
	<-done
	if !s.State().IsConnected() {
		t.Error("first connect did not complete")
	}
	if s.State().IsConnecting() {
		t.Error("connecting flag not released after settle")
	}
}

func TestDisconnectResetsEverything(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	p.stub("eth_chainId", `"0x1"`)
	s := newTestSession(p)

	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	st := s.Disconnect()
	want := State{Status: StatusDisconnected, Balance: "0"}
	if st != want {
		t.Errorf("disconnect left residue: %+v", st)
	}
	// Provider is never asked to disconnect.
	if p.callCount("wallet_revokePermissions") != 0 {
		t.Error("disconnect must be a local transition")
	}
}

func TestSwitchNetworkUnsupported(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)
	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	before := s.State().NetworkID

	err := s.SwitchNetwork(context.Background(), "0x38")
	if !errors.Is(err, ErrUnsupportedNetwork) {
		t.Fatalf("err = %v, want ErrUnsupportedNetwork", err)
	}
	if s.State().NetworkID != before {
		t.Error("networkId mutated on unsupported switch")
	}
	if p.callCount("wallet_switchEthereumChain") != 0 {
		t.Error("provider called for unsupported chain")
	}
}

func TestSwitchNetworkSuccess(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	p.stub("eth_chainId", `"0x1"`)
	s := newTestSession(p)
	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	p.stub("wallet_switchEthereumChain", `null`)
	if err := s.SwitchNetwork(context.Background(), chains.EthereumMainnet); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if s.State().NetworkID != chains.EthereumMainnet {
		t.Errorf("networkId = %q, want %q", s.State().NetworkID, chains.EthereumMainnet)
	}
}

func TestSwitchNetworkAddsUnknownChain(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)
	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	p.stub("wallet_switchEthereumChain", &rpcError{code: 4902, msg: "Unrecognized chain ID"})
	p.stub("wallet_addEthereumChain", `null`)

	if err := s.SwitchNetwork(context.Background(), chains.EthereumSepolia); err != nil {
		t.Fatalf("switch with add fallback: %v", err)
	}
	if p.callCount("wallet_addEthereumChain") != 1 {
		t.Error("add-chain fallback not attempted")
	}
}

func TestSwitchNetworkProviderError(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)
	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	before := s.State().NetworkID

	p.stub("wallet_switchEthereumChain", &rpcError{code: 4001, msg: "User rejected the request."})
	err := s.SwitchNetwork(context.Background(), chains.EthereumMainnet)
	if !errors.Is(err, ErrNetworkSwitchFailed) {
		t.Fatalf("err = %v, want ErrNetworkSwitchFailed", err)
	}
	if s.State().NetworkID != before {
		t.Error("networkId mutated on failed switch")
	}
}

func TestRefreshDisconnectedIsNoop(t *testing.T) {
	p := newFakeProvider()
	s := newTestSession(p)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh while disconnected: %v", err)
	}
	if p.callCount("eth_getBalance") != 0 {
		t.Error("provider queried while disconnected")
	}
}

func TestRefreshUnauthorizedDisconnects(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)
	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	p.stub("eth_getBalance", &rpcError{code: 4100, msg: "The requested account has not been authorized by the user."})
	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh to report the failure")
	}

	st := s.State()
	if st.IsConnected() {
		t.Fatal("session still connected after authorization was revoked")
	}
	if st.Address != "" || st.Balance != "0" || st.NetworkID != "" {
		t.Errorf("fields not reset: %+v", st)
	}
}

func TestAccountsChangedToEmptyDisconnects(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)
	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	unsub := s.Watch(context.Background())
	defer unsub()

	p.emit(EventAccountsChanged, `[]`)
	st := s.State()
	if st.IsConnected() {
		t.Fatal("session still connected after zero-account event")
	}
	if st.Address != "" || st.Balance != "0" || st.NetworkID != "" {
		t.Errorf("fields not reset: %+v", st)
	}
}

func TestAccountsChangedAdoptsNewAccount(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)
	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	unsub := s.Watch(context.Background())
	defer unsub()

	p.stub("eth_getBalance", `"0x0"`)
	p.emit(EventAccountsChanged, `["0xFFFF567890abcdef1234567890abcdef12345678"]`)

	st := s.State()
	if st.Address != "0xffff567890abcdef1234567890abcdef12345678" {
		t.Errorf("new account not adopted: %q", st.Address)
	}
	if st.Balance != "0" {
		t.Errorf("balance not refreshed for new account: %q", st.Balance)
	}
}

func TestChainChangedRefreshes(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)
	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	unsub := s.Watch(context.Background())
	defer unsub()

	p.stub("eth_chainId", `"0x1"`)
	p.emit(EventChainChanged, `"0x1"`)

	if s.State().NetworkID != "0x1" {
		t.Errorf("networkId = %q, want 0x1", s.State().NetworkID)
	}
}

func TestResumeAdoptsAuthorizedAccount(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	p.stub("eth_accounts", `["0xAbCdEf1234567890abcdef1234567890ABCDEF12"]`)
	s := newTestSession(p)

	st := s.Resume(context.Background())
	if !st.IsConnected() {
		t.Fatal("resume did not adopt authorized account")
	}
	if p.callCount("eth_requestAccounts") != 0 {
		t.Error("resume must not prompt")
	}
}

func TestResumeWithoutAuthorizationStaysDisconnected(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_accounts", `[]`)
	s := newTestSession(p)

	if st := s.Resume(context.Background()); st.IsConnected() {
		t.Error("resume connected without authorization")
	}
}

func TestSessionWithoutBus(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := NewSession(p, nil, nil, zap.NewNop())

	unsub := s.OnChange(func(State) {})
	if unsub == nil {
		t.Fatal("OnChange returned nil handle")
	}
	unsub()

	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect without bus: %v", err)
	}
	if !s.State().IsConnected() {
		t.Error("session not connected")
	}
}

func TestOnChangePublishesSnapshots(t *testing.T) {
	p := newFakeProvider()
	stubConnected(p)
	s := newTestSession(p)

	var mu sync.Mutex
	var seen []Status
	unsub := s.OnChange(func(st State) {
		mu.Lock()
		seen = append(seen, st.Status)
		mu.Unlock()
	})
	defer unsub()

	if _, err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	s.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("no state transitions observed")
	}
	if seen[0] != StatusConnecting {
		t.Errorf("first transition = %s, want connecting", seen[0])
	}
	if seen[len(seen)-1] != StatusDisconnected {
		t.Errorf("last transition = %s, want disconnected", seen[len(seen)-1])
	}
}
