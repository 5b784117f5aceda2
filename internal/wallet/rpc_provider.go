package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// RPCProvider adapts a JSON-RPC node endpoint to the Provider surface. A
// headless process has no injected wallet, so account authorization maps to
// the node's own account list (dev nodes and signers expose unlocked
// accounts), and accountsChanged/chainChanged are emulated by polling.
type RPCProvider struct {
	client       *rpc.Client
	log          *zap.Logger
	pollInterval time.Duration
	cancel       context.CancelFunc

	mu           sync.Mutex
	nextID       int
	subs         map[string]map[int]func(json.RawMessage)
	lastAccounts json.RawMessage
	lastChainID  json.RawMessage
}

func DialRPC(ctx context.Context, url string, pollInterval time.Duration, log *zap.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	p := &RPCProvider{
		client:       client,
		log:          log,
		pollInterval: pollInterval,
		cancel:       cancel,
		subs:         make(map[string]map[int]func(json.RawMessage)),
	}
	go p.watch(watchCtx)
	return p, nil
}

func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	// Nodes have no interactive prompt; requesting access degrades to
	// listing what the node already authorizes.
	if method == "eth_requestAccounts" {
		method = "eth_accounts"
	}

	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, err
	}
	return raw, nil
}

func (p *RPCProvider) On(event string, handler func(json.RawMessage)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	if p.subs[event] == nil {
		p.subs[event] = make(map[int]func(json.RawMessage))
	}
	p.subs[event][id] = handler
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs[event], id)
			p.mu.Unlock()
		})
	}
}

func (p *RPCProvider) Close() {
	p.cancel()
	p.client.Close()
}

func (p *RPCProvider) watch(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *RPCProvider) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.pollInterval)
	defer cancel()

	var accounts json.RawMessage
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err == nil {
		p.mu.Lock()
		changed := p.lastAccounts != nil && !bytes.Equal(accounts, p.lastAccounts)
		p.lastAccounts = accounts
		p.mu.Unlock()
		if changed {
			p.emit(EventAccountsChanged, accounts)
		}
	}

	var chainID json.RawMessage
	if err := p.client.CallContext(ctx, &chainID, "eth_chainId"); err == nil {
		p.mu.Lock()
		changed := p.lastChainID != nil && !bytes.Equal(chainID, p.lastChainID)
		p.lastChainID = chainID
		p.mu.Unlock()
		if changed {
			p.emit(EventChainChanged, chainID)
		}
	}
}

func (p *RPCProvider) emit(event string, payload json.RawMessage) {
	p.mu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(p.subs[event]))
	for _, h := range p.subs[event] {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	p.log.Debug("provider event", zap.String("event", event))
	for _, h := range handlers {
		h(payload)
	}
}
