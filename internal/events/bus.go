package events

import (
	"sync"

	"go.uber.org/zap"
)

// Bus is an in-process fan-out for session events. The wallet and contract
// sessions are process-local singletons, so events never cross a process
// boundary and need no broker behind them.
type Bus struct {
	log    *zap.Logger
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log, subs: make(map[int]func(Event))}
}

func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func (b *Bus) Subscribe(handler func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}
