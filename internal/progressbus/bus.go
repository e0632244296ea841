// Package progressbus fans ingestion stage events out to subscribers
// joined to a conversation's progress group (§4.5). The in-memory
// fan-out here and the websocket hub in hub.go are both grounded on the
// teacher corpus's connection-manager idiom (map + sync.RWMutex), pulled
// from chuimengdaoxizhou-AIassistant's task_ingestion_service since the
// teacher itself has no pub/sub component.
package progressbus

import (
	"sync"

	"github.com/contexta-labs/filingsrag/internal/core"
)

const subscriberBuffer = 32

// InMemoryBus implements core.ProgressBus with per-conversation
// subscriber channel groups. Each event goes to whoever is currently
// subscribed and has buffer room; an event for a subscriber whose buffer
// is full is dropped, not retried, and there is no durable replay.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan core.ProgressEvent]struct{}
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subscribers: make(map[string]map[chan core.ProgressEvent]struct{})}
}

var _ core.ProgressBus = (*InMemoryBus)(nil)

// Publish fans event out to every subscriber currently joined to
// conversationID. A slow or stalled subscriber is skipped rather than
// blocking the publisher, since stage progress is best-effort.
func (b *InMemoryBus) Publish(conversationID string, event core.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[conversationID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe joins conversationID's group and returns a receive channel
// plus an idempotent unsubscribe function.
func (b *InMemoryBus) Subscribe(conversationID string) (<-chan core.ProgressEvent, func()) {
	ch := make(chan core.ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	group, ok := b.subscribers[conversationID]
	if !ok {
		group = make(map[chan core.ProgressEvent]struct{})
		b.subscribers[conversationID] = group
	}
	group[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if group, ok := b.subscribers[conversationID]; ok {
				delete(group, ch)
				if len(group) == 0 {
					delete(b.subscribers, conversationID)
				}
			}
			close(ch)
		})
	}

	return ch, unsubscribe
}
