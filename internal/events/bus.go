// Package events provides an in-process bus for ledger domain events.
// Delivery to external systems is a collaborator concern; the bus exists so
// other components (feeds, debugging hooks, tests) can observe committed
// commands without coupling to the gateway.
package events

import (
	"sync"
	"time"
)

// EventType names what happened on the ledger.
type EventType string

const (
	EventTransfer         EventType = "TRANSFER"
	EventMint             EventType = "MINT"
	EventStake            EventType = "STAKE"
	EventUnstakeRequested EventType = "UNSTAKE_REQUESTED"
	EventUnstakeReleased  EventType = "UNSTAKE_RELEASED"
	EventClaim            EventType = "CLAIM"
	EventGrant            EventType = "GRANT"
)

// LedgerEvent describes one committed ledger command. Events are published
// after commit only; a rolled-back unit of work never produces one.
type LedgerEvent struct {
	Type    EventType
	TxID    string
	Account string
	Amount  int64
	At      time.Time
}

// Bus fans LedgerEvents out to subscribers. Publish never blocks: a
// subscriber whose channel is full misses the event. Subscribers that need
// a complete record must read the transaction log instead.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan LedgerEvent
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan LedgerEvent)}
}

// Subscribe registers a subscriber with the given channel buffer size and
// returns its channel plus an unsubscribe function. The channel is closed on
// unsubscribe or bus close.
func (b *Bus) Subscribe(buffer int) (<-chan LedgerEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buffer < 1 {
		buffer = 1
	}

	ch := make(chan LedgerEvent, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

// Publish delivers the event to every subscriber that has buffer space.
func (b *Bus) Publish(e LedgerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber, drop.
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
