package events

import (
	"sync"
	"time"
)

// Type enumerates strategy lifecycle notifications.
type Type string

const (
	TypeStrategyCreated        Type = "strategyCreated"
	TypeStrategyCreationFailed Type = "strategyCreationFailed"
	TypeStrategyCancelled      Type = "strategyCancelled"
	TypeLowBalanceAlert        Type = "lowBalanceAlert"
	TypeStrategyError          Type = "strategyError"
	TypeTopupObserved          Type = "topupObserved"
)

// Event is a domain notification about one strategy. Balance is a decimal
// string to avoid float precision issues when consumed by UI layers.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	Type       Type      `json:"type"`
	StrategyID string    `json:"strategy_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	Balance    string    `json:"balance,omitempty"`
}

// Bus fans out events to all subscribers via buffered channels. Emitters
// never know whether anything is listening.
type Bus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewBus creates a bus with the given per-subscriber buffer.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping if a reader is slow.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
