package api

import (
	"encoding/json"
	"sync"
)

// SSEEvent is one message on a solve's progress stream.
type SSEEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	EventProgress  = "solve.progress"
	EventCompleted = "solve.completed"
)

// EventBroker fans out solve events to subscribers keyed by solve id.
type EventBroker interface {
	Subscribe(solveID string) chan SSEEvent
	Unsubscribe(solveID string, ch chan SSEEvent)
	Publish(solveID string, evt SSEEvent)
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SSEEvent]struct{} // solveID -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(solveID string) chan SSEEvent {
	ch := make(chan SSEEvent, 16)
	b.mu.Lock()
	if b.subs[solveID] == nil {
		b.subs[solveID] = map[chan SSEEvent]struct{}{}
	}
	b.subs[solveID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(solveID string, ch chan SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[solveID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, solveID)
	}
	close(ch)
}

// Publish never blocks; slow subscribers drop progress events but always
// receive solve.completed.
func (b *Broker) Publish(solveID string, evt SSEEvent) {
	b.mu.Lock()
	for ch := range b.subs[solveID] {
		deliver(ch, evt)
	}
	b.mu.Unlock()
}

// deliver sends without blocking. A full buffer drops progress; for the
// completion event the oldest buffered event is discarded to make room.
// Callers must be the only sender on ch.
func deliver(ch chan SSEEvent, evt SSEEvent) {
	select {
	case ch <- evt:
		return
	default:
	}
	if evt.Type != EventCompleted {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- evt:
	default:
	}
}

func newEvent(typ string, v any) SSEEvent {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte("null")
	}
	return SSEEvent{Type: typ, Data: data}
}
