package stream

import (
	"context"
	"sync"
	"time"
)

// TransactionEvent mirrors an executed account transaction for stream
// consumers. Amounts travel as two-digit decimal strings, same as the API.
type TransactionEvent struct {
	AccountID  string    `json:"account_id"`
	OwnerID    string    `json:"owner_id"`
	Kind       string    `json:"kind"`
	Symbol     string    `json:"symbol,omitempty"`
	Quantity   int64     `json:"quantity,omitempty"`
	Amount     string    `json:"amount"`
	SharePrice string    `json:"share_price,omitempty"`
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream fans executed transactions out to all active subscribers (SSE
// clients, tooling).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan TransactionEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan TransactionEvent)}
}

// Subscribe registers a subscriber and returns its event channel. The
// channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan TransactionEvent {
	ch := make(chan TransactionEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fans the event out to all subscribers.
func (s *Stream) Publish(evt TransactionEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when a subscriber is slow to avoid blocking the ledger path.
		}
	}
}
