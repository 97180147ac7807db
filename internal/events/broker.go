package events

import (
	"sync"
	"time"

	"github.com/conveyor-ci/conveyor/internal/report"
)

// StatusChange describes one run, stage, or step status transition.
type StatusChange struct {
	RunID     string        `json:"run_id"`
	Entity    string        `json:"entity"` // "run", "stage", or "step"
	Name      string        `json:"name"`
	OldStatus report.Status `json:"old_status"`
	NewStatus report.Status `json:"new_status"`
	Timestamp time.Time     `json:"timestamp"`
}

// Broker fans status transitions out to subscribers. Slow subscribers
// are skipped rather than blocked on, so publishing never stalls a run.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan StatusChange]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[chan StatusChange]struct{})}
}

// Subscribe registers a new subscriber channel with the given buffer.
func (b *Broker) Subscribe(buffer int) chan StatusChange {
	ch := make(chan StatusChange, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broker) Unsubscribe(ch chan StatusChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Publish delivers the change to every subscriber with buffer capacity.
func (b *Broker) Publish(change StatusChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- change:
		default:
		}
	}
}
