package amqp

import (
	"context"
	"log/slog"
	"sync"

	"budgetbook/internal/store"
)

// Publisher sends change messages to the broker.
type Publisher interface {
	PublishChange(ctx context.Context, msg *ChangeMessage) error
}

// Forwarder relays store change events to a Publisher. Store handlers only enqueue;
// a single goroutine publishes, so slow brokers never block writers.
type Forwarder struct {
	pub    Publisher
	events chan store.ChangeEvent

	mu      sync.Mutex
	unsubs  []func()
	dropped int
}

func NewForwarder(pub Publisher, buffer int) *Forwarder {
	if buffer < 1 {
		buffer = 256
	}
	return &Forwarder{pub: pub, events: make(chan store.ChangeEvent, buffer)}
}

// Watch subscribes to changes of the given tables.
func (f *Forwarder) Watch(s store.Store, tables ...store.Table) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tables {
		f.unsubs = append(f.unsubs, s.OnChange(t, f.enqueue))
	}
}

func (f *Forwarder) enqueue(ev store.ChangeEvent) {
	select {
	case f.events <- ev:
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
		slog.Warn("Change notification dropped, buffer full", "table", ev.Table, "id", ev.ID)
	}
}

// Run publishes queued events until ctx is cancelled, then unsubscribes.
func (f *Forwarder) Run(ctx context.Context) {
	defer f.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.events:
			if err := f.pub.PublishChange(ctx, NewChangeMessage(ev)); err != nil {
				slog.WarnContext(ctx, "Failed to publish change notification",
					"error", err,
					"table", ev.Table,
					"id", ev.ID)
			}
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (f *Forwarder) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *Forwarder) stop() {
	f.mu.Lock()
	unsubs := f.unsubs
	f.unsubs = nil
	f.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}
