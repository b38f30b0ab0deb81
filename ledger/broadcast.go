package ledger

import (
	"sync"

	"github.com/hupe1980/taskpilot/logging"
)

// Subscriber receives record snapshots on every ledger mutation. A returned
// error deregisters the subscriber without affecting others.
type Subscriber interface {
	Notify(rec *Record) error
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(rec *Record) error

// Notify implements Subscriber.
func (f SubscriberFunc) Notify(rec *Record) error { return f(rec) }

// Broadcaster fans out record snapshots to registered subscribers. It is
// embedded by the store implementations; Publish is called after each
// successful mutation with an already-cloned record.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]Subscriber
	nextID int
	logger logging.Logger
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster(logger logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Broadcaster{subs: make(map[int]Subscriber), logger: logger}
}

// Subscribe registers a subscriber and returns its cancel function.
func (b *Broadcaster) Subscribe(sub Subscriber) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the snapshot to every subscriber. Each subscriber gets
// its own clone so one consumer cannot mutate another's view. A delivery
// failure deregisters that subscriber only.
func (b *Broadcaster) Publish(rec *Record) {
	b.mu.Lock()
	type pair struct {
		id  int
		sub Subscriber
	}
	subs := make([]pair, 0, len(b.subs))
	for id, sub := range b.subs {
		subs = append(subs, pair{id: id, sub: sub})
	}
	b.mu.Unlock()

	for _, p := range subs {
		if err := p.sub.Notify(rec.Clone()); err != nil {
			b.logger.Warn("ledger.subscriber_dropped", "task_id", rec.TaskID, "error", err)
			b.mu.Lock()
			delete(b.subs, p.id)
			b.mu.Unlock()
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
