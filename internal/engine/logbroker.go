package engine

import "sync"

// subscriberBufferSize is the channel buffer for each log subscriber.
// Entries are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// LogEntry is one run log entry and its position in the run's log.
type LogEntry struct {
	Seq  int
	Line string
}

// LogBroker fans run log entries out to live subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a run finishes) receive a closed channel instead of
// blocking forever.
type LogBroker struct {
	mu     sync.Mutex
	topics map[string]*logTopic
}

type logTopic struct {
	subs   map[int]chan LogEntry
	nextID int
	closed bool
}

// NewLogBroker creates a new log broker.
func NewLogBroker() *LogBroker {
	return &LogBroker{
		topics: make(map[string]*logTopic),
	}
}

// Subscribe returns a channel that receives log entries for the given run
// and an unsubscribe function. If the run has already finished (Close was
// called), the returned channel is immediately closed.
func (b *LogBroker) Subscribe(runID string) (<-chan LogEntry, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		t = &logTopic{subs: make(map[int]chan LogEntry)}
		b.topics[runID] = t
	}

	ch := make(chan LogEntry, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an entry to all subscribers of the given run.
// Entries are dropped for subscribers whose buffers are full.
func (b *LogBroker) Publish(runID string, entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- entry:
		default:
			// Drop for slow subscribers so the step loop never blocks on a reader.
		}
	}
}

// Close signals that no more entries will be published for the given run.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel. Closing twice is a no-op.
func (b *LogBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		// Create a closed marker so late subscribers get a closed channel.
		b.topics[runID] = &logTopic{subs: make(map[int]chan LogEntry), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
