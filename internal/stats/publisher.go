package stats

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
)

// Update is one message on the dashboard boundary: either a stats snapshot
// or an event summary.
type Update struct {
	Kind     string        `json:"type"` // "stats" or "event"
	Snapshot *Snapshot     `json:"stats,omitempty"`
	Event    *EventSummary `json:"event,omitempty"`
}

// Publisher fans updates out to subscribers. Each subscriber gets a small
// buffered channel; a subscriber that falls behind loses updates rather than
// slowing the pipeline.
type Publisher struct {
	mu          sync.Mutex
	subscribers map[string]chan Update
	closed      bool
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{subscribers: make(map[string]chan Update)}
}

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber and returns its id and channel. The
// id identifies the channel when unsubscribing.
func (p *Publisher) Subscribe() (string, <-chan Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := randomID()
	ch := make(chan Update, 16)
	if !p.closed {
		p.subscribers[id] = ch
	} else {
		close(ch)
	}
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
}

// PublishSnapshot pushes a stats snapshot to every subscriber, dropping it
// for any subscriber whose buffer is full.
func (p *Publisher) PublishSnapshot(s Snapshot) {
	p.publish(Update{Kind: "stats", Snapshot: &s})
}

// PublishEvent pushes an event summary to every subscriber.
func (p *Publisher) PublishEvent(e EventSummary) {
	p.publish(Update{Kind: "event", Event: &e})
}

func (p *Publisher) publish(u Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- u:
		default:
			// subscriber is slow; skip rather than block the tick loop
		}
	}
}

// Close closes every subscriber channel. Later publishes are discarded.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
}
