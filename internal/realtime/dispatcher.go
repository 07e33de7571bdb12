package realtime

import (
	"context"
	"sync"
	"time"
)

// Topic identifies one reactively-watched entity set, e.g. the cursors or
// notes belonging to a single board. Writers publish to a topic; subscribers
// re-run their query whenever an event for that topic arrives.
type Topic string

// CursorTopic names the cursor set of a board.
func CursorTopic(boardID string) Topic {
	return Topic("cursors/" + boardID)
}

// NoteTopic names the note set of a board.
func NoteTopic(boardID string) Topic {
	return Topic("notes/" + boardID)
}

// Event signals that the rows behind a topic changed. It intentionally
// carries no row data: consumers fetch a fresh snapshot, so a dropped event
// is repaired by the next one.
type Event struct {
	Topic     Topic
	Timestamp time.Time
}

type subscriber struct {
	id     int64
	stream chan Event
}

// Dispatcher fans change events out to topic subscribers. Delivery is
// best-effort: a subscriber whose buffer is full misses the event.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[Topic]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers interest in a topic. The returned cleanup func is
// idempotent and also runs when ctx is cancelled.
func (d *Dispatcher) Subscribe(ctx context.Context, topic Topic) (<-chan Event, func()) {
	if topic == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.register(topic, sub)
	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregister(topic, sub.id)
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return sub.stream, cleanup
}

// Publish delivers the event to every current subscriber of its topic.
func (d *Dispatcher) Publish(event Event) {
	if event.Topic == "" {
		return
	}
	d.mu.RLock()
	subs := d.subscribers[event.Topic]
	if len(subs) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subs))
	for _, sub := range subs {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(topic Topic, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[topic]; !ok {
		d.subscribers[topic] = make(map[int64]*subscriber)
	}
	d.subscribers[topic][sub.id] = sub
}

func (d *Dispatcher) unregister(topic Topic, subscriberID int64) {
	d.mu.Lock()
	subs := d.subscribers[topic]
	if subs != nil {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(d.subscribers, topic)
		}
	}
	d.mu.Unlock()
}
