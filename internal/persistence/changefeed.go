package persistence

import (
	"sync"
	"time"
)

// ChangeKind labels a mutation published on the change feed.
type ChangeKind string

const (
	// ChangeCreated is published after a new alarm is stored.
	ChangeCreated ChangeKind = "created"
	// ChangeUpdated is published after an existing alarm is rewritten,
	// including enable/disable flips.
	ChangeUpdated ChangeKind = "updated"
	// ChangeDeleted is published after an alarm is removed.
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes a single mutation of the alarm store.
type Change struct {
	Kind    ChangeKind
	AlarmID int64
	// Alarm carries the record after the mutation; nil for deletions.
	Alarm *Alarm
	At    time.Time
}

// ChangeFeed fans out store mutations to subscribers. The engine itself does
// not consume the feed; it exists for UI reactivity.
type ChangeFeed struct {
	mu   sync.Mutex
	subs map[chan Change]struct{}
}

// NewChangeFeed constructs an empty feed.
func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[chan Change]struct{})}
}

// Subscribe registers a new subscriber channel.
func (f *ChangeFeed) Subscribe() chan Change {
	if f == nil {
		return nil
	}
	ch := make(chan Change, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (f *ChangeFeed) Unsubscribe(ch chan Change) {
	if f == nil || ch == nil {
		return
	}
	f.mu.Lock()
	if _, ok := f.subs[ch]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.subs, ch)
	f.mu.Unlock()
	close(ch)
}

// Publish delivers the change to every subscriber. Slow subscribers drop
// events rather than block the store. Sends happen under f.mu so a channel
// can never be closed by Unsubscribe between selection and send; the sends
// are non-blocking, so holding the lock cannot stall.
func (f *ChangeFeed) Publish(change Change) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
