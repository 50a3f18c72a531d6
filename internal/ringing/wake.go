package ringing

import "sync"

// WakeLatch is an in-process WakeSource. It tracks whether the indication is
// held so tests and health reporting can observe the ringing resource, and it
// guarantees release is idempotent.
type WakeLatch struct {
	mu   sync.Mutex
	held int
}

// NewWakeLatch constructs an unheld latch.
func NewWakeLatch() *WakeLatch {
	return &WakeLatch{}
}

// Acquire takes the indication and returns its release function.
func (w *WakeLatch) Acquire(tag string) (func(), error) {
	w.mu.Lock()
	w.held++
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			w.held--
			w.mu.Unlock()
		})
	}, nil
}

// Held reports whether any acquisition is outstanding.
func (w *WakeLatch) Held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.held > 0
}
