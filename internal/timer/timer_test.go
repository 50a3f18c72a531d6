package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fireRecorder struct {
	mu    sync.Mutex
	fires []int64
	ch    chan int64
}

func newFireRecorder() *fireRecorder {
	return &fireRecorder{ch: make(chan int64, 16)}
}

func (f *fireRecorder) record(id int64, _ time.Time) {
	f.mu.Lock()
	f.fires = append(f.fires, id)
	f.mu.Unlock()
	f.ch <- id
}

func (f *fireRecorder) wait(t *testing.T) int64 {
	t.Helper()
	select {
	case id := <-f.ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fire")
		return 0
	}
}

func (f *fireRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fires)
}

func TestRegistry_ArmFires(t *testing.T) {
	t.Parallel()

	rec := newFireRecorder()
	reg := NewRegistry(rec.record, nil, nil)
	defer reg.Close()

	if err := reg.Arm(1, time.Now().Add(10*time.Millisecond)); err != nil {
		t.Fatalf("failed to arm: %v", err)
	}

	if id := rec.wait(t); id != 1 {
		t.Fatalf("expected fire for id 1, got %d", id)
	}
	if _, pending := reg.Pending(1); pending {
		t.Fatalf("expected registration to be consumed after fire")
	}
}

func TestRegistry_RearmReplaces(t *testing.T) {
	t.Parallel()

	rec := newFireRecorder()
	reg := NewRegistry(rec.record, nil, nil)
	defer reg.Close()

	// First registration is far out; the replacement fires promptly.
	if err := reg.Arm(1, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("failed to arm: %v", err)
	}
	if err := reg.Arm(1, time.Now().Add(10*time.Millisecond)); err != nil {
		t.Fatalf("failed to re-arm: %v", err)
	}

	rec.wait(t)
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("expected exactly one fire, got %d", rec.count())
	}
}

func TestRegistry_DisarmCancels(t *testing.T) {
	t.Parallel()

	rec := newFireRecorder()
	reg := NewRegistry(rec.record, nil, nil)
	defer reg.Close()

	if err := reg.Arm(1, time.Now().Add(30*time.Millisecond)); err != nil {
		t.Fatalf("failed to arm: %v", err)
	}
	if err := reg.Disarm(1); err != nil {
		t.Fatalf("failed to disarm: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("expected no fires after disarm, got %d", rec.count())
	}

	if err := reg.Disarm(42); err != nil {
		t.Fatalf("expected disarm of unknown id to be a no-op, got %v", err)
	}
}

func TestRegistry_PendingReportsInstant(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil, nil, nil)
	defer reg.Close()

	at := time.Now().Add(time.Hour)
	if err := reg.Arm(5, at); err != nil {
		t.Fatalf("failed to arm: %v", err)
	}

	got, ok := reg.Pending(5)
	if !ok || !got.Equal(at) {
		t.Fatalf("expected pending fire at %v, got %v (%v)", at, got, ok)
	}
}

func TestRegistry_ArmAfterCloseFails(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil, nil, nil)
	reg.Close()
	reg.Close()

	if err := reg.Arm(1, time.Now()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

type flakyPort struct {
	mu       sync.Mutex
	failures int
	armed    []time.Time
}

func (p *flakyPort) Arm(id int64, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("transient failure")
	}
	p.armed = append(p.armed, at)
	return nil
}

func (p *flakyPort) Disarm(id int64) error { return nil }

func TestArmWithRetry(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}

	t.Run("recovers from transient failures", func(t *testing.T) {
		t.Parallel()
		port := &flakyPort{failures: 2}
		if err := ArmWithRetry(context.Background(), port, 1, time.Now(), cfg); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(port.armed) != 1 {
			t.Fatalf("expected one successful arm, got %d", len(port.armed))
		}
	})

	t.Run("gives up after exhausting retries", func(t *testing.T) {
		t.Parallel()
		port := &flakyPort{failures: 10}
		if err := ArmWithRetry(context.Background(), port, 1, time.Now(), cfg); err == nil {
			t.Fatalf("expected failure after retries")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		port := &flakyPort{failures: 10}
		if err := ArmWithRetry(ctx, port, 1, time.Now(), cfg); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
