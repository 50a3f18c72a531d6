package persistence

import (
	"testing"
	"time"
)

func TestChangeFeed_PublishReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	feed := NewChangeFeed()
	first := feed.Subscribe()
	second := feed.Subscribe()
	defer feed.Unsubscribe(second)

	change := Change{Kind: ChangeCreated, AlarmID: 7, At: time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)}
	feed.Publish(change)

	for _, ch := range []chan Change{first, second} {
		select {
		case got := <-ch:
			if got.Kind != ChangeCreated || got.AlarmID != 7 {
				t.Fatalf("unexpected change %+v", got)
			}
		default:
			t.Fatalf("expected buffered change to be delivered")
		}
	}

	feed.Unsubscribe(first)
	if _, ok := <-first; ok {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
}

func TestChangeFeed_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	feed := NewChangeFeed()
	ch := feed.Subscribe()
	defer feed.Unsubscribe(ch)

	// No reader: publishing more than the buffer size must not block.
	for i := 0; i < 64; i++ {
		feed.Publish(Change{Kind: ChangeUpdated, AlarmID: int64(i)})
	}

	if got := <-ch; got.AlarmID != 0 {
		t.Fatalf("expected oldest buffered change first, got %+v", got)
	}
}

func TestChangeFeed_PublishRacingUnsubscribeDoesNotPanic(t *testing.T) {
	t.Parallel()

	feed := NewChangeFeed()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			feed.Publish(Change{Kind: ChangeUpdated, AlarmID: int64(i)})
		}
	}()

	// Churn subscriptions while the publisher runs. A publish landing on a
	// channel mid-unsubscribe must never hit a closed channel.
	for i := 0; i < 10000; i++ {
		ch := feed.Subscribe()
		feed.Unsubscribe(ch)
	}
	<-done
}

func TestChangeFeed_UnsubscribeTwiceIsSafe(t *testing.T) {
	t.Parallel()

	feed := NewChangeFeed()
	ch := feed.Subscribe()
	feed.Unsubscribe(ch)
	feed.Unsubscribe(ch)
	feed.Publish(Change{Kind: ChangeDeleted, AlarmID: 1})
}
