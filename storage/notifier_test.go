package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNotifierPublishReachesSubscriber(t *testing.T) {
	client := testRedis(t)
	n := NewNotifier(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := n.SubscribeTaskListChanges(ctx, "e1")
	// The subscription is established asynchronously; give it a moment.
	time.Sleep(50 * time.Millisecond)

	n.PublishTaskListChanged(ctx, "e1")
	select {
	case <-signals:
	case <-time.After(2 * time.Second):
		t.Fatal("no signal delivered")
	}
}

func TestNotifierChannelsAreScopedPerEvent(t *testing.T) {
	client := testRedis(t)
	n := NewNotifier(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := n.SubscribeTaskListChanges(ctx, "e1")
	time.Sleep(50 * time.Millisecond)

	n.PublishTaskListChanged(ctx, "e2")
	select {
	case <-signals:
		t.Fatal("signal leaked across events")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNotifierCancelClosesChannel(t *testing.T) {
	client := testRedis(t)
	n := NewNotifier(client)
	ctx, cancel := context.WithCancel(context.Background())

	signals := n.SubscribeTaskListChanges(ctx, "e1")
	cancel()
	cancel() // disposing twice is harmless

	select {
	case _, open := <-signals:
		if open {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

func TestNotifierNilClientDegrades(t *testing.T) {
	var n *Notifier
	ctx := context.Background()
	n.PublishTaskListChanged(ctx, "e1")
	if _, open := <-n.SubscribeTaskListChanges(ctx, "e1"); open {
		t.Fatal("nil notifier must hand back a closed channel")
	}
}
