package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const taskListChannelPrefix = "eventTasks:"

// Notifier fans task-list change notifications out to subscribed sessions
// over a Redis channel per event. The payload is only a change signal; each
// subscriber re-reads the record so it always observes the stored state, not
// a possibly stale broadcast copy.
type Notifier struct {
	redis *redis.Client
}

// NewNotifier creates a Notifier using the provided Redis client.
func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{redis: client}
}

func taskListChannel(eventID string) string {
	return taskListChannelPrefix + eventID
}

// PublishTaskListChanged signals that the event's task-list record was
// rewritten. Delivery is best effort; a publish failure is logged and
// swallowed so a write never fails because of the notification fan-out.
func (n *Notifier) PublishTaskListChanged(ctx context.Context, eventID string) {
	if n == nil || n.redis == nil {
		return
	}
	if err := n.redis.Publish(ctx, taskListChannel(eventID), eventID).Err(); err != nil {
		log.WithField("event_id", eventID).Warnf("publish task list change: %v", err)
	}
}

// SubscribeTaskListChanges delivers one signal per rewrite of the event's
// task-list record until ctx is cancelled. The returned channel is closed on
// cancellation, so cancelling the context is the disposer and is safe to
// invoke any number of times.
func (n *Notifier) SubscribeTaskListChanges(ctx context.Context, eventID string) <-chan struct{} {
	signals := make(chan struct{}, 1)
	if n == nil || n.redis == nil {
		close(signals)
		return signals
	}
	sub := n.redis.Subscribe(ctx, taskListChannel(eventID))
	ch := sub.Channel()
	go func() {
		defer close(signals)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case signals <- struct{}{}:
				default:
					// A pending signal already covers this change.
				}
			}
		}
	}()
	return signals
}
