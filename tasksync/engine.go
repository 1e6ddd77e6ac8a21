// Package tasksync keeps a session's in-memory task list consistent with the
// shared task-list record. Every mutation is read-modify-write over the whole
// list: the engine transforms its current snapshot and overwrites the stored
// record in full. Two sessions mutating the same event can race; the second
// overwrite wins and silently discards the first one's effect. That hazard is
// inherited behavior and is pinned by tests, not mitigated here.
package tasksync

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"simcha-api/domain"
	"simcha-api/storage"
)

// Store is the slice of the storage layer the engine reads and rewrites.
type Store interface {
	GetEventTasks(ctx context.Context, eventID string) (domain.TaskList, error)
	SaveEventTasks(ctx context.Context, eventID string, tasks domain.TaskList) error
	EnqueueReminder(ctx context.Context, msg storage.ReminderMessage) error
}

// ChangeFeed publishes and delivers task-list change signals across sessions.
type ChangeFeed interface {
	PublishTaskListChanged(ctx context.Context, eventID string)
	SubscribeTaskListChanges(ctx context.Context, eventID string) <-chan struct{}
}

// Seeder instantiates catalog entries into fresh tasks.
type Seeder interface {
	Seed(ctx context.Context, eventType, prefix string) domain.TaskList
}

// Engine is one session's view of the shared task lists. Mutations operate on
// the session's latest in-memory snapshot, so within one session they are
// serialized; across sessions there is no mutual exclusion.
type Engine struct {
	store  Store
	feed   ChangeFeed
	seeder Seeder

	mu    sync.Mutex
	lists map[string]domain.TaskList
}

// New creates an Engine over the given store, change feed and seeder.
func New(store Store, feed ChangeFeed, seeder Seeder) *Engine {
	return &Engine{
		store:  store,
		feed:   feed,
		seeder: seeder,
		lists:  make(map[string]domain.TaskList),
	}
}

// current returns the session's working copy of the event's list, fetching
// and normalizing it on first touch. An absent record reads as an empty list
// and causes no store write.
func (e *Engine) current(ctx context.Context, eventID string) (domain.TaskList, bool) {
	e.mu.Lock()
	cached, ok := e.lists[eventID]
	e.mu.Unlock()
	if ok {
		return cloneList(cached), true
	}
	raw, err := e.store.GetEventTasks(ctx, eventID)
	if err != nil {
		log.WithField("event_id", eventID).Errorf("fetch event tasks: %v", err)
		return nil, false
	}
	tasks := domain.NormalizeTasks(raw, time.Now().UTC())
	e.mu.Lock()
	e.lists[eventID] = cloneList(tasks)
	e.mu.Unlock()
	return tasks, true
}

// refresh re-reads the stored record, replaces the snapshot and returns it.
func (e *Engine) refresh(ctx context.Context, eventID string) (domain.TaskList, error) {
	raw, err := e.store.GetEventTasks(ctx, eventID)
	if err != nil {
		return nil, err
	}
	tasks := domain.NormalizeTasks(raw, time.Now().UTC())
	e.mu.Lock()
	e.lists[eventID] = cloneList(tasks)
	e.mu.Unlock()
	return tasks, nil
}

// save overwrites the stored record with the given list, adopts it as the
// session snapshot and fans the change out to other sessions.
func (e *Engine) save(ctx context.Context, eventID string, tasks domain.TaskList) bool {
	if err := e.store.SaveEventTasks(ctx, eventID, tasks); err != nil {
		log.WithField("event_id", eventID).Errorf("save event tasks: %v", err)
		return false
	}
	e.mu.Lock()
	e.lists[eventID] = cloneList(tasks)
	e.mu.Unlock()
	if e.feed != nil {
		e.feed.PublishTaskListChanged(ctx, eventID)
	}
	return true
}

// Subscribe begins a live subscription to the event's task list. The current
// normalized list is emitted immediately, then one snapshot per remote
// change, until ctx is cancelled; the channel is then closed. Cancelling the
// context is the disposer and is idempotent.
func (e *Engine) Subscribe(ctx context.Context, eventID string) <-chan domain.TaskList {
	out := make(chan domain.TaskList, 1)
	var signals <-chan struct{}
	if e.feed != nil {
		signals = e.feed.SubscribeTaskListChanges(ctx, eventID)
	}
	go func() {
		defer close(out)
		tasks, ok := e.current(ctx, eventID)
		if !ok {
			tasks = domain.TaskList{}
		}
		select {
		case out <- tasks:
		case <-ctx.Done():
			return
		}
		if signals == nil {
			<-ctx.Done()
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				tasks, err := e.refresh(ctx, eventID)
				if err != nil {
					log.WithField("event_id", eventID).Errorf("refresh event tasks: %v", err)
					continue
				}
				select {
				case out <- tasks:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Tasks returns the session's current normalized list without subscribing.
// After the first touch the snapshot is served as-is: it advances only
// through this instance's own writes or a live subscription's change
// signals, so plain reads may trail writes made through other instances.
// The second result is false when the store failed.
func (e *Engine) Tasks(ctx context.Context, eventID string) (domain.TaskList, bool) {
	return e.current(ctx, eventID)
}

// AddTask prepends a new todo task with the given text. Empty or
// whitespace-only text is rejected before any store call.
func (e *Engine) AddTask(ctx context.Context, eventID, text, category, priority string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	tasks, ok := e.current(ctx, eventID)
	if !ok {
		return false
	}
	task := domain.Task{
		ID:        domain.NewTaskID(),
		Text:      text,
		Status:    domain.StatusTodo,
		Category:  category,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	return e.save(ctx, eventID, append(domain.TaskList{task}, tasks...))
}

// UpdateTask merges the non-nil fields of upd into the matching task and
// rewrites the list. An unmatched id is a no-op that still reports success,
// mirroring the behavior clients already depend on.
func (e *Engine) UpdateTask(ctx context.Context, eventID, taskID string, upd domain.TaskUpdate) bool {
	tasks, ok := e.current(ctx, eventID)
	if !ok {
		return false
	}
	if i := tasks.Find(taskID); i >= 0 {
		tasks[i].Apply(upd)
	}
	return e.save(ctx, eventID, tasks)
}

// ToggleTask advances the task's status one step along the todo ->
// inprogress -> done -> todo cycle. An unknown id fails without a write.
func (e *Engine) ToggleTask(ctx context.Context, eventID, taskID string) bool {
	tasks, ok := e.current(ctx, eventID)
	if !ok {
		return false
	}
	i := tasks.Find(taskID)
	if i < 0 {
		return false
	}
	tasks[i].Status = tasks[i].Status.Next()
	return e.save(ctx, eventID, tasks)
}

// SetReminder sets the task's reminder and hands it to the notification
// queue. An unknown id fails without a write.
func (e *Engine) SetReminder(ctx context.Context, eventID, taskID, reminder string) bool {
	tasks, ok := e.current(ctx, eventID)
	if !ok {
		return false
	}
	i := tasks.Find(taskID)
	if i < 0 {
		return false
	}
	tasks[i].Reminder = &reminder
	if !e.save(ctx, eventID, tasks) {
		return false
	}
	msg := storage.ReminderMessage{EventID: eventID, TaskID: taskID, Reminder: reminder}
	if err := e.store.EnqueueReminder(ctx, msg); err != nil {
		// The reminder is stored; only its delivery hand-off failed.
		log.WithField("event_id", eventID).Errorf("enqueue reminder: %v", err)
	}
	return true
}

// DeleteTask removes the task by id and rewrites the list.
func (e *Engine) DeleteTask(ctx context.Context, eventID, taskID string) bool {
	tasks, ok := e.current(ctx, eventID)
	if !ok {
		return false
	}
	kept := make(domain.TaskList, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	return e.save(ctx, eventID, kept)
}

// AddDefaultTasks appends the catalog's seed tasks for the event type after
// the existing tasks, leaving the existing ones untouched. An empty catalog
// reports false and leaves the store untouched.
func (e *Engine) AddDefaultTasks(ctx context.Context, eventID, eventType string) bool {
	seeded := e.seeder.Seed(ctx, eventType, domain.SeedPrefixAugment)
	if len(seeded) == 0 {
		return false
	}
	tasks, ok := e.current(ctx, eventID)
	if !ok {
		return false
	}
	return e.save(ctx, eventID, append(tasks, seeded...))
}

// RemoveDefaultTasks drops every seeded task, keeping hand-written ones.
func (e *Engine) RemoveDefaultTasks(ctx context.Context, eventID string) bool {
	tasks, ok := e.current(ctx, eventID)
	if !ok {
		return false
	}
	kept := make(domain.TaskList, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsSeeded() {
			kept = append(kept, t)
		}
	}
	return e.save(ctx, eventID, kept)
}

func cloneList(tasks domain.TaskList) domain.TaskList {
	if tasks == nil {
		return nil
	}
	return append(domain.TaskList(nil), tasks...)
}
