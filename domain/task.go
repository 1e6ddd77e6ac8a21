package domain

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

// Next advances the status along the fixed cycle
// todo -> inprogress -> done -> todo.
func (s Status) Next() Status {
	switch s {
	case StatusTodo:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	default:
		return StatusTodo
	}
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task is a single entry in an event's task list.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Status    Status    `json:"status"`
	Reminder  *string   `json:"reminder,omitempty"`
	Category  string    `json:"category,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskList is the whole stored task list of one event. It is always written
// back as a unit; there are no per-task writes.
type TaskList []Task

// Find returns the index of the task with the given id, or -1.
func (l TaskList) Find(taskID string) int {
	for i := range l {
		if l[i].ID == taskID {
			return i
		}
	}
	return -1
}

// TaskUpdate is a field-level partial update applied to one task.
// Nil fields are left untouched.
type TaskUpdate struct {
	Text     *string `json:"text,omitempty"`
	Status   *Status `json:"status,omitempty"`
	Reminder *string `json:"reminder,omitempty"`
	Category *string `json:"category,omitempty"`
	Priority *string `json:"priority,omitempty"`
}

// Apply merges the non-nil fields of upd into t.
func (t *Task) Apply(upd TaskUpdate) {
	if upd.Text != nil {
		t.Text = strings.TrimSpace(*upd.Text)
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Reminder != nil {
		t.Reminder = upd.Reminder
	}
	if upd.Category != nil {
		t.Category = *upd.Category
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
}

// Seed id prefixes. Tasks instantiated from the catalog carry one of these so
// they can later be stripped again without touching hand-written tasks.
const (
	SeedPrefixCreate  = "default"
	SeedPrefixAugment = "additional"
)

// IsSeeded reports whether the task was instantiated from the catalog.
func (t Task) IsSeeded() bool {
	return strings.HasPrefix(t.ID, SeedPrefixCreate+"_") ||
		strings.HasPrefix(t.ID, SeedPrefixAugment+"_")
}

var lastTaskMillis int64

// taskMillis returns a strictly increasing millisecond timestamp so ids
// generated in the same millisecond still differ in their time component.
func taskMillis() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastTaskMillis)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTaskMillis, last, now) {
			return now
		}
	}
}

// NewTaskID generates a list-unique id for a hand-written task:
// task_<millis>_<random suffix>. Uniqueness is generation discipline only;
// the store never enforces it.
func NewTaskID() string {
	return "task_" + strconv.FormatInt(taskMillis(), 10) + "_" + uuid.NewString()[:8]
}

// SeededTaskID generates the id of the seq-th task instantiated from the
// catalog in one seeding pass.
func SeededTaskID(prefix string, seq int) string {
	return prefix + "_" + strconv.FormatInt(taskMillis(), 10) + "_" + strconv.Itoa(seq)
}
