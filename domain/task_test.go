package domain

import (
	"strings"
	"testing"
	"time"
)

func TestStatusCycle(t *testing.T) {
	tests := []struct {
		name string
		from Status
		want Status
	}{
		{name: "todo advances", from: StatusTodo, want: StatusInProgress},
		{name: "inprogress advances", from: StatusInProgress, want: StatusDone},
		{name: "done wraps", from: StatusDone, want: StatusTodo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.Next(); got != tt.want {
				t.Fatalf("Next(%s) = %s, want %s", tt.from, got, tt.want)
			}
		})
	}
}

func TestStatusCycleReturnsAfterThree(t *testing.T) {
	for _, start := range []Status{StatusTodo, StatusInProgress, StatusDone} {
		s := start
		for i := 0; i < 3; i++ {
			s = s.Next()
		}
		if s != start {
			t.Fatalf("three toggles from %s ended at %s", start, s)
		}
	}
}

func TestTaskApplyMergesOnlySetFields(t *testing.T) {
	reminder := "2026-10-01T09:00"
	task := Task{ID: "t1", Text: "Book hall", Status: StatusTodo, Category: "venue"}
	text := "  Book the hall  "
	status := StatusDone
	task.Apply(TaskUpdate{Text: &text, Status: &status, Reminder: &reminder})

	if task.Text != "Book the hall" {
		t.Fatalf("unexpected text: %q", task.Text)
	}
	if task.Status != StatusDone {
		t.Fatalf("unexpected status: %s", task.Status)
	}
	if task.Reminder == nil || *task.Reminder != reminder {
		t.Fatalf("unexpected reminder: %v", task.Reminder)
	}
	if task.Category != "venue" {
		t.Fatalf("category must stay untouched, got %q", task.Category)
	}
}

func TestNewTaskIDUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		id := NewTaskID()
		if !strings.HasPrefix(id, "task_") {
			t.Fatalf("unexpected id prefix: %s", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestSeededTaskIDCarriesPrefixAndSeq(t *testing.T) {
	id := SeededTaskID(SeedPrefixAugment, 3)
	if !strings.HasPrefix(id, "additional_") || !strings.HasSuffix(id, "_3") {
		t.Fatalf("unexpected seeded id: %s", id)
	}
}

func TestIsSeeded(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{id: "default_123_0", want: true},
		{id: "additional_123_4", want: true},
		{id: "task_123_abc", want: false},
		{id: "defaulting", want: false},
	}
	for _, tt := range tests {
		if got := (Task{ID: tt.id}).IsSeeded(); got != tt.want {
			t.Fatalf("IsSeeded(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestFind(t *testing.T) {
	list := TaskList{{ID: "a"}, {ID: "b"}}
	if i := list.Find("b"); i != 1 {
		t.Fatalf("Find(b) = %d, want 1", i)
	}
	if i := list.Find("missing"); i != -1 {
		t.Fatalf("Find(missing) = %d, want -1", i)
	}
}

func TestNormalizeTasksFillsMissingFields(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := TaskList{
		{Text: "no id or status"},
		{ID: "t2", Text: "bad status", Status: Status("weird")},
		{ID: "t3", Text: "complete", Status: StatusDone, CreatedAt: now.Add(-time.Hour)},
	}
	tasks := NormalizeTasks(raw, now)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].ID == "" || tasks[0].Status != StatusTodo || !tasks[0].CreatedAt.Equal(now) {
		t.Fatalf("first task not normalized: %+v", tasks[0])
	}
	if tasks[1].Status != StatusTodo {
		t.Fatalf("invalid status must coerce to todo, got %s", tasks[1].Status)
	}
	if tasks[2].Status != StatusDone || !tasks[2].CreatedAt.Equal(now.Add(-time.Hour)) {
		t.Fatalf("complete task must stay untouched: %+v", tasks[2])
	}
}

func TestNormalizeTasksEmpty(t *testing.T) {
	if got := NormalizeTasks(nil, time.Now()); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}
