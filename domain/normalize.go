package domain

import (
	"strconv"
	"time"
)

// NormalizeTasks coerces raw task records read from the store into fully
// shaped tasks: a missing id is filled in, an unknown or empty status becomes
// todo and a zero createdAt becomes now. Stored records written by older
// clients may miss any of these fields; normalization happens once, at the
// read boundary, so the rest of the code only ever sees complete tasks.
func NormalizeTasks(raw TaskList, now time.Time) TaskList {
	if len(raw) == 0 {
		return TaskList{}
	}
	tasks := make(TaskList, len(raw))
	for i, t := range raw {
		if t.ID == "" {
			t.ID = "task_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + strconv.Itoa(i)
		}
		if !t.Status.Valid() {
			t.Status = StatusTodo
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		tasks[i] = t
	}
	return tasks
}
