package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type taskRequestMetrics struct {
	logger        *log.Logger
	start         time.Time
	authDuration  time.Duration
	fetchDuration time.Duration
	tasksReturned int
	errorStage    string
}

func newTaskRequestMetrics(logger *log.Logger) *taskRequestMetrics {
	return &taskRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
}

func (m *taskRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *taskRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *taskRequestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *taskRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *taskRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":          "/api/events/:id/tasks",
		"status":         status,
		"total_ms":       durationToMillis(time.Since(m.start)),
		"auth_ms":        durationToMillis(m.authDuration),
		"fetch_ms":       durationToMillis(m.fetchDuration),
		"tasks_returned": m.tasksReturned,
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	entry := m.logger.WithFields(fields)
	if err != nil || m.errorStage != "" {
		entry.Warn("tasks request")
		return
	}
	entry.Debug("tasks request")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d.Microseconds()) / 1000.0
}
