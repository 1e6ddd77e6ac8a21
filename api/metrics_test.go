package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestTaskRequestMetricsLogFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	metrics := newTaskRequestMetrics(logger)
	metrics.start = metrics.start.Add(-50 * time.Millisecond)
	metrics.ObserveAuth(10 * time.Millisecond)
	metrics.ObserveFetch(15 * time.Millisecond)
	metrics.SetTasksReturned(3)

	metrics.Log(http.StatusOK, nil)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry produced")
	}
	if entry.Level != log.DebugLevel {
		t.Fatalf("unexpected level: %v", entry.Level)
	}
	if entry.Data["route"] != "/api/events/:id/tasks" {
		t.Fatalf("unexpected route: %v", entry.Data["route"])
	}
	if entry.Data["status"] != http.StatusOK {
		t.Fatalf("unexpected status: %v", entry.Data["status"])
	}
	if entry.Data["tasks_returned"] != 3 {
		t.Fatalf("unexpected tasks_returned: %v", entry.Data["tasks_returned"])
	}
	if _, ok := entry.Data["error_stage"]; ok {
		t.Fatal("error_stage must be omitted on success")
	}
}

func TestTaskRequestMetricsLogErrorStage(t *testing.T) {
	logger, hook := test.NewNullLogger()

	metrics := newTaskRequestMetrics(logger)
	metrics.SetErrorStage("storage")
	metrics.Log(http.StatusInternalServerError, errors.New("boom"))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry produced")
	}
	if entry.Level != log.WarnLevel {
		t.Fatalf("unexpected level: %v", entry.Level)
	}
	if entry.Data["error_stage"] != "storage" {
		t.Fatalf("unexpected error stage: %v", entry.Data["error_stage"])
	}
}

func TestTaskRequestMetricsNilLoggerIsSafe(t *testing.T) {
	metrics := newTaskRequestMetrics(nil)
	metrics.Log(http.StatusOK, nil)
}

func TestDurationToMillis(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want float64
	}{
		{0, 0},
		{-time.Second, 0},
		{1500 * time.Microsecond, 1.5},
		{2 * time.Second, 2000},
	}
	for _, tc := range tests {
		if got := durationToMillis(tc.in); got != tc.want {
			t.Fatalf("durationToMillis(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
