package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hearthd/hearth-platform/pkg/config"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(nil, nil, nil, config.NewConfig(), logger)
}

func results(successes, failures int) []bool {
	out := make([]bool, 0, successes+failures)
	for i := 0; i < successes; i++ {
		out = append(out, true)
	}
	for i := 0; i < failures; i++ {
		out = append(out, false)
	}
	return out
}

func TestIntervalTightensOnFailures(t *testing.T) {
	s := newTestScheduler(t)
	assert.Equal(t, 15*time.Minute, s.Interval())

	// 3 failures out of 12 = 25% failure rate
	next := s.recordResults(results(9, 3))
	assert.Equal(t, 12*time.Minute, next)
	assert.InDelta(t, 0.25, s.FailureRate(), 1e-9)
}

func TestIntervalRelaxesWhenHealthy(t *testing.T) {
	s := newTestScheduler(t)

	next := s.recordResults(results(20, 0))
	assert.Equal(t, 18*time.Minute, next)
}

func TestIntervalHoldsInMiddleBand(t *testing.T) {
	s := newTestScheduler(t)

	// 15% failure rate: between the relax and backoff bounds
	next := s.recordResults(results(17, 3))
	assert.Equal(t, 15*time.Minute, next)
}

func TestIntervalNeverLeavesBounds(t *testing.T) {
	s := newTestScheduler(t)

	// Hammer failures; the interval must floor at the minimum
	for i := 0; i < 20; i++ {
		s.recordResults(results(0, 5))
	}
	assert.Equal(t, s.minInterval, s.Interval())

	// Then a long healthy streak; it must cap at the maximum
	for i := 0; i < 50; i++ {
		s.recordResults(results(50, 0))
	}
	assert.Equal(t, s.maxInterval, s.Interval())
}

func TestResultWindowIsBounded(t *testing.T) {
	s := newTestScheduler(t)

	// Fill the window with failures, then overwrite it with successes
	s.recordResults(results(0, 50))
	s.recordResults(results(50, 0))

	assert.InDelta(t, 0, s.FailureRate(), 1e-9,
		"old failures should have rolled out of the window")
}

func TestNightPriorities(t *testing.T) {
	s := newTestScheduler(t)

	s.reviewPriorities(23)
	night := s.Priorities()
	assert.Contains(t, night, "security")
	assert.Contains(t, night, "health")
	assert.NotContains(t, night, "productivity")

	s.reviewPriorities(9)
	day := s.Priorities()
	assert.Contains(t, day, "security")
	assert.Contains(t, day, "health")
	assert.Contains(t, day, "productivity")
}

func TestNonPriorityTasksShedDuringBackoff(t *testing.T) {
	s := newTestScheduler(t)

	var mu sync.Mutex
	ran := map[string]int{}
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			ran[name]++
			mu.Unlock()
			return nil
		}
	}
	s.RegisterTask(Task{Name: "inference-health", Category: "health", Run: record("inference-health")})
	s.RegisterTask(Task{Name: "status-publish", Run: record("status-publish")})

	// Healthy window: everything runs
	got := s.runSideTasks(context.Background())
	assert.Len(t, got, 2)

	// Push the failure rate past the backoff bound; only priority
	// categories keep running
	s.recordResults(results(0, 10))
	got = s.runSideTasks(context.Background())
	assert.Len(t, got, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, ran["inference-health"], "priority task must run every cycle")
	assert.Equal(t, 1, ran["status-publish"], "uncategorized task should be shed during backoff")
}

func TestProductivityTasksNotGuaranteedAtNight(t *testing.T) {
	s := newTestScheduler(t)
	s.recordResults(results(0, 10))

	runs := 0
	s.RegisterTask(Task{Name: "plan-day", Category: "productivity", Run: func(ctx context.Context) error {
		runs++
		return nil
	}})

	s.reviewPriorities(23)
	got := s.runSideTasks(context.Background())
	assert.Empty(t, got)
	assert.Zero(t, runs)

	s.reviewPriorities(9)
	got = s.runSideTasks(context.Background())
	assert.Len(t, got, 1)
	assert.Equal(t, 1, runs)
}

func TestSideTaskFailuresDoNotAbortSiblings(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan string, 3)
	s.RegisterTask(Task{Name: "a", Run: func(ctx context.Context) error {
		ran <- "a"
		return nil
	}})
	s.RegisterTask(Task{Name: "b", Run: func(ctx context.Context) error {
		ran <- "b"
		return errors.New("boom")
	}})
	s.RegisterTask(Task{Name: "c", Run: func(ctx context.Context) error {
		ran <- "c"
		return nil
	}})

	results := s.runSideTasks(context.Background())
	close(ran)

	assert.Len(t, results, 3)
	failures := 0
	for _, ok := range results {
		if !ok {
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	names := map[string]bool{}
	for name := range ran {
		names[name] = true
	}
	assert.Len(t, names, 3, "every task must run despite sibling failure")
}
