package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/engine"
	"github.com/hearthd/hearth-platform/internal/executor"
	"github.com/hearthd/hearth-platform/internal/memory"
	"github.com/hearthd/hearth-platform/pkg/config"
)

// Adaptation bounds on the failure rate over the recent result window
const (
	backoffFailureRate = 0.2 // above this, cycle sooner
	relaxFailureRate   = 0.1 // below this, cycle later
)

// Task is a named side task fanned out at the start of every cycle.
// Category ties the task to a priority name; tasks whose category is
// outside the current priority set are shed while the scheduler is
// backing off from failures. Failures are counted individually and
// never abort sibling tasks.
type Task struct {
	Name     string
	Category string
	Run      func(ctx context.Context) error
}

// Scheduler drives the decision cycle on an adaptive interval. A high
// failure rate tightens the interval to recover faster; a low one relaxes
// it to save inference cost. The interval always stays within the
// configured bounds.
type Scheduler struct {
	engine   *engine.Engine
	executor *executor.Executor
	store    *memory.Store
	logger   *slog.Logger

	minInterval time.Duration
	maxInterval time.Duration
	maxHistory  int

	mu         sync.Mutex
	interval   time.Duration
	results    []bool // sliding window, true = success
	priorities []string
	tasks      []Task

	cron     *cron.Cron
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a scheduler with the configured interval bounds
func New(eng *engine.Engine, exec *executor.Executor, store *memory.Store, cfg *config.Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:      eng,
		executor:    exec,
		store:       store,
		logger:      logger,
		minInterval: time.Duration(cfg.MinCycleIntervalMin) * time.Minute,
		maxInterval: time.Duration(cfg.MaxCycleIntervalMin) * time.Minute,
		maxHistory:  cfg.MaxOutcomeHistory,
		interval:    time.Duration(cfg.InitialCycleIntervalMin) * time.Minute,
		priorities:  append(basePriorities(), "productivity"),
		cron:        cron.New(),
		stopChan:    make(chan struct{}),
	}
}

// RegisterTask adds a side task to the per-cycle fan-out
func (s *Scheduler) RegisterTask(t Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
}

// Start launches the cycle loop and the hourly memory sweep
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("@hourly", func() {
		s.store.Sweep(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Scheduler started",
		"interval", s.Interval(),
		"min_interval", s.minInterval,
		"max_interval", s.maxInterval)
	return nil
}

// Stop halts scheduling. An in-flight cycle runs to completion before
// Stop returns.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			next := s.Tick(ctx)
			timer.Reset(next)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one full cycle: refresh priorities, fan out side tasks,
// think, execute, and adapt the interval from the accumulated results.
// It returns the interval until the next cycle.
func (s *Scheduler) Tick(ctx context.Context) time.Duration {
	now := time.Now()
	s.reviewPriorities(now.Hour())

	results := s.runSideTasks(ctx)

	decision, err := s.engine.Think(ctx)
	switch {
	case err != nil:
		s.logger.Warn("Decision cycle failed", "error", err)
		results = append(results, false)
	case decision.Action == agent.ActionNone:
		// Skipped cycle; neither success nor failure
	default:
		outcome, execErr := s.executor.Execute(ctx, decision)
		if execErr != nil {
			results = append(results, false)
		} else {
			results = append(results, outcome.Succeeded())
		}
	}

	next := s.recordResults(results)
	s.logger.Debug("Cycle complete",
		"results", len(results),
		"next_interval", next)
	return next
}

// runSideTasks fans out the registered tasks and waits for all of them.
// Priority-category tasks always run; the rest are shed when the recent
// failure rate has pushed the scheduler into backoff. Each task's result
// counts individually; one failure never stops the others.
func (s *Scheduler) runSideTasks(ctx context.Context) []bool {
	s.mu.Lock()
	prioritized := make(map[string]bool, len(s.priorities))
	for _, name := range s.priorities {
		prioritized[name] = true
	}
	shedding := s.failureRateLocked() > backoffFailureRate
	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if shedding && !prioritized[t.Category] {
			s.logger.Debug("Shedding non-priority task",
				"task", t.Name,
				"category", t.Category)
			continue
		}
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	if len(tasks) == 0 {
		return nil
	}

	results := make([]bool, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, t := range tasks {
		go func(i int, t Task) {
			defer wg.Done()
			if err := t.Run(ctx); err != nil {
				s.logger.Warn("Side task failed", "task", t.Name, "error", err)
				results[i] = false
				return
			}
			results[i] = true
		}(i, t)
	}
	wg.Wait()
	return results
}

// recordResults appends cycle results to the bounded window and adapts
// the interval from the failure rate
func (s *Scheduler) recordResults(results []bool) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, results...)
	if len(s.results) > s.maxHistory {
		s.results = s.results[len(s.results)-s.maxHistory:]
	}

	rate := s.failureRateLocked()
	switch {
	case rate > backoffFailureRate:
		s.interval = time.Duration(float64(s.interval) * 0.8)
	case rate < relaxFailureRate:
		s.interval = time.Duration(float64(s.interval) * 1.2)
	}
	if s.interval < s.minInterval {
		s.interval = s.minInterval
	}
	if s.interval > s.maxInterval {
		s.interval = s.maxInterval
	}
	return s.interval
}

func (s *Scheduler) failureRateLocked() float64 {
	if len(s.results) == 0 {
		return 0
	}
	failures := 0
	for _, ok := range s.results {
		if !ok {
			failures++
		}
	}
	return float64(failures) / float64(len(s.results))
}

// FailureRate returns the failure rate over the recent result window
func (s *Scheduler) FailureRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureRateLocked()
}

// Interval returns the current cycle interval
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Priorities returns the current task priority set
func (s *Scheduler) Priorities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.priorities...)
}

// reviewPriorities recomputes the priority set at the hour boundary.
// Comfort, efficiency, health, and security are always-on; productivity
// joins only outside night hours (22:00-06:00).
func (s *Scheduler) reviewPriorities(hour int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorities = basePriorities()
	if !agent.IsNightHours(hour) {
		s.priorities = append(s.priorities, "productivity")
	}
}

func basePriorities() []string {
	return []string{"comfort", "efficiency", "health", "security"}
}
