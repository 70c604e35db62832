package engine

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/memory"
	"github.com/hearthd/hearth-platform/internal/sensor"
	"github.com/hearthd/hearth-platform/pkg/config"
	"github.com/hearthd/hearth-platform/pkg/llm"
	"github.com/hearthd/hearth-platform/pkg/redis"
)

// nopKV satisfies redis.Client; engine tests exercise scoring, not storage
type nopKV struct{}

func (nopKV) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (nopKV) Get(ctx context.Context, key string) (string, error) { return "", redis.ErrNotFound }
func (nopKV) LPush(ctx context.Context, key string, values ...interface{}) error { return nil }
func (nopKV) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return nil, nil
}
func (nopKV) LTrim(ctx context.Context, key string, start, stop int64) error { return nil }
func (nopKV) LLen(ctx context.Context, key string) (int64, error)            { return 0, nil }
func (nopKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
func (nopKV) Ping(ctx context.Context) error { return nil }
func (nopKV) Close() error                   { return nil }

type testHarness struct {
	engine   *Engine
	analyzer *sensor.Analyzer
	mock     *llm.MockClient
}

// newTestEngine wires an engine against mocks, pinned to a calm weekday
// afternoon so scoring is deterministic
func newTestEngine(t *testing.T) *testHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	mock := llm.NewMockClient()
	store := memory.NewStore(nopKV{}, memory.NewInMemoryIndex(), mock, config.NewConfig(), logger)
	analyzer := sensor.NewAnalyzer(logger)
	weather := NewStaticWeather()
	weather.Set(agent.Weather{Condition: agent.WeatherClear, Temperature: 18})
	builder := NewContextBuilder(weather, analyzer, store, agent.DefaultPreferences(),
		60.1695, 24.9354, logger)

	eng := New(mock, store, builder, logger)
	eng.now = func() time.Time {
		return time.Date(2026, 5, 12, 15, 0, 0, 0, time.UTC)
	}

	return &testHarness{engine: eng, analyzer: analyzer, mock: mock}
}

// occupiedReading gives the analyzer a calm, occupied home
func occupiedReading() sensor.Reading {
	r := sensor.Reading{}
	r.Environmental.Temperature = 22
	r.Environmental.Humidity = 45
	r.Environmental.Pressure = 1013
	r.Energy.PowerFactor = 0.95
	r.Occupancy.Presence = true
	r.Occupancy.Activity = sensor.ActivityActive
	r.Timestamp = time.Now()
	return r
}

func TestThinkAcceptsConfidentDecision(t *testing.T) {
	h := newTestEngine(t)
	h.analyzer.Update(occupiedReading())
	h.mock.CompleteFunc = func(ctx context.Context, req llm.CompleteRequest) (string, error) {
		return `{"action": "optimize_energy", "confidence": 0.95,
			"reasoning": ["power usage trending high"],
			"impact": {"health": 0.1, "productivity": 0.2, "comfort": 0.3}}`, nil
	}

	decision, err := h.engine.Think(context.Background())
	require.NoError(t, err)

	assert.Equal(t, agent.ActionOptimizeEnergy, decision.Action)
	assert.Greater(t, decision.Confidence, agent.MinConfidence)
	assert.NotEmpty(t, decision.ID)

	status := h.engine.Status()
	assert.False(t, status.IsProcessing)
	require.NotNil(t, status.LastDecision)
	assert.Equal(t, agent.ActionOptimizeEnergy, status.LastDecision.Action)
}

func TestThinkFallsBackBelowThreshold(t *testing.T) {
	h := newTestEngine(t)
	// No sensor reading: the home reads as unoccupied, raising risk
	h.mock.CompleteFunc = func(ctx context.Context, req llm.CompleteRequest) (string, error) {
		return `{"action": "order_groceries", "confidence": 0.5,
			"reasoning": ["fridge might be empty"],
			"payload": {"items": [{"name": "milk", "quantity": 1, "price": 2, "urgency": "low"}]}}`, nil
	}

	decision, err := h.engine.Think(context.Background())
	require.NoError(t, err)

	assert.Equal(t, agent.ActionMaintain, decision.Action)
	assert.Equal(t, agent.MinConfidence, decision.Confidence)
	require.NotEmpty(t, decision.Reasoning)
	assert.Contains(t, decision.Reasoning[0], "rejected order_groceries")

	// The rejected candidate rides along as an alternative
	require.Len(t, decision.Alternatives, 1)
	assert.Equal(t, agent.ActionOrderGroceries, decision.Alternatives[0].Action)
	assert.Less(t, decision.Alternatives[0].Confidence, agent.MinConfidence)
}

func TestThinkMalformedResponse(t *testing.T) {
	h := newTestEngine(t)
	h.mock.CompleteFunc = func(ctx context.Context, req llm.CompleteRequest) (string, error) {
		return "I think you should probably relax tonight", nil
	}

	decision, err := h.engine.Think(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, agent.ActionNone, decision.Action)

	// The busy flag must be released after a failed cycle
	assert.False(t, h.engine.Status().IsProcessing)
}

func TestThinkInferenceError(t *testing.T) {
	h := newTestEngine(t)
	h.mock.CompleteFunc = func(ctx context.Context, req llm.CompleteRequest) (string, error) {
		return "", llm.ErrRateLimited
	}

	_, err := h.engine.Think(context.Background())
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	assert.False(t, h.engine.Status().IsProcessing)
}

func TestThinkSkipsWhenBusy(t *testing.T) {
	h := newTestEngine(t)
	h.analyzer.Update(occupiedReading())

	entered := make(chan struct{})
	release := make(chan struct{})
	h.mock.CompleteFunc = func(ctx context.Context, req llm.CompleteRequest) (string, error) {
		close(entered)
		<-release
		return `{"action": "maintain_current_state", "confidence": 0.9, "reasoning": ["all good"]}`, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.engine.Think(context.Background())
	}()

	<-entered
	// Second trigger while the first cycle is mid-inference
	decision, err := h.engine.Think(context.Background())
	require.NoError(t, err)
	assert.Equal(t, agent.ActionNone, decision.Action)
	assert.Contains(t, decision.Reasoning[0], "already in progress")

	close(release)
	wg.Wait()
	assert.False(t, h.engine.Status().IsProcessing)
}

func TestSubscribeReceivesAcceptedDecisions(t *testing.T) {
	h := newTestEngine(t)
	h.analyzer.Update(occupiedReading())
	h.mock.CompleteFunc = func(ctx context.Context, req llm.CompleteRequest) (string, error) {
		return `{"action": "set_mood", "confidence": 0.95,
			"reasoning": ["evening routine"], "payload": {"mood": "relax"}}`, nil
	}

	ch := h.engine.Subscribe()
	_, err := h.engine.Think(context.Background())
	require.NoError(t, err)

	select {
	case d := <-ch:
		assert.Equal(t, agent.ActionSetMood, d.Action)
	default:
		t.Fatal("expected a decision on the subscription channel")
	}
}
