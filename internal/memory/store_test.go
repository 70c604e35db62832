package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/pkg/config"
	"github.com/hearthd/hearth-platform/pkg/llm"
	"github.com/hearthd/hearth-platform/pkg/redis"
)

// fakeKV is an in-memory redis.Client for store tests
type fakeKV struct {
	values map[string]string
	lists  map[string][]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		values: make(map[string]string),
		lists:  make(map[string][]string),
	}
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.values[key] = asString(value)
	return nil
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) LPush(ctx context.Context, key string, values ...interface{}) error {
	for _, v := range values {
		f.lists[key] = append([]string{asString(v)}, f.lists[key]...)
	}
	return nil
}

func (f *fakeKV) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	list := f.lists[key]
	if len(list) == 0 {
		return nil, nil
	}
	if stop < 0 || stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	if start > stop {
		return nil, nil
	}
	return append([]string(nil), list[start:stop+1]...), nil
}

func (f *fakeKV) LTrim(ctx context.Context, key string, start, stop int64) error {
	list := f.lists[key]
	if len(list) == 0 {
		return nil
	}
	if stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	f.lists[key] = list[start : stop+1]
	return nil
}

func (f *fakeKV) LLen(ctx context.Context, key string) (int64, error) {
	return int64(len(f.lists[key])), nil
}

func (f *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }
func (f *fakeKV) Ping(ctx context.Context) error                                  { return nil }
func (f *fakeKV) Close() error                                                    { return nil }

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

func newTestStore(t *testing.T) (*Store, *fakeKV, *InMemoryIndex) {
	t.Helper()
	kv := newFakeKV()
	index := NewInMemoryIndex()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := NewStore(kv, index, llm.NewMockClient(), config.NewConfig(), logger)
	return store, kv, index
}

func eveningContext() agent.Context {
	return agent.Context{
		TimeOfDay: "19:30",
		Hour:      19,
		Occupied:  true,
		Weather:   agent.Weather{Condition: agent.WeatherClear},
		CreatedAt: time.Now(),
	}
}

func TestRecordDecisionCreatesPattern(t *testing.T) {
	store, kv, index := newTestStore(t)
	ctx := context.Background()

	d := agent.Decision{
		ID:         "d1",
		Action:     agent.ActionSetMood,
		Confidence: 0.8,
		CreatedAt:  time.Now(),
	}
	store.RecordDecision(ctx, d, eveningContext())

	patterns := store.Patterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, "set_mood|evening", patterns[0].Key)
	assert.Equal(t, 0.8, patterns[0].Confidence)
	assert.Equal(t, 1, patterns[0].Frequency)

	// Persisted to the short-term list, the index, and the context snapshot
	assert.Len(t, kv.lists[redis.AgentMemoryKey], 1)
	assert.Equal(t, 1, index.Len())
	_, ok := kv.values[redis.AgentContextKey]
	assert.True(t, ok)
}

func TestRecordDecisionMergesExisting(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	d := agent.Decision{Action: agent.ActionSetMood, Confidence: 0.6}
	store.RecordDecision(ctx, d, eveningContext())

	d.Confidence = 1.0
	store.RecordDecision(ctx, d, eveningContext())

	patterns := store.Patterns()
	require.Len(t, patterns, 1)
	// 0.6*(1-0.1) + 1.0*0.1
	assert.InDelta(t, 0.64, patterns[0].Confidence, 1e-9)
	assert.Equal(t, 2, patterns[0].Frequency)
}

func TestRecordOutcomeTalliesAndAdaptsThreshold(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	d := agent.Decision{Action: agent.ActionOptimizeEnergy, Confidence: 0.9}
	store.RecordDecision(ctx, d, eveningContext())

	// Base threshold before any outcomes
	assert.Equal(t, agent.MinConfidence, store.Threshold(agent.ActionOptimizeEnergy))

	store.RecordOutcome(ctx, d, agent.Outcome{Success: true, Timestamp: time.Now()})
	// Success relaxes the threshold but never below the global gate
	assert.Equal(t, agent.MinConfidence, store.Threshold(agent.ActionOptimizeEnergy))

	for i := 0; i < 20; i++ {
		store.RecordOutcome(ctx, d, agent.Outcome{Success: false, Timestamp: time.Now()})
	}
	// Repeated failures tighten it, capped at the ceiling
	assert.InDelta(t, thresholdCeiling, store.Threshold(agent.ActionOptimizeEnergy), 1e-9)

	rate, total := store.SuccessRate(agent.ActionOptimizeEnergy)
	assert.Equal(t, 21, total)
	assert.InDelta(t, 1.0/21.0, rate, 1e-9)
}

func TestOutcomeWithNetPositiveImpactCountsAsSuccess(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	d := agent.Decision{Action: agent.ActionSuggestTask}
	store.RecordOutcome(ctx, d, agent.Outcome{
		Success:        false,
		PositiveImpact: 0.6,
		NegativeImpact: 0.2,
		Timestamp:      time.Now(),
	})

	rate, total := store.SuccessRate(agent.ActionSuggestTask)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1.0, rate)
}

func TestRecentMemorySkipsCorruptEntries(t *testing.T) {
	store, kv, _ := newTestStore(t)
	ctx := context.Background()

	item, _ := json.Marshal(MemoryItem{
		Type:      itemDecision,
		Action:    agent.ActionSetMood,
		Timestamp: time.Now(),
	})
	kv.lists[redis.AgentMemoryKey] = []string{"{not json", string(item), "also not json"}

	items := store.RecentMemory(ctx, time.Hour)
	require.Len(t, items, 1)
	assert.Equal(t, agent.ActionSetMood, items[0].Action)
}

func TestRecentMemoryFiltersByWindow(t *testing.T) {
	store, kv, _ := newTestStore(t)
	ctx := context.Background()

	old, _ := json.Marshal(MemoryItem{Type: itemOutcome, Timestamp: time.Now().Add(-48 * time.Hour)})
	fresh, _ := json.Marshal(MemoryItem{Type: itemOutcome, Timestamp: time.Now()})
	kv.lists[redis.AgentMemoryKey] = []string{string(fresh), string(old)}

	items := store.RecentMemory(ctx, 24*time.Hour)
	assert.Len(t, items, 1)
}

func TestLoadContextCorruptSnapshot(t *testing.T) {
	store, kv, _ := newTestStore(t)
	ctx := context.Background()

	assert.Nil(t, store.LoadContext(ctx), "missing snapshot yields nil")

	kv.values[redis.AgentContextKey] = "{broken"
	assert.Nil(t, store.LoadContext(ctx), "corrupt snapshot yields nil")

	store.SaveContext(ctx, eveningContext())
	restored := store.LoadContext(ctx)
	require.NotNil(t, restored)
	assert.Equal(t, 19, restored.Hour)
}

func TestSweepArchivesStalePatterns(t *testing.T) {
	store, _, index := newTestStore(t)
	ctx := context.Background()

	d := agent.Decision{Action: agent.ActionPrepareSleep, Confidence: 0.9}
	store.RecordDecision(ctx, d, eveningContext())

	// Fresh pattern survives the sweep
	assert.Equal(t, 0, store.Sweep(ctx))
	require.Len(t, store.Patterns(), 1)

	// Age it past retention
	store.mu.Lock()
	for _, p := range store.patterns {
		p.LastUpdated = time.Now().Add(-8 * 24 * time.Hour)
	}
	store.mu.Unlock()

	assert.Equal(t, 1, store.Sweep(ctx))
	assert.Empty(t, store.Patterns())

	// The archived copy is still in the index, marked archived
	matches, err := index.Query(ctx, make([]float32, EmbeddingDim), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, true, matches[0].Metadata["archived"])
}

func TestBootstrapRestoresPatterns(t *testing.T) {
	first, _, index := newTestStore(t)
	ctx := context.Background()

	d := agent.Decision{Action: agent.ActionSetMood, Confidence: 0.85}
	first.RecordDecision(ctx, d, eveningContext())

	// A second store over the same index picks the pattern up
	kv := newFakeKV()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	second := NewStore(kv, index, llm.NewMockClient(), config.NewConfig(), logger)
	second.Bootstrap(ctx)

	patterns := second.Patterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, "set_mood|evening", patterns[0].Key)
	assert.Equal(t, 0.85, patterns[0].Confidence)
}

func TestRelevantPatternsFiltersLowConfidence(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	store.RecordDecision(ctx, agent.Decision{Action: agent.ActionSetMood, Confidence: 0.9}, eveningContext())
	store.RecordDecision(ctx, agent.Decision{Action: agent.ActionSuggestTask, Confidence: 0.3}, eveningContext())

	matches := store.RelevantPatterns(ctx, eveningContext())
	require.Len(t, matches, 1)
	assert.Equal(t, agent.ActionSetMood, matches[0].Pattern.Action)
}

func TestRelevantPatternsDegradesToLivePatterns(t *testing.T) {
	kv := newFakeKV()
	index := NewInMemoryIndex()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mock := llm.NewMockClient()
	store := NewStore(kv, index, mock, config.NewConfig(), logger)

	ctx := context.Background()
	store.RecordDecision(ctx, agent.Decision{Action: agent.ActionSetMood, Confidence: 0.9}, eveningContext())

	// Embedding goes down after the pattern is live
	mock.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, context.DeadlineExceeded
	}

	matches := store.RelevantPatterns(ctx, eveningContext())
	require.Len(t, matches, 1)
	assert.Equal(t, agent.ActionSetMood, matches[0].Pattern.Action)
}
