package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/pkg/config"
	"github.com/hearthd/hearth-platform/pkg/redis"
)

// Embedder produces the vector representation used for pattern retrieval.
// Satisfied by the LLM client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MemoryItem is one entry in the short-term memory list
type MemoryItem struct {
	Type      string           `json:"type"` // "decision" or "outcome"
	Action    agent.ActionType `json:"action"`
	Content   json.RawMessage  `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
}

// PatternMatch pairs a retrieved pattern with its similarity to the
// current context
type PatternMatch struct {
	Pattern    BehaviorPattern `json:"pattern"`
	Similarity float64         `json:"similarity"`
}

const (
	itemDecision = "decision"
	itemOutcome  = "outcome"

	// thresholdCeiling caps how far repeated failures can raise a
	// per-action threshold
	thresholdCeiling = 0.95
)

// Store is the agent's memory: live behavior patterns in process, a
// short-term item list and context snapshot in the KV store, and an
// embedding index for similarity retrieval. Every persistence layer is
// best-effort; losing one degrades recall but never stops the agent.
type Store struct {
	kv       redis.Client
	index    VectorIndex
	embedder Embedder
	logger   *slog.Logger

	retention   time.Duration
	shortWindow time.Duration
	maxEntries  int
	topK        int

	mu         sync.RWMutex
	patterns   map[string]*BehaviorPattern
	thresholds map[agent.ActionType]float64
}

// NewStore creates a memory store over the given KV client, vector index,
// and embedder
func NewStore(kv redis.Client, index VectorIndex, embedder Embedder, cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		kv:          kv,
		index:       index,
		embedder:    embedder,
		logger:      logger,
		retention:   time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		shortWindow: time.Duration(cfg.ShortTermWindowHours) * time.Hour,
		maxEntries:  cfg.MaxMemoryEntries,
		topK:        cfg.PatternTopK,
		patterns:    make(map[string]*BehaviorPattern),
		thresholds:  make(map[agent.ActionType]float64),
	}
}

// Bootstrap warm-loads live patterns from the vector index. Any failure
// leaves the store empty; the agent starts from a cold state.
func (s *Store) Bootstrap(ctx context.Context) {
	matches, err := s.index.Query(ctx, make([]float32, EmbeddingDim), s.maxEntries)
	if err != nil {
		s.logger.Warn("Pattern bootstrap skipped, starting cold", "error", err)
		return
	}

	loaded := 0
	s.mu.Lock()
	for _, m := range matches {
		p, ok := patternFromMetadata(m.Metadata)
		if !ok {
			continue
		}
		s.patterns[p.Key] = p
		loaded++
	}
	s.mu.Unlock()

	s.logger.Info("Pattern memory bootstrapped", "patterns", loaded)
}

// RecordDecision folds an accepted decision into pattern memory and
// persists it. Persistence failures are logged and swallowed.
func (s *Store) RecordDecision(ctx context.Context, d agent.Decision, c agent.Context) {
	period := agent.Period(c.Hour)
	key := PatternKey(d.Action, period)
	tag := fmt.Sprintf("%s:%s", period, c.TimeOfDay)
	now := time.Now()

	s.mu.Lock()
	p, ok := s.patterns[key]
	if !ok {
		p = &BehaviorPattern{
			Key:          key,
			Action:       d.Action,
			Confidence:   d.Confidence,
			Frequency:    1,
			TimeContexts: []string{tag},
			LastUpdated:  now,
		}
		s.patterns[key] = p
	} else {
		p.merge(d.Confidence, tag, now)
	}
	snapshot := p.clone()
	s.mu.Unlock()

	s.appendItem(ctx, itemDecision, d.Action, d, now)
	s.persistPattern(ctx, &snapshot, c)
	s.SaveContext(ctx, c)
}

// RecordOutcome attributes an execution result to the decision's pattern,
// updating tallies, smoothing confidence toward the observed result, and
// adapting the per-action threshold
func (s *Store) RecordOutcome(ctx context.Context, d agent.Decision, o agent.Outcome) {
	period := agent.Period(o.Timestamp.Hour())
	key := PatternKey(d.Action, period)
	succeeded := o.Succeeded()

	observed := 0.0
	if succeeded {
		observed = 1.0
	}

	s.mu.Lock()
	p, ok := s.patterns[key]
	if !ok {
		p = &BehaviorPattern{
			Key:    key,
			Action: d.Action,
		}
		s.patterns[key] = p
	}
	if succeeded {
		p.Outcomes.Positive++
	} else {
		p.Outcomes.Negative++
	}
	p.Confidence = clamp01(smooth(p.Confidence, observed))
	p.LastUpdated = time.Now()

	s.adaptThresholdLocked(d.Action, succeeded)
	s.mu.Unlock()

	s.appendItem(ctx, itemOutcome, d.Action, o, o.Timestamp)
}

// adaptThresholdLocked nudges the action's acceptance threshold: success
// relaxes it by 5%, failure tightens it by 5%, bounded by the global gate
// and the ceiling. Caller holds s.mu.
func (s *Store) adaptThresholdLocked(action agent.ActionType, succeeded bool) {
	t, ok := s.thresholds[action]
	if !ok {
		t = agent.MinConfidence
	}
	if succeeded {
		t *= 0.95
	} else {
		t *= 1.05
	}
	if t < agent.MinConfidence {
		t = agent.MinConfidence
	}
	if t > thresholdCeiling {
		t = thresholdCeiling
	}
	s.thresholds[action] = t
}

// Threshold returns the current acceptance threshold for an action
func (s *Store) Threshold(action agent.ActionType) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.thresholds[action]; ok {
		return t
	}
	return agent.MinConfidence
}

// SuccessRate aggregates outcome tallies for an action across all of its
// patterns. The second return is the total number of recorded outcomes.
func (s *Store) SuccessRate(action agent.ActionType) (float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positive, total := 0, 0
	for _, p := range s.patterns {
		if p.Action != action {
			continue
		}
		positive += p.Outcomes.Positive
		total += p.Outcomes.Positive + p.Outcomes.Negative
	}
	if total == 0 {
		return 0, 0
	}
	return float64(positive) / float64(total), total
}

// RelevantPatterns retrieves the patterns most similar to the current
// context, filtered to those at or above the global confidence gate.
// When embedding or the index is unavailable it degrades to the
// highest-confidence live patterns.
func (s *Store) RelevantPatterns(ctx context.Context, c agent.Context) []PatternMatch {
	vector, err := s.embedder.Embed(ctx, contextText(c))
	if err != nil {
		s.logger.Warn("Context embedding failed, using live patterns", "error", err)
		return s.livePatternFallback()
	}

	matches, err := s.index.Query(ctx, vector, s.topK)
	if err != nil {
		s.logger.Warn("Pattern index query failed, using live patterns", "error", err)
		return s.livePatternFallback()
	}

	var out []PatternMatch
	for _, m := range matches {
		p, ok := patternFromMetadata(m.Metadata)
		if !ok || p.Confidence < agent.MinConfidence {
			continue
		}
		out = append(out, PatternMatch{Pattern: *p, Similarity: m.Similarity})
	}
	return out
}

func (s *Store) livePatternFallback() []PatternMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []PatternMatch
	for _, p := range s.patterns {
		if p.Confidence < agent.MinConfidence {
			continue
		}
		out = append(out, PatternMatch{Pattern: p.clone()})
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Pattern.Confidence > out[b].Pattern.Confidence
	})
	if len(out) > s.topK {
		out = out[:s.topK]
	}
	return out
}

// Summary returns the strongest live patterns as lightweight references
// for the context snapshot
func (s *Store) Summary(limit int) []agent.PatternRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]agent.PatternRef, 0, len(s.patterns))
	for _, p := range s.patterns {
		refs = append(refs, agent.PatternRef{
			Key:        p.Key,
			Action:     p.Action,
			Confidence: p.Confidence,
			LastSeen:   p.LastUpdated,
		})
	}
	sort.Slice(refs, func(a, b int) bool {
		return refs[a].Confidence > refs[b].Confidence
	})
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs
}

// Patterns returns a snapshot of all live patterns
func (s *Store) Patterns() []BehaviorPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]BehaviorPattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p.clone())
	}
	return out
}

// RecentMemory returns short-term items newer than the window, newest
// first. Corrupt entries are skipped; a missing or unreadable list is
// treated as empty.
func (s *Store) RecentMemory(ctx context.Context, window time.Duration) []MemoryItem {
	if window <= 0 {
		window = s.shortWindow
	}

	raw, err := s.kv.LRange(ctx, redis.AgentMemoryKey, 0, int64(s.maxEntries)-1)
	if err != nil && err != redis.ErrNotFound {
		s.logger.Warn("Short-term memory unavailable, treating as empty", "error", err)
		return nil
	}

	cutoff := time.Now().Add(-window)
	var items []MemoryItem
	for _, entry := range raw {
		var item MemoryItem
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			s.logger.Warn("Skipping corrupt memory entry", "error", err)
			continue
		}
		if item.Timestamp.Before(cutoff) {
			continue
		}
		items = append(items, item)
	}
	return items
}

// SaveContext persists the latest context snapshot for warm restarts
func (s *Store) SaveContext(ctx context.Context, c agent.Context) {
	data, err := json.Marshal(c)
	if err != nil {
		s.logger.Error("Failed to marshal context snapshot", "error", err)
		return
	}
	if err := s.kv.Set(ctx, redis.AgentContextKey, data, s.retention); err != nil {
		s.logger.Warn("Failed to save context snapshot", "error", err)
	}
}

// LoadContext restores the last persisted context snapshot. A missing or
// corrupt snapshot yields nil; the caller builds a fresh context.
func (s *Store) LoadContext(ctx context.Context) *agent.Context {
	raw, err := s.kv.Get(ctx, redis.AgentContextKey)
	if err != nil {
		if err != redis.ErrNotFound {
			s.logger.Warn("Context snapshot unavailable, starting fresh", "error", err)
		}
		return nil
	}

	var c agent.Context
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		s.logger.Warn("Corrupt context snapshot, starting fresh", "error", err)
		return nil
	}
	return &c
}

// Sweep archives patterns untouched for longer than the retention period
// to the vector index, then evicts them from live memory. A pattern that
// fails to archive stays live for the next sweep.
func (s *Store) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-s.retention)

	s.mu.Lock()
	var stale []*BehaviorPattern
	for _, p := range s.patterns {
		if p.LastUpdated.Before(cutoff) {
			copied := p.clone()
			stale = append(stale, &copied)
		}
	}
	s.mu.Unlock()

	archived := 0
	for _, p := range stale {
		if err := s.archivePattern(ctx, p); err != nil {
			s.logger.Warn("Failed to archive pattern, keeping live",
				"pattern", p.Key,
				"error", err)
			continue
		}
		s.mu.Lock()
		delete(s.patterns, p.Key)
		s.mu.Unlock()
		archived++
	}

	if archived > 0 {
		s.logger.Info("Pattern sweep complete", "archived", archived)
	}
	return archived
}

func (s *Store) archivePattern(ctx context.Context, p *BehaviorPattern) error {
	vector, err := s.embedder.Embed(ctx, patternText(p))
	if err != nil {
		return fmt.Errorf("failed to embed pattern %s: %w", p.Key, err)
	}
	meta, err := patternMetadata(p)
	if err != nil {
		return err
	}
	meta["archived"] = true
	return s.index.Upsert(ctx, p.Key, vector, meta)
}

// persistPattern upserts the pattern's vector keyed by its identity,
// embedded from the context it was observed in
func (s *Store) persistPattern(ctx context.Context, p *BehaviorPattern, c agent.Context) {
	vector, err := s.embedder.Embed(ctx, contextText(c))
	if err != nil {
		s.logger.Warn("Failed to embed pattern context", "pattern", p.Key, "error", err)
		return
	}
	meta, err := patternMetadata(p)
	if err != nil {
		s.logger.Error("Failed to encode pattern metadata", "pattern", p.Key, "error", err)
		return
	}
	if err := s.index.Upsert(ctx, p.Key, vector, meta); err != nil {
		s.logger.Warn("Failed to upsert pattern vector", "pattern", p.Key, "error", err)
	}
}

// appendItem pushes one item onto the short-term list and trims it to
// the configured bound
func (s *Store) appendItem(ctx context.Context, itemType string, action agent.ActionType, content interface{}, ts time.Time) {
	raw, err := json.Marshal(content)
	if err != nil {
		s.logger.Error("Failed to marshal memory item", "type", itemType, "error", err)
		return
	}
	data, err := json.Marshal(MemoryItem{
		Type:      itemType,
		Action:    action,
		Content:   raw,
		Timestamp: ts,
	})
	if err != nil {
		s.logger.Error("Failed to marshal memory item", "type", itemType, "error", err)
		return
	}

	if err := s.kv.LPush(ctx, redis.AgentMemoryKey, data); err != nil {
		s.logger.Warn("Failed to append memory item", "type", itemType, "error", err)
		return
	}
	if err := s.kv.LTrim(ctx, redis.AgentMemoryKey, 0, int64(s.maxEntries)-1); err != nil {
		s.logger.Warn("Failed to trim memory list", "error", err)
	}
	if err := s.kv.Expire(ctx, redis.AgentMemoryKey, s.retention); err != nil {
		s.logger.Warn("Failed to refresh memory TTL", "error", err)
	}
}

func patternMetadata(p *BehaviorPattern) (Metadata, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pattern %s: %w", p.Key, err)
	}
	return Metadata{
		"kind":       "pattern",
		"pattern":    json.RawMessage(data),
		"confidence": p.Confidence,
	}, nil
}

func patternFromMetadata(meta Metadata) (*BehaviorPattern, bool) {
	if meta == nil || meta["kind"] != "pattern" {
		return nil, false
	}
	if archived, _ := meta["archived"].(bool); archived {
		return nil, false
	}

	raw, err := json.Marshal(meta["pattern"])
	if err != nil {
		return nil, false
	}
	var p BehaviorPattern
	if err := json.Unmarshal(raw, &p); err != nil || p.Key == "" {
		return nil, false
	}
	return &p, true
}

// contextText renders the retrieval-relevant parts of a context snapshot
// as a stable text line for embedding
func contextText(c agent.Context) string {
	occupied := "empty"
	if c.Occupied {
		occupied = "occupied"
	}
	text := fmt.Sprintf("time %s period %s home %s weather %s %.1fC",
		c.TimeOfDay, agent.Period(c.Hour), occupied,
		c.Weather.Condition, c.Weather.Temperature)
	if c.SensorSummary != nil {
		text += fmt.Sprintf(" comfort %.2f risk %.2f activity %s",
			c.SensorSummary.ComfortOverall,
			c.SensorSummary.SafetyRisk,
			c.SensorSummary.ActivityState)
	}
	return text
}

func patternText(p *BehaviorPattern) string {
	return fmt.Sprintf("action %s contexts %v confidence %.2f frequency %d",
		p.Action, p.TimeContexts, p.Confidence, p.Frequency)
}
