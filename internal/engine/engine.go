package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/memory"
	"github.com/hearthd/hearth-platform/pkg/llm"
)

// Status is a point-in-time view of the engine for the API and health
// surfaces
type Status struct {
	IsProcessing bool            `json:"is_processing"`
	LastDecision *agent.Decision `json:"last_decision,omitempty"`
	LastCycleAt  time.Time       `json:"last_cycle_at"`
	CycleCount   int             `json:"cycle_count"`
}

// Engine runs the decision cycle: build context, retrieve patterns,
// consult the model, score the candidate, and accept or fall back. At
// most one cycle runs at a time; overlapping triggers are skipped, never
// queued.
type Engine struct {
	llm     llm.Client
	store   *memory.Store
	builder *ContextBuilder
	logger  *slog.Logger

	now func() time.Time

	mu           sync.Mutex
	thinking     bool
	lastDecision *agent.Decision
	lastCycleAt  time.Time
	cycleCount   int
	subscribers  []chan agent.Decision
}

// New creates a decision engine
func New(llmClient llm.Client, store *memory.Store, builder *ContextBuilder, logger *slog.Logger) *Engine {
	return &Engine{
		llm:     llmClient,
		store:   store,
		builder: builder,
		logger:  logger,
		now:     time.Now,
	}
}

// Think runs one decision cycle. If a cycle is already in flight it
// returns a skip decision immediately. The busy flag is released on
// every exit path, including errors.
func (e *Engine) Think(ctx context.Context) (agent.Decision, error) {
	e.mu.Lock()
	if e.thinking {
		e.mu.Unlock()
		e.logger.Debug("Decision cycle already in progress, skipping")
		return skipDecision("decision cycle already in progress"), nil
	}
	e.thinking = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.thinking = false
		e.mu.Unlock()
	}()

	decision, err := e.runCycle(ctx)

	e.mu.Lock()
	e.lastCycleAt = time.Now()
	e.cycleCount++
	if err == nil && decision.Action != agent.ActionNone {
		copied := decision
		e.lastDecision = &copied
	}
	e.mu.Unlock()

	if err == nil && decision.Action != agent.ActionNone {
		e.notify(decision)
	}
	return decision, err
}

func (e *Engine) runCycle(ctx context.Context) (agent.Decision, error) {
	now := e.now()
	snapshot := e.builder.Build(ctx, now)

	patterns := e.store.RelevantPatterns(ctx, snapshot)
	recent := e.store.RecentMemory(ctx, 0)

	baseConfidence := contextConfidence(snapshot, patterns)
	temperature := inferenceTemperature(baseConfidence)

	e.logger.Debug("Decision cycle started",
		"context_confidence", baseConfidence,
		"temperature", temperature,
		"patterns", len(patterns),
		"recent_items", len(recent))

	raw, err := e.llm.Complete(ctx, llm.CompleteRequest{
		Prompt:      buildPrompt(snapshot, patterns, recent),
		System:      systemPrompt,
		Temperature: temperature,
	})
	if err != nil {
		return agent.Decision{Action: agent.ActionNone}, fmt.Errorf("inference failed: %w", err)
	}

	candidate, err := parseDecision(raw)
	if err != nil {
		return agent.Decision{Action: agent.ActionNone}, err
	}

	action := agent.ActionType(candidate.Action)
	risk, riskReasons := assessRisk(snapshot)
	successRate, outcomes := e.store.SuccessRate(action)
	history := historyFactor(successRate, outcomes)
	confidence := decisionConfidence(candidate.Confidence, risk, history)
	threshold := e.store.Threshold(action)

	e.logger.Info("Candidate decision scored",
		"action", action,
		"base_confidence", candidate.Confidence,
		"risk", risk,
		"history_factor", history,
		"final_confidence", confidence,
		"threshold", threshold)

	if confidence <= threshold {
		decision := e.fallbackDecision(candidate, confidence, threshold, riskReasons, now)
		e.store.RecordDecision(ctx, decision, snapshot)
		return decision, nil
	}

	decision := agent.Decision{
		ID:           uuid.New().String(),
		Action:       action,
		Confidence:   confidence,
		Reasoning:    candidate.Reasoning,
		Alternatives: alternativeDecisions(candidate.Alternatives, now),
		Impact:       candidate.Impact,
		Payload:      candidate.Payload,
		CreatedAt:    now,
	}
	e.store.RecordDecision(ctx, decision, snapshot)
	return decision, nil
}

// fallbackDecision replaces a below-threshold candidate with the safe
// default, carrying the rejection reasoning and the rejected candidate
// as an alternative. Its confidence is pinned to the global gate.
func (e *Engine) fallbackDecision(candidate *llmDecision, confidence, threshold float64, riskReasons []string, now time.Time) agent.Decision {
	reasoning := []string{
		fmt.Sprintf("rejected %s: confidence %.2f below threshold %.2f",
			candidate.Action, confidence, threshold),
	}
	for _, r := range riskReasons {
		reasoning = append(reasoning, "risk: "+r)
	}

	return agent.Decision{
		ID:         uuid.New().String(),
		Action:     agent.ActionMaintain,
		Confidence: agent.MinConfidence,
		Reasoning:  reasoning,
		Alternatives: []agent.Decision{{
			Action:     agent.ActionType(candidate.Action),
			Confidence: confidence,
			Reasoning:  candidate.Reasoning,
			Payload:    candidate.Payload,
			CreatedAt:  now,
		}},
		CreatedAt: now,
	}
}

func alternativeDecisions(alts []llmAlternative, now time.Time) []agent.Decision {
	var out []agent.Decision
	for _, alt := range alts {
		action := agent.ActionType(alt.Action)
		if !action.Valid() {
			continue
		}
		out = append(out, agent.Decision{
			Action:     action,
			Confidence: alt.Confidence,
			Reasoning:  alt.Reasoning,
			CreatedAt:  now,
		})
	}
	return out
}

func skipDecision(reason string) agent.Decision {
	return agent.Decision{
		Action:    agent.ActionNone,
		Reasoning: []string{reason},
		CreatedAt: time.Now(),
	}
}

// Status returns a snapshot of the engine state
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		IsProcessing: e.thinking,
		LastDecision: e.lastDecision,
		LastCycleAt:  e.lastCycleAt,
		CycleCount:   e.cycleCount,
	}
}

// Subscribe returns a channel receiving every accepted decision. Slow
// subscribers drop decisions rather than blocking the cycle.
func (e *Engine) Subscribe() <-chan agent.Decision {
	ch := make(chan agent.Decision, 8)
	e.mu.Lock()
	e.subscribers = append(e.subscribers, ch)
	e.mu.Unlock()
	return ch
}

func (e *Engine) notify(d agent.Decision) {
	e.mu.Lock()
	subscribers := e.subscribers
	e.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- d:
		default:
			e.logger.Warn("Dropping decision for slow subscriber", "action", d.Action)
		}
	}
}
