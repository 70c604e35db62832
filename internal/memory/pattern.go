package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/hearthd/hearth-platform/internal/agent"
)

// LearningRate is the exponential smoothing factor for pattern confidence
const LearningRate = 0.1

// OutcomeTally counts positive and negative outcomes for a pattern
type OutcomeTally struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// BehaviorPattern is a recurring (action, time-context) association with a
// learned confidence. Once a pattern exists its confidence is only ever
// recomputed through smoothing, never overwritten outright.
type BehaviorPattern struct {
	Key          string           `json:"key"`
	Action       agent.ActionType `json:"action"`
	Confidence   float64          `json:"confidence"`
	Frequency    int              `json:"frequency"`
	TimeContexts []string         `json:"time_contexts"`
	Outcomes     OutcomeTally     `json:"outcomes"`
	LastUpdated  time.Time        `json:"last_updated"`
}

// PatternKey derives the identity of a pattern from its action and
// temporal signature
func PatternKey(action agent.ActionType, period string) string {
	return fmt.Sprintf("%s|%s", action, period)
}

// smooth blends an incoming confidence into the existing one:
// new = old*(1-α) + incoming*α. Repeated identical inputs converge
// monotonically toward the incoming value.
func smooth(old, incoming float64) float64 {
	return old*(1-LearningRate) + incoming*LearningRate
}

// merge folds one observation into the pattern: smoothed confidence,
// incremented frequency, set-union time contexts
func (p *BehaviorPattern) merge(confidence float64, timeContext string, now time.Time) {
	p.Confidence = clamp01(smooth(p.Confidence, confidence))
	p.Frequency++
	p.addTimeContext(timeContext)
	p.LastUpdated = now
}

// clone returns a copy safe to read after the store lock is released.
// merge sorts TimeContexts in place, so the slice must not be shared.
func (p *BehaviorPattern) clone() BehaviorPattern {
	out := *p
	out.TimeContexts = append([]string(nil), p.TimeContexts...)
	return out
}

func (p *BehaviorPattern) addTimeContext(tag string) {
	for _, existing := range p.TimeContexts {
		if existing == tag {
			return
		}
	}
	p.TimeContexts = append(p.TimeContexts, tag)
	sort.Strings(p.TimeContexts)
}

// SuccessRate returns the fraction of positive outcomes, and whether any
// outcomes have been recorded at all
func (p *BehaviorPattern) SuccessRate() (float64, bool) {
	total := p.Outcomes.Positive + p.Outcomes.Negative
	if total == 0 {
		return 0, false
	}
	return float64(p.Outcomes.Positive) / float64(total), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
