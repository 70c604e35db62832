package agent

import (
	"encoding/json"
	"fmt"
	"time"
)

// MinConfidence is the global acceptance gate: decisions scoring below it
// are rejected, and learned per-action thresholds never drop under it.
const MinConfidence = 0.7

// ActionType is the closed set of actions the engine can decide on.
// Dispatch in the executor switches exhaustively over these values.
type ActionType string

const (
	// ActionNone is the no-op result of a rejected or skipped think cycle
	ActionNone ActionType = "none"

	// ActionMaintain keeps the current home state; the safe fallback action
	ActionMaintain ActionType = "maintain_current_state"

	ActionSuggestTask    ActionType = "suggest_task"
	ActionOrderGroceries ActionType = "order_groceries"
	ActionAdjustBudget   ActionType = "adjust_budget"
	ActionOptimizeEnergy ActionType = "optimize_energy"
	ActionSetMood        ActionType = "set_mood"
	ActionPrepareSleep   ActionType = "prepare_sleep"
)

// Valid reports whether t is a known action type
func (t ActionType) Valid() bool {
	switch t {
	case ActionNone, ActionMaintain, ActionSuggestTask, ActionOrderGroceries,
		ActionAdjustBudget, ActionOptimizeEnergy, ActionSetMood, ActionPrepareSleep:
		return true
	}
	return false
}

// GroceryItem is a single item in a grocery order payload
type GroceryItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Urgency  string  `json:"urgency"` // low, medium, high
}

// GroceryPayload is the payload for ActionOrderGroceries
type GroceryPayload struct {
	Items []GroceryItem `json:"items"`
}

// MoodPayload is the payload for ActionSetMood
type MoodPayload struct {
	Mood string `json:"mood"` // work, relax, party
}

// TaskPayload is the payload for ActionSuggestTask
type TaskPayload struct {
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
}

// BudgetPayload is the payload for ActionAdjustBudget
type BudgetPayload struct {
	Category string  `json:"category"`
	Delta    float64 `json:"delta"`
}

// Impact estimates the effect of a decision on each tracked dimension,
// each value in [0,1].
type Impact struct {
	Health       float64 `json:"health"`
	Productivity float64 `json:"productivity"`
	Comfort      float64 `json:"comfort"`
}

// Decision is the immutable output of one accepted think cycle
type Decision struct {
	ID           string          `json:"id"`
	Action       ActionType      `json:"action"`
	Confidence   float64         `json:"confidence"`
	Reasoning    []string        `json:"reasoning"`
	Alternatives []Decision      `json:"alternatives,omitempty"`
	Impact       Impact          `json:"impact"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DecodePayload decodes the decision payload into the per-type shape
func (d *Decision) DecodePayload(v interface{}) error {
	if len(d.Payload) == 0 {
		return fmt.Errorf("decision %s has no payload", d.Action)
	}
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", d.Action, err)
	}
	return nil
}

// Outcome is the result of executing or evaluating a decision. It exists
// only to feed learning; it is not retained beyond the short-term window.
type Outcome struct {
	Success        bool          `json:"success"`
	PositiveImpact float64       `json:"positive_impact"`
	NegativeImpact float64       `json:"negative_impact"`
	Timestamp      time.Time     `json:"timestamp"`
	Duration       time.Duration `json:"duration"`
}

// Succeeded reports whether the outcome counts as positive: an explicit
// success flag, or a net-positive impact differential
func (o Outcome) Succeeded() bool {
	return o.Success || o.PositiveImpact > o.NegativeImpact
}

// HealthSample is a typed health reading pushed by the health provider
type HealthSample struct {
	Kind      string    `json:"kind"` // steps, heart_rate, sleep_quality
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
