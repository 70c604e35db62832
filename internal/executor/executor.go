package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/memory"
	"github.com/hearthd/hearth-platform/pkg/mqtt"
)

// Executor dispatches accepted decisions to the external providers.
// Every dispatch, successful or not, is recorded as an outcome so the
// memory layer can learn from it.
type Executor struct {
	delivery  map[string]DeliveryProvider
	smartHome SmartHomeProvider
	health    HealthProvider
	selection SelectionStrategy
	store     *memory.Store
	mqtt      mqtt.Client
	logger    *slog.Logger
}

// New creates an executor. A nil selection strategy falls back to
// DefaultSelection.
func New(smartHome SmartHomeProvider, health HealthProvider, store *memory.Store, mqttClient mqtt.Client, selection SelectionStrategy, logger *slog.Logger) *Executor {
	if selection == nil {
		selection = DefaultSelection
	}
	return &Executor{
		delivery:  make(map[string]DeliveryProvider),
		smartHome: smartHome,
		health:    health,
		selection: selection,
		store:     store,
		mqtt:      mqttClient,
		logger:    logger,
	}
}

// RegisterDelivery adds a delivery provider under its name
func (e *Executor) RegisterDelivery(name string, p DeliveryProvider) {
	e.delivery[name] = p
}

// Execute dispatches one decision. The returned outcome is also recorded
// in pattern memory. ActionNone is a skip and records nothing.
func (e *Executor) Execute(ctx context.Context, d agent.Decision) (agent.Outcome, error) {
	if d.Action == agent.ActionNone {
		return agent.Outcome{Success: true, Timestamp: time.Now()}, nil
	}

	start := time.Now()
	err := e.dispatch(ctx, d)
	outcome := buildOutcome(d, err, start)

	if err != nil {
		e.logger.Error("Action execution failed",
			"action", d.Action,
			"decision_id", d.ID,
			"error", err)
	} else {
		e.logger.Info("Action executed",
			"action", d.Action,
			"decision_id", d.ID,
			"duration_ms", outcome.Duration.Milliseconds())
	}

	e.store.RecordOutcome(ctx, d, outcome)
	return outcome, err
}

func (e *Executor) dispatch(ctx context.Context, d agent.Decision) error {
	switch d.Action {
	case agent.ActionMaintain:
		return nil
	case agent.ActionSuggestTask:
		return e.suggestTask(ctx, d)
	case agent.ActionOrderGroceries:
		return e.orderGroceries(ctx, d)
	case agent.ActionAdjustBudget:
		return e.adjustBudget(ctx, d)
	case agent.ActionOptimizeEnergy:
		return e.smartHome.OptimizeEnergy(ctx)
	case agent.ActionSetMood:
		return e.setMood(ctx, d)
	case agent.ActionPrepareSleep:
		return e.smartHome.PrepareForSleep(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownActionType, d.Action)
	}
}

// suggestTask publishes a task suggestion, enriched with recent health
// samples when a health provider is wired
func (e *Executor) suggestTask(ctx context.Context, d agent.Decision) error {
	var task agent.TaskPayload
	if err := d.DecodePayload(&task); err != nil {
		return err
	}

	suggestion := map[string]interface{}{
		"type":  "task_suggestion",
		"title": task.Title,
		"notes": task.Notes,
	}

	if e.health != nil {
		if samples, err := e.health.Samples(ctx); err != nil {
			e.logger.Warn("Health samples unavailable for task suggestion", "error", err)
		} else if len(samples) > 0 {
			suggestion["health_context"] = samples
		}
	}

	return e.notify(suggestion)
}

// orderGroceries selects a delivery provider and places the order
func (e *Executor) orderGroceries(ctx context.Context, d agent.Decision) error {
	var payload agent.GroceryPayload
	if err := d.DecodePayload(&payload); err != nil {
		return err
	}
	if len(payload.Items) == 0 {
		return fmt.Errorf("grocery order has no items")
	}

	infos := make([]ProviderInfo, 0, len(e.delivery))
	names := make([]string, 0, len(e.delivery))
	for name := range e.delivery {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		infos = append(infos, e.delivery[name].Info(ctx))
	}

	chosen := e.selection(ctx, payload.Items, infos)
	if chosen == "" {
		return fmt.Errorf("%w: no delivery provider can serve this order", ErrProviderUnavailable)
	}
	provider, ok := e.delivery[chosen]
	if !ok {
		return fmt.Errorf("%w: %q", ErrProviderUnknown, chosen)
	}

	order, err := provider.PlaceOrder(ctx, payload.Items)
	if err != nil {
		return fmt.Errorf("failed to place order with %s: %w", chosen, err)
	}

	e.logger.Info("Grocery order placed",
		"provider", chosen,
		"order_id", order.ID,
		"items", len(order.Items),
		"total", order.Total)
	return nil
}

// adjustBudget publishes a budget adjustment event for the household
// ledger
func (e *Executor) adjustBudget(ctx context.Context, d agent.Decision) error {
	var payload agent.BudgetPayload
	if err := d.DecodePayload(&payload); err != nil {
		return err
	}
	return e.notify(map[string]interface{}{
		"type":     "budget_adjustment",
		"category": payload.Category,
		"delta":    payload.Delta,
	})
}

func (e *Executor) setMood(ctx context.Context, d agent.Decision) error {
	mood := "relax"
	if len(d.Payload) > 0 {
		var payload agent.MoodPayload
		if err := d.DecodePayload(&payload); err != nil {
			return err
		}
		mood = payload.Mood
	}
	return e.smartHome.SetMood(ctx, mood)
}

// notify publishes an agent-level event on the context topic
func (e *Executor) notify(event map[string]interface{}) error {
	event["timestamp"] = time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal agent event: %w", err)
	}
	if err := e.mqtt.Publish(mqtt.TopicAgentContext, 0, false, payload); err != nil {
		return fmt.Errorf("failed to publish agent event: %w", err)
	}
	return nil
}

// buildOutcome derives the learning signal from an execution attempt.
// Success credits the decision's estimated impact; failure debits a flat
// penalty.
func buildOutcome(d agent.Decision, err error, start time.Time) agent.Outcome {
	outcome := agent.Outcome{
		Success:   err == nil,
		Timestamp: start,
		Duration:  time.Since(start),
	}
	if err == nil {
		outcome.PositiveImpact = (d.Impact.Health + d.Impact.Productivity + d.Impact.Comfort) / 3
	} else {
		outcome.NegativeImpact = 0.5
	}
	return outcome
}
