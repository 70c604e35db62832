package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hearthd/hearth-platform/internal/agent"
)

var (
	// ErrUnknownActionType is returned when a decision carries an action
	// the executor has no dispatch arm for
	ErrUnknownActionType = errors.New("executor: unknown action type")

	// ErrProviderUnknown is returned when a named provider is not registered
	ErrProviderUnknown = errors.New("executor: unknown provider")

	// ErrProviderUnavailable is returned when the selected provider
	// reports itself unavailable
	ErrProviderUnavailable = errors.New("executor: provider unavailable")
)

// ProviderInfo describes a delivery provider's current standing, used by
// the selection strategy
type ProviderInfo struct {
	Name         string        `json:"name"`
	Available    bool          `json:"available"`
	DeliveryETA  time.Duration `json:"delivery_eta"`
	DeliveryFee  float64       `json:"delivery_fee"`
	MinimumOrder float64       `json:"minimum_order"`
	Rating       float64       `json:"rating"` // 0-5
}

// OrderStatus is the lifecycle state of a placed order
type OrderStatus string

const (
	OrderPlaced    OrderStatus = "placed"
	OrderPreparing OrderStatus = "preparing"
	OrderEnRoute   OrderStatus = "en_route"
	OrderDelivered OrderStatus = "delivered"
	OrderFailed    OrderStatus = "failed"
)

// Order is a placed delivery order
type Order struct {
	ID        string              `json:"id"`
	Provider  string              `json:"provider"`
	Items     []agent.GroceryItem `json:"items"`
	Total     float64             `json:"total"`
	Status    OrderStatus         `json:"status"`
	ETA       time.Time           `json:"eta"`
	CreatedAt time.Time           `json:"created_at"`
}

// DeliveryProvider is an external delivery service
type DeliveryProvider interface {
	// Info returns the provider's current standing
	Info(ctx context.Context) ProviderInfo

	// PlaceOrder submits an order for the given items
	PlaceOrder(ctx context.Context, items []agent.GroceryItem) (*Order, error)

	// TrackOrder returns the current status of a placed order
	TrackOrder(ctx context.Context, orderID string) (*Order, error)
}

// SmartHomeProvider drives home automation scenes and device groups
type SmartHomeProvider interface {
	// OptimizeEnergy applies energy-saving adjustments
	OptimizeEnergy(ctx context.Context) error

	// SetMood applies a lighting and climate scene
	SetMood(ctx context.Context, mood string) error

	// PrepareForSleep runs the nighttime routine
	PrepareForSleep(ctx context.Context) error
}

// HealthProvider exposes recent wellness samples for task suggestions
type HealthProvider interface {
	// Samples returns recent health samples, newest first
	Samples(ctx context.Context) ([]agent.HealthSample, error)
}

// StaticHealth is a HealthProvider fed by pushed samples, bounded to the
// most recent entries
type StaticHealth struct {
	mu      sync.Mutex
	samples []agent.HealthSample
	limit   int
}

// NewStaticHealth creates a health provider retaining up to limit samples
func NewStaticHealth(limit int) *StaticHealth {
	if limit <= 0 {
		limit = 100
	}
	return &StaticHealth{limit: limit}
}

// Push records a sample
func (h *StaticHealth) Push(sample agent.HealthSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append([]agent.HealthSample{sample}, h.samples...)
	if len(h.samples) > h.limit {
		h.samples = h.samples[:h.limit]
	}
}

func (h *StaticHealth) Samples(ctx context.Context) ([]agent.HealthSample, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]agent.HealthSample(nil), h.samples...), nil
}
