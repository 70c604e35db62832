package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthd/hearth-platform/internal/agent"
)

// SimulatedDelivery is an in-process delivery provider used until a real
// storefront integration is configured. Orders advance through their
// lifecycle based on elapsed time against the ETA.
type SimulatedDelivery struct {
	info ProviderInfo

	mu     sync.Mutex
	orders map[string]*Order
}

// NewSimulatedDelivery creates a simulated provider with the given standing
func NewSimulatedDelivery(info ProviderInfo) *SimulatedDelivery {
	return &SimulatedDelivery{
		info:   info,
		orders: make(map[string]*Order),
	}
}

func (s *SimulatedDelivery) Info(ctx context.Context) ProviderInfo {
	return s.info
}

func (s *SimulatedDelivery) PlaceOrder(ctx context.Context, items []agent.GroceryItem) (*Order, error) {
	if !s.info.Available {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, s.info.Name)
	}

	total := s.info.DeliveryFee
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}

	now := time.Now()
	order := &Order{
		ID:        uuid.New().String(),
		Provider:  s.info.Name,
		Items:     items,
		Total:     total,
		Status:    OrderPlaced,
		ETA:       now.Add(s.info.DeliveryETA),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.orders[order.ID] = order
	s.mu.Unlock()

	return order, nil
}

func (s *SimulatedDelivery) TrackOrder(ctx context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}

	copied := *order
	copied.Status = statusAt(order, time.Now())
	return &copied, nil
}

// statusAt derives the lifecycle state from elapsed time against the ETA
func statusAt(order *Order, now time.Time) OrderStatus {
	window := order.ETA.Sub(order.CreatedAt)
	if window <= 0 {
		return OrderDelivered
	}
	elapsed := now.Sub(order.CreatedAt)
	switch {
	case elapsed >= window:
		return OrderDelivered
	case elapsed >= window/2:
		return OrderEnRoute
	case elapsed >= window/4:
		return OrderPreparing
	default:
		return OrderPlaced
	}
}
