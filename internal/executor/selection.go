package executor

import (
	"context"
	"time"

	"github.com/hearthd/hearth-platform/internal/agent"
)

// SelectionStrategy picks a delivery provider for an order. It returns
// the chosen provider's name, or "" when no provider qualifies.
type SelectionStrategy func(ctx context.Context, items []agent.GroceryItem, providers []ProviderInfo) string

// DefaultSelection scores each available provider on speed, cost, and
// rating, weighting speed harder when any item is urgent. Unavailable
// providers and providers whose minimum exceeds the order total are
// skipped.
func DefaultSelection(ctx context.Context, items []agent.GroceryItem, providers []ProviderInfo) string {
	urgent := false
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
		if item.Urgency == "high" {
			urgent = true
		}
	}

	speedWeight, costWeight, ratingWeight := 0.4, 0.35, 0.25
	if urgent {
		speedWeight, costWeight, ratingWeight = 0.6, 0.2, 0.2
	}

	best := ""
	bestScore := -1.0
	for _, p := range providers {
		if !p.Available || total < p.MinimumOrder {
			continue
		}

		// ETA scored against a one-hour horizon, fee against a 10-unit cap
		speed := 1 - clampRatio(p.DeliveryETA, time.Hour)
		cost := 1 - clampRatio01(p.DeliveryFee/10)
		rating := clampRatio01(p.Rating / 5)

		score := speedWeight*speed + costWeight*cost + ratingWeight*rating
		if score > bestScore {
			bestScore = score
			best = p.Name
		}
	}
	return best
}

func clampRatio(d, max time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	if d >= max {
		return 1
	}
	return float64(d) / float64(max)
}

func clampRatio01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
