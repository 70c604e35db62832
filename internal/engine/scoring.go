package engine

import (
	"fmt"
	"math"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/memory"
)

// Weights of the context confidence blend
const (
	timeWeight    = 0.3
	envWeight     = 0.3
	patternWeight = 0.4
)

// Additive risk contributions
const (
	highRisk   = 0.3
	mediumRisk = 0.1
)

// contextConfidence blends three familiarity signals into [0,1]:
// how routine the time of day is, how well-known the environment is,
// and how strongly past patterns match.
func contextConfidence(c agent.Context, patterns []memory.PatternMatch) float64 {
	return clamp01(timeWeight*timeScore(c) +
		envWeight*environmentScore(c) +
		patternWeight*patternScore(patterns))
}

// timeScore rates how predictable the household usually is at this hour
func timeScore(c agent.Context) float64 {
	switch agent.Period(c.Hour) {
	case "morning", "evening":
		return 0.9
	case "afternoon":
		return 0.8
	default: // night
		return 0.6
	}
}

// environmentScore rates how much the engine knows about current
// conditions: full sensor coverage beats weather-only, which beats
// nothing
func environmentScore(c agent.Context) float64 {
	if c.SensorSummary != nil {
		// A dangerous environment is also an uncertain one
		return clamp01(0.9 * (1 - c.SensorSummary.SafetyRisk))
	}
	if c.Weather.Condition != agent.WeatherUnknown {
		return 0.7
	}
	return 0.5
}

// patternScore is the strongest retrieved pattern's confidence, or a low
// default when nothing similar has been seen before
func patternScore(patterns []memory.PatternMatch) float64 {
	best := 0.3
	for _, m := range patterns {
		if m.Pattern.Confidence > best {
			best = m.Pattern.Confidence
		}
	}
	return best
}

// inferenceTemperature maps context confidence to sampling temperature:
// the more familiar the situation, the more deterministic the model,
// floored at 0.1
func inferenceTemperature(confidence float64) float64 {
	return math.Max(0.1, 1-confidence)
}

// riskFactor is one named contribution to the risk score
type riskFactor struct {
	reason string
	weight float64
}

// assessRisk accumulates risk additively from independent context
// factors and clamps to [0,1]. Each factor also yields a human-readable
// reason for the decision log.
func assessRisk(c agent.Context) (float64, []string) {
	var factors []riskFactor

	if c.SensorSummary != nil {
		if c.SensorSummary.SafetyRisk >= 0.5 {
			factors = append(factors, riskFactor{"active safety hazard", highRisk})
		} else if c.SensorSummary.SafetyRisk > 0 {
			factors = append(factors, riskFactor{"elevated safety risk", mediumRisk})
		}
		if len(c.SensorSummary.SafetyAlerts) > 0 {
			factors = append(factors, riskFactor{
				fmt.Sprintf("%d active sensor alerts", len(c.SensorSummary.SafetyAlerts)),
				highRisk,
			})
		}
	}

	if c.Weather.Condition == agent.WeatherStorm {
		factors = append(factors, riskFactor{"storm conditions", mediumRisk})
	}
	if !c.Occupied {
		factors = append(factors, riskFactor{"home unoccupied", mediumRisk})
	}
	if agent.IsQuietHours(c.Hour) {
		factors = append(factors, riskFactor{"quiet hours", mediumRisk})
	}

	risk := 0.0
	reasons := make([]string, 0, len(factors))
	for _, f := range factors {
		risk += f.weight
		reasons = append(reasons, f.reason)
	}
	return clamp01(risk), reasons
}

// historyFactor scales confidence by the action's track record:
// 0.5 + successRate*0.5, so a perfect record passes confidence through
// and a fully failing one halves it. An action with no history is not
// penalized.
func historyFactor(successRate float64, total int) float64 {
	if total == 0 {
		return 1
	}
	return 0.5 + successRate*0.5
}

// decisionConfidence combines the model's base confidence with risk
// discounting and the action's history: min(1, base*(1-risk)*history)
func decisionConfidence(base, risk, history float64) float64 {
	return math.Min(1, base*(1-risk)*history)
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
