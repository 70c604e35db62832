package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/memory"
)

func TestInferenceTemperature(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{0.0, 1.0},
		{0.4, 0.6},
		{0.9, 0.1},
		{0.95, 0.1}, // floored
		{1.0, 0.1},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, inferenceTemperature(tt.confidence), 1e-9,
			"confidence=%v", tt.confidence)
	}
}

func TestDecisionConfidence(t *testing.T) {
	tests := []struct {
		name    string
		base    float64
		risk    float64
		history float64
		want    float64
	}{
		{"no risk, clean history", 0.9, 0, 1, 0.9},
		{"all middling", 0.5, 0.5, 0.5, 0.125},
		{"capped at one", 2, 0, 1, 1},
		{"full risk kills it", 0.9, 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, decisionConfidence(tt.base, tt.risk, tt.history), 1e-9)
		})
	}
}

func TestHistoryFactor(t *testing.T) {
	assert.Equal(t, 1.0, historyFactor(0, 0), "no history is not penalized")
	assert.Equal(t, 1.0, historyFactor(1, 10))
	assert.Equal(t, 0.75, historyFactor(0.5, 10))
	assert.Equal(t, 0.5, historyFactor(0, 10))
}

func TestContextConfidenceBlend(t *testing.T) {
	c := agent.Context{
		Hour:    19, // evening
		Weather: agent.Weather{Condition: agent.WeatherClear},
	}
	patterns := []memory.PatternMatch{
		{Pattern: memory.BehaviorPattern{Confidence: 0.9}},
		{Pattern: memory.BehaviorPattern{Confidence: 0.7}},
	}

	// 0.3*0.9 + 0.3*0.7 + 0.4*0.9
	got := contextConfidence(c, patterns)
	assert.InDelta(t, 0.84, got, 1e-9)
}

func TestContextConfidenceNoPatterns(t *testing.T) {
	c := agent.Context{Hour: 3} // night, nothing known
	// 0.3*0.6 + 0.3*0.5 + 0.4*0.3
	assert.InDelta(t, 0.45, contextConfidence(c, nil), 1e-9)
}

func TestAssessRiskAccumulates(t *testing.T) {
	c := agent.Context{
		Hour:     23, // quiet hours
		Occupied: false,
		Weather:  agent.Weather{Condition: agent.WeatherStorm},
		SensorSummary: &agent.SensorSummary{
			SafetyRisk:   0.6,
			SafetyAlerts: []string{"Smoke detected"},
		},
	}

	risk, reasons := assessRisk(c)
	// high hazard 0.3 + alerts 0.3 + storm 0.1 + unoccupied 0.1 + quiet 0.1
	assert.InDelta(t, 0.9, risk, 1e-9)
	assert.Len(t, reasons, 5)
}

func TestAssessRiskClamps(t *testing.T) {
	c := agent.Context{
		Hour:     23,
		Occupied: false,
		Weather:  agent.Weather{Condition: agent.WeatherStorm},
		SensorSummary: &agent.SensorSummary{
			SafetyRisk:   1,
			SafetyAlerts: []string{"a", "b", "c", "d", "e"},
		},
	}

	risk, _ := assessRisk(c)
	assert.LessOrEqual(t, risk, 1.0)
}

func TestAssessRiskCalmDaytime(t *testing.T) {
	c := agent.Context{
		Hour:          15,
		Occupied:      true,
		Weather:       agent.Weather{Condition: agent.WeatherClear},
		SensorSummary: &agent.SensorSummary{},
	}

	risk, reasons := assessRisk(c)
	assert.Zero(t, risk)
	assert.Empty(t, reasons)
}
