package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/memory"
)

func TestParseDecisionValid(t *testing.T) {
	raw := `{
		"action": "set_mood",
		"confidence": 0.85,
		"reasoning": ["evening wind-down routine"],
		"impact": {"comfort": 0.7},
		"payload": {"mood": "relax"}
	}`

	d, err := parseDecision(raw)
	require.NoError(t, err)
	assert.Equal(t, "set_mood", d.Action)
	assert.Equal(t, 0.85, d.Confidence)
	assert.Equal(t, 0.7, d.Impact.Comfort)
	assert.JSONEq(t, `{"mood": "relax"}`, string(d.Payload))
}

func TestParseDecisionRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "the model rambled instead of answering"},
		{"missing action", `{"confidence": 0.9, "reasoning": ["x"]}`},
		{"unknown action", `{"action": "launch_rocket", "confidence": 0.9, "reasoning": ["x"]}`},
		{"confidence out of range", `{"action": "set_mood", "confidence": 1.5, "reasoning": ["x"]}`},
		{"empty reasoning", `{"action": "set_mood", "confidence": 0.9, "reasoning": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDecision(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestBuildPromptIncludesContext(t *testing.T) {
	c := agent.Context{
		TimeOfDay: "19:30",
		Hour:      19,
		Occupied:  true,
		Weather:   agent.Weather{Condition: agent.WeatherRain, Temperature: 8},
		Prefs:     agent.DefaultPreferences(),
		SensorSummary: &agent.SensorSummary{
			ComfortOverall: 0.82,
			SafetyAlerts:   []string{"Elevated CO2 levels: 1100 ppm"},
		},
	}
	patterns := []memory.PatternMatch{
		{Pattern: memory.BehaviorPattern{
			Action:       agent.ActionSetMood,
			Confidence:   0.9,
			Frequency:    12,
			TimeContexts: []string{"evening:19:30"},
		}},
	}

	prompt := buildPrompt(c, patterns, nil)
	assert.Contains(t, prompt, "19:30")
	assert.Contains(t, prompt, "rain")
	assert.Contains(t, prompt, "set_mood")
	assert.Contains(t, prompt, "ALERT: Elevated CO2 levels")
	assert.Contains(t, prompt, "maintain_current_state")
}
