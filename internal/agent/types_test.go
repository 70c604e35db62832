package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionTypeValid(t *testing.T) {
	valid := []ActionType{
		ActionNone, ActionMaintain, ActionSuggestTask, ActionOrderGroceries,
		ActionAdjustBudget, ActionOptimizeEnergy, ActionSetMood, ActionPrepareSleep,
	}
	for _, a := range valid {
		assert.True(t, a.Valid(), "%s", a)
	}
	assert.False(t, ActionType("teleport").Valid())
	assert.False(t, ActionType("").Valid())
}

func TestOutcomeSucceeded(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    bool
	}{
		{"explicit success", Outcome{Success: true}, true},
		{"net positive impact", Outcome{PositiveImpact: 0.6, NegativeImpact: 0.2}, true},
		{"net negative impact", Outcome{PositiveImpact: 0.2, NegativeImpact: 0.6}, false},
		{"balanced impact", Outcome{PositiveImpact: 0.5, NegativeImpact: 0.5}, false},
		{"nothing happened", Outcome{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.outcome.Succeeded())
		})
	}
}

func TestDecodePayload(t *testing.T) {
	d := Decision{
		Action:  ActionSetMood,
		Payload: []byte(`{"mood": "relax"}`),
	}

	var mood MoodPayload
	require.NoError(t, d.DecodePayload(&mood))
	assert.Equal(t, "relax", mood.Mood)

	empty := Decision{Action: ActionSetMood}
	assert.Error(t, empty.DecodePayload(&mood))

	broken := Decision{Action: ActionSetMood, Payload: []byte(`{`)}
	assert.Error(t, broken.DecodePayload(&mood))
}

func TestPeriod(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "night"},
		{5, "night"},
		{6, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{17, "afternoon"},
		{18, "evening"},
		{23, "evening"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Period(tt.hour), "hour=%d", tt.hour)
	}
}

func TestIsNightHours(t *testing.T) {
	assert.True(t, IsNightHours(22))
	assert.True(t, IsNightHours(23))
	assert.True(t, IsNightHours(0))
	assert.True(t, IsNightHours(5))
	assert.False(t, IsNightHours(6))
	assert.False(t, IsNightHours(21))
}
