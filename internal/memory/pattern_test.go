package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hearthd/hearth-platform/internal/agent"
)

func TestSmoothConvergesMonotonically(t *testing.T) {
	confidence := 0.2
	target := 0.9

	prev := confidence
	for i := 0; i < 100; i++ {
		confidence = smooth(confidence, target)
		assert.Greater(t, confidence, prev, "iteration %d", i)
		assert.Less(t, confidence, target, "iteration %d", i)
		prev = confidence
	}

	// After enough identical observations the old value is nearly gone
	assert.InDelta(t, target, confidence, 0.01)
}

func TestSmoothSingleStep(t *testing.T) {
	// 0.5*(1-0.1) + 1.0*0.1
	assert.InDelta(t, 0.55, smooth(0.5, 1.0), 1e-9)
}

func TestMergeUnionsTimeContexts(t *testing.T) {
	p := &BehaviorPattern{
		Key:          "set_mood|evening",
		Action:       agent.ActionSetMood,
		Confidence:   0.5,
		Frequency:    1,
		TimeContexts: []string{"evening:19:00"},
	}

	now := time.Now()
	p.merge(0.8, "evening:19:00", now)
	p.merge(0.8, "evening:21:30", now)

	assert.Equal(t, 3, p.Frequency)
	assert.Equal(t, []string{"evening:19:00", "evening:21:30"}, p.TimeContexts)
	assert.Equal(t, now, p.LastUpdated)
}

func TestCloneDoesNotShareTimeContexts(t *testing.T) {
	// Spare capacity so a later merge sorts the live backing array in
	// place instead of reallocating
	contexts := make([]string, 2, 4)
	contexts[0] = "morning:08:00"
	contexts[1] = "evening:21:30"

	p := &BehaviorPattern{
		Key:          "set_mood|evening",
		Action:       agent.ActionSetMood,
		Confidence:   0.5,
		TimeContexts: contexts,
	}

	snapshot := p.clone()
	p.merge(0.8, "evening:19:00", time.Now())

	assert.Equal(t, []string{"morning:08:00", "evening:21:30"}, snapshot.TimeContexts)
	assert.Equal(t, []string{"evening:19:00", "evening:21:30", "morning:08:00"}, p.TimeContexts)
}

func TestSuccessRate(t *testing.T) {
	p := &BehaviorPattern{}

	_, ok := p.SuccessRate()
	assert.False(t, ok)

	p.Outcomes.Positive = 3
	p.Outcomes.Negative = 1
	rate, ok := p.SuccessRate()
	assert.True(t, ok)
	assert.Equal(t, 0.75, rate)
}

func TestPatternKey(t *testing.T) {
	assert.Equal(t, "optimize_energy|morning", PatternKey(agent.ActionOptimizeEnergy, "morning"))
}
