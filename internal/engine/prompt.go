package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/memory"
)

const systemPrompt = `You are a home management agent. You observe the household
context and decide on at most one action per cycle. Respond with a single JSON
object and nothing else.`

// decisionSchemaJSON constrains the model output: a known action, a
// confidence in [0,1], and at least one line of reasoning
const decisionSchemaJSON = `{
	"type": "object",
	"required": ["action", "confidence", "reasoning"],
	"properties": {
		"action": {
			"type": "string",
			"enum": [
				"maintain_current_state",
				"suggest_task",
				"order_groceries",
				"adjust_budget",
				"optimize_energy",
				"set_mood",
				"prepare_sleep"
			]
		},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reasoning": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 1
		},
		"impact": {
			"type": "object",
			"properties": {
				"health": {"type": "number", "minimum": 0, "maximum": 1},
				"productivity": {"type": "number", "minimum": 0, "maximum": 1},
				"comfort": {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"payload": {"type": "object"},
		"alternatives": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["action", "confidence"],
				"properties": {
					"action": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1},
					"reasoning": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

var decisionSchema = mustCompileSchema(decisionSchemaJSON)

func mustCompileSchema(src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid decision schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision.json", doc); err != nil {
		panic(fmt.Sprintf("invalid decision schema: %v", err))
	}
	schema, err := compiler.Compile("decision.json")
	if err != nil {
		panic(fmt.Sprintf("invalid decision schema: %v", err))
	}
	return schema
}

// llmDecision is the wire shape of a validated model response
type llmDecision struct {
	Action       string           `json:"action"`
	Confidence   float64          `json:"confidence"`
	Reasoning    []string         `json:"reasoning"`
	Impact       agent.Impact     `json:"impact"`
	Payload      json.RawMessage  `json:"payload,omitempty"`
	Alternatives []llmAlternative `json:"alternatives,omitempty"`
}

type llmAlternative struct {
	Action     string   `json:"action"`
	Confidence float64  `json:"confidence"`
	Reasoning  []string `json:"reasoning,omitempty"`
}

// parseDecision validates the raw completion against the decision schema
// and decodes it. Any failure maps to ErrMalformedResponse.
func parseDecision(raw string) (*llmDecision, error) {
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := decisionSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var d llmDecision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !agent.ActionType(d.Action).Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformedResponse, d.Action)
	}
	return &d, nil
}

// buildPrompt renders the context, retrieved patterns, and recent memory
// into the per-cycle prompt
func buildPrompt(c agent.Context, patterns []memory.PatternMatch, recent []memory.MemoryItem) string {
	var b strings.Builder

	b.WriteString("Current household context:\n")
	writeContext(&b, c)

	if len(patterns) > 0 {
		b.WriteString("\nEstablished behavior patterns (most similar first):\n")
		for _, m := range patterns {
			fmt.Fprintf(&b, "- %s at %s (confidence %.2f, seen %d times)\n",
				m.Pattern.Action,
				strings.Join(m.Pattern.TimeContexts, ", "),
				m.Pattern.Confidence,
				m.Pattern.Frequency)
		}
	}

	if len(recent) > 0 {
		b.WriteString("\nRecent activity (newest first):\n")
		limit := len(recent)
		if limit > 10 {
			limit = 10
		}
		for _, item := range recent[:limit] {
			fmt.Fprintf(&b, "- %s %s at %s\n",
				item.Type, item.Action, item.Timestamp.Format("15:04"))
		}
	}

	b.WriteString(`
Decide the single most valuable action right now, or maintain_current_state
if nothing is clearly needed. Answer with one JSON object matching:
{"action": "...", "confidence": 0.0-1.0, "reasoning": ["..."],
 "impact": {"health": 0-1, "productivity": 0-1, "comfort": 0-1},
 "payload": {...}, "alternatives": [{"action": "...", "confidence": 0.0-1.0}]}
`)

	return b.String()
}

func writeContext(b *strings.Builder, c agent.Context) {
	occupied := "unoccupied"
	if c.Occupied {
		occupied = "occupied"
	}
	fmt.Fprintf(b, "- Time: %s (%s), home %s\n", c.TimeOfDay, agent.Period(c.Hour), occupied)
	fmt.Fprintf(b, "- Weather: %s, %.1f°C, humidity %.0f%%\n",
		c.Weather.Condition, c.Weather.Temperature, c.Weather.Humidity)

	daylight := "dark"
	if c.Daylight.IsDaytime {
		daylight = "daylight"
		if c.Daylight.IsGoldenHour {
			daylight = "golden hour"
		}
	}
	fmt.Fprintf(b, "- Outside: %s\n", daylight)

	if c.SensorSummary != nil {
		fmt.Fprintf(b, "- Indoor comfort %.2f, safety risk %.2f, energy score %.2f, activity %s\n",
			c.SensorSummary.ComfortOverall,
			c.SensorSummary.SafetyRisk,
			c.SensorSummary.EnergyScore,
			c.SensorSummary.ActivityState)
		for _, alert := range c.SensorSummary.SafetyAlerts {
			fmt.Fprintf(b, "- ALERT: %s\n", alert)
		}
	}

	fmt.Fprintf(b, "- Preferred temperature: %.0f-%.0f°C\n",
		c.Prefs.Temperature.Min, c.Prefs.Temperature.Max)
}
