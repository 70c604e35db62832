package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthd/hearth-platform/pkg/mqtt"
)

// MQTTSmartHome drives home automation by publishing command messages on
// the automation/command hierarchy. Downstream device controllers
// subscribe per domain.
type MQTTSmartHome struct {
	mqtt   mqtt.Client
	logger *slog.Logger
}

// NewMQTTSmartHome creates a smart home provider over the MQTT bus
func NewMQTTSmartHome(mqttClient mqtt.Client, logger *slog.Logger) *MQTTSmartHome {
	return &MQTTSmartHome{mqtt: mqttClient, logger: logger}
}

type commandMessage struct {
	Command   string                 `json:"command"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// OptimizeEnergy asks device controllers to shed discretionary load
func (s *MQTTSmartHome) OptimizeEnergy(ctx context.Context) error {
	return s.publish(ctx, "energy", commandMessage{
		Command: "optimize",
		Params: map[string]interface{}{
			"shed_discretionary": true,
		},
		Timestamp: time.Now(),
	})
}

// SetMood applies a lighting and climate scene
func (s *MQTTSmartHome) SetMood(ctx context.Context, mood string) error {
	return s.publish(ctx, "mood", commandMessage{
		Command: "set_scene",
		Params: map[string]interface{}{
			"scene": mood,
		},
		Timestamp: time.Now(),
	})
}

// PrepareForSleep runs the nighttime routine: lights down, temperature
// to the low end of the comfort band, locks engaged
func (s *MQTTSmartHome) PrepareForSleep(ctx context.Context) error {
	return s.publish(ctx, "sleep", commandMessage{
		Command: "night_routine",
		Params: map[string]interface{}{
			"lights":  "off",
			"climate": "night",
			"locks":   "engaged",
		},
		Timestamp: time.Now(),
	})
}

func (s *MQTTSmartHome) publish(ctx context.Context, domain string, msg commandMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s command: %w", domain, err)
	}

	topic := mqtt.CommandTopic(domain)
	if err := s.mqtt.Publish(topic, 0, false, payload); err != nil {
		return fmt.Errorf("failed to publish %s command: %w", domain, err)
	}

	s.logger.Info("Smart home command published",
		"topic", topic,
		"command", msg.Command)
	return nil
}
