package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hearthd/hearth-platform/pkg/mqtt"
)

// rawMessage is the payload shape on automation/raw/{type}/{location}
type rawMessage struct {
	Data struct {
		Value    *float64 `json:"value,omitempty"`
		State    string   `json:"state,omitempty"`
		EntityID string   `json:"entity_id,omitempty"`
	} `json:"data"`
}

// MQTTSource accumulates raw sensor messages into a composite reading.
// Read returns a copy of the current state, so the monitor never observes
// a partially applied message.
type MQTTSource struct {
	mqtt   mqtt.Client
	logger *slog.Logger

	mu      sync.Mutex
	reading Reading
}

// NewMQTTSource creates a source fed by the raw sensor topic hierarchy
func NewMQTTSource(mqttClient mqtt.Client, logger *slog.Logger) *MQTTSource {
	s := &MQTTSource{
		mqtt:   mqttClient,
		logger: logger,
	}
	s.reading.Security.Doors = make(map[string]bool)
	s.reading.Security.Windows = make(map[string]bool)
	s.reading.Security.Cameras = make(map[string]CameraState)
	s.reading.Occupancy.Activity = ActivityIdle
	return s
}

// Subscribe attaches the source to the raw sensor topics
func (s *MQTTSource) Subscribe() error {
	if err := s.mqtt.Subscribe(mqtt.TopicRawSensors, 0, s.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicRawSensors, err)
	}
	return nil
}

// Read returns the current composite reading
func (s *MQTTSource) Read(ctx context.Context) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reading.Timestamp.IsZero() {
		return Reading{}, fmt.Errorf("no sensor messages received yet")
	}

	r := s.reading
	r.Security.Doors = copyBoolMap(s.reading.Security.Doors)
	r.Security.Windows = copyBoolMap(s.reading.Security.Windows)
	r.Security.Cameras = copyCameraMap(s.reading.Security.Cameras)
	r.Occupancy.Locations = append([]string(nil), s.reading.Occupancy.Locations...)
	return r, nil
}

// handleMessage applies one raw sensor message to the composite reading.
// Topic pattern: automation/raw/{sensor_type}/{location}
func (s *MQTTSource) handleMessage(msg mqtt.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) != 4 {
		s.logger.Warn("Invalid raw sensor topic format", "topic", msg.Topic())
		return
	}
	sensorType := parts[2]
	location := parts[3]

	var raw rawMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.logger.Error("Failed to parse raw sensor message",
			"topic", msg.Topic(),
			"error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(sensorType, location, raw)
	s.reading.Timestamp = time.Now()
}

func (s *MQTTSource) apply(sensorType, location string, raw rawMessage) {
	value := 0.0
	if raw.Data.Value != nil {
		value = *raw.Data.Value
	}
	on := raw.Data.State == "on" || raw.Data.State == "open" || raw.Data.State == "detected"

	switch sensorType {
	case "temperature":
		s.reading.Environmental.Temperature = value
	case "humidity":
		s.reading.Environmental.Humidity = value
	case "co2":
		s.reading.Environmental.CO2 = value
	case "tvoc":
		s.reading.Environmental.TVOC = value
	case "pm25":
		s.reading.Environmental.PM25 = value
	case "pm10":
		s.reading.Environmental.PM10 = value
	case "pressure":
		s.reading.Environmental.Pressure = value
	case "illuminance":
		s.reading.Environmental.Light = value
	case "noise":
		s.reading.Environmental.Noise = value
	case "motion":
		s.reading.Occupancy.Motion = on
		if on {
			s.addLocation(location)
		}
	case "presence":
		s.reading.Occupancy.Presence = on
	case "occupancy_count":
		s.reading.Occupancy.Count = int(value)
	case "activity":
		switch raw.Data.State {
		case string(ActivityIdle), string(ActivityActive), string(ActivitySleeping):
			s.reading.Occupancy.Activity = ActivityState(raw.Data.State)
		}
	case "door":
		s.reading.Security.Doors[location] = on
	case "window":
		s.reading.Security.Windows[location] = on
	case "smoke":
		s.reading.Security.Smoke = on
	case "co":
		s.reading.Security.CO = on
	case "water":
		s.reading.Security.Water = on
	case "power":
		s.reading.Energy.Power = value
	case "voltage":
		s.reading.Energy.Voltage = value
	case "current":
		s.reading.Energy.Current = value
	case "frequency":
		s.reading.Energy.Frequency = value
	case "power_factor":
		s.reading.Energy.PowerFactor = value
	case "wifi_strength":
		s.reading.Network.WifiStrength = value
	case "wifi_devices":
		s.reading.Network.WifiDevices = int(value)
	case "bt_devices":
		s.reading.Network.BTDevices = int(value)
	default:
		s.logger.Debug("Ignoring unknown sensor type",
			"sensor_type", sensorType,
			"location", location)
	}
}

func (s *MQTTSource) addLocation(location string) {
	for _, l := range s.reading.Occupancy.Locations {
		if l == location {
			return
		}
	}
	s.reading.Occupancy.Locations = append(s.reading.Occupancy.Locations, location)
}

func copyBoolMap(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyCameraMap(in map[string]CameraState) map[string]CameraState {
	out := make(map[string]CameraState, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
