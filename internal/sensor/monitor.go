package sensor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthd/hearth-platform/pkg/mqtt"
)

// Source is a pluggable provider of sensor readings. Implementations own
// the transport; the monitor only polls.
type Source interface {
	// Read returns the current composite reading
	Read(ctx context.Context) (Reading, error)
}

// Monitor drives the sensor timers: polling, anomaly checks, and
// predictive checks run on independent cadences decoupled from the
// decision cycle. They share only the analyzer's latest-reading snapshot.
type Monitor struct {
	analyzer *Analyzer
	source   Source
	mqtt     mqtt.Client
	logger   *slog.Logger

	pollInterval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a sensor monitor. Anomaly checks run at twice the
// poll interval and predictive checks at four times it.
func NewMonitor(analyzer *Analyzer, source Source, mqttClient mqtt.Client, pollInterval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		analyzer:     analyzer,
		source:       source,
		mqtt:         mqttClient,
		logger:       logger,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the polling, anomaly, and predictive timers
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("Starting sensor monitor",
		"poll_interval", m.pollInterval,
		"anomaly_interval", 2*m.pollInterval,
		"predictive_interval", 4*m.pollInterval)

	m.wg.Add(3)
	go m.runTimer(ctx, m.pollInterval, m.poll)
	go m.runTimer(ctx, 2*m.pollInterval, m.checkAnomalies)
	go m.runTimer(ctx, 4*m.pollInterval, m.checkPredictive)
}

// Stop halts all timers and waits for in-flight checks to finish
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
	m.logger.Info("Sensor monitor stopped")
}

func (m *Monitor) runTimer(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// poll refreshes the reading and runs threshold checks. Critical breaches
// publish an out-of-band alert immediately, decoupled from the analysis
// consumers.
func (m *Monitor) poll(ctx context.Context) {
	reading, err := m.source.Read(ctx)
	if err != nil {
		m.logger.Warn("Sensor poll failed", "error", err)
		return
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	m.analyzer.Update(reading)

	for _, alert := range CheckThresholds(&reading) {
		if alert.Level != LevelCritical {
			continue
		}
		m.logger.Error("Critical sensor alert",
			"metric", alert.Metric,
			"value", alert.Value,
			"message", alert.Message)
		// Fire-and-forget: the alert must go out even if a decision
		// cycle is mid-flight
		go m.publishAlert(alert)
	}
}

// checkAnomalies watches for unusual consumption, occupancy, and
// network patterns
func (m *Monitor) checkAnomalies(ctx context.Context) {
	reading, ok := m.analyzer.Latest()
	if !ok {
		return
	}

	if reading.Energy.Power > 5000 {
		m.reportAnomaly("energy", "Unusual power consumption", reading.Energy.Power)
	}
	if reading.Occupancy.Count > 10 {
		m.reportAnomaly("occupancy", "Unusual occupancy level", float64(reading.Occupancy.Count))
	}
	if reading.Network.WifiDevices > 20 {
		m.reportAnomaly("network", "Unusual number of network devices", float64(reading.Network.WifiDevices))
	}
}

// checkPredictive flags conditions trending toward a threshold before
// they breach it
func (m *Monitor) checkPredictive(ctx context.Context) {
	reading, ok := m.analyzer.Latest()
	if !ok {
		return
	}

	if reading.Environmental.Temperature < temperatureMin+2 {
		m.logger.Info("Prediction: temperature trending low",
			"temperature", reading.Environmental.Temperature)
	}
	if reading.Energy.Power > 4000 {
		m.logger.Info("Prediction: approaching high power usage",
			"power", reading.Energy.Power)
	}
}

func (m *Monitor) reportAnomaly(metric, message string, value float64) {
	m.logger.Warn("Sensor anomaly detected",
		"metric", metric,
		"message", message,
		"value", value)

	go m.publishAlert(Alert{
		Metric:    metric,
		Level:     LevelWarning,
		Value:     value,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (m *Monitor) publishAlert(alert Alert) {
	if m.mqtt == nil {
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		m.logger.Error("Failed to marshal alert", "error", err)
		return
	}

	topic := mqtt.AlertTopic(alert.Metric)
	if err := m.mqtt.Publish(topic, 0, false, payload); err != nil {
		m.logger.Error("Failed to publish alert", "topic", topic, "error", err)
	}
}
