package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/memory"
	"github.com/hearthd/hearth-platform/internal/sensor"
)

// WeatherSource provides current weather for context building
type WeatherSource interface {
	Current(ctx context.Context) (agent.Weather, error)
}

// StaticWeather is a WeatherSource returning a fixed value, updated
// externally. Used when no live weather feed is configured.
type StaticWeather struct {
	mu      sync.RWMutex
	weather agent.Weather
}

// NewStaticWeather creates a static weather source with an unknown condition
func NewStaticWeather() *StaticWeather {
	return &StaticWeather{
		weather: agent.Weather{Condition: agent.WeatherUnknown},
	}
}

// Set replaces the stored weather
func (w *StaticWeather) Set(weather agent.Weather) {
	w.mu.Lock()
	w.weather = weather
	w.mu.Unlock()
}

func (w *StaticWeather) Current(ctx context.Context) (agent.Weather, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.weather, nil
}

// ContextBuilder assembles the immutable situational snapshot for one
// decision cycle from weather, sensors, daylight, preferences, and
// pattern memory
type ContextBuilder struct {
	weather  WeatherSource
	analyzer *sensor.Analyzer
	store    *memory.Store
	prefs    agent.Preferences

	latitude  float64
	longitude float64

	logger *slog.Logger
}

// NewContextBuilder creates a context builder
func NewContextBuilder(weather WeatherSource, analyzer *sensor.Analyzer, store *memory.Store, prefs agent.Preferences, latitude, longitude float64, logger *slog.Logger) *ContextBuilder {
	return &ContextBuilder{
		weather:   weather,
		analyzer:  analyzer,
		store:     store,
		prefs:     prefs,
		latitude:  latitude,
		longitude: longitude,
		logger:    logger,
	}
}

// Build creates a fresh context snapshot for the given instant. Missing
// inputs degrade individual fields; Build itself never fails.
func (b *ContextBuilder) Build(ctx context.Context, at time.Time) agent.Context {
	c := agent.Context{
		TimeOfDay: at.Format("15:04"),
		Hour:      at.Hour(),
		Prefs:     b.prefs,
		Daylight:  daylightAt(b.latitude, b.longitude, at),
		CreatedAt: at,
	}

	weather, err := b.weather.Current(ctx)
	if err != nil {
		b.logger.Warn("Weather unavailable for context", "error", err)
		weather = agent.Weather{Condition: agent.WeatherUnknown}
	}
	c.Weather = weather

	if reading, ok := b.analyzer.Latest(); ok {
		c.Occupied = reading.Occupancy.Presence ||
			reading.Occupancy.Motion ||
			reading.Occupancy.Count > 0
	}

	if analysis, err := b.analyzer.Analyze(); err == nil {
		activity := "unknown"
		if reading, ok := b.analyzer.Latest(); ok {
			activity = string(reading.Occupancy.Activity)
		}
		c.SensorSummary = &agent.SensorSummary{
			ComfortOverall: analysis.Comfort.Overall,
			SafetyRisk:     analysis.Safety.Risk,
			SafetyAlerts:   analysis.Safety.Alerts,
			EnergyScore:    analysis.Efficiency.Energy,
			ActivityState:  activity,
		}
	}

	c.Historical = agent.HistoricalSummary{
		Patterns: b.store.Summary(10),
		Start:    at.Add(-24 * time.Hour),
		End:      at,
	}

	return c
}

// daylightAt computes the solar context from sun altitude. Golden hour is
// a sun altitude between 0 and 6 degrees.
func daylightAt(lat, lon float64, t time.Time) agent.Daylight {
	position := suncalc.GetPosition(t, lat, lon)
	altitudeDegrees := position.Altitude * (180.0 / math.Pi)

	return agent.Daylight{
		SunAltitude:  position.Altitude,
		IsDaytime:    altitudeDegrees > 0,
		IsGoldenHour: altitudeDegrees > 0 && altitudeDegrees < 6,
	}
}
