package sensor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// ErrNoData is returned by Analyze when no reading has ever been ingested
var ErrNoData = errors.New("sensor: no reading available")

// Comfort holds the comfort sub-scores, each in [0,1]
type Comfort struct {
	Thermal float64 `json:"thermal"`
	Air     float64 `json:"air"`
	Light   float64 `json:"light"`
	Noise   float64 `json:"noise"`
	Overall float64 `json:"overall"`
}

// Safety holds the accumulated risk and active hazard alerts
type Safety struct {
	Risk            float64  `json:"risk"`
	Alerts          []string `json:"alerts"`
	Recommendations []string `json:"recommendations"`
}

// Efficiency holds the energy and resource scores with optimization hints
type Efficiency struct {
	Energy       float64  `json:"energy"`
	Resource     float64  `json:"resource"`
	Optimization []string `json:"optimization"`
}

// Activity holds observed patterns, anomalies, and predictions
type Activity struct {
	Patterns    []string `json:"patterns"`
	Anomalies   []string `json:"anomalies"`
	Predictions []string `json:"predictions"`
}

// Analysis is the stateless derivation from the latest reading; computed
// fresh on every call
type Analysis struct {
	Comfort    Comfort    `json:"comfort"`
	Safety     Safety     `json:"safety"`
	Efficiency Efficiency `json:"efficiency"`
	Activity   Activity   `json:"activity"`
}

// Analyzer turns raw readings into comfort, safety, efficiency, and
// activity scores. The latest reading is replaced atomically on Update;
// concurrent timers only ever observe a complete snapshot.
type Analyzer struct {
	mu      sync.RWMutex
	reading *Reading
	logger  *slog.Logger
}

// NewAnalyzer creates a new sensor analyzer
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// Update ingests a fresh reading, clamping every numeric field to its
// declared valid range
func (a *Analyzer) Update(r Reading) {
	r.Clamp()

	a.mu.Lock()
	a.reading = &r
	a.mu.Unlock()

	a.logger.Debug("Sensor reading updated",
		"temperature", r.Environmental.Temperature,
		"co2", r.Environmental.CO2,
		"occupancy_count", r.Occupancy.Count,
		"power", r.Energy.Power)
}

// Latest returns a copy of the most recent reading, or false when none
// has been ingested yet
func (a *Analyzer) Latest() (Reading, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.reading == nil {
		return Reading{}, false
	}
	return *a.reading, true
}

// Analyze computes a fresh analysis from the latest reading
func (a *Analyzer) Analyze() (*Analysis, error) {
	a.mu.RLock()
	reading := a.reading
	a.mu.RUnlock()

	if reading == nil {
		return nil, ErrNoData
	}

	return &Analysis{
		Comfort:    analyzeComfort(reading),
		Safety:     analyzeSafety(reading),
		Efficiency: analyzeEfficiency(reading),
		Activity:   analyzeActivity(reading),
	}, nil
}

func analyzeComfort(r *Reading) Comfort {
	thermal := thermalComfort(r.Environmental.Temperature, r.Environmental.Humidity)
	air := airQuality(r.Environmental.CO2)
	light := lightComfort(r.Environmental.Light)
	noise := noiseComfort(r.Environmental.Noise)

	return Comfort{
		Thermal: thermal,
		Air:     air,
		Light:   light,
		Noise:   noise,
		Overall: (thermal + air + light + noise) / 4,
	}
}

// thermalComfort averages two triangular penalty curves centered on the
// comfort optimum (22°C, 45% RH)
func thermalComfort(temperature, humidity float64) float64 {
	tempScore := 1 - math.Abs(temperature-22)/10
	humidityScore := 1 - math.Abs(humidity-45)/30
	return clamp01((tempScore + humidityScore) / 2)
}

// airQuality bands CO2 (ppm) into five discrete scores
func airQuality(co2 float64) float64 {
	switch {
	case co2 < 600:
		return 1.0
	case co2 < 800:
		return 0.8
	case co2 < 1000:
		return 0.6
	case co2 < 1500:
		return 0.4
	default:
		return 0.2
	}
}

// lightComfort scores illuminance (lux) against the 300-500 lux optimum
func lightComfort(light float64) float64 {
	switch {
	case light < 100:
		return 0.3
	case light < 300:
		return 0.7
	case light < 500:
		return 1.0
	case light < 1000:
		return 0.8
	default:
		return 0.6
	}
}

// noiseComfort scores ambient noise (dB)
func noiseComfort(noise float64) float64 {
	switch {
	case noise < 30:
		return 1.0
	case noise < 50:
		return 0.8
	case noise < 60:
		return 0.6
	case noise < 70:
		return 0.4
	default:
		return 0.2
	}
}

// analyzeSafety accumulates risk additively from independent hazard
// indicators and clamps to [0,1]; simultaneous hazards saturate quickly
func analyzeSafety(r *Reading) Safety {
	var alerts []string
	var recommendations []string
	risk := 0.0

	if r.Security.Smoke {
		alerts = append(alerts, "Smoke detected")
		risk += 0.5
	}
	if r.Security.CO {
		alerts = append(alerts, "Carbon monoxide detected")
		risk += 0.5
	}

	openDoors := 0
	for _, open := range r.Security.Doors {
		if open {
			openDoors++
		}
	}
	if openDoors > 0 {
		alerts = append(alerts, fmt.Sprintf("%d doors are open", openDoors))
		risk += 0.1 * float64(openDoors)
	}

	for _, alert := range CheckThresholds(r) {
		if alert.Level == LevelCritical {
			alerts = append(alerts, alert.Message)
		}
	}

	if risk > 0 {
		recommendations = append(recommendations, "Consider checking all safety systems")
	}

	return Safety{
		Risk:            clamp01(risk),
		Alerts:          alerts,
		Recommendations: recommendations,
	}
}

func analyzeEfficiency(r *Reading) Efficiency {
	var optimization []string
	energyScore := 1.0
	resourceScore := 1.0

	if r.Energy.Power > 5000 {
		optimization = append(optimization, "High power usage detected")
		energyScore *= 0.8
	}
	if r.Energy.PowerFactor < 0.9 {
		optimization = append(optimization, "Power factor optimization needed")
		energyScore *= 0.9
	}

	return Efficiency{
		Energy:       energyScore,
		Resource:     resourceScore,
		Optimization: optimization,
	}
}

func analyzeActivity(r *Reading) Activity {
	patterns := []string{
		fmt.Sprintf("Current activity: %s", r.Occupancy.Activity),
		fmt.Sprintf("Occupancy count: %d", r.Occupancy.Count),
	}

	var anomalies []string
	if r.Occupancy.Count > 10 {
		anomalies = append(anomalies, "Unusually high occupancy")
	}

	predictions := []string{predictNextActivity(r.Occupancy.Activity)}

	return Activity{
		Patterns:    patterns,
		Anomalies:   anomalies,
		Predictions: predictions,
	}
}

// predictNextActivity gives a coarse transition guess from the current state
func predictNextActivity(current ActivityState) string {
	switch current {
	case ActivitySleeping:
		return "Predicted next activity: idle"
	case ActivityActive:
		return "Predicted next activity: idle"
	case ActivityIdle:
		return "Predicted next activity: active"
	default:
		return "Predicted next activity: unknown"
	}
}
