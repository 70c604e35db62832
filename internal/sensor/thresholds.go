package sensor

import (
	"fmt"
	"time"
)

// AlertLevel classifies a threshold breach
type AlertLevel string

const (
	LevelWarning  AlertLevel = "warning"
	LevelCritical AlertLevel = "critical"
)

// Alert is a single threshold breach on a fresh reading
type Alert struct {
	Metric    string     `json:"metric"`
	Level     AlertLevel `json:"level"`
	Value     float64    `json:"value"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// Warning/critical bands per metric
const (
	co2Warning   = 1000 // ppm
	co2Critical  = 2000
	tvocWarning  = 500 // ppb
	tvocCritical = 1000
	pm25Warning  = 35 // µg/m³
	pm25Critical = 150
	noiseWarning  = 60 // dB
	noiseCritical = 85

	temperatureMin = 18 // °C
	temperatureMax = 27
	humidityMin    = 30 // %
	humidityMax    = 60

	// How far outside the comfort band temperature/humidity must drift
	// before a warning escalates to critical
	temperatureCriticalMargin = 5
	humidityCriticalMargin    = 15
)

// CheckThresholds runs every metric's band check against a fresh reading.
// It is independent of Analyze; the monitor calls it on every poll.
func CheckThresholds(r *Reading) []Alert {
	now := r.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	var alerts []Alert
	add := func(metric string, level AlertLevel, value float64, msg string) {
		alerts = append(alerts, Alert{
			Metric:    metric,
			Level:     level,
			Value:     value,
			Message:   msg,
			Timestamp: now,
		})
	}

	e := r.Environmental

	if e.CO2 >= co2Critical {
		add("co2", LevelCritical, e.CO2, fmt.Sprintf("High CO2 levels detected: %.0f ppm", e.CO2))
	} else if e.CO2 >= co2Warning {
		add("co2", LevelWarning, e.CO2, fmt.Sprintf("Elevated CO2 levels: %.0f ppm", e.CO2))
	}

	if e.TVOC >= tvocCritical {
		add("tvoc", LevelCritical, e.TVOC, fmt.Sprintf("High TVOC levels detected: %.0f ppb", e.TVOC))
	} else if e.TVOC >= tvocWarning {
		add("tvoc", LevelWarning, e.TVOC, fmt.Sprintf("Elevated TVOC levels: %.0f ppb", e.TVOC))
	}

	if e.PM25 >= pm25Critical {
		add("pm25", LevelCritical, e.PM25, fmt.Sprintf("High PM2.5 levels detected: %.0f µg/m³", e.PM25))
	} else if e.PM25 >= pm25Warning {
		add("pm25", LevelWarning, e.PM25, fmt.Sprintf("Elevated PM2.5 levels: %.0f µg/m³", e.PM25))
	}

	if e.Noise >= noiseCritical {
		add("noise", LevelCritical, e.Noise, fmt.Sprintf("Harmful noise level: %.0f dB", e.Noise))
	} else if e.Noise >= noiseWarning {
		add("noise", LevelWarning, e.Noise, fmt.Sprintf("Elevated noise level: %.0f dB", e.Noise))
	}

	switch {
	case e.Temperature < temperatureMin-temperatureCriticalMargin || e.Temperature > temperatureMax+temperatureCriticalMargin:
		add("temperature", LevelCritical, e.Temperature, fmt.Sprintf("Temperature far outside comfort band: %.1f °C", e.Temperature))
	case e.Temperature < temperatureMin || e.Temperature > temperatureMax:
		add("temperature", LevelWarning, e.Temperature, fmt.Sprintf("Temperature outside comfort band: %.1f °C", e.Temperature))
	}

	switch {
	case e.Humidity < humidityMin-humidityCriticalMargin || e.Humidity > humidityMax+humidityCriticalMargin:
		add("humidity", LevelCritical, e.Humidity, fmt.Sprintf("Humidity far outside comfort band: %.0f %%", e.Humidity))
	case e.Humidity < humidityMin || e.Humidity > humidityMax:
		add("humidity", LevelWarning, e.Humidity, fmt.Sprintf("Humidity outside comfort band: %.0f %%", e.Humidity))
	}

	if r.Security.Smoke || r.Security.CO {
		add("hazard", LevelCritical, 1, "Smoke or CO detected")
	}

	return alerts
}
