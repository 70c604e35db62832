package agent

import (
	"time"
)

// WeatherCondition is the closed set of weather states the engine reasons about
type WeatherCondition string

const (
	WeatherClear   WeatherCondition = "clear"
	WeatherCloudy  WeatherCondition = "cloudy"
	WeatherRain    WeatherCondition = "rain"
	WeatherSnow    WeatherCondition = "snow"
	WeatherStorm   WeatherCondition = "storm"
	WeatherUnknown WeatherCondition = "unknown"
)

// DayForecast is a single day in the multi-day forecast
type DayForecast struct {
	High      float64          `json:"high"`
	Low       float64          `json:"low"`
	Condition WeatherCondition `json:"condition"`
}

// Weather is the weather portion of a context snapshot
type Weather struct {
	Temperature float64          `json:"temperature"`
	Humidity    float64          `json:"humidity"`
	Condition   WeatherCondition `json:"condition"`
	Forecast    []DayForecast    `json:"forecast"`
	LastUpdated time.Time        `json:"last_updated"`
}

// TemperatureRange is the user's preferred indoor temperature band
type TemperatureRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// LightingSlot is one entry in the user's lighting schedule
type LightingSlot struct {
	From       string `json:"from" yaml:"from"` // "HH:MM"
	To         string `json:"to" yaml:"to"`
	Brightness int    `json:"brightness" yaml:"brightness"` // 0-100
}

// Preferences holds user preferences consulted while building context
type Preferences struct {
	Temperature      TemperatureRange `json:"temperature" yaml:"temperature"`
	LightingSchedule []LightingSlot   `json:"lighting_schedule" yaml:"lighting_schedule"`
	UpdatedAt        time.Time        `json:"updated_at" yaml:"-"`
}

// PatternRef is a lightweight reference to a recently observed pattern,
// carried in the historical summary of a context snapshot
type PatternRef struct {
	Key        string    `json:"key"`
	Action     ActionType `json:"action"`
	Confidence float64   `json:"confidence"`
	LastSeen   time.Time `json:"last_seen"`
}

// HistoricalSummary summarizes recent pattern activity for the snapshot
type HistoricalSummary struct {
	Patterns []PatternRef `json:"patterns"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
}

// Daylight carries the computed solar context for the snapshot
type Daylight struct {
	SunAltitude  float64 `json:"sun_altitude"` // radians above horizon
	IsDaytime    bool    `json:"is_daytime"`
	IsGoldenHour bool    `json:"is_golden_hour"`
}

// Context is the immutable situational snapshot built once per cycle.
// It is never mutated after creation.
type Context struct {
	TimeOfDay  string            `json:"time_of_day"` // "HH:MM"
	Hour       int               `json:"hour"`
	Occupied   bool              `json:"occupied"`
	Weather    Weather           `json:"weather"`
	Prefs      Preferences       `json:"preferences"`
	Historical HistoricalSummary `json:"historical"`
	Daylight   Daylight          `json:"daylight"`
	CreatedAt  time.Time         `json:"created_at"`

	// SensorSummary carries the latest sensor analysis scores when a
	// reading was available; nil otherwise
	SensorSummary *SensorSummary `json:"sensor_summary,omitempty"`
}

// SensorSummary is the context-facing digest of the latest sensor analysis
type SensorSummary struct {
	ComfortOverall float64  `json:"comfort_overall"`
	SafetyRisk     float64  `json:"safety_risk"`
	SafetyAlerts   []string `json:"safety_alerts,omitempty"`
	EnergyScore    float64  `json:"energy_score"`
	ActivityState  string   `json:"activity_state"`
}

// Period buckets an hour of day into the coarse period names used for
// pattern keys and time-context tags
func Period(hour int) string {
	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// IsBusinessHours reports whether the hour falls inside 09:00-17:59
func IsBusinessHours(hour int) bool {
	return hour >= 9 && hour <= 17
}

// IsQuietHours reports whether the hour falls inside the household quiet window
func IsQuietHours(hour int) bool {
	return hour < 7 || hour > 22
}

// IsNightHours reports whether the hour falls inside the 22:00-06:00 window
// used for scheduler priority shuffling
func IsNightHours(hour int) bool {
	return hour >= 22 || hour < 6
}
