package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPreferences returns the preferences used when no file is configured
func DefaultPreferences() Preferences {
	return Preferences{
		Temperature: TemperatureRange{Min: 20, Max: 25},
		UpdatedAt:   time.Now(),
	}
}

// LoadPreferences reads user preferences from a YAML file. An empty path
// yields the defaults; a missing or malformed file is an error so a typo in
// configuration is caught at startup rather than silently ignored.
func LoadPreferences(path string) (Preferences, error) {
	if path == "" {
		return DefaultPreferences(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to read preferences file: %w", err)
	}

	prefs := DefaultPreferences()
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("failed to parse preferences file: %w", err)
	}

	if prefs.Temperature.Min >= prefs.Temperature.Max {
		return Preferences{}, fmt.Errorf("preferences temperature range is invalid: min %.1f >= max %.1f",
			prefs.Temperature.Min, prefs.Temperature.Max)
	}

	prefs.UpdatedAt = time.Now()
	return prefs, nil
}
