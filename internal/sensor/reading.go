package sensor

import "time"

// ActivityState is the occupancy activity classification
type ActivityState string

const (
	ActivityIdle     ActivityState = "idle"
	ActivityActive   ActivityState = "active"
	ActivitySleeping ActivityState = "sleeping"
)

// Environmental holds air and ambience measurements
type Environmental struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %
	CO2         float64 `json:"co2"`         // ppm
	TVOC        float64 `json:"tvoc"`        // ppb
	PM25        float64 `json:"pm25"`        // µg/m³
	PM10        float64 `json:"pm10"`        // µg/m³
	Pressure    float64 `json:"pressure"`    // hPa
	Light       float64 `json:"light"`       // lux
	Noise       float64 `json:"noise"`       // dB
}

// Occupancy holds presence and activity measurements
type Occupancy struct {
	Motion    bool          `json:"motion"`
	Presence  bool          `json:"presence"`
	Count     int           `json:"count"`
	Activity  ActivityState `json:"activity"`
	Locations []string      `json:"locations"`
}

// CameraState holds per-camera detection flags
type CameraState struct {
	Motion bool `json:"motion"`
	Person bool `json:"person"`
}

// Security holds contact and hazard sensor states
type Security struct {
	Doors   map[string]bool        `json:"doors"`   // true = open
	Windows map[string]bool        `json:"windows"` // true = open
	Cameras map[string]CameraState `json:"cameras"`
	Smoke   bool                   `json:"smoke"`
	CO      bool                   `json:"co"`
	Water   bool                   `json:"water"`
}

// Energy holds electrical measurements
type Energy struct {
	Power       float64 `json:"power"`   // W
	Voltage     float64 `json:"voltage"` // V
	Current     float64 `json:"current"` // A
	Frequency   float64 `json:"frequency"`
	PowerFactor float64 `json:"power_factor"`
}

// Network holds connectivity measurements
type Network struct {
	WifiStrength float64 `json:"wifi_strength"` // dBm
	WifiDevices  int     `json:"wifi_devices"`
	BTDevices    int     `json:"bt_devices"`
}

// Reading is one complete sensor snapshot. Values are clamped to their
// physically valid ranges on ingestion; the analyzer owns the reading
// exclusively between refreshes.
type Reading struct {
	Environmental Environmental `json:"environmental"`
	Occupancy     Occupancy     `json:"occupancy"`
	Security      Security      `json:"security"`
	Energy        Energy        `json:"energy"`
	Network       Network       `json:"network"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Clamp forces every numeric field into its declared valid range
func (r *Reading) Clamp() {
	e := &r.Environmental
	e.Temperature = clampRange(e.Temperature, -10, 50)
	e.Humidity = clampRange(e.Humidity, 0, 100)
	e.CO2 = clampRange(e.CO2, 0, 5000)
	e.TVOC = clampRange(e.TVOC, 0, 2000)
	e.PM25 = clampRange(e.PM25, 0, 500)
	e.PM10 = clampRange(e.PM10, 0, 500)
	e.Pressure = clampRange(e.Pressure, 900, 1100)
	e.Light = clampRange(e.Light, 0, 10000)
	e.Noise = clampRange(e.Noise, 0, 100)

	en := &r.Energy
	en.Power = clampRange(en.Power, 0, 50000)
	en.Voltage = clampRange(en.Voltage, 0, 500)
	en.Current = clampRange(en.Current, 0, 200)
	en.Frequency = clampRange(en.Frequency, 0, 100)
	en.PowerFactor = clampRange(en.PowerFactor, 0, 1)

	if r.Occupancy.Count < 0 {
		r.Occupancy.Count = 0
	}
	if r.Network.WifiDevices < 0 {
		r.Network.WifiDevices = 0
	}
	if r.Network.BTDevices < 0 {
		r.Network.BTDevices = 0
	}
}

func clampRange(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clamp01(value float64) float64 {
	return clampRange(value, 0, 1)
}
