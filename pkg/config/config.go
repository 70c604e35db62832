package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the configuration for the Hearth home agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration (pattern vector index)
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	APIPort     int
	LogLevel    string

	// Inference configuration
	LLMEndpoint string
	LLMModel    string
	EmbedModel  string

	// Location (daylight context)
	Latitude  float64
	Longitude float64

	// User preferences file (YAML)
	PreferencesPath string

	// Sensor configuration
	SensorTopics  []string
	SensorPollSec int

	// Decision cycle configuration
	MinCycleIntervalMin     int
	MaxCycleIntervalMin     int
	InitialCycleIntervalMin int
	MaxOutcomeHistory       int

	// Pattern memory configuration
	RetentionDays        int
	ShortTermWindowHours int
	MaxMemoryEntries     int
	PatternTopK          int
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:    "localhost",
		MQTTPort:      1883,
		MQTTUser:      "",
		MQTTPassword:  "",
		MQTTClientID:  "",
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "hearth",
		PostgresPassword:           "",
		PostgresDB:                 "hearth",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName: "home-agent",
		HealthPort:  8080,
		APIPort:     3002,
		LogLevel:    "info",
		LLMEndpoint: "http://localhost:11434",
		LLMModel:    "llama3.2:3b",
		EmbedModel:  "nomic-embed-text",
		// Helsinki coordinates
		Latitude:  60.1695,
		Longitude: 24.9354,
		PreferencesPath: "",
		SensorTopics:    []string{"automation/raw/+/+"},
		SensorPollSec:   5,
		MinCycleIntervalMin:     5,
		MaxCycleIntervalMin:     60,
		InitialCycleIntervalMin: 15,
		MaxOutcomeHistory:       50,
		RetentionDays:        7,
		ShortTermWindowHours: 24,
		MaxMemoryEntries:     1000,
		PatternTopK:          5,
	}
}

// LoadFromEnv loads configuration from environment variables with HEARTH_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("HEARTH_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("HEARTH_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("HEARTH_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("HEARTH_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("HEARTH_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("HEARTH_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("HEARTH_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("HEARTH_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("HEARTH_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("HEARTH_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("HEARTH_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("HEARTH_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("HEARTH_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("HEARTH_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("HEARTH_POSTGRES_SSL_MODE"); v != "" {
		c.PostgresSSLMode = v
	}

	// Service configuration
	if v := os.Getenv("HEARTH_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("HEARTH_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("HEARTH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
	if v := os.Getenv("HEARTH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Inference configuration
	if v := os.Getenv("HEARTH_LLM_ENDPOINT"); v != "" {
		c.LLMEndpoint = v
	}
	if v := os.Getenv("HEARTH_LLM_MODEL"); v != "" {
		c.LLMModel = v
	}
	if v := os.Getenv("HEARTH_EMBED_MODEL"); v != "" {
		c.EmbedModel = v
	}

	// Location
	if v := os.Getenv("HEARTH_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("HEARTH_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}

	// Preferences
	if v := os.Getenv("HEARTH_PREFERENCES_PATH"); v != "" {
		c.PreferencesPath = v
	}

	// Sensor configuration
	if v := os.Getenv("HEARTH_SENSOR_POLL_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			c.SensorPollSec = sec
		}
	}

	// Decision cycle configuration
	if v := os.Getenv("HEARTH_MIN_CYCLE_INTERVAL_MIN"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			c.MinCycleIntervalMin = m
		}
	}
	if v := os.Getenv("HEARTH_MAX_CYCLE_INTERVAL_MIN"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			c.MaxCycleIntervalMin = m
		}
	}
	if v := os.Getenv("HEARTH_INITIAL_CYCLE_INTERVAL_MIN"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			c.InitialCycleIntervalMin = m
		}
	}
	if v := os.Getenv("HEARTH_MAX_OUTCOME_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxOutcomeHistory = n
		}
	}

	// Pattern memory configuration
	if v := os.Getenv("HEARTH_RETENTION_DAYS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			c.RetentionDays = d
		}
	}
	if v := os.Getenv("HEARTH_SHORT_TERM_WINDOW_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil {
			c.ShortTermWindowHours = h
		}
	}
	if v := os.Getenv("HEARTH_MAX_MEMORY_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxMemoryEntries = n
		}
	}
	if v := os.Getenv("HEARTH_PATTERN_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.PatternTopK = k
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	pflag.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	pflag.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	pflag.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres username")
	pflag.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	pflag.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	pflag.StringVar(&c.PostgresSSLMode, "postgres-ssl-mode", c.PostgresSSLMode, "Postgres SSL mode")

	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.IntVar(&c.APIPort, "api-port", c.APIPort, "Status API HTTP port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Inference flags
	pflag.StringVar(&c.LLMEndpoint, "llm-endpoint", c.LLMEndpoint, "LLM API endpoint URL")
	pflag.StringVar(&c.LLMModel, "llm-model", c.LLMModel, "LLM completion model name")
	pflag.StringVar(&c.EmbedModel, "embed-model", c.EmbedModel, "LLM embedding model name")

	// Location flags
	pflag.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for daylight calculation")
	pflag.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for daylight calculation")

	// Preferences flags
	pflag.StringVar(&c.PreferencesPath, "preferences-path", c.PreferencesPath, "Path to user preferences YAML file")

	// Sensor flags
	pflag.IntVar(&c.SensorPollSec, "sensor-poll-sec", c.SensorPollSec, "Sensor polling interval in seconds")

	// Decision cycle flags
	pflag.IntVar(&c.MinCycleIntervalMin, "min-cycle-interval", c.MinCycleIntervalMin, "Minimum decision cycle interval in minutes")
	pflag.IntVar(&c.MaxCycleIntervalMin, "max-cycle-interval", c.MaxCycleIntervalMin, "Maximum decision cycle interval in minutes")
	pflag.IntVar(&c.InitialCycleIntervalMin, "initial-cycle-interval", c.InitialCycleIntervalMin, "Initial decision cycle interval in minutes")
	pflag.IntVar(&c.MaxOutcomeHistory, "max-outcome-history", c.MaxOutcomeHistory, "Maximum recent task outcomes retained for tuning")

	// Pattern memory flags
	pflag.IntVar(&c.RetentionDays, "retention-days", c.RetentionDays, "Pattern retention window in days")
	pflag.IntVar(&c.ShortTermWindowHours, "short-term-window-hours", c.ShortTermWindowHours, "Short-term memory window in hours")
	pflag.IntVar(&c.MaxMemoryEntries, "max-memory-entries", c.MaxMemoryEntries, "Maximum persisted memory entries")
	pflag.IntVar(&c.PatternTopK, "pattern-top-k", c.PatternTopK, "Number of similar patterns retrieved per cycle")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("Postgres host is required")
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("Postgres port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.LLMEndpoint == "" {
		return fmt.Errorf("LLM endpoint is required")
	}
	if c.MinCycleIntervalMin <= 0 {
		return fmt.Errorf("minimum cycle interval must be positive")
	}
	if c.MaxCycleIntervalMin < c.MinCycleIntervalMin {
		return fmt.Errorf("maximum cycle interval must not be below the minimum")
	}
	if c.InitialCycleIntervalMin < c.MinCycleIntervalMin || c.InitialCycleIntervalMin > c.MaxCycleIntervalMin {
		return fmt.Errorf("initial cycle interval must lie within [min, max]")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword,
		c.PostgresDB, c.PostgresSSLMode)
}
