package mqtt

import "fmt"

// Topic constants for the automation message hierarchy
const (
	// Raw sensor data topics (input)
	TopicRawSensors = "automation/raw/+/+"

	// Sensor alert topics (output, out-of-band from the decision cycle)
	TopicAlertBase = "automation/alert/sensor"

	// Agent context topics (output)
	TopicAgentContext = "automation/context/agent"
	TopicAgentCommand = "automation/command/agent"
)

// RawSensorTopic constructs a raw sensor topic for a specific sensor type and location
// Pattern: automation/raw/{sensor_type}/{location}
func RawSensorTopic(sensorType, location string) string {
	return fmt.Sprintf("automation/raw/%s/%s", sensorType, location)
}

// AlertTopic constructs an alert topic for a specific metric
// Pattern: automation/alert/sensor/{metric}
func AlertTopic(metric string) string {
	return fmt.Sprintf("%s/%s", TopicAlertBase, metric)
}

// CommandTopic constructs a smart home command topic for a domain
// Pattern: automation/command/{domain}
func CommandTopic(domain string) string {
	return fmt.Sprintf("automation/command/%s", domain)
}
