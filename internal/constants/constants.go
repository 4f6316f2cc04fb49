// Package constants provides centralized domain-specific constants
// for the entire heatwatch application.
//
// Driver and sink names appear in configuration, logs and metric labels;
// every package switches on these rather than on string literals.
package constants

import "slices"

// =============================================================================
// Sensor Drivers
// =============================================================================

const (
	// SensorDriverSNMP reads an SNMP environmental probe
	SensorDriverSNMP = "snmp"

	// SensorDriverFile reads sysfs/hwmon style files
	SensorDriverFile = "file"

	// SensorDriverSim generates readings for development
	SensorDriverSim = "sim"
)

// SensorDrivers contains all valid sensor drivers
var SensorDrivers = []string{SensorDriverSNMP, SensorDriverFile, SensorDriverSim}

// =============================================================================
// Store Drivers
// =============================================================================

const (
	// StoreDriverDuckDB writes to an embedded DuckDB database
	StoreDriverDuckDB = "duckdb"

	// StoreDriverSpool appends to a length-delimited spool file
	StoreDriverSpool = "spool"

	// StoreDriverKafka publishes to a Kafka topic
	StoreDriverKafka = "kafka"
)

// StoreDrivers contains all valid store drivers
var StoreDrivers = []string{StoreDriverDuckDB, StoreDriverSpool, StoreDriverKafka}

// =============================================================================
// Alert Sinks
// =============================================================================

const (
	// AlertSinkLog writes alerts to the log
	AlertSinkLog = "log"

	// AlertSinkMQTT publishes alerts to an MQTT broker
	AlertSinkMQTT = "mqtt"
)

// AlertSinks contains all valid alert sinks
var AlertSinks = []string{AlertSinkLog, AlertSinkMQTT}

// =============================================================================
// Log Formats
// =============================================================================

const (
	// LogFormatAuto picks text on a terminal and JSON otherwise
	LogFormatAuto = "auto"

	// LogFormatText writes human-readable lines
	LogFormatText = "text"

	// LogFormatJSON writes one JSON object per line
	LogFormatJSON = "json"
)

// ValidLogFormats contains all valid log formats
var ValidLogFormats = []string{LogFormatAuto, LogFormatText, LogFormatJSON}

// =============================================================================
// Tick Stages
// =============================================================================

const (
	// StageSensor is the sampling stage
	StageSensor = "sensor"

	// StageStore is the persisting branch
	StageStore = "store"

	// StageAlert is the evaluating branch
	StageAlert = "alert"
)

// IsValid reports whether value is one of valid.
func IsValid(value string, valid []string) bool {
	return slices.Contains(valid, value)
}
