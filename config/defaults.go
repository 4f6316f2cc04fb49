// Package config provides configuration defaults and utilities
// for the heatwatch application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command line flags.
package config

import "time"

// =============================================================================
// Sampling Defaults
// =============================================================================

const (
	// DefaultSampleInterval is the cadence of the sample loop, measured from
	// the start of one tick to the start of the next.
	// Override via config: interval
	DefaultSampleInterval = 10 * time.Second

	// DefaultThresholdF is the alert threshold in degrees Fahrenheit.
	// A reading exactly at the threshold alerts.
	// Override via config: threshold.value_f
	DefaultThresholdF = 80.0

	// DefaultSketchAccuracy is the relative accuracy of the quantile sketches
	// kept by the loop for status reporting.
	DefaultSketchAccuracy = 0.01
)

// =============================================================================
// Sensor Defaults
// =============================================================================

const (
	// DefaultSensorDriver selects the sensor implementation.
	// Override via config: sensor.driver
	DefaultSensorDriver = "sim"

	// DefaultSensorName identifies the sensor in record ids and logs.
	// Override via config: sensor.name
	DefaultSensorName = "sensor-01"

	// DefaultSensorTimeout bounds a single sensor read.
	// Override via config: sensor.timeout
	DefaultSensorTimeout = 2 * time.Second

	// DefaultSNMPPort is the UDP port of the SNMP agent.
	// Override via config: sensor.snmp.port
	DefaultSNMPPort = 161

	// DefaultSNMPRetries is the number of retry attempts after timeout.
	// The total time is still capped by sensor.timeout.
	// Override via config: sensor.snmp.retries
	DefaultSNMPRetries = 1
)

// =============================================================================
// Store Defaults
// =============================================================================

const (
	// DefaultStoreDriver selects the store implementation.
	// Override via config: store.driver
	DefaultStoreDriver = "duckdb"

	// DefaultStoreTimeout bounds a single store write.
	// Override via config: store.timeout
	DefaultStoreTimeout = 5 * time.Second

	// DefaultDuckDBPath is the embedded database file.
	// Override via config: store.duckdb.path
	DefaultDuckDBPath = "heatwatch.db"

	// DefaultSpoolPath is the append-only record file.
	// Override via config: store.spool.path
	DefaultSpoolPath = "heatwatch.spool"

	// DefaultKafkaTopic is the topic records are published to.
	// Override via config: store.kafka.topic
	DefaultKafkaTopic = "heatwatch.readings"

	// DefaultRecentLimit is the number of readings returned by the read API
	// when no limit is given.
	DefaultRecentLimit = 50

	// MaxRecentLimit caps the limit accepted by the read API.
	MaxRecentLimit = 1000
)

// =============================================================================
// Alert Defaults
// =============================================================================

const (
	// DefaultAlertTimeout bounds delivery of one alert by one sink.
	// Override via config: alert.timeout
	DefaultAlertTimeout = 3 * time.Second

	// DefaultMQTTTopic is the topic alerts are published to.
	// Override via config: alert.mqtt.topic
	DefaultMQTTTopic = "heatwatch/alerts"

	// DefaultMQTTClientID is the MQTT client identifier.
	// Override via config: alert.mqtt.client_id
	DefaultMQTTClientID = "heatwatchd"

	// DefaultMQTTDisconnectMs is the quiesce period when closing the MQTT client.
	DefaultMQTTDisconnectMs = 250
)

// =============================================================================
// HTTP Defaults
// =============================================================================

const (
	// DefaultHTTPListen is the address of the status/read API.
	// Empty disables the HTTP server.
	// Override via config: http.listen
	DefaultHTTPListen = ":5002"

	// DefaultShutdownTimeout is how long the HTTP server may take to drain.
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultHealthTimeout bounds the store ping behind /healthz.
	DefaultHealthTimeout = 2 * time.Second
)

// =============================================================================
// Spool Defaults
// =============================================================================

const (
	// DefaultMaxRecordSize caps one length-delimited spool record.
	// Records are a few dozen bytes; anything larger is corruption.
	DefaultMaxRecordSize = 64 * 1024
)
