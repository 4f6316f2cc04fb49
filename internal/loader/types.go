// Package loader - Configuration Types
//
// LOCATION: internal/loader/types.go
//
// Defines the YAML configuration structure for heatwatchd.
//
// ARCHITECTURE:
//
//   ┌─────────────────────────────────────────────────────────────────┐
//   │                         config.yaml                             │
//   ├─────────────────────────────────────────────────────────────────┤
//   │                                                                 │
//   │  interval:   Tick cadence                                       │
//   │  threshold:  Alert boundary (Fahrenheit)                        │
//   │                                                                 │
//   │  sensor: ──► SensorPort (snmp | file | sim)                     │
//   │  store:  ──► StorePort  (duckdb | spool | kafka)                │
//   │  alert:  ──► AlertSink  (log, mqtt) + optional hysteresis       │
//   │                                                                 │
//   │  http:       Status / read API                                  │
//   │  log:        Level and format                                   │
//   │                                                                 │
//   └─────────────────────────────────────────────────────────────────┘
//
// Everything is read once at startup; there is no runtime reconfiguration.

package loader

import (
	"fmt"
	"time"

	"github.com/xtxerr/heatwatch/config"
	"github.com/xtxerr/heatwatch/internal/reading"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for heatwatchd.
type Config struct {
	// Interval is the tick cadence.
	// Default: 10s
	Interval Duration `yaml:"interval"`

	// Threshold is the alert boundary.
	Threshold ThresholdConfig `yaml:"threshold"`

	// Sensor selects and configures the sensor capability.
	Sensor SensorConfig `yaml:"sensor"`

	// Store selects and configures the store capability.
	Store StoreConfig `yaml:"store"`

	// Alert configures alert sinks and optional hysteresis.
	Alert AlertConfig `yaml:"alert"`

	// HTTP configures the status/read API.
	HTTP HTTPConfig `yaml:"http"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`
}

// ThresholdConfig holds the alert threshold.
type ThresholdConfig struct {
	// ValueF is the threshold in degrees Fahrenheit. Inclusive.
	// Default: 80.0
	ValueF float64 `yaml:"value_f"`
}

// Reading returns the threshold as used by the sample loop.
func (t ThresholdConfig) Reading() reading.Threshold {
	return reading.Threshold{ValueF: t.ValueF}
}

// =============================================================================
// Sensor Configuration
// =============================================================================

// SensorConfig configures the sensor capability.
type SensorConfig struct {
	// Driver is one of: snmp, file, sim.
	// Default: "sim"
	Driver string `yaml:"driver"`

	// Name identifies the sensor in record ids and logs.
	Name string `yaml:"name"`

	// Timeout bounds one read.
	// Default: 2s
	Timeout Duration `yaml:"timeout"`

	// Unit is the native unit of the sensor: celsius or fahrenheit.
	// Default: "celsius"
	Unit string `yaml:"unit"`

	SNMP SNMPSensorConfig `yaml:"snmp"`
	File FileSensorConfig `yaml:"file"`
}

// SNMPSensorConfig configures an SNMP environmental probe.
type SNMPSensorConfig struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`

	// v2c
	Community string `yaml:"community"`

	// v3 (used when SecurityName is set)
	SecurityName  string `yaml:"security_name"`
	SecurityLevel string `yaml:"security_level"`
	AuthProtocol  string `yaml:"auth_protocol"`
	AuthPassword  string `yaml:"auth_password"`
	PrivProtocol  string `yaml:"priv_protocol"`
	PrivPassword  string `yaml:"priv_password"`
	ContextName   string `yaml:"context_name"`

	// TemperatureOID and MoistureOID are read in a single GET.
	TemperatureOID string `yaml:"temperature_oid"`
	MoistureOID    string `yaml:"moisture_oid"`

	// Divisor scales the raw temperature (10 for probes reporting tenths).
	// Default: 1
	Divisor float64 `yaml:"divisor"`

	// Retries after an SNMP timeout.
	// Default: 1
	Retries int `yaml:"retries"`
}

// FileSensorConfig configures a sysfs/hwmon style file sensor.
type FileSensorConfig struct {
	// TemperaturePath holds the temperature in millidegrees Celsius.
	TemperaturePath string `yaml:"temperature_path"`

	// MoisturePath holds the moisture as an integer.
	MoisturePath string `yaml:"moisture_path"`
}

// =============================================================================
// Store Configuration
// =============================================================================

// StoreConfig configures the store capability.
type StoreConfig struct {
	// Driver is one of: duckdb, spool, kafka.
	// Default: "duckdb"
	Driver string `yaml:"driver"`

	// Timeout bounds one write.
	// Default: 5s
	Timeout Duration `yaml:"timeout"`

	DuckDB DuckDBConfig `yaml:"duckdb"`
	Spool  SpoolConfig  `yaml:"spool"`
	Kafka  KafkaConfig  `yaml:"kafka"`
}

// DuckDBConfig configures the embedded DuckDB store.
type DuckDBConfig struct {
	// Path is the database file.
	// Default: "heatwatch.db"
	Path string `yaml:"path"`
}

// SpoolConfig configures the append-only spool file store.
type SpoolConfig struct {
	// Path is the spool file.
	// Default: "heatwatch.spool"
	Path string `yaml:"path"`

	// Fsync syncs the file after every record.
	Fsync bool `yaml:"fsync"`
}

// KafkaConfig configures the Kafka store.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`

	// Topic receives one message per record.
	// Default: "heatwatch.readings"
	Topic string `yaml:"topic"`
}

// =============================================================================
// Alert Configuration
// =============================================================================

// AlertConfig configures alert delivery.
type AlertConfig struct {
	// Sinks lists the sinks alerts are fanned out to: log, mqtt.
	// Default: [log]
	Sinks []string `yaml:"sinks"`

	// Timeout bounds delivery by one sink.
	// Default: 3s
	Timeout Duration `yaml:"timeout"`

	// Cooldown is the minimum time between two alerts of one episode.
	// Zero disables the cooldown.
	Cooldown Duration `yaml:"cooldown"`

	// MaxPerEpisode caps the alerts of one episode. Zero means no cap.
	MaxPerEpisode int `yaml:"max_per_episode"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// HysteresisEnabled reports whether alerts are deduplicated.
func (a AlertConfig) HysteresisEnabled() bool {
	return a.Cooldown > 0 || a.MaxPerEpisode > 0
}

// MQTTConfig configures the MQTT alert sink.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string `yaml:"broker"`

	// Topic receives one message per alert.
	// Default: "heatwatch/alerts"
	Topic string `yaml:"topic"`

	// ClientID is the MQTT client id.
	// Default: "heatwatchd"
	ClientID string `yaml:"client_id"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// QoS is 0, 1 or 2.
	// Default: 1
	QoS byte `yaml:"qos"`
}

// =============================================================================
// HTTP / Log Configuration
// =============================================================================

// HTTPConfig configures the status/read API.
type HTTPConfig struct {
	// Listen is the listen address. Empty disables the server.
	// Default: ":5002"
	Listen string `yaml:"listen"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format: auto, text, json.
	Format string `yaml:"format"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: Duration(config.DefaultSampleInterval),
		Threshold: ThresholdConfig{
			ValueF: config.DefaultThresholdF,
		},
		Sensor: SensorConfig{
			Driver:  config.DefaultSensorDriver,
			Name:    config.DefaultSensorName,
			Timeout: Duration(config.DefaultSensorTimeout),
			Unit:    "celsius",
			SNMP: SNMPSensorConfig{
				Port:    config.DefaultSNMPPort,
				Divisor: 1,
				Retries: config.DefaultSNMPRetries,
			},
		},
		Store: StoreConfig{
			Driver:  config.DefaultStoreDriver,
			Timeout: Duration(config.DefaultStoreTimeout),
			DuckDB:  DuckDBConfig{Path: config.DefaultDuckDBPath},
			Spool:   SpoolConfig{Path: config.DefaultSpoolPath},
			Kafka:   KafkaConfig{Topic: config.DefaultKafkaTopic},
		},
		Alert: AlertConfig{
			Sinks:   []string{"log"},
			Timeout: Duration(config.DefaultAlertTimeout),
			MQTT: MQTTConfig{
				Topic:    config.DefaultMQTTTopic,
				ClientID: config.DefaultMQTTClientID,
				QoS:      1,
			},
		},
		HTTP: HTTPConfig{
			Listen: config.DefaultHTTPListen,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. Integers are seconds,
// strings use time.ParseDuration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int":
		var secs int64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	case "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
