// Package loader handles configuration file loading and validation.
//
// LOCATION: internal/loader/loader.go
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Validating the result before any capability is constructed

package loader

import (
	"fmt"
	"math"
	"os"

	"github.com/xtxerr/heatwatch/internal/constants"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/reading"
	"github.com/xtxerr/heatwatch/internal/validation"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if cfg.Interval.Duration() <= 0 {
		errs.Add(fmt.Errorf("interval %s: %w", cfg.Interval.Duration(), errors.ErrInvalidInterval))
	}
	if math.IsNaN(cfg.Threshold.ValueF) || math.IsInf(cfg.Threshold.ValueF, 0) {
		errs.AddField("threshold.value_f", "must be a finite number")
	}

	validateSensor(errs, &cfg.Sensor)
	validateStore(errs, &cfg.Store)
	validateAlert(errs, &cfg.Alert)

	if _, err := parseLevel(cfg.Log.Level); err != nil {
		errs.AddField("log.level", err.Error())
	}
	if cfg.Log.Format != "" && !constants.IsValid(cfg.Log.Format, constants.ValidLogFormats) {
		errs.AddField("log.format", fmt.Sprintf("unknown format %q", cfg.Log.Format))
	}

	return errs.Err()
}

func validateSensor(errs *errors.ValidationErrors, s *SensorConfig) {
	if s.Name == "" {
		errs.AddMissing("sensor.name")
	} else if err := validation.ValidateSensorName(s.Name); err != nil {
		errs.AddField("sensor.name", err.Error())
	}
	if s.Timeout.Duration() <= 0 {
		errs.AddField("sensor.timeout", "must be positive")
	}
	if _, err := reading.ParseUnit(s.Unit); err != nil {
		errs.AddField("sensor.unit", err.Error())
	}

	switch s.Driver {
	case constants.SensorDriverSNMP:
		if s.SNMP.Host == "" {
			errs.AddMissing("sensor.snmp.host")
		}
		validateOID(errs, "sensor.snmp.temperature_oid", s.SNMP.TemperatureOID)
		validateOID(errs, "sensor.snmp.moisture_oid", s.SNMP.MoistureOID)
		if s.SNMP.SecurityName == "" && s.SNMP.Community == "" {
			errs.AddField("sensor.snmp.community", "required for SNMP v2c")
		}
		if s.SNMP.Divisor < 0 {
			errs.AddField("sensor.snmp.divisor", "cannot be negative")
		}
	case constants.SensorDriverFile:
		if s.File.TemperaturePath == "" {
			errs.AddMissing("sensor.file.temperature_path")
		}
		if s.File.MoisturePath == "" {
			errs.AddMissing("sensor.file.moisture_path")
		}
	case constants.SensorDriverSim:
	default:
		errs.Add(errors.NewUnknownDriver("sensor", s.Driver))
	}
}

func validateStore(errs *errors.ValidationErrors, s *StoreConfig) {
	if s.Timeout.Duration() <= 0 {
		errs.AddField("store.timeout", "must be positive")
	}

	switch s.Driver {
	case constants.StoreDriverDuckDB:
		if s.DuckDB.Path == "" {
			errs.AddMissing("store.duckdb.path")
		}
	case constants.StoreDriverSpool:
		if s.Spool.Path == "" {
			errs.AddMissing("store.spool.path")
		}
	case constants.StoreDriverKafka:
		if len(s.Kafka.Brokers) == 0 {
			errs.AddMissing("store.kafka.brokers")
		}
		for _, b := range s.Kafka.Brokers {
			if err := validation.ValidateHostPort(b); err != nil {
				errs.AddField("store.kafka.brokers", err.Error())
			}
		}
		if s.Kafka.Topic == "" {
			errs.AddMissing("store.kafka.topic")
		} else if err := validation.ValidateKafkaTopic(s.Kafka.Topic); err != nil {
			errs.AddField("store.kafka.topic", err.Error())
		}
	default:
		errs.Add(errors.NewUnknownDriver("store", s.Driver))
	}
}

func validateAlert(errs *errors.ValidationErrors, a *AlertConfig) {
	if a.Timeout.Duration() <= 0 {
		errs.AddField("alert.timeout", "must be positive")
	}
	if a.Cooldown.Duration() < 0 {
		errs.AddField("alert.cooldown", "cannot be negative")
	}
	if a.MaxPerEpisode < 0 {
		errs.AddField("alert.max_per_episode", "cannot be negative")
	}

	for _, sink := range a.Sinks {
		switch sink {
		case constants.AlertSinkLog:
		case constants.AlertSinkMQTT:
			if a.MQTT.Broker == "" {
				errs.AddMissing("alert.mqtt.broker")
			} else if err := validation.ValidateBrokerURL(a.MQTT.Broker); err != nil {
				errs.AddField("alert.mqtt.broker", err.Error())
			}
			if a.MQTT.Topic == "" {
				errs.AddMissing("alert.mqtt.topic")
			} else if err := validation.ValidateMQTTTopic(a.MQTT.Topic); err != nil {
				errs.AddField("alert.mqtt.topic", err.Error())
			}
			if a.MQTT.QoS > 2 {
				errs.AddField("alert.mqtt.qos", "must be 0, 1 or 2")
			}
		default:
			errs.Add(errors.NewUnknownDriver("alert sink", sink))
		}
	}
}

func validateOID(errs *errors.ValidationErrors, field, oid string) {
	if oid == "" {
		errs.AddMissing(field)
		return
	}
	if err := validation.ValidateOID(oid); err != nil {
		errs.AddField(field, err.Error())
	}
}

func parseLevel(s string) (string, error) {
	switch s {
	case "", "debug", "info", "warn", "warning", "error":
		return s, nil
	default:
		return "", fmt.Errorf("unknown level %q", s)
	}
}
