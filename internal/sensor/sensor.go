// Package sensor provides the sensor capability of the sample loop.
//
// A Port performs one bounded read of the physical sensor and returns either
// a validated reading.Reading or a *errors.SensorFailure. Ports never return
// NaN or infinite values; those are reported as SensorInvalidValue.
package sensor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xtxerr/heatwatch/internal/constants"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/logging"
	"github.com/xtxerr/heatwatch/internal/reading"
)

var log = logging.Component("sensor")

// Port is the sensor capability.
type Port interface {
	// Read performs one read. Every error is a *errors.SensorFailure.
	Read(ctx context.Context) (reading.Reading, error)

	// Close releases the transport.
	Close() error
}

// New constructs the Port selected by cfg.Driver.
func New(cfg loader.SensorConfig) (Port, error) {
	unit, err := reading.ParseUnit(cfg.Unit)
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case constants.SensorDriverSNMP:
		return NewSNMP(cfg.SNMP, unit, cfg.Timeout.Duration())
	case constants.SensorDriverFile:
		return NewFile(cfg.File, unit), nil
	case constants.SensorDriverSim:
		return NewSim(time.Now().UnixNano()), nil
	default:
		return nil, errors.NewUnknownDriver("sensor", cfg.Driver)
	}
}

// checkFinite rejects NaN and infinite values.
func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.NewSensorFailure(errors.SensorInvalidValue, fmt.Errorf("%s is %v", name, v))
	}
	return nil
}

// cancelled returns a timeout failure if ctx is already done.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.NewSensorFailure(errors.SensorTimeout, err)
	}
	return nil
}
