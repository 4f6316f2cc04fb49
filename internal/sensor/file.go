package sensor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/reading"
)

// File reads a sensor exposed through sysfs, the way Linux hwmon drivers do:
// the temperature file holds millidegrees, the moisture file an integer.
type File struct {
	temperaturePath string
	moisturePath    string
	unit            reading.Unit
	now             func() time.Time
}

// NewFile creates a file sensor.
func NewFile(cfg loader.FileSensorConfig, unit reading.Unit) *File {
	return &File{
		temperaturePath: cfg.TemperaturePath,
		moisturePath:    cfg.MoisturePath,
		unit:            unit,
		now:             time.Now,
	}
}

// Read reads both files.
func (f *File) Read(ctx context.Context) (reading.Reading, error) {
	if err := cancelled(ctx); err != nil {
		return reading.Reading{}, err
	}

	milli, err := readNumber(f.temperaturePath)
	if err != nil {
		return reading.Reading{}, err
	}
	moisture, err := readNumber(f.moisturePath)
	if err != nil {
		return reading.Reading{}, err
	}

	temp := milli / 1000
	if err := checkFinite("temperature", temp); err != nil {
		return reading.Reading{}, err
	}
	if err := checkFinite("moisture", moisture); err != nil {
		return reading.Reading{}, err
	}

	return reading.Reading{
		RawTemperature: temp,
		Unit:           f.unit,
		Moisture:       int64(moisture),
		CapturedAt:     f.now().UnixMilli(),
	}, nil
}

// Close implements Port.
func (f *File) Close() error {
	return nil
}

func readNumber(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Missing files and EIO/ENXIO from an unplugged hwmon device alike.
		return 0, errors.NewSensorFailure(errors.SensorDisconnected, fmt.Errorf("read %s: %w", path, err))
	}

	s := strings.TrimSpace(string(data))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.NewSensorFailure(errors.SensorInvalidValue, fmt.Errorf("%s: not a number: %q", path, s))
	}
	return v, nil
}
