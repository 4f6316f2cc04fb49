package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xtxerr/heatwatch/config"
	"github.com/xtxerr/heatwatch/internal/constants"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"golang.org/x/sync/errgroup"
)

// Sink delivers an alert. Notify must not panic or block past ctx; any
// failure is logged by the sink itself.
type Sink interface {
	Notify(ctx context.Context, ev Event)
}

// =============================================================================
// Log Sink
// =============================================================================

// LogSink writes alerts to the log at error level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses the alert component logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = log
	}
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(ctx context.Context, ev Event) {
	s.logger.ErrorContext(ctx, "ALERT: temperature above threshold",
		"temperature_f", ev.TemperatureF,
		"triggered_at", ev.TriggeredTime())
}

// =============================================================================
// Multi Sink
// =============================================================================

// Multi fans an event out to several sinks concurrently. Each sink is
// bounded by its own timeout as well as by the caller's ctx, so a sink that
// hangs holds back neither the others nor the caller past either deadline.
type Multi struct {
	sinks   []Sink
	timeout time.Duration
}

// NewMulti creates a Multi. A zero timeout uses DefaultAlertTimeout.
func NewMulti(timeout time.Duration, sinks ...Sink) *Multi {
	if timeout <= 0 {
		timeout = config.DefaultAlertTimeout
	}
	return &Multi{sinks: sinks, timeout: timeout}
}

// Notify implements Sink. It returns once every sink has returned.
func (m *Multi) Notify(ctx context.Context, ev Event) {
	var g errgroup.Group
	for _, s := range m.sinks {
		g.Go(func() error {
			m.notifyOne(ctx, s, ev)
			return nil
		})
	}
	g.Wait()
}

func (m *Multi) notifyOne(ctx context.Context, s Sink, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("alert sink panic", "sink", fmt.Sprintf("%T", s), "panic", r)
		}
	}()

	s.Notify(ctx, ev)
}

// Close closes every sink that holds a connection.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close sinks: %v", errs)
	}
	return nil
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// =============================================================================
// Factory
// =============================================================================

// NewSinks builds the sinks listed in cfg.Sinks behind a Multi.
func NewSinks(cfg loader.AlertConfig) (*Multi, error) {
	var sinks []Sink
	for _, name := range cfg.Sinks {
		switch name {
		case constants.AlertSinkLog:
			sinks = append(sinks, NewLogSink(nil))
		case constants.AlertSinkMQTT:
			s, err := NewMQTTSink(cfg.MQTT, cfg.Timeout.Duration())
			if err != nil {
				NewMulti(0, sinks...).Close()
				return nil, err
			}
			sinks = append(sinks, s)
		default:
			NewMulti(0, sinks...).Close()
			return nil, errors.NewUnknownDriver("alert sink", name)
		}
	}
	return NewMulti(cfg.Timeout.Duration(), sinks...), nil
}
