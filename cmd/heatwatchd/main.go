// heatwatchd is the temperature and moisture monitoring daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/xtxerr/heatwatch/internal/alert"
	"github.com/xtxerr/heatwatch/internal/api"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/logging"
	"github.com/xtxerr/heatwatch/internal/loop"
	"github.com/xtxerr/heatwatch/internal/metrics"
	"github.com/xtxerr/heatwatch/internal/sensor"
	"github.com/xtxerr/heatwatch/internal/store"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time via ldflags
var Version = "dev"

var log = logging.Component("heatwatchd")

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	listen := flag.String("listen", "", "HTTP listen address (overrides config, \"off\" disables)")
	flag.Parse()

	if err := run(*cfgPath, *logLevel, *listen); err != nil {
		fmt.Fprintf(os.Stderr, "heatwatchd: %v\n", err)
		if errors.IsValidation(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cfgPath, logLevel, listen string) error {
	// Load config
	cfg, err := loader.Load(cfgPath)
	defaults := errors.Is(err, os.ErrNotExist)
	if defaults {
		cfg = loader.DefaultConfig()
	} else if err != nil {
		return err
	}

	// CLI overrides
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	switch listen {
	case "":
	case "off":
		cfg.HTTP.Listen = ""
	default:
		cfg.HTTP.Listen = listen
	}

	if err := loader.Validate(cfg); err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	log.Info("heatwatchd starting", "version", Version, "config", cfgPath)
	if defaults {
		log.Info("no config file found, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// Capabilities
	// =========================================================================

	sens, err := sensor.New(cfg.Sensor)
	if err != nil {
		return errors.Wrap(err, "create sensor")
	}
	defer closeLogged("sensor", sens)

	st, err := store.New(ctx, cfg.Store, cfg.Sensor.Name)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer closeLogged("store", st)

	sinks, err := alert.NewSinks(cfg.Alert)
	if err != nil {
		return errors.Wrap(err, "create alert sinks")
	}
	defer closeLogged("alert sinks", sinks)

	log.Info("capabilities ready",
		"sensor", cfg.Sensor.Driver,
		"store", cfg.Store.Driver,
		"alert_sinks", sinks.Len(),
		"hysteresis", cfg.Alert.HysteresisEnabled())

	// =========================================================================
	// Sample Loop
	// =========================================================================

	m := metrics.New()

	sampler, err := loop.New(loop.Config{
		Interval:      cfg.Interval.Duration(),
		SensorTimeout: cfg.Sensor.Timeout.Duration(),
		StoreTimeout:  cfg.Store.Timeout.Duration(),
		AlertTimeout:  cfg.Alert.Timeout.Duration(),
		Threshold:     cfg.Threshold.Reading(),
		SensorName:    cfg.Sensor.Name,
	}, sens, st, alert.NewEvaluator(cfg.Alert), sinks, m)
	if err != nil {
		return errors.Wrap(err, "create sample loop")
	}

	// =========================================================================
	// Run
	// =========================================================================

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sampler.Run(gctx)
	})

	if cfg.HTTP.Listen != "" {
		reader, _ := st.(store.Reader)
		srv := api.New(cfg.HTTP.Listen, sampler, reader, m)

		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown(context.Background())
		})
	} else {
		log.Info("http server disabled")
	}

	err = g.Wait()
	log.Info("heatwatchd stopped", "ticks", sampler.Stats().Ticks)
	return err
}

func closeLogged(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn("close failed", "component", name, "error", err)
	}
}
