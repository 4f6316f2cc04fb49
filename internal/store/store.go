// Package store provides the store capability of the sample loop.
//
// A Port persists one reading.Record per call and returns either nil or a
// *errors.StoreFailure. Ports do not retry; a failed write is a dropped
// sample. Writes are idempotent: every store assigns the deterministic
// record id from reading.RecordID and ignores a record it already holds.
package store

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/xtxerr/heatwatch/internal/constants"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/logging"
	"github.com/xtxerr/heatwatch/internal/reading"
)

var log = logging.Component("store")

// Port is the store capability.
type Port interface {
	// Write persists rec. Every error is a *errors.StoreFailure.
	Write(ctx context.Context, rec reading.Record) error

	// Close releases the connection.
	Close() error
}

// Reader is implemented by stores that can read records back.
type Reader interface {
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]reading.Record, error)
}

// Ranger is implemented by stores that can read a capture-time range.
type Ranger interface {
	// Between returns the records captured in [fromMs, toMs), oldest first.
	Between(ctx context.Context, fromMs, toMs int64) ([]reading.Record, error)
}

// Checker is implemented by stores with a queryable backend.
type Checker interface {
	// Health returns nil when the backend answers.
	Health(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
}

// New constructs the Port selected by cfg.Driver. sensor names the sensor
// whose records the store receives and seeds record ids.
func New(ctx context.Context, cfg loader.StoreConfig, sensor string) (Port, error) {
	switch cfg.Driver {
	case constants.StoreDriverDuckDB:
		return OpenDuckDB(ctx, cfg.DuckDB.Path, sensor)
	case constants.StoreDriverSpool:
		return OpenSpool(cfg.Spool.Path, sensor, cfg.Spool.Fsync)
	case constants.StoreDriverKafka:
		return NewKafka(cfg.Kafka, sensor), nil
	default:
		return nil, errors.NewUnknownDriver("store", cfg.Driver)
	}
}

// =============================================================================
// Error Classification
// =============================================================================

// classify maps a driver error onto the store failure taxonomy.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	var failure *errors.StoreFailure
	if errors.As(err, &failure) {
		return err
	}

	wrapped := fmt.Errorf("%s: %w", op, err)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return errors.NewStoreFailure(errors.StoreTimeout, wrapped)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewStoreFailure(errors.StoreTimeout, wrapped)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, errors.ErrClosed) {
		return errors.NewStoreFailure(errors.StoreConnectionRefused, wrapped)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return errors.NewStoreFailure(errors.StoreConnectionRefused, wrapped)
	}

	return errors.NewStoreFailure(errors.StoreRejected, wrapped)
}
