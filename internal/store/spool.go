package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/reading"
	"github.com/xtxerr/heatwatch/internal/wire"
	"google.golang.org/protobuf/types/known/structpb"
)

// Spool appends records to a local file as length-delimited protobuf
// Struct messages. It needs no server and survives network outages.
//
// The file only ever ends on a complete frame: a torn tail left by a crash
// is cut on open, and a failed append is rolled back before the next one.
//
// Spool is safe for concurrent use.
type Spool struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	w      *wire.Writer
	size   int64
	dirty  bool
	sensor string
	fsync  bool
	closed bool
}

// OpenSpool opens path for appending, creating it if needed.
func OpenSpool(path, sensor string, fsync bool) (*Spool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}

	size, err := recoverSpool(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}

	log.Info("spool store opened", "path", path, "fsync", fsync, "bytes", size)

	return &Spool{
		path:   path,
		file:   f,
		w:      wire.NewWriter(f),
		size:   size,
		sensor: sensor,
		fsync:  fsync,
	}, nil
}

// recoverSpool scans f, cuts everything after the last complete frame and
// leaves the file offset at the new end.
func recoverSpool(f *os.File, path string) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat spool: %w", err)
	}

	r := wire.NewReader(f)
	var scanErr error
	for {
		if err := r.Read(&structpb.Struct{}); err != nil {
			if err != io.EOF {
				scanErr = err
			}
			break
		}
	}

	end := r.Offset()
	if end < info.Size() {
		log.Warn("spool tail truncated",
			"path", path,
			"offset", end,
			"dropped_bytes", info.Size()-end,
			"error", scanErr)
		if err := f.Truncate(end); err != nil {
			return 0, fmt.Errorf("truncate spool: %w", err)
		}
	}

	if _, err := f.Seek(end, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek spool: %w", err)
	}
	return end, nil
}

// Write appends rec.
func (s *Spool) Write(ctx context.Context, rec reading.Record) error {
	if err := ctx.Err(); err != nil {
		return classify(ctx, "write", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return classify(ctx, "write", errors.ErrClosed)
	}
	if s.dirty {
		if err := s.rollback(); err != nil {
			return classify(ctx, "rollback", err)
		}
	}

	st, err := recordToStruct(rec.WithID(s.sensor))
	if err != nil {
		return errors.NewStoreFailure(errors.StoreRejected, err)
	}

	n, err := s.w.Write(st)
	if err != nil {
		s.abort()
		return classify(ctx, "append", err)
	}
	if s.fsync {
		if err := s.file.Sync(); err != nil {
			s.abort()
			return classify(ctx, "sync", err)
		}
	}
	s.size += int64(n)
	return nil
}

// abort marks the spool dirty and tries to roll back at once. A rollback
// that fails here is retried by the next Write.
func (s *Spool) abort() {
	s.dirty = true
	if err := s.rollback(); err != nil {
		log.Error("spool rollback failed", "path", s.path, "offset", s.size, "error", err)
	}
}

// rollback cuts the file back to the end of the last acknowledged record.
func (s *Spool) rollback() error {
	if err := s.file.Truncate(s.size); err != nil {
		return err
	}
	if _, err := s.file.Seek(s.size, io.SeekStart); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Close closes the spool file.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.file.Close()
}

// ReadSpool reads every record of a spool file in write order. A record
// written more than once is returned once.
func ReadSpool(path string) ([]reading.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	r := wire.NewReader(f)
	seen := make(map[string]struct{})

	var records []reading.Record
	for {
		st := &structpb.Struct{}
		if err := r.Read(st); err != nil {
			if err == io.EOF {
				return records, nil
			}
			return records, fmt.Errorf("record %d: %w", len(records)+1, err)
		}

		rec := structToRecord(st)
		if _, dup := seen[rec.ID]; dup && rec.ID != "" {
			continue
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
}

func recordToStruct(rec reading.Record) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":           rec.ID,
		"temperature":  rec.Temperature,
		"moisture":     float64(rec.Moisture),
		"timestamp_ms": float64(rec.TimestampMs),
	})
}

func structToRecord(st *structpb.Struct) reading.Record {
	f := st.GetFields()
	return reading.Record{
		ID:          f["id"].GetStringValue(),
		Temperature: f["temperature"].GetNumberValue(),
		Moisture:    int64(f["moisture"].GetNumberValue()),
		TimestampMs: int64(f["timestamp_ms"].GetNumberValue()),
	}
}
