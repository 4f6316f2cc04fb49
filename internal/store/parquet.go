package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/xtxerr/heatwatch/internal/reading"
)

// getCompression returns the parquet-go codec for a compression name.
// Unknown names fall back to zstd.
func getCompression(name string) compress.Codec {
	switch name {
	case "snappy":
		return &parquet.Snappy
	case "lz4":
		return &parquet.Lz4Raw
	case "gzip":
		return &parquet.Gzip
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// ExportParquet writes records to a parquet file at path and returns the
// number of rows written.
func ExportParquet(path string, records []reading.Record, compression string) (int, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := WriteParquet(f, records, compression)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

// WriteParquet writes records as a complete parquet file to w and returns
// the number of rows written.
func WriteParquet(w io.Writer, records []reading.Record, compression string) (int, error) {
	writer := parquet.NewGenericWriter[reading.Record](w, parquet.Compression(getCompression(compression)))

	n, err := writer.Write(records)
	if err != nil {
		return n, fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return n, fmt.Errorf("close writer: %w", err)
	}
	return n, nil
}

// ReadParquet reads all records of a parquet file written by ExportParquet.
func ReadParquet(path string) ([]reading.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[reading.Record](f)
	defer reader.Close()

	records := make([]reading.Record, reader.NumRows())
	n, err := reader.Read(records)
	if err != nil && n != len(records) {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return records[:n], nil
}
