// Package wire provides length-delimited protobuf framing.
//
// Messages are prefixed with their size as a protobuf varint, so a stream
// of records can be appended to and read back without an index.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/xtxerr/heatwatch/config"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/proto"
)

// Reader reads length-delimited messages from an io.Reader.
// It is safe for concurrent use.
type Reader struct {
	r    *countingReader
	good int64
	mu   sync.Mutex
}

// NewReader creates a Reader wrapping the given io.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: &countingReader{r: bufio.NewReader(r)}}
}

// Offset returns the number of bytes consumed by the messages read
// successfully so far. After a failed Read it is the start of the bad frame.
func (r *Reader) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.good
}

// Read unmarshals the next message into m.
// Returns io.EOF at a clean end of stream and an error if the message
// exceeds DefaultMaxRecordSize.
func (r *Reader) Read(m proto.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := protodelim.UnmarshalOptions{
		MaxSize: config.DefaultMaxRecordSize,
	}
	if err := opts.UnmarshalFrom(r.r, m); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("read record: %w", err)
	}
	r.good = r.r.n
	return nil
}

// countingReader counts the bytes handed out by the buffered reader, which
// unlike the underlying reader's position excludes read-ahead.
type countingReader struct {
	r *bufio.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// Writer writes length-delimited messages to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriter creates a Writer wrapping the given io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals m and writes it with its length prefix.
// It returns the number of bytes written.
func (w *Writer) Write(m proto.Message) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := protodelim.MarshalTo(w.w, m)
	if err != nil {
		return n, fmt.Errorf("write record: %w", err)
	}
	return n, nil
}
