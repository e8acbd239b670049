package connection

import (
	"bufio"
	"errors"
	"io"
	"sync/atomic"

	"github.com/yndnr/minikv/pkg/frame"
)

// InitialBufferSize is the starting capacity of the read buffer.
const InitialBufferSize = 4096

// ErrConnectionReset is returned when the stream ends with a partial frame buffered.
var ErrConnectionReset = errors.New("connection reset by peer")

// Connection sends and receives frames on a stream.
// It is not safe for concurrent use.
type Connection struct {
	stream io.ReadWriter
	bw     *bufio.Writer

	// buf[:n] holds received bytes not yet consumed by a returned frame.
	buf []byte
	n   int

	scratch []byte
	closed  atomic.Bool
}

// New wraps stream.
func New(stream io.ReadWriter) *Connection {
	return &Connection{
		stream: stream,
		bw:     bufio.NewWriter(stream),
		buf:    make([]byte, InitialBufferSize),
	}
}

// ReadFrame returns the next frame from the stream.
//
// It returns io.EOF if the stream ended with no buffered bytes,
// ErrConnectionReset if it ended mid-frame, and an error wrapping
// frame.ErrProtocol if the peer sent invalid framing.
func (c *Connection) ReadFrame() (frame.Frame, error) {
	for {
		f, err := c.parseFrame()
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, frame.ErrIncomplete) {
			return nil, err
		}

		if c.n == len(c.buf) {
			c.grow()
		}

		m, err := c.stream.Read(c.buf[c.n:])
		c.n += m
		if m > 0 {
			continue
		}
		if err == nil {
			// Read returned 0, nil; try again.
			continue
		}
		if errors.Is(err, io.EOF) {
			if c.n == 0 {
				return nil, io.EOF
			}
			return nil, ErrConnectionReset
		}
		return nil, err
	}
}

// parseFrame decodes one frame from the buffer and evicts its bytes.
func (c *Connection) parseFrame() (frame.Frame, error) {
	size, err := frame.Check(c.buf[:c.n])
	if err != nil {
		return nil, err
	}

	f, err := frame.Parse(c.buf[:size])
	if err != nil {
		return nil, err
	}

	copy(c.buf, c.buf[size:c.n])
	c.n -= size
	return f, nil
}

// grow doubles the read buffer. It never shrinks.
func (c *Connection) grow() {
	next := make([]byte, 2*len(c.buf))
	copy(next, c.buf[:c.n])
	c.buf = next
}

// WriteFrame encodes f, writes it and flushes the stream.
// Encoding a nested array panics, see frame.Encode.
func (c *Connection) WriteFrame(f frame.Frame) error {
	c.scratch = frame.AppendFrame(c.scratch[:0], f)
	if _, err := c.bw.Write(c.scratch); err != nil {
		return err
	}
	return c.bw.Flush()
}

// Buffered returns the number of received bytes not yet returned as a frame.
func (c *Connection) Buffered() int {
	return c.n
}

// Close closes the stream if it implements io.Closer. Later calls are no-ops.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := c.stream.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
