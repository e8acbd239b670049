package frame

import (
	"bytes"
	"fmt"
)

var (
	crlf      = []byte("\r\n")
	nullToken = []byte("-1")
)

// cursor walks a buffer during a single Check or Parse call.
type cursor struct {
	buf   []byte
	pos   int
	depth int
}

// Check reports whether buf starts with one complete frame and returns
// the offset just past its end. It returns ErrIncomplete when more bytes
// are needed and an error wrapping ErrProtocol when the bytes are invalid.
func Check(buf []byte) (int, error) {
	c := cursor{buf: buf}
	if err := c.skip(); err != nil {
		return 0, err
	}
	return c.pos, nil
}

// Parse decodes the frame at the start of buf. buf must have passed Check.
func Parse(buf []byte) (Frame, error) {
	c := cursor{buf: buf}
	return c.parse()
}

func (c *cursor) next() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrIncomplete
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// line returns the bytes up to the next CRLF and moves past it.
func (c *cursor) line() ([]byte, error) {
	rest := c.buf[c.pos:]
	i := bytes.Index(rest, crlf)
	if i < 0 {
		if len(rest) > MaxLineLen {
			return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrProtocol, MaxLineLen)
		}
		return nil, ErrIncomplete
	}
	if i > MaxLineLen {
		return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrProtocol, MaxLineLen)
	}
	c.pos += i + 2
	return rest[:i], nil
}

func (c *cursor) decimal() (uint64, error) {
	line, err := c.line()
	if err != nil {
		return 0, err
	}
	return parseDecimal(line)
}

// length reads a bulk or array header. null is true for "-1".
func (c *cursor) length(limit uint64) (n int, null bool, err error) {
	line, err := c.line()
	if err != nil {
		return 0, false, err
	}
	if bytes.Equal(line, nullToken) {
		return 0, true, nil
	}
	v, err := parseDecimal(line)
	if err != nil {
		return 0, false, err
	}
	if v > limit {
		return 0, false, fmt.Errorf("%w: length %d exceeds limit %d", ErrProtocol, v, limit)
	}
	return int(v), false, nil
}

func (c *cursor) skip() error {
	b, err := c.next()
	if err != nil {
		return err
	}

	switch b {
	case '+', '-':
		_, err = c.line()
		return err
	case ':':
		_, err = c.decimal()
		return err
	case '$':
		n, null, err := c.length(MaxBulkLen)
		if err != nil || null {
			return err
		}
		return c.skipPayload(n)
	case '*':
		n, null, err := c.length(MaxArrayLen)
		if err != nil || null {
			return err
		}
		if err := c.enter(); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := c.skip(); err != nil {
				return err
			}
		}
		c.depth--
		return nil
	default:
		return fmt.Errorf("%w: invalid frame type byte %q", ErrProtocol, b)
	}
}

// enter descends into an array body.
func (c *cursor) enter() error {
	c.depth++
	if c.depth > MaxDepth {
		return fmt.Errorf("%w: arrays nested deeper than %d", ErrProtocol, MaxDepth)
	}
	return nil
}

// skipPayload moves past n payload bytes and the CRLF that must follow them.
func (c *cursor) skipPayload(n int) error {
	if len(c.buf)-c.pos < n+2 {
		return ErrIncomplete
	}
	end := c.pos + n
	if c.buf[end] != '\r' || c.buf[end+1] != '\n' {
		return fmt.Errorf("%w: bulk payload not terminated by CRLF", ErrProtocol)
	}
	c.pos = end + 2
	return nil
}

func (c *cursor) parse() (Frame, error) {
	b, err := c.next()
	if err != nil {
		return nil, err
	}

	switch b {
	case '+':
		line, err := c.line()
		if err != nil {
			return nil, err
		}
		return Simple(line), nil
	case '-':
		line, err := c.line()
		if err != nil {
			return nil, err
		}
		return Error(line), nil
	case ':':
		v, err := c.decimal()
		if err != nil {
			return nil, err
		}
		return Integer(v), nil
	case '$':
		n, null, err := c.length(MaxBulkLen)
		if err != nil {
			return nil, err
		}
		if null {
			return Null{}, nil
		}
		start := c.pos
		if err := c.skipPayload(n); err != nil {
			return nil, err
		}
		payload := make([]byte, n)
		copy(payload, c.buf[start:start+n])
		return Bulk(payload), nil
	case '*':
		n, null, err := c.length(MaxArrayLen)
		if err != nil {
			return nil, err
		}
		if null {
			return Null{}, nil
		}
		if err := c.enter(); err != nil {
			return nil, err
		}
		out := make(Array, 0, n)
		for i := 0; i < n; i++ {
			f, err := c.parse()
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		c.depth--
		return out, nil
	default:
		return nil, fmt.Errorf("%w: invalid frame type byte %q", ErrProtocol, b)
	}
}

// parseDecimal parses an unsigned base-10 integer without allocating.
func parseDecimal(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("%w: empty decimal", ErrProtocol)
	}
	var v uint64
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("%w: invalid decimal %q", ErrProtocol, b)
		}
		d := uint64(ch - '0')
		if v > (^uint64(0)-d)/10 {
			return 0, fmt.Errorf("%w: decimal overflows uint64", ErrProtocol)
		}
		v = v*10 + d
	}
	return v, nil
}
