package frame

import (
	"errors"
	"strconv"
	"strings"
)

// Protocol limits.
const (
	// MaxBulkLen limits the declared length of a bulk string (512MB, same as Redis).
	MaxBulkLen = 512 * 1024 * 1024

	// MaxArrayLen limits the number of elements in an array.
	MaxArrayLen = 1 << 20

	// MaxLineLen limits simple string, error and integer lines.
	MaxLineLen = 64 * 1024

	// MaxDepth limits how deeply arrays may nest inside one frame.
	MaxDepth = 32
)

var (
	// ErrIncomplete reports that the buffer holds a valid but truncated
	// frame prefix. It is not a failure: read more bytes and retry.
	ErrIncomplete = errors.New("frame: incomplete")

	// ErrProtocol reports bytes that can never become a valid frame.
	ErrProtocol = errors.New("frame: protocol error")

	// ErrNestedArray is the panic value for encoding an array inside an array.
	ErrNestedArray = errors.New("frame: nested array encoding is not supported")
)

// Frame is one protocol message. The concrete types are Simple, Error,
// Integer, Bulk, Null and Array.
type Frame interface {
	isFrame()
	String() string
}

// Simple is a status line such as "OK".
type Simple string

// Error is an error line sent by the peer.
type Error string

// Integer is an unsigned decimal integer.
type Integer uint64

// Bulk is a binary safe, length prefixed payload.
type Bulk []byte

// Null is the absent value, encoded as "$-1\r\n".
type Null struct{}

// Array is a sequence of frames.
type Array []Frame

func (Simple) isFrame()  {}
func (Error) isFrame()   {}
func (Integer) isFrame() {}
func (Bulk) isFrame()    {}
func (Null) isFrame()    {}
func (Array) isFrame()   {}

func (s Simple) String() string { return string(s) }

func (e Error) String() string { return "error: " + string(e) }

func (i Integer) String() string { return strconv.FormatUint(uint64(i), 10) }

func (b Bulk) String() string { return strconv.Quote(string(b)) }

func (Null) String() string { return "(nil)" }

func (a Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range a {
		if i > 0 {
			sb.WriteString(", ")
		}
		if f == nil {
			sb.WriteString("<nil>")
			continue
		}
		sb.WriteString(f.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// BulkString is a convenience constructor for a Bulk holding s.
func BulkString(s string) Bulk {
	return Bulk(s)
}
