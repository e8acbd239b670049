package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/yndnr/minikv/internal/command"
	"github.com/yndnr/minikv/internal/connection"
	"github.com/yndnr/minikv/pkg/frame"
)

var (
	// ErrServer wraps error replies sent by the server.
	ErrServer = errors.New("server error")

	// ErrUnexpectedReply is returned for a reply of the wrong frame type.
	ErrUnexpectedReply = errors.New("unexpected reply")

	// ErrBroken is returned by every request after a request failed with
	// an I/O or protocol error. The connection is closed at that point
	// because a late or partial reply may still be in flight.
	ErrBroken = errors.New("connection broken by an earlier request")
)

// deadliner is implemented by net.Conn.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Client is a single connection to a minikv server.
type Client struct {
	conn   *connection.Connection
	stream io.ReadWriter

	// failed is the error that broke the connection, if any.
	failed error
}

// Dial connects to the server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(nc), nil
}

// New creates a client over an established stream.
func New(stream io.ReadWriter) *Client {
	return &Client{
		conn:   connection.New(stream),
		stream: stream,
	}
}

// Get returns the value stored under key. ok is false when the key is
// absent.
func (c *Client) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	reply, err := c.roundTrip(ctx, command.Get{Key: key})
	if err != nil {
		return nil, false, err
	}

	switch r := reply.(type) {
	case frame.Bulk:
		return []byte(r), true, nil
	case frame.Null:
		return nil, false, nil
	default:
		return nil, false, unexpected("GET", reply)
	}
}

// Set stores value under key.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	reply, err := c.roundTrip(ctx, command.Set{Key: key, Value: value})
	if err != nil {
		return err
	}

	if s, ok := reply.(frame.Simple); ok && s == "OK" {
		return nil
	}
	return unexpected("SET", reply)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(ctx context.Context, cmd command.Command) (frame.Frame, error) {
	if c.failed != nil {
		return nil, fmt.Errorf("%s: %w: %w", cmd.Name(), ErrBroken, c.failed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d, ok := c.stream.(deadliner); ok {
		deadline, _ := ctx.Deadline()
		if err := d.SetDeadline(deadline); err != nil {
			return nil, err
		}
		// Cancellation interrupts a blocked read or write.
		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			_ = d.SetDeadline(time.Now())
			close(fired)
		})
		defer func() {
			if !stop() {
				<-fired
			}
		}()
	}

	reply, err := c.exchange(cmd)
	if err != nil {
		if ctxErr := contextErr(ctx); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		c.fail(err)
		return nil, fmt.Errorf("%s: %w", cmd.Name(), err)
	}

	if e, ok := reply.(frame.Error); ok {
		return nil, fmt.Errorf("%s: %w: %s", cmd.Name(), ErrServer, string(e))
	}
	return reply, nil
}

// exchange writes one request and reads its reply.
func (c *Client) exchange(cmd command.Command) (frame.Frame, error) {
	if err := c.conn.WriteFrame(cmd.Frame()); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	reply, err := c.conn.ReadFrame()
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}

// contextErr reports ctx as done once its deadline has passed, even if its
// timer has not fired yet.
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return nil
}

// fail marks the client unusable and closes the connection.
func (c *Client) fail(err error) {
	c.failed = err
	_ = c.conn.Close()
}

func unexpected(name string, f frame.Frame) error {
	return fmt.Errorf("%s: %w %T", name, ErrUnexpectedReply, f)
}
