package kvserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/minikv/internal/command"
	"github.com/yndnr/minikv/internal/connection"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/internal/telemetry/metric"
	"github.com/yndnr/minikv/pkg/frame"
)

var replyOK = frame.Simple("OK")

// timedConn applies the idle timeout to the first read of a request and
// the read timeout to the reads that complete it.
type timedConn struct {
	net.Conn
	idle    time.Duration
	read    time.Duration
	started bool
}

func (c *timedConn) Read(p []byte) (int, error) {
	d := c.idle
	if c.started {
		d = c.read
	}
	if d > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return 0, err
		}
	}
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.started = true
	}
	return n, err
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	id := ulid.Make().String()
	log := s.logger.With("conn_id", id, "remote", nc.RemoteAddr().String())
	ctx = logger.WithConnID(ctx, id)

	tc := &timedConn{Conn: nc, idle: s.cfg.IdleTimeout, read: s.cfg.ReadTimeout}
	conn := connection.New(tc)
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.ConnError(metric.ErrKindPanic)
			log.Error("panic while serving connection", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	log.Debug("connection accepted")

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateLimit)
	}

	err := s.handle(ctx, log, tc, conn, limiter)
	s.logClose(log, err)
}

// handle runs the request loop until the peer closes cleanly (nil) or an
// error ends the connection.
func (s *Server) handle(ctx context.Context, log *slog.Logger, tc *timedConn, conn *connection.Connection, limiter *rate.Limiter) error {
	for {
		tc.started = conn.Buffered() > 0

		f, err := conn.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		cmd, err := command.FromFrame(f)
		if err != nil {
			return err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		reply := s.apply(cmd)
		if log.Enabled(ctx, slog.LevelDebug) {
			log.Debug("command", "command", cmd.Name(), "reply", reply.String())
		}

		if s.cfg.WriteTimeout > 0 {
			if err := tc.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return err
			}
		}
		if err := conn.WriteFrame(reply); err != nil {
			return err
		}
		s.metrics.ObserveCommand(cmd.Name(), time.Since(start))
	}
}

// apply executes cmd against the store and returns the reply frame.
func (s *Server) apply(cmd command.Command) frame.Frame {
	switch c := cmd.(type) {
	case command.Get:
		if v, ok := s.store.Get(c.Key); ok {
			return frame.Bulk(v)
		}
		return frame.Null{}
	case command.Set:
		s.store.Set(c.Key, c.Value)
		return replyOK
	default:
		panic(fmt.Sprintf("kvserver: no handler for command %T", cmd))
	}
}

func (s *Server) logClose(log *slog.Logger, err error) {
	if err == nil {
		log.Debug("connection closed")
		return
	}
	if !s.running.Load() || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		log.Debug("connection closed during shutdown", "error", err)
		return
	}

	var netErr net.Error
	switch {
	case errors.Is(err, frame.ErrProtocol):
		s.metrics.ConnError(metric.ErrKindProtocol)
		log.Warn("protocol error, closing connection", "error", err)
	case errors.Is(err, command.ErrUnsupported):
		s.metrics.ConnError(metric.ErrKindUnsupported)
		log.Warn("unsupported command, closing connection", "error", err)
	case errors.Is(err, connection.ErrConnectionReset):
		s.metrics.ConnError(metric.ErrKindReset)
		log.Debug("connection reset mid-frame", "error", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		s.metrics.ConnError(metric.ErrKindIO)
		log.Debug("connection timed out", "error", err)
	default:
		s.metrics.ConnError(metric.ErrKindIO)
		log.Debug("connection read error", "error", err)
	}
}
