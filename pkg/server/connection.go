package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/shardcache-go/shc/internal/logger"
	"github.com/shardcache-go/shc/internal/store"
	"github.com/shardcache-go/shc/pkg/bufpool"
	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/codec"
)

// connMetrics is the subset of MetricsRecorder a connSink needs; kept
// narrow so tests can pass nil without satisfying the full interface.
type connMetrics interface {
	RecordCommand(command string, duration time.Duration)
	RecordParseFailure()
	RecordAuthFailure()
}

// connSink accumulates one message's records and, on MessageDone,
// dispatches it against backend and writes the response back over conn.
// A single connSink is reused across a persistent connection's pipelined
// messages, mirroring the parser's own reset-after-DONE lifecycle.
type connSink struct {
	ctx     context.Context
	conn    net.Conn
	parser  *codec.Parser
	backend store.Store
	build   codec.BuildConfig
	metrics connMetrics

	records  [][]byte
	cur      []byte
	curIdx   int
	msgStart time.Time

	writeErr error
}

func (s *connSink) Chunk(idx int, chunk []byte) error {
	if s.msgStart.IsZero() {
		s.msgStart = time.Now()
	}
	if idx != s.curIdx {
		s.flushRecord()
	}
	s.cur = append(s.cur, chunk...)
	return nil
}

func (s *connSink) RecordEnd(idx int) error {
	s.flushRecord()
	return nil
}

func (s *connSink) flushRecord() {
	s.records = append(s.records, s.cur)
	s.cur = nil
	s.curIdx++
}

func (s *connSink) MessageDone() error {
	cmd := s.parser.Command()
	respCmd, respRecords := dispatch(s.ctx, s.backend, cmd, s.records)
	logger.DebugCtx(s.ctx, "dispatched request", "command", cmd.String(), "response", respCmd.String())

	if s.metrics != nil && !s.msgStart.IsZero() {
		s.metrics.RecordCommand(cmd.String(), time.Since(s.msgStart))
	}

	msg := codec.Build(s.build, respCmd, respRecords)
	if _, err := s.conn.Write(msg); err != nil {
		s.writeErr = wire.TransportError("writing response", err)
	}

	s.records = nil
	s.cur = nil
	s.curIdx = 0
	s.msgStart = time.Time{}
	return nil
}

func (s *connSink) MessageFailed(err error) {
	logger.WarnCtx(s.ctx, "message failed", "error", err)
	if s.metrics != nil {
		if wire.IsKind(err, wire.KindAuth) {
			s.metrics.RecordAuthFailure()
		} else {
			s.metrics.RecordParseFailure()
		}
	}
	s.records = nil
	s.cur = nil
	s.curIdx = 0
	s.msgStart = time.Time{}
}

func (s *connSink) Closed() {}

// Connection is one accepted shardcache client connection. It implements
// the Serve(ctx) contract used by the accept loop in server.go.
type Connection struct {
	conn    net.Conn
	backend store.Store
	build   codec.BuildConfig
	secret  []byte
	metrics connMetrics
}

// newConnection wraps an accepted net.Conn for dispatch against backend.
func newConnection(conn net.Conn, backend store.Store, build codec.BuildConfig, metrics connMetrics) *Connection {
	return &Connection{conn: conn, backend: backend, build: build, secret: build.Secret, metrics: metrics}
}

// Serve reads and dispatches messages from the connection until it closes,
// the context is cancelled, or a protocol-level error forces a reset. Per
// spec.md §5's idle-timeout rule, a read that exceeds the process-wide TCP
// timeout without producing a byte closes the connection.
func (c *Connection) Serve(ctx context.Context) {
	defer c.conn.Close()

	lc := logger.NewLogContext(c.conn.RemoteAddr().String())
	ctx = logger.WithContext(ctx, lc)

	sink := &connSink{ctx: ctx, conn: c.conn, backend: c.backend, build: c.build, metrics: c.metrics}
	parser := codec.NewParser(c.secret, sink)
	sink.parser = parser

	buf := bufpool.Get(bufpool.DefaultMediumSize)
	defer bufpool.Put(buf)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		timeout := time.Duration(wire.Timeout()) * time.Millisecond
		if timeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			if _, ferr := parser.Feed(buf[:n]); ferr != nil {
				logger.WarnCtx(ctx, "parser error, closing connection", "error", ferr)
				return
			}
			if sink.writeErr != nil {
				logger.WarnCtx(ctx, "write error, closing connection", "error", sink.writeErr)
				return
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				logger.DebugCtx(ctx, "connection idle timeout")
				return
			}
			parser.Closed()
			return
		}
	}
}
