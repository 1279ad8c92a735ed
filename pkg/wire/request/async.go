package request

import (
	"context"
	"net"
	"time"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/codec"
)

// WorkItem is the handle returned by DoAsync: it bundles the owned parser
// with the reactor callback vtable described in spec.md §4.5/§6. The
// caller registers OnInput/OnTimeout/OnEOF with a reactor on the same
// descriptor; the work item never spawns a goroutine or touches the
// descriptor itself.
type WorkItem struct {
	reqCmd wire.Command
	parser *codec.Parser
	sink   *asyncSink

	// Result and Err are populated once the response completes or fails
	// (when onDone, if given, is called), holding either the decoded
	// response or the terminal error.
	Result *Response
	Err    error
}

// asyncSink adapts codec.RecordSink to WorkItem's completion fields and an
// optional user-supplied completion callback.
type asyncSink struct {
	item     *WorkItem
	onDone   func(*Response, error)
	body     []byte
	finished bool
}

func (s *asyncSink) Chunk(_ int, chunk []byte) error {
	s.body = append(s.body, chunk...)
	return nil
}

func (s *asyncSink) RecordEnd(_ int) error { return nil }

func (s *asyncSink) MessageDone() error {
	s.finished = true
	resp, err := interpret(s.item.reqCmd, s.item.parser.Command(), s.body)
	s.item.Result = resp
	s.item.Err = err
	if s.onDone != nil {
		s.onDone(resp, err)
	}
	return nil
}

func (s *asyncSink) MessageFailed(err error) {
	s.finished = true
	s.item.Err = err
	if s.onDone != nil {
		s.onDone(nil, err)
	}
}

func (s *asyncSink) Closed() {}

// DoAsync builds and synchronously writes cmd's request message, then
// returns a WorkItem whose OnInput/OnTimeout/OnEOF methods the caller
// wires into its own reactor on the same descriptor. Per spec.md §5, the
// work item is not safe for concurrent use from more than one goroutine;
// it is meant to be pinned to a single reactor thread.
func DoAsync(ctx context.Context, conn net.Conn, cfg Config, cmd wire.Command, records [][]byte, onDone func(*Response, error)) (*WorkItem, error) {
	msg := codec.Build(cfg.buildConfig(), cmd, records)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(msg); err != nil {
		return nil, wire.TransportError("writing request", err)
	}

	item := &WorkItem{reqCmd: cmd}
	sink := &asyncSink{item: item, onDone: onDone}
	item.sink = sink
	item.parser = codec.NewParser(cfg.Secret, sink)
	return item, nil
}

// OnInput feeds bytes read from the descriptor into the owned parser. It
// returns the number of bytes consumed, matching the reactor's on_input
// contract (spec.md §6): len(data), or 0 once the parser is in a terminal
// error state.
func (w *WorkItem) OnInput(data []byte) (int, error) {
	return w.parser.Feed(data)
}

// OnTimeout is invoked by the reactor when the parser's last-activity
// timestamp exceeds the process-wide TCP timeout. It reports a Timeout
// failure to the work item (setting Err and calling onDone); the parser
// is left as it is, and the reactor is still responsible for closing the
// descriptor.
func (w *WorkItem) OnTimeout() {
	if w.sink.finished {
		return
	}
	err := wire.TimeoutError("no bytes received within the configured timeout", nil)
	w.sink.MessageFailed(err)
}

// OnEOF delivers the closed notification and releases the parser. Per
// spec.md §5, the work item tears itself down once the reactor reports
// EOF; the caller should not reuse this WorkItem afterward.
func (w *WorkItem) OnEOF() {
	w.parser.Closed()
	if !w.sink.finished {
		w.sink.MessageFailed(wire.TransportError("connection closed before response completed", nil))
	}
}

// Idle reports how long it has been since the parser last saw input,
// for callers implementing their own timeout policy atop OnTimeout.
func (w *WorkItem) Idle() time.Duration {
	return time.Since(w.parser.LastActivity())
}
