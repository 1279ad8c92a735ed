// Package request implements the shardcache request layer described in
// spec.md §4.5: one function per command that builds a message, writes it
// to a connection, and optionally reads and interprets a single-record
// response.
package request

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/codec"
)

// Config selects authentication for a call to Do/DoAsync. A nil or empty
// Secret means unauthenticated.
type Config struct {
	Secret  []byte
	SigMode wire.SigMode
}

func (c Config) buildConfig() codec.BuildConfig {
	return codec.BuildConfig{Secret: c.Secret, SigMode: c.SigMode}
}

// Response is the caller-facing decoding of a completed response message.
// Which one of OK / Bytes / Index is meaningful depends on the request
// command.
type Response struct {
	Kind  wire.Command
	OK    bool
	Bytes []byte
	Index []IndexEntry
}

// IndexEntry is one (key, value-length) tuple from a GET_INDEX response.
type IndexEntry struct {
	Key  []byte
	VLen uint32
}

var errShortIndexEntry = errors.New("request: GET_INDEX record truncated mid-entry")

// responseSink collects a single-record response message for Do to
// interpret once MessageDone fires.
type responseSink struct {
	body    []byte
	done    bool
	failErr error
}

func (s *responseSink) Chunk(_ int, chunk []byte) error {
	s.body = append(s.body, chunk...)
	return nil
}
func (s *responseSink) RecordEnd(_ int) error { return nil }
func (s *responseSink) MessageDone() error    { s.done = true; return nil }
func (s *responseSink) MessageFailed(err error) { s.failErr = err }
func (s *responseSink) Closed()               {}

// Do writes cmd's message built from records to conn, then reads and
// interprets the single response message that follows. fd ownership is the caller's
// responsibility; Do never closes conn.
func Do(ctx context.Context, conn net.Conn, cfg Config, cmd wire.Command, records [][]byte) (*Response, error) {
	msg := codec.Build(cfg.buildConfig(), cmd, records)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(msg); err != nil {
		return nil, wire.TransportError("writing request", err)
	}

	sink := &responseSink{}
	p := codec.NewParser(cfg.Secret, sink)
	r := bufio.NewReader(conn)

	buf := make([]byte, 4096)
	for !sink.done && sink.failErr == nil {
		n, err := r.Read(buf)
		if n > 0 {
			if _, ferr := p.Feed(buf[:n]); ferr != nil {
				return nil, ferr
			}
		}
		if err != nil {
			if err == io.EOF && sink.done {
				break
			}
			return nil, wire.TransportError("reading response", err)
		}
	}
	if sink.failErr != nil {
		return nil, sink.failErr
	}

	return interpret(cmd, p.Command(), sink.body)
}

// interpret maps a raw response record onto the command-specific
// interpretation rules of spec.md §4.5.
func interpret(reqCmd, respCmd wire.Command, body []byte) (*Response, error) {
	switch reqCmd {
	case wire.CmdDelete, wire.CmdEvict, wire.CmdTouch, wire.CmdCheck,
		wire.CmdMigrationBegin, wire.CmdMigrationAbort, wire.CmdMigrationEnd:
		return boolResponse(body, wire.StatusOK)

	case wire.CmdSet, wire.CmdAdd:
		if len(body) != 1 {
			return nil, wire.ProtocolError("malformed response: expected single status byte", nil)
		}
		switch wire.Status(body[0]) {
		case wire.StatusOK:
			return &Response{Kind: respCmd, OK: true}, nil
		case wire.StatusExists:
			return &Response{Kind: respCmd, OK: false}, nil
		default:
			return nil, wire.ProtocolError("request failed", nil)
		}

	case wire.CmdExists:
		if len(body) != 1 {
			return nil, wire.ProtocolError("malformed response: expected single status byte", nil)
		}
		switch wire.Status(body[0]) {
		case wire.StatusYes:
			return &Response{Kind: respCmd, OK: true}, nil
		case wire.StatusNo:
			return &Response{Kind: respCmd, OK: false}, nil
		default:
			return nil, wire.ProtocolError("request failed", nil)
		}

	case wire.CmdGet, wire.CmdGetAsync, wire.CmdGetOffset:
		return &Response{Kind: respCmd, Bytes: body}, nil

	case wire.CmdStats:
		return &Response{Kind: respCmd, Bytes: body}, nil

	case wire.CmdGetIndex:
		entries, err := parseIndex(body)
		// Per spec.md §4.5: truncation is an error, but items parsed so
		// far are retained on the returned Response.
		resp := &Response{Kind: respCmd, Index: entries}
		if err != nil {
			return resp, err
		}
		return resp, nil

	case wire.CmdReplicaPing, wire.CmdReplicaCommand, wire.CmdReplicaAck:
		return boolResponse(body, wire.StatusOK)

	default:
		return &Response{Kind: respCmd, Bytes: body}, nil
	}
}

func boolResponse(body []byte, okStatus wire.Status) (*Response, error) {
	if len(body) != 1 {
		return nil, wire.ProtocolError("malformed response: expected single status byte", nil)
	}
	if wire.Status(body[0]) != okStatus {
		return nil, wire.ProtocolError("request failed", nil)
	}
	return &Response{OK: true}, nil
}

// parseIndex decodes a GET_INDEX response body: a sequence of
// (klen_be32, key_bytes, vlen_be32) tuples ending when klen == 0.
func parseIndex(body []byte) ([]IndexEntry, error) {
	var entries []IndexEntry
	off := 0
	for {
		if off+4 > len(body) {
			if off == 0 {
				return entries, nil
			}
			return entries, errShortIndexEntry
		}
		klen := binary.BigEndian.Uint32(body[off : off+4])
		off += 4
		if klen == 0 {
			return entries, nil
		}
		if off+int(klen)+4 > len(body) {
			return entries, errShortIndexEntry
		}
		key := append([]byte{}, body[off:off+int(klen)]...)
		off += int(klen)
		vlen := binary.BigEndian.Uint32(body[off : off+4])
		off += 4
		entries = append(entries, IndexEntry{Key: key, VLen: vlen})
	}
}
