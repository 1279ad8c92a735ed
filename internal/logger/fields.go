package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so aggregation/querying stays uniform.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Protocol & Command
	// ========================================================================
	KeyCommand   = "command"   // wire command name: GET, SET, MIGRATION_BEGIN, ...
	KeySigMode   = "sig_mode"  // "none", "whole" (0xF0), "chunk" (0xF1)
	KeyStatus    = "status"    // response status byte (OK, YES, NO, ERR, ...)
	KeyState     = "state"     // parser state name
	KeyRecordIdx = "record"    // record index within a message
	KeyChunkLen  = "chunk_len" // length of a single chunk

	// ========================================================================
	// Connection & Client
	// ========================================================================
	KeyClientAddr   = "address"       // remote address (host:port)
	KeyConnectionID = "connection_id" // server-assigned connection identifier
	KeyFD           = "fd"            // file descriptor, when relevant to a log line

	// ========================================================================
	// Timing / sizing
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyBytes      = "bytes"       // byte count
	KeyTimeoutMs  = "timeout_ms"  // configured timeout in milliseconds

	// ========================================================================
	// Errors
	// ========================================================================
	KeyError = "error" // error value/description
)

// Command returns a slog.Attr for the command field.
func Command(name string) slog.Attr { return slog.String(KeyCommand, name) }

// SigMode returns a slog.Attr for the signature mode field.
func SigMode(mode string) slog.Attr { return slog.String(KeySigMode, mode) }

// ClientAddr returns a slog.Attr for the remote address field.
func ClientAddr(addr string) slog.Attr { return slog.String(KeyClientAddr, addr) }

// ConnectionID returns a slog.Attr for the connection id field.
func ConnectionID(id uint64) slog.Attr { return slog.Uint64(KeyConnectionID, id) }

// TraceID returns a slog.Attr for the trace id field.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for the span id field.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Err returns a slog.Attr for an error value. Returns an empty attr when
// err is nil so it can be used unconditionally in variadic call sites.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
