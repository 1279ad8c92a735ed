// Package codec implements the shardcache message builder and streaming
// parser: the byte-exact serialization of (sig_mode, command, records) and
// the resumable state machine that reverses it from an arbitrary byte
// stream.
package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/auth"
)

// BuildConfig selects authentication for a single call to Build. A nil or
// empty Secret means the message is unauthenticated and SigMode is
// ignored. A non-empty Secret with SigMode left at wire.SigNone defaults
// to whole-message (F0) authentication.
type BuildConfig struct {
	Secret  []byte
	SigMode wire.SigMode
}

var eor = [2]byte{0x00, 0x00}

// Build serializes cmd and records into exactly one wire message, per the
// protocol's data model. It is pure: it never touches a socket, and it
// never mutates records.
func Build(cfg BuildConfig, cmd wire.Command, records [][]byte) []byte {
	authed := len(cfg.Secret) > 0
	sigMode := wire.SigNone
	if authed {
		sigMode = cfg.SigMode
		if sigMode == wire.SigNone {
			sigMode = wire.SigWhole
		}
	}

	var buf bytes.Buffer
	writeMagic(&buf)

	if authed {
		if sigMode == wire.SigChunk {
			buf.WriteByte(wire.SigHdrChunk)
		} else {
			buf.WriteByte(wire.SigHdrWhole)
		}
	}

	cmdOffset := buf.Len()
	buf.WriteByte(byte(cmd))

	var running *auth.State
	if sigMode == wire.SigChunk {
		running = auth.New(cfg.Secret)
		appendDigest(&buf, running, []byte{byte(cmd)})
	}

	for i, record := range records {
		if i > 0 {
			buf.WriteByte(wire.RSEP)
			if sigMode == wire.SigChunk {
				appendDigest(&buf, running, []byte{eor[0], eor[1], wire.RSEP})
			}
		}
		writeRecord(&buf, running, sigMode, record)
	}

	buf.WriteByte(wire.EOM)

	if authed {
		switch sigMode {
		case wire.SigChunk:
			appendDigest(&buf, running, []byte{eor[0], eor[1], wire.EOM})
		case wire.SigWhole:
			whole := auth.New(cfg.Secret)
			whole.Write(buf.Bytes()[cmdOffset:])
			d := whole.Digest()
			buf.Write(d[:])
		}
	}

	return buf.Bytes()
}

func writeMagic(buf *bytes.Buffer) {
	var m [4]byte
	binary.BigEndian.PutUint32(m[:], wire.MagicPrefix|uint32(wire.Version))
	buf.Write(m[:])
}

// writeRecord serializes one record (possibly empty, possibly chunked
// across multiple length-prefixed pieces) and its trailing EOR.
func writeRecord(buf *bytes.Buffer, running *auth.State, sigMode wire.SigMode, record []byte) {
	if len(record) == 0 {
		buf.Write(eor[:])
		return
	}

	remaining := record
	for len(remaining) > 0 {
		n := len(remaining)
		if n > wire.MaxChunk {
			n = wire.MaxChunk
		}
		chunk := remaining[:n]

		var lenBytes [2]byte
		binary.BigEndian.PutUint16(lenBytes[:], uint16(n))
		buf.Write(lenBytes[:])
		buf.Write(chunk)

		if sigMode == wire.SigChunk {
			running.Write(lenBytes[:])
			running.Write(chunk)
			d := running.Digest()
			buf.Write(d[:])
		}

		remaining = remaining[n:]
	}

	buf.Write(eor[:])
}

// appendDigest feeds extra into the running hash and appends its current
// digest to buf. The hash is never reset between calls: per the protocol's
// invariants, in F1 mode the running hash spans the entire message.
func appendDigest(buf *bytes.Buffer, running *auth.State, extra []byte) {
	running.Write(extra)
	d := running.Digest()
	buf.Write(d[:])
}
