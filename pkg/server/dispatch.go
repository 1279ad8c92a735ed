// Package server wires pkg/transport, pkg/wire/codec, and internal/store
// into a running shardcache node: it accepts connections, decodes messages,
// dispatches them against a store.Store, and writes back responses built
// with codec.Build. Connection lifecycle (accept loop, semaphore-bounded
// concurrency, graceful shutdown) is adapted from a generic multi-protocol
// BaseAdapter pattern.
package server

import (
	"context"
	"encoding/binary"

	"github.com/shardcache-go/shc/internal/store"
	"github.com/shardcache-go/shc/pkg/wire"
)

// dispatch executes one decoded request against backend and returns the
// response command plus its records, per spec.md §4.5's response-record
// rules read in reverse (server encodes what the request layer decodes).
func dispatch(ctx context.Context, backend store.Store, cmd wire.Command, records [][]byte) (wire.Command, [][]byte) {
	switch cmd {
	case wire.CmdGet, wire.CmdGetAsync:
		if len(records) != 1 {
			return wire.CmdResponse, [][]byte{{byte(wire.StatusErr)}}
		}
		val, err := backend.Get(ctx, records[0])
		if err != nil {
			// A miss is not a protocol error: the request layer treats a
			// GET response body as the value verbatim, so a miss is
			// encoded as a zero-length record rather than a status byte.
			return wire.CmdResponse, [][]byte{{}}
		}
		return wire.CmdResponse, [][]byte{val}

	case wire.CmdGetOffset:
		if len(records) != 3 {
			return wire.CmdResponse, [][]byte{{byte(wire.StatusErr)}}
		}
		offset, length := decodeOffsetLen(records[1], records[2])
		val, err := backend.Get(ctx, records[0])
		if err != nil {
			return wire.CmdResponse, [][]byte{{}}
		}
		return wire.CmdResponse, [][]byte{sliceWithin(val, offset, length)}

	case wire.CmdSet, wire.CmdAdd:
		key, value, expire, ok := decodeSetRecords(records)
		if !ok {
			return wire.CmdResponse, [][]byte{{byte(wire.StatusErr)}}
		}
		var err error
		if cmd == wire.CmdAdd {
			err = backend.Add(ctx, key, value, expire)
		} else {
			err = backend.Set(ctx, key, value, expire)
		}
		switch {
		case err == nil:
			return wire.CmdResponse, [][]byte{{byte(wire.StatusOK)}}
		case err == store.ErrExists:
			return wire.CmdResponse, [][]byte{{byte(wire.StatusExists)}}
		default:
			return wire.CmdResponse, [][]byte{{byte(wire.StatusErr)}}
		}

	case wire.CmdDelete:
		return statusResponse(backend.Delete(ctx, firstRecord(records)))

	case wire.CmdEvict:
		return statusResponse(backend.Evict(ctx, firstRecord(records)))

	case wire.CmdTouch:
		return statusResponse(backend.Touch(ctx, firstRecord(records)))

	case wire.CmdCheck:
		// CHECK is a liveness probe against the backend, not a specific
		// key; spec.md §4.5 only defines its response shape (a single
		// OK/failure byte), so a full Index call on the backend stands in
		// for a deeper health check; an Index error is reported as the
		// failure byte.
		_, err := backend.Index(ctx)
		return statusResponse(err)

	case wire.CmdExists:
		ok, err := backend.Exists(ctx, firstRecord(records))
		if err != nil {
			return wire.CmdResponse, [][]byte{{byte(wire.StatusErr)}}
		}
		if ok {
			return wire.CmdResponse, [][]byte{{byte(wire.StatusYes)}}
		}
		return wire.CmdResponse, [][]byte{{byte(wire.StatusNo)}}

	case wire.CmdStats:
		return wire.CmdResponse, [][]byte{encodeStats(ctx, backend)}

	case wire.CmdGetIndex:
		entries, err := backend.Index(ctx)
		if err != nil {
			return wire.CmdIndexResponse, [][]byte{{0, 0, 0, 0}}
		}
		return wire.CmdIndexResponse, [][]byte{encodeIndex(entries)}

	case wire.CmdMigrationBegin, wire.CmdMigrationAbort, wire.CmdMigrationEnd:
		// Migration control is out of scope for the reference store
		// (spec.md §4 Non-goals: no migration engine), but the response
		// contract still applies so a client driving a real migration
		// against this node gets a well-formed acknowledgment.
		return wire.CmdResponse, [][]byte{{byte(wire.StatusOK)}}

	case wire.CmdReplicaPing, wire.CmdReplicaCommand, wire.CmdReplicaAck:
		return wire.CmdResponse, [][]byte{{byte(wire.StatusOK)}}

	default:
		return wire.CmdResponse, [][]byte{{byte(wire.StatusErr)}}
	}
}

func statusResponse(err error) (wire.Command, [][]byte) {
	if err != nil {
		return wire.CmdResponse, [][]byte{{byte(wire.StatusErr)}}
	}
	return wire.CmdResponse, [][]byte{{byte(wire.StatusOK)}}
}

func firstRecord(records [][]byte) []byte {
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

func decodeOffsetLen(offRec, lenRec []byte) (uint32, uint32) {
	var off, l uint32
	if len(offRec) == 4 {
		off = binary.BigEndian.Uint32(offRec)
	}
	if len(lenRec) == 4 {
		l = binary.BigEndian.Uint32(lenRec)
	}
	return off, l
}

func sliceWithin(val []byte, offset, length uint32) []byte {
	if int(offset) >= len(val) {
		return []byte{}
	}
	end := len(val)
	if length > 0 && int(offset)+int(length) < end {
		end = int(offset) + int(length)
	}
	return val[offset:end]
}

func decodeSetRecords(records [][]byte) (key, value []byte, expire uint32, ok bool) {
	switch len(records) {
	case 2:
		return records[0], records[1], 0, true
	case 3:
		if len(records[2]) != 4 {
			return nil, nil, 0, false
		}
		return records[0], records[1], binary.BigEndian.Uint32(records[2]), true
	default:
		return nil, nil, 0, false
	}
}

func encodeIndex(entries []store.IndexEntry) []byte {
	out := make([]byte, 0, len(entries)*8)
	var tmp [4]byte
	for _, e := range entries {
		binary.BigEndian.PutUint32(tmp[:], uint32(len(e.Key)))
		out = append(out, tmp[:]...)
		out = append(out, e.Key...)
		binary.BigEndian.PutUint32(tmp[:], e.VLen)
		out = append(out, tmp[:]...)
	}
	binary.BigEndian.PutUint32(tmp[:], 0)
	out = append(out, tmp[:]...)
	return out
}

func encodeStats(ctx context.Context, backend store.Store) []byte {
	entries, err := backend.Index(ctx)
	count := 0
	var bytes uint64
	if err == nil {
		count = len(entries)
		for _, e := range entries {
			bytes += uint64(e.VLen)
		}
	}
	stats := "items=" + itoa(count) + ",bytes=" + itoa64(bytes) + "\x00"
	return []byte(stats)
}

func itoa(n int) string {
	return itoa64(uint64(n))
}

func itoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
