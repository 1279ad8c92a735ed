package request

import (
	"context"
	"encoding/binary"
	"net"

	"github.com/shardcache-go/shc/pkg/wire"
)

// Get issues a GET(key) request: one record.
func Get(ctx context.Context, conn net.Conn, cfg Config, key []byte) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdGet, [][]byte{key})
}

// GetAsync issues a GET_ASYNC(key) request: one record, same wire shape as
// Get but signaling the server to stream the response without blocking its
// own event loop on storage I/O.
func GetAsync(ctx context.Context, conn net.Conn, cfg Config, key []byte) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdGetAsync, [][]byte{key})
}

// GetOffset issues a GET_OFFSET(key, offset, len) request: three records,
// with offset and len encoded as 32-bit big-endian integers.
func GetOffset(ctx context.Context, conn net.Conn, cfg Config, key []byte, offset, length uint32) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdGetOffset, [][]byte{key, be32(offset), be32(length)})
}

// Set issues a SET(key, value, [expire]) request: two records, or three
// when a non-zero expiry is supplied.
func Set(ctx context.Context, conn net.Conn, cfg Config, key, value []byte, expireSeconds uint32) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdSet, setRecords(key, value, expireSeconds))
}

// Add issues an ADD(key, value, [expire]) request: same record shape as
// Set, but the response distinguishes StatusExists from StatusOK.
func Add(ctx context.Context, conn net.Conn, cfg Config, key, value []byte, expireSeconds uint32) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdAdd, setRecords(key, value, expireSeconds))
}

func setRecords(key, value []byte, expireSeconds uint32) [][]byte {
	if expireSeconds == 0 {
		return [][]byte{key, value}
	}
	return [][]byte{key, value, be32(expireSeconds)}
}

// Delete issues a DELETE(key) request: one record.
func Delete(ctx context.Context, conn net.Conn, cfg Config, key []byte) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdDelete, [][]byte{key})
}

// Evict issues an EVICT(key) request: one record.
func Evict(ctx context.Context, conn net.Conn, cfg Config, key []byte) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdEvict, [][]byte{key})
}

// Exists issues an EXISTS(key) request: one record.
func Exists(ctx context.Context, conn net.Conn, cfg Config, key []byte) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdExists, [][]byte{key})
}

// Touch issues a TOUCH(key) request: one record.
func Touch(ctx context.Context, conn net.Conn, cfg Config, key []byte) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdTouch, [][]byte{key})
}

// Stats issues a STATS request: one record carrying an opaque blob.
func Stats(ctx context.Context, conn net.Conn, cfg Config) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdStats, [][]byte{{}})
}

// Check issues a CHECK request: a liveness/integrity probe.
func Check(ctx context.Context, conn net.Conn, cfg Config) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdCheck, [][]byte{{}})
}

// GetIndex issues a GET_INDEX request, whose response is a sequence of
// (key, value-length) tuples describing the node's local key space.
func GetIndex(ctx context.Context, conn net.Conn, cfg Config) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdGetIndex, [][]byte{{}})
}

// MigrationBegin issues a MIGRATION_BEGIN request carrying the migration
// plan payload (implementation-defined record contents beyond the scope
// of spec.md's byte-exact framing).
func MigrationBegin(ctx context.Context, conn net.Conn, cfg Config, plan []byte) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdMigrationBegin, [][]byte{plan})
}

// MigrationAbort issues a MIGRATION_ABORT request: one record.
func MigrationAbort(ctx context.Context, conn net.Conn, cfg Config) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdMigrationAbort, [][]byte{{}})
}

// MigrationEnd issues a MIGRATION_END request: one record.
func MigrationEnd(ctx context.Context, conn net.Conn, cfg Config) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdMigrationEnd, [][]byte{{}})
}

// ReplicaPing issues a REPLICA_PING keepalive between shard replicas. Part
// of the replica command family dropped from spec.md's distillation but
// present in the original source (see SPEC_FULL.md §1.1).
func ReplicaPing(ctx context.Context, conn net.Conn, cfg Config) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdReplicaPing, [][]byte{{}})
}

// ReplicaCommand forwards an opaque replicated command payload to a peer
// replica.
func ReplicaCommand(ctx context.Context, conn net.Conn, cfg Config, payload []byte) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdReplicaCommand, [][]byte{payload})
}

// ReplicaAck acknowledges a replicated command, carrying the sequence
// number it acknowledges.
func ReplicaAck(ctx context.Context, conn net.Conn, cfg Config, seq uint32) (*Response, error) {
	return Do(ctx, conn, cfg, wire.CmdReplicaAck, [][]byte{be32(seq)})
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
