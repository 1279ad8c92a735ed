package codec

import (
	"testing"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSink is a RecordSink that assembles whatever it receives into
// records, for assertions in tests.
type memSink struct {
	records   [][]byte
	ended     []bool
	done      bool
	failedErr error
	closed    bool
}

func newMemSink() *memSink { return &memSink{} }

func (m *memSink) ensure(idx int) {
	for len(m.records) <= idx {
		m.records = append(m.records, nil)
		m.ended = append(m.ended, false)
	}
}

func (m *memSink) Chunk(idx int, chunk []byte) error {
	m.ensure(idx)
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	m.records[idx] = append(m.records[idx], cp...)
	return nil
}

func (m *memSink) RecordEnd(idx int) error {
	m.ensure(idx)
	m.ended[idx] = true
	return nil
}

func (m *memSink) MessageDone() error {
	m.done = true
	return nil
}

func (m *memSink) MessageFailed(err error) {
	m.failedErr = err
}

func (m *memSink) Closed() {
	m.closed = true
}

func feedAll(t *testing.T, p *Parser, data []byte) {
	t.Helper()
	_, err := p.Feed(data)
	require.NoError(t, err)
}

// ---- Scenario byte sequences (spec.md §8 "Concrete scenarios") ----

func TestScenario1_GetHello(t *testing.T) {
	got := Build(BuildConfig{}, wire.CmdGet, [][]byte{[]byte("hello")})
	want := []byte{0x73, 0x68, 0x63, 0x01, 0x01, 0x00, 0x05, 0x68, 0x65, 0x6c, 0x6c, 0x6f, 0x00, 0x00, 0x00}
	assert.Equal(t, want, got)
}

func TestScenario2_SetKV(t *testing.T) {
	got := Build(BuildConfig{}, wire.CmdSet, [][]byte{[]byte("k"), []byte("v")})
	want := []byte{
		0x73, 0x68, 0x63, 0x01, 0x02,
		0x00, 0x01, 0x6b, 0x00, 0x00,
		0x80,
		0x00, 0x01, 0x76, 0x00, 0x00,
		0x00,
	}
	assert.Equal(t, want, got)
}

func TestScenario3_EmptyRecord(t *testing.T) {
	got := Build(BuildConfig{}, wire.CmdResponse, [][]byte{[]byte("")})
	want := []byte{0x73, 0x68, 0x63, 0x01, 0x99, 0x00, 0x00, 0x00}
	assert.Equal(t, want, got)
}

func TestScenario4_LargeValueChunking(t *testing.T) {
	value := make([]byte, 200000)
	for i := range value {
		value[i] = byte(i)
	}
	got := Build(BuildConfig{}, wire.CmdSet, [][]byte{[]byte("k"), value})

	// Walk the wire form of record 1 (the value) and recover chunk lengths.
	// Skip magic(4)+cmd(1)+record0("k": len 00 01 + 1 byte + EOR 2 bytes)+RSEP(1).
	off := 4 + 1 + (2 + 1 + 2) + 1
	var lens []int
	for {
		l := int(got[off])<<8 | int(got[off+1])
		off += 2
		if l == 0 {
			break
		}
		lens = append(lens, l)
		off += l
	}
	assert.Equal(t, []int{65535, 65535, 65535, 3395}, lens)
	// EOR already consumed by the break; next byte is EOM.
	assert.Equal(t, byte(0x00), got[off])
	assert.Equal(t, off+1, len(got))
}

func TestScenario5_ByteAtATimeF0(t *testing.T) {
	msg := Build(BuildConfig{Secret: []byte("abc"), SigMode: wire.SigWhole}, wire.CmdGet, [][]byte{[]byte("x")})

	sink := newMemSink()
	p := NewParser([]byte("abc"), sink)
	for _, b := range msg {
		_, err := p.Feed([]byte{b})
		require.NoError(t, err)
	}

	require.True(t, sink.done)
	require.Len(t, sink.records, 1)
	assert.Equal(t, []byte("x"), sink.records[0])
	assert.True(t, sink.ended[0])
}

func TestScenario6_PipelinedMessagesNoCrossContamination(t *testing.T) {
	msg1 := Build(BuildConfig{}, wire.CmdGet, [][]byte{[]byte("one")})
	msg2 := Build(BuildConfig{}, wire.CmdGet, [][]byte{[]byte("two")})

	sink := newMemSink()
	p := NewParser(nil, sink)

	feedAll(t, p, msg1)
	require.True(t, sink.done)
	require.Equal(t, [][]byte{[]byte("one")}, sink.records)

	// Reuse the same parser instance for the next pipelined message; it
	// must auto-reset after DONE, per the lifecycle rule, and must not
	// leak any state from the first message into the second.
	sink2 := newMemSink()
	p.sink = sink2
	feedAll(t, p, msg2)
	require.True(t, sink2.done)
	assert.Equal(t, [][]byte{[]byte("two")}, sink2.records)
}

// ---- Round-trip across sig modes, commands, and record shapes ----

func TestRoundTrip(t *testing.T) {
	sigs := []struct {
		name   string
		cfg    BuildConfig
		secret []byte
	}{
		{"none", BuildConfig{}, nil},
		{"whole", BuildConfig{Secret: []byte("s3cr3t"), SigMode: wire.SigWhole}, []byte("s3cr3t")},
		{"chunk", BuildConfig{Secret: []byte("s3cr3t"), SigMode: wire.SigChunk}, []byte("s3cr3t")},
	}

	lengths := []int{0, 1, 64, 65535, 65536}
	cmds := []wire.Command{wire.CmdGet, wire.CmdSet, wire.CmdDelete, wire.CmdStats, wire.CmdReplicaPing}

	for _, sig := range sigs {
		for _, cmd := range cmds {
			for _, n := range lengths {
				t.Run(sig.name, func(t *testing.T) {
					rec := make([]byte, n)
					for i := range rec {
						rec[i] = byte(i)
					}
					records := [][]byte{rec}

					msg := Build(sig.cfg, cmd, records)
					sink := newMemSink()
					p := NewParser(sig.secret, sink)
					feedAll(t, p, msg)

					require.True(t, sink.done, "sig=%s cmd=%s n=%d", sig.name, cmd, n)
					require.Len(t, sink.records, 1)
					assert.Equal(t, rec, sink.records[0])
				})
			}
		}
	}
}

func TestRoundTripMultiRecord(t *testing.T) {
	records := [][]byte{[]byte("key"), []byte("value"), {}, []byte("trailer")}

	for _, sig := range []struct {
		name string
		cfg  BuildConfig
	}{
		{"none", BuildConfig{}},
		{"whole", BuildConfig{Secret: []byte("k"), SigMode: wire.SigWhole}},
		{"chunk", BuildConfig{Secret: []byte("k"), SigMode: wire.SigChunk}},
	} {
		t.Run(sig.name, func(t *testing.T) {
			msg := Build(sig.cfg, wire.CmdSet, records)
			sink := newMemSink()
			p := NewParser(sig.cfg.Secret, sink)
			feedAll(t, p, msg)

			require.True(t, sink.done)
			require.Len(t, sink.records, len(records))
			for i, rec := range records {
				assert.Equal(t, rec, sink.records[i])
				assert.True(t, sink.ended[i])
			}
		})
	}
}

// ---- Byte-split resilience ----

func TestByteSplitResilience(t *testing.T) {
	msg := Build(BuildConfig{Secret: []byte("splitkey"), SigMode: wire.SigChunk}, wire.CmdSet,
		[][]byte{[]byte("key"), []byte("a reasonably sized value for splitting")})

	for split := 0; split <= len(msg); split++ {
		sink := newMemSink()
		p := NewParser([]byte("splitkey"), sink)

		if split > 0 {
			feedAll(t, p, msg[:split])
		}
		if split < len(msg) {
			feedAll(t, p, msg[split:])
		}

		require.True(t, sink.done, "split at %d", split)
		require.Len(t, sink.records, 2)
		assert.Equal(t, []byte("key"), sink.records[0])
		assert.Equal(t, []byte("a reasonably sized value for splitting"), sink.records[1])
	}
}

func TestByteAtATimeResilience(t *testing.T) {
	msg := Build(BuildConfig{}, wire.CmdGetOffset, [][]byte{[]byte("k"), {0, 0, 0, 10}, {0, 0, 0, 20}})
	sink := newMemSink()
	p := NewParser(nil, sink)
	for _, b := range msg {
		feedAll(t, p, []byte{b})
	}
	require.True(t, sink.done)
	require.Len(t, sink.records, 3)
}

// ---- NOOP prefix ----

func TestNoopPrefix(t *testing.T) {
	msg := Build(BuildConfig{}, wire.CmdGet, [][]byte{[]byte("hello")})

	noops := make([]byte, 5000)
	for i := range noops {
		noops[i] = wire.Noop
	}
	padded := append(append([]byte{}, noops...), msg...)

	sink := newMemSink()
	p := NewParser(nil, sink)
	feedAll(t, p, padded)

	require.True(t, sink.done)
	assert.Equal(t, [][]byte{[]byte("hello")}, sink.records)
}

// ---- Authentication crosswise ----

func TestAuthCrosswiseWrongSecret(t *testing.T) {
	msg := Build(BuildConfig{Secret: []byte("s1"), SigMode: wire.SigWhole}, wire.CmdGet, [][]byte{[]byte("v")})
	sink := newMemSink()
	p := NewParser([]byte("s2"), sink)
	feedAll(t, p, msg)

	require.False(t, sink.done)
	require.Error(t, sink.failedErr)
	assert.True(t, wire.IsKind(sink.failedErr, wire.KindAuth))
	assert.Equal(t, StateAuthErr, p.State())
}

func TestAuthCrosswiseUnsignedParsedWithSecret(t *testing.T) {
	msg := Build(BuildConfig{}, wire.CmdGet, [][]byte{[]byte("v")})
	sink := newMemSink()
	p := NewParser([]byte("expects-a-secret"), sink)
	feedAll(t, p, msg)

	require.Error(t, sink.failedErr)
	assert.True(t, wire.IsKind(sink.failedErr, wire.KindAuth))
}

func TestAuthCrosswiseSignedParsedWithoutSecret(t *testing.T) {
	msg := Build(BuildConfig{Secret: []byte("s"), SigMode: wire.SigWhole}, wire.CmdGet, [][]byte{[]byte("v")})
	sink := newMemSink()
	p := NewParser(nil, sink)
	feedAll(t, p, msg)

	require.Error(t, sink.failedErr)
	assert.True(t, wire.IsKind(sink.failedErr, wire.KindAuth))
}

// ---- Tamper detection ----

func TestTamperDetectionWholeMessage(t *testing.T) {
	secret := []byte("tamper-key")
	msg := Build(BuildConfig{Secret: secret, SigMode: wire.SigWhole}, wire.CmdSet, [][]byte{[]byte("key"), []byte("value")})

	// Command byte is right after magic+sig header (offset 5).
	start := 5
	end := len(msg) - wire.DigestLen // exclusive of trailing digest
	for i := start; i < end; i++ {
		tampered := append([]byte{}, msg...)
		tampered[i] ^= 0x01

		sink := newMemSink()
		p := NewParser(secret, sink)
		feedAll(t, p, tampered)

		require.Error(t, sink.failedErr, "bit flip at byte %d should fail", i)
		assert.True(t, wire.IsKind(sink.failedErr, wire.KindAuth), "bit flip at byte %d", i)
	}
}

func TestTamperDetectionChunkModeNeverDeliversTamperedChunk(t *testing.T) {
	secret := []byte("chunk-tamper")
	msg := Build(BuildConfig{Secret: secret, SigMode: wire.SigChunk}, wire.CmdSet, [][]byte{[]byte("key"), []byte("value")})

	start := 5
	end := len(msg)
	for i := start; i < end; i++ {
		tampered := append([]byte{}, msg...)
		tampered[i] ^= 0x01

		sink := newMemSink()
		p := NewParser(secret, sink)
		feedAll(t, p, tampered)

		require.Error(t, sink.failedErr, "bit flip at byte %d should fail", i)
		assert.True(t, wire.IsKind(sink.failedErr, wire.KindAuth), "bit flip at byte %d", i)
		assert.False(t, sink.done)
	}
}

// ---- Oversize rejection ----

func TestOversizeRecordRejected(t *testing.T) {
	// Hand-build a message whose chunk lengths sum past MaxRecord: chunks
	// of MaxChunk bytes each, repeated enough times to cross the ceiling.
	// The buffer holds every chunk's payload, so it is itself slightly
	// larger than MaxRecord.
	var raw []byte
	raw = append(raw, 0x73, 0x68, 0x63, wire.Version)
	raw = append(raw, byte(wire.CmdSet))

	chunkPayload := make([]byte, wire.MaxChunk)
	chunks := wire.MaxRecord/wire.MaxChunk + 2
	for i := 0; i < chunks; i++ {
		raw = append(raw, byte(wire.MaxChunk>>8), byte(wire.MaxChunk))
		raw = append(raw, chunkPayload...)
	}

	sink := newMemSink()
	p := NewParser(nil, sink)
	_, err := p.Feed(raw)
	require.Error(t, err)
	assert.True(t, wire.IsKind(err, wire.KindProtocol))
	assert.Equal(t, StateErr, p.State())
}

// ---- Version gate ----

func TestVersionGateRejectsHigherVersion(t *testing.T) {
	msg := Build(BuildConfig{}, wire.CmdGet, [][]byte{[]byte("x")})
	msg[3] = 0x02 // bump version byte

	sink := newMemSink()
	p := NewParser(nil, sink)
	_, err := p.Feed(msg)
	require.Error(t, err)
	assert.True(t, wire.IsKind(err, wire.KindProtocol))
}

func TestVersionGateRejectsBadMagicPrefix(t *testing.T) {
	msg := Build(BuildConfig{}, wire.CmdGet, [][]byte{[]byte("x")})
	msg[0] = 0x00

	sink := newMemSink()
	p := NewParser(nil, sink)
	_, err := p.Feed(msg)
	require.Error(t, err)
	assert.True(t, wire.IsKind(err, wire.KindProtocol))
}

// ---- Unknown command ----

func TestUnknownCommandRejected(t *testing.T) {
	raw := []byte{0x73, 0x68, 0x63, wire.Version, 0xAB, 0x00, 0x00, 0x00}
	sink := newMemSink()
	p := NewParser(nil, sink)
	_, err := p.Feed(raw)
	require.Error(t, err)
	assert.True(t, wire.IsKind(err, wire.KindProtocol))
}
