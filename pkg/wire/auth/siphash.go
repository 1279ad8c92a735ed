// Package auth implements the shardcache authenticator: SipHash-2-4 keyed
// over a 128-bit key derived from a caller secret, exposed as an
// incremental digest so the codec can sign whole messages (mode F0) or a
// running stream of chunk boundaries (mode F1) without ever resetting the
// hash mid-message.
//
// No example repo or ecosystem library in the retrieval pack ships a
// SipHash-2-4 implementation, so this is hand-rolled against the published
// algorithm (Aumasson & Bernstein, "SipHash: a fast short-input PRF").
package auth

import "encoding/binary"

const (
	initV0 = 0x736f6d6570736575
	initV1 = 0x646f72616e646f6d
	initV2 = 0x6c7967656e657261
	initV3 = 0x7465646279746573

	cRounds = 2
	dRounds = 4
)

// State is an incremental SipHash-2-4 instance keyed by a 128-bit key. It
// mirrors the Write/Sum64 shape of hash.Hash64, with one deliberate
// deviation: Sum64 never mutates the running state, so callers can keep
// calling Write after Sum64 and get a digest over the entire accumulated
// stream each time. This is what the wire protocol's 0xF1 mode requires:
// one digest per chunk boundary, all computed over the same never-reset
// running hash.
type State struct {
	k0, k1 uint64

	v0, v1, v2, v3 uint64

	pending [8]byte
	pendLen int
	total   uint64
}

// New derives a 128-bit key from secret (repeated/truncated to 16 bytes, the
// two 64-bit halves taken as the first two 8-byte little-endian groups of
// the key material) and returns a fresh authenticator state keyed with it.
func New(secret []byte) *State {
	key := deriveKey(secret)
	k0 := binary.LittleEndian.Uint64(key[0:8])
	k1 := binary.LittleEndian.Uint64(key[8:16])

	s := &State{k0: k0, k1: k1}
	s.reset()
	return s
}

// deriveKey repeats/truncates secret to exactly 16 bytes. This rule is a
// wire quirk, not a cryptographic design choice: both ends must derive the
// same key material from the same secret bytes, and there is no version
// byte to evolve this independently of the protocol version.
func deriveKey(secret []byte) [16]byte {
	var key [16]byte
	if len(secret) == 0 {
		return key
	}
	for i := range key {
		key[i] = secret[i%len(secret)]
	}
	return key
}

func (s *State) reset() {
	s.v0 = initV0 ^ s.k0
	s.v1 = initV1 ^ s.k1
	s.v2 = initV2 ^ s.k0
	s.v3 = initV3 ^ s.k1
	s.pendLen = 0
	s.total = 0
}

// Reset clears all written data and returns the state to freshly-keyed,
// for reuse across messages. The codec never calls this mid-message.
func (s *State) Reset() { s.reset() }

func sipRound(v0, v1, v2, v3 *uint64) {
	*v0 += *v1
	*v1 = rotl(*v1, 13)
	*v1 ^= *v0
	*v0 = rotl(*v0, 32)
	*v2 += *v3
	*v3 = rotl(*v3, 16)
	*v3 ^= *v2
	*v0 += *v3
	*v3 = rotl(*v3, 21)
	*v3 ^= *v0
	*v2 += *v1
	*v1 = rotl(*v1, 17)
	*v1 ^= *v2
	*v2 = rotl(*v2, 32)
}

func rotl(x uint64, b uint) uint64 {
	return (x << b) | (x >> (64 - b))
}

// Write feeds more bytes into the running hash. It always returns
// (len(p), nil); SipHash has no failure mode over raw bytes.
func (s *State) Write(p []byte) (int, error) {
	n := len(p)
	s.total += uint64(n)

	if s.pendLen > 0 {
		take := 8 - s.pendLen
		if take > len(p) {
			take = len(p)
		}
		copy(s.pending[s.pendLen:], p[:take])
		s.pendLen += take
		p = p[take:]
		if s.pendLen < 8 {
			return n, nil
		}
		m := binary.LittleEndian.Uint64(s.pending[:])
		s.absorbBlock(m)
		s.pendLen = 0
	}

	for len(p) >= 8 {
		m := binary.LittleEndian.Uint64(p)
		s.absorbBlock(m)
		p = p[8:]
	}

	if len(p) > 0 {
		copy(s.pending[:], p)
		s.pendLen = len(p)
	}

	return n, nil
}

func (s *State) absorbBlock(m uint64) {
	s.v3 ^= m
	for i := 0; i < cRounds; i++ {
		sipRound(&s.v0, &s.v1, &s.v2, &s.v3)
	}
	s.v0 ^= m
}

// Sum64 returns the SipHash-2-4 digest of every byte written so far,
// without disturbing the running state: a subsequent Write continues the
// same stream, and a subsequent Sum64 covers the whole stream again.
func (s *State) Sum64() uint64 {
	v0, v1, v2, v3 := s.v0, s.v1, s.v2, s.v3

	var last [8]byte
	copy(last[:], s.pending[:s.pendLen])
	last[7] = byte(s.total)
	m := binary.LittleEndian.Uint64(last[:])

	v3 ^= m
	for i := 0; i < cRounds; i++ {
		sipRound(&v0, &v1, &v2, &v3)
	}
	v0 ^= m

	v2 ^= 0xff
	for i := 0; i < dRounds; i++ {
		sipRound(&v0, &v1, &v2, &v3)
	}

	return v0 ^ v1 ^ v2 ^ v3
}

// Digest returns Sum64 as the 8 raw bytes the wire format transmits. Per
// the protocol's data model, these bytes are produced and compared in
// whatever host byte order the digest was computed in and must never be
// re-endianed or compared as an integer — memcmp semantics only.
func (s *State) Digest() [8]byte {
	var out [8]byte
	binary.NativeEndian.PutUint64(out[:], s.Sum64())
	return out
}
