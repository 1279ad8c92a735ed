package auth

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(secret, data []byte) uint64 {
	s := New(secret)
	s.Write(data)
	return s.Sum64()
}

func TestDeterministic(t *testing.T) {
	secret := []byte("sharedsecret")
	data := []byte("the quick brown fox")

	assert.Equal(t, sum(secret, data), sum(secret, data))
}

func TestDifferentSecretsDiffer(t *testing.T) {
	data := []byte("same payload")
	a := sum([]byte("secret-one"), data)
	b := sum([]byte("secret-two"), data)
	assert.NotEqual(t, a, b)
}

func TestDifferentDataDiffers(t *testing.T) {
	secret := []byte("s3cr3t")
	a := sum(secret, []byte("payload-a"))
	b := sum(secret, []byte("payload-b"))
	assert.NotEqual(t, a, b)
}

func TestWriteSplitMatchesSingleWrite(t *testing.T) {
	secret := []byte("splitter")
	data := []byte("012345678901234567890123456789012345678901234567890123")

	whole := New(secret)
	whole.Write(data)
	want := whole.Sum64()

	for split := 0; split <= len(data); split++ {
		s := New(secret)
		s.Write(data[:split])
		s.Write(data[split:])
		require.Equal(t, want, s.Sum64(), "split at %d", split)
	}
}

func TestByteAtATimeMatchesBulkWrite(t *testing.T) {
	secret := []byte("byte-at-a-time")
	data := []byte("the lazy dog jumps over nothing in particular today")

	bulk := New(secret)
	bulk.Write(data)
	want := bulk.Sum64()

	incr := New(secret)
	for _, b := range data {
		incr.Write([]byte{b})
	}
	assert.Equal(t, want, incr.Sum64())
}

func TestSum64NonDestructive(t *testing.T) {
	secret := []byte("running-hash")
	s := New(secret)
	s.Write([]byte("first"))
	first := s.Sum64()

	// Sum64 must not disturb the running state: writing more and summing
	// again must equal a single hash over the whole concatenation.
	s.Write([]byte("second"))
	got := s.Sum64()

	ref := New(secret)
	ref.Write([]byte("firstsecond"))
	want := ref.Sum64()

	assert.Equal(t, want, got)
	assert.NotEqual(t, first, got)
}

func TestResetReturnsToFreshState(t *testing.T) {
	secret := []byte("resettable")
	s := New(secret)
	s.Write([]byte("some data"))
	s.Reset()
	s.Write([]byte("other data"))

	ref := New(secret)
	ref.Write([]byte("other data"))

	assert.Equal(t, ref.Sum64(), s.Sum64())
}

func TestEmptySecretIsStable(t *testing.T) {
	a := sum(nil, []byte("x"))
	b := sum([]byte{}, []byte("x"))
	assert.Equal(t, a, b)
}

func TestSecretLongerThan16BytesTruncates(t *testing.T) {
	short := []byte("0123456789abcdef")
	long := []byte("0123456789abcdef0123456789abcdef")

	assert.Equal(t, sum(short, []byte("payload")), sum(long, []byte("payload")))
}

func TestDigestBytesMatchSum64Encoding(t *testing.T) {
	s := New([]byte("digest-check"))
	s.Write([]byte("abc"))
	sum := s.Sum64()
	digest := s.Digest()

	reconstructed := binary.NativeEndian.Uint64(digest[:])
	assert.Equal(t, sum, reconstructed)
}
