package transport

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	valid := []string{"localhost", "localhost:4444", "*", "*:4444", "10.0.0.1", "10.0.0.1:1", "shard-01.internal"}
	for _, a := range valid {
		assert.True(t, ValidateAddress(a), "expected %q to be valid", a)
	}

	invalid := []string{"", "host:port", "host:", "ho st", "bad/host"}
	for _, a := range invalid {
		assert.False(t, ValidateAddress(a), "expected %q to be invalid", a)
	}
}

func TestParseHostPort(t *testing.T) {
	host, port, err := ParseHostPort("localhost:9000", wire.DefaultPort)
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 9000, port)

	host, port, err = ParseHostPort("localhost", wire.DefaultPort)
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, wire.DefaultPort, port)

	host, _, err = ParseHostPort("*", wire.DefaultPort)
	require.NoError(t, err)
	assert.Equal(t, "", host)

	_, _, err = ParseHostPort("bad host", wire.DefaultPort)
	require.Error(t, err)
	assert.True(t, wire.IsKind(err, wire.KindTransport))
}

func TestListenAndDialRoundTrip(t *testing.T) {
	l, err := Listen("127.0.0.1", 0)
	require.NoError(t, err)
	defer l.Close()

	_, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)

	serverAccepted := make(chan struct{})
	go func() {
		conn, aerr := l.Accept()
		if aerr != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		_, _ = io.ReadFull(conn, buf)
		close(serverAccepted)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, "127.0.0.1:"+portStr, wire.DefaultPort, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case <-serverAccepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the write")
	}
}

func TestDialInvalidAddress(t *testing.T) {
	_, err := Dial(context.Background(), "not a host", 0, time.Second)
	require.Error(t, err)
	assert.True(t, wire.IsKind(err, wire.KindTransport))
}

func TestListenUnix(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "shc.sock")

	l, err := ListenUnix(sockPath)
	require.NoError(t, err)
	defer l.Close()

	done := make(chan struct{})
	go func() {
		conn, aerr := l.Accept()
		if aerr == nil {
			conn.Close()
		}
		close(done)
	}()

	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unix accept never happened")
	}
}

func TestOpenFIFO(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shc.fifo")

	f, err := OpenFIFO(path)
	require.NoError(t, err)
	defer f.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe)

	// Reopening an existing FIFO must succeed without recreating it.
	f2, err := OpenFIFO(path)
	require.NoError(t, err)
	f2.Close()
}

func TestOpenFIFORejectsNonFIFOPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-fifo")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := OpenFIFO(path)
	require.Error(t, err)
	assert.True(t, wire.IsKind(err, wire.KindTransport))
}
