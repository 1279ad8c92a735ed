package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardcache-go/shc/internal/store"
	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

func startTestServer(t *testing.T) (*Server, request.Config) {
	t.Helper()
	backend, err := store.OpenBadgerStore(store.BadgerOptions{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	srv := New(Config{
		BindAddress:     "127.0.0.1",
		Port:            0,
		ShutdownTimeout: time.Second,
	}, backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	_ = srv.Addr() // blocks until listening
	return srv, request.Config{}
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServerSetThenGet(t *testing.T) {
	srv, cfg := startTestServer(t)
	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	setResp, err := request.Set(ctx, conn, cfg, []byte("k"), []byte("v"), 0)
	require.NoError(t, err)
	assert.True(t, setResp.OK)

	getResp, err := request.Get(ctx, conn, cfg, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), getResp.Bytes)
}

func TestServerGetMissReturnsEmpty(t *testing.T) {
	srv, cfg := startTestServer(t)
	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := request.Get(ctx, conn, cfg, []byte("missing"))
	require.NoError(t, err)
	assert.Empty(t, resp.Bytes)
}

func TestServerAddRejectsDuplicate(t *testing.T) {
	srv, cfg := startTestServer(t)
	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := request.Add(ctx, conn, cfg, []byte("k"), []byte("v1"), 0)
	require.NoError(t, err)
	assert.True(t, first.OK)

	second, err := request.Add(ctx, conn, cfg, []byte("k"), []byte("v2"), 0)
	require.NoError(t, err)
	assert.False(t, second.OK)
}

func TestServerExistsAndDelete(t *testing.T) {
	srv, cfg := startTestServer(t)
	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, mustOK(request.Set(ctx, conn, cfg, []byte("k"), []byte("v"), 0)))

	exists, err := request.Exists(ctx, conn, cfg, []byte("k"))
	require.NoError(t, err)
	assert.True(t, exists.OK)

	del, err := request.Delete(ctx, conn, cfg, []byte("k"))
	require.NoError(t, err)
	assert.True(t, del.OK)

	exists, err = request.Exists(ctx, conn, cfg, []byte("k"))
	require.NoError(t, err)
	assert.False(t, exists.OK)
}

func TestServerGetIndex(t *testing.T) {
	srv, cfg := startTestServer(t)
	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, mustOK(request.Set(ctx, conn, cfg, []byte("a"), []byte("1"), 0)))
	require.NoError(t, mustOK(request.Set(ctx, conn, cfg, []byte("bb"), []byte("22"), 0)))

	resp, err := request.GetIndex(ctx, conn, cfg)
	require.NoError(t, err)
	assert.Equal(t, wire.CmdIndexResponse, resp.Kind)
	assert.Len(t, resp.Index, 2)
}

func TestServerPipelinedRequestsOnOneConnection(t *testing.T) {
	srv, cfg := startTestServer(t)
	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 20; i++ {
		resp, err := request.Set(ctx, conn, cfg, []byte("key"), []byte("value"), 0)
		require.NoError(t, err)
		assert.True(t, resp.OK)
	}
	getResp, err := request.Get(ctx, conn, cfg, []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), getResp.Bytes)
}

func mustOK(resp *request.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.OK {
		return errors.New("response status was not OK")
	}
	return nil
}
