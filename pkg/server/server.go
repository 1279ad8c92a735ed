package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shardcache-go/shc/internal/logger"
	"github.com/shardcache-go/shc/internal/store"
	"github.com/shardcache-go/shc/pkg/transport"
	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/codec"
)

// MetricsRecorder lets the server record connection lifecycle and request
// metrics without depending on pkg/metrics directly. pkg/metrics provides
// the production implementation; nil disables recording.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
	RecordCommand(command string, duration time.Duration)
	RecordParseFailure()
	RecordAuthFailure()
}

// Config holds everything a Server needs beyond the backend store.
type Config struct {
	BindAddress string
	Port        int
	UnixSocket  string

	MaxConnections  int
	ShutdownTimeout time.Duration

	Secret  []byte
	SigMode wire.SigMode
}

func (c Config) buildConfig() codec.BuildConfig {
	return codec.BuildConfig{Secret: c.Secret, SigMode: c.SigMode}
}

// Server is a shardcache node's TCP front end: it binds a listener, accepts
// connections, and serves each on its own goroutine via Connection.Serve.
// The accept loop, semaphore-bounded concurrency, and graceful shutdown
// sequencing follow a generic multi-protocol BaseAdapter pattern, adapted
// here to this single wire protocol.
type Server struct {
	Config  Config
	Backend store.Store
	Metrics MetricsRecorder

	listener     net.Listener
	listenerMu   sync.RWMutex
	activeConns  sync.WaitGroup
	shutdownOnce sync.Once
	shutdown     chan struct{}
	connCount    atomic.Int32
	connSem      chan struct{}
	activeByAddr sync.Map

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	ListenerReady chan struct{}
}

// New creates a Server bound to backend with cfg. Call Serve to start
// accepting connections.
func New(cfg Config, backend store.Store, metrics MetricsRecorder) *Server {
	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}
	shutdownCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		Config:         cfg,
		Backend:        backend,
		Metrics:        metrics,
		shutdown:       make(chan struct{}),
		connSem:        sem,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancel,
		ListenerReady:  make(chan struct{}),
	}
}

// Serve runs the accept loop until ctx is cancelled, then performs a
// graceful shutdown bounded by Config.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	var l net.Listener
	var err error
	if s.Config.UnixSocket != "" {
		l, err = transport.ListenUnix(s.Config.UnixSocket)
	} else {
		l, err = transport.Listen(s.Config.BindAddress, s.Config.Port)
	}
	if err != nil {
		return fmt.Errorf("shardcache: failed to listen: %w", err)
	}

	s.listenerMu.Lock()
	s.listener = l
	s.listenerMu.Unlock()
	close(s.ListenerReady)

	logger.Info("shardcache server listening", "address", l.Addr().String())

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received", "error", ctx.Err())
		s.initiateShutdown()
	}()

	for {
		if s.connSem != nil {
			select {
			case s.connSem <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		conn, err := l.Accept()
		if err != nil {
			if s.connSem != nil {
				<-s.connSem
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("error accepting connection", "error", err)
				continue
			}
		}

		if err := transport.SetLinger(conn); err != nil {
			logger.Debug("failed to set linger", "error", err)
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)
		addr := conn.RemoteAddr().String()
		s.activeByAddr.Store(addr, conn)

		if s.Metrics != nil {
			s.Metrics.RecordConnectionAccepted()
			s.Metrics.SetActiveConnections(s.connCount.Load())
		}
		logger.Debug("connection accepted", "address", addr, "active", s.connCount.Load())

		var cm connMetrics
		if s.Metrics != nil {
			cm = s.Metrics
		}
		c := newConnection(conn, s.Backend, s.Config.buildConfig(), cm)
		go func(addr string, conn net.Conn) {
			defer func() {
				s.activeByAddr.Delete(addr)
				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSem != nil {
					<-s.connSem
				}
				if s.Metrics != nil {
					s.Metrics.RecordConnectionClosed()
					s.Metrics.SetActiveConnections(s.connCount.Load())
				}
				logger.Debug("connection closed", "address", addr, "active", s.connCount.Load())
			}()
			c.Serve(s.shutdownCtx)
		}(addr, conn)
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("server shutdown initiated")
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("error closing listener", "error", err)
			}
		}
		s.listenerMu.Unlock()

		deadline := time.Now().Add(100 * time.Millisecond)
		s.activeByAddr.Range(func(_, v any) bool {
			if conn, ok := v.(net.Conn); ok {
				_ = conn.SetReadDeadline(deadline)
			}
			return true
		})

		s.cancelRequests()
	})
}

func (s *Server) gracefulShutdown() error {
	active := s.connCount.Load()
	logger.Info("graceful shutdown: waiting for active connections", "active", active, "timeout", s.Config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
		return nil
	case <-time.After(s.Config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("shutdown timeout exceeded, forcing closure", "active", remaining)
		s.forceCloseConnections()
		return fmt.Errorf("shardcache: shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Server) forceCloseConnections() {
	closed := 0
	s.activeByAddr.Range(func(k, v any) bool {
		addr := k.(string)
		conn := v.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("error force-closing connection", "address", addr, "error", err)
		} else {
			closed++
			if s.Metrics != nil {
				s.Metrics.RecordConnectionForceClosed()
			}
		}
		return true
	})
	logger.Info("force-closed connections", "count", closed)
}

// Stop initiates graceful shutdown and waits for it to complete, bounded
// by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConnections reports the current number of active connections.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr blocks until the listener is ready and returns its address.
func (s *Server) Addr() string {
	<-s.ListenerReady
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
