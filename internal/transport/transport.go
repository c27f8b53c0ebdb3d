// Package transport runs the TCP (optionally TLS) accept loop and the
// per-connection serve loop that feeds raw frames into a dispatch.Dispatcher.
// Grounded on pkg/adapter/base.go's BaseAdapter (accept loop, connection
// tracking, graceful shutdown) and pkg/adapter/nfs/nfs_connection.go's
// per-connection Serve loop (idle deadlines, panic recovery, context
// cancellation checks).
package transport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/virtrpcd/virtrpcd/internal/bufpool"
	"github.com/virtrpcd/virtrpcd/internal/dispatch"
	"github.com/virtrpcd/virtrpcd/internal/logger"
	"github.com/virtrpcd/virtrpcd/internal/metrics"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
)

// readFrame reads one length-prefixed message off conn. The 4-byte
// big-endian length prefix covers itself, matching how dispatch.Handle
// consumes req: the returned slice is the whole frame, length prefix
// included, ready to pass straight to Handle.
func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total < 4 || total > rpc.BufMax {
		return nil, fmt.Errorf("frame length %d out of bounds", total)
	}

	frame := bufpool.Get(int(total))
	copy(frame, lenBuf[:])
	if _, err := io.ReadFull(conn, frame[4:]); err != nil {
		bufpool.Put(frame)
		return nil, err
	}
	return frame, nil
}

// Config holds the listener's bind address, TLS material, and
// connection-lifecycle knobs.
type Config struct {
	Address         string
	ReadOnly        bool
	AuthRequired    bool
	Mechanism       string
	TLS             *tls.Config
	MaxConnections  int
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server owns the listener and the set of active connections, mirroring
// BaseAdapter's responsibilities but specialized to this one protocol
// instead of being shared across NFS/SMB adapters.
type Server struct {
	cfg     Config
	dp      *dispatch.Dispatcher
	metrics metrics.RPCMetrics

	listenerMu sync.RWMutex
	listener   net.Listener

	activeConns sync.WaitGroup
	connCount   atomic.Int32
	connSem     chan struct{}

	activeConnections sync.Map // remote addr -> *trackedConn

	shutdownOnce sync.Once
	shutdown     chan struct{}

	listenerReady chan struct{}
}

// New constructs a Server bound to dp. Call Serve to start accepting.
func New(cfg Config, dp *dispatch.Dispatcher) *Server {
	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}
	return &Server{
		cfg:           cfg,
		dp:            dp,
		connSem:       sem,
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
}

// Serve runs the accept loop until ctx is cancelled or Stop is called, then
// waits (up to cfg.ShutdownTimeout) for in-flight connections to finish.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
	}

	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("rpc listener started", "address", s.cfg.Address, "tls", s.cfg.TLS != nil)

	go func() {
		<-ctx.Done()
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

		conn, err := ln.Accept()
		if err != nil {
			if s.connSem != nil {
				<-s.connSem
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("accept error", "error", err)
				continue
			}
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		s.activeConns.Add(1)
		count := s.connCount.Add(1)
		addr := conn.RemoteAddr().String()
		s.activeConnections.Store(addr, &trackedConn{conn: conn, acceptedAt: time.Now()})
		logger.Debug("connection accepted", "address", addr, "active", count)
		if s.metrics != nil {
			s.metrics.RecordConnectionAccepted()
			s.metrics.SetActiveConnections(count)
		}

		sess := dispatch.NewSession(s.cfg.ReadOnly, s.cfg.AuthRequired, s.cfg.Mechanism)
		sess.RemoteAddr = addr
		if local := conn.LocalAddr(); local != nil {
			sess.LocalAddr = local.String()
		}

		go s.serveConnection(ctx, conn, sess)
	}
}

// serveConnection reads length-prefixed frames off conn and feeds each one
// through the dispatcher, writing back whatever Handle returns. Mirrors
// NFSConnection.Serve's idle-deadline and panic-recovery shape, adapted to
// this protocol's single 4-byte length prefix (no RPC fragment header).
func (s *Server) serveConnection(ctx context.Context, conn net.Conn, sess *dispatch.Session) {
	addr := conn.RemoteAddr().String()
	defer s.closeConnection(addr, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		default:
		}

		if s.cfg.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
				logger.Warn("failed to set read deadline", "address", addr, "error", err)
			}
		}

		frame, err := readFrame(conn)
		if err != nil {
			logConnectionReadError(addr, err)
			return
		}

		reply := s.handleFrame(ctx, sess, frame)
		bufpool.Put(frame)
		if reply == nil {
			continue
		}
		if _, err := conn.Write(reply); err != nil {
			logger.Debug("error writing reply", "address", addr, "error", err)
			return
		}
	}
}

// handleFrame recovers from a panic in Dispatcher.Handle so a single
// malformed or adversarial request can't take the connection's goroutine
// down with it, matching NFSConnection.handleRequestPanic's intent.
func (s *Server) handleFrame(ctx context.Context, sess *dispatch.Session, frame []byte) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in dispatch handler", "error", r, "address", sess.RemoteAddr)
			reply = nil
		}
	}()
	return s.dp.Handle(ctx, sess, frame)
}

func logConnectionReadError(addr string, err error) {
	if err == nil {
		return
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		logger.Debug("connection idle timeout", "address", addr)
		return
	}
	logger.Debug("connection closed", "address", addr, "error", err)
}

func (s *Server) closeConnection(addr string, conn net.Conn) {
	s.activeConnections.Delete(addr)
	_ = conn.Close()
	s.activeConns.Done()
	count := s.connCount.Add(-1)
	if s.connSem != nil {
		<-s.connSem
	}
	logger.Debug("connection closed", "address", addr, "active", count)
	if s.metrics != nil {
		s.metrics.RecordConnectionClosed()
		s.metrics.SetActiveConnections(count)
	}
}

// initiateShutdown stops accepting new connections and unblocks any
// in-flight reads, matching BaseAdapter.initiateShutdown's sequence.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.listenerMu.Unlock()

		deadline := time.Now().Add(100 * time.Millisecond)
		s.activeConnections.Range(func(_, v any) bool {
			if tc, ok := v.(*trackedConn); ok {
				_ = tc.conn.SetReadDeadline(deadline)
			}
			return true
		})
	})
}

// Stop initiates graceful shutdown from outside the Serve goroutine.
func (s *Server) Stop() {
	s.initiateShutdown()
}

func (s *Server) gracefulShutdown() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("rpc listener shut down cleanly")
		return nil
	case <-time.After(timeout):
		remaining := s.connCount.Load()
		logger.Warn("shutdown timeout exceeded, force-closing connections", "remaining", remaining)
		s.activeConnections.Range(func(k, v any) bool {
			if tc, ok := v.(*trackedConn); ok {
				_ = tc.conn.Close()
			}
			if s.metrics != nil {
				s.metrics.RecordConnectionForceClosed()
			}
			return true
		})
		return fmt.Errorf("shutdown timeout: %d connections force-closed", remaining)
	}
}

// Addr blocks until the listener is bound and returns its address. Used by
// tests to discover the ephemeral port when Address is ":0".
func (s *Server) Addr() string {
	<-s.listenerReady
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveConnections returns the current number of open connections.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// SetMetrics attaches a metrics collector. Passing nil (the default)
// disables collection with zero overhead.
func (s *Server) SetMetrics(m metrics.RPCMetrics) {
	s.metrics = m
}

// trackedConn pairs a connection with its accept time, for SessionInfo.
type trackedConn struct {
	conn       net.Conn
	acceptedAt time.Time
}

// SessionInfo describes one open RPC connection, the shape the admin API's
// GET /sessions endpoint returns.
type SessionInfo struct {
	RemoteAddr string
	AcceptedAt time.Time
}

// Sessions returns a snapshot of currently open connections, used by
// internal/adminapi's GET /sessions handler.
func (s *Server) Sessions() []SessionInfo {
	var out []SessionInfo
	s.activeConnections.Range(func(_, v any) bool {
		if tc, ok := v.(*trackedConn); ok {
			out = append(out, SessionInfo{RemoteAddr: tc.conn.RemoteAddr().String(), AcceptedAt: tc.acceptedAt})
		}
		return true
	})
	return out
}
