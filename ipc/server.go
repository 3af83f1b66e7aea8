package ipc

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/types"
)

// ErrServerClosed is returned by Serve-path operations after Stop.
var ErrServerClosed = errors.New("helper server closed")

// Authorizer decides whether a peer connection may be served.
// Invoked once per inbound connection before any message is processed.
// A non-nil error denies the connection; the implementation is
// responsible for its own outcome logging.
type Authorizer interface {
	Authorize(conn net.Conn) error
}

// Handler processes one accepted helper request and returns the
// response to send. Handlers run on the connection's serve goroutine.
type Handler func(req *types.HelperRequest) *types.HelperResponse

// Server is the privileged side of the helper transport. It binds the
// well-known socket, authenticates every inbound connection through
// the Authorizer, and dispatches accepted requests to the Handler.
type Server struct {
	socketPath string
	auth       Authorizer
	handler    Handler
	logger     *log.Logger

	mu       sync.Mutex
	listener *net.UnixListener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a server for the helper socket at socketPath.
// Both auth and handler are required.
func NewServer(socketPath string, auth Authorizer, handler Handler, logger *log.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		auth:       auth,
		handler:    handler,
		logger:     logger,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start binds the socket and begins accepting connections.
// The socket is group/world writable only through directory
// permissions; the Authorizer is the actual gate.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return errors.New("server already started")
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return err
	}
	// A stale socket from a crashed helper blocks the bind.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.socketPath, Net: "unix"})
	if err != nil {
		return err
	}
	l.SetUnlinkOnClose(true)
	if err := os.Chmod(s.socketPath, 0o666); err != nil {
		_ = l.Close()
		return err
	}

	s.listener = l
	s.wg.Add(1)
	go s.acceptLoop(l)
	return nil
}

// Stop closes the listener and all live connections, then waits for
// serve goroutines to drain.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.closed = true
	l := s.listener
	s.listener = nil
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop(l *net.UnixListener) {
	defer s.wg.Done()

	for {
		conn, err := l.AcceptUnix()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Error("accept failed", map[string]any{
					"error": err.Error(),
				})
			}
			return
		}

		if err := s.auth.Authorize(conn); err != nil {
			// The guard has already logged the denial with the failed
			// check name.
			_ = conn.Close()
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(conn)
	}
}

// serveConn runs the request/reply loop for one authenticated peer.
func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	decoder := NewFrameDecoder(conn)
	for {
		payload, err := decoder.ReadFrame()
		if err != nil {
			if err != io.EOF && IsFatalFrameError(err) {
				s.logger.Warn("closing connection on fatal frame error", map[string]any{
					"error": err.Error(),
				})
			}
			return
		}

		req, err := DecodeRequest(payload)
		if err != nil {
			// The frame was well formed but the request was not;
			// answer with a failure and keep the connection.
			if werr := s.writeResponse(conn, &types.HelperResponse{
				Code:    types.CodeFailure,
				Message: "malformed request",
			}); werr != nil {
				return
			}
			continue
		}

		resp := s.handler(req)
		if resp == nil {
			resp = &types.HelperResponse{Code: types.CodeFailure, Message: "no response"}
		}
		if err := s.writeResponse(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *types.HelperResponse) error {
	payload, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return WriteFrame(conn, payload)
}
