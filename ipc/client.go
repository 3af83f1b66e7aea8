package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/types"
)

// ErrTransportUnavailable is returned when the connection to the helper
// is not established or has dropped. There is no implicit reconnection;
// the caller must Stop and Start the client deliberately.
var ErrTransportUnavailable = errors.New("helper transport unavailable")

// ErrClientStarted is returned by Start on a client that is already
// connected.
var ErrClientStarted = errors.New("client already started")

// ReplyHandler receives a helper response, or an error if the transport
// failed before the reply arrived. Handlers run on the client's own
// dispatch goroutine, concurrently with the caller; they must not
// assume the caller's locks are held.
type ReplyHandler func(*types.HelperResponse, error)

// Client is the unprivileged side of the helper transport.
//
// Replies are matched to requests in order: the helper protocol is
// strict request/reply over one connection, so the pending handler
// queue is FIFO.
type Client struct {
	socketPath string
	logger     *log.Logger

	// mu guards conn, pending, and started. It is never held across a
	// socket read or write; wmu serializes writers instead.
	mu      sync.Mutex
	wmu     sync.Mutex
	conn    net.Conn
	pending []ReplyHandler
	started bool
}

// NewClient creates a client for the helper socket at socketPath.
func NewClient(socketPath string, logger *log.Logger) *Client {
	return &Client{socketPath: socketPath, logger: logger}
}

// Start connects to the helper socket and begins dispatching replies.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrClientStarted
	}

	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return errors.Join(ErrTransportUnavailable, err)
	}

	c.conn = conn
	c.started = true
	go c.dispatchLoop(conn)
	return nil
}

// Stop closes the connection. Pending handlers are failed with
// ErrTransportUnavailable by the dispatch loop.
func (c *Client) Stop() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.started = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Send encodes req and registers handler for its reply. The handler is
// invoked asynchronously on the client's dispatch goroutine.
func (c *Client) Send(req *types.HelperRequest, handler ReplyHandler) error {
	payload, err := EncodeRequest(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrTransportUnavailable
	}
	// Registered before the write so a fast reply cannot race the
	// handler registration.
	c.pending = append(c.pending, handler)
	c.mu.Unlock()

	c.wmu.Lock()
	err = WriteFrame(conn, payload)
	c.wmu.Unlock()

	if err != nil {
		// teardown fails every pending handler, this one included.
		c.teardown(conn)
		return errors.Join(ErrTransportUnavailable, err)
	}
	return nil
}

// Call sends req and blocks until the reply arrives or ctx is done.
// Convenience wrapper over Send for callers that run on their own
// background task and may block.
func (c *Client) Call(ctx context.Context, req *types.HelperRequest) (*types.HelperResponse, error) {
	type result struct {
		resp *types.HelperResponse
		err  error
	}
	ch := make(chan result, 1)

	if err := c.Send(req, func(resp *types.HelperResponse, err error) {
		ch <- result{resp, err}
	}); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dispatchLoop reads reply frames and invokes pending handlers in
// order. It owns the transport's dispatch context: handlers run here,
// never on the caller's polling loop.
func (c *Client) dispatchLoop(conn net.Conn) {
	decoder := NewFrameDecoder(conn)

	for {
		payload, err := decoder.ReadFrame()
		if err != nil {
			if err != io.EOF {
				c.logger.Warn("transport read failed", map[string]any{
					"error": err.Error(),
				})
			}
			c.teardown(conn)
			return
		}

		resp, err := DecodeResponse(payload)

		c.mu.Lock()
		var handler ReplyHandler
		if len(c.pending) > 0 {
			handler = c.pending[0]
			c.pending = c.pending[1:]
		}
		c.mu.Unlock()

		if handler == nil {
			c.logger.Warn("reply without pending request", nil)
			continue
		}
		handler(resp, err)
	}
}

// teardown marks the connection dead and fails all pending handlers.
func (c *Client) teardown(conn net.Conn) {
	_ = conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.started = false
	}
	failed := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, h := range failed {
		h(nil, ErrTransportUnavailable)
	}
}
