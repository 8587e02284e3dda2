package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/nps/rpc/common"
	"github.com/ValentinKolb/nps/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.SocketConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	config    common.ServerConfig

	mu       sync.Mutex // guards listener
	listener net.Listener
	stopping atomic.Bool

	conns *xsync.MapOf[net.Conn, struct{}]
	wg    sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		conns:     xsync.NewMapOf[net.Conn, struct{}](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}

	t.mu.Lock()
	if t.stopping.Load() {
		t.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Endpoint, t.workers())

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config.Socket); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		// Handle the connection in a goroutine
		t.conns.Store(conn, struct{}{})
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer t.conns.Delete(conn)
			t.handleConnection(conn)
		}()
	}
}

func (t *serverTransport) Close() error {
	if !t.stopping.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	t.mu.Unlock()

	// unblock the readers, workers still write their responses before the
	// connection is closed by handleConnection
	t.conns.Range(func(conn net.Conn, _ struct{}) bool {
		if c, ok := conn.(interface{ CloseRead() error }); ok {
			_ = c.CloseRead()
		} else {
			_ = conn.SetReadDeadline(time.Now())
		}
		return true
	})
	t.wg.Wait()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// workers returns the number of concurrent requests per connection, at least one
func (t *serverTransport) workers() int {
	return int(math.Max(float64(t.config.Workers), 1))
}

// handleConnection handles incoming requests for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()

	// Timeout in seconds
	timeout := t.config.Timeout()

	// Create a semaphore to limit concurrent workers for this connection
	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.workers())

	// Create a wait group to wait for all workers to finish
	var wg sync.WaitGroup

	// Create a mutex to protect writes to the connection
	var connMutex sync.Mutex

	// Handler function that processes requests in worker goroutines
	handleResponse := func(seq uint32, req []byte) {
		// Process the request
		start := time.Now()
		resp := t.handler(req)
		Logger.Debugf("Processed request %d took %s", seq, time.Since(start))

		if resp == nil {
			Logger.Warningf("Handler returned no response for request %d", seq)
			return
		}

		// Protect writes to the connection with a mutex
		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		// Write the response with the sequence number of the request
		if err := writeFrame(conn, seq, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	// Function to handle incoming requests
	handleRequest := func() error {
		if timeout > 0 && !t.stopping.Load() {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("failed to set read deadline: %v", err)
			}
		}

		// Read the frame into a pooled buffer
		buf, err := readFrame(conn)
		if err != nil {
			return err
		}
		seq := frameSequence(buf)

		// Acquire a slot in the semaphore (blocks if the worker limit is reached)
		workerSemaphore <- struct{}{}

		// Increment the wait group counter
		wg.Add(1)

		// Process in a goroutine
		go func() {
			defer func() {
				_ = buf.Release()
				<-workerSemaphore // Release semaphore slot
				wg.Done()         // Mark worker as done
			}()
			handleResponse(seq, buf.Bytes())
		}()

		return nil
	}

	// Handle requests in a loop
	for {
		err := handleRequest()
		if err == nil {
			continue
		}

		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF) || t.stopping.Load():
			// Connection closed by client or server shutdown
			Logger.Debugf("Connection from %s closed", conn.RemoteAddr())
		case errors.As(err, &netErr) && netErr.Timeout():
			Logger.Debugf("Connection from %s idle for %s, closing", conn.RemoteAddr(), timeout)
		default:
			Logger.Errorf("Error handling request: %v", err)
		}
		break
	}

	// Wait for all workers to finish before closing the connection
	// This ensures we don't lose any in-progress work
	wg.Wait()
}
