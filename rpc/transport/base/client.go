package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/ValentinKolb/nps/rpc/common"
	"github.com/ValentinKolb/nps/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("transport is closed")

// maxReconnectAttempts bounds how often a broken connection is redialed before
// it is given up
const maxReconnectAttempts = 5

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.SocketConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	buf *serialize.Buffer
	err error
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn         net.Conn
	endpoint     string
	stopCh       chan struct{} // Close signal for the reader goroutine
	requestChans *xsync.MapOf[uint32, chan responseResult]
	connMu       sync.Mutex // Protects the connection itself
	parent       *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64 // Atomic counter for Round Robin
	nextSequence  uint32 // Atomic counter for sequence numbers
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	// Store the config
	t.config = config
	t.stopping.Store(false)

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := 1
	if config.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.ConnectionsPerEndpoint
	}

	connections := make([]*clientConnection, 0, len(config.Endpoints)*connectionsPerEP)

	// Initialize client connections
	for _, endpoint := range config.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint:     endpoint,
				stopCh:       make(chan struct{}),
				requestChans: xsync.NewMapOf[uint32, chan responseResult](),
				parent:       t,
			}

			// Establish the initial connection using reconnect
			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}
			connections = append(connections, clientConn)

			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			// Start the response reader
			go clientConn.readResponses()
		}
	}

	// Check if we have at least one connection
	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Endpoints)*connectionsPerEP, len(config.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(ctx context.Context, req []byte) (*serialize.Buffer, error) {
	if t.stopping.Load() {
		return nil, ErrTransportClosed
	}
	seq := t.sequence()
	timeout := t.config.Timeout()

	// Define the send function to be used in retries
	send := func(connection *clientConnection) (*serialize.Buffer, error) {
		// Create a channel for the response
		respCh := make(chan responseResult, 1)

		// Register the request before writing, the response may be faster than the return of write
		connection.requestChans.Store(seq, respCh)

		// Ensure we clean up when done
		defer connection.requestChans.Delete(seq)

		if err := connection.write(seq, req, timeout); err != nil {
			return nil, err
		}

		// Wait for response or timeout
		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			timeoutCh = timer.C
		}

		select {
		case result := <-respCh:
			return result.buf, result.err
		case <-ctx.Done():
			connection.abandon(seq, respCh)
			return nil, ctx.Err()
		case <-timeoutCh:
			connection.abandon(seq, respCh)
			return nil, fmt.Errorf("request %d timed out after %s", seq, timeout)
		}
	}

	// Retry logic with exponential backoff
	var lastErr error

	// We always try at least once, and up to maxRetries times
	maxRetries := t.config.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	// Initial backoff duration in milliseconds
	backoffMs := 50

	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		// Try with this connection
		buf, err := send(conn)
		if err == nil {
			return buf, nil
		}
		if ctx.Err() != nil || t.stopping.Load() {
			return nil, err
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)

		if i < maxRetries-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			select {
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoffMs *= 2
		}
	}

	// All attempts failed
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sequence returns the next sequence number. Zero is skipped since it marks
// messages that carry a generated checksum.
func (t *clientTransport) sequence() uint32 {
	for {
		if seq := atomic.AddUint32(&t.nextSequence, 1); seq != 0 {
			return seq
		}
	}
}

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// Simple Round Robin algorithm
	var index uint64
	if len(t.connections) == 1 {
		// optimize for single connection
		index = 0
	} else {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, conn := range t.connections {
		// Signal reader goroutine to stop
		close(conn.stopCh)

		conn.connMu.Lock()
		if conn.conn != nil {
			_ = conn.conn.Close()
		}
		conn.connMu.Unlock()

		conn.failPending(ErrTransportClosed)
	}

	// Empty the list
	t.connections = nil
}

// write sends one request frame
func (c *clientConnection) write(seq uint32, req []byte, timeout time.Duration) error {
	// Lock the connection only for writing
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Test if connection is still valid
	if c.conn == nil {
		return fmt.Errorf("connection to %s is closed", c.endpoint)
	}

	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return writeFrame(c.conn, seq, req)
}

// current returns the active net connection
func (c *clientConnection) current() net.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// stopped reports whether the connection was closed by the transport
func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		conn := c.current()
		if conn == nil || c.stopped() {
			return
		}

		// Read the response frame
		buf, err := readFrame(conn)
		if err != nil {
			if c.stopped() {
				return
			}
			Logger.Debugf("Connection to %s broken: %v", c.endpoint, err)

			// Requests on the broken connection will never be answered
			c.failPending(fmt.Errorf("error reading response: %w", err))

			// Try to restore the connection
			if err := c.reconnectWithBackoff(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
			continue
		}

		// Find the corresponding request channel
		seq := frameSequence(buf)
		if respCh, found := c.requestChans.LoadAndDelete(seq); found {
			respCh <- responseResult{buf: buf}
		} else {
			// Warning for unknown sequence number, e.g. an answer after the timeout
			Logger.Warningf("Received response for unknown sequence number %d (id %#04x)", seq, buf.MessageID())
			_ = buf.Release()
		}
	}
}

// abandon unregisters a request nobody waits for anymore. If the reader or
// failPending already took the request, its result is received and a
// response buffer is released.
func (c *clientConnection) abandon(seq uint32, respCh chan responseResult) {
	if _, ok := c.requestChans.LoadAndDelete(seq); ok {
		return
	}
	// whoever removed the entry sends exactly once into the buffered channel
	if result := <-respCh; result.buf != nil {
		_ = result.buf.Release()
	}
}

// failPending answers every waiting request with err
func (c *clientConnection) failPending(err error) {
	c.requestChans.Range(func(seq uint32, ch chan responseResult) bool {
		if _, ok := c.requestChans.LoadAndDelete(seq); ok {
			ch <- responseResult{err: err}
		}
		return true
	})
}

// reconnectWithBackoff retries reconnect until it succeeds, the transport is
// closed or the attempts are used up
func (c *clientConnection) reconnectWithBackoff() error {
	backoff := 50 * time.Millisecond
	var err error
	for i := 0; i < maxReconnectAttempts; i++ {
		if c.stopped() {
			return ErrTransportClosed
		}
		if err = c.reconnect(); err == nil {
			Logger.Infof("Reconnected to %s", c.endpoint)
			return nil
		}

		select {
		case <-c.stopCh:
			return ErrTransportClosed
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	// Connect to the endpoint
	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config.Socket); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", c.endpoint, err)
	}

	// closeConnections closes stopCh before taking connMu, so a transport
	// closed during the dial is seen here
	if c.stopped() {
		_ = conn.Close()
		return ErrTransportClosed
	}

	c.conn = conn
	return nil
}
