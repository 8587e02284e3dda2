package base

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/ValentinKolb/nps/rpc/common"
	"github.com/ValentinKolb/nps/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// unixConnector is a minimal connector for both sides of the tests
type unixConnector struct{}

func (c *unixConnector) GetName() string { return "unix" }

func (c *unixConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("unix", endpoint)
}

func (c *unixConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	_ = os.RemoveAll(config.Endpoint)
	return net.Listen("unix", config.Endpoint)
}

func (c *unixConnector) UpgradeConnection(net.Conn, common.SocketConfig) error { return nil }

// encode serializes a raw message with the given payload
func encode(t testing.TB, id message.Opcode, payload []byte) []byte {
	t.Helper()
	buf, err := serialize.Serialize(message.NewRawMessage(id, payload))
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	return buf.Bytes()
}

// startServer starts a server with handler and returns a connected client
func startServer(t *testing.T, handler transport.ServerHandleFunc) (transport.IRPCServerTransport, transport.IRPCClientTransport) {
	t.Helper()
	endpoint := filepath.Join(t.TempDir(), "nps.sock")

	server := NewBaseServerTransport(&unixConnector{})
	server.RegisterHandler(handler)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(common.ServerConfig{Endpoint: endpoint, Workers: 4, TimeoutSecond: 5})
	}()

	client := NewBaseClientTransport(&unixConnector{})
	cfg := common.ClientConfig{Endpoints: []string{endpoint}, TimeoutSecond: 5, RetryCount: 1, ConnectionsPerEndpoint: 2}

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := client.Connect(cfg)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Failed to connect: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
		if err := <-errCh; err != nil {
			t.Errorf("Listen returned error: %v", err)
		}
	})
	return server, client
}

// echo answers every request with a copy of itself
func echo(req []byte) []byte {
	return bytes.Clone(req)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestFrameRoundTrip tests that frames carry the sequence number and leave the message intact
func TestFrameRoundTrip(t *testing.T) {
	msg := encode(t, message.MsgTHeartbeat, []byte("ping"))
	orig := bytes.Clone(msg)

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		if err := writeFrame(a, 4711, msg); err != nil {
			t.Errorf("Failed to write frame: %v", err)
		}
	}()

	buf, err := readFrame(b)
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	defer buf.Release()

	if frameSequence(buf) != 4711 {
		t.Errorf("Expected sequence 4711, got %d", frameSequence(buf))
	}
	if !bytes.Equal(buf.Bytes()[serialize.HeaderSize:], msg[serialize.HeaderSize:]) {
		t.Errorf("Frame body differs from message")
	}
	if !bytes.Equal(msg, orig) {
		t.Errorf("writeFrame must not modify the message")
	}
}

// TestFrameErrors tests invalid frames on both sides
func TestFrameErrors(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	if err := writeFrame(a, 1, []byte{1, 2, 3}); err == nil {
		t.Errorf("Expected error for message shorter than a header")
	}
	msg := encode(t, message.MsgTAck, []byte("x"))
	if err := writeFrame(a, 1, append(msg, 0)); err == nil {
		t.Errorf("Expected error for trailing bytes")
	}

	go func() {
		// length 5 is shorter than the header
		_, _ = a.Write([]byte{0x02, 0x07, 0x00, 0x05, 0, 1, 0, 0, 0, 0, 0, 1})
	}()
	if _, err := readFrame(b); !errors.Is(err, serialize.ErrMalformedHeader) {
		t.Errorf("Expected ErrMalformedHeader, got %v", err)
	}
}

// TestClientServer tests concurrent requests over multiple connections
func TestClientServer(t *testing.T) {
	_, client := startServer(t, echo)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				payload := []byte(fmt.Sprintf("worker-%d-request-%d", w, i))
				buf, err := client.Send(context.Background(), encode(t, message.MsgTHeartbeat, payload))
				if err != nil {
					t.Errorf("Send failed: %v", err)
					return
				}

				var resp message.RawMessage
				if err := serialize.Deserialize(&resp, buf.Bytes()); err != nil {
					t.Errorf("Invalid response: %v", err)
				} else if !bytes.Equal(resp.Payload(), payload) {
					t.Errorf("Response %q does not belong to request %q", resp.Payload(), payload)
				}
				_ = buf.Release()
			}
		}(w)
	}
	wg.Wait()
}

// TestSendContext tests that a cancelled context ends a pending request
func TestSendContext(t *testing.T) {
	block := make(chan struct{})
	_, client := startServer(t, func(req []byte) []byte {
		<-block
		return echo(req)
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Send(ctx, encode(t, message.MsgTHeartbeat, nil))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

// TestClose tests that a closed client rejects requests
func TestClose(t *testing.T) {
	server, client := startServer(t, echo)

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := client.Send(context.Background(), encode(t, message.MsgTHeartbeat, nil)); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed, got %v", err)
	}

	if err := server.Close(); err != nil {
		t.Errorf("Server close failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("Second server close must be a no-op, got %v", err)
	}
}

// TestAbandon tests that a request given up by the caller does not leak a response buffer
func TestAbandon(t *testing.T) {
	c := &clientConnection{requestChans: xsync.NewMapOf[uint32, chan responseResult]()}

	// still registered, nothing was sent
	pending := make(chan responseResult, 1)
	c.requestChans.Store(1, pending)
	c.abandon(1, pending)
	if _, found := c.requestChans.Load(1); found {
		t.Errorf("Expected request to be unregistered")
	}
	if len(pending) != 0 {
		t.Errorf("Expected no result for a pending request")
	}

	// the reader already handed over a response
	answered := make(chan responseResult, 1)
	buf := serialize.Allocate(serialize.HeaderSize)
	answered <- responseResult{buf: buf}
	c.abandon(2, answered)
	if err := buf.Release(); !errors.Is(err, serialize.ErrBufferOwnership) {
		t.Errorf("Expected response buffer to be released already, got %v", err)
	}
}

// TestReconnectAfterClose tests that a dial finishing after close does not keep the connection
func TestReconnectAfterClose(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "nps.sock")
	l, err := net.Listen("unix", endpoint)
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	c := &clientConnection{
		endpoint:     endpoint,
		stopCh:       make(chan struct{}),
		requestChans: xsync.NewMapOf[uint32, chan responseResult](),
		parent:       &clientTransport{connector: &unixConnector{}},
	}
	close(c.stopCh)

	if err := c.reconnect(); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed, got %v", err)
	}
	if c.current() != nil {
		t.Errorf("Expected no connection to be installed")
	}

	select {
	case conn := <-accepted:
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
			t.Errorf("Expected the dialed connection to be closed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Server never saw the dial")
	}
}
