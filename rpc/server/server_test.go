package server

import (
	"bytes"
	"context"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/ValentinKolb/nps/lib/store"
	"github.com/ValentinKolb/nps/rpc/common"
	"github.com/ValentinKolb/nps/rpc/serializer"
	"github.com/ValentinKolb/nps/rpc/transport"
	"strings"
	"testing"
)

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// fakeStore answers from a fixed set of statuses
type fakeStore struct {
	statuses map[uint32]*message.UserStatus
	fail     error
	closed   bool
}

func (f *fakeStore) GetUserStatus(_ context.Context, req *message.UserStatusRequest) (*message.UserStatus, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if !req.Operation.Valid() {
		return nil, store.Errorf(store.RetCInvalidOperation, "unknown cache operation %d", uint32(req.Operation))
	}
	st, ok := f.statuses[req.CustomerID]
	if !ok {
		return nil, store.Errorf(store.RetCNotFound, "customer %d does not exist", req.CustomerID)
	}
	return st.Clone(), nil
}

func (f *fakeStore) Stats() store.Stats { return store.Stats{Entries: len(f.statuses)} }

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

// nopTransport records the registered handler
type nopTransport struct {
	handler transport.ServerHandleFunc
}

func (t *nopTransport) RegisterHandler(h transport.ServerHandleFunc) { t.handler = h }
func (t *nopTransport) Listen(common.ServerConfig) error             { return nil }
func (t *nopTransport) Close() error                                 { return nil }

func newFakeStore() *fakeStore {
	valid := message.NewUserStatus(1)
	valid.SetSessionKey(message.NewSessionKey([]byte("key"), 1900000000))

	banned := message.NewUserStatus(2)
	banned.SetSessionKey(message.NewSessionKey([]byte("key"), 1900000000))
	banned.SetBan(message.UserAction{IssuedBy: 7, Reason: "cheating", IssuedAt: 1700000000})

	noKey := message.NewUserStatus(3)

	return &fakeStore{statuses: map[uint32]*message.UserStatus{1: valid, 2: banned, 3: noKey}}
}

// newTestServer returns a server whose handler can be called directly
func newTestServer(t *testing.T, st store.IStatusStore, s serializer.IRPCSerializer) (*RPCServer, transport.ServerHandleFunc) {
	t.Helper()
	tr := &nopTransport{}
	srv := NewRPCServer(common.ServerConfig{TimeoutSecond: 1}, tr, s)
	srv.UseStore(st)
	if err := srv.Serve(); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	return srv, tr.handler
}

// call sends e through handler and decodes the response
func call(t *testing.T, handler transport.ServerHandleFunc, e serialize.Entity) serialize.Entity {
	t.Helper()
	e.MessageBase().SetSequenceNumber(42)
	buf, err := serialize.Serialize(e)
	if err != nil {
		t.Fatalf("Failed to serialize request: %v", err)
	}
	resp, err := message.Decode(handler(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.MessageBase().Checksum() != 42 {
		t.Errorf("Response must carry the request sequence, got %d", resp.MessageBase().Checksum())
	}
	return resp
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestUserStatusAdapter tests the response ids of status requests
func TestUserStatusAdapter(t *testing.T) {
	_, handler := newTestServer(t, newFakeStore(), serializer.NewBinarySerializer())

	tests := []struct {
		name     string
		customer uint32
		op       message.Operation
		expected message.Opcode
	}{
		{"valid", 1, message.OpUseCache, message.MsgTUserValid},
		{"banned", 2, message.OpRefreshCache, message.MsgTUserBanned},
		{"no session key", 3, message.OpUseCache, message.MsgTUserInvalid},
		{"unknown customer", 99, message.OpUseCache, message.MsgTUserInvalid},
		{"invalid operation", 1, message.Operation(17), message.MsgTUndefinedError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := call(t, handler, message.NewUserStatusRequest(tc.customer, tc.op))
			if id := message.Opcode(resp.MessageBase().MessageID()); id != tc.expected {
				t.Fatalf("Expected %s, got %s", tc.expected, id)
			}
			if st, ok := resp.(*message.UserStatus); ok && st.CustomerID() != tc.customer {
				t.Errorf("Expected customer %d, got %d", tc.customer, st.CustomerID())
			}
		})
	}
}

// TestStoreFailure tests that store errors become NPS_DB_ERROR messages
func TestStoreFailure(t *testing.T) {
	st := newFakeStore()
	st.fail = store.NewError(store.RetCInternalError, "disk on fire")
	_, handler := newTestServer(t, st, serializer.NewBinarySerializer())

	resp := call(t, handler, message.NewUserStatusRequest(1, message.OpUseCache))
	raw, ok := resp.(*message.RawMessage)
	if !ok || message.Opcode(raw.MessageID()) != message.MsgTDBError {
		t.Fatalf("Expected NPS_DB_ERROR raw message, got %T", resp)
	}
	if err := raw.Err(); err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("Expected error text in payload, got %v", err)
	}
}

// TestHeartbeat tests the heartbeat adapter and unknown opcodes
func TestHeartbeat(t *testing.T) {
	_, handler := newTestServer(t, newFakeStore(), serializer.NewBinarySerializer())

	resp := call(t, handler, message.NewRawMessage(message.MsgTHeartbeat, []byte("beat")))
	raw, ok := resp.(*message.RawMessage)
	if !ok || message.Opcode(raw.MessageID()) != message.MsgTAck || !bytes.Equal(raw.Payload(), []byte("beat")) {
		t.Errorf("Expected NPS_ACK with heartbeat payload, got %T", resp)
	}

	resp = call(t, handler, message.NewRawMessage(message.Opcode(0x7777), nil))
	if id := message.Opcode(resp.MessageBase().MessageID()); id != message.MsgTUndefinedError {
		t.Errorf("Expected NPS_UNDEFINED_ERROR for unknown opcode, got %s", id)
	}
}

// TestMalformedRequest tests that undecodable requests are answered with an error
func TestMalformedRequest(t *testing.T) {
	_, handler := newTestServer(t, newFakeStore(), serializer.NewBinarySerializer())

	// status request with a two byte body instead of eight
	req := []byte{0x05, 0x35, 0x00, 0x0e, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05, 0x00, 0x01}
	resp, err := message.Decode(handler(req))
	if err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if id := message.Opcode(resp.MessageBase().MessageID()); id != message.MsgTUndefinedError {
		t.Errorf("Expected NPS_UNDEFINED_ERROR, got %s", id)
	}
	if resp.MessageBase().Checksum() != 5 {
		t.Errorf("Expected sequence 5, got %d", resp.MessageBase().Checksum())
	}
}

// TestJSONSerializer tests request handling with the json serializer
func TestJSONSerializer(t *testing.T) {
	s := serializer.NewJSONSerializer()
	_, handler := newTestServer(t, newFakeStore(), s)

	req, err := s.Serialize(message.NewUserStatusRequest(2, message.OpUseCache))
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	var resp message.UserStatus
	if err := s.Deserialize(handler(req), &resp); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if message.Opcode(resp.MessageID()) != message.MsgTUserBanned || resp.Ban() == nil || resp.Ban().Reason != "cheating" {
		t.Errorf("Unexpected response %+v", &resp)
	}
}

// TestRegisterAdapter tests that registered adapters replace the defaults
func TestRegisterAdapter(t *testing.T) {
	tr := &nopTransport{}
	srv := NewRPCServer(common.ServerConfig{}, tr, serializer.NewBinarySerializer())
	srv.UseStore(newFakeStore())
	srv.RegisterAdapter(message.MsgTHeartbeat, &constAdapter{id: message.MsgTUserBanned})
	if err := srv.Serve(); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	resp := call(t, tr.handler, message.NewRawMessage(message.MsgTHeartbeat, nil))
	if id := message.Opcode(resp.MessageBase().MessageID()); id != message.MsgTUserBanned {
		t.Errorf("Expected registered adapter to answer, got %s", id)
	}
}

// TestClose tests that close closes the store once
func TestClose(t *testing.T) {
	st := newFakeStore()
	srv, _ := newTestServer(t, st, serializer.NewBinarySerializer())

	if err := srv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !st.closed {
		t.Errorf("Store must be closed")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Second close must be a no-op, got %v", err)
	}
	if err := srv.Serve(); err == nil {
		t.Errorf("Serve after close must fail")
	}
}

// TestMetrics tests that the prometheus output contains request and cache metrics
func TestMetrics(t *testing.T) {
	srv, handler := newTestServer(t, newFakeStore(), serializer.NewBinarySerializer())
	call(t, handler, message.NewUserStatusRequest(1, message.OpUseCache))

	var out bytes.Buffer
	srv.writeMetrics(&out)
	if !strings.Contains(out.String(), `nps_rpc_requests_total{opcode="getUserStatus"}`) {
		t.Errorf("Request counter missing in metrics output")
	}
}

type constAdapter struct {
	id message.Opcode
}

func (a *constAdapter) NewRequest() serialize.Entity { return &message.RawMessage{} }

func (a *constAdapter) Handle(context.Context, serialize.Entity) serialize.Entity {
	return message.NewRawMessage(a.id, nil)
}
