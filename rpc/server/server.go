package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/ValentinKolb/nps/lib/store"
	"github.com/ValentinKolb/nps/lib/store/cstore"
	"github.com/ValentinKolb/nps/lib/store/sqlstore"
	"github.com/ValentinKolb/nps/rpc/common"
	"github.com/ValentinKolb/nps/rpc/serializer"
	"github.com/ValentinKolb/nps/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapters:   xsync.NewMapOf[uint16, IRPCServerAdapter](),
	}
}

// RPCServer routes NPS requests to the adapter registered for their opcode.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapters   *xsync.MapOf[uint16, IRPCServerAdapter]

	mu      sync.Mutex
	store   store.IStatusStore
	metrics *http.Server
	closed  bool
}

// UseStore sets the status store. Without one Serve opens the SQLite
// database and cache from the configuration.
func (s *RPCServer) UseStore(st store.IStatusStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = st
}

// RegisterAdapter registers the adapter for requests with the given id,
// replacing any earlier one.
func (s *RPCServer) RegisterAdapter(id message.Opcode, adapter IRPCServerAdapter) {
	s.adapters.Store(uint16(id), adapter)
}

// Serve starts the RPC server
// This function will also initialize the server plus the status store and start the transport layer.
// It blocks until Close is called.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and closes the status store.
func (s *RPCServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	errs := []error{s.transport.Close()}
	if s.metrics != nil {
		errs = append(errs, s.metrics.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("server is closed")
	}

	// Create the status store unless one was injected
	if s.store == nil {
		st, err := s.openStore()
		if err != nil {
			return err
		}
		s.store = st
	}

	// Default adapters, registered adapters take precedence
	s.adapters.LoadOrStore(uint16(message.MsgTGetUserStatus), NewUserStatusAdapter(s.store))
	s.adapters.LoadOrStore(uint16(message.MsgTHeartbeat), NewHeartbeatAdapter())

	// Metrics endpoint
	if s.config.MetricsEndpoint != "" {
		if err := s.serveMetrics(); err != nil {
			return err
		}
	}

	Logger.Infof("NPS status server setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)
	return nil
}

// openStore opens the SQLite source and puts the cache in front of it
func (s *RPCServer) openStore() (store.IStatusStore, error) {
	source, err := sqlstore.Open(s.config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open status database: %w", err)
	}

	cfg := cstore.DefaultConfig()
	if s.config.CacheTTL > 0 {
		cfg.TTL = s.config.CacheTTL
	}
	if s.config.CacheSize > 0 {
		cfg.MaxEntries = s.config.CacheSize
	}
	if s.config.SweepInterval > 0 {
		cfg.SweepInterval = s.config.SweepInterval
	}

	Logger.Infof("opened status database %s", source.Path())
	return cstore.NewStore(source, cfg), nil
}

// serveMetrics starts the prometheus endpoint in the background
func (s *RPCServer) serveMetrics() error {
	listener, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		s.writeMetrics(w)
	})
	s.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.metrics.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint stopped: %v", err)
		}
	}()
	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	return nil
}

// writeMetrics writes the process, request and cache metrics in prometheus text format
func (s *RPCServer) writeMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
	if c, ok := s.store.(interface{ Metrics() *metrics.Set }); ok {
		c.Metrics().WritePrometheus(w)
	}
}

// --------------------------------------------------------------------------
// Request Handling
// --------------------------------------------------------------------------

// handle is the transport handler: decode, dispatch, encode
func (s *RPCServer) handle(req []byte) []byte {
	start := time.Now()
	h := serialize.NewHeader(req)
	id := message.Opcode(h.ID())
	seq := h.Checksum()

	resp := s.dispatch(id, req)
	resp.MessageBase().SetSequenceNumber(seq)

	metrics.GetOrCreateCounter(fmt.Sprintf(`nps_rpc_requests_total{opcode=%q}`, id)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`nps_rpc_request_duration_seconds{opcode=%q}`, id)).UpdateDuration(start)
	if respID := message.Opcode(resp.MessageBase().MessageID()); respID.IsError() {
		metrics.GetOrCreateCounter(fmt.Sprintf(`nps_rpc_errors_total{opcode=%q,error=%q}`, id, respID)).Inc()
	}

	data, err := s.serializer.Serialize(resp)
	if err != nil {
		Logger.Errorf("failed to serialize response to %s: %v", id, err)
		errResp := message.NewErrorMessage(message.MsgTUndefinedError, fmt.Errorf("failed to serialize response: %w", err))
		errResp.SetSequenceNumber(seq)
		if data, err = s.serializer.Serialize(errResp); err != nil {
			return nil
		}
	}
	metrics.GetOrCreateHistogram(`nps_rpc_response_size_bytes`).Update(float64(len(data)))
	return data
}

// dispatch decodes the request and lets the adapter handle it
func (s *RPCServer) dispatch(id message.Opcode, req []byte) serialize.Entity {
	adapter, ok := s.adapters.Load(uint16(id))
	if !ok {
		Logger.Warningf("no adapter for %s", id)
		return message.NewErrorMessage(message.MsgTUndefinedError, fmt.Errorf("unsupported message %s", id))
	}

	e := adapter.NewRequest()
	if err := s.serializer.Deserialize(req, e); err != nil {
		Logger.Warningf("malformed %s request: %v", id, err)
		return message.NewErrorMessage(message.MsgTUndefinedError, fmt.Errorf("malformed request: %w", err))
	}

	ctx := context.Background()
	if timeout := s.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return adapter.Handle(ctx, e)
}
