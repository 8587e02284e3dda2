package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/ValentinKolb/nps/rpc/common"
	"github.com/ValentinKolb/nps/rpc/serializer"
	"github.com/ValentinKolb/nps/rpc/transport"
	gometrics "github.com/rcrowley/go-metrics"
	"time"
)

// Metric names in the client registry
const (
	MetricStatusRequests = "nps.client.status"
	MetricPings          = "nps.client.ping"
	MetricErrors         = "nps.client.errors"
	MetricCacheHits      = "nps.client.cache_hits"
)

// UserStatusClient queries the login status server.
type UserStatusClient struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer

	registry  gometrics.Registry
	status    gometrics.Timer
	pings     gometrics.Timer
	errors    gometrics.Meter
	cacheHits gometrics.Counter
}

// NewUserStatusClient connects the transport and returns a client using it.
func NewUserStatusClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*UserStatusClient, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	registry := gometrics.NewRegistry()
	return &UserStatusClient{
		config:     config,
		transport:  transport,
		serializer: serializer,
		registry:   registry,
		status:     gometrics.NewRegisteredTimer(MetricStatusRequests, registry),
		pings:      gometrics.NewRegisteredTimer(MetricPings, registry),
		errors:     gometrics.NewRegisteredMeter(MetricErrors, registry),
		cacheHits:  gometrics.NewRegisteredCounter(MetricCacheHits, registry),
	}, nil
}

// GetUserStatus requests the status of a customer. A customer without a
// valid session key or an unknown customer is answered with a status whose
// message id is NPS_USER_INVALID, which is not an error.
func (c *UserStatusClient) GetUserStatus(ctx context.Context, customerID uint32, op message.Operation) (*message.UserStatus, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("invalid cache operation %d", uint32(op))
	}

	start := time.Now()
	var status *message.UserStatus
	err := invokeRPCRequest(ctx, message.NewUserStatusRequest(customerID, op), c.transport, c.serializer,
		func(resp serialize.Entity) error {
			st, ok := resp.(*message.UserStatus)
			if !ok {
				return fmt.Errorf("%w: %s to status request", ErrUnexpectedResponse, message.Opcode(resp.MessageBase().MessageID()))
			}
			status = st
			return nil
		})
	if err != nil {
		c.errors.Mark(1)
		return nil, err
	}

	c.status.UpdateSince(start)
	if status.IsCacheHit() {
		c.cacheHits.Inc(1)
	}
	return status, nil
}

// Ping sends a heartbeat and returns the round trip time.
func (c *UserStatusClient) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	payload := []byte(start.UTC().Format(time.RFC3339Nano))

	err := invokeRPCRequest(ctx, message.NewRawMessage(message.MsgTHeartbeat, payload), c.transport, c.serializer,
		func(resp serialize.Entity) error {
			if id := message.Opcode(resp.MessageBase().MessageID()); id != message.MsgTAck {
				return fmt.Errorf("%w: %s to heartbeat", ErrUnexpectedResponse, id)
			}
			return nil
		})
	if err != nil {
		c.errors.Mark(1)
		return 0, err
	}

	rtt := time.Since(start)
	c.pings.Update(rtt)
	return rtt, nil
}

// Metrics returns the registry holding the request timers and the error meter.
func (c *UserStatusClient) Metrics() gometrics.Registry {
	return c.registry
}

// Close closes the transport.
func (c *UserStatusClient) Close() error {
	return c.transport.Close()
}
