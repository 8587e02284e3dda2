package server

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/serialize"
	"github.com/ValentinKolb/nps/lib/store"
)

// NewUserStatusAdapter creates the adapter answering NPS_GET_USER_STATUS
// requests from st.
//
// The response id tells the caller how to proceed:
//
//	NPS_USER_BANNED      a ban is active
//	NPS_USER_INVALID     no valid session key or unknown customer
//	NPS_USER_VALID       the customer may log in
//	NPS_UNDEFINED_ERROR  the cache operation is unknown
//	NPS_DB_ERROR         the store failed
func NewUserStatusAdapter(st store.IStatusStore) IRPCServerAdapter {
	return &userStatusAdapterImpl{store: st}
}

type userStatusAdapterImpl struct {
	store store.IStatusStore
}

func (a *userStatusAdapterImpl) NewRequest() serialize.Entity {
	return &message.UserStatusRequest{}
}

func (a *userStatusAdapterImpl) Handle(ctx context.Context, e serialize.Entity) serialize.Entity {
	req, ok := e.(*message.UserStatusRequest)
	if !ok {
		return message.NewErrorMessage(message.MsgTUndefinedError, fmt.Errorf("unexpected request type %T", e))
	}

	status, err := a.store.GetUserStatus(ctx, req)
	switch store.CodeOf(err) {
	case store.RetCSuccess:
	case store.RetCNotFound:
		invalid := message.NewUserStatus(req.CustomerID)
		invalid.SetMessageID(uint16(message.MsgTUserInvalid))
		return invalid
	case store.RetCInvalidOperation, store.RetCUnsupportedOperation:
		return message.NewErrorMessage(message.MsgTUndefinedError, err)
	default:
		Logger.Errorf("status of customer %d: %v", req.CustomerID, err)
		return message.NewErrorMessage(message.MsgTDBError, err)
	}

	switch {
	case status.Ban() != nil:
		status.SetMessageID(uint16(message.MsgTUserBanned))
	case !status.Authorized():
		status.SetMessageID(uint16(message.MsgTUserInvalid))
	default:
		status.SetMessageID(uint16(message.MsgTUserValid))
	}
	return status
}

// NewHeartbeatAdapter creates the adapter answering NPS_HEARTBEAT with an
// NPS_ACK carrying the heartbeat payload.
func NewHeartbeatAdapter() IRPCServerAdapter {
	return &heartbeatAdapterImpl{}
}

type heartbeatAdapterImpl struct{}

func (a *heartbeatAdapterImpl) NewRequest() serialize.Entity {
	return &message.RawMessage{}
}

func (a *heartbeatAdapterImpl) Handle(_ context.Context, e serialize.Entity) serialize.Entity {
	var payload []byte
	if raw, ok := e.(*message.RawMessage); ok {
		payload = raw.Payload()
	}
	return message.NewRawMessage(message.MsgTAck, payload)
}
