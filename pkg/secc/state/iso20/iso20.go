// Package iso20 implements the modeled subset of the ISO 15118-20 common
// message handshake: SessionSetup through ServiceSelection and
// SessionStop. The energy-transfer-specific charge loops (AC/DC
// ScheduleExchange onward) are out of scope for the message catalog this
// package dispatches against; the first of them, ScheduleExchange, is
// named here so a peer reaching it gets a clean FAILED response and a
// logged reason rather than an unrecognized-state error.
package iso20

import (
	"context"
	"fmt"
	"time"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwenty"
	"github.com/mash-protocol/mash-go/pkg/evse"
	"github.com/mash-protocol/mash-go/pkg/failedresponse"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
	"github.com/mash-protocol/mash-go/pkg/secc/state"
)

const (
	SessionSetup       = "SessionSetup"
	AuthorizationSetup = "AuthorizationSetup"
	Authorization      = "Authorization"
	ServiceDiscovery   = "ServiceDiscovery"
	ServiceDetail      = "ServiceDetail"
	ServiceSelection   = "ServiceSelection"
	SessionStop        = "SessionStop"

	// ScheduleExchange and the energy-transfer charge loops that follow it
	// (ACChargeLoop, DCChargeLoop, ...) have no catalog types in this
	// build; Process fails any session that reaches them.
	ScheduleExchange = "ScheduleExchange"
)

// Deps bundles the EVSE controller and clock seam the -20 handshake
// needs. The charge-loop states it doesn't implement never read Deps.
type Deps struct {
	EVSE evse.Controller
	Now  func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func header(sess *session.Context, deps Deps) isotwenty.MessageHeader {
	return isotwenty.MessageHeader{SessionID: sess.SessionID, Timestamp: deps.now().Unix()}
}

func abort(reqType isotwenty.RequestType, code dtype.ResponseCode) (state.Outcome, error) {
	resp, err := failedresponse.LookupISO20(reqType)
	if err != nil {
		return state.Outcome{}, err
	}
	resp.SetCode(code)
	return state.Outcome{Response: resp, NextState: SessionStop, Terminate: true}, nil
}

func sequenceError(inbound isotwenty.Request) (state.Outcome, error) {
	return abort(inbound.Type(), dtype.ResponseFailedSequenceError)
}

// Process dispatches inbound to the handler for the named current state.
// Reaching ScheduleExchange ends the session with a logged, generic
// failure instead of panicking: this build's catalog stops at the
// common-messages handshake. A state name this package doesn't recognize
// returns an error.
func Process(ctx context.Context, deps Deps, sess *session.Context, current string, inbound isotwenty.Request) (state.Outcome, error) {
	switch current {
	case SessionSetup:
		return processSessionSetup(deps, sess, inbound)
	case AuthorizationSetup:
		return processAuthorizationSetup(sess, inbound)
	case Authorization:
		return processAuthorization(ctx, deps, sess, inbound)
	case ServiceDiscovery:
		return processServiceDiscovery(ctx, deps, sess, inbound)
	case ServiceDetail:
		return processServiceDetail(sess, inbound)
	case ServiceSelection:
		return processServiceSelection(sess, inbound)
	case SessionStop:
		return processSessionStop(sess, inbound)
	case ScheduleExchange:
		sess.Logger.Log(protolog.Event{
			Timestamp: deps.now(),
			SessionID: sess.SessionID,
			Direction: protolog.DirectionOut,
			Category:  protolog.CategoryError,
			Error: &protolog.ErrorEvent{
				Message: "ScheduleExchange and later ISO 15118-20 energy-transfer messages are not modeled in this catalog",
			},
		})
		return abort(inbound.Type(), dtype.ResponseFailed)
	default:
		return state.Outcome{}, fmt.Errorf("iso20: unknown state %q", current)
	}
}

func processSessionSetup(deps Deps, sess *session.Context, inbound isotwenty.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwenty.SessionSetupReq)
	if !ok {
		return sequenceError(inbound)
	}

	if sess.SessionID == "" || sess.SessionID == session.ZeroSessionID {
		id, err := session.NewSessionID()
		if err != nil {
			return state.Outcome{}, err
		}
		sess.SessionID = id
	}
	sess.EVCCID = req.EVCCID
	sess.ProtocolVersion = session.ProtocolISO15118_20Unknown

	resp := &isotwenty.SessionSetupRes{
		BaseResponse: isotwenty.BaseResponse{Hdr: header(sess, deps), ResponseCode: dtype.ResponseOKNewSessionEstablished},
	}
	if id, err := deps.EVSE.EVSEID(context.Background()); err == nil {
		resp.EVSEID = id
	}
	return state.Outcome{Response: resp, NextState: AuthorizationSetup, Timeout: state.SequenceTimeout}, nil
}

func processAuthorizationSetup(sess *session.Context, inbound isotwenty.Request) (state.Outcome, error) {
	if _, ok := inbound.(isotwenty.AuthorizationSetupReq); !ok {
		return sequenceError(inbound)
	}
	resp := &isotwenty.AuthorizationSetupRes{
		BaseResponse:       isotwenty.BaseResponse{Hdr: isotwenty.MessageHeader{SessionID: sess.SessionID}, ResponseCode: dtype.ResponseOK},
		AuthorizationModes: []isotwenty.AuthorizationMode{isotwenty.AuthModeEIM},
	}
	return state.Outcome{Response: resp, NextState: Authorization, Timeout: state.SequenceTimeout}, nil
}

func processAuthorization(ctx context.Context, deps Deps, sess *session.Context, inbound isotwenty.Request) (state.Outcome, error) {
	if _, ok := inbound.(isotwenty.AuthorizationReq); !ok {
		return sequenceError(inbound)
	}
	result, err := deps.EVSE.IsAuthorised(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	hdr := isotwenty.MessageHeader{SessionID: sess.SessionID}
	switch result {
	case evse.AuthOngoing:
		resp := &isotwenty.AuthorizationRes{BaseResponse: isotwenty.BaseResponse{Hdr: hdr, ResponseCode: dtype.ResponseOK}, EVSEProcessing: dtype.ProcessingOngoing}
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	case evse.AuthRejected:
		return abort(isotwenty.TypeAuthorization, dtype.ResponseFailed)
	default:
		resp := &isotwenty.AuthorizationRes{BaseResponse: isotwenty.BaseResponse{Hdr: hdr, ResponseCode: dtype.ResponseOK}, EVSEProcessing: dtype.ProcessingFinished}
		return state.Outcome{Response: resp, NextState: ServiceDiscovery, Timeout: state.SequenceTimeout}, nil
	}
}

func processServiceDiscovery(ctx context.Context, deps Deps, sess *session.Context, inbound isotwenty.Request) (state.Outcome, error) {
	if _, ok := inbound.(isotwenty.ServiceDiscoveryReq); !ok {
		return sequenceError(inbound)
	}
	services := []dtype.ServiceDetails{{ServiceID: 1, ServiceCategory: dtype.ServiceCategoryCharging, FreeService: true}}
	sess.OfferedServices = services
	resp := &isotwenty.ServiceDiscoveryRes{
		BaseResponse:              isotwenty.BaseResponse{Hdr: isotwenty.MessageHeader{SessionID: sess.SessionID}, ResponseCode: dtype.ResponseOK},
		EnergyTransferServiceList: services,
	}
	return state.Outcome{Response: resp, NextState: ServiceSelection, Timeout: state.SequenceTimeout}, nil
}

func processServiceDetail(sess *session.Context, inbound isotwenty.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwenty.ServiceDetailReq)
	if !ok {
		return sequenceError(inbound)
	}
	resp := &isotwenty.ServiceDetailRes{
		BaseResponse: isotwenty.BaseResponse{Hdr: isotwenty.MessageHeader{SessionID: sess.SessionID}, ResponseCode: dtype.ResponseOK},
		ServiceID:    req.ServiceID,
	}
	return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
}

func processServiceSelection(sess *session.Context, inbound isotwenty.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwenty.ServiceSelectionReq)
	if !ok {
		return sequenceError(inbound)
	}
	offered := false
	for _, svc := range sess.OfferedServices {
		if svc.ServiceID == req.SelectedEnergyTransferServiceID {
			offered = true
		}
	}
	if !offered {
		return abort(isotwenty.TypeServiceSelection, dtype.ResponseFailedServiceSelectionInvalid)
	}
	resp := &isotwenty.ServiceSelectionRes{BaseResponse: isotwenty.BaseResponse{Hdr: isotwenty.MessageHeader{SessionID: sess.SessionID}, ResponseCode: dtype.ResponseOK}}
	// ScheduleExchange is the real next state per the energy-transfer
	// handshake; this catalog stops modeling there, so Process logs and
	// fails any session that actually reaches it.
	return state.Outcome{Response: resp, NextState: ScheduleExchange, Timeout: state.SequenceTimeout}, nil
}

func processSessionStop(sess *session.Context, inbound isotwenty.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwenty.SessionStopReq)
	if !ok {
		return sequenceError(inbound)
	}
	resp := &isotwenty.SessionStopRes{BaseResponse: isotwenty.BaseResponse{Hdr: isotwenty.MessageHeader{SessionID: sess.SessionID}, ResponseCode: dtype.ResponseOK}}
	reason := "terminated"
	if req.ChargingSession == isotwenty.ChargingSessionPause {
		reason = "paused"
	}
	sess.MarkTerminated("", true, reason)
	return state.Outcome{Response: resp, NextState: "", Timeout: 0, Terminate: true}, nil
}
