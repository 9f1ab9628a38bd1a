// Package din implements the DIN SPEC 70121 per-session state machine: a
// simpler, DC-only, EIM-only variant of the ISO 15118-2 sequence sharing
// the same state-as-data shape.
package din

import (
	"context"
	"fmt"
	"time"

	"github.com/mash-protocol/mash-go/pkg/catalog/din"
	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/evse"
	"github.com/mash-protocol/mash-go/pkg/failedresponse"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
	"github.com/mash-protocol/mash-go/pkg/secc/state"
)

const (
	SessionSetup               = "SessionSetup"
	ServiceDiscovery            = "ServiceDiscovery"
	ServicePaymentSelection     = "ServicePaymentSelection"
	ContractAuthentication      = "ContractAuthentication"
	ChargeParameterDiscovery    = "ChargeParameterDiscovery"
	CableCheck                  = "CableCheck"
	PreCharge                   = "PreCharge"
	PowerDelivery               = "PowerDelivery"
	CurrentDemand               = "CurrentDemand"
	WeldingDetection            = "WeldingDetection"
	SessionStop                 = "SessionStop"
)

// Deps bundles the EVSE controller and clock seam the DIN state machine
// needs. DIN SPEC 70121 has no PnC/PKI surface, so Deps carries none of
// the security collaborators iso2.Deps does.
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

func abort(reqType din.RequestType, code dtype.ResponseCode) (state.Outcome, error) {
	resp, err := failedresponse.LookupDIN(reqType)
	if err != nil {
		return state.Outcome{}, err
	}
	resp.SetCode(code)
	return state.Outcome{Response: resp, NextState: SessionStop, Terminate: true}, nil
}

func sequenceError(inbound din.Request) (state.Outcome, error) {
	return abort(inbound.Type(), dtype.ResponseFailedSequenceError)
}

// Process dispatches inbound to the handler for the named current state.
func Process(ctx context.Context, deps Deps, sess *session.Context, current string, inbound din.Request) (state.Outcome, error) {
	switch current {
	case SessionSetup:
		return processSessionSetup(deps, sess, inbound)
	case ServiceDiscovery:
		return processServiceDiscovery(ctx, deps, sess, inbound)
	case ServicePaymentSelection:
		return processServicePaymentSelection(sess, inbound)
	case ContractAuthentication:
		return processContractAuthentication(ctx, deps, sess, inbound)
	case ChargeParameterDiscovery:
		return processChargeParameterDiscovery(ctx, deps, sess, inbound)
	case CableCheck:
		return processCableCheck(ctx, deps, sess, inbound)
	case PreCharge:
		return processPreCharge(ctx, deps, sess, inbound)
	case PowerDelivery:
		return processPowerDelivery(ctx, deps, sess, inbound)
	case CurrentDemand:
		return processCurrentDemand(ctx, deps, sess, inbound)
	case WeldingDetection:
		return processWeldingDetection(ctx, deps, sess, inbound)
	case SessionStop:
		return processSessionStop(sess, inbound)
	default:
		return state.Outcome{}, fmt.Errorf("din: unknown state %q", current)
	}
}

func processSessionSetup(deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	req, ok := inbound.(din.SessionSetupReq)
	if !ok {
		return sequenceError(inbound)
	}

	code := dtype.ResponseOKNewSessionEstablished
	switch {
	case sess.SessionID == "" || sess.SessionID == session.ZeroSessionID:
		id, err := session.NewSessionID()
		if err != nil {
			return state.Outcome{}, err
		}
		sess.SessionID = id
	default:
		code = dtype.ResponseOKOldSessionJoined
	}

	sess.EVCCID = req.EVCCID
	sess.ProtocolVersion = session.ProtocolDINSPEC70121
	sess.OfferedAuthOptions = []dtype.AuthOption{dtype.AuthEIM}

	resp := &din.SessionSetupRes{
		BaseResponse: din.BaseResponse{ResponseCode: code},
		Timestamp:    deps.now().Unix(),
	}
	if id, err := deps.EVSE.EVSEID(context.Background()); err == nil {
		resp.EVSEID = id
	}
	return state.Outcome{Response: resp, NextState: ServiceDiscovery, Timeout: state.SequenceTimeout}, nil
}

func processServiceDiscovery(ctx context.Context, deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	req, ok := inbound.(din.ServiceDiscoveryReq)
	if !ok {
		return sequenceError(inbound)
	}
	_ = req

	modes, err := deps.EVSE.SupportedEnergyTransferModes(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	resp := &din.ServiceDiscoveryRes{
		BaseResponse:                 din.BaseResponse{ResponseCode: dtype.ResponseOK},
		AuthOptions:                  sess.OfferedAuthOptions,
		ChargeServiceID:              1,
		SupportedEnergyTransferModes: modes,
	}
	return state.Outcome{Response: resp, NextState: ServicePaymentSelection, Timeout: state.SequenceTimeout}, nil
}

func processServicePaymentSelection(sess *session.Context, inbound din.Request) (state.Outcome, error) {
	req, ok := inbound.(din.ServicePaymentSelectionReq)
	if !ok {
		return sequenceError(inbound)
	}
	if req.SelectedServiceID != 1 {
		return abort(din.TypeServicePaymentSelection, dtype.ResponseFailedServiceSelectionInvalid)
	}
	if req.SelectedAuthOption != dtype.AuthEIM {
		return abort(din.TypeServicePaymentSelection, dtype.ResponseFailedPaymentSelectionInvalid)
	}
	sess.SelectedAuthOption = &req.SelectedAuthOption

	resp := &din.ServicePaymentSelectionRes{BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseOK}}
	return state.Outcome{Response: resp, NextState: ContractAuthentication, Timeout: state.SequenceTimeout}, nil
}

func processContractAuthentication(ctx context.Context, deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	if _, ok := inbound.(din.ContractAuthenticationReq); !ok {
		return sequenceError(inbound)
	}
	result, err := deps.EVSE.IsAuthorised(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	switch result {
	case evse.AuthOngoing:
		resp := &din.ContractAuthenticationRes{
			BaseResponse:   din.BaseResponse{ResponseCode: dtype.ResponseOK},
			EVSEProcessing: dtype.ProcessingOngoing,
		}
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	case evse.AuthRejected:
		return abort(din.TypeContractAuthentication, dtype.ResponseFailed)
	default:
		resp := &din.ContractAuthenticationRes{
			BaseResponse:   din.BaseResponse{ResponseCode: dtype.ResponseOK},
			EVSEProcessing: dtype.ProcessingFinished,
		}
		return state.Outcome{Response: resp, NextState: ChargeParameterDiscovery, Timeout: state.SequenceTimeout}, nil
	}
}

func processChargeParameterDiscovery(ctx context.Context, deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	req, ok := inbound.(din.ChargeParameterDiscoveryReq)
	if !ok {
		return sequenceError(inbound)
	}
	modes, err := deps.EVSE.SupportedEnergyTransferModes(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	supported := false
	for _, m := range modes {
		if m == req.EVRequestedEnergyTransferType {
			supported = true
		}
	}
	if !supported {
		return abort(din.TypeChargeParameterDiscovery, dtype.ResponseFailedWrongEnergyTransferMode)
	}
	sess.SelectedEnergyMode = &req.EVRequestedEnergyTransferType

	dc, err := deps.EVSE.DCChargeParameter(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	schedules, err := deps.EVSE.SAScheduleList(ctx, 0)
	if err != nil {
		return state.Outcome{}, err
	}
	sess.OfferedSchedules = schedules

	resp := &din.ChargeParameterDiscoveryRes{
		BaseResponse:   din.BaseResponse{ResponseCode: dtype.ResponseOK},
		EVSEProcessing: dtype.ProcessingFinished,
		DCChargeParameter: din.DCEVSEChargeParameter{
			Status:            dc.Status,
			MaxCurrentLimit:   dc.MaxCurrentLimit,
			MaxPowerLimit:     dc.MaxPowerLimit,
			MaxVoltageLimit:   dc.MaxVoltageLimit,
			MinCurrentLimit:   dc.MinCurrentLimit,
			MinVoltageLimit:   dc.MinVoltageLimit,
			PeakCurrentRipple: dc.PeakCurrentRipple,
		},
		SAScheduleList: schedules,
	}
	return state.Outcome{Response: resp, NextState: CableCheck, Timeout: state.SequenceTimeout}, nil
}

func processCableCheck(ctx context.Context, deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	if _, ok := inbound.(din.CableCheckReq); !ok {
		return sequenceError(inbound)
	}
	status, err := deps.EVSE.DCStatus(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	processing, err := deps.EVSE.CableCheckStatus(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	resp := &din.CableCheckRes{BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseOK}, DCEVSEStatus: status, EVSEProcessing: processing}
	if processing == dtype.ProcessingOngoing {
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	}
	return state.Outcome{Response: resp, NextState: PreCharge, Timeout: state.SequenceTimeout}, nil
}

func processPreCharge(ctx context.Context, deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	req, ok := inbound.(din.PreChargeReq)
	if !ok {
		return sequenceError(inbound)
	}
	status, err := deps.EVSE.DCStatus(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	voltage, err := deps.EVSE.PresentVoltage(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	resp := &din.PreChargeRes{BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseOK}, DCEVSEStatus: status, EVSEPresentVoltage: voltage}
	if voltage.Value < req.EVTargetVoltage.Value {
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	}
	return state.Outcome{Response: resp, NextState: PowerDelivery, Timeout: state.SequenceTimeout}, nil
}

func processPowerDelivery(ctx context.Context, deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	req, ok := inbound.(din.PowerDeliveryReq)
	if !ok {
		return sequenceError(inbound)
	}
	tupleOffered := false
	for _, sched := range sess.OfferedSchedules {
		if sched.ID == req.SAScheduleTupleID {
			tupleOffered = true
		}
	}
	if !tupleOffered {
		return abort(din.TypePowerDelivery, dtype.ResponseFailedTariffSelectionInvalid)
	}

	status, err := deps.EVSE.DCStatus(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	resp := &din.PowerDeliveryRes{BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseOK}, DCEVSEStatus: status}

	switch req.ChargeProgress {
	case din.ChargeProgressStart:
		sess.SelectedSchedule = &req.SAScheduleTupleID
		sess.ChargeProgressStarted = true
		if err := deps.EVSE.SetHLCCharging(ctx, true); err != nil {
			return state.Outcome{}, err
		}
		return state.Outcome{Response: resp, NextState: CurrentDemand, Timeout: state.SequenceTimeout}, nil
	case din.ChargeProgressStop:
		sess.ChargeProgressStarted = false
		if err := deps.EVSE.SetHLCCharging(ctx, false); err != nil {
			return state.Outcome{}, err
		}
		return state.Outcome{Response: resp, NextState: WeldingDetection, Timeout: state.SequenceTimeout}, nil
	default:
		return abort(din.TypePowerDelivery, dtype.ResponseFailed)
	}
}

func processCurrentDemand(ctx context.Context, deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case din.CurrentDemandReq:
		status, err := deps.EVSE.DCStatus(ctx)
		if err != nil {
			return state.Outcome{}, err
		}
		voltage, err := deps.EVSE.PresentVoltage(ctx)
		if err != nil {
			return state.Outcome{}, err
		}
		current, err := deps.EVSE.PresentCurrent(ctx)
		if err != nil {
			return state.Outcome{}, err
		}
		resp := &din.CurrentDemandRes{
			BaseResponse:             din.BaseResponse{ResponseCode: dtype.ResponseOK},
			DCEVSEStatus:             status,
			EVSEPresentVoltage:       voltage,
			EVSEPresentCurrent:       current,
			EVSECurrentLimitAchieved: current.Value >= req.EVTargetCurrent.Value,
			EVSEVoltageLimitAchieved: voltage.Value >= req.EVTargetVoltage.Value,
		}
		return state.Outcome{Response: resp, NextState: "", Timeout: state.CurrentDemandTimeout}, nil

	case din.PowerDeliveryReq:
		return processPowerDelivery(ctx, deps, sess, req)

	default:
		return sequenceError(inbound)
	}
}

func processWeldingDetection(ctx context.Context, deps Deps, sess *session.Context, inbound din.Request) (state.Outcome, error) {
	req, ok := inbound.(din.WeldingDetectionReq)
	if !ok {
		return sequenceError(inbound)
	}
	status, err := deps.EVSE.DCStatus(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	voltage, err := deps.EVSE.PresentVoltage(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	resp := &din.WeldingDetectionRes{BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseOK}, DCEVSEStatus: status, EVSEPresentVoltage: voltage}
	if req.EVProcessing == dtype.ProcessingOngoing {
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	}
	return state.Outcome{Response: resp, NextState: SessionStop, Timeout: state.SequenceTimeout}, nil
}

func processSessionStop(sess *session.Context, inbound din.Request) (state.Outcome, error) {
	if _, ok := inbound.(din.SessionStopReq); !ok {
		return sequenceError(inbound)
	}
	resp := &din.SessionStopRes{BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseOK}}
	sess.MarkTerminated("", true, "terminated")
	return state.Outcome{Response: resp, NextState: "", Timeout: 0, Terminate: true}, nil
}
