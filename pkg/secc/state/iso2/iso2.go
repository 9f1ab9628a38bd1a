// Package iso2 implements the ISO 15118-2 per-session state machine: one
// function per state, dispatching on the inbound message's concrete type,
// validating sequence and semantics, and producing the named successor
// state the session handler advances to.
package iso2

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwo"
	"github.com/mash-protocol/mash-go/pkg/evse"
	"github.com/mash-protocol/mash-go/pkg/failedresponse"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
	"github.com/mash-protocol/mash-go/pkg/secc/state"
	"github.com/mash-protocol/mash-go/pkg/security"
)

// State names, used as both the current-state key the handler tracks and
// the NextState value states return.
const (
	SessionSetup            = "SessionSetup"
	ServiceDiscovery        = "ServiceDiscovery"
	ServiceDetail           = "ServiceDetail"
	PaymentServiceSelection = "PaymentServiceSelection"
	CertificateInstallation = "CertificateInstallation"
	PaymentDetails          = "PaymentDetails"
	Authorization           = "Authorization"
	ChargeParameterDiscovery = "ChargeParameterDiscovery"
	PowerDelivery           = "PowerDelivery"
	ChargingStatus          = "ChargingStatus"
	CurrentDemand           = "CurrentDemand"
	MeteringReceipt         = "MeteringReceipt"
	SessionStop             = "SessionStop"
	CableCheck              = "CableCheck"
	PreCharge               = "PreCharge"
	WeldingDetection        = "WeldingDetection"
)

// Deps bundles every collaborator a state function may need: the EVSE
// controller, the PKI roots/keys security services consult, and a clock
// seam for deterministic tests.
type Deps struct {
	EVSE evse.Controller

	// MORoot is the Mobility Operator root the contract certificate
	// chain presented in PaymentDetails is verified against.
	MORoot *x509.CertPool
	// V2GRoot is the root OEM provisioning certificates (presented in
	// CertificateInstallation) are verified against.
	V2GRoot *x509.CertPool
	// Revocation is consulted by every chain verification; nil defaults
	// to never-revoked.
	Revocation security.RevocationChecker

	// CPSCertChain and CPSSigningKey are the Certificate Provisioning
	// Service's own chain/key, used to sign CertificateInstallationRes.
	CPSCertChain  dtype.CertificateChain
	CPSSigningKey *ecdsa.PrivateKey

	// ContractPrivateKey is the contract private key CertificateInstallation
	// wraps for the EV. A real CPS mints one per installation; the engine
	// itself never generates key material beyond what this field supplies.
	ContractPrivateKey []byte

	// AllowPnC gates whether PnC is offered alongside EIM in
	// ServiceDiscovery; it is only honored when the session is on TLS.
	AllowPnC bool

	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// abort builds the Outcome for a failed response: clone the registry
// template for the given request type, override its code, and terminate.
func abort(reqType isotwo.RequestType, code dtype.ResponseCode) (state.Outcome, error) {
	resp, err := failedresponse.LookupISO2(reqType)
	if err != nil {
		return state.Outcome{}, err
	}
	resp.SetCode(code)
	return state.Outcome{Response: resp, NextState: SessionStop, Terminate: true}, nil
}

// sequenceError is the shared "unexpected message type" handler every
// state falls back to when inbound doesn't match any accepted type.
func sequenceError(inbound isotwo.Request) (state.Outcome, error) {
	return abort(inbound.Type(), dtype.ResponseFailedSequenceError)
}

// validateChargingProfile checks every entry of a PowerDeliveryReq's
// charging profile independently and aggregates the failures, so a
// profile with several bad entries is rejected for all of them at once
// rather than only ever reporting the first.
func validateChargingProfile(entries []isotwo.ChargingProfileEntry) error {
	if len(entries) == 0 {
		return errors.New("charging profile empty")
	}

	var errs error
	var lastStart uint32
	for i, e := range entries {
		if i > 0 && e.StartInterval <= lastStart {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: start interval %d not increasing from %d", i, e.StartInterval, lastStart))
		}
		if e.MaxPower.Value <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: non-positive max power", i))
		}
		lastStart = e.StartInterval
	}
	return errs
}

// Process dispatches inbound to the handler for the named current state.
func Process(ctx context.Context, deps Deps, sess *session.Context, current string, inbound isotwo.Request) (state.Outcome, error) {
	switch current {
	case SessionSetup:
		return processSessionSetup(deps, sess, inbound)
	case ServiceDiscovery:
		return processServiceDiscovery(ctx, deps, sess, inbound)
	case ServiceDetail:
		return processServiceDetail(sess, inbound)
	case PaymentServiceSelection:
		return processPaymentServiceSelection(sess, inbound)
	case CertificateInstallation:
		return processCertificateInstallation(deps, sess, inbound)
	case PaymentDetails:
		return processPaymentDetails(deps, sess, inbound)
	case Authorization:
		return processAuthorization(ctx, deps, sess, inbound)
	case ChargeParameterDiscovery:
		return processChargeParameterDiscovery(ctx, deps, sess, inbound)
	case PowerDelivery:
		return processPowerDelivery(ctx, deps, sess, inbound)
	case ChargingStatus:
		return processChargingStatus(ctx, deps, sess, inbound)
	case CurrentDemand:
		return processCurrentDemand(ctx, deps, sess, inbound)
	case MeteringReceipt:
		return processMeteringReceipt(ctx, deps, sess, inbound)
	case SessionStop:
		return processSessionStop(sess, inbound)
	case CableCheck:
		return processCableCheck(ctx, deps, sess, inbound)
	case PreCharge:
		return processPreCharge(ctx, deps, sess, inbound)
	case WeldingDetection:
		return processWeldingDetection(ctx, deps, sess, inbound)
	default:
		return state.Outcome{}, fmt.Errorf("iso2: unknown state %q", current)
	}
}

func processSessionSetup(deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwo.SessionSetupReq)
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
		// A non-zero id here was matched against the session store by the
		// handler, so this is a resume. A non-matching id never reaches
		// this branch: the handler leaves SessionID empty for it, and the
		// case above mints a fresh one.
		code = dtype.ResponseOKOldSessionJoined
	}

	sess.EVCCID = req.EVCCID
	sess.ProtocolVersion = session.ProtocolISO15118_2

	resp := &isotwo.SessionSetupRes{
		BaseResponse: isotwo.BaseResponse{ResponseCode: code},
		Timestamp:    deps.now().Unix(),
	}
	if id, err := deps.EVSE.EVSEID(context.Background()); err == nil {
		resp.EVSEID = id
	}

	return state.Outcome{Response: resp, NextState: ServiceDiscovery, Timeout: state.SequenceTimeout}, nil
}

func processServiceDiscovery(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case isotwo.ServiceDiscoveryReq:
		modes, err := deps.EVSE.SupportedEnergyTransferModes(ctx)
		if err != nil {
			return state.Outcome{}, err
		}

		authOptions := []dtype.AuthOption{dtype.AuthEIM}
		if sess.SelectedAuthOption != nil {
			authOptions = []dtype.AuthOption{*sess.SelectedAuthOption}
		} else if deps.AllowPnC && sess.IsTLS {
			authOptions = append(authOptions, dtype.AuthPnC)
		}
		sess.OfferedAuthOptions = authOptions

		services := []dtype.ServiceDetails{{ServiceID: 1, ServiceCategory: dtype.ServiceCategoryCharging, FreeService: false}}
		if deps.AllowPnC && sess.IsTLS {
			services = append(services, dtype.ServiceDetails{ServiceID: 2, ServiceCategory: dtype.ServiceCategoryCertificate, FreeService: true})
		}
		sess.OfferedServices = services
		sess.Visited(ServiceDiscovery)

		resp := &isotwo.ServiceDiscoveryRes{
			BaseResponse:                 isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
			AuthOptions:                  authOptions,
			ChargeServiceID:              1,
			SupportedEnergyTransferModes: modes,
			OtherServices:                services[1:],
		}
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil

	case isotwo.ServiceDetailReq:
		if !sess.Visited(ServiceDiscovery) {
			return sequenceError(inbound)
		}
		return processServiceDetail(sess, req)

	case isotwo.PaymentServiceSelectionReq:
		if !sess.Visited(ServiceDiscovery) {
			return sequenceError(inbound)
		}
		return processPaymentServiceSelection(sess, req)

	default:
		return sequenceError(inbound)
	}
}

func processServiceDetail(sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case isotwo.ServiceDetailReq:
		// Only the Certificate service (id 2) carries a parameter set
		// ("Installation") in this catalog.
		var params []uint16
		if req.ServiceID == 2 {
			params = []uint16{1}
		}
		resp := &isotwo.ServiceDetailRes{
			BaseResponse:    isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
			ServiceID:       req.ServiceID,
			ParameterSetIDs: params,
		}
		sess.Visited(ServiceDetail)
		return state.Outcome{Response: resp, NextState: ServiceDiscovery, Timeout: state.SequenceTimeout}, nil

	case isotwo.PaymentServiceSelectionReq:
		return processPaymentServiceSelection(sess, req)

	default:
		return sequenceError(inbound)
	}
}

func processPaymentServiceSelection(sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case isotwo.PaymentServiceSelectionReq:
		hasCharge := false
		for _, id := range req.SelectedServices {
			if id == 1 {
				hasCharge = true
			}
		}
		if !hasCharge {
			return abort(isotwo.TypePaymentServiceSelection, dtype.ResponseFailedNoChargeServiceSelected)
		}
		for _, id := range req.SelectedServices {
			offered := false
			for _, svc := range sess.OfferedServices {
				if svc.ServiceID == id {
					offered = true
					break
				}
			}
			if !offered {
				return abort(isotwo.TypePaymentServiceSelection, dtype.ResponseFailedServiceSelectionInvalid)
			}
		}

		optionOffered := false
		for _, opt := range sess.OfferedAuthOptions {
			if opt == req.SelectedAuthOption {
				optionOffered = true
			}
		}
		if !optionOffered {
			return abort(isotwo.TypePaymentServiceSelection, dtype.ResponseFailedPaymentSelectionInvalid)
		}
		sess.SelectedAuthOption = &req.SelectedAuthOption

		resp := &isotwo.PaymentServiceSelectionRes{BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseOK}}

		if req.SelectedAuthOption == dtype.AuthPnC {
			return state.Outcome{Response: resp, NextState: CertificateInstallation, Timeout: state.SequenceTimeout}, nil
		}
		return state.Outcome{Response: resp, NextState: Authorization, Timeout: state.SequenceTimeout}, nil

	default:
		return sequenceError(inbound)
	}
}

func processCertificateInstallation(deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwo.CertificateInstallationReq)
	if !ok {
		return sequenceError(inbound)
	}

	leaf, err := security.VerifyChain(req.OEMProvisioningCertChain.Leaf, req.OEMProvisioningCertChain.Intermediates, deps.V2GRoot, deps.Revocation)
	if err != nil {
		return mapChainError(isotwo.TypeCertificateInstallation, err)
	}
	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return abort(isotwo.TypeCertificateInstallation, dtype.ResponseFailedSignatureError)
	}
	if err := security.Verify(pub, req.Signature, req.OEMProvisioningCertChain.Leaf); err != nil {
		return abort(isotwo.TypeCertificateInstallation, dtype.ResponseFailedSignatureError)
	}

	ephemeralPub, err := ecdhPublicKeyFromCert(leaf)
	if err != nil {
		return abort(isotwo.TypeCertificateInstallation, dtype.ResponseFailed)
	}
	encryptedKey, dhPub, err := security.EncryptContractPrivateKey(ephemeralPub, deps.ContractPrivateKey)
	if err != nil {
		return abort(isotwo.TypeCertificateInstallation, dtype.ResponseFailed)
	}

	emaid := leaf.Subject.CommonName
	contractChain := dtype.CertificateChain{Leaf: req.OEMProvisioningCertChain.Leaf}

	resp := &isotwo.CertificateInstallationRes{
		BaseResponse:        isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
		ContractCertChain:   contractChain,
		CPSCertChain:        deps.CPSCertChain,
		EncryptedPrivateKey: encryptedKey,
		DHPublicKey:         dhPub,
		EMAID:               emaid,
	}
	if deps.CPSSigningKey != nil {
		sig, err := security.Sign(deps.CPSSigningKey, resp.SignedElements()[0], resp.SignedElements()[1], resp.SignedElements()[2], resp.SignedElements()[3])
		if err == nil {
			resp.Signature = sig
		}
	}

	return state.Outcome{Response: resp, NextState: PaymentDetails, Timeout: state.SequenceTimeout}, nil
}

func processPaymentDetails(deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwo.PaymentDetailsReq)
	if !ok {
		return sequenceError(inbound)
	}

	if _, err := security.VerifyChain(req.ContractCertChain.Leaf, req.ContractCertChain.Intermediates, deps.MORoot, deps.Revocation); err != nil {
		return mapChainError(isotwo.TypePaymentDetails, err)
	}
	sess.ContractCertChain = &req.ContractCertChain

	challenge := make([]byte, 16)
	_, _ = randRead(challenge)

	resp := &isotwo.PaymentDetailsRes{
		BaseResponse:  isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
		GenChallenge:  challenge,
		EVSETimestamp: deps.now().Unix(),
	}
	return state.Outcome{Response: resp, NextState: Authorization, Timeout: state.SequenceTimeout}, nil
}

func processAuthorization(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwo.AuthorizationReq)
	if !ok {
		return sequenceError(inbound)
	}

	if sess.SelectedAuthOption != nil && *sess.SelectedAuthOption == dtype.AuthPnC {
		if sess.ContractCertChain == nil {
			return abort(isotwo.TypeAuthorization, dtype.ResponseFailedCertChainError)
		}
		leaf, err := x509.ParseCertificate(sess.ContractCertChain.Leaf)
		if err != nil {
			return abort(isotwo.TypeAuthorization, dtype.ResponseFailedCertChainError)
		}
		pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return abort(isotwo.TypeAuthorization, dtype.ResponseFailedSignatureError)
		}
		if err := security.Verify(pub, req.Signature, req.ID); err != nil {
			return abort(isotwo.TypeAuthorization, dtype.ResponseFailedSignatureError)
		}
	}

	result, err := deps.EVSE.IsAuthorised(ctx)
	if err != nil {
		return state.Outcome{}, err
	}
	switch result {
	case evse.AuthOngoing:
		resp := &isotwo.AuthorizationRes{
			BaseResponse:   isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
			EVSEProcessing: dtype.ProcessingOngoing,
		}
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	case evse.AuthRejected:
		// The EVSE's business decision to reject; the more specific
		// crypto-failure codes are produced earlier in this state (bad
		// signature) or in PaymentDetails/CertificateInstallation
		// (chain/revocation), so a rejection reaching this point carries
		// the generic code.
		return abort(isotwo.TypeAuthorization, dtype.ResponseFailed)
	default:
		resp := &isotwo.AuthorizationRes{
			BaseResponse:   isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
			EVSEProcessing: dtype.ProcessingFinished,
		}
		return state.Outcome{Response: resp, NextState: ChargeParameterDiscovery, Timeout: state.SequenceTimeout}, nil
	}
}

func processChargeParameterDiscovery(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case isotwo.ChargeParameterDiscoveryReq:
		modes, err := deps.EVSE.SupportedEnergyTransferModes(ctx)
		if err != nil {
			return state.Outcome{}, err
		}
		supported := false
		for _, m := range modes {
			if m == req.RequestedEnergyTransferMode {
				supported = true
			}
		}
		if !supported {
			return abort(isotwo.TypeChargeParameterDiscovery, dtype.ResponseFailedWrongEnergyTransferMode)
		}
		sess.SelectedEnergyMode = &req.RequestedEnergyTransferMode

		resp := &isotwo.ChargeParameterDiscoveryRes{
			BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
		}

		if req.RequestedEnergyTransferMode.IsDC() {
			dc, err := deps.EVSE.DCChargeParameter(ctx)
			if err != nil {
				return state.Outcome{}, err
			}
			resp.DCChargeParameter = &isotwo.DCEVSEChargeParameter{
				Status:           dc.Status,
				MaxCurrentLimit:  dc.MaxCurrentLimit,
				MaxPowerLimit:    dc.MaxPowerLimit,
				MaxVoltageLimit:  dc.MaxVoltageLimit,
				MinCurrentLimit:  dc.MinCurrentLimit,
				MinVoltageLimit:  dc.MinVoltageLimit,
				PeakCurrentRipple: dc.PeakCurrentRipple,
			}
		} else {
			status, nominal, maxCurrent, err := deps.EVSE.ACChargeParameter(ctx)
			if err != nil {
				return state.Outcome{}, err
			}
			resp.ACChargeParameter = &isotwo.ACEVSEChargeParameter{Status: status, NominalVoltage: nominal, MaxCurrent: maxCurrent}
		}

		schedules, err := deps.EVSE.SAScheduleList(ctx, req.MaxEntriesSAScheduleTuple)
		if err != nil {
			return state.Outcome{}, err
		}
		sess.OfferedSchedules = schedules

		if len(schedules) == 0 {
			resp.EVSEProcessing = dtype.ProcessingOngoing
			return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
		}
		resp.EVSEProcessing = dtype.ProcessingFinished
		resp.SAScheduleList = schedules
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil

	case isotwo.PowerDeliveryReq:
		return processPowerDelivery(ctx, deps, sess, req)

	default:
		return sequenceError(inbound)
	}
}

func processPowerDelivery(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case isotwo.PowerDeliveryReq:
		tupleOffered := false
		for _, sched := range sess.OfferedSchedules {
			if sched.ID == req.SAScheduleTupleID {
				tupleOffered = true
			}
		}
		if !tupleOffered {
			return abort(isotwo.TypePowerDelivery, dtype.ResponseFailedTariffSelectionInvalid)
		}

		switch req.ChargeProgress {
		case isotwo.ChargeProgressStart:
			if err := validateChargingProfile(req.ChargingProfile); err != nil {
				return abort(isotwo.TypePowerDelivery, dtype.ResponseFailedChargingProfileInvalid)
			}
			sess.SelectedSchedule = &req.SAScheduleTupleID
			sess.ChargeProgressStarted = true
			if err := deps.EVSE.SetHLCCharging(ctx, true); err != nil {
				return state.Outcome{}, err
			}
			resp, err := powerDeliveryStatus(ctx, deps, sess)
			if err != nil {
				return state.Outcome{}, err
			}
			return state.Outcome{Response: resp, NextState: ChargingStatus, Timeout: state.SequenceTimeout}, nil

		case isotwo.ChargeProgressStop:
			sess.ChargeProgressStarted = false
			if err := deps.EVSE.SetHLCCharging(ctx, false); err != nil {
				return state.Outcome{}, err
			}
			resp, err := powerDeliveryStatus(ctx, deps, sess)
			if err != nil {
				return state.Outcome{}, err
			}
			return state.Outcome{Response: resp, NextState: SessionStop, Timeout: state.SequenceTimeout}, nil

		case isotwo.ChargeProgressRenegotiate:
			if !sess.ChargeProgressStarted {
				return abort(isotwo.TypePowerDelivery, dtype.ResponseFailed)
			}
			resp, err := powerDeliveryStatus(ctx, deps, sess)
			if err != nil {
				return state.Outcome{}, err
			}
			return state.Outcome{Response: resp, NextState: ChargeParameterDiscovery, Timeout: state.SequenceTimeout}, nil

		default:
			return abort(isotwo.TypePowerDelivery, dtype.ResponseFailed)
		}

	case isotwo.ChargeParameterDiscoveryReq:
		return processChargeParameterDiscovery(ctx, deps, sess, req)
	case isotwo.ChargingStatusReq:
		return processChargingStatus(ctx, deps, sess, req)
	case isotwo.SessionStopReq:
		return processSessionStop(sess, req)

	default:
		return sequenceError(inbound)
	}
}

func powerDeliveryStatus(ctx context.Context, deps Deps, sess *session.Context) (*isotwo.PowerDeliveryRes, error) {
	resp := &isotwo.PowerDeliveryRes{BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseOK}}
	if sess.SelectedEnergyMode != nil && sess.SelectedEnergyMode.IsDC() {
		status, err := deps.EVSE.DCStatus(ctx)
		if err != nil {
			return nil, err
		}
		resp.DCEVSEStatus = &status
	} else {
		status, err := deps.EVSE.ACStatus(ctx)
		if err != nil {
			return nil, err
		}
		resp.ACEVSEStatus = &status
	}
	return resp, nil
}

func processChargingStatus(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case isotwo.ChargingStatusReq:
		status, err := deps.EVSE.ACStatus(ctx)
		if err != nil {
			return state.Outcome{}, err
		}
		meter, err := deps.EVSE.MeterInfo(ctx)
		if err != nil {
			return state.Outcome{}, err
		}
		sess.SentMeterInfo = &meter

		evseID, _ := deps.EVSE.EVSEID(ctx)
		tupleID := uint8(0)
		if sess.SelectedSchedule != nil {
			tupleID = *sess.SelectedSchedule
		}
		receiptRequired := meter.SigMeterReading != nil

		resp := &isotwo.ChargingStatusRes{
			BaseResponse:      isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
			EVSEID:            evseID,
			SAScheduleTupleID: tupleID,
			ACEVSEStatus:      status,
			MeterInfo:         &meter,
			ReceiptRequired:   receiptRequired,
		}
		if receiptRequired {
			return state.Outcome{Response: resp, NextState: MeteringReceipt, Timeout: state.SequenceTimeout}, nil
		}
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil

	case isotwo.PowerDeliveryReq:
		return processPowerDelivery(ctx, deps, sess, req)
	case isotwo.MeteringReceiptReq:
		return processMeteringReceipt(ctx, deps, sess, req)

	default:
		return sequenceError(inbound)
	}
}

func processCurrentDemand(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case isotwo.CurrentDemandReq:
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
		meter, err := deps.EVSE.MeterInfo(ctx)
		if err != nil {
			return state.Outcome{}, err
		}
		sess.SentMeterInfo = &meter

		evseID, _ := deps.EVSE.EVSEID(ctx)
		tupleID := uint8(0)
		if sess.SelectedSchedule != nil {
			tupleID = *sess.SelectedSchedule
		}

		resp := &isotwo.CurrentDemandRes{
			BaseResponse:             isotwo.BaseResponse{ResponseCode: dtype.ResponseOK},
			DCEVSEStatus:             status,
			EVSEPresentVoltage:       voltage,
			EVSEPresentCurrent:       current,
			EVSECurrentLimitAchieved: current.Value >= req.EVTargetCurrent.Value,
			EVSEVoltageLimitAchieved: voltage.Value >= req.EVTargetVoltage.Value,
			EVSEID:                   evseID,
			SAScheduleTupleID:        tupleID,
			MeterInfo:                &meter,
			ReceiptRequired:          meter.SigMeterReading != nil,
		}
		if resp.ReceiptRequired {
			return state.Outcome{Response: resp, NextState: MeteringReceipt, Timeout: state.CurrentDemandTimeout}, nil
		}
		return state.Outcome{Response: resp, NextState: "", Timeout: state.CurrentDemandTimeout}, nil

	case isotwo.PowerDeliveryReq:
		return processPowerDelivery(ctx, deps, sess, req)
	case isotwo.MeteringReceiptReq:
		return processMeteringReceipt(ctx, deps, sess, req)

	default:
		return sequenceError(inbound)
	}
}

func processMeteringReceipt(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	switch req := inbound.(type) {
	case isotwo.MeteringReceiptReq:
		if sess.SentMeterInfo == nil || !meterInfoEqual(*sess.SentMeterInfo, req.MeterInfo) {
			return abort(isotwo.TypeMeteringReceipt, dtype.ResponseFailedMeteringSignatureNotValid)
		}
		if sess.SelectedAuthOption != nil && *sess.SelectedAuthOption == dtype.AuthPnC && sess.ContractCertChain != nil {
			leaf, err := x509.ParseCertificate(sess.ContractCertChain.Leaf)
			if err == nil {
				if pub, ok := leaf.PublicKey.(*ecdsa.PublicKey); ok {
					if err := security.Verify(pub, req.Signature, req.MeterInfo); err != nil {
						return abort(isotwo.TypeMeteringReceipt, dtype.ResponseFailedSignatureError)
					}
				}
			}
		}

		resp := &isotwo.MeteringReceiptRes{BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseOK}}
		if sess.SelectedEnergyMode != nil && sess.SelectedEnergyMode.IsDC() {
			next := CurrentDemand
			return state.Outcome{Response: resp, NextState: next, Timeout: state.SequenceTimeout}, nil
		}
		return state.Outcome{Response: resp, NextState: ChargingStatus, Timeout: state.SequenceTimeout}, nil

	case isotwo.PowerDeliveryReq:
		return processPowerDelivery(ctx, deps, sess, req)
	case isotwo.ChargingStatusReq:
		return processChargingStatus(ctx, deps, sess, req)
	case isotwo.CurrentDemandReq:
		return processCurrentDemand(ctx, deps, sess, req)

	default:
		return sequenceError(inbound)
	}
}

func processSessionStop(sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwo.SessionStopReq)
	if !ok {
		return sequenceError(inbound)
	}
	resp := &isotwo.SessionStopRes{BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseOK}}
	sess.MarkTerminated("", true, map[bool]string{true: "terminated", false: "paused"}[req.Terminate])
	return state.Outcome{Response: resp, NextState: "", Timeout: 0, Terminate: true}, nil
}

func processCableCheck(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	if _, ok := inbound.(isotwo.CableCheckReq); !ok {
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
	resp := &isotwo.CableCheckRes{BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseOK}, DCEVSEStatus: status, EVSEProcessing: processing}
	if processing == dtype.ProcessingOngoing {
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	}
	return state.Outcome{Response: resp, NextState: PreCharge, Timeout: state.SequenceTimeout}, nil
}

func processPreCharge(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwo.PreChargeReq)
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
	resp := &isotwo.PreChargeRes{BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseOK}, DCEVSEStatus: status, EVSEPresentVoltage: voltage}
	if voltage.Value < req.EVTargetVoltage.Value {
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	}
	return state.Outcome{Response: resp, NextState: PowerDelivery, Timeout: state.SequenceTimeout}, nil
}

func processWeldingDetection(ctx context.Context, deps Deps, sess *session.Context, inbound isotwo.Request) (state.Outcome, error) {
	req, ok := inbound.(isotwo.WeldingDetectionReq)
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
	resp := &isotwo.WeldingDetectionRes{BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseOK}, DCEVSEStatus: status, EVSEPresentVoltage: voltage}
	if req.EVProcessing == dtype.ProcessingOngoing {
		return state.Outcome{Response: resp, NextState: "", Timeout: state.SequenceTimeout}, nil
	}
	return state.Outcome{Response: resp, NextState: SessionStop, Timeout: state.SequenceTimeout}, nil
}

func meterInfoEqual(a, b dtype.MeterInfo) bool {
	return a.MeterID == b.MeterID && a.MeterReading == b.MeterReading && a.TMeter == b.TMeter
}

func mapChainError(reqType isotwo.RequestType, err error) (state.Outcome, error) {
	switch {
	case errors.Is(err, security.ErrCertExpired), errors.Is(err, security.ErrCertNotYetValid):
		return abort(reqType, dtype.ResponseFailedCertificateExpired)
	case errors.Is(err, security.ErrRevoked):
		return abort(reqType, dtype.ResponseFailedCertificateRevoked)
	default:
		return abort(reqType, dtype.ResponseFailedCertChainError)
	}
}
