// Package failedresponse holds, for each protocol version, a pre-built
// table mapping an inbound request type to a minimal but schema-valid
// FAILED response. Every field set in these templates is the smallest
// value that still satisfies the wire schema; callers MUST override
// ResponseCode with whichever FAILED_* variant actually applies before
// sending the cloned response on.
package failedresponse

import (
	"fmt"
	"reflect"

	"github.com/mash-protocol/mash-go/pkg/catalog/din"
	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwenty"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwo"
	"github.com/mash-protocol/mash-go/pkg/codec"
)

var dcNotReady = dtype.DCEVSEStatus{
	NotificationMaxDelay: 1000,
	Notification:         dtype.NotificationStopCharging,
	IsolationStatus:       dtype.IsolationInvalid,
	StatusCode:            dtype.DCStatusEVSENotReady,
}

var dcReady = dtype.DCEVSEStatus{
	NotificationMaxDelay: 0,
	Notification:         dtype.NotificationNone,
	IsolationStatus:       dtype.IsolationValid,
	StatusCode:            dtype.DCStatusEVSEReady,
}

// DINSPEC70121 maps each DIN SPEC 70121 request type to its FAILED
// template, grounded field-for-field on init_failed_responses_din_spec_70121.
var DINSPEC70121 = map[din.RequestType]din.Response{
	din.TypeSessionSetup: &din.SessionSetupRes{
		BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		EVSEID:       "1234567",
	},
	din.TypeServiceDiscovery: &din.ServiceDiscoveryRes{
		BaseResponse:                 din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		AuthOptions:                  []dtype.AuthOption{dtype.AuthEIM},
		ChargeServiceID:               0,
		SupportedEnergyTransferModes: []dtype.EnergyTransferMode{dtype.EnergyModeDCExtended},
	},
	din.TypeServicePaymentSelection: &din.ServicePaymentSelectionRes{
		BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseFailed},
	},
	din.TypeContractAuthentication: &din.ContractAuthenticationRes{
		BaseResponse:   din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		EVSEProcessing: dtype.ProcessingFinished,
	},
	din.TypeChargeParameterDiscovery: &din.ChargeParameterDiscoveryRes{
		BaseResponse:   din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		EVSEProcessing: dtype.ProcessingFinished,
		DCChargeParameter: din.DCEVSEChargeParameter{
			Status:           dcNotReady,
			MaxCurrentLimit:  dtype.Zero(dtype.UnitAmpere),
			MaxPowerLimit:    dtype.Zero(dtype.UnitWatt),
			MaxVoltageLimit:  dtype.Zero(dtype.UnitVolt),
			MinCurrentLimit:  dtype.Zero(dtype.UnitAmpere),
			MinVoltageLimit:  dtype.Zero(dtype.UnitVolt),
			PeakCurrentRipple: dtype.Zero(dtype.UnitAmpere),
		},
	},
	din.TypeCableCheck: &din.CableCheckRes{
		BaseResponse:   din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus:   dcNotReady,
		EVSEProcessing: dtype.ProcessingFinished,
	},
	din.TypePreCharge: &din.PreChargeRes{
		BaseResponse:      din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus:      dcNotReady,
		EVSEPresentVoltage: dtype.Zero(dtype.UnitVolt),
	},
	din.TypePowerDelivery: &din.PowerDeliveryRes{
		BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus: dcNotReady,
	},
	din.TypeCurrentDemand: &din.CurrentDemandRes{
		BaseResponse:             din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus:             dcNotReady,
		EVSEPresentVoltage:        dtype.Zero(dtype.UnitVolt),
		EVSEPresentCurrent:        dtype.Zero(dtype.UnitAmpere),
		EVSECurrentLimitAchieved: false,
		EVSEVoltageLimitAchieved: false,
	},
	din.TypeWeldingDetection: &din.WeldingDetectionRes{
		BaseResponse:      din.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus:      dcNotReady,
		EVSEPresentVoltage: dtype.Zero(dtype.UnitVolt),
	},
	din.TypeSessionStop: &din.SessionStopRes{
		BaseResponse: din.BaseResponse{ResponseCode: dtype.ResponseFailed},
	},
}

// ISO15118_2 maps each ISO 15118-2 request type to its FAILED template,
// grounded field-for-field on init_failed_responses_iso_v2. Three entries
// (ChargeParameterDiscovery, PowerDelivery and MeteringReceipt) mirror
// the source's deliberately bare shape: it notes a schema root-validator
// made a fuller payload impractical to pre-build, so only the response
// code is set there (plus EVSEProcessing for ChargeParameterDiscovery).
var ISO15118_2 = map[isotwo.RequestType]isotwo.Response{
	isotwo.TypeSessionSetup: &isotwo.SessionSetupRes{
		BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		EVSEID:       "1234567",
	},
	isotwo.TypeServiceDiscovery: &isotwo.ServiceDiscoveryRes{
		BaseResponse:                 isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		AuthOptions:                  []dtype.AuthOption{dtype.AuthEIM},
		ChargeServiceID:               0,
		SupportedEnergyTransferModes: []dtype.EnergyTransferMode{dtype.EnergyModeDCCore},
	},
	isotwo.TypeServiceDetail: &isotwo.ServiceDetailRes{
		BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		ServiceID:    0,
	},
	isotwo.TypePaymentServiceSelection: &isotwo.PaymentServiceSelectionRes{
		BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
	},
	isotwo.TypeCertificateInstallation: &isotwo.CertificateInstallationRes{
		BaseResponse:        isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		ContractCertChain:   dtype.CertificateChain{Leaf: []byte{0}},
		CPSCertChain:        dtype.CertificateChain{Leaf: []byte{0}},
		EncryptedPrivateKey: []byte{},
		DHPublicKey:         []byte{},
		EMAID:               "123456789ABCDE",
	},
	isotwo.TypePaymentDetails: &isotwo.PaymentDetailsRes{
		BaseResponse:  isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		GenChallenge:  make([]byte, 16),
		EVSETimestamp: 0,
	},
	isotwo.TypeAuthorization: &isotwo.AuthorizationRes{
		BaseResponse:   isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		EVSEProcessing: dtype.ProcessingFinished,
	},
	isotwo.TypeChargeParameterDiscovery: &isotwo.ChargeParameterDiscoveryRes{
		BaseResponse:   isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		EVSEProcessing: dtype.ProcessingFinished,
	},
	isotwo.TypePowerDelivery: &isotwo.PowerDeliveryRes{
		BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
	},
	isotwo.TypeChargingStatus: &isotwo.ChargingStatusRes{
		BaseResponse:     isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		EVSEID:           "1234567",
		SAScheduleTupleID: 1,
		ACEVSEStatus: dtype.ACEVSEStatus{
			NotificationMaxDelay: 0,
			Notification:         dtype.NotificationNone,
			RCD:                   false,
		},
	},
	isotwo.TypeCableCheck: &isotwo.CableCheckRes{
		BaseResponse:   isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus:   dcReady,
		EVSEProcessing: dtype.ProcessingFinished,
	},
	isotwo.TypePreCharge: &isotwo.PreChargeRes{
		BaseResponse:      isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus:      dcReady,
		EVSEPresentVoltage: dtype.PhysicalValue{Multiplier: 0, Value: 230, Unit: dtype.UnitVolt},
	},
	isotwo.TypeCurrentDemand: &isotwo.CurrentDemandRes{
		BaseResponse:             isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus:             dcReady,
		EVSEPresentVoltage:        dtype.PhysicalValue{Multiplier: 0, Value: 230, Unit: dtype.UnitVolt},
		EVSEPresentCurrent:        dtype.PhysicalValue{Multiplier: 0, Value: 10, Unit: dtype.UnitAmpere},
		EVSECurrentLimitAchieved: false,
		EVSEVoltageLimitAchieved: false,
		EVSEPowerLimitAchieved:   false,
		EVSEID:                  "1234567",
		SAScheduleTupleID:        1,
	},
	isotwo.TypeMeteringReceipt: &isotwo.MeteringReceiptRes{
		BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
	},
	isotwo.TypeWeldingDetection: &isotwo.WeldingDetectionRes{
		BaseResponse:      isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
		DCEVSEStatus:      dcReady,
		EVSEPresentVoltage: dtype.PhysicalValue{Multiplier: 0, Value: 230, Unit: dtype.UnitVolt},
	},
	isotwo.TypeSessionStop: &isotwo.SessionStopRes{
		BaseResponse: isotwo.BaseResponse{ResponseCode: dtype.ResponseFailed},
	},
}

// isoV20Header is the fixed placeholder header every ISO 15118-20 FAILED
// template carries: a zero session id and timestamp 1, exactly as the
// source builds a single shared header up front for every v20 entry.
var isoV20Header = isotwenty.MessageHeader{SessionID: "00", Timestamp: 1}

// ISO15118_20 maps each modeled ISO 15118-20 request type to its FAILED
// template. The energy-transfer-mode specific loop messages (AC/DC charge
// loop, WPT, ACDP) are out of this module's scope and have no entry here;
// a session that reaches ScheduleExchange in pkg/secc/state/iso20 is
// failed with a generic FAILED built from the inbound request's template.
var ISO15118_20 = map[isotwenty.RequestType]isotwenty.Response{
	isotwenty.TypeSessionSetup: &isotwenty.SessionSetupRes{
		BaseResponse: isotwenty.BaseResponse{Hdr: isoV20Header, ResponseCode: dtype.ResponseFailed},
	},
	isotwenty.TypeAuthorizationSetup: &isotwenty.AuthorizationSetupRes{
		BaseResponse:       isotwenty.BaseResponse{Hdr: isoV20Header, ResponseCode: dtype.ResponseFailed},
		AuthorizationModes: []isotwenty.AuthorizationMode{isotwenty.AuthModeEIM},
	},
	isotwenty.TypeAuthorization: &isotwenty.AuthorizationRes{
		BaseResponse:   isotwenty.BaseResponse{Hdr: isoV20Header, ResponseCode: dtype.ResponseFailed},
		EVSEProcessing: dtype.ProcessingFinished,
	},
	isotwenty.TypeServiceDiscovery: &isotwenty.ServiceDiscoveryRes{
		BaseResponse: isotwenty.BaseResponse{Hdr: isoV20Header, ResponseCode: dtype.ResponseFailed},
		EnergyTransferServiceList: []dtype.ServiceDetails{
			{ServiceID: 0, ServiceCategory: dtype.ServiceCategoryCharging, FreeService: false},
		},
	},
	isotwenty.TypeServiceDetail: &isotwenty.ServiceDetailRes{
		BaseResponse: isotwenty.BaseResponse{Hdr: isoV20Header, ResponseCode: dtype.ResponseFailed},
		ServiceID:    0,
	},
	isotwenty.TypeServiceSelection: &isotwenty.ServiceSelectionRes{
		BaseResponse: isotwenty.BaseResponse{Hdr: isoV20Header, ResponseCode: dtype.ResponseFailed},
	},
	isotwenty.TypeSessionStop: &isotwenty.SessionStopRes{
		BaseResponse: isotwenty.BaseResponse{Hdr: isoV20Header, ResponseCode: dtype.ResponseFailed},
	},
}

// LookupDIN clones the FAILED template for the given DIN SPEC 70121
// request type. The clone is safe for the caller to mutate (e.g. to set
// the precise FAILED_* code) without corrupting the shared template.
func LookupDIN(t din.RequestType) (din.Response, error) {
	tmpl, ok := DINSPEC70121[t]
	if !ok {
		return nil, fmt.Errorf("failedresponse: no DIN SPEC 70121 template for %s", t)
	}
	data, err := codec.NewCBORCodec().Encode(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failedresponse: encode DIN template for %s: %w", t, err)
	}
	clone := reflect.New(reflect.TypeOf(tmpl).Elem()).Interface()
	if err := codec.NewCBORCodec().Decode(data, clone); err != nil {
		return nil, fmt.Errorf("failedresponse: decode DIN template for %s: %w", t, err)
	}
	return clone.(din.Response), nil
}

// LookupISO2 clones the FAILED template for the given ISO 15118-2 request
// type.
func LookupISO2(t isotwo.RequestType) (isotwo.Response, error) {
	tmpl, ok := ISO15118_2[t]
	if !ok {
		return nil, fmt.Errorf("failedresponse: no ISO 15118-2 template for %s", t)
	}
	data, err := codec.NewCBORCodec().Encode(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failedresponse: encode ISO 15118-2 template for %s: %w", t, err)
	}
	clone := reflect.New(reflect.TypeOf(tmpl).Elem()).Interface()
	if err := codec.NewCBORCodec().Decode(data, clone); err != nil {
		return nil, fmt.Errorf("failedresponse: decode ISO 15118-2 template for %s: %w", t, err)
	}
	return clone.(isotwo.Response), nil
}

// LookupISO20 clones the FAILED template for the given modeled ISO
// 15118-20 request type.
func LookupISO20(t isotwenty.RequestType) (isotwenty.Response, error) {
	tmpl, ok := ISO15118_20[t]
	if !ok {
		return nil, fmt.Errorf("failedresponse: no ISO 15118-20 template for %s", t)
	}
	data, err := codec.NewCBORCodec().Encode(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failedresponse: encode ISO 15118-20 template for %s: %w", t, err)
	}
	clone := reflect.New(reflect.TypeOf(tmpl).Elem()).Interface()
	if err := codec.NewCBORCodec().Decode(data, clone); err != nil {
		return nil, fmt.Errorf("failedresponse: decode ISO 15118-20 template for %s: %w", t, err)
	}
	return clone.(isotwenty.Response), nil
}
