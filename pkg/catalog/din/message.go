// Package din holds the DIN SPEC 70121 request/response record types.
// DIN 70121 predates ISO 15118-2 and only supports DC charging with EIM
// authorization; its message set is a strict subset of isotwo's.
package din

import "github.com/mash-protocol/mash-go/pkg/catalog/dtype"

// RequestType discriminates the DIN SPEC 70121 request catalog.
type RequestType uint8

const (
	TypeSessionSetup RequestType = iota
	TypeServiceDiscovery
	TypeServicePaymentSelection
	TypeContractAuthentication
	TypeChargeParameterDiscovery
	TypeCableCheck
	TypePreCharge
	TypePowerDelivery
	TypeCurrentDemand
	TypeWeldingDetection
	TypeSessionStop
)

func (t RequestType) String() string {
	switch t {
	case TypeSessionSetup:
		return "SessionSetup"
	case TypeServiceDiscovery:
		return "ServiceDiscovery"
	case TypeServicePaymentSelection:
		return "ServicePaymentSelection"
	case TypeContractAuthentication:
		return "ContractAuthentication"
	case TypeChargeParameterDiscovery:
		return "ChargeParameterDiscovery"
	case TypeCableCheck:
		return "CableCheck"
	case TypePreCharge:
		return "PreCharge"
	case TypePowerDelivery:
		return "PowerDelivery"
	case TypeCurrentDemand:
		return "CurrentDemand"
	case TypeWeldingDetection:
		return "WeldingDetection"
	case TypeSessionStop:
		return "SessionStop"
	default:
		return "Unknown"
	}
}

// Request is implemented by every DIN 70121 request body.
type Request interface {
	Type() RequestType
}

// Response is implemented by every DIN 70121 response body.
type Response interface {
	Type() RequestType
	Code() dtype.ResponseCode
	SetCode(dtype.ResponseCode)
}

// BaseResponse factors the response_code field and its accessors shared
// by every DIN SPEC 70121 response type. It is exported so that callers
// assembling a template response (e.g. the failed-response registry) can
// set it directly in a composite literal.
type BaseResponse struct {
	ResponseCode dtype.ResponseCode `cbor:"1,keyasint"`
}

func (b *BaseResponse) Code() dtype.ResponseCode     { return b.ResponseCode }
func (b *BaseResponse) SetCode(c dtype.ResponseCode) { b.ResponseCode = c }

// ---- SessionSetup ----

type SessionSetupReq struct {
	EVCCID string `cbor:"1,keyasint"`
}

func (SessionSetupReq) Type() RequestType { return TypeSessionSetup }

type SessionSetupRes struct {
	BaseResponse
	EVSEID    string `cbor:"2,keyasint"`
	Timestamp int64  `cbor:"3,keyasint"`
}

func (SessionSetupRes) Type() RequestType { return TypeSessionSetup }

// ---- ServiceDiscovery ----

type ServiceDiscoveryReq struct {
	ServiceScope string `cbor:"1,keyasint,omitempty"`
}

func (ServiceDiscoveryReq) Type() RequestType { return TypeServiceDiscovery }

type ServiceDiscoveryRes struct {
	BaseResponse
	AuthOptions                  []dtype.AuthOption         `cbor:"2,keyasint"`
	ChargeServiceID                uint16                     `cbor:"3,keyasint"`
	SupportedEnergyTransferModes []dtype.EnergyTransferMode `cbor:"4,keyasint"`
}

func (ServiceDiscoveryRes) Type() RequestType { return TypeServiceDiscovery }

// ---- ServicePaymentSelection ----

type ServicePaymentSelectionReq struct {
	SelectedAuthOption dtype.AuthOption `cbor:"1,keyasint"`
	SelectedServiceID   uint16           `cbor:"2,keyasint"`
}

func (ServicePaymentSelectionReq) Type() RequestType { return TypeServicePaymentSelection }

type ServicePaymentSelectionRes struct {
	BaseResponse
}

func (ServicePaymentSelectionRes) Type() RequestType { return TypeServicePaymentSelection }

// ---- ContractAuthentication ----

// ContractAuthentication is DIN 70121's sole authorization exchange; it
// carries no payload in either direction beyond the response code, unlike
// isotwo's Authorization which may carry a PnC challenge/signature.
type ContractAuthenticationReq struct{}

func (ContractAuthenticationReq) Type() RequestType { return TypeContractAuthentication }

type ContractAuthenticationRes struct {
	BaseResponse
	EVSEProcessing dtype.EVSEProcessing `cbor:"2,keyasint"`
}

func (ContractAuthenticationRes) Type() RequestType { return TypeContractAuthentication }

// ---- ChargeParameterDiscovery ----

type DCEVChargeParameter struct {
	MaxCurrentLimit dtype.PhysicalValue `cbor:"1,keyasint"`
	MaxVoltageLimit dtype.PhysicalValue `cbor:"2,keyasint"`
	MaxPowerLimit   dtype.PhysicalValue `cbor:"3,keyasint,omitempty"`
}

type ChargeParameterDiscoveryReq struct {
	EVRequestedEnergyTransferType dtype.EnergyTransferMode `cbor:"1,keyasint"`
	DCChargeParameter              DCEVChargeParameter      `cbor:"2,keyasint"`
}

func (ChargeParameterDiscoveryReq) Type() RequestType { return TypeChargeParameterDiscovery }

type DCEVSEChargeParameter struct {
	Status          dtype.DCEVSEStatus  `cbor:"1,keyasint"`
	MaxCurrentLimit  dtype.PhysicalValue `cbor:"2,keyasint"`
	MaxPowerLimit    dtype.PhysicalValue `cbor:"3,keyasint"`
	MaxVoltageLimit  dtype.PhysicalValue `cbor:"4,keyasint"`
	MinCurrentLimit  dtype.PhysicalValue `cbor:"5,keyasint"`
	MinVoltageLimit  dtype.PhysicalValue `cbor:"6,keyasint"`
	PeakCurrentRipple dtype.PhysicalValue `cbor:"7,keyasint"`
}

type ChargeParameterDiscoveryRes struct {
	BaseResponse
	EVSEProcessing   dtype.EVSEProcessing  `cbor:"2,keyasint"`
	DCChargeParameter DCEVSEChargeParameter `cbor:"3,keyasint"`
	SAScheduleList    []dtype.ScheduleTuple `cbor:"4,keyasint"`
}

func (ChargeParameterDiscoveryRes) Type() RequestType { return TypeChargeParameterDiscovery }

// ---- CableCheck / PreCharge (DC precondition loop) ----

type CableCheckReq struct{}

func (CableCheckReq) Type() RequestType { return TypeCableCheck }

type CableCheckRes struct {
	BaseResponse
	DCEVSEStatus   dtype.DCEVSEStatus   `cbor:"2,keyasint"`
	EVSEProcessing dtype.EVSEProcessing `cbor:"3,keyasint"`
}

func (CableCheckRes) Type() RequestType { return TypeCableCheck }

type PreChargeReq struct {
	EVTargetVoltage dtype.PhysicalValue `cbor:"1,keyasint"`
}

func (PreChargeReq) Type() RequestType { return TypePreCharge }

type PreChargeRes struct {
	BaseResponse
	DCEVSEStatus      dtype.DCEVSEStatus  `cbor:"2,keyasint"`
	EVSEPresentVoltage dtype.PhysicalValue `cbor:"3,keyasint"`
}

func (PreChargeRes) Type() RequestType { return TypePreCharge }

// ---- PowerDelivery ----

type ChargeProgress uint8

const (
	ChargeProgressStart ChargeProgress = iota
	ChargeProgressStop
)

type PowerDeliveryReq struct {
	ChargeProgress   ChargeProgress `cbor:"1,keyasint"`
	SAScheduleTupleID uint8          `cbor:"2,keyasint"`
}

func (PowerDeliveryReq) Type() RequestType { return TypePowerDelivery }

type PowerDeliveryRes struct {
	BaseResponse
	DCEVSEStatus dtype.DCEVSEStatus `cbor:"2,keyasint"`
}

func (PowerDeliveryRes) Type() RequestType { return TypePowerDelivery }

// ---- CurrentDemand ----

type CurrentDemandReq struct {
	EVTargetCurrent  dtype.PhysicalValue `cbor:"1,keyasint"`
	EVTargetVoltage  dtype.PhysicalValue `cbor:"2,keyasint"`
	ChargingComplete bool                `cbor:"3,keyasint"`
}

func (CurrentDemandReq) Type() RequestType { return TypeCurrentDemand }

type CurrentDemandRes struct {
	BaseResponse
	DCEVSEStatus            dtype.DCEVSEStatus  `cbor:"2,keyasint"`
	EVSEPresentVoltage       dtype.PhysicalValue `cbor:"3,keyasint"`
	EVSEPresentCurrent       dtype.PhysicalValue `cbor:"4,keyasint"`
	EVSECurrentLimitAchieved bool                `cbor:"5,keyasint"`
	EVSEVoltageLimitAchieved bool                `cbor:"6,keyasint"`
}

func (CurrentDemandRes) Type() RequestType { return TypeCurrentDemand }

// ---- WeldingDetection ----

type WeldingDetectionReq struct {
	EVProcessing dtype.EVSEProcessing `cbor:"1,keyasint"`
}

func (WeldingDetectionReq) Type() RequestType { return TypeWeldingDetection }

type WeldingDetectionRes struct {
	BaseResponse
	DCEVSEStatus      dtype.DCEVSEStatus  `cbor:"2,keyasint"`
	EVSEPresentVoltage dtype.PhysicalValue `cbor:"3,keyasint"`
}

func (WeldingDetectionRes) Type() RequestType { return TypeWeldingDetection }

// ---- SessionStop ----

type SessionStopReq struct{}

func (SessionStopReq) Type() RequestType { return TypeSessionStop }

type SessionStopRes struct {
	BaseResponse
}

func (SessionStopRes) Type() RequestType { return TypeSessionStop }
