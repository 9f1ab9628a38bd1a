// Package isotwo holds the ISO 15118-2 request/response record types: one
// pair of structs per message defined by the standard's SessionSetup..
// SessionStop sequence, plus the DC-loop messages (CableCheck, PreCharge,
// CurrentDemand, WeldingDetection).
package isotwo

import "github.com/mash-protocol/mash-go/pkg/catalog/dtype"

// RequestType discriminates the ISO 15118-2 request catalog. Every
// concrete *Req type below returns its own constant from Type().
type RequestType uint8

const (
	TypeSessionSetup RequestType = iota
	TypeServiceDiscovery
	TypeServiceDetail
	TypePaymentServiceSelection
	TypeCertificateInstallation
	TypePaymentDetails
	TypeAuthorization
	TypeChargeParameterDiscovery
	TypePowerDelivery
	TypeChargingStatus
	TypeCurrentDemand
	TypeMeteringReceipt
	TypeSessionStop
	TypeCableCheck
	TypePreCharge
	TypeWeldingDetection
)

func (t RequestType) String() string {
	switch t {
	case TypeSessionSetup:
		return "SessionSetup"
	case TypeServiceDiscovery:
		return "ServiceDiscovery"
	case TypeServiceDetail:
		return "ServiceDetail"
	case TypePaymentServiceSelection:
		return "PaymentServiceSelection"
	case TypeCertificateInstallation:
		return "CertificateInstallation"
	case TypePaymentDetails:
		return "PaymentDetails"
	case TypeAuthorization:
		return "Authorization"
	case TypeChargeParameterDiscovery:
		return "ChargeParameterDiscovery"
	case TypePowerDelivery:
		return "PowerDelivery"
	case TypeChargingStatus:
		return "ChargingStatus"
	case TypeCurrentDemand:
		return "CurrentDemand"
	case TypeMeteringReceipt:
		return "MeteringReceipt"
	case TypeSessionStop:
		return "SessionStop"
	case TypeCableCheck:
		return "CableCheck"
	case TypePreCharge:
		return "PreCharge"
	case TypeWeldingDetection:
		return "WeldingDetection"
	default:
		return "Unknown"
	}
}

// Request is implemented by every ISO 15118-2 request body.
type Request interface {
	Type() RequestType
}

// Response is implemented by every ISO 15118-2 response body.
type Response interface {
	Type() RequestType
	Code() dtype.ResponseCode
	SetCode(dtype.ResponseCode)
}

// BaseResponse factors the response_code field and its accessors shared
// by every response type.
type BaseResponse struct {
	ResponseCode dtype.ResponseCode `cbor:"1,keyasint"`
}

func (b *BaseResponse) Code() dtype.ResponseCode         { return b.ResponseCode }
func (b *BaseResponse) SetCode(c dtype.ResponseCode)     { b.ResponseCode = c }

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
	ServiceScope    string `cbor:"1,keyasint,omitempty"`
	ServiceCategory *dtype.ServiceCategory `cbor:"2,keyasint,omitempty"`
}

func (ServiceDiscoveryReq) Type() RequestType { return TypeServiceDiscovery }

type ServiceDiscoveryRes struct {
	BaseResponse
	AuthOptions            []dtype.AuthOption           `cbor:"2,keyasint"`
	ChargeServiceID         uint16                       `cbor:"3,keyasint"`
	SupportedEnergyTransferModes []dtype.EnergyTransferMode `cbor:"4,keyasint"`
	FreeCharge              bool                         `cbor:"5,keyasint"`
	OtherServices            []dtype.ServiceDetails       `cbor:"6,keyasint,omitempty"`
}

func (ServiceDiscoveryRes) Type() RequestType { return TypeServiceDiscovery }

// ---- ServiceDetail ----

type ServiceDetailReq struct {
	ServiceID uint16 `cbor:"1,keyasint"`
}

func (ServiceDetailReq) Type() RequestType { return TypeServiceDetail }

type ServiceDetailRes struct {
	BaseResponse
	ServiceID       uint16   `cbor:"2,keyasint"`
	ParameterSetIDs []uint16 `cbor:"3,keyasint,omitempty"`
}

func (ServiceDetailRes) Type() RequestType { return TypeServiceDetail }

// ---- PaymentServiceSelection ----

type PaymentServiceSelectionReq struct {
	SelectedAuthOption dtype.AuthOption `cbor:"1,keyasint"`
	SelectedServices   []uint16         `cbor:"2,keyasint"`
}

func (PaymentServiceSelectionReq) Type() RequestType { return TypePaymentServiceSelection }

type PaymentServiceSelectionRes struct {
	BaseResponse
}

func (PaymentServiceSelectionRes) Type() RequestType { return TypePaymentServiceSelection }

// ---- CertificateInstallation ----

type CertificateInstallationReq struct {
	OEMProvisioningCertChain dtype.CertificateChain `cbor:"1,keyasint"`
	ListOfRootCertIDs        []string               `cbor:"2,keyasint"`
	Signature                []byte                 `cbor:"3,keyasint"`
}

func (CertificateInstallationReq) Type() RequestType { return TypeCertificateInstallation }

type CertificateInstallationRes struct {
	BaseResponse
	ContractCertChain   dtype.CertificateChain `cbor:"2,keyasint"`
	CPSCertChain        dtype.CertificateChain `cbor:"3,keyasint"`
	EncryptedPrivateKey []byte                 `cbor:"4,keyasint"`
	DHPublicKey         []byte                 `cbor:"5,keyasint"`
	EMAID               string                 `cbor:"6,keyasint"`
	Signature           []byte                 `cbor:"7,keyasint,omitempty"`
}

func (CertificateInstallationRes) Type() RequestType { return TypeCertificateInstallation }

// SignedElements returns the four elements CertificateInstallationRes
// signs, in the fixed order the CPS signing key covers.
func (r *CertificateInstallationRes) SignedElements() [][]byte {
	return [][]byte{
		r.ContractCertChain.Leaf,
		r.EncryptedPrivateKey,
		r.DHPublicKey,
		[]byte(r.EMAID),
	}
}

// ---- PaymentDetails ----

type PaymentDetailsReq struct {
	EMAID           string                 `cbor:"1,keyasint"`
	ContractCertChain dtype.CertificateChain `cbor:"2,keyasint"`
}

func (PaymentDetailsReq) Type() RequestType { return TypePaymentDetails }

type PaymentDetailsRes struct {
	BaseResponse
	GenChallenge  []byte `cbor:"2,keyasint"`
	EVSETimestamp int64  `cbor:"3,keyasint"`
}

func (PaymentDetailsRes) Type() RequestType { return TypePaymentDetails }

// ---- Authorization ----

type AuthorizationReq struct {
	// ID identifies the request (AuthorizationRes does not carry it back);
	// for PnC the ID is signed over with the contract leaf's private key
	// and Signature carries the result.
	ID        string `cbor:"1,keyasint,omitempty"`
	Signature []byte `cbor:"2,keyasint,omitempty"`
}

func (AuthorizationReq) Type() RequestType { return TypeAuthorization }

type AuthorizationRes struct {
	BaseResponse
	EVSEProcessing dtype.EVSEProcessing `cbor:"2,keyasint"`
}

func (AuthorizationRes) Type() RequestType { return TypeAuthorization }

// ---- ChargeParameterDiscovery ----

type ChargeParameterDiscoveryReq struct {
	RequestedEnergyTransferMode dtype.EnergyTransferMode `cbor:"1,keyasint"`
	MaxEntriesSAScheduleTuple   uint16                   `cbor:"2,keyasint,omitempty"`
	DepartureTime               uint32                   `cbor:"3,keyasint,omitempty"`
	ACChargeParameter            *ACEVChargeParameter     `cbor:"4,keyasint,omitempty"`
	DCChargeParameter            *DCEVChargeParameter     `cbor:"5,keyasint,omitempty"`
}

func (ChargeParameterDiscoveryReq) Type() RequestType { return TypeChargeParameterDiscovery }

// ACEVChargeParameter / DCEVChargeParameter are the EV-supplied charge
// parameters; only enough fields to drive the state machine are modeled.
type ACEVChargeParameter struct {
	EAmount       dtype.PhysicalValue `cbor:"1,keyasint"`
	MaxCurrent    dtype.PhysicalValue `cbor:"2,keyasint"`
	MinCurrent    dtype.PhysicalValue `cbor:"3,keyasint,omitempty"`
}

type DCEVChargeParameter struct {
	MaxCurrentLimit dtype.PhysicalValue `cbor:"1,keyasint"`
	MaxVoltageLimit dtype.PhysicalValue `cbor:"2,keyasint"`
	MaxPowerLimit   dtype.PhysicalValue `cbor:"3,keyasint,omitempty"`
}

type ChargeParameterDiscoveryRes struct {
	BaseResponse
	EVSEProcessing    dtype.EVSEProcessing    `cbor:"2,keyasint"`
	ACChargeParameter *ACEVSEChargeParameter  `cbor:"3,keyasint,omitempty"`
	DCChargeParameter *DCEVSEChargeParameter  `cbor:"4,keyasint,omitempty"`
	SAScheduleList    []dtype.ScheduleTuple   `cbor:"5,keyasint,omitempty"`
}

func (ChargeParameterDiscoveryRes) Type() RequestType { return TypeChargeParameterDiscovery }

// ACEVSEChargeParameter / DCEVSEChargeParameter mirror the EVSE-supplied
// charge parameters returned from the EVSE controller interface.
type ACEVSEChargeParameter struct {
	Status        dtype.ACEVSEStatus  `cbor:"1,keyasint"`
	NominalVoltage dtype.PhysicalValue `cbor:"2,keyasint"`
	MaxCurrent     dtype.PhysicalValue `cbor:"3,keyasint"`
}

type DCEVSEChargeParameter struct {
	Status              dtype.DCEVSEStatus  `cbor:"1,keyasint"`
	MaxCurrentLimit      dtype.PhysicalValue `cbor:"2,keyasint"`
	MaxPowerLimit         dtype.PhysicalValue `cbor:"3,keyasint"`
	MaxVoltageLimit       dtype.PhysicalValue `cbor:"4,keyasint"`
	MinCurrentLimit       dtype.PhysicalValue `cbor:"5,keyasint"`
	MinVoltageLimit       dtype.PhysicalValue `cbor:"6,keyasint"`
	CurrentRegulationTolerance *dtype.PhysicalValue `cbor:"7,keyasint,omitempty"`
	PeakCurrentRipple     dtype.PhysicalValue `cbor:"8,keyasint"`
	EnergyToBeDelivered   *dtype.PhysicalValue `cbor:"9,keyasint,omitempty"`
}

// ---- PowerDelivery ----

// ChargeProgress mirrors the EV's requested charge-progress action.
type ChargeProgress uint8

const (
	ChargeProgressStart ChargeProgress = iota
	ChargeProgressStop
	ChargeProgressRenegotiate
)

type ChargingProfileEntry struct {
	StartInterval uint32
	MaxPower      dtype.PhysicalValue
}

type PowerDeliveryReq struct {
	ChargeProgress     ChargeProgress          `cbor:"1,keyasint"`
	SAScheduleTupleID   uint8                   `cbor:"2,keyasint"`
	ChargingProfile     []ChargingProfileEntry  `cbor:"3,keyasint,omitempty"`
}

func (PowerDeliveryReq) Type() RequestType { return TypePowerDelivery }

type PowerDeliveryRes struct {
	BaseResponse
	ACEVSEStatus *dtype.ACEVSEStatus `cbor:"2,keyasint,omitempty"`
	DCEVSEStatus *dtype.DCEVSEStatus `cbor:"3,keyasint,omitempty"`
}

func (PowerDeliveryRes) Type() RequestType { return TypePowerDelivery }

// ---- ChargingStatus (AC loop) ----

type ChargingStatusReq struct{}

func (ChargingStatusReq) Type() RequestType { return TypeChargingStatus }

type ChargingStatusRes struct {
	BaseResponse
	EVSEID             string              `cbor:"2,keyasint"`
	SAScheduleTupleID   uint8               `cbor:"3,keyasint"`
	ACEVSEStatus        dtype.ACEVSEStatus  `cbor:"4,keyasint"`
	MeterInfo           *dtype.MeterInfo    `cbor:"5,keyasint,omitempty"`
	ReceiptRequired     bool                `cbor:"6,keyasint"`
}

func (ChargingStatusRes) Type() RequestType { return TypeChargingStatus }

// ---- CurrentDemand (DC loop) ----

type CurrentDemandReq struct {
	EVTargetCurrent dtype.PhysicalValue `cbor:"1,keyasint"`
	EVTargetVoltage dtype.PhysicalValue `cbor:"2,keyasint"`
	ChargingComplete bool               `cbor:"3,keyasint"`
	BulkChargingComplete *bool          `cbor:"4,keyasint,omitempty"`
}

func (CurrentDemandReq) Type() RequestType { return TypeCurrentDemand }

type CurrentDemandRes struct {
	BaseResponse
	DCEVSEStatus           dtype.DCEVSEStatus  `cbor:"2,keyasint"`
	EVSEPresentVoltage      dtype.PhysicalValue `cbor:"3,keyasint"`
	EVSEPresentCurrent      dtype.PhysicalValue `cbor:"4,keyasint"`
	EVSECurrentLimitAchieved bool               `cbor:"5,keyasint"`
	EVSEVoltageLimitAchieved bool               `cbor:"6,keyasint"`
	EVSEPowerLimitAchieved   bool               `cbor:"7,keyasint"`
	EVSEID                  string              `cbor:"8,keyasint"`
	SAScheduleTupleID        uint8               `cbor:"9,keyasint"`
	MeterInfo               *dtype.MeterInfo    `cbor:"10,keyasint,omitempty"`
	ReceiptRequired          bool                `cbor:"11,keyasint"`
}

func (CurrentDemandRes) Type() RequestType { return TypeCurrentDemand }

// ---- MeteringReceipt ----

type MeteringReceiptReq struct {
	MeterInfo dtype.MeterInfo `cbor:"1,keyasint"`
	Signature []byte          `cbor:"2,keyasint"`
}

func (MeteringReceiptReq) Type() RequestType { return TypeMeteringReceipt }

type MeteringReceiptRes struct {
	BaseResponse
	ACEVSEStatus *dtype.ACEVSEStatus `cbor:"2,keyasint,omitempty"`
	DCEVSEStatus *dtype.DCEVSEStatus `cbor:"3,keyasint,omitempty"`
}

func (MeteringReceiptRes) Type() RequestType { return TypeMeteringReceipt }

// ---- SessionStop ----

type SessionStopReq struct {
	// Terminate is true for a full termination, false for a pause that
	// permits session resumption.
	Terminate bool `cbor:"1,keyasint"`
}

func (SessionStopReq) Type() RequestType { return TypeSessionStop }

type SessionStopRes struct {
	BaseResponse
}

func (SessionStopRes) Type() RequestType { return TypeSessionStop }

// ---- CableCheck / PreCharge / WeldingDetection (DC) ----

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
	DCEVSEStatus       dtype.DCEVSEStatus  `cbor:"2,keyasint"`
	EVSEPresentVoltage  dtype.PhysicalValue `cbor:"3,keyasint"`
}

func (PreChargeRes) Type() RequestType { return TypePreCharge }

type WeldingDetectionReq struct {
	EVProcessing dtype.EVSEProcessing `cbor:"1,keyasint"`
}

func (WeldingDetectionReq) Type() RequestType { return TypeWeldingDetection }

type WeldingDetectionRes struct {
	BaseResponse
	DCEVSEStatus       dtype.DCEVSEStatus  `cbor:"2,keyasint"`
	EVSEPresentVoltage  dtype.PhysicalValue `cbor:"3,keyasint"`
}

func (WeldingDetectionRes) Type() RequestType { return TypeWeldingDetection }
