// Package isotwenty holds a deliberately partial ISO 15118-20 message
// catalog. Only the common-messages handshake (SessionSetup through
// ServiceSelection) and SessionStop are modeled; the energy-transfer-mode
// specific messages (DC/WPT/ACDP charge loops) are out of scope and are
// represented only as named, unimplemented states in the state machine.
package isotwenty

import "github.com/mash-protocol/mash-go/pkg/catalog/dtype"

// Namespace identifies the XML namespace (and therefore which message set)
// an ISO 15118-20 exchange element belongs to.
type Namespace uint8

const (
	NamespaceCommon Namespace = iota
	NamespaceAC
	NamespaceDC
)

func (n Namespace) String() string {
	switch n {
	case NamespaceCommon:
		return "urn:iso:std:iso:15118:-20:CommonMessages"
	case NamespaceAC:
		return "urn:iso:std:iso:15118:-20:AC"
	case NamespaceDC:
		return "urn:iso:std:iso:15118:-20:DC"
	default:
		return "unknown"
	}
}

// PayloadType is the V2GTP payload type tag carried alongside the header.
type PayloadType uint16

const (
	PayloadTypeSAP PayloadType = 0x8001 + iota
	PayloadTypeMainStream
)

// MessageHeader is shared by every ISO 15118-20 message.
type MessageHeader struct {
	SessionID string `cbor:"1,keyasint"`
	Timestamp int64  `cbor:"2,keyasint"`
}

// RequestType discriminates the modeled subset of the ISO 15118-20
// request catalog.
type RequestType uint8

const (
	TypeSessionSetup RequestType = iota
	TypeAuthorizationSetup
	TypeAuthorization
	TypeServiceDiscovery
	TypeServiceDetail
	TypeServiceSelection
	TypeSessionStop
)

func (t RequestType) String() string {
	switch t {
	case TypeSessionSetup:
		return "SessionSetup"
	case TypeAuthorizationSetup:
		return "AuthorizationSetup"
	case TypeAuthorization:
		return "Authorization"
	case TypeServiceDiscovery:
		return "ServiceDiscovery"
	case TypeServiceDetail:
		return "ServiceDetail"
	case TypeServiceSelection:
		return "ServiceSelection"
	case TypeSessionStop:
		return "SessionStop"
	default:
		return "Unknown"
	}
}

// Request is implemented by every modeled ISO 15118-20 request body.
type Request interface {
	Type() RequestType
	Header() MessageHeader
}

// Response is implemented by every modeled ISO 15118-20 response body.
type Response interface {
	Type() RequestType
	Header() MessageHeader
	Code() dtype.ResponseCode
	SetCode(dtype.ResponseCode)
}

type BaseResponse struct {
	Hdr          MessageHeader      `cbor:"1,keyasint"`
	ResponseCode dtype.ResponseCode `cbor:"2,keyasint"`
}

func (b *BaseResponse) Header() MessageHeader         { return b.Hdr }
func (b *BaseResponse) Code() dtype.ResponseCode      { return b.ResponseCode }
func (b *BaseResponse) SetCode(c dtype.ResponseCode)  { b.ResponseCode = c }

type BaseRequest struct {
	Hdr MessageHeader `cbor:"1,keyasint"`
}

func (b BaseRequest) Header() MessageHeader { return b.Hdr }

// ---- SessionSetup ----

type SessionSetupReq struct {
	BaseRequest
	EVCCID string `cbor:"2,keyasint"`
}

func (SessionSetupReq) Type() RequestType { return TypeSessionSetup }

type SessionSetupRes struct {
	BaseResponse
	EVSEID string `cbor:"3,keyasint"`
}

func (SessionSetupRes) Type() RequestType { return TypeSessionSetup }

// ---- AuthorizationSetup ----

// AuthorizationMode enumerates the ISO 15118-20 authorization modes;
// EIM and PnC carry the same meaning as dtype.AuthOption but are kept
// distinct because -20's AuthorizationSetup response shape differs from
// -2's ServiceDiscovery AuthOptions list.
type AuthorizationMode uint8

const (
	AuthModeEIM AuthorizationMode = iota
	AuthModePnC
)

type AuthorizationSetupReq struct {
	BaseRequest
}

func (AuthorizationSetupReq) Type() RequestType { return TypeAuthorizationSetup }

type AuthorizationSetupRes struct {
	BaseResponse
	AuthorizationModes []AuthorizationMode `cbor:"3,keyasint"`
	GenChallenge       []byte              `cbor:"4,keyasint,omitempty"`
}

func (AuthorizationSetupRes) Type() RequestType { return TypeAuthorizationSetup }

// ---- Authorization ----

type AuthorizationReq struct {
	BaseRequest
	SelectedMode AuthorizationMode `cbor:"2,keyasint"`
	GenChallenge []byte            `cbor:"3,keyasint,omitempty"`
}

func (AuthorizationReq) Type() RequestType { return TypeAuthorization }

type AuthorizationRes struct {
	BaseResponse
	EVSEProcessing dtype.EVSEProcessing `cbor:"3,keyasint"`
}

func (AuthorizationRes) Type() RequestType { return TypeAuthorization }

// ---- ServiceDiscovery ----

type ServiceDiscoveryReq struct {
	BaseRequest
}

func (ServiceDiscoveryReq) Type() RequestType { return TypeServiceDiscovery }

type ServiceDiscoveryRes struct {
	BaseResponse
	EnergyTransferServiceList []dtype.ServiceDetails `cbor:"3,keyasint"`
	VASList                    []dtype.ServiceDetails `cbor:"4,keyasint,omitempty"`
}

func (ServiceDiscoveryRes) Type() RequestType { return TypeServiceDiscovery }

// ---- ServiceDetail ----

type ServiceDetailReq struct {
	BaseRequest
	ServiceID uint16 `cbor:"2,keyasint"`
}

func (ServiceDetailReq) Type() RequestType { return TypeServiceDetail }

type ServiceDetailRes struct {
	BaseResponse
	ServiceID       uint16   `cbor:"3,keyasint"`
	ParameterSetIDs []uint16 `cbor:"4,keyasint,omitempty"`
}

func (ServiceDetailRes) Type() RequestType { return TypeServiceDetail }

// ---- ServiceSelection ----

type SelectedService struct {
	ServiceID     uint16
	ParameterSetID uint16
}

type ServiceSelectionReq struct {
	BaseRequest
	SelectedEnergyTransferServiceID uint16            `cbor:"2,keyasint"`
	SelectedVAS                      []SelectedService `cbor:"3,keyasint,omitempty"`
}

func (ServiceSelectionReq) Type() RequestType { return TypeServiceSelection }

type ServiceSelectionRes struct {
	BaseResponse
}

func (ServiceSelectionRes) Type() RequestType { return TypeServiceSelection }

// ---- SessionStop ----

type ChargingSession uint8

const (
	ChargingSessionTerminate ChargingSession = iota
	ChargingSessionPause
)

type SessionStopReq struct {
	BaseRequest
	ChargingSession ChargingSession `cbor:"2,keyasint"`
}

func (SessionStopReq) Type() RequestType { return TypeSessionStop }

type SessionStopRes struct {
	BaseResponse
}

func (SessionStopRes) Type() RequestType { return TypeSessionStop }
