package secc

import (
	"fmt"

	"github.com/mash-protocol/mash-go/pkg/catalog/din"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwenty"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwo"
	"github.com/mash-protocol/mash-go/pkg/codec"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
)

// Envelope is the wire-level header every frame carries ahead of its
// catalog payload: which message-catalog family the body belongs to
// (DIN/ISO-2/ISO-20 each have their own RequestType numbering), the
// concrete message type within that catalog, the session id (carried
// outside the EXI body by the real V2GTP/V2GMessage header, which this
// catalog's isotwo/din packages don't model since they represent only
// the body), and the encoded body itself.
//
// A real deployment's EXI codec would decode straight into this shape
// too; CBORCodec stands in for it here the same way it does everywhere
// else in this module.
type Envelope struct {
	Protocol  session.ProtocolVersion `cbor:"1,keyasint"`
	MsgType   uint8                   `cbor:"2,keyasint"`
	SessionID string                  `cbor:"3,keyasint,omitempty"`
	Body      []byte                  `cbor:"4,keyasint"`
}

// decodeFrame parses a raw transport frame into its Envelope header. The
// catalog body is left encoded until the caller knows which protocol's
// decode table to apply.
func decodeFrame(c codec.Codec, frame []byte) (Envelope, error) {
	var env Envelope
	if err := c.Decode(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("secc: decode envelope: %w", err)
	}
	return env, nil
}

// encodeFrame wraps an encoded response body and its message type in an
// Envelope and serializes the whole thing to a transport frame.
func encodeFrame(c codec.Codec, protocol session.ProtocolVersion, sessionID string, msgType uint8, body []byte) ([]byte, error) {
	env := Envelope{Protocol: protocol, MsgType: msgType, SessionID: sessionID, Body: body}
	frame, err := c.Encode(env)
	if err != nil {
		return nil, fmt.Errorf("secc: encode envelope: %w", err)
	}
	return frame, nil
}

// decodeInto decodes body into a freshly zeroed T, tolerating an empty
// body for request types with no payload fields (e.g. ContractAuthenticationReq).
func decodeInto[T any](c codec.Codec, body []byte) (T, error) {
	var v T
	if len(body) == 0 {
		return v, nil
	}
	err := c.Decode(body, &v)
	return v, err
}

// decodeDINRequest decodes an envelope body into the concrete DIN SPEC
// 70121 request type its MsgType names.
func decodeDINRequest(c codec.Codec, env Envelope) (din.Request, error) {
	switch din.RequestType(env.MsgType) {
	case din.TypeSessionSetup:
		return decodeInto[din.SessionSetupReq](c, env.Body)
	case din.TypeServiceDiscovery:
		return decodeInto[din.ServiceDiscoveryReq](c, env.Body)
	case din.TypeServicePaymentSelection:
		return decodeInto[din.ServicePaymentSelectionReq](c, env.Body)
	case din.TypeContractAuthentication:
		return decodeInto[din.ContractAuthenticationReq](c, env.Body)
	case din.TypeChargeParameterDiscovery:
		return decodeInto[din.ChargeParameterDiscoveryReq](c, env.Body)
	case din.TypeCableCheck:
		return decodeInto[din.CableCheckReq](c, env.Body)
	case din.TypePreCharge:
		return decodeInto[din.PreChargeReq](c, env.Body)
	case din.TypePowerDelivery:
		return decodeInto[din.PowerDeliveryReq](c, env.Body)
	case din.TypeCurrentDemand:
		return decodeInto[din.CurrentDemandReq](c, env.Body)
	case din.TypeWeldingDetection:
		return decodeInto[din.WeldingDetectionReq](c, env.Body)
	case din.TypeSessionStop:
		return decodeInto[din.SessionStopReq](c, env.Body)
	default:
		return nil, fmt.Errorf("secc: unknown DIN message type %d", env.MsgType)
	}
}

// decodeISO2Request decodes an envelope body into the concrete ISO
// 15118-2 request type its MsgType names.
func decodeISO2Request(c codec.Codec, env Envelope) (isotwo.Request, error) {
	switch isotwo.RequestType(env.MsgType) {
	case isotwo.TypeSessionSetup:
		return decodeInto[isotwo.SessionSetupReq](c, env.Body)
	case isotwo.TypeServiceDiscovery:
		return decodeInto[isotwo.ServiceDiscoveryReq](c, env.Body)
	case isotwo.TypeServiceDetail:
		return decodeInto[isotwo.ServiceDetailReq](c, env.Body)
	case isotwo.TypePaymentServiceSelection:
		return decodeInto[isotwo.PaymentServiceSelectionReq](c, env.Body)
	case isotwo.TypeCertificateInstallation:
		return decodeInto[isotwo.CertificateInstallationReq](c, env.Body)
	case isotwo.TypePaymentDetails:
		return decodeInto[isotwo.PaymentDetailsReq](c, env.Body)
	case isotwo.TypeAuthorization:
		return decodeInto[isotwo.AuthorizationReq](c, env.Body)
	case isotwo.TypeChargeParameterDiscovery:
		return decodeInto[isotwo.ChargeParameterDiscoveryReq](c, env.Body)
	case isotwo.TypePowerDelivery:
		return decodeInto[isotwo.PowerDeliveryReq](c, env.Body)
	case isotwo.TypeChargingStatus:
		return decodeInto[isotwo.ChargingStatusReq](c, env.Body)
	case isotwo.TypeCurrentDemand:
		return decodeInto[isotwo.CurrentDemandReq](c, env.Body)
	case isotwo.TypeMeteringReceipt:
		return decodeInto[isotwo.MeteringReceiptReq](c, env.Body)
	case isotwo.TypeSessionStop:
		return decodeInto[isotwo.SessionStopReq](c, env.Body)
	case isotwo.TypeCableCheck:
		return decodeInto[isotwo.CableCheckReq](c, env.Body)
	case isotwo.TypePreCharge:
		return decodeInto[isotwo.PreChargeReq](c, env.Body)
	case isotwo.TypeWeldingDetection:
		return decodeInto[isotwo.WeldingDetectionReq](c, env.Body)
	default:
		return nil, fmt.Errorf("secc: unknown ISO 15118-2 message type %d", env.MsgType)
	}
}

// decodeISO20Request decodes an envelope body into the concrete ISO
// 15118-20 request type its MsgType names.
func decodeISO20Request(c codec.Codec, env Envelope) (isotwenty.Request, error) {
	switch isotwenty.RequestType(env.MsgType) {
	case isotwenty.TypeSessionSetup:
		return decodeInto[isotwenty.SessionSetupReq](c, env.Body)
	case isotwenty.TypeAuthorizationSetup:
		return decodeInto[isotwenty.AuthorizationSetupReq](c, env.Body)
	case isotwenty.TypeAuthorization:
		return decodeInto[isotwenty.AuthorizationReq](c, env.Body)
	case isotwenty.TypeServiceDiscovery:
		return decodeInto[isotwenty.ServiceDiscoveryReq](c, env.Body)
	case isotwenty.TypeServiceDetail:
		return decodeInto[isotwenty.ServiceDetailReq](c, env.Body)
	case isotwenty.TypeServiceSelection:
		return decodeInto[isotwenty.ServiceSelectionReq](c, env.Body)
	case isotwenty.TypeSessionStop:
		return decodeInto[isotwenty.SessionStopReq](c, env.Body)
	default:
		return nil, fmt.Errorf("secc: unknown ISO 15118-20 message type %d", env.MsgType)
	}
}
