// Package dtype holds the primitive datatypes shared by every protocol
// version in the message catalog: physical values with multiplier/value/
// unit, response-code and energy-transfer enumerations, and the small
// status/schedule structures the SECC and EVCC exchange.
package dtype

import "fmt"

// UnitSymbol is the physical unit tag carried alongside a multiplier/value
// pair, exactly as the wire schema requires the tag to round-trip.
type UnitSymbol uint8

const (
	UnitHour UnitSymbol = iota
	UnitMinute
	UnitSecond
	UnitAmpere
	UnitVolt
	UnitWatt
	UnitWattHours
)

func (u UnitSymbol) String() string {
	switch u {
	case UnitHour:
		return "h"
	case UnitMinute:
		return "m"
	case UnitSecond:
		return "s"
	case UnitAmpere:
		return "A"
	case UnitVolt:
		return "V"
	case UnitWatt:
		return "W"
	case UnitWattHours:
		return "Wh"
	default:
		return "?"
	}
}

// PhysicalValue is a (multiplier, value, unit) triple. The effective
// quantity is Value * 10^Multiplier in Unit.
type PhysicalValue struct {
	Multiplier int8       `cbor:"1,keyasint"`
	Value      int16      `cbor:"2,keyasint"`
	Unit       UnitSymbol `cbor:"3,keyasint"`
}

// Zero returns a zero-valued physical value carrying the given unit tag,
// used by the failed-response registry where XSD mandates a present but
// meaningless value.
func Zero(unit UnitSymbol) PhysicalValue {
	return PhysicalValue{Multiplier: 0, Value: 0, Unit: unit}
}

// ResponseCode is the outcome code every response message carries.
type ResponseCode string

const (
	ResponseOK                    ResponseCode = "OK"
	ResponseOKNewSessionEstablished ResponseCode = "OK_NewSessionEstablished"
	ResponseOKOldSessionJoined    ResponseCode = "OK_OldSessionJoined"

	ResponseFailed                         ResponseCode = "FAILED"
	ResponseFailedSequenceError             ResponseCode = "FAILED_SequenceError"
	ResponseFailedServiceSelectionInvalid   ResponseCode = "FAILED_ServiceSelectionInvalid"
	ResponseFailedPaymentSelectionInvalid   ResponseCode = "FAILED_PaymentSelectionInvalid"
	ResponseFailedCertificateExpired        ResponseCode = "FAILED_CertificateExpired"
	ResponseFailedCertificateRevoked        ResponseCode = "FAILED_CertificateRevoked"
	ResponseFailedCertChainError            ResponseCode = "FAILED_CertChainError"
	ResponseFailedSignatureError            ResponseCode = "FAILED_SignatureError"
	ResponseFailedNoChargeServiceSelected    ResponseCode = "FAILED_NoChargeServiceSelected"
	ResponseFailedWrongChargeParameter       ResponseCode = "FAILED_WrongChargeParameter"
	ResponseFailedTariffSelectionInvalid     ResponseCode = "FAILED_TariffSelectionInvalid"
	ResponseFailedChargingProfileInvalid     ResponseCode = "FAILED_ChargingProfileInvalid"
	ResponseFailedMeteringSignatureNotValid  ResponseCode = "FAILED_MeteringSignatureNotValid"
	ResponseFailedWrongEnergyTransferMode    ResponseCode = "FAILED_WrongEnergyTransferMode"
	ResponseFailedEVSEVoltageTooLow          ResponseCode = "FAILED_EVSEVoltageToLow"
	ResponseFailedChallengeInvalid           ResponseCode = "FAILED_ChallengeInvalid"
)

// IsFailure reports whether the code starts with "FAILED", per the
// catalog invariant that every aborted response carries such a code.
func (r ResponseCode) IsFailure() bool {
	return len(r) >= len("FAILED") && r[:len("FAILED")] == "FAILED"
}

// EnergyTransferMode enumerates the supported AC/DC transfer modes.
type EnergyTransferMode uint8

const (
	EnergyModeACSinglePhase EnergyTransferMode = iota
	EnergyModeACThreePhase
	EnergyModeDCCore
	EnergyModeDCExtended
	EnergyModeDCCombo
	EnergyModeDCUnique
)

func (m EnergyTransferMode) String() string {
	switch m {
	case EnergyModeACSinglePhase:
		return "AC_single_phase_core"
	case EnergyModeACThreePhase:
		return "AC_three_phase_core"
	case EnergyModeDCCore:
		return "DC_core"
	case EnergyModeDCExtended:
		return "DC_extended"
	case EnergyModeDCCombo:
		return "DC_combo_core"
	case EnergyModeDCUnique:
		return "DC_unique"
	default:
		return "unknown"
	}
}

// IsDC reports whether the mode is one of the DC energy-transfer modes.
func (m EnergyTransferMode) IsDC() bool {
	switch m {
	case EnergyModeDCCore, EnergyModeDCExtended, EnergyModeDCCombo, EnergyModeDCUnique:
		return true
	default:
		return false
	}
}

// AuthOption enumerates the two SECC authorization sub-protocols.
type AuthOption uint8

const (
	AuthEIM AuthOption = iota
	AuthPnC
)

func (a AuthOption) String() string {
	if a == AuthPnC {
		return "PnC"
	}
	return "EIM"
}

// EVSEProcessing indicates whether the EVSE needs another request/response
// round before it can finish constructing a response (ONGOING) or has
// everything it needs (FINISHED).
type EVSEProcessing uint8

const (
	ProcessingFinished EVSEProcessing = iota
	ProcessingOngoing
)

// EVSENotificationCode carries session-level hints to the EV (e.g. that
// the EVSE is about to stop charging).
type EVSENotificationCode uint8

const (
	NotificationNone EVSENotificationCode = iota
	NotificationStopCharging
	NotificationReNegotiation
)

// IsolationLevel is the DC isolation-monitoring result.
type IsolationLevel uint8

const (
	IsolationInvalid IsolationLevel = iota
	IsolationValid
	IsolationWarning
	IsolationFault
	IsolationNoIMD
)

// DCEVSEStatusCode is the coarse DC-EVSE readiness status.
type DCEVSEStatusCode uint8

const (
	DCStatusEVSENotReady DCEVSEStatusCode = iota
	DCStatusEVSEReady
	DCStatusEVSEShutdown
	DCStatusEVSEUtilityInterruptEvent
	DCStatusEVSEIsolationMonitoringActive
	DCStatusEVSEEmergencyShutdown
	DCStatusEVSEMalfunction
	DCStatusReservedA
	DCStatusReservedB
	DCStatusReservedC
)

// DCEVSEStatus is the minimal DC-EVSE status structure carried by every
// DC response.
type DCEVSEStatus struct {
	NotificationMaxDelay uint16               `cbor:"1,keyasint"`
	Notification         EVSENotificationCode `cbor:"2,keyasint"`
	IsolationStatus       IsolationLevel       `cbor:"3,keyasint"`
	StatusCode            DCEVSEStatusCode     `cbor:"4,keyasint"`
}

// ACEVSEStatus is the minimal AC-EVSE status structure.
type ACEVSEStatus struct {
	NotificationMaxDelay uint16               `cbor:"1,keyasint"`
	Notification         EVSENotificationCode `cbor:"2,keyasint"`
	RCD                   bool                 `cbor:"3,keyasint"`
}

// ScheduleTuple bundles a P-max schedule with an optional sales tariff,
// keyed by a small integer id the EV selects during PowerDelivery.
type ScheduleTuple struct {
	ID           uint8
	PMaxSchedule []PMaxEntry
	SalesTariff  *SalesTariff
}

// PMaxEntry is one time-window/power-limit pair in a schedule.
type PMaxEntry struct {
	StartInterval uint32
	PMax          PhysicalValue
}

// SalesTariff is the optional price information attached to a schedule.
type SalesTariff struct {
	ID          string
	Description string
	Entries     []SalesTariffEntry
	// Signature holds the raw signature bytes once signed; nil if the
	// EVSE never signs tariffs (a configuration choice) or signing failed
	// (a non-fatal condition per the error-handling design: the tariff is
	// still sent, unsigned).
	Signature []byte
}

// SalesTariffEntry is one price level over an interval.
type SalesTariffEntry struct {
	StartInterval uint32
	PriceLevel    uint8
}

// CertificateChain is a leaf certificate plus zero or more intermediate
// (sub-CA) DER-encoded certificates.
type CertificateChain struct {
	Leaf          []byte
	Intermediates [][]byte
}

// Validate enforces the chain-length invariant: at most two sub-CA
// certificates between the leaf and a V2G root.
func (c CertificateChain) Validate() error {
	if len(c.Leaf) == 0 {
		return fmt.Errorf("certificate chain: leaf certificate required")
	}
	if len(c.Intermediates) > 2 {
		return fmt.Errorf("certificate chain: at most 2 sub-CA certificates allowed, got %d", len(c.Intermediates))
	}
	return nil
}

// MeterInfo is the metering snapshot the EVSE reports during charging.
type MeterInfo struct {
	MeterID     string
	MeterReading uint64
	SigMeterReading []byte
	TMeter      int64
}

// ServiceDetails names a value-added service and its category.
type ServiceDetails struct {
	ServiceID       uint16
	ServiceCategory ServiceCategory
	FreeService     bool
}

// ServiceCategory enumerates the categories a ServiceDetails may belong to.
type ServiceCategory uint8

const (
	ServiceCategoryCharging ServiceCategory = iota
	ServiceCategoryCertificate
	ServiceCategoryInternet
	ServiceCategoryOther
)
