// Package evse defines the boundary between the session state machine and
// the physical charge point: reading present electrical values, advancing
// cable-check/pre-charge/welding-detection sequences, and switching high
// level charging control on or off. No implementation in this package
// talks to real hardware; Simulated exists only to make the state machine
// exercisable in tests and in the example binaries.
package evse

import (
	"context"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
)

// AuthorizationResult is the three-valued outcome of an authorization
// check. Ongoing lets the state machine keep the EV waiting (EVSEProcessing
// = ONGOING) instead of forcing a premature accept/reject; a real EVSE
// reports Ongoing while it waits on an RFID tap or a backend OCPP call.
type AuthorizationResult uint8

const (
	AuthOngoing AuthorizationResult = iota
	AuthAccepted
	AuthRejected
)

// Controller is the synchronous, side-effect-free-to-the-protocol-core
// view of the physical EVSE that the session state machine calls into.
// Every method may block (it may wait on hardware or a backend), so all
// of them take a context the caller can cancel on sequence timeout.
type Controller interface {
	// EVSEID returns the EVSE's identifier, echoed in SessionSetupRes.
	EVSEID(ctx context.Context) (string, error)

	// SupportedEnergyTransferModes lists the modes this EVSE can offer
	// during ServiceDiscovery/ChargeParameterDiscovery.
	SupportedEnergyTransferModes(ctx context.Context) ([]dtype.EnergyTransferMode, error)

	// ACChargeParameter returns the AC charge parameters and current
	// AC EVSE status for ChargeParameterDiscoveryRes.
	ACChargeParameter(ctx context.Context) (status dtype.ACEVSEStatus, nominalVoltage, maxCurrent dtype.PhysicalValue, err error)

	// DCChargeParameter returns the DC charge parameters and current
	// DC EVSE status for ChargeParameterDiscoveryRes.
	DCChargeParameter(ctx context.Context) (DCChargeParameter, error)

	// ACStatus returns the current AC EVSE status, polled on every AC
	// loop message (PowerDelivery, ChargingStatus).
	ACStatus(ctx context.Context) (dtype.ACEVSEStatus, error)

	// DCStatus returns the current DC EVSE status, polled on every DC
	// loop message (PowerDelivery, CableCheck, PreCharge, CurrentDemand,
	// WeldingDetection).
	DCStatus(ctx context.Context) (dtype.DCEVSEStatus, error)

	// SAScheduleList returns up to maxEntries offered charging schedules.
	// maxEntries == 0 means no caller-imposed limit.
	SAScheduleList(ctx context.Context, maxEntries uint16) ([]dtype.ScheduleTuple, error)

	// IsAuthorised reports the current authorization outcome. The state
	// machine polls this once per Authorization/ContractAuthentication
	// request and keeps the EV waiting (EVSEProcessing = ONGOING) for as
	// long as it returns AuthOngoing.
	IsAuthorised(ctx context.Context) (AuthorizationResult, error)

	// CableCheckStatus reports whether the isolation check that CableCheck
	// polls for has finished.
	CableCheckStatus(ctx context.Context) (dtype.EVSEProcessing, error)

	// PresentVoltage returns the present DC output voltage, reported in
	// PreCharge, CurrentDemand and WeldingDetection responses.
	PresentVoltage(ctx context.Context) (dtype.PhysicalValue, error)

	// PresentCurrent returns the present DC output current, reported in
	// CurrentDemandRes.
	PresentCurrent(ctx context.Context) (dtype.PhysicalValue, error)

	// MeterInfo returns the latest metering snapshot for ChargingStatus
	// and CurrentDemand responses.
	MeterInfo(ctx context.Context) (dtype.MeterInfo, error)

	// SetHLCCharging switches the contactor-level "high level
	// communication is in control" signal on or off. It is called when
	// PowerDelivery transitions ChargeProgress to Start or Stop.
	SetHLCCharging(ctx context.Context, active bool) error
}

// DCChargeParameter bundles the DC EVSE charge parameter fields the
// Controller reports for ChargeParameterDiscoveryRes.
type DCChargeParameter struct {
	Status            dtype.DCEVSEStatus
	MaxCurrentLimit   dtype.PhysicalValue
	MaxPowerLimit     dtype.PhysicalValue
	MaxVoltageLimit   dtype.PhysicalValue
	MinCurrentLimit   dtype.PhysicalValue
	MinVoltageLimit   dtype.PhysicalValue
	PeakCurrentRipple dtype.PhysicalValue
}
