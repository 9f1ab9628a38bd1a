package evse

import (
	"context"
	"sync"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
)

// Simulated is an in-memory Controller for tests and the example
// binaries. It never talks to hardware; its setter methods (SetSchedules,
// SetAuthorization, CompleteCableCheck, SetPresentElectricalValues, ...) let a test
// drive the charge point through a scenario (cable insertion, isolation
// check completion, authorization, current ramp) the way a simulated EV
// supply device lets a test drive an EV plugging in.
type Simulated struct {
	mu sync.RWMutex

	evseID string
	modes  []dtype.EnergyTransferMode

	acStatus dtype.ACEVSEStatus
	dcStatus dtype.DCEVSEStatus

	nominalVoltage dtype.PhysicalValue
	maxCurrent     dtype.PhysicalValue
	dcParam        DCChargeParameter

	schedules []dtype.ScheduleTuple

	auth AuthorizationResult

	cableCheckDone  bool
	presentVoltage  dtype.PhysicalValue
	presentCurrent  dtype.PhysicalValue

	meter dtype.MeterInfo

	hlcActive bool
}

// NewSimulated returns a Simulated controller with sensible DC defaults:
// EVSE ready with a valid isolation status, auth pending, cable check not
// finished.
func NewSimulated(evseID string) *Simulated {
	return &Simulated{
		evseID: evseID,
		modes:  []dtype.EnergyTransferMode{dtype.EnergyModeDCExtended, dtype.EnergyModeACThreePhase},
		acStatus: dtype.ACEVSEStatus{
			Notification: dtype.NotificationNone,
		},
		dcStatus: dtype.DCEVSEStatus{
			Notification:    dtype.NotificationNone,
			IsolationStatus: dtype.IsolationValid,
			StatusCode:      dtype.DCStatusEVSEReady,
		},
		nominalVoltage: dtype.PhysicalValue{Value: 400, Unit: dtype.UnitVolt},
		maxCurrent:     dtype.PhysicalValue{Value: 32, Unit: dtype.UnitAmpere},
		dcParam: DCChargeParameter{
			Status:          dtype.DCEVSEStatus{IsolationStatus: dtype.IsolationValid, StatusCode: dtype.DCStatusEVSEReady},
			MaxCurrentLimit: dtype.PhysicalValue{Value: 125, Unit: dtype.UnitAmpere},
			MaxPowerLimit:   dtype.PhysicalValue{Multiplier: 2, Value: 50, Unit: dtype.UnitWatt},
			MaxVoltageLimit: dtype.PhysicalValue{Value: 500, Unit: dtype.UnitVolt},
			MinCurrentLimit: dtype.PhysicalValue{Value: 0, Unit: dtype.UnitAmpere},
			MinVoltageLimit: dtype.PhysicalValue{Value: 50, Unit: dtype.UnitVolt},
		},
		auth: AuthOngoing,
	}
}

func (s *Simulated) EVSEID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evseID, nil
}

func (s *Simulated) SupportedEnergyTransferModes(ctx context.Context) ([]dtype.EnergyTransferMode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dtype.EnergyTransferMode, len(s.modes))
	copy(out, s.modes)
	return out, nil
}

func (s *Simulated) ACChargeParameter(ctx context.Context) (dtype.ACEVSEStatus, dtype.PhysicalValue, dtype.PhysicalValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acStatus, s.nominalVoltage, s.maxCurrent, nil
}

func (s *Simulated) DCChargeParameter(ctx context.Context) (DCChargeParameter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dcParam, nil
}

func (s *Simulated) ACStatus(ctx context.Context) (dtype.ACEVSEStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acStatus, nil
}

func (s *Simulated) DCStatus(ctx context.Context) (dtype.DCEVSEStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dcStatus, nil
}

func (s *Simulated) SAScheduleList(ctx context.Context, maxEntries uint16) ([]dtype.ScheduleTuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if maxEntries == 0 || int(maxEntries) >= len(s.schedules) {
		out := make([]dtype.ScheduleTuple, len(s.schedules))
		copy(out, s.schedules)
		return out, nil
	}
	return append([]dtype.ScheduleTuple(nil), s.schedules[:maxEntries]...), nil
}

func (s *Simulated) IsAuthorised(ctx context.Context) (AuthorizationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth, nil
}

func (s *Simulated) CableCheckStatus(ctx context.Context) (dtype.EVSEProcessing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cableCheckDone {
		return dtype.ProcessingFinished, nil
	}
	return dtype.ProcessingOngoing, nil
}

func (s *Simulated) PresentVoltage(ctx context.Context) (dtype.PhysicalValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presentVoltage, nil
}

func (s *Simulated) PresentCurrent(ctx context.Context) (dtype.PhysicalValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presentCurrent, nil
}

func (s *Simulated) MeterInfo(ctx context.Context) (dtype.MeterInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meter, nil
}

func (s *Simulated) SetHLCCharging(ctx context.Context, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hlcActive = active
	return nil
}

// ---- Simulation controls, for tests and example binaries ----

// SetSchedules installs the SA schedule tuples offered from now on.
func (s *Simulated) SetSchedules(schedules []dtype.ScheduleTuple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = schedules
}

// SetAuthorization forces the next IsAuthorised poll(s) to return result.
func (s *Simulated) SetAuthorization(result AuthorizationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = result
}

// CompleteCableCheck marks the isolation check as finished with the given
// isolation level, as a real EVSE would once its insulation monitoring
// device reports a result.
func (s *Simulated) CompleteCableCheck(level dtype.IsolationLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cableCheckDone = true
	s.dcStatus.IsolationStatus = level
}

// SetPresentElectricalValues updates the voltage/current PreCharge and
// CurrentDemand report.
func (s *Simulated) SetPresentElectricalValues(voltage, current dtype.PhysicalValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presentVoltage = voltage
	s.presentCurrent = current
}

// SetMeterInfo installs the metering snapshot subsequent responses report.
func (s *Simulated) SetMeterInfo(info dtype.MeterInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meter = info
}

// HLCActive reports whether SetHLCCharging(true) is currently in effect.
func (s *Simulated) HLCActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hlcActive
}
