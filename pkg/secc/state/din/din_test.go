package din_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-go/pkg/catalog/din"
	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/evse"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
	secc_din "github.com/mash-protocol/mash-go/pkg/secc/state/din"
)

func newSession() *session.Context {
	return session.New(nil)
}

// TestDCLoop_HappyPath drives the full DIN SPEC 70121 DC sequence end to
// end: SessionSetup through SessionStop, the way a real EVCC would in a
// single uninterrupted charge.
func TestDCLoop_HappyPath(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-DIN-1")
	ctrl.SetSchedules([]dtype.ScheduleTuple{{ID: 1}})
	ctrl.SetAuthorization(evse.AuthAccepted)
	deps := secc_din.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()
	state := secc_din.SessionSetup

	out, err := secc_din.Process(ctx, deps, sess, state, din.SessionSetupReq{EVCCID: "DEADBEEF0001"})
	require.NoError(t, err)
	res, ok := out.Response.(*din.SessionSetupRes)
	require.True(t, ok)
	assert.Equal(t, dtype.ResponseOKNewSessionEstablished, res.Code())
	assert.NotEmpty(t, sess.SessionID)
	state = out.NextState

	out, err = secc_din.Process(ctx, deps, sess, state, din.ServiceDiscoveryReq{})
	require.NoError(t, err)
	assert.Equal(t, secc_din.ServicePaymentSelection, out.NextState)
	state = out.NextState

	out, err = secc_din.Process(ctx, deps, sess, state, din.ServicePaymentSelectionReq{
		SelectedAuthOption: dtype.AuthEIM,
		SelectedServiceID:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, secc_din.ContractAuthentication, out.NextState)
	state = out.NextState

	out, err = secc_din.Process(ctx, deps, sess, state, din.ContractAuthenticationReq{})
	require.NoError(t, err)
	assert.Equal(t, secc_din.ChargeParameterDiscovery, out.NextState)
	state = out.NextState

	out, err = secc_din.Process(ctx, deps, sess, state, din.ChargeParameterDiscoveryReq{
		EVRequestedEnergyTransferType: dtype.EnergyModeDCExtended,
	})
	require.NoError(t, err)
	assert.Equal(t, secc_din.CableCheck, out.NextState)
	state = out.NextState

	out, err = secc_din.Process(ctx, deps, sess, state, din.CableCheckReq{})
	require.NoError(t, err)
	cableRes := out.Response.(*din.CableCheckRes)
	assert.Equal(t, dtype.ProcessingOngoing, cableRes.EVSEProcessing)
	assert.Equal(t, "", out.NextState)

	ctrl.CompleteCableCheck(dtype.IsolationValid)
	out, err = secc_din.Process(ctx, deps, sess, state, din.CableCheckReq{})
	require.NoError(t, err)
	cableRes = out.Response.(*din.CableCheckRes)
	assert.Equal(t, dtype.ProcessingFinished, cableRes.EVSEProcessing)
	assert.Equal(t, secc_din.PreCharge, out.NextState)
	state = out.NextState

	target := dtype.PhysicalValue{Value: 400, Unit: dtype.UnitVolt}
	out, err = secc_din.Process(ctx, deps, sess, state, din.PreChargeReq{EVTargetVoltage: target})
	require.NoError(t, err)
	assert.Equal(t, "", out.NextState)

	ctrl.SetPresentElectricalValues(target, dtype.PhysicalValue{Value: 0, Unit: dtype.UnitAmpere})
	out, err = secc_din.Process(ctx, deps, sess, state, din.PreChargeReq{EVTargetVoltage: target})
	require.NoError(t, err)
	assert.Equal(t, secc_din.PowerDelivery, out.NextState)
	state = out.NextState

	out, err = secc_din.Process(ctx, deps, sess, state, din.PowerDeliveryReq{
		ChargeProgress:    din.ChargeProgressStart,
		SAScheduleTupleID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, secc_din.CurrentDemand, out.NextState)
	assert.True(t, ctrl.HLCActive())
	state = out.NextState

	ctrl.SetPresentElectricalValues(target, dtype.PhysicalValue{Value: 16, Unit: dtype.UnitAmpere})
	out, err = secc_din.Process(ctx, deps, sess, state, din.CurrentDemandReq{
		EVTargetCurrent: dtype.PhysicalValue{Value: 16, Unit: dtype.UnitAmpere},
		EVTargetVoltage: target,
	})
	require.NoError(t, err)
	cdRes := out.Response.(*din.CurrentDemandRes)
	assert.True(t, cdRes.EVSECurrentLimitAchieved)
	assert.Equal(t, "", out.NextState)

	out, err = secc_din.Process(ctx, deps, sess, state, din.PowerDeliveryReq{
		ChargeProgress:    din.ChargeProgressStop,
		SAScheduleTupleID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, secc_din.WeldingDetection, out.NextState)
	assert.False(t, ctrl.HLCActive())
	state = out.NextState

	out, err = secc_din.Process(ctx, deps, sess, state, din.WeldingDetectionReq{EVProcessing: dtype.ProcessingFinished})
	require.NoError(t, err)
	assert.Equal(t, secc_din.SessionStop, out.NextState)
	state = out.NextState

	out, err = secc_din.Process(ctx, deps, sess, state, din.SessionStopReq{})
	require.NoError(t, err)
	assert.True(t, out.Terminate)
	assert.NotNil(t, sess.StopReason)
}

func TestSequenceError_UnexpectedMessageAborts(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-DIN-2")
	deps := secc_din.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()

	out, err := secc_din.Process(ctx, deps, sess, secc_din.SessionSetup, din.CableCheckReq{})
	require.NoError(t, err)
	res := out.Response.(*din.CableCheckRes)
	assert.Equal(t, dtype.ResponseFailedSequenceError, res.Code())
	assert.True(t, out.Terminate)
	assert.Equal(t, secc_din.SessionStop, out.NextState)
}

func TestServicePaymentSelection_WrongAuthOption(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-DIN-3")
	deps := secc_din.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()

	_, err := secc_din.Process(ctx, deps, sess, secc_din.SessionSetup, din.SessionSetupReq{EVCCID: "X"})
	require.NoError(t, err)
	_, err = secc_din.Process(ctx, deps, sess, secc_din.ServiceDiscovery, din.ServiceDiscoveryReq{})
	require.NoError(t, err)

	out, err := secc_din.Process(ctx, deps, sess, secc_din.ServicePaymentSelection, din.ServicePaymentSelectionReq{
		SelectedAuthOption: dtype.AuthOption(99),
		SelectedServiceID:  1,
	})
	require.NoError(t, err)
	res := out.Response.(*din.ServicePaymentSelectionRes)
	assert.Equal(t, dtype.ResponseFailedPaymentSelectionInvalid, res.Code())
}
