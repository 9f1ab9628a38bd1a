package iso20_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwenty"
	"github.com/mash-protocol/mash-go/pkg/evse"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
	"github.com/mash-protocol/mash-go/pkg/secc/state/iso20"
)

func newSession() *session.Context {
	return session.New(nil)
}

// TestHandshake_HappyPath drives the modeled common-message handshake
// from SessionSetup through ServiceSelection, the -20 sibling of
// din_test.go and iso2_test.go's own state-function-level tests.
func TestHandshake_HappyPath(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO20-1")
	ctrl.SetAuthorization(evse.AuthAccepted)
	deps := iso20.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()
	state := iso20.SessionSetup

	out, err := iso20.Process(ctx, deps, sess, state, isotwenty.SessionSetupReq{EVCCID: "DEADBEEF0030"})
	require.NoError(t, err)
	res := out.Response.(*isotwenty.SessionSetupRes)
	assert.Equal(t, dtype.ResponseOKNewSessionEstablished, res.Code())
	assert.NotEmpty(t, sess.SessionID)
	state = out.NextState

	out, err = iso20.Process(ctx, deps, sess, state, isotwenty.AuthorizationSetupReq{})
	require.NoError(t, err)
	setupRes := out.Response.(*isotwenty.AuthorizationSetupRes)
	assert.Contains(t, setupRes.AuthorizationModes, isotwenty.AuthModeEIM)
	assert.Equal(t, iso20.Authorization, out.NextState)
	state = out.NextState

	out, err = iso20.Process(ctx, deps, sess, state, isotwenty.AuthorizationReq{})
	require.NoError(t, err)
	authRes := out.Response.(*isotwenty.AuthorizationRes)
	assert.Equal(t, dtype.ProcessingFinished, authRes.EVSEProcessing)
	assert.Equal(t, iso20.ServiceDiscovery, out.NextState)
	state = out.NextState

	out, err = iso20.Process(ctx, deps, sess, state, isotwenty.ServiceDiscoveryReq{})
	require.NoError(t, err)
	discRes := out.Response.(*isotwenty.ServiceDiscoveryRes)
	require.Len(t, discRes.EnergyTransferServiceList, 1)
	assert.Equal(t, iso20.ServiceSelection, out.NextState)
	state = out.NextState

	out, err = iso20.Process(ctx, deps, sess, state, isotwenty.ServiceSelectionReq{
		SelectedEnergyTransferServiceID: discRes.EnergyTransferServiceList[0].ServiceID,
	})
	require.NoError(t, err)
	selRes := out.Response.(*isotwenty.ServiceSelectionRes)
	assert.Equal(t, dtype.ResponseOK, selRes.Code())
	assert.Equal(t, iso20.ScheduleExchange, out.NextState)
}

// TestServiceSelection_UnofferedService_Aborts confirms selecting a
// service id ServiceDiscovery never offered is rejected rather than
// silently accepted.
func TestServiceSelection_UnofferedService_Aborts(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO20-2")
	deps := iso20.Deps{EVSE: ctrl}
	sess := newSession()
	sess.OfferedServices = []dtype.ServiceDetails{{ServiceID: 1, ServiceCategory: dtype.ServiceCategoryCharging}}
	ctx := context.Background()

	out, err := iso20.Process(ctx, deps, sess, iso20.ServiceSelection, isotwenty.ServiceSelectionReq{
		SelectedEnergyTransferServiceID: 99,
	})
	require.NoError(t, err)
	res := out.Response.(*isotwenty.ServiceSelectionRes)
	assert.Equal(t, dtype.ResponseFailedServiceSelectionInvalid, res.Code())
	assert.True(t, out.Terminate)
}

// TestScheduleExchange_NotModeled_AbortsCleanly confirms a session that
// actually reaches ScheduleExchange gets a logged, generic failure
// rather than an unrecognized-state panic, matching the comment on
// Process about this catalog's modeled scope.
func TestScheduleExchange_NotModeled_AbortsCleanly(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO20-3")
	deps := iso20.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()

	out, err := iso20.Process(ctx, deps, sess, iso20.ScheduleExchange, isotwenty.ServiceSelectionReq{})
	require.NoError(t, err)
	res := out.Response.(*isotwenty.ServiceSelectionRes)
	assert.Equal(t, dtype.ResponseFailed, res.Code())
	assert.True(t, out.Terminate)
}

// TestSessionStop_PauseReason confirms a ChargingSessionPause stop
// request is recorded as "paused" rather than the default "terminated".
func TestSessionStop_PauseReason(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO20-4")
	deps := iso20.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()

	out, err := iso20.Process(ctx, deps, sess, iso20.SessionStop, isotwenty.SessionStopReq{
		ChargingSession: isotwenty.ChargingSessionPause,
	})
	require.NoError(t, err)
	assert.True(t, out.Terminate)
	require.NotNil(t, sess.StopReason)
	assert.Equal(t, "paused", sess.StopReason.Reason)
}

// TestProcess_UnknownState_ReturnsError confirms an unrecognized current
// state name surfaces an error rather than silently no-opping.
func TestProcess_UnknownState_ReturnsError(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO20-5")
	deps := iso20.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()

	_, err := iso20.Process(ctx, deps, sess, "NotARealState", isotwenty.SessionStopReq{})
	require.Error(t, err)
}
