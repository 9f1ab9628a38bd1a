package iso2_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwo"
	"github.com/mash-protocol/mash-go/pkg/evse"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
	"github.com/mash-protocol/mash-go/pkg/secc/state/iso2"
	"github.com/mash-protocol/mash-go/pkg/security"
	"github.com/mash-protocol/mash-go/pkg/security/testpki"
)

func newSession() *session.Context {
	return session.New(nil)
}

// TestACLoop_HappyPath_EIM drives the AC energy-transfer path end to end
// with EIM authorization, the ISO 15118-2 sibling of din_test.go's DC
// happy path.
func TestACLoop_HappyPath_EIM(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO2-1")
	ctrl.SetSchedules([]dtype.ScheduleTuple{{ID: 1}})
	ctrl.SetAuthorization(evse.AuthAccepted)
	deps := iso2.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()
	state := iso2.SessionSetup

	out, err := iso2.Process(ctx, deps, sess, state, isotwo.SessionSetupReq{EVCCID: "DEADBEEF0010"})
	require.NoError(t, err)
	res := out.Response.(*isotwo.SessionSetupRes)
	assert.Equal(t, dtype.ResponseOKNewSessionEstablished, res.Code())
	state = out.NextState

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.ServiceDiscoveryReq{})
	require.NoError(t, err)
	discRes := out.Response.(*isotwo.ServiceDiscoveryRes)
	assert.Contains(t, discRes.AuthOptions, dtype.AuthEIM)
	assert.Equal(t, "", out.NextState)

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.PaymentServiceSelectionReq{
		SelectedAuthOption: dtype.AuthEIM,
		SelectedServices:   []uint16{1},
	})
	require.NoError(t, err)
	assert.Equal(t, iso2.Authorization, out.NextState)
	state = out.NextState

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.AuthorizationReq{})
	require.NoError(t, err)
	authRes := out.Response.(*isotwo.AuthorizationRes)
	assert.Equal(t, dtype.ProcessingFinished, authRes.EVSEProcessing)
	assert.Equal(t, iso2.ChargeParameterDiscovery, out.NextState)
	state = out.NextState

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.ChargeParameterDiscoveryReq{
		RequestedEnergyTransferMode: dtype.EnergyModeACThreePhase,
		MaxEntriesSAScheduleTuple:   0,
	})
	require.NoError(t, err)
	cpdRes := out.Response.(*isotwo.ChargeParameterDiscoveryRes)
	assert.NotNil(t, cpdRes.ACChargeParameter)
	assert.Nil(t, cpdRes.DCChargeParameter)
	assert.Equal(t, "", out.NextState)

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.PowerDeliveryReq{
		ChargeProgress:    isotwo.ChargeProgressStart,
		SAScheduleTupleID: 1,
		ChargingProfile: []isotwo.ChargingProfileEntry{
			{StartInterval: 0, MaxPower: dtype.PhysicalValue{Value: 11, Unit: dtype.UnitWatt}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, iso2.ChargingStatus, out.NextState)
	assert.True(t, ctrl.HLCActive())
	state = out.NextState

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.ChargingStatusReq{})
	require.NoError(t, err)
	csRes := out.Response.(*isotwo.ChargingStatusRes)
	assert.False(t, csRes.ReceiptRequired)
	assert.Equal(t, "", out.NextState)

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.PowerDeliveryReq{
		ChargeProgress:    isotwo.ChargeProgressStop,
		SAScheduleTupleID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, iso2.SessionStop, out.NextState)
	assert.False(t, ctrl.HLCActive())
	state = out.NextState

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.SessionStopReq{})
	require.NoError(t, err)
	assert.True(t, out.Terminate)
	assert.NotNil(t, sess.StopReason)
}

// TestChargeParameterDiscovery_WrongEnergyMode_Aborts confirms a requested
// mode the EVSE never advertised is rejected rather than silently upgraded
// or downgraded to a supported one.
func TestChargeParameterDiscovery_WrongEnergyMode_Aborts(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO2-2")
	deps := iso2.Deps{EVSE: ctrl}
	sess := newSession()
	ctx := context.Background()

	out, err := iso2.Process(ctx, deps, sess, iso2.ChargeParameterDiscovery, isotwo.ChargeParameterDiscoveryReq{
		RequestedEnergyTransferMode: dtype.EnergyModeDCCombo,
	})
	require.NoError(t, err)
	res := out.Response.(*isotwo.ChargeParameterDiscoveryRes)
	assert.Equal(t, dtype.ResponseFailedWrongEnergyTransferMode, res.Code())
	assert.True(t, out.Terminate)
}

// TestPowerDelivery_MissingChargingProfile_Aborts confirms ChargeProgress
// Start without at least one charging profile entry is rejected.
func TestPowerDelivery_MissingChargingProfile_Aborts(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO2-3")
	ctrl.SetSchedules([]dtype.ScheduleTuple{{ID: 1}})
	deps := iso2.Deps{EVSE: ctrl}
	sess := newSession()
	sess.OfferedSchedules = []dtype.ScheduleTuple{{ID: 1}}
	ctx := context.Background()

	out, err := iso2.Process(ctx, deps, sess, iso2.PowerDelivery, isotwo.PowerDeliveryReq{
		ChargeProgress:    isotwo.ChargeProgressStart,
		SAScheduleTupleID: 1,
	})
	require.NoError(t, err)
	res := out.Response.(*isotwo.PowerDeliveryRes)
	assert.Equal(t, dtype.ResponseFailedChargingProfileInvalid, res.Code())
	assert.True(t, out.Terminate)
}

// TestPowerDelivery_NonIncreasingProfile_Aborts confirms a charging
// profile whose entries don't strictly increase in StartInterval is
// rejected the same way an empty one is.
func TestPowerDelivery_NonIncreasingProfile_Aborts(t *testing.T) {
	ctrl := evse.NewSimulated("EVSE-ISO2-3b")
	ctrl.SetSchedules([]dtype.ScheduleTuple{{ID: 1}})
	deps := iso2.Deps{EVSE: ctrl}
	sess := newSession()
	sess.OfferedSchedules = []dtype.ScheduleTuple{{ID: 1}}
	ctx := context.Background()

	out, err := iso2.Process(ctx, deps, sess, iso2.PowerDelivery, isotwo.PowerDeliveryReq{
		ChargeProgress:    isotwo.ChargeProgressStart,
		SAScheduleTupleID: 1,
		ChargingProfile: []isotwo.ChargingProfileEntry{
			{StartInterval: 10, MaxPower: dtype.PhysicalValue{Value: 10, Unit: dtype.UnitWatt}},
			{StartInterval: 5, MaxPower: dtype.PhysicalValue{Value: 0, Unit: dtype.UnitWatt}},
		},
	})
	require.NoError(t, err)
	res := out.Response.(*isotwo.PowerDeliveryRes)
	assert.Equal(t, dtype.ResponseFailedChargingProfileInvalid, res.Code())
	assert.True(t, out.Terminate)
}

// TestPnCLoop_CertificateInstallationAndAuthorization drives the PnC
// branch through CertificateInstallation, PaymentDetails and a
// signature-checked Authorization, exercising security.VerifyChain and
// security.Sign/Verify against real ECDSA certificates from testpki.
func TestPnCLoop_CertificateInstallationAndAuthorization(t *testing.T) {
	oemChain, err := testpki.NewChain(testpki.Options{LeafCommonName: "OEM-PROV-0001"})
	require.NoError(t, err)
	moChain, err := testpki.NewChain(testpki.Options{LeafCommonName: "EMAID0000000001"})
	require.NoError(t, err)

	ctrl := evse.NewSimulated("EVSE-ISO2-4")
	ctrl.SetAuthorization(evse.AuthAccepted)
	deps := iso2.Deps{
		EVSE:               ctrl,
		V2GRoot:            oemChain.RootPool(),
		MORoot:             moChain.RootPool(),
		AllowPnC:           true,
		ContractPrivateKey: []byte("contract-private-key-bytes-32xx"),
	}
	sess := newSession()
	sess.IsTLS = true
	ctx := context.Background()
	state := iso2.SessionSetup

	out, err := iso2.Process(ctx, deps, sess, state, isotwo.SessionSetupReq{EVCCID: "DEADBEEF0020"})
	require.NoError(t, err)
	state = out.NextState

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.ServiceDiscoveryReq{})
	require.NoError(t, err)
	discRes := out.Response.(*isotwo.ServiceDiscoveryRes)
	assert.Contains(t, discRes.AuthOptions, dtype.AuthPnC)

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.PaymentServiceSelectionReq{
		SelectedAuthOption: dtype.AuthPnC,
		SelectedServices:   []uint16{1},
	})
	require.NoError(t, err)
	assert.Equal(t, iso2.CertificateInstallation, out.NextState)
	state = out.NextState

	oemSig, err := security.Sign(oemChain.Leaf.PrivateKey, oemChain.LeafDER())
	require.NoError(t, err)
	out, err = iso2.Process(ctx, deps, sess, state, isotwo.CertificateInstallationReq{
		OEMProvisioningCertChain: dtype.CertificateChain{Leaf: oemChain.LeafDER()},
		Signature:                oemSig,
	})
	require.NoError(t, err)
	instRes := out.Response.(*isotwo.CertificateInstallationRes)
	assert.Equal(t, dtype.ResponseOK, instRes.Code())
	assert.NotEmpty(t, instRes.EncryptedPrivateKey)
	assert.Equal(t, iso2.PaymentDetails, out.NextState)
	state = out.NextState

	out, err = iso2.Process(ctx, deps, sess, state, isotwo.PaymentDetailsReq{
		EMAID:             "EMAID0000000001",
		ContractCertChain: dtype.CertificateChain{Leaf: moChain.LeafDER()},
	})
	require.NoError(t, err)
	assert.Equal(t, iso2.Authorization, out.NextState)
	assert.NotNil(t, sess.ContractCertChain)
	state = out.NextState

	authSig, err := security.Sign(moChain.Leaf.PrivateKey, "challenge-id-1")
	require.NoError(t, err)
	out, err = iso2.Process(ctx, deps, sess, state, isotwo.AuthorizationReq{
		ID:        "challenge-id-1",
		Signature: authSig,
	})
	require.NoError(t, err)
	authRes := out.Response.(*isotwo.AuthorizationRes)
	assert.Equal(t, dtype.ResponseOK, authRes.Code())
	assert.Equal(t, iso2.ChargeParameterDiscovery, out.NextState)
}

// TestPnCLoop_BadAuthorizationSignature_Aborts confirms a signature that
// doesn't verify against the contract leaf is rejected rather than
// silently falling back to EVSE-only authorization.
func TestPnCLoop_BadAuthorizationSignature_Aborts(t *testing.T) {
	moChain, err := testpki.NewChain(testpki.Options{LeafCommonName: "EMAID0000000002"})
	require.NoError(t, err)

	ctrl := evse.NewSimulated("EVSE-ISO2-5")
	ctrl.SetAuthorization(evse.AuthAccepted)
	deps := iso2.Deps{EVSE: ctrl}
	sess := newSession()
	pnc := dtype.AuthPnC
	sess.SelectedAuthOption = &pnc
	sess.ContractCertChain = &dtype.CertificateChain{Leaf: moChain.LeafDER()}
	ctx := context.Background()

	out, err := iso2.Process(ctx, deps, sess, iso2.Authorization, isotwo.AuthorizationReq{
		ID:        "challenge-id-2",
		Signature: []byte("not-a-valid-signature"),
	})
	require.NoError(t, err)
	res := out.Response.(*isotwo.AuthorizationRes)
	assert.Equal(t, dtype.ResponseFailedSignatureError, res.Code())
	assert.True(t, out.Terminate)
}
