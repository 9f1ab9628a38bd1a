package secc_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-go/pkg/catalog/din"
	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/codec"
	"github.com/mash-protocol/mash-go/pkg/evse"
	"github.com/mash-protocol/mash-go/pkg/secc"
	secc_din "github.com/mash-protocol/mash-go/pkg/secc/state/din"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
)

// scriptedTransport feeds a fixed sequence of inbound frames to a Handler
// and records every frame it writes back, standing in for a real net.Conn
// the way the teacher's own test doubles stand in for hardware. ReadFrame
// blocks until either a frame is available or the script is marked done,
// since a real connection blocks between messages rather than EOFing.
type scriptedTransport struct {
	mu   sync.Mutex
	cond *sync.Cond
	in   [][]byte
	idx  int
	out  [][]byte
	done bool
}

func newScriptedTransport(frames [][]byte) *scriptedTransport {
	t := &scriptedTransport{in: frames}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *scriptedTransport) append(frames ...[]byte) {
	t.mu.Lock()
	t.in = append(t.in, frames...)
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *scriptedTransport) finish() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *scriptedTransport) ReadFrame() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.idx >= len(t.in) && !t.done {
		t.cond.Wait()
	}
	if t.idx >= len(t.in) {
		return nil, io.EOF
	}
	frame := t.in[t.idx]
	t.idx++
	return frame, nil
}

func (t *scriptedTransport) WriteFrame(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out = append(t.out, data)
	return nil
}

func (t *scriptedTransport) responses() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out
}

func encodeDINFrame(t *testing.T, c codec.Codec, sessionID string, reqType din.RequestType, req any) []byte {
	t.Helper()
	body, err := c.Encode(req)
	require.NoError(t, err)
	env := secc.Envelope{
		Protocol:  session.ProtocolDINSPEC70121,
		MsgType:   uint8(reqType),
		SessionID: sessionID,
		Body:      body,
	}
	frame, err := c.Encode(env)
	require.NoError(t, err)
	return frame
}

func decodeEnvelope(t *testing.T, c codec.Codec, frame []byte) secc.Envelope {
	t.Helper()
	var env secc.Envelope
	require.NoError(t, c.Decode(frame, &env))
	return env
}

// TestHandler_DINHappyPath drives a full DIN SPEC 70121 DC session through
// Handler.Run via a scripted Transport, mirroring the sequence already
// proven state-machine-only in secc/state/din's own happy-path test.
func TestHandler_DINHappyPath(t *testing.T) {
	c := codec.NewCBORCodec()
	ctrl := evse.NewSimulated("EVSE-HANDLER-1")
	ctrl.SetSchedules([]dtype.ScheduleTuple{{ID: 1}})
	ctrl.SetAuthorization(evse.AuthAccepted)

	target := dtype.PhysicalValue{Value: 400, Unit: dtype.UnitVolt}
	ctrl.SetPresentElectricalValues(dtype.PhysicalValue{Value: 0, Unit: dtype.UnitVolt}, dtype.PhysicalValue{Value: 0, Unit: dtype.UnitAmpere})

	frames := [][]byte{
		encodeDINFrame(t, c, "", din.TypeSessionSetup, din.SessionSetupReq{EVCCID: "DEADBEEF0001"}),
		encodeDINFrame(t, c, "", din.TypeServiceDiscovery, din.ServiceDiscoveryReq{}),
		encodeDINFrame(t, c, "", din.TypeServicePaymentSelection, din.ServicePaymentSelectionReq{
			SelectedAuthOption: dtype.AuthEIM,
			SelectedServiceID:  1,
		}),
		encodeDINFrame(t, c, "", din.TypeContractAuthentication, din.ContractAuthenticationReq{}),
		encodeDINFrame(t, c, "", din.TypeChargeParameterDiscovery, din.ChargeParameterDiscoveryReq{
			EVRequestedEnergyTransferType: dtype.EnergyModeDCExtended,
		}),
		encodeDINFrame(t, c, "", din.TypeCableCheck, din.CableCheckReq{}),
	}

	// Cable check stays in CableCheck until the controller reports the
	// isolation result, which the test flips after the first round trip.
	transport := newScriptedTransport(frames)

	deps := secc_din.Deps{EVSE: ctrl}
	h := &secc.Handler{
		Transport:  transport,
		Codec:      c,
		RemoteAddr: "198.51.100.7:1234",
		DINDeps:    deps,
	}

	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(context.Background()) }()

	// Let the handler consume the scripted frames up through the first
	// CableCheck round trip, then append the rest of the sequence once
	// the isolation check is driven to completion, matching the
	// state-machine test's own two-round-trip CableCheck shape.
	time.Sleep(20 * time.Millisecond)
	ctrl.CompleteCableCheck(dtype.IsolationValid)

	transport.append(
		encodeDINFrame(t, c, "", din.TypeCableCheck, din.CableCheckReq{}),
		encodeDINFrame(t, c, "", din.TypePreCharge, din.PreChargeReq{EVTargetVoltage: target}),
	)

	time.Sleep(20 * time.Millisecond)
	ctrl.SetPresentElectricalValues(target, dtype.PhysicalValue{Value: 0, Unit: dtype.UnitAmpere})

	transport.append(
		encodeDINFrame(t, c, "", din.TypePreCharge, din.PreChargeReq{EVTargetVoltage: target}),
		encodeDINFrame(t, c, "", din.TypePowerDelivery, din.PowerDeliveryReq{
			ChargeProgress:    din.ChargeProgressStart,
			SAScheduleTupleID: 1,
		}),
	)

	time.Sleep(20 * time.Millisecond)
	ctrl.SetPresentElectricalValues(target, dtype.PhysicalValue{Value: 16, Unit: dtype.UnitAmpere})

	transport.append(
		encodeDINFrame(t, c, "", din.TypeCurrentDemand, din.CurrentDemandReq{
			EVTargetCurrent: dtype.PhysicalValue{Value: 16, Unit: dtype.UnitAmpere},
			EVTargetVoltage: target,
		}),
		encodeDINFrame(t, c, "", din.TypePowerDelivery, din.PowerDeliveryReq{
			ChargeProgress:    din.ChargeProgressStop,
			SAScheduleTupleID: 1,
		}),
		encodeDINFrame(t, c, "", din.TypeWeldingDetection, din.WeldingDetectionReq{EVProcessing: dtype.ProcessingFinished}),
		encodeDINFrame(t, c, "", din.TypeSessionStop, din.SessionStopReq{}),
	)

	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not terminate in time")
	}

	responses := transport.responses()
	require.Len(t, responses, 14)

	setupEnv := decodeEnvelope(t, c, responses[0])
	var setupRes din.SessionSetupRes
	require.NoError(t, c.Decode(setupEnv.Body, &setupRes))
	assert.Equal(t, dtype.ResponseOKNewSessionEstablished, setupRes.Code())
	assert.NotEmpty(t, setupEnv.SessionID)

	lastEnv := decodeEnvelope(t, c, responses[len(responses)-1])
	var stopRes din.SessionStopRes
	require.NoError(t, c.Decode(lastEnv.Body, &stopRes))
	assert.Equal(t, dtype.ResponseOK, stopRes.Code())
}

// TestHandler_SessionResume exercises resolveResume: a second connection
// presenting a session id this SessionStore already holds should have its
// prior auth option re-seeded before the state machine ever runs.
func TestHandler_SessionResume(t *testing.T) {
	c := codec.NewCBORCodec()
	store := secc.NewMemorySessionStore()
	authOption := dtype.AuthEIM
	store.Save(secc.SessionRecord{SessionID: "1122334455667788", SelectedAuthOption: &authOption})

	ctrl := evse.NewSimulated("EVSE-HANDLER-2")
	ctrl.SetSchedules([]dtype.ScheduleTuple{{ID: 1}})
	ctrl.SetAuthorization(evse.AuthAccepted)

	frames := [][]byte{
		encodeDINFrame(t, c, "1122334455667788", din.TypeSessionSetup, din.SessionSetupReq{EVCCID: "DEADBEEF0002"}),
	}
	transport := newScriptedTransport(frames)
	transport.finish()

	h := &secc.Handler{
		Transport: transport,
		Codec:     c,
		Store:     store,
		DINDeps:   secc_din.Deps{EVSE: ctrl},
	}

	err := h.Run(context.Background())
	require.Error(t, err)

	responses := transport.responses()
	require.Len(t, responses, 1)
	env := decodeEnvelope(t, c, responses[0])
	var res din.SessionSetupRes
	require.NoError(t, c.Decode(env.Body, &res))
	assert.Equal(t, dtype.ResponseOKOldSessionJoined, res.Code())
	assert.Equal(t, "1122334455667788", env.SessionID)
}

// TestHandler_ContextCancellation confirms a blocked read is abandoned
// once the caller's context is canceled, rather than blocking Run forever
// on a Transport that never returns.
func TestHandler_ContextCancellation(t *testing.T) {
	c := codec.NewCBORCodec()
	ctrl := evse.NewSimulated("EVSE-HANDLER-3")

	blocking := make(chan struct{})
	transport := &blockingTransport{block: blocking}

	h := &secc.Handler{
		Transport: transport,
		Codec:     c,
		DINDeps:   secc_din.Deps{EVSE: ctrl},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := h.Run(ctx)
	require.Error(t, err)
	close(blocking)
}

type blockingTransport struct {
	block chan struct{}
}

func (b *blockingTransport) ReadFrame() ([]byte, error) {
	<-b.block
	return nil, io.EOF
}

func (b *blockingTransport) WriteFrame([]byte) error { return nil }
