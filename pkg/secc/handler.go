// Package secc wires the message catalog, failed-response registry,
// security services, EVSE controller, and per-protocol state machines
// into a runnable session handler: one Handler per accepted connection,
// driving a single cooperative read/decode/process/encode/write loop
// until the session reaches a terminal state or the loop's context is
// canceled.
package secc

import (
	"context"
	"fmt"
	"time"

	"github.com/mash-protocol/mash-go/pkg/catalog/din"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwenty"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwo"
	"github.com/mash-protocol/mash-go/pkg/codec"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/secc/session"
	"github.com/mash-protocol/mash-go/pkg/secc/state"
	secc_din "github.com/mash-protocol/mash-go/pkg/secc/state/din"
	"github.com/mash-protocol/mash-go/pkg/secc/state/iso2"
	"github.com/mash-protocol/mash-go/pkg/secc/state/iso20"
)

// Transport is the frame-level read/write seam a Handler drives. It never
// touches net.Conn or EXI bytes directly; a caller supplies a Transport
// bound to whatever real connection and wire codec it owns, matching the
// "interfaces only" boundary for transport and encoding.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}

// initialState names the first state of every per-protocol state machine.
// DIN, ISO-2, and ISO-20 all happen to name it identically, which lets the
// Handler track a single current-state string regardless of which catalog
// the connection turns out to speak.
const initialState = "SessionSetup"

// Handler drives one session end to end: read a frame, decode it against
// the session's negotiated (or not-yet-negotiated) protocol, run it
// through that protocol's state machine, encode and send the response,
// and arm the next sequence timeout, until a terminal Outcome or a
// canceled context ends the loop.
type Handler struct {
	Transport Transport
	Codec     codec.Codec
	Store     SessionStore
	Logger    protolog.Logger

	// RemoteAddr is recorded on every logged event and in the terminal
	// StopReason; it is informational only, supplied by the caller that
	// owns the underlying connection.
	RemoteAddr string
	// IsTLS reports whether the underlying connection is carrying TLS,
	// gating PnC per spec's rule that PnC is only ever offered over TLS.
	IsTLS bool

	ISO2Deps  iso2.Deps
	DINDeps   secc_din.Deps
	ISO20Deps iso20.Deps
}

func (h *Handler) logger() protolog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return protolog.NoopLogger{}
}

// noopStore discards every record; it is the Handler's default Store so a
// caller that has no resume requirement doesn't need a nil check.
type noopStore struct{}

func (noopStore) Load(string) (SessionRecord, bool) { return SessionRecord{}, false }
func (noopStore) Save(SessionRecord)                {}
func (noopStore) Delete(string)                     {}

func (h *Handler) store() SessionStore {
	if h.Store != nil {
		return h.Store
	}
	return noopStore{}
}

// Run drives the session loop until a terminal Outcome fires, ReadFrame
// returns an error (including context cancellation surfaced by the
// caller's Transport), or ctx itself is canceled while waiting on a read.
func (h *Handler) Run(ctx context.Context) error {
	sess := session.New(h.logger())
	sess.IsTLS = h.IsTLS
	current := initialState
	timeout := state.SetupTimeout

	for {
		frame, err := h.readFrameWithContext(ctx, timeout)
		if err != nil {
			sess.MarkTerminated(h.RemoteAddr, false, err.Error())
			return fmt.Errorf("secc: read frame: %w", err)
		}

		env, err := decodeFrame(h.Codec, frame)
		if err != nil {
			h.logError(sess, err, true)
			return err
		}

		if current == initialState && sess.SessionID == "" {
			h.resolveResume(sess, env)
		}

		req, protocol, err := h.decodeRequest(sess, env)
		if err != nil {
			h.logError(sess, err, true)
			return err
		}
		h.logMessage(sess, protolog.DirectionIn, protocol, reqTypeString(req), "")

		outcome, err := h.process(ctx, sess, protocol, current, req)
		if err != nil {
			h.logError(sess, err, true)
			return err
		}

		respBody, err := h.Codec.Encode(outcome.Response)
		if err != nil {
			h.logError(sess, fmt.Errorf("secc: encode response: %w", err), true)
			return err
		}
		respFrame, err := encodeFrame(h.Codec, protocol, sess.SessionID, responseMsgType(outcome.Response), respBody)
		if err != nil {
			h.logError(sess, err, true)
			return err
		}
		if err := h.Transport.WriteFrame(respFrame); err != nil {
			h.logError(sess, fmt.Errorf("secc: write frame: %w", err), true)
			return err
		}
		h.logMessage(sess, protolog.DirectionOut, protocol, reqTypeString(outcome.Response), responseCodeString(outcome.Response))

		if sess.SessionID != "" {
			h.store().Save(SessionRecord{SessionID: sess.SessionID, SelectedAuthOption: sess.SelectedAuthOption})
		}

		if outcome.NextState != "" && outcome.NextState != current {
			h.logStateChange(sess, current, outcome.NextState, "")
			current = outcome.NextState
		}

		if outcome.Terminate {
			reason := "normal"
			if outcome.Response != nil && responseCodeString(outcome.Response) != "OK" {
				reason = responseCodeString(outcome.Response)
			}
			sess.MarkTerminated(h.RemoteAddr, true, reason)
			return nil
		}

		if outcome.Timeout > 0 {
			timeout = outcome.Timeout
		} else {
			timeout = state.SequenceTimeout
		}
		h.logTimer(sess, "arm", timeout)
	}
}

// resolveResume implements the session-id rule from the data model: a
// zero id (or no id at all) starts a new session; a non-zero id matching
// a record this Store has previously Saved resumes that session's
// selected auth option; any other non-zero id is silently treated as new
// (processSessionSetup mints a fresh id because sess.SessionID is left
// empty here).
func (h *Handler) resolveResume(sess *session.Context, env Envelope) {
	if env.SessionID == "" || env.SessionID == session.ZeroSessionID {
		return
	}
	if rec, ok := h.store().Load(env.SessionID); ok {
		sess.SessionID = rec.SessionID
		sess.SelectedAuthOption = rec.SelectedAuthOption
	}
}

// decodeRequest picks the catalog a frame's body belongs to — the
// envelope's own tag for the first message of a connection, the
// session's already-negotiated protocol for every message after — and
// decodes the body into that catalog's concrete request type.
func (h *Handler) decodeRequest(sess *session.Context, env Envelope) (any, session.ProtocolVersion, error) {
	protocol := env.Protocol
	if sess.ProtocolVersion != session.ProtocolUnknown {
		protocol = sess.ProtocolVersion
		if env.Protocol != protocol {
			return nil, protocol, fmt.Errorf("secc: envelope protocol %v does not match negotiated %v", env.Protocol, protocol)
		}
	}

	switch protocol {
	case session.ProtocolDINSPEC70121:
		req, err := decodeDINRequest(h.Codec, env)
		return req, protocol, err
	case session.ProtocolISO15118_2:
		req, err := decodeISO2Request(h.Codec, env)
		return req, protocol, err
	case session.ProtocolISO15118_20Unknown, session.ProtocolISO15118_20AC, session.ProtocolISO15118_20DC:
		req, err := decodeISO20Request(h.Codec, env)
		return req, protocol, err
	default:
		return nil, protocol, fmt.Errorf("secc: unrecognized protocol tag %d", env.Protocol)
	}
}

// process dispatches to the state machine matching protocol.
func (h *Handler) process(ctx context.Context, sess *session.Context, protocol session.ProtocolVersion, current string, req any) (state.Outcome, error) {
	switch protocol {
	case session.ProtocolDINSPEC70121:
		dinReq, ok := req.(din.Request)
		if !ok {
			return state.Outcome{}, fmt.Errorf("secc: %T is not a DIN request", req)
		}
		return secc_din.Process(ctx, h.DINDeps, sess, current, dinReq)
	case session.ProtocolISO15118_2:
		iso2Req, ok := req.(isotwo.Request)
		if !ok {
			return state.Outcome{}, fmt.Errorf("secc: %T is not an ISO 15118-2 request", req)
		}
		return iso2.Process(ctx, h.ISO2Deps, sess, current, iso2Req)
	case session.ProtocolISO15118_20Unknown, session.ProtocolISO15118_20AC, session.ProtocolISO15118_20DC:
		iso20Req, ok := req.(isotwenty.Request)
		if !ok {
			return state.Outcome{}, fmt.Errorf("secc: %T is not an ISO 15118-20 request", req)
		}
		return iso20.Process(ctx, h.ISO20Deps, sess, current, iso20Req)
	default:
		return state.Outcome{}, fmt.Errorf("secc: unrecognized protocol %v", protocol)
	}
}

// readFrameWithContext reads one frame on a background goroutine so a
// blocking Transport.ReadFrame can still be abandoned on context
// cancellation, grounded on the teacher's readMessageWithContext
// pattern; it additionally enforces the sequence timeout via a timer
// racing the same select.
func (h *Handler) readFrameWithContext(ctx context.Context, timeout time.Duration) ([]byte, error) {
	type result struct {
		frame []byte
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		frame, err := h.Transport.ReadFrame()
		resultCh <- result{frame, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("secc: sequence timeout after %s", timeout)
	case r := <-resultCh:
		return r.frame, r.err
	}
}

func (h *Handler) logMessage(sess *session.Context, dir protolog.Direction, protocol session.ProtocolVersion, reqType, code string) {
	h.logger().Log(protolog.Event{
		Timestamp:  time.Now(),
		SessionID:  sess.SessionID,
		Direction:  dir,
		Category:   protolog.CategoryMessage,
		Protocol:   protocol.String(),
		RemoteAddr: h.RemoteAddr,
		Message:    &protolog.MessageEvent{RequestType: reqType, ResponseCode: code},
	})
}

func (h *Handler) logStateChange(sess *session.Context, oldState, newState, reason string) {
	h.logger().Log(protolog.Event{
		Timestamp:   time.Now(),
		SessionID:   sess.SessionID,
		Direction:   protolog.DirectionOut,
		Category:    protolog.CategoryState,
		RemoteAddr:  h.RemoteAddr,
		StateChange: &protolog.StateChangeEvent{OldState: oldState, NewState: newState, Reason: reason},
	})
}

func (h *Handler) logError(sess *session.Context, err error, fatal bool) {
	h.logger().Log(protolog.Event{
		Timestamp:  time.Now(),
		SessionID:  sess.SessionID,
		Direction:  protolog.DirectionIn,
		Category:   protolog.CategoryError,
		RemoteAddr: h.RemoteAddr,
		Error:      &protolog.ErrorEvent{Message: err.Error(), Fatal: fatal},
	})
}

func (h *Handler) logTimer(sess *session.Context, kind string, d time.Duration) {
	h.logger().Log(protolog.Event{
		Timestamp: time.Now(),
		SessionID: sess.SessionID,
		Direction: protolog.DirectionOut,
		Category:  protolog.CategoryTimer,
		Timer:     &protolog.TimerEvent{Kind: kind, Duration: d},
	})
}
