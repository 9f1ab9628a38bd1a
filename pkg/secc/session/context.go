// Package session defines the per-connection mutable record the state
// machine reads and updates on every message: identity, negotiated
// options, offered catalog entries, and the terminal stop reason. A
// Context is created on TCP accept and discarded once a terminal state
// fires; nothing here is safe for concurrent use, which matches the
// single-threaded-cooperative-per-session model the handler runs under.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
	"github.com/mash-protocol/mash-go/pkg/protolog"
)

// ProtocolVersion identifies which message catalog a session has
// negotiated. ISO15118_20Unknown is distinguished from Unknown so the
// dispatcher can tell "no SupportedAppProtocol exchange yet" from
// "negotiated as -20 but energy-service subtype undetermined".
type ProtocolVersion uint8

const (
	ProtocolUnknown ProtocolVersion = iota
	ProtocolDINSPEC70121
	ProtocolISO15118_2
	ProtocolISO15118_20Unknown
	ProtocolISO15118_20AC
	ProtocolISO15118_20DC
)

func (p ProtocolVersion) String() string {
	switch p {
	case ProtocolDINSPEC70121:
		return "DIN SPEC 70121"
	case ProtocolISO15118_2:
		return "ISO 15118-2"
	case ProtocolISO15118_20Unknown:
		return "ISO 15118-20"
	case ProtocolISO15118_20AC:
		return "ISO 15118-20 AC"
	case ProtocolISO15118_20DC:
		return "ISO 15118-20 DC"
	default:
		return "unknown"
	}
}

// StopReason records why a session ended, for the terminal
// StopNotification the handler emits.
type StopReason struct {
	PeerAddress string
	Normal      bool
	Reason      string
}

// Context is the per-connection session record described by the data
// model: identity, negotiated options, offered catalog entries, and
// terminal state. State functions read and mutate it directly; it
// carries no lock because exactly one goroutine (the session's Handler)
// ever touches it.
type Context struct {
	SessionID       string
	EVCCID          string
	ProtocolVersion ProtocolVersion
	IsTLS           bool

	OfferedAuthOptions []dtype.AuthOption
	SelectedAuthOption *dtype.AuthOption

	OfferedServices  []dtype.ServiceDetails
	OfferedSchedules []dtype.ScheduleTuple

	SelectedEnergyMode *dtype.EnergyTransferMode
	SelectedSchedule   *uint8

	ContractCertChain *dtype.CertificateChain

	ChargeProgressStarted bool
	SentMeterInfo         *dtype.MeterInfo

	StopReason *StopReason

	// visited records, per message-type name, whether a cyclic state has
	// already processed its first visit — backing the "first-visit" rule
	// (e.g. ServiceDiscovery accepts ServiceDetailReq only after its own
	// ServiceDiscoveryReq has been seen at least once).
	visited map[string]bool

	Logger       protolog.Logger
	ConnectionID uuid.UUID
}

// New creates a Context for a freshly accepted connection. The session id
// is not assigned yet; SessionSetup resolves it per the new/resume/
// mismatch rule.
func New(logger protolog.Logger) *Context {
	if logger == nil {
		logger = protolog.NoopLogger{}
	}
	return &Context{
		visited:      make(map[string]bool),
		Logger:       logger,
		ConnectionID: uuid.New(),
	}
}

// NewSessionID generates a fresh 8-byte session identifier, encoded as an
// upper-hex string per the wire convention.
func NewSessionID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate session id: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// ZeroSessionID is the all-zero id a SessionSetupReq sends to request a
// new session.
const ZeroSessionID = "0000000000000000"

// Visited reports whether the named state has already processed one
// request, and marks it visited as a side effect. Call once per inbound
// message that a cyclic state accepts.
func (c *Context) Visited(state string) bool {
	was := c.visited[state]
	c.visited[state] = true
	return was
}

// MarkTerminated records why the session ended.
func (c *Context) MarkTerminated(peerAddress string, normal bool, reason string) {
	c.StopReason = &StopReason{PeerAddress: peerAddress, Normal: normal, Reason: reason}
	c.Logger.Log(protolog.Event{
		Timestamp: time.Now(),
		SessionID: c.SessionID,
		Direction: protolog.DirectionOut,
		Category:  protolog.CategoryState,
		StateChange: &protolog.StateChangeEvent{
			NewState: "Terminated",
			Reason:   reason,
		},
	})
}
