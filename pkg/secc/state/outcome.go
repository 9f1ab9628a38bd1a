// Package state defines the uniform contract every per-protocol state
// function implements: accept an inbound message, validate it against the
// session context, and return the response to send plus the named
// successor state. The per-protocol packages (iso2, din, iso20) hold the
// actual message-type dispatch tables; this package only holds the shared
// shape they all return.
package state

import "time"

// Outcome is what a state function returns after processing one inbound
// message: the response record to encode and send, the name of the state
// to transition to, the sequence timeout to arm while waiting for the
// next inbound message, and whether the session ends once this response
// has been written.
//
// NextState == "" means "remain in the current state" (the distinguished
// None of the design notes): the current state's accepted-message set is
// unchanged and the caller must not advance the dispatch table.
type Outcome struct {
	Response  any
	NextState string
	Timeout   time.Duration
	Terminate bool
}

// Default sequence timeouts, named in spec §5.
const (
	SetupTimeout    = 20 * time.Second
	SequenceTimeout = 60 * time.Second
	// CurrentDemandTimeout is the tight response budget CURRENT_DEMAND_REQ
	// must be answered within; the handler arms it instead of
	// SequenceTimeout while a DC CurrentDemand loop is in progress.
	CurrentDemandTimeout = 250 * time.Millisecond
)
