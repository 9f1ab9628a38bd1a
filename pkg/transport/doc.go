// Package transport provides length-prefixed message framing over any
// net.Conn, TLS or plain.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR/EXI Messages         │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│      TLS (optional) / TCP      │
//	└────────────────────────────────┘
//
// DIN SPEC 70121 and ISO 15118-2 both carry their V2G messages over a
// plain TCP socket (TLS is optional, negotiated during SDP); this
// package only implements the framing, not the socket or TLS setup,
// which callers (cmd/secc-example) own directly via net.Listen/tls.Conn.
package transport
