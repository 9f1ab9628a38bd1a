// Package codec defines the wire-encoding seam the session handler and
// failed-response registry use to serialize and clone catalog messages.
// In production a SECC binds this to an EXI encoder/decoder pair; this
// package ships only a CBOR-backed reference implementation for tests
// and for the example binaries, since an EXI codec is owned externally.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Codec encodes and decodes catalog message bodies to and from their wire
// representation. A real deployment supplies an EXI-backed implementation;
// this package's CBORCodec exists only to exercise the rest of the module.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// CBORCodec is a deterministic CBOR Codec, standing in for an externally
// owned EXI codec. It is not a model of EXI: it exists so that signature
// canonicalization, message cloning, and round-trip tests have a concrete
// encoding to exercise without depending on EXI tooling.
type CBORCodec struct{}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to build CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to build CBOR decoder mode: %v", err))
	}
}

// NewCBORCodec returns the reference Codec implementation.
func NewCBORCodec() CBORCodec { return CBORCodec{} }

func (CBORCodec) Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func (CBORCodec) Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder returns a streaming encoder over w, for transports that frame
// messages themselves rather than handing Codec whole byte slices.
func NewEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

// NewDecoder returns a streaming decoder over r.
func NewDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }

// Clone returns a deep copy of v obtained by round-tripping it through the
// reference codec. (The failed-response registry does not call it; it
// clones its templates with its own CBORCodec encode/decode round trip.)
func Clone[T any](v T) (T, error) {
	var result T
	data, err := encMode.Marshal(v)
	if err != nil {
		return result, err
	}
	err = decMode.Unmarshal(data, &result)
	return result, err
}

// Equal reports whether a and b encode to the same canonical bytes.
func Equal(a, b any) bool {
	da, errA := encMode.Marshal(a)
	db, errB := encMode.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(da, db)
}
