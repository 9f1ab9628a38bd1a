package protolog

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode and decMode are configured for canonical, deterministic
// encoding with nanosecond-precision timestamps. The key ordering and
// indefinite-length settings match the session handler's own codec; the
// time encoding does not (the codec writes Unix timestamps).
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("protolog: build encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protolog: build decoder mode: %v", err))
	}
}

// NewEncoder returns a CBOR encoder that appends one Event per call to w,
// the shape FileLogger writes and Reader consumes.
func NewEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

// NewDecoder returns a CBOR decoder that reads a stream of Events back out.
func NewDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }
