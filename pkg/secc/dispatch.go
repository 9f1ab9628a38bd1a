package secc

import (
	"fmt"

	"github.com/mash-protocol/mash-go/pkg/catalog/din"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwenty"
	"github.com/mash-protocol/mash-go/pkg/catalog/isotwo"
)

// reqTypeString names a decoded request or response for protolog, without
// the caller needing to know which of the three catalogs produced it.
func reqTypeString(v any) string {
	switch m := v.(type) {
	case din.Request:
		return m.Type().String()
	case din.Response:
		return m.Type().String()
	case isotwo.Request:
		return m.Type().String()
	case isotwo.Response:
		return m.Type().String()
	case isotwenty.Request:
		return m.Type().String()
	case isotwenty.Response:
		return m.Type().String()
	default:
		return fmt.Sprintf("%T", v)
	}
}

// responseMsgType extracts the wire message-type tag a response's own
// catalog assigns it, for the outbound Envelope.
func responseMsgType(v any) uint8 {
	switch m := v.(type) {
	case din.Response:
		return uint8(m.Type())
	case isotwo.Response:
		return uint8(m.Type())
	case isotwenty.Response:
		return uint8(m.Type())
	default:
		return 0
	}
}

// responseCodeString reports a response's result code, for protolog's
// MessageEvent.ResponseCode field.
func responseCodeString(v any) string {
	switch m := v.(type) {
	case din.Response:
		return string(m.Code())
	case isotwo.Response:
		return string(m.Code())
	case isotwenty.Response:
		return string(m.Code())
	default:
		return ""
	}
}
