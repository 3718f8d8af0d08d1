package dbus

import (
	"fmt"
	"strconv"
)

// Variant pairs a Signature with a Go value of the basic type that
// signature denotes. It is deliberately narrower than the full D-Bus
// variant value model: this package only ever constructs or consumes
// variants for header field values. The scalar bodies it reads (Hello's
// reply, an ERROR frame's string detail) are decoded straight from the
// body bytes, not through a Variant. A general-purpose container-aware
// variant model is an external collaborator's concern, not this core's.
type Variant struct {
	sig   Signature
	value interface{}
}

// MakeVariant converts v to a Variant. It panics if v is not one of the
// basic Go types this package maps to a signature: bool, byte, int16,
// uint16, int32, uint32, int64, uint64, float64, string, ObjectPath,
// Signature, or UnixFD. Encoding a Variant as a header field value
// supports only string, ObjectPath, uint32 and Signature values.
func MakeVariant(v interface{}) Variant {
	return Variant{sig: signatureOfValue(v), value: v}
}

func signatureOfValue(v interface{}) Signature {
	switch v.(type) {
	case bool:
		return Bool
	case byte:
		return U8
	case int16:
		return I16
	case uint16:
		return U16
	case int32:
		return I32
	case uint32:
		return U32
	case int64:
		return I64
	case uint64:
		return U64
	case float64:
		return F64
	case string:
		return Str
	case ObjectPath:
		return ObjectPathT
	case Signature:
		return SignatureT
	case UnixFD:
		return Fd
	default:
		panic(fmt.Sprintf("dbus: value of type %T has no signature", v))
	}
}

// Signature returns the signature of the underlying value of v.
func (v Variant) Signature() Signature {
	return v.sig
}

// Value returns the underlying value of v.
func (v Variant) Value() interface{} {
	return v.value
}

// String returns a GVariant-text-format-like rendering of v, the way
// dbus-monitor prints header field values.
func (v Variant) String() string {
	switch val := v.value.(type) {
	case string:
		return strconv.Quote(val)
	case ObjectPath:
		return strconv.Quote(string(val))
	case Signature:
		return strconv.Quote(val.String())
	case byte:
		return fmt.Sprintf("%#x", val)
	default:
		return fmt.Sprint(val)
	}
}
