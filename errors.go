package dbus

import "fmt"

// IOError wraps a failure from the underlying transport: a short read, a
// write that didn't take, or the stream closing unexpectedly.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("dbus: i/o error: %s", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

func ioErr(err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Err: err}
}

// HandshakeError reports a failure during the SASL preamble: the peer
// rejected EXTERNAL, its OK line was missing a GUID, or it sent something
// other than what the handshake expected at a given step.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string { return "dbus: handshake failed: " + e.Reason }

func handshakeErr(reason string) error {
	return &HandshakeError{Reason: reason}
}

// MessageErr reports a codec-level failure: bad framing, a body length
// mismatch, or an unrecognized endianness marker.
type MessageErr struct {
	Reason string
}

func (e *MessageErr) Error() string { return "dbus: malformed message: " + e.Reason }

func messageErr(reason string) error {
	return &MessageErr{Reason: reason}
}

// MessageFieldError reports that a known header field is malformed or
// carries a Variant of the wrong type for that field.
type MessageFieldError struct {
	Field  HeaderField
	Reason string
}

func (e *MessageFieldError) Error() string {
	return fmt.Sprintf("dbus: header field %d: %s", e.Field, e.Reason)
}

func fieldErr(field HeaderField, reason string) error {
	return &MessageFieldError{Field: field, Reason: reason}
}

// VariantError reports that a body or field value failed to decode as the
// type the caller requested.
type VariantError struct {
	Reason string
}

func (e *VariantError) Error() string { return "dbus: variant decode: " + e.Reason }

func variantErr(reason string) error {
	return &VariantError{Reason: reason}
}

// InvalidReplyError reports that a reply was matched by serial but was
// not the shape the caller expected: an Error frame with no ErrorName, or
// a Hello reply with no string body.
type InvalidReplyError struct {
	Reason string
}

func (e *InvalidReplyError) Error() string { return "dbus: invalid reply: " + e.Reason }

func invalidReplyErr(reason string) error {
	return &InvalidReplyError{Reason: reason}
}

// MethodErr is returned when a call receives a D-Bus ERROR frame in
// reply. Name is the error's interface-qualified name
// (org.freedesktop.DBus.Error.UnknownMethod and similar); Detail is the
// conventional human-readable string body, when the ERROR frame carried
// one.
type MethodErr struct {
	Name      string
	Detail    string
	HasDetail bool
}

func (e *MethodErr) Error() string {
	if e.HasDetail {
		return fmt.Sprintf("dbus: %s: %s", e.Name, e.Detail)
	}
	return fmt.Sprintf("dbus: %s", e.Name)
}

// methodErrFromMessage builds a MethodErr from a decoded ERROR frame.
func methodErrFromMessage(m *Message) error {
	nameVariant, ok := m.Headers[FieldErrorName]
	if !ok {
		return invalidReplyErr("error frame missing ErrorName")
	}
	name, ok := nameVariant.value.(string)
	if !ok {
		return fieldErr(FieldErrorName, "expected string")
	}
	me := &MethodErr{Name: name}
	if sig, ok := m.BodySignature(); ok && sig.Equal(Str) && len(m.Body) > 0 {
		r := newWireReader(m.Body, m.Order)
		if detail, err := r.str(); err == nil {
			me.Detail = detail
			me.HasDetail = true
		}
	}
	return me
}
