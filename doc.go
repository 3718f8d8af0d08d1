/*
Package dbus implements the core of a D-Bus client for POSIX systems: a
parsed, recursive representation of D-Bus type signatures and a
connection that authenticates over an exec-piped transport, frames
messages, and matches method replies by serial.

Dial establishes a session by spawning a subprocess whose stdio carries
the bus connection (via Connect), performing the SASL EXTERNAL
handshake, and issuing Hello. CallMethod sends a METHOD_CALL and blocks until the
matching METHOD_RETURN or ERROR frame arrives; the connection is
single-caller and does not dispatch signals or other callers' replies.

Signature values are built with ParseSignature or the type constructors
(Array, Dict, Struct and the package-level basic values) and compared
structurally with Equal and Compare. Message and Variant expose just
enough of the wire format for the handshake and connection core; a
general-purpose typed value marshaler for arbitrary message bodies is
not part of this package.
*/
package dbus

// BUG(vially): Message bodies beyond the scalar values the handshake and
// error decoding need are exposed as raw bytes; there is no generic
// container-aware marshaler.

// BUG(vially): The connection core has no reader task or reply queue;
// frames not matching the in-flight call's serial are discarded rather
// than queued for a later caller or a signal subscriber.
