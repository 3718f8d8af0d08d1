package dbus

import (
	"encoding/binary"
	"fmt"
)

// wireWriter accumulates a D-Bus wire-format byte stream, tracking the
// current position so alignment padding can be computed without the
// caller doing the arithmetic itself. It plays the same role as the
// generic reflect-driven encoder this package used to carry, narrowed to
// the handful of concrete types the message codec actually puts on the
// wire: header field values. Message bodies reach NewMethodCall as bytes
// the caller has already encoded. Arbitrary body marshaling is an external
// collaborator's job, not this package's; see the Variant value model in
// variant.go.
type wireWriter struct {
	buf   []byte
	order binary.ByteOrder
}

func newWireWriter(order binary.ByteOrder) *wireWriter {
	return &wireWriter{order: order}
}

func (w *wireWriter) len() int { return len(w.buf) }

func (w *wireWriter) align(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *wireWriter) byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *wireWriter) uint32(v uint32) {
	w.align(4)
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// str writes a D-Bus STRING or OBJECT_PATH: a uint32 length prefix, the
// UTF-8 bytes, and a trailing nul not counted in the length.
func (w *wireWriter) str(s string) {
	w.align(4)
	w.uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// sig writes a D-Bus SIGNATURE: a one-byte length prefix, the bytes, and a
// trailing nul.
func (w *wireWriter) sig(s string) {
	if len(s) > 255 {
		panic("dbus: signature too long to encode")
	}
	w.buf = append(w.buf, byte(len(s)))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *wireWriter) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// wireReader consumes a D-Bus wire-format byte slice at a single cursor
// position, mirroring wireWriter.
type wireReader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func newWireReader(buf []byte, order binary.ByteOrder) *wireReader {
	return &wireReader{buf: buf, order: order}
}

func (r *wireReader) align(n int) error {
	for r.pos%n != 0 {
		if r.pos >= len(r.buf) {
			return fmt.Errorf("dbus: unexpected end of message while aligning to %d", n)
		}
		r.pos++
	}
	return nil
}

func (r *wireReader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("dbus: unexpected end of message")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *wireReader) uint32() (uint32, error) {
	if err := r.align(4); err != nil {
		return 0, err
	}
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("dbus: unexpected end of message reading uint32")
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *wireReader) str() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n)+1 > len(r.buf) {
		return "", fmt.Errorf("dbus: unexpected end of message reading string")
	}
	s := safeToString(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n) + 1 // skip trailing nul
	return s, nil
}

func (r *wireReader) sigString() (string, error) {
	n, err := r.byte()
	if err != nil {
		return "", err
	}
	if r.pos+int(n)+1 > len(r.buf) {
		return "", fmt.Errorf("dbus: unexpected end of message reading signature")
	}
	s := safeToString(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n) + 1
	return s, nil
}

// safeToString is toString guarded for the empty slice, which toString
// cannot handle (it indexes the first byte to take its address).
func safeToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return toString(b)
}
