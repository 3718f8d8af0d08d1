package dbus

import "io"

// Conn owns an authenticated D-Bus stream: the peer's GUID, the assigned
// bus name, and a monotonically increasing serial counter. It is
// single-caller — CallMethod blocks the caller for the duration of the
// write and the read loop that follows, and two overlapping callers on
// the same Conn is a misuse this package does not guard against.
type Conn struct {
	stream io.ReadWriteCloser
	guid   string
	name   string
	serial uint32
}

// Dial spawns addr's program, performs the SASL EXTERNAL handshake, and
// issues Hello, returning a Conn ready for CallMethod.
func Dial(addr ExecAddress) (*Conn, error) {
	return DialHandshake(addr, HandshakeOptions{})
}

// DialHandshake is Dial with explicit control over the handshake, for
// callers that want unix-fd negotiation.
func DialHandshake(addr ExecAddress, opts HandshakeOptions) (*Conn, error) {
	stream, err := Connect(addr)
	if err != nil {
		return nil, err
	}
	guid, err := handshake(stream, opts)
	if err != nil {
		stream.Close()
		return nil, err
	}
	c := &Conn{stream: stream, guid: guid}
	if err := c.hello(); err != nil {
		stream.Close()
		return nil, err
	}
	return c, nil
}

// GUID returns the peer's server GUID, learned during the handshake.
func (c *Conn) GUID() string { return c.guid }

// Name returns the unique bus name this connection was assigned by
// Hello.
func (c *Conn) Name() string { return c.name }

// Close drops the connection, closing the underlying stream. There is no
// graceful DISCONNECT; any call in flight observes its read or write
// fail.
func (c *Conn) Close() error {
	return c.stream.Close()
}

func (c *Conn) hello() error {
	reply, err := c.CallMethod("org.freedesktop.DBus", "/org/freedesktop/DBus", "org.freedesktop.DBus", "Hello", Unit, nil)
	if err != nil {
		return err
	}
	sig, ok := reply.BodySignature()
	if !ok || !sig.Equal(Str) {
		return invalidReplyErr("Hello reply missing string body")
	}
	r := newWireReader(reply.Body, reply.Order)
	name, err := r.str()
	if err != nil {
		return invalidReplyErr("Hello reply body malformed")
	}
	c.name = name
	return nil
}

// CallMethod increments the serial counter, writes a METHOD_CALL, and
// blocks reading frames until one matches by ReplySerial: a MethodReply
// is returned, an Error frame is raised as *MethodErr. Frames that don't
// match — signals, other callers' replies, a production design would
// queue for a dispatcher to hand out — are read and discarded.
func (c *Conn) CallMethod(destination string, path ObjectPath, iface, member string, sig Signature, body []byte) (*Message, error) {
	c.serial++
	serial := c.serial

	msg := NewMethodCall(destination, path, iface, member, sig, body).SetSerial(serial)
	data, err := msg.AsBytes()
	if err != nil {
		return nil, err
	}
	if _, err := c.stream.Write(data); err != nil {
		return nil, ioErr(err)
	}

	for {
		reply, err := c.nextReply()
		if err != nil {
			return nil, err
		}
		if reply.Type != TypeMethodReply && reply.Type != TypeError {
			continue
		}
		rsVariant, ok := reply.Headers[FieldReplySerial]
		if !ok {
			continue
		}
		rs, ok := rsVariant.value.(uint32)
		if !ok || rs != serial {
			continue
		}
		if reply.Type == TypeError {
			return nil, methodErrFromMessage(reply)
		}
		return reply, nil
	}
}

// nextReply reads exactly one frame off the stream: the fixed-size
// primary header, then however many more bytes it reports needing. This
// is the seam a future reader task would replace to feed a per-serial
// reply queue and a signal broadcast instead of blocking the single
// caller.
func (c *Conn) nextReply() (*Message, error) {
	primary := make([]byte, primaryHeaderSize)
	if _, err := io.ReadFull(c.stream, primary); err != nil {
		return nil, ioErr(err)
	}
	partial, err := FromBytes(primary)
	if err != nil {
		return nil, messageErr(err.Error())
	}
	trailing := make([]byte, partial.BytesToCompletion())
	if len(trailing) > 0 {
		if _, err := io.ReadFull(c.stream, trailing); err != nil {
			return nil, ioErr(err)
		}
	}
	msg, err := partial.AddBytes(trailing)
	if err != nil {
		return nil, messageErr(err.Error())
	}
	return msg, nil
}
