package dbus

import (
	"encoding/binary"
	"net"
	"testing"
)

// TestHelloAndCallMethodOverPipe exercises hello() and CallMethod directly
// against a Conn built around a net.Pipe, since Dial always spawns a real
// subprocess and the handshake is already covered by handshake_test.go.
func TestHelloAndCallMethodOverPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := &Conn{stream: client}

	helloErrc := make(chan error, 1)
	go func() {
		call, err := DecodeMessage(server)
		if err != nil {
			helloErrc <- err
			return
		}
		if call.Headers[FieldMember].Value().(string) != "Hello" {
			helloErrc <- errUnexpected("expected Hello call")
			return
		}
		w := newWireWriter(binary.LittleEndian)
		w.str(":1.42")
		reply := &Message{
			Order: binary.LittleEndian,
			Type:  TypeMethodReply,
			Headers: map[HeaderField]Variant{
				FieldReplySerial: MakeVariant(call.Serial),
				FieldSignature:   MakeVariant(Str),
			},
			Body: w.buf,
		}
		reply.SetSerial(900)
		data, err := reply.AsBytes()
		if err != nil {
			helloErrc <- err
			return
		}
		_, err = server.Write(data)
		helloErrc <- err
	}()

	if err := c.hello(); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if err := <-helloErrc; err != nil {
		t.Fatalf("fake peer: %v", err)
	}
	if c.Name() != ":1.42" {
		t.Errorf("Name() = %q, want :1.42", c.Name())
	}

	// A signal arrives before the matching reply; CallMethod must skip it
	// per scenario 6 rather than mistaking it for the reply it's waiting on.
	callErrc := make(chan error, 1)
	go func() {
		call, err := DecodeMessage(server)
		if err != nil {
			callErrc <- err
			return
		}

		signal := &Message{
			Order: binary.LittleEndian,
			Type:  TypeSignal,
			Headers: map[HeaderField]Variant{
				FieldPath:      MakeVariant(ObjectPath("/a")),
				FieldInterface: MakeVariant("com.example.Iface"),
				FieldMember:    MakeVariant("Changed"),
			},
		}
		signal.SetSerial(901)
		sdata, err := signal.AsBytes()
		if err != nil {
			callErrc <- err
			return
		}
		if _, err := server.Write(sdata); err != nil {
			callErrc <- err
			return
		}

		reply := &Message{
			Order: binary.LittleEndian,
			Type:  TypeMethodReply,
			Headers: map[HeaderField]Variant{
				FieldReplySerial: MakeVariant(call.Serial),
			},
		}
		reply.SetSerial(902)
		rdata, err := reply.AsBytes()
		if err != nil {
			callErrc <- err
			return
		}
		_, err = server.Write(rdata)
		callErrc <- err
	}()

	reply, err := c.CallMethod("com.example.Service", "/com/example/Object", "com.example.Iface", "DoThing", Unit, nil)
	if err != nil {
		t.Fatalf("CallMethod: %v", err)
	}
	if reply.Type != TypeMethodReply {
		t.Errorf("reply.Type = %v, want MethodReply", reply.Type)
	}
	if err := <-callErrc; err != nil {
		t.Fatalf("fake peer: %v", err)
	}
}

// TestCallMethodReturnsMethodErr drives a fake peer that answers a call
// with an ERROR frame, and checks CallMethod surfaces it as a *MethodErr
// with the detail string decoded from the body.
func TestCallMethodReturnsMethodErr(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := &Conn{stream: client}

	errc := make(chan error, 1)
	go func() {
		call, err := DecodeMessage(server)
		if err != nil {
			errc <- err
			return
		}
		w := newWireWriter(binary.LittleEndian)
		w.str("no such method")
		reply := &Message{
			Order: binary.LittleEndian,
			Type:  TypeError,
			Headers: map[HeaderField]Variant{
				FieldReplySerial: MakeVariant(call.Serial),
				FieldErrorName:   MakeVariant("org.freedesktop.DBus.Error.UnknownMethod"),
				FieldSignature:   MakeVariant(Str),
			},
			Body: w.buf,
		}
		reply.SetSerial(5)
		data, err := reply.AsBytes()
		if err != nil {
			errc <- err
			return
		}
		_, err = server.Write(data)
		errc <- err
	}()

	_, err := c.CallMethod("org.freedesktop.DBus", "/org/freedesktop/DBus", "org.freedesktop.DBus", "Bogus", Unit, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	me, ok := err.(*MethodErr)
	if !ok {
		t.Fatalf("err = %T, want *MethodErr", err)
	}
	if me.Name != "org.freedesktop.DBus.Error.UnknownMethod" {
		t.Errorf("Name = %q", me.Name)
	}
	if !me.HasDetail || me.Detail != "no such method" {
		t.Errorf("Detail = %q, HasDetail = %v", me.Detail, me.HasDetail)
	}
	if err := <-errc; err != nil {
		t.Fatalf("fake peer: %v", err)
	}
}
