package dbus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
)

const protoVersion byte = 1

// primaryHeaderSize is the fixed-size prefix of every D-Bus frame: the
// endianness byte, type, flags, protocol version, body length, serial,
// and the length of the header fields array that immediately follows.
const primaryHeaderSize = 16

// Flags represents the possible flags of a DBus message.
type Flags byte

const (
	FlagNoReplyExpected Flags = 1 << iota
	FlagNoAutoStart
)

// Type represents the possible types of a DBus message.
type Type byte

const (
	TypeMethodCall Type = 1 + iota
	TypeMethodReply
	TypeError
	TypeSignal
	typeMax
)

// HeaderField represents the possible byte codes for the headers of a
// DBus message.
type HeaderField byte

const (
	FieldPath HeaderField = 1 + iota
	FieldInterface
	FieldMember
	FieldErrorName
	FieldReplySerial
	FieldDestination
	FieldSender
	FieldSignature
	FieldUnixFds
	fieldMax
)

var requiredFields = map[Type][]HeaderField{
	TypeMethodCall:  {FieldPath, FieldMember},
	TypeMethodReply: {FieldReplySerial},
	TypeError:       {FieldErrorName, FieldReplySerial},
	TypeSignal:      {FieldPath, FieldInterface, FieldMember},
}

// InvalidMessageError describes the reason why a DBus message is regarded
// as invalid.
type InvalidMessageError string

func (e InvalidMessageError) Error() string {
	return "invalid message: " + string(e)
}

// Message represents a single D-Bus frame.
type Message struct {
	// Order must be binary.BigEndian or binary.LittleEndian.
	Order binary.ByteOrder

	Type
	Flags
	Serial  uint32
	Headers map[HeaderField]Variant
	Body    []byte
}

// NewMethodCall builds a METHOD_CALL message with no serial assigned
// (serial 0; see Message.SetSerial). destination and iface may be empty,
// in which case the corresponding header field is omitted. When body is
// empty, sig is ignored and no Signature header field is written.
func NewMethodCall(destination string, path ObjectPath, iface, member string, sig Signature, body []byte) *Message {
	m := &Message{
		Order: binary.LittleEndian,
		Type:  TypeMethodCall,
		Headers: map[HeaderField]Variant{
			FieldPath:   MakeVariant(path),
			FieldMember: MakeVariant(member),
		},
	}
	if destination != "" {
		m.Headers[FieldDestination] = MakeVariant(destination)
	}
	if iface != "" {
		m.Headers[FieldInterface] = MakeVariant(iface)
	}
	if len(body) > 0 {
		m.Headers[FieldSignature] = MakeVariant(sig)
		m.Body = body
	}
	return m
}

// SetSerial sets m's serial and returns m, for chaining at the call site.
func (m *Message) SetSerial(serial uint32) *Message {
	m.Serial = serial
	return m
}

// Fields returns m's header fields by code.
func (m *Message) Fields() map[HeaderField]Variant {
	return m.Headers
}

// BodySignature reports the signature recorded in the Signature header
// field, if any.
func (m *Message) BodySignature() (Signature, bool) {
	v, ok := m.Headers[FieldSignature]
	if !ok {
		return Signature{}, false
	}
	sig, ok := v.value.(Signature)
	return sig, ok
}

// BodyBytes returns m's body bytes for further decoding by the caller.
func (m *Message) BodyBytes() []byte {
	return m.Body
}

// AsBytes encodes m to its wire-ready frame. It returns an error if m is
// not valid.
func (m *Message) AsBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.EncodeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo encodes and writes m to out. If m is not valid or a write
// fails, an error is returned.
func (m *Message) EncodeTo(out io.Writer) error {
	if err := m.IsValid(); err != nil {
		return err
	}
	order := m.Order

	fw := newWireWriter(order)
	encodeHeaderFields(fw, m.Headers, order)

	var endian byte
	switch order {
	case binary.LittleEndian:
		endian = 'l'
	case binary.BigEndian:
		endian = 'B'
	}

	hw := newWireWriter(order)
	hw.byte(endian)
	hw.byte(byte(m.Type))
	hw.byte(byte(m.Flags))
	hw.byte(protoVersion)
	hw.uint32(uint32(len(m.Body)))
	hw.uint32(m.Serial)
	hw.uint32(uint32(fw.len()))

	if hw.len() != primaryHeaderSize {
		return InvalidMessageError("primary header did not encode to 16 bytes")
	}

	if _, err := out.Write(hw.buf); err != nil {
		return err
	}
	if _, err := out.Write(fw.buf); err != nil {
		return err
	}
	pad := (8 - (primaryHeaderSize+fw.len())%8) % 8
	if pad > 0 {
		if _, err := out.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	if len(m.Body) != 0 {
		if _, err := out.Write(m.Body); err != nil {
			return err
		}
	}
	return nil
}

// encodeHeaderFields writes the header fields array content (not
// including its own length prefix, which the caller already knows from
// fw.len() once this returns). Fields are written in ascending code order
// so two messages with the same headers always encode identically.
func encodeHeaderFields(w *wireWriter, headers map[HeaderField]Variant, order binary.ByteOrder) {
	codes := make([]int, 0, len(headers))
	for k := range headers {
		codes = append(codes, int(k))
	}
	sort.Ints(codes)
	for _, c := range codes {
		code := HeaderField(c)
		v := headers[code]
		w.align(8)
		w.byte(byte(code))
		w.sig(v.sig.StringNoParens())
		w.align(v.sig.Alignment(FormatDBus))
		encodeFieldValue(w, v)
	}
}

func encodeFieldValue(w *wireWriter, v Variant) {
	switch val := v.value.(type) {
	case string:
		w.str(val)
	case ObjectPath:
		w.str(string(val))
	case uint32:
		w.uint32(val)
	case Signature:
		w.sig(val.StringNoParens())
	default:
		panic(fmt.Sprintf("dbus: cannot encode header field value of type %T", v.value))
	}
}

// PartialMessage is a message whose primary header has been decoded but
// whose header fields array and body have not. It exists so a caller
// reading from a stream can learn exactly how many more bytes it needs
// before decoding can finish, per the read loop in Conn.nextReply.
type PartialMessage struct {
	order     binary.ByteOrder
	typ       Type
	flags     Flags
	serial    uint32
	bodyLen   uint32
	fieldsLen uint32
}

// FromBytes decodes primary, which must be exactly primaryHeaderSize
// bytes taken verbatim from the front of a frame.
func FromBytes(primary []byte) (*PartialMessage, error) {
	if len(primary) != primaryHeaderSize {
		return nil, InvalidMessageError(fmt.Sprintf("primary header must be %d bytes", primaryHeaderSize))
	}
	var order binary.ByteOrder
	switch primary[0] {
	case 'l':
		order = binary.LittleEndian
	case 'B':
		order = binary.BigEndian
	default:
		return nil, InvalidMessageError("invalid byte order")
	}
	r := newWireReader(primary, order)
	r.pos = 1
	typByte, err := r.byte()
	if err != nil {
		return nil, err
	}
	flagByte, err := r.byte()
	if err != nil {
		return nil, err
	}
	if _, err := r.byte(); err != nil { // protocol version, unchecked
		return nil, err
	}
	bodyLen, err := r.uint32()
	if err != nil {
		return nil, err
	}
	serial, err := r.uint32()
	if err != nil {
		return nil, err
	}
	fieldsLen, err := r.uint32()
	if err != nil {
		return nil, err
	}
	return &PartialMessage{
		order:     order,
		typ:       Type(typByte),
		flags:     Flags(flagByte),
		serial:    serial,
		bodyLen:   bodyLen,
		fieldsLen: fieldsLen,
	}, nil
}

// BytesToCompletion returns the number of bytes still needed, beyond the
// primary header already given to FromBytes, to fully decode the frame:
// the header fields array, the padding up to the body's 8-byte boundary,
// and the body itself.
func (p *PartialMessage) BytesToCompletion() uint32 {
	pad := (8 - (primaryHeaderSize+p.fieldsLen)%8) % 8
	return p.fieldsLen + pad + p.bodyLen
}

// AddBytes finishes decoding the frame given exactly BytesToCompletion()
// more bytes.
func (p *PartialMessage) AddBytes(trailing []byte) (*Message, error) {
	if uint32(len(trailing)) != p.BytesToCompletion() {
		return nil, InvalidMessageError("wrong number of trailing bytes")
	}
	fieldsBuf := trailing[:p.fieldsLen]
	headers, err := decodeHeaderFields(fieldsBuf, p.order)
	if err != nil {
		return nil, err
	}
	bodyStart := len(trailing) - int(p.bodyLen)
	body := trailing[bodyStart:]

	m := &Message{
		Order:   p.order,
		Type:    p.typ,
		Flags:   p.flags,
		Serial:  p.serial,
		Headers: headers,
		Body:    append([]byte(nil), body...),
	}
	if err := m.IsValid(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeHeaderFields(buf []byte, order binary.ByteOrder) (map[HeaderField]Variant, error) {
	headers := make(map[HeaderField]Variant)
	r := newWireReader(buf, order)
	for r.pos < len(buf) {
		if err := r.align(8); err != nil {
			return nil, err
		}
		if r.pos >= len(buf) {
			break
		}
		code, err := r.byte()
		if err != nil {
			return nil, err
		}
		sigStr, err := r.sigString()
		if err != nil {
			return nil, err
		}
		sig, err := ParseSignature(sigStr)
		if err != nil {
			return nil, InvalidMessageError("malformed header field signature: " + err.Error())
		}
		if err := r.align(sig.Alignment(FormatDBus)); err != nil {
			return nil, err
		}
		value, err := decodeFieldValue(r, sig)
		if err != nil {
			return nil, err
		}
		headers[HeaderField(code)] = Variant{sig: sig, value: value}
	}
	return headers, nil
}

func decodeFieldValue(r *wireReader, sig Signature) (interface{}, error) {
	switch sig.Kind() {
	case KindStr:
		return r.str()
	case KindObjectPath:
		s, err := r.str()
		return ObjectPath(s), err
	case KindU32:
		return r.uint32()
	case KindSignature:
		s, err := r.sigString()
		if err != nil {
			return nil, err
		}
		return ParseSignature(s)
	default:
		return nil, variantErr("unsupported header field type " + sig.String())
	}
}

// DecodeMessage decodes a single message from rd in one call, reading the
// primary header and then exactly BytesToCompletion() more bytes. It is a
// convenience wrapper over FromBytes/AddBytes; Conn.nextReply performs the
// same two steps itself and wraps failures as IOError or MessageErr.
func DecodeMessage(rd io.Reader) (*Message, error) {
	primary := make([]byte, primaryHeaderSize)
	if _, err := io.ReadFull(rd, primary); err != nil {
		return nil, err
	}
	partial, err := FromBytes(primary)
	if err != nil {
		return nil, err
	}
	trailing := make([]byte, partial.BytesToCompletion())
	if len(trailing) > 0 {
		if _, err := io.ReadFull(rd, trailing); err != nil {
			return nil, err
		}
	}
	return partial.AddBytes(trailing)
}

// IsValid checks whether m is a valid message and returns an
// InvalidMessageError if it is not. It is the single validation choke
// point used by both EncodeTo and AddBytes.
func (m *Message) IsValid() error {
	switch m.Order {
	case binary.LittleEndian, binary.BigEndian:
	default:
		return InvalidMessageError("invalid byte order")
	}
	if m.Flags & ^(FlagNoAutoStart|FlagNoReplyExpected) != 0 {
		return InvalidMessageError("invalid flags")
	}
	if m.Type == 0 || m.Type >= typeMax {
		return InvalidMessageError("invalid message type")
	}
	for k := range m.Headers {
		if k == 0 || k >= fieldMax {
			return InvalidMessageError("invalid header field code")
		}
	}
	for _, f := range requiredFields[m.Type] {
		if _, ok := m.Headers[f]; !ok {
			return InvalidMessageError("missing required header field")
		}
	}
	if path, ok := m.Headers[FieldPath]; ok {
		p, ok := path.value.(ObjectPath)
		if !ok || !p.IsValid() {
			return InvalidMessageError("invalid path")
		}
	}
	if iface, ok := m.Headers[FieldInterface]; ok {
		s, ok := iface.value.(string)
		if !ok || !isValidInterface(s) {
			return InvalidMessageError("invalid interface")
		}
	}
	if member, ok := m.Headers[FieldMember]; ok {
		s, ok := member.value.(string)
		if !ok || !isValidMember(s) {
			return InvalidMessageError("invalid member")
		}
	}
	if len(m.Body) != 0 {
		if _, ok := m.Headers[FieldSignature]; !ok {
			return InvalidMessageError("missing signature for non-empty body")
		}
	}
	return nil
}

// String returns a dbus-monitor-like rendering of m.
func (m *Message) String() string {
	if err := m.IsValid(); err != nil {
		return "<invalid>"
	}
	s := map[Type]string{
		TypeMethodCall:  "method call",
		TypeMethodReply: "reply",
		TypeError:       "error",
		TypeSignal:      "signal",
	}[m.Type]
	if v, ok := m.Headers[FieldSender]; ok {
		s += " from " + v.value.(string)
	}
	if v, ok := m.Headers[FieldDestination]; ok {
		s += " to " + v.value.(string)
	} else {
		s += " to <null>"
	}
	s += " serial " + strconv.FormatUint(uint64(m.Serial), 10)
	if v, ok := m.Headers[FieldPath]; ok {
		s += " path " + string(v.value.(ObjectPath))
	}
	if v, ok := m.Headers[FieldInterface]; ok {
		s += " interface " + v.value.(string)
	}
	if v, ok := m.Headers[FieldErrorName]; ok {
		s += " name " + v.value.(string)
	}
	if v, ok := m.Headers[FieldMember]; ok {
		s += " member " + v.value.(string)
	}
	return s
}
