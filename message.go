package dbus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"strconv"
)

const protoVersion byte = 1

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

// HeaderField represents the possible byte codes for the headers
// of a DBus message.
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

// An InvalidMessageError describes the reason why a DBus message is regarded
// as invalid.
type InvalidMessageError string

func (e InvalidMessageError) Error() string {
	return "invalid message: " + string(e)
}

var fieldTypes = map[HeaderField]reflect.Type{
	FieldPath:        objectPathType,
	FieldInterface:   reflect.TypeOf(""),
	FieldMember:      reflect.TypeOf(""),
	FieldErrorName:   reflect.TypeOf(""),
	FieldReplySerial: reflect.TypeOf(uint32(0)),
	FieldDestination: reflect.TypeOf(""),
	FieldSender:      reflect.TypeOf(""),
	FieldSignature:   signatureType,
	FieldUnixFds:     reflect.TypeOf(uint32(0)),
}

var requiredFields = map[Type][]HeaderField{
	TypeMethodCall:  {FieldPath, FieldMember},
	TypeMethodReply: {FieldReplySerial},
	TypeError:       {FieldErrorName, FieldReplySerial},
	TypeSignal:      {FieldPath, FieldInterface, FieldMember},
}

// Message represents a single DBus message.
type Message struct {
	// must be binary.BigEndian or binary.LittleEndian
	Order binary.ByteOrder

	Type
	Flags
	Serial  uint32
	Headers map[HeaderField]Variant
	Body    []interface{}
}

// DecodeMessage decodes a single complete message from the given reader,
// taking ownership of the consumed bytes. The byte order is figured out from
// the first byte. The possibly returned error may either be an error of the
// underlying reader or an InvalidMessageError.
func DecodeMessage(rd io.Reader) (*Message, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(rd, b); err != nil {
		return nil, err
	}
	var order binary.ByteOrder
	switch b[0] {
	case 'l':
		order = binary.LittleEndian
	case 'B':
		order = binary.BigEndian
	default:
		return nil, InvalidMessageError("invalid byte order")
	}

	dec := NewDecoder(rd, order)
	dec.pos = 1
	fixed, err := dec.Decode(Signature{"yyyuu"})
	if err != nil {
		return nil, err
	}
	msg := new(Message)
	msg.Order = order
	msg.Type = Type(fixed[0].(byte))
	msg.Flags = Flags(fixed[1].(byte))
	bodyLen := fixed[3].(uint32)
	msg.Serial = fixed[4].(uint32)

	hs, err := dec.Decode(Signature{"a(yv)"})
	if err != nil {
		return nil, err
	}
	msg.Headers = make(map[HeaderField]Variant)
	for _, h := range hs[0].(*Array).Elements() {
		entry, ok := h.(*Struct)
		if !ok || entry.Len() != 2 {
			return nil, InvalidMessageError("malformed header field")
		}
		code, ok := entry.Field(0).(byte)
		if !ok {
			return nil, InvalidMessageError("malformed header field")
		}
		msg.Headers[HeaderField(code)] = asVariant(entry.Field(1))
	}

	dec.align(8)
	body := make([]byte, int(bodyLen))
	if bodyLen != 0 {
		if _, err := io.ReadFull(rd, body); err != nil {
			return nil, err
		}
	}

	if err := msg.IsValid(); err != nil {
		return nil, err
	}
	sig, _ := msg.Headers[FieldSignature].value.(Signature)
	if !sig.Empty() {
		bodyDec := NewDecoder(bytes.NewBuffer(body), order)
		vs, err := bodyDec.Decode(sig)
		if err != nil {
			return nil, err
		}
		msg.Body = vs
	}

	return msg, nil
}

// asVariant restores the variant boxing the decoder strips from containers,
// so header values are uniformly Variants.
func asVariant(v interface{}) Variant {
	if vv, ok := v.(Variant); ok {
		return vv
	}
	return MakeVariant(v)
}

// EncodeTo encodes and sends a message to the given writer. If the message
// is not valid or an error occurs when writing, an error is returned.
func (msg *Message) EncodeTo(out io.Writer) error {
	if err := msg.IsValid(); err != nil {
		return err
	}
	body := new(bytes.Buffer)
	benc := NewEncoder(body, msg.Order)
	if len(msg.Body) != 0 {
		if err := benc.EncodeMulti(msg.Body...); err != nil {
			return err
		}
	}

	var orderByte byte
	switch msg.Order {
	case binary.LittleEndian:
		orderByte = 'l'
	case binary.BigEndian:
		orderByte = 'B'
	}
	headers := make([]interface{}, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, MakeStruct([]interface{}{byte(k), v}, Signature{"(yv)"}))
	}

	buf := new(bytes.Buffer)
	enc := NewEncoder(buf, msg.Order)
	err := enc.EncodeMulti(
		orderByte, byte(msg.Type), byte(msg.Flags), protoVersion,
		uint32(body.Len()), msg.Serial,
		MakeArray(headers, Signature{"(yv)"}),
	)
	if err != nil {
		return err
	}
	enc.align(8)
	body.WriteTo(buf)
	if _, err := buf.WriteTo(out); err != nil {
		return err
	}
	return nil
}

// IsValid checks whether msg is a valid message and returns an
// InvalidMessageError if it is not.
func (msg *Message) IsValid() error {
	switch msg.Order {
	case binary.LittleEndian, binary.BigEndian:
	default:
		return InvalidMessageError("invalid byte order")
	}
	if msg.Flags & ^(FlagNoAutoStart|FlagNoReplyExpected) != 0 {
		return InvalidMessageError("invalid flags")
	}
	if msg.Type == 0 || msg.Type >= typeMax {
		return InvalidMessageError("invalid message type")
	}
	for k, v := range msg.Headers {
		if k == 0 || k >= fieldMax {
			return InvalidMessageError("invalid header")
		}
		if reflect.TypeOf(v.value) != fieldTypes[k] {
			return InvalidMessageError("invalid type of header field")
		}
	}
	for _, v := range requiredFields[msg.Type] {
		if _, ok := msg.Headers[v]; !ok {
			return InvalidMessageError("missing required header")
		}
	}
	if path, ok := msg.Headers[FieldPath]; ok {
		if !path.value.(ObjectPath).IsValid() {
			return InvalidMessageError("invalid path")
		}
	}
	if len(msg.Body) != 0 {
		if _, ok := msg.Headers[FieldSignature]; !ok {
			return InvalidMessageError("missing signature")
		}
	}
	return nil
}

// String returns a string representation of a message similar to the format
// of dbus-monitor.
func (msg *Message) String() string {
	if err := msg.IsValid(); err != nil {
		return "<invalid>"
	}
	s := map[Type]string{
		TypeMethodCall:  "method call",
		TypeMethodReply: "reply",
		TypeError:       "error",
		TypeSignal:      "signal",
	}[msg.Type]
	if v, ok := msg.Headers[FieldSender]; ok {
		s += " from " + v.value.(string)
	}
	if v, ok := msg.Headers[FieldDestination]; ok {
		s += " to " + v.value.(string)
	} else {
		s += " to <null>"
	}
	s += " serial " + strconv.FormatUint(uint64(msg.Serial), 10)
	if v, ok := msg.Headers[FieldPath]; ok {
		s += " path " + string(v.value.(ObjectPath))
	}
	if v, ok := msg.Headers[FieldInterface]; ok {
		s += " interface " + v.value.(string)
	}
	if v, ok := msg.Headers[FieldErrorName]; ok {
		s += " name " + v.value.(string)
	}
	if v, ok := msg.Headers[FieldMember]; ok {
		s += " member " + v.value.(string)
	}
	if len(msg.Body) != 0 {
		s += "\n"
	}
	for i, v := range msg.Body {
		s += "  " + fmt.Sprint(v)
		if i != len(msg.Body)-1 {
			s += "\n"
		}
	}
	return s
}
