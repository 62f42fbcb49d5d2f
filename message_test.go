package dbus

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTripMethodCall(t *testing.T) {
	msg := &Message{
		Order:  binary.LittleEndian,
		Type:   TypeMethodCall,
		Flags:  FlagNoAutoStart,
		Serial: 7,
		Headers: map[HeaderField]Variant{
			FieldPath:        MakeVariant(ObjectPath("/org/example/Obj")),
			FieldInterface:   MakeVariant("org.example.Iface"),
			FieldMember:      MakeVariant("Frobnicate"),
			FieldDestination: MakeVariant("org.example"),
			FieldSignature:   MakeVariant(Signature{"sua{sv}"}),
		},
		Body: []interface{}{
			"hello",
			uint32(42),
			MakeDict(map[interface{}]interface{}{
				"flag": MakeVariant(true),
			}, Signature{"sv"}),
		},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, msg.EncodeTo(buf))

	got, err := DecodeMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, TypeMethodCall, got.Type)
	assert.Equal(t, FlagNoAutoStart, got.Flags)
	assert.Equal(t, uint32(7), got.Serial)
	assert.Equal(t, msg.Headers, got.Headers)
	require.Len(t, got.Body, 3)
	assert.Equal(t, "hello", got.Body[0])
	assert.Equal(t, uint32(42), got.Body[1])
	d, ok := got.Body[2].(*Dict)
	require.True(t, ok)
	v, ok := d.Get("flag")
	require.True(t, ok)
	assert.Equal(t, MakeVariant(true), v)
}

func TestMessageRoundTripReplyBigEndian(t *testing.T) {
	msg := &Message{
		Order:  binary.BigEndian,
		Type:   TypeMethodReply,
		Serial: 8,
		Headers: map[HeaderField]Variant{
			FieldReplySerial: MakeVariant(uint32(7)),
			FieldSignature:   MakeVariant(Signature{"x"}),
		},
		Body: []interface{}{int64(-1)},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, msg.EncodeTo(buf))
	assert.Equal(t, byte('B'), buf.Bytes()[0])

	got, err := DecodeMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, TypeMethodReply, got.Type)
	assert.Equal(t, []interface{}{int64(-1)}, got.Body)
}

func TestMessageRoundTripEmptyBody(t *testing.T) {
	msg := &Message{
		Order:  binary.LittleEndian,
		Type:   TypeSignal,
		Serial: 1,
		Headers: map[HeaderField]Variant{
			FieldPath:      MakeVariant(ObjectPath("/")),
			FieldInterface: MakeVariant("org.example.Iface"),
			FieldMember:    MakeVariant("Changed"),
		},
	}
	buf := new(bytes.Buffer)
	require.NoError(t, msg.EncodeTo(buf))
	got, err := DecodeMessage(buf)
	require.NoError(t, err)
	assert.Empty(t, got.Body)
}

func TestMessageIsValid(t *testing.T) {
	valid := func() *Message {
		return &Message{
			Order:  binary.LittleEndian,
			Type:   TypeMethodCall,
			Serial: 1,
			Headers: map[HeaderField]Variant{
				FieldPath:   MakeVariant(ObjectPath("/org/x")),
				FieldMember: MakeVariant("M"),
			},
		}
	}
	require.NoError(t, valid().IsValid())

	msg := valid()
	msg.Order = nil
	assert.Error(t, msg.IsValid())

	msg = valid()
	msg.Type = typeMax
	assert.Error(t, msg.IsValid())

	msg = valid()
	msg.Flags = 0x40
	assert.Error(t, msg.IsValid())

	msg = valid()
	delete(msg.Headers, FieldMember)
	assert.Error(t, msg.IsValid())

	msg = valid()
	msg.Headers[FieldPath] = MakeVariant(ObjectPath("no/leading/slash"))
	assert.Error(t, msg.IsValid())

	msg = valid()
	msg.Headers[FieldMember] = MakeVariant(uint32(1))
	assert.Error(t, msg.IsValid())

	msg = valid()
	msg.Body = []interface{}{int32(1)}
	assert.Error(t, msg.IsValid(), "body without signature header")
}

func TestDecodeMessageBadOrderByte(t *testing.T) {
	_, err := DecodeMessage(bytes.NewReader([]byte{'x'}))
	var ime InvalidMessageError
	require.ErrorAs(t, err, &ime)
}
