package dbus

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeOne(t *testing.T, sig string, b []byte) interface{} {
	t.Helper()
	dec := NewDecoder(bytes.NewReader(b), binary.LittleEndian)
	vs, err := dec.Decode(Signature{sig})
	require.NoError(t, err)
	require.Len(t, vs, 1)
	return vs[0]
}

func TestDecodeArray(t *testing.T) {
	b := []byte{
		0x08, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
	}
	v := decodeOne(t, "ai", b)
	a, ok := v.(*Array)
	require.True(t, ok)
	assert.Equal(t, "i", a.Signature().String())
	assert.Equal(t, 0, a.VariantLevel())
	assert.Equal(t, []interface{}{int32(1), int32(2)}, a.Elements())
}

func TestDecodeEmptyArrayOfInt64(t *testing.T) {
	// the padding to the element boundary follows the length even when
	// there are no elements
	b := []byte{
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	v := decodeOne(t, "ax", b)
	a := v.(*Array)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, "x", a.Signature().String())
}

func TestDecodeVariantScalar(t *testing.T) {
	b := []byte{
		0x01, 'i', 0x00, 0x00,
		0x05, 0x00, 0x00, 0x00,
	}
	v := decodeOne(t, "v", b)
	variant, ok := v.(Variant)
	require.True(t, ok)
	assert.Equal(t, "i", variant.Signature().String())
	assert.Equal(t, int32(5), variant.Value())
}

func TestDecodeVariantRaisesContainerLevel(t *testing.T) {
	b := []byte{
		0x02, 'a', 'i', 0x00,
		0x04, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}
	v := decodeOne(t, "v", b)
	a, ok := v.(*Array)
	require.True(t, ok)
	assert.Equal(t, 1, a.VariantLevel())
	assert.Equal(t, []interface{}{int32(1)}, a.Elements())
}

func TestDecodeStruct(t *testing.T) {
	b := []byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	v := decodeOne(t, "(yx)", b)
	s, ok := v.(*Struct)
	require.True(t, ok)
	assert.Equal(t, "(yx)", s.Signature().String())
	assert.Equal(t, []interface{}{byte(1), int64(2)}, s.Fields())
}

func TestDecodeDict(t *testing.T) {
	b := []byte{
		0x0e, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 'k', 0x00,
		0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 'v', 0x00,
	}
	v := decodeOne(t, "a{ss}", b)
	d, ok := v.(*Dict)
	require.True(t, ok)
	assert.Equal(t, "ss", d.Signature().String())
	assert.Equal(t, []interface{}{"k"}, d.Keys())
	val, ok := d.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", val)
}

func TestDecodeInvalidBool(t *testing.T) {
	b := []byte{0x02, 0x00, 0x00, 0x00}
	dec := NewDecoder(bytes.NewReader(b), binary.LittleEndian)
	_, err := dec.Decode(Signature{"b"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid value for boolean"))
}

func TestDecodeShortInput(t *testing.T) {
	b := []byte{0x01, 0x00}
	dec := NewDecoder(bytes.NewReader(b), binary.LittleEndian)
	_, err := dec.Decode(Signature{"u"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unexpected EOF"))
}

func TestDecodeMulti(t *testing.T) {
	b := []byte{
		0x05, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00, 'a', 'b', 'c', 0x00,
	}
	dec := NewDecoder(bytes.NewReader(b), binary.LittleEndian)
	vs, err := dec.Decode(Signature{"us"})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, uint32(5), vs[0])
	assert.Equal(t, "abc", vs[1])
}
