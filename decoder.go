package dbus

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// A Decoder reads values encoded in the DBus wire format. Decoding is driven
// by a signature: arrays, dicts and structs come back as typed containers
// carrying their wire signature, and a variant wrapping a container raises
// that container's variant level instead of boxing it.
type Decoder struct {
	in    io.Reader
	order binary.ByteOrder
	pos   int
}

// NewDecoder returns a new decoder that reads values from in. The input is
// expected to be in the given byte order.
func NewDecoder(in io.Reader, order binary.ByteOrder) *Decoder {
	dec := new(Decoder)
	dec.in = in
	dec.order = order
	return dec
}

// align advances the input to the given boundary and panics on error.
func (dec *Decoder) align(n int) {
	if dec.pos%n != 0 {
		newpos := (dec.pos + n - 1) & ^(n - 1)
		dec.read(newpos - dec.pos)
	}
}

// read returns the next n bytes of the input and panics on error.
func (dec *Decoder) read(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(dec.in, b); err != nil {
		panic(err)
	}
	dec.pos += n
	return b
}

// binread calls binary.Read(dec.in, dec.order, v) and panics on read errors.
func (dec *Decoder) binread(v interface{}) {
	if err := binary.Read(dec.in, dec.order, v); err != nil {
		panic(err)
	}
}

// Decode decodes one value per complete type in sig from the input. The
// input is expected to be aligned as required by the DBus spec.
func (dec *Decoder) Decode(sig Signature) (vs []interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			if e == io.EOF || e == io.ErrUnexpectedEOF {
				e = FormatError("input too short (unexpected EOF)")
			}
			err = errors.Wrap(e, "dbus: decode")
			vs = nil
		}
	}()
	s := sig.str
	for s != "" {
		var t string
		t, s = firstType(s)
		vs = append(vs, dec.value(t, 0))
	}
	return vs, nil
}

// value decodes a single value whose signature is exactly s, one complete
// type. depth holds the container nesting depth.
func (dec *Decoder) value(s string, depth int) interface{} {
	if depth > 64 {
		panic(FormatError("container nesting too deep"))
	}
	dec.align(sigAlignment(s[0]))
	switch s[0] {
	case 'y':
		return dec.read(1)[0]
	case 'b':
		switch dec.u32() {
		case 0:
			return false
		case 1:
			return true
		default:
			panic(FormatError("invalid value for boolean"))
		}
	case 'n':
		var i int16
		dec.binread(&i)
		dec.pos += 2
		return i
	case 'q':
		var i uint16
		dec.binread(&i)
		dec.pos += 2
		return i
	case 'i':
		var i int32
		dec.binread(&i)
		dec.pos += 4
		return i
	case 'u':
		return dec.u32()
	case 'x':
		var i int64
		dec.binread(&i)
		dec.pos += 8
		return i
	case 't':
		var i uint64
		dec.binread(&i)
		dec.pos += 8
		return i
	case 'd':
		var f float64
		dec.binread(&f)
		dec.pos += 8
		return f
	case 'h':
		return UnixFDIndex(dec.u32())
	case 's':
		return dec.str()
	case 'o':
		return ObjectPath(dec.str())
	case 'g':
		return dec.signature()
	case 'v':
		return dec.variant(depth)
	case 'a':
		if len(s) > 1 && s[1] == '{' {
			return dec.dict(s, depth)
		}
		return dec.array(s, depth)
	case '(':
		return dec.structure(s, depth)
	}
	panic(SignatureError{Sig: s, Reason: "invalid type character"})
}

func (dec *Decoder) u32() uint32 {
	dec.align(4)
	var i uint32
	dec.binread(&i)
	dec.pos += 4
	return i
}

// str reads a uint32-prefixed, nul-terminated string.
func (dec *Decoder) str() string {
	length := dec.u32()
	b := dec.read(int(length) + 1)
	return string(b[:length])
}

// signature reads a byte-prefixed signature and validates it.
func (dec *Decoder) signature() Signature {
	length := dec.read(1)[0]
	b := dec.read(int(length) + 1)
	sig, err := ParseSignature(string(b[:length]))
	if err != nil {
		panic(err)
	}
	return sig
}

// variant reads the boxed signature and the boxed value. A boxed container
// is returned with its variant level raised by one; any other value is
// returned as a Variant.
func (dec *Decoder) variant(depth int) interface{} {
	sig := dec.signature()
	if sig.Empty() {
		panic(FormatError("variant signature is empty"))
	}
	if !sig.Single() {
		panic(FormatError("variant signature has multiple types"))
	}
	inner := dec.value(sig.str, depth+1)
	switch x := inner.(type) {
	case *Array:
		return x.withVariant()
	case *Dict:
		return x.withVariant()
	case *Struct:
		return x.withVariant()
	}
	return Variant{sig, inner}
}

// array reads the uint32 byte length, skips the padding to the element
// boundary and decodes elements until the length is consumed. s is the full
// array signature including the leading 'a'.
func (dec *Decoder) array(s string, depth int) *Array {
	es := s[1:]
	length := dec.u32()
	dec.align(sigAlignment(es[0]))
	end := dec.pos + int(length)
	var elems []interface{}
	for dec.pos < end {
		elems = append(elems, dec.value(es, depth+1))
	}
	return MakeArray(elems, Signature{es})
}

// dict reads an array of 8-aligned key-value entries. Wire order becomes the
// Dict's iteration order; a duplicate key keeps its first position but takes
// the last value, matching the lenience of reference implementations.
func (dec *Decoder) dict(s string, depth int) *Dict {
	inner := s[2 : len(s)-1]
	ksig, vsig := firstType(inner)
	length := dec.u32()
	dec.align(8)
	end := dec.pos + int(length)
	var keys []interface{}
	m := make(map[interface{}]interface{})
	for dec.pos < end {
		dec.align(8)
		k := dec.value(ksig, depth+2)
		v := dec.value(vsig, depth+2)
		if _, dup := m[k]; !dup {
			keys = append(keys, k)
		}
		m[k] = v
	}
	return makeDictOrdered(keys, m, Signature{ksig + vsig})
}

// structure decodes the 8-aligned fields of a struct. s is the full
// parenthesized signature.
func (dec *Decoder) structure(s string, depth int) *Struct {
	var fields []interface{}
	fs := s[1 : len(s)-1]
	for fs != "" {
		var t string
		t, fs = firstType(fs)
		fields = append(fields, dec.value(t, depth+1))
	}
	return MakeStruct(fields, Signature{s})
}
