package dbus

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"

	"github.com/pkg/errors"
)

// An Encoder writes values in the DBus wire format.
//
// Typed containers are written according to their stored signature, falling
// back to inference from their contents, and are wrapped in as many variants
// as their variant level says. Plain Go slices, maps and structs are
// converted to the corresponding containers first.
type Encoder struct {
	out   io.Writer
	order binary.ByteOrder
	pos   int
}

// NewEncoder returns a new encoder that writes to out in the given byte order.
func NewEncoder(out io.Writer, order binary.ByteOrder) *Encoder {
	enc := new(Encoder)
	enc.out = out
	enc.order = order
	return enc
}

// Aligns the next output to be on a multiple of n. Panics on write errors.
func (enc *Encoder) align(n int) {
	if enc.pos%n != 0 {
		newpos := (enc.pos + n - 1) & ^(n - 1)
		empty := make([]byte, newpos-enc.pos)
		if _, err := enc.out.Write(empty); err != nil {
			panic(err)
		}
		enc.pos = newpos
	}
}

// Calls binary.Write(enc.out, enc.order, v) and panics on write errors.
func (enc *Encoder) binwrite(v interface{}) {
	if err := binary.Write(enc.out, enc.order, v); err != nil {
		panic(err)
	}
}

// Encode encodes a single value to the underlying writer. All written values
// are aligned properly as required by the DBus spec.
func (enc *Encoder) Encode(v interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			err = errors.Wrap(e, "dbus: encode")
		}
	}()
	enc.value(v, 0)
	return nil
}

// EncodeMulti is a shorthand for multiple Encode calls.
func (enc *Encoder) EncodeMulti(vs ...interface{}) error {
	for _, v := range vs {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// value encodes a single value, applying variant wrapping for containers
// whose variant level is above zero.
func (enc *Encoder) value(v interface{}, depth int) {
	if vl := variantLevelOf(v); vl > 0 {
		enc.wrapVariant(v, vl, depth)
		return
	}
	enc.raw(v, depth)
}

// wrapVariant writes the value boxed in the given number of nested variants.
func (enc *Encoder) wrapVariant(v interface{}, levels, depth int) {
	if depth+levels > 64 {
		panic(FormatError("container nesting too deep"))
	}
	for i := 0; i < levels; i++ {
		if i < levels-1 {
			enc.signature("v")
		} else {
			enc.signature(rawSignatureOf(v))
		}
	}
	enc.raw(v, depth+levels)
}

// raw encodes a value at its natural position, ignoring variant levels.
func (enc *Encoder) raw(v interface{}, depth int) {
	if depth > 64 {
		panic(FormatError("container nesting too deep"))
	}
	switch x := v.(type) {
	case byte:
		enc.writeBytes([]byte{x})
	case bool:
		enc.align(4)
		if x {
			enc.raw(uint32(1), depth)
		} else {
			enc.raw(uint32(0), depth)
		}
	case int16:
		enc.align(2)
		enc.binwrite(x)
		enc.pos += 2
	case uint16:
		enc.align(2)
		enc.binwrite(x)
		enc.pos += 2
	case int32:
		enc.align(4)
		enc.binwrite(x)
		enc.pos += 4
	case uint32:
		enc.align(4)
		enc.binwrite(x)
		enc.pos += 4
	case int64:
		enc.align(8)
		enc.binwrite(x)
		enc.pos += 8
	case uint64:
		enc.align(8)
		enc.binwrite(x)
		enc.pos += 8
	case float64:
		enc.align(8)
		enc.binwrite(x)
		enc.pos += 8
	case string:
		enc.str(x)
	case ObjectPath:
		enc.str(string(x))
	case Signature:
		enc.signature(x.str)
	case UnixFDIndex:
		enc.raw(uint32(x), depth)
	case Variant:
		sig := x.sig
		if sig.Empty() {
			sig = Signature{signatureOf(x.value)}
		}
		enc.signature(sig.str)
		enc.value(x.value, depth+1)
	case *Array:
		enc.array(x, depth)
	case *Dict:
		enc.dict(x, depth)
	case *Struct:
		enc.structure(x, depth)
	default:
		enc.value(toContainer(v), depth)
	}
}

// str writes a uint32-prefixed, nul-terminated string.
func (enc *Encoder) str(s string) {
	enc.align(4)
	enc.binwrite(uint32(len(s)))
	enc.pos += 4
	enc.writeBytes(append([]byte(s), 0))
}

// signature writes a byte-prefixed, nul-terminated signature string.
func (enc *Encoder) signature(s string) {
	if len(s) > 255 {
		panic(SignatureError{Sig: s, Reason: "too long"})
	}
	enc.writeBytes([]byte{byte(len(s))})
	enc.writeBytes(append([]byte(s), 0))
}

func (enc *Encoder) writeBytes(b []byte) {
	n, err := enc.out.Write(b)
	if err != nil {
		panic(err)
	}
	enc.pos += n
}

// array writes the uint32 byte length, pads to the element boundary and
// emits the elements. The elements are encoded into a scratch buffer whose
// position counter continues from the stream position so that interior
// alignment is computed against the real stream offsets.
func (enc *Encoder) array(a *Array, depth int) {
	es := a.elemSig()
	enc.align(4)
	start := alignedTo(enc.pos+4, sigAlignment(es[0]))
	buf := new(bytes.Buffer)
	bufenc := &Encoder{out: buf, order: enc.order, pos: start}
	for _, e := range a.elems {
		bufenc.value(e, depth+1)
	}
	length := buf.Len()
	enc.binwrite(uint32(length))
	enc.pos += 4
	enc.align(sigAlignment(es[0]))
	if _, err := buf.WriteTo(enc.out); err != nil {
		panic(err)
	}
	enc.pos += length
}

// dict is an array of 8-aligned key-value entries on the wire. It increases
// the nesting depth by 2, one for the array and one for the entry.
func (enc *Encoder) dict(d *Dict, depth int) {
	enc.align(4)
	start := alignedTo(enc.pos+4, 8)
	buf := new(bytes.Buffer)
	bufenc := &Encoder{out: buf, order: enc.order, pos: start}
	for _, k := range d.keys {
		bufenc.align(8)
		bufenc.value(k, depth+2)
		bufenc.value(d.m[k], depth+2)
	}
	length := buf.Len()
	enc.binwrite(uint32(length))
	enc.pos += 4
	enc.align(8)
	if _, err := buf.WriteTo(enc.out); err != nil {
		panic(err)
	}
	enc.pos += length
}

func (enc *Encoder) structure(s *Struct, depth int) {
	enc.align(8)
	for _, f := range s.fields {
		enc.value(f, depth+1)
	}
}

func alignedTo(pos, n int) int {
	if pos%n != 0 {
		return (pos + n - 1) & ^(n - 1)
	}
	return pos
}

// variantLevelOf returns the variant level a container was constructed with,
// or 0 for any other value.
func variantLevelOf(v interface{}) int {
	switch x := v.(type) {
	case *Array:
		return x.vl
	case *Dict:
		return x.vl
	case *Struct:
		return x.vl
	}
	return 0
}

// toContainer converts a plain Go slice, map or struct into the equivalent
// typed container. It panics with InvalidTypeError for anything else.
func toContainer(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		return toContainer(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		elems := make([]interface{}, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return MakeArray(elems, Signature{getSignature(rv.Type().Elem())})
	case reflect.Map:
		if !isKeyType(rv.Type().Key()) {
			panic(InvalidTypeError{rv.Type()})
		}
		m := make(map[interface{}]interface{}, rv.Len())
		for _, k := range rv.MapKeys() {
			m[k.Interface()] = rv.MapIndex(k).Interface()
		}
		sig := Signature{getSignature(rv.Type().Key()) + getSignature(rv.Type().Elem())}
		return MakeDict(m, sig)
	case reflect.Struct:
		t := rv.Type()
		fields := make([]interface{}, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath == "" && field.Tag.Get("dbus") != "-" {
				fields = append(fields, rv.Field(i).Interface())
			}
		}
		return MakeStruct(fields, Signature{getSignature(t)})
	}
	panic(InvalidTypeError{rv.Type()})
}

// A FormatError represents an error in the wire format (e.g. an invalid
// value for a boolean).
type FormatError string

func (e FormatError) Error() string {
	return "dbus format error: " + string(e)
}
