package dbus

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
)

// Variant represents the DBus variant type: a value boxed together with its
// own signature. Containers decoded from nested variants are returned as
// Array/Dict/Struct values with a raised variant level instead.
type Variant struct {
	sig   Signature
	value interface{}
}

// MakeVariant converts the given value to a Variant. It panics if v cannot be
// represented as a DBus type.
func MakeVariant(v interface{}) Variant {
	return Variant{Signature{signatureOf(v)}, v}
}

// MakeVariantWithSignature converts the given value to a Variant with the
// given signature, skipping inference.
func MakeVariantWithSignature(v interface{}, s Signature) Variant {
	return Variant{s, v}
}

// format returns a formatted version of v and whether this string can be parsed
// unambiguously.
func (v Variant) format() (string, bool) {
	switch v.sig.str[0] {
	case 'b', 'i':
		return fmt.Sprint(v.value), true
	case 'n', 'q', 'u', 'x', 't', 'd', 'h':
		return fmt.Sprint(v.value), false
	case 's':
		return strconv.Quote(v.value.(string)), true
	case 'o':
		return strconv.Quote(string(v.value.(ObjectPath))), false
	case 'g':
		return strconv.Quote(v.value.(Signature).str), false
	case 'v':
		inner, ok := v.value.(Variant)
		if !ok {
			// a container carrying a variant level
			inner = Variant{Signature{rawSignatureOf(v.value)}, v.value}
		}
		s, unamb := inner.format()
		if !unamb {
			return "<@" + inner.sig.str + " " + s + ">", true
		}
		return "<" + s + ">", true
	case 'y':
		return fmt.Sprintf("%#x", v.value.(byte)), false
	}
	switch x := v.value.(type) {
	case *Array:
		if x.Len() == 0 {
			return "[]", false
		}
		unamb := true
		buf := bytes.NewBuffer([]byte("["))
		for i, e := range x.elems {
			s, b := MakeVariant(e).format()
			unamb = unamb && b
			buf.WriteString(s)
			if i != x.Len()-1 {
				buf.WriteString(", ")
			}
		}
		buf.WriteByte(']')
		return buf.String(), unamb
	case *Dict:
		if x.Len() == 0 {
			return "{}", false
		}
		unamb := true
		buf := bytes.NewBuffer([]byte("{"))
		for i, k := range x.keys {
			s, b := MakeVariant(k).format()
			unamb = unamb && b
			buf.WriteString(s)
			buf.WriteString(": ")
			s, b = MakeVariant(x.m[k]).format()
			unamb = unamb && b
			buf.WriteString(s)
			if i != len(x.keys)-1 {
				buf.WriteString(", ")
			}
		}
		buf.WriteByte('}')
		return buf.String(), unamb
	case *Struct:
		buf := bytes.NewBuffer([]byte("("))
		for i, f := range x.fields {
			s, _ := MakeVariant(f).format()
			buf.WriteString(s)
			if i != len(x.fields)-1 {
				buf.WriteString(", ")
			}
		}
		buf.WriteByte(')')
		return buf.String(), false
	}
	switch reflect.ValueOf(v.value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Ptr:
		// plain Go composites format like their container equivalents
		return Variant{v.sig, toContainer(v.value)}.format()
	}
	return `"INVALID"`, true
}

// Signature returns the DBus signature of the underlying value of v.
func (v Variant) Signature() Signature {
	return v.sig
}

// String returns the string representation of the underlying value of v as
// described at https://developer.gnome.org/glib/unstable/gvariant-text.html.
func (v Variant) String() string {
	s, unamb := v.format()
	if !unamb {
		return "@" + v.sig.str + " " + s
	}
	return s
}

// Value returns the underlying value of v.
func (v Variant) Value() interface{} {
	return v.value
}
