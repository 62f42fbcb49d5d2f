package dbus

import (
	"reflect"
)

// Signature represents a correct type signature as specified by the DBus
// specification. The zero value represents the empty signature, "".
type Signature struct {
	str string
}

// ParseSignature returns the signature represented by this string, or a
// SignatureError if the string is not a valid signature.
func ParseSignature(s string) (sig Signature, err error) {
	if len(s) == 0 {
		return
	}
	if len(s) > 255 {
		return Signature{""}, SignatureError{s, "too long"}
	}
	sig.str = s
	for err == nil && len(s) != 0 {
		err, s = validSingle(s, 0)
	}
	if err != nil {
		sig = Signature{""}
	}

	return
}

// ParseSignatureMust behaves like ParseSignature, except that it panics if s
// is not valid.
func ParseSignatureMust(s string) Signature {
	sig, err := ParseSignature(s)
	if err != nil {
		panic(err)
	}
	return sig
}

// SignatureOf returns the concatenation of all the signatures of the given
// values. It panics if one of them is not representable in DBus.
//
// Typed containers contribute their own signature if they carry one;
// otherwise their signature is inferred from their first element.
func SignatureOf(vs ...interface{}) Signature {
	var s string
	for _, v := range vs {
		s += signatureOf(v)
	}
	return Signature{s}
}

// SignatureOfType returns the signature of the given type. It panics if the
// type is not representable in DBus.
func SignatureOfType(t reflect.Type) Signature {
	return Signature{getSignature(t)}
}

// signatureOf returns the signature of a single value, consulting the stored
// signatures of typed containers before falling back to reflection. A
// container with a variant level above zero has wire type 'v'.
func signatureOf(v interface{}) string {
	if variantLevelOf(v) > 0 {
		return "v"
	}
	return rawSignatureOf(v)
}

// rawSignatureOf is signatureOf without the variant boxing.
func rawSignatureOf(v interface{}) string {
	switch x := v.(type) {
	case *Array:
		return "a" + x.elemSig()
	case *Dict:
		k, val := x.entrySigs()
		return "a{" + k + val + "}"
	case *Struct:
		return x.structSig()
	case Variant:
		return "v"
	}
	return getSignature(reflect.TypeOf(v))
}

// getSignature returns the signature of the given type and panics on unknown
// types.
func getSignature(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Uint8:
		return "y"
	case reflect.Bool:
		return "b"
	case reflect.Int16:
		return "n"
	case reflect.Uint16:
		return "q"
	case reflect.Int32:
		if t == unixFDType {
			return "h"
		}
		return "i"
	case reflect.Uint32:
		if t == unixFDIndexType {
			return "h"
		}
		return "u"
	case reflect.Int64:
		return "x"
	case reflect.Uint64:
		return "t"
	case reflect.Float64:
		return "d"
	case reflect.Ptr:
		return getSignature(t.Elem())
	case reflect.String:
		if t == objectPathType {
			return "o"
		}
		return "s"
	case reflect.Struct:
		if t == variantType {
			return "v"
		} else if t == signatureType {
			return "g"
		}
		var s string
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath == "" && field.Tag.Get("dbus") != "-" {
				s += getSignature(t.Field(i).Type)
			}
		}
		return "(" + s + ")"
	case reflect.Array, reflect.Slice:
		return "a" + getSignature(t.Elem())
	case reflect.Map:
		if !isKeyType(t.Key()) {
			panic(InvalidTypeError{t})
		}
		return "a{" + getSignature(t.Key()) + getSignature(t.Elem()) + "}"
	}
	panic(InvalidTypeError{t})
}

// Empty returns whether the signature is the empty signature.
func (s Signature) Empty() bool {
	return s.str == ""
}

// Single returns whether the signature represents a single, complete type.
func (s Signature) Single() bool {
	err, r := validSingle(s.str, 0)
	return err == nil && r == ""
}

// String returns the signature's string representation.
func (s Signature) String() string {
	return s.str
}

// A SignatureError indicates that a signature passed to a function or received
// on a connection is not a valid signature.
type SignatureError struct {
	Sig    string
	Reason string
}

func (err SignatureError) Error() string {
	return "dbus: invalid signature: '" + err.Sig + "' (" + err.Reason + ")"
}

// Try to read a single type from this string. If it was successful, err is nil
// and rem is the remaining unparsed part. Otherwise, err is a non-nil
// SignatureError and rem is "". depth is the current recursion depth which may
// not be greater than 64 and should be given as 0 on the first call.
func validSingle(s string, depth int) (err error, rem string) {
	if s == "" {
		return SignatureError{Sig: s, Reason: "empty signature"}, ""
	}
	if depth > 64 {
		return SignatureError{Sig: s, Reason: "container nesting too deep"}, ""
	}
	switch s[0] {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'g', 'o', 'v', 'h':
		return nil, s[1:]
	case 'a':
		if len(s) > 1 && s[1] == '{' {
			rem = s[2:]
			if rem == "" || rem[0] == '}' {
				return SignatureError{Sig: s, Reason: "empty dict"}, ""
			}
			if err, _ = validSingle(rem[:1], depth+1); err != nil {
				return err, ""
			}
			err, rem = validSingle(rem[1:], depth+1)
			if err != nil {
				return err, ""
			}
			if rem == "" {
				return SignatureError{Sig: s, Reason: "unmatched '{'"}, ""
			}
			if rem[0] != '}' {
				return SignatureError{Sig: s, Reason: "too many types in dict"}, ""
			}
			return nil, rem[1:]
		}
		return validSingle(s[1:], depth+1)
	case '(':
		rem = s[1:]
		for rem != "" && rem[0] != ')' {
			if err, rem = validSingle(rem, depth+1); err != nil {
				return err, ""
			}
		}
		if rem == "" {
			return SignatureError{Sig: s, Reason: "unmatched ')'"}, ""
		}
		return nil, rem[1:]
	}
	return SignatureError{Sig: s, Reason: "invalid type character"}, ""
}

// firstType splits s into its leading single complete type and the rest. It
// panics if s does not start with a valid type.
func firstType(s string) (typ, rem string) {
	err, rem := validSingle(s, 0)
	if err != nil {
		panic(err)
	}
	return s[:len(s)-len(rem)], rem
}
