package dbus

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrNegativeVariantLevel is returned when a container constructor is given a
// variant level below zero.
var ErrNegativeVariantLevel = errors.New("dbus: negative variant level")

// An Array is an ordered sequence of values sharing one element signature,
// the host representation of a DBus array. The signature may be empty, in
// which case it is inferred from the first element when the Array is sent in
// a Message.
//
// The variant level counts how many variants wrap the value on the wire; it
// is fixed at construction and 0 means the value is not boxed in a variant.
type Array struct {
	elems []interface{}
	sig   Signature
	vl    int
}

// NewArray returns an Array holding the given elements. The signature string
// is validated with ParseSignature; "" means "infer when serialized".
func NewArray(elems []interface{}, signature string) (*Array, error) {
	return NewArrayWithVariantLevel(elems, signature, 0)
}

// NewArrayWithVariantLevel is NewArray with an explicit variant level.
func NewArrayWithVariantLevel(elems []interface{}, signature string, variantLevel int) (*Array, error) {
	sig, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	if variantLevel < 0 {
		return nil, ErrNegativeVariantLevel
	}
	return MakeArrayWithVariantLevel(elems, sig, variantLevel), nil
}

// MakeArray is like NewArray but takes an already validated Signature, which
// is kept as-is.
func MakeArray(elems []interface{}, sig Signature) *Array {
	return MakeArrayWithVariantLevel(elems, sig, 0)
}

// MakeArrayWithVariantLevel is MakeArray with an explicit variant level. It
// panics if the level is negative.
func MakeArrayWithVariantLevel(elems []interface{}, sig Signature, variantLevel int) *Array {
	if variantLevel < 0 {
		panic(ErrNegativeVariantLevel)
	}
	cp := make([]interface{}, len(elems))
	copy(cp, elems)
	return &Array{elems: cp, sig: sig, vl: variantLevel}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.elems)
}

// Index returns the i'th element.
func (a *Array) Index(i int) interface{} {
	return a.elems[i]
}

// SetIndex replaces the i'th element.
func (a *Array) SetIndex(i int, v interface{}) {
	a.elems[i] = v
}

// Append adds elements at the end.
func (a *Array) Append(vs ...interface{}) {
	a.elems = append(a.elems, vs...)
}

// Elements returns a copy of the element sequence, in order.
func (a *Array) Elements() []interface{} {
	cp := make([]interface{}, len(a.elems))
	copy(cp, a.elems)
	return cp
}

// Signature returns the element signature. The zero Signature means it will
// be inferred from the first element when serialized.
func (a *Array) Signature() Signature {
	return a.sig
}

// VariantLevel returns the variant nesting count set at construction.
func (a *Array) VariantLevel() int {
	return a.vl
}

func (a *Array) String() string {
	return containerString("Array", fmt.Sprintf("%v", a.elems), a.sig, a.vl)
}

// withVariant returns a copy wrapped in one more variant level. Used by the
// decoder when unpacking variants.
func (a *Array) withVariant() *Array {
	return &Array{elems: a.elems, sig: a.sig, vl: a.vl + 1}
}

// elemSig returns the element signature, inferring it from the first element
// if none was given. It panics with InvalidTypeError if the Array is empty
// and has no signature.
func (a *Array) elemSig() string {
	if !a.sig.Empty() {
		return a.sig.str
	}
	if len(a.elems) == 0 {
		panic(InvalidTypeError{reflect.TypeOf(a)})
	}
	return signatureOf(a.elems[0])
}

// A Dict is a mapping from keys of one basic type to values of one type, the
// host representation of a DBus dictionary. Its signature, if present, is the
// key signature immediately followed by the value signature (e.g. "sv" for a
// dict of string to variant).
//
// Iteration order is fixed when the Dict is created and preserved for its
// lifetime; keys added later iterate after the initial ones.
type Dict struct {
	keys []interface{}
	m    map[interface{}]interface{}
	sig  Signature
	vl   int
}

// NewDict returns a Dict holding the given entries. The signature string is
// validated with ParseSignature; "" means "infer when serialized". Keys must
// be comparable.
func NewDict(entries map[interface{}]interface{}, signature string) (*Dict, error) {
	return NewDictWithVariantLevel(entries, signature, 0)
}

// NewDictWithVariantLevel is NewDict with an explicit variant level.
func NewDictWithVariantLevel(entries map[interface{}]interface{}, signature string, variantLevel int) (*Dict, error) {
	sig, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	if err := checkDictSig(sig); err != nil {
		return nil, err
	}
	if variantLevel < 0 {
		return nil, ErrNegativeVariantLevel
	}
	return MakeDictWithVariantLevel(entries, sig, variantLevel), nil
}

// checkDictSig verifies that a non-empty dict signature is one basic key
// type followed by exactly one complete value type, the only shape that can
// go on the wire as a{kv}.
func checkDictSig(sig Signature) error {
	if sig.Empty() {
		return nil
	}
	s := sig.str
	if !isBasicSigCode(s[0]) {
		return SignatureError{Sig: s, Reason: "invalid dict key type"}
	}
	err, rem := validSingle(s[1:], 0)
	if err != nil {
		return err
	}
	if rem != "" {
		return SignatureError{Sig: s, Reason: "too many types in dict"}
	}
	return nil
}

// MakeDict is like NewDict but takes an already validated Signature, which is
// kept as-is.
func MakeDict(entries map[interface{}]interface{}, sig Signature) *Dict {
	return MakeDictWithVariantLevel(entries, sig, 0)
}

// MakeDictWithVariantLevel is MakeDict with an explicit variant level. It
// panics if the level is negative or the signature is not a valid dict
// entry shape.
func MakeDictWithVariantLevel(entries map[interface{}]interface{}, sig Signature, variantLevel int) *Dict {
	if err := checkDictSig(sig); err != nil {
		panic(err)
	}
	if variantLevel < 0 {
		panic(ErrNegativeVariantLevel)
	}
	keys := make([]interface{}, 0, len(entries))
	m := make(map[interface{}]interface{}, len(entries))
	for k, v := range entries {
		keys = append(keys, k)
		m[k] = v
	}
	// map iteration order is random; fix the iteration order once here
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
	return &Dict{keys: keys, m: m, sig: sig, vl: variantLevel}
}

// makeDictOrdered builds a Dict whose iteration order is exactly ks. Used by
// the decoder so wire order is preserved.
func makeDictOrdered(ks []interface{}, m map[interface{}]interface{}, sig Signature) *Dict {
	return &Dict{keys: ks, m: m, sig: sig}
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return len(d.m)
}

// Get returns the value stored under k and whether it is present.
func (d *Dict) Get(k interface{}) (interface{}, bool) {
	v, ok := d.m[k]
	return v, ok
}

// Set stores v under k. A new key iterates after all existing ones.
func (d *Dict) Set(k, v interface{}) {
	if _, ok := d.m[k]; !ok {
		d.keys = append(d.keys, k)
	}
	d.m[k] = v
}

// Delete removes the entry stored under k, if any.
func (d *Dict) Delete(k interface{}) {
	if _, ok := d.m[k]; !ok {
		return
	}
	delete(d.m, k)
	for i, key := range d.keys {
		if key == k {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in iteration order.
func (d *Dict) Keys() []interface{} {
	cp := make([]interface{}, len(d.keys))
	copy(cp, d.keys)
	return cp
}

// Signature returns the key signature followed by the value signature. The
// zero Signature means they will be inferred when serialized.
func (d *Dict) Signature() Signature {
	return d.sig
}

// VariantLevel returns the variant nesting count set at construction.
func (d *Dict) VariantLevel() int {
	return d.vl
}

func (d *Dict) String() string {
	return containerString("Dict", fmt.Sprintf("%v", d.m), d.sig, d.vl)
}

func (d *Dict) withVariant() *Dict {
	return &Dict{keys: d.keys, m: d.m, sig: d.sig, vl: d.vl + 1}
}

// entrySigs returns the key and value signatures, inferring them from the
// first entry if no signature was given. It panics with InvalidTypeError if
// that is impossible.
func (d *Dict) entrySigs() (key, value string) {
	if !d.sig.Empty() {
		err, rem := validSingle(d.sig.str, 0)
		if err == nil && rem != "" {
			return d.sig.str[:len(d.sig.str)-len(rem)], rem
		}
		panic(InvalidTypeError{reflect.TypeOf(d)})
	}
	if len(d.keys) == 0 {
		panic(InvalidTypeError{reflect.TypeOf(d)})
	}
	k := d.keys[0]
	return signatureOf(k), signatureOf(d.m[k])
}

// A Struct is a fixed-arity sequence of heterogeneous values, the host
// representation of a DBus struct. Unlike Array and Dict it is immutable: its
// arity, element order, signature and variant level are all fixed at
// construction and it has no mutating methods.
type Struct struct {
	fields []interface{}
	sig    Signature
	vl     int
}

// NewStruct returns a Struct holding the given fields. The signature string
// is validated with ParseSignature; "" means "infer when serialized".
func NewStruct(fields []interface{}, signature string) (*Struct, error) {
	return NewStructWithVariantLevel(fields, signature, 0)
}

// NewStructWithVariantLevel is NewStruct with an explicit variant level.
func NewStructWithVariantLevel(fields []interface{}, signature string, variantLevel int) (*Struct, error) {
	sig, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	if variantLevel < 0 {
		return nil, ErrNegativeVariantLevel
	}
	return MakeStructWithVariantLevel(fields, sig, variantLevel), nil
}

// MakeStruct is like NewStruct but takes an already validated Signature,
// which is kept as-is.
func MakeStruct(fields []interface{}, sig Signature) *Struct {
	return MakeStructWithVariantLevel(fields, sig, 0)
}

// MakeStructWithVariantLevel is MakeStruct with an explicit variant level. It
// panics if the level is negative.
func MakeStructWithVariantLevel(fields []interface{}, sig Signature, variantLevel int) *Struct {
	if variantLevel < 0 {
		panic(ErrNegativeVariantLevel)
	}
	cp := make([]interface{}, len(fields))
	copy(cp, fields)
	return &Struct{fields: cp, sig: sig, vl: variantLevel}
}

// Len returns the arity.
func (s *Struct) Len() int {
	return len(s.fields)
}

// Field returns the i'th field.
func (s *Struct) Field(i int) interface{} {
	return s.fields[i]
}

// Fields returns a copy of the field sequence, in order.
func (s *Struct) Fields() []interface{} {
	cp := make([]interface{}, len(s.fields))
	copy(cp, s.fields)
	return cp
}

// Signature returns the parenthesized struct signature. The zero Signature
// means it will be inferred from the fields when serialized.
func (s *Struct) Signature() Signature {
	return s.sig
}

// VariantLevel returns the variant nesting count set at construction.
func (s *Struct) VariantLevel() int {
	return s.vl
}

func (s *Struct) String() string {
	return containerString("Struct", fmt.Sprintf("%v", s.fields), s.sig, s.vl)
}

func (s *Struct) withVariant() *Struct {
	return &Struct{fields: s.fields, sig: s.sig, vl: s.vl + 1}
}

// structSig returns the full parenthesized signature, inferring it from the
// fields if none was given.
func (s *Struct) structSig() string {
	if !s.sig.Empty() {
		return s.sig.str
	}
	var b strings.Builder
	b.WriteByte('(')
	for _, f := range s.fields {
		b.WriteString(signatureOf(f))
	}
	b.WriteByte(')')
	return b.String()
}

// containerString renders the common display form of the typed containers.
// The variant_level clause is omitted when the level is 0. The base
// container's own rendering appears verbatim as a nested substring.
func containerString(name, base string, sig Signature, vl int) string {
	if vl > 0 {
		return fmt.Sprintf("%s(%s, signature=%q, variant_level=%d)", name, base, sig.str, vl)
	}
	return fmt.Sprintf("%s(%s, signature=%q)", name, base, sig.str)
}
