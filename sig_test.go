package dbus

import (
	"testing"
)

var parseSigTests = []struct {
	sig   string
	valid bool
}{
	{"", true},
	{"i", true},
	{"is", true},
	{"ai", true},
	{"a{sv}", true},
	{"(is)", true},
	{"a(yv)", true},
	{"aa{s(iv)}", true},
	{"z", false},
	{"a", false},
	{"a{s}", false},
	{"a{svs}", false},
	{"(is", false},
	{"a{vs}", true},
	{"a{si}a{sv}", true},
	{"(i)(s)", true},
	{"a(ii)(ss)", true},
	{"a{}", false},
	{"a{si", false},
}

func TestParseSignature(t *testing.T) {
	for i, v := range parseSigTests {
		sig, err := ParseSignature(v.sig)
		if v.valid {
			if err != nil {
				t.Errorf("test %d: %q: unexpected error %v", i+1, v.sig, err)
			}
			if sig.String() != v.sig {
				t.Errorf("test %d: got %q, expected %q", i+1, sig.String(), v.sig)
			}
		} else {
			if err == nil {
				t.Errorf("test %d: %q: expected error", i+1, v.sig)
			}
			if _, ok := err.(SignatureError); err != nil && !ok {
				t.Errorf("test %d: expected SignatureError, got %T", i+1, err)
			}
			if !sig.Empty() {
				t.Errorf("test %d: invalid input produced non-empty signature %q", i+1, sig.String())
			}
		}
	}
}

func TestParseSignatureTooLong(t *testing.T) {
	var s string
	for i := 0; i < 256; i++ {
		s += "i"
	}
	if _, err := ParseSignature(s); err == nil {
		t.Error("expected error for over-long signature")
	}
}

var sigOfTests = []struct {
	vs  []interface{}
	sig Signature
}{
	{
		[]interface{}{int32(0)},
		Signature{"i"},
	},
	{
		[]interface{}{""},
		Signature{"s"},
	},
	{
		[]interface{}{Signature{"i"}},
		Signature{"g"},
	},
	{
		[]interface{}{[]int16{42}},
		Signature{"an"},
	},
	{
		[]interface{}{int16(42), uint32(0)},
		Signature{"nu"},
	},
	{
		[]interface{}{map[byte]Variant{}},
		Signature{"a{yv}"},
	},
	{
		[]interface{}{MakeVariant(int32(1)), []map[int32]string{}},
		Signature{"vaa{is}"},
	},
	{
		[]interface{}{MakeArray(nil, Signature{"i"})},
		Signature{"ai"},
	},
	{
		[]interface{}{MakeArray([]interface{}{"x"}, Signature{})},
		Signature{"as"},
	},
	{
		[]interface{}{MakeDict(map[interface{}]interface{}{"k": uint32(1)}, Signature{})},
		Signature{"a{su}"},
	},
	{
		[]interface{}{MakeStruct([]interface{}{int32(1), "a"}, Signature{"(is)"})},
		Signature{"(is)"},
	},
	{
		[]interface{}{MakeStruct([]interface{}{int32(1), "a"}, Signature{})},
		Signature{"(is)"},
	},
	{
		[]interface{}{MakeArrayWithVariantLevel(nil, Signature{"i"}, 1)},
		Signature{"v"},
	},
}

func TestSignatureOf(t *testing.T) {
	for i, v := range sigOfTests {
		sig := SignatureOf(v.vs...)
		if sig != v.sig {
			t.Errorf("test %d: got %q, expected %q", i+1, sig.str, v.sig.str)
		}
	}
}

func TestSignatureOfEmptyUntypedArray(t *testing.T) {
	defer func() {
		if _, ok := recover().(InvalidTypeError); !ok {
			t.Error("expected InvalidTypeError panic")
		}
	}()
	SignatureOf(MakeArray(nil, Signature{}))
}

func TestSignatureSingle(t *testing.T) {
	for sig, want := range map[string]bool{
		"i":     true,
		"ai":    true,
		"(is)":  true,
		"ii":    false,
		"a{sv}": true,
	} {
		if got := (Signature{sig}).Single(); got != want {
			t.Errorf("Single(%q) = %v, want %v", sig, got, want)
		}
	}
}
