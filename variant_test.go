package dbus

import "testing"

var variantFormatTests = []struct {
	v interface{}
	s string
}{
	{int32(1), `1`},
	{"foo", `"foo"`},
	{ObjectPath("/org/foo"), `@o "/org/foo"`},
	{Signature{"i"}, `@g "i"`},
	{[]byte{}, `@ay []`},
	{[]int32{1, 2}, `[1, 2]`},
	{[]int64{1, 2}, `@ax [1, 2]`},
	{[][]int32{{3, 4}, {5, 6}}, `[[3, 4], [5, 6]]`},
	{[]Variant{MakeVariant(int32(1)), MakeVariant(1.0)}, `[<1>, <@d 1>]`},
	{map[string]int32{"one": 1, "two": 2}, `{"one": 1, "two": 2}`},
	{map[int32]ObjectPath{1: "/org/foo"}, `@a{io} {1: "/org/foo"}`},
	{map[string]Variant{}, `@a{sv} {}`},
	{MakeArray([]interface{}{int32(1), int32(2)}, Signature{"i"}), `[1, 2]`},
	{MakeDict(map[interface{}]interface{}{"k": byte(7)}, Signature{"sy"}), `@a{sy} {"k": 0x7}`},
	{MakeStruct([]interface{}{int32(1), "a"}, Signature{"(is)"}), `@(is) (1, "a")`},
	{MakeArrayWithVariantLevel([]interface{}{int32(1)}, Signature{"i"}, 1), `<[1]>`},
}

func TestVariantFormat(t *testing.T) {
	for i, v := range variantFormatTests {
		if s := MakeVariant(v.v).String(); s != v.s {
			t.Errorf("test %d: got %q, wanted %q", i+1, s, v.s)
		}
	}
}

func TestVariantSignatureAndValue(t *testing.T) {
	v := MakeVariant(map[string]int32{"n": 5})
	if got := v.Signature().String(); got != "a{si}" {
		t.Errorf("got signature %q, wanted a{si}", got)
	}
	if _, ok := v.Value().(map[string]int32); !ok {
		t.Errorf("value type changed: %T", v.Value())
	}
}

func TestMakeVariantWithSignature(t *testing.T) {
	v := MakeVariantWithSignature(uint32(42), Signature{"u"})
	if got := v.Signature().String(); got != "u" {
		t.Errorf("got signature %q, wanted u", got)
	}
	if v.Value() != uint32(42) {
		t.Errorf("got value %v, wanted 42", v.Value())
	}
}
