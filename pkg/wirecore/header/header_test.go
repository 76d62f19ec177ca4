package header

import (
	"fmt"
	"testing"
)

func TestValuesAddAndGet(t *testing.T) {
	var h Values

	if err := h.Add("Content-Type", "application/json"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	val, ok := h.Get("content-type")
	if !ok || val != "application/json" {
		t.Errorf("Get(content-type) = %q, %v; want %q, true", val, ok, "application/json")
	}
}

func TestValuesPreservesInsertionOrderAndCase(t *testing.T) {
	var h Values
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("X-Trace-%d", i)
		if err := h.Add(name, fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("Add(%d) failed: %v", i, err)
		}
	}

	names := h.Names()
	for i, name := range names {
		want := fmt.Sprintf("X-Trace-%d", i)
		if name != want {
			t.Errorf("Names()[%d] = %q, want %q", i, name, want)
		}
	}
}

func TestValuesRepeatedNameOrder(t *testing.T) {
	var h Values
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	h.Add("Set-Cookie", "c=3")

	all := h.GetAll("set-cookie")
	want := []string{"a=1", "b=2", "c=3"}
	if len(all) != len(want) {
		t.Fatalf("GetAll length = %d, want %d", len(all), len(want))
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("GetAll()[%d] = %q, want %q", i, all[i], want[i])
		}
	}

	first, ok := h.Get("SET-COOKIE")
	if !ok || first != "a=1" {
		t.Errorf("Get returned %q, %v; want first inserted value", first, ok)
	}
}

func TestValuesCaseInsensitiveLookup(t *testing.T) {
	var h Values
	h.Add("hOsT", "example.com")

	for _, name := range []string{"Host", "HOST", "host", "hOsT"} {
		if !h.Has(name) {
			t.Errorf("Has(%q) = false, want true", name)
		}
	}
}

func TestValuesSetReplacesAll(t *testing.T) {
	var h Values
	h.Add("X-Foo", "one")
	h.Add("X-Foo", "two")
	if err := h.Set("X-Foo", "three"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	all := h.GetAll("x-foo")
	if len(all) != 1 || all[0] != "three" {
		t.Errorf("GetAll after Set = %v, want [three]", all)
	}
}

func TestValuesDel(t *testing.T) {
	var h Values
	h.Add("X-Foo", "one")
	h.Add("X-Bar", "two")
	h.Del("x-foo")

	if h.Has("X-Foo") {
		t.Error("X-Foo should have been deleted")
	}
	if !h.Has("X-Bar") {
		t.Error("X-Bar should still be present")
	}
}

func TestValuesHasToken(t *testing.T) {
	var h Values
	h.Add("Connection", "keep-alive, Upgrade")
	if !h.HasToken("Connection", "upgrade") {
		t.Error("HasToken should match case-insensitively across a comma list")
	}
	if h.HasToken("Connection", "close") {
		t.Error("HasToken should not match a token absent from the list")
	}
}

func TestValidateNameRejectsEmptyAndInvalid(t *testing.T) {
	cases := []string{"", "Bad Name", "Bad:Name", "Bad\tName"}
	var h Values
	for _, name := range cases {
		if err := h.Add(name, "x"); err == nil {
			t.Errorf("Add(%q, ...) succeeded, want error", name)
		}
	}
}

func TestValidateValueRejectsControlBytes(t *testing.T) {
	var h Values
	bad := []string{"a\x00b", "a\x0bb", "a\x0cb", "a\rb", "a\nb"}
	for _, v := range bad {
		if err := h.Add("X-Test", v); err == nil {
			t.Errorf("Add with value %q succeeded, want error", v)
		}
	}
}

func TestValidateValueAllowsObsFold(t *testing.T) {
	var h Values
	if err := h.Add("X-Test", "line1\r\n line2"); err != nil {
		t.Errorf("obs-fold continuation should be accepted, got %v", err)
	}
}

func TestValuesClone(t *testing.T) {
	var h Values
	h.Add("X-Foo", "bar")
	c := h.Clone()
	c.Add("X-Foo", "baz")

	if len(h.GetAll("x-foo")) != 1 {
		t.Error("original should be unaffected by mutating the clone")
	}
	if len(c.GetAll("x-foo")) != 2 {
		t.Error("clone should have both entries")
	}
}
