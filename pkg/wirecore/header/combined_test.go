package header

import "testing"

func TestCombinedFoldsMultipleAddsIntoOnePhysicalEntry(t *testing.T) {
	var c Combined
	c.Add("Accept", "text/html")
	c.Add("Accept", "application/json")
	c.Add("Accept", "*/*")

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	all := c.GetAll("accept")
	want := []string{"text/html", "application/json", "*/*"}
	if len(all) != len(want) {
		t.Fatalf("GetAll length = %d, want %d", len(all), len(want))
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("GetAll()[%d] = %q, want %q", i, all[i], want[i])
		}
	}
}

func TestCombinedEscapesCommasAndQuotes(t *testing.T) {
	var c Combined
	c.Add("X-List", "needs, escaping")
	c.Add("X-List", `has "quotes"`)
	c.Add("X-List", "plain")

	all := c.GetAll("x-list")
	want := []string{"needs, escaping", `has "quotes"`, "plain"}
	if len(all) != len(want) {
		t.Fatalf("GetAll length = %d, want %d: %v", len(all), len(want), all)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("GetAll()[%d] = %q, want %q", i, all[i], want[i])
		}
	}
}

func TestCombinedRoundTripArbitraryValues(t *testing.T) {
	values := []string{"a", "b,c", `d"e`, "f\r\n g", ""}
	var c Combined
	for _, v := range values {
		if err := c.Add("X-Many", v); err != nil {
			t.Fatalf("Add(%q) failed: %v", v, err)
		}
	}

	got := c.GetAll("x-many")
	if len(got) != len(values) {
		t.Fatalf("GetAll length = %d, want %d: %v", len(got), len(values), got)
	}
	for i, v := range values {
		if got[i] != v {
			t.Errorf("GetAll()[%d] = %q, want %q", i, got[i], v)
		}
	}
}

func TestCombinedGetReturnsFirst(t *testing.T) {
	var c Combined
	c.Add("X-Foo", "one")
	c.Add("X-Foo", "two")

	v, ok := c.Get("x-foo")
	if !ok || v != "one" {
		t.Errorf("Get() = %q, %v; want %q, true", v, ok, "one")
	}
}

func TestCombinedDel(t *testing.T) {
	var c Combined
	c.Add("X-Foo", "one")
	c.Del("x-foo")
	if c.Has("X-Foo") {
		t.Error("expected X-Foo to be removed")
	}
}
