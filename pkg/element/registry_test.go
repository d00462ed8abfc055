package element

import (
	"testing"

	"github.com/devicelab-dev/roku-driver/pkg/core"
)

func TestRegistry_RegisterLookup(t *testing.T) {
	reg, err := NewRegistry(4)
	if err != nil {
		t.Fatal(err)
	}
	node := findOne(t, parse(t, `<r><Label name="a"/></r>`), "//Label")

	id := reg.Register(node, "//Label", false)
	if id == "" {
		t.Fatal("empty id")
	}
	other := reg.Register(node, "//Label", false)
	if other == id {
		t.Error("ids must be unique")
	}

	entry, ok := reg.Lookup(id)
	if !ok {
		t.Fatal("lookup failed")
	}
	if entry.Node != node || entry.Selector != "//Label" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Error("lookup of unknown id should fail")
	}
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	reg, err := NewRegistry(2)
	if err != nil {
		t.Fatal(err)
	}
	node := findOne(t, parse(t, `<r><Label/></r>`), "//Label")

	a := reg.Register(node, "//a", false)
	b := reg.Register(node, "//b", false)
	if _, ok := reg.Lookup(a); !ok {
		t.Fatal("a should be present")
	}
	c := reg.Register(node, "//c", false)

	if reg.Len() != 2 {
		t.Errorf("len = %d, want 2", reg.Len())
	}
	if _, ok := reg.Lookup(b); ok {
		t.Error("b was least recently used and should be evicted")
	}
	if _, ok := reg.Lookup(a); !ok {
		t.Error("a was used recently and should survive")
	}
	if _, ok := reg.Lookup(c); !ok {
		t.Error("c should be present")
	}
}

func TestNewRegistry_InvalidSize(t *testing.T) {
	if _, err := NewRegistry(0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestRefID(t *testing.T) {
	tests := []struct {
		name   string
		ref    map[string]interface{}
		want   string
		wantOK bool
	}{
		{"w3c", map[string]interface{}{core.W3CElementKey: "abc"}, "abc", true},
		{"legacy", map[string]interface{}{"ELEMENT": "def"}, "def", true},
		{"empty", map[string]interface{}{core.W3CElementKey: ""}, "", false},
		{"wrong type", map[string]interface{}{core.W3CElementKey: 1}, "", false},
		{"missing", map[string]interface{}{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RefID(tt.ref)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("RefID() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRef(t *testing.T) {
	ref := Ref("abc")
	if ref[core.W3CElementKey] != "abc" {
		t.Errorf("unexpected ref: %v", ref)
	}
}
