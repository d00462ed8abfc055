package element

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/devicelab-dev/roku-driver/pkg/core"
)

func TestResolve_RoundTrip(t *testing.T) {
	fx := newFixture(t, listScreen)
	ctx := context.Background()

	id, err := fx.finder.Find(ctx, StrategyXPath, `//Label[@name="myLabel"]`, "")
	if err != nil {
		t.Fatal(err)
	}
	node, err := fx.resolver.Resolve(ctx, id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if node.SelectAttr("text") != "Two" {
		t.Errorf("resolved wrong node: %v", AttrMap(node))
	}
	if fx.fetcher.calls != 2 {
		t.Errorf("resolve should refetch; got %d fetches", fx.fetcher.calls)
	}
}

func TestResolve_SurvivesFocusChange(t *testing.T) {
	fx := newFixture(t, listScreen)
	ctx := context.Background()

	id, err := fx.finder.Find(ctx, StrategyXPath, `//Label[@name="myLabel"]`, "")
	if err != nil {
		t.Fatal(err)
	}
	fx.fetcher.screen = strings.Replace(listScreen, `text="Two"`, `text="Two" focused="true"`, 1)

	node, err := fx.resolver.Resolve(ctx, id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if node.SelectAttr("focused") != "true" {
		t.Error("expected the node from the new snapshot")
	}
}

func TestResolve_Stale(t *testing.T) {
	fx := newFixture(t, listScreen)
	ctx := context.Background()

	id, err := fx.finder.Find(ctx, StrategyXPath, `//Label[@name="myLabel"]`, "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		screen string
	}{
		{"removed", `<topscreen><List name="list"><Label name="first" text="One"/></List></topscreen>`},
		{"text changed", strings.Replace(listScreen, `text="Two"`, `text="2"`, 1)},
		{"neighbour changed", strings.Replace(listScreen, `text="Three"`, `text="Four"`, 1)},
		{"reparented", `<topscreen><Group><Label name="first" text="One"/><Label name="myLabel" text="Two"/>` +
			`<Label name="third" text="Three"/></Group></topscreen>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx.fetcher.screen = tt.screen
			_, err := fx.resolver.Resolve(ctx, id)
			if !errors.Is(err, core.ErrStaleElement) {
				t.Errorf("expected stale element, got %v", err)
			}
		})
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	fx := newFixture(t, `<topscreen><Row><Item text="x"/></Row></topscreen>`)
	ctx := context.Background()

	id, err := fx.finder.Find(ctx, StrategyXPath, "//Item", "")
	if err != nil {
		t.Fatal(err)
	}
	fx.fetcher.screen = `<topscreen><Row><Item text="x"/></Row><Row><Item text="x"/></Row></topscreen>`

	_, err = fx.resolver.Resolve(ctx, id)
	if !errors.Is(err, core.ErrAmbiguousElement) {
		t.Fatalf("expected ambiguous element, got %v", err)
	}
	if errors.Is(err, core.ErrStaleElement) {
		t.Error("ambiguity must be distinguishable from staleness")
	}
}

func TestResolve_UnknownHandle(t *testing.T) {
	fx := newFixture(t, listScreen)

	_, err := fx.resolver.Resolve(context.Background(), "not-a-handle")
	if !errors.Is(err, core.ErrNoSuchElement) {
		t.Errorf("expected no such element, got %v", err)
	}
	if fx.fetcher.calls != 0 {
		t.Errorf("unknown handle should not fetch, got %d", fx.fetcher.calls)
	}
}

func TestResolve_FromFindAll(t *testing.T) {
	fx := newFixture(t, listScreen)
	ctx := context.Background()

	ids, err := fx.finder.FindAll(ctx, StrategyXPath, "//Label", "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"first", "myLabel", "third"}
	for i, id := range ids {
		node, err := fx.resolver.Resolve(ctx, id)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if got := node.SelectAttr("name"); got != want[i] {
			t.Errorf("handle %d resolved to %q, want %q", i, got, want[i])
		}
	}
}
