package focus

import (
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/source"
)

func screen(t *testing.T, fragment string) *xmlquery.Node {
	t.Helper()
	doc, err := xmlquery.Parse(strings.NewReader(source.Wrap(fragment)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func target(t *testing.T, doc *xmlquery.Node) *xmlquery.Node {
	t.Helper()
	n := xmlquery.FindOne(doc, `//*[@name="target"]`)
	if n == nil {
		t.Fatal("no target in screen")
	}
	return n
}

func TestIsFocused(t *testing.T) {
	doc := screen(t, `<a focused="true"/><b focused="false"/><c/>`)
	tests := map[string]bool{"a": true, "b": false, "c": false}
	for name, want := range tests {
		if got := IsFocused(xmlquery.FindOne(doc, "//"+name)); got != want {
			t.Errorf("IsFocused(%s) = %v, want %v", name, got, want)
		}
	}
	if IsFocused(nil) {
		t.Error("nil is never focused")
	}
}

func TestChooseKey(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     core.Key
	}{
		{
			name: "pure vertical",
			fragment: `<List focused="true">` +
				`<Item focused="true" bounds="{0, 0, 10, 10}"/>` +
				`<Item name="target" bounds="{0, 20, 10, 10}"/></List>`,
			want: core.KeyDown,
		},
		{
			name: "pure horizontal",
			fragment: `<Row focused="true">` +
				`<Item focused="true" bounds="{0, 0, 10, 10}"/>` +
				`<Item name="target" bounds="{20, 0, 10, 10}"/></Row>`,
			want: core.KeyRight,
		},
		{
			name: "above",
			fragment: `<List focused="true">` +
				`<Item name="target" bounds="{0, 0, 10, 10}"/>` +
				`<Item focused="true" bounds="{0, 20, 10, 10}"/></List>`,
			want: core.KeyUp,
		},
		{
			name: "left",
			fragment: `<Row focused="true">` +
				`<Item name="target" bounds="{0, 0, 10, 10}"/>` +
				`<Item focused="true" bounds="{30, 5, 10, 10}"/></Row>`,
			want: core.KeyLeft,
		},
		{
			name: "diagonal tie goes vertical",
			fragment: `<Grid focused="true">` +
				`<Item focused="true" bounds="{0, 0, 10, 10}"/>` +
				`<Item name="target" bounds="{20, 20, 10, 10}"/></Grid>`,
			want: core.KeyDown,
		},
		{
			name: "focused sibling is not adjacent",
			fragment: `<List focused="true">` +
				`<Item focused="true" bounds="{0, 0, 10, 10}"/><Item bounds="{0, 20, 10, 10}"/>` +
				`<Item name="target" bounds="{0, 40, 10, 10}"/></List>`,
			want: core.KeyDown,
		},
		{
			name: "no bounds previous side",
			fragment: `<List focused="true"><Item focused="true"/>` +
				`<Item name="target"/></List>`,
			want: core.KeyRight,
		},
		{
			name: "no bounds next side",
			fragment: `<List focused="true"><Item name="target"/>` +
				`<Item focused="true"/></List>`,
			want: core.KeyLeft,
		},
		{
			name: "same position falls back",
			fragment: `<List focused="true"><Item name="target" bounds="{5, 5, 10, 10}"/>` +
				`<Item focused="true" bounds="{5, 5, 20, 20}"/></List>`,
			want: core.KeyLeft,
		},
		{
			name: "bounds on one side only",
			fragment: `<List focused="true"><Item focused="true" bounds="{0, 0, 10, 10}"/>` +
				`<Item name="target"/></List>`,
			want: core.KeyRight,
		},
		{
			name: "text between siblings is skipped",
			fragment: `<List focused="true"><Item focused="true" bounds="{0, 0, 10, 10}"/>` +
				"\n  some text\n  " +
				`<Item name="target" bounds="{0, 20, 10, 10}"/></List>`,
			want: core.KeyDown,
		},
		{
			name:     "nothing focused",
			fragment: `<List><Item/><Item name="target"/></List>`,
			want:     core.KeyDown,
		},
		{
			name: "unfocused parent is navigated first",
			fragment: `<Screen focused="true">` +
				`<Menu focused="true" bounds="{0, 0, 200, 600}"><Item focused="true"/></Menu>` +
				`<Grid bounds="{300, 0, 900, 600}"><Item/><Item name="target"/></Grid>` +
				`</Screen>`,
			want: core.KeyRight,
		},
		{
			name: "grandparent is navigated first",
			fragment: `<Screen focused="true">` +
				`<Grid bounds="{0, 0, 900, 600}"><Row><Item name="target"/></Row></Grid>` +
				`<Menu focused="true" bounds="{0, 700, 200, 300}"/>` +
				`</Screen>`,
			want: core.KeyUp,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChooseKey(target(t, screen(t, tt.fragment))); got != tt.want {
				t.Errorf("ChooseKey() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChooseKey_StopsBelowRoot(t *testing.T) {
	doc := screen(t, `<Item focused="true" bounds="{0, 0, 10, 10}"/><Item name="target" bounds="{0, 20, 10, 10}"/>`)

	// the synthetic root is never focused; siblings directly under it are
	// still scanned
	if got := ChooseKey(target(t, doc)); got != core.KeyDown {
		t.Errorf("ChooseKey() = %s, want Down", got)
	}
}
