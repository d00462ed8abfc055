// Package mock provides a simulated device for testing without real hardware.
// The simulated channel shows a grid of focusable items; directional keys
// move focus through it and the app-ui query renders it the way a device
// does.
package mock

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/ecp"
)

// Item is one focusable element on the simulated screen.
type Item struct {
	Tag   string            // element name, e.g. Label or StdDlgButton
	Attrs map[string]string // rendered as XML attributes
	Label string            // when set, a child <Label text="..."/> is rendered
}

// Config configures the simulated device.
type Config struct {
	// Rows of focusable items. Focus starts on the first item of the
	// first row.
	Rows [][]Item
	// Frozen makes the device accept keys without moving focus.
	Frozen bool
	// UIResolution is reported as ui-resolution in device info.
	UIResolution string
	// KeyError, when set, is returned by every key press.
	KeyError error
}

// Device is a simulated device. It is safe for concurrent use.
type Device struct {
	mu  sync.Mutex
	cfg Config
	row int
	col int

	keys      []core.Key
	selected  []string
	typed     strings.Builder
	touches   [][2]int
	launches  []string
	installed string
	fetches   int
}

// New creates a simulated device.
func New(cfg Config) *Device {
	if cfg.UIResolution == "" {
		cfg.UIResolution = "1080p"
	}
	return &Device{cfg: cfg}
}

// KeyPress moves focus, records selections and collects typed literals.
func (d *Device) KeyPress(ctx context.Context, key core.Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.KeyError != nil {
		return d.cfg.KeyError
	}
	d.keys = append(d.keys, key)

	if lit, ok := strings.CutPrefix(string(key), "Lit_"); ok {
		if s, err := url.PathUnescape(lit); err == nil {
			d.typed.WriteString(s)
		}
		return nil
	}
	if d.cfg.Frozen || len(d.cfg.Rows) == 0 {
		return nil
	}

	switch key {
	case core.KeyUp:
		if d.row > 0 {
			d.row--
			d.clampCol()
		}
	case core.KeyDown:
		if d.row < len(d.cfg.Rows)-1 {
			d.row++
			d.clampCol()
		}
	case core.KeyLeft:
		if d.col > 0 {
			d.col--
		}
	case core.KeyRight:
		if d.col < len(d.cfg.Rows[d.row])-1 {
			d.col++
		}
	case core.KeySelect:
		if it, ok := d.focusedItem(); ok {
			d.selected = append(d.selected, it.Attrs["name"])
		}
	case core.KeyHome:
		d.row, d.col = 0, 0
	}
	return nil
}

func (d *Device) clampCol() {
	if n := len(d.cfg.Rows[d.row]); d.col >= n {
		d.col = n - 1
	}
}

func (d *Device) focusedItem() (Item, bool) {
	if d.row >= len(d.cfg.Rows) || d.col >= len(d.cfg.Rows[d.row]) {
		return Item{}, false
	}
	return d.cfg.Rows[d.row][d.col], true
}

// Launch records a channel launch.
func (d *Device) Launch(ctx context.Context, appID string, params url.Values) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := appID
	if len(params) > 0 {
		entry += "?" + params.Encode()
	}
	d.launches = append(d.launches, entry)
	return nil
}

// Touch records a touch input.
func (d *Device) Touch(ctx context.Context, x, y int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touches = append(d.touches, [2]int{x, y})
	return nil
}

// DeviceInfo returns a fixed device description.
func (d *Device) DeviceInfo(ctx context.Context) (map[string]string, error) {
	return map[string]string{
		"model-name":    "Simulated Roku",
		"ui-resolution": d.cfg.UIResolution,
	}, nil
}

// Apps returns the installed channels.
func (d *Device) Apps(ctx context.Context) ([]ecp.App, error) {
	apps := []ecp.App{{ID: "12", Type: "appl", Version: "5.2.0", Name: "Netflix"}}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.installed != "" {
		apps = append(apps, ecp.App{ID: "dev", Type: "appl", Version: "1.0.0", Name: "Dev Channel"})
	}
	return apps, nil
}

// ActiveApp reports the dev channel after a launch and the home screen
// otherwise.
func (d *Device) ActiveApp(ctx context.Context) (*ecp.App, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.launches) > 0 {
		return &ecp.App{ID: "dev", Type: "appl", Name: "Dev Channel"}, nil
	}
	return &ecp.App{Name: "Roku"}, nil
}

// AppUI renders the current screen.
func (d *Device) AppUI(ctx context.Context, stripOuter bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetches++
	top := d.render()
	if stripOuter {
		return top, nil
	}
	return `<?xml version="1.0" encoding="UTF-8" ?><app-ui><status>OK</status>` + top + `</app-ui>`, nil
}

// render writes rows as a vertical stack; items in a row are laid out
// horizontally. Focus is flagged on the grid, the focused row and the
// focused item.
func (d *Device) render() string {
	var b strings.Builder
	b.WriteString(`<topscreen><plugin id="dev" name="Simulated"/><screensStack><Grid name="grid" focused="true">`)
	for r, row := range d.cfg.Rows {
		fmt.Fprintf(&b, `<Row name="row%d" bounds="{0, %d, 1920, 100}"%s>`, r, r*120, focusAttr(r == d.row))
		for c, it := range row {
			fmt.Fprintf(&b, `<%s%s bounds="{%d, %d, 200, 100}"%s`, it.Tag, attrs(it.Attrs), c*220, r*120, focusAttr(r == d.row && c == d.col))
			if it.Label == "" {
				b.WriteString(`/>`)
				continue
			}
			fmt.Fprintf(&b, `><Label text="%s"/></%s>`, attrEscaper.Replace(it.Label), it.Tag)
		}
		b.WriteString(`</Row>`)
	}
	b.WriteString(`</Grid></screensStack></topscreen>`)
	return b.String()
}

func focusAttr(focused bool) string {
	if focused {
		return ` focused="true"`
	}
	return ""
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;")

func attrs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, ` %s="%s"`, k, attrEscaper.Replace(m[k]))
	}
	return b.String()
}

// PlayerState returns an idle player.
func (d *Device) PlayerState(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"player": map[string]interface{}{"error": "false", "state": "close"},
	}, nil
}

// Install records a sideload.
func (d *Device) Install(ctx context.Context, archivePath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.installed = archivePath
	return nil
}

// Remove deletes the sideloaded channel.
func (d *Device) Remove(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.installed = ""
	return nil
}

// Screenshot returns a mock PNG image.
func (d *Device) Screenshot(ctx context.Context) ([]byte, error) {
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// Keys returns every key pressed so far.
func (d *Device) Keys() []core.Key {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.Key(nil), d.keys...)
}

// Selected returns the names of the items Select was pressed on.
func (d *Device) Selected() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.selected...)
}

// Typed returns the text entered with literal keys.
func (d *Device) Typed() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typed.String()
}

// Touches returns recorded touch inputs.
func (d *Device) Touches() [][2]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][2]int(nil), d.touches...)
}

// Launches returns recorded launches as "appID?query".
func (d *Device) Launches() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.launches...)
}

// Installed returns the archive sideloaded last, or "".
func (d *Device) Installed() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.installed
}

// Fetches returns the number of app-ui queries served.
func (d *Device) Fetches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches
}

// Focused returns the focused row and column.
func (d *Device) Focused() (row, col int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.row, d.col
}
