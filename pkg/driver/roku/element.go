package roku

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/element"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

const (
	keyboardSelector = `//StdDlgKeyboardItem[@focused="true"]`
	okButtonSelector = `//Label[@text="OK"]/ancestor::StdDlgButton`

	// the @ key opens a popup that needs time to settle
	atKeyDelay = 750 * time.Millisecond
)

// Keyboard modes of the on-screen keyboard.
const (
	kbABC     = "abc123"
	kbCaps    = "capslock"
	kbSymbols = "symbols"
	kbAccents = "accents"
)

// FindElement returns a handle for the first node matching selector.
func (d *Driver) FindElement(ctx context.Context, strategy, selector, contextID string) (string, error) {
	logger.Info("Finding element using %s: %s", strategy, selector)
	return d.finder.Find(ctx, strategy, selector, contextID)
}

// FindElements returns handles for every node matching selector.
func (d *Driver) FindElements(ctx context.Context, strategy, selector, contextID string) ([]string, error) {
	logger.Info("Finding elements using %s: %s", strategy, selector)
	return d.finder.FindAll(ctx, strategy, selector, contextID)
}

// Focus navigates until the element is focused.
func (d *Driver) Focus(ctx context.Context, id string) error {
	_, err := d.navigator.Focus(ctx, id)
	return err
}

// Click focuses the element and presses Select.
func (d *Driver) Click(ctx context.Context, id string) error {
	if err := d.Focus(ctx, id); err != nil {
		return err
	}
	return d.PressKey(ctx, core.KeySelect)
}

// ElementAttribute returns an attribute of the element. ok is false when the
// attribute is absent.
func (d *Driver) ElementAttribute(ctx context.Context, id, name string) (value string, ok bool, err error) {
	node, err := d.resolver.Resolve(ctx, id)
	if err != nil {
		return "", false, err
	}
	for _, a := range node.Attr {
		if a.Name.Local == name {
			return a.Value, true, nil
		}
	}
	return "", false, nil
}

// ElementText returns the text attribute of the element.
func (d *Driver) ElementText(ctx context.Context, id string) (string, error) {
	text, _, err := d.ElementAttribute(ctx, id, "text")
	return text, err
}

// ElementName returns the tag name of the element.
func (d *Driver) ElementName(ctx context.Context, id string) (string, error) {
	node, err := d.resolver.Resolve(ctx, id)
	if err != nil {
		return "", err
	}
	return element.NodeName(node), nil
}

// ElementRect returns the element's bounds.
func (d *Driver) ElementRect(ctx context.Context, id string) (core.Bounds, error) {
	node, err := d.resolver.Resolve(ctx, id)
	if err != nil {
		return core.Bounds{}, err
	}
	b, _ := core.ParseBounds(node.SelectAttr("bounds"))
	return b, nil
}

// ElementFocused reports whether the element currently has focus.
func (d *Driver) ElementFocused(ctx context.Context, id string) (bool, error) {
	node, err := d.resolver.Resolve(ctx, id)
	if err != nil {
		return false, err
	}
	return node.SelectAttr("focused") == "true", nil
}

// SetValue types text into the keyboard dialog opened by the element and
// confirms it with the dialog's OK button. The key cooldown is suspended
// while typing.
func (d *Driver) SetValue(ctx context.Context, id, text string) error {
	typeText := d.typeLiterals
	if d.cfg.TypeIndividualKeys {
		typeText = d.typeOnKeyboard
	}

	saved := d.keyCooldown
	d.keyCooldown = 0
	defer func() { d.keyCooldown = saved }()

	if err := d.ensureKeyboard(ctx, id); err != nil {
		return err
	}
	if err := typeText(ctx, text); err != nil {
		return err
	}

	ok, err := d.FindElement(ctx, element.StrategyXPath, okButtonSelector, "")
	if err != nil {
		return err
	}
	return d.Click(ctx, ok)
}

// ensureKeyboard makes sure a keyboard item has focus, clicking the element
// once to open the dialog if needed.
func (d *Driver) ensureKeyboard(ctx context.Context, id string) error {
	_, err := d.FindElement(ctx, element.StrategyXPath, keyboardSelector, "")
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNoSuchElement) {
		return err
	}

	logger.Debug("Could not find keyboard, attempting to click element to see if it comes up")
	if err := d.Click(ctx, id); err != nil {
		return err
	}
	if _, err := d.FindElement(ctx, element.StrategyXPath, keyboardSelector, ""); err != nil {
		if errors.Is(err, core.ErrNoSuchElement) {
			return core.ErrNoSuchElement.WithMessage("Tried to type text but could not find a focused 'StdDlgKeyboardItem'")
		}
		return err
	}
	return nil
}

// typeLiterals types each character as a literal key press.
func (d *Driver) typeLiterals(ctx context.Context, text string) error {
	for _, r := range text {
		if err := d.PressKey(ctx, core.LiteralKey(url.PathEscape(string(r)))); err != nil {
			return err
		}
	}
	return nil
}

// typeOnKeyboard clicks the on-screen keyboard keys, switching keyboard mode
// where needed.
func (d *Driver) typeOnKeyboard(ctx context.Context, text string) error {
	presses := keyboardPresses(text)
	logger.Debug("Will attempt to type keyboard sequence: %q", presses)

	for _, press := range presses {
		selector := fmt.Sprintf("//VKBKey[@uiElementId=%s]", xpathLiteral("vkey:"+press))
		key, err := d.FindElement(ctx, element.StrategyXPath, selector, "")
		if err != nil {
			return err
		}
		if press == "@" {
			if err := d.Focus(ctx, key); err != nil {
				return err
			}
			if err := d.sleep(ctx, atKeyDelay); err != nil {
				return err
			}
		}
		if err := d.Click(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// keyboardPresses returns the keys to click for text, with a mode key
// inserted wherever the keyboard mode has to change. The keyboard starts in
// abc123 mode.
func keyboardPresses(text string) []string {
	mode := kbABC
	var presses []string
	for _, r := range text {
		if next := keyboardMode(r); next != mode {
			presses = append(presses, next)
			mode = next
		}
		presses = append(presses, string(r))
	}
	return presses
}

func keyboardMode(r rune) string {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', strings.ContainsRune(".@_-", r):
		return kbABC
	case r >= 'A' && r <= 'Z':
		return kbCaps
	case r >= 192:
		return kbAccents
	default:
		return kbSymbols
	}
}

// xpathLiteral quotes s for use in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(parts, `, '"', `) + ")"
}
