// Package core holds the types shared by the driver, the device client and the
// WebDriver surface: remote keys, bounds and the error taxonomy.
package core

import (
	"regexp"
	"strconv"
	"strings"
)

// W3CElementKey is the well-known key element references are embedded under.
const W3CElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Key is a named remote-control key understood by the device.
type Key string

// Remote keys
const (
	KeyHome          Key = "Home"
	KeyRev           Key = "Rev"
	KeyFwd           Key = "Fwd"
	KeyPlay          Key = "Play"
	KeySelect        Key = "Select"
	KeyLeft          Key = "Left"
	KeyRight         Key = "Right"
	KeyDown          Key = "Down"
	KeyUp            Key = "Up"
	KeyBack          Key = "Back"
	KeyInstantReplay Key = "InstantReplay"
	KeyInfo          Key = "Info"
	KeyBackspace     Key = "Backspace"
	KeySearch        Key = "Search"
	KeyEnter         Key = "Enter"
)

// LiteralKey returns the key that types a single character.
func LiteralKey(escaped string) Key {
	return Key("Lit_" + escaped)
}

// IsDirectional reports whether k moves focus.
func (k Key) IsDirectional() bool {
	switch k {
	case KeyUp, KeyDown, KeyLeft, KeyRight:
		return true
	}
	return false
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

var boundsJunk = regexp.MustCompile(`[^-.0-9,]`)

// ParseBounds parses a bounds attribute such as "{12, 40, 300, 60}".
// Everything but digits, dots, commas and minus signs is stripped before
// splitting on commas. Missing or malformed fields read as zero; ok is false
// when the x and y fields cannot be read.
func ParseBounds(s string) (b Bounds, ok bool) {
	parts := strings.Split(boundsJunk.ReplaceAllString(s, ""), ",")
	if len(parts) < 2 {
		return Bounds{}, false
	}
	vals := make([]int, 4)
	for i := 0; i < len(parts) && i < 4; i++ {
		v, err := parseCoord(parts[i])
		if err != nil {
			if i < 2 {
				return Bounds{}, false
			}
			continue
		}
		vals[i] = v
	}
	return Bounds{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, true
}

// parseCoord reads the integer part of a coordinate ("12.5" reads as 12).
func parseCoord(s string) (int, error) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strconv.Atoi(s)
}

// Resolution returns the screen size for a device ui-resolution value.
func Resolution(uiResolution string) (width, height int) {
	switch strings.ToLower(uiResolution) {
	case "480p":
		return 720, 480
	case "720p":
		return 1280, 720
	case "4k", "2160p":
		return 3840, 2160
	default:
		return 1920, 1080
	}
}
