// Package focus moves the device's focus onto a target element. The device has
// no way to select an element directly, so the navigator presses directional
// keys and re-reads the screen until the target reports itself focused.
package focus

import (
	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
	"github.com/devicelab-dev/roku-driver/pkg/source"
)

// IsFocused reports whether n carries focused="true". A missing attribute
// reads as not focused.
func IsFocused(n *xmlquery.Node) bool {
	return n != nil && n.SelectAttr("focused") == "true"
}

type scan int

const (
	scanPrev scan = iota
	scanNext
)

func (s scan) String() string {
	if s == scanPrev {
		return "previous sibling"
	}
	return "next sibling"
}

func (s scan) step(n *xmlquery.Node) *xmlquery.Node {
	if s == scanPrev {
		return n.PrevSibling
	}
	return n.NextSibling
}

// ChooseKey returns the key most likely to bring focus closer to n, which
// must not be focused itself.
//
// While the parent is unfocused the parent is navigated to first; the walk
// stops below the synthetic root. At the level whose parent holds focus, the
// siblings are scanned outward, previous side first, for the focused one and
// the key is derived from the relative position of the two. With no focused
// sibling the result is Down.
func ChooseKey(n *xmlquery.Node) core.Key {
	if p := n.Parent; p != nil && p.Type == xmlquery.ElementNode && !source.IsRoot(p) && !IsFocused(p) {
		logger.Debug("Node's parent is not focused, attempting to focus parent <%s>", p.Data)
		return ChooseKey(p)
	}

	logger.Debug("Examining node's siblings for focus state")
	for _, dir := range []scan{scanPrev, scanNext} {
		for s := dir.step(n); s != nil; s = dir.step(s) {
			if s.Type != xmlquery.ElementNode || !IsFocused(s) {
				continue
			}
			key := keyForMove(s, n, dir)
			logger.Info("Found a %s that is focused; pressing %s", dir, key)
			return key
		}
	}

	logger.Debug("No focused sibling of <%s> found; pressing %s", n.Data, core.KeyDown)
	return core.KeyDown
}

// keyForMove picks the key moving focus from the focused node to the target.
// The axis with the larger displacement wins, vertical on a tie. Without
// usable bounds on both nodes, or with no displacement, the key depends on
// which side the focused node was found.
func keyForMove(from, to *xmlquery.Node, dir scan) core.Key {
	fb, fok := core.ParseBounds(from.SelectAttr("bounds"))
	tb, tok := core.ParseBounds(to.SelectAttr("bounds"))
	if fok && tok {
		logger.Debug("From element at (%d, %d), to element at (%d, %d)", fb.X, fb.Y, tb.X, tb.Y)
		vert := abs(tb.Y - fb.Y)
		horiz := abs(tb.X - fb.X)
		if vert != 0 || horiz != 0 {
			if vert >= horiz {
				if tb.Y > fb.Y {
					return core.KeyDown
				}
				return core.KeyUp
			}
			if tb.X > fb.X {
				return core.KeyRight
			}
			return core.KeyLeft
		}
	}

	logger.Debug("Could not get distinct bounds for <%s> and <%s>", from.Data, to.Data)
	if dir == scanPrev {
		return core.KeyRight
	}
	return core.KeyLeft
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
