package focus

import (
	"context"
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// DefaultMaxSteps is the number of moves attempted before giving up.
const DefaultMaxSteps = 20

// Resolver re-resolves an element handle against the current screen.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*xmlquery.Node, error)
}

// KeyPresser sends one remote key. Implementations must mark the cached
// snapshot dirty before returning.
type KeyPresser interface {
	PressKey(ctx context.Context, key core.Key) error
}

// Navigator runs the focus loop: resolve, check, move, repeat.
type Navigator struct {
	resolver Resolver
	keys     KeyPresser
	maxSteps int
}

// NewNavigator creates a Navigator. A non-positive maxSteps selects
// DefaultMaxSteps.
func NewNavigator(r Resolver, k KeyPresser, maxSteps int) *Navigator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Navigator{resolver: r, keys: k, maxSteps: maxSteps}
}

// MaxSteps returns the move budget.
func (n *Navigator) MaxSteps() int {
	return n.maxSteps
}

// Focus moves focus onto the element id and returns the number of keys
// pressed. Resolution failures end the loop immediately; only moves are
// retried.
func (n *Navigator) Focus(ctx context.Context, id string) (int, error) {
	moves := 0
	for {
		node, err := n.resolver.Resolve(ctx, id)
		if err != nil {
			return moves, err
		}
		if IsFocused(node) {
			logger.Info("Element %s focused after %d moves", id, moves)
			return moves, nil
		}

		logger.Info("Attempting to focus element %s: step %d", id, moves+1)
		if err := n.keys.PressKey(ctx, ChooseKey(node)); err != nil {
			return moves, err
		}
		moves++

		if moves >= n.maxSteps {
			return moves, core.ErrFocusExhausted.
				WithMessage(fmt.Sprintf("Could not focus element for click in %d steps; focus manually instead", n.maxSteps)).
				WithDetails(map[string]interface{}{"element": id})
		}
	}
}
