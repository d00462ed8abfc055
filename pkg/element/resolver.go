package element

import (
	"context"

	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// Resolver turns a handle back into a node of the current screen. Every
// snapshot produces new node objects, so a handle is re-run through its
// selector on a fresh snapshot and matched by structural equality.
type Resolver struct {
	snapshot Snapshot
	registry *Registry
	equality *Equality
}

// NewResolver creates a Resolver.
func NewResolver(s Snapshot, r *Registry, eq *Equality) *Resolver {
	return &Resolver{snapshot: s, registry: r, equality: eq}
}

// Resolve returns the unique node in a freshly fetched snapshot equal to the
// node captured for id.
func (r *Resolver) Resolve(ctx context.Context, id string) (*xmlquery.Node, error) {
	logger.Info("Ensuring element %s is not stale", id)
	entry, ok := r.registry.Lookup(id)
	if !ok {
		return nil, core.ErrNoSuchElement.WithDetails(map[string]interface{}{"element": id})
	}

	expr, err := Compile(StrategyXPath, entry.Selector, "")
	if err != nil {
		return nil, err
	}
	candidates, err := selectNodes(ctx, r.snapshot, expr, true)
	if err != nil {
		return nil, err
	}

	var matches []*xmlquery.Node
	for _, c := range candidates {
		if r.equality.Equal(c, entry.Node) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return nil, core.ErrStaleElement.WithDetails(map[string]interface{}{"element": id, "selector": entry.Selector})
	case 1:
		return matches[0], nil
	default:
		return nil, core.ErrAmbiguousElement.WithDetails(map[string]interface{}{
			"element":  id,
			"selector": entry.Selector,
			"matches":  len(matches),
		})
	}
}
