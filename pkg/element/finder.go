package element

import (
	"context"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// StrategyXPath is the only supported locator strategy.
const StrategyXPath = "xpath"

// Snapshot supplies parsed UI snapshots.
type Snapshot interface {
	// Document returns the cached snapshot, fetching when it is dirty.
	Document(ctx context.Context) (*xmlquery.Node, error)
	// Refresh always fetches.
	Refresh(ctx context.Context) (*xmlquery.Node, error)
}

// Compile validates a find request and compiles its selector. It never
// touches the device. contextID is the element a search would be scoped to;
// scoped searches are not supported.
func Compile(strategy, selector, contextID string) (*xpath.Expr, error) {
	if strategy != StrategyXPath {
		return nil, core.ErrUnsupportedLocator.WithDetails(map[string]interface{}{"strategy": strategy})
	}
	if contextID != "" {
		return nil, core.ErrUnsupportedContextualFind
	}
	expr, err := xpath.Compile(selector)
	if err != nil {
		return nil, core.ErrInvalidSelector.WithCause(err).WithDetails(map[string]interface{}{"selector": selector})
	}
	return expr, nil
}

// Finder runs selectors against the snapshot and registers the matches.
type Finder struct {
	snapshot Snapshot
	registry *Registry
}

// NewFinder creates a Finder.
func NewFinder(s Snapshot, r *Registry) *Finder {
	return &Finder{snapshot: s, registry: r}
}

// Find returns a handle for the first node matching selector.
func (f *Finder) Find(ctx context.Context, strategy, selector, contextID string) (string, error) {
	expr, err := Compile(strategy, selector, contextID)
	if err != nil {
		return "", err
	}
	nodes, err := f.query(ctx, expr, false)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", core.ErrNoSuchElement.WithDetails(map[string]interface{}{"selector": selector})
	}
	return f.registry.Register(nodes[0], selector, false), nil
}

// FindAll returns handles for every node matching selector. No match is not
// an error.
func (f *Finder) FindAll(ctx context.Context, strategy, selector, contextID string) ([]string, error) {
	expr, err := Compile(strategy, selector, contextID)
	if err != nil {
		return nil, err
	}
	nodes, err := f.query(ctx, expr, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, f.registry.Register(n, selector, true))
	}
	return ids, nil
}

// query evaluates expr from the document root. Only element nodes are
// returned.
func (f *Finder) query(ctx context.Context, expr *xpath.Expr, fresh bool) ([]*xmlquery.Node, error) {
	return selectNodes(ctx, f.snapshot, expr, fresh)
}

func selectNodes(ctx context.Context, s Snapshot, expr *xpath.Expr, fresh bool) ([]*xmlquery.Node, error) {
	var doc *xmlquery.Node
	var err error
	if fresh {
		doc, err = s.Refresh(ctx)
	} else {
		doc, err = s.Document(ctx)
	}
	if err != nil {
		return nil, err
	}
	var out []*xmlquery.Node
	for _, n := range xmlquery.QuerySelectorAll(doc, expr) {
		if n.Type == xmlquery.ElementNode {
			out = append(out, n)
		}
	}
	logger.Debug("Selector %s matched %d nodes", expr.String(), len(out))
	return out, nil
}
