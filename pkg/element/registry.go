// Package element maps opaque element handles to snapshot nodes and
// re-resolves them against fresh snapshots.
package element

import (
	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// Entry is what a handle remembers: the node captured when it was found and
// the selector that found it.
type Entry struct {
	Node     *xmlquery.Node
	Selector string
	Multiple bool // created by a multi-result search
}

// Registry stores handles in a bounded LRU cache. There is no release
// operation; the least recently used handles are evicted once the cache is
// full.
type Registry struct {
	cache *lru.Cache[string, Entry]
}

// NewRegistry creates a registry holding at most size handles.
func NewRegistry(size int) (*Registry, error) {
	cache, err := lru.NewWithEvict[string, Entry](size, func(id string, _ Entry) {
		logger.Debug("Evicting element %s from cache", id)
	})
	if err != nil {
		return nil, err
	}
	return &Registry{cache: cache}, nil
}

// Register stores a node and returns its new handle id.
func (r *Registry) Register(node *xmlquery.Node, selector string, multiple bool) string {
	id := uuid.NewString()
	r.cache.Add(id, Entry{Node: node, Selector: selector, Multiple: multiple})
	return id
}

// Lookup returns the entry for id and marks it recently used.
func (r *Registry) Lookup(id string) (Entry, bool) {
	return r.cache.Get(id)
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Ref wraps a handle id as a WebDriver element reference.
func Ref(id string) map[string]string {
	return map[string]string{core.W3CElementKey: id}
}

// RefID extracts the handle id from an element reference. The legacy
// "ELEMENT" key is accepted too.
func RefID(ref map[string]interface{}) (string, bool) {
	for _, k := range []string{core.W3CElementKey, "ELEMENT"} {
		if id, ok := ref[k].(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
