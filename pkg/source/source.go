// Package source caches the on-screen UI snapshot. The device answers UI
// queries with a fragment; the source wraps it in a synthetic root so XPath
// selectors always run against a complete document.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// RootTag is the synthetic root element wrapping the device payload.
const RootTag = "AppiumAUT"

const xmlHeader = `<?xml version="1.0"?>`

// Fetcher returns the current UI hierarchy. With stripOuter set it returns
// only the on-screen fragment.
type Fetcher interface {
	AppUI(ctx context.Context, stripOuter bool) (string, error)
}

// Source is a snapshot cache with a dirty flag. Any action that can change
// the screen must call Invalidate before it returns.
type Source struct {
	fetcher Fetcher
	raw     string
	doc     *xmlquery.Node
	dirty   bool
}

// New creates a source. The first read always fetches.
func New(f Fetcher) *Source {
	return &Source{fetcher: f, dirty: true}
}

// Invalidate marks the cached snapshot dirty.
func (s *Source) Invalidate() {
	s.dirty = true
}

// Dirty reports whether the next read will fetch.
func (s *Source) Dirty() bool {
	return s.dirty
}

// XML returns the wrapped snapshot document.
func (s *Source) XML(ctx context.Context) (string, error) {
	if err := s.load(ctx); err != nil {
		return "", err
	}
	return s.raw, nil
}

// Document returns the parsed snapshot, fetching only when dirty.
func (s *Source) Document(ctx context.Context) (*xmlquery.Node, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.doc, nil
}

// Refresh discards the cache and returns a freshly fetched snapshot.
func (s *Source) Refresh(ctx context.Context) (*xmlquery.Node, error) {
	s.Invalidate()
	return s.Document(ctx)
}

func (s *Source) load(ctx context.Context) error {
	if !s.dirty {
		logger.Debug("Responding with page source from cache")
		return nil
	}
	logger.Info("Page source cache is dirty, pulling source from device")
	fragment, err := s.fetcher.AppUI(ctx, true)
	if err != nil {
		return err
	}
	raw := Wrap(fragment)
	doc, err := xmlquery.Parse(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse page source: %w", err)
	}
	s.raw = raw
	s.doc = doc
	s.dirty = false
	return nil
}

// Wrap places a UI fragment under the synthetic root.
func Wrap(fragment string) string {
	return xmlHeader + "\n<" + RootTag + ">\n" + fragment + "\n</" + RootTag + ">"
}

// IsRoot reports whether n is the synthetic root element.
func IsRoot(n *xmlquery.Node) bool {
	return n != nil && n.Type == xmlquery.ElementNode && n.Data == RootTag &&
		n.Parent != nil && n.Parent.Type == xmlquery.DocumentNode
}
