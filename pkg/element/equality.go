package element

import (
	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// Equality decides whether two snapshot nodes, usually from different
// fetches, are the same logical element. Only allow-listed attributes are
// compared, plus one level of context: children, parent and the immediate
// siblings.
type Equality struct {
	attrs map[string]struct{}
}

// NewEquality creates an Equality comparing the given attributes.
func NewEquality(attrs []string) *Equality {
	set := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		set[a] = struct{}{}
	}
	return &Equality{attrs: set}
}

// Equal reports whether a and b are structurally equal.
func (e *Equality) Equal(a, b *xmlquery.Node) bool {
	return e.equal(a, b, true)
}

// equal compares a and b. Relatives are compared with examineRelatives
// false, so context never reaches further than one level.
func (e *Equality) equal(a, b *xmlquery.Node, examineRelatives bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if NodeName(a) != NodeName(b) {
		logger.Debug("Nodes differed in nodeName: '%s' vs '%s'", NodeName(a), NodeName(b))
		return false
	}
	if nodeValue(a) != nodeValue(b) {
		logger.Debug("Nodes differed in value: '%s' vs '%s'", nodeValue(a), nodeValue(b))
		return false
	}
	if !e.attrsEqual(a, b) {
		logger.Debug("Nodes differed in attributes: %v vs %v", AttrMap(a), AttrMap(b))
		return false
	}
	if !examineRelatives {
		return true
	}
	if !e.childrenEqual(a, b) {
		logger.Debug("Nodes differed in children")
		return false
	}
	if !e.equal(a.Parent, b.Parent, false) {
		logger.Debug("Nodes differed in parents")
		return false
	}
	if !e.equal(a.PrevSibling, b.PrevSibling, false) || !e.equal(a.NextSibling, b.NextSibling, false) {
		logger.Debug("Nodes differed in siblings")
		return false
	}
	return true
}

func (e *Equality) attrsEqual(a, b *xmlquery.Node) bool {
	am, bm := e.equalityAttrs(a), e.equalityAttrs(b)
	if len(am) != len(bm) {
		return false
	}
	for k, v := range am {
		if bv, ok := bm[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func (e *Equality) childrenEqual(a, b *xmlquery.Node) bool {
	ac, bc := a.FirstChild, b.FirstChild
	for ac != nil && bc != nil {
		if !e.equal(ac, bc, false) {
			return false
		}
		ac, bc = ac.NextSibling, bc.NextSibling
	}
	// both lists must end together
	return ac == nil && bc == nil
}

func (e *Equality) equalityAttrs(n *xmlquery.Node) map[string]string {
	m := make(map[string]string)
	for _, a := range n.Attr {
		if _, ok := e.attrs[a.Name.Local]; ok {
			m[a.Name.Local] = a.Value
		}
	}
	return m
}

// AttrMap returns all attributes of n keyed by local name.
func AttrMap(n *xmlquery.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Name.Local] = a.Value
	}
	return m
}

// NodeName returns the DOM-style name of n: the tag for elements and
// "#text", "#comment" or "#document" otherwise.
func NodeName(n *xmlquery.Node) string {
	switch n.Type {
	case xmlquery.ElementNode, xmlquery.AttributeNode:
		if n.Prefix != "" {
			return n.Prefix + ":" + n.Data
		}
		return n.Data
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return "#text"
	case xmlquery.CommentNode:
		return "#comment"
	case xmlquery.DocumentNode:
		return "#document"
	case xmlquery.DeclarationNode:
		return "#declaration"
	default:
		return "#node"
	}
}

// nodeValue is the text carried by character data and comments; elements
// have none.
func nodeValue(n *xmlquery.Node) string {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode, xmlquery.CommentNode:
		return n.Data
	default:
		return ""
	}
}
