package model

import (
	"fmt"
	"sort"

	"golang.org/x/net/html"
)

// A DOMOutputSpec describes a DOM element as produced by a ToDOM function:
// a tag name, an attribute map, and either a designated content hole or a
// list of literal children. It is a plain value so that ToDOM functions
// stay pure; projecting the description onto actual html.Nodes is the
// serializer's job.
type DOMOutputSpec struct {
	// Tag is the element's tag name. When empty, Text must be set and
	// the spec describes a text node.
	Tag string
	// Attrs maps attribute names to values.
	Attrs map[string]string
	// Hole marks this element as the slot where the node's own content
	// is placed. At most one element in a spec tree can be the hole, and
	// specs for leaf nodes must not have one.
	Hole bool
	// Children are literal child elements.
	Children []*DOMOutputSpec
	// Text is the content of a text node spec.
	Text string
}

// A DOMSerializer knows how to convert nodes and marks of various types to
// DOM nodes.
type DOMSerializer struct {
	// The node serialization functions.
	Nodes map[string]func(node *Node) *DOMOutputSpec
	// The mark serialization functions.
	Marks map[string]func(mark *Mark, inline bool) *DOMOutputSpec
}

// DOMSerializerFromSchema builds a serializer using the ToDOM properties
// in a schema's node and mark specs. Text nodes render to DOM text unless
// the schema overrides it.
func DOMSerializerFromSchema(schema *Schema) *DOMSerializer {
	s := &DOMSerializer{
		Nodes: make(map[string]func(node *Node) *DOMOutputSpec),
		Marks: make(map[string]func(mark *Mark, inline bool) *DOMOutputSpec),
	}
	for _, ns := range schema.Spec.Nodes {
		if ns.ToDOM != nil {
			s.Nodes[ns.Key] = ns.ToDOM
		}
	}
	if _, ok := s.Nodes["text"]; !ok {
		s.Nodes["text"] = func(node *Node) *DOMOutputSpec {
			return &DOMOutputSpec{Text: *node.Text}
		}
	}
	for _, ms := range schema.Spec.Marks {
		if ms.ToDOM != nil {
			s.Marks[ms.Key] = ms.ToDOM
		}
	}
	return s
}

// SerializeNode serializes this node to a DOM node. This can be useful
// when you need to serialize a part of a document, as opposed to the whole
// document.
func (s *DOMSerializer) SerializeNode(node *Node) (*html.Node, error) {
	fn := s.Nodes[node.Type.Name]
	if fn == nil {
		return nil, &UnknownTypeError{Kind: "node", Name: node.Type.Name}
	}
	dom, contentDOM, err := renderSpec(fn(node))
	if err != nil {
		return nil, err
	}
	if node.ChildCount() > 0 {
		if contentDOM == nil {
			return nil, fmt.Errorf("no content hole in the DOM spec of %s", node.Type.Name)
		}
		if _, err := s.SerializeFragment(node.Content, contentDOM); err != nil {
			return nil, err
		}
	}
	return dom, nil
}

// SerializeFragment serializes the content of the given fragment,
// appending to target (a new document node when nil). Adjacent inline
// nodes that share a mark end up in a single rendering of that mark,
// except for marks that do not span.
func (s *DOMSerializer) SerializeFragment(fragment *Fragment, target *html.Node) (*html.Node, error) {
	if target == nil {
		target = &html.Node{Type: html.DocumentNode}
	}
	type activeMark struct {
		mark *Mark
		top  *html.Node
	}
	var active []activeMark
	top := target
	var failure error
	fragment.ForEach(func(node *Node, _, _ int) {
		if failure != nil {
			return
		}
		keep, rendered := 0, 0
		for keep < len(active) && rendered < len(node.Marks) {
			next := node.Marks[rendered]
			if s.Marks[next.Type.Name] == nil {
				rendered++
				continue
			}
			if !next.Eq(active[keep].mark) || !next.Type.Spanning() {
				break
			}
			keep++
			rendered++
		}
		for keep < len(active) {
			top = active[len(active)-1].top
			active = active[:len(active)-1]
		}
		for rendered < len(node.Marks) {
			add := node.Marks[rendered]
			rendered++
			fn := s.Marks[add.Type.Name]
			if fn == nil {
				continue
			}
			dom, contentDOM, err := renderSpec(fn(add, node.IsInline()))
			if err != nil {
				failure = err
				return
			}
			active = append(active, activeMark{mark: add, top: top})
			top.AppendChild(dom)
			if contentDOM != nil {
				top = contentDOM
			} else {
				top = dom
			}
		}
		child, err := s.SerializeNode(node)
		if err != nil {
			failure = err
			return
		}
		top.AppendChild(child)
	})
	if failure != nil {
		return nil, failure
	}
	return target, nil
}

// Project a DOM output spec onto html nodes. The second return value is
// the element carrying the content hole, if any.
func renderSpec(spec *DOMOutputSpec) (*html.Node, *html.Node, error) {
	if spec == nil {
		return nil, nil, fmt.Errorf("nil DOM output spec")
	}
	if spec.Tag == "" {
		if spec.Hole || len(spec.Children) > 0 {
			return nil, nil, fmt.Errorf("text DOM spec with content")
		}
		return &html.Node{Type: html.TextNode, Data: spec.Text}, nil, nil
	}
	dom := &html.Node{Type: html.ElementNode, Data: spec.Tag}
	for _, key := range sortedKeys(spec.Attrs) {
		dom.Attr = append(dom.Attr, html.Attribute{Key: key, Val: spec.Attrs[key]})
	}
	var contentDOM *html.Node
	if spec.Hole {
		if len(spec.Children) > 0 {
			return nil, nil, fmt.Errorf("DOM spec with both a hole and literal children")
		}
		contentDOM = dom
	}
	for _, childSpec := range spec.Children {
		child, childContent, err := renderSpec(childSpec)
		if err != nil {
			return nil, nil, err
		}
		dom.AppendChild(child)
		if childContent != nil {
			if contentDOM != nil {
				return nil, nil, fmt.Errorf("multiple content holes in DOM spec")
			}
			contentDOM = childContent
		}
	}
	return dom, contentDOM, nil
}

func sortedKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
