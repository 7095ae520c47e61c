// Package builder provides helpers to build documents for tests with a
// compact, HTML-tag-like vocabulary.
package builder

import (
	"fmt"

	"github.com/typeset-io/docmodel/model"
	"github.com/typeset-io/docmodel/schema/basic"
)

// Schema is the schema the builders create documents for.
var Schema = basic.Schema

// A NodeBuilder creates a node from a mix of strings, nodes, and node
// slices.
type NodeBuilder func(args ...interface{}) *model.Node

// A MarkBuilder wraps inline content in a mark.
type MarkBuilder func(args ...interface{}) []*model.Node

func flatten(args []interface{}) []*model.Node {
	var nodes []*model.Node
	for _, arg := range args {
		switch a := arg.(type) {
		case string:
			if a != "" {
				nodes = append(nodes, Schema.Text(a))
			}
		case *model.Node:
			nodes = append(nodes, a)
		case []*model.Node:
			nodes = append(nodes, a...)
		default:
			panic(fmt.Errorf("unsupported builder argument %v", arg))
		}
	}
	return nodes
}

func block(name string, attrs map[string]interface{}) NodeBuilder {
	return func(args ...interface{}) *model.Node {
		node, err := Schema.Node(name, attrs, flatten(args), nil)
		if err != nil {
			panic(err)
		}
		return node
	}
}

func mark(name string, attrs map[string]interface{}) MarkBuilder {
	return func(args ...interface{}) []*model.Node {
		m := Schema.Mark(name, attrs)
		children := flatten(args)
		result := make([]*model.Node, len(children))
		for i, child := range children {
			result[i] = child.Mark(m.AddToSet(child.Marks))
		}
		return result
	}
}

func leaf(name string, attrs map[string]interface{}) *model.Node {
	node, err := Schema.Node(name, attrs, nil, nil)
	if err != nil {
		panic(err)
	}
	return node
}

var (
	Doc        = block("doc", nil)
	P          = block("paragraph", nil)
	Blockquote = block("blockquote", nil)
	Pre        = block("code_block", nil)
	H1         = block("heading", map[string]interface{}{"level": 1})
	H2         = block("heading", map[string]interface{}{"level": 2})
	H3         = block("heading", map[string]interface{}{"level": 3})

	Hr = leaf("horizontal_rule", nil)
	Br = leaf("hard_break", nil)

	Em     = mark("em", nil)
	Strong = mark("strong", nil)
	Code   = mark("code", nil)
)

// Img creates an image node with the given source.
func Img(src string) *model.Node {
	return leaf("image", map[string]interface{}{"src": src})
}

// ImgAttrs creates an image node with explicit attributes.
func ImgAttrs(attrs map[string]interface{}) *model.Node {
	return leaf("image", attrs)
}

// A wraps inline content in a link mark with the given target.
func A(href string, args ...interface{}) []*model.Node {
	return mark("link", map[string]interface{}{"href": href})(args...)
}
