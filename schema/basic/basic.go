// Package basic defines a basic document schema, whose elements can be
// reused in other schemas.
package basic

import (
	"fmt"
	"regexp"

	"golang.org/x/net/html"

	"github.com/typeset-io/docmodel/model"
)

var (
	empty = ""
	falsy = false

	headingAttrs = map[string]*model.AttributeSpec{
		"level": {Default: 1},
	}
	imageAttrs = map[string]*model.AttributeSpec{
		"src":   {Required: true},
		"alt":   {Default: nil},
		"title": {Default: nil},
	}
	linkAttrs = map[string]*model.AttributeSpec{
		"href":  {Required: true},
		"title": {Default: nil},
	}
)

// The accepted numeric font weights, beside the bold keywords. Weights of
// 500 and up count as strong; this threshold is a fixed policy, inherited
// from the rule set this schema is based on.
var fontWeightRegexp = regexp.MustCompile(`^(bold(er)?|[5-9]\d{2,})$`)

func level(node *model.Node) int {
	if l, ok := node.Attrs["level"].(int); ok {
		return l
	}
	return 1
}

func stringOrNil(attrs map[string]string, key string, value interface{}) {
	if s, ok := value.(string); ok {
		attrs[key] = s
	}
}

func headingRule(l int) *model.ParseRule {
	return &model.ParseRule{
		Tag:   fmt.Sprintf("h%d", l),
		Attrs: map[string]interface{}{"level": l},
	}
}

// Nodes are the specs for the nodes defined in this schema.
var Nodes = []*model.NodeSpec{
	// The top level document node.
	{Key: "doc", Content: "block+"},

	// A plain paragraph textblock. Represented in the DOM as a <p>
	// element.
	{
		Key: "paragraph", Content: "inline*", Group: "block",
		ParseDOM: []*model.ParseRule{{Tag: "p"}},
		ToDOM: func(_ *model.Node) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{Tag: "p", Hole: true}
		},
	},

	// A blockquote (<blockquote>) wrapping one or more blocks.
	{
		Key: "blockquote", Content: "block+", Group: "block", Defining: true,
		ParseDOM: []*model.ParseRule{{Tag: "blockquote"}},
		ToDOM: func(_ *model.Node) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{Tag: "blockquote", Hole: true}
		},
	},

	// A horizontal rule (<hr>).
	{
		Key: "horizontal_rule", Group: "block",
		ParseDOM: []*model.ParseRule{{Tag: "hr"}},
		ToDOM: func(_ *model.Node) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{Tag: "hr"}
		},
	},

	// A heading textblock, with a level attribute that should hold the
	// number 1 to 6. Parsed and serialized as <h1> to <h6> elements.
	{
		Key: "heading", Content: "inline*", Group: "block", Attrs: headingAttrs,
		Defining: true,
		ParseDOM: []*model.ParseRule{
			headingRule(1), headingRule(2), headingRule(3),
			headingRule(4), headingRule(5), headingRule(6),
		},
		ToDOM: func(node *model.Node) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{Tag: fmt.Sprintf("h%d", level(node)), Hole: true}
		},
	},

	// A code listing. Disallows marks or non-text inline nodes by
	// default. Represented as a <pre> element with a <code> element
	// inside of it.
	{
		Key: "code_block", Content: "text*", Marks: &empty, Group: "block",
		Code: true, Defining: true,
		ParseDOM: []*model.ParseRule{{Tag: "pre", PreserveWhitespace: true}},
		ToDOM: func(_ *model.Node) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{
				Tag:      "pre",
				Children: []*model.DOMOutputSpec{{Tag: "code", Hole: true}},
			}
		},
	},

	// The text node.
	{Key: "text", Group: "inline"},

	// An inline image (<img>) node. src is required, alt and title
	// default to null.
	{
		Key: "image", Group: "inline", Inline: true, Attrs: imageAttrs,
		Draggable: true,
		ParseDOM: []*model.ParseRule{{
			Tag: "img[src]",
			GetAttrs: func(dom *html.Node) (map[string]interface{}, bool) {
				attrs := map[string]interface{}{}
				if src, ok := model.Attr(dom, "src"); ok {
					attrs["src"] = src
				}
				if alt, ok := model.Attr(dom, "alt"); ok {
					attrs["alt"] = alt
				}
				if title, ok := model.Attr(dom, "title"); ok {
					attrs["title"] = title
				}
				return attrs, true
			},
		}},
		ToDOM: func(node *model.Node) *model.DOMOutputSpec {
			attrs := map[string]string{}
			stringOrNil(attrs, "src", node.Attrs["src"])
			stringOrNil(attrs, "alt", node.Attrs["alt"])
			stringOrNil(attrs, "title", node.Attrs["title"])
			return &model.DOMOutputSpec{Tag: "img", Attrs: attrs}
		},
	},

	// A hard line break, represented in the DOM as <br>.
	{
		Key: "hard_break", Group: "inline", Inline: true, Selectable: &falsy,
		ParseDOM: []*model.ParseRule{{Tag: "br"}},
		ToDOM: func(_ *model.Node) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{Tag: "br"}
		},
	},
}

// Marks are the specs for the marks in the schema.
var Marks = []*model.MarkSpec{
	// A link. Has href and title attributes, title defaults to null.
	// Rendered and parsed as an <a> element.
	{
		Key: "link", Attrs: linkAttrs, Inclusive: &falsy,
		ParseDOM: []*model.ParseRule{{
			Tag: "a[href]",
			GetAttrs: func(dom *html.Node) (map[string]interface{}, bool) {
				attrs := map[string]interface{}{}
				if href, ok := model.Attr(dom, "href"); ok {
					attrs["href"] = href
				}
				if title, ok := model.Attr(dom, "title"); ok {
					attrs["title"] = title
				}
				return attrs, true
			},
		}},
		ToDOM: func(mark *model.Mark, _ bool) *model.DOMOutputSpec {
			attrs := map[string]string{}
			stringOrNil(attrs, "href", mark.Attrs["href"])
			stringOrNil(attrs, "title", mark.Attrs["title"])
			return &model.DOMOutputSpec{Tag: "a", Attrs: attrs, Hole: true}
		},
	},

	// An emphasis mark. Rendered as an <em> element. Has parse rules
	// that also match <i> and font-style: italic.
	{
		Key: "em",
		ParseDOM: []*model.ParseRule{
			{Tag: "i"},
			{Tag: "em"},
			{Style: "font-style=italic"},
		},
		ToDOM: func(_ *model.Mark, _ bool) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{Tag: "em", Hole: true}
		},
	},

	// A strong mark. Rendered as <strong>, parse rules also match <b>
	// (unless a style declares a normal font weight) and bold-enough
	// font-weight styles.
	{
		Key: "strong",
		ParseDOM: []*model.ParseRule{
			{Tag: "strong"},
			// Google Docs and friends produce <b> wrappers with a
			// normal font weight; the veto lets those fall through.
			{
				Tag: "b",
				GetAttrs: func(dom *html.Node) (map[string]interface{}, bool) {
					if style, ok := model.Attr(dom, "style"); ok {
						if weight, ok := model.StyleProp(style, "font-weight"); ok && weight == "normal" {
							return nil, false
						}
					}
					return nil, true
				},
			},
			{
				Style: "font-weight",
				GetStyleAttrs: func(value string) (map[string]interface{}, bool) {
					return nil, fontWeightRegexp.MatchString(value)
				},
			},
		},
		ToDOM: func(_ *model.Mark, _ bool) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{Tag: "strong", Hole: true}
		},
	},

	// Code font mark. Represented as a <code> element.
	{
		Key: "code",
		ParseDOM: []*model.ParseRule{{Tag: "code"}},
		ToDOM: func(_ *model.Mark, _ bool) *model.DOMOutputSpec {
			return &model.DOMOutputSpec{Tag: "code", Hole: true}
		},
	},
}

// Schema roughly corresponds to the document schema used by
// [CommonMark](http://commonmark.org/), minus the list elements.
//
// To reuse elements from this schema, extend or read from its Spec.Nodes
// and Spec.Marks properties.
var Schema = mustSchema()

func mustSchema() *model.Schema {
	schema, err := model.NewSchema(&model.SchemaSpec{
		Nodes: Nodes,
		Marks: Marks,
	})
	if err != nil {
		panic(err)
	}
	return schema
}
