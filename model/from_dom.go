package model

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// A ParseRule defines the way to recognize one kind of DOM element (or
// inline style declaration) and turn it into a node or mark of a given
// type. Rules are attached to NodeSpec/MarkSpec ParseDOM slices and
// gathered by DOMParserFromSchema, which fills in Node/Mark with the
// owning type's name.
type ParseRule struct {
	// Tag describes the element this rule matches: a lower-case tag
	// name, optionally followed by an attribute requirement such as
	// "a[href]" or "img[src=logo.png]". Mutually exclusive with Style.
	Tag string

	// Style matches an inline CSS declaration instead of an element: a
	// property name, optionally with a required value ("font-style" or
	// "font-style=italic"). Style rules can only produce marks.
	Style string

	// Priority determines the order in which rules are tried. Rules with
	// higher priority come first, ties keep declaration order (node
	// rules before mark rules). Zero means the default of 50.
	Priority int

	// Ignore drops the matched element and its whole subtree.
	Ignore bool

	// PreserveWhitespace keeps whitespace inside the matched element
	// exactly as it appears, instead of collapsing it.
	PreserveWhitespace bool

	// Node is the name of the node type this rule produces.
	Node string

	// Mark is the name of the mark type this rule produces.
	Mark string

	// Attrs are fixed attributes for the produced node or mark, used
	// when GetAttrs is not set.
	Attrs map[string]interface{}

	// GetAttrs extracts attributes from the matched element. Returning
	// false vetoes the match, making the parser continue with the next
	// rule in line.
	GetAttrs func(dom *html.Node) (map[string]interface{}, bool)

	// GetStyleAttrs is the extractor for style rules. It is given the
	// property value and may veto in the same way.
	GetStyleAttrs func(value string) (map[string]interface{}, bool)
}

type parsedRule struct {
	*ParseRule
	tagName    string
	attrName   string
	attrValue  string
	styleName  string
	styleValue string
	nodeType   *NodeType
	markType   *MarkType
}

// Elements whose content means nothing to a document and is dropped
// entirely, subtree included.
var ignoredTags = map[string]bool{
	"head": true, "noscript": true, "object": true, "script": true,
	"style": true, "title": true, "meta": true, "link": true, "base": true,
}

var selectorRegexp = regexp.MustCompile(`^([a-zA-Z][-\w]*)(?:\[([-\w]+)(?:=([^\]]*))?\])?$`)

// A DOMParser turns DOM trees, represented as x/net/html nodes, into
// document nodes conforming to a schema. It is immutable once built and
// safe for concurrent use.
type DOMParser struct {
	schema *Schema
	tags   []*parsedRule
	styles []*parsedRule
}

// NewDOMParser creates a parser that targets the given schema, using the
// given set of parse rules, in order of decreasing priority.
func NewDOMParser(schema *Schema, rules []*ParseRule) (*DOMParser, error) {
	parser := &DOMParser{schema: schema}
	var all []*parsedRule
	for _, rule := range rules {
		compiled, err := compileRule(schema, rule)
		if err != nil {
			return nil, err
		}
		all = append(all, compiled)
	}
	stableSortByPriority(all)
	for _, rule := range all {
		if rule.styleName != "" {
			parser.styles = append(parser.styles, rule)
		} else {
			parser.tags = append(parser.tags, rule)
		}
	}
	return parser, nil
}

// DOMParserFromSchema gathers the parse rules listed in the schema's node
// and mark specs, node specs first, each in declaration order.
func DOMParserFromSchema(schema *Schema) (*DOMParser, error) {
	var rules []*ParseRule
	for _, ns := range schema.Spec.Nodes {
		for _, rule := range ns.ParseDOM {
			bound := *rule
			if bound.Node == "" && bound.Mark == "" && !bound.Ignore {
				bound.Node = ns.Key
			}
			rules = append(rules, &bound)
		}
	}
	for _, ms := range schema.Spec.Marks {
		for _, rule := range ms.ParseDOM {
			bound := *rule
			if bound.Node == "" && bound.Mark == "" && !bound.Ignore {
				bound.Mark = ms.Key
			}
			rules = append(rules, &bound)
		}
	}
	return NewDOMParser(schema, rules)
}

func compileRule(schema *Schema, rule *ParseRule) (*parsedRule, error) {
	compiled := &parsedRule{ParseRule: rule}
	switch {
	case rule.Tag != "" && rule.Style != "":
		return nil, &SchemaError{Msg: fmt.Sprintf("parse rule with both tag %q and style %q", rule.Tag, rule.Style)}
	case rule.Tag != "":
		m := selectorRegexp.FindStringSubmatch(rule.Tag)
		if m == nil {
			return nil, &SchemaError{Msg: fmt.Sprintf("unsupported parse rule selector %q", rule.Tag)}
		}
		compiled.tagName, compiled.attrName, compiled.attrValue = m[1], m[2], m[3]
	case rule.Style != "":
		if rule.Node != "" {
			return nil, &SchemaError{Name: rule.Node, Msg: "style parse rules can only produce marks"}
		}
		parts := strings.SplitN(rule.Style, "=", 2)
		compiled.styleName = parts[0]
		if len(parts) > 1 {
			compiled.styleValue = parts[1]
		}
	default:
		return nil, &SchemaError{Msg: "parse rule without tag or style matcher"}
	}
	if rule.Node != "" {
		nt, err := schema.NodeType(rule.Node)
		if err != nil {
			return nil, err
		}
		compiled.nodeType = nt
	}
	if rule.Mark != "" {
		mt, err := schema.MarkType(rule.Mark)
		if err != nil {
			return nil, err
		}
		compiled.markType = mt
	}
	return compiled, nil
}

func stableSortByPriority(rules []*parsedRule) {
	// insertion sort keeps declaration order between equal priorities
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && priority(rules[j]) > priority(rules[j-1]); j-- {
			rules[j], rules[j-1] = rules[j-1], rules[j]
		}
	}
}

func priority(rule *parsedRule) int {
	if rule.Priority == 0 {
		return 50
	}
	return rule.Priority
}

// ParseOptions configure a single parse invocation.
type ParseOptions struct {
	// TopNode overrides the type of the node to parse into, which
	// defaults to the schema's top node type.
	TopNode *NodeType
	// PreserveWhitespace keeps whitespace verbatim for the whole parse.
	PreserveWhitespace bool
}

// Parse converts the content of the given DOM node into a document rooted
// in the top node type. Content that violates a content expression is
// reported as a *ContentModelError; deciding on a repair (wrapping,
// dropping) is left to the caller.
func (p *DOMParser) Parse(dom *html.Node, options ...*ParseOptions) (*Node, error) {
	opts := &ParseOptions{}
	if len(options) > 0 && options[0] != nil {
		opts = options[0]
	}
	topType := opts.TopNode
	if topType == nil {
		topType = p.schema.TopNodeType()
	}
	ctx := &parseContext{
		parser: p,
		open: []*nodeContext{{
			typ:        topType,
			match:      topType.ContentMatch,
			preserveWS: opts.PreserveWhitespace,
		}},
	}
	if err := ctx.addAll(dom, NoMarks); err != nil {
		return nil, err
	}
	top := ctx.open[0]
	if top.match != nil && !top.match.ValidEnd {
		return nil, &ContentModelError{Parent: topType.Name, Child: "end of content", Index: len(top.content)}
	}
	return NewNode(topType, topType.DefaultAttrs, NewFragment(top.content), nil), nil
}

// ParseHTML parses an HTML fragment string, as it would appear inside a
// body element, into a document.
func (p *DOMParser) ParseHTML(source string, options ...*ParseOptions) (*Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(source), body)
	if err != nil {
		return nil, err
	}
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, node := range nodes {
		container.AppendChild(node)
	}
	return p.Parse(container, options...)
}

type parseContext struct {
	parser *DOMParser
	open   []*nodeContext
}

type nodeContext struct {
	typ        *NodeType
	attrs      map[string]interface{}
	content    []*Node
	match      *ContentMatch
	preserveWS bool
}

func (ctx *parseContext) top() *nodeContext {
	return ctx.open[len(ctx.open)-1]
}

func (ctx *parseContext) addAll(parent *html.Node, marks []*Mark) error {
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		if err := ctx.addDOM(child, marks); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *parseContext) addDOM(dom *html.Node, marks []*Mark) error {
	switch dom.Type {
	case html.TextNode:
		return ctx.addTextNode(dom, marks)
	case html.ElementNode:
		return ctx.addElement(dom, marks)
	default:
		// comments, doctypes
		return nil
	}
}

func (ctx *parseContext) addElement(dom *html.Node, marks []*Mark) error {
	name := strings.ToLower(dom.Data)
	if ignoredTags[name] {
		return nil
	}

	var err error
	marks, err = ctx.readStyles(dom, marks)
	if err != nil {
		return err
	}

	rule, attrs := ctx.parser.matchTag(dom, ctx.top())
	switch {
	case rule == nil:
		// unknown wrapper, its children still count
		return ctx.addAll(dom, marks)
	case rule.Ignore:
		return nil
	case rule.markType != nil:
		mark, err := rule.markType.Create(attrs)
		if err != nil {
			return err
		}
		return ctx.addAll(dom, mark.AddToSet(marks))
	default:
		return ctx.addElementByRule(dom, rule, attrs, marks)
	}
}

func (ctx *parseContext) addElementByRule(dom *html.Node, rule *parsedRule, attrs map[string]interface{}, marks []*Mark) error {
	typ := rule.nodeType
	computed, err := computeAttrs(typ.Name, typ.Attrs, attrs)
	if err != nil {
		return err
	}
	if typ.IsLeaf() {
		node := NewNode(typ, computed, nil, nil)
		if typ.IsInline() {
			node = node.Mark(typ.AllowedMarks(marks))
		}
		return ctx.insertNode(node)
	}

	ctx.open = append(ctx.open, &nodeContext{
		typ:        typ,
		attrs:      computed,
		match:      typ.ContentMatch,
		preserveWS: ctx.top().preserveWS || rule.PreserveWhitespace,
	})
	if err := ctx.addAll(dom, marks); err != nil {
		return err
	}
	closed := ctx.top()
	ctx.open = ctx.open[:len(ctx.open)-1]
	if closed.match != nil && !closed.match.ValidEnd {
		return &ContentModelError{Parent: closed.typ.Name, Child: "end of content", Index: len(closed.content)}
	}
	return ctx.insertNode(NewNode(closed.typ, closed.attrs, NewFragment(closed.content), nil))
}

var whitespaceRegexp = regexp.MustCompile(`\s+`)

func (ctx *parseContext) addTextNode(dom *html.Node, marks []*Mark) error {
	value := dom.Data
	top := ctx.top()
	if !top.preserveWS {
		value = whitespaceRegexp.ReplaceAllString(value, " ")
		if strings.TrimSpace(value) == "" && !top.typ.InlineContent {
			return nil
		}
		if len(top.content) == 0 {
			// leading whitespace at the start of a textblock
			value = strings.TrimPrefix(value, " ")
		}
	}
	if value == "" {
		return nil
	}
	textType, ok := ctx.parser.schema.Nodes["text"]
	if !ok {
		return &UnknownTypeError{Kind: "node", Name: "text"}
	}

	set := top.typ.AllowedMarks(marks)
	if last := len(top.content) - 1; last >= 0 {
		prev := top.content[last]
		if prev.IsText() && SameMarkSet(prev.Marks, set) {
			top.content[last] = prev.WithText(*prev.Text + value)
			return nil
		}
	}
	return ctx.insertNode(NewTextNode(textType, nil, value, set))
}

func (ctx *parseContext) insertNode(node *Node) error {
	top := ctx.top()
	if top.match != nil {
		next := top.match.MatchType(node.Type)
		if next == nil {
			return &ContentModelError{
				Parent: top.typ.Name,
				Child:  node.Type.Name,
				Index:  len(top.content),
			}
		}
		top.match = next
	}
	top.content = append(top.content, node)
	return nil
}

// Scan the element's inline style declarations against the style rules,
// accumulating marks. A veto from a rule's extractor just moves on to the
// next rule.
func (ctx *parseContext) readStyles(dom *html.Node, marks []*Mark) ([]*Mark, error) {
	if len(ctx.parser.styles) == 0 {
		return marks, nil
	}
	styleAttr, ok := Attr(dom, "style")
	if !ok || styleAttr == "" {
		return marks, nil
	}
	styles := parseStyleAttr(styleAttr)
	if len(styles) == 0 {
		return marks, nil
	}
	for _, rule := range ctx.parser.styles {
		value, ok := styles[rule.styleName]
		if !ok {
			continue
		}
		if rule.styleValue != "" && rule.styleValue != value {
			continue
		}
		if !ctx.top().typ.AllowsMarkType(rule.markType) {
			continue
		}
		attrs := rule.Attrs
		if rule.GetStyleAttrs != nil {
			extracted, ok := rule.GetStyleAttrs(value)
			if !ok {
				continue
			}
			attrs = extracted
		}
		mark, err := rule.markType.Create(attrs)
		if err != nil {
			return nil, err
		}
		marks = mark.AddToSet(marks)
	}
	return marks, nil
}

func (p *DOMParser) matchTag(dom *html.Node, top *nodeContext) (*parsedRule, map[string]interface{}) {
	for _, rule := range p.tags {
		if !tagMatches(rule, dom) {
			continue
		}
		if rule.markType != nil && !top.typ.AllowsMarkType(rule.markType) {
			continue
		}
		attrs := rule.Attrs
		if rule.GetAttrs != nil {
			extracted, ok := rule.GetAttrs(dom)
			if !ok {
				continue // veto, keep scanning
			}
			attrs = extracted
		}
		return rule, attrs
	}
	return nil, nil
}

func tagMatches(rule *parsedRule, dom *html.Node) bool {
	if strings.ToLower(dom.Data) != rule.tagName {
		return false
	}
	if rule.attrName == "" {
		return true
	}
	value, ok := Attr(dom, rule.attrName)
	if !ok {
		return false
	}
	return rule.attrValue == "" || rule.attrValue == value
}

// Attr looks up an attribute on a DOM element.
func Attr(dom *html.Node, name string) (string, bool) {
	for _, a := range dom.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// StyleProp extracts a single property from an inline style attribute
// value.
func StyleProp(style, name string) (string, bool) {
	value, ok := parseStyleAttr(style)[name]
	return value, ok
}

// Break an inline style attribute into property/value pairs.
func parseStyleAttr(style string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(style, ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if key != "" && value != "" {
			result[key] = value
		}
	}
	return result
}
