package model

import (
	"strconv"
	"strings"
)

// An AttributeSpec declares a single attribute on a node or mark type.
// Required attributes must be supplied on every create or parse; the
// others fall back to Default (which may be nil) whenever a value is
// absent.
type AttributeSpec struct {
	Default  interface{} `json:"default,omitempty"`
	Required bool        `json:"required,omitempty"`
}

// NodeSpec describes a node type: its content expression, group
// memberships, attributes, structural flags, and the rules for converting
// it from and to the external DOM-shaped tree.
type NodeSpec struct {
	// Key is the name the node type is registered under in the schema.
	Key string `json:"-"`

	// The content expression for this node, as described in the guide.
	// When not given, the node does not allow any content.
	Content string `json:"content,omitempty"`

	// The marks that are allowed inside of this node. May be a
	// space-separated string referring to mark names or groups, "" to
	// explicitly allow no marks, or nil to allow all marks for nodes
	// with inline content and none otherwise.
	Marks *string `json:"marks,omitempty"`

	// The group or space-separated groups to which this node belongs,
	// usable in content expressions.
	Group string `json:"group,omitempty"`

	// Should be set to true for inline nodes. (Implied for text nodes.)
	Inline bool `json:"inline,omitempty"`

	// The attributes that nodes of this type get.
	Attrs map[string]*AttributeSpec `json:"attrs,omitempty"`

	// Controls whether nodes of this type can be selected as a node
	// selection. Defaults to true for non-text nodes.
	Selectable *bool `json:"selectable,omitempty"`

	// Determines whether nodes of this type can be dragged without being
	// selected. Defaults to false.
	Draggable bool `json:"draggable,omitempty"`

	// Can be used to indicate that this node contains code, which causes
	// some commands and parsing behavior to change.
	Code bool `json:"code,omitempty"`

	// Determines whether this node is considered an important parent node
	// during replace operations, meaning its boundary resists merging.
	Defining bool `json:"defining,omitempty"`

	// The DOM parse rules associated with this node, highest-priority
	// first within the slice.
	ParseDOM []*ParseRule `json:"-"`

	// ToDOM is the pure serialization function for this node type. It
	// must not mutate anything, and must produce at most one content
	// hole (none for leaf nodes).
	ToDOM func(node *Node) *DOMOutputSpec `json:"-"`

	// Defines the default way a node of this type should be serialized
	// to a string representation for debugging (e.g. in error messages).
	ToDebugString func(node *Node) string `json:"-"`
}

// MarkSpec describes a mark type.
type MarkSpec struct {
	// Key is the name the mark type is registered under in the schema.
	Key string `json:"-"`

	// The attributes that marks of this type get.
	Attrs map[string]*AttributeSpec `json:"attrs,omitempty"`

	// Whether this mark should be active when the cursor is positioned
	// at its end (or at its start when that is also the start of the
	// parent node). Defaults to true.
	Inclusive *bool `json:"inclusive,omitempty"`

	// Determines which other marks this mark can coexist with. Should be
	// a space-separated string naming other marks or groups of marks.
	// When a mark is added to a set, all marks that it excludes are
	// removed in the process. Defaults to only being exclusive with
	// marks of the same type. "" allows multiple marks of the same type
	// in a set (as long as they have different attributes). "_" excludes
	// all marks.
	Excludes *string `json:"excludes,omitempty"`

	// The group or space-separated groups to which this mark belongs.
	Group string `json:"group,omitempty"`

	// Determines whether marks of this type can span multiple adjacent
	// nodes when serialized to the DOM. Defaults to the mark being
	// inclusive.
	Spanning *bool `json:"spanning,omitempty"`

	// The DOM parse rules associated with this mark.
	ParseDOM []*ParseRule `json:"-"`

	// ToDOM is the pure serialization function for this mark type. The
	// second argument tells it whether the mark's content is inline.
	ToDOM func(mark *Mark, inline bool) *DOMOutputSpec `json:"-"`
}

// SchemaSpec is the object given to NewSchema. Both slices determine the
// registration order of their types, which is also their precedence order
// when several rules or group members could apply.
type SchemaSpec struct {
	Nodes []*NodeSpec `json:"nodes"`
	Marks []*MarkSpec `json:"marks"`
}

// An Attribute is the compiled form of an AttributeSpec.
type Attribute struct {
	Default  interface{}
	Required bool
}

// NodeType objects are allocated once per Schema and are used to tag Node
// instances. They contain information about the node type, such as its
// name and what kind of node it represents.
type NodeType struct {
	// The name the node type has in this schema.
	Name string
	// A link back to the Schema the node type belongs to.
	Schema *Schema
	// The spec that this type is based on.
	Spec *NodeSpec
	// The set of group names this type belongs to.
	Groups []string
	// The compiled attributes for this type.
	Attrs map[string]*Attribute
	// The default attributes, or nil when any attribute is required.
	DefaultAttrs map[string]interface{}
	// The starting match of the node type's content expression.
	ContentMatch *ContentMatch
	// True when this node type's content is inline.
	InlineContent bool

	markSet       []*MarkType
	allowsAll     bool
	isBlock       bool
	isText        bool
}

// IsText reports whether this is the text node type.
func (nt *NodeType) IsText() bool { return nt.isText }

// IsBlock reports whether this is a block type.
func (nt *NodeType) IsBlock() bool { return nt.isBlock }

// IsInline reports whether this is an inline type.
func (nt *NodeType) IsInline() bool { return !nt.isBlock }

// IsTextblock reports whether this is a block type with inline content.
func (nt *NodeType) IsTextblock() bool { return nt.isBlock && nt.InlineContent }

// IsLeaf reports whether nodes of this type allow no content.
func (nt *NodeType) IsLeaf() bool { return nt.ContentMatch == EmptyContentMatch }

// HasRequiredAttrs reports whether this type has any required attributes.
func (nt *NodeType) HasRequiredAttrs() bool {
	for _, attr := range nt.Attrs {
		if attr.Required {
			return true
		}
	}
	return false
}

// Fill in the declared defaults for any attribute missing from the given
// map. A missing required attribute is an error.
func computeAttrs(name string, attrs map[string]*Attribute, given map[string]interface{}) (map[string]interface{}, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	built := make(map[string]interface{}, len(attrs))
	for key, attr := range attrs {
		if value, ok := given[key]; ok {
			built[key] = value
			continue
		}
		if attr.Required {
			return nil, &SchemaError{Name: name, Msg: "no value supplied for required attribute " + key}
		}
		built[key] = attr.Default
	}
	return built, nil
}

// Create a Node of this type. The given attributes are checked and filled
// in with defaults, content may be a Fragment, a Node, a slice of nodes,
// or nil. The content is not validated; use CreateChecked for that.
func (nt *NodeType) Create(attrs map[string]interface{}, content interface{}, marks []*Mark) (*Node, error) {
	if nt.isText {
		return nil, &SchemaError{Name: nt.Name, Msg: "NodeType.Create cannot construct text nodes"}
	}
	built, err := computeAttrs(nt.Name, nt.Attrs, attrs)
	if err != nil {
		return nil, err
	}
	return NewNode(nt, built, FragmentFrom(content), MarkSetFrom(marks)), nil
}

// CreateChecked is like Create, but checks the given content against the
// node type's content expression and allowed marks, returning a
// *ContentModelError when it does not match.
func (nt *NodeType) CreateChecked(attrs map[string]interface{}, content interface{}, marks []*Mark) (*Node, error) {
	fragment := FragmentFrom(content)
	if err := nt.CheckContent(fragment); err != nil {
		return nil, err
	}
	return nt.Create(attrs, fragment, marks)
}

// ValidContent reports whether the given fragment is valid content for
// this node type.
func (nt *NodeType) ValidContent(content *Fragment) bool {
	result := nt.ContentMatch.MatchFragment(content)
	if result == nil || !result.ValidEnd {
		return false
	}
	for _, child := range content.Content {
		for _, mark := range child.Marks {
			if !nt.AllowsMarkType(mark.Type) {
				return false
			}
		}
	}
	return true
}

// CheckContent returns a *ContentModelError describing the first offending
// child when the given fragment is not valid content for this node type.
func (nt *NodeType) CheckContent(content *Fragment) error {
	match := nt.ContentMatch
	for i, child := range content.Content {
		next := match.MatchType(child.Type)
		if next == nil {
			return &ContentModelError{Parent: nt.Name, Child: child.Type.Name, Index: i}
		}
		for _, mark := range child.Marks {
			if !nt.AllowsMarkType(mark.Type) {
				return &ContentModelError{Parent: nt.Name, Child: mark.Type.Name + " mark", Index: i}
			}
		}
		match = next
	}
	if !match.ValidEnd {
		return &ContentModelError{Parent: nt.Name, Child: "end of content", Index: content.ChildCount()}
	}
	return nil
}

// AllowsMarkType reports whether the given mark type is allowed in this
// node.
func (nt *NodeType) AllowsMarkType(markType *MarkType) bool {
	if nt.allowsAll {
		return true
	}
	for _, mt := range nt.markSet {
		if mt == markType {
			return true
		}
	}
	return false
}

// AllowsMarks reports whether the given set of marks are allowed in this
// node.
func (nt *NodeType) AllowsMarks(marks []*Mark) bool {
	for _, mark := range marks {
		if !nt.AllowsMarkType(mark.Type) {
			return false
		}
	}
	return true
}

// AllowedMarks removes the marks that are not allowed in this node from
// the given set.
func (nt *NodeType) AllowedMarks(marks []*Mark) []*Mark {
	if nt.allowsAll {
		return marks
	}
	var copied []*Mark
	for i, mark := range marks {
		if nt.AllowsMarkType(mark.Type) {
			if copied != nil {
				copied = append(copied, mark)
			}
		} else if copied == nil {
			copied = make([]*Mark, 0, len(marks)-1)
			copied = append(copied, marks[:i]...)
		}
	}
	if copied == nil {
		return marks
	}
	return MarkSetFrom(copied)
}

// Like nodes, marks (which are associated with nodes to signify things
// like emphasis or being part of a link) are tagged with type objects,
// which are instantiated once per Schema.
type MarkType struct {
	// The name of the mark type.
	Name string
	// The position of the type in the schema's registration order.
	Rank int
	// A link back to the Schema this mark type belongs to.
	Schema *Schema
	// The spec on which the type is based.
	Spec *MarkSpec
	// The set of group names this type belongs to.
	Groups []string
	// The compiled attributes for this type.
	Attrs map[string]*Attribute

	excluded []*MarkType
	instance *Mark
}

// Create a mark of this type. attrs may be nil, in which case the default
// attributes are used.
func (mt *MarkType) Create(attrs map[string]interface{}) (*Mark, error) {
	if len(attrs) == 0 && mt.instance != nil {
		return mt.instance, nil
	}
	built, err := computeAttrs(mt.Name, mt.Attrs, attrs)
	if err != nil {
		return nil, err
	}
	return &Mark{Type: mt, Attrs: built}, nil
}

// Excludes queries whether a given mark type is excluded by this one.
func (mt *MarkType) Excludes(other *MarkType) bool {
	for _, excl := range mt.excluded {
		if excl == other {
			return true
		}
	}
	return false
}

// Inclusive reports whether a span of this mark is extended when content
// is inserted directly at its boundary. Defaults to true.
func (mt *MarkType) Inclusive() bool {
	if mt.Spec.Inclusive != nil {
		return *mt.Spec.Inclusive
	}
	return true
}

// Spanning reports whether the DOM serializer may let a single rendered
// element of this mark span several adjacent inline nodes. Non-inclusive
// marks default to not spanning, so that a run boundary is visible in the
// output.
func (mt *MarkType) Spanning() bool {
	if mt.Spec.Spanning != nil {
		return *mt.Spec.Spanning
	}
	return mt.Inclusive()
}

// A Schema holds the node and mark types that are valid in a document,
// with the constraints that apply to them. It is built once and immutable
// afterwards, so it can be shared freely between goroutines.
type Schema struct {
	// The spec this schema is based on.
	Spec *SchemaSpec
	// The node types in this schema, by name.
	Nodes map[string]*NodeType
	// The mark types in this schema, by name.
	Marks map[string]*MarkType
}

// NewSchema compiles a schema spec into a usable Schema. It returns a
// *SchemaError or *GrammarError when the spec is invalid.
func NewSchema(spec *SchemaSpec) (*Schema, error) {
	schema := &Schema{
		Spec:  spec,
		Nodes: make(map[string]*NodeType, len(spec.Nodes)),
		Marks: make(map[string]*MarkType, len(spec.Marks)),
	}

	for _, ns := range spec.Nodes {
		if ns.Key == "" {
			return nil, &SchemaError{Msg: "node spec without a name"}
		}
		if _, ok := schema.Nodes[ns.Key]; ok {
			return nil, &SchemaError{Name: ns.Key, Msg: "duplicate type name"}
		}
		attrs, defaults, err := compileAttrs(ns.Key, ns.Attrs)
		if err != nil {
			return nil, err
		}
		nt := &NodeType{
			Name:         ns.Key,
			Schema:       schema,
			Spec:         ns,
			Groups:       splitNames(ns.Group),
			Attrs:        attrs,
			DefaultAttrs: defaults,
			isBlock:      !ns.Inline && ns.Key != "text",
			isText:       ns.Key == "text",
		}
		schema.Nodes[ns.Key] = nt
	}
	for rank, ms := range spec.Marks {
		if ms.Key == "" {
			return nil, &SchemaError{Msg: "mark spec without a name"}
		}
		if _, ok := schema.Nodes[ms.Key]; ok {
			return nil, &SchemaError{Name: ms.Key, Msg: "duplicate type name"}
		}
		if _, ok := schema.Marks[ms.Key]; ok {
			return nil, &SchemaError{Name: ms.Key, Msg: "duplicate type name"}
		}
		attrs, defaults, err := compileAttrs(ms.Key, ms.Attrs)
		if err != nil {
			return nil, err
		}
		mt := &MarkType{
			Name:   ms.Key,
			Rank:   rank,
			Schema: schema,
			Spec:   ms,
			Groups: splitNames(ms.Group),
			Attrs:  attrs,
		}
		if len(attrs) == 0 {
			mt.instance = &Mark{Type: mt}
		} else if defaults != nil {
			mt.instance = &Mark{Type: mt, Attrs: defaults}
		}
		schema.Marks[ms.Key] = mt
	}

	if text, ok := schema.Nodes["text"]; ok {
		if len(text.Attrs) > 0 {
			return nil, &SchemaError{Name: "text", Msg: "the text node type should not have attributes"}
		}
		if text.Spec.Content != "" {
			return nil, &SchemaError{Name: "text", Msg: "the text node type should not have content"}
		}
	}

	for _, ns := range spec.Nodes {
		nt := schema.Nodes[ns.Key]
		match, err := ParseContentMatch(ns.Content, schema.Nodes)
		if err != nil {
			return nil, err
		}
		nt.ContentMatch = match
		nt.InlineContent = match.inlineContent()
		if ns.Marks != nil {
			marks, err := schema.gatherMarks(ns.Key, *ns.Marks)
			if err != nil {
				return nil, err
			}
			nt.markSet = marks
		} else {
			nt.allowsAll = nt.InlineContent
		}
	}
	for _, ms := range spec.Marks {
		mt := schema.Marks[ms.Key]
		if ms.Excludes == nil {
			mt.excluded = []*MarkType{mt}
		} else {
			excluded, err := schema.gatherMarks(ms.Key, *ms.Excludes)
			if err != nil {
				return nil, err
			}
			mt.excluded = excluded
		}
	}

	return schema, nil
}

func compileAttrs(name string, specs map[string]*AttributeSpec) (map[string]*Attribute, map[string]interface{}, error) {
	if len(specs) == 0 {
		return nil, nil, nil
	}
	attrs := make(map[string]*Attribute, len(specs))
	defaults := make(map[string]interface{}, len(specs))
	for key, spec := range specs {
		if spec == nil {
			spec = &AttributeSpec{}
		}
		if spec.Required && spec.Default != nil {
			return nil, nil, &SchemaError{Name: name, Msg: "attribute " + key + " is required but has a default"}
		}
		attrs[key] = &Attribute{Default: spec.Default, Required: spec.Required}
		if spec.Required {
			defaults = nil
		}
		if defaults != nil {
			defaults[key] = spec.Default
		}
	}
	return attrs, defaults, nil
}

func splitNames(str string) []string {
	return strings.Fields(str)
}

// Resolve a space-separated string of mark names and group names against
// the registered mark types, in registration order. "_" stands for all
// marks, "" for no marks.
func (s *Schema) gatherMarks(forName, str string) ([]*MarkType, error) {
	found := []*MarkType{}
	for _, name := range strings.Fields(str) {
		if name == "_" {
			return s.marksInOrder(), nil
		}
		if mt, ok := s.Marks[name]; ok {
			found = append(found, mt)
			continue
		}
		matched := false
		for _, ms := range s.Spec.Marks {
			mt := s.Marks[ms.Key]
			for _, g := range mt.Groups {
				if g == name {
					found = append(found, mt)
					matched = true
					break
				}
			}
		}
		if !matched {
			return nil, &SchemaError{Name: forName, Msg: "unknown mark type or group " + strconv.Quote(name)}
		}
	}
	return found, nil
}

func (s *Schema) marksInOrder() []*MarkType {
	all := make([]*MarkType, 0, len(s.Marks))
	for _, ms := range s.Spec.Marks {
		all = append(all, s.Marks[ms.Key])
	}
	return all
}

// NodeType resolves a node type name. Referencing an unregistered name is
// a programmer error and yields an *UnknownTypeError.
func (s *Schema) NodeType(name string) (*NodeType, error) {
	if nt, ok := s.Nodes[name]; ok {
		return nt, nil
	}
	return nil, &UnknownTypeError{Kind: "node", Name: name}
}

// MarkType resolves a mark type name.
func (s *Schema) MarkType(name string) (*MarkType, error) {
	if mt, ok := s.Marks[name]; ok {
		return mt, nil
	}
	return nil, &UnknownTypeError{Kind: "mark", Name: name}
}

// TypesInGroup returns the node types belonging to the given group, in
// registration order. A type name is treated as a group of one.
func (s *Schema) TypesInGroup(name string) []*NodeType {
	var types []*NodeType
	for _, ns := range s.Spec.Nodes {
		nt := s.Nodes[ns.Key]
		if nt.Name == name {
			types = append(types, nt)
			continue
		}
		for _, g := range nt.Groups {
			if g == name {
				types = append(types, nt)
				break
			}
		}
	}
	return types
}

// TopNodeType returns the type of the schema's top-level node, the first
// registered node type.
func (s *Schema) TopNodeType() *NodeType {
	if len(s.Spec.Nodes) == 0 {
		return nil
	}
	return s.Nodes[s.Spec.Nodes[0].Key]
}

// Node creates a node in this schema. content may be a Fragment, a Node,
// a slice of nodes, or nil.
func (s *Schema) Node(typ string, attrs map[string]interface{}, content interface{}, marks []*Mark) (*Node, error) {
	nt, err := s.NodeType(typ)
	if err != nil {
		return nil, err
	}
	return nt.Create(attrs, content, marks)
}

// Text creates a text node in this schema.
func (s *Schema) Text(text string, marks ...[]*Mark) *Node {
	nt := s.Nodes["text"]
	if nt == nil {
		panic(&UnknownTypeError{Kind: "node", Name: "text"})
	}
	set := NoMarks
	if len(marks) > 0 {
		set = MarkSetFrom(marks[0])
	}
	return NewTextNode(nt, nil, text, set)
}

// Mark creates a mark in this schema. Referencing an unregistered name or
// omitting a required attribute is a programmer error and panics.
func (s *Schema) Mark(typ string, attrs ...map[string]interface{}) *Mark {
	mt, err := s.MarkType(typ)
	if err != nil {
		panic(err)
	}
	var given map[string]interface{}
	if len(attrs) > 0 {
		given = attrs[0]
	}
	mark, err := mt.Create(given)
	if err != nil {
		panic(err)
	}
	return mark
}
