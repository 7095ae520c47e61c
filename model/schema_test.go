package model_test

import (
	"testing"

	. "github.com/typeset-io/docmodel/model"
	"github.com/stretchr/testify/assert"
)

func TestSchemaCompilation(t *testing.T) {
	// every spec entry gets a compiled type
	for _, ns := range schema.Spec.Nodes {
		assert.Contains(t, schema.Nodes, ns.Key)
	}
	for _, ms := range schema.Spec.Marks {
		assert.Contains(t, schema.Marks, ms.Key)
	}

	// compiled types point back at their schema
	assert.Equal(t, schema, schema.Nodes["paragraph"].Schema)
	assert.Equal(t, schema, schema.Marks["em"].Schema)

	// the top node is the first registered node type
	assert.Equal(t, schema.Nodes["doc"], schema.TopNodeType())

	// mark ranks follow registration order
	assert.Less(t, schema.Marks["link"].Rank, schema.Marks["em"].Rank)
	assert.Less(t, schema.Marks["em"].Rank, schema.Marks["strong"].Rank)
	assert.Less(t, schema.Marks["strong"].Rank, schema.Marks["code"].Rank)
}

func TestSchemaErrors(t *testing.T) {
	mustFail := func(spec *SchemaSpec) {
		s, err := NewSchema(spec)
		assert.Nil(t, s)
		assert.Error(t, err)
	}

	// rejects a duplicate node name
	mustFail(&SchemaSpec{Nodes: []*NodeSpec{
		{Key: "doc", Content: "text*"},
		{Key: "text"},
		{Key: "text"},
	}})

	// rejects a name shared between a node and a mark
	mustFail(&SchemaSpec{
		Nodes: []*NodeSpec{
			{Key: "doc", Content: "text*"},
			{Key: "text"},
		},
		Marks: []*MarkSpec{{Key: "doc"}},
	})

	// rejects a text type with attributes
	mustFail(&SchemaSpec{Nodes: []*NodeSpec{
		{Key: "doc", Content: "text*"},
		{Key: "text", Attrs: idAttrs},
	}})

	// rejects a content expression referencing an unknown name
	mustFail(&SchemaSpec{Nodes: []*NodeSpec{
		{Key: "doc", Content: "chapter+"},
		{Key: "text"},
	}})

	// rejects an excludes clause naming an unknown mark
	mustFail(&SchemaSpec{
		Nodes: []*NodeSpec{
			{Key: "doc", Content: "text*"},
			{Key: "text"},
		},
		Marks: []*MarkSpec{{Key: "em", Excludes: &emGroup}},
	})
}

func TestSchemaNodeCreation(t *testing.T) {
	// fills in default attributes
	node, err := schema.Node("heading", nil, []*Node{schema.Text("x")}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, node.Attrs["level"])

	// keeps given attributes
	node, err = schema.Node("heading", map[string]interface{}{"level": 2}, []*Node{schema.Text("x")}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, node.Attrs["level"])

	// complains about a missing required attribute
	_, err = schema.Node("image", nil, nil, nil)
	assert.Error(t, err)
	assert.IsType(t, &SchemaError{}, err)

	// fills optional attributes of a leaf with their defaults
	node, err = schema.Node("image", map[string]interface{}{"src": "img.png"}, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, "img.png", node.Attrs["src"])
	assert.Contains(t, node.Attrs, "alt")
	assert.Nil(t, node.Attrs["alt"])

	// complains about an unknown node type
	_, err = schema.Node("chapter", nil, nil, nil)
	assert.Error(t, err)
	assert.IsType(t, &UnknownTypeError{}, err)

	// refuses to create a text node through Create
	_, err = schema.Node("text", nil, nil, nil)
	assert.Error(t, err)
}

func TestSchemaCreateChecked(t *testing.T) {
	// accepts valid content
	node, err := schema.Nodes["doc"].CreateChecked(nil, []*Node{p("hi")}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, node.ChildCount())

	// rejects content that doesn't fit
	_, err = schema.Nodes["doc"].CreateChecked(nil, []*Node{schema.Text("loose")}, nil)
	assert.Error(t, err)
	assert.IsType(t, &ContentModelError{}, err)

	// rejects incomplete content
	_, err = schema.Nodes["doc"].CreateChecked(nil, nil, nil)
	assert.Error(t, err)
}

func TestSchemaTypesInGroup(t *testing.T) {
	names := func(types []*NodeType) []string {
		var out []string
		for _, typ := range types {
			out = append(out, typ.Name)
		}
		return out
	}

	// returns block members in registration order
	assert.Equal(t,
		[]string{"paragraph", "blockquote", "horizontal_rule", "heading", "code_block"},
		names(schema.TypesInGroup("block")))

	// returns inline members in registration order
	assert.Equal(t,
		[]string{"text", "image", "hard_break"},
		names(schema.TypesInGroup("inline")))

	// returns nothing for an unknown group
	assert.Empty(t, schema.TypesInGroup("chapter"))
}

func TestNodeTypePredicates(t *testing.T) {
	// text is inline and a leaf
	text := schema.Nodes["text"]
	assert.True(t, text.IsText())
	assert.True(t, text.IsInline())
	assert.True(t, text.IsLeaf())
	assert.False(t, text.IsBlock())

	// paragraph is a textblock
	paragraph := schema.Nodes["paragraph"]
	assert.True(t, paragraph.IsBlock())
	assert.True(t, paragraph.IsTextblock())
	assert.True(t, paragraph.InlineContent)
	assert.False(t, paragraph.IsLeaf())

	// horizontal_rule is a block leaf
	rule := schema.Nodes["horizontal_rule"]
	assert.True(t, rule.IsBlock())
	assert.True(t, rule.IsLeaf())
	assert.False(t, rule.IsTextblock())

	// image has a required attribute
	assert.True(t, schema.Nodes["image"].HasRequiredAttrs())
	assert.False(t, schema.Nodes["heading"].HasRequiredAttrs())
}

func TestNodeTypeAllowsMarks(t *testing.T) {
	paragraph := schema.Nodes["paragraph"]
	codeBlock := schema.Nodes["code_block"]
	heading := schema.Nodes["heading"]

	// textblocks allow marks by default
	assert.True(t, paragraph.AllowsMarkType(schema.Marks["em"]))
	assert.True(t, heading.AllowsMarkType(schema.Marks["link"]))

	// a type with an empty marks spec allows none
	assert.False(t, codeBlock.AllowsMarkType(schema.Marks["em"]))
	assert.False(t, codeBlock.AllowsMarks([]*Mark{em2}))
	assert.True(t, codeBlock.AllowsMarks(nil))

	// AllowedMarks filters a set down to what fits
	assert.Empty(t, codeBlock.AllowedMarks([]*Mark{em2, strong2}))
	assert.Equal(t, []*Mark{em2, strong2}, paragraph.AllowedMarks([]*Mark{em2, strong2}))
}

func TestMarkTypeInclusive(t *testing.T) {
	// marks are inclusive unless the spec opts out
	assert.True(t, schema.Marks["em"].Inclusive())
	assert.True(t, schema.Marks["strong"].Inclusive())
	assert.False(t, schema.Marks["link"].Inclusive())

	// spanning follows inclusive when not set
	assert.True(t, schema.Marks["em"].Spanning())
	assert.False(t, schema.Marks["link"].Spanning())
}
