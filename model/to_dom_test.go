package model_test

import (
	"bytes"
	"testing"

	. "github.com/typeset-io/docmodel/model"
	"github.com/typeset-io/docmodel/test/builder"
	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"
)

var serializer = DOMSerializerFromSchema(schema)

func roundTrip(t *testing.T, input *Node, expected string) {
	output, err := serializer.SerializeFragment(input.Content, nil)
	assert.NoError(t, err)
	buf := new(bytes.Buffer)
	assert.NoError(t, html.Render(buf, output))
	assert.Equal(t, expected, buf.String())

	parser, err := DOMParserFromSchema(schema)
	assert.NoError(t, err)
	parsed, err := parser.ParseHTML(expected)
	assert.NoError(t, err)
	assert.True(t, parsed.Eq(input), "%s != %s\n", parsed.String(), input.String())
}

func TestDOMSerializer(t *testing.T) {
	// represents a simple node
	roundTrip(t, doc(p("hello")), "<p>hello</p>")

	// represents a line break
	roundTrip(t, doc(p("hi", br, "there")), "<p>hi<br/>there</p>")

	// represents an image
	roundTrip(t,
		doc(p("here's an image: ", img("img.png"))),
		`<p>here&#39;s an image: <img src="img.png"/></p>`)

	// represents an image with a title
	roundTrip(t,
		doc(p(builder.ImgAttrs(map[string]interface{}{"src": "img.png", "alt": "x"}))),
		`<p><img alt="x" src="img.png"/></p>`)

	// joins styles
	roundTrip(t,
		doc(p("one", strong("two", em("three")), em("four"), "five")),
		"<p>one<strong>two</strong><em><strong>three</strong>four</em>five</p>")

	// renders a heading with its level
	roundTrip(t, doc(h2("dark")), "<h2>dark</h2>")

	// renders a code block inside a pre
	roundTrip(t,
		doc(pre("a\n  b")),
		"<pre><code>a\n  b</code></pre>")

	// renders a blockquote around blocks
	roundTrip(t,
		doc(blockquote(p("quoted"), h1("deep"))),
		"<blockquote><p>quoted</p><h1>deep</h1></blockquote>")

	// renders a horizontal rule
	roundTrip(t, doc(p("before"), hr, p("after")), "<p>before</p><hr/><p>after</p>")

	// renders a link with its attributes
	roundTrip(t,
		doc(p("a ", a("http://example.com", "link"), " here")),
		`<p>a <a href="http://example.com">link</a> here</p>`)
}

func TestDOMSerializerNonSpanningMarks(t *testing.T) {
	// link is not inclusive, so adjacent link texts get separate elements
	d := doc(p(a("http://foo", "one"), a("http://foo", "two")))
	output, err := serializer.SerializeFragment(d.Content, nil)
	assert.NoError(t, err)
	buf := new(bytes.Buffer)
	assert.NoError(t, html.Render(buf, output))
	assert.Equal(t,
		`<p><a href="http://foo">one</a><a href="http://foo">two</a></p>`,
		buf.String())
}

func TestDOMSerializerErrors(t *testing.T) {
	// an unregistered type is reported
	stripped := DOMSerializerFromSchema(schema)
	delete(stripped.Nodes, "paragraph")
	_, serr := stripped.SerializeNode(p("x"))
	assert.Error(t, serr)
	assert.IsType(t, &UnknownTypeError{}, serr)

	// a leaf spec with children but no hole is reported
	broken := DOMSerializerFromSchema(schema)
	broken.Nodes["paragraph"] = func(_ *Node) *DOMOutputSpec {
		return &DOMOutputSpec{Tag: "p"}
	}
	_, serr = broken.SerializeNode(p("x"))
	assert.Error(t, serr)
}

func TestRenderSpecTree(t *testing.T) {
	// literal children render nested elements
	node, err := serializer.SerializeNode(pre("hi"))
	assert.NoError(t, err)
	buf := new(bytes.Buffer)
	assert.NoError(t, html.Render(buf, node))
	assert.Equal(t, "<pre><code>hi</code></pre>", buf.String())
}
