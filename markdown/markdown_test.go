package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typeset-io/docmodel/model"
	"github.com/typeset-io/docmodel/schema/basic"
	"github.com/typeset-io/docmodel/test/builder"
)

var (
	schema = basic.Schema

	doc        = builder.Doc
	blockquote = builder.Blockquote
	p          = builder.P
	h1         = builder.H1
	h2         = builder.H2
	hr         = builder.Hr
	pre        = builder.Pre
	br         = builder.Br
	em         = builder.Em
	strong     = builder.Strong
	code       = builder.Code

	a = func(args ...interface{}) []*model.Node {
		return builder.A("foo", args...)
	}
	link = func(attrs map[string]interface{}, args ...interface{}) []*model.Node {
		m := schema.Mark("link", attrs)
		children := builder.P(args...).Content.Content
		result := make([]*model.Node, len(children))
		for i, child := range children {
			result[i] = child.Mark(m.AddToSet(child.Marks))
		}
		return result
	}
	img = builder.ImgAttrs(map[string]interface{}{"src": "img.png", "alt": "x"})
)

func TestMarkdown(t *testing.T) {
	mdParser := NewParser(schema)

	parse := func(text string, expected *model.Node) {
		actual, err := mdParser.ParseString(text)
		require.NoError(t, err)
		require.True(t, actual.Eq(expected), "%s != %s\n", actual.String(), expected.String())
	}

	serialize := func(doc *model.Node, text string) {
		assert.Equal(t, text, DefaultSerializer.Serialize(doc))
	}

	same := func(text string, doc *model.Node) {
		parse(text, doc)
		serialize(doc, text)
	}

	// parses a paragraph
	same("hello!",
		doc(p("hello!")))

	// parses headings
	same("# one\n\n## two\n\nthree",
		doc(h1("one"), h2("two"), p("three")))

	// parses a blockquote
	same("> once\n\n> > twice",
		doc(blockquote(p("once")), blockquote(blockquote(p("twice")))))

	// parses a code block
	same("Some code:\n\n```\nHere it is\n```\n\nPara",
		doc(p("Some code:"), pre("Here it is"), p("Para")))

	// parses inline marks
	same("Hello. Some *em* text, some **strong** text, and some `code`",
		doc(p("Hello. Some ", em("em"), " text, some ", strong("strong"), " text, and some ", code("code"))))

	// parses overlapping inline marks
	same("This is **strong *emphasized text with `code` in* it**",
		doc(p("This is ", strong("strong ", em("emphasized text with ", code("code"), " in"), " it"))))

	// parses links inside strong text
	parse("**[link](foo) is bold**",
		doc(p(strong(a("link"), " is bold"))))
	// the link mark ranks outermost, so serializing closes and reopens
	// the strong syntax around it
	serialize(doc(p(strong(a("link"), " is bold"))),
		"[**link**](foo) **is bold**")

	// parses emphasis inside links
	same("[link *foo **bar** `#`*](foo)",
		doc(p(a("link ", em("foo ", strong("bar"), " ", code("#"))))))

	// parses code mark inside strong text
	same("**`code` is bold**",
		doc(p(strong(code("code"), " is bold"))))

	// parses code mark containing backticks
	same("``` one backtick: ` two backticks: `` ```",
		doc(p(code("one backtick: ` two backticks: ``"))))

	// serializes a code mark containing only whitespace
	serialize(doc(p("Three spaces: ", code("   "))),
		"Three spaces: `   `")

	// parses hard breaks
	same("foo\\\nbar", doc(p("foo", br, "bar")))
	same("*foo\\\nbar*", doc(p(em("foo", br, "bar"))))

	// parses links
	same("My [link](foo) goes to foo",
		doc(p("My ", a("link"), " goes to foo")))

	// parses urls
	same("Link to <https://example.com>",
		doc(p("Link to ", link(map[string]interface{}{"href": "https://example.com"}, "https://example.com"))))

	// correctly serializes relative urls
	same("[foo.html](foo.html)",
		doc(p(link(map[string]interface{}{"href": "foo.html"}, "foo.html"))))

	// can handle link titles
	same(`[a](x.html "title \"quoted\"")`,
		doc(p(link(map[string]interface{}{"href": "x.html", "title": `title "quoted"`}, "a"))))

	// doesn't escape underscores in link
	same("[link](http://foo.com/a_b_c)",
		doc(p(link(map[string]interface{}{"href": "http://foo.com/a_b_c"}, "link"))))

	// parses emphasized urls
	parse("Link to *<https://example.com>*",
		doc(p("Link to ", em(link(map[string]interface{}{"href": "https://example.com"}, "https://example.com")))))

	// parses an image
	same("Here's an image: ![x](img.png)",
		doc(p("Here's an image: ", img)))

	// parses a horizontal rule
	same("one two\n\n---\n\nthree",
		doc(p("one two"), hr, p("three")))

	// ignores HTML tags
	same("Foo < img> bar",
		doc(p("Foo < img> bar")))

	// escapes special characters
	same("Foo \\*bar",
		doc(p("Foo *bar")))

	// doesn't accidentally generate list markup
	same("1\\. foo",
		doc(p("1. foo")))

	// doesn't fail with line break inside inline mark
	serialize(doc(p(strong("text1\ntext2"))), "**text1\ntext2**")

	// drops trailing hard breaks
	serialize(doc(p("a", br, br)), "a")

	// expels enclosing whitespace from inside emphasis
	serialize(doc(p("Some emphasized text with", strong(em("  whitespace   ")), "surrounding the emphasis.")),
		"Some emphasized text with  ***whitespace***   surrounding the emphasis.")

	// drops nodes when all whitespace is expelled from them
	serialize(doc(p("Text with", em(" "), "an emphasized space")),
		"Text with an emphasized space")

	// doesn't escape characters in code
	same("foo`*`", doc(p("foo", code("*"))))

	// doesn't escape underscores between word characters
	same("abc_def", doc(p("abc_def")))

	// doesn't escape strips of underscores between word characters
	same("abc___def", doc(p("abc___def")))

	// escapes underscores at word boundaries
	same("\\_abc\\_", doc(p("_abc_")))

	// escapes underscores surrounded by non-word characters
	same("/\\_abc\\_)", doc(p("/_abc_)")))

	// ensure no escapes in url
	parse("[text](https://example.com/_file/#~anchor)",
		doc(p(link(map[string]interface{}{"href": "https://example.com/_file/#~anchor"}, "text"))))

	// ensure no escapes in autolinks
	same("<https://example.com/_file/#~anchor>",
		doc(p(link(map[string]interface{}{"href": "https://example.com/_file/#~anchor"}, "https://example.com/_file/#~anchor"))))
}

func TestMarkdownListsAreUnwrapped(t *testing.T) {
	mdParser := NewParser(schema)

	// list items keep their content as plain blocks
	actual, err := mdParser.ParseString("* one\n* two")
	require.NoError(t, err)
	assert.True(t, actual.Eq(doc(p("one"), p("two"))),
		actual.String())
}

func TestMarkdownParseErrors(t *testing.T) {
	mdParser := NewParser(schema)

	// an empty document doesn't satisfy the top type
	_, err := mdParser.ParseString("")
	assert.Error(t, err)
	var cerr *model.ContentModelError
	assert.ErrorAs(t, err, &cerr)
}
