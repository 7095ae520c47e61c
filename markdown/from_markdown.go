package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/typeset-io/docmodel/model"
)

// Parser reads CommonMark text and builds a document conforming to a
// schema. Block and inline constructs the schema has no type for are
// unwrapped, keeping their content.
type Parser struct {
	schema *model.Schema
	md     goldmark.Markdown
}

// NewParser constructs a parser for the given schema. The schema is
// expected to have the node and mark types of the basic schema.
func NewParser(schema *model.Schema) *Parser {
	return &Parser{schema: schema, md: goldmark.New()}
}

// Parse the given markdown source into a document whose type is the
// schema's top node type.
func (p *Parser) Parse(source []byte) (*model.Node, error) {
	root := p.md.Parser().Parse(gmtext.NewReader(source))
	blocks, err := p.parseBlocks(root, source)
	if err != nil {
		return nil, err
	}
	return p.schema.TopNodeType().CreateChecked(nil, blocks, nil)
}

// ParseString is Parse for a string source.
func (p *Parser) ParseString(source string) (*model.Node, error) {
	return p.Parse([]byte(source))
}

func (p *Parser) parseBlocks(parent ast.Node, source []byte) ([]*model.Node, error) {
	var blocks []*model.Node
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Paragraph:
			inline, err := p.parseInlines(n, source, nil)
			if err != nil {
				return nil, err
			}
			node, err := p.schema.Node("paragraph", nil, inline, nil)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)
		case *ast.TextBlock:
			// tight list items hold their inline content in a text
			// block rather than a paragraph
			inline, err := p.parseInlines(n, source, nil)
			if err != nil {
				return nil, err
			}
			node, err := p.schema.Node("paragraph", nil, inline, nil)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)
		case *ast.Heading:
			inline, err := p.parseInlines(n, source, nil)
			if err != nil {
				return nil, err
			}
			node, err := p.schema.Node("heading", map[string]interface{}{"level": n.Level}, inline, nil)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)
		case *ast.Blockquote:
			inner, err := p.parseBlocks(n, source)
			if err != nil {
				return nil, err
			}
			node, err := p.schema.Node("blockquote", nil, inner, nil)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)
		case *ast.FencedCodeBlock:
			node, err := p.codeBlock(n, source)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)
		case *ast.CodeBlock:
			node, err := p.codeBlock(n, source)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)
		case *ast.ThematicBreak:
			node, err := p.schema.Node("horizontal_rule", nil, nil, nil)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)
		case *ast.HTMLBlock:
			// raw HTML is dropped
		default:
			if n.Type() == ast.TypeBlock || n.Type() == ast.TypeDocument {
				inner, err := p.parseBlocks(n, source)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, inner...)
			}
		}
	}
	return blocks, nil
}

func (p *Parser) codeBlock(n ast.Node, source []byte) (*model.Node, error) {
	var buf strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	text := strings.TrimSuffix(buf.String(), "\n")
	var content interface{}
	if text != "" {
		content = p.schema.Text(text)
	}
	return p.schema.Node("code_block", nil, content, nil)
}

func (p *Parser) parseInlines(parent ast.Node, source []byte, marks []*model.Mark) ([]*model.Node, error) {
	var nodes []*model.Node
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			value := unescapeText(n.Segment.Value(source))
			if value != "" {
				nodes = append(nodes, p.schema.Text(value, marks))
			}
			if n.HardLineBreak() {
				br, err := p.schema.Node("hard_break", nil, nil, marks)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, br)
			} else if n.SoftLineBreak() {
				nodes = append(nodes, p.schema.Text("\n", marks))
			}
		case *ast.String:
			if len(n.Value) > 0 {
				nodes = append(nodes, p.schema.Text(string(n.Value), marks))
			}
		case *ast.Emphasis:
			name := "em"
			if n.Level > 1 {
				name = "strong"
			}
			inner, err := p.withMark(n, source, marks, name, nil)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, inner...)
		case *ast.CodeSpan:
			// code span content is literal, backslashes included
			text := rawText(n, source)
			if text != "" {
				mt, err := p.schema.MarkType("code")
				if err != nil {
					return nil, err
				}
				mark, err := mt.Create(nil)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, p.schema.Text(text, mark.AddToSet(marks)))
			}
		case *ast.Link:
			attrs := map[string]interface{}{"href": unescapeText(n.Destination)}
			if len(n.Title) > 0 {
				attrs["title"] = unescapeText(n.Title)
			}
			inner, err := p.withMark(n, source, marks, "link", attrs)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, inner...)
		case *ast.AutoLink:
			url := string(n.URL(source))
			mt, err := p.schema.MarkType("link")
			if err != nil {
				return nil, err
			}
			mark, err := mt.Create(map[string]interface{}{"href": url})
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, p.schema.Text(string(n.Label(source)), mark.AddToSet(marks)))
		case *ast.Image:
			attrs := map[string]interface{}{"src": unescapeText(n.Destination)}
			if alt := inlineText(n, source); alt != "" {
				attrs["alt"] = alt
			}
			if len(n.Title) > 0 {
				attrs["title"] = unescapeText(n.Title)
			}
			img, err := p.schema.Node("image", attrs, nil, marks)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, img)
		case *ast.RawHTML:
			// dropped
		default:
			inner, err := p.parseInlines(n, source, marks)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, inner...)
		}
	}
	return mergeText(nodes), nil
}

func (p *Parser) withMark(parent ast.Node, source []byte, marks []*model.Mark, name string, attrs map[string]interface{}) ([]*model.Node, error) {
	mt, err := p.schema.MarkType(name)
	if err != nil {
		return nil, err
	}
	mark, err := mt.Create(attrs)
	if err != nil {
		return nil, err
	}
	return p.parseInlines(parent, source, mark.AddToSet(marks))
}

// Backslash escapes and entity references stay in goldmark's text
// segments; resolving them is left to the consumer.
func unescapeText(value []byte) string {
	value = util.UnescapePunctuations(value)
	value = util.ResolveNumericReferences(value)
	return string(util.ResolveEntityNames(value))
}

// inlineText collects the plain text of an inline subtree, for image alt
// text.
func inlineText(parent ast.Node, source []byte) string {
	var buf strings.Builder
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.WriteString(unescapeText(t.Segment.Value(source)))
		} else {
			buf.WriteString(inlineText(c, source))
		}
	}
	return buf.String()
}

// rawText collects text without unescaping, for code spans.
func rawText(parent ast.Node, source []byte) string {
	var buf strings.Builder
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		} else {
			buf.WriteString(rawText(c, source))
		}
	}
	return buf.String()
}

// mergeText joins adjacent text nodes that carry the same mark set, so
// that emphasis boundaries inside a word do not split the result more
// than necessary.
func mergeText(nodes []*model.Node) []*model.Node {
	var out []*model.Node
	for _, node := range nodes {
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.IsText() && node.IsText() && model.SameMarkSet(last.Marks, node.Marks) {
				out[len(out)-1] = last.WithText(*last.Text + *node.Text)
				continue
			}
		}
		out = append(out, node)
	}
	return out
}
