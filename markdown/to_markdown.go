// Package markdown converts documents to and from CommonMark text.
package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/typeset-io/docmodel/model"
)

// NodeSerializerFunc is the function to serialize a node.
type NodeSerializerFunc func(state *SerializerState, node, parent *model.Node, index int)

// MarkSerializerSpec is the serializer info for a mark.
type MarkSerializerSpec struct {
	// Open and Close hold the strings that should appear before and
	// after a piece of text marked that way, either directly or as a
	// function (state, mark, parent, index) → string.
	Open  interface{}
	Close interface{}
	// Mixable indicates that the order in which the mark's opening and
	// closing syntax appears relative to other mixable marks can be
	// varied.
	Mixable bool
	// ExpelEnclosingWhitespace causes the serializer to move enclosing
	// whitespace from inside the marks to outside them, as CommonMark
	// does not permit enclosing whitespace inside emphasis marks.
	ExpelEnclosingWhitespace bool
	// NoEscape disables character escaping inside the mark. Such a mark
	// has to be the innermost mark.
	NoEscape bool
}

// Serializer is a specification for serializing a document as
// CommonMark text.
type Serializer struct {
	Nodes map[string]NodeSerializerFunc
	Marks map[string]MarkSerializerSpec
}

// NewSerializer constructs a serializer with the given configuration.
// nodes should map node names in a given schema to functions that take a
// serializer state and such a node, and serialize the node. marks holds
// the open/close specs for the mark names.
func NewSerializer(nodes map[string]NodeSerializerFunc, marks map[string]MarkSerializerSpec) *Serializer {
	return &Serializer{Nodes: nodes, Marks: marks}
}

// Serialize the content of the given node to CommonMark.
func (s *Serializer) Serialize(content *model.Node) string {
	state := NewSerializerState(s.Nodes, s.Marks)
	state.RenderContent(content)
	return state.Out
}

var backticksRegexp = regexp.MustCompile("`{3,}")

// DefaultSerializer is a serializer for the basic schema.
var DefaultSerializer = NewSerializer(map[string]NodeSerializerFunc{
	"blockquote": func(state *SerializerState, node, _parent *model.Node, _index int) {
		state.WrapBlock("> ", nil, node, func() { state.RenderContent(node) })
	},
	"code_block": func(state *SerializerState, node, _parent *model.Node, _index int) {
		fence := "```"
		content := node.TextContent()
		for _, backticks := range backticksRegexp.FindAllString(content, -1) {
			if len(backticks) >= len(fence) {
				fence = backticks + "`"
			}
		}
		state.Write(fence + "\n")
		state.Text(content, false)
		state.EnsureNewLine()
		state.Write(fence)
		state.CloseBlock(node)
	},
	"heading": func(state *SerializerState, node, _parent *model.Node, _index int) {
		level := 1
		if l, ok := node.Attrs["level"].(int); ok {
			level = l
		}
		state.Write(strings.Repeat("#", level) + " ")
		state.RenderInline(node)
		state.CloseBlock(node)
	},
	"horizontal_rule": func(state *SerializerState, node, _parent *model.Node, _index int) {
		state.Write("---")
		state.CloseBlock(node)
	},
	"paragraph": func(state *SerializerState, node, _parent *model.Node, _index int) {
		state.RenderInline(node)
		state.CloseBlock(node)
	},
	"image": func(state *SerializerState, node, _parent *model.Node, _index int) {
		alt, _ := node.Attrs["alt"].(string)
		src, _ := node.Attrs["src"].(string)
		src = strings.ReplaceAll(src, "(", "\\(")
		src = strings.ReplaceAll(src, ")", "\\)")
		title := ""
		if t, ok := node.Attrs["title"].(string); ok {
			title = ` "` + strings.ReplaceAll(t, `"`, `\"`) + `"`
		}
		state.Write(fmt.Sprintf("![%s](%s%s)", state.Esc(alt), src, title))
	},
	"hard_break": func(state *SerializerState, node, parent *model.Node, index int) {
		for i := index + 1; i < parent.ChildCount(); i++ {
			if child, err := parent.Child(i); err == nil && child.Type != node.Type {
				state.Write("\\\n")
				return
			}
		}
	},
	"text": func(state *SerializerState, node, _parent *model.Node, _index int) {
		state.Text(*node.Text, !state.InAutoLink)
	},
}, map[string]MarkSerializerSpec{
	"em":     {Open: "*", Close: "*", Mixable: true, ExpelEnclosingWhitespace: true},
	"strong": {Open: "**", Close: "**", Mixable: true, ExpelEnclosingWhitespace: true},
	"link": {
		Open: func(state *SerializerState, mark *model.Mark, parent *model.Node, index int) string {
			state.InAutoLink = isPlainURL(mark, parent, index)
			if state.InAutoLink {
				return "<"
			}
			return "["
		},
		Close: func(state *SerializerState, mark *model.Mark, parent *model.Node, index int) string {
			if state.InAutoLink {
				state.InAutoLink = false
				return ">"
			}
			href, _ := mark.Attrs["href"].(string)
			href = strings.ReplaceAll(href, "(", "\\(")
			href = strings.ReplaceAll(href, ")", "\\)")
			href = strings.ReplaceAll(href, `"`, `\"`)
			title, _ := mark.Attrs["title"].(string)
			if title != "" {
				title = ` "` + strings.ReplaceAll(title, `"`, `\"`) + `"`
			}
			return fmt.Sprintf("](%s%s)", href, title)
		},
		Mixable: true,
	},
	"code": {
		Open: func(_state *SerializerState, _mark *model.Mark, parent *model.Node, index int) string {
			child, err := parent.Child(index)
			if err != nil {
				return "`"
			}
			return backticksFor(child, -1)
		},
		Close: func(_state *SerializerState, _mark *model.Mark, parent *model.Node, index int) string {
			child, err := parent.Child(index - 1)
			if err != nil {
				return "`"
			}
			return backticksFor(child, 1)
		},
		NoEscape: true,
	},
})

func backticksFor(node *model.Node, side int) string {
	length := 0
	if node.IsText() {
		for _, t := range strings.FieldsFunc(*node.Text, func(r rune) bool { return r != '`' }) {
			if len(t) > length {
				length = len(t)
			}
		}
	}
	result := "`"
	if length > 0 && side > 0 {
		result = " `"
	}
	result += strings.Repeat("`", length)
	if length > 0 && side < 0 {
		result += " "
	}
	return result
}

func isPlainURL(link *model.Mark, parent *model.Node, index int) bool {
	if title, ok := link.Attrs["title"].(string); ok && title != "" {
		return false
	}
	href, _ := link.Attrs["href"].(string)
	if !strings.Contains(href, ":") {
		return false
	}
	content, err := parent.Child(index)
	if err != nil {
		return true
	}
	if !content.IsText() || *content.Text != href || content.Marks[len(content.Marks)-1].Type != link.Type {
		return false
	}
	if index == parent.ChildCount()-1 {
		return true
	}
	next, err := parent.Child(index + 1)
	if err != nil {
		return true
	}
	return !link.IsInSet(next.Marks)
}

// SerializerState is an object used to track state and expose methods
// related to markdown serialization. Instances are passed to node and mark
// serialization methods.
type SerializerState struct {
	Nodes        map[string]NodeSerializerFunc
	Marks        map[string]MarkSerializerSpec
	Delim        string
	Out          string
	Closed       *model.Node
	InAutoLink   bool
	AtBlockStart bool
}

// NewSerializerState is the constructor for SerializerState.
func NewSerializerState(nodes map[string]NodeSerializerFunc, marks map[string]MarkSerializerSpec) *SerializerState {
	return &SerializerState{Nodes: nodes, Marks: marks}
}

func (s *SerializerState) flushClose(size ...int) {
	if s.Closed == nil {
		return
	}
	s.EnsureNewLine()
	siz := 2
	if len(size) > 0 {
		siz = size[0]
	}
	if siz > 1 {
		delimMin := strings.TrimRightFunc(s.Delim, unicode.IsSpace)
		for i := 1; i < siz; i++ {
			s.Out += delimMin + "\n"
		}
	}
	s.Closed = nil
}

// WrapBlock renders a block, prefixing each line with delim, and the first
// line in firstDelim. node should be the node that is closed at the end of
// the block, and f is a function that renders the content of the block.
func (s *SerializerState) WrapBlock(delim string, firstDelim *string, node *model.Node, f func()) {
	old := s.Delim
	d := delim
	if firstDelim != nil {
		d = *firstDelim
	}
	s.Write(d)
	s.Delim += delim
	f()
	s.Delim = old
	s.CloseBlock(node)
}

func (s *SerializerState) atBlank() bool {
	return len(s.Out) == 0 || s.Out[len(s.Out)-1] == '\n'
}

// EnsureNewLine ensures the current content ends with a newline.
func (s *SerializerState) EnsureNewLine() {
	if !s.atBlank() {
		s.Out += "\n"
	}
}

// Write prepares the state for writing output (closing closed paragraphs,
// adding delimiters) and then optionally adds content (unescaped) to the
// output.
func (s *SerializerState) Write(content ...string) {
	s.flushClose()
	if s.Delim != "" && s.atBlank() {
		s.Out += s.Delim
	}
	if len(content) > 0 {
		s.Out += content[0]
	}
}

// CloseBlock closes the block for the given node.
func (s *SerializerState) CloseBlock(node *model.Node) {
	s.Closed = node
}

// Text adds the given text to the document. When escape is not false, it
// will be escaped.
func (s *SerializerState) Text(text string, escape ...bool) {
	esc := true
	if len(escape) > 0 {
		esc = escape[0]
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		s.Write()
		if esc {
			s.Out += s.Esc(line, s.AtBlockStart)
		} else {
			s.Out += line
		}
		if i != len(lines)-1 {
			s.Out += "\n"
		}
	}
}

// Render the given node as a block.
func (s *SerializerState) Render(node, parent *model.Node, index int) {
	if fn, ok := s.Nodes[node.Type.Name]; ok {
		fn(s, node, parent, index)
	}
}

// RenderContent renders the contents of parent as block nodes.
func (s *SerializerState) RenderContent(parent *model.Node) {
	parent.ForEach(func(node *model.Node, _ int, i int) {
		s.Render(node, parent, i)
	})
}

var expelRegexp = regexp.MustCompile(`^(\s*)((?s).*?)(\s*)$`)

// RenderInline renders the contents of parent as inline content, opening
// and closing mark syntax as the active mark set changes between child
// nodes.
func (s *SerializerState) RenderInline(parent *model.Node) {
	s.AtBlockStart = true
	var active []*model.Mark
	trailing := ""

	progress := func(node *model.Node, index int) {
		var marks []*model.Mark
		if node != nil {
			marks = node.Marks
		}
		leading := trailing
		trailing = ""
		if node != nil && node.IsText() && s.expels(marks) {
			m := expelRegexp.FindStringSubmatch(*node.Text)
			lead, inner, trail := m[1], m[2], m[3]
			leading += lead
			trailing = trail
			if lead != "" || trail != "" {
				if inner == "" {
					node = nil
					marks = active
				} else {
					node = node.WithText(inner)
				}
			}
		}

		var inner *model.Mark
		if len(marks) > 0 {
			inner = marks[len(marks)-1]
		}
		noEsc := inner != nil && s.Marks[inner.Type.Name].NoEscape
		length := len(marks)
		if noEsc {
			length--
		}
		// reorder mixable marks to match what is already open
	outer:
		for i := 0; i < length; i++ {
			mark := marks[i]
			if !s.Marks[mark.Type.Name].Mixable {
				break
			}
			for j, other := range active {
				if !s.Marks[other.Type.Name].Mixable {
					break
				}
				if mark.Eq(other) {
					if i > j {
						reordered := append([]*model.Mark{}, marks[:j]...)
						reordered = append(reordered, mark)
						reordered = append(reordered, marks[j:i]...)
						marks = append(reordered, marks[i+1:length]...)
					} else if j > i {
						reordered := append([]*model.Mark{}, marks[:i]...)
						reordered = append(reordered, marks[i+1:j]...)
						reordered = append(reordered, mark)
						marks = append(reordered, marks[j:length]...)
					}
					continue outer
				}
			}
		}

		keep := 0
		for keep < minInt(len(active), length) && marks[keep].Eq(active[keep]) {
			keep++
		}
		for keep < len(active) {
			mark := active[len(active)-1]
			active = active[:len(active)-1]
			s.Text(s.markString(mark, false, parent, index), false)
		}
		if leading != "" {
			s.Text(leading)
		}
		if node != nil {
			for len(active) < length {
				add := marks[len(active)]
				active = append(active, add)
				s.Text(s.markString(add, true, parent, index), false)
			}
			// a no-escape mark wraps its text directly, so the content
			// is emitted verbatim
			if noEsc && node.IsText() {
				s.Text(s.markString(inner, true, parent, index)+*node.Text+s.markString(inner, false, parent, index+1), false)
			} else {
				s.Render(node, parent, index)
			}
		}
	}

	parent.ForEach(func(node *model.Node, _ int, index int) {
		progress(node, index)
		s.AtBlockStart = false
	})
	progress(nil, parent.ChildCount())
	s.AtBlockStart = false
}

func (s *SerializerState) expels(marks []*model.Mark) bool {
	for _, mark := range marks {
		if s.Marks[mark.Type.Name].ExpelEnclosingWhitespace {
			return true
		}
	}
	return false
}

func (s *SerializerState) markString(mark *model.Mark, open bool, parent *model.Node, index int) string {
	spec := s.Marks[mark.Type.Name]
	value := spec.Open
	if !open {
		value = spec.Close
	}
	switch v := value.(type) {
	case string:
		return v
	case func(state *SerializerState, mark *model.Mark, parent *model.Node, index int) string:
		return v(s, mark, parent, index)
	}
	return ""
}

var (
	escStartRegexp     = regexp.MustCompile(`^[:#\-*+>]`)
	escStartListRegexp = regexp.MustCompile(`^(\s*\d+)\.`)
)

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Esc escapes the given string so that it can safely appear in Markdown
// content. Underscores between word characters are left alone, as they
// cannot start emphasis there. The optional flag escapes characters that
// only have a special meaning at the start of a line.
func (s *SerializerState) Esc(str string, startOfLine ...bool) string {
	var b strings.Builder
	runes := []rune(str)
	for i, r := range runes {
		switch r {
		case '`', '*', '\\', '~', '[', ']':
			b.WriteByte('\\')
		case '_':
			prevWord := i > 0 && isWordChar(runes[i-1])
			nextWord := i+1 < len(runes) && isWordChar(runes[i+1])
			if !prevWord || !nextWord {
				b.WriteByte('\\')
			}
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(startOfLine) > 0 && startOfLine[0] {
		out = escStartRegexp.ReplaceAllString(out, "\\$0")
		out = escStartListRegexp.ReplaceAllString(out, "$1\\.")
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
