package model

import "fmt"

// A Fragment represents a node's collection of child nodes.
//
// Like nodes, fragments are persistent data structures, and you should not
// mutate them or their content. Rather, you create new instances whenever
// needed. The API tries to make this easy.
type Fragment struct {
	Content []*Node
	// Size is the total of the size of its content nodes.
	Size int
}

// EmptyFragment is the fragment with no children.
var EmptyFragment = &Fragment{}

// NewFragment builds a fragment from a slice of nodes.
func NewFragment(content []*Node) *Fragment {
	if len(content) == 0 {
		return EmptyFragment
	}
	size := 0
	for _, node := range content {
		size += node.NodeSize()
	}
	return &Fragment{Content: content, Size: size}
}

// FragmentFrom creates a fragment from something that can be interpreted
// as a set of nodes: nil, a Fragment, a Node, or a slice of nodes.
func FragmentFrom(content interface{}) *Fragment {
	switch c := content.(type) {
	case nil:
		return EmptyFragment
	case *Fragment:
		if c == nil {
			return EmptyFragment
		}
		return c
	case *Node:
		if c == nil {
			return EmptyFragment
		}
		return NewFragment([]*Node{c})
	case []*Node:
		return NewFragment(c)
	}
	panic(fmt.Errorf("can not convert %v to a fragment", content))
}

// ChildCount returns the number of child nodes in this fragment.
func (f *Fragment) ChildCount() int {
	return len(f.Content)
}

// Child returns the child node at the given index, or an error when the
// index is out of range.
func (f *Fragment) Child(index int) (*Node, error) {
	if index < 0 || index >= len(f.Content) {
		return nil, fmt.Errorf("index %d out of range for fragment", index)
	}
	return f.Content[index], nil
}

// MaybeChild returns the child node at the given index, if it exists.
func (f *Fragment) MaybeChild(index int) *Node {
	if index < 0 || index >= len(f.Content) {
		return nil
	}
	return f.Content[index]
}

// ForEach calls the given function for each child node. It is passed the
// node, its offset into this parent node, and its index.
func (f *Fragment) ForEach(fn func(node *Node, offset, index int)) {
	pos := 0
	for i, child := range f.Content {
		fn(child, pos, i)
		pos += child.NodeSize()
	}
}

// TextBetween returns the text between the two given positions. When
// blockSeparator is given, it is inserted whenever a new textblock is
// started.
func (f *Fragment) TextBetween(from, to int, blockSeparator ...string) string {
	sep := ""
	if len(blockSeparator) > 0 {
		sep = blockSeparator[0]
	}
	text := ""
	first := true
	f.textBetween(from, to, sep, &text, &first)
	return text
}

func (f *Fragment) textBetween(from, to int, sep string, text *string, first *bool) {
	pos := 0
	for _, child := range f.Content {
		if pos >= to {
			break
		}
		end := pos + child.NodeSize()
		if end > from {
			if child.IsText() {
				start := maxInt(from, pos) - pos
				stop := minInt(to, end) - pos
				*text += (*child.Text)[start:stop]
			} else {
				if sep != "" && child.IsTextblock() {
					if *first {
						*first = false
					} else {
						*text += sep
					}
				}
				if child.Content.Size > 0 {
					inner := pos + 1
					child.Content.textBetween(maxInt(0, from-inner), minInt(child.Content.Size, to-inner), sep, text, first)
				}
			}
		}
		pos = end
	}
}

// Eq compares this fragment to another one.
func (f *Fragment) Eq(other *Fragment) bool {
	if f == other {
		return true
	}
	if len(f.Content) != len(other.Content) {
		return false
	}
	for i, child := range f.Content {
		if !child.Eq(other.Content[i]) {
			return false
		}
	}
	return true
}

// Cut out the sub-fragment between the two given positions. The original
// is not changed; unchanged children are shared with the result.
func (f *Fragment) Cut(from int, to ...int) *Fragment {
	end := f.Size
	if len(to) > 0 {
		end = to[0]
	}
	if from == 0 && end == f.Size {
		return f
	}
	var result []*Node
	if end > from {
		pos := 0
		for i := 0; pos < end && i < len(f.Content); i++ {
			child := f.Content[i]
			childEnd := pos + child.NodeSize()
			if childEnd > from {
				if pos < from || childEnd > end {
					if child.IsText() {
						child = child.Cut(maxInt(0, from-pos), minInt(len(*child.Text), end-pos))
					} else {
						child = child.Cut(maxInt(0, from-pos-1), minInt(child.Content.Size, end-pos-1))
					}
				}
				result = append(result, child)
			}
			pos = childEnd
		}
	}
	return NewFragment(result)
}

// Find the index and inner offset corresponding to a given relative
// position in this fragment.
func (f *Fragment) findIndex(pos int) (index, offset int, err error) {
	if pos == 0 {
		return 0, pos, nil
	}
	if pos == f.Size {
		return len(f.Content), pos, nil
	}
	if pos > f.Size || pos < 0 {
		return 0, 0, fmt.Errorf("position %d outside of fragment %v", pos, f)
	}
	curPos := 0
	for i := 0; ; i++ {
		cur := f.Content[i]
		end := curPos + cur.NodeSize()
		if end >= pos {
			if end == pos {
				return i + 1, end, nil
			}
			return i, curPos, nil
		}
		curPos = end
	}
}

func (f *Fragment) toStringInner() string {
	str := ""
	for i, child := range f.Content {
		if i > 0 {
			str += ", "
		}
		str += child.String()
	}
	return str
}

// String returns a debugging string that describes this fragment.
func (f *Fragment) String() string {
	return "<" + f.toStringInner() + ">"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
