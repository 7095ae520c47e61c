package model_test

import (
	"testing"

	. "github.com/typeset-io/docmodel/model"
	"github.com/stretchr/testify/assert"
)

func TestFragmentFrom(t *testing.T) {
	// nil gives the empty fragment
	assert.Equal(t, EmptyFragment, FragmentFrom(nil))

	// a fragment is passed through
	frag := NewFragment([]*Node{p("a")})
	assert.Equal(t, frag, FragmentFrom(frag))

	// a single node is wrapped
	assert.Equal(t, 1, FragmentFrom(p("a")).ChildCount())

	// a slice keeps its order
	f := FragmentFrom([]*Node{p("a"), p("b")})
	assert.Equal(t, 2, f.ChildCount())
	child, err := f.Child(1)
	assert.NoError(t, err)
	assert.Equal(t, "b", child.TextContent())
}

func TestFragmentSize(t *testing.T) {
	// sums the sizes of its children
	f := NewFragment([]*Node{p("ab"), hr})
	assert.Equal(t, 5, f.Size)

	// the empty fragment has size zero
	assert.Equal(t, 0, EmptyFragment.Size)
}

func TestFragmentChildAccess(t *testing.T) {
	f := NewFragment([]*Node{p("a"), p("b")})

	// Child returns an error out of range
	_, err := f.Child(2)
	assert.Error(t, err)

	// MaybeChild returns nil out of range
	assert.Nil(t, f.MaybeChild(2))
	assert.NotNil(t, f.MaybeChild(1))

	// ForEach reports offsets and indexes
	var offsets []int
	f.ForEach(func(_ *Node, offset, index int) {
		offsets = append(offsets, offset)
		assert.Equal(t, len(offsets)-1, index)
	})
	assert.Equal(t, []int{0, 3}, offsets)
}

func TestFragmentEq(t *testing.T) {
	// equal content compares equal
	assert.True(t, NewFragment([]*Node{p("a")}).Eq(NewFragment([]*Node{p("a")})))

	// different lengths differ
	assert.False(t, NewFragment([]*Node{p("a")}).Eq(EmptyFragment))

	// different children differ
	assert.False(t, NewFragment([]*Node{p("a")}).Eq(NewFragment([]*Node{p("b")})))
}
