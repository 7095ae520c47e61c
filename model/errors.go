package model

import "fmt"

// GrammarError is returned when a content expression cannot be parsed.
type GrammarError struct {
	Expr string
	Msg  string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("%s (in content expression %q)", e.Msg, e.Expr)
}

// SchemaError is returned when a schema spec is inconsistent, or when a
// node or mark is created with attributes the type does not accept.
type SchemaError struct {
	Name string
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.Name == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s (in type %s)", e.Msg, e.Name)
}

// UnknownTypeError is returned when a node or mark type name is not
// registered in the schema.
type UnknownTypeError struct {
	Kind string
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s type: %s", e.Kind, e.Name)
}

// ContentModelError describes content that violates a node type's content
// expression or mark constraints. It carries enough context to point at
// the offending child.
type ContentModelError struct {
	Parent string
	Child  string
	Index  int
}

func (e *ContentModelError) Error() string {
	return fmt.Sprintf("invalid content for node %s: %s at index %d", e.Parent, e.Child, e.Index)
}
