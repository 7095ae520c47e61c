package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ContentMatch represents a match state of a node type's content expression,
// and can be used to find out whether further content matches here, and
// whether a given position is a valid end of the node.
type ContentMatch struct {
	// True when this match state represents a valid end of the node.
	ValidEnd bool
	next     []matchEdge
}

type matchEdge struct {
	typ  *NodeType
	next *ContentMatch
}

// EmptyContentMatch is the match state that accepts nothing. It is the
// compiled form of the empty content expression.
var EmptyContentMatch = &ContentMatch{ValidEnd: true}

// ParseContentMatch compiles a content expression into a match automaton.
// Type and group names are resolved against the given node types. A
// malformed expression yields a *GrammarError.
func ParseContentMatch(str string, nodeTypes map[string]*NodeType) (*ContentMatch, error) {
	stream := newTokenStream(str, nodeTypes)
	if stream.next() == nil {
		return EmptyContentMatch, nil
	}
	expr, err := parseExpr(stream)
	if err != nil {
		return nil, err
	}
	if stream.next() != nil {
		return nil, stream.err("Unexpected trailing text")
	}
	return dfa(nfa(expr)), nil
}

// MatchType matches a node type, returning a match after that node if
// successful.
func (cm *ContentMatch) MatchType(typ *NodeType) *ContentMatch {
	for _, e := range cm.next {
		if e.typ == typ {
			return e.next
		}
	}
	return nil
}

// MatchFragment tries to match a fragment. Returns the resulting match when
// successful, or nil as soon as a child fails to match, which makes it
// usable for incremental prefix validation while building up content. The
// optional arguments are a start and an end child index.
func (cm *ContentMatch) MatchFragment(frag *Fragment, args ...int) *ContentMatch {
	cur := cm
	start := 0
	if len(args) > 0 {
		start = args[0]
	}
	end := frag.ChildCount()
	if len(args) > 1 {
		end = args[1]
	}
	for i := start; cur != nil && i < end; i++ {
		child, err := frag.Child(i)
		if err != nil {
			return nil
		}
		cur = cur.MatchType(child.Type)
	}
	return cur
}

func (cm *ContentMatch) inlineContent() bool {
	return len(cm.next) > 0 && cm.next[0].typ.IsInline()
}

type tokenStream struct {
	str       string
	nodeTypes map[string]*NodeType
	inline    *bool
	pos       int
	tokens    []string
}

func newTokenStream(str string, nodeTypes map[string]*NodeType) *tokenStream {
	return &tokenStream{
		str:       str,
		nodeTypes: nodeTypes,
		tokens:    tokenize(str),
	}
}

// Word characters clump into a single token, everything else that is not
// whitespace stands alone.
func tokenize(str string) []string {
	var tokens []string
	word := ""
	for _, c := range str {
		switch {
		case isWordCharacter(c):
			word += string(c)
		case c == ' ' || c == '\t' || c == '\n':
			if word != "" {
				tokens = append(tokens, word)
				word = ""
			}
		default:
			if word != "" {
				tokens = append(tokens, word)
				word = ""
			}
			tokens = append(tokens, string(c))
		}
	}
	if word != "" {
		tokens = append(tokens, word)
	}
	return tokens
}

func (ts *tokenStream) next() *string {
	if ts.pos >= len(ts.tokens) {
		return nil
	}
	return &ts.tokens[ts.pos]
}

func (ts *tokenStream) eat(tok string) bool {
	if s := ts.next(); s == nil || *s != tok {
		return false
	}
	ts.pos++
	return true
}

func (ts *tokenStream) err(format string, args ...interface{}) error {
	return &GrammarError{Expr: ts.str, Msg: fmt.Sprintf(format, args...)}
}

type exprType struct {
	Type  string
	Exprs []*exprType
	Expr  *exprType
	Min   int
	Max   int
	Value *NodeType
}

func parseExpr(stream *tokenStream) (*exprType, error) {
	exprs := []*exprType{}
	for {
		seq, err := parseExprSeq(stream)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, seq)
		if !stream.eat("|") {
			break
		}
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return &exprType{Type: "choice", Exprs: exprs}, nil
}

func parseExprSeq(stream *tokenStream) (*exprType, error) {
	exprs := []*exprType{}
	for {
		sub, err := parseExprSubscript(stream)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, sub)
		if s := stream.next(); s == nil || *s == ")" || *s == "|" {
			break
		}
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return &exprType{Type: "seq", Exprs: exprs}, nil
}

func parseExprSubscript(stream *tokenStream) (*exprType, error) {
	expr, err := parseExprAtom(stream)
	if err != nil {
		return nil, err
	}
	for {
		if stream.eat("+") {
			expr = &exprType{Type: "plus", Expr: expr}
		} else if stream.eat("*") {
			expr = &exprType{Type: "star", Expr: expr}
		} else if stream.eat("?") {
			expr = &exprType{Type: "opt", Expr: expr}
		} else if stream.eat("{") {
			expr, err = parseExprRange(stream, expr)
			if err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	return expr, nil
}

func parseNum(stream *tokenStream) (int, error) {
	s := stream.next()
	if s == nil {
		return 0, stream.err("Expected number, got end of expression")
	}
	result, err := strconv.Atoi(*s)
	if err != nil {
		return 0, stream.err("Expected number, got %q", *s)
	}
	stream.pos++
	return result, nil
}

func parseExprRange(stream *tokenStream, expr *exprType) (*exprType, error) {
	min, err := parseNum(stream)
	if err != nil {
		return nil, err
	}
	max := min
	if stream.eat(",") {
		if s := stream.next(); s != nil && *s != "}" {
			max, err = parseNum(stream)
			if err != nil {
				return nil, err
			}
		} else {
			max = -1
		}
	}
	if !stream.eat("}") {
		return nil, stream.err("Unclosed braced range")
	}
	return &exprType{Type: "range", Min: min, Max: max, Expr: expr}, nil
}

// A name in an expression is either a node type or a group, which expands
// to the disjunction of its members.
func resolveName(stream *tokenStream, name string) ([]*NodeType, error) {
	types := stream.nodeTypes
	if typ, ok := types[name]; ok {
		return []*NodeType{typ}, nil
	}
	var result []*NodeType
	for _, typ := range types {
		for _, g := range typ.Groups {
			if g == name {
				result = append(result, typ)
				break
			}
		}
	}
	if len(result) == 0 {
		return nil, stream.err("No node type or group %q found", name)
	}
	return result, nil
}

func isWordCharacter(c rune) bool {
	switch {
	case '0' <= c && c <= '9':
	case 'a' <= c && c <= 'z':
	case 'A' <= c && c <= 'Z':
	case c == '_':
	default:
		return false
	}
	return true
}

func isWordCharacters(str string) bool {
	for _, c := range str {
		if !isWordCharacter(c) {
			return false
		}
	}
	return str != ""
}

func parseExprAtom(stream *tokenStream) (*exprType, error) {
	if stream.eat("(") {
		expr, err := parseExpr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.eat(")") {
			return nil, stream.err("Missing closing paren")
		}
		return expr, nil
	}

	s := stream.next()
	if s == nil {
		return nil, stream.err("Unexpected end of content expression")
	}
	if !isWordCharacters(*s) {
		return nil, stream.err("Unexpected token %q", *s)
	}
	types, err := resolveName(stream, *s)
	if err != nil {
		return nil, err
	}
	stream.pos++

	var exprs []*exprType
	for _, typ := range types {
		inline := typ.IsInline()
		if stream.inline == nil {
			stream.inline = &inline
		} else if *stream.inline != inline {
			return nil, stream.err("Mixing inline and block content")
		}
		exprs = append(exprs, &exprType{Type: "name", Value: typ})
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return &exprType{Type: "choice", Exprs: exprs}, nil
}

// The expression tree is compiled to a non-deterministic automaton first.
// An edge with a nil term is an ε-transition, an edge with to == -1 is
// still dangling and gets connected later.
type nfaEdge struct {
	term *NodeType
	to   int
}

func nfa(expr *exprType) [][]*nfaEdge {
	states := [][]*nfaEdge{{}}

	node := func() int {
		states = append(states, nil)
		return len(states) - 1
	}
	edge := func(from, to int, term *NodeType) *nfaEdge {
		e := &nfaEdge{term: term, to: to}
		states[from] = append(states[from], e)
		return e
	}
	connect := func(edges []*nfaEdge, to int) {
		for _, e := range edges {
			e.to = to
		}
	}

	var compile func(expr *exprType, from int) []*nfaEdge
	compile = func(expr *exprType, from int) []*nfaEdge {
		switch expr.Type {
		case "choice":
			var out []*nfaEdge
			for _, e := range expr.Exprs {
				out = append(out, compile(e, from)...)
			}
			return out
		case "seq":
			for i := 0; ; i++ {
				next := compile(expr.Exprs[i], from)
				if i == len(expr.Exprs)-1 {
					return next
				}
				from = node()
				connect(next, from)
			}
		case "star":
			loop := node()
			edge(from, loop, nil)
			connect(compile(expr.Expr, loop), loop)
			return []*nfaEdge{edge(loop, -1, nil)}
		case "plus":
			loop := node()
			connect(compile(expr.Expr, from), loop)
			connect(compile(expr.Expr, loop), loop)
			return []*nfaEdge{edge(loop, -1, nil)}
		case "opt":
			return append([]*nfaEdge{edge(from, -1, nil)}, compile(expr.Expr, from)...)
		case "range":
			cur := from
			for i := 0; i < expr.Min; i++ {
				next := node()
				connect(compile(expr.Expr, cur), next)
				cur = next
			}
			if expr.Max == -1 {
				connect(compile(expr.Expr, cur), cur)
			} else {
				for i := expr.Min; i < expr.Max; i++ {
					next := node()
					edge(cur, next, nil)
					connect(compile(expr.Expr, cur), next)
					cur = next
				}
			}
			return []*nfaEdge{edge(cur, -1, nil)}
		default: // "name"
			return []*nfaEdge{edge(from, -1, expr.Value)}
		}
	}

	connect(compile(expr, 0), node())
	return states
}

// The set of states reachable from the given state through ε-transitions
// alone, in sorted order.
func nullFrom(states [][]*nfaEdge, from int) []int {
	var result []int
	var scan func(n int)
	scan = func(n int) {
		edges := states[n]
		if len(edges) == 1 && edges[0].term == nil {
			scan(edges[0].to)
			return
		}
		result = append(result, n)
		for _, e := range edges {
			if e.term != nil {
				continue
			}
			seen := false
			for _, r := range result {
				if r == e.to {
					seen = true
					break
				}
			}
			if !seen {
				scan(e.to)
			}
		}
	}
	scan(from)
	sort.Ints(result)
	return result
}

func setKey(set []int) string {
	parts := make([]string, len(set))
	for i, n := range set {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// Subset construction, turning the NFA into a DFA whose states are
// ContentMatch values. The grammars in a schema are small, so this needs no
// sophistication.
func dfa(states [][]*nfaEdge) *ContentMatch {
	labeled := map[string]*ContentMatch{}

	var explore func(set []int) *ContentMatch
	explore = func(set []int) *ContentMatch {
		type outEntry struct {
			typ *NodeType
			set []int
		}
		var out []*outEntry
		for _, id := range set {
			for _, e := range states[id] {
				if e.term == nil {
					continue
				}
				var entry *outEntry
				for _, o := range out {
					if o.typ == e.term {
						entry = o
					}
				}
				if entry == nil {
					entry = &outEntry{typ: e.term}
					out = append(out, entry)
				}
				for _, target := range nullFrom(states, e.to) {
					seen := false
					for _, t := range entry.set {
						if t == target {
							seen = true
							break
						}
					}
					if !seen {
						entry.set = append(entry.set, target)
					}
				}
			}
		}

		validEnd := false
		for _, id := range set {
			if id == len(states)-1 {
				validEnd = true
				break
			}
		}
		state := &ContentMatch{ValidEnd: validEnd}
		labeled[setKey(set)] = state
		for _, o := range out {
			sort.Ints(o.set)
			next, ok := labeled[setKey(o.set)]
			if !ok {
				next = explore(o.set)
			}
			state.next = append(state.next, matchEdge{typ: o.typ, next: next})
		}
		return state
	}

	return explore(nullFrom(states, 0))
}
