// Package tags compiles tag expressions into selectors that decide whether a
// feature is eligible to run.
//
// Expression syntax:
//
//	@smoke and not @slow
//	(@api || @ui) && !@wip
//	@smoke,@regression        (comma is or)
//	~@flaky                   (tilde is not)
//
// Tag names may be written with or without the leading @. Several expressions
// passed to Parse are combined with and.
package tags

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// IgnoreTag marks features that never run unless an expression names it
const IgnoreTag = "ignore"

// ErrInvalidExpression wraps every parse failure
var ErrInvalidExpression = errors.New("invalid tag expression")

// Selector is a predicate over a feature's declared tags
type Selector interface {
	Matches(tags []string) bool
	String() string
}

// Parse compiles one or more raw expressions into a Selector.
// Empty input yields a selector that accepts everything not tagged @ignore.
func Parse(exprs ...string) (Selector, error) {
	var nodes []node
	var sources []string
	mentionsIgnore := false

	for _, raw := range exprs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p := &parser{tokens: tokenize(raw), src: raw}
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.pos < len(p.tokens) {
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidExpression, p.tokens[p.pos], raw)
		}
		if n.mentions(IgnoreTag) {
			mentionsIgnore = true
		}
		nodes = append(nodes, n)
		sources = append(sources, raw)
	}

	var root node = allNode{}
	if len(nodes) > 0 {
		root = andNode(nodes)
	}
	if !mentionsIgnore {
		root = andNode{root, notNode{tagNode(IgnoreTag)}}
	}

	return &selector{root: root, source: strings.Join(sources, " && ")}, nil
}

// MustParse is Parse that panics on error
func MustParse(exprs ...string) Selector {
	s, err := Parse(exprs...)
	if err != nil {
		panic(err)
	}
	return s
}

type selector struct {
	root   node
	source string
}

func (s *selector) Matches(tags []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[normalize(t)] = struct{}{}
	}
	return s.root.eval(set)
}

func (s *selector) String() string {
	if s.source == "" {
		return "*"
	}
	return s.source
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "@"))
}

type node interface {
	eval(set map[string]struct{}) bool
	mentions(tag string) bool
}

type allNode struct{}

func (allNode) eval(map[string]struct{}) bool { return true }
func (allNode) mentions(string) bool          { return false }

type tagNode string

func (n tagNode) eval(set map[string]struct{}) bool {
	_, ok := set[string(n)]
	return ok
}

func (n tagNode) mentions(tag string) bool { return string(n) == tag }

type notNode struct{ inner node }

func (n notNode) eval(set map[string]struct{}) bool { return !n.inner.eval(set) }
func (n notNode) mentions(tag string) bool          { return n.inner.mentions(tag) }

type andNode []node

func (n andNode) eval(set map[string]struct{}) bool {
	for _, c := range n {
		if !c.eval(set) {
			return false
		}
	}
	return true
}

func (n andNode) mentions(tag string) bool {
	for _, c := range n {
		if c.mentions(tag) {
			return true
		}
	}
	return false
}

type orNode []node

func (n orNode) eval(set map[string]struct{}) bool {
	for _, c := range n {
		if c.eval(set) {
			return true
		}
	}
	return false
}

func (n orNode) mentions(tag string) bool {
	for _, c := range n {
		if c.mentions(tag) {
			return true
		}
	}
	return false
}

const (
	tokAnd   = "&&"
	tokOr    = "||"
	tokNot   = "!"
	tokOpen  = "("
	tokClose = ")"
)

func tokenize(src string) []string {
	var tokens []string
	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')':
			tokens = append(tokens, string(r))
			i++
		case r == ',':
			tokens = append(tokens, tokOr)
			i++
		case r == '!' || r == '~':
			tokens = append(tokens, tokNot)
			i++
		case r == '&' && i+1 < len(runes) && runes[i+1] == '&':
			tokens = append(tokens, tokAnd)
			i += 2
		case r == '|' && i+1 < len(runes) && runes[i+1] == '|':
			tokens = append(tokens, tokOr)
			i += 2
		default:
			start := i
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
			if i == start {
				// stray character, let the parser report it
				tokens = append(tokens, string(r))
				i++
				continue
			}
			word := string(runes[start:i])
			switch strings.ToLower(word) {
			case "and":
				tokens = append(tokens, tokAnd)
			case "or":
				tokens = append(tokens, tokOr)
			case "not":
				tokens = append(tokens, tokNot)
			default:
				tokens = append(tokens, word)
			}
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@_-.:=/", r)
}

type parser struct {
	tokens []string
	pos    int
	src    string
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := orNode{left}
	for p.peek() == tokOr {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return terms, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := andNode{left}
	for p.peek() == tokAnd {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return terms, nil
}

func (p *parser) parseUnary() (node, error) {
	tok := p.peek()
	switch tok {
	case "":
		return nil, fmt.Errorf("%w: unexpected end of %q", ErrInvalidExpression, p.src)
	case tokNot:
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	case tokOpen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != tokClose {
			return nil, fmt.Errorf("%w: missing ) in %q", ErrInvalidExpression, p.src)
		}
		p.pos++
		return inner, nil
	case tokClose, tokAnd, tokOr:
		return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidExpression, tok, p.src)
	}

	name := normalize(tok)
	if name == "" || !isTagName(name) {
		return nil, fmt.Errorf("%w: bad tag %q in %q", ErrInvalidExpression, tok, p.src)
	}
	p.pos++
	return tagNode(name), nil
}

func isTagName(s string) bool {
	for _, r := range s {
		if !isWordRune(r) || r == '@' {
			return false
		}
	}
	return true
}
