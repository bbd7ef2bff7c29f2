// Package parser implements YaoXiang's Pratt expression parser plus
// its statement and type grammars (spec.md §4.2).
package parser

import (
	"fmt"

	"yaoxiang/ast"
	"yaoxiang/lexer"
	"yaoxiang/token"
)

// Error is a single parse error with its span; the parser collects
// every error it recovers from and returns the first as the
// compile-blocking failure (spec.md §7).
type Error struct {
	Msg  string
	Span token.Span
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Span, e.Msg) }

// Binding power ladder, low to high (spec.md §4.2).
const (
	bpLowest = iota * 10
	bpAssign
	bpRange
	bpOr
	bpAnd
	bpEq
	bpCmp
	bpAdd
	bpMul
	bpUnary
	bpCall
	bpHighest
)

// Parser turns a token stream into an ast.Module. Statement dispatch
// uses a single token of lookahead with checkpoint/restore so the
// parser can try one interpretation (e.g. a typed function
// definition) and fall back to another (a plain variable binding)
// without duplicating the scan.
type Parser struct {
	toks []token.Token
	pos  int
	errs []error
}

// syncKinds are the fixed recovery points spec.md §4.2 names: `mut`,
// `type`, `use`, `if`, `while`, `for`, `match`, `{`, EOF.
var syncKinds = map[token.Kind]bool{
	token.KwMut:   true,
	token.KwType:  true,
	token.KwUse:   true,
	token.KwIf:    true,
	token.KwWhile: true,
	token.KwFor:   true,
	token.KwMatch: true,
	token.LBrace:  true,
	token.EOF:     true,
}

// Parse tokenizes and parses source text into a module in one step.
func Parse(file, src string) (*ast.Module, error) {
	toks, err := lexer.Tokenize(file, src)
	if err != nil {
		return nil, err
	}
	return ParseTokens(toks)
}

// ParseTokens parses an already-lexed token stream (spec.md §6.2's
// separable `parse(tokens)` phase).
func ParseTokens(toks []token.Token) (*ast.Module, error) {
	p := &Parser{toks: toks}
	mod := p.parseModule()
	if len(p.errs) > 0 {
		return mod, p.errs[0]
	}
	return mod, nil
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }
func (p *Parser) peekKind(offset int) token.Kind {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return token.EOF
	}
	return p.toks[idx].Kind
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind, what string) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	p.errorf("expected %s, got %q", what, p.cur().Text)
	return p.cur(), false
}

func (p *Parser) errorf(format string, args ...any) {
	p.errs = append(p.errs, &Error{Msg: fmt.Sprintf(format, args...), Span: p.cur().Span})
}

// checkpoint/restore let the statement dispatcher speculatively try a
// parse and back out cleanly (spec.md §4.2 `name:` ambiguity).
type checkpoint struct{ pos int }

func (p *Parser) save() checkpoint       { return checkpoint{pos: p.pos} }
func (p *Parser) restore(c checkpoint)   { p.pos = c.pos }

// synchronize advances past the current (failing) statement until a
// recognized recovery point is reached.
func (p *Parser) synchronize() {
	for !syncKinds[p.cur().Kind] {
		if p.at(token.EOF) {
			return
		}
		p.advance()
	}
}

func (p *Parser) parseModule() *ast.Module {
	start := p.cur().Span
	mod := &ast.Module{}
	for !p.at(token.EOF) {
		before := p.pos
		stmt := p.parseStmt()
		if stmt != nil {
			mod.Stmts = append(mod.Stmts, stmt)
		}
		if p.pos == before {
			// Guard against an infinite loop on a token the
			// dispatcher didn't consume.
			p.advance()
		}
	}
	end := p.cur().Span
	mod.Span = start.Join(end)
	return mod
}
