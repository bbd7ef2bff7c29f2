package parser

import (
	"yaoxiang/ast"
	"yaoxiang/token"
)

// parsePattern parses a single match-arm or for-binding pattern:
// literals, `_`, a bare identifier binding, a tuple pattern, or a
// struct pattern `Name { field, other: pat }` (spec.md §4.5).
func (p *Parser) parsePattern() ast.Pattern {
	tok := p.cur()
	if tok.Kind == token.Ident && tok.Text == "_" {
		p.advance()
		return &ast.WildcardPattern{Span: tok.Span}
	}
	switch tok.Kind {
	case token.IntLit, token.FloatLit, token.CharLit, token.StringLit, token.BoolLit:
		lit := p.parseExpr(bpLowest, bpUnary)
		return &ast.LitPattern{Value: lit, Span: exprSpan(lit)}
	case token.Minus:
		lit := p.parseExpr(bpLowest, bpUnary)
		return &ast.LitPattern{Value: lit, Span: exprSpan(lit)}
	case token.LParen:
		return p.parseTuplePattern()
	case token.Ident:
		if p.peekKind(1) == token.LBrace {
			return p.parseStructPattern()
		}
		p.advance()
		return &ast.IdentPattern{Name: tok.Text, Span: tok.Span}
	default:
		p.errorf("expected pattern, got %q", tok.Text)
		p.advance()
		return &ast.WildcardPattern{Span: tok.Span}
	}
}

func (p *Parser) parseTuplePattern() ast.Pattern {
	start := p.advance() // '('
	var elems []ast.Pattern
	for !p.at(token.RParen) && !p.at(token.EOF) {
		elems = append(elems, p.parsePattern())
		if p.at(token.Comma) {
			p.advance()
		}
	}
	close, _ := p.expect(token.RParen, "')'")
	return &ast.TuplePattern{Elems: elems, Span: start.Span.Join(close.Span)}
}

func (p *Parser) parseStructPattern() ast.Pattern {
	name := p.advance()
	p.advance() // '{'
	var fields []ast.FieldPattern
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		fn, _ := p.expect(token.Ident, "field name")
		fp := ast.FieldPattern{Name: fn.Text, Pat: &ast.IdentPattern{Name: fn.Text, Span: fn.Span}}
		if p.at(token.Colon) {
			p.advance()
			fp.Pat = p.parsePattern()
		}
		fields = append(fields, fp)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	close, _ := p.expect(token.RBrace, "'}'")
	return &ast.StructPattern{Name: name.Text, Fields: fields, Span: name.Span.Join(close.Span)}
}
