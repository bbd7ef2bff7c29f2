package parser

import (
	"yaoxiang/ast"
	"yaoxiang/token"
)

// parseType parses a single type annotation. Primitive names (`Int`,
// `Float`, ...) are keywords per spec.md §4.1; everything else falls
// through to a bare name, a compound form, or a parenthesized
// tuple-or-function type.
func (p *Parser) parseType() ast.Type {
	tok := p.cur()
	switch tok.Kind {
	case token.KwInt:
		p.advance()
		return &ast.IntType{Bits: 64, Span: tok.Span}
	case token.KwFloat:
		p.advance()
		return &ast.FloatType{Bits: 64, Span: tok.Span}
	case token.KwBool:
		p.advance()
		return &ast.BoolType{Span: tok.Span}
	case token.KwChar:
		p.advance()
		return &ast.CharType{Span: tok.Span}
	case token.KwString:
		p.advance()
		return &ast.StringType{Span: tok.Span}
	case token.KwBytes:
		p.advance()
		return &ast.BytesType{Span: tok.Span}
	case token.KwVoid:
		p.advance()
		return &ast.VoidType{Span: tok.Span}
	case token.KwList:
		return p.parseListType()
	case token.KwDict:
		return p.parseDictType()
	case token.KwStruct:
		return p.parseStructType()
	case token.Ident:
		return p.parseNameOrGenericType()
	case token.LParen:
		return p.parseParenType()
	case token.Pipe:
		return p.parseUnionType()
	default:
		p.errorf("expected type, got %q", tok.Text)
		p.advance()
		return &ast.VoidType{Span: tok.Span}
	}
}

func (p *Parser) parseListType() ast.Type {
	start := p.advance() // 'List'
	p.expect(token.LBracket, "'['")
	elem := p.parseType()
	close, _ := p.expect(token.RBracket, "']'")
	return &ast.ListType{Elem: elem, Span: start.Span.Join(close.Span)}
}

func (p *Parser) parseDictType() ast.Type {
	start := p.advance() // 'Dict'
	p.expect(token.LBracket, "'['")
	key := p.parseType()
	p.expect(token.Comma, "','")
	val := p.parseType()
	close, _ := p.expect(token.RBracket, "']'")
	return &ast.DictType{Key: key, Val: val, Span: start.Span.Join(close.Span)}
}

func (p *Parser) parseStructType() ast.Type {
	start := p.advance() // 'struct'
	name := ""
	if p.at(token.Ident) {
		n := p.advance()
		name = n.Text
	}
	p.expect(token.LBrace, "'{'")
	var fields []ast.StructField
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		fn, _ := p.expect(token.Ident, "field name")
		p.expect(token.Colon, "':'")
		ft := p.parseType()
		fields = append(fields, ast.StructField{Name: fn.Text, Type: ft})
		if p.at(token.Comma) {
			p.advance()
		}
	}
	close, _ := p.expect(token.RBrace, "'}'")
	return &ast.StructType{Name: name, Fields: fields, Span: start.Span.Join(close.Span)}
}

// parseUnionType parses `| Variant1(T1, T2) | Variant2 { a: T } | Variant3`
// sum-type bodies (spec.md §3.2).
func (p *Parser) parseUnionType() ast.Type {
	start := p.cur()
	var variants []ast.UnionVariant
	for p.at(token.Pipe) {
		p.advance()
		name, _ := p.expect(token.Ident, "variant name")
		v := ast.UnionVariant{Name: name.Text}
		if p.at(token.LParen) {
			p.advance()
			for !p.at(token.RParen) && !p.at(token.EOF) {
				v.Positional = append(v.Positional, p.parseType())
				if p.at(token.Comma) {
					p.advance()
				}
			}
			p.expect(token.RParen, "')'")
		} else if p.at(token.LBrace) {
			p.advance()
			for !p.at(token.RBrace) && !p.at(token.EOF) {
				fn, _ := p.expect(token.Ident, "field name")
				p.expect(token.Colon, "':'")
				ft := p.parseType()
				v.Named = append(v.Named, ast.StructField{Name: fn.Text, Type: ft})
				if p.at(token.Comma) {
					p.advance()
				}
			}
			p.expect(token.RBrace, "'}'")
		}
		variants = append(variants, v)
	}
	return &ast.UnionType{Variants: variants, Span: start.Span.Join(p.prevSpan())}
}

// parseNameOrGenericType parses `Name` or `Name[Arg1, Arg2]`.
func (p *Parser) parseNameOrGenericType() ast.Type {
	name := p.advance()
	if !p.at(token.LBracket) {
		return &ast.NameType{Name: name.Text, Span: name.Span}
	}
	p.advance() // '['
	var args []ast.Type
	for !p.at(token.RBracket) && !p.at(token.EOF) {
		args = append(args, p.parseType())
		if p.at(token.Comma) {
			p.advance()
		}
	}
	close, _ := p.expect(token.RBracket, "']'")
	return &ast.GenericType{Name: name.Text, Args: args, Span: name.Span.Join(close.Span)}
}

// parseParenType commits to Tuple vs Fn vs parenthesized type only
// after the closing `)` and the presence/absence of `->` (spec.md
// §4.2's type-annotation lookahead rule): `(T1, T2) -> R` is a
// function type, `(T1, T2)` a tuple, and `(T)` just parenthesizes T.
func (p *Parser) parseParenType() ast.Type {
	start := p.advance() // '('
	var elems []ast.Type
	for !p.at(token.RParen) && !p.at(token.EOF) {
		elems = append(elems, p.parseType())
		if p.at(token.Comma) {
			p.advance()
		}
	}
	close, _ := p.expect(token.RParen, "')'")
	if p.at(token.Arrow) {
		p.advance()
		ret := p.parseType()
		return &ast.FuncType{Params: elems, Ret: ret, Span: start.Span.Join(typeSpanOf(ret))}
	}
	if len(elems) == 1 {
		return elems[0]
	}
	return &ast.TupleType{Elems: elems, Span: start.Span.Join(close.Span)}
}

// parseFuncType parses `(T1, T2) -> Ret` where the caller has already
// committed to a function-type reading (tryParseFuncDef scans ahead
// for the `->`); a missing arrow degrades to an empty-return signature.
func (p *Parser) parseFuncType() *ast.FuncType {
	start := p.advance() // '('
	var params []ast.Type
	for !p.at(token.RParen) && !p.at(token.EOF) {
		params = append(params, p.parseType())
		if p.at(token.Comma) {
			p.advance()
		}
	}
	p.expect(token.RParen, "')'")
	if !p.at(token.Arrow) {
		// Caller expected a function type (tryParseFuncDef only calls
		// this after confirming '->' follows); tolerate a bare tuple
		// here too so parseType's direct LParen case degrades
		// gracefully.
		return &ast.FuncType{Params: params, Span: start.Span}
	}
	p.advance() // '->'
	ret := p.parseType()
	return &ast.FuncType{Params: params, Ret: ret, Span: start.Span.Join(typeSpanOf(ret))}
}

func typeSpanOf(t ast.Type) token.Span {
	switch n := t.(type) {
	case *ast.NameType:
		return n.Span
	case *ast.IntType:
		return n.Span
	case *ast.FloatType:
		return n.Span
	case *ast.BoolType:
		return n.Span
	case *ast.CharType:
		return n.Span
	case *ast.StringType:
		return n.Span
	case *ast.BytesType:
		return n.Span
	case *ast.VoidType:
		return n.Span
	case *ast.ListType:
		return n.Span
	case *ast.DictType:
		return n.Span
	case *ast.TupleType:
		return n.Span
	case *ast.FuncType:
		return n.Span
	case *ast.GenericType:
		return n.Span
	case *ast.StructType:
		return n.Span
	case *ast.UnionType:
		return n.Span
	default:
		return token.Span{}
	}
}
