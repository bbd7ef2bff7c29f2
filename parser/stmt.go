package parser

import (
	"yaoxiang/ast"
	"yaoxiang/token"
)

// parseStmt dispatches on the leading token (spec.md §4.2). On error
// it records the error and synchronizes to the next recovery point.
func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur().Kind {
	case token.KwMut:
		return p.parseVarBindingOrRecover(true)
	case token.KwType:
		return p.parseTypeDef()
	case token.KwUse:
		return p.parseUseImport()
	case token.KwWhile:
		return p.parseWhileStmt("")
	case token.KwFor:
		return p.parseForStmt("")
	case token.Ident:
		return p.parseIdentLeadStmt()
	default:
		return p.parseExprStmt()
	}
}

// parseIdentLeadStmt resolves the three-way ambiguity spec.md §4.2
// calls out: `name:` may open a typed variable binding, a typed
// function definition (`name:(T)->R = (p)=>…`), or a method binding
// (`Type.name: Fn = …`). It also enforces the legacy-syntax rejection
// contract: `name(` at statement position is a colon-less call-style
// definition and must be rejected with a pointer at the required form.
func (p *Parser) parseIdentLeadStmt() ast.Stmt {
	// Labeled loop: `label: while ...` / `label: for ...` must win over
	// the generic `name:` binding forms or the label parses as a
	// binding whose "type" is the loop keyword.
	if p.peekKind(1) == token.Colon && (p.peekKind(2) == token.KwWhile || p.peekKind(2) == token.KwFor) {
		return p.parseExprStmt()
	}

	// Method binding: `Type.name: Fn = (params) => body`
	if p.peekKind(1) == token.Dot && p.peekKind(3) == token.Colon {
		return p.parseMethodDef()
	}

	if p.peekKind(1) == token.LParen {
		return p.rejectLegacyCallSyntax()
	}

	if p.peekKind(1) == token.Colon {
		return p.parseVarOrFuncDef()
	}

	if p.peekKind(1) == token.Assign {
		return p.parseUnannotatedBinding()
	}

	return p.parseExprStmt()
}

// rejectLegacyCallSyntax implements the fixed rejection contract in
// spec.md §4.2: `name(params) = body` is refused with a message
// pointing at the colon-less signature.
func (p *Parser) rejectLegacyCallSyntax() ast.Stmt {
	name := p.advance()
	p.errorf("legacy function syntax is not supported: %q(...) = ...; use %q:(Params)->Ret = (params) => body instead", name.Text, name.Text)
	p.synchronize()
	return nil
}

func (p *Parser) parseVarOrFuncDef() ast.Stmt {
	cp := p.save()
	name := p.advance() // ident
	p.advance()         // ':'

	if p.at(token.LParen) {
		if fn := p.tryParseFuncDef(name, cp); fn != nil {
			return fn
		}
		p.restore(cp)
	}

	return p.parseVarBindingFrom(name, false)
}

// tryParseFuncDef attempts `name:(Params)->Ret = (params) => body`.
// Full lookahead over the parenthesized group decides Tuple vs Fn;
// here we already know a `->` must follow the closing paren for this
// to be a function type, so we scan ahead before committing.
func (p *Parser) tryParseFuncDef(name token.Token, cp checkpoint) ast.Stmt {
	scan := p.save()
	depth := 0
	for {
		k := p.cur().Kind
		if k == token.LParen {
			depth++
		} else if k == token.RParen {
			depth--
			if depth == 0 {
				p.advance()
				break
			}
		} else if k == token.EOF {
			p.restore(scan)
			return nil
		}
		p.advance()
	}
	isFuncType := p.at(token.Arrow)
	p.restore(scan)
	if !isFuncType {
		return nil
	}

	fnType := p.parseFuncType()
	if _, ok := p.expect(token.Assign, "'='"); !ok {
		return nil
	}
	lambda := p.parseLambdaBody()
	if lambda == nil {
		return nil
	}

	return &ast.FuncDef{
		Name:   name.Text,
		FnType: fnType,
		Params: lambda.Params,
		Body:   lambda.Body,
		Span:   name.Span.Join(lambda.Span),
	}
}

func (p *Parser) parseMethodDef() ast.Stmt {
	recv := p.advance() // Type
	p.advance()         // '.'
	name := p.advance()
	p.advance() // ':'

	var fnType *ast.FuncType
	if p.at(token.LParen) {
		fnType = p.parseFuncType()
	}
	if _, ok := p.expect(token.Assign, "'='"); !ok {
		return nil
	}
	lambda := p.parseLambdaBody()
	if lambda == nil {
		return nil
	}
	return &ast.MethodDef{
		Receiver: recv.Text,
		Name:     name.Text,
		FnType:   fnType,
		Params:   lambda.Params,
		Body:     lambda.Body,
		Span:     recv.Span.Join(lambda.Span),
	}
}

// parseUnannotatedBinding handles `name = expr` where expr may be a
// lambda (making this a FuncDef the type checker rejects unless
// context provides annotations per spec.md §4.3) or any other value.
// Mutable stays false here: the flag records the `mut` keyword, and
// downstream phases treat a bare re-binding of an existing name as
// assignment rather than a shadowing declaration.
func (p *Parser) parseUnannotatedBinding() ast.Stmt {
	name := p.advance()
	p.advance() // '='

	if p.at(token.LParen) || p.cur().Kind == token.Ident && p.peekKind(1) == token.FatArrow {
		if lambda := p.tryParseLambda(); lambda != nil {
			return &ast.FuncDef{Name: name.Text, Params: lambda.Params, Body: lambda.Body, Span: name.Span.Join(lambda.Span)}
		}
	}

	init := p.parseExpr(bpLowest, bpHighest)
	p.consumeOptionalSemicolon()
	return &ast.VarBinding{Name: name.Text, Init: init, Span: name.Span.Join(p.prevSpan())}
}

func (p *Parser) parseVarBindingOrRecover(mutable bool) ast.Stmt {
	p.advance() // 'mut'
	name, ok := p.expect(token.Ident, "identifier")
	if !ok {
		p.synchronize()
		return nil
	}
	if p.at(token.Colon) {
		p.advance()
	}
	return p.parseVarBindingFrom(name, mutable)
}

func (p *Parser) parseVarBindingFrom(name token.Token, mutable bool) ast.Stmt {
	var typ ast.Type
	if !p.at(token.Assign) {
		typ = p.parseType()
	}
	var init ast.Expr
	if p.at(token.Assign) {
		p.advance()
		init = p.parseExpr(bpLowest, bpHighest)
	}
	p.consumeOptionalSemicolon()
	return &ast.VarBinding{Name: name.Text, Type: typ, Init: init, Mutable: mutable, Span: name.Span.Join(p.prevSpan())}
}

func (p *Parser) parseTypeDef() ast.Stmt {
	start := p.advance() // 'type'
	name, ok := p.expect(token.Ident, "type name")
	if !ok {
		p.synchronize()
		return nil
	}
	var generics []string
	if p.at(token.LBracket) {
		p.advance()
		for !p.at(token.RBracket) && !p.at(token.EOF) {
			g, _ := p.expect(token.Ident, "generic parameter")
			generics = append(generics, g.Text)
			if p.at(token.Comma) {
				p.advance()
			}
		}
		p.expect(token.RBracket, "']'")
	}
	if _, ok := p.expect(token.Assign, "'='"); !ok {
		p.synchronize()
		return nil
	}
	body := p.parseType()
	p.consumeOptionalSemicolon()
	return &ast.TypeDef{Name: name.Text, Generic: generics, Body: body, Span: start.Span.Join(p.prevSpan())}
}

func (p *Parser) parseUseImport() ast.Stmt {
	start := p.advance() // 'use'
	var path []string
	for {
		n, ok := p.expect(token.Ident, "import path segment")
		if !ok {
			p.synchronize()
			return nil
		}
		path = append(path, n.Text)
		if p.at(token.Dot) {
			p.advance()
			continue
		}
		break
	}

	var items []ast.UseItem
	if p.at(token.LBrace) {
		p.advance()
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			item, _ := p.expect(token.Ident, "import item")
			ui := ast.UseItem{Name: item.Text}
			if p.at(token.KwAs) {
				p.advance()
				alias, _ := p.expect(token.Ident, "alias")
				ui.Alias = alias.Text
			}
			items = append(items, ui)
			if p.at(token.Comma) {
				p.advance()
			}
		}
		p.expect(token.RBrace, "'}'")
	}

	alias := ""
	if p.at(token.KwAs) {
		p.advance()
		a, _ := p.expect(token.Ident, "alias")
		alias = a.Text
	}

	p.consumeOptionalSemicolon()
	return &ast.UseImport{Path: path, Items: items, Alias: alias, Span: start.Span.Join(p.prevSpan())}
}

func (p *Parser) parseWhileStmt(label string) ast.Stmt {
	start := p.advance() // 'while'
	cond := p.parseExpr(bpLowest, bpHighest)
	body := p.parseBlock()
	return &ast.WhileStmt{Label: label, Cond: cond, Body: body, Span: start.Span.Join(body.Span)}
}

func (p *Parser) parseForStmt(label string) ast.Stmt {
	start := p.advance() // 'for'
	pat := p.parsePattern()
	p.expect(token.KwIn, "'in'")
	iter := p.parseExpr(bpLowest, bpHighest)
	body := p.parseBlock()
	return &ast.ForStmt{Label: label, Pat: pat, Iter: iter, Body: body, Span: start.Span.Join(body.Span)}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	// Labeled loop: `label: while ...` / `label: for ...`
	if p.at(token.Ident) && p.peekKind(1) == token.Colon &&
		(p.peekKind(2) == token.KwWhile || p.peekKind(2) == token.KwFor) {
		label := p.advance().Text
		p.advance() // ':'
		if p.at(token.KwWhile) {
			return p.parseWhileStmt(label)
		}
		return p.parseForStmt(label)
	}

	start := p.cur().Span
	x := p.parseExpr(bpLowest, bpHighest)
	p.consumeOptionalSemicolon()
	return &ast.ExprStmt{X: x, Span: start.Join(p.prevSpan())}
}

func (p *Parser) consumeOptionalSemicolon() {
	if p.at(token.Semicolon) {
		p.advance()
	}
}

func (p *Parser) prevSpan() token.Span {
	if p.pos == 0 {
		return p.toks[0].Span
	}
	return p.toks[p.pos-1].Span
}
