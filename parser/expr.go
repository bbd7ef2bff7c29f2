package parser

import (
	"yaoxiang/ast"
	"yaoxiang/token"
)

// binaryBP gives the left binding power of each infix operator; 0
// means "not infix". The loop parses each operator's right operand
// with minBP equal to the operator's own binding power, which makes
// `+ - * /` etc. left-associative; assignment instead recurses with
// minBP one below its own power so `a = b = c` nests as `a = (b = c)`.
var binaryBP = map[token.Kind]int{
	token.Assign:   bpAssign,
	token.OrOr:     bpOr,
	token.AndAnd:   bpAnd,
	token.Eq:       bpEq,
	token.Ne:       bpEq,
	token.Lt:       bpCmp,
	token.Le:       bpCmp,
	token.Gt:       bpCmp,
	token.Ge:       bpCmp,
	token.Plus:     bpAdd,
	token.Minus:    bpAdd,
	token.Star:     bpMul,
	token.Slash:    bpMul,
	token.Percent:  bpMul,
	token.DotDot:   bpRange,
	token.DotDotDot: bpRange,
}

// parseExpr is the Pratt loop: parse a prefix, then keep absorbing
// infix/postfix operators whose binding power falls in (minBP, maxBP].
func (p *Parser) parseExpr(minBP, maxBP int) ast.Expr {
	left := p.parsePrefix()

	for {
		k := p.cur().Kind

		if k == token.KwAs {
			if bpUnary <= maxBP && bpUnary > minBP {
				left = p.parseCast(left)
				continue
			}
			break
		}
		if k == token.Question {
			if bpUnary <= maxBP && bpUnary > minBP {
				tok := p.advance()
				left = &ast.Try{X: left, Span: leftSpan(left).Join(tok.Span)}
				continue
			}
			break
		}
		if k == token.LParen {
			if bpCall <= maxBP && bpCall > minBP {
				left = p.parseCallTail(left)
				continue
			}
			break
		}
		if k == token.LBracket {
			if bpCall <= maxBP && bpCall > minBP {
				left = p.parseIndexTail(left)
				continue
			}
			break
		}
		if k == token.Dot {
			if bpCall <= maxBP && bpCall > minBP {
				left = p.parseFieldTail(left)
				continue
			}
			break
		}

		bp, ok := binaryBP[k]
		if !ok || bp <= minBP || bp > maxBP {
			break
		}
		op := p.advance()
		rightMin := bp
		if op.Kind == token.Assign {
			rightMin = bp - 1
		}
		right := p.parseExpr(rightMin, maxBP)
		left = &ast.Binary{Op: op.Kind, Left: left, Right: right, Span: leftSpan(left).Join(exprSpan(right))}
	}

	return left
}

func (p *Parser) parseCast(left ast.Expr) ast.Expr {
	tok := p.advance() // 'as'
	typ := p.parseType()
	return &ast.Cast{X: left, Type: typ, Span: leftSpan(left).Join(tok.Span)}
}

func (p *Parser) parseCallTail(callee ast.Expr) ast.Expr {
	p.advance() // '('
	var args []ast.Expr
	for !p.at(token.RParen) && !p.at(token.EOF) {
		args = append(args, p.parseExpr(bpLowest, bpHighest))
		if p.at(token.Comma) {
			p.advance()
		}
	}
	close, _ := p.expect(token.RParen, "')'")
	return &ast.Call{Callee: callee, Args: args, Span: leftSpan(callee).Join(close.Span)}
}

func (p *Parser) parseIndexTail(x ast.Expr) ast.Expr {
	p.advance() // '['
	idx := p.parseExpr(bpLowest, bpHighest)
	close, _ := p.expect(token.RBracket, "']'")
	return &ast.Index{X: x, Index: idx, Span: leftSpan(x).Join(close.Span)}
}

func (p *Parser) parseFieldTail(x ast.Expr) ast.Expr {
	p.advance() // '.'
	name, _ := p.expect(token.Ident, "field name")
	return &ast.Field{X: x, Name: name.Text, Span: leftSpan(x).Join(name.Span)}
}

// parsePrefix handles literals, identifiers, unary operators, and the
// grouping/tuple/list/block/if/match/while/for/break/continue/return
// forms that start an expression.
func (p *Parser) parsePrefix() ast.Expr {
	tok := p.cur()
	switch tok.Kind {
	case token.IntLit:
		p.advance()
		return &ast.IntLit{Value: tok.Literal.Int, Big: tok.Literal.Big, Span: tok.Span}
	case token.FloatLit:
		p.advance()
		return &ast.FloatLit{Value: tok.Literal.Float, Span: tok.Span}
	case token.CharLit:
		p.advance()
		return &ast.CharLit{Value: tok.Literal.Char, Span: tok.Span}
	case token.StringLit:
		p.advance()
		return &ast.StringLit{Value: tok.Literal.Str, Span: tok.Span}
	case token.BoolLit:
		p.advance()
		return &ast.BoolLit{Value: tok.Literal.Bool, Span: tok.Span}
	case token.VoidLit:
		p.advance()
		return &ast.VoidLit{Span: tok.Span}
	case token.Minus, token.Bang:
		p.advance()
		x := p.parseExpr(bpUnary, bpHighest)
		return &ast.Unary{Op: tok.Kind, X: x, Span: tok.Span.Join(exprSpan(x))}
	case token.LParen:
		return p.parseParenOrTupleOrLambda()
	case token.LBracket:
		return p.parseListExpr()
	case token.LBrace:
		b := p.parseBlock()
		return &ast.BlockExpr{Block: b, Span: b.Span}
	case token.KwIf:
		return p.parseIfExpr()
	case token.KwMatch:
		return p.parseMatchExpr()
	case token.KwWhile:
		return p.parseWhileExpr("")
	case token.KwFor:
		return p.parseForExpr("")
	case token.KwBreak:
		return p.parseBreak()
	case token.KwContinue:
		p.advance()
		cont := &ast.Continue{Span: tok.Span}
		if p.at(token.Ident) {
			lbl := p.advance()
			cont.Label = lbl.Text
			cont.Span = cont.Span.Join(lbl.Span)
		}
		return cont
	case token.KwReturn:
		return p.parseReturn()
	case token.Ident:
		// Labeled loop in expression position: `label: while ...` /
		// `label: for ...` (spec.md §3.2 "while and for with optional
		// labels").
		if p.peekKind(1) == token.Colon && (p.peekKind(2) == token.KwWhile || p.peekKind(2) == token.KwFor) {
			label := p.advance().Text
			p.advance() // ':'
			if p.at(token.KwWhile) {
				return p.parseWhileExpr(label)
			}
			return p.parseForExpr(label)
		}
		if lambda := p.tryParseLambda(); lambda != nil {
			return lambda
		}
		p.advance()
		return &ast.Ident{Name: tok.Text, Span: tok.Span}
	default:
		p.errorf("unexpected token %q in expression", tok.Text)
		p.advance()
		return &ast.VoidLit{Span: tok.Span}
	}
}

// parseParenOrTupleOrLambda disambiguates `(expr)`, `(a, b)` tuples,
// and `(params) => body` lambdas by scanning to the matching `)` and
// checking for a following `=>` before committing.
func (p *Parser) parseParenOrTupleOrLambda() ast.Expr {
	if lambda := p.tryParseLambda(); lambda != nil {
		return lambda
	}

	start := p.advance() // '('
	if p.at(token.RParen) {
		close := p.advance()
		return &ast.TupleExpr{Span: start.Span.Join(close.Span)}
	}

	first := p.parseExpr(bpLowest, bpHighest)
	if p.at(token.Comma) {
		elems := []ast.Expr{first}
		for p.at(token.Comma) {
			p.advance()
			if p.at(token.RParen) {
				break
			}
			elems = append(elems, p.parseExpr(bpLowest, bpHighest))
		}
		close, _ := p.expect(token.RParen, "')'")
		return &ast.TupleExpr{Elems: elems, Span: start.Span.Join(close.Span)}
	}

	p.expect(token.RParen, "')'")
	return first
}

func (p *Parser) parseListExpr() ast.Expr {
	start := p.advance() // '['
	var elems []ast.Expr
	for !p.at(token.RBracket) && !p.at(token.EOF) {
		elems = append(elems, p.parseExpr(bpLowest, bpHighest))
		if p.at(token.Comma) {
			p.advance()
		}
	}
	close, _ := p.expect(token.RBracket, "']'")
	return &ast.ListExpr{Elems: elems, Span: start.Span.Join(close.Span)}
}

// tryParseLambda attempts `(params) => body` or `x => body`. Returns
// nil without consuming input if the lookahead doesn't confirm a
// lambda, so callers can fall back to tuple/paren/ident parsing.
func (p *Parser) tryParseLambda() *ast.Lambda {
	cp := p.save()

	if p.at(token.Ident) && p.peekKind(1) == token.FatArrow {
		name := p.advance()
		p.advance() // '=>'
		body := p.parseLambdaTail()
		return &ast.Lambda{Params: []ast.Param{{Name: name.Text, Span: name.Span}}, Body: body, Span: name.Span.Join(body.Span)}
	}

	if !p.at(token.LParen) {
		return nil
	}

	start := p.cur()
	depth := 0
	scan := p.save()
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
			p.restore(cp)
			return nil
		}
		p.advance()
	}
	if p.cur().Kind != token.FatArrow {
		p.restore(cp)
		return nil
	}
	p.restore(scan)

	params := p.parseParamList()
	p.advance() // '=>'
	body := p.parseLambdaTail()
	return &ast.Lambda{Params: params, Body: body, Span: start.Span.Join(body.Span)}
}

// parseLambdaBody parses the `(params) => body` form required after a
// typed function-definition signature; unlike tryParseLambda it is
// not speculative because the caller has already committed.
func (p *Parser) parseLambdaBody() *ast.Lambda {
	start := p.cur()
	params := p.parseParamList()
	if _, ok := p.expect(token.FatArrow, "'=>'"); !ok {
		return nil
	}
	body := p.parseLambdaTail()
	return &ast.Lambda{Params: params, Body: body, Span: start.Span.Join(body.Span)}
}

func (p *Parser) parseParamList() []ast.Param {
	p.expect(token.LParen, "'('")
	var params []ast.Param
	for !p.at(token.RParen) && !p.at(token.EOF) {
		name, _ := p.expect(token.Ident, "parameter name")
		param := ast.Param{Name: name.Text, Span: name.Span}
		if p.at(token.Colon) {
			p.advance()
			param.Type = p.parseType()
		}
		params = append(params, param)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	p.expect(token.RParen, "')'")
	return params
}

// parseLambdaTail accepts either a `{ ... }` block body or a bare
// expression body, wrapping the latter in a synthetic trailing block.
func (p *Parser) parseLambdaTail() *ast.Block {
	if p.at(token.LBrace) {
		return p.parseBlock()
	}
	x := p.parseExpr(bpLowest, bpHighest)
	return &ast.Block{Trailing: x, Span: exprSpan(x)}
}

func (p *Parser) parseBlock() *ast.Block {
	start, _ := p.expect(token.LBrace, "'{'")
	blk := &ast.Block{Span: start.Span}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.isTrailingExprStart() {
			x := p.parseExpr(bpLowest, bpHighest)
			if p.at(token.RBrace) {
				blk.Trailing = x
				break
			}
			blk.Stmts = append(blk.Stmts, &ast.ExprStmt{X: x, Span: exprSpan(x)})
			p.consumeOptionalSemicolon()
			continue
		}
		before := p.pos
		stmt := p.parseStmt()
		if stmt != nil {
			blk.Stmts = append(blk.Stmts, stmt)
		}
		if p.pos == before {
			p.advance()
		}
	}
	close, _ := p.expect(token.RBrace, "'}'")
	blk.Span = blk.Span.Join(close.Span)
	return blk
}

// isTrailingExprStart reports whether the current position can only
// be reached by parseStmt falling through to parseExprStmt anyway;
// kept separate so future statement-leading keywords are easy to
// exclude from trailing-expression treatment.
func (p *Parser) isTrailingExprStart() bool {
	switch p.cur().Kind {
	case token.KwMut, token.KwType, token.KwUse, token.KwWhile, token.KwFor:
		return false
	case token.Ident:
		return !(p.peekKind(1) == token.Colon || p.peekKind(1) == token.Assign || p.peekKind(1) == token.LParen && p.isLegacyDefAhead())
	}
	return true
}

func (p *Parser) isLegacyDefAhead() bool {
	// A bare `name(` followed eventually by `) =` at statement
	// position is the rejected legacy form; inside expression
	// position (`foo(1,2)` as a call) it is always valid, so this
	// only matters for parseStmt's own dispatch, not here.
	return false
}

func (p *Parser) parseIfExpr() ast.Expr {
	start := p.advance() // 'if'
	cond := p.parseExpr(bpLowest, bpHighest)
	then := p.parseBlock()
	ifx := &ast.IfExpr{Cond: cond, Then: then, Span: start.Span.Join(then.Span)}
	for p.at(token.KwElif) {
		p.advance()
		ec := p.parseExpr(bpLowest, bpHighest)
		eb := p.parseBlock()
		ifx.Elifs = append(ifx.Elifs, ast.ElifClause{Cond: ec, Body: eb})
		ifx.Span = ifx.Span.Join(eb.Span)
	}
	if p.at(token.KwElse) {
		p.advance()
		eb := p.parseBlock()
		ifx.Else = eb
		ifx.Span = ifx.Span.Join(eb.Span)
	}
	return ifx
}

func (p *Parser) parseMatchExpr() ast.Expr {
	start := p.advance() // 'match'
	x := p.parseExpr(bpLowest, bpHighest)
	p.expect(token.LBrace, "'{'")
	mx := &ast.MatchExpr{X: x}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		pat := p.parsePattern()
		arm := ast.MatchArm{Pat: pat}
		if p.at(token.KwIf) {
			p.advance()
			arm.Guard = p.parseExpr(bpLowest, bpHighest)
		}
		p.expect(token.FatArrow, "'=>'")
		arm.Body = p.parseExpr(bpLowest, bpHighest)
		mx.Arms = append(mx.Arms, arm)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	close, _ := p.expect(token.RBrace, "'}'")
	mx.Span = start.Span.Join(close.Span)
	return mx
}

func (p *Parser) parseWhileExpr(label string) ast.Expr {
	start := p.advance() // 'while'
	cond := p.parseExpr(bpLowest, bpHighest)
	body := p.parseBlock()
	return &ast.WhileExpr{Label: label, Cond: cond, Body: body, Span: start.Span.Join(body.Span)}
}

func (p *Parser) parseForExpr(label string) ast.Expr {
	start := p.advance() // 'for'
	pat := p.parsePattern()
	p.expect(token.KwIn, "'in'")
	iter := p.parseExpr(bpLowest, bpHighest)
	body := p.parseBlock()
	return &ast.ForExpr{Label: label, Pat: pat, Iter: iter, Body: body, Span: start.Span.Join(body.Span)}
}

func (p *Parser) parseBreak() ast.Expr {
	start := p.advance() // 'break'
	brk := &ast.Break{Span: start.Span}
	if p.at(token.Ident) {
		lbl := p.advance()
		brk.Label = lbl.Text
		brk.Span = brk.Span.Join(lbl.Span)
	}
	if p.canStartExpr() {
		v := p.parseExpr(bpLowest, bpHighest)
		brk.Value = v
		brk.Span = brk.Span.Join(exprSpan(v))
	}
	return brk
}

func (p *Parser) canStartExpr() bool {
	switch p.cur().Kind {
	case token.RBrace, token.Semicolon, token.EOF, token.Comma, token.RParen, token.RBracket:
		return false
	}
	return true
}

func (p *Parser) parseReturn() ast.Expr {
	start := p.advance() // 'return'
	ret := &ast.Return{Span: start.Span}
	if p.canStartExpr() {
		v := p.parseExpr(bpLowest, bpHighest)
		ret.Value = v
		ret.Span = ret.Span.Join(exprSpan(v))
	}
	return ret
}

// leftSpan/exprSpan recover the span of an already-built expr node
// without adding a Span() method to every type in ast (the teacher's
// flat-struct style doesn't use node interfaces for that).
func leftSpan(e ast.Expr) token.Span { return exprSpan(e) }

func exprSpan(e ast.Expr) token.Span {
	switch n := e.(type) {
	case *ast.IntLit:
		return n.Span
	case *ast.FloatLit:
		return n.Span
	case *ast.CharLit:
		return n.Span
	case *ast.StringLit:
		return n.Span
	case *ast.BoolLit:
		return n.Span
	case *ast.VoidLit:
		return n.Span
	case *ast.Ident:
		return n.Span
	case *ast.Binary:
		return n.Span
	case *ast.Unary:
		return n.Span
	case *ast.Call:
		return n.Span
	case *ast.Index:
		return n.Span
	case *ast.Field:
		return n.Span
	case *ast.Cast:
		return n.Span
	case *ast.Try:
		return n.Span
	case *ast.TupleExpr:
		return n.Span
	case *ast.ListExpr:
		return n.Span
	case *ast.BlockExpr:
		return n.Span
	case *ast.IfExpr:
		return n.Span
	case *ast.MatchExpr:
		return n.Span
	case *ast.WhileExpr:
		return n.Span
	case *ast.ForExpr:
		return n.Span
	case *ast.Break:
		return n.Span
	case *ast.Continue:
		return n.Span
	case *ast.Return:
		return n.Span
	case *ast.Lambda:
		return n.Span
	default:
		return token.Span{}
	}
}
