package types

import (
	"yaoxiang/ast"
	"yaoxiang/token"
)

func (c *Checker) unify(span token.Span, a, b *Mono) *Mono {
	if err := unify(c.subst, a, b); err != nil {
		c.errorf(span, "%s", err.Error())
	}
	return a
}

func (c *Checker) checkStmt(stmt ast.Stmt, sc *scope) {
	switch s := stmt.(type) {
	case *ast.VarBinding:
		c.checkVarBinding(s, sc)
	case *ast.FuncDef:
		c.checkFuncBody(s.Name, s.FnType, s.Params, s.Body, sc)
	case *ast.MethodDef:
		name := s.Receiver + "_" + s.Name
		params := s.Params
		if len(params) == 0 || params[0].Name != "self" {
			params = append([]ast.Param{{Name: "self", Type: &ast.NameType{Name: s.Receiver}}}, params...)
		}
		c.checkFuncBody(name, s.FnType, params, s.Body, sc)
	case *ast.TypeDef:
		// Declarations were already registered in the pre-pass.
	case *ast.UseImport:
		// Import resolution is a linking concern, not a typing one;
		// the names it introduces are out of scope for this checker
		// (spec.md's Non-goals exclude cross-module resolution here).
	case *ast.ExprStmt:
		c.checkExpr(s.X, sc)
	case *ast.WhileStmt:
		c.checkWhile(s.Cond, s.Body, sc)
	case *ast.ForStmt:
		c.checkFor(s.Pat, s.Iter, s.Body, sc)
	}
}

func (c *Checker) checkVarBinding(s *ast.VarBinding, sc *scope) {
	// `name = expr` over a name that is already bound (and carries no
	// `mut` or annotation of its own) is assignment to the existing
	// binding, not a shadowing declaration — the distinction that keeps
	// `x = x + 1` inside a loop updating the loop variable (spec.md
	// §4.4 "assignment name = expr").
	if s.Type == nil && !s.Mutable {
		if existing, ok := sc.lookup(s.Name); ok {
			if s.Init != nil {
				initTy := c.checkExprExpect(s.Init, sc, existing)
				c.unify(s.Span, existing, initTy)
			}
			return
		}
	}

	var declared *Mono
	if s.Type != nil {
		declared = c.resolveTypeExpr(s.Type)
	}
	var initTy *Mono
	if s.Init != nil {
		initTy = c.checkExprExpect(s.Init, sc, declared)
		if declared != nil {
			c.unify(s.Span, declared, initTy)
		}
	}
	ty := declared
	if ty == nil {
		ty = initTy
	}
	if ty == nil {
		ty = c.freshVar()
	}
	sc.define(s.Name, ty)
}

// checkFuncBody checks a function/method definition against its
// already-registered signature, merging annotation parameter types
// positionally with the lambda's bare parameter names (spec.md §4.3:
// "Parameters without a declared annotation inside a fully-annotated
// function type are permitted").
func (c *Checker) checkFuncBody(name string, fnType *ast.FuncType, params []ast.Param, body *ast.Block, sc *scope) {
	sig, ok := c.funcs[name]
	if !ok {
		sig = &FuncSig{Name: name}
	}

	inner := newScope(sc)
	for i, p := range params {
		var pty *Mono
		switch {
		case p.Type != nil:
			pty = c.resolveTypeExpr(p.Type)
		case fnType != nil && i < len(sig.Params):
			pty = sig.Params[i]
		case fnType == nil:
			c.errorf(p.Span, "parameter %q has no type annotation and no enclosing function-type context", p.Name)
			pty = c.freshVar()
		default:
			pty = c.freshVar()
		}
		inner.define(p.Name, pty)
	}

	prevRet := c.curRet
	c.curRet = sig.Ret
	bodyTy := c.checkBlockExpect(body, inner, sig.Ret)
	if sig.Ret != nil {
		c.unify(body.Span, sig.Ret, bodyTy)
	}
	c.curRet = prevRet
}

func (c *Checker) checkBlock(b *ast.Block, outer *scope) *Mono {
	return c.checkBlockExpect(b, outer, nil)
}

// checkBlockExpect checks a block whose trailing expression has a
// known expected type (the enclosing function's declared return type),
// so a trailing lambda with bare parameters can merge against it
// (spec.md §4.3).
func (c *Checker) checkBlockExpect(b *ast.Block, outer *scope, expected *Mono) *Mono {
	sc := newScope(outer)
	for _, st := range b.Stmts {
		c.checkStmt(st, sc)
	}
	if b.Trailing != nil {
		return c.checkExprExpect(b.Trailing, sc, expected)
	}
	return TVoid()
}

func (c *Checker) checkWhile(cond ast.Expr, body *ast.Block, sc *scope) {
	c.unify(token.Span{}, TBool(), c.checkExpr(cond, sc))
	c.checkBlock(body, sc)
}

func (c *Checker) checkFor(pat ast.Pattern, iter ast.Expr, body *ast.Block, sc *scope) {
	iterTy := c.checkExpr(iter, sc)
	elemTy := c.freshVar()
	c.unify(token.Span{}, TList(elemTy), iterTy)
	inner := newScope(sc)
	c.bindPattern(pat, elemTy, inner)
	c.checkBlock(body, inner)
}

// bindPattern introduces the names a pattern binds into sc, unifying
// literal/struct-shaped patterns against the scrutinee type as it
// goes (spec.md §4.3's "pattern matching" and §9's exhaustiveness
// note — full exhaustiveness checking is handled in checkMatch, not
// here).
func (c *Checker) bindPattern(pat ast.Pattern, ty *Mono, sc *scope) {
	switch p := pat.(type) {
	case *ast.WildcardPattern:
	case *ast.IdentPattern:
		sc.define(p.Name, ty)
	case *ast.LitPattern:
		lit := c.checkExpr(p.Value, sc)
		c.unify(p.Span, lit, ty)
	case *ast.TuplePattern:
		elemTys := make([]*Mono, len(p.Elems))
		for i := range elemTys {
			elemTys[i] = c.freshVar()
		}
		c.unify(p.Span, TTuple(elemTys...), ty)
		for i, e := range p.Elems {
			c.bindPattern(e, elemTys[i], sc)
		}
	case *ast.StructPattern:
		resolved := resolveStructOrVariant(c, p.Name, ty)
		for _, fp := range p.Fields {
			ft := resolved[fp.Name]
			if ft == nil {
				ft = c.freshVar()
			}
			c.bindPattern(fp.Pat, ft, sc)
		}
	}
}

// resolveStructOrVariant returns the field-name→type map for a struct
// pattern's name, checking struct defs first and falling back to the
// union-variant field map when the name matches a variant constructor.
func resolveStructOrVariant(c *Checker, name string, scrutinee *Mono) map[string]*Mono {
	if sd, ok := c.structs[name]; ok {
		return sd.Types
	}
	for _, ud := range c.unions {
		if shape, ok := ud.Variants[name]; ok {
			if shape.Named != nil {
				return shape.Named
			}
			m := make(map[string]*Mono, len(shape.Positional))
			for i, t := range shape.Positional {
				m[indexFieldName(i)] = t
			}
			return m
		}
	}
	return nil
}

func indexFieldName(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	return string(rune('0' + i))
}
