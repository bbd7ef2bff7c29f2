package types

import (
	"yaoxiang/ast"
	"yaoxiang/token"
)

func (c *Checker) recordType(e ast.Expr, m *Mono) *Mono {
	c.exprTy[e] = m
	return m
}

func (c *Checker) checkExpr(e ast.Expr, sc *scope) *Mono {
	switch x := e.(type) {
	case *ast.IntLit:
		return c.recordType(e, TInt())
	case *ast.FloatLit:
		return c.recordType(e, TFloat())
	case *ast.CharLit:
		return c.recordType(e, TChar())
	case *ast.StringLit:
		return c.recordType(e, TString())
	case *ast.BoolLit:
		return c.recordType(e, TBool())
	case *ast.VoidLit:
		return c.recordType(e, TVoid())
	case *ast.Ident:
		return c.recordType(e, c.checkIdent(x, sc))
	case *ast.Binary:
		return c.recordType(e, c.checkBinary(x, sc))
	case *ast.Unary:
		return c.recordType(e, c.checkUnary(x, sc))
	case *ast.Call:
		return c.recordType(e, c.checkCall(x, sc))
	case *ast.Index:
		return c.recordType(e, c.checkIndex(x, sc))
	case *ast.Field:
		return c.recordType(e, c.checkField(x, sc))
	case *ast.Cast:
		c.checkExpr(x.X, sc)
		return c.recordType(e, c.resolveTypeExpr(x.Type))
	case *ast.Try:
		return c.recordType(e, c.checkExpr(x.X, sc))
	case *ast.TupleExpr:
		elems := make([]*Mono, len(x.Elems))
		for i, el := range x.Elems {
			elems[i] = c.checkExpr(el, sc)
		}
		return c.recordType(e, TTuple(elems...))
	case *ast.ListExpr:
		elem := c.freshVar()
		for _, el := range x.Elems {
			c.unify(x.Span, elem, c.checkExpr(el, sc))
		}
		return c.recordType(e, TList(elem))
	case *ast.BlockExpr:
		return c.recordType(e, c.checkBlock(x.Block, sc))
	case *ast.IfExpr:
		return c.recordType(e, c.checkIf(x, sc))
	case *ast.MatchExpr:
		return c.recordType(e, c.checkMatch(x, sc))
	case *ast.WhileExpr:
		c.checkWhile(x.Cond, x.Body, sc)
		return c.recordType(e, TVoid())
	case *ast.ForExpr:
		c.checkFor(x.Pat, x.Iter, x.Body, sc)
		return c.recordType(e, TVoid())
	case *ast.Break:
		if x.Value != nil {
			c.checkExpr(x.Value, sc)
		}
		return c.recordType(e, TVoid())
	case *ast.Continue:
		return c.recordType(e, TVoid())
	case *ast.Return:
		var vt *Mono = TVoid()
		if x.Value != nil {
			vt = c.checkExpr(x.Value, sc)
		}
		if c.curRet != nil {
			c.unify(x.Span, c.curRet, vt)
		}
		return c.recordType(e, TVoid())
	case *ast.Lambda:
		return c.recordType(e, c.checkLambda(x, sc, nil, false))
	default:
		return c.recordType(e, c.freshVar())
	}
}

// checkExprExpect checks e against an expected type when one is known
// from context (a declared return type, an annotated binding, or a
// known callee's parameter). Only lambdas consume the expectation
// directly — their bare parameters merge positionally with the
// expected function type (spec.md §4.3); everything else is checked as
// usual and unified by the caller.
func (c *Checker) checkExprExpect(e ast.Expr, sc *scope, expected *Mono) *Mono {
	if lam, ok := e.(*ast.Lambda); ok {
		return c.recordType(e, c.checkLambda(lam, sc, expected, false))
	}
	return c.checkExpr(e, sc)
}

func (c *Checker) checkIdent(x *ast.Ident, sc *scope) *Mono {
	if m, ok := sc.lookup(x.Name); ok {
		return m
	}
	if sig, ok := c.funcs[x.Name]; ok {
		return TFunc(sig.Params, sig.Ret)
	}
	c.errorf(x.Span, "undefined name %q", x.Name)
	return c.freshVar()
}

// checkBinary implements the overload rules from spec.md §4.3: Int/
// Float arithmetic (disjoint, no implicit widening), list
// concatenation via `+`, lexicographic string comparison, and boolean
// `&&`/`||`/equality on any comparable pair.
func (c *Checker) checkBinary(x *ast.Binary, sc *scope) *Mono {
	lt := c.checkExpr(x.Left, sc)
	rt := c.checkExpr(x.Right, sc)
	lt, rt = c.subst.resolve(lt), c.subst.resolve(rt)

	switch x.Op {
	case token.Assign:
		c.unify(x.Span, lt, rt)
		return lt
	case token.AndAnd, token.OrOr:
		c.unify(x.Span, TBool(), lt)
		c.unify(x.Span, TBool(), rt)
		return TBool()
	case token.Eq, token.Ne:
		c.unify(x.Span, lt, rt)
		return TBool()
	case token.Lt, token.Le, token.Gt, token.Ge:
		if lt.Tag == String && rt.Tag == String {
			return TBool()
		}
		c.unify(x.Span, lt, rt)
		if lt.Tag != Variable && !IsNumeric(lt) && lt.Tag != String {
			c.errorf(x.Span, "comparison operator requires Int, Float, or String operands, got %s", lt)
		}
		return TBool()
	case token.Plus:
		if lt.Tag == ListT && rt.Tag == ListT {
			c.unify(x.Span, lt, rt)
			return lt
		}
		if lt.Tag == String && rt.Tag == String {
			return TString()
		}
		return c.checkNumericBinary(x, lt, rt)
	default:
		return c.checkNumericBinary(x, lt, rt)
	}
}

func (c *Checker) checkNumericBinary(x *ast.Binary, lt, rt *Mono) *Mono {
	// An unresolved variable operand (a lenient native-call lambda
	// parameter) can't be proven wrong here; unification still rejects
	// genuinely mismatched pairs.
	if lt.Tag == Variable {
		c.unify(x.Span, lt, rt)
		return lt
	}
	if !IsNumeric(lt) {
		c.errorf(x.Span, "arithmetic operator requires Int or Float operands, got %s", lt)
		return c.freshVar()
	}
	c.unify(x.Span, lt, rt)
	return lt
}

func (c *Checker) checkUnary(x *ast.Unary, sc *scope) *Mono {
	t := c.checkExpr(x.X, sc)
	if x.Op == token.Bang {
		c.unify(x.Span, TBool(), t)
		return TBool()
	}
	if rt := c.subst.resolve(t); rt.Tag != Variable && !IsNumeric(rt) {
		c.errorf(x.Span, "unary '-' requires Int or Float, got %s", t)
	}
	return t
}

func (c *Checker) checkCall(x *ast.Call, sc *scope) *Mono {
	// A call whose callee resolves to nothing in this module is assumed
	// to target a native handler the FFI registry provides at dispatch
	// time (std.math.max, map, ...); its signature is unknown here, so
	// arguments are checked with no expectation and lambda arguments
	// may leave their parameters for the handler to shape (spec.md
	// §4.7's FFI-first CallStatic resolution, §8 scenarios 4 and 5).
	if _, ok := c.nativeCallName(x.Callee, sc); ok {
		for _, a := range x.Args {
			if lam, isLam := a.(*ast.Lambda); isLam {
				c.recordType(a, c.checkLambda(lam, sc, nil, true))
			} else {
				c.checkExpr(a, sc)
			}
		}
		return c.freshVar()
	}

	calleeTy := c.checkExpr(x.Callee, sc)
	calleeTy = c.subst.resolve(calleeTy)
	if calleeTy.Tag != FuncT {
		c.errorf(x.Span, "cannot call non-function type %s", calleeTy)
		for _, a := range x.Args {
			c.checkExpr(a, sc)
		}
		return c.freshVar()
	}
	if len(calleeTy.Params) != len(x.Args) {
		c.errorf(x.Span, "expected %d arguments, got %d", len(calleeTy.Params), len(x.Args))
		for _, a := range x.Args {
			c.checkExpr(a, sc)
		}
	} else {
		for i, a := range x.Args {
			at := c.checkExprExpect(a, sc, c.subst.resolve(calleeTy.Params[i]))
			c.unify(x.Span, calleeTy.Params[i], at)
		}
	}
	return calleeTy.Ret
}

// nativeCallName flattens a callee made of plain identifiers and field
// selections (std.math.max, map) into a dotted name when its root
// identifier resolves to nothing in scope — the shape the interpreter
// hands to the FFI registry before falling back to an interpreted
// lookup (spec.md §4.7).
func (c *Checker) nativeCallName(e ast.Expr, sc *scope) (string, bool) {
	switch x := e.(type) {
	case *ast.Ident:
		if _, ok := sc.lookup(x.Name); ok {
			return "", false
		}
		if _, ok := c.funcs[x.Name]; ok {
			return "", false
		}
		return x.Name, true
	case *ast.Field:
		base, ok := c.nativeCallName(x.X, sc)
		if !ok {
			return "", false
		}
		return base + "." + x.Name, true
	}
	return "", false
}

func (c *Checker) checkIndex(x *ast.Index, sc *scope) *Mono {
	base := c.subst.resolve(c.checkExpr(x.X, sc))
	idxTy := c.checkExpr(x.Index, sc)
	switch base.Tag {
	case ListT:
		c.unify(x.Span, TInt(), idxTy)
		return base.Elem
	case DictT:
		c.unify(x.Span, base.Key, idxTy)
		return base.Val
	case TupleT:
		c.unify(x.Span, TInt(), idxTy)
		return c.freshVar()
	default:
		c.errorf(x.Span, "type %s is not indexable", base)
		return c.freshVar()
	}
}

func (c *Checker) checkField(x *ast.Field, sc *scope) *Mono {
	base := c.subst.resolve(c.checkExpr(x.X, sc))
	if x.Name == "length" {
		switch base.Tag {
		case ListT, TupleT, DictT, String, Bytes:
			return TInt()
		}
	}
	if base.Tag == StructT {
		if t, ok := base.Fields[x.Name]; ok {
			return t
		}
		c.errorf(x.Span, "struct %s has no field %q", base.Name, x.Name)
		return c.freshVar()
	}
	if base.Tag == NamedT {
		if sd, ok := c.structs[base.Name]; ok {
			if t, ok := sd.Types[x.Name]; ok {
				return t
			}
		}
	}
	c.errorf(x.Span, "type %s has no field %q", base, x.Name)
	return c.freshVar()
}

func (c *Checker) checkIf(x *ast.IfExpr, sc *scope) *Mono {
	c.unify(x.Span, TBool(), c.checkExpr(x.Cond, sc))
	resultTy := c.checkBlock(x.Then, sc)
	for _, el := range x.Elifs {
		c.unify(x.Span, TBool(), c.checkExpr(el.Cond, sc))
		bt := c.checkBlock(el.Body, sc)
		c.unify(x.Span, resultTy, bt)
	}
	if x.Else != nil {
		et := c.checkBlock(x.Else, sc)
		c.unify(x.Span, resultTy, et)
	} else {
		c.unify(x.Span, TVoid(), resultTy)
	}
	return resultTy
}

// checkMatch checks every arm's body against a common result type and
// enforces exhaustiveness when the scrutinee type is a simple union
// (every variant name covered, or a trailing wildcard/ident pattern
// present) — spec.md §4.3's open question, resolved in DESIGN.md: we
// require full coverage on union scrutinees and treat anything else
// as non-exhaustive-checked, matching "only on simple union forms".
func (c *Checker) checkMatch(x *ast.MatchExpr, sc *scope) *Mono {
	scrutTy := c.subst.resolve(c.checkExpr(x.X, sc))
	resultTy := c.freshVar()
	covered := make(map[string]bool)
	hasCatchAll := false

	for _, arm := range x.Arms {
		armSc := newScope(sc)
		c.bindPattern(arm.Pat, scrutTy, armSc)
		switch p := arm.Pat.(type) {
		case *ast.StructPattern:
			covered[p.Name] = true
		case *ast.WildcardPattern, *ast.IdentPattern:
			hasCatchAll = true
		}
		if arm.Guard != nil {
			c.unify(x.Span, TBool(), c.checkExpr(arm.Guard, armSc))
		}
		c.unify(x.Span, resultTy, c.checkExpr(arm.Body, armSc))
	}

	if scrutTy.Tag == UnionT && !hasCatchAll {
		for name := range scrutTy.Variants {
			if !covered[name] {
				c.errorf(x.Span, "non-exhaustive match: missing variant %q", name)
			}
		}
	}

	return resultTy
}

// checkLambda handles the contexts spec.md §4.3 distinguishes: checked
// against an expected function type (parameters may be bare — the
// annotation's parameter list merges positionally), standalone (every
// parameter must carry its own annotation), or an argument to a native
// call (lenient: the handler shapes the parameters at dispatch time).
func (c *Checker) checkLambda(x *ast.Lambda, sc *scope, expected *Mono, lenient bool) *Mono {
	if expected != nil {
		expected = c.subst.resolve(expected)
		if expected.Tag != FuncT || len(expected.Params) != len(x.Params) {
			expected = nil
		}
	}
	inner := newScope(sc)
	params := make([]*Mono, len(x.Params))
	for i, p := range x.Params {
		switch {
		case p.Type != nil:
			params[i] = c.resolveTypeExpr(p.Type)
		case expected != nil:
			params[i] = expected.Params[i]
		case lenient:
			params[i] = c.freshVar()
		default:
			c.errorf(p.Span, "unannotated parameter %q in standalone lambda", p.Name)
			params[i] = c.freshVar()
		}
		inner.define(p.Name, params[i])
	}
	var retExpected *Mono
	if expected != nil {
		retExpected = expected.Ret
	}
	prevRet := c.curRet
	c.curRet = c.freshVar()
	bodyTy := c.checkBlockExpect(x.Body, inner, retExpected)
	c.unify(x.Span, c.curRet, bodyTy)
	ret := c.curRet
	c.curRet = prevRet
	return TFunc(params, ret)
}
