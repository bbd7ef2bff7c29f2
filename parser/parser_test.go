package parser

import (
	"testing"

	"yaoxiang/ast"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func mustParse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := Parse("test.yx", src)
	assert(t, err == nil, "unexpected parse error: %v", err)
	return mod
}

func TestVarBinding(t *testing.T) {
	mod := mustParse(t, "mut x: Int = 1")
	assert(t, len(mod.Stmts) == 1, "expected 1 stmt, got %d", len(mod.Stmts))
	vb, ok := mod.Stmts[0].(*ast.VarBinding)
	assert(t, ok, "expected *ast.VarBinding, got %T", mod.Stmts[0])
	assert(t, vb.Name == "x" && vb.Mutable, "bad binding: %+v", vb)
}

func TestUnannotatedBinding(t *testing.T) {
	mod := mustParse(t, "y = 2 + 3")
	vb, ok := mod.Stmts[0].(*ast.VarBinding)
	assert(t, ok, "expected *ast.VarBinding, got %T", mod.Stmts[0])
	_, ok = vb.Init.(*ast.Binary)
	assert(t, ok, "expected binary init, got %T", vb.Init)
}

func TestTypedFuncDef(t *testing.T) {
	mod := mustParse(t, "add:(Int, Int)->Int = (a, b) => a + b")
	fn, ok := mod.Stmts[0].(*ast.FuncDef)
	assert(t, ok, "expected *ast.FuncDef, got %T", mod.Stmts[0])
	assert(t, fn.Name == "add", "bad name: %s", fn.Name)
	assert(t, len(fn.Params) == 2, "expected 2 params, got %d", len(fn.Params))
	assert(t, fn.FnType != nil && len(fn.FnType.Params) == 2, "missing signature")
}

func TestUnannotatedLambdaBinding(t *testing.T) {
	mod := mustParse(t, "double = x => x * 2")
	fn, ok := mod.Stmts[0].(*ast.FuncDef)
	assert(t, ok, "expected *ast.FuncDef, got %T", mod.Stmts[0])
	assert(t, len(fn.Params) == 1 && fn.Params[0].Name == "x", "bad params: %+v", fn.Params)
}

func TestMethodDef(t *testing.T) {
	mod := mustParse(t, "Point.length:(Point)->Float = (self) => 0.0")
	md, ok := mod.Stmts[0].(*ast.MethodDef)
	assert(t, ok, "expected *ast.MethodDef, got %T", mod.Stmts[0])
	assert(t, md.Receiver == "Point" && md.Name == "length", "bad method def: %+v", md)
}

func TestLegacyCallSyntaxRejected(t *testing.T) {
	_, err := Parse("test.yx", "add(a, b) = a + b")
	assert(t, err != nil, "expected legacy syntax to be rejected")
}

func TestTypeDef(t *testing.T) {
	mod := mustParse(t, "type Pair[T] = (T, T)")
	td, ok := mod.Stmts[0].(*ast.TypeDef)
	assert(t, ok, "expected *ast.TypeDef, got %T", mod.Stmts[0])
	assert(t, td.Name == "Pair" && len(td.Generic) == 1 && td.Generic[0] == "T", "bad type def: %+v", td)
}

func TestUseImport(t *testing.T) {
	mod := mustParse(t, "use std.list { map, filter as flt }")
	ui, ok := mod.Stmts[0].(*ast.UseImport)
	assert(t, ok, "expected *ast.UseImport, got %T", mod.Stmts[0])
	assert(t, len(ui.Path) == 2 && ui.Path[0] == "std" && ui.Path[1] == "list", "bad path: %v", ui.Path)
	assert(t, len(ui.Items) == 2 && ui.Items[1].Alias == "flt", "bad items: %+v", ui.Items)
}

func TestIfElifElse(t *testing.T) {
	mod := mustParse(t, `x = if a { 1 } elif b { 2 } else { 3 }`)
	vb := mod.Stmts[0].(*ast.VarBinding)
	ifx, ok := vb.Init.(*ast.IfExpr)
	assert(t, ok, "expected *ast.IfExpr, got %T", vb.Init)
	assert(t, len(ifx.Elifs) == 1 && ifx.Else != nil, "bad if chain: %+v", ifx)
}

func TestMatchWithGuardAndWildcard(t *testing.T) {
	mod := mustParse(t, `
r = match n {
  0 => "zero",
  x if x > 0 => "pos",
  _ => "neg"
}`)
	vb := mod.Stmts[0].(*ast.VarBinding)
	mx, ok := vb.Init.(*ast.MatchExpr)
	assert(t, ok, "expected *ast.MatchExpr, got %T", vb.Init)
	assert(t, len(mx.Arms) == 3, "expected 3 arms, got %d", len(mx.Arms))
	assert(t, mx.Arms[1].Guard != nil, "expected guard on second arm")
	_, isWild := mx.Arms[2].Pat.(*ast.WildcardPattern)
	assert(t, isWild, "expected wildcard pattern, got %T", mx.Arms[2].Pat)
}

func TestForWithLabelAndBreakValue(t *testing.T) {
	mod := mustParse(t, `
result = outer: for x in xs {
  if x == 0 { break outer x }
}`)
	vb := mod.Stmts[0].(*ast.VarBinding)
	fe, ok := vb.Init.(*ast.ForExpr)
	assert(t, ok, "expected *ast.ForExpr, got %T", vb.Init)
	assert(t, fe.Label == "outer", "bad label: %q", fe.Label)
}

func TestTupleAndListExpr(t *testing.T) {
	mod := mustParse(t, "p = (1, 2, 3)\nq = [1, 2, 3]")
	vb0 := mod.Stmts[0].(*ast.VarBinding)
	tup, ok := vb0.Init.(*ast.TupleExpr)
	assert(t, ok, "expected *ast.TupleExpr, got %T", vb0.Init)
	assert(t, len(tup.Elems) == 3, "expected 3 elems, got %d", len(tup.Elems))

	vb1 := mod.Stmts[1].(*ast.VarBinding)
	lst, ok := vb1.Init.(*ast.ListExpr)
	assert(t, ok, "expected *ast.ListExpr, got %T", vb1.Init)
	assert(t, len(lst.Elems) == 3, "expected 3 elems, got %d", len(lst.Elems))
}

func TestCastAndTry(t *testing.T) {
	mod := mustParse(t, "x = (1 as Float)\ny = risky()?")
	vb0 := mod.Stmts[0].(*ast.VarBinding)
	_, ok := vb0.Init.(*ast.Cast)
	assert(t, ok, "expected *ast.Cast, got %T", vb0.Init)

	vb1 := mod.Stmts[1].(*ast.VarBinding)
	_, ok = vb1.Init.(*ast.Try)
	assert(t, ok, "expected *ast.Try, got %T", vb1.Init)
}

func TestCallIndexField(t *testing.T) {
	mod := mustParse(t, "x = obj.field[0].method(1, 2)")
	vb := mod.Stmts[0].(*ast.VarBinding)
	call, ok := vb.Init.(*ast.Call)
	assert(t, ok, "expected outer call, got %T", vb.Init)
	assert(t, len(call.Args) == 2, "expected 2 args, got %d", len(call.Args))
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	mod := mustParse(t, "a = b = c")
	vb := mod.Stmts[0].(*ast.VarBinding)
	inner, ok := vb.Init.(*ast.Binary)
	assert(t, ok, "expected nested assignment, got %T", vb.Init)
	_, leftIsIdent := inner.Left.(*ast.Ident)
	_, rightIsIdent := inner.Right.(*ast.Ident)
	assert(t, leftIsIdent && rightIsIdent, "expected b = c as the nested assignment: %+v", inner)
}

func TestParenthesizedFunctionReturnType(t *testing.T) {
	mod := mustParse(t, "make:(Int) -> ((Int)->Int) = (x) => (y) => x + y")
	fn := mod.Stmts[0].(*ast.FuncDef)
	ret, ok := fn.FnType.Ret.(*ast.FuncType)
	assert(t, ok, "expected function-typed return, got %T", fn.FnType.Ret)
	assert(t, len(ret.Params) == 1 && ret.Ret != nil, "bad nested function type: %+v", ret)
}

func TestOperatorPrecedence(t *testing.T) {
	mod := mustParse(t, "x = 1 + 2 * 3")
	vb := mod.Stmts[0].(*ast.VarBinding)
	bin := vb.Init.(*ast.Binary)
	_, rightIsMul := bin.Right.(*ast.Binary)
	assert(t, rightIsMul, "expected `2 * 3` to bind tighter than `+`, got %+v", bin)
}

func TestStructAndUnionTypeDefs(t *testing.T) {
	mod := mustParse(t, `type Point = struct { x: Int, y: Int }`)
	td := mod.Stmts[0].(*ast.TypeDef)
	st, ok := td.Body.(*ast.StructType)
	assert(t, ok, "expected *ast.StructType, got %T", td.Body)
	assert(t, len(st.Fields) == 2, "expected 2 fields, got %d", len(st.Fields))

	mod2 := mustParse(t, `type Shape = | Circle(Float) | Square { side: Float } | Point`)
	td2 := mod2.Stmts[0].(*ast.TypeDef)
	ut, ok := td2.Body.(*ast.UnionType)
	assert(t, ok, "expected *ast.UnionType, got %T", td2.Body)
	assert(t, len(ut.Variants) == 3, "expected 3 variants, got %d", len(ut.Variants))
}

func TestStructPatternInMatch(t *testing.T) {
	mod := mustParse(t, `
r = match p {
  Point { x: 0, y } => y,
  _ => 0
}`)
	vb := mod.Stmts[0].(*ast.VarBinding)
	mx := vb.Init.(*ast.MatchExpr)
	sp, ok := mx.Arms[0].Pat.(*ast.StructPattern)
	assert(t, ok, "expected *ast.StructPattern, got %T", mx.Arms[0].Pat)
	assert(t, sp.Name == "Point" && len(sp.Fields) == 2, "bad struct pattern: %+v", sp)
}
