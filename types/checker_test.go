package types

import (
	"testing"

	"yaoxiang/parser"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func checkSrc(t *testing.T, src string) (*Result, error) {
	t.Helper()
	mod, err := parser.Parse("test.yx", src)
	assert(t, err == nil, "parse error: %v", err)
	return Check(mod)
}

func TestArithmeticOverload(t *testing.T) {
	res, err := checkSrc(t, "x: Int = 1 + 2\ny: Float = 1.5 + 2.5")
	assert(t, err == nil, "unexpected check error: %v", err)
	assert(t, res.Bindings["x"].Tag == Int, "expected Int, got %s", res.Bindings["x"])
	assert(t, res.Bindings["y"].Tag == Float, "expected Float, got %s", res.Bindings["y"])
}

func TestMixedArithmeticRejected(t *testing.T) {
	_, err := checkSrc(t, "x = 1 + 1.5")
	assert(t, err != nil, "expected mixed Int/Float arithmetic to be rejected")
}

func TestListConcat(t *testing.T) {
	res, err := checkSrc(t, "x = [1, 2] + [3]")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, res.Bindings["x"].Tag == ListT, "expected List, got %s", res.Bindings["x"])
}

func TestStandaloneLambdaRequiresAnnotation(t *testing.T) {
	_, err := checkSrc(t, "add = (a, b) => a + b")
	assert(t, err != nil, "expected unannotated standalone lambda to be rejected")
}

func TestAnnotatedFuncDefMergesBareParams(t *testing.T) {
	_, err := checkSrc(t, "add:(Int, Int)->Int = (a, b) => a + b")
	assert(t, err == nil, "unexpected error: %v", err)
}

func TestStructFieldAccess(t *testing.T) {
	res, err := checkSrc(t, `
type Point = struct { x: Int, y: Int }
p: Point = Point(1, 2)
z = p.x
`)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, res.Bindings["z"].Tag == Int, "expected Int, got %s", res.Bindings["z"])
}

func TestUnionExhaustivenessError(t *testing.T) {
	_, err := checkSrc(t, `
type Shape = | Circle { radius: Float } | Square { side: Float }
s: Shape = Circle(1.0)
r = match s {
  Circle { radius } => radius
}
`)
	assert(t, err != nil, "expected non-exhaustive match to be rejected")
}

func TestTrailingLambdaMergesDeclaredReturnType(t *testing.T) {
	res, err := checkSrc(t, "make:(Int) -> ((Int)->Int) = (x) => (y) => x + y")
	assert(t, err == nil, "unexpected error: %v", err)
	sig := res.Funcs["make"]
	assert(t, sig != nil && sig.Ret.Tag == FuncT, "expected function-typed return, got %s", sig.Ret)
}

func TestRebindingIsAssignmentNotShadowing(t *testing.T) {
	_, err := checkSrc(t, "x = 1\nx = 2")
	assert(t, err == nil, "unexpected error: %v", err)
	_, err = checkSrc(t, `x = 1
x = "two"`)
	assert(t, err != nil, "expected assignment with a different type to be rejected")
}

func TestNativeNamespaceCallAccepted(t *testing.T) {
	_, err := checkSrc(t, "m:()->Void = () => { std.io.println(std.math.max(7, 3)) }")
	assert(t, err == nil, "unexpected error: %v", err)
}

func TestLambdaArgumentToNativeCallIsLenient(t *testing.T) {
	_, err := checkSrc(t, "r = std.list.reduce([1, 2, 3], (acc, x) => acc + x, 0)")
	assert(t, err == nil, "unexpected error: %v", err)
}

func TestIfBranchesMustAgree(t *testing.T) {
	_, err := checkSrc(t, `x = if true { 1 } else { 2.0 }`)
	assert(t, err != nil, "expected mismatched if/else branch types to be rejected")
}
