package vm

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"yaoxiang/bytecode"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func constInt(i int64) bytecode.ConstValue { return bytecode.ConstValue{Tag: bytecode.ConstInt, Int: i} }

func runModule(t *testing.T, mod *bytecode.BytecodeModule) (*Interpreter, string) {
	t.Helper()
	interp := New()
	var out bytes.Buffer
	interp.SetStdout(&out)
	assert(t, interp.ExecuteModule(mod) == nil, "unexpected ExecuteModule error")
	return interp, out.String()
}

func TestArithmeticAndDivisionByZero(t *testing.T) {
	add := bytecode.BytecodeFunction{
		Name:       "main",
		LocalCount: 3,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 0},
			{Op: bytecode.OpLoadConst, Dst: 1, HasDst: true, ConstIdx: 1},
			{Op: bytecode.OpBinaryOp, Dst: 2, HasDst: true, Lhs: 0, Rhs: 1, ArithOp: bytecode.Add},
			{Op: bytecode.OpReturnValue, Src: 2},
		},
	}
	mod := &bytecode.BytecodeModule{
		Constants:  []bytecode.ConstValue{constInt(2), constInt(3)},
		Functions:  []bytecode.BytecodeFunction{add},
		EntryIndex: 0,
	}
	_, out := runModule(t, mod)
	assert(t, out == "5\n", "expected 5, got %q", out)

	div := bytecode.BytecodeFunction{
		Name:       "main",
		LocalCount: 3,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 0},
			{Op: bytecode.OpLoadConst, Dst: 1, HasDst: true, ConstIdx: 1},
			{Op: bytecode.OpBinaryOp, Dst: 2, HasDst: true, Lhs: 0, Rhs: 1, ArithOp: bytecode.Div},
			{Op: bytecode.OpReturnValue, Src: 2},
		},
	}
	mod = &bytecode.BytecodeModule{
		Constants:  []bytecode.ConstValue{constInt(1), constInt(0)},
		Functions:  []bytecode.BytecodeFunction{div},
		EntryIndex: 0,
	}
	interp := New()
	err := interp.ExecuteModule(mod)
	assert(t, err != nil, "expected division-by-zero error")
	assert(t, errors.Is(err, ErrDivisionByZero), "expected ErrDivisionByZero, got %v", err)
}

// TestRecursiveCallStatic builds fact(n) = n <= 1 ? 1 : n * fact(n-1)
// by hand and checks CallStatic's self-recursive dispatch.
func TestRecursiveCallStatic(t *testing.T) {
	fact := bytecode.BytecodeFunction{
		Name:       "fact",
		ParamCount: 1,
		LocalCount: 7,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpLoadConst, Dst: 1, HasDst: true, ConstIdx: 0},           // r1 = 1
			{Op: bytecode.OpCompare, Dst: 2, HasDst: true, Lhs: 0, Rhs: 1, CmpOp: bytecode.CmpLe},
			{Op: bytecode.OpJmpIfNot, Src: 2, Target: 3},                           // -> idx5
			{Op: bytecode.OpLoadConst, Dst: 3, HasDst: true, ConstIdx: 0},
			{Op: bytecode.OpReturnValue, Src: 3},
			{Op: bytecode.OpBinaryOp, Dst: 4, HasDst: true, Lhs: 0, Rhs: 1, ArithOp: bytecode.Sub},
			{Op: bytecode.OpCallStatic, Dst: 5, HasDst: true, FuncName: "fact", Args: []int32{4}},
			{Op: bytecode.OpBinaryOp, Dst: 6, HasDst: true, Lhs: 0, Rhs: 5, ArithOp: bytecode.Mul},
			{Op: bytecode.OpReturnValue, Src: 6},
		},
	}
	main := bytecode.BytecodeFunction{
		Name:       "main",
		LocalCount: 2,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 1},
			{Op: bytecode.OpCallStatic, Dst: 1, HasDst: true, FuncName: "fact", Args: []int32{0}},
			{Op: bytecode.OpReturnValue, Src: 1},
		},
	}
	mod := &bytecode.BytecodeModule{
		Constants:  []bytecode.ConstValue{constInt(1), constInt(5)},
		Functions:  []bytecode.BytecodeFunction{main, fact},
		EntryIndex: 0,
	}
	_, out := runModule(t, mod)
	assert(t, out == "120\n", "expected 120, got %q", out)
}

// TestClosureCapture builds a one-upvalue closure and invokes it via
// CallDyn, checking MakeClosure/LoadUpvalue environment capture.
func TestClosureCapture(t *testing.T) {
	adder := bytecode.BytecodeFunction{
		Name:       "adder",
		ParamCount: 1,
		LocalCount: 3,
		UpvalCount: 1,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpLoadUpvalue, Dst: 1, HasDst: true, Target: 0},
			{Op: bytecode.OpBinaryOp, Dst: 2, HasDst: true, Lhs: 0, Rhs: 1, ArithOp: bytecode.Add},
			{Op: bytecode.OpReturnValue, Src: 2},
		},
	}
	main := bytecode.BytecodeFunction{
		Name:       "main",
		LocalCount: 4,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 0}, // y = 10
			{Op: bytecode.OpMakeClosure, Dst: 1, HasDst: true, FuncName: "adder", Args: []int32{0}},
			{Op: bytecode.OpLoadConst, Dst: 2, HasDst: true, ConstIdx: 1}, // x = 5
			{Op: bytecode.OpCallDyn, Dst: 3, HasDst: true, Src: 1, Args: []int32{2}},
			{Op: bytecode.OpReturnValue, Src: 3},
		},
	}
	mod := &bytecode.BytecodeModule{
		Constants:  []bytecode.ConstValue{constInt(10), constInt(5)},
		Functions:  []bytecode.BytecodeFunction{main, adder},
		EntryIndex: 0,
	}
	_, out := runModule(t, mod)
	assert(t, out == "15\n", "expected 15, got %q", out)
}

// fakeRegistry is a minimal Registry stub exercising CallStatic's
// FFI-first dispatch before falling back to an interpreted lookup.
type fakeRegistry struct{}

func (fakeRegistry) Lookup(name string) (NativeHandler, bool) {
	if name != "double" {
		return nil, false
	}
	return func(args []RuntimeValue, ctx *NativeContext) (RuntimeValue, error) {
		return IntVal(args[0].I * 2), nil
	}, true
}

func TestCallStaticPrefersNativeRegistry(t *testing.T) {
	main := bytecode.BytecodeFunction{
		Name:       "main",
		LocalCount: 2,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 0},
			{Op: bytecode.OpCallStatic, Dst: 1, HasDst: true, FuncName: "double", Args: []int32{0}},
			{Op: bytecode.OpReturnValue, Src: 1},
		},
	}
	mod := &bytecode.BytecodeModule{
		Constants:  []bytecode.ConstValue{constInt(21)},
		Functions:  []bytecode.BytecodeFunction{main},
		EntryIndex: 0,
	}
	interp := New()
	interp.SetRegistry(fakeRegistry{})
	var out bytes.Buffer
	interp.SetStdout(&out)
	assert(t, interp.ExecuteModule(mod) == nil, "unexpected ExecuteModule error")
	assert(t, out.String() == "42\n", "expected 42, got %q", out.String())
}

func TestWeakUpgradeAfterDrop(t *testing.T) {
	interp := New()
	arc := NewArc(IntVal(42))
	weak := NewWeak(arc)
	DropArc(arc)
	got := UpgradeWeak(weak)
	assert(t, got.IsUnit(), "expected Unit after strong count reached zero, got %v", got)
	_ = interp
}

func TestStructFieldAccessAndTag(t *testing.T) {
	makePoint := bytecode.BytecodeFunction{
		Name:       "Point",
		ParamCount: 2,
		LocalCount: 3,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpCreateStruct, Dst: 2, HasDst: true, FuncName: "Point", Args: []int32{0, 1}},
			{Op: bytecode.OpReturnValue, Src: 2},
		},
	}
	main := bytecode.BytecodeFunction{
		Name:       "main",
		LocalCount: 4,
		Instrs: []bytecode.BytecodeInstr{
			{Op: bytecode.OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 0},
			{Op: bytecode.OpLoadConst, Dst: 1, HasDst: true, ConstIdx: 1},
			{Op: bytecode.OpCallStatic, Dst: 2, HasDst: true, FuncName: "Point", Args: []int32{0, 1}},
			{Op: bytecode.OpGetField, Dst: 3, HasDst: true, Src: 2, ConstIdx: 2},
			{Op: bytecode.OpReturnValue, Src: 3},
		},
	}
	mod := &bytecode.BytecodeModule{
		Constants: []bytecode.ConstValue{
			constInt(3), constInt(4),
			{Tag: bytecode.ConstString, Str: "y"},
		},
		Types:      []bytecode.TypeEntry{{Name: "Point", Fields: []string{"x", "y"}}},
		Functions:  []bytecode.BytecodeFunction{main, makePoint},
		EntryIndex: 0,
	}
	_, out := runModule(t, mod)
	assert(t, out == "4\n", "expected field y == 4, got %q", out)
}
