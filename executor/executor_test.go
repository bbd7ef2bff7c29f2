package executor

import (
	"bytes"
	"fmt"
	"testing"

	"yaoxiang/bytecode"
	"yaoxiang/compiler"
	"yaoxiang/ffi"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// runSource compiles src, loads it through the bytecode loader, and
// executes it with the std registry installed, returning everything
// printed — the full source-to-output loop spec.md §8's end-to-end
// scenarios describe.
func runSource(t *testing.T, src string) string {
	t.Helper()
	file, err := compiler.Compile([]compiler.Unit{{Name: "main.yx", Source: src}}, compiler.DefaultOptions())
	assert(t, err == nil, "unexpected compile error: %v", err)
	mod, err := bytecode.Load(file)
	assert(t, err == nil, "unexpected load error: %v", err)

	exec := New()
	exec.SetRegistry(ffi.WithStd())
	var out bytes.Buffer
	exec.SetStdout(&out)
	assert(t, exec.ExecuteModule(mod) == nil, "unexpected execution error")
	return out.String()
}

func TestExecuteModuleEndToEnd(t *testing.T) {
	file, err := compiler.Compile([]compiler.Unit{{
		Name:   "main.yx",
		Source: "main:()->Int = () => 6 * 7",
	}}, compiler.DefaultOptions())
	assert(t, err == nil, "unexpected compile error: %v", err)

	mod := &bytecode.BytecodeModule{
		Constants:  file.Constants,
		Types:      file.Types,
		Functions:  file.Functions,
		Globals:    file.Globals,
		EntryIndex: file.EntryIndex,
	}

	exec := New()
	var out bytes.Buffer
	exec.SetStdout(&out)
	assert(t, exec.ExecuteModule(mod) == nil, "unexpected execution error")
	assert(t, out.String() == "42\n", "expected 42, got %q", out.String())
}

func TestRecursionEndToEnd(t *testing.T) {
	out := runSource(t, `
fact:(Int) -> Int = (n) => if n <= 1 { 1 } else { n * fact(n - 1) }
main = () => fact(5)
`)
	assert(t, out == "120\n", "expected 120, got %q", out)
}

func TestClosureEndToEnd(t *testing.T) {
	out := runSource(t, `
make:(Int) -> ((Int)->Int) = (x) => (y) => x + y
main = () => {
  add3 = make(3)
  add3(4)
}
`)
	assert(t, out == "7\n", "expected 7, got %q", out)
}

func TestNativeCallEndToEnd(t *testing.T) {
	out := runSource(t, `main = () => std.math.max(7, 3)`)
	assert(t, out == "7\n", "expected 7, got %q", out)
}

func TestHigherOrderNativeWithCapturedClosure(t *testing.T) {
	out := runSource(t, `
main:()->Int = () => {
  n = 10
  std.list.reduce([1, 2, 3], (acc, x) => acc + n, 0)
}
`)
	assert(t, out == "30\n", "expected 30, got %q", out)
}

func TestWhileLoopAssignmentEndToEnd(t *testing.T) {
	out := runSource(t, `
sum:(Int) -> Int = (n) => {
  total = 0
  i = 1
  while i <= n {
    total = total + i
    i = i + 1
  }
  total
}
main = () => sum(4)
`)
	assert(t, out == "10\n", "expected 10, got %q", out)
}

func TestListConcatEndToEnd(t *testing.T) {
	out := runSource(t, `main = () => std.list.length([1, 2] + [3])`)
	assert(t, out == "3\n", "expected 3, got %q", out)
}

func TestForLoopOverListEndToEnd(t *testing.T) {
	out := runSource(t, `
main = () => {
  total = 0
  for x in [1, 2, 3, 4] {
    total = total + x
  }
  total
}
`)
	assert(t, out == "10\n", "expected 10, got %q", out)
}

func TestConstantMatchEndToEnd(t *testing.T) {
	out := runSource(t, `
classify:(Int) -> String = (n) => match n {
  0 => "zero",
  1 => "one",
  _ => "many"
}
main = () => classify(1)
`)
	assert(t, out == "one\n", "expected one, got %q", out)
}

func TestResetClearsState(t *testing.T) {
	exec := New()
	exec.Reset()
	assert(t, exec.Heap() != nil, "expected a usable heap after reset")
}
