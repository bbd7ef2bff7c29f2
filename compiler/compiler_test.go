package compiler

import (
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestCompileSimpleFunction(t *testing.T) {
	src := `add:(Int, Int)->Int = (a, b) => a + b`
	file, err := Compile([]Unit{{Name: "main.yx", Source: src}}, DefaultOptions())
	assert(t, err == nil, "unexpected compile error: %v", err)
	assert(t, file != nil, "expected a non-nil bytecode file")
	found := false
	for _, fn := range file.Functions {
		if fn.Name == "add" {
			found = true
		}
	}
	assert(t, found, "expected a generated 'add' function")
}

func TestCompileReportsLexError(t *testing.T) {
	src := "\"unterminated"
	_, err := Compile([]Unit{{Name: "bad.yx", Source: src}}, DefaultOptions())
	assert(t, err != nil, "expected a lex error for an unterminated string")
}

func TestCompileAsyncMultiFile(t *testing.T) {
	units := []Unit{
		{Name: "a.yx", Source: "a:()->Int = () => 1"},
		{Name: "b.yx", Source: "b:()->Int = () => 2"},
	}
	file, err := Compile(units, Options{Observer: NopObserver{}, Async: true})
	assert(t, err == nil, "unexpected compile error: %v", err)
	assert(t, len(file.Functions) >= 2, "expected both functions compiled")
}

func TestCheckVersionCompatible(t *testing.T) {
	assert(t, CheckVersionCompatible(CompilerVersion), "own version should be compatible with itself")
	assert(t, !CheckVersionCompatible("v9.0.0"), "a different major version should be incompatible")
	assert(t, !CheckVersionCompatible("not-a-version"), "garbage version string should be rejected")
}
