package ffi

import (
	"fmt"
	"testing"

	"yaoxiang/vm"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestMathMaxPrefersIntWhenBothOperandsAreInt(t *testing.T) {
	r := WithStd()
	h, ok := r.Lookup("std.math.max")
	assert(t, ok, "expected std.math.max to be registered")
	v, err := h([]vm.RuntimeValue{vm.IntVal(3), vm.IntVal(7)}, &vm.NativeContext{})
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, v.Tag == vm.Int && v.I == 7, "expected Int(7), got %+v", v)
}

func TestStringToIntRoundTrip(t *testing.T) {
	r := WithStd()
	h, _ := r.Lookup("std.string.to_int")
	v, err := h([]vm.RuntimeValue{vm.StringVal("42")}, &vm.NativeContext{})
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, v.Tag == vm.Int && v.I == 42, "expected Int(42), got %+v", v)
}

func TestListMapInvokesCallback(t *testing.T) {
	r := WithStd()
	heap := vm.NewHeap()
	handle := heap.Alloc(&vm.HeapValue{Kind: vm.HList, Items: []vm.RuntimeValue{vm.IntVal(1), vm.IntVal(2), vm.IntVal(3)}})
	list := vm.RuntimeValue{Tag: vm.List, H: handle}
	fn := vm.RuntimeValue{Tag: vm.Function, Fn: &vm.FuncValue{FuncID: 99, Env: []vm.RuntimeValue{vm.IntVal(7)}}}

	calls := 0
	ctx := &vm.NativeContext{
		Heap: heap,
		Callback: func(funcID int, env []vm.RuntimeValue, args []vm.RuntimeValue) (vm.RuntimeValue, error) {
			calls++
			assert(t, funcID == 99, "expected callback to target function 99, got %d", funcID)
			assert(t, len(env) == 1 && env[0].I == 7, "expected captured environment to ride along, got %+v", env)
			return vm.IntVal(args[0].I * 10), nil
		},
	}
	h, ok := r.Lookup("std.list.map")
	assert(t, ok, "expected std.list.map to be registered")
	result, err := h([]vm.RuntimeValue{list, fn}, ctx)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, calls == 3, "expected 3 callback invocations, got %d", calls)

	out, ok := heap.Get(result.H)
	assert(t, ok, "expected mapped result handle to resolve")
	assert(t, len(out.Items) == 3 && out.Items[1].I == 20, "unexpected mapped items: %+v", out.Items)
}

func TestLookupMissingNameReturnsFalse(t *testing.T) {
	r := WithStd()
	_, ok := r.Lookup("std.nonexistent.thing")
	assert(t, !ok, "expected missing name to report not-found")
}
