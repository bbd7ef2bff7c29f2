package vm

// NativeHandler is the signature every FFI handler implements
// (spec.md §4.8): it receives the already-evaluated argument
// registers and a NativeContext giving it heap access and a reentrant
// callback for invoking interpreted closures.
type NativeHandler func(args []RuntimeValue, ctx *NativeContext) (RuntimeValue, error)

// NativeContext is what a native handler sees. Callback is non-nil
// whenever the owning Interpreter can reenter — it lets higher-order
// stdlib functions like map/filter/reduce invoke a user-supplied
// Function value by id (spec.md §4.8, §8 scenario 5). env is the
// Function value's captured environment (FuncValue.Env), materialized
// as the callee frame's upvalue bank; pass nil for a plain top-level
// function.
type NativeContext struct {
	Heap     *Heap
	Callback func(funcID int, env []RuntimeValue, args []RuntimeValue) (RuntimeValue, error)
}

// Registry is the minimal contract vm.Interpreter needs from an FFI
// name→handler table; the concrete implementation with its lookup
// cache and std.* namespace lives in package ffi, which depends on vm
// rather than the other way around (spec.md §4.8).
type Registry interface {
	Lookup(name string) (NativeHandler, bool)
}
