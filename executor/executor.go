// Package executor wraps vm.Interpreter behind the façade spec.md
// §6.1 names: Config, New/WithConfig, ExecuteModule/ExecuteFunction,
// Reset. It is the direct descendant of the teacher's vm/run.go
// RunProgram, which disables the garbage collector for the duration
// of the hot dispatch loop and restores the prior setting on return.
package executor

import (
	"io"
	"runtime/debug"

	"yaoxiang/bytecode"
	"yaoxiang/vm"
)

// Config mirrors vm.Config, plus the Concurrent flag spec.md §5 names
// for a future multi-interpreter embed sharing one FFI registry.
type Config struct {
	MaxStackDepth     int
	GenerateDebugInfo bool
	EnableInlineCache bool
	Concurrent        bool
}

func DefaultConfig() Config {
	return Config{MaxStackDepth: 1024}
}

// Executor owns one vm.Interpreter and runs modules/functions against
// it with the GC disabled for the hot loop, exactly as the teacher's
// RunProgram does around its fetch-decode-execute loop.
type Executor struct {
	cfg   Config
	interp *vm.Interpreter
}

func New() *Executor { return WithConfig(DefaultConfig()) }

func WithConfig(cfg Config) *Executor {
	interp := vm.WithConfig(vm.Config{
		MaxStackDepth:     cfg.MaxStackDepth,
		GenerateDebugInfo: cfg.GenerateDebugInfo,
		EnableInlineCache: cfg.EnableInlineCache,
	})
	return &Executor{cfg: cfg, interp: interp}
}

// SetRegistry installs the FFI registry CallStatic consults ahead of
// an interpreted lookup (spec.md §4.8).
func (e *Executor) SetRegistry(r vm.Registry) { e.interp.SetRegistry(r) }

// SetStdout installs the writer non-unit top-level results are printed
// to (spec.md §6.1). The std.io.* handlers of an ffi.Registry write to
// the registry's own writer instead, set with Registry.SetOutput.
func (e *Executor) SetStdout(w io.Writer) { e.interp.SetStdout(w) }

// Reset clears heap, call stack, and globals while keeping loaded
// functions and constants (spec.md §6.1).
func (e *Executor) Reset() { e.interp.Reset() }

// Heap exposes the underlying interpreter's heap for tooling that
// needs to dereference handles returned from ExecuteFunction.
func (e *Executor) Heap() *vm.Heap { return e.interp.Heap() }

// ExecuteModule disables the GC for the duration of the run and
// restores the previous percentage afterward, the same
// debug.SetGCPercent(-1)/defer-restore bracket the teacher's
// RunProgram wraps its loop in.
func (e *Executor) ExecuteModule(module *bytecode.BytecodeModule) error {
	prev := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prev)
	return e.interp.ExecuteModule(module)
}

// ExecuteFunction runs a single function by value, the programmatic
// entry point spec.md §6.1 names for embedding without a module-level
// "print the result" side effect.
func (e *Executor) ExecuteFunction(fn *bytecode.BytecodeFunction, args []vm.RuntimeValue) (vm.RuntimeValue, error) {
	prev := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prev)
	return e.interp.ExecuteFunction(fn, args)
}
