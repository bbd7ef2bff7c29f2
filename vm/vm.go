// Package vm implements YaoXiang's register-based bytecode
// interpreter: tagged runtime values, a reference-counted heap with
// Arc/Weak support, a frame/call stack, and the fetch-decode-execute
// loop that dispatches bytecode.BytecodeInstr (spec.md §3.5-§3.7,
// §4.7). This is the direct descendant of the teacher's
// (KTStephano-GVM) vm package — same one-state-struct-plus-dispatch-
// loop shape, generalized from a 32-bit stack machine to a
// register-based closure-and-heap machine.
package vm

import (
	"bufio"
	"io"
	"os"
	"sync"

	"yaoxiang/bytecode"
)

// Config mirrors the teacher's NewVirtualMachine(debug bool, ...)
// constructor shape, widened to the options spec.md §6.1 names.
type Config struct {
	MaxStackDepth     int
	GenerateDebugInfo bool
	EnableInlineCache bool
}

func DefaultConfig() Config {
	return Config{MaxStackDepth: 1024}
}

// Interpreter is the single-threaded, synchronous execution state
// spec.md §4.7 describes: heap, call stack, constants, function
// tables, type table, FFI registry, and optional breakpoints.
type Interpreter struct {
	cfg Config

	heap    *Heap
	stack   CallStack
	globals map[string]RuntimeValue

	constants []bytecode.ConstValue
	types     []bytecode.TypeEntry
	funcs     []*bytecode.BytecodeFunction
	funcIndex map[string]int

	registry Registry

	breakpoints map[int]bool
	curFunc     string
	curIP       int

	inlineCache map[string]int // call-site name -> resolved function index, when EnableInlineCache

	stdoutMu sync.Mutex
	stdout   *bufio.Writer
}

func New() *Interpreter { return WithConfig(DefaultConfig()) }

func WithConfig(cfg Config) *Interpreter {
	return &Interpreter{
		cfg:         cfg,
		heap:        NewHeap(),
		globals:     make(map[string]RuntimeValue),
		funcIndex:   make(map[string]int),
		breakpoints: make(map[int]bool),
		inlineCache: make(map[string]int),
		stdout:      bufio.NewWriter(os.Stdout),
	}
}

// SetRegistry installs the FFI name→handler table CallStatic consults
// before falling back to an interpreted function lookup (spec.md
// §4.7).
func (vm *Interpreter) SetRegistry(r Registry) { vm.registry = r }

// SetStdout installs the writer ExecuteModule prints a non-unit entry
// result to, guarded by a mutex the way the teacher's consoleIO device
// serializes writes (spec.md §5, §6.1). Native handlers do not write
// through it.
func (vm *Interpreter) SetStdout(w io.Writer) {
	vm.stdoutMu.Lock()
	defer vm.stdoutMu.Unlock()
	vm.stdout.Flush()
	vm.stdout = bufio.NewWriter(w)
}

func (vm *Interpreter) writeStdout(s string) {
	vm.stdoutMu.Lock()
	defer vm.stdoutMu.Unlock()
	vm.stdout.WriteString(s)
	vm.stdout.Flush()
}

// Reset clears the heap, call stack, and breakpoints, leaving loaded
// functions and constants intact (spec.md §6.1).
func (vm *Interpreter) Reset() {
	vm.heap.Reset()
	vm.stack = CallStack{}
	vm.breakpoints = make(map[int]bool)
	vm.globals = make(map[string]RuntimeValue)
	vm.inlineCache = make(map[string]int)
}

func (vm *Interpreter) Heap() *Heap { return vm.heap }

// SetBreakpoint records offset so the dispatch loop reports state
// before executing the instruction there (spec.md §4.7). Step/pause
// semantics beyond reporting are out of scope.
func (vm *Interpreter) SetBreakpoint(offset int)   { vm.breakpoints[offset] = true }
func (vm *Interpreter) ClearBreakpoint(offset int) { delete(vm.breakpoints, offset) }

// CurrentState reports the function name and instruction pointer the
// dispatch loop was at when it last hit a breakpoint, for an external
// controller to inspect (spec.md §4.7).
func (vm *Interpreter) CurrentState() (funcName string, ip int) { return vm.curFunc, vm.curIP }
