// Package ffi implements the native-function bridge spec.md §4.8
// describes: a name-keyed registry of Go-implemented handlers the
// interpreter's CallStatic dispatch consults before falling back to
// an interpreted function, plus the std.* namespace built on top of
// it. It depends on vm (for RuntimeValue/Heap/NativeContext) rather
// than the reverse, the same direction the teacher's device layer
// (vm/devices.go) is consulted from the dispatch loop without the
// devices needing to import the loop.
package ffi

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"yaoxiang/vm"
)

// Registry is a mutex-guarded name→handler table, the functional
// descendant of the teacher's sync.Mutex-guarded consoleIO device
// (vm/devices.go): one shared, lockable resource multiple call sites
// read concurrently (spec.md §5 "FFI registry may be shared... cache
// must use a mutual-exclusion primitive").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]vm.NativeHandler
	out      *bufio.Writer
}

// New returns an empty registry with no std.* bindings.
func New() *Registry {
	return &Registry{handlers: make(map[string]vm.NativeHandler), out: bufio.NewWriter(os.Stdout)}
}

// WithStd returns a registry pre-populated with the std.io, std.math,
// std.string, std.list, std.dict, std.time, and std.os namespaces
// (spec.md §4.8, §8 scenario 4/5).
func WithStd() *Registry {
	r := New()
	r.registerIO()
	r.registerMath()
	r.registerString()
	r.registerList()
	r.registerDict()
	r.registerTime()
	r.registerOS()
	return r
}

// SetOutput redirects std.io.* writes, mirroring vm.Interpreter's
// SetStdout so the two can be pointed at the same sink.
func (r *Registry) SetOutput(w *bufio.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = w
}

// Register installs a single native handler under name, overwriting
// any previous binding.
func (r *Registry) Register(name string, h vm.NativeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup implements vm.Registry, consulting the cache under a read
// lock the way the teacher's consoleIO guards concurrent reads.
func (r *Registry) Lookup(name string) (vm.NativeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) registerIO() {
	r.Register("std.io.print", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		r.mu.RLock()
		w := r.out
		r.mu.RUnlock()
		for _, a := range args {
			fmt.Fprint(w, a.String())
		}
		w.Flush()
		return vm.UnitVal(), nil
	})
	r.Register("std.io.println", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		r.mu.RLock()
		w := r.out
		r.mu.RUnlock()
		for _, a := range args {
			fmt.Fprint(w, a.String())
		}
		fmt.Fprintln(w)
		w.Flush()
		return vm.UnitVal(), nil
	})
	r.Register("std.io.read_line", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return vm.UnitVal(), nil
		}
		return vm.StringVal(trimNewline(line)), nil
	})
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func requireInt(v vm.RuntimeValue) int64   { return v.I }
func requireFloat(v vm.RuntimeValue) float64 {
	if v.Tag == vm.Int {
		return float64(v.I)
	}
	return v.F
}

func (r *Registry) registerMath() {
	r.Register("std.math.max", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		a, b := requireFloat(args[0]), requireFloat(args[1])
		if args[0].Tag == vm.Int && args[1].Tag == vm.Int {
			if args[0].I > args[1].I {
				return args[0], nil
			}
			return args[1], nil
		}
		return vm.FloatVal(math.Max(a, b)), nil
	})
	r.Register("std.math.min", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		a, b := requireFloat(args[0]), requireFloat(args[1])
		if args[0].Tag == vm.Int && args[1].Tag == vm.Int {
			if args[0].I < args[1].I {
				return args[0], nil
			}
			return args[1], nil
		}
		return vm.FloatVal(math.Min(a, b)), nil
	})
	r.Register("std.math.sqrt", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		return vm.FloatVal(math.Sqrt(requireFloat(args[0]))), nil
	})
	r.Register("std.math.pow", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		return vm.FloatVal(math.Pow(requireFloat(args[0]), requireFloat(args[1]))), nil
	})
	r.Register("std.math.abs", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		if args[0].Tag == vm.Int {
			n := args[0].I
			if n < 0 {
				n = -n
			}
			return vm.IntVal(n), nil
		}
		return vm.FloatVal(math.Abs(requireFloat(args[0]))), nil
	})
	r.Register("std.math.floor", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		return vm.FloatVal(math.Floor(requireFloat(args[0]))), nil
	})
}

func (r *Registry) registerString() {
	r.Register("std.string.to_int", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		n, err := strconv.ParseInt(args[0].S, 10, 64)
		if err != nil {
			return vm.UnitVal(), nil
		}
		return vm.IntVal(n), nil
	})
	r.Register("std.string.to_float", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		f, err := strconv.ParseFloat(args[0].S, 64)
		if err != nil {
			return vm.UnitVal(), nil
		}
		return vm.FloatVal(f), nil
	})
	r.Register("std.string.trim", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		return vm.StringVal(trimSpace(args[0].S)), nil
	})
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

// registerList wires map/filter/reduce, the scenario that exercises
// NativeContext.Callback reentrancy (spec.md §8 scenario 5): each
// handler invokes a user-supplied Function value by id for every
// element.
func (r *Registry) registerList() {
	r.Register("std.list.map", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		list, fn := args[0], args[1]
		hv, ok := ctx.Heap.Get(list.H)
		if !ok || fn.Fn == nil {
			return vm.UnitVal(), nil
		}
		out := make([]vm.RuntimeValue, len(hv.Items))
		for i, item := range hv.Items {
			v, err := ctx.Callback(fn.Fn.FuncID, fn.Fn.Env, []vm.RuntimeValue{item})
			if err != nil {
				return vm.UnitVal(), err
			}
			out[i] = v
		}
		h := ctx.Heap.Alloc(vmHeapValueList(out))
		return vm.RuntimeValue{Tag: vm.List, H: h}, nil
	})
	r.Register("std.list.filter", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		list, fn := args[0], args[1]
		hv, ok := ctx.Heap.Get(list.H)
		if !ok || fn.Fn == nil {
			return vm.UnitVal(), nil
		}
		var out []vm.RuntimeValue
		for _, item := range hv.Items {
			keep, err := ctx.Callback(fn.Fn.FuncID, fn.Fn.Env, []vm.RuntimeValue{item})
			if err != nil {
				return vm.UnitVal(), err
			}
			if keep.Truthy() {
				out = append(out, item)
			}
		}
		h := ctx.Heap.Alloc(vmHeapValueList(out))
		return vm.RuntimeValue{Tag: vm.List, H: h}, nil
	})
	r.Register("std.list.reduce", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		list, fn, acc := args[0], args[1], args[2]
		hv, ok := ctx.Heap.Get(list.H)
		if !ok || fn.Fn == nil {
			return acc, nil
		}
		for _, item := range hv.Items {
			v, err := ctx.Callback(fn.Fn.FuncID, fn.Fn.Env, []vm.RuntimeValue{acc, item})
			if err != nil {
				return vm.UnitVal(), err
			}
			acc = v
		}
		return acc, nil
	})
	r.Register("std.list.length", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		hv, ok := ctx.Heap.Get(args[0].H)
		if !ok {
			return vm.IntVal(0), nil
		}
		return vm.IntVal(int64(len(hv.Items))), nil
	})
}

// vmHeapValueList is a tiny constructor helper so registerList's
// closures don't need to import the unexported HeapValue literal
// shape directly at each call site.
func vmHeapValueList(items []vm.RuntimeValue) *vm.HeapValue {
	return &vm.HeapValue{Kind: vm.HList, Items: items}
}

func (r *Registry) registerDict() {
	r.Register("std.dict.keys", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		hv, ok := ctx.Heap.Get(args[0].H)
		if !ok {
			return vm.UnitVal(), nil
		}
		keys := make([]vm.RuntimeValue, len(hv.Entries))
		for i, e := range hv.Entries {
			keys[i] = e.Key
		}
		h := ctx.Heap.Alloc(vmHeapValueList(keys))
		return vm.RuntimeValue{Tag: vm.List, H: h}, nil
	})
}

func (r *Registry) registerTime() {
	r.Register("std.time.now_millis", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		return vm.IntVal(time.Now().UnixMilli()), nil
	})
	r.Register("std.time.sleep_ms", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		time.Sleep(time.Duration(requireInt(args[0])) * time.Millisecond)
		return vm.UnitVal(), nil
	})
}

func (r *Registry) registerOS() {
	r.Register("std.os.args", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		items := make([]vm.RuntimeValue, len(os.Args))
		for i, a := range os.Args {
			items[i] = vm.StringVal(a)
		}
		h := ctx.Heap.Alloc(vmHeapValueList(items))
		return vm.RuntimeValue{Tag: vm.List, H: h}, nil
	})
	r.Register("std.os.getenv", func(args []vm.RuntimeValue, ctx *vm.NativeContext) (vm.RuntimeValue, error) {
		v, ok := os.LookupEnv(args[0].S)
		if !ok {
			return vm.UnitVal(), nil
		}
		return vm.StringVal(v), nil
	})
}
