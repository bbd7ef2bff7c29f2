package vm

import (
	"fmt"
	"strings"

	"yaoxiang/bytecode"
)

// getField reads a named field off a Struct value (spec.md §4.4).
// Every struct/variant instance carries a synthetic "$tag" field set
// to its constructor's type name, which is how match lowering
// discriminates union variants and the try-operator checks for "Err"
// without the runtime needing a separate tag representation.
func (vm *Interpreter) getField(obj RuntimeValue, name string) (RuntimeValue, error) {
	if obj.Tag != Struct {
		// Containers and strings expose a synthetic length field; for
		// loops lower their bound through it.
		if name == "length" {
			switch obj.Tag {
			case String, Bytes, List, Tuple, Array, Dict:
				return IntVal(int64(vm.lengthOf(obj))), nil
			}
		}
		return UnitVal(), &TypeError{Msg: "get_field on non-struct value"}
	}
	hv, ok := vm.heap.Get(obj.H)
	if !ok {
		return UnitVal(), &TypeError{Msg: "stale handle in get_field"}
	}
	if v, ok := hv.Fields[name]; ok {
		return v, nil
	}
	return UnitVal(), nil
}

func (vm *Interpreter) setField(obj RuntimeValue, name string, val RuntimeValue) {
	if obj.Tag != Struct {
		return
	}
	hv, ok := vm.heap.Get(obj.H)
	if !ok {
		return
	}
	if hv.Fields == nil {
		hv.Fields = make(map[string]RuntimeValue)
	}
	if _, exists := hv.Fields[name]; !exists {
		hv.FieldOrder = append(hv.FieldOrder, name)
	}
	hv.Fields[name] = val
}

// loadElement implements spec.md §4.3 element access across List,
// Tuple, Array (index) and Dict (key lookup).
func (vm *Interpreter) loadElement(container, key RuntimeValue) RuntimeValue {
	hv, ok := vm.heap.Get(container.H)
	if !ok {
		return UnitVal()
	}
	switch hv.Kind {
	case HList, HTuple, HArray:
		idx := int(key.I)
		if idx < 0 || idx >= len(hv.Items) {
			return UnitVal()
		}
		return hv.Items[idx]
	case HDict:
		for _, e := range hv.Entries {
			if Equal(vm.heap, e.Key, key) {
				return e.Val
			}
		}
		return UnitVal()
	}
	return UnitVal()
}

func (vm *Interpreter) storeElement(container, key, val RuntimeValue) {
	hv, ok := vm.heap.Get(container.H)
	if !ok {
		return
	}
	switch hv.Kind {
	case HList, HTuple, HArray:
		idx := int(key.I)
		if idx < 0 || idx >= len(hv.Items) {
			return
		}
		hv.Items[idx] = val
	case HDict:
		for i, e := range hv.Entries {
			if Equal(vm.heap, e.Key, key) {
				hv.Entries[i].Val = val
				return
			}
		}
		hv.Entries = append(hv.Entries, DictEntry{Key: key, Val: val})
	}
}

// createStruct builds a Struct (or "$tuple" builtin Tuple) value from
// the positional field registers CreateStruct carries, resolving
// field names from the module's type table by name (spec.md §4.4
// "field-name resolution to index is performed using the type
// table").
func (vm *Interpreter) createStruct(frame *Frame, ins bytecode.BytecodeInstr) RuntimeValue {
	if ins.FuncName == "$tuple" {
		items := make([]RuntimeValue, len(ins.Args))
		for i, a := range ins.Args {
			items[i] = frame.reg(a)
		}
		h := vm.heap.Alloc(&HeapValue{Kind: HTuple, Items: items})
		return RuntimeValue{Tag: Tuple, H: h}
	}

	var entry bytecode.TypeEntry
	for _, t := range vm.types {
		if t.Name == ins.FuncName {
			entry = t
			break
		}
	}
	fields := make(map[string]RuntimeValue, len(ins.Args))
	order := make([]string, 0, len(ins.Args)+1)
	for i, a := range ins.Args {
		name := fmt.Sprintf("_%d", i)
		if i < len(entry.Fields) {
			name = entry.Fields[i]
		}
		fields[name] = frame.reg(a)
		order = append(order, name)
	}
	fields["$tag"] = StringVal(ins.FuncName)
	h := vm.heap.Alloc(&HeapValue{Kind: HStruct, Fields: fields, FieldOrder: order})
	return RuntimeValue{Tag: Struct, H: h, StructType: ins.FuncName}
}

// resolveCallee looks up a by-name interpreted function, retrying with
// a "_constructor" suffix — the fallback spec.md §9 adds for a bare
// type name used as a call target (e.g. `Point(1, 2)` when `Point`
// only exists as a synthesized constructor under a disambiguated
// name). With EnableInlineCache set, resolved names are memoized so a
// hot call site skips the double map probe on every dispatch.
func (vm *Interpreter) resolveCallee(name string) (int, bool) {
	if vm.cfg.EnableInlineCache {
		if idx, ok := vm.inlineCache[name]; ok {
			return idx, true
		}
	}
	idx, ok := vm.funcIndex[name]
	if !ok {
		idx, ok = vm.funcIndex[name+"_constructor"]
	}
	if ok && vm.cfg.EnableInlineCache {
		vm.inlineCache[name] = idx
	}
	return idx, ok
}

func (vm *Interpreter) callStatic(frame *Frame, ins bytecode.BytecodeInstr) (RuntimeValue, error) {
	args := make([]RuntimeValue, len(ins.Args))
	for i, a := range ins.Args {
		args[i] = frame.reg(a)
	}
	if vm.registry != nil {
		if h, ok := vm.registry.Lookup(ins.FuncName); ok {
			return h(args, &NativeContext{Heap: vm.heap, Callback: vm.callClosureByID})
		}
	}
	idx, ok := vm.resolveCallee(ins.FuncName)
	if !ok {
		// A module global may hold a first-class Function value under
		// this name; dispatch it dynamically before giving up.
		if g, isGlobal := vm.globals[ins.FuncName]; isGlobal && g.Tag == Function && g.Fn != nil {
			return vm.callClosureByID(g.Fn.FuncID, g.Fn.Env, args)
		}
		return UnitVal(), &FunctionNotFoundError{Name: ins.FuncName}
	}
	return vm.ExecuteFunction(vm.funcs[idx], args)
}

func (vm *Interpreter) callDyn(frame *Frame, ins bytecode.BytecodeInstr) (RuntimeValue, error) {
	callee := frame.reg(ins.Src)
	args := make([]RuntimeValue, len(ins.Args))
	for i, a := range ins.Args {
		args[i] = frame.reg(a)
	}
	if callee.Tag != Function || callee.Fn == nil {
		return UnitVal(), &TypeError{Msg: "call_dyn on non-function value"}
	}
	if callee.Fn.FuncID < 0 || callee.Fn.FuncID >= len(vm.funcs) {
		return UnitVal(), &FunctionNotFoundError{Name: fmt.Sprintf("#%d", callee.Fn.FuncID)}
	}
	return vm.executeFunctionWithEnv(vm.funcs[callee.Fn.FuncID], args, callee.Fn.Env)
}

// callClosureByID invokes the function at funcs[id] with args and the
// given captured environment as its upvalue bank; it is also handed to
// native code as NativeContext.Callback so higher-order std functions
// (map, filter, reduce) can invoke interpreted closures — true
// closures included, since the Function value's Env rides along
// (spec.md §4.8).
func (vm *Interpreter) callClosureByID(id int, env []RuntimeValue, args []RuntimeValue) (RuntimeValue, error) {
	if id < 0 || id >= len(vm.funcs) {
		return UnitVal(), &FunctionNotFoundError{Name: fmt.Sprintf("#%d", id)}
	}
	return vm.executeFunctionWithEnv(vm.funcs[id], args, env)
}

func (vm *Interpreter) makeClosure(frame *Frame, ins bytecode.BytecodeInstr) RuntimeValue {
	idx, ok := vm.resolveCallee(ins.FuncName)
	if !ok {
		return UnitVal()
	}
	env := make([]RuntimeValue, len(ins.Args))
	for i, a := range ins.Args {
		env[i] = frame.reg(a)
	}
	return RuntimeValue{Tag: Function, Fn: &FuncValue{FuncID: idx, Env: env}}
}

// callVirt dispatches through a struct's Vtable (spec.md §9 "CallVirt
// reads a per-instance vtable... slot index comes from TypeID").
func (vm *Interpreter) callVirt(frame *Frame, ins bytecode.BytecodeInstr) (RuntimeValue, error) {
	recv := frame.reg(ins.Src)
	if recv.Tag != Struct || int(ins.TypeID) >= len(recv.Vtable) {
		return UnitVal(), &TypeError{Msg: "call_virt on value with no vtable slot"}
	}
	funcIdx := recv.Vtable[ins.TypeID]
	args := make([]RuntimeValue, 0, len(ins.Args)+1)
	args = append(args, recv)
	for _, a := range ins.Args {
		args = append(args, frame.reg(a))
	}
	if funcIdx < 0 || funcIdx >= len(vm.funcs) {
		return UnitVal(), &FunctionNotFoundError{Name: "<vtable slot>"}
	}
	return vm.ExecuteFunction(vm.funcs[funcIdx], args)
}

// lengthOf reports the element count BoundsCheck validates an index
// against: heap container size for List/Tuple/Array/Dict, rune count
// for String, byte count for Bytes, zero otherwise.
func (vm *Interpreter) lengthOf(v RuntimeValue) int {
	switch v.Tag {
	case String:
		return len([]rune(v.S))
	case Bytes:
		return len(v.Bs)
	case List, Tuple, Array:
		hv, ok := vm.heap.Get(v.H)
		if !ok {
			return 0
		}
		return len(hv.Items)
	case Dict:
		hv, ok := vm.heap.Get(v.H)
		if !ok {
			return 0
		}
		return len(hv.Entries)
	}
	return 0
}

// matchesType reports whether v's runtime shape satisfies the type
// table entry TypeID names: a struct/variant by name for Struct
// values, otherwise by comparing the ValueTag's name with the entry's
// Name, ignoring case (so TypeEntry{Name: "Int"} matches an Int).
func (vm *Interpreter) matchesType(v RuntimeValue, typeID int32) bool {
	if int(typeID) < 0 || int(typeID) >= len(vm.types) {
		return false
	}
	entry := vm.types[typeID]
	if v.Tag == Struct {
		return v.StructType == entry.Name
	}
	return strings.EqualFold(v.Tag.String(), entry.Name)
}
