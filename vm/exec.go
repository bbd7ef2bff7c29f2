package vm

import (
	"fmt"
	"math"

	"yaoxiang/bytecode"
)

// ExecuteModule appends module's constants and functions to the
// global pool, registers each function by name and index, and — if
// an entry point exists — runs it with no arguments and prints a
// non-unit result, matching spec.md §4.7's execute_module contract.
func (vm *Interpreter) ExecuteModule(module *bytecode.BytecodeModule) error {
	constBase := len(vm.constants)
	vm.constants = append(vm.constants, module.Constants...)
	vm.types = append(vm.types, module.Types...)

	funcBase := len(vm.funcs)
	for i := range module.Functions {
		fn := module.Functions[i]
		vm.funcs = append(vm.funcs, &fn)
		vm.funcIndex[fn.Name] = funcBase + i
	}
	_ = constBase

	for _, g := range module.Globals {
		if g.Init != nil {
			vm.globals[g.Name] = vm.constToRuntime(*g.Init)
		} else {
			vm.globals[g.Name] = UnitVal()
		}
	}
	if idx, ok := vm.funcIndex["__init__"]; ok {
		if _, err := vm.ExecuteFunction(vm.funcs[idx], nil); err != nil {
			return err
		}
	}

	if module.EntryIndex >= 0 && module.EntryIndex < len(module.Functions) {
		entryFn := vm.funcs[funcBase+module.EntryIndex]
		result, err := vm.ExecuteFunction(entryFn, nil)
		if err != nil {
			return err
		}
		if !result.IsUnit() {
			vm.writeStdout(result.String() + "\n")
		}
	}
	return nil
}

// ExecuteFunction runs fn to completion with the given arguments
// (spec.md §4.7 execute_function / §6.1).
func (vm *Interpreter) ExecuteFunction(fn *bytecode.BytecodeFunction, args []RuntimeValue) (RuntimeValue, error) {
	return vm.executeFunctionWithEnv(fn, args, nil)
}

func (vm *Interpreter) executeFunctionWithEnv(fn *bytecode.BytecodeFunction, args []RuntimeValue, upvals []RuntimeValue) (RuntimeValue, error) {
	if fn.LocalCount > bytecode.MaxLocals {
		return UnitVal(), wrapErr(ErrTooManyLocals, fn.Name, 0)
	}
	maxDepth := vm.cfg.MaxStackDepth
	if maxDepth <= 0 {
		maxDepth = 1024
	}
	if vm.stack.depth() >= maxDepth {
		return UnitVal(), wrapErr(ErrStackOverflow, fn.Name, 0)
	}

	frame := NewFrame(fn, args, upvals)
	vm.stack.push(frame)
	defer vm.stack.pop()

	for {
		if frame.IP < 0 || frame.IP >= len(fn.Instrs) {
			return UnitVal(), nil
		}
		if vm.breakpoints[frame.IP] {
			vm.curFunc, vm.curIP = fn.Name, frame.IP
		}
		ins := fn.Instrs[frame.IP]
		result, jumped, done, retVal, err := vm.step(frame, fn, ins)
		if err != nil {
			if catchIP, ok := frame.topHandler(); ok {
				frame.IP = catchIP
				continue
			}
			re := &RuntimeError{Kind: err, Func: fn.Name, IP: frame.IP}
			if vm.cfg.GenerateDebugInfo && frame.IP < len(fn.DebugLines) {
				re.Line = int(fn.DebugLines[frame.IP])
			}
			return UnitVal(), re
		}
		_ = result
		if done {
			return retVal, nil
		}
		if !jumped {
			frame.IP++
		}
	}
}

// step dispatches a single instruction. It returns (unused, jumped,
// done, returnValue, error); done signals the frame should pop and
// return returnValue.
func (vm *Interpreter) step(frame *Frame, fn *bytecode.BytecodeFunction, ins bytecode.BytecodeInstr) (RuntimeValue, bool, bool, RuntimeValue, error) {
	switch ins.Op {
	case bytecode.OpNop:
		return UnitVal(), false, false, UnitVal(), nil

	case bytecode.OpReturn:
		return UnitVal(), false, true, UnitVal(), nil
	case bytecode.OpReturnValue:
		return UnitVal(), false, true, frame.reg(ins.Src), nil

	case bytecode.OpJmp:
		frame.IP += int(ins.Target)
		return UnitVal(), true, false, UnitVal(), nil
	case bytecode.OpJmpIf:
		if frame.reg(ins.Src).Truthy() {
			frame.IP += int(ins.Target)
			return UnitVal(), true, false, UnitVal(), nil
		}
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpJmpIfNot:
		if !frame.reg(ins.Src).Truthy() {
			frame.IP += int(ins.Target)
			return UnitVal(), true, false, UnitVal(), nil
		}
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpSwitch:
		subject := frame.reg(ins.Src)
		for _, c := range ins.Cases {
			if int(c.ConstIdx) < len(vm.constants) && Equal(vm.heap, subject, vm.constToRuntime(vm.constants[c.ConstIdx])) {
				frame.IP += int(c.Target)
				return UnitVal(), true, false, UnitVal(), nil
			}
		}
		frame.IP += int(ins.Default)
		return UnitVal(), true, false, UnitVal(), nil

	case bytecode.OpMov:
		frame.setReg(ins.Dst, frame.reg(ins.Src))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpLoadConst:
		if int(ins.ConstIdx) >= len(vm.constants) {
			return UnitVal(), false, false, UnitVal(), nil
		}
		frame.setReg(ins.Dst, vm.constToRuntime(vm.constants[ins.ConstIdx]))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpLoadLocal:
		frame.setReg(ins.Dst, frame.reg(ins.Src))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStoreLocal:
		frame.setReg(ins.Dst, frame.reg(ins.Src))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpLoadArg:
		frame.setReg(ins.Dst, frame.reg(ins.Src))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpLoadGlobal:
		frame.setReg(ins.Dst, vm.globals[ins.FuncName])
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStoreGlobal:
		vm.globals[ins.FuncName] = frame.reg(ins.Src)
		return UnitVal(), false, false, UnitVal(), nil

	case bytecode.OpBinaryOp:
		v, err := vm.binaryOp(ins.ArithOp, frame.reg(ins.Lhs), frame.reg(ins.Rhs))
		if err != nil {
			return UnitVal(), false, false, UnitVal(), err
		}
		frame.setReg(ins.Dst, v)
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpUnaryOp:
		frame.setReg(ins.Dst, vm.unaryOp(ins.UnaryOp, frame.reg(ins.Src)))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpCompare:
		frame.setReg(ins.Dst, vm.compare(ins.CmpOp, frame.reg(ins.Lhs), frame.reg(ins.Rhs)))
		return UnitVal(), false, false, UnitVal(), nil

	case bytecode.OpGetField:
		name := vm.constString(ins.ConstIdx)
		v, err := vm.getField(frame.reg(ins.Src), name)
		if err != nil {
			return UnitVal(), false, false, UnitVal(), err
		}
		frame.setReg(ins.Dst, v)
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpSetField:
		name := vm.constString(ins.ConstIdx)
		obj := frame.reg(ins.Src)
		val := frame.reg(ins.Args[0])
		vm.setField(obj, name, val)
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpLoadElement:
		v := vm.loadElement(frame.reg(ins.Lhs), frame.reg(ins.Rhs))
		frame.setReg(ins.Dst, v)
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStoreElement:
		vm.storeElement(frame.reg(ins.Lhs), frame.reg(ins.Rhs), frame.reg(ins.Args[0]))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpNewListWithCap:
		items := make([]RuntimeValue, len(ins.Args))
		for i, a := range ins.Args {
			items[i] = frame.reg(a)
		}
		h := vm.heap.Alloc(&HeapValue{Kind: HList, Items: items})
		frame.setReg(ins.Dst, RuntimeValue{Tag: List, H: h})
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpCreateStruct:
		v := vm.createStruct(frame, ins)
		frame.setReg(ins.Dst, v)
		return UnitVal(), false, false, UnitVal(), nil

	case bytecode.OpArcNew:
		frame.setReg(ins.Dst, NewArc(frame.reg(ins.Src)))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpArcClone:
		frame.setReg(ins.Dst, CloneArc(frame.reg(ins.Src)))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpArcDrop:
		DropArc(frame.reg(ins.Src))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpWeakNew:
		frame.setReg(ins.Dst, NewWeak(frame.reg(ins.Src)))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpWeakUpgrade:
		frame.setReg(ins.Dst, UpgradeWeak(frame.reg(ins.Src)))
		return UnitVal(), false, false, UnitVal(), nil

	case bytecode.OpCallStatic:
		v, err := vm.callStatic(frame, ins)
		if err != nil {
			return UnitVal(), false, false, UnitVal(), err
		}
		if ins.HasDst {
			frame.setReg(ins.Dst, v)
		}
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpCallDyn:
		v, err := vm.callDyn(frame, ins)
		if err != nil {
			return UnitVal(), false, false, UnitVal(), err
		}
		if ins.HasDst {
			frame.setReg(ins.Dst, v)
		}
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpCallVirt:
		v, err := vm.callVirt(frame, ins)
		if err != nil {
			return UnitVal(), false, false, UnitVal(), err
		}
		if ins.HasDst {
			frame.setReg(ins.Dst, v)
		}
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpMakeClosure:
		frame.setReg(ins.Dst, vm.makeClosure(frame, ins))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpLoadUpvalue:
		if int(ins.Target) < len(frame.Upvals) {
			frame.setReg(ins.Dst, frame.Upvals[ins.Target])
		}
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStoreUpvalue:
		if int(ins.Target) < len(frame.Upvals) {
			frame.Upvals[ins.Target] = frame.reg(ins.Src)
		}
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpCloseUpvalue:
		return UnitVal(), false, false, UnitVal(), nil

	case bytecode.OpStringLength:
		frame.setReg(ins.Dst, IntVal(int64(len([]rune(frame.reg(ins.Src).S)))))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStringConcat:
		frame.setReg(ins.Dst, StringVal(frame.reg(ins.Lhs).S+frame.reg(ins.Rhs).S))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStringEqual:
		frame.setReg(ins.Dst, BoolVal(frame.reg(ins.Lhs).S == frame.reg(ins.Rhs).S))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStringGetChar:
		runes := []rune(frame.reg(ins.Lhs).S)
		idx := int(frame.reg(ins.Rhs).I)
		if idx < 0 || idx >= len(runes) {
			return UnitVal(), false, false, UnitVal(), ErrIndexOutOfBounds
		}
		frame.setReg(ins.Dst, CharVal(runes[idx]))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStringFromInt:
		frame.setReg(ins.Dst, StringVal(fmt.Sprintf("%d", frame.reg(ins.Src).I)))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpStringFromFloat:
		frame.setReg(ins.Dst, StringVal(fmt.Sprintf("%g", frame.reg(ins.Src).F)))
		return UnitVal(), false, false, UnitVal(), nil

	case bytecode.OpTryBegin:
		frame.pushHandler(frame.IP + int(ins.CatchTarget))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpTryEnd:
		frame.popHandler()
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpThrow:
		return UnitVal(), false, false, UnitVal(), &RuntimeError{Kind: fmt.Errorf("uncaught throw: %s", frame.reg(ins.Src)), Func: fn.Name, IP: frame.IP}

	case bytecode.OpBoundsCheck:
		container := frame.reg(ins.Lhs)
		idx := int(frame.reg(ins.Rhs).I)
		n := vm.lengthOf(container)
		if idx < 0 || idx >= n {
			return UnitVal(), false, false, UnitVal(), ErrIndexOutOfBounds
		}
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpTypeCheck:
		frame.setReg(ins.Dst, BoolVal(vm.matchesType(frame.reg(ins.Src), ins.TypeID)))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpTypeOf:
		frame.setReg(ins.Dst, StringVal(frame.reg(ins.Src).Tag.String()))
		return UnitVal(), false, false, UnitVal(), nil
	case bytecode.OpCast:
		frame.setReg(ins.Dst, vm.cast(frame.reg(ins.Src), ins.TypeID))
		return UnitVal(), false, false, UnitVal(), nil

	case bytecode.OpStackAlloc, bytecode.OpHeapAlloc, bytecode.OpDrop, bytecode.OpCallNative:
		return UnitVal(), false, false, UnitVal(), nil
	}
	return UnitVal(), false, false, UnitVal(), nil
}

func (vm *Interpreter) constToRuntime(c bytecode.ConstValue) RuntimeValue {
	switch c.Tag {
	case bytecode.ConstVoid:
		return UnitVal()
	case bytecode.ConstBool:
		return BoolVal(c.Bool)
	case bytecode.ConstInt:
		return IntVal(c.Int) // narrowed to i64 at use per spec.md §4.1
	case bytecode.ConstFloat:
		return FloatVal(c.Float)
	case bytecode.ConstChar:
		return CharVal(c.Char)
	case bytecode.ConstString:
		return StringVal(c.Str)
	case bytecode.ConstBytes:
		return BytesVal(c.Bytes)
	}
	return UnitVal()
}

func (vm *Interpreter) constString(idx int32) string {
	if int(idx) < 0 || int(idx) >= len(vm.constants) {
		return ""
	}
	return vm.constants[idx].Str
}

// binaryOp dispatches spec.md §4.3's Int/Float overload: mixed-tag
// operands produce Unit, a runtime safety net since the type checker
// is responsible for rejecting such programs (spec.md §4.7).
func (vm *Interpreter) binaryOp(op bytecode.ArithOp, l, r RuntimeValue) (RuntimeValue, error) {
	if op == bytecode.Concat {
		return vm.concat(l, r)
	}
	// `+` is overloaded onto list and string concatenation (spec.md
	// §4.3); the checker guarantees matching operand types.
	if op == bytecode.Add && (l.Tag == List || l.Tag == String) {
		return vm.concat(l, r)
	}
	if l.Tag == Int && r.Tag == Int {
		return vm.intBinary(op, l.I, r.I)
	}
	if l.Tag == Float && r.Tag == Float {
		return vm.floatBinary(op, l.F, r.F), nil
	}
	return UnitVal(), nil
}

func (vm *Interpreter) intBinary(op bytecode.ArithOp, l, r int64) (RuntimeValue, error) {
	switch op {
	case bytecode.Add:
		return IntVal(l + r), nil // wraps per spec.md §8 "two's-complement"
	case bytecode.Sub:
		return IntVal(l - r), nil
	case bytecode.Mul:
		return IntVal(l * r), nil
	case bytecode.Div:
		if r == 0 {
			return UnitVal(), ErrDivisionByZero
		}
		return IntVal(l / r), nil
	case bytecode.Rem:
		if r == 0 {
			return UnitVal(), ErrDivisionByZero
		}
		return IntVal(l % r), nil
	case bytecode.And:
		return IntVal(l & r), nil
	case bytecode.Or:
		return IntVal(l | r), nil
	case bytecode.Xor:
		return IntVal(l ^ r), nil
	case bytecode.Shl:
		return IntVal(l << uint(r)), nil
	case bytecode.Sar:
		return IntVal(l >> uint(r)), nil
	case bytecode.Shr:
		return IntVal(int64(uint64(l) >> uint(r))), nil
	}
	return UnitVal(), nil
}

func (vm *Interpreter) floatBinary(op bytecode.ArithOp, l, r float64) RuntimeValue {
	switch op {
	case bytecode.Add:
		return FloatVal(l + r)
	case bytecode.Sub:
		return FloatVal(l - r)
	case bytecode.Mul:
		return FloatVal(l * r)
	case bytecode.Div:
		return FloatVal(l / r)
	case bytecode.Rem:
		return FloatVal(math.Mod(l, r))
	}
	return UnitVal()
}

// concat implements spec.md §4.3's "List concatenation L + L" and
// string concatenation by the '+' operator.
func (vm *Interpreter) concat(l, r RuntimeValue) (RuntimeValue, error) {
	if l.Tag == String && r.Tag == String {
		return StringVal(l.S + r.S), nil
	}
	if l.Tag == List && r.Tag == List {
		lv, _ := vm.heap.Get(l.H)
		rv, _ := vm.heap.Get(r.H)
		items := make([]RuntimeValue, 0, len(lv.Items)+len(rv.Items))
		items = append(items, lv.Items...)
		items = append(items, rv.Items...)
		h := vm.heap.Alloc(&HeapValue{Kind: HList, Items: items})
		return RuntimeValue{Tag: List, H: h}, nil
	}
	return UnitVal(), nil
}

func (vm *Interpreter) unaryOp(op bytecode.UnaryOpKind, v RuntimeValue) RuntimeValue {
	switch op {
	case bytecode.UnaryNeg:
		if v.Tag == Int {
			return IntVal(-v.I)
		}
		if v.Tag == Float {
			return FloatVal(-v.F)
		}
	case bytecode.UnaryNot:
		if v.Tag == Bool {
			return BoolVal(!v.B)
		}
	}
	return UnitVal()
}

// compare implements numeric/string ordering and equality (spec.md
// §4.3 "String comparison by lexicographic order").
func (vm *Interpreter) compare(op bytecode.CmpOp, l, r RuntimeValue) RuntimeValue {
	if op == bytecode.CmpEq {
		return BoolVal(Equal(vm.heap, l, r))
	}
	if op == bytecode.CmpNe {
		return BoolVal(!Equal(vm.heap, l, r))
	}
	switch {
	case l.Tag == Int && r.Tag == Int:
		return BoolVal(cmpOrdered(op, l.I < r.I, l.I > r.I))
	case l.Tag == Float && r.Tag == Float:
		return BoolVal(cmpOrdered(op, l.F < r.F, l.F > r.F))
	case l.Tag == String && r.Tag == String:
		return BoolVal(cmpOrdered(op, l.S < r.S, l.S > r.S))
	}
	return UnitVal()
}

func cmpOrdered(op bytecode.CmpOp, less, greater bool) bool {
	switch op {
	case bytecode.CmpLt:
		return less
	case bytecode.CmpLe:
		return less || !greater
	case bytecode.CmpGt:
		return greater
	case bytecode.CmpGe:
		return greater || !less
	}
	return false
}

// cast converts v to the type-table entry named by typeID. Identity
// casts and unsupported pairs return v unchanged; the checker does not
// reject any cast pair.
func (vm *Interpreter) cast(v RuntimeValue, typeID int32) RuntimeValue {
	if int(typeID) < 0 || int(typeID) >= len(vm.types) {
		return v
	}
	switch vm.types[typeID].Name {
	case "Int":
		switch v.Tag {
		case Float:
			return IntVal(int64(v.F))
		case Char:
			return IntVal(int64(v.Ch))
		case Bool:
			if v.B {
				return IntVal(1)
			}
			return IntVal(0)
		}
	case "Float":
		if v.Tag == Int {
			return FloatVal(float64(v.I))
		}
	case "Char":
		if v.Tag == Int {
			return CharVal(rune(v.I))
		}
	case "String":
		return StringVal(v.String())
	}
	return v
}
