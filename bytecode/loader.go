package bytecode

import "fmt"

// MaxLocals bounds a function's local-register count (spec.md §4.6
// "typical value: 65 535").
const MaxLocals = 65535

// Load validates a BytecodeFile and produces the BytecodeModule the
// interpreter consumes (spec.md §4.6): every jump, switch and catch
// target must resolve within its function, every constant index must
// be in range, call/struct/closure instructions must carry a target
// name (names are resolved at dispatch time, and Cast/TypeCheck type
// ids are not checked), and no function's local count may exceed
// MaxLocals.
func Load(file *BytecodeFile) (*BytecodeModule, error) {
	if file.Checksum != 0 && file.Checksum != ComputeChecksum(file) {
		return nil, fmt.Errorf("bytecode: checksum mismatch")
	}
	mod := &BytecodeModule{
		Constants:  append([]ConstValue(nil), file.Constants...),
		Types:      append([]TypeEntry(nil), file.Types...),
		Functions:  append([]BytecodeFunction(nil), file.Functions...),
		Globals:    append([]GlobalEntry(nil), file.Globals...),
		FuncIndex:  make(map[string]int, len(file.Functions)),
		EntryIndex: file.EntryIndex,
	}
	for i, fn := range mod.Functions {
		mod.FuncIndex[fn.Name] = i
		if fn.LocalCount > MaxLocals {
			return nil, fmt.Errorf("bytecode: function %q has %d locals, exceeds MAX_LOCALS (%d)", fn.Name, fn.LocalCount, MaxLocals)
		}
		if err := validateFunction(fn, mod); err != nil {
			return nil, fmt.Errorf("bytecode: function %q: %w", fn.Name, err)
		}
	}
	if mod.EntryIndex >= len(mod.Functions) {
		return nil, fmt.Errorf("bytecode: entry index %d out of range", mod.EntryIndex)
	}
	return mod, nil
}

func validateFunction(fn BytecodeFunction, mod *BytecodeModule) error {
	n := len(fn.Instrs)
	for i, ins := range fn.Instrs {
		switch ins.Op {
		case OpJmp, OpJmpIf, OpJmpIfNot:
			target := i + int(ins.Target)
			if target < 0 || target > n {
				return fmt.Errorf("jump at %d targets out-of-range instruction %d", i, target)
			}
		case OpSwitch:
			def := i + int(ins.Default)
			if def < 0 || def > n {
				return fmt.Errorf("switch at %d has out-of-range default target %d", i, def)
			}
			for _, c := range ins.Cases {
				target := i + int(c.Target)
				if target < 0 || target > n {
					return fmt.Errorf("switch at %d has out-of-range case target %d", i, target)
				}
				if int(c.ConstIdx) >= len(mod.Constants) {
					return fmt.Errorf("switch at %d references out-of-range constant %d", i, c.ConstIdx)
				}
			}
		case OpTryBegin:
			target := i + int(ins.CatchTarget)
			if target < 0 || target > n {
				return fmt.Errorf("try_begin at %d has out-of-range catch target %d", i, target)
			}
		case OpLoadConst:
			if int(ins.ConstIdx) >= len(mod.Constants) {
				return fmt.Errorf("load_const at %d references out-of-range constant %d", i, ins.ConstIdx)
			}
		case OpGetField, OpSetField:
			if int(ins.ConstIdx) >= len(mod.Constants) {
				return fmt.Errorf("field access at %d references out-of-range constant %d", i, ins.ConstIdx)
			}
		case OpCreateStruct, OpCallStatic, OpCallNative, OpCallVirt, OpMakeClosure:
			// Function/type names are resolved dynamically at dispatch
			// time by the interpreter (spec.md §4.7); nothing to check
			// statically beyond the name being present.
			if ins.FuncName == "" && ins.Op != OpCallVirt {
				return fmt.Errorf("%s at %d has no target name", ins.Op, i)
			}
		}
		if ins.Dst < 0 || int(ins.Dst) > fn.LocalCount {
			// Dst of 0 with HasDst false is common (no destination); only
			// flag genuinely out-of-range positive register indices.
			if ins.HasDst && int(ins.Dst) >= fn.LocalCount {
				return fmt.Errorf("instruction %d writes out-of-range register %d (local_count=%d)", i, ins.Dst, fn.LocalCount)
			}
		}
	}
	for _, h := range fn.Handlers {
		if h.CatchIP < 0 || h.CatchIP > n {
			return fmt.Errorf("exception handler catch target %d out of range", h.CatchIP)
		}
	}
	return nil
}
