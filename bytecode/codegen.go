package bytecode

import (
	"hash/crc32"

	"yaoxiang/ir"
)

// Generate lowers a ModuleIR into a BytecodeFile (spec.md §4.5): it
// flattens each function's basic blocks into one linear instruction
// sequence, resolves block-label jump targets into signed relative
// offsets, and interns every literal into a shared constant pool.
func Generate(mod *ir.ModuleIR) *BytecodeFile {
	file := &BytecodeFile{Magic: Magic, Version: Version, EntryIndex: -1}

	// The type table is built first so Cast/TypeCheck lowering can
	// intern target-type ids while functions are being flattened.
	for _, sd := range mod.Structs {
		file.Types = append(file.Types, TypeEntry{Name: sd.Name, Fields: sd.Fields})
	}
	for _, fn := range mod.Functions {
		bf := lowerFunction(fn, &file.Constants, &file.Types)
		file.Functions = append(file.Functions, bf)
	}
	for i, fn := range mod.Functions {
		if fn.Name == mod.EntryFunc {
			file.EntryIndex = i
		}
	}
	for _, g := range mod.Globals {
		ge := GlobalEntry{Name: g.Name, Type: g.Type.String()}
		if g.Init != nil {
			cv := constFromIR(*g.Init)
			ge.Init = &cv
		}
		file.Globals = append(file.Globals, ge)
	}
	file.Checksum = ComputeChecksum(file)
	return file
}

// ComputeChecksum covers the constant pool and every function's
// encoded instruction stream — the §6.4 header checksum the loader
// re-derives before trusting a file.
func ComputeChecksum(f *BytecodeFile) uint32 {
	h := crc32.NewIEEE()
	h.Write(EncodeConstPool(f.Constants))
	for i := range f.Functions {
		h.Write(EncodeInstrs(f.Functions[i].Instrs))
	}
	return h.Sum32()
}

// flatInstr pairs a translated instruction with bookkeeping needed to
// resolve label references into relative offsets once every block's
// starting index is known.
type flatInstr struct {
	instr        BytecodeInstr
	jumpLabel    int
	hasJump      bool
	catchLabel   int
	hasCatch     bool
	defaultLabel int
	hasDefault   bool
	caseLabels   []int // parallel to instr.Cases, resolved after flattening
	line         int32
}

func lowerFunction(fn *ir.FunctionIR, pool *[]ConstValue, types *[]TypeEntry) BytecodeFunction {
	labelStart := make(map[int]int)
	var flat []flatInstr

	for _, block := range fn.Blocks {
		labelStart[block.Label] = len(flat)
		for _, ins := range block.Instrs {
			fi := lowerInstr(ins, pool, types)
			fi.line = int32(ins.Line)
			flat = append(flat, fi)
		}
	}

	instrs := make([]BytecodeInstr, len(flat))
	lines := make([]int32, len(flat))
	for i, f := range flat {
		lines[i] = f.line
		ins := f.instr
		if f.hasJump {
			ins.Target = int32(labelStart[f.jumpLabel] - i)
		}
		if f.hasCatch {
			ins.CatchTarget = int32(labelStart[f.catchLabel] - i)
		}
		if f.hasDefault {
			ins.Default = int32(labelStart[f.defaultLabel] - i)
		}
		for ci, lbl := range f.caseLabels {
			ins.Cases[ci].Target = int32(labelStart[lbl] - i)
		}
		instrs[i] = ins
	}

	handlers := buildHandlers(instrs)

	return BytecodeFunction{
		Name:       fn.Name,
		ParamCount: len(fn.ParamTypes),
		LocalCount: fn.NumLocals,
		UpvalCount: len(fn.UpvalNames),
		UpvalNames: fn.UpvalNames,
		Instrs:     instrs,
		Labels:     labelStart,
		Handlers:   handlers,
		DebugLines: lines,
	}
}

// buildHandlers scans the flattened stream for TryBegin/TryEnd pairs
// and records the catch range (spec.md §3.4 "exception-handler
// records"); the interpreter itself tracks the handler stack directly
// off TryBegin/TryEnd at dispatch time, so this table exists for the
// loader's validation pass and external tooling.
func buildHandlers(instrs []BytecodeInstr) []ExceptionHandler {
	var out []ExceptionHandler
	var stack []struct {
		start, catch int
	}
	for i, ins := range instrs {
		switch ins.Op {
		case OpTryBegin:
			stack = append(stack, struct{ start, catch int }{i + 1, i + int(ins.CatchTarget)})
		case OpTryEnd:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				out = append(out, ExceptionHandler{StartIP: top.start, EndIP: i, CatchIP: top.catch})
			}
		}
	}
	return out
}

func lowerInstr(ins ir.Instr, pool *[]ConstValue, types *[]TypeEntry) flatInstr {
	switch ins.Op {
	case ir.OpLoad:
		return lowerLoad(ins, pool)
	case ir.OpStore:
		return lowerStore(ins, pool)
	case ir.OpCast:
		return flatInstr{instr: BytecodeInstr{
			Op: OpCast, Dst: regOf(ins.Dst), HasDst: true,
			Src: regOf(ins.Src), TypeID: internType(types, ins.TypeName),
		}}
	case ir.OpSwitch:
		fi := flatInstr{hasDefault: true, defaultLabel: ins.Default}
		cases := make([]SwitchCase, len(ins.Cases))
		fi.caseLabels = make([]int, len(ins.Cases))
		for i, c := range ins.Cases {
			cases[i] = SwitchCase{ConstIdx: internConst(pool, constFromIR(c.Value))}
			fi.caseLabels[i] = c.Target
		}
		fi.instr = BytecodeInstr{Op: OpSwitch, Src: regOf(ins.Src), Cases: cases}
		return fi
	case ir.OpBinary:
		return flatInstr{instr: BytecodeInstr{
			Op: OpBinaryOp, Dst: regOf(ins.Dst), HasDst: true,
			Lhs: regOf(ins.Lhs), Rhs: regOf(ins.Rhs), ArithOp: arithOf(ins.BinOp),
		}}
	case ir.OpUnary:
		return flatInstr{instr: BytecodeInstr{
			Op: OpUnaryOp, Dst: regOf(ins.Dst), HasDst: true,
			Src: regOf(ins.Src), UnaryOp: unaryOf(ins.UnOp),
		}}
	case ir.OpCompare:
		return flatInstr{instr: BytecodeInstr{
			Op: OpCompare, Dst: regOf(ins.Dst), HasDst: true,
			Lhs: regOf(ins.Lhs), Rhs: regOf(ins.Rhs), CmpOp: cmpOf(ins.CmpOp),
		}}
	case ir.OpCall:
		return lowerCall(ins, pool)
	case ir.OpLoadField:
		return flatInstr{instr: BytecodeInstr{
			Op: OpGetField, Dst: regOf(ins.Dst), HasDst: true,
			Src: regOf(ins.Src), ConstIdx: internConst(pool, ConstValue{Tag: ConstString, Str: ins.Field}),
		}}
	case ir.OpSetField:
		return flatInstr{instr: BytecodeInstr{
			Op: OpSetField, Src: regOf(ins.Src),
			ConstIdx: internConst(pool, ConstValue{Tag: ConstString, Str: ins.Field}),
			Args:     []int32{regOf(ins.Args[0])},
		}}
	case ir.OpLoadElement:
		return flatInstr{instr: BytecodeInstr{
			Op: OpLoadElement, Dst: regOf(ins.Dst), HasDst: true,
			Lhs: regOf(ins.Lhs), Rhs: regOf(ins.Rhs),
		}}
	case ir.OpStoreElement:
		return flatInstr{instr: BytecodeInstr{
			Op: OpStoreElement, Lhs: regOf(ins.Lhs), Rhs: regOf(ins.Rhs),
			Args: []int32{regOf(ins.Args[0])},
		}}
	case ir.OpNewList:
		return flatInstr{instr: BytecodeInstr{
			Op: OpNewListWithCap, Dst: regOf(ins.Dst), HasDst: true,
			Args: regsOf(ins.Args),
		}}
	case ir.OpNewTuple:
		return flatInstr{instr: BytecodeInstr{
			Op: OpCreateStruct, Dst: regOf(ins.Dst), HasDst: true,
			FuncName: "$tuple", Args: regsOf(ins.Args),
		}}
	case ir.OpNewStruct:
		return flatInstr{instr: BytecodeInstr{
			Op: OpCreateStruct, Dst: regOf(ins.Dst), HasDst: true,
			FuncName: ins.TypeName, Args: regsOf(ins.Args),
		}}
	case ir.OpMakeClosure:
		return flatInstr{instr: BytecodeInstr{
			Op: OpMakeClosure, Dst: regOf(ins.Dst), HasDst: true,
			FuncName: ins.FuncName, Args: regsOf(ins.Args),
		}}
	case ir.OpLoadUpvalue:
		return flatInstr{instr: BytecodeInstr{Op: OpLoadUpvalue, Dst: regOf(ins.Dst), HasDst: true, Target: int32(ins.Target)}}
	case ir.OpStoreUpvalue:
		return flatInstr{instr: BytecodeInstr{Op: OpStoreUpvalue, Src: regOf(ins.Src), Target: int32(ins.Target)}}
	case ir.OpArcNew:
		return flatInstr{instr: BytecodeInstr{Op: OpArcNew, Dst: regOf(ins.Dst), HasDst: true, Src: regOf(ins.Src)}}
	case ir.OpArcClone:
		return flatInstr{instr: BytecodeInstr{Op: OpArcClone, Dst: regOf(ins.Dst), HasDst: true, Src: regOf(ins.Src)}}
	case ir.OpWeakNew:
		return flatInstr{instr: BytecodeInstr{Op: OpWeakNew, Dst: regOf(ins.Dst), HasDst: true, Src: regOf(ins.Src)}}
	case ir.OpWeakUpgrade:
		return flatInstr{instr: BytecodeInstr{Op: OpWeakUpgrade, Dst: regOf(ins.Dst), HasDst: true, Src: regOf(ins.Src)}}
	case ir.OpJmp:
		return flatInstr{instr: BytecodeInstr{Op: OpJmp}, jumpLabel: ins.Target, hasJump: true}
	case ir.OpJmpIf:
		return flatInstr{instr: BytecodeInstr{Op: OpJmpIf, Src: regOf(ins.Src)}, jumpLabel: ins.Target, hasJump: true}
	case ir.OpJmpIfNot:
		return flatInstr{instr: BytecodeInstr{Op: OpJmpIfNot, Src: regOf(ins.Src)}, jumpLabel: ins.Target, hasJump: true}
	case ir.OpRet:
		if ins.HasDst {
			return flatInstr{instr: BytecodeInstr{Op: OpReturnValue, Src: regOf(ins.Src)}}
		}
		return flatInstr{instr: BytecodeInstr{Op: OpReturn}}
	case ir.OpThrow:
		return flatInstr{instr: BytecodeInstr{Op: OpThrow, Src: regOf(ins.Src)}}
	case ir.OpTryBegin:
		return flatInstr{instr: BytecodeInstr{Op: OpTryBegin}, catchLabel: ins.CatchTarget, hasCatch: true}
	case ir.OpTryEnd:
		return flatInstr{instr: BytecodeInstr{Op: OpTryEnd}}
	default:
		return flatInstr{instr: BytecodeInstr{Op: OpNop}}
	}
}

func lowerLoad(ins ir.Instr, pool *[]ConstValue) flatInstr {
	dst := regOf(ins.Dst)
	switch ins.Src.Kind {
	case ir.OpConst:
		return flatInstr{instr: BytecodeInstr{Op: OpLoadConst, Dst: dst, HasDst: true, ConstIdx: internConst(pool, constFromIR(ins.Src.Const))}}
	case ir.OpLocal, ir.OpTemp:
		return flatInstr{instr: BytecodeInstr{Op: OpLoadLocal, Dst: dst, HasDst: true, Src: int32(ins.Src.Reg)}}
	case ir.OpArg:
		return flatInstr{instr: BytecodeInstr{Op: OpLoadArg, Dst: dst, HasDst: true, Src: int32(ins.Src.Reg)}}
	case ir.OpGlobal:
		return flatInstr{instr: BytecodeInstr{Op: OpLoadGlobal, Dst: dst, HasDst: true, FuncName: ins.Src.Name}}
	}
	return flatInstr{instr: BytecodeInstr{Op: OpNop}}
}

func lowerStore(ins ir.Instr, pool *[]ConstValue) flatInstr {
	src := regOf(ins.Src)
	switch ins.Dst.Kind {
	case ir.OpLocal, ir.OpTemp:
		return flatInstr{instr: BytecodeInstr{Op: OpStoreLocal, Src: src, Dst: int32(ins.Dst.Reg)}}
	case ir.OpGlobal:
		return flatInstr{instr: BytecodeInstr{Op: OpStoreGlobal, Src: src, FuncName: ins.Dst.Name}}
	}
	return flatInstr{instr: BytecodeInstr{Op: OpNop}}
}

func lowerCall(ins ir.Instr, pool *[]ConstValue) flatInstr {
	op := OpCallStatic
	var src int32
	if ins.FuncName == "" {
		op = OpCallDyn
		src = regOf(ins.Src)
	}
	return flatInstr{instr: BytecodeInstr{
		Op: op, Dst: regOf(ins.Dst), HasDst: ins.HasDst,
		Src: src, FuncName: ins.FuncName, Args: regsOf(ins.Args),
	}}
}

func regOf(o ir.Operand) int32 { return int32(o.Reg) }

// internType returns the type-table index for name, appending a
// field-less entry for scalar targets (Int, Float, ...) that have no
// struct descriptor of their own.
func internType(types *[]TypeEntry, name string) int32 {
	for i, t := range *types {
		if t.Name == name {
			return int32(i)
		}
	}
	*types = append(*types, TypeEntry{Name: name})
	return int32(len(*types) - 1)
}

func regsOf(ops []ir.Operand) []int32 {
	out := make([]int32, len(ops))
	for i, o := range ops {
		out[i] = regOf(o)
	}
	return out
}

func arithOf(b ir.BinOp) ArithOp {
	switch b {
	case ir.Add:
		return Add
	case ir.Sub:
		return Sub
	case ir.Mul:
		return Mul
	case ir.Div:
		return Div
	case ir.Rem:
		return Rem
	case ir.BitAnd:
		return And
	case ir.BitOr:
		return Or
	case ir.BitXor:
		return Xor
	case ir.Shl:
		return Shl
	case ir.Sar:
		return Sar
	case ir.Shr:
		return Shr
	case ir.Concat:
		return Concat
	}
	return Add
}

func cmpOf(c ir.CmpOp) CmpOp {
	switch c {
	case ir.Eq:
		return CmpEq
	case ir.Ne:
		return CmpNe
	case ir.Lt:
		return CmpLt
	case ir.Le:
		return CmpLe
	case ir.Gt:
		return CmpGt
	case ir.Ge:
		return CmpGe
	}
	return CmpEq
}

func unaryOf(u ir.UnOp) UnaryOpKind {
	if u == ir.Not {
		return UnaryNot
	}
	return UnaryNeg
}

func constFromIR(c ir.ConstValue) ConstValue {
	return ConstValue{
		Tag: ConstTag(c.Tag), Bool: c.Bool, Int: c.Int, Big: c.Big,
		Float: c.Float, Char: c.Char, Str: c.Str, Bytes: c.Bytes,
	}
}
