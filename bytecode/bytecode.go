// Package bytecode defines the serialized instruction set, constant
// pool, and BytecodeFile/BytecodeModule structures that sit between
// the code generator and the interpreter (spec.md §3.4, §4.5, §4.6).
package bytecode

import "fmt"

// ConstTag discriminates ConstValue's payload.
type ConstTag int

const (
	ConstVoid ConstTag = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstChar
	ConstString
	ConstBytes
)

// ConstValue is one entry of the constant pool (spec.md §3.4): void,
// bool, i128 (Big set when the magnitude exceeds i64), f64,
// char-as-codepoint, utf-8 string, or byte vector.
type ConstValue struct {
	Tag   ConstTag
	Bool  bool
	Int   int64
	Big   []byte
	Float float64
	Char  rune
	Str   string
	Bytes []byte
}

// Equal reports structural equality, used by the encoder's constant
// interning pass (spec.md §4.5 "identical constants SHOULD share a
// pool index").
func (c ConstValue) Equal(o ConstValue) bool {
	if c.Tag != o.Tag {
		return false
	}
	switch c.Tag {
	case ConstVoid:
		return true
	case ConstBool:
		return c.Bool == o.Bool
	case ConstInt:
		return c.Int == o.Int && string(c.Big) == string(o.Big)
	case ConstFloat:
		return c.Float == o.Float
	case ConstChar:
		return c.Char == o.Char
	case ConstString:
		return c.Str == o.Str
	case ConstBytes:
		return string(c.Bytes) == string(o.Bytes)
	}
	return false
}

func (c ConstValue) String() string {
	switch c.Tag {
	case ConstVoid:
		return "void"
	case ConstBool:
		return fmt.Sprintf("%v", c.Bool)
	case ConstInt:
		if c.Big != nil {
			return fmt.Sprintf("big:%x", c.Big)
		}
		return fmt.Sprintf("%d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	case ConstChar:
		return fmt.Sprintf("%q", c.Char)
	case ConstString:
		return fmt.Sprintf("%q", c.Str)
	case ConstBytes:
		return fmt.Sprintf("bytes[%d]", len(c.Bytes))
	}
	return "?"
}

// Opcode enumerates the mnemonics in spec.md §4.5's instruction table.
type Opcode byte

const (
	OpNop Opcode = iota
	OpReturn
	OpReturnValue
	OpJmp
	OpJmpIf
	OpJmpIfNot
	OpSwitch

	OpMov
	OpLoadConst
	OpLoadLocal
	OpStoreLocal
	OpLoadArg
	// OpLoadGlobal/OpStoreGlobal extend spec.md §4.5's abbreviated
	// Data move row ("Instructions (abbreviated...)") with the module
	// global-slot accessors implied by §3.4's Globals section but not
	// itself given a mnemonic there.
	OpLoadGlobal
	OpStoreGlobal

	OpBinaryOp
	OpUnaryOp
	OpCompare

	OpStackAlloc
	OpHeapAlloc
	OpDrop
	OpGetField
	OpSetField
	OpLoadElement
	OpStoreElement
	OpNewListWithCap
	OpCreateStruct

	OpArcNew
	OpArcClone
	OpArcDrop
	OpWeakNew
	OpWeakUpgrade

	OpCallStatic
	OpCallNative
	OpCallVirt
	OpCallDyn
	OpMakeClosure
	OpLoadUpvalue
	OpStoreUpvalue
	OpCloseUpvalue

	OpStringLength
	OpStringConcat
	OpStringEqual
	OpStringGetChar
	OpStringFromInt
	OpStringFromFloat

	OpTryBegin
	OpTryEnd
	OpThrow

	OpBoundsCheck
	OpTypeCheck
	OpCast
	OpTypeOf

	opcodeCount
)

var opcodeNames = [...]string{
	OpNop: "nop", OpReturn: "return", OpReturnValue: "return_value",
	OpJmp: "jmp", OpJmpIf: "jmp_if", OpJmpIfNot: "jmp_if_not", OpSwitch: "switch",
	OpMov: "mov", OpLoadConst: "load_const", OpLoadLocal: "load_local",
	OpStoreLocal: "store_local", OpLoadArg: "load_arg",
	OpLoadGlobal: "load_global", OpStoreGlobal: "store_global",
	OpBinaryOp: "binary_op", OpUnaryOp: "unary_op", OpCompare: "compare",
	OpStackAlloc: "stack_alloc", OpHeapAlloc: "heap_alloc", OpDrop: "drop",
	OpGetField: "get_field", OpSetField: "set_field",
	OpLoadElement: "load_element", OpStoreElement: "store_element",
	OpNewListWithCap: "new_list_with_cap", OpCreateStruct: "create_struct",
	OpArcNew: "arc_new", OpArcClone: "arc_clone", OpArcDrop: "arc_drop",
	OpWeakNew: "weak_new", OpWeakUpgrade: "weak_upgrade",
	OpCallStatic: "call_static", OpCallNative: "call_native",
	OpCallVirt: "call_virt", OpCallDyn: "call_dyn", OpMakeClosure: "make_closure",
	OpLoadUpvalue: "load_upvalue", OpStoreUpvalue: "store_upvalue", OpCloseUpvalue: "close_upvalue",
	OpStringLength: "string_length", OpStringConcat: "string_concat",
	OpStringEqual: "string_equal", OpStringGetChar: "string_get_char",
	OpStringFromInt: "string_from_int", OpStringFromFloat: "string_from_float",
	OpTryBegin: "try_begin", OpTryEnd: "try_end", OpThrow: "throw",
	OpBoundsCheck: "bounds_check", OpTypeCheck: "type_check", OpCast: "cast", OpTypeOf: "type_of",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("opcode(%d)", byte(op))
}

// ArithOp / CmpOp mirror ir.BinOp/ir.CmpOp at the bytecode layer so
// this package has no dependency on the IR's typed operand model
// (spec.md's component table keeps F's output, the bytecode module,
// independent of E's typed IR once emitted).
type ArithOp byte

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	Shl
	Sar
	Shr
	Concat
)

type CmpOp byte

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

type UnaryOpKind byte

const (
	UnaryNeg UnaryOpKind = iota
	UnaryNot
)

// SwitchCase is one arm of a Switch instruction: match on a constant
// pool index, jump to target.
type SwitchCase struct {
	ConstIdx int32
	Target   int32
}

// ExceptionHandler records a TryBegin/TryEnd range's catch target
// (spec.md §3.4 "exception-handler records").
type ExceptionHandler struct {
	StartIP int
	EndIP   int
	CatchIP int
}

// BytecodeInstr is the decoded, typed instruction the interpreter
// dispatches on. Only the fields relevant to Op are meaningful; this
// mirrors ir.Instr's "one struct, many optional fields" shape, which
// itself follows the teacher's Instruction layout in
// KTStephano-GVM's vm/bytecode.go.
type BytecodeInstr struct {
	Op       Opcode
	Dst      int32
	HasDst   bool
	Src      int32
	Lhs, Rhs int32
	Args     []int32
	ConstIdx int32
	FuncIdx  int32
	FuncName string // resolved at load time when FuncIdx is unknown ahead of linking
	FieldIdx int32
	TypeID   int32
	Target   int32 // absolute instruction index after decode
	Default  int32
	Cases    []SwitchCase
	CatchTarget int32
	ArithOp  ArithOp
	CmpOp    CmpOp
	UnaryOp  UnaryOpKind
}

// BytecodeFunction is one function table entry (spec.md §3.4): name,
// signature shape, local/upvalue counts, its linear instruction
// sequence, label→index map, and exception handlers.
type BytecodeFunction struct {
	Name         string
	ParamCount   int
	LocalCount   int
	UpvalCount   int
	UpvalNames   []string
	Instrs       []BytecodeInstr
	Labels       map[int]int // label id -> instruction index
	Handlers     []ExceptionHandler
	// DebugLines is the §6.4 optional debug-info section: 1-based
	// source line per instruction index (0 for synthesized code). The
	// interpreter consults it for error reporting and breakpoint state
	// when Config.GenerateDebugInfo is set.
	DebugLines []int32
}

// TypeEntry is a monomorphized struct/union shape referenced by id
// from CreateStruct/Cast/TypeCheck instructions.
type TypeEntry struct {
	Name   string
	Fields []string
}

// BytecodeFile is the codegen's output: constant pool, type table,
// function table, globals, optional entry point, plus the §6.4 header
// fields for an eventual on-disk form (in-process handoff doesn't need
// them serialized, but they round-trip through Encode/Decode so a
// future file writer has somewhere to put them).
const (
	Magic         uint32 = 0x59584243 // "YXBC"
	Version       uint32 = 2
)

type GlobalEntry struct {
	Name string
	Type string
	Init *ConstValue
}

type BytecodeFile struct {
	Magic        uint32
	Version      uint32
	FeatureFlags uint32
	EntryIndex   int // -1 if no entry point
	Constants    []ConstValue
	Types        []TypeEntry
	Functions    []BytecodeFunction
	Globals      []GlobalEntry
	Checksum     uint32
}

// BytecodeModule is the in-memory decoded form the loader produces
// from a BytecodeFile (spec.md §4.6); for this core they share the
// same shape since in-process handoff skips serialization. The loader
// copies each function's Labels and Handlers as they are; it checks
// jump, switch and catch targets and each handler's catch target
// against the instruction count rather than trusting them.
type BytecodeModule struct {
	Constants  []ConstValue
	Types      []TypeEntry
	Functions  []BytecodeFunction
	FuncIndex  map[string]int
	Globals    []GlobalEntry
	EntryIndex int
}
