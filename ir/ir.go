// Package ir defines the typed intermediate representation the IR
// generator produces from a type-checked AST, and that the code
// generator consumes to emit bytecode (spec.md §3.3, §4.4).
package ir

import "yaoxiang/types"

// ConstValue is a compile-time literal destined for the bytecode
// constant pool (spec.md §3.4). Exactly one field is meaningful,
// selected by Tag.
type ConstTag int

const (
	ConstVoid ConstTag = iota
	ConstBool
	ConstInt // i128-range: Big set when it overflows i64
	ConstFloat
	ConstChar
	ConstString
	ConstBytes
)

type ConstValue struct {
	Tag   ConstTag
	Bool  bool
	Int   int64
	Big   []byte // big-endian magnitude, non-nil when the literal exceeds i64
	Float float64
	Char  rune
	Str   string
	Bytes []byte
}

// OperandKind classifies where an Operand's value lives. After codegen
// every kind collapses onto the flat register file (spec.md §3.3
// "Operand variants... all storage is a flat register file after
// codegen"), but IR keeps them distinct so the generator can reason
// about scope.
type OperandKind int

const (
	OpConst OperandKind = iota
	OpLocal
	OpTemp
	OpArg
	OpGlobal
)

type Operand struct {
	Kind  OperandKind
	Reg   int    // Local/Temp/Arg register index
	Name  string // Global name
	Const ConstValue
}

func Const(c ConstValue) Operand { return Operand{Kind: OpConst, Const: c} }
func Local(i int) Operand        { return Operand{Kind: OpLocal, Reg: i} }
func Temp(i int) Operand         { return Operand{Kind: OpTemp, Reg: i} }
func Arg(i int) Operand          { return Operand{Kind: OpArg, Reg: i} }
func Global(name string) Operand { return Operand{Kind: OpGlobal, Name: name} }

// Op is the typed instruction opcode the IR generator emits; it is a
// superset-free mirror of the bytecode mnemonics in spec.md §4.5,
// expressed over Operands instead of raw register indices.
type Op int

const (
	OpNop Op = iota
	OpLoad    // dst = Src (Const/Local/Temp/Arg/Global)
	OpStore   // Dst(Local/Global) = Src
	OpBinary  // dst = Lhs <BinOp> Rhs
	OpUnary   // dst = <UnOp> Src
	OpCompare // dst = Lhs <CmpOp> Rhs
	OpCall    // dst? = Func(Args...)
	OpLoadField
	OpSetField
	OpLoadElement
	OpStoreElement
	OpNewList
	OpNewTuple
	OpNewStruct
	OpMakeClosure
	OpLoadUpvalue
	OpStoreUpvalue
	OpArcNew
	OpArcClone
	OpWeakNew
	OpWeakUpgrade
	OpCast // dst = Src reinterpreted as the type named by TypeName
	OpJmp
	OpJmpIf
	OpJmpIfNot
	OpSwitch // dispatch on Src against Cases, else Default
	OpRet
	OpThrow
	OpTryBegin
	OpTryEnd
)

type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Rem
	BitAnd
	BitOr
	BitXor
	Shl
	Sar
	Shr
	Concat // list/string concatenation (spec.md §4.3 "L + L")
)

type UnOp int

const (
	Neg UnOp = iota
	Not
)

type CmpOp int

const (
	Eq CmpOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Instr is one IR instruction. Not every field is meaningful for every
// Op; unused fields are zero. Dst is valid only when HasDst is true —
// e.g. a call made only for its side effect leaves no destination.
type Instr struct {
	Op       Op
	Dst      Operand
	HasDst   bool
	Src      Operand
	Lhs, Rhs Operand
	Args     []Operand
	BinOp    BinOp
	UnOp     UnOp
	CmpOp    CmpOp
	Field    string
	TypeName string
	FuncName string
	FuncIdx  int
	HasFuncIdx bool
	Target   int // block label for jumps
	Default  int
	Cases    []SwitchCase
	CatchTarget int
	Line     int // 1-based source line of the originating statement, 0 if synthesized
}

type SwitchCase struct {
	Value ConstValue
	Target int
}

// BasicBlock is a labeled, linear instruction run with explicit
// successor labels (spec.md §3.3). A single-block-per-function layout
// with internal jumps is sufficient per spec.md §9 open question 6;
// the generator only emits additional blocks for loop/if/match
// lowering that needs a join point.
type BasicBlock struct {
	Label   int
	Instrs  []Instr
	Succs   []int
}

// FunctionIR is one compiled function: parameter/return types, its
// local-register type table, and its basic blocks (spec.md §3.3).
type FunctionIR struct {
	Name       string
	ParamTypes []*types.Mono
	RetType    *types.Mono
	IsAsync    bool
	LocalTypes []*types.Mono // indexed by register id
	Blocks     []*BasicBlock
	Entry      int
	NumLocals  int
	UpvalNames []string // captured-variable names, in closure env order
}

// ModuleIR is the whole compiled unit handed to the code generator.
type ModuleIR struct {
	TypeTable []*types.Mono
	Structs   []StructDescriptor
	Globals   []GlobalIR
	Functions []*FunctionIR
	EntryFunc string // "main" if present, else ""
}

// StructDescriptor names a struct or union-variant shape's declared
// field order, so the code generator can emit a bytecode.TypeEntry
// the interpreter uses to label CreateStruct's positional arguments
// with field names at runtime (spec.md §4.4 "field-name resolution to
// index is performed using the type table").
type StructDescriptor struct {
	Name   string
	Fields []string
}

type GlobalIR struct {
	Name string
	Type *types.Mono
	Init *ConstValue // nil if uninitialized
}
