package vm

import "fmt"

// ValueTag discriminates RuntimeValue (spec.md §3.5): scalars carried
// inline, interned strings/bytes shared by reference, heap handles
// addressing a HeapValue slot, Arc/Weak ownership wrappers, and
// function values closing over a captured environment.
type ValueTag int

const (
	Unit ValueTag = iota
	Bool
	Int
	Float
	Char
	String
	Bytes
	List
	Tuple
	Array
	Dict
	Struct
	ArcVal
	WeakVal
	Function
)

// RuntimeValue is the tagged sum every register and constant-pool
// entry holds. Only the fields relevant to Tag are meaningful,
// following the teacher's one-struct-many-fields idiom rather than a
// Go interface hierarchy, since registers are stored in a flat
// []RuntimeValue bank that must avoid per-value heap allocation for
// scalars.
type RuntimeValue struct {
	Tag ValueTag

	B     bool
	I     int64
	F     float64
	Ch    rune
	S     string // String
	Bs    []byte // Bytes

	H Handle // List/Tuple/Array/Dict/Struct

	StructType string  // Struct
	Vtable     []int   // Struct: method_idx -> function id, spec.md §9 CallVirt
	Arc        *ArcBox // Arc/Weak

	Fn *FuncValue // Function
}

// FuncValue is a first-class closure: the target function id plus its
// captured environment, materialized at MakeClosure time (spec.md
// §3.5, §4.7).
type FuncValue struct {
	FuncID int
	Env    []RuntimeValue
}

func UnitVal() RuntimeValue           { return RuntimeValue{Tag: Unit} }
func BoolVal(b bool) RuntimeValue     { return RuntimeValue{Tag: Bool, B: b} }
func IntVal(i int64) RuntimeValue     { return RuntimeValue{Tag: Int, I: i} }
func FloatVal(f float64) RuntimeValue { return RuntimeValue{Tag: Float, F: f} }
func CharVal(c rune) RuntimeValue     { return RuntimeValue{Tag: Char, Ch: c} }
func StringVal(s string) RuntimeValue { return RuntimeValue{Tag: String, S: s} }
func BytesVal(b []byte) RuntimeValue  { return RuntimeValue{Tag: Bytes, Bs: b} }

func (v RuntimeValue) IsUnit() bool { return v.Tag == Unit }

// String names a tag the way std.reflect.type_of (spec.md §9 TypeOf)
// reports it to guest code: lowercase, matching the type names the
// parser accepts (int, float, string, ...) rather than Go's own
// identifier casing.
func (t ValueTag) String() string {
	switch t {
	case Unit:
		return "unit"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case Char:
		return "char"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case List:
		return "list"
	case Tuple:
		return "tuple"
	case Array:
		return "array"
	case Dict:
		return "dict"
	case Struct:
		return "struct"
	case ArcVal:
		return "arc"
	case WeakVal:
		return "weak"
	case Function:
		return "function"
	default:
		return "unknown"
	}
}

// Truthy implements the runtime's notion of a conditional value for
// JmpIf/JmpIfNot dispatch: only Bool is meaningful per the type
// checker's contract, but a safety-net default of false matches
// spec.md §8's "reading an undefined register produces Unit" spirit —
// a non-bool condition never panics the interpreter.
func (v RuntimeValue) Truthy() bool {
	return v.Tag == Bool && v.B
}

func (v RuntimeValue) String() string {
	switch v.Tag {
	case Unit:
		return "void"
	case Bool:
		return fmt.Sprintf("%v", v.B)
	case Int:
		return fmt.Sprintf("%d", v.I)
	case Float:
		return fmt.Sprintf("%g", v.F)
	case Char:
		return fmt.Sprintf("%c", v.Ch)
	case String:
		return v.S
	case Bytes:
		return fmt.Sprintf("bytes[%d]", len(v.Bs))
	case List, Array:
		return fmt.Sprintf("<list#%d>", v.H.Index)
	case Tuple:
		return fmt.Sprintf("<tuple#%d>", v.H.Index)
	case Dict:
		return fmt.Sprintf("<dict#%d>", v.H.Index)
	case Struct:
		return fmt.Sprintf("%s#%d", v.StructType, v.H.Index)
	case ArcVal:
		return "<arc>"
	case WeakVal:
		return "<weak>"
	case Function:
		return fmt.Sprintf("<fn#%d>", v.Fn.FuncID)
	}
	return "?"
}

// ArcBox is the shared reference-counted cell backing Arc[T]/Weak[T].
// Counters are plain ints rather than atomics: spec.md §5 leaves
// atomic-vs-non-atomic as an implementation trade-off, and this core
// targets the single-interpreter, single-goroutine execution model
// §5 describes as typical (see DESIGN.md).
type ArcBox struct {
	Strong int
	Weak   int
	Value  RuntimeValue
}

// HeapKind discriminates the containers a Handle can address.
type HeapKind int

const (
	HList HeapKind = iota
	HTuple
	HArray
	HDict
	HStruct
)

type DictEntry struct {
	Key RuntimeValue
	Val RuntimeValue
}

// HeapValue is the container a heap Handle addresses (spec.md §3.5
// "Each heap handle points to a HeapValue container").
type HeapValue struct {
	Kind       HeapKind
	Items      []RuntimeValue      // List/Tuple/Array
	Entries    []DictEntry         // Dict: linear, since RuntimeValue isn't a valid map key
	Fields     map[string]RuntimeValue // Struct
	FieldOrder []string
}

// Equal implements spec.md §3.5's equality rule: structural for
// lists/tuples, identity-based (same handle) for everything else
// heap-addressed.
func Equal(h *Heap, a, b RuntimeValue) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case Unit:
		return true
	case Bool:
		return a.B == b.B
	case Int:
		return a.I == b.I
	case Float:
		return a.F == b.F
	case Char:
		return a.Ch == b.Ch
	case String:
		return a.S == b.S
	case Bytes:
		return string(a.Bs) == string(b.Bs)
	case List, Tuple, Array:
		av, aok := h.Get(a.H)
		bv, bok := h.Get(b.H)
		if !aok || !bok {
			return false
		}
		if len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(h, av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case Dict, Struct:
		return a.H == b.H
	case ArcVal, WeakVal:
		return a.Arc == b.Arc
	case Function:
		return a.Fn.FuncID == b.Fn.FuncID
	}
	return false
}
