// Package types implements YaoXiang's bidirectional type checker:
// monotypes and unification over a constraint set (spec.md §4.3).
// Top-level bindings are not generalized; they stay monotypes.
package types

import (
	"fmt"
	"strings"
)

// Tag discriminates the monotype variants. Variable is a unification
// variable, resolved through a Subst during checking; one that nothing
// constrained stays a Variable in the finished Result.
type Tag int

const (
	Variable Tag = iota
	Int
	Float
	Bool
	Char
	String
	Bytes
	Void
	ListT
	DictT
	TupleT
	FuncT
	StructT
	UnionT
	NamedT // an unresolved reference to a declared type by name (pre-lookup)
)

// Mono is a single monomorphic type. Only the fields relevant to Tag
// are meaningful; this mirrors the teacher's tagged-struct style for
// RuntimeValue rather than a Go interface hierarchy, since the checker
// needs to mutate Var bindings through a shared substitution.
type Mono struct {
	Tag      Tag
	Var      int // Variable
	Elem     *Mono // ListT
	Key, Val *Mono // DictT
	Elems    []*Mono // TupleT
	Params   []*Mono // FuncT
	Ret      *Mono   // FuncT
	Name     string  // StructT/UnionT/NamedT
	Args     []*Mono // NamedT generic instantiation args
	Fields   map[string]*Mono // StructT field types, in Order
	Order    []string         // StructT field declaration order
	Variants map[string]*VariantShape // UnionT
}

// VariantShape is a sum-type constructor's field shape: either
// positional or named, never both (spec.md §3.2).
type VariantShape struct {
	Positional []*Mono
	Named      map[string]*Mono
	Order      []string // field names for Named, empty for Positional
}

func TInt() *Mono    { return &Mono{Tag: Int} }
func TFloat() *Mono  { return &Mono{Tag: Float} }
func TBool() *Mono   { return &Mono{Tag: Bool} }
func TChar() *Mono   { return &Mono{Tag: Char} }
func TString() *Mono { return &Mono{Tag: String} }
func TBytes() *Mono  { return &Mono{Tag: Bytes} }
func TVoid() *Mono   { return &Mono{Tag: Void} }

func TList(elem *Mono) *Mono         { return &Mono{Tag: ListT, Elem: elem} }
func TDict(key, val *Mono) *Mono     { return &Mono{Tag: DictT, Key: key, Val: val} }
func TTuple(elems ...*Mono) *Mono    { return &Mono{Tag: TupleT, Elems: elems} }
func TFunc(params []*Mono, ret *Mono) *Mono {
	return &Mono{Tag: FuncT, Params: params, Ret: ret}
}

// fresh hands out unique unification variables; the checker owns a
// counter and calls this through (*Checker).freshVar.
func fresh(counter *int) *Mono {
	*counter++
	return &Mono{Tag: Variable, Var: *counter}
}

func (m *Mono) String() string {
	if m == nil {
		return "<nil>"
	}
	switch m.Tag {
	case Variable:
		return fmt.Sprintf("'t%d", m.Var)
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Bool:
		return "Bool"
	case Char:
		return "Char"
	case String:
		return "String"
	case Bytes:
		return "Bytes"
	case Void:
		return "Void"
	case ListT:
		return "List[" + m.Elem.String() + "]"
	case DictT:
		return "Dict[" + m.Key.String() + ", " + m.Val.String() + "]"
	case TupleT:
		parts := make([]string, len(m.Elems))
		for i, e := range m.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case FuncT:
		parts := make([]string, len(m.Params))
		for i, e := range m.Params {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ") -> " + m.Ret.String()
	case StructT, UnionT:
		return m.Name
	case NamedT:
		if len(m.Args) == 0 {
			return m.Name
		}
		parts := make([]string, len(m.Args))
		for i, a := range m.Args {
			parts[i] = a.String()
		}
		return m.Name + "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}

// IsNumeric reports whether m (after resolution) is Int or Float —
// the two disjoint operand classes built-in arithmetic overloads on
// (spec.md §4.3).
func IsNumeric(m *Mono) bool { return m.Tag == Int || m.Tag == Float }
