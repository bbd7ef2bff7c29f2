package types

import "fmt"

// Subst is the unification variable → monotype binding map built up
// during checking. It is mutated in place (union-find without rank,
// since chains stay short in practice for this checker's scope).
type Subst struct {
	bindings map[int]*Mono
}

func newSubst() *Subst { return &Subst{bindings: make(map[int]*Mono)} }

// resolve follows variable bindings to a concrete type or an
// unbound variable.
func (s *Subst) resolve(m *Mono) *Mono {
	for m.Tag == Variable {
		b, ok := s.bindings[m.Var]
		if !ok {
			return m
		}
		m = b
	}
	return m
}

func occurs(s *Subst, v int, m *Mono) bool {
	m = s.resolve(m)
	switch m.Tag {
	case Variable:
		return m.Var == v
	case ListT:
		return occurs(s, v, m.Elem)
	case DictT:
		return occurs(s, v, m.Key) || occurs(s, v, m.Val)
	case TupleT:
		for _, e := range m.Elems {
			if occurs(s, v, e) {
				return true
			}
		}
	case FuncT:
		for _, p := range m.Params {
			if occurs(s, v, p) {
				return true
			}
		}
		return occurs(s, v, m.Ret)
	}
	return false
}

// UnifyError reports two types that cannot be made equal.
type UnifyError struct {
	A, B *Mono
}

func (e *UnifyError) Error() string {
	return fmt.Sprintf("type mismatch: %s vs %s", e.A, e.B)
}

// unify makes a and b equal under s, recording new variable bindings
// as needed. Struct/union/named types unify nominally by name.
func unify(s *Subst, a, b *Mono) error {
	a, b = s.resolve(a), s.resolve(b)

	if a.Tag == Variable {
		if occurs(s, a.Var, b) {
			return &UnifyError{a, b}
		}
		s.bindings[a.Var] = b
		return nil
	}
	if b.Tag == Variable {
		return unify(s, b, a)
	}
	if a.Tag != b.Tag {
		return &UnifyError{a, b}
	}

	switch a.Tag {
	case Int, Float, Bool, Char, String, Bytes, Void:
		return nil
	case ListT:
		return unify(s, a.Elem, b.Elem)
	case DictT:
		if err := unify(s, a.Key, b.Key); err != nil {
			return err
		}
		return unify(s, a.Val, b.Val)
	case TupleT:
		if len(a.Elems) != len(b.Elems) {
			return &UnifyError{a, b}
		}
		for i := range a.Elems {
			if err := unify(s, a.Elems[i], b.Elems[i]); err != nil {
				return err
			}
		}
		return nil
	case FuncT:
		if len(a.Params) != len(b.Params) {
			return &UnifyError{a, b}
		}
		for i := range a.Params {
			if err := unify(s, a.Params[i], b.Params[i]); err != nil {
				return err
			}
		}
		return unify(s, a.Ret, b.Ret)
	case StructT, UnionT, NamedT:
		if a.Name != b.Name {
			return &UnifyError{a, b}
		}
		return nil
	default:
		return &UnifyError{a, b}
	}
}

// apply returns m with every bound variable replaced by its
// resolution, recursively — used to finalize expression types before
// they're handed to the IR generator.
func apply(s *Subst, m *Mono) *Mono {
	m = s.resolve(m)
	switch m.Tag {
	case ListT:
		return TList(apply(s, m.Elem))
	case DictT:
		return TDict(apply(s, m.Key), apply(s, m.Val))
	case TupleT:
		elems := make([]*Mono, len(m.Elems))
		for i, e := range m.Elems {
			elems[i] = apply(s, e)
		}
		return TTuple(elems...)
	case FuncT:
		params := make([]*Mono, len(m.Params))
		for i, p := range m.Params {
			params[i] = apply(s, p)
		}
		return TFunc(params, apply(s, m.Ret))
	default:
		return m
	}
}
