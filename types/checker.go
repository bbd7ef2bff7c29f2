package types

import (
	"fmt"

	"yaoxiang/ast"
	"yaoxiang/token"
)

// Error is a single collected type error; the checker gathers every
// one it finds rather than aborting on the first (spec.md's error
// table: "Collected; all reported; compilation fails if non-empty").
type Error struct {
	Msg  string
	Span token.Span
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Span, e.Msg) }

// Result is consumed by the IR generator: per-expression resolved
// types plus a binding table from name to polytype (here represented
// as a plain Mono — generics are monomorphized at use sites rather
// than carrying a separate polytype representation, per spec.md
// §4.3's "monomorphized at instantiation sites").
type Result struct {
	ExprTypes map[ast.Expr]*Mono
	Bindings  map[string]*Mono
	Structs   map[string]*StructDef
	Unions    map[string]*UnionDef
	Funcs     map[string]*FuncSig
}

type Checker struct {
	structs  map[string]*StructDef
	unions   map[string]*UnionDef
	funcs    map[string]*FuncSig
	subst    *Subst
	varCount int
	exprTy   map[ast.Expr]*Mono
	errs     []error
	curRet   *Mono // expected return type of the function currently being checked
}

// Check type-checks a full module: declarations are registered in a
// pre-pass so forward references between functions/types resolve,
// then every statement's initializer/body is checked in order.
func Check(mod *ast.Module) (*Result, error) {
	c := &Checker{
		structs: make(map[string]*StructDef),
		unions:  make(map[string]*UnionDef),
		funcs:   make(map[string]*FuncSig),
		subst:   newSubst(),
		exprTy:  make(map[ast.Expr]*Mono),
	}

	top := newScope(nil)
	c.registerDecls(mod)

	for _, stmt := range mod.Stmts {
		c.checkStmt(stmt, top)
	}

	bindings := make(map[string]*Mono)
	for name, m := range top.vars {
		bindings[name] = apply(c.subst, m)
	}
	for name, sig := range c.funcs {
		bindings[name] = apply(c.subst, TFunc(sig.Params, sig.Ret))
	}

	finalTypes := make(map[ast.Expr]*Mono, len(c.exprTy))
	for e, m := range c.exprTy {
		finalTypes[e] = apply(c.subst, m)
	}

	res := &Result{ExprTypes: finalTypes, Bindings: bindings, Structs: c.structs, Unions: c.unions, Funcs: c.funcs}
	if len(c.errs) > 0 {
		return res, c.errs[0]
	}
	return res, nil
}

func (c *Checker) freshVar() *Mono { return fresh(&c.varCount) }

func (c *Checker) errorf(span token.Span, format string, args ...any) {
	c.errs = append(c.errs, &Error{Msg: fmt.Sprintf(format, args...), Span: span})
}

// registerDecls walks top-level TypeDef/FuncDef/MethodDef statements
// so every name is resolvable before bodies are checked, matching the
// teacher's pattern of a forward-declaration pass before codegen
// (KTStephano-GVM's assembler resolves all labels before emitting
// jumps in a similar two-pass shape).
func (c *Checker) registerDecls(mod *ast.Module) {
	for _, stmt := range mod.Stmts {
		if td, ok := stmt.(*ast.TypeDef); ok {
			c.registerTypeDef(td)
		}
	}
	for _, stmt := range mod.Stmts {
		switch s := stmt.(type) {
		case *ast.FuncDef:
			c.registerFuncSig(s.Name, s.FnType, s.Params)
		case *ast.MethodDef:
			name := s.Receiver + "_" + s.Name
			params := s.Params
			if len(params) == 0 || params[0].Name != "self" {
				params = append([]ast.Param{{Name: "self"}}, params...)
			}
			c.registerFuncSig(name, s.FnType, params)
		}
	}
}

func (c *Checker) registerTypeDef(td *ast.TypeDef) {
	switch body := td.Body.(type) {
	case *ast.StructType:
		sd := &StructDef{Name: td.Name, Types: make(map[string]*Mono)}
		for _, f := range body.Fields {
			t := c.resolveTypeExpr(f.Type)
			sd.Fields = append(sd.Fields, f.Name)
			sd.Types[f.Name] = t
		}
		c.structs[td.Name] = sd
		params := make([]*Mono, len(sd.Fields))
		for i, f := range sd.Fields {
			params[i] = sd.Types[f]
		}
		c.funcs[td.Name] = &FuncSig{Name: td.Name, Params: params, Ret: &Mono{Tag: StructT, Name: td.Name, Fields: sd.Types, Order: sd.Fields}}
	case *ast.UnionType:
		ud := &UnionDef{Name: td.Name, Variants: make(map[string]*VariantShape)}
		for _, v := range body.Variants {
			shape := &VariantShape{}
			for _, p := range v.Positional {
				shape.Positional = append(shape.Positional, c.resolveTypeExpr(p))
			}
			if len(v.Named) > 0 {
				shape.Named = make(map[string]*Mono)
				for _, f := range v.Named {
					shape.Named[f.Name] = c.resolveTypeExpr(f.Type)
					shape.Order = append(shape.Order, f.Name)
				}
			}
			ud.Variants[v.Name] = shape
			ud.Order = append(ud.Order, v.Name)
			retTy := &Mono{Tag: UnionT, Name: td.Name, Variants: ud.Variants}
			ctorParams := shape.Positional
			if shape.Named != nil {
				ctorParams = make([]*Mono, len(shape.Order))
				for i, fname := range shape.Order {
					ctorParams[i] = shape.Named[fname]
				}
			}
			c.funcs[v.Name] = &FuncSig{Name: v.Name, Params: ctorParams, Ret: retTy}
		}
		c.unions[td.Name] = ud
	default:
		// A non-struct, non-union RHS (alias, tuple, function type) —
		// recorded for resolution but introduces no constructor.
		c.resolveTypeExpr(td.Body)
	}
}

func (c *Checker) registerFuncSig(name string, fnType *ast.FuncType, params []ast.Param) {
	var paramTys []*Mono
	if fnType != nil {
		for _, pt := range fnType.Params {
			paramTys = append(paramTys, c.resolveTypeExpr(pt))
		}
	} else {
		for _, p := range params {
			if p.Type != nil {
				paramTys = append(paramTys, c.resolveTypeExpr(p.Type))
			} else {
				paramTys = append(paramTys, c.freshVar())
			}
		}
	}
	ret := c.freshVar()
	if fnType != nil && fnType.Ret != nil {
		ret = c.resolveTypeExpr(fnType.Ret)
	}
	c.funcs[name] = &FuncSig{Name: name, Params: paramTys, Ret: ret}
}

// resolveTypeExpr converts an ast.Type annotation into a Mono,
// looking up declared struct/union names against what's registered so
// far (forward references within the same module resolve since
// registerDecls runs type declarations before signatures).
func (c *Checker) resolveTypeExpr(t ast.Type) *Mono {
	switch n := t.(type) {
	case nil:
		return c.freshVar()
	case *ast.IntType:
		return TInt()
	case *ast.FloatType:
		return TFloat()
	case *ast.BoolType:
		return TBool()
	case *ast.CharType:
		return TChar()
	case *ast.StringType:
		return TString()
	case *ast.BytesType:
		return TBytes()
	case *ast.VoidType:
		return TVoid()
	case *ast.ListType:
		return TList(c.resolveTypeExpr(n.Elem))
	case *ast.DictType:
		return TDict(c.resolveTypeExpr(n.Key), c.resolveTypeExpr(n.Val))
	case *ast.TupleType:
		elems := make([]*Mono, len(n.Elems))
		for i, e := range n.Elems {
			elems[i] = c.resolveTypeExpr(e)
		}
		return TTuple(elems...)
	case *ast.FuncType:
		params := make([]*Mono, len(n.Params))
		for i, p := range n.Params {
			params[i] = c.resolveTypeExpr(p)
		}
		ret := TVoid()
		if n.Ret != nil {
			ret = c.resolveTypeExpr(n.Ret)
		}
		return TFunc(params, ret)
	case *ast.NameType:
		if sd, ok := c.structs[n.Name]; ok {
			return &Mono{Tag: StructT, Name: sd.Name, Fields: sd.Types, Order: sd.Fields}
		}
		if ud, ok := c.unions[n.Name]; ok {
			return &Mono{Tag: UnionT, Name: ud.Name, Variants: ud.Variants}
		}
		return &Mono{Tag: NamedT, Name: n.Name}
	case *ast.GenericType:
		args := make([]*Mono, len(n.Args))
		for i, a := range n.Args {
			args[i] = c.resolveTypeExpr(a)
		}
		return &Mono{Tag: NamedT, Name: n.Name, Args: args}
	case *ast.StructType:
		fields := make(map[string]*Mono)
		var order []string
		for _, f := range n.Fields {
			fields[f.Name] = c.resolveTypeExpr(f.Type)
			order = append(order, f.Name)
		}
		return &Mono{Tag: StructT, Name: n.Name, Fields: fields, Order: order}
	case *ast.UnionType:
		variants := make(map[string]*VariantShape)
		for _, v := range n.Variants {
			shape := &VariantShape{}
			for _, p := range v.Positional {
				shape.Positional = append(shape.Positional, c.resolveTypeExpr(p))
			}
			variants[v.Name] = shape
		}
		return &Mono{Tag: UnionT, Variants: variants}
	default:
		return c.freshVar()
	}
}
