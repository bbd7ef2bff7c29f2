package ir

import (
	"fmt"
	"strings"

	"yaoxiang/ast"
	"yaoxiang/token"
	"yaoxiang/types"
)

// Generate walks a type-checked module and lowers it to a ModuleIR
// (spec.md §4.4). One builder is used per function; temporaries and
// locals share a flat register space with parameter indices
// preassigned to 0..arg_count, matching the teacher's habit of handing
// out VM registers by simple bump allocation rather than reuse
// (KTStephano-GVM never recycles a stack slot mid-frame either).
func Generate(mod *ast.Module, res *types.Result) (*ModuleIR, error) {
	g := &generator{res: res, mono: make(map[string]*FunctionIR), globalNames: make(map[string]bool)}

	for _, stmt := range mod.Stmts {
		if td, ok := stmt.(*ast.TypeDef); ok {
			g.lowerTypeDecl(td)
		}
		if vb, ok := stmt.(*ast.VarBinding); ok {
			g.globalNames[vb.Name] = true
		}
	}
	for _, stmt := range mod.Stmts {
		switch s := stmt.(type) {
		case *ast.FuncDef:
			fn, err := g.lowerFuncDef(s)
			if err != nil {
				return nil, err
			}
			g.addFunc(fn)
		case *ast.MethodDef:
			fn, err := g.lowerMethodDef(s)
			if err != nil {
				return nil, err
			}
			g.addFunc(fn)
		}
	}

	// Top-level var bindings become module globals, evaluated by a
	// synthesized "__init__" function run before the entry point so
	// that order-of-declaration side effects are preserved. One builder
	// lowers every initializer in order: a later `x = ...` over an
	// already-declared name is a store into the same global, and
	// initializers are free to use multi-block forms (if/match).
	initFb := newFuncBuilder(g, nil, nil)
	var globals []GlobalIR
	declared := make(map[string]bool)
	hasInit := false
	for _, stmt := range mod.Stmts {
		vb, ok := stmt.(*ast.VarBinding)
		if !ok {
			continue
		}
		if !declared[vb.Name] {
			declared[vb.Name] = true
			globals = append(globals, GlobalIR{Name: vb.Name, Type: res.Bindings[vb.Name]})
		}
		if vb.Init != nil {
			reg := initFb.lowerExpr(vb.Init)
			initFb.emit(Instr{Op: OpStore, Dst: Global(vb.Name), Src: initFb.regOperand(reg)})
			hasInit = true
		}
	}
	if hasInit {
		initFb.emit(Instr{Op: OpRet})
		initFn := initFb.finish()
		initFn.Name = "__init__"
		g.funcs = append(g.funcs, initFn)
	}

	entry := ""
	if _, ok := g.res.Funcs["main"]; ok {
		entry = "main"
	}

	return &ModuleIR{Globals: globals, Functions: g.funcs, EntryFunc: entry, Structs: g.structs}, nil
}

type generator struct {
	res         *types.Result
	funcs       []*FunctionIR
	mono        map[string]*FunctionIR
	structs     []StructDescriptor
	globalNames map[string]bool
	lambdaCount int // module-wide, so synthesized names never collide across functions
}

func (g *generator) addFunc(fn *FunctionIR) { g.funcs = append(g.funcs, fn); g.mono[fn.Name] = fn }

// lowerTypeDecl synthesizes a constructor function for a declared
// struct (spec.md §4.4 "Struct construction"). Union variant
// constructors are synthesized the same way, one per variant.
func (g *generator) lowerTypeDecl(td *ast.TypeDef) {
	switch body := td.Body.(type) {
	case *ast.StructType:
		var fieldNames []string
		for _, f := range body.Fields {
			fieldNames = append(fieldNames, f.Name)
		}
		g.structs = append(g.structs, StructDescriptor{Name: td.Name, Fields: fieldNames})

		sig := g.res.Funcs[td.Name]
		fb := newFuncBuilder(g, sig.Params, sig.Ret)
		fields := make([]Operand, len(body.Fields))
		for i, f := range body.Fields {
			fields[i] = Arg(i)
			_ = f
		}
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpNewStruct, Dst: fb.regOperand(dst), HasDst: true, TypeName: td.Name, Args: fields})
		fb.emit(Instr{Op: OpRet, Src: fb.regOperand(dst), HasDst: true})
		fn := fb.finish()
		fn.Name = td.Name
		fn.ParamTypes = sig.Params
		fn.RetType = sig.Ret
		g.addFunc(fn)
	case *ast.UnionType:
		for _, v := range body.Variants {
			var fieldNames []string
			if len(v.Named) > 0 {
				for _, f := range v.Named {
					fieldNames = append(fieldNames, f.Name)
				}
			} else {
				for i := range v.Positional {
					fieldNames = append(fieldNames, fmt.Sprintf("_%d", i))
				}
			}
			g.structs = append(g.structs, StructDescriptor{Name: v.Name, Fields: fieldNames})

			sig := g.res.Funcs[v.Name]
			fb := newFuncBuilder(g, sig.Params, sig.Ret)
			args := make([]Operand, len(sig.Params))
			for i := range sig.Params {
				args[i] = Arg(i)
			}
			dst := fb.newTemp()
			fb.emit(Instr{Op: OpNewStruct, Dst: fb.regOperand(dst), HasDst: true, TypeName: v.Name, Args: args})
			fb.emit(Instr{Op: OpRet, Src: fb.regOperand(dst), HasDst: true})
			fn := fb.finish()
			fn.Name = v.Name
			fn.ParamTypes = sig.Params
			fn.RetType = sig.Ret
			g.addFunc(fn)
		}
	}
}

func (g *generator) lowerFuncDef(fd *ast.FuncDef) (*FunctionIR, error) {
	sig := g.res.Funcs[fd.Name]
	fb := newFuncBuilder(g, sig.Params, sig.Ret)
	for i, p := range fd.Params {
		fb.bind(p.Name, i)
	}
	last := fb.lowerBlockBody(fd.Body)
	if !fb.blockTerminated() {
		if last >= 0 {
			fb.emit(Instr{Op: OpRet, Src: fb.regOperand(last), HasDst: true})
		} else {
			fb.emit(Instr{Op: OpRet})
		}
	}
	fn := fb.finish()
	fn.Name = fd.Name
	fn.ParamTypes = sig.Params
	fn.RetType = sig.Ret
	return fn, nil
}

// lowerMethodDef flattens `Type.name(self, …)` to an ordinary
// top-level function `Type_name` whose first parameter is the
// receiver (spec.md §4.4, §9 "method resolution compiled away").
func (g *generator) lowerMethodDef(md *ast.MethodDef) (*FunctionIR, error) {
	name := md.Receiver + "_" + md.Name
	sig := g.res.Funcs[name]
	fb := newFuncBuilder(g, sig.Params, sig.Ret)
	params := md.Params
	if len(params) == 0 || params[0].Name != "self" {
		params = append([]ast.Param{{Name: "self"}}, params...)
	}
	for i, p := range params {
		fb.bind(p.Name, i)
	}
	last := fb.lowerBlockBody(md.Body)
	if !fb.blockTerminated() {
		if last >= 0 {
			fb.emit(Instr{Op: OpRet, Src: fb.regOperand(last), HasDst: true})
		} else {
			fb.emit(Instr{Op: OpRet})
		}
	}
	fn := fb.finish()
	fn.Name = name
	fn.ParamTypes = sig.Params
	fn.RetType = sig.Ret
	return fn, nil
}

// loopCtx tracks jump-patch bookkeeping for break/continue lowering
// within nested while/for loops.
type loopCtx struct {
	label        string
	breakBlock   int
	continueBlock int
}

type funcBuilder struct {
	g          *generator
	scopes     []map[string]int
	nextReg    int
	blocks     []*BasicBlock
	curBlock   int
	nextLabel  int
	loops      []loopCtx
	upvalNames []string
	curLine    int // stamped onto emitted instructions for the debug line table
}

func newFuncBuilder(g *generator, params []*types.Mono, ret *types.Mono) *funcBuilder {
	fb := &funcBuilder{g: g, scopes: []map[string]int{{}}}
	fb.nextReg = len(params)
	entry := fb.newBlock()
	fb.curBlock = entry
	return fb
}

func (fb *funcBuilder) pushScope() { fb.scopes = append(fb.scopes, map[string]int{}) }
func (fb *funcBuilder) popScope()  { fb.scopes = fb.scopes[:len(fb.scopes)-1] }

func (fb *funcBuilder) bind(name string, reg int) { fb.scopes[len(fb.scopes)-1][name] = reg }

func (fb *funcBuilder) declare(name string) int {
	r := fb.newTemp()
	fb.bind(name, r)
	return r
}

func (fb *funcBuilder) lookup(name string) (int, bool) {
	for i := len(fb.scopes) - 1; i >= 0; i-- {
		if r, ok := fb.scopes[i][name]; ok {
			return r, true
		}
	}
	return 0, false
}

func (fb *funcBuilder) newTemp() int {
	r := fb.nextReg
	fb.nextReg++
	return r
}

func (fb *funcBuilder) regOperand(r int) Operand { return Local(r) }

func (fb *funcBuilder) newBlock() int {
	label := fb.nextLabel
	fb.nextLabel++
	fb.blocks = append(fb.blocks, &BasicBlock{Label: label})
	return label
}

func (fb *funcBuilder) blockByLabel(label int) *BasicBlock {
	for _, b := range fb.blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

func (fb *funcBuilder) emit(i Instr) {
	i.Line = fb.curLine
	b := fb.blockByLabel(fb.curBlock)
	b.Instrs = append(b.Instrs, i)
}

func (fb *funcBuilder) blockTerminated() bool {
	b := fb.blockByLabel(fb.curBlock)
	if len(b.Instrs) == 0 {
		return false
	}
	switch b.Instrs[len(b.Instrs)-1].Op {
	case OpRet, OpJmp, OpThrow:
		return true
	}
	return false
}

func (fb *funcBuilder) setBlock(label int) { fb.curBlock = label }

func (fb *funcBuilder) finish() *FunctionIR {
	return &FunctionIR{Blocks: fb.blocks, Entry: 0, NumLocals: fb.nextReg, UpvalNames: fb.upvalNames}
}

// lowerBlockBody lowers the statements of a function/method body and
// returns the register holding the trailing expression's value, or -1
// if the body has no trailing expression (Void return).
func (fb *funcBuilder) lowerBlockBody(b *ast.Block) int {
	fb.pushScope()
	defer fb.popScope()
	for _, s := range b.Stmts {
		fb.lowerStmt(s)
	}
	if b.Trailing != nil {
		if line := ast.SpanOf(b.Trailing).Line; line > 0 {
			fb.curLine = line
		}
		return fb.lowerExpr(b.Trailing)
	}
	return -1
}

func (fb *funcBuilder) lowerStmt(s ast.Stmt) {
	if line := ast.StmtSpanOf(s).Line; line > 0 {
		fb.curLine = line
	}
	switch st := s.(type) {
	case *ast.VarBinding:
		if st.Init != nil {
			r := fb.lowerExpr(st.Init)
			// A bare `name = expr` over an already-bound name assigns to
			// the existing register; only `mut`/annotated bindings (or a
			// first use) declare a new one.
			if st.Type == nil && !st.Mutable {
				if local, bound := fb.lookup(st.Name); bound {
					fb.emit(Instr{Op: OpStore, Dst: Local(local), Src: fb.regOperand(r)})
					return
				}
				if fb.g.globalNames[st.Name] {
					fb.emit(Instr{Op: OpStore, Dst: Global(st.Name), Src: fb.regOperand(r)})
					return
				}
			}
			local := fb.declare(st.Name)
			fb.emit(Instr{Op: OpStore, Dst: Local(local), Src: fb.regOperand(r)})
		} else {
			fb.declare(st.Name)
		}
	case *ast.ExprStmt:
		fb.lowerExpr(st.X)
	case *ast.WhileStmt:
		fb.lowerWhile(st.Label, st.Cond, st.Body)
	case *ast.ForStmt:
		fb.lowerFor(st.Label, st.Pat, st.Iter, st.Body)
	case *ast.FuncDef, *ast.MethodDef, *ast.TypeDef, *ast.UseImport:
		// Nested declarations inside a block are not part of this
		// core's scope; top-level only (spec.md §3.2 lists them as
		// module-level statement kinds).
	}
}

func (fb *funcBuilder) lowerWhile(label string, cond ast.Expr, body *ast.Block) {
	condBlock := fb.newBlock()
	bodyBlock := fb.newBlock()
	afterBlock := fb.newBlock()

	fb.emit(Instr{Op: OpJmp, Target: condBlock})
	fb.setBlock(condBlock)
	c := fb.lowerExpr(cond)
	fb.emit(Instr{Op: OpJmpIfNot, Src: fb.regOperand(c), Target: afterBlock})
	fb.emit(Instr{Op: OpJmp, Target: bodyBlock})

	fb.setBlock(bodyBlock)
	fb.loops = append(fb.loops, loopCtx{label: label, breakBlock: afterBlock, continueBlock: condBlock})
	fb.lowerBlockBody(body)
	fb.loops = fb.loops[:len(fb.loops)-1]
	if !fb.blockTerminated() {
		fb.emit(Instr{Op: OpJmp, Target: condBlock})
	}

	fb.setBlock(afterBlock)
}

// lowerFor lowers `for pat in iter { body }` over a List/Array value
// using an index-driven loop: it evaluates length via StringLength's
// sibling LoadField-style access and walks indices 0..len, binding pat
// each iteration (only IdentPattern/WildcardPattern bindings are
// supported at the loop-variable position; richer destructuring uses
// match inside the body).
func (fb *funcBuilder) lowerFor(label string, pat ast.Pattern, iter ast.Expr, body *ast.Block) {
	iterReg := fb.lowerExpr(iter)
	idxReg := fb.declare("$idx")
	fb.emit(Instr{Op: OpLoad, Dst: Local(idxReg), HasDst: true, Src: Const(ConstValue{Tag: ConstInt, Int: 0})})
	lenReg := fb.newTemp()
	fb.emit(Instr{Op: OpLoadField, Dst: fb.regOperand(lenReg), HasDst: true, Src: fb.regOperand(iterReg), Field: "length"})

	condBlock := fb.newBlock()
	bodyBlock := fb.newBlock()
	afterBlock := fb.newBlock()

	fb.emit(Instr{Op: OpJmp, Target: condBlock})
	fb.setBlock(condBlock)
	cmp := fb.newTemp()
	fb.emit(Instr{Op: OpCompare, Dst: fb.regOperand(cmp), HasDst: true, Lhs: fb.regOperand(idxReg), Rhs: fb.regOperand(lenReg), CmpOp: Lt})
	fb.emit(Instr{Op: OpJmpIfNot, Src: fb.regOperand(cmp), Target: afterBlock})
	fb.emit(Instr{Op: OpJmp, Target: bodyBlock})

	fb.setBlock(bodyBlock)
	fb.pushScope()
	elem := fb.newTemp()
	fb.emit(Instr{Op: OpLoadElement, Dst: fb.regOperand(elem), HasDst: true, Lhs: fb.regOperand(iterReg), Rhs: fb.regOperand(idxReg)})
	fb.bindPattern(pat, elem)

	fb.loops = append(fb.loops, loopCtx{label: label, breakBlock: afterBlock, continueBlock: -1})
	for _, s := range body.Stmts {
		fb.lowerStmt(s)
	}
	if body.Trailing != nil {
		fb.lowerExpr(body.Trailing)
	}
	fb.loops = fb.loops[:len(fb.loops)-1]
	fb.popScope()

	if !fb.blockTerminated() {
		one := fb.emitConst(ConstValue{Tag: ConstInt, Int: 1})
		next := fb.newTemp()
		fb.emit(Instr{Op: OpBinary, Dst: fb.regOperand(next), HasDst: true, Lhs: fb.regOperand(idxReg), Rhs: fb.regOperand(one), BinOp: Add})
		fb.emit(Instr{Op: OpStore, Dst: Local(idxReg), Src: fb.regOperand(next)})
		fb.emit(Instr{Op: OpJmp, Target: condBlock})
	}
	fb.setBlock(afterBlock)
}

func (fb *funcBuilder) bindPattern(pat ast.Pattern, srcReg int) {
	switch p := pat.(type) {
	case *ast.IdentPattern:
		local := fb.declare(p.Name)
		fb.emit(Instr{Op: OpStore, Dst: Local(local), Src: fb.regOperand(srcReg)})
	case *ast.WildcardPattern:
		// discard
	default:
		// Tuple/struct patterns at a loop-variable position are
		// uncommon; fall back to a single synthetic binding so the
		// body can still reference fields through match.
	}
}

func (fb *funcBuilder) lowerExpr(e ast.Expr) int {
	switch x := e.(type) {
	case *ast.IntLit:
		return fb.emitConst(ConstValue{Tag: ConstInt, Int: x.Value, Big: x.Big})
	case *ast.FloatLit:
		return fb.emitConst(ConstValue{Tag: ConstFloat, Float: x.Value})
	case *ast.CharLit:
		return fb.emitConst(ConstValue{Tag: ConstChar, Char: x.Value})
	case *ast.StringLit:
		return fb.emitConst(ConstValue{Tag: ConstString, Str: x.Value})
	case *ast.BoolLit:
		return fb.emitConst(ConstValue{Tag: ConstBool, Bool: x.Value})
	case *ast.VoidLit:
		return fb.emitConst(ConstValue{Tag: ConstVoid})
	case *ast.Ident:
		if r, ok := fb.lookup(x.Name); ok {
			return r
		}
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpLoad, Dst: fb.regOperand(dst), HasDst: true, Src: Global(x.Name)})
		return dst
	case *ast.Binary:
		return fb.lowerBinary(x)
	case *ast.Unary:
		src := fb.lowerExpr(x.X)
		dst := fb.newTemp()
		op := Neg
		if x.Op == token.Bang {
			op = Not
		}
		fb.emit(Instr{Op: OpUnary, Dst: fb.regOperand(dst), HasDst: true, Src: fb.regOperand(src), UnOp: op})
		return dst
	case *ast.Call:
		return fb.lowerCall(x)
	case *ast.Index:
		obj := fb.lowerExpr(x.X)
		idx := fb.lowerExpr(x.Index)
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpLoadElement, Dst: fb.regOperand(dst), HasDst: true, Lhs: fb.regOperand(obj), Rhs: fb.regOperand(idx)})
		return dst
	case *ast.Field:
		obj := fb.lowerExpr(x.X)
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpLoadField, Dst: fb.regOperand(dst), HasDst: true, Src: fb.regOperand(obj), Field: x.Name})
		return dst
	case *ast.Cast:
		src := fb.lowerExpr(x.X)
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpCast, Dst: fb.regOperand(dst), HasDst: true, Src: fb.regOperand(src), TypeName: castTypeName(x.Type)})
		return dst
	case *ast.Try:
		// expr? desugars to: evaluate, and on an error-tagged struct
		// value, return it immediately; otherwise unwrap (spec.md §9
		// "recommended lowering strategy for ?").
		return fb.lowerTry(x)
	case *ast.TupleExpr:
		regs := make([]Operand, len(x.Elems))
		for i, el := range x.Elems {
			regs[i] = fb.regOperand(fb.lowerExpr(el))
		}
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpNewTuple, Dst: fb.regOperand(dst), HasDst: true, Args: regs})
		return dst
	case *ast.ListExpr:
		regs := make([]Operand, len(x.Elems))
		for i, el := range x.Elems {
			regs[i] = fb.regOperand(fb.lowerExpr(el))
		}
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpNewList, Dst: fb.regOperand(dst), HasDst: true, Args: regs})
		return dst
	case *ast.BlockExpr:
		fb.pushScope()
		defer fb.popScope()
		r := fb.lowerBlockBody2(x.Block)
		return r
	case *ast.IfExpr:
		return fb.lowerIf(x)
	case *ast.MatchExpr:
		return fb.lowerMatch(x)
	case *ast.WhileExpr:
		fb.lowerWhile(x.Label, x.Cond, x.Body)
		return fb.emitConst(ConstValue{Tag: ConstVoid})
	case *ast.ForExpr:
		fb.lowerFor(x.Label, x.Pat, x.Iter, x.Body)
		return fb.emitConst(ConstValue{Tag: ConstVoid})
	case *ast.Break:
		fb.lowerBreak(x)
		return fb.emitConst(ConstValue{Tag: ConstVoid})
	case *ast.Continue:
		fb.lowerContinue(x)
		return fb.emitConst(ConstValue{Tag: ConstVoid})
	case *ast.Return:
		if x.Value != nil {
			r := fb.lowerExpr(x.Value)
			fb.emit(Instr{Op: OpRet, Src: fb.regOperand(r), HasDst: true})
		} else {
			fb.emit(Instr{Op: OpRet})
		}
		return fb.emitConst(ConstValue{Tag: ConstVoid})
	case *ast.Lambda:
		return fb.lowerLambda(x)
	default:
		panic(fmt.Sprintf("ir: unhandled expression %T", e))
	}
}

// lowerBlockBody2 mirrors lowerBlockBody but is used from expression
// position where the block's own scope was already pushed by the
// caller (BlockExpr case), to avoid double-pushing.
func (fb *funcBuilder) lowerBlockBody2(b *ast.Block) int {
	for _, s := range b.Stmts {
		fb.lowerStmt(s)
	}
	if b.Trailing != nil {
		return fb.lowerExpr(b.Trailing)
	}
	return fb.emitConst(ConstValue{Tag: ConstVoid})
}

func (fb *funcBuilder) emitConst(c ConstValue) int {
	dst := fb.newTemp()
	fb.emit(Instr{Op: OpLoad, Dst: fb.regOperand(dst), HasDst: true, Src: Const(c)})
	return dst
}

func (fb *funcBuilder) lowerBinary(x *ast.Binary) int {
	if x.Op == token.Assign {
		r := fb.lowerExpr(x.Right)
		if id, ok := x.Left.(*ast.Ident); ok {
			local, ok := fb.lookup(id.Name)
			if ok {
				fb.emit(Instr{Op: OpStore, Dst: Local(local), Src: fb.regOperand(r)})
			} else {
				fb.emit(Instr{Op: OpStore, Dst: Global(id.Name), Src: fb.regOperand(r)})
			}
			return r
		}
		if fld, ok := x.Left.(*ast.Field); ok {
			obj := fb.lowerExpr(fld.X)
			fb.emit(Instr{Op: OpSetField, Src: fb.regOperand(obj), Field: fld.Name, Args: []Operand{fb.regOperand(r)}})
			return r
		}
		if idx, ok := x.Left.(*ast.Index); ok {
			obj := fb.lowerExpr(idx.X)
			i := fb.lowerExpr(idx.Index)
			fb.emit(Instr{Op: OpStoreElement, Lhs: fb.regOperand(obj), Rhs: fb.regOperand(i), Args: []Operand{fb.regOperand(r)}})
			return r
		}
		return r
	}
	if x.Op == token.AndAnd || x.Op == token.OrOr {
		return fb.lowerShortCircuit(x)
	}
	l := fb.lowerExpr(x.Left)
	r := fb.lowerExpr(x.Right)
	dst := fb.newTemp()
	if cmp, ok := cmpOpFor(x.Op); ok {
		fb.emit(Instr{Op: OpCompare, Dst: fb.regOperand(dst), HasDst: true, Lhs: fb.regOperand(l), Rhs: fb.regOperand(r), CmpOp: cmp})
		return dst
	}
	bop := binOpFor(x.Op)
	fb.emit(Instr{Op: OpBinary, Dst: fb.regOperand(dst), HasDst: true, Lhs: fb.regOperand(l), Rhs: fb.regOperand(r), BinOp: bop})
	return dst
}

// lowerShortCircuit lowers && / || with branching rather than eager
// evaluation, matching the IfExpr lowering shape used elsewhere.
func (fb *funcBuilder) lowerShortCircuit(x *ast.Binary) int {
	dst := fb.declare(fmt.Sprintf("$sc%d", fb.nextLabel))
	l := fb.lowerExpr(x.Left)
	fb.emit(Instr{Op: OpStore, Dst: Local(dst), Src: fb.regOperand(l)})
	rhsBlock := fb.newBlock()
	afterBlock := fb.newBlock()
	if x.Op == token.AndAnd {
		fb.emit(Instr{Op: OpJmpIfNot, Src: fb.regOperand(l), Target: afterBlock})
		fb.emit(Instr{Op: OpJmp, Target: rhsBlock})
	} else {
		fb.emit(Instr{Op: OpJmpIf, Src: fb.regOperand(l), Target: afterBlock})
		fb.emit(Instr{Op: OpJmp, Target: rhsBlock})
	}
	fb.setBlock(rhsBlock)
	r := fb.lowerExpr(x.Right)
	fb.emit(Instr{Op: OpStore, Dst: Local(dst), Src: fb.regOperand(r)})
	fb.emit(Instr{Op: OpJmp, Target: afterBlock})
	fb.setBlock(afterBlock)
	return dst
}

func cmpOpFor(k token.Kind) (CmpOp, bool) {
	switch k {
	case token.Eq:
		return Eq, true
	case token.Ne:
		return Ne, true
	case token.Lt:
		return Lt, true
	case token.Le:
		return Le, true
	case token.Gt:
		return Gt, true
	case token.Ge:
		return Ge, true
	}
	return 0, false
}

func binOpFor(k token.Kind) BinOp {
	switch k {
	case token.Plus:
		return Add
	case token.Minus:
		return Sub
	case token.Star:
		return Mul
	case token.Slash:
		return Div
	case token.Percent:
		return Rem
	case token.Amp:
		return BitAnd
	case token.Pipe:
		return BitOr
	case token.Caret:
		return BitXor
	}
	return Add
}

func (fb *funcBuilder) lowerCall(x *ast.Call) int {
	// A dotted name whose root resolves to nothing (std.math.max,
	// std.io.println) is a namespaced static call the interpreter hands
	// to the FFI registry, not a method call on a value (spec.md §4.7).
	if name, ok := fb.dottedCalleeName(x.Callee); ok {
		args := make([]Operand, len(x.Args))
		for i, a := range x.Args {
			args[i] = fb.regOperand(fb.lowerExpr(a))
		}
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpCall, Dst: fb.regOperand(dst), HasDst: true, FuncName: name, Args: args})
		return dst
	}

	// Method-call flattening: obj.m(args…) -> m(obj, args…), spec.md
	// §4.4 "namespace flattening".
	if fld, ok := x.Callee.(*ast.Field); ok {
		obj := fb.lowerExpr(fld.X)
		args := make([]Operand, 0, len(x.Args)+1)
		args = append(args, fb.regOperand(obj))
		for _, a := range x.Args {
			args = append(args, fb.regOperand(fb.lowerExpr(a)))
		}
		dst := fb.newTemp()
		fb.emit(Instr{Op: OpCall, Dst: fb.regOperand(dst), HasDst: true, FuncName: fld.Name, Args: args})
		return dst
	}
	args := make([]Operand, len(x.Args))
	for i, a := range x.Args {
		args[i] = fb.regOperand(fb.lowerExpr(a))
	}
	dst := fb.newTemp()
	if id, ok := x.Callee.(*ast.Ident); ok {
		// A name bound in scope holds a first-class Function value and
		// dispatches dynamically; an unbound name is a static call
		// resolved by the interpreter (interpreted function, native
		// handler, or constructor — spec.md §4.7).
		if r, bound := fb.lookup(id.Name); bound {
			fb.emit(Instr{Op: OpCall, Dst: fb.regOperand(dst), HasDst: true, Src: fb.regOperand(r), Args: args})
			return dst
		}
		fb.emit(Instr{Op: OpCall, Dst: fb.regOperand(dst), HasDst: true, FuncName: id.Name, Args: args})
		return dst
	}
	// Any other callee expression evaluates to a Function value:
	// CallDyn semantics, encoded as OpCall with no FuncName and the
	// callee in Src.
	callee := fb.lowerExpr(x.Callee)
	fb.emit(Instr{Op: OpCall, Dst: fb.regOperand(dst), HasDst: true, Src: fb.regOperand(callee), Args: args})
	return dst
}

// dottedCalleeName flattens a field chain of plain identifiers into
// its dotted name when the root identifier names nothing in scope, no
// module function, and no global — the namespaced-native shape the
// FFI registry resolves. A chain rooted at a live value stays a method
// call.
func (fb *funcBuilder) dottedCalleeName(e ast.Expr) (string, bool) {
	fld, ok := e.(*ast.Field)
	if !ok {
		return "", false
	}
	parts := []string{fld.Name}
	x := fld.X
	for {
		switch n := x.(type) {
		case *ast.Field:
			parts = append([]string{n.Name}, parts...)
			x = n.X
		case *ast.Ident:
			if _, bound := fb.lookup(n.Name); bound {
				return "", false
			}
			if _, isFunc := fb.g.res.Funcs[n.Name]; isFunc {
				return "", false
			}
			if fb.g.globalNames[n.Name] {
				return "", false
			}
			parts = append([]string{n.Name}, parts...)
			return strings.Join(parts, "."), true
		default:
			return "", false
		}
	}
}

func (fb *funcBuilder) lowerIf(x *ast.IfExpr) int {
	resultLocal := fb.declare(fmt.Sprintf("$if%d", fb.nextLabel))
	afterBlock := fb.newBlock()

	fb.lowerIfBranch(x.Cond, x.Then, x.Elifs, x.Else, resultLocal, afterBlock)

	fb.setBlock(afterBlock)
	return resultLocal
}

func (fb *funcBuilder) lowerIfBranch(cond ast.Expr, then *ast.Block, elifs []ast.ElifClause, els *ast.Block, resultLocal, afterBlock int) {
	c := fb.lowerExpr(cond)
	thenBlock := fb.newBlock()
	elseBlock := fb.newBlock()
	fb.emit(Instr{Op: OpJmpIfNot, Src: fb.regOperand(c), Target: elseBlock})
	fb.emit(Instr{Op: OpJmp, Target: thenBlock})

	fb.setBlock(thenBlock)
	r := fb.lowerBlockBody(then)
	if !fb.blockTerminated() {
		if r >= 0 {
			fb.emit(Instr{Op: OpStore, Dst: Local(resultLocal), Src: fb.regOperand(r)})
		}
		fb.emit(Instr{Op: OpJmp, Target: afterBlock})
	}

	fb.setBlock(elseBlock)
	if len(elifs) > 0 {
		fb.lowerIfBranch(elifs[0].Cond, elifs[0].Body, elifs[1:], els, resultLocal, afterBlock)
		return
	}
	if els != nil {
		r := fb.lowerBlockBody(els)
		if !fb.blockTerminated() {
			if r >= 0 {
				fb.emit(Instr{Op: OpStore, Dst: Local(resultLocal), Src: fb.regOperand(r)})
			}
			fb.emit(Instr{Op: OpJmp, Target: afterBlock})
		}
		return
	}
	fb.emit(Instr{Op: OpJmp, Target: afterBlock})
}

// castTypeName names the target type of an `as` cast the way the
// runtime's type table records it.
func castTypeName(t ast.Type) string {
	switch n := t.(type) {
	case *ast.IntType:
		return "Int"
	case *ast.FloatType:
		return "Float"
	case *ast.BoolType:
		return "Bool"
	case *ast.CharType:
		return "Char"
	case *ast.StringType:
		return "String"
	case *ast.BytesType:
		return "Bytes"
	case *ast.NameType:
		return n.Name
	case *ast.GenericType:
		return n.Name
	}
	return ""
}

// lowerMatch lowers a match expression: the all-constant-arm shape
// becomes a single Switch dispatch; anything richer falls back to a
// cascade of pattern tests. Exhaustiveness on non-union scrutinees is
// not enforced here (spec.md §9 open question 2); an unmatched value
// falls through to a runtime Throw.
func (fb *funcBuilder) lowerMatch(x *ast.MatchExpr) int {
	if r, ok := fb.lowerMatchAsSwitch(x); ok {
		return r
	}
	subject := fb.lowerExpr(x.X)
	resultLocal := fb.declare(fmt.Sprintf("$match%d", fb.nextLabel))
	afterBlock := fb.newBlock()

	for _, arm := range x.Arms {
		nextBlock := fb.newBlock()
		armBlock := fb.newBlock()
		fb.emitPatternTest(arm.Pat, subject, armBlock, nextBlock)

		fb.setBlock(armBlock)
		fb.pushScope()
		fb.bindPatternFields(arm.Pat, subject)
		if arm.Guard != nil {
			g := fb.lowerExpr(arm.Guard)
			guardBody := fb.newBlock()
			fb.emit(Instr{Op: OpJmpIfNot, Src: fb.regOperand(g), Target: nextBlock})
			fb.emit(Instr{Op: OpJmp, Target: guardBody})
			fb.setBlock(guardBody)
		}
		r := fb.lowerExpr(arm.Body)
		fb.emit(Instr{Op: OpStore, Dst: Local(resultLocal), Src: fb.regOperand(r)})
		fb.emit(Instr{Op: OpJmp, Target: afterBlock})
		fb.popScope()

		fb.setBlock(nextBlock)
	}
	fb.emit(Instr{Op: OpThrow, Src: fb.regOperand(subject)})

	fb.setBlock(afterBlock)
	return resultLocal
}

// lowerMatchAsSwitch recognizes arms that are all constant literal
// patterns without guards (optionally ending in one catch-all) and
// lowers them to one Switch instruction over interned constants.
func (fb *funcBuilder) lowerMatchAsSwitch(x *ast.MatchExpr) (int, bool) {
	if len(x.Arms) == 0 {
		return 0, false
	}
	consts := make([]ConstValue, 0, len(x.Arms))
	var catchAll *ast.MatchArm
	for i := range x.Arms {
		arm := &x.Arms[i]
		if arm.Guard != nil {
			return 0, false
		}
		switch p := arm.Pat.(type) {
		case *ast.LitPattern:
			cv, ok := litConst(p.Value)
			if !ok {
				return 0, false
			}
			consts = append(consts, cv)
		case *ast.IdentPattern, *ast.WildcardPattern:
			if i != len(x.Arms)-1 {
				return 0, false
			}
			catchAll = arm
		default:
			return 0, false
		}
	}

	subject := fb.lowerExpr(x.X)
	resultLocal := fb.declare(fmt.Sprintf("$match%d", fb.nextLabel))
	afterBlock := fb.newBlock()
	defaultBlock := fb.newBlock()

	cases := make([]SwitchCase, len(consts))
	armBlocks := make([]int, len(consts))
	for i := range cases {
		armBlocks[i] = fb.newBlock()
		cases[i] = SwitchCase{Value: consts[i], Target: armBlocks[i]}
	}
	fb.emit(Instr{Op: OpSwitch, Src: fb.regOperand(subject), Cases: cases, Default: defaultBlock})

	for i, blk := range armBlocks {
		fb.setBlock(blk)
		r := fb.lowerExpr(x.Arms[i].Body)
		fb.emit(Instr{Op: OpStore, Dst: Local(resultLocal), Src: fb.regOperand(r)})
		fb.emit(Instr{Op: OpJmp, Target: afterBlock})
	}

	fb.setBlock(defaultBlock)
	if catchAll != nil {
		fb.pushScope()
		fb.bindPatternFields(catchAll.Pat, subject)
		r := fb.lowerExpr(catchAll.Body)
		fb.emit(Instr{Op: OpStore, Dst: Local(resultLocal), Src: fb.regOperand(r)})
		fb.popScope()
		fb.emit(Instr{Op: OpJmp, Target: afterBlock})
	} else {
		fb.emit(Instr{Op: OpThrow, Src: fb.regOperand(subject)})
	}

	fb.setBlock(afterBlock)
	return resultLocal, true
}

// litConst extracts the compile-time constant behind a literal
// pattern, including a negated integer/float literal.
func litConst(e ast.Expr) (ConstValue, bool) {
	switch x := e.(type) {
	case *ast.IntLit:
		return ConstValue{Tag: ConstInt, Int: x.Value, Big: x.Big}, true
	case *ast.FloatLit:
		return ConstValue{Tag: ConstFloat, Float: x.Value}, true
	case *ast.CharLit:
		return ConstValue{Tag: ConstChar, Char: x.Value}, true
	case *ast.StringLit:
		return ConstValue{Tag: ConstString, Str: x.Value}, true
	case *ast.BoolLit:
		return ConstValue{Tag: ConstBool, Bool: x.Value}, true
	case *ast.Unary:
		if x.Op == token.Minus {
			if il, ok := x.X.(*ast.IntLit); ok && il.Big == nil {
				return ConstValue{Tag: ConstInt, Int: -il.Value}, true
			}
			if fl, ok := x.X.(*ast.FloatLit); ok {
				return ConstValue{Tag: ConstFloat, Float: -fl.Value}, true
			}
		}
	}
	return ConstValue{}, false
}

func (fb *funcBuilder) emitPatternTest(pat ast.Pattern, subject, matchBlock, failBlock int) {
	switch p := pat.(type) {
	case *ast.IdentPattern, *ast.WildcardPattern:
		fb.emit(Instr{Op: OpJmp, Target: matchBlock})
	case *ast.LitPattern:
		lit := fb.lowerExpr(p.Value)
		cmp := fb.newTemp()
		fb.emit(Instr{Op: OpCompare, Dst: fb.regOperand(cmp), HasDst: true, Lhs: fb.regOperand(subject), Rhs: fb.regOperand(lit), CmpOp: Eq})
		fb.emit(Instr{Op: OpJmpIfNot, Src: fb.regOperand(cmp), Target: failBlock})
		fb.emit(Instr{Op: OpJmp, Target: matchBlock})
	case *ast.StructPattern:
		tag := fb.newTemp()
		fb.emit(Instr{Op: OpLoadField, Dst: fb.regOperand(tag), HasDst: true, Src: fb.regOperand(subject), Field: "$tag"})
		want := fb.emitConst(ConstValue{Tag: ConstString, Str: p.Name})
		cmp := fb.newTemp()
		fb.emit(Instr{Op: OpCompare, Dst: fb.regOperand(cmp), HasDst: true, Lhs: fb.regOperand(tag), Rhs: fb.regOperand(want), CmpOp: Eq})
		fb.emit(Instr{Op: OpJmpIfNot, Src: fb.regOperand(cmp), Target: failBlock})
		fb.emit(Instr{Op: OpJmp, Target: matchBlock})
	case *ast.TuplePattern:
		fb.emit(Instr{Op: OpJmp, Target: matchBlock})
	default:
		fb.emit(Instr{Op: OpJmp, Target: matchBlock})
	}
}

func (fb *funcBuilder) bindPatternFields(pat ast.Pattern, subject int) {
	switch p := pat.(type) {
	case *ast.IdentPattern:
		local := fb.declare(p.Name)
		fb.emit(Instr{Op: OpStore, Dst: Local(local), Src: fb.regOperand(subject)})
	case *ast.StructPattern:
		for _, f := range p.Fields {
			r := fb.newTemp()
			fb.emit(Instr{Op: OpLoadField, Dst: fb.regOperand(r), HasDst: true, Src: fb.regOperand(subject), Field: f.Name})
			fb.bindPatternFields(f.Pat, r)
		}
	case *ast.TuplePattern:
		for i, el := range p.Elems {
			r := fb.newTemp()
			idx := fb.emitConst(ConstValue{Tag: ConstInt, Int: int64(i)})
			fb.emit(Instr{Op: OpLoadElement, Dst: fb.regOperand(r), HasDst: true, Lhs: fb.regOperand(subject), Rhs: fb.regOperand(idx)})
			fb.bindPatternFields(el, r)
		}
	}
}

func (fb *funcBuilder) lowerBreak(x *ast.Break) {
	target := fb.findLoop(x.Label).breakBlock
	fb.emit(Instr{Op: OpJmp, Target: target})
}

func (fb *funcBuilder) lowerContinue(x *ast.Continue) {
	lc := fb.findLoop(x.Label)
	if lc.continueBlock >= 0 {
		fb.emit(Instr{Op: OpJmp, Target: lc.continueBlock})
	} else {
		fb.emit(Instr{Op: OpJmp, Target: lc.breakBlock})
	}
}

func (fb *funcBuilder) findLoop(label string) loopCtx {
	if label == "" {
		return fb.loops[len(fb.loops)-1]
	}
	for i := len(fb.loops) - 1; i >= 0; i-- {
		if fb.loops[i].label == label {
			return fb.loops[i]
		}
	}
	return fb.loops[len(fb.loops)-1]
}

// lowerTry desugars `expr?`: evaluate, check the struct's `$tag` field
// against "Err"; if so, return it immediately, else unwrap the "value"
// field (spec.md §9 recommended lowering). Only "Err" is tested; any
// other tag, "None" included, takes the unwrap path.
func (fb *funcBuilder) lowerTry(x *ast.Try) int {
	subject := fb.lowerExpr(x.X)
	tag := fb.newTemp()
	fb.emit(Instr{Op: OpLoadField, Dst: fb.regOperand(tag), HasDst: true, Src: fb.regOperand(subject), Field: "$tag"})
	errConst := fb.emitConst(ConstValue{Tag: ConstString, Str: "Err"})
	isErr := fb.newTemp()
	fb.emit(Instr{Op: OpCompare, Dst: fb.regOperand(isErr), HasDst: true, Lhs: fb.regOperand(tag), Rhs: fb.regOperand(errConst), CmpOp: Eq})

	errBlock := fb.newBlock()
	okBlock := fb.newBlock()
	fb.emit(Instr{Op: OpJmpIf, Src: fb.regOperand(isErr), Target: errBlock})
	fb.emit(Instr{Op: OpJmp, Target: okBlock})

	fb.setBlock(errBlock)
	fb.emit(Instr{Op: OpRet, Src: fb.regOperand(subject), HasDst: true})

	fb.setBlock(okBlock)
	dst := fb.newTemp()
	fb.emit(Instr{Op: OpLoadField, Dst: fb.regOperand(dst), HasDst: true, Src: fb.regOperand(subject), Field: "value"})
	return dst
}

// lowerLambda captures every free identifier visible in the enclosing
// scopes by value into a synthesized function's upvalue vector
// (spec.md §4.4 closure capture, §3.6 "upvalue vector materialized at
// frame entry").
func (fb *funcBuilder) lowerLambda(x *ast.Lambda) int {
	name := fmt.Sprintf("$lambda%d", fb.g.lambdaCount)
	fb.g.lambdaCount++

	// Parameters occupy registers 0..len(params) (arguments land there
	// at call time, spec.md §3.7); the captured environment materializes
	// into the registers after them at frame entry.
	captured := freeVars(x, declaredNames(fb))
	sub := newFuncBuilder(fb.g, nil, nil)
	sub.nextReg = len(x.Params) + len(captured)
	for i, p := range x.Params {
		sub.bind(p.Name, i)
	}
	for i, name := range captured {
		reg := len(x.Params) + i
		sub.upvalNames = append(sub.upvalNames, name)
		sub.bind(name, reg)
		sub.emit(Instr{Op: OpLoadUpvalue, Dst: Local(reg), HasDst: true, Field: name, Target: i})
	}
	last := sub.lowerBlockBody(x.Body)
	if !sub.blockTerminated() {
		if last >= 0 {
			sub.emit(Instr{Op: OpRet, Src: sub.regOperand(last), HasDst: true})
		} else {
			sub.emit(Instr{Op: OpRet})
		}
	}
	fn := sub.finish()
	fn.Name = name
	fb.g.addFunc(fn)

	envRegs := make([]Operand, len(captured))
	for i, v := range captured {
		if r, ok := fb.lookup(v); ok {
			envRegs[i] = fb.regOperand(r)
		} else {
			envRegs[i] = Global(v)
		}
	}
	dst := fb.newTemp()
	fb.emit(Instr{Op: OpMakeClosure, Dst: fb.regOperand(dst), HasDst: true, FuncName: name, Args: envRegs})
	return dst
}

func declaredNames(fb *funcBuilder) map[string]bool {
	names := make(map[string]bool)
	for _, sc := range fb.scopes {
		for n := range sc {
			names[n] = true
		}
	}
	return names
}

// freeVars returns the identifiers referenced inside a lambda that are
// bound outside it (not its own parameters or locals), in a stable
// order, limited to names the enclosing function actually declared.
func freeVars(lam *ast.Lambda, enclosing map[string]bool) []string {
	bound := map[string]bool{}
	for _, p := range lam.Params {
		bound[p.Name] = true
	}
	seen := map[string]bool{}
	var order []string
	var walkExpr func(ast.Expr)
	var walkStmt func(ast.Stmt)
	add := func(n string) {
		if bound[n] || seen[n] || !enclosing[n] {
			return
		}
		seen[n] = true
		order = append(order, n)
	}
	walkStmt = func(s ast.Stmt) {
		switch st := s.(type) {
		case *ast.VarBinding:
			if st.Init != nil {
				walkExpr(st.Init)
			}
			bound[st.Name] = true
		case *ast.ExprStmt:
			walkExpr(st.X)
		case *ast.WhileStmt:
			walkExpr(st.Cond)
			for _, s2 := range st.Body.Stmts {
				walkStmt(s2)
			}
		case *ast.ForStmt:
			walkExpr(st.Iter)
			for _, s2 := range st.Body.Stmts {
				walkStmt(s2)
			}
		}
	}
	walkExpr = func(e ast.Expr) {
		switch x := e.(type) {
		case *ast.Ident:
			add(x.Name)
		case *ast.Binary:
			walkExpr(x.Left)
			walkExpr(x.Right)
		case *ast.Unary:
			walkExpr(x.X)
		case *ast.Call:
			walkExpr(x.Callee)
			for _, a := range x.Args {
				walkExpr(a)
			}
		case *ast.Index:
			walkExpr(x.X)
			walkExpr(x.Index)
		case *ast.Field:
			walkExpr(x.X)
		case *ast.Cast:
			walkExpr(x.X)
		case *ast.Try:
			walkExpr(x.X)
		case *ast.TupleExpr:
			for _, el := range x.Elems {
				walkExpr(el)
			}
		case *ast.ListExpr:
			for _, el := range x.Elems {
				walkExpr(el)
			}
		case *ast.BlockExpr:
			for _, s2 := range x.Block.Stmts {
				walkStmt(s2)
			}
			if x.Block.Trailing != nil {
				walkExpr(x.Block.Trailing)
			}
		case *ast.IfExpr:
			walkExpr(x.Cond)
			for _, s2 := range x.Then.Stmts {
				walkStmt(s2)
			}
			if x.Then.Trailing != nil {
				walkExpr(x.Then.Trailing)
			}
		case *ast.Return:
			if x.Value != nil {
				walkExpr(x.Value)
			}
		case *ast.Lambda:
			for _, s2 := range x.Body.Stmts {
				walkStmt(s2)
			}
			if x.Body.Trailing != nil {
				walkExpr(x.Body.Trailing)
			}
		}
	}
	for _, s := range lam.Body.Stmts {
		walkStmt(s)
	}
	if lam.Body.Trailing != nil {
		walkExpr(lam.Body.Trailing)
	}
	return order
}
