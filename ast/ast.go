// Package ast defines the syntax tree produced by the parser:
// spanned statements, expressions, types, and match patterns
// (spec.md §3.2).
package ast

import "yaoxiang/token"

// Module is an ordered, spanned sequence of top-level statements.
type Module struct {
	Stmts []Stmt
	Span  token.Span
}

// Stmt is any top-level or block-level statement.
type Stmt interface{ stmtNode() }

// Expr is any expression node.
type Expr interface{ exprNode() }

// Type is any type annotation node.
type Type interface{ typeNode() }

// Pattern is a match-arm pattern.
type Pattern interface{ patternNode() }

// ---- Statements ----

// VarBinding is `mut? name: T? = expr?`.
type VarBinding struct {
	Name    string
	Type    Type // nil if unannotated
	Init    Expr // nil if uninitialized
	Mutable bool
	Span    token.Span
}

// FuncDef is `name:(Params) -> Ret = (params) => body` or the
// unannotated `name = (params) => body` lambda-binding form.
type FuncDef struct {
	Name    string
	FnType  *FuncType // nil when there's no standalone annotation
	Params  []Param
	Body    *Block
	Span    token.Span
}

// MethodDef is `Type.name: Fn = (params) => body`, flattened by the IR
// generator into an ordinary top-level function taking the receiver
// as its first parameter (spec.md §4.4, §9 "method resolution").
type MethodDef struct {
	Receiver string
	Name     string
	FnType   *FuncType
	Params   []Param
	Body     *Block
	Span     token.Span
}

// TypeDef is `type Name[Params…] = Body`.
type TypeDef struct {
	Name    string
	Generic []string
	Body    Type
	Span    token.Span
}

// UseImport is `use a.b.c { x, y as z }`.
type UseImport struct {
	Path  []string
	Items []UseItem // nil means a plain dotted import with no brace list
	Alias string
	Span  token.Span
}

type UseItem struct {
	Name  string
	Alias string
}

// ExprStmt wraps an expression used in statement position.
type ExprStmt struct {
	X    Expr
	Span token.Span
}

// WhileStmt is `label: while cond { body }`.
type WhileStmt struct {
	Label string
	Cond  Expr
	Body  *Block
	Span  token.Span
}

// ForStmt is `label: for pat in iter { body }`.
type ForStmt struct {
	Label string
	Pat   Pattern
	Iter  Expr
	Body  *Block
	Span  token.Span
}

func (*VarBinding) stmtNode() {}
func (*FuncDef) stmtNode()    {}
func (*MethodDef) stmtNode()  {}
func (*TypeDef) stmtNode()    {}
func (*UseImport) stmtNode()  {}
func (*ExprStmt) stmtNode()   {}
func (*WhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()    {}

// Param is a lambda/function parameter; Type may be nil when it's
// supplied positionally by an enclosing function-type annotation
// (spec.md §4.3).
type Param struct {
	Name string
	Type Type
	Span token.Span
}

// Block is `{ stmts... trailingExpr? }`; Trailing is nil when the
// block ends in a statement (its type is then Void).
type Block struct {
	Stmts    []Stmt
	Trailing Expr
	Span     token.Span
}

// ---- Expressions ----

type (
	IntLit struct {
		Value int64
		Big   []byte // non-nil when the literal exceeds i64 (see lexer)
		Span  token.Span
	}
	FloatLit struct {
		Value float64
		Span  token.Span
	}
	CharLit struct {
		Value rune
		Span  token.Span
	}
	StringLit struct {
		Value string
		Span  token.Span
	}
	BoolLit struct {
		Value bool
		Span  token.Span
	}
	VoidLit struct{ Span token.Span }

	Ident struct {
		Name string
		Span token.Span
	}

	Binary struct {
		Op    token.Kind
		Left  Expr
		Right Expr
		Span  token.Span
	}

	Unary struct {
		Op   token.Kind
		X    Expr
		Span token.Span
	}

	Call struct {
		Callee Expr
		Args   []Expr
		Span   token.Span
	}

	Index struct {
		X     Expr
		Index Expr
		Span  token.Span
	}

	Field struct {
		X     Expr
		Name  string
		Span  token.Span
	}

	Cast struct {
		X    Expr
		Type Type
		Span token.Span
	}

	Try struct {
		X    Expr
		Span token.Span
	}

	TupleExpr struct {
		Elems []Expr
		Span  token.Span
	}

	ListExpr struct {
		Elems []Expr
		Span  token.Span
	}

	BlockExpr struct {
		Block *Block
		Span  token.Span
	}

	IfExpr struct {
		Cond   Expr
		Then   *Block
		Elifs  []ElifClause
		Else   *Block // nil if absent
		Span   token.Span
	}

	MatchExpr struct {
		X     Expr
		Arms  []MatchArm
		Span  token.Span
	}

	WhileExpr struct {
		Label string
		Cond  Expr
		Body  *Block
		Span  token.Span
	}

	ForExpr struct {
		Label string
		Pat   Pattern
		Iter  Expr
		Body  *Block
		Span  token.Span
	}

	Break struct {
		Label string
		Value Expr // nil if none
		Span  token.Span
	}

	Continue struct {
		Label string
		Span  token.Span
	}

	Return struct {
		Value Expr // nil if none
		Span  token.Span
	}

	Lambda struct {
		Params []Param
		Body   *Block
		Span   token.Span
	}
)

type ElifClause struct {
	Cond Expr
	Body *Block
}

type MatchArm struct {
	Pat   Pattern
	Guard Expr // nil if absent
	Body  Expr
}

func (*IntLit) exprNode()    {}
func (*FloatLit) exprNode()  {}
func (*CharLit) exprNode()   {}
func (*StringLit) exprNode() {}
func (*BoolLit) exprNode()   {}
func (*VoidLit) exprNode()   {}
func (*Ident) exprNode()     {}
func (*Binary) exprNode()    {}
func (*Unary) exprNode()     {}
func (*Call) exprNode()      {}
func (*Index) exprNode()     {}
func (*Field) exprNode()     {}
func (*Cast) exprNode()      {}
func (*Try) exprNode()       {}
func (*TupleExpr) exprNode() {}
func (*ListExpr) exprNode()  {}
func (*BlockExpr) exprNode() {}
func (*IfExpr) exprNode()    {}
func (*MatchExpr) exprNode() {}
func (*WhileExpr) exprNode() {}
func (*ForExpr) exprNode()   {}
func (*Break) exprNode()     {}
func (*Continue) exprNode()  {}
func (*Return) exprNode()    {}
func (*Lambda) exprNode()    {}

// ---- Types ----

type (
	NameType struct {
		Name string
		Span token.Span
	}
	IntType   struct{ Bits int; Span token.Span }
	FloatType struct{ Bits int; Span token.Span }
	BoolType  struct{ Span token.Span }
	CharType  struct{ Span token.Span }
	StringType struct{ Span token.Span }
	BytesType struct{ Span token.Span }
	VoidType  struct{ Span token.Span }

	ListType struct {
		Elem Type
		Span token.Span
	}

	DictType struct {
		Key  Type
		Val  Type
		Span token.Span
	}

	TupleType struct {
		Elems []Type
		Span  token.Span
	}

	FuncType struct {
		Params []Type
		Ret    Type
		Span   token.Span
	}

	GenericType struct {
		Name string
		Args []Type
		Span token.Span
	}

	StructType struct {
		Name   string
		Fields []StructField
		Span   token.Span
	}

	// UnionType is a sum type: either bare-name variants or
	// tagged constructors with positional or named fields
	// (spec.md §3.2).
	UnionType struct {
		Variants []UnionVariant
		Span     token.Span
	}
)

type StructField struct {
	Name string
	Type Type
}

type UnionVariant struct {
	Name       string
	Positional []Type
	Named      []StructField
}

func (*NameType) typeNode()   {}
func (*IntType) typeNode()    {}
func (*FloatType) typeNode()  {}
func (*BoolType) typeNode()   {}
func (*CharType) typeNode()   {}
func (*StringType) typeNode() {}
func (*BytesType) typeNode()  {}
func (*VoidType) typeNode()   {}
func (*ListType) typeNode()   {}
func (*DictType) typeNode()   {}
func (*TupleType) typeNode()  {}
func (*FuncType) typeNode()   {}
func (*GenericType) typeNode() {}
func (*StructType) typeNode() {}
func (*UnionType) typeNode()  {}

// ---- Patterns ----

type (
	LitPattern struct {
		Value Expr
		Span  token.Span
	}
	IdentPattern struct {
		Name string
		Span token.Span
	}
	WildcardPattern struct{ Span token.Span }

	TuplePattern struct {
		Elems []Pattern
		Span  token.Span
	}

	StructPattern struct {
		Name   string
		Fields []FieldPattern
		Span   token.Span
	}
)

type FieldPattern struct {
	Name string
	Pat  Pattern
}

// SpanOf recovers an expression node's span without putting a Span()
// method on every node type; used by diagnostics and the IR
// generator's line table.
func SpanOf(e Expr) token.Span {
	switch n := e.(type) {
	case *IntLit:
		return n.Span
	case *FloatLit:
		return n.Span
	case *CharLit:
		return n.Span
	case *StringLit:
		return n.Span
	case *BoolLit:
		return n.Span
	case *VoidLit:
		return n.Span
	case *Ident:
		return n.Span
	case *Binary:
		return n.Span
	case *Unary:
		return n.Span
	case *Call:
		return n.Span
	case *Index:
		return n.Span
	case *Field:
		return n.Span
	case *Cast:
		return n.Span
	case *Try:
		return n.Span
	case *TupleExpr:
		return n.Span
	case *ListExpr:
		return n.Span
	case *BlockExpr:
		return n.Span
	case *IfExpr:
		return n.Span
	case *MatchExpr:
		return n.Span
	case *WhileExpr:
		return n.Span
	case *ForExpr:
		return n.Span
	case *Break:
		return n.Span
	case *Continue:
		return n.Span
	case *Return:
		return n.Span
	case *Lambda:
		return n.Span
	}
	return token.Span{}
}

// StmtSpanOf is SpanOf's statement counterpart.
func StmtSpanOf(s Stmt) token.Span {
	switch n := s.(type) {
	case *VarBinding:
		return n.Span
	case *FuncDef:
		return n.Span
	case *MethodDef:
		return n.Span
	case *TypeDef:
		return n.Span
	case *UseImport:
		return n.Span
	case *ExprStmt:
		return n.Span
	case *WhileStmt:
		return n.Span
	case *ForStmt:
		return n.Span
	}
	return token.Span{}
}

func (*LitPattern) patternNode()      {}
func (*IdentPattern) patternNode()    {}
func (*WildcardPattern) patternNode() {}
func (*TuplePattern) patternNode()    {}
func (*StructPattern) patternNode()   {}
