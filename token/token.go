package token

// Kind partitions every lexeme the lexer can produce: identifiers, the
// fixed set of 28 reserved keywords, punctuation/operators, and
// literals.
type Kind int

const (
	EOF Kind = iota
	Ident

	// Literals
	IntLit
	FloatLit
	CharLit
	StringLit
	BoolLit
	VoidLit

	// Keywords (28, fixed per spec)
	KwMut
	KwType
	KwUse
	KwIf
	KwElif
	KwElse
	KwMatch
	KwWhile
	KwFor
	KwBreak
	KwContinue
	KwReturn
	KwAs
	KwTrue
	KwFalse
	KwVoid
	KwInt
	KwFloat
	KwBool
	KwChar
	KwString
	KwBytes
	KwList
	KwDict
	KwStruct
	KwFn
	KwIn
	KwAsync

	// Punctuation / operators
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Colon
	ColonColon
	Semicolon
	Dot
	DotDot
	DotDotDot
	Arrow   // ->
	FatArrow // =>
	Question // ?
	Underscore

	Assign // =
	Eq     // ==
	Ne     // !=
	Lt
	Le
	Gt
	Ge
	Plus
	Minus
	Star
	Slash
	Percent
	AndAnd
	OrOr
	Bang
	Amp
	Pipe
	Caret
)

// keywords maps the 28 reserved words to their kinds. bool/void
// literals are reserved non-identifiers per spec.md §4.1.
var keywords = map[string]Kind{
	"mut":      KwMut,
	"type":     KwType,
	"use":      KwUse,
	"if":       KwIf,
	"elif":     KwElif,
	"else":     KwElse,
	"match":    KwMatch,
	"while":    KwWhile,
	"for":      KwFor,
	"break":    KwBreak,
	"continue": KwContinue,
	"return":   KwReturn,
	"as":       KwAs,
	"true":     KwTrue,
	"false":    KwFalse,
	"void":     KwVoid,
	"Int":      KwInt,
	"Float":    KwFloat,
	"Bool":     KwBool,
	"Char":     KwChar,
	"String":   KwString,
	"Bytes":    KwBytes,
	"List":     KwList,
	"Dict":     KwDict,
	"struct":   KwStruct,
	"fn":       KwFn,
	"in":       KwIn,
	"async":    KwAsync,
}

// LookupIdent returns KwXxx for a reserved word, or Ident otherwise.
func LookupIdent(text string) Kind {
	if k, ok := keywords[text]; ok {
		return k
	}
	return Ident
}

// Literal carries the decoded value of a literal token. Exactly one
// field is meaningful, selected by the owning Token's Kind.
type Literal struct {
	Int    int64  // IntLit that fits in i64
	Big    []byte // IntLit beyond i64, big-endian magnitude, filled by the lexer via math/big
	IsBig  bool
	Float  float64
	Char   rune
	Str    string
	Bool   bool
}

// Token is the unit the lexer emits: a kind, its source span, and an
// optional decoded literal payload.
type Token struct {
	Kind    Kind
	Span    Span
	Text    string // original lexeme, useful for diagnostics
	Literal Literal
}

func (t Token) String() string {
	return t.Text
}
