package lexer

import (
	"testing"

	"yaoxiang/token"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func kinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	toks, err := Tokenize("test.yx", src)
	assert(t, err == nil, "tokenize failed: %v", err)
	var ks []token.Kind
	for _, tk := range toks {
		ks = append(ks, tk.Kind)
	}
	return ks
}

func TestNumericLiterals(t *testing.T) {
	toks, err := Tokenize("test.yx", "1_000 0xFF 0o17 0b101 1.5 1.5e10 .5")
	assert(t, err == nil, "unexpected error: %v", err)

	expectInt := func(i int, v int64) {
		assert(t, toks[i].Kind == token.IntLit, "token %d not int: %v", i, toks[i].Kind)
		assert(t, toks[i].Literal.Int == v, "token %d = %d, want %d", i, toks[i].Literal.Int, v)
	}
	expectInt(0, 1000)
	expectInt(1, 255)
	expectInt(2, 15)
	expectInt(3, 5)
	assert(t, toks[4].Kind == token.FloatLit && toks[4].Literal.Float == 1.5, "bad float")
	assert(t, toks[5].Kind == token.FloatLit, "bad exponent float")
	assert(t, toks[6].Kind == token.FloatLit && toks[6].Literal.Float == 0.5, "bad leading-dot float")
}

func TestStringAndCharLiterals(t *testing.T) {
	toks, err := Tokenize("test.yx", `"hi\n" 'a' """multi
line"""`)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, toks[0].Kind == token.StringLit && toks[0].Literal.Str == "hi\n", "bad string escape")
	assert(t, toks[1].Kind == token.CharLit && toks[1].Literal.Char == 'a', "bad char")
	assert(t, toks[2].Kind == token.StringLit && toks[2].Literal.Str == "multi\nline", "bad triple string")
}

func TestUnterminatedString(t *testing.T) {
	_, err := Tokenize("test.yx", `"abc`)
	assert(t, err != nil, "expected unterminated string error")
	lexErr, ok := err.(*Error)
	assert(t, ok, "expected *lexer.Error, got %T", err)
	assert(t, lexErr.Kind == "UnterminatedString", "got %s", lexErr.Kind)
}

func TestNestedBlockComments(t *testing.T) {
	ks := kinds(t, "/* outer /* inner */ still-outer */ 1")
	assert(t, len(ks) == 2 && ks[0] == token.IntLit, "nested comment not fully skipped: %v", ks)
}

func TestUnterminatedBlockCommentSilentlyClosed(t *testing.T) {
	ks := kinds(t, "1 /* never closed")
	assert(t, len(ks) == 2 && ks[0] == token.IntLit && ks[1] == token.EOF, "unterminated comment should silently close: %v", ks)
}

func TestOperatorLookahead(t *testing.T) {
	ks := kinds(t, "= == => -> .. ... :: ")
	want := []token.Kind{token.Assign, token.Eq, token.FatArrow, token.Arrow, token.DotDot, token.DotDotDot, token.ColonColon, token.EOF}
	assert(t, len(ks) == len(want), "wrong token count: %v", ks)
	for i := range want {
		assert(t, ks[i] == want[i], "token %d: got %v want %v", i, ks[i], want[i])
	}
}

func TestKeywordsAndLiterals(t *testing.T) {
	ks := kinds(t, "true false void mut fn")
	want := []token.Kind{token.BoolLit, token.BoolLit, token.VoidLit, token.KwMut, token.KwFn, token.EOF}
	for i := range want {
		assert(t, ks[i] == want[i], "token %d: got %v want %v", i, ks[i], want[i])
	}
}

func TestUnicodeEscape(t *testing.T) {
	toks, err := Tokenize("test.yx", `"\u{48}\u{49}"`)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, toks[0].Literal.Str == "HI", "got %q", toks[0].Literal.Str)
}
