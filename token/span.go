// Package token defines the lexical token kinds and source spans shared
// by the lexer, parser and diagnostics machinery.
package token

import "fmt"

// Span identifies a byte range in a single named source file, plus the
// 1-based line/column of its starting byte. Spans are carried on every
// token and AST node so that later phases (parser, type checker, VM)
// can report errors that point back at the original source text.
type Span struct {
	File   string
	Start  int
	End    int
	Line   int
	Column int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Join returns the smallest span covering both s and other. Used when
// building composite AST nodes (e.g. a binary expression spans from
// its left operand to its right operand).
func (s Span) Join(other Span) Span {
	start, end := s, other
	if other.Start < s.Start {
		start, end = other, s
	}
	return Span{
		File:   s.File,
		Start:  start.Start,
		End:    end.End,
		Line:   start.Line,
		Column: start.Column,
	}
}
