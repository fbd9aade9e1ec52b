// Package span provides the byte/line/column primitives shared by the
// tokenizer, parser, and AST: zero-based positions (Loc), ranges over
// them (Span), and the handful of arithmetic operations lowering and
// error reporting need.
package span

import "fmt"

// LineIndex, ColumnIndex and ByteIndex are zero-based unsigned
// positions. Each has a matching signed offset type below; arithmetic
// between an Index and its Offset only underflows where a caller has
// already established the result is non-negative (e.g. from a
// well-formed Span), so these stay plain unsigned ints rather than
// guarding every add/sub.
type LineIndex uint32
type ColumnIndex uint32
type ByteIndex uint32

type LineOffset int64
type ColumnOffset int64
type ByteOffset int64

// LineNumber and ColumnNumber are the 1-based values shown to users.
type LineNumber uint32
type ColumnNumber uint32

func (l LineIndex) Number() LineNumber     { return LineNumber(l + 1) }
func (c ColumnIndex) Number() ColumnNumber { return ColumnNumber(c + 1) }

func (l LineIndex) Add(o LineOffset) LineIndex     { return LineIndex(int64(l) + int64(o)) }
func (c ColumnIndex) Add(o ColumnOffset) ColumnIndex { return ColumnIndex(int64(c) + int64(o)) }

func (a LineIndex) Sub(b LineIndex) LineOffset     { return LineOffset(int64(a) - int64(b)) }
func (a ColumnIndex) Sub(b ColumnIndex) ColumnOffset { return ColumnOffset(int64(a) - int64(b)) }

// Loc is a (line, column) position. Ordering is lexicographic.
type Loc struct {
	Line   LineIndex
	Column ColumnIndex
}

// ZeroLoc is the origin: line 0, column 0.
func ZeroLoc() Loc { return Loc{} }

func NewLoc(line LineIndex, column ColumnIndex) Loc {
	return Loc{Line: line, Column: column}
}

// Less reports whether a sorts before b under (line, column) order.
func (a Loc) Less(b Loc) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

func (a Loc) Equal(b Loc) bool { return a.Line == b.Line && a.Column == b.Column }

func minLoc(a, b Loc) Loc {
	if b.Less(a) {
		return b
	}
	return a
}

func maxLoc(a, b Loc) Loc {
	if a.Less(b) {
		return b
	}
	return a
}

func (l Loc) String() string {
	return fmt.Sprintf("%d:%d", l.Line.Number(), l.Column.Number())
}

// Span is a half-open-by-convention range between two Locs. Span{} (=
// Zero) is the sentinel used where a span is not yet known, e.g. AST
// nodes synthesized during desugaring.
type Span struct {
	Start Loc
	End   Loc
}

// Zero returns the sentinel empty span at the origin.
func Zero() Span { return Span{} }

func New(start, end Loc) Span { return Span{Start: start, End: end} }

// FromStart builds a zero-width span starting (and ending) at start.
func FromStart(start Loc) Span { return Span{Start: start, End: start} }

// Expand returns a copy of s with its end moved to end.
func (s Span) Expand(end Loc) Span {
	s.End = end
	return s
}

// Merge yields the smallest span covering both a and b.
func Merge(a, b Span) Span {
	return Span{Start: minLoc(a.Start, b.Start), End: maxLoc(a.End, b.End)}
}

func (s Span) IsZero() bool { return s == Span{} }

// Contains reports whether s fully covers inner — used to check the
// child-span-within-parent-span invariant.
func (s Span) Contains(inner Span) bool {
	if s.IsZero() || inner.IsZero() {
		return true
	}
	return !inner.Start.Less(s.Start) && !s.End.Less(inner.End)
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}
