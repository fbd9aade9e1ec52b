package token

import (
	"testing"

	"github.com/monsieurbadia/q5c/span"
)

func TestQueuePushPop(t *testing.T) {
	q := NewQueue()
	q.PushBack(Token{Kind: Ident, Name: "a"})
	q.PushBack(Token{Kind: Ident, Name: "b"})

	first, ok := q.Pop()
	if !ok || first.Name != "a" {
		t.Fatalf("Pop() = %+v, %v", first, ok)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}

func TestQueuePushFront(t *testing.T) {
	q := NewQueue()
	q.PushBack(Token{Kind: Ident, Name: "b"})
	q.PushFront(Token{Kind: Ident, Name: "a"})

	first, _ := q.Pop()
	if first.Name != "a" {
		t.Fatalf("PushFront did not reorder: got %q", first.Name)
	}
}

func TestQueueLastLocAdvancesOnPop(t *testing.T) {
	q := NewQueue()
	q.PushBack(Token{Kind: Ident, Name: "a", Span: span.New(span.ZeroLoc(), span.NewLoc(0, 1))})
	q.Pop()
	want := span.NewLoc(0, 1)
	if q.LastLoc() != want {
		t.Fatalf("LastLoc() = %v, want %v", q.LastLoc(), want)
	}
}

func TestIsNextPredicates(t *testing.T) {
	q := NewQueue()
	q.PushBack(Token{Kind: BinaryOp, Binary: Add})
	if !q.IsNext(BinaryOp) {
		t.Fatal("IsNext(BinaryOp) = false")
	}
	if !q.IsNextBinaryOperator() {
		t.Fatal("IsNextBinaryOperator() = false")
	}
	if q.IsNextAssignOperator() {
		t.Fatal("IsNextAssignOperator() = true, want false")
	}
}

func TestIsNextIdentifier(t *testing.T) {
	q := NewQueue()
	q.PushBack(Token{Kind: Ident, Name: "x"})
	if !q.IsNextIdentifier() {
		t.Fatal("IsNextIdentifier() = false")
	}
}

func TestIsInSameBlock(t *testing.T) {
	q := NewQueue()
	q.PushBack(Token{Kind: Indent, IndentLevel: 2})
	if !q.IsInSameBlock(2) {
		t.Fatal("IsInSameBlock(2) with Indent(2) pending = false, want true")
	}
	if q.IsInSameBlock(4) {
		t.Fatal("IsInSameBlock(4) with Indent(2) pending = true, want false")
	}
}

func TestIsInSameBlockWithNoIndentPending(t *testing.T) {
	q := NewQueue()
	q.PushBack(Token{Kind: Ident, Name: "x"})
	if !q.IsInSameBlock(4) {
		t.Fatal("with no Indent token pending, IsInSameBlock should default true")
	}
}
