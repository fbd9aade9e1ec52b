package parser

import (
	"testing"

	"github.com/monsieurbadia/q5c/ast"
	"github.com/monsieurbadia/q5c/lexer"
)

type collectingTreeSink struct {
	tree   *ast.Ast
	errors []string
}

func (s *collectingTreeSink) Ast(a *ast.Ast)       { s.tree = a }
func (s *collectingTreeSink) ParseError(msg string) { s.errors = append(s.errors, msg) }

func parseSource(src string) (*ast.Ast, *collectingTreeSink) {
	sink := &collectingTreeSink{}
	builder := New(sink)
	tz := lexer.New(builder)
	tz.Feed(src)
	tz.End()
	return sink.tree, sink
}

func TestParseValStmt(t *testing.T) {
	tree, sink := parseSource("val x: Int = 1")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	if len(tree.Nodes) != 1 {
		t.Fatalf("Nodes = %d, want 1", len(tree.Nodes))
	}
	stmt := tree.Nodes[0]
	if stmt.Kind != ast.StmtVal {
		t.Fatalf("Kind = %v, want StmtVal", stmt.Kind)
	}
	if stmt.Local.Name != "x" || !stmt.Local.Immutable {
		t.Fatalf("Local = %+v", stmt.Local)
	}
	if stmt.Local.Value.Lit.Int != 1 {
		t.Fatalf("value = %+v", stmt.Local.Value)
	}
}

func TestParseBinOpPrecedence(t *testing.T) {
	tree, sink := parseSource("val x: Int = 1 + 2 * 3")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	value := tree.Nodes[0].Local.Value
	if value.Kind != ast.ExprBinOp || value.BinOp != ast.Add {
		t.Fatalf("top-level op = %+v, want Add at the root (lower precedence binds looser)", value)
	}
	rhs := value.BinRhs
	if rhs.Kind != ast.ExprBinOp || rhs.BinOp != ast.Mul {
		t.Fatalf("rhs = %+v, want a Mul subtree", rhs)
	}
}

func TestParseFunStmt(t *testing.T) {
	tree, sink := parseSource("fun add: Int = (a: Int, b: Int) { ret a + b }")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	stmt := tree.Nodes[0]
	if stmt.Kind != ast.StmtFun {
		t.Fatalf("Kind = %v, want StmtFun", stmt.Kind)
	}
	fn := stmt.Fun
	if fn.Name != "add" || len(fn.Args) != 2 {
		t.Fatalf("Fun = %+v", fn)
	}
	if len(fn.Block.Stmts) != 1 || fn.Block.Stmts[0].Kind != ast.StmtRet {
		t.Fatalf("Block = %+v", fn.Block)
	}
}

func TestParseCallExpr(t *testing.T) {
	tree, sink := parseSource("add(1, 2)")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	expr := tree.Nodes[0].Expr
	if expr.Kind != ast.ExprCall {
		t.Fatalf("Kind = %v, want ExprCall", expr.Kind)
	}
	if expr.CallCallee.Ident != "add" || len(expr.CallArgs) != 2 {
		t.Fatalf("Call = %+v", expr)
	}
}

func TestParseIndexExprFieldOrder(t *testing.T) {
	tree, sink := parseSource("a[0]")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	expr := tree.Nodes[0].Expr
	if expr.Kind != ast.ExprIndex {
		t.Fatalf("Kind = %v, want ExprIndex", expr.Kind)
	}
	if expr.IndexData.Ident != "a" {
		t.Fatalf("IndexData = %+v, want the array operand 'a'", expr.IndexData)
	}
	if expr.IndexIndex.Lit.Int != 0 {
		t.Fatalf("IndexIndex = %+v, want the subscript 0", expr.IndexIndex)
	}
}

func TestParseArrayAndHashLiterals(t *testing.T) {
	tree, sink := parseSource("[1, 2, 3]")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	arr := tree.Nodes[0].Expr
	if arr.Kind != ast.ExprArray || len(arr.Array) != 3 {
		t.Fatalf("Array = %+v", arr)
	}

	tree, sink = parseSource(`{"a": 1, "b": 2}`)
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	h := tree.Nodes[0].Expr
	if h.Kind != ast.ExprHash || len(h.Hash) != 2 {
		t.Fatalf("Hash = %+v", h)
	}
}

func TestParseUnaryAndGrouping(t *testing.T) {
	tree, sink := parseSource("val x: Int = -(1 + 2)")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	v := tree.Nodes[0].Local.Value
	if v.Kind != ast.ExprUnOp || v.UnOperand != ast.Neg {
		t.Fatalf("value = %+v, want a unary negation", v)
	}
	if v.UnRhs.Kind != ast.ExprBinOp {
		t.Fatalf("operand = %+v, want a grouped BinOp", v.UnRhs)
	}
}

func TestParseLoopWhile(t *testing.T) {
	tree, sink := parseSource("while true { ret 1 }")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	e := tree.Nodes[0].Expr
	if e.Kind != ast.ExprLoop || e.Loop.Kind != ast.LoopWhile {
		t.Fatalf("expr = %+v, want a LoopWhile", e)
	}
}

func TestParseErrorRecoveryContinuesToNextStatement(t *testing.T) {
	tree, sink := parseSource("val : Int = 1\nval y: Int = 2")
	if len(sink.errors) == 0 {
		t.Fatal("expected a parse error on the malformed first statement")
	}
	var foundY bool
	for _, n := range tree.Nodes {
		if n.Kind == ast.StmtVal && n.Local.Name == "y" {
			foundY = true
		}
	}
	if !foundY {
		t.Fatal("parser should recover and still parse the second statement")
	}
}

// TestParseErrorRecoverySameLineSemicolon is spec §8 concrete scenario
// 6: a semicolon-separated error on one line, with no newline to fall
// back to for recovery.
func TestParseErrorRecoverySameLineSemicolon(t *testing.T) {
	tree, sink := parseSource("val x: Int = ; val y: Int = 1")
	if len(sink.errors) == 0 {
		t.Fatal("expected a parse error on the empty initializer")
	}
	var foundY bool
	for _, n := range tree.Nodes {
		if n.Kind == ast.StmtVal && n.Local.Name == "y" {
			foundY = true
		}
	}
	if !foundY {
		t.Fatal("y should still be bound after recovering at the semicolon")
	}
}

// TestParseUseStmtDoesNotSwallowFollowingDecls guards against a use
// statement's parse consuming every subsequent top-level declaration
// as its own nested body.
func TestParseUseStmtDoesNotSwallowFollowingDecls(t *testing.T) {
	tree, sink := parseSource("use @std::io(foo);\nfun main: Int = () { ret 0 }")
	if len(sink.errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", sink.errors)
	}
	if len(tree.Nodes) != 2 {
		t.Fatalf("Nodes = %d, want 2 (one Use, one Fun)", len(tree.Nodes))
	}
	if tree.Nodes[0].Kind != ast.StmtUse {
		t.Fatalf("Nodes[0].Kind = %v, want StmtUse", tree.Nodes[0].Kind)
	}
	if tree.Nodes[1].Kind != ast.StmtFun || tree.Nodes[1].Fun.Name != "main" {
		t.Fatalf("Nodes[1] = %+v, want the Fun statement for main", tree.Nodes[1])
	}
}
