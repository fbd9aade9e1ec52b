package lower

import (
	"testing"

	"github.com/monsieurbadia/q5c/ast"
	"github.com/monsieurbadia/q5c/codegen"
	"github.com/monsieurbadia/q5c/errors"
)

// fakeCtx is one call's execution state: the linear tape of computed
// values, the backing store Alloca/Load/Store address into, and the
// arguments Param reads from.
type fakeCtx struct {
	vals   []int64
	mem    map[int64]int64
	params []int64
}

type fakeFunc struct {
	name   string
	nargs  int
	ops    []func(*fakeCtx) int64
	retIdx int
}

// fakeBuilder is a minimal straight-line interpreter standing in for
// codegen.Builder: every op appends a closure to the current
// function's tape; Finalize compiles each tape into a CompiledFunc
// that replays it. It only needs to support the branch-free subset
// lowering actually emits for these tests.
type fakeBuilder struct {
	list    []*fakeFunc
	byName  map[string]*fakeFunc
	cur     *fakeFunc
	nextVar int
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{byName: make(map[string]*fakeFunc)}
}

func (b *fakeBuilder) MakeModule(name string) {}
func (b *fakeBuilder) DropModule()            {}

func (b *fakeBuilder) DeclareFun(name string, paramTys []codegen.Ty, retTy codegen.Ty) codegen.FunHandle {
	f := &fakeFunc{name: name, nargs: len(paramTys)}
	b.list = append(b.list, f)
	b.byName[name] = f
	return codegen.FunHandle(len(b.list) - 1)
}

func (b *fakeBuilder) BeginFun(h codegen.FunHandle) { b.cur = b.list[h] }

func (b *fakeBuilder) Param(index int) codegen.Value {
	return b.push(func(ctx *fakeCtx) int64 { return ctx.params[index] })
}

func (b *fakeBuilder) DeclareVar(name string, ty codegen.Ty) codegen.Var {
	b.nextVar++
	return codegen.Var(b.nextVar)
}

func (b *fakeBuilder) DefineVar(v codegen.Var, val codegen.Value) {}

func (b *fakeBuilder) UseVar(v codegen.Var) codegen.Value {
	return b.push(func(ctx *fakeCtx) int64 { return 0 })
}

func (b *fakeBuilder) ConstInt(v int64) codegen.Value {
	return b.push(func(ctx *fakeCtx) int64 { return v })
}

func (b *fakeBuilder) ConstReal(v float64) codegen.Value {
	return b.push(func(ctx *fakeCtx) int64 { return int64(v) })
}

func (b *fakeBuilder) BinOp(kind codegen.BinOpKind, lhs, rhs codegen.Value) codegen.Value {
	li, ri := int(lhs), int(rhs)
	return b.push(func(ctx *fakeCtx) int64 {
		l, r := ctx.vals[li], ctx.vals[ri]
		switch kind {
		case codegen.Add:
			return l + r
		case codegen.Sub:
			return l - r
		case codegen.Mul:
			return l * r
		case codegen.Div:
			return l / r
		case codegen.Mod:
			return l % r
		default:
			panic("fakeBuilder: unknown BinOpKind")
		}
	})
}

func (b *fakeBuilder) Cmp(kind codegen.CmpKind, lhs, rhs codegen.Value) codegen.Value {
	li, ri := int(lhs), int(rhs)
	return b.push(func(ctx *fakeCtx) int64 {
		l, r := ctx.vals[li], ctx.vals[ri]
		var result bool
		switch kind {
		case codegen.Lt:
			result = l < r
		case codegen.Le:
			result = l <= r
		case codegen.Gt:
			result = l > r
		case codegen.Ge:
			result = l >= r
		case codegen.Eq:
			result = l == r
		case codegen.Ne:
			result = l != r
		default:
			panic("fakeBuilder: unknown CmpKind")
		}
		if result {
			return 1
		}
		return 0
	})
}

func (b *fakeBuilder) Ret(v codegen.Value) { b.cur.retIdx = int(v) }

func (b *fakeBuilder) AppendBlock(h codegen.FunHandle) codegen.BlockHandle { return 0 }
func (b *fakeBuilder) Branch(to codegen.BlockHandle)                      {}
func (b *fakeBuilder) BranchCond(cond codegen.Value, then, els codegen.BlockHandle) {}
func (b *fakeBuilder) Phi(ty codegen.Ty, incoming []codegen.PhiIncoming) codegen.Value {
	return b.push(func(ctx *fakeCtx) int64 { return 0 })
}

func (b *fakeBuilder) Load(addr codegen.Value) codegen.Value {
	ai := int(addr)
	return b.push(func(ctx *fakeCtx) int64 { return ctx.mem[ctx.vals[ai]] })
}

func (b *fakeBuilder) Store(addr codegen.Value, v codegen.Value) {
	ai, vi := int(addr), int(v)
	b.push(func(ctx *fakeCtx) int64 {
		ctx.mem[ctx.vals[ai]] = ctx.vals[vi]
		return 0
	})
}

func (b *fakeBuilder) Alloca(ty codegen.Ty) codegen.Value {
	idx := len(b.cur.ops)
	b.cur.ops = append(b.cur.ops, func(ctx *fakeCtx) int64 {
		id := int64(idx)
		if _, ok := ctx.mem[id]; !ok {
			ctx.mem[id] = 0
		}
		return id
	})
	return codegen.Value(idx)
}

func (b *fakeBuilder) push(fn func(*fakeCtx) int64) codegen.Value {
	idx := len(b.cur.ops)
	b.cur.ops = append(b.cur.ops, fn)
	return codegen.Value(idx)
}

func (b *fakeBuilder) Finalize() (codegen.FinalizeResult, error) {
	fns := make(map[string]codegen.CompiledFunc, len(b.list))
	for _, f := range b.list {
		f := f
		fns[f.name] = func(args ...int64) int64 {
			ctx := &fakeCtx{vals: make([]int64, len(f.ops)), mem: map[int64]int64{}, params: args}
			for i, op := range f.ops {
				ctx.vals[i] = op(ctx)
			}
			return ctx.vals[f.retIdx]
		}
	}
	return codegen.FinalizeResult{Functions: fns}, nil
}

// --- test fixtures ---------------------------------------------------

func addFunTree() *ast.Ast {
	body := ast.NewBlock([]*ast.Stmt{
		ast.MakeRetStmt(ast.MakeBinOpExpr(ast.MakeIdentExpr("a"), ast.Add, ast.MakeIdentExpr("b"))),
	})
	stmt := ast.MakeFunStmt("add", []ast.FunArg{
		{Name: "a", Ty: ast.NameRefTy("Int")},
		{Name: "b", Ty: ast.NameRefTy("Int")},
	}, ast.NameRefTy("Int"), body)
	return ast.New([]*ast.Stmt{stmt})
}

func TestLowerAddFunctionWithParams(t *testing.T) {
	b := newFakeBuilder()
	errs := errors.NewCollector()
	lw := New(b, errs, "test.q5")

	lw.Lower(addFunTree(), "test")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %s", errs.Report(false))
	}

	result, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	add, ok := result.Functions["add"]
	if !ok {
		t.Fatal("no compiled function named add")
	}
	if got := add(2, 3); got != 5 {
		t.Errorf("add(2, 3) = %d, want 5", got)
	}
	if got := add(-10, 4); got != -6 {
		t.Errorf("add(-10, 4) = %d, want -6", got)
	}
}

func binOpFunTree(name string, op ast.BinOpKind) *ast.Ast {
	body := ast.NewBlock([]*ast.Stmt{
		ast.MakeRetStmt(ast.MakeBinOpExpr(ast.MakeIdentExpr("a"), op, ast.MakeIdentExpr("b"))),
	})
	stmt := ast.MakeFunStmt(name, []ast.FunArg{
		{Name: "a", Ty: ast.NameRefTy("Int")},
		{Name: "b", Ty: ast.NameRefTy("Int")},
	}, ast.NameRefTy("Int"), body)
	return ast.New([]*ast.Stmt{stmt})
}

func TestLowerAllBinOpKinds(t *testing.T) {
	cases := []struct {
		name string
		op   ast.BinOpKind
		a, b int64
		want int64
	}{
		{"add", ast.Add, 7, 3, 10},
		{"sub", ast.Sub, 7, 3, 4},
		{"mul", ast.Mul, 7, 3, 21},
		{"div", ast.Div, 7, 3, 2},
		{"mod", ast.Mod, 7, 3, 1},
		{"lt", ast.Lt, 3, 7, 1},
		{"le", ast.Le, 7, 7, 1},
		{"gt", ast.Gt, 7, 3, 1},
		{"ge", ast.Ge, 7, 7, 1},
		{"eq", ast.Eq, 7, 7, 1},
		{"ne", ast.Ne, 7, 3, 1},
	}

	for _, tc := range cases {
		b := newFakeBuilder()
		errs := errors.NewCollector()
		lw := New(b, errs, "test.q5")
		lw.Lower(binOpFunTree(tc.name, tc.op), "test")
		if errs.HasErrors() {
			t.Fatalf("%s: unexpected errors: %s", tc.name, errs.Report(false))
		}
		result, err := b.Finalize()
		if err != nil {
			t.Fatalf("%s: Finalize: %v", tc.name, err)
		}
		fn := result.Functions[tc.name]
		if got := fn(tc.a, tc.b); got != tc.want {
			t.Errorf("%s(%d, %d) = %d, want %d", tc.name, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestLowerLocalShadowsAcrossFunctions(t *testing.T) {
	// Two distinct functions may each declare a local named x without
	// colliding: scopes.ScopeEnter/ScopeExit in lowerFun isolates them.
	mkFun := func(name string, lit int64) *ast.Stmt {
		body := ast.NewBlock([]*ast.Stmt{
			ast.MakeValStmt("x", ast.NameRefTy("Int"), ast.MakeLitIntExpr(lit)),
			ast.MakeRetStmt(ast.MakeIdentExpr("x")),
		})
		return ast.MakeFunStmt(name, nil, ast.NameRefTy("Int"), body)
	}
	tree := ast.New([]*ast.Stmt{mkFun("f", 1), mkFun("g", 2)})

	b := newFakeBuilder()
	errs := errors.NewCollector()
	lw := New(b, errs, "test.q5")
	lw.Lower(tree, "test")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %s", errs.Report(false))
	}

	result, _ := b.Finalize()
	if got := result.Functions["f"](); got != 1 {
		t.Errorf("f() = %d, want 1", got)
	}
	if got := result.Functions["g"](); got != 2 {
		t.Errorf("g() = %d, want 2", got)
	}
}

func TestLowerDuplicateLocalInSameFunctionIsReported(t *testing.T) {
	body := ast.NewBlock([]*ast.Stmt{
		ast.MakeValStmt("x", ast.NameRefTy("Int"), ast.MakeLitIntExpr(1)),
		ast.MakeValStmt("x", ast.NameRefTy("Int"), ast.MakeLitIntExpr(2)),
		ast.MakeRetStmt(ast.MakeIdentExpr("x")),
	})
	tree := ast.New([]*ast.Stmt{ast.MakeFunStmt("f", nil, ast.NameRefTy("Int"), body)})

	b := newFakeBuilder()
	errs := errors.NewCollector()
	lw := New(b, errs, "test.q5")
	lw.Lower(tree, "test")

	if !errs.HasErrors() {
		t.Fatal("expected a scope-duplicate error")
	}
	if got := errs.Errors()[0].Kind; got != errors.ScopeDuplicate {
		t.Errorf("Kind = %v, want ScopeDuplicate", got)
	}
}

func TestLowerDuplicateTopLevelFunctionIsReported(t *testing.T) {
	mkFun := func() *ast.Stmt {
		body := ast.NewBlock([]*ast.Stmt{ast.MakeRetStmt(ast.MakeLitIntExpr(0))})
		return ast.MakeFunStmt("dup", nil, ast.NameRefTy("Int"), body)
	}
	tree := ast.New([]*ast.Stmt{mkFun(), mkFun()})

	b := newFakeBuilder()
	errs := errors.NewCollector()
	lw := New(b, errs, "test.q5")
	lw.Lower(tree, "test")

	if !errs.HasErrors() {
		t.Fatal("expected a scope-duplicate error for the second 'dup'")
	}
}

func TestLowerUnsupportedExpressionReportsUnimplemented(t *testing.T) {
	body := ast.NewBlock([]*ast.Stmt{
		ast.MakeRetStmt(ast.MakeCallExpr(ast.MakeIdentExpr("f"), nil)),
	})
	tree := ast.New([]*ast.Stmt{ast.MakeFunStmt("f", nil, ast.NameRefTy("Int"), body)})

	b := newFakeBuilder()
	errs := errors.NewCollector()
	lw := New(b, errs, "test.q5")
	lw.Lower(tree, "test")

	if !errs.HasErrors() {
		t.Fatal("expected a parse-unimplemented error for call expressions")
	}
	if got := errs.Errors()[0].Kind; got != errors.ParseUnimplemented {
		t.Errorf("Kind = %v, want ParseUnimplemented", got)
	}
}
