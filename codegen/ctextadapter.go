// ctextadapter.go - textual-C reference backend.
package codegen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// cVarInfo remembers a declared variable's C-level name and type so
// DefineVar/UseVar can read and write its backing shadow variable.
type cVarInfo struct {
	cname string
	ty    Ty
}

// cBlock is one labeled block of C statements within a function. The
// entry block (index 0) has no label of its own; every later block is
// a goto target.
type cBlock struct {
	label string
	stmts []string
}

func (b *cBlock) append(stmt string) { b.stmts = append(b.stmts, stmt) }

// insertBeforeTerminator places stmt immediately before the block's
// final goto/if/return, or appends it if the block has no terminator
// yet. This is how Phi backfills a value assignment into a
// predecessor block that already branched away.
func (b *cBlock) insertBeforeTerminator(stmt string) {
	n := len(b.stmts)
	if n > 0 && isTerminator(b.stmts[n-1]) {
		b.stmts = append(b.stmts[:n-1], append([]string{stmt}, b.stmts[n-1:]...)...)
		return
	}
	b.stmts = append(b.stmts, stmt)
}

func isTerminator(stmt string) bool {
	return hasPrefix(stmt, "goto ") || hasPrefix(stmt, "if (") || hasPrefix(stmt, "return")
}

func hasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}

// cFunc is one function under construction: its signature, the
// shadow variables DeclareVar introduces, and its blocks.
type cFunc struct {
	name     string
	paramTys []Ty
	retTy    Ty
	vars     map[Var]cVarInfo
	nextVar  int
	nextVal  int
	blocks   []*cBlock
	cur      int
}

func (f *cFunc) block() *cBlock { return f.blocks[f.cur] }

func (f *cFunc) emit(stmt string) { f.block().append(stmt) }

func (f *cFunc) newValue() int {
	id := f.nextVal
	f.nextVal++
	return id
}

// CAdapter is the textual-C Builder: every operation appends a C
// statement to the current block; Finalize writes out a translation
// unit and Link hands it to an external `cc` invocation. Grounded on
// the original converter's raw LLVM FFI wrapper (llvm/interface.rs)
// generalized into "emit text, shell out to a real toolchain" rather
// than binding the C ABI directly.
type CAdapter struct {
	moduleName string
	funcs      []*cFunc
	cur        *cFunc
	srcPath    string

	// sessionID disambiguates the generated source/object pair of this
	// compilation from any other one running concurrently against the
	// same temp directory; grounded on the pack's use of
	// github.com/google/uuid for object/session naming.
	sessionID uuid.UUID
}

func NewCAdapter() *CAdapter { return &CAdapter{sessionID: uuid.New()} }

func (a *CAdapter) MakeModule(name string) { a.moduleName = name }

func (a *CAdapter) DropModule() { a.funcs = nil; a.cur = nil }

func (a *CAdapter) DeclareFun(name string, paramTys []Ty, retTy Ty) FunHandle {
	f := &cFunc{name: name, paramTys: paramTys, retTy: retTy, vars: make(map[Var]cVarInfo)}
	a.funcs = append(a.funcs, f)
	return FunHandle(len(a.funcs) - 1)
}

func (a *CAdapter) BeginFun(h FunHandle) {
	a.cur = a.funcs[h]
	a.cur.blocks = []*cBlock{{}}
	a.cur.cur = 0
}

func (a *CAdapter) Param(index int) Value {
	ty := TyI64
	if index < len(a.cur.paramTys) {
		ty = a.cur.paramTys[index]
	}
	id := a.cur.newValue()
	a.cur.emit(fmt.Sprintf("%s v%d = p%d;", ctype(ty), id, index))
	return Value(id)
}

func (a *CAdapter) DeclareVar(name string, ty Ty) Var {
	id := a.cur.nextVar
	a.cur.nextVar++
	v := Var(id)
	a.cur.vars[v] = cVarInfo{cname: fmt.Sprintf("var%d", id), ty: ty}
	a.cur.emit(fmt.Sprintf("%s var%d; /* %s */", ctype(ty), id, name))
	return v
}

func (a *CAdapter) DefineVar(v Var, val Value) {
	info := a.cur.vars[v]
	a.cur.emit(fmt.Sprintf("%s = v%d;", info.cname, val))
}

func (a *CAdapter) UseVar(v Var) Value {
	info := a.cur.vars[v]
	id := a.cur.newValue()
	a.cur.emit(fmt.Sprintf("%s v%d = %s;", ctype(info.ty), id, info.cname))
	return Value(id)
}

func (a *CAdapter) ConstInt(v int64) Value {
	id := a.cur.newValue()
	a.cur.emit(fmt.Sprintf("long v%d = %dLL;", id, v))
	return Value(id)
}

func (a *CAdapter) ConstReal(v float64) Value {
	id := a.cur.newValue()
	a.cur.emit(fmt.Sprintf("double v%d = %g;", id, v))
	return Value(id)
}

func (a *CAdapter) BinOp(kind BinOpKind, lhs, rhs Value) Value {
	id := a.cur.newValue()
	a.cur.emit(fmt.Sprintf("long v%d = v%d %s v%d;", id, lhs, binOpSymbol(kind), rhs))
	return Value(id)
}

func (a *CAdapter) Cmp(kind CmpKind, lhs, rhs Value) Value {
	id := a.cur.newValue()
	a.cur.emit(fmt.Sprintf("long v%d = (v%d %s v%d) ? 1 : 0;", id, lhs, cmpSymbol(kind), rhs))
	return Value(id)
}

func (a *CAdapter) Ret(v Value) {
	a.cur.emit(fmt.Sprintf("return v%d;", v))
}

func (a *CAdapter) AppendBlock(h FunHandle) BlockHandle {
	f := a.funcs[h]
	label := fmt.Sprintf("block%d", len(f.blocks))
	f.blocks = append(f.blocks, &cBlock{label: label})
	return BlockHandle(len(f.blocks) - 1)
}

func (a *CAdapter) Branch(to BlockHandle) {
	a.cur.emit(fmt.Sprintf("goto %s;", a.cur.blocks[to].label))
}

func (a *CAdapter) BranchCond(cond Value, then, els BlockHandle) {
	a.cur.emit(fmt.Sprintf("if (v%d) { goto %s; } else { goto %s; }", cond, a.cur.blocks[then].label, a.cur.blocks[els].label))
}

// Phi materializes as a function-scope shadow variable: every
// incoming (value, block) pair backfills an assignment into that
// predecessor block, right before its terminating branch.
func (a *CAdapter) Phi(ty Ty, incoming []PhiIncoming) Value {
	id := a.cur.newValue()
	phiVar := fmt.Sprintf("phi%d", id)
	a.cur.emit(fmt.Sprintf("%s %s;", ctype(ty), phiVar))
	for _, in := range incoming {
		pred := a.cur.blocks[in.Block]
		pred.insertBeforeTerminator(fmt.Sprintf("%s = v%d;", phiVar, in.Value))
	}
	a.cur.emit(fmt.Sprintf("%s v%d = %s;", ctype(ty), id, phiVar))
	return Value(id)
}

func (a *CAdapter) Load(addr Value) Value {
	id := a.cur.newValue()
	a.cur.emit(fmt.Sprintf("long v%d = *(long *)v%d;", id, addr))
	return Value(id)
}

func (a *CAdapter) Store(addr Value, v Value) {
	a.cur.emit(fmt.Sprintf("*(long *)v%d = v%d;", addr, v))
}

func (a *CAdapter) Alloca(ty Ty) Value {
	id := a.cur.newValue()
	a.cur.emit(fmt.Sprintf("static %s slot%d; long v%d = (long)&slot%d;", ctype(ty), id, id, id))
	return Value(id)
}

// Finalize renders every function into one C translation unit and
// writes it to a temp file; OutputPath names that source file, not
// yet a linked artifact (Link does that, since it's the one operation
// that needs a context.Context per spec's concurrency note).
func (a *CAdapter) Finalize() (FinalizeResult, error) {
	var buf bytes.Buffer
	buf.WriteString("#include <stdint.h>\n\n")
	for _, f := range a.funcs {
		writeCFunc(&buf, f)
	}

	dir, err := os.MkdirTemp("", "q5c-c-*")
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("codegen: create temp dir: %w", err)
	}
	path := filepath.Join(dir, a.safeModuleName()+"-"+a.sessionID.String()+".c")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return FinalizeResult{}, fmt.Errorf("codegen: write %s: %w", path, err)
	}
	a.srcPath = path
	return FinalizeResult{OutputPath: path}, nil
}

func (a *CAdapter) safeModuleName() string {
	if a.moduleName == "" {
		return "module"
	}
	return a.moduleName
}

// Link invokes the external C toolchain on the source Finalize wrote,
// producing an object file at outPath. This is the sole place the
// pipeline threads a context.Context, matching the pack's convention
// of treating external-process calls as cancelable boundaries.
func (a *CAdapter) Link(ctx context.Context, outPath string) error {
	if a.srcPath == "" {
		return fmt.Errorf("codegen: Link called before Finalize")
	}
	cc, err := exec.LookPath("cc")
	if err != nil {
		return fmt.Errorf("codegen: no C toolchain found: %w", err)
	}
	cmd := exec.CommandContext(ctx, cc, "-c", "-o", outPath, a.srcPath)
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("codegen: cc failed: %w\n%s", err, out)
	}
	return nil
}

func writeCFunc(buf *bytes.Buffer, f *cFunc) {
	params := make([]string, len(f.paramTys))
	for i, ty := range f.paramTys {
		params[i] = fmt.Sprintf("%s p%d", ctype(ty), i)
	}
	paramList := "void"
	if len(params) > 0 {
		paramList = joinComma(params)
	}
	fmt.Fprintf(buf, "%s %s(%s) {\n", ctype(f.retTy), f.name, paramList)
	for bi, block := range f.blocks {
		if bi > 0 {
			fmt.Fprintf(buf, "%s:\n", block.label)
		}
		for _, stmt := range block.stmts {
			fmt.Fprintf(buf, "  %s\n", stmt)
		}
	}
	buf.WriteString("}\n\n")
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

func ctype(ty Ty) string {
	if ty == TyF64 {
		return "double"
	}
	return "long"
}

func binOpSymbol(kind BinOpKind) string {
	switch kind {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	}
	return "?"
}

func cmpSymbol(kind CmpKind) string {
	switch kind {
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case Eq:
		return "=="
	case Ne:
		return "!="
	}
	return "?"
}
