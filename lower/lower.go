// Package lower implements the lowering visitor: it walks a parsed
// ast.Ast and drives an abstract codegen.Builder, materializing
// Val/Mut locals as stack slots per spec §9's resolution of the
// "insert_allocations" open question and fully lowering every
// Binary/Cmp kind the grammar accepts (the other open question
// resolution). Per-function emission is tracked by an explicit state
// machine grounded on the teacher's CompilationPipeline
// (compilation_pipeline.go's AdvanceTo/ValidateStage/Checkpoint).
package lower

import (
	"fmt"
	"os"

	"github.com/monsieurbadia/q5c/ast"
	"github.com/monsieurbadia/q5c/codegen"
	"github.com/monsieurbadia/q5c/errors"
	"github.com/monsieurbadia/q5c/internal/engine"
	"github.com/monsieurbadia/q5c/scope"
	"github.com/monsieurbadia/q5c/span"
)

// VerboseMode gates the ambient stage-transition log lines, the one
// package-level mutable state this module needs (spec §9 "Global
// state"), matching the teacher's own VerboseMode.
var VerboseMode bool

// funStage is the per-function emission state machine of spec §4.6:
// Created -> SignatureDeclared -> EntryOpen -> BodyEmitting ->
// Finalized, strictly linear.
type funStage int

const (
	stageCreated funStage = iota
	stageSignatureDeclared
	stageEntryOpen
	stageBodyEmitting
	stageFinalized
)

func (s funStage) String() string {
	switch s {
	case stageCreated:
		return "Created"
	case stageSignatureDeclared:
		return "SignatureDeclared"
	case stageEntryOpen:
		return "EntryOpen"
	case stageBodyEmitting:
		return "BodyEmitting"
	case stageFinalized:
		return "Finalized"
	default:
		return fmt.Sprintf("funStage(%d)", int(s))
	}
}

// funEmitter tracks one function's emission progress. Re-entrance
// (an out-of-order AdvanceTo call) is a bug in the lowering visitor
// itself, not a recoverable compile error, so it panics with a
// stage-history dump exactly like the teacher's pipeline does.
type funEmitter struct {
	name    string
	stage   funStage
	history []funStage
}

func newFunEmitter(name string) *funEmitter {
	return &funEmitter{name: name, stage: stageCreated, history: []funStage{stageCreated}}
}

func (e *funEmitter) advanceTo(next funStage) {
	valid := false
	switch e.stage {
	case stageCreated:
		valid = next == stageSignatureDeclared
	case stageSignatureDeclared:
		valid = next == stageEntryOpen
	case stageEntryOpen:
		valid = next == stageBodyEmitting
	case stageBodyEmitting:
		valid = next == stageFinalized
	case stageFinalized:
		valid = false
	}
	if !valid {
		fmt.Fprintf(os.Stderr, "ERROR: invalid function-emission transition in %s: %s -> %s\n", e.name, e.stage, next)
		for i, s := range e.history {
			fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, s)
		}
		panic(fmt.Sprintf("lower: invalid transition %s -> %s in %s", e.stage, next, e.name))
	}
	e.stage = next
	e.history = append(e.history, next)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "LOWER: %s advanced to %s\n", e.name, next)
	}
}

// localSlot pairs a declared symbolic Var with the stack address
// (from Alloca) that materializes it, per the Open Question #2
// resolution: declare_var for bookkeeping, alloca+store+load for the
// actual memory.
type localSlot struct {
	v    codegen.Var
	addr codegen.Value
}

// Lowering is the visitor state threaded through one compilation:
// the back-end it emits into, the lexical scope stack it consults,
// and the error collector diagnostics accumulate into.
type Lowering struct {
	b      codegen.Builder
	scopes *scope.Stack
	errs   *errors.Collector
	file   string

	locals map[string]localSlot
}

func New(b codegen.Builder, errs *errors.Collector, file string) *Lowering {
	return &Lowering{b: b, scopes: scope.NewStack(), errs: errs, file: file}
}

// Lower walks every top-level statement of tree, opening moduleName
// on the builder first. Use-declarations and empty statements have
// no lowering surface (they're a parse-time-only concern); anything
// else that isn't a Fun is surfaced as ParseUnimplemented.
func (lw *Lowering) Lower(tree *ast.Ast, moduleName string) {
	lw.b.MakeModule(moduleName)
	lw.scopes.ScopeEnter()
	defer lw.scopes.ScopeExit()

	for _, stmt := range tree.Nodes {
		switch stmt.Kind {
		case ast.StmtFun:
			lw.lowerTopFun(stmt.Fun)
		case ast.StmtEmpty, ast.StmtUse:
		default:
			lw.errs.Add(errors.ParseUnimplementedError(lw.locFor(stmt.Span), stmtKindName(stmt.Kind)))
		}
	}
}

// lowerTopFun lowers one function, converting any panic raised by an
// invalid emission-state transition into a CodegenError so the
// pipeline can move on to the next top-level declaration rather than
// aborting the whole module (spec §7's propagation rule).
func (lw *Lowering) lowerTopFun(fun *ast.Fun) {
	defer func() {
		if r := recover(); r != nil {
			lw.errs.Add(errors.CodegenFailure(lw.locFor(fun.Span), fun.Name, fmt.Sprintf("%v", r)))
		}
	}()
	lw.lowerFun(fun)
}

func (lw *Lowering) lowerFun(fun *ast.Fun) {
	paramTys := make([]codegen.Ty, len(fun.Args))
	for i := range fun.Args {
		paramTys[i] = codegen.TyI64
	}

	if err := lw.scopes.AddFunction(fun); err != nil {
		lw.errs.Add(errors.ScopeDuplicateError(lw.locFor(fun.Span), fun.Name))
		return
	}

	handle := lw.b.DeclareFun(fun.Name, paramTys, codegen.TyI64)
	em := newFunEmitter(fun.Name)
	em.advanceTo(stageSignatureDeclared)

	lw.b.BeginFun(handle)
	em.advanceTo(stageEntryOpen)

	lw.scopes.ScopeEnter()
	defer lw.scopes.ScopeExit()

	prevLocals := lw.locals
	lw.locals = make(map[string]localSlot, len(fun.Args)+1)
	defer func() { lw.locals = prevLocals }()

	for i, arg := range fun.Args {
		slot := lw.declareLocal(arg.Name)
		pv := lw.b.Param(i)
		lw.b.DefineVar(slot.v, pv)
		lw.b.Store(slot.addr, pv)
	}

	retSlot := lw.declareLocal("return")
	zero := lw.b.ConstInt(0)
	lw.b.DefineVar(retSlot.v, zero)
	lw.b.Store(retSlot.addr, zero)

	em.advanceTo(stageBodyEmitting)

	if fun.Block != nil {
		lw.lowerFunBody(fun.Block.Stmts, retSlot.addr)
	}

	lw.b.Ret(lw.b.Load(retSlot.addr))
	em.advanceTo(stageFinalized)
}

// lowerFunBody lowers statements in order; a Ret statement assigns
// the return slot and stops (subsequent statements, if any, are
// unreachable in this straight-line subset of the grammar — the
// function's fall-through path already reads back retAddr in
// lowerFun).
func (lw *Lowering) lowerFunBody(stmts []*ast.Stmt, retAddr codegen.Value) {
	for _, stmt := range stmts {
		if stmt.Kind == ast.StmtRet {
			var v codegen.Value
			if stmt.Ret != nil {
				v = lw.lowerExpr(stmt.Ret)
			} else {
				v = lw.b.ConstInt(0)
			}
			lw.b.Store(retAddr, v)
			return
		}
		lw.lowerStmt(stmt)
	}
}

func (lw *Lowering) lowerStmt(s *ast.Stmt) {
	switch s.Kind {
	case ast.StmtExpr:
		lw.lowerExpr(s.Expr)
	case ast.StmtVal, ast.StmtMut:
		lw.lowerLocal(s.Local)
	case ast.StmtEmpty:
	default:
		lw.errs.Add(errors.ParseUnimplementedError(lw.locFor(s.Span), stmtKindName(s.Kind)))
	}
}

func (lw *Lowering) lowerLocal(local *ast.Local) {
	value := lw.lowerExpr(local.Value)
	if err := lw.scopes.AddVariable(local); err != nil {
		lw.errs.Add(errors.ScopeDuplicateError(lw.locFor(local.Span), local.Name))
		return
	}
	slot := lw.declareLocal(local.Name)
	lw.b.DefineVar(slot.v, value)
	lw.b.Store(slot.addr, value)
}

func (lw *Lowering) declareLocal(name string) localSlot {
	v := lw.b.DeclareVar(name, codegen.TyI64)
	addr := lw.b.Alloca(codegen.TyI64)
	slot := localSlot{v: v, addr: addr}
	lw.locals[name] = slot
	return slot
}

func (lw *Lowering) lowerExpr(e *ast.Expr) codegen.Value {
	switch e.Kind {
	case ast.ExprLit:
		return lw.lowerLit(e.Lit)
	case ast.ExprIdent:
		return lw.lowerIdent(e)
	case ast.ExprBinOp:
		return lw.lowerBinOp(e)
	case ast.ExprUnOp:
		return lw.lowerUnOp(e)
	default:
		lw.errs.Add(errors.ParseUnimplementedError(lw.locFor(e.Span), exprKindName(e.Kind)))
		return lw.b.ConstInt(0)
	}
}

func (lw *Lowering) lowerLit(l ast.Lit) codegen.Value {
	switch l.Kind {
	case ast.LitInt:
		return lw.b.ConstInt(l.Int)
	case ast.LitReal:
		return lw.b.ConstReal(l.Real)
	case ast.LitBool:
		if l.Bool {
			return lw.b.ConstInt(1)
		}
		return lw.b.ConstInt(0)
	case ast.LitChar:
		return lw.b.ConstInt(int64(l.Char))
	case ast.LitStr:
		lw.errs.Add(errors.ParseUnimplementedError(errors.Location{File: lw.file}, "string literals"))
		return lw.b.ConstInt(0)
	default:
		return lw.b.ConstInt(0)
	}
}

func (lw *Lowering) lowerIdent(e *ast.Expr) codegen.Value {
	slot, ok := lw.locals[e.Ident]
	if !ok {
		err := errors.ParseExpectedError(lw.locFor(e.Span), "a declared variable", e.Ident)
		if names := engine.FindSimilarIdentifiers(e.Ident, lw.localNames(), 1); len(names) > 0 {
			err = err.WithSuggestion(fmt.Sprintf("did you mean %q?", names[0]))
		}
		lw.errs.Add(err)
		return lw.b.ConstInt(0)
	}
	return lw.b.Load(slot.addr)
}

// localNames lists the names currently materialized as stack slots in
// the enclosing function, used to offer a "did you mean" suggestion
// when an identifier isn't found.
func (lw *Lowering) localNames() []string {
	names := make([]string, 0, len(lw.locals))
	for name := range lw.locals {
		names = append(names, name)
	}
	return names
}

// lowerBinOp fully lowers every BinOpKind the grammar accepts (spec
// §9 Open Question decision #3): Add/Sub/Mul/Div/Mod go through
// BinOp, the six ordered comparisons go through Cmp.
func (lw *Lowering) lowerBinOp(e *ast.Expr) codegen.Value {
	lhs := lw.lowerExpr(e.BinLhs)
	rhs := lw.lowerExpr(e.BinRhs)
	switch e.BinOp {
	case ast.Add:
		return lw.b.BinOp(codegen.Add, lhs, rhs)
	case ast.Sub:
		return lw.b.BinOp(codegen.Sub, lhs, rhs)
	case ast.Mul:
		return lw.b.BinOp(codegen.Mul, lhs, rhs)
	case ast.Div:
		return lw.b.BinOp(codegen.Div, lhs, rhs)
	case ast.Mod:
		return lw.b.BinOp(codegen.Mod, lhs, rhs)
	case ast.Lt:
		return lw.b.Cmp(codegen.Lt, lhs, rhs)
	case ast.Le:
		return lw.b.Cmp(codegen.Le, lhs, rhs)
	case ast.Gt:
		return lw.b.Cmp(codegen.Gt, lhs, rhs)
	case ast.Ge:
		return lw.b.Cmp(codegen.Ge, lhs, rhs)
	case ast.Eq:
		return lw.b.Cmp(codegen.Eq, lhs, rhs)
	case ast.Ne:
		return lw.b.Cmp(codegen.Ne, lhs, rhs)
	default:
		lw.errs.Add(errors.ParseUnimplementedError(lw.locFor(e.Span), "this binary operator"))
		return lw.b.ConstInt(0)
	}
}

// lowerUnOp has no direct builder primitive, so it's expressed in
// terms of BinOp/Cmp: negation is 0 - rhs, logical not is rhs == 0.
func (lw *Lowering) lowerUnOp(e *ast.Expr) codegen.Value {
	rhs := lw.lowerExpr(e.UnRhs)
	switch e.UnOperand {
	case ast.Neg:
		return lw.b.BinOp(codegen.Sub, lw.b.ConstInt(0), rhs)
	case ast.Not:
		return lw.b.Cmp(codegen.Eq, rhs, lw.b.ConstInt(0))
	default:
		return rhs
	}
}

func (lw *Lowering) locFor(sp span.Span) errors.Location {
	return errors.Location{File: lw.file, Span: sp}
}

func stmtKindName(k ast.StmtKind) string {
	switch k {
	case ast.StmtCapsule:
		return "a capsule declaration"
	case ast.StmtStruct:
		return "a struct declaration"
	case ast.StmtIfBlock:
		return "an if statement"
	default:
		return fmt.Sprintf("statement kind %d", int(k))
	}
}

func exprKindName(k ast.ExprKind) string {
	switch k {
	case ast.ExprClosure:
		return "a closure expression"
	case ast.ExprLoop:
		return "a loop expression"
	case ast.ExprArray:
		return "an array literal"
	case ast.ExprCall:
		return "a call expression"
	case ast.ExprHash:
		return "a hash literal"
	case ast.ExprIfElse:
		return "an if/else expression"
	case ast.ExprIndex:
		return "an index expression"
	case ast.ExprMemberAccess:
		return "a member access expression"
	default:
		return fmt.Sprintf("expression kind %d", int(k))
	}
}
