// Package ast defines the parsed tree: closed tagged unions for
// statements, expressions, types, literals, and loop forms. Every
// "kind" here is a Kind constant switched on by its consumers, never
// an interface hierarchy — see token.Kind for the same discipline one
// layer down.
package ast

import (
	"strconv"
	"strings"

	"github.com/monsieurbadia/q5c/span"
	"github.com/monsieurbadia/q5c/token"
)

// Ast is the parsed program: an ordered sequence of top-level
// statements.
type Ast struct {
	Nodes []*Stmt
}

func New(nodes []*Stmt) *Ast { return &Ast{Nodes: nodes} }

func (a *Ast) Add(node *Stmt) { a.Nodes = append(a.Nodes, node) }

func (a *Ast) Text() string {
	parts := make([]string, len(a.Nodes))
	for i, n := range a.Nodes {
		parts[i] = n.Text()
	}
	return strings.Join(parts, "\n")
}

// BinOpKind covers the arithmetic and comparison operators of
// token.BinaryKind (token.EqEq becomes Eq; the assignment, logical,
// bitwise and dot kinds have no counterpart); the AST keeps its own
// enum so lowering never has to reach back into the token package's
// vocabulary.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mul
	Div
	Mod
	Lt
	Gt
	Le
	Ge
	Eq
	Ne
)

func BinOpKindFromToken(tok token.Token) (BinOpKind, bool) {
	if tok.Kind != token.BinaryOp {
		return 0, false
	}
	switch tok.Binary {
	case token.Add:
		return Add, true
	case token.Sub:
		return Sub, true
	case token.Mul:
		return Mul, true
	case token.Div:
		return Div, true
	case token.Mod:
		return Mod, true
	case token.Lt:
		return Lt, true
	case token.Le:
		return Le, true
	case token.Gt:
		return Gt, true
	case token.Ge:
		return Ge, true
	case token.EqEq:
		return Eq, true
	case token.Ne:
		return Ne, true
	}
	return 0, false
}

func (k BinOpKind) Text() string {
	switch k {
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

// UnOpKind enumerates the AST's unary operators.
type UnOpKind int

const (
	Not UnOpKind = iota
	Neg
)

func UnOpKindFromSymbol(s string) UnOpKind {
	if s == "!" {
		return Not
	}
	return Neg
}

func (k UnOpKind) Text() string {
	if k == Not {
		return "!"
	}
	return "-"
}

// LitKind enumerates literal payload shapes.
type LitKind int

const (
	LitBool LitKind = iota
	LitChar
	LitInt
	LitReal
	LitStr
)

// Lit is the payload of an Expr with Kind == ExprLit.
type Lit struct {
	Kind LitKind
	Bool bool
	Char rune
	Int  int64
	Real float64
	Str  string
}

func (l Lit) Text() string {
	switch l.Kind {
	case LitBool:
		if l.Bool {
			return "true"
		}
		return "false"
	case LitChar:
		return "'" + string(l.Char) + "'"
	case LitInt:
		return strconv.FormatInt(l.Int, 10)
	case LitReal:
		return strconv.FormatFloat(l.Real, 'g', -1, 64)
	case LitStr:
		return `"` + l.Str + `"`
	}
	return ""
}

// LoopKind enumerates the three loop forms the grammar accepts.
type LoopKind int

const (
	LoopFor LoopKind = iota
	LoopLoop
	LoopWhile
)

// Loop is the payload of an Expr with Kind == ExprLoop.
type Loop struct {
	Kind     LoopKind
	Iterable *Expr // LoopFor
	Iterator *Expr // LoopFor
	Cond     *Expr // LoopWhile
	Block    *Block
}

// ExprKind is the closed tag for every expression shape the grammar
// produces.
type ExprKind int

const (
	ExprEmpty ExprKind = iota
	ExprIdent
	ExprLit
	ExprClosure
	ExprLoop
	ExprArray
	ExprBinOp
	ExprCall
	ExprHash
	ExprIfElse
	ExprIndex
	ExprMemberAccess
	ExprUnOp
)

// HashEntry is one key/value pair of a Hash literal.
type HashEntry struct {
	Key   Lit
	Value *Expr
}

// Expr is {kind, span} plus whichever payload field Kind selects.
// Unused payload fields hold their zero value.
type Expr struct {
	Kind ExprKind
	Span span.Span

	Ident   string     // ExprIdent
	Lit     Lit        // ExprLit
	Closure *Fun       // ExprClosure
	Loop    *Loop      // ExprLoop
	Array   []*Expr    // ExprArray
	Hash    []HashEntry // ExprHash

	BinLhs *Expr     // ExprBinOp
	BinOp  BinOpKind // ExprBinOp
	BinRhs *Expr     // ExprBinOp

	CallCallee *Expr   // ExprCall
	CallArgs   []*Expr // ExprCall

	IfConds []IfArm // ExprIfElse
	IfAlt   *Block  // ExprIfElse

	IndexData  *Expr // ExprIndex
	IndexIndex *Expr // ExprIndex

	MemberFrom   *Expr  // ExprMemberAccess
	MemberAccess string // ExprMemberAccess

	UnOperand UnOpKind // ExprUnOp
	UnRhs     *Expr    // ExprUnOp
}

// IfArm pairs a condition with the block it guards.
type IfArm struct {
	Cond  *Expr
	Block *Block
}

func (e *Expr) Text() string {
	switch e.Kind {
	case ExprIdent:
		return e.Ident
	case ExprLit:
		return e.Lit.Text()
	case ExprBinOp:
		return e.BinLhs.Text() + " " + e.BinOp.Text() + " " + e.BinRhs.Text()
	case ExprUnOp:
		return e.UnOperand.Text() + e.UnRhs.Text()
	}
	return ""
}

// Block is a brace-delimited statement sequence.
type Block struct {
	Stmts []*Stmt
	Span  span.Span
}

func NewBlock(stmts []*Stmt) *Block { return &Block{Stmts: stmts} }

func (b *Block) Add(s *Stmt) { b.Stmts = append(b.Stmts, s) }

func (b *Block) Text() string {
	parts := make([]string, len(b.Stmts))
	for i, s := range b.Stmts {
		parts[i] = s.Text()
	}
	return strings.Join(parts, "\n")
}

// Ty is the closed tag for the grammar's (currently cosmetic) type
// annotations.
type TyKind int

const (
	TyUnknown TyKind = iota
	TyNameRef
	TyGeneric
)

type Ty struct {
	Kind     TyKind
	Name     string // TyNameRef, TyGeneric
	Params   []Ty   // TyGeneric
}

func UnknownTy() Ty { return Ty{Kind: TyUnknown} }

func NameRefTy(name string) Ty { return Ty{Kind: TyNameRef, Name: name} }

func (t Ty) Text() string {
	switch t.Kind {
	case TyNameRef, TyGeneric:
		return t.Name
	}
	return "Unknown"
}

// FunArg is one declared parameter.
type FunArg struct {
	Name      string
	Immutable bool
	Ty        Ty
	Span      span.Span
}

// Fun is a function declaration: signature plus body.
type Fun struct {
	Name  string
	Args  []FunArg
	RetTy Ty
	Block *Block
	Span  span.Span
}

func (f *Fun) Text() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.Name + ": " + a.Ty.Text()
	}
	body := ""
	if f.Block != nil {
		body = f.Block.Text()
	}
	return "fun " + f.Name + "(" + strings.Join(args, ", ") + ") { " + body + " }"
}

// Local is the payload shared by Val and Mut statements.
type Local struct {
	Name      string
	Immutable bool
	Ty        Ty
	Value     *Expr
	Span      span.Span
}

func (l *Local) Text() string {
	kw := "mut"
	if l.Immutable {
		kw = "val"
	}
	return kw + " " + l.Name + ": " + l.Ty.Text() + " = " + l.Value.Text()
}

// Field is one struct field declaration.
type Field struct {
	Name string
	Ty   Ty
	Expr *Expr
	Span span.Span
}

// StructMemberKind tags what kind of member a StructMember holds.
type StructMemberKind int

const (
	MemberField StructMemberKind = iota
	MemberMethod
	MemberStaticMethod
)

type StructMember struct {
	Kind   StructMemberKind
	Field  Field
	Method *Fun
}

// Struct is a struct declaration.
type Struct struct {
	Name    string
	Parents []string
	Params  []FunArg
	Members []StructMember
	Span    span.Span
}

// TraitMember is one member of a capsule (interface) declaration.
type TraitMember struct {
	Kind   StructMemberKind
	Field  Field
	Method *Fun
}

// Capsule is this language's interface/trait declaration.
type Capsule struct {
	Name       string
	WithTraits []string
	Args       []FunArg
	Members    []TraitMember
	Visibility bool
	Span       span.Span
}

// Use is an import statement: a path, optionally dotted with `::`
// segments, and an optional parenthesized name list. Stmts is reserved
// for a future inline-module-body form; module resolution itself is
// out of scope (spec §1 Non-goals), so the parser always leaves it
// nil today.
type Use struct {
	Name  string
	Stmts []*Stmt
	Span  span.Span
}

// StmtKind is the closed tag for every statement shape.
type StmtKind int

const (
	StmtEmpty StmtKind = iota
	StmtCapsule
	StmtExpr
	StmtFun
	StmtMut
	StmtRet
	StmtStruct
	StmtUse
	StmtVal
	StmtIfBlock
)

// Stmt is {kind, span} plus whichever payload field Kind selects.
type Stmt struct {
	Kind StmtKind
	Span span.Span

	Expr    *Expr
	Fun     *Fun
	Local   *Local // StmtMut, StmtVal
	Ret     *Expr  // nil means a bare `ret` with no value
	Struct  *Struct
	Capsule *Capsule
	Use     *Use

	IfConds []IfArm // StmtIfBlock
	IfAlt   *Block  // StmtIfBlock
}

func (s *Stmt) Text() string {
	switch s.Kind {
	case StmtEmpty:
		return "Empty"
	case StmtExpr:
		return s.Expr.Text()
	case StmtFun:
		return s.Fun.Text()
	case StmtVal, StmtMut:
		return s.Local.Text()
	case StmtRet:
		if s.Ret == nil {
			return "ret"
		}
		return "ret " + s.Ret.Text()
	}
	return ""
}

// --- constructors ---------------------------------------------------
//
// These mirror the teacher's make_* free functions: every AST node is
// built with a zero span by default, filled in by the parser once the
// full extent of the production is known.

func MakeIdentExpr(id string) *Expr {
	return &Expr{Kind: ExprIdent, Ident: id}
}

func MakeLitBoolExpr(v bool) *Expr {
	return &Expr{Kind: ExprLit, Lit: Lit{Kind: LitBool, Bool: v}}
}

func MakeLitIntExpr(v int64) *Expr {
	return &Expr{Kind: ExprLit, Lit: Lit{Kind: LitInt, Int: v}}
}

func MakeLitRealExpr(v float64) *Expr {
	return &Expr{Kind: ExprLit, Lit: Lit{Kind: LitReal, Real: v}}
}

func MakeLitStrExpr(v string) *Expr {
	return &Expr{Kind: ExprLit, Lit: Lit{Kind: LitStr, Str: v}}
}

func MakeLitCharExpr(v rune) *Expr {
	return &Expr{Kind: ExprLit, Lit: Lit{Kind: LitChar, Char: v}}
}

func MakeBinOpExpr(lhs *Expr, op BinOpKind, rhs *Expr) *Expr {
	return &Expr{Kind: ExprBinOp, BinLhs: lhs, BinOp: op, BinRhs: rhs}
}

func MakeUnOpExpr(operand UnOpKind, rhs *Expr) *Expr {
	return &Expr{Kind: ExprUnOp, UnOperand: operand, UnRhs: rhs}
}

func MakeCallExpr(callee *Expr, args []*Expr) *Expr {
	return &Expr{Kind: ExprCall, CallCallee: callee, CallArgs: args}
}

func MakeIndexExpr(data, index *Expr) *Expr {
	return &Expr{Kind: ExprIndex, IndexData: data, IndexIndex: index}
}

func MakeMemberAccessExpr(from *Expr, access string) *Expr {
	return &Expr{Kind: ExprMemberAccess, MemberFrom: from, MemberAccess: access}
}

func MakeArrayExpr(data []*Expr) *Expr {
	return &Expr{Kind: ExprArray, Array: data}
}

func MakeHashExpr(entries []HashEntry) *Expr {
	return &Expr{Kind: ExprHash, Hash: entries}
}

func MakeIfElseExpr(conds []IfArm, alt *Block) *Expr {
	return &Expr{Kind: ExprIfElse, IfConds: conds, IfAlt: alt}
}

func MakeLoopForExpr(iterable, iterator *Expr, block *Block) *Expr {
	return &Expr{Kind: ExprLoop, Loop: &Loop{Kind: LoopFor, Iterable: iterable, Iterator: iterator, Block: block}}
}

func MakeLoopLoopExpr(block *Block) *Expr {
	return &Expr{Kind: ExprLoop, Loop: &Loop{Kind: LoopLoop, Block: block}}
}

func MakeLoopWhileExpr(cond *Expr, block *Block) *Expr {
	return &Expr{Kind: ExprLoop, Loop: &Loop{Kind: LoopWhile, Cond: cond, Block: block}}
}

func MakeExprStmt(e *Expr) *Stmt {
	return &Stmt{Kind: StmtExpr, Expr: e}
}

func MakeFunStmt(name string, args []FunArg, retTy Ty, block *Block) *Stmt {
	return &Stmt{Kind: StmtFun, Fun: &Fun{Name: name, Args: args, RetTy: retTy, Block: block}}
}

func MakeValStmt(name string, ty Ty, value *Expr) *Stmt {
	return &Stmt{Kind: StmtVal, Local: &Local{Name: name, Immutable: true, Ty: ty, Value: value}}
}

func MakeMutStmt(name string, ty Ty, value *Expr) *Stmt {
	return &Stmt{Kind: StmtMut, Local: &Local{Name: name, Immutable: false, Ty: ty, Value: value}}
}

func MakeRetStmt(e *Expr) *Stmt {
	return &Stmt{Kind: StmtRet, Ret: e}
}

func MakeUseStmt(name string, stmts []*Stmt) *Stmt {
	return &Stmt{Kind: StmtUse, Use: &Use{Name: name, Stmts: stmts}}
}

func MakeIfBlockStmt(conds []IfArm, alt *Block) *Stmt {
	return &Stmt{Kind: StmtIfBlock, IfConds: conds, IfAlt: alt}
}
