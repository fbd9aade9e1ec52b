// Package codegen defines the abstract CodegenBuilder capability that
// lowering targets, plus two thin reference adapters implementing it:
// a textual-IR-to-external-C-toolchain backend and an in-memory
// bytecode "JIT". The operation set is grounded on the original
// converter's raw LLVM-sys wrapper (llvm/interface.rs) generalized
// into a backend-agnostic contract.
package codegen

import "fmt"

// Ty is the handful of machine types this backend understands. The
// language subset only performs signed-integer arithmetic; Real
// values can be constructed and passed around but not combined with
// BinOp/Cmp, matching the spec's "signed"/"ordered" operation set.
type Ty int

const (
	TyI64 Ty = iota
	TyF64
)

// BinOpKind enumerates the signed integer arithmetic operations
// binop() accepts.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mul
	Div
	Mod
)

func (k BinOpKind) String() string {
	switch k {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case Mod:
		return "mod"
	}
	return "binop?"
}

// CmpKind enumerates the ordered comparison operations cmp() accepts.
type CmpKind int

const (
	Lt CmpKind = iota
	Le
	Gt
	Ge
	Eq
	Ne
)

func (k CmpKind) String() string {
	switch k {
	case Lt:
		return "lt"
	case Le:
		return "le"
	case Gt:
		return "gt"
	case Ge:
		return "ge"
	case Eq:
		return "eq"
	case Ne:
		return "ne"
	}
	return "cmp?"
}

// FunHandle, BlockHandle, Var, and Value are opaque identifiers the
// builder hands back to the lowering layer; their meaning is entirely
// adapter-internal.
type FunHandle int
type BlockHandle int
type Var int
type Value int

// PhiIncoming is one (value, predecessor block) pair of a phi node.
type PhiIncoming struct {
	Value Value
	Block BlockHandle
}

// FinalizeResult is what Finalize() hands back: either a set of
// callable functions (the JIT adapter) or the path to an emitted
// artifact (the C adapter). Exactly one of the two is populated.
type FinalizeResult struct {
	Functions map[string]CompiledFunc
	OutputPath string
}

// CompiledFunc is a lowered function made directly callable in this
// process; it takes and returns the language's single machine
// integer type.
type CompiledFunc func(args ...int64) int64

// Builder is the abstract capability the Lowering visitor programs
// against. Both adapters in this package implement it; lowering never
// knows which one it is talking to.
type Builder interface {
	MakeModule(name string)
	DropModule()

	DeclareFun(name string, paramTys []Ty, retTy Ty) FunHandle
	BeginFun(h FunHandle)

	// Param returns the value of the currently-open function's i-th
	// parameter, grounded directly on the original converter's
	// Cranelift adapter (builder.block_params(entry_block)[i]).
	Param(index int) Value

	DeclareVar(name string, ty Ty) Var
	DefineVar(v Var, val Value)
	UseVar(v Var) Value

	ConstInt(v int64) Value
	ConstReal(v float64) Value

	BinOp(kind BinOpKind, lhs, rhs Value) Value
	Cmp(kind CmpKind, lhs, rhs Value) Value

	Ret(v Value)

	AppendBlock(h FunHandle) BlockHandle
	Branch(to BlockHandle)
	BranchCond(cond Value, then, els BlockHandle)
	Phi(ty Ty, incoming []PhiIncoming) Value

	Load(addr Value) Value
	Store(addr Value, v Value)
	Alloca(ty Ty) Value

	Finalize() (FinalizeResult, error)
}

// CodegenError reports a failure raised by a Builder operation, naming
// the function it occurred in.
type CodegenError struct {
	Fun     string
	Message string
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("codegen: in %s: %s", e.Fun, e.Message)
}
