// jitadapter.go - in-memory reference backend.
//
// This adapter does not emit native machine code: it compiles each
// function into a small block-addressed bytecode tape and returns a
// Go closure that interprets it. It stands in for the original
// converter's Cranelift-backed JIT (cranelift/jit.rs), which produced
// a real function pointer via block_params/def_var/ins(); per spec
// §4.7 both back ends here are thin reference adapters excluded from
// the size budget, and an interpreter is the form of that thinness
// this adapter takes.
package codegen

import "github.com/google/uuid"

// jitCtx is one call's execution state.
type jitCtx struct {
	vals      []int64
	mem       map[int64]int64
	vars      map[int]int64
	params    []int64
	prevBlock int
	halted    bool
	ret       int64
}

// jitInstr runs against ctx; it may fill ctx.vals[valueID] for a
// value-producing op, or mutate *nextPC/*jumped to redirect control
// flow, or set ctx.halted for Ret.
type jitInstr func(ctx *jitCtx, nextPC *int, jumped *bool)

type jitBlock struct {
	instrs []jitInstr
}

type jitFunc struct {
	name     string
	paramTys []Ty
	nextVal  int
	blocks   []*jitBlock
	cur      int
}

func (f *jitFunc) block() *jitBlock { return f.blocks[f.cur] }

func (f *jitFunc) emit(i jitInstr) { f.block().instrs = append(f.block().instrs, i) }

func (f *jitFunc) newValue() int {
	id := f.nextVal
	f.nextVal++
	return id
}

// JITAdapter is the in-memory Builder: every operation appends a
// jitInstr to the current block; Finalize compiles each function's
// block list into a directly callable CompiledFunc.
type JITAdapter struct {
	moduleName string
	funcs      []*jitFunc
	cur        *jitFunc
	nextVarID  int

	// sessionID tags this compilation for diagnostics, mirroring
	// CAdapter's use of github.com/google/uuid for the same purpose.
	sessionID uuid.UUID
}

func NewJITAdapter() *JITAdapter { return &JITAdapter{sessionID: uuid.New()} }

func (a *JITAdapter) MakeModule(name string) { a.moduleName = name }

func (a *JITAdapter) DropModule() { a.funcs = nil; a.cur = nil }

func (a *JITAdapter) DeclareFun(name string, paramTys []Ty, retTy Ty) FunHandle {
	f := &jitFunc{name: name, paramTys: paramTys}
	a.funcs = append(a.funcs, f)
	return FunHandle(len(a.funcs) - 1)
}

func (a *JITAdapter) BeginFun(h FunHandle) {
	a.cur = a.funcs[h]
	a.cur.blocks = []*jitBlock{{}}
	a.cur.cur = 0
}

func (a *JITAdapter) Param(index int) Value {
	id := a.cur.newValue()
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { ctx.vals[id] = ctx.params[index] })
	return Value(id)
}

func (a *JITAdapter) DeclareVar(name string, ty Ty) Var {
	id := a.nextVarID
	a.nextVarID++
	return Var(id)
}

func (a *JITAdapter) DefineVar(v Var, val Value) {
	vi := int(val)
	id := int(v)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { ctx.vars[id] = ctx.vals[vi] })
}

func (a *JITAdapter) UseVar(v Var) Value {
	id := a.cur.newValue()
	vid := int(v)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { ctx.vals[id] = ctx.vars[vid] })
	return Value(id)
}

func (a *JITAdapter) ConstInt(v int64) Value {
	id := a.cur.newValue()
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { ctx.vals[id] = v })
	return Value(id)
}

func (a *JITAdapter) ConstReal(v float64) Value {
	id := a.cur.newValue()
	iv := int64(v)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { ctx.vals[id] = iv })
	return Value(id)
}

func (a *JITAdapter) BinOp(kind BinOpKind, lhs, rhs Value) Value {
	id := a.cur.newValue()
	li, ri := int(lhs), int(rhs)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) {
		l, r := ctx.vals[li], ctx.vals[ri]
		switch kind {
		case Add:
			ctx.vals[id] = l + r
		case Sub:
			ctx.vals[id] = l - r
		case Mul:
			ctx.vals[id] = l * r
		case Div:
			ctx.vals[id] = l / r
		case Mod:
			ctx.vals[id] = l % r
		}
	})
	return Value(id)
}

func (a *JITAdapter) Cmp(kind CmpKind, lhs, rhs Value) Value {
	id := a.cur.newValue()
	li, ri := int(lhs), int(rhs)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) {
		l, r := ctx.vals[li], ctx.vals[ri]
		var result bool
		switch kind {
		case Lt:
			result = l < r
		case Le:
			result = l <= r
		case Gt:
			result = l > r
		case Ge:
			result = l >= r
		case Eq:
			result = l == r
		case Ne:
			result = l != r
		}
		if result {
			ctx.vals[id] = 1
		} else {
			ctx.vals[id] = 0
		}
	})
	return Value(id)
}

func (a *JITAdapter) Ret(v Value) {
	vi := int(v)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) {
		ctx.ret = ctx.vals[vi]
		ctx.halted = true
	})
}

func (a *JITAdapter) AppendBlock(h FunHandle) BlockHandle {
	f := a.funcs[h]
	f.blocks = append(f.blocks, &jitBlock{})
	return BlockHandle(len(f.blocks) - 1)
}

func (a *JITAdapter) Branch(to BlockHandle) {
	target := int(to)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { *nextPC = target; *jumped = true })
}

func (a *JITAdapter) BranchCond(cond Value, then, els BlockHandle) {
	ci, thenPC, elsPC := int(cond), int(then), int(els)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) {
		if ctx.vals[ci] != 0 {
			*nextPC = thenPC
		} else {
			*nextPC = elsPC
		}
		*jumped = true
	})
}

// Phi reads the block control arrived from (ctx.prevBlock, set by the
// interpreter loop after every block) and selects the matching
// incoming value.
func (a *JITAdapter) Phi(ty Ty, incoming []PhiIncoming) Value {
	id := a.cur.newValue()
	in := append([]PhiIncoming(nil), incoming...)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) {
		for _, pair := range in {
			if int(pair.Block) == ctx.prevBlock {
				ctx.vals[id] = ctx.vals[int(pair.Value)]
				return
			}
		}
	})
	return Value(id)
}

func (a *JITAdapter) Load(addr Value) Value {
	id := a.cur.newValue()
	ai := int(addr)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { ctx.vals[id] = ctx.mem[ctx.vals[ai]] })
	return Value(id)
}

func (a *JITAdapter) Store(addr Value, v Value) {
	ai, vi := int(addr), int(v)
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { ctx.mem[ctx.vals[ai]] = ctx.vals[vi] })
}

func (a *JITAdapter) Alloca(ty Ty) Value {
	id := a.cur.newValue()
	addr := int64(id) + 1 // keep 0 out of the address space so a missed Store reads as a distinguishable zero
	a.cur.emit(func(ctx *jitCtx, nextPC *int, jumped *bool) { ctx.vals[id] = addr })
	return Value(id)
}

// Finalize compiles every recorded function into a CompiledFunc that
// replays its block tape: starting at block 0, running each block's
// instructions, following whichever branch instruction (if any) set
// nextPC, and falling through to the next block index otherwise.
func (a *JITAdapter) Finalize() (FinalizeResult, error) {
	fns := make(map[string]CompiledFunc, len(a.funcs))
	for _, f := range a.funcs {
		f := f
		fns[f.name] = func(args ...int64) int64 {
			ctx := &jitCtx{
				vals:   make([]int64, f.nextVal),
				mem:    make(map[int64]int64),
				vars:   make(map[int]int64),
				params: args,
			}
			pc := 0
			for !ctx.halted {
				block := f.blocks[pc]
				nextPC := pc + 1
				jumped := false
				for _, instr := range block.instrs {
					instr(ctx, &nextPC, &jumped)
					if ctx.halted {
						break
					}
				}
				if ctx.halted {
					break
				}
				ctx.prevBlock = pc
				pc = nextPC
			}
			return ctx.ret
		}
	}
	return FinalizeResult{Functions: fns}, nil
}
