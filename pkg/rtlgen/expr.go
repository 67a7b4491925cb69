package rtlgen

import (
	"github.com/raymyers/bxcc/pkg/bxast"
	"github.com/raymyers/bxcc/pkg/rtl"
)

// LowerValue lowers e and leaves its value in b.Result regardless of
// whether e is int- or bool-typed: bool expressions are lowered in
// short-circuit form and then forced ("intified") into a concrete 0/1
// pseudo.
func (b *Builder) LowerValue(e bxast.Expr) {
	if isBool(e.Typ()) {
		b.LowerBool(e)
		b.Intify()
		return
	}
	b.LowerInt(e)
}

func isBool(t bxast.Type) bool {
	_, ok := t.(bxast.Bool)
	return ok
}

// Intify materializes the current short-circuit boolean result (InLabel =
// true entry, FalseLabel = false entry) into a concrete int pseudo:
// allocate a merge label, install `Move 1` at InLabel and `Move 0` at
// FalseLabel both targeting it, then set Result to that pseudo.
func (b *Builder) Intify() {
	p := b.NewPseudo()
	merge := b.NewLabel()
	b.AddInstr(b.InLabel, rtl.Move{Imm: 1, Dst: p, Succ: merge})
	b.AddInstr(b.FalseLabel, rtl.Move{Imm: 0, Dst: p, Succ: merge})
	b.InLabel = merge
	b.Result = p
}

// LowerInt lowers an int-, pointer-, or list-valued expression, leaving
// its value pseudo in b.Result and advancing b.InLabel past it.
func (b *Builder) LowerInt(e bxast.Expr) {
	switch ex := e.(type) {
	case bxast.IntLit:
		p := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Move{Imm: ex.Value, Dst: p, Succ: succ} })
		b.Result = p

	case bxast.NullLit:
		p := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Move{Imm: 0, Dst: p, Succ: succ} })
		b.Result = p

	case bxast.Var:
		if isBool(ex.Type_) {
			b.LowerBool(ex)
			b.Intify()
			return
		}
		b.Result = b.readVar(ex.Name)

	case bxast.Unary:
		b.LowerInt(ex.Operand)
		src := b.Result
		dst := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Copy{Src: src, Dst: dst, Succ: succ} })
		op := rtl.NEG
		if ex.Op == bxast.UCompl {
			op = rtl.NOT
		}
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Unop{Op: op, Arg: dst, Succ: succ} })
		b.Result = dst

	case bxast.Binary:
		b.LowerInt(ex.Left)
		left := b.Result
		dst := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Copy{Src: left, Dst: dst, Succ: succ} })
		b.LowerInt(ex.Right)
		right := b.Result
		b.AddSequential(func(succ rtl.Label) rtl.Instruction {
			return rtl.Binop{Op: binopFor(ex.Op), Src: right, Dst: dst, Succ: succ}
		})
		b.Result = dst

	case bxast.Call:
		b.Result = b.lowerCall(ex)

	case bxast.Alloc:
		b.Result = b.lowerAlloc(ex)

	case bxast.AddrOf:
		b.LowerAddress(ex.Operand)
		b.Result = b.Address

	case bxast.Deref:
		b.LowerInt(ex.Operand)
		ptr := b.Result
		dst := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Load{Base: ptr, Dst: dst, Succ: succ} })
		b.Result = dst

	case bxast.Index:
		addr := b.computeIndexAddress(ex)
		dst := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Load{Base: addr, Dst: dst, Succ: succ} })
		b.Result = dst

	default:
		b.errf("rtlgen: cannot lower expression of type %T as a value", e)
		b.Result = b.NewPseudo()
	}
}

// LowerBool lowers a bool-valued expression in short-circuit form: after
// it returns, b.InLabel is the entry label of the true branch and
// b.FalseLabel is the entry label of the false branch. No boolean pseudo
// is materialized unless a caller later calls Intify.
func (b *Builder) LowerBool(e bxast.Expr) {
	switch ex := e.(type) {
	case bxast.BoolLit:
		if ex.Value {
			b.FalseLabel = b.NewLabel()
		} else {
			b.FalseLabel = b.InLabel
			b.InLabel = b.NewLabel()
		}

	case bxast.Var:
		p := b.readVar(ex.Name)
		trueL, falseL := b.NewLabel(), b.NewLabel()
		b.AddInstr(b.InLabel, rtl.Ubranch{Op: rtl.JNZ, Arg: p, Taken: trueL, Fail: falseL})
		b.InLabel = trueL
		b.FalseLabel = falseL

	case bxast.Unary: // only UNot reaches here; UNeg/UCompl are int-typed
		b.LowerBool(ex.Operand)
		b.InLabel, b.FalseLabel = b.FalseLabel, b.InLabel

	case bxast.Binary:
		b.lowerBoolBinary(ex)

	case bxast.Call:
		p := b.lowerCall(ex)
		trueL, falseL := b.NewLabel(), b.NewLabel()
		b.AddInstr(b.InLabel, rtl.Ubranch{Op: rtl.JNZ, Arg: p, Taken: trueL, Fail: falseL})
		b.InLabel = trueL
		b.FalseLabel = falseL

	default:
		b.errf("rtlgen: cannot lower expression of type %T as a boolean", e)
		b.FalseLabel = b.NewLabel()
	}
}

func (b *Builder) lowerBoolBinary(ex bxast.Binary) {
	switch ex.Op {
	case bxast.BLt, bxast.BLe, bxast.BGt, bxast.BGe:
		b.LowerInt(ex.Left)
		left := b.Result
		b.LowerInt(ex.Right)
		right := b.Result
		trueL, falseL := b.NewLabel(), b.NewLabel()
		b.AddInstr(b.InLabel, rtl.Bbranch{Op: condFor(ex.Op), A: left, B: right, Taken: trueL, Fail: falseL})
		b.InLabel = trueL
		b.FalseLabel = falseL

	case bxast.BEq, bxast.BNe:
		leftVal := b.lowerToValuePseudo(ex.Left)
		rightVal := b.lowerToValuePseudo(ex.Right)
		cond := rtl.JE
		if ex.Op == bxast.BNe {
			cond = rtl.JNE
		}
		trueL, falseL := b.NewLabel(), b.NewLabel()
		b.AddInstr(b.InLabel, rtl.Bbranch{Op: cond, A: leftVal, B: rightVal, Taken: trueL, Fail: falseL})
		b.InLabel = trueL
		b.FalseLabel = falseL

	case bxast.BLogAnd:
		b.LowerBool(ex.Left)
		leftFalse := b.FalseLabel
		// b.InLabel already holds left's true-branch entry; continue there.
		b.LowerBool(ex.Right)
		rightFalse := b.FalseLabel
		b.AddInstr(rightFalse, rtl.Goto{Succ: leftFalse})
		b.FalseLabel = leftFalse

	case bxast.BLogOr:
		b.LowerBool(ex.Left)
		leftTrue := b.InLabel
		b.InLabel = b.FalseLabel
		b.LowerBool(ex.Right)
		rightTrue := b.InLabel
		b.AddInstr(rightTrue, rtl.Goto{Succ: leftTrue})
		b.InLabel = leftTrue

	default:
		b.errf("rtlgen: binary operator %v is not a boolean operator", ex.Op)
		b.FalseLabel = b.NewLabel()
	}
}

// lowerToValuePseudo lowers e (int- or bool-typed) and returns its value
// pseudo, intifying bool results.
func (b *Builder) lowerToValuePseudo(e bxast.Expr) rtl.Pseudo {
	b.LowerValue(e)
	return b.Result
}

// LowerAddress is the Addressor role: a second traversal over
// lvalue-shaped expressions (Var, Index, Deref — exactly
// bxast.IsLvalue's set) computing an address pseudo instead of a value,
// left in b.Address.
func (b *Builder) LowerAddress(e bxast.Expr) {
	switch ex := e.(type) {
	case bxast.Var:
		b.Address = b.addressOfVar(ex.Name)

	case bxast.Index:
		b.Address = b.computeIndexAddress(ex)

	case bxast.Deref:
		b.LowerInt(ex.Operand)
		b.Address = b.Result

	default:
		b.errf("rtlgen: cannot take the address of expression of type %T", e)
		b.Address = b.NewPseudo()
	}
}

func (b *Builder) addressOfVar(name string) rtl.Pseudo {
	if lv, ok := b.locals[name]; ok {
		addr := b.NewPseudo()
		off := -lv.offset
		b.AddSequential(func(succ rtl.Label) rtl.Instruction {
			return rtl.CopyAP{Offset: off, Base: rtl.RBP, Dst: addr, Succ: succ}
		})
		return addr
	}
	if _, ok := b.globals[name]; ok {
		addr := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction {
			return rtl.CopyAP{Symbol: name, Dst: addr, Succ: succ}
		})
		return addr
	}
	b.errf("rtlgen: reference to undefined variable %q", name)
	return b.NewPseudo()
}

// readVar produces the current value of a variable: a direct read of its
// register pseudo when it's VarRegister, or a CopyAP+Load from its memory
// slot (local stack offset or global symbol) when it's VarStack.
func (b *Builder) readVar(name string) rtl.Pseudo {
	if lv, ok := b.locals[name]; ok {
		if lv.kind == VarRegister {
			return lv.pseudo
		}
		addr := b.addressOfVar(name)
		dst := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Load{Base: addr, Dst: dst, Succ: succ} })
		return dst
	}
	if _, ok := b.globals[name]; ok {
		dst := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Load{Symbol: name, Dst: dst, Succ: succ} })
		return dst
	}
	b.errf("rtlgen: reference to undefined variable %q", name)
	return b.NewPseudo()
}

// writeVar stores val as a variable's new current value: a Copy into its
// register pseudo when VarRegister, or a CopyAP+Store into its memory
// slot when VarStack.
func (b *Builder) writeVar(name string, val rtl.Pseudo) {
	if lv, ok := b.locals[name]; ok {
		if lv.kind == VarRegister {
			b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Copy{Src: val, Dst: lv.pseudo, Succ: succ} })
			return
		}
		addr := b.addressOfVar(name)
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Store{Src: val, Base: addr, Succ: succ} })
		return
	}
	if _, ok := b.globals[name]; ok {
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Store{Src: val, Symbol: name, Succ: succ} })
		return
	}
	b.errf("rtlgen: reference to undefined variable %q", name)
}

// computeIndexAddress computes the address of lst[idx], treating list
// storage as descending from the base address (index 0 at the highest
// address) per DESIGN.md's resolution of spec.md's open question. When
// the list expression is pointer-typed (e.g. the result of alloc), its
// *value* is the base address; when it's a genuine list-typed local,
// LowerAddress gives the address of the region's low (farthest-from-
// %rbp) end — the same address emitMemsetZero zeroes forward from — so
// it is shifted up by (listSize - elemSize) to anchor index 0 at the
// region's high end instead; descending from there keeps every index
// 0..N-1 inside the reserved region rather than walking below it into
// whatever is allocated at larger offsets.
func (b *Builder) computeIndexAddress(ex bxast.Index) rtl.Pseudo {
	var base rtl.Pseudo
	elemSize := bxast.SizeOf(elementTypeOf(ex.List_.Typ()))
	if _, isPtr := ex.List_.Typ().(bxast.Pointer); isPtr {
		b.LowerInt(ex.List_)
		base = b.Result
	} else {
		b.LowerAddress(ex.List_)
		regionBase := b.Address

		listSize := bxast.SizeOf(ex.List_.Typ())
		shift := listSize - elemSize
		shiftTmp := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Move{Imm: shift, Dst: shiftTmp, Succ: succ} })
		anchor := b.NewPseudo()
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Copy{Src: regionBase, Dst: anchor, Succ: succ} })
		b.AddSequential(func(succ rtl.Label) rtl.Instruction {
			return rtl.Binop{Op: rtl.ADD, Src: shiftTmp, Dst: anchor, Succ: succ}
		})
		base = anchor
	}

	b.LowerInt(ex.Idx)
	idxVal := b.Result

	sizeTmp := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Move{Imm: elemSize, Dst: sizeTmp, Succ: succ} })
	offset := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Copy{Src: idxVal, Dst: offset, Succ: succ} })
	b.AddSequential(func(succ rtl.Label) rtl.Instruction {
		return rtl.Binop{Op: rtl.MUL, Src: sizeTmp, Dst: offset, Succ: succ}
	})

	addr := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Copy{Src: base, Dst: addr, Succ: succ} })
	b.AddSequential(func(succ rtl.Label) rtl.Instruction {
		return rtl.Binop{Op: rtl.SUB, Src: offset, Dst: addr, Succ: succ}
	})
	return addr
}

func elementTypeOf(t bxast.Type) bxast.Type {
	switch x := t.(type) {
	case bxast.Pointer:
		return x.Elem
	case bxast.List:
		return x.Elem
	default:
		return bxast.Int64{}
	}
}

// lowerCall evaluates a call's arguments, places the first six into the
// System V integer argument registers, pushes the rest right-to-left,
// emits the Call, and — if the callee returns a value — copies %rax into
// a fresh result pseudo. Returns rtl.Discard for a void call.
func (b *Builder) lowerCall(ex bxast.Call) rtl.Pseudo {
	argVals := make([]rtl.Pseudo, len(ex.Args))
	for i, a := range ex.Args {
		argVals[i] = b.lowerToValuePseudo(a)
	}

	regArgs := argVals
	var stackArgs []rtl.Pseudo
	if len(argVals) > len(rtl.IntArgRegs) {
		regArgs = argVals[:len(rtl.IntArgRegs)]
		stackArgs = argVals[len(rtl.IntArgRegs):]
	}
	for i, v := range regArgs {
		reg := rtl.IntArgRegs[i]
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: v, Dst: reg, Succ: succ} })
	}
	for i := len(stackArgs) - 1; i >= 0; i-- {
		v := stackArgs[i]
		b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Push{Src: v, Succ: succ} })
	}

	b.AddSequential(func(succ rtl.Label) rtl.Instruction {
		return rtl.Call{Func: ex.Callee, NArgs: len(argVals), Succ: succ}
	})

	if ex.Type_ == nil {
		return rtl.Discard
	}
	result := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyMP{Src: rtl.RAX, Dst: result, Succ: succ} })
	return result
}

// lowerAlloc lowers `alloc T[n]`: compute sizeof(T)*n into %rdi and call
// the runtime's malloc shim.
func (b *Builder) lowerAlloc(ex bxast.Alloc) rtl.Pseudo {
	b.LowerInt(ex.N)
	n := b.Result

	elemSize := bxast.SizeOf(ex.Elem)
	sizeTmp := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Move{Imm: elemSize, Dst: sizeTmp, Succ: succ} })
	total := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Copy{Src: n, Dst: total, Succ: succ} })
	b.AddSequential(func(succ rtl.Label) rtl.Instruction {
		return rtl.Binop{Op: rtl.MUL, Src: sizeTmp, Dst: total, Succ: succ}
	})

	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyPM{Src: total, Dst: rtl.RDI, Succ: succ} })
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.Call{Func: "malloc", NArgs: 1, Succ: succ} })
	result := b.NewPseudo()
	b.AddSequential(func(succ rtl.Label) rtl.Instruction { return rtl.CopyMP{Src: rtl.RAX, Dst: result, Succ: succ} })
	return result
}

func binopFor(op bxast.BinOp) rtl.BinOp {
	switch op {
	case bxast.BAdd:
		return rtl.ADD
	case bxast.BSub:
		return rtl.SUB
	case bxast.BMul:
		return rtl.MUL
	case bxast.BDiv:
		return rtl.DIV
	case bxast.BMod:
		return rtl.REM
	case bxast.BAnd:
		return rtl.AND
	case bxast.BOr:
		return rtl.OR
	case bxast.BXor:
		return rtl.XOR
	case bxast.BShl:
		return rtl.SAL
	case bxast.BShr:
		return rtl.SAR
	default:
		panic("rtlgen: not an arithmetic/bitwise operator")
	}
}

func condFor(op bxast.BinOp) rtl.BCond {
	switch op {
	case bxast.BLt:
		return rtl.JL
	case bxast.BLe:
		return rtl.JLE
	case bxast.BGt:
		return rtl.JG
	case bxast.BGe:
		return rtl.JGE
	default:
		panic("rtlgen: not a relational operator")
	}
}
