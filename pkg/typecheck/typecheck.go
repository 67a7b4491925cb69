// Package typecheck implements the bidirectional type check that turns a
// parsed bxast.Program into the typed AST pkg/rtlgen consumes. It is a
// collaborator in the sense of spec.md §1 — a straightforward check, not
// the focus of this compiler — but the lowerer needs every Expr's Typ()
// filled in, so this pass exists and runs before rtlgen.
package typecheck

import (
	"fmt"

	"github.com/raymyers/bxcc/pkg/bxast"
)

// Error is a type error found while checking a program.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// Checker holds the environment for one compilation unit.
type Checker struct {
	globals map[string]bxast.Type
	funcs   map[string]*bxast.Callable
	locals  map[string]bxast.Type
	errs    []error
}

// Check type-checks a program, returning the same *bxast.Program with every
// Expr's Typ() filled in, or the list of type errors found.
func Check(prog *bxast.Program) (*bxast.Program, []error) {
	c := &Checker{
		globals: make(map[string]bxast.Type),
		funcs:   make(map[string]*bxast.Callable),
	}
	for _, g := range prog.Globals {
		c.globals[g.Name] = g.Type
	}
	for i := range prog.Callables {
		fn := &prog.Callables[i]
		c.funcs[fn.Name] = fn
	}
	if _, ok := c.funcs["main"]; !ok {
		c.errs = append(c.errs, &Error{Msg: "missing main procedure"})
	}

	for i := range prog.Globals {
		g := &prog.Globals[i]
		g.Init = c.checkConstExpr(g.Init, g.Type)
	}
	for i := range prog.Callables {
		c.checkCallable(&prog.Callables[i])
	}
	return prog, c.errs
}

func (c *Checker) errf(format string, args ...any) {
	c.errs = append(c.errs, &Error{Msg: fmt.Sprintf(format, args...)})
}

func (c *Checker) checkCallable(fn *bxast.Callable) {
	c.locals = make(map[string]bxast.Type)
	for _, p := range fn.Params {
		c.locals[p.Name] = p.Type
	}
	for i := range fn.Body {
		fn.Body[i] = c.checkStmt(fn.Body[i], fn.Ret)
	}
}

func (c *Checker) lookup(name string) (bxast.Type, bool) {
	if t, ok := c.locals[name]; ok {
		return t, true
	}
	t, ok := c.globals[name]
	return t, ok
}

func (c *Checker) checkStmt(s bxast.Stmt, ret bxast.Type) bxast.Stmt {
	switch st := s.(type) {
	case bxast.Declare:
		st.Init = c.checkExpr(st.Init)
		c.locals[st.Name] = st.Type
		return st
	case bxast.Assign:
		st.Lhs = c.checkExpr(st.Lhs)
		st.Rhs = c.checkExpr(st.Rhs)
		if !bxast.IsLvalue(st.Lhs) {
			c.errf("left-hand side of assignment is not assignable")
		}
		return st
	case bxast.If:
		st.Cond = c.checkExpr(st.Cond)
		for i := range st.Then {
			st.Then[i] = c.checkStmt(st.Then[i], ret)
		}
		for i := range st.Else {
			st.Else[i] = c.checkStmt(st.Else[i], ret)
		}
		return st
	case bxast.While:
		st.Cond = c.checkExpr(st.Cond)
		for i := range st.Body {
			st.Body[i] = c.checkStmt(st.Body[i], ret)
		}
		return st
	case bxast.Return:
		if st.Value != nil {
			st.Value = c.checkExpr(st.Value)
		} else if ret != nil {
			c.errf("function must return a value")
		}
		return st
	case bxast.Print:
		st.Value = c.checkExpr(st.Value)
		return st
	case bxast.Eval:
		st.Value = c.checkExpr(st.Value)
		return st
	case bxast.Block:
		for i := range st.Stmts {
			st.Stmts[i] = c.checkStmt(st.Stmts[i], ret)
		}
		return st
	default:
		return s
	}
}

// checkConstExpr type-checks a global initializer, which must be a
// constant literal (§4.1's Global variable layout diagnostic).
func (c *Checker) checkConstExpr(e bxast.Expr, declared bxast.Type) bxast.Expr {
	switch lit := e.(type) {
	case bxast.IntLit:
		lit.Type_ = bxast.Int64{}
		return lit
	case bxast.BoolLit:
		lit.Type_ = bxast.Bool{}
		return lit
	case bxast.NullLit:
		lit.Type_ = declared
		return lit
	default:
		c.errf("global initializer must be a constant literal")
		return c.checkExpr(e)
	}
}

func (c *Checker) checkExpr(e bxast.Expr) bxast.Expr {
	switch ex := e.(type) {
	case bxast.IntLit:
		ex.Type_ = bxast.Int64{}
		return ex
	case bxast.BoolLit:
		ex.Type_ = bxast.Bool{}
		return ex
	case bxast.NullLit:
		ex.Type_ = bxast.Pointer{Elem: bxast.Int64{}}
		return ex
	case bxast.Var:
		t, ok := c.lookup(ex.Name)
		if !ok {
			c.errf("undefined variable %q", ex.Name)
		}
		ex.Type_ = t
		return ex
	case bxast.Unary:
		ex.Operand = c.checkExpr(ex.Operand)
		if ex.Op == bxast.UNot {
			ex.Type_ = bxast.Bool{}
		} else {
			ex.Type_ = bxast.Int64{}
		}
		return ex
	case bxast.Binary:
		ex.Left = c.checkExpr(ex.Left)
		ex.Right = c.checkExpr(ex.Right)
		ex.Type_ = binaryResultType(ex.Op)
		return ex
	case bxast.Call:
		fn, ok := c.funcs[ex.Callee]
		if !ok {
			c.errf("call to undefined callable %q", ex.Callee)
		}
		for i := range ex.Args {
			ex.Args[i] = c.checkExpr(ex.Args[i])
		}
		if ok {
			ex.Type_ = fn.Ret
		}
		return ex
	case bxast.Alloc:
		ex.N = c.checkExpr(ex.N)
		ex.Type_ = bxast.Pointer{Elem: ex.Elem}
		return ex
	case bxast.AddrOf:
		ex.Operand = c.checkExpr(ex.Operand)
		if !bxast.IsLvalue(ex.Operand) {
			c.errf("cannot take the address of a non-lvalue")
		}
		ex.Type_ = bxast.Pointer{Elem: ex.Operand.Typ()}
		return ex
	case bxast.Deref:
		ex.Operand = c.checkExpr(ex.Operand)
		if ptr, ok := ex.Operand.Typ().(bxast.Pointer); ok {
			ex.Type_ = ptr.Elem
		} else {
			c.errf("cannot dereference a non-pointer expression")
		}
		return ex
	case bxast.Index:
		ex.List_ = c.checkExpr(ex.List_)
		ex.Idx = c.checkExpr(ex.Idx)
		if lst, ok := ex.List_.Typ().(bxast.List); ok {
			ex.Type_ = lst.Elem
		} else if ptr, ok := ex.List_.Typ().(bxast.Pointer); ok {
			ex.Type_ = ptr.Elem
		} else {
			c.errf("cannot index a non-list, non-pointer expression")
		}
		return ex
	default:
		return e
	}
}

func binaryResultType(op bxast.BinOp) bxast.Type {
	switch op {
	case bxast.BLt, bxast.BLe, bxast.BGt, bxast.BGe, bxast.BEq, bxast.BNe, bxast.BLogAnd, bxast.BLogOr:
		return bxast.Bool{}
	default:
		return bxast.Int64{}
	}
}
