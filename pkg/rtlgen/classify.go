package rtlgen

import "github.com/raymyers/bxcc/pkg/bxast"

// ClassifyLocals walks a callable's body and returns the set of local
// names whose address is taken anywhere (via `&v` or `&v[i]`, which both
// bottom out in an AddrOf over a Var-rooted lvalue). Grounded on the
// teacher's pkg/cminorgen/vars.go ClassifyVariables, which performs the
// same register-vs-stack split before Cminor generation.
func ClassifyLocals(body []bxast.Stmt) map[string]bool {
	addressTaken := make(map[string]bool)
	for _, s := range body {
		classifyStmt(s, addressTaken)
	}
	return addressTaken
}

func classifyStmt(s bxast.Stmt, out map[string]bool) {
	switch st := s.(type) {
	case bxast.Declare:
		classifyExpr(st.Init, out)
	case bxast.Assign:
		classifyExpr(st.Lhs, out)
		classifyExpr(st.Rhs, out)
	case bxast.If:
		classifyExpr(st.Cond, out)
		for _, s2 := range st.Then {
			classifyStmt(s2, out)
		}
		for _, s2 := range st.Else {
			classifyStmt(s2, out)
		}
	case bxast.While:
		classifyExpr(st.Cond, out)
		for _, s2 := range st.Body {
			classifyStmt(s2, out)
		}
	case bxast.Return:
		if st.Value != nil {
			classifyExpr(st.Value, out)
		}
	case bxast.Print:
		classifyExpr(st.Value, out)
	case bxast.Eval:
		classifyExpr(st.Value, out)
	case bxast.Block:
		for _, s2 := range st.Stmts {
			classifyStmt(s2, out)
		}
	}
}

func classifyExpr(e bxast.Expr, out map[string]bool) {
	switch ex := e.(type) {
	case bxast.AddrOf:
		markRoot(ex.Operand, out)
		classifyExpr(ex.Operand, out)
	case bxast.Unary:
		classifyExpr(ex.Operand, out)
	case bxast.Binary:
		classifyExpr(ex.Left, out)
		classifyExpr(ex.Right, out)
	case bxast.Call:
		for _, a := range ex.Args {
			classifyExpr(a, out)
		}
	case bxast.Alloc:
		classifyExpr(ex.N, out)
	case bxast.Deref:
		classifyExpr(ex.Operand, out)
	case bxast.Index:
		classifyExpr(ex.List_, out)
		classifyExpr(ex.Idx, out)
	}
}

// markRoot marks the Var at the root of an lvalue chain (v, v[i], v[i][j],
// ...) as address-taken; &*p and &(deref of a non-Var) address something
// that is already memory, not a local pseudo, so there is nothing to mark.
func markRoot(e bxast.Expr, out map[string]bool) {
	switch ex := e.(type) {
	case bxast.Var:
		out[ex.Name] = true
	case bxast.Index:
		markRoot(ex.List_, out)
	}
}
