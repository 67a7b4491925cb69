// Package parser implements a recursive-descent parser for BX.
package parser

import (
	"fmt"
	"strconv"

	"github.com/raymyers/bxcc/pkg/bxast"
	"github.com/raymyers/bxcc/pkg/lexer"
)

// Precedence levels for Pratt-style expression parsing (lowest to highest).
const (
	precLowest = iota
	precOr     // ||
	precAnd    // &&
	precBitOr  // |
	precBitXor // ^
	precBitAnd // &
	precEquality
	precRelational
	precShift
	precAdditive
	precMulti
	precUnary
	precPostfix // [], call
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenOrOr:   precOr,
	lexer.TokenAndAnd: precAnd,
	lexer.TokenPipe:   precBitOr,
	lexer.TokenCaret:  precBitXor,
	lexer.TokenAmp:    precBitAnd,
	lexer.TokenEq:     precEquality,
	lexer.TokenNe:     precEquality,
	lexer.TokenLt:     precRelational,
	lexer.TokenLe:     precRelational,
	lexer.TokenGt:     precRelational,
	lexer.TokenGe:     precRelational,
	lexer.TokenShl:    precShift,
	lexer.TokenShr:    precShift,
	lexer.TokenPlus:   precAdditive,
	lexer.TokenMinus:  precAdditive,
	lexer.TokenStar:   precMulti,
	lexer.TokenSlash:  precMulti,
	lexer.TokenPercent: precMulti,
}

var binops = map[lexer.TokenType]bxast.BinOp{
	lexer.TokenPlus:    bxast.BAdd,
	lexer.TokenMinus:   bxast.BSub,
	lexer.TokenStar:    bxast.BMul,
	lexer.TokenSlash:   bxast.BDiv,
	lexer.TokenPercent: bxast.BMod,
	lexer.TokenAmp:     bxast.BAnd,
	lexer.TokenPipe:    bxast.BOr,
	lexer.TokenCaret:   bxast.BXor,
	lexer.TokenShl:     bxast.BShl,
	lexer.TokenShr:     bxast.BShr,
	lexer.TokenLt:      bxast.BLt,
	lexer.TokenLe:      bxast.BLe,
	lexer.TokenGt:      bxast.BGt,
	lexer.TokenGe:      bxast.BGe,
	lexer.TokenEq:      bxast.BEq,
	lexer.TokenNe:      bxast.BNe,
	lexer.TokenAndAnd:  bxast.BLogAnd,
	lexer.TokenOrOr:    bxast.BLogOr,
}

// Parser parses BX source into a bxast.Program. Errors accumulate rather
// than aborting on the first one, like the teacher's C parser.
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
}

// New creates a new Parser for the given lexer.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns the accumulated parse errors.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) addError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s", p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError("expected %v, got %v (%q)", t, p.curToken.Type, p.curToken.Literal)
	return false
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return precLowest
}

// ParseProgram parses a whole BX compilation unit.
func (p *Parser) ParseProgram() *bxast.Program {
	prog := &bxast.Program{}

	for !p.curTokenIs(lexer.TokenEOF) {
		switch p.curToken.Type {
		case lexer.TokenVar:
			if g := p.parseGlobalDecl(); g != nil {
				prog.Globals = append(prog.Globals, *g)
			}
		case lexer.TokenProc, lexer.TokenFun:
			if c := p.parseCallable(); c != nil {
				prog.Callables = append(prog.Callables, *c)
			}
		default:
			p.addError("expected a global declaration or a proc/fun, got %v", p.curToken.Type)
			p.nextToken()
		}
	}
	return prog
}

func (p *Parser) parseType() bxast.Type {
	var t bxast.Type
	switch p.curToken.Type {
	case lexer.TokenInt64:
		t = bxast.Int64{}
		p.nextToken()
	case lexer.TokenBool:
		t = bxast.Bool{}
		p.nextToken()
	case lexer.TokenList:
		t = p.parseListType()
		if t == nil {
			return nil
		}
	default:
		p.addError("expected a type, got %v", p.curToken.Type)
		return nil
	}
	for p.curTokenIs(lexer.TokenStar) {
		t = bxast.Pointer{Elem: t}
		p.nextToken()
	}
	return t
}

// parseListType parses a fixed-length list type, `list[T; N]`.
func (p *Parser) parseListType() bxast.Type {
	p.nextToken() // consume 'list'
	if !p.expect(lexer.TokenLBracket) {
		return nil
	}
	elem := p.parseType()
	if elem == nil {
		return nil
	}
	if !p.expect(lexer.TokenSemi) {
		return nil
	}
	n := p.curToken.Literal
	if !p.expect(lexer.TokenInt) {
		return nil
	}
	length, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		p.addError("invalid list length %q: %v", n, err)
		return nil
	}
	if !p.expect(lexer.TokenRBracket) {
		return nil
	}
	return bxast.List{Elem: elem, Len: length}
}

func (p *Parser) parseGlobalDecl() *bxast.GlobalDecl {
	p.nextToken() // consume 'var'
	name := p.curToken.Literal
	if !p.expect(lexer.TokenIdent) {
		return nil
	}
	if !p.expect(lexer.TokenAssign) {
		return nil
	}
	init := p.parseExpr(precLowest)
	if !p.expect(lexer.TokenColon) {
		return nil
	}
	t := p.parseType()
	if !p.expect(lexer.TokenSemi) {
		return nil
	}
	return &bxast.GlobalDecl{Name: name, Type: t, Init: init}
}

func (p *Parser) parseCallable() *bxast.Callable {
	isFun := p.curTokenIs(lexer.TokenFun)
	p.nextToken() // consume 'proc'/'fun'

	name := p.curToken.Literal
	if !p.expect(lexer.TokenIdent) {
		return nil
	}
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	var params []bxast.Param
	for !p.curTokenIs(lexer.TokenRParen) {
		pname := p.curToken.Literal
		if !p.expect(lexer.TokenIdent) {
			return nil
		}
		if !p.expect(lexer.TokenColon) {
			return nil
		}
		ptyp := p.parseType()
		params = append(params, bxast.Param{Name: pname, Type: ptyp})
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
		}
	}
	p.nextToken() // consume ')'

	var ret bxast.Type
	if isFun {
		if !p.expect(lexer.TokenColon) {
			return nil
		}
		ret = p.parseType()
	}

	body := p.parseBlockStmts()
	return &bxast.Callable{Name: name, Params: params, Ret: ret, Body: body}
}

func (p *Parser) parseBlockStmts() []bxast.Stmt {
	if !p.expect(lexer.TokenLBrace) {
		return nil
	}
	var stmts []bxast.Stmt
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		if s := p.parseStmt(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.expect(lexer.TokenRBrace)
	return stmts
}

func (p *Parser) parseStmt() bxast.Stmt {
	switch p.curToken.Type {
	case lexer.TokenVar:
		return p.parseDeclare()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenPrint:
		return p.parsePrint()
	case lexer.TokenLBrace:
		return bxast.Block{Stmts: p.parseBlockStmts()}
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseDeclare() bxast.Stmt {
	p.nextToken() // consume 'var'
	name := p.curToken.Literal
	if !p.expect(lexer.TokenIdent) {
		return nil
	}
	if !p.expect(lexer.TokenAssign) {
		return nil
	}
	init := p.parseExpr(precLowest)
	if !p.expect(lexer.TokenColon) {
		return nil
	}
	t := p.parseListOrType()
	if !p.expect(lexer.TokenSemi) {
		return nil
	}
	return bxast.Declare{Name: name, Type: t, Init: init}
}

// parseListOrType parses a declared type; parseType itself already
// recognizes the `list[T; N]` form, so this just defers to it.
func (p *Parser) parseListOrType() bxast.Type {
	return p.parseType()
}

func (p *Parser) parseIf() bxast.Stmt {
	p.nextToken() // consume 'if'
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	cond := p.parseExpr(precLowest)
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	then := p.parseStmtAsBlock()
	var els []bxast.Stmt
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		els = p.parseStmtAsBlock()
	}
	return bxast.If{Cond: cond, Then: then, Else: els}
}

// parseStmtAsBlock parses either a `{ ... }` block or a single statement,
// returning its statements as a slice either way.
func (p *Parser) parseStmtAsBlock() []bxast.Stmt {
	if p.curTokenIs(lexer.TokenLBrace) {
		return p.parseBlockStmts()
	}
	if s := p.parseStmt(); s != nil {
		return []bxast.Stmt{s}
	}
	return nil
}

func (p *Parser) parseWhile() bxast.Stmt {
	p.nextToken() // consume 'while'
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	cond := p.parseExpr(precLowest)
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	body := p.parseStmtAsBlock()
	return bxast.While{Cond: cond, Body: body}
}

func (p *Parser) parseReturn() bxast.Stmt {
	p.nextToken() // consume 'return'
	if p.curTokenIs(lexer.TokenSemi) {
		p.nextToken()
		return bxast.Return{}
	}
	val := p.parseExpr(precLowest)
	p.expect(lexer.TokenSemi)
	return bxast.Return{Value: val}
}

func (p *Parser) parsePrint() bxast.Stmt {
	p.nextToken() // consume 'print'
	val := p.parseExpr(precLowest)
	p.expect(lexer.TokenSemi)
	return bxast.Print{Value: val}
}

func (p *Parser) parseExprStmt() bxast.Stmt {
	lhs := p.parseExpr(precLowest)
	if p.curTokenIs(lexer.TokenAssign) {
		p.nextToken()
		rhs := p.parseExpr(precLowest)
		p.expect(lexer.TokenSemi)
		return bxast.Assign{Lhs: lhs, Rhs: rhs}
	}
	p.expect(lexer.TokenSemi)
	return bxast.Eval{Value: lhs}
}

// parseExpr implements Pratt parsing: parse a prefix expression, then
// fold in any binary operators whose precedence exceeds prec.
func (p *Parser) parseExpr(prec int) bxast.Expr {
	left := p.parsePrefix()
	for !p.curTokenIs(lexer.TokenSemi) && prec < p.curPrecedence() {
		op, ok := binops[p.curToken.Type]
		if !ok {
			break
		}
		opPrec := p.curPrecedence()
		p.nextToken()
		right := p.parseExpr(opPrec)
		left = bxast.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parsePrefix() bxast.Expr {
	switch p.curToken.Type {
	case lexer.TokenInt:
		return p.parseIntLit()
	case lexer.TokenTrue:
		p.nextToken()
		return bxast.BoolLit{Value: true}
	case lexer.TokenFalse:
		p.nextToken()
		return bxast.BoolLit{Value: false}
	case lexer.TokenNull:
		p.nextToken()
		return bxast.NullLit{}
	case lexer.TokenMinus:
		p.nextToken()
		return p.parsePostfix(bxast.Unary{Op: bxast.UNeg, Operand: p.parseExpr(precUnary)})
	case lexer.TokenNot:
		p.nextToken()
		return p.parsePostfix(bxast.Unary{Op: bxast.UNot, Operand: p.parseExpr(precUnary)})
	case lexer.TokenTilde:
		p.nextToken()
		return p.parsePostfix(bxast.Unary{Op: bxast.UCompl, Operand: p.parseExpr(precUnary)})
	case lexer.TokenAmp:
		p.nextToken()
		return p.parsePostfix(bxast.AddrOf{Operand: p.parseExpr(precUnary)})
	case lexer.TokenStar:
		p.nextToken()
		return p.parsePostfix(bxast.Deref{Operand: p.parseExpr(precUnary)})
	case lexer.TokenAlloc:
		return p.parseAlloc()
	case lexer.TokenLParen:
		p.nextToken()
		e := p.parseExpr(precLowest)
		p.expect(lexer.TokenRParen)
		return p.parsePostfix(e)
	case lexer.TokenIdent:
		return p.parseIdentOrCall()
	default:
		p.addError("unexpected token %v in expression", p.curToken.Type)
		p.nextToken()
		return bxast.IntLit{Value: 0}
	}
}

func (p *Parser) parseIntLit() bxast.Expr {
	var v int64
	fmt.Sscanf(p.curToken.Literal, "%d", &v)
	p.nextToken()
	return bxast.IntLit{Value: v}
}

func (p *Parser) parseAlloc() bxast.Expr {
	p.nextToken() // consume 'alloc'
	elem := p.parseType()
	if !p.expect(lexer.TokenLBracket) {
		return bxast.IntLit{Value: 0}
	}
	n := p.parseExpr(precLowest)
	p.expect(lexer.TokenRBracket)
	return p.parsePostfix(bxast.Alloc{Elem: elem, N: n})
}

func (p *Parser) parseIdentOrCall() bxast.Expr {
	name := p.curToken.Literal
	p.nextToken()
	if p.curTokenIs(lexer.TokenLParen) {
		p.nextToken()
		var args []bxast.Expr
		for !p.curTokenIs(lexer.TokenRParen) {
			args = append(args, p.parseExpr(precLowest))
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
			}
		}
		p.nextToken() // consume ')'
		return p.parsePostfix(bxast.Call{Callee: name, Args: args})
	}
	return p.parsePostfix(bxast.Var{Name: name})
}

// parsePostfix folds in `[idx]` subscripting, which binds tighter than any
// binary operator and may chain after any primary expression.
func (p *Parser) parsePostfix(e bxast.Expr) bxast.Expr {
	for p.curTokenIs(lexer.TokenLBracket) {
		p.nextToken()
		idx := p.parseExpr(precLowest)
		p.expect(lexer.TokenRBracket)
		e = bxast.Index{List_: e, Idx: idx}
	}
	return e
}
