package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `proc main(){
  var x=5:int64;
  if (x>=1 && x<=9) { print x; } else { print 0; }
  return;
}`

	tests := []struct {
		wantType    TokenType
		wantLiteral string
	}{
		{TokenProc, "proc"},
		{TokenIdent, "main"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenVar, "var"},
		{TokenIdent, "x"},
		{TokenAssign, "="},
		{TokenInt, "5"},
		{TokenColon, ":"},
		{TokenInt64, "int64"},
		{TokenSemi, ";"},
		{TokenIf, "if"},
		{TokenLParen, "("},
		{TokenIdent, "x"},
		{TokenGe, ">="},
		{TokenInt, "1"},
		{TokenAndAnd, "&&"},
		{TokenIdent, "x"},
		{TokenLe, "<="},
		{TokenInt, "9"},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenPrint, "print"},
		{TokenIdent, "x"},
		{TokenSemi, ";"},
		{TokenRBrace, "}"},
		{TokenElse, "else"},
		{TokenLBrace, "{"},
		{TokenPrint, "print"},
		{TokenInt, "0"},
		{TokenSemi, ";"},
		{TokenRBrace, "}"},
		{TokenReturn, "return"},
		{TokenSemi, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.wantType {
			t.Fatalf("token %d: type = %v, want %v (literal %q)", i, tok.Type, tt.wantType, tok.Literal)
		}
		if tok.Literal != tt.wantLiteral {
			t.Fatalf("token %d: literal = %q, want %q", i, tok.Literal, tt.wantLiteral)
		}
	}
}

func TestNextTokenOperatorsAndComments(t *testing.T) {
	input := `// comment
a = &b[0] * (~c) /* block */ != null;`

	l := New(input)
	var types []TokenType
	for {
		tok := l.NextToken()
		types = append(types, tok.Type)
		if tok.Type == TokenEOF {
			break
		}
	}

	want := []TokenType{
		TokenIdent, TokenAssign, TokenAmp, TokenIdent, TokenLBracket, TokenInt, TokenRBracket,
		TokenStar, TokenLParen, TokenTilde, TokenIdent, TokenRParen, TokenNe, TokenNull, TokenSemi, TokenEOF,
	}
	if len(types) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(types), len(want))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("token %d: type = %v, want %v", i, types[i], want[i])
		}
	}
}
