package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexerTokens(t *testing.T) {
	src := "let total = 1_000.50 >= voucher.amount # trailing comment\n" +
		"require !(a != \"x\\\"y\") && b || c : \"msg\" // more\n"
	toks, errs := NewLexer(src).ScanAll()
	require.Empty(t, errs)

	want := []TokenType{
		LET, IDENT, ASSIGN, NUMBER, GTE, IDENT, DOT, IDENT,
		REQUIRE, BANG, LPAREN, IDENT, NEQ, STRING, RPAREN, ANDAND, IDENT, OROR, IDENT, COLON, STRING,
		EOF,
	}
	got := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		got = append(got, tok.Type)
	}
	assert.Equal(t, want, got)

	assert.Equal(t, "1_000.50", toks[3].Text(src))
	assert.Equal(t, Pos{Line: 1, Column: 13}, toks[3].Pos())
	assert.Equal(t, Pos{Line: 2, Column: 1}, toks[8].Pos())
	assert.Equal(t, `"x\"y"`, toks[13].Text(src))
}

func TestLexerKeywordsAreCaseSensitive(t *testing.T) {
	toks, errs := NewLexer("Let debit Credit").ScanAll()
	require.Empty(t, errs)
	assert.Equal(t, IDENT, toks[0].Type)
	assert.Equal(t, DEBIT, toks[1].Type)
	assert.Equal(t, IDENT, toks[2].Type)
}

func TestLexerErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		pos  Pos
		msg  string
	}{
		{"trailing separator", "let a = 1_", Pos{1, 9}, "number literal cannot end with '_'"},
		{"unterminated string", "let a = \"abc\nlet b = 1", Pos{1, 9}, "unterminated string literal"},
		{"unexpected char", "let a = 1 @ 2", Pos{1, 11}, "unexpected character '@'"},
		{"single ampersand", "a & b", Pos{1, 3}, "unexpected character '&'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, errs := NewLexer(tc.src).ScanAll()
			require.Len(t, errs, 1)
			assert.Equal(t, tc.pos, errs[0].Pos)
			assert.Equal(t, tc.msg, errs[0].Msg)
		})
	}
}
