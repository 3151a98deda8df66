package dsl

// TokenType identifies the lexical class of a token.
type TokenType uint8

const (
	ILLEGAL TokenType = iota
	EOF

	IDENT
	NUMBER
	STRING

	// Keywords
	LET
	REQUIRE
	ENTRY
	DEBIT
	CREDIT
	AFTER
	TRUE
	FALSE
	AND
	OR
	NOT

	// Punctuation and operators
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	COMMA
	DOT
	COLON
	SEMICOLON
	ASSIGN
	EQ
	NEQ
	LT
	LTE
	GT
	GTE
	PLUS
	MINUS
	STAR
	SLASH
	BANG
	ANDAND
	OROR
)

var tokenNames = [...]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "end of input",
	IDENT:     "identifier",
	NUMBER:    "number",
	STRING:    "string",
	LET:       "'let'",
	REQUIRE:   "'require'",
	ENTRY:     "'entry'",
	DEBIT:     "'debit'",
	CREDIT:    "'credit'",
	AFTER:     "'after'",
	TRUE:      "'true'",
	FALSE:     "'false'",
	AND:       "'and'",
	OR:        "'or'",
	NOT:       "'not'",
	LBRACE:    "'{'",
	RBRACE:    "'}'",
	LPAREN:    "'('",
	RPAREN:    "')'",
	LBRACKET:  "'['",
	RBRACKET:  "']'",
	COMMA:     "','",
	DOT:       "'.'",
	COLON:     "':'",
	SEMICOLON: "';'",
	ASSIGN:    "'='",
	EQ:        "'=='",
	NEQ:       "'!='",
	LT:        "'<'",
	LTE:       "'<='",
	GT:        "'>'",
	GTE:       "'>='",
	PLUS:      "'+'",
	MINUS:     "'-'",
	STAR:      "'*'",
	SLASH:     "'/'",
	BANG:      "'!'",
	ANDAND:    "'&&'",
	OROR:      "'||'",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return "token"
}

var keywords = map[string]TokenType{
	"let":     LET,
	"require": REQUIRE,
	"entry":   ENTRY,
	"debit":   DEBIT,
	"credit":  CREDIT,
	"after":   AFTER,
	"true":    TRUE,
	"false":   FALSE,
	"and":     AND,
	"or":      OR,
	"not":     NOT,
}

// Token is a lexical token. It stores byte offsets into the source rather than the text.
type Token struct {
	Type   TokenType
	Start  int
	End    int
	Line   int
	Column int
}

// Text returns the raw source text of the token.
func (t Token) Text(source string) string { return source[t.Start:t.End] }

// Pos returns the source position of the token.
func (t Token) Pos() Pos { return Pos{Line: t.Line, Column: t.Column} }
