package dsl

// Lexer turns template source into tokens in a single pass.
// Tokens keep byte offsets; string literal escapes are decoded by the parser.
type Lexer struct {
	source string
	pos    int
	line   int
	column int
	tokens []Token
	errs   CompileErrors
}

// NewLexer creates a lexer for source.
func NewLexer(source string) *Lexer {
	return &Lexer{
		source: source,
		line:   1,
		column: 1,
		tokens: make([]Token, 0, len(source)/4+16),
	}
}

// ScanAll lexes the whole source. Malformed input produces ILLEGAL tokens and
// recorded errors; scanning always continues to EOF.
func (l *Lexer) ScanAll() ([]Token, CompileErrors) {
	for {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.source) {
			break
		}
		l.tokens = append(l.tokens, l.scanToken())
	}
	l.tokens = append(l.tokens, Token{Type: EOF, Start: l.pos, End: l.pos, Line: l.line, Column: l.column})
	return l.tokens, l.errs
}

func (l *Lexer) scanToken() Token {
	start, line, col := l.pos, l.line, l.column
	ch := l.advance()
	tok := func(t TokenType) Token { return Token{t, start, l.pos, line, col} }

	switch {
	case isLetter(ch):
		for l.pos < len(l.source) && (isLetter(l.peek()) || isDigit(l.peek())) {
			l.advance()
		}
		if kw, ok := keywords[l.source[start:l.pos]]; ok {
			return tok(kw)
		}
		return tok(IDENT)
	case isDigit(ch):
		return l.scanNumber(start, line, col)
	case ch == '"':
		return l.scanString(start, line, col)
	}

	switch ch {
	case '{':
		return tok(LBRACE)
	case '}':
		return tok(RBRACE)
	case '(':
		return tok(LPAREN)
	case ')':
		return tok(RPAREN)
	case '[':
		return tok(LBRACKET)
	case ']':
		return tok(RBRACKET)
	case ',':
		return tok(COMMA)
	case '.':
		return tok(DOT)
	case ':':
		return tok(COLON)
	case ';':
		return tok(SEMICOLON)
	case '+':
		return tok(PLUS)
	case '-':
		return tok(MINUS)
	case '*':
		return tok(STAR)
	case '/':
		return tok(SLASH)
	case '=':
		if l.match('=') {
			return tok(EQ)
		}
		return tok(ASSIGN)
	case '!':
		if l.match('=') {
			return tok(NEQ)
		}
		return tok(BANG)
	case '<':
		if l.match('=') {
			return tok(LTE)
		}
		return tok(LT)
	case '>':
		if l.match('=') {
			return tok(GTE)
		}
		return tok(GT)
	case '&':
		if l.match('&') {
			return tok(ANDAND)
		}
	case '|':
		if l.match('|') {
			return tok(OROR)
		}
	}
	l.errs = append(l.errs, &CompileError{Pos: Pos{line, col}, Msg: "unexpected character " + quoteChar(ch)})
	return tok(ILLEGAL)
}

// scanNumber reads digits with optional '_' separators and one fractional part.
func (l *Lexer) scanNumber(start, line, col int) Token {
	l.digits()
	if l.pos+1 < len(l.source) && l.peek() == '.' && isDigit(l.source[l.pos+1]) {
		l.advance()
		l.digits()
	}
	text := l.source[start:l.pos]
	if text[len(text)-1] == '_' {
		l.errs = append(l.errs, &CompileError{Pos: Pos{line, col}, Msg: "number literal cannot end with '_'"})
		return Token{ILLEGAL, start, l.pos, line, col}
	}
	return Token{NUMBER, start, l.pos, line, col}
}

func (l *Lexer) digits() {
	for l.pos < len(l.source) && (isDigit(l.peek()) || l.peek() == '_') {
		l.advance()
	}
}

func (l *Lexer) scanString(start, line, col int) Token {
	for l.pos < len(l.source) {
		ch := l.peek()
		switch ch {
		case '\\':
			l.advance()
			if l.pos < len(l.source) {
				l.advance()
			}
			continue
		case '\n':
			l.errs = append(l.errs, &CompileError{Pos: Pos{line, col}, Msg: "unterminated string literal"})
			return Token{ILLEGAL, start, l.pos, line, col}
		case '"':
			l.advance()
			return Token{STRING, start, l.pos, line, col}
		}
		l.advance()
	}
	l.errs = append(l.errs, &CompileError{Pos: Pos{line, col}, Msg: "unterminated string literal"})
	return Token{ILLEGAL, start, l.pos, line, col}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.source) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '#' || (ch == '/' && l.pos+1 < len(l.source) && l.source[l.pos+1] == '/'):
			for l.pos < len(l.source) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) peek() byte { return l.source[l.pos] }

func (l *Lexer) advance() byte {
	ch := l.source[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return ch
}

func (l *Lexer) match(want byte) bool {
	if l.pos < len(l.source) && l.source[l.pos] == want {
		l.advance()
		return true
	}
	return false
}

func isLetter(ch byte) bool { return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }
func isDigit(ch byte) bool  { return ch >= '0' && ch <= '9' }

func quoteChar(ch byte) string {
	if ch < 0x20 || ch >= 0x7f {
		return "0x" + string("0123456789abcdef"[ch>>4]) + string("0123456789abcdef"[ch&0xf])
	}
	return "'" + string(ch) + "'"
}
